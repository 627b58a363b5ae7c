package loader

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/phuslu/log"
)

// PDFLoader extracts page content streams with pdfcpu and decodes the text
// shown by them.
type PDFLoader struct {
	tempDir string
}

func NewPDFLoader() *PDFLoader {
	return &PDFLoader{tempDir: os.TempDir()}
}

var pageFilePattern = regexp.MustCompile(`page_(\d+)`)

func (l *PDFLoader) Load(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp(l.tempDir, "hybridrag-pdf-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("failed to extract PDF content: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return "", err
	}

	pageTexts := make(map[int]string, len(files))
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		m := pageFilePattern.FindStringSubmatch(file.Name())
		if m == nil {
			continue
		}
		pageNum, _ := strconv.Atoi(m[1])
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			log.Warn().Err(err).Int("page", pageNum).Str("file", path).Msg("failed to read page content")
			continue
		}
		pageTexts[pageNum] = contentText(content)
	}

	// Build text in page order
	var fullText strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(text)
	}

	return fullText.String(), nil
}

// contentText decodes the strings painted by the text-showing operators
// (Tj, TJ, ' and ") of a page content stream. Line moves and the end of a
// text object become newlines. Large negative kerning inside a TJ array is
// read as a word gap.
func contentText(stream []byte) string {
	var (
		out     strings.Builder
		pending []string
		inArray bool
	)

	newline := func() {
		if s := out.String(); s != "" && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for i := 0; i < len(stream); {
		c := stream[i]
		switch {
		case c == '%':
			for i < len(stream) && stream[i] != '\n' && stream[i] != '\r' {
				i++
			}
		case isSpace(c):
			i++
		case c == '(':
			s, n := literalString(stream[i:])
			pending = append(pending, s)
			i += n
		case c == '<' && i+1 < len(stream) && stream[i+1] == '<':
			i += 2
		case c == '>' && i+1 < len(stream) && stream[i+1] == '>':
			i += 2
		case c == '<':
			end := i + 1
			for end < len(stream) && stream[end] != '>' {
				end++
			}
			pending = append(pending, hexString(stream[i+1:end]))
			i = end + 1
		case c == '[':
			inArray = true
			i++
		case c == ']':
			inArray = false
			i++
		default:
			start := i
			for i < len(stream) && !isSpace(stream[i]) && !isDelimiter(stream[i]) {
				i++
			}
			if i == start {
				i++
				continue
			}
			tok := string(stream[start:i])

			if inArray {
				if v, err := strconv.ParseFloat(tok, 64); err == nil && v < -250 {
					pending = append(pending, " ")
				}
				continue
			}

			switch tok {
			case "Tj", "TJ":
				out.WriteString(strings.Join(pending, ""))
			case "'", "\"":
				newline()
				out.WriteString(strings.Join(pending, ""))
			case "T*", "Td", "TD", "ET":
				newline()
			}
			if !isNumber(tok) {
				pending = pending[:0]
			}
		}
	}

	return out.String()
}

func literalString(b []byte) (string, int) {
	var s strings.Builder
	depth := 0
	i := 0
	for i < len(b) {
		c := b[i]
		switch c {
		case '(':
			depth++
			if depth > 1 {
				s.WriteByte(c)
			}
			i++
		case ')':
			depth--
			i++
			if depth == 0 {
				return s.String(), i
			}
			s.WriteByte(c)
		case '\\':
			i++
			if i >= len(b) {
				return s.String(), i
			}
			e := b[i]
			switch e {
			case 'n':
				s.WriteByte('\n')
			case 'r':
				s.WriteByte('\r')
			case 't':
				s.WriteByte('\t')
			case 'b':
				s.WriteByte('\b')
			case 'f':
				s.WriteByte('\f')
			case '\r', '\n':
				// Line continuation.
				if e == '\r' && i+1 < len(b) && b[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					j := i
					for j < len(b) && j < i+3 && b[j] >= '0' && b[j] <= '7' {
						j++
					}
					v, _ := strconv.ParseUint(string(b[i:j]), 8, 8)
					s.WriteByte(byte(v))
					i = j
					continue
				}
				s.WriteByte(e)
			}
			i++
		default:
			s.WriteByte(c)
			i++
		}
	}
	return s.String(), i
}

func hexString(b []byte) string {
	digits := make([]byte, 0, len(b)+1)
	for _, c := range b {
		if !isSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	raw, err := hex.DecodeString(string(digits))
	if err != nil {
		return ""
	}

	// Two-byte glyph codes with a zero high byte are treated as UTF-16BE.
	if len(raw) >= 2 && len(raw)%2 == 0 && raw[0] == 0 {
		u := make([]uint16, len(raw)/2)
		for i := range u {
			u[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
		}
		return string(utf16.Decode(u))
	}
	return string(raw)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isNumber(tok string) bool {
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}
