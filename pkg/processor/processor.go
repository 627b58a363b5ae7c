package processor

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xhad/hybridrag/internal/models"
)

const (
	DefaultChunkSize = 2048

	ModeSimple     = "simple"
	ModeStructured = "structured"
)

// DefaultMarkers match hierarchical headings in regulations, books and
// markdown: 第三章 / 第十二条, "Chapter 4", "Section 2", "3.1.2 " and "## ".
var DefaultMarkers = []string{
	`^\s*第[一二三四五六七八九十百千零〇\d]+[编章节条款]`,
	`^\s*(?i:chapter|section|article)\s+[\dIVXLC]+`,
	`^\s*\d+(?:\.\d+)+\s`,
	`^\s*#{1,6}\s`,
}

type ProcessorConfig struct {
	Mode         string
	ChunkSize    int
	ChunkOverlap int
	Markers      []string
}

type Processor struct {
	config  ProcessorConfig
	markers *regexp.Regexp
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.Mode == "" {
		config.Mode = ModeSimple
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = 0
	}
	if len(config.Markers) == 0 {
		config.Markers = DefaultMarkers
	}

	p := &Processor{config: config}

	switch config.Mode {
	case ModeSimple:
	case ModeStructured:
		re, err := CompileMarkers(config.Markers)
		if err != nil {
			return nil, err
		}
		p.markers = re
	default:
		return nil, fmt.Errorf("unknown processor mode %q", config.Mode)
	}

	return p, nil
}

// CompileMarkers joins boundary patterns into one multi-line alternation.
func CompileMarkers(patterns []string) (*regexp.Regexp, error) {
	parts := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("invalid marker %q: %w", p, err)
		}
		parts = append(parts, "(?:"+p+")")
	}
	return regexp.Compile("(?m)" + strings.Join(parts, "|"))
}

// Process cleans every document and splits it into chunks according to the
// configured mode. Documents whose cleaned text is empty yield no chunks.
func (p *Processor) Process(docs []models.Document) ([]models.Chunk, error) {
	var chunks []models.Chunk

	for _, doc := range docs {
		var spans []span
		switch p.config.Mode {
		case ModeStructured:
			spans = bound(splitStructured(CleanStructured(doc.Content), p.markers, p.config.ChunkSize, p.config.ChunkOverlap), p.config.ChunkSize)
		default:
			spans = splitFixed(Clean(doc.Content), p.config.ChunkSize)
		}

		for i, s := range spans {
			chunks = append(chunks, models.Chunk{
				DocumentID: doc.ID,
				Index:      i,
				Offset:     s.offset,
				Text:       s.text,
			})
		}
	}

	return chunks, nil
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonASCIIRun   = regexp.MustCompile(`[^\x00-\x7F]+`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
	inlineSpace   = regexp.MustCompile(`[ \t\f\v]+`)
)

// Clean collapses whitespace, drops non-ASCII characters and trims the
// result. It is the normalization applied before fixed-width splitting.
func Clean(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = nonASCIIRun.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// CleanStructured keeps line structure and non-ASCII text so heading
// markers survive, but normalizes inline whitespace and blank-line runs.
func CleanStructured(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(inlineSpace.ReplaceAllString(line, " "), " ")
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

type span struct {
	offset int
	text   string
}

// Split slices text into consecutive pieces of at most maxLength bytes with
// no overlap. Joining the pieces yields text unchanged.
func Split(text string, maxLength int) []string {
	return texts(splitFixed(text, maxLength))
}

func splitFixed(text string, maxLength int) []span {
	if text == "" {
		return nil
	}
	if maxLength <= 0 {
		maxLength = DefaultChunkSize
	}

	spans := make([]span, 0, len(text)/maxLength+1)
	for start := 0; start < len(text); {
		end := start + maxLength
		if end >= len(text) {
			end = len(text)
		} else {
			// never cut a multi-byte rune in half
			for end > start+1 && !utf8.RuneStart(text[end]) {
				end--
			}
		}
		spans = append(spans, span{offset: start, text: text[start:end]})
		start = end
	}
	return spans
}

type StructuredOptions struct {
	Markers    *regexp.Regexp
	TargetSize int
	Overlap    int
}

// SplitStructured cuts text at boundary markers and greedily packs the
// resulting marker+body sections into chunks of roughly TargetSize bytes,
// prefixing each chunk after the first with up to Overlap trailing bytes of
// its predecessor, as many as fit beside the next section. Only a single
// section longer than TargetSize yields a larger chunk. Text without
// markers comes back as a single chunk.
func SplitStructured(text string, opts StructuredOptions) []string {
	if opts.Markers == nil {
		re, _ := CompileMarkers(DefaultMarkers)
		opts.Markers = re
	}
	if opts.TargetSize <= 0 {
		opts.TargetSize = DefaultChunkSize
	}
	return texts(splitStructured(text, opts.Markers, opts.TargetSize, opts.Overlap))
}

func splitStructured(text string, markers *regexp.Regexp, target, overlap int) []span {
	if text == "" {
		return nil
	}

	locs := markers.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []span{{offset: 0, text: text}}
	}

	// Section boundaries: optional preamble, then one section per marker.
	var bounds []int
	if locs[0][0] > 0 {
		bounds = append(bounds, 0)
	}
	for _, loc := range locs {
		bounds = append(bounds, loc[0])
	}
	bounds = append(bounds, len(text))

	var (
		spans   []span
		current strings.Builder
		start   int
	)
	for i := 0; i+1 < len(bounds); i++ {
		section := text[bounds[i]:bounds[i+1]]
		if current.Len() > 0 && current.Len()+len(section) > target {
			chunk := current.String()
			spans = append(spans, span{offset: start, text: chunk})
			current.Reset()

			// Carry only as much as fits next to the incoming section.
			carried := tail(chunk, min(overlap, target-len(section)))
			current.WriteString(carried)
			start = bounds[i] - len(carried)
		}
		if current.Len() == 0 {
			start = bounds[i]
		}
		current.WriteString(section)
	}
	if current.Len() > 0 {
		spans = append(spans, span{offset: start, text: current.String()})
	}

	return spans
}

// bound re-slices spans longer than limit at fixed width. Offsets stay
// relative to the cleaned text.
func bound(spans []span, limit int) []span {
	out := make([]span, 0, len(spans))
	for _, s := range spans {
		if len(s.text) <= limit {
			out = append(out, s)
			continue
		}
		for _, piece := range splitFixed(s.text, limit) {
			out = append(out, span{offset: s.offset + piece.offset, text: piece.text})
		}
	}
	return out
}

// tail returns at most n trailing bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if n >= len(s) {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

func texts(spans []span) []string {
	if len(spans) == 0 {
		return nil
	}
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.text
	}
	return out
}
