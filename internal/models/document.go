package models

import "strings"

// MediaType identifies which loader extracts text from a document.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaPDF
	MediaDOCX
	MediaPlainText
	MediaHTML
)

func (m MediaType) String() string {
	switch m {
	case MediaPDF:
		return "pdf"
	case MediaDOCX:
		return "docx"
	case MediaPlainText:
		return "text"
	case MediaHTML:
		return "html"
	default:
		return "unknown"
	}
}

// MediaTypeFromExt maps a file extension (with or without the dot) to a MediaType.
func MediaTypeFromExt(ext string) MediaType {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "pdf":
		return MediaPDF
	case "docx":
		return MediaDOCX
	case "txt", "text", "md":
		return MediaPlainText
	case "html", "htm":
		return MediaHTML
	default:
		return MediaUnknown
	}
}

type Document struct {
	ID        string
	Path      string
	MediaType MediaType
	Content   string
}

// Chunk is a bounded slice of a document's cleaned text.
type Chunk struct {
	DocumentID string
	Index      int
	Offset     int
	Text       string
}
