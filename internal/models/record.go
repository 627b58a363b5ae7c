package models

// IndexedRecord is the unit written to a vector collection.
type IndexedRecord struct {
	ID     string
	Vector []float32
	Raw    string
}

// Candidate is one hit returned by a collection query, carrying the
// store's native similarity score.
type Candidate struct {
	ID    string
	Score float64
	Raw   string
}

// RankedResult is the candidate picked by the hybrid ranker together with
// the per-signal scores that produced the decision.
type RankedResult struct {
	Index     int
	Candidate Candidate
	Vector    float64
	TFIDF     float64
	BM25      float64
	Combined  float64
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
