package ranker

import (
	"math"
	"sort"
	"strings"
)

// Okapi BM25 defaults.
const (
	BM25K1      = 1.5
	BM25B       = 0.75
	BM25Epsilon = 0.25
)

// BM25Scores scores the query against each doc with Okapi BM25 over
// whitespace tokens. Terms whose idf would be negative (present in more
// than half the docs) get epsilon times the mean idf instead; query terms
// absent from the corpus contribute nothing.
func BM25Scores(query string, docs []string) []float64 {
	scores := make([]float64, len(docs))
	if len(docs) == 0 {
		return scores
	}

	freqs := make([]map[string]int, len(docs))
	lengths := make([]float64, len(docs))
	nd := make(map[string]int)
	total := 0.0
	for i, d := range docs {
		tokens := strings.Fields(d)
		lengths[i] = float64(len(tokens))
		total += lengths[i]

		f := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			f[tok]++
		}
		for tok := range f {
			nd[tok]++
		}
		freqs[i] = f
	}

	n := float64(len(docs))
	avgdl := total / n
	if avgdl == 0 || len(nd) == 0 {
		return scores
	}

	terms := make([]string, 0, len(nd))
	for term := range nd {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	idf := make(map[string]float64, len(terms))
	sum := 0.0
	var negative []string
	for _, term := range terms {
		df := float64(nd[term])
		v := math.Log(n-df+0.5) - math.Log(df+0.5)
		idf[term] = v
		sum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}
	eps := BM25Epsilon * sum / float64(len(terms))
	for _, term := range negative {
		idf[term] = eps
	}

	for _, q := range strings.Fields(query) {
		w, ok := idf[q]
		if !ok {
			continue
		}
		for i := range docs {
			tf := float64(freqs[i][q])
			scores[i] += w * (tf * (BM25K1 + 1)) / (tf + BM25K1*(1-BM25B+BM25B*lengths[i]/avgdl))
		}
	}
	return scores
}
