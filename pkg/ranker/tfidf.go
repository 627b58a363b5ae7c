package ranker

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Words of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// TFIDFSimilarities fits a TF-IDF model on docs plus the query and returns
// the cosine similarity between the query and each doc. Weights use raw
// term counts, smoothed idf ln((1+n)/(1+df))+1 and L2 normalization.
func TFIDFSimilarities(query string, docs []string) []float64 {
	scores := make([]float64, len(docs))
	if len(docs) == 0 {
		return scores
	}

	corpus := make([][]string, 0, len(docs)+1)
	for _, d := range docs {
		corpus = append(corpus, tokenize(d))
	}
	corpus = append(corpus, tokenize(query))

	df := make(map[string]int)
	for _, tokens := range corpus {
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return scores
	}

	// Stable vocabulary ordering keeps the float sums deterministic.
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		vocabulary[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	vectors := make([][]float64, len(corpus))
	for i, tokens := range corpus {
		vec := make([]float64, len(terms))
		for _, tok := range tokens {
			vec[vocabulary[tok]]++
		}
		for j := range vec {
			vec[j] *= idf[j]
		}
		normalize(vec)
		vectors[i] = vec
	}

	q := vectors[len(vectors)-1]
	for i := range docs {
		scores[i] = dot(q, vectors[i])
	}
	return scores
}

func normalize(vec []float64) {
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Cosine returns the cosine similarity of two embeddings, or 0 when either
// is a zero vector or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var ab, aa, bb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		ab += x * y
		aa += x * x
		bb += y * y
	}
	if aa == 0 || bb == 0 {
		return 0
	}
	return ab / (math.Sqrt(aa) * math.Sqrt(bb))
}
