// Package topics picks the most frequent meaningful words of a document.
package topics

import (
	"regexp"
	"sort"
	"strings"
)

const DefaultCount = 12

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

type Extractor struct {
	stopwords map[string]struct{}
}

// NewExtractor uses the English stopword list plus any custom words.
func NewExtractor(custom ...string) *Extractor {
	words := getStopwords()
	stop := make(map[string]struct{}, len(words)+len(custom))
	for _, w := range words {
		stop[w] = struct{}{}
	}
	for _, w := range custom {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Extractor{stopwords: stop}
}

var defaultExtractor = NewExtractor()

func Extract(text string, n int) []string {
	return defaultExtractor.Extract(text, n)
}

// Extract returns up to n words ordered by frequency. Words are counted
// case-sensitively; ties keep the order in which words first appear.
func (e *Extractor) Extract(text string, n int) []string {
	if n <= 0 {
		n = DefaultCount
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range wordPattern.FindAllString(text, -1) {
		if _, ok := e.stopwords[strings.ToLower(w)]; ok {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}

// English stopwords
func getStopwords() []string {
	return []string{
		"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "your",
		"yours", "yourself", "yourselves", "he", "him", "his", "himself", "she", "her",
		"hers", "herself", "it", "its", "itself", "they", "them", "their", "theirs",
		"themselves", "what", "which", "who", "whom", "this", "that", "these", "those",
		"am", "is", "are", "was", "were", "be", "been", "being", "have", "has", "had",
		"having", "do", "does", "did", "doing", "a", "an", "the", "and", "but", "if",
		"or", "because", "as", "until", "while", "of", "at", "by", "for", "with",
		"about", "against", "between", "into", "through", "during", "before", "after",
		"above", "below", "to", "from", "up", "down", "in", "out", "on", "off", "over",
		"under", "again", "further", "then", "once", "here", "there", "when", "where",
		"why", "how", "all", "any", "both", "each", "few", "more", "most", "other",
		"some", "such", "no", "nor", "not", "only", "own", "same", "so", "than", "too",
		"very", "s", "t", "can", "will", "just", "don", "should", "now", "d", "ll",
		"m", "o", "re", "ve", "y", "ain", "aren", "couldn", "didn", "doesn", "hadn",
		"hasn", "haven", "isn", "ma", "mightn", "mustn", "needn", "shan", "shouldn",
		"wasn", "weren", "won", "wouldn",
	}
}
