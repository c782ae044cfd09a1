package cluster

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"
)

// ErrEmptyVocabulary is returned when no input yields a token.
var ErrEmptyVocabulary = errors.New("empty vocabulary")

// Tokenize lowercases s and returns every maximal run of two or more word
// characters.
func Tokenize(s string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) >= 2 {
			tokens = append(tokens, string(cur))
		}
		cur = cur[:0]
	}
	for _, r := range strings.ToLower(s) {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			cur = append(cur, r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// TFIDF holds a fitted vocabulary and inverse document frequencies.
type TFIDF struct {
	Vocabulary []string
	index      map[string]int
	idf        []float64
}

// FitTransform fits a vocabulary over docs and returns one L2-normalised
// row per document. IDF is smoothed: ln((1+n)/(1+df)) + 1.
func FitTransform(docs []string) (*TFIDF, [][]float64, error) {
	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, d := range docs {
		tokenized[i] = Tokenize(d)
		seen := make(map[string]struct{}, len(tokenized[i]))
		for _, tok := range tokenized[i] {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return nil, nil, ErrEmptyVocabulary
	}

	t := &TFIDF{
		Vocabulary: make([]string, 0, len(df)),
		index:      make(map[string]int, len(df)),
	}
	for tok := range df {
		t.Vocabulary = append(t.Vocabulary, tok)
	}
	sort.Strings(t.Vocabulary)
	n := float64(len(docs))
	t.idf = make([]float64, len(t.Vocabulary))
	for i, tok := range t.Vocabulary {
		t.index[tok] = i
		t.idf[i] = math.Log((1+n)/(1+float64(df[tok]))) + 1
	}

	rows := make([][]float64, len(docs))
	for i, toks := range tokenized {
		row := make([]float64, len(t.Vocabulary))
		for _, tok := range toks {
			row[t.index[tok]]++
		}
		for j := range row {
			row[j] *= t.idf[j]
		}
		normalize(row)
		rows[i] = row
	}
	return t, rows, nil
}

func normalize(v []float64) {
	n := norm(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, or 0 when either is the
// zero vector.
func Cosine(a, b []float64) float64 {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
