// Package classify tags event text with topic categories, access type and cost.
//
// Both classifiers share one TF-IDF model: each taxonomy label is a seed
// document, IDF is smoothed over the seeds, and input text is scored against
// every seed vector with cosine similarity. Models are built once and are
// read-only afterwards, so a single instance can be shared across goroutines.
package classify

import (
	"math"
	"regexp"
	"strings"
)

// Seed is one taxonomy entry: a label and its hand-authored seed terms.
type Seed struct {
	Label string
	Terms string
}

// Tokenizer splits text into the terms a model is built over.
type Tokenizer func(text string) []string

// Vector is a sparse term-weight vector.
type Vector map[string]float64

// Score pairs a taxonomy label with its similarity to an input.
type Score struct {
	Label string
	Value float64
}

// Model is an immutable TF-IDF model over a fixed taxonomy.
type Model struct {
	tokenize Tokenizer
	labels   []string
	idf      map[string]float64
	seeds    []Vector
}

var nonTermChars = regexp.MustCompile(`[^a-z0-9\s-]`)

// NewModel precomputes IDF and the seed vectors of taxonomy.
func NewModel(taxonomy []Seed, tokenize Tokenizer) *Model {
	docs := make([][]string, len(taxonomy))
	df := make(map[string]int)
	for i, seed := range taxonomy {
		docs[i] = tokenize(seed.Terms)
		seen := make(map[string]struct{}, len(docs[i]))
		for _, term := range docs[i] {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	k := float64(len(taxonomy))
	idf := make(map[string]float64, len(df))
	for term, n := range df {
		idf[term] = math.Log(k/(1+float64(n))) + 1
	}

	m := &Model{
		tokenize: tokenize,
		labels:   make([]string, len(taxonomy)),
		idf:      idf,
		seeds:    make([]Vector, len(taxonomy)),
	}
	for i, seed := range taxonomy {
		m.labels[i] = seed.Label
		m.seeds[i] = m.Vector(docs[i])
	}
	return m
}

// Labels returns the taxonomy labels in declaration order.
func (m *Model) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// Has reports whether label belongs to the taxonomy.
func (m *Model) Has(label string) bool {
	for _, l := range m.labels {
		if l == label {
			return true
		}
	}
	return false
}

// Tokenize applies the model's tokenizer.
func (m *Model) Tokenize(text string) []string {
	return m.tokenize(text)
}

// Vector weights tokens by max-normalised term frequency times IDF.
// Terms outside the seed vocabulary are dropped.
func (m *Model) Vector(tokens []string) Vector {
	counts := make(map[string]int, len(tokens))
	maxCount := 1
	for _, t := range tokens {
		counts[t]++
		if counts[t] > maxCount {
			maxCount = counts[t]
		}
	}

	vec := make(Vector, len(counts))
	for term, n := range counts {
		if w, ok := m.idf[term]; ok {
			vec[term] = float64(n) / float64(maxCount) * w
		}
	}
	return vec
}

// Scores returns the cosine similarity of tokens to every seed, in taxonomy order.
func (m *Model) Scores(tokens []string) []Score {
	vec := m.Vector(tokens)
	out := make([]Score, len(m.seeds))
	for i, seed := range m.seeds {
		out[i] = Score{Label: m.labels[i], Value: Cosine(vec, seed)}
	}
	return out
}

// Cosine is the normalised dot product of a and b; zero when either is empty.
func Cosine(a, b Vector) float64 {
	var dot, magA, magB float64
	for term, va := range a {
		magA += va * va
		if vb, ok := b[term]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		magB += vb * vb
	}
	denom := math.Sqrt(magA) * math.Sqrt(magB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func words(text string) []string {
	clean := nonTermChars.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(clean)
	out := fields[:0]
	for _, w := range fields {
		if len(w) > 1 {
			out = append(out, w)
		}
	}
	return out
}
