// Package textutil compares transcripts as term-frequency vectors. The
// transcription stage uses it to score how well independent sources agree on
// the same audio.
package textutil

import (
	"math"
	"regexp"
	"strings"
)

// tokenSplitPattern splits on anything that is not a letter, combining mark,
// or digit. Marks are kept so abugida scripts do not shatter at every vowel
// sign.
var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{M}\p{N}]+`)

// Fingerprint is a normalized term-frequency vector over one text.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

// NewFingerprint builds a fingerprint from text. Returns nil when the text
// yields no tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Fingerprint{
		tokens: counts,
		norm:   math.Sqrt(norm),
	}
}

// Tokenize lowercases text and splits it into word tokens. Single-rune tokens
// are dropped; longer thresholds would discard most words in scripts like
// Devanagari or Thai.
func Tokenize(text string) []string {
	raw := tokenSplitPattern.Split(strings.ToLower(text), -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		if len([]rune(token)) < 2 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenCount returns the number of distinct tokens in the fingerprint.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// CosineSimilarity returns the cosine of the angle between two fingerprints,
// 0 when either side is nil or empty.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Agreement scores two transcripts in [0,1].
func Agreement(a, b string) float64 {
	return CosineSimilarity(NewFingerprint(a), NewFingerprint(b))
}
