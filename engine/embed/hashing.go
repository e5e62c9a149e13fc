package embed

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultDimension matches the 768-wide models used in production so the
// same collections work with either backend.
const DefaultDimension = 768

var errNoTokens = errors.New("text has no indexable tokens")

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Hashing is a local feature-hashing embedder. Unigrams and bigrams are
// hashed into a fixed number of signed buckets and the result is
// L2-normalised, so dot product equals cosine similarity. It needs no model
// files and no network, which makes it the default for in-memory mode.
type Hashing struct {
	dims      int
	stopwords map[string]struct{}
}

// NewHashing creates a hashing embedder with the given dimension.
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = DefaultDimension
	}
	return &Hashing{dims: dims, stopwords: defaultStopwords()}
}

// Name implements Embedder.
func (h *Hashing) Name() string { return "hashing" }

// Dimension implements Embedder.
func (h *Hashing) Dimension() int { return h.dims }

// Embed implements Embedder.
func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text)
}

// EmbedBatch implements Embedder.
func (h *Hashing) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := h.vector(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (h *Hashing) vector(text string) ([]float32, error) {
	tokens := h.tokenize(text)
	if len(tokens) == 0 {
		// Stop words or punctuation only: hash the whole string as one
		// term so the vector stays deterministic and non-zero.
		trimmed := strings.ToLower(strings.TrimSpace(text))
		if trimmed == "" {
			return nil, errNoTokens
		}
		tokens = []string{trimmed}
	}

	tf := make(map[string]float64, len(tokens)*2)
	for i, tok := range tokens {
		tf[tok]++
		if i > 0 {
			tf[tokens[i-1]+" "+tok] += 0.5
		}
	}

	acc := make([]float64, h.dims)
	for term, count := range tf {
		bucket, sign := h.bucket(term)
		acc[bucket] += sign * (1 + math.Log(count))
	}

	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, h.dims)
	if norm == 0 {
		return out, nil
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *Hashing) bucket(term string) (int, float64) {
	f := fnv.New64a()
	f.Write([]byte(term))
	sum := f.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(h.dims)), sign
}

func (h *Hashing) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := h.stopwords[tok]; stop {
			continue
		}
		out = append(out, stem(tok))
	}
	return out
}

// stem folds the most common English plural endings so "headaches" and
// "headache" share a bucket.
func stem(tok string) string {
	switch {
	case len(tok) > 4 && strings.HasSuffix(tok, "ies"):
		return tok[:len(tok)-3] + "y"
	case len(tok) > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") && !strings.HasSuffix(tok, "us") && !strings.HasSuffix(tok, "is"):
		return tok[:len(tok)-1]
	}
	return tok
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can", "do", "does",
		"for", "from", "had", "has", "have", "he", "her", "his", "i", "i'm", "if", "in", "into",
		"is", "it", "its", "me", "my", "of", "on", "or", "our", "she", "so", "that", "the",
		"their", "them", "there", "these", "they", "this", "to", "was", "we", "were", "what",
		"when", "where", "which", "while", "who", "will", "with", "you", "your", "also",
		"feel", "feeling", "got", "get", "very", "some", "any", "about", "am",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
