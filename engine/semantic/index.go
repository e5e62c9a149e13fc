// Package semantic stores embedding vectors with their payloads and answers
// similarity queries. The Qdrant backend owns every Qdrant call in the
// module; the Memory backend serves local runs and tests.
package semantic

import (
	"context"
	"fmt"
	"strconv"

	"github.com/WessleyAI/medrag/engine/domain"
)

// Payload is the metadata stored alongside a vector. Values are string or bool.
type Payload map[string]any

// Record is one vector to store.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is one similarity search result. Score is the raw cosine similarity.
type Hit struct {
	ID      string
	Score   float32
	Payload Payload
}

// Match is a single equality condition on a payload field.
type Match struct {
	Key   string
	Value any
}

// Filter is a conjunction of equality conditions.
type Filter []Match

// Eq matches a string field.
func Eq(key, value string) Match { return Match{Key: key, Value: value} }

// EqBool matches a bool field.
func EqBool(key string, value bool) Match { return Match{Key: key, Value: value} }

// Index is the vector store contract shared by all backends.
type Index interface {
	// EnsureCollection creates the collection if it does not exist yet.
	EnsureCollection(ctx context.Context, collection string, dims int) error
	// Upsert stores records, overwriting any existing record with the same id.
	Upsert(ctx context.Context, collection string, records []Record) error
	// Search returns at most topK hits ordered by score descending.
	Search(ctx context.Context, collection string, vector []float32, filter Filter, topK int) ([]Hit, error)
	// Count returns the number of records in the collection.
	Count(ctx context.Context, collection string) (int, error)
	// Delete removes the records with the given ids. Unknown ids and missing
	// collections are not an error.
	Delete(ctx context.Context, collection string, ids []string) error
}

func validateTopK(topK int) error {
	if topK <= 0 {
		return domain.NewValidationError("top_k", strconv.Itoa(topK), domain.ErrInvalidTopK)
	}
	return nil
}

func notFound(collection string) error {
	return fmt.Errorf("semantic: %s: %w", collection, domain.ErrCollectionNotFound)
}
