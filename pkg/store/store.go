package store

import (
	"context"
	"errors"
)

// ErrIndexUnavailable is returned by index operations before any build has
// populated the index, and by Search while a rebuild holds the index empty.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Record is a chunk of source text together with its embedding, as persisted
// in a vector index.
type Record struct {
	ID        string
	Text      string
	Source    string
	Embedding []float32
	Metadata  map[string]interface{}
}

// Candidate is a record returned from a nearest-neighbour search along with
// its distance from the query embedding. Lower distance means more similar.
type Candidate struct {
	Record
	Distance float64
}

// Passage is a ranked retrieval result handed to prompt building and to API
// responses.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// PassageInput is the unembedded form of a chunk scheduled for indexing.
type PassageInput struct {
	Text   string
	Source string
}

// VectorIndex stores embedded records and answers nearest-neighbour queries.
// Implementations must be safe for concurrent use.
type VectorIndex interface {
	// Add appends records to the index.
	Add(ctx context.Context, records []Record) error

	// Replace atomically swaps the full contents of the index. Readers see
	// either the old set or the new set, never a mixture.
	Replace(ctx context.Context, records []Record) error

	// Search returns up to limit candidates ordered by ascending distance.
	// It returns ErrIndexUnavailable when the index holds no records.
	Search(ctx context.Context, embedding []float32, limit int) ([]Candidate, error)

	// Count reports the number of records currently in the index.
	Count(ctx context.Context) (int, error)

	// Sources lists the distinct source names present in the index.
	Sources(ctx context.Context) ([]string, error)

	// Ready reports whether the index has been populated.
	Ready(ctx context.Context) bool
}
