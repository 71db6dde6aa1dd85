package vecstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"agentic-rag-be/pkg/store"
)

const indexFileName = "index.gob"

func init() {
	// Record metadata values are interface typed; gob needs their
	// concrete types registered to encode them.
	gob.Register(0)
	gob.Register("")
	gob.Register(0.0)
	gob.Register(false)
}

// indexSnapshot is the persisted form of the index. Dimension records the
// embedding width of the stored records.
type indexSnapshot struct {
	Records   []store.Record
	Dimension int
}

// LocalIndex is an in-memory vector index persisted as a single gob file
// under the configured directory. Searches run brute-force over cosine
// distance, which is exact and fast enough for a local corpus of tens of
// thousands of chunks. Rebuilds assemble the new snapshot out of place and
// swap it in under the write lock, so readers are excluded only for the
// duration of the swap.
type LocalIndex struct {
	dir string

	mu       sync.RWMutex
	snapshot *indexSnapshot
}

// NewLocalIndex opens the index directory and loads a previously persisted
// snapshot when one exists. A missing or empty directory yields an index
// that is not Ready until the first Add or Replace.
func NewLocalIndex(dir string) (*LocalIndex, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector db dir: %w", err)
	}

	idx := &LocalIndex{dir: dir, snapshot: &indexSnapshot{}}

	file, err := os.Open(idx.path())
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	defer file.Close()

	var snap indexSnapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode vector index: %w", err)
	}
	idx.snapshot = &snap
	return idx, nil
}

func (idx *LocalIndex) path() string {
	return filepath.Join(idx.dir, indexFileName)
}

// Add appends records to the index and persists the grown snapshot.
func (idx *LocalIndex) Add(_ context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	next := &indexSnapshot{
		Records:   append(append([]store.Record{}, idx.snapshot.Records...), records...),
		Dimension: idx.snapshot.Dimension,
	}
	if next.Dimension == 0 {
		next.Dimension = len(records[0].Embedding)
	}

	if err := idx.persist(next); err != nil {
		return err
	}
	idx.snapshot = next
	return nil
}

// Replace swaps the full contents of the index. The snapshot is encoded and
// written before the in-memory pointer moves, so a crash mid-replace leaves
// either the old index or the new one on disk.
func (idx *LocalIndex) Replace(_ context.Context, records []store.Record) error {
	next := &indexSnapshot{Records: records}
	if len(records) > 0 {
		next.Dimension = len(records[0].Embedding)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.persist(next); err != nil {
		return err
	}
	idx.snapshot = next
	return nil
}

// Search returns up to limit candidates ordered by ascending cosine
// distance from the query embedding.
func (idx *LocalIndex) Search(_ context.Context, embedding []float32, limit int) ([]store.Candidate, error) {
	idx.mu.RLock()
	snap := idx.snapshot
	idx.mu.RUnlock()

	if len(snap.Records) == 0 {
		return nil, store.ErrIndexUnavailable
	}
	if limit <= 0 {
		return nil, nil
	}

	candidates := make([]store.Candidate, 0, len(snap.Records))
	for _, record := range snap.Records {
		candidates = append(candidates, store.Candidate{
			Record:   record,
			Distance: cosineDistance(embedding, record.Embedding),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// Count reports the number of records currently held.
func (idx *LocalIndex) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.snapshot.Records), nil
}

// Sources lists the distinct source names in first-seen order.
func (idx *LocalIndex) Sources(_ context.Context) ([]string, error) {
	idx.mu.RLock()
	snap := idx.snapshot
	idx.mu.RUnlock()

	seen := make(map[string]bool, len(snap.Records))
	var sources []string
	for _, record := range snap.Records {
		if !seen[record.Source] {
			seen[record.Source] = true
			sources = append(sources, record.Source)
		}
	}
	return sources, nil
}

// Ready reports whether the index holds any records.
func (idx *LocalIndex) Ready(_ context.Context) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.snapshot.Records) > 0
}

// persist writes the snapshot via tmp file + fsync + rename so the on-disk
// index is never observed half written. Callers hold the write lock.
func (idx *LocalIndex) persist(snap *indexSnapshot) error {
	tmp, err := os.CreateTemp(idx.dir, indexFileName+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		return cleanup(fmt.Errorf("encode vector index: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, idx.path())
}

// cosineDistance is 1 minus the cosine similarity of a and b. Mismatched or
// zero-magnitude vectors score the maximum distance instead of failing.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
