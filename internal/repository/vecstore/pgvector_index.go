package vecstore

import (
	"context"
	"fmt"

	"agentic-rag-be/internal/mapper"
	"agentic-rag-be/internal/model"
	"agentic-rag-be/pkg/store"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// insertBatchSize bounds one gorm CreateInBatches round trip.
const insertBatchSize = 100

// PgVectorIndex backs the vector index with a Postgres table carrying a
// pgvector column. Similarity queries use the `<=>` cosine distance
// operator, so ordering and distances match the local index semantics.
type PgVectorIndex struct {
	db     *gorm.DB
	mapper *mapper.PassageEmbeddingMapper
}

// NewPgVectorIndex creates the index over an established gorm connection
// and ensures the backing table exists.
func NewPgVectorIndex(db *gorm.DB) (*PgVectorIndex, error) {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector extension: %w", err)
	}
	if err := db.AutoMigrate(&model.PassageEmbedding{}); err != nil {
		return nil, fmt.Errorf("migrate passage_embeddings: %w", err)
	}
	return &PgVectorIndex{
		db:     db,
		mapper: mapper.NewPassageEmbeddingMapper(),
	}, nil
}

// Add appends records to the table.
func (idx *PgVectorIndex) Add(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}
	models := idx.mapper.ToModels(records)
	return idx.db.WithContext(ctx).CreateInBatches(models, insertBatchSize).Error
}

// Replace swaps the full contents inside one transaction; concurrent readers
// see the old rows until commit.
func (idx *PgVectorIndex) Replace(ctx context.Context, records []store.Record) error {
	return idx.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.PassageEmbedding{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(idx.mapper.ToModels(records), insertBatchSize).Error
	})
}

// searchRow carries one similarity hit with its computed distance.
type searchRow struct {
	model.PassageEmbedding
	Distance float64
}

// Search returns up to limit candidates ordered by ascending cosine
// distance.
func (idx *PgVectorIndex) Search(ctx context.Context, embedding []float32, limit int) ([]store.Candidate, error) {
	if !idx.Ready(ctx) {
		return nil, store.ErrIndexUnavailable
	}
	if limit <= 0 {
		return nil, nil
	}

	vector := pgvector.NewVector(embedding)
	var rows []searchRow
	err := idx.db.WithContext(ctx).
		Model(&model.PassageEmbedding{}).
		Select("*, (embedding <=> ?) AS distance", vector).
		Order(gorm.Expr("embedding <=> ?", vector)).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]store.Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = store.Candidate{
			Record:   idx.mapper.ToRecord(&row.PassageEmbedding),
			Distance: row.Distance,
		}
	}
	return candidates, nil
}

// Count reports the number of stored records.
func (idx *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var count int64
	err := idx.db.WithContext(ctx).Model(&model.PassageEmbedding{}).Count(&count).Error
	return int(count), err
}

// Sources lists the distinct source names.
func (idx *PgVectorIndex) Sources(ctx context.Context) ([]string, error) {
	var sources []string
	err := idx.db.WithContext(ctx).
		Model(&model.PassageEmbedding{}).
		Distinct("source").
		Order("source").
		Pluck("source", &sources).Error
	return sources, err
}

// Ready reports whether any records are stored.
func (idx *PgVectorIndex) Ready(ctx context.Context) bool {
	count, err := idx.Count(ctx)
	return err == nil && count > 0
}
