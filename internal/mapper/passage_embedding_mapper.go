package mapper

import (
	"encoding/json"

	"agentic-rag-be/internal/model"
	"agentic-rag-be/pkg/store"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type PassageEmbeddingMapper struct{}

func NewPassageEmbeddingMapper() *PassageEmbeddingMapper {
	return &PassageEmbeddingMapper{}
}

func (m *PassageEmbeddingMapper) ToModel(r store.Record) *model.PassageEmbedding {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		id = uuid.New()
	}

	var metadata []byte
	if len(r.Metadata) > 0 {
		metadata, _ = json.Marshal(r.Metadata)
	}

	return &model.PassageEmbedding{
		Id:        id,
		Content:   r.Text,
		Source:    r.Source,
		Embedding: pgvector.NewVector(r.Embedding),
		Metadata:  metadata,
	}
}

func (m *PassageEmbeddingMapper) ToRecord(e *model.PassageEmbedding) store.Record {
	if e == nil {
		return store.Record{}
	}

	var metadata map[string]interface{}
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &metadata)
	}

	return store.Record{
		ID:        e.Id.String(),
		Text:      e.Content,
		Source:    e.Source,
		Embedding: e.Embedding.Slice(),
		Metadata:  metadata,
	}
}

func (m *PassageEmbeddingMapper) ToModels(records []store.Record) []*model.PassageEmbedding {
	models := make([]*model.PassageEmbedding, len(records))
	for i, r := range records {
		models[i] = m.ToModel(r)
	}
	return models
}
