package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type PassageEmbedding struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Content   string          `gorm:"type:text"`
	Source    string          `gorm:"type:text;index"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)"` // matches text-embedding-3-small; adjust the migration when changing EMBEDDING_MODEL
	Metadata  datatypes.JSON
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (PassageEmbedding) TableName() string {
	return "passage_embeddings"
}
