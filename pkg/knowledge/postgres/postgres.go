package postgres

import (
	"context"
	"fmt"

	"github.com/barekit/lingua/pkg/knowledge"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore implements knowledge.SnippetStore using pgvector.
type PostgresStore struct {
	db *gorm.DB
}

// SnippetModel represents the database schema for a practice snippet.
type SnippetModel struct {
	ID        string `gorm:"primaryKey"`
	Text      string
	Language  string `gorm:"index"`
	Level     string
	Topic     string
	Embedding pgvector.Vector `gorm:"type:vector(1536)"`
}

// TableName overrides the table name.
func (SnippetModel) TableName() string {
	return "practice_snippets"
}

// New creates a new PostgresStore.
func New(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	if err := db.AutoMigrate(&SnippetModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, vectors [][]float32, snippets []knowledge.Snippet) error {
	if len(vectors) != len(snippets) {
		return fmt.Errorf("number of vectors and snippets must match")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, snippet := range snippets {
			model := SnippetModel{
				ID:        snippet.ID,
				Text:      snippet.Text,
				Language:  snippet.Language,
				Level:     snippet.Level,
				Topic:     snippet.Topic,
				Embedding: pgvector.NewVector(vectors[i]),
			}

			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"text", "language", "level", "topic", "embedding"}),
			}).Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) Search(ctx context.Context, query []float32, limit int) ([]knowledge.Snippet, error) {
	var models []SnippetModel

	// pgvector cosine distance operator, nearest first.
	err := s.db.WithContext(ctx).
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{pgvector.NewVector(query)}}).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	snippets := make([]knowledge.Snippet, len(models))
	for i, m := range models {
		snippets[i] = knowledge.Snippet{
			ID:       m.ID,
			Text:     m.Text,
			Language: m.Language,
			Level:    m.Level,
			Topic:    m.Topic,
		}
	}

	return snippets, nil
}
