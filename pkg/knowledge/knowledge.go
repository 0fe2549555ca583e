// Package knowledge stores practice snippets (short phrases, dialogue
// starters and exercises tagged with language and level) and retrieves the
// ones most relevant to an owner's preferred topics. It feeds the topic
// suggestion surface only; it never contributes to the context window.
package knowledge

import (
	"context"
)

// Snippet is a piece of practice material with language-learning metadata.
type Snippet struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Level    string  `json:"level"`
	Topic    string  `json:"topic"`
	Score    float32 `json:"score,omitempty"` // Similarity score
}

// Embedder is the interface for generating embeddings.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SnippetStore is the interface for storing and retrieving snippets by
// vector similarity.
type SnippetStore interface {
	// Upsert inserts or updates snippets and their vectors.
	Upsert(ctx context.Context, vectors [][]float32, snippets []Snippet) error
	// Search searches for similar snippets using a query vector.
	Search(ctx context.Context, query []float32, limit int) ([]Snippet, error)
}

// Library combines an Embedder and a SnippetStore.
type Library struct {
	Embedder Embedder
	Store    SnippetStore
}

// NewLibrary creates a new Library.
func NewLibrary(embedder Embedder, store SnippetStore) *Library {
	return &Library{
		Embedder: embedder,
		Store:    store,
	}
}

// Ingest adds snippets to the library.
func (l *Library) Ingest(ctx context.Context, snippets []Snippet) error {
	texts := make([]string, len(snippets))
	for i, snippet := range snippets {
		texts[i] = snippet.Text
	}

	vectors, err := l.Embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	return l.Store.Upsert(ctx, vectors, snippets)
}

// Suggest finds the snippets most relevant to a query, typically an
// owner's preferred topics joined into one string.
func (l *Library) Suggest(ctx context.Context, query string, limit int) ([]Snippet, error) {
	vectors, err := l.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	if len(vectors) == 0 {
		return nil, nil
	}

	return l.Store.Search(ctx, vectors[0], limit)
}
