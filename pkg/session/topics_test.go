package session

import (
	"context"
	"testing"

	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/knowledge"
)

type mockEmbedder struct{}

func (mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1.0}
	}
	return vectors, nil
}

type mockSnippetStore struct {
	results []knowledge.Snippet
}

func (m *mockSnippetStore) Upsert(ctx context.Context, vectors [][]float32, snippets []knowledge.Snippet) error {
	return nil
}

func (m *mockSnippetStore) Search(ctx context.Context, query []float32, limit int) ([]knowledge.Snippet, error) {
	return m.results, nil
}

func TestSuggestTopics(t *testing.T) {
	ctx := context.Background()

	// Without a library the surface is simply absent.
	m, _, _ := newTestManager(&mockProvider{response: "ok"})
	got, err := m.SuggestTopics(ctx, "user-1")
	if err != nil || got != nil {
		t.Errorf("Expected nil without a library, got %+v err=%v", got, err)
	}

	library := knowledge.NewLibrary(mockEmbedder{}, &mockSnippetStore{
		results: []knowledge.Snippet{{ID: "s1", Text: "¿Dónde está la estación?", Topic: "travel"}},
	})
	m, _, _ = newTestManager(&mockProvider{response: "ok"}, WithLibrary(library))

	// No preferred topics, nothing to suggest.
	got, err = m.SuggestTopics(ctx, "user-1")
	if err != nil || got != nil {
		t.Errorf("Expected nil without preferred topics, got %+v err=%v", got, err)
	}

	if err := m.UpdatePreferences(ctx, chat.Preferences{
		OwnerID:         "user-1",
		TargetLanguage:  "Spanish",
		PreferredTopics: []string{"travel", "food"},
	}); err != nil {
		t.Fatalf("UpdatePreferences failed: %v", err)
	}

	got, err = m.SuggestTopics(ctx, "user-1")
	if err != nil {
		t.Fatalf("SuggestTopics failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("Unexpected suggestions: %+v", got)
	}
}
