package session

import (
	"context"
	"strings"

	"github.com/barekit/lingua/pkg/knowledge"
)

// DefaultSuggestionLimit caps how many practice snippets a suggestion
// request returns.
const DefaultSuggestionLimit = 5

// WithLibrary enables practice-topic suggestions backed by the snippet
// library.
func WithLibrary(library *knowledge.Library) Option {
	return func(m *Manager) {
		m.library = library
	}
}

// SuggestTopics retrieves practice snippets relevant to the owner's
// preferred topics and target language. Returns an empty slice when no
// library is configured or the owner has no preferred topics.
func (m *Manager) SuggestTopics(ctx context.Context, ownerID string) ([]knowledge.Snippet, error) {
	if m.library == nil {
		return nil, nil
	}

	prefs, err := m.Preferences(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(prefs.PreferredTopics) == 0 {
		return nil, nil
	}

	query := prefs.TargetLanguage + " " + prefs.ProficiencyLevel + ": " + strings.Join(prefs.PreferredTopics, ", ")
	return m.library.Suggest(ctx, query, DefaultSuggestionLimit)
}
