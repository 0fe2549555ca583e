// Package prompt assembles the bounded context window sent to the LLM
// provider. Building is pure: the same history, preferences and template
// always produce the same message sequence.
package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/llm"
)

// HistoryWindow is the number of trailing history entries included in a
// completion request.
const HistoryWindow = 10

// FallbackTemplate is used when no template file is available.
const FallbackTemplate = "You are a helpful assistant for language learning."

// Template is a personalized-preamble template with {user_name},
// {target_language}, {proficiency_level} and {learning_goals} placeholders.
type Template struct {
	text string
}

// NewTemplate creates a Template from raw text.
func NewTemplate(text string) Template {
	text = strings.TrimSpace(text)
	if text == "" {
		text = FallbackTemplate
	}
	return Template{text: text}
}

// LoadTemplate reads the template from a file, falling back to
// FallbackTemplate when the file is missing.
func LoadTemplate(path string) (Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewTemplate(""), err
	}
	return NewTemplate(string(b)), nil
}

// Personalize substitutes the owner's name and preferences into the template.
func (t Template) Personalize(userName string, prefs chat.Preferences) string {
	return strings.NewReplacer(
		"{user_name}", userName,
		"{target_language}", prefs.TargetLanguage,
		"{proficiency_level}", prefs.ProficiencyLevel,
		"{learning_goals}", strings.Join(prefs.LearningGoals, ", "),
	).Replace(t.text)
}

// Builder builds context windows from a fixed template.
type Builder struct {
	template Template
}

// NewBuilder creates a Builder.
func NewBuilder(template Template) *Builder {
	return &Builder{template: template}
}

// Build assembles the outbound message sequence: the personalized preamble,
// a practice-cadence system entry, the last HistoryWindow entries of the
// history in original order, and the new query last.
func (b *Builder) Build(userName string, prefs chat.Preferences, history []chat.Message, query string) []llm.Message {
	windowed := Window(history, HistoryWindow)

	messages := make([]llm.Message, 0, len(windowed)+3)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: b.template.Personalize(userName, prefs),
	})
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: cadence(prefs),
	})

	for _, msg := range windowed {
		role := llm.RoleUser
		if msg.IsBot {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: msg.Content})
	}

	return append(messages, llm.Message{Role: llm.RoleUser, Content: query})
}

// Window returns the last min(len(history), k) entries of history in
// original order. It never reorders or samples.
func Window(history []chat.Message, k int) []chat.Message {
	if len(history) <= k {
		return history
	}
	return history[len(history)-k:]
}

func cadence(prefs chat.Preferences) string {
	return fmt.Sprintf(
		"Remember: The user is learning %s at a %s level. They typically practice for %d minutes per day.",
		prefs.TargetLanguage, prefs.ProficiencyLevel, prefs.DailyPracticeTime)
}
