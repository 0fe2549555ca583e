// Package chat defines the records shared by the conversation store,
// the session cache and the session manager.
package chat

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the caller. A conversation owned by someone else is indistinguishable
// from a missing one.
var ErrNotFound = errors.New("not found")

// Conversation is a titled, owned thread of messages.
type Conversation struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Title           string    `json:"title"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	LastInteraction time.Time `json:"last_interaction"`
}

// Message is a single turn in a conversation. Messages are immutable once
// written and ordered by CreatedAt ascending within their conversation.
type Message struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Content        string    `json:"content"`
	IsBot          bool      `json:"is_bot"`
	CreatedAt      time.Time `json:"created_at"`
	// Seq is assigned in creation order and breaks ordering ties between
	// messages that share a CreatedAt, such as the two turns of one query.
	Seq int64 `json:"seq,omitempty"`
	// UserName and UserProficiency are a snapshot of the sender at the
	// time the message was written. Empty on bot turns.
	UserName        string `json:"user_name,omitempty"`
	UserProficiency string `json:"user_proficiency,omitempty"`
}

// Preferences holds the per-owner learning profile. One record per owner,
// upserted as a whole.
type Preferences struct {
	OwnerID           string   `json:"owner_id"`
	TargetLanguage    string   `json:"target_language"`
	ProficiencyLevel  string   `json:"proficiency_level"`
	LearningGoals     []string `json:"learning_goals"`
	PreferredTopics   []string `json:"preferred_topics"`
	DailyPracticeTime int      `json:"daily_practice_time"`
}

const (
	// DefaultLanguage is assumed when an owner has no stored preferences.
	DefaultLanguage = "English"
	// DefaultProficiency is assumed when an owner has no stored preferences.
	DefaultProficiency = "beginner"
	// DefaultPracticeMinutes is assumed when an owner has no stored preferences.
	DefaultPracticeMinutes = 30
)

// DefaultPreferences returns the profile used for owners that never saved one.
func DefaultPreferences(ownerID string) Preferences {
	return Preferences{
		OwnerID:           ownerID,
		TargetLanguage:    DefaultLanguage,
		ProficiencyLevel:  DefaultProficiency,
		LearningGoals:     []string{},
		PreferredTopics:   []string{},
		DailyPracticeTime: DefaultPracticeMinutes,
	}
}
