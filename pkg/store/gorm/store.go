package gorm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/store/consts"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store implements store.Store using GORM.
type Store struct {
	db *gorm.DB
}

// ConversationModel represents the database schema for a conversation.
type ConversationModel struct {
	ID              string `gorm:"primaryKey"`
	OwnerID         string `gorm:"index"`
	Title           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastInteraction time.Time
	UserProficiency string
}

// TableName overrides the table name.
func (ConversationModel) TableName() string {
	return consts.TableNameConversations
}

// MessageModel represents the database schema for a message. The
// auto-incremented row id preserves insertion order for messages created
// within the same timestamp.
type MessageModel struct {
	gorm.Model
	MessageID       string `gorm:"uniqueIndex"`
	ConversationID  string `gorm:"index"`
	Content         string
	IsBot           bool
	Seq             int64
	UserName        string
	UserProficiency string
}

// TableName overrides the table name.
func (MessageModel) TableName() string {
	return consts.TableNameMessages
}

// PreferenceModel represents the database schema for owner preferences.
type PreferenceModel struct {
	OwnerID           string `gorm:"primaryKey"`
	TargetLanguage    string
	ProficiencyLevel  string
	LearningGoals     []byte `gorm:"type:json"` // Store as JSON bytes
	PreferredTopics   []byte `gorm:"type:json"`
	DailyPracticeTime int
	UpdatedAt         time.Time
}

// TableName overrides the table name.
func (PreferenceModel) TableName() string {
	return consts.TableNamePreferences
}

// New creates a new Store.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&ConversationModel{}, &MessageModel{}, &PreferenceModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateConversation inserts a new conversation for the owner.
func (s *Store) CreateConversation(ctx context.Context, ownerID, title string) (chat.Conversation, error) {
	if title == "" {
		title = consts.DefaultTitle
	}
	now := time.Now().UTC()
	model := ConversationModel{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Title:           title,
		CreatedAt:       now,
		UpdatedAt:       now,
		LastInteraction: now,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return chat.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return toConversation(model), nil
}

// ListConversations returns the owner's conversations, most recent first.
func (s *Store) ListConversations(ctx context.Context, ownerID string) ([]chat.Conversation, error) {
	var models []ConversationModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at desc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toConversations(models), nil
}

// GetConversation returns the conversation scoped by owner.
func (s *Store) GetConversation(ctx context.Context, ownerID, id string) (chat.Conversation, error) {
	var model ConversationModel
	err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Conversation{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, err
	}
	return toConversation(model), nil
}

// TouchConversation bumps updated_at and last_interaction.
func (s *Store) TouchConversation(ctx context.Context, id, proficiency string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"updated_at":       now,
		"last_interaction": now,
	}
	if proficiency != "" {
		updates["user_proficiency"] = proficiency
	}
	return s.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RenameConversation sets the title.
func (s *Store) RenameConversation(ctx context.Context, ownerID, id, title string) error {
	res := s.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(map[string]interface{}{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// DeleteConversation removes the conversation and all of its messages in a
// single transaction so no orphans survive.
func (s *Store) DeleteConversation(ctx context.Context, ownerID, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&ConversationModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return chat.ErrNotFound
		}
		return tx.Unscoped().Where("conversation_id = ?", id).Delete(&MessageModel{}).Error
	})
}

// OldestConversations returns the owner's conversations, least recently
// updated first, ties broken by id.
func (s *Store) OldestConversations(ctx context.Context, ownerID string, limit int) ([]chat.Conversation, error) {
	var models []ConversationModel
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at asc, id asc").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return toConversations(models), nil
}

// CountConversations counts the owner's conversations.
func (s *Store) CountConversations(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	return count, err
}

// AppendMessages persists the messages.
func (s *Store) AppendMessages(ctx context.Context, msgs ...chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	models := make([]MessageModel, len(msgs))
	for i, msg := range msgs {
		models[i] = MessageModel{
			MessageID:       msg.ID,
			ConversationID:  msg.ConversationID,
			Content:         msg.Content,
			IsBot:           msg.IsBot,
			Seq:             msg.Seq,
			UserName:        msg.UserName,
			UserProficiency: msg.UserProficiency,
		}
		models[i].CreatedAt = msg.CreatedAt
	}
	return s.db.WithContext(ctx).Create(&models).Error
}

// ListMessages loads all messages for a conversation, oldest first. The
// sequence and row id tiebreaks keep same-timestamp messages in insertion
// order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	var models []MessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc, seq asc, id asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, len(models))
	for i, model := range models {
		messages[i] = chat.Message{
			ID:              model.MessageID,
			ConversationID:  model.ConversationID,
			Content:         model.Content,
			IsBot:           model.IsBot,
			CreatedAt:       model.CreatedAt,
			Seq:             model.Seq,
			UserName:        model.UserName,
			UserProficiency: model.UserProficiency,
		}
	}
	return messages, nil
}

// GetPreferences returns the owner's stored preferences.
func (s *Store) GetPreferences(ctx context.Context, ownerID string) (chat.Preferences, error) {
	var model PreferenceModel
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Preferences{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Preferences{}, err
	}

	prefs := chat.Preferences{
		OwnerID:           model.OwnerID,
		TargetLanguage:    model.TargetLanguage,
		ProficiencyLevel:  model.ProficiencyLevel,
		DailyPracticeTime: model.DailyPracticeTime,
	}
	if len(model.LearningGoals) > 0 {
		if err := json.Unmarshal(model.LearningGoals, &prefs.LearningGoals); err != nil {
			return chat.Preferences{}, fmt.Errorf("failed to unmarshal learning goals: %w", err)
		}
	}
	if len(model.PreferredTopics) > 0 {
		if err := json.Unmarshal(model.PreferredTopics, &prefs.PreferredTopics); err != nil {
			return chat.Preferences{}, fmt.Errorf("failed to unmarshal preferred topics: %w", err)
		}
	}
	return prefs, nil
}

// PutPreferences upserts the owner's preferences.
func (s *Store) PutPreferences(ctx context.Context, prefs chat.Preferences) error {
	goalsJSON, err := json.Marshal(prefs.LearningGoals)
	if err != nil {
		return fmt.Errorf("failed to marshal learning goals: %w", err)
	}
	topicsJSON, err := json.Marshal(prefs.PreferredTopics)
	if err != nil {
		return fmt.Errorf("failed to marshal preferred topics: %w", err)
	}

	model := PreferenceModel{
		OwnerID:           prefs.OwnerID,
		TargetLanguage:    prefs.TargetLanguage,
		ProficiencyLevel:  prefs.ProficiencyLevel,
		LearningGoals:     goalsJSON,
		PreferredTopics:   topicsJSON,
		DailyPracticeTime: prefs.DailyPracticeTime,
		UpdatedAt:         time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Save(&model).Error
}

func toConversation(model ConversationModel) chat.Conversation {
	return chat.Conversation{
		ID:              model.ID,
		OwnerID:         model.OwnerID,
		Title:           model.Title,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		LastInteraction: model.LastInteraction,
	}
}

func toConversations(models []ConversationModel) []chat.Conversation {
	conversations := make([]chat.Conversation, len(models))
	for i, model := range models {
		conversations[i] = toConversation(model)
	}
	return conversations
}
