package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/store/consts"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements store.Store using MongoDB.
type MongoStore struct {
	client        *mongo.Client
	conversations *mongo.Collection
	messages      *mongo.Collection
	preferences   *mongo.Collection
}

// ConversationDoc is the conversations collection schema.
type ConversationDoc struct {
	ID              string    `bson:"_id"`
	OwnerID         string    `bson:"owner_id"`
	Title           string    `bson:"title"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
	LastInteraction time.Time `bson:"last_interaction"`
	UserProficiency string    `bson:"user_proficiency,omitempty"`
}

// MessageDoc is the messages collection schema.
type MessageDoc struct {
	ID              string    `bson:"_id"`
	ConversationID  string    `bson:"conversation_id"`
	Content         string    `bson:"content"`
	IsBot           bool      `bson:"is_bot"`
	CreatedAt       time.Time `bson:"created_at"`
	Seq             int64     `bson:"seq"`
	UserName        string    `bson:"user_name,omitempty"`
	UserProficiency string    `bson:"user_proficiency,omitempty"`
}

// PreferenceDoc is the user_preferences collection schema.
type PreferenceDoc struct {
	OwnerID           string    `bson:"_id"`
	TargetLanguage    string    `bson:"target_language"`
	ProficiencyLevel  string    `bson:"proficiency_level"`
	LearningGoals     []string  `bson:"learning_goals"`
	PreferredTopics   []string  `bson:"preferred_topics"`
	DailyPracticeTime int       `bson:"daily_practice_time"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

// New creates a new MongoStore.
func New(client *mongo.Client, dbName string) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:        client,
		conversations: db.Collection(consts.TableNameConversations),
		messages:      db.Collection(consts.TableNameMessages),
		preferences:   db.Collection(consts.TableNamePreferences),
	}
}

func (s *MongoStore) CreateConversation(ctx context.Context, ownerID, title string) (chat.Conversation, error) {
	if title == "" {
		title = consts.DefaultTitle
	}
	now := time.Now().UTC()
	doc := ConversationDoc{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Title:           title,
		CreatedAt:       now,
		UpdatedAt:       now,
		LastInteraction: now,
	}
	if _, err := s.conversations.InsertOne(ctx, doc); err != nil {
		return chat.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return toConversation(doc), nil
}

func (s *MongoStore) ListConversations(ctx context.Context, ownerID string) ([]chat.Conversation, error) {
	filter := bson.M{consts.ColOwnerID: ownerID}
	opts := options.Find().SetSort(bson.M{consts.ColUpdatedAt: -1})
	return s.findConversations(ctx, filter, opts)
}

func (s *MongoStore) GetConversation(ctx context.Context, ownerID, id string) (chat.Conversation, error) {
	var doc ConversationDoc
	err := s.conversations.FindOne(ctx, bson.M{"_id": id, consts.ColOwnerID: ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Conversation{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, err
	}
	return toConversation(doc), nil
}

func (s *MongoStore) TouchConversation(ctx context.Context, id, proficiency string) error {
	now := time.Now().UTC()
	set := bson.M{
		consts.ColUpdatedAt:       now,
		consts.ColLastInteraction: now,
	}
	if proficiency != "" {
		set["user_proficiency"] = proficiency
	}
	_, err := s.conversations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (s *MongoStore) RenameConversation(ctx context.Context, ownerID, id, title string) error {
	res, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": id, consts.ColOwnerID: ownerID},
		bson.M{"$set": bson.M{consts.ColTitle: title, consts.ColUpdatedAt: time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteConversation(ctx context.Context, ownerID, id string) error {
	res, err := s.conversations.DeleteOne(ctx, bson.M{"_id": id, consts.ColOwnerID: ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return chat.ErrNotFound
	}
	_, err = s.messages.DeleteMany(ctx, bson.M{consts.ColConversationID: id})
	return err
}

func (s *MongoStore) OldestConversations(ctx context.Context, ownerID string, limit int) ([]chat.Conversation, error) {
	filter := bson.M{consts.ColOwnerID: ownerID}
	opts := options.Find().
		SetSort(bson.D{{Key: consts.ColUpdatedAt, Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return s.findConversations(ctx, filter, opts)
}

func (s *MongoStore) CountConversations(ctx context.Context, ownerID string) (int64, error) {
	return s.conversations.CountDocuments(ctx, bson.M{consts.ColOwnerID: ownerID})
}

func (s *MongoStore) AppendMessages(ctx context.Context, msgs ...chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(msgs))
	for i, msg := range msgs {
		docs[i] = MessageDoc{
			ID:              msg.ID,
			ConversationID:  msg.ConversationID,
			Content:         msg.Content,
			IsBot:           msg.IsBot,
			CreatedAt:       msg.CreatedAt,
			Seq:             msg.Seq,
			UserName:        msg.UserName,
			UserProficiency: msg.UserProficiency,
		}
	}
	_, err := s.messages.InsertMany(ctx, docs)
	return err
}

func (s *MongoStore) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	filter := bson.M{consts.ColConversationID: conversationID}
	// BSON datetimes are millisecond-truncated, so the two turns of a query
	// always tie on created_at; the sequence keeps them in creation order.
	opts := options.Find().SetSort(bson.D{{Key: consts.ColCreatedAt, Value: 1}, {Key: "seq", Value: 1}})

	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []chat.Message
	for cursor.Next(ctx) {
		var doc MessageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		messages = append(messages, chat.Message{
			ID:              doc.ID,
			ConversationID:  doc.ConversationID,
			Content:         doc.Content,
			IsBot:           doc.IsBot,
			CreatedAt:       doc.CreatedAt,
			Seq:             doc.Seq,
			UserName:        doc.UserName,
			UserProficiency: doc.UserProficiency,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MongoStore) GetPreferences(ctx context.Context, ownerID string) (chat.Preferences, error) {
	var doc PreferenceDoc
	err := s.preferences.FindOne(ctx, bson.M{"_id": ownerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Preferences{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Preferences{}, err
	}
	return chat.Preferences{
		OwnerID:           doc.OwnerID,
		TargetLanguage:    doc.TargetLanguage,
		ProficiencyLevel:  doc.ProficiencyLevel,
		LearningGoals:     doc.LearningGoals,
		PreferredTopics:   doc.PreferredTopics,
		DailyPracticeTime: doc.DailyPracticeTime,
	}, nil
}

func (s *MongoStore) PutPreferences(ctx context.Context, prefs chat.Preferences) error {
	doc := PreferenceDoc{
		OwnerID:           prefs.OwnerID,
		TargetLanguage:    prefs.TargetLanguage,
		ProficiencyLevel:  prefs.ProficiencyLevel,
		LearningGoals:     prefs.LearningGoals,
		PreferredTopics:   prefs.PreferredTopics,
		DailyPracticeTime: prefs.DailyPracticeTime,
		UpdatedAt:         time.Now().UTC(),
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.preferences.ReplaceOne(ctx, bson.M{"_id": prefs.OwnerID}, doc, opts)
	return err
}

func (s *MongoStore) findConversations(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]chat.Conversation, error) {
	cursor, err := s.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conversations []chat.Conversation
	for cursor.Next(ctx) {
		var doc ConversationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		conversations = append(conversations, toConversation(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return conversations, nil
}

func toConversation(doc ConversationDoc) chat.Conversation {
	return chat.Conversation{
		ID:              doc.ID,
		OwnerID:         doc.OwnerID,
		Title:           doc.Title,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		LastInteraction: doc.LastInteraction,
	}
}
