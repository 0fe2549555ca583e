package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/barekit/lingua/pkg/chat"
	"github.com/barekit/lingua/pkg/store/consts"
	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore implements store.Store on a graph: each conversation is a node
// linked to its messages via HAS_MESSAGE, so a cascading delete is a single
// DETACH DELETE.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	dbName string
}

// New creates a new Neo4jStore.
func New(uri, username, password, dbName string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}

	return &Neo4jStore{
		driver: driver,
		dbName: dbName,
	}, nil
}

func (s *Neo4jStore) CreateConversation(ctx context.Context, ownerID, title string) (chat.Conversation, error) {
	if title == "" {
		title = consts.DefaultTitle
	}
	conv := chat.Conversation{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Title:   title,
	}
	now := time.Now().UTC()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	conv.LastInteraction = now

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		CREATE (c:%s {
			id: $id,
			owner_id: $ownerID,
			title: $title,
			created_at: $now,
			updated_at: $now,
			last_interaction: $now
		})
		RETURN c
		`, consts.LabelConversation)
		_, err := tx.Run(ctx, query, map[string]any{
			"id":      conv.ID,
			"ownerID": ownerID,
			"title":   title,
			"now":     now,
		})
		return nil, err
	})
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *Neo4jStore) ListConversations(ctx context.Context, ownerID string) ([]chat.Conversation, error) {
	query := fmt.Sprintf(`
	MATCH (c:%s {owner_id: $ownerID})
	RETURN c.id, c.owner_id, c.title, c.created_at, c.updated_at, c.last_interaction
	ORDER BY c.updated_at DESC
	`, consts.LabelConversation)
	return s.queryConversations(ctx, query, map[string]any{"ownerID": ownerID})
}

func (s *Neo4jStore) GetConversation(ctx context.Context, ownerID, id string) (chat.Conversation, error) {
	query := fmt.Sprintf(`
	MATCH (c:%s {id: $id, owner_id: $ownerID})
	RETURN c.id, c.owner_id, c.title, c.created_at, c.updated_at, c.last_interaction
	`, consts.LabelConversation)
	conversations, err := s.queryConversations(ctx, query, map[string]any{"id": id, "ownerID": ownerID})
	if err != nil {
		return chat.Conversation{}, err
	}
	if len(conversations) == 0 {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return conversations[0], nil
}

func (s *Neo4jStore) TouchConversation(ctx context.Context, id, proficiency string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (c:%s {id: $id})
		SET c.updated_at = $now, c.last_interaction = $now, c.user_proficiency = $proficiency
		`, consts.LabelConversation)
		_, err := tx.Run(ctx, query, map[string]any{
			"id":          id,
			"now":         time.Now().UTC(),
			"proficiency": proficiency,
		})
		return nil, err
	})
	return err
}

func (s *Neo4jStore) RenameConversation(ctx context.Context, ownerID, id, title string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	matched, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (c:%s {id: $id, owner_id: $ownerID})
		SET c.title = $title, c.updated_at = $now
		RETURN count(c)
		`, consts.LabelConversation)
		result, err := tx.Run(ctx, query, map[string]any{
			"id":      id,
			"ownerID": ownerID,
			"title":   title,
			"now":     time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return record.Values[0].(int64), nil
	})
	if err != nil {
		return err
	}
	if matched.(int64) == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (s *Neo4jStore) DeleteConversation(ctx context.Context, ownerID, id string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	matched, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (c:%s {id: $id, owner_id: $ownerID})
		WITH c, count(c) AS matched
		OPTIONAL MATCH (c)-[:%s]->(m:%s)
		DETACH DELETE c, m
		RETURN matched
		`, consts.LabelConversation, consts.RelHasMessage, consts.LabelMessage)
		result, err := tx.Run(ctx, query, map[string]any{"id": id, "ownerID": ownerID})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return int64(0), nil
		}
		return result.Record().Values[0].(int64), nil
	})
	if err != nil {
		return err
	}
	if matched.(int64) == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (s *Neo4jStore) OldestConversations(ctx context.Context, ownerID string, limit int) ([]chat.Conversation, error) {
	query := fmt.Sprintf(`
	MATCH (c:%s {owner_id: $ownerID})
	RETURN c.id, c.owner_id, c.title, c.created_at, c.updated_at, c.last_interaction
	ORDER BY c.updated_at ASC, c.id ASC
	LIMIT $limit
	`, consts.LabelConversation)
	return s.queryConversations(ctx, query, map[string]any{"ownerID": ownerID, "limit": limit})
}

func (s *Neo4jStore) CountConversations(ctx context.Context, ownerID string) (int64, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	count, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (c:%s {owner_id: $ownerID})
		RETURN count(c)
		`, consts.LabelConversation)
		result, err := tx.Run(ctx, query, map[string]any{"ownerID": ownerID})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return record.Values[0].(int64), nil
	})
	if err != nil {
		return 0, err
	}
	return count.(int64), nil
}

func (s *Neo4jStore) AppendMessages(ctx context.Context, msgs ...chat.Message) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (c:%s {id: $conversationID})
		CREATE (m:%s {
			id: $id,
			conversation_id: $conversationID,
			content: $content,
			is_bot: $isBot,
			created_at: $createdAt,
			seq: $seq,
			user_name: $userName,
			user_proficiency: $userProficiency
		})
		CREATE (c)-[:%s]->(m)
		`, consts.LabelConversation, consts.LabelMessage, consts.RelHasMessage)

		for _, msg := range msgs {
			params := map[string]any{
				"id":              msg.ID,
				"conversationID":  msg.ConversationID,
				"content":         msg.Content,
				"isBot":           msg.IsBot,
				"createdAt":       msg.CreatedAt,
				"seq":             msg.Seq,
				"userName":        msg.UserName,
				"userProficiency": msg.UserProficiency,
			}
			if _, err := tx.Run(ctx, query, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

func (s *Neo4jStore) ListMessages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (c:%s {id: $conversationID})-[:%s]->(m:%s)
		RETURN m.id, m.content, m.is_bot, m.created_at, m.seq, m.user_name, m.user_proficiency
		ORDER BY m.created_at ASC, m.seq ASC
		`, consts.LabelConversation, consts.RelHasMessage, consts.LabelMessage)

		result, err := tx.Run(ctx, query, map[string]any{"conversationID": conversationID})
		if err != nil {
			return nil, err
		}

		var messages []chat.Message
		for result.Next(ctx) {
			record := result.Record()
			msg := chat.Message{
				ID:             record.Values[0].(string),
				ConversationID: conversationID,
				Content:        record.Values[1].(string),
				IsBot:          record.Values[2].(bool),
				CreatedAt:      record.Values[3].(time.Time),
			}
			if seq, ok := record.Values[4].(int64); ok {
				msg.Seq = seq
			}
			if name, ok := record.Values[5].(string); ok {
				msg.UserName = name
			}
			if prof, ok := record.Values[6].(string); ok {
				msg.UserProficiency = prof
			}
			messages = append(messages, msg)
		}
		return messages, result.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]chat.Message), nil
}

func (s *Neo4jStore) GetPreferences(ctx context.Context, ownerID string) (chat.Preferences, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MATCH (p:%s {owner_id: $ownerID})
		RETURN p.target_language, p.proficiency_level, p.learning_goals, p.preferred_topics, p.daily_practice_time
		`, consts.LabelPreferences)
		result, err := tx.Run(ctx, query, map[string]any{"ownerID": ownerID})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, chat.ErrNotFound
		}
		record := result.Record()
		prefs := chat.Preferences{
			OwnerID:           ownerID,
			TargetLanguage:    record.Values[0].(string),
			ProficiencyLevel:  record.Values[1].(string),
			LearningGoals:     toStrings(record.Values[2]),
			PreferredTopics:   toStrings(record.Values[3]),
			DailyPracticeTime: int(record.Values[4].(int64)),
		}
		return prefs, nil
	})
	if err != nil {
		return chat.Preferences{}, err
	}
	return result.(chat.Preferences), nil
}

func (s *Neo4jStore) PutPreferences(ctx context.Context, prefs chat.Preferences) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
		MERGE (p:%s {owner_id: $ownerID})
		SET p.target_language = $targetLanguage,
			p.proficiency_level = $proficiencyLevel,
			p.learning_goals = $learningGoals,
			p.preferred_topics = $preferredTopics,
			p.daily_practice_time = $dailyPracticeTime,
			p.updated_at = $now
		`, consts.LabelPreferences)
		_, err := tx.Run(ctx, query, map[string]any{
			"ownerID":           prefs.OwnerID,
			"targetLanguage":    prefs.TargetLanguage,
			"proficiencyLevel":  prefs.ProficiencyLevel,
			"learningGoals":     prefs.LearningGoals,
			"preferredTopics":   prefs.PreferredTopics,
			"dailyPracticeTime": prefs.DailyPracticeTime,
			"now":               time.Now().UTC(),
		})
		return nil, err
	})
	return err
}

// Close shuts down the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// toStrings converts a neo4j list value back to a string slice.
func toStrings(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *Neo4jStore) queryConversations(ctx context.Context, query string, params map[string]any) ([]chat.Conversation, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.dbName})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}

		var conversations []chat.Conversation
		for result.Next(ctx) {
			record := result.Record()
			conversations = append(conversations, chat.Conversation{
				ID:              record.Values[0].(string),
				OwnerID:         record.Values[1].(string),
				Title:           record.Values[2].(string),
				CreatedAt:       record.Values[3].(time.Time),
				UpdatedAt:       record.Values[4].(time.Time),
				LastInteraction: record.Values[5].(time.Time),
			})
		}
		return conversations, result.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]chat.Conversation), nil
}
