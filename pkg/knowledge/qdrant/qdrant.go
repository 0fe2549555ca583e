package qdrant

import (
	"context"
	"fmt"

	"github.com/barekit/lingua/pkg/knowledge"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements knowledge.SnippetStore using Qdrant.
type QdrantStore struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
}

// New creates a new QdrantStore.
func New(host string, port int, collectionName string, vectorSize uint64) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	store := &QdrantStore{
		client:         client,
		collectionName: collectionName,
		vectorSize:     vectorSize,
	}

	if err := store.initCollection(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *QdrantStore) initCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, vectors [][]float32, snippets []knowledge.Snippet) error {
	if len(vectors) != len(snippets) {
		return fmt.Errorf("number of vectors and snippets must match")
	}

	points := make([]*qdrant.PointStruct, len(vectors))
	for i, snippet := range snippets {
		payload := map[string]*qdrant.Value{
			"text":     qdrant.NewValueString(snippet.Text),
			"language": qdrant.NewValueString(snippet.Language),
			"level":    qdrant.NewValueString(snippet.Level),
			"topic":    qdrant.NewValueString(snippet.Topic),
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(snippet.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points:         points,
		Wait:           &wait,
	})
	return err
}

func (s *QdrantStore) Search(ctx context.Context, query []float32, limit int) ([]knowledge.Snippet, error) {
	limit64 := uint64(limit)
	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit64,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	snippets := make([]knowledge.Snippet, len(res))
	for i, hit := range res {
		snippet := knowledge.Snippet{
			ID:    hit.Id.GetUuid(),
			Score: hit.Score,
		}
		if v, ok := hit.Payload["text"]; ok {
			snippet.Text = v.GetStringValue()
		}
		if v, ok := hit.Payload["language"]; ok {
			snippet.Language = v.GetStringValue()
		}
		if v, ok := hit.Payload["level"]; ok {
			snippet.Level = v.GetStringValue()
		}
		if v, ok := hit.Payload["topic"]; ok {
			snippet.Topic = v.GetStringValue()
		}
		snippets[i] = snippet
	}

	return snippets, nil
}
