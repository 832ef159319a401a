// Package reflections provides semantic similarity over a user's
// reflection history, backed by an embeddings provider and a vector store.
package reflections

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/profile"
	"github.com/mirrorlab/mirror/internal/vectorstore"
)

const collectionName = "reflections"

// defaultLimit caps similarity results when the caller asks for none.
const defaultLimit = 5

// ReflectionReader loads reflections by id.
type ReflectionReader interface {
	ReflectionByID(ctx context.Context, id string) (*profile.Reflection, bool, error)
	ReflectionsByIDs(ctx context.Context, ids []string) ([]profile.Reflection, error)
}

// Embedder converts text to a vector.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VectorIndex is the slice of the vector store the service needs.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	Upsert(ctx context.Context, collection string, id string, vector []float32, payload map[string]string) error
	Search(ctx context.Context, collection string, vector []float32, topK uint64, filter map[string]string) ([]*vectorstore.SearchResult, error)
}

// SimilarReflection is a reflection plus its similarity score.
type SimilarReflection struct {
	Reflection profile.Reflection `json:"reflection"`
	Score      float32            `json:"score"`
}

// Service indexes reflections and answers similarity queries.
type Service struct {
	reader   ReflectionReader
	embedder Embedder
	index    VectorIndex
	logger   *zap.Logger
}

// NewService creates the similarity service and makes sure the backing
// collection exists.
func NewService(ctx context.Context, reader ReflectionReader, embedder Embedder, index VectorIndex, logger *zap.Logger) (*Service, error) {
	if err := index.EnsureCollection(ctx, collectionName, uint64(embedder.Dimension())); err != nil {
		return nil, fmt.Errorf("ensure reflections collection: %w", err)
	}
	return &Service{
		reader:   reader,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}, nil
}

// Index embeds and stores one reflection's text. The base intake text is
// what gets embedded; the translation is a generated artifact and would
// skew similarity toward the generator's phrasing.
func (s *Service) Index(ctx context.Context, r *profile.Reflection) error {
	vector, err := s.embedder.EmbedOne(ctx, r.BaseIntakeText)
	if err != nil {
		return fmt.Errorf("embed reflection %s: %w", r.ID, err)
	}
	payload := map[string]string{
		"user_id": r.UserID,
	}
	if err := s.index.Upsert(ctx, collectionName, r.ID, vector, payload); err != nil {
		return fmt.Errorf("index reflection %s: %w", r.ID, err)
	}
	return nil
}

// Similar returns up to limit reflections by the same user closest in
// meaning to the given one, excluding the reflection itself.
func (s *Service) Similar(ctx context.Context, reflectionID string, limit int) ([]SimilarReflection, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	ref, found, err := s.reader.ReflectionByID(ctx, reflectionID)
	if err != nil {
		return nil, fmt.Errorf("load reflection %s: %w", reflectionID, err)
	}
	if !found {
		return nil, fmt.Errorf("reflection %s not found", reflectionID)
	}

	vector, err := s.embedder.EmbedOne(ctx, ref.BaseIntakeText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Ask for one extra hit since the query reflection scores highest
	// against itself.
	hits, err := s.index.Search(ctx, collectionName, vector, uint64(limit+1), map[string]string{
		"user_id": ref.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	ids := make([]string, 0, len(hits))
	scores := make(map[string]float32, len(hits))
	for _, h := range hits {
		if h.ID == reflectionID {
			continue
		}
		ids = append(ids, h.ID)
		scores[h.ID] = h.Score
		if len(ids) == limit {
			break
		}
	}
	if len(ids) == 0 {
		return []SimilarReflection{}, nil
	}

	loaded, err := s.reader.ReflectionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load similar reflections: %w", err)
	}
	byID := make(map[string]profile.Reflection, len(loaded))
	for _, r := range loaded {
		byID[r.ID] = r
	}

	results := make([]SimilarReflection, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			s.logger.Warn("indexed reflection missing from store", zap.String("reflection", id))
			continue
		}
		results = append(results, SimilarReflection{Reflection: r, Score: scores[id]})
	}
	return results, nil
}
