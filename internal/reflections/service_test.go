package reflections

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mirrorlab/mirror/internal/profile"
	"github.com/mirrorlab/mirror/internal/vectorstore"
)

type memReader struct {
	rows map[string]profile.Reflection
}

func (m *memReader) ReflectionByID(ctx context.Context, id string) (*profile.Reflection, bool, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (m *memReader) ReflectionsByIDs(ctx context.Context, ids []string) ([]profile.Reflection, error) {
	var out []profile.Reflection
	for _, id := range ids {
		if r, ok := m.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixedEmbedder struct {
	err error
}

func (e *fixedEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2}, nil
}

func (e *fixedEmbedder) Dimension() int { return 2 }

type memIndex struct {
	collection string
	dimension  uint64
	upserts    map[string]map[string]string
	hits       []*vectorstore.SearchResult
	gotFilter  map[string]string
	gotTopK    uint64
}

func (m *memIndex) EnsureCollection(ctx context.Context, name string, dimension uint64) error {
	m.collection = name
	m.dimension = dimension
	return nil
}

func (m *memIndex) Upsert(ctx context.Context, collection, id string, vector []float32, payload map[string]string) error {
	if m.upserts == nil {
		m.upserts = map[string]map[string]string{}
	}
	m.upserts[id] = payload
	return nil
}

func (m *memIndex) Search(ctx context.Context, collection string, vector []float32, topK uint64, filter map[string]string) ([]*vectorstore.SearchResult, error) {
	m.gotFilter = filter
	m.gotTopK = topK
	return m.hits, nil
}

func newTestService(t *testing.T, reader *memReader, index *memIndex) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), reader, &fixedEmbedder{}, index, zap.NewNop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceEnsuresCollection(t *testing.T) {
	index := &memIndex{}
	newTestService(t, &memReader{}, index)
	if index.collection != "reflections" {
		t.Errorf("got collection %q, want reflections", index.collection)
	}
	if index.dimension != 2 {
		t.Errorf("got dimension %d, want embedder's 2", index.dimension)
	}
}

func TestIndexCarriesUserPayload(t *testing.T) {
	index := &memIndex{}
	svc := newTestService(t, &memReader{}, index)

	err := svc.Index(context.Background(), &profile.Reflection{
		ID: "r1", UserID: "u1", BaseIntakeText: "hello",
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if index.upserts["r1"]["user_id"] != "u1" {
		t.Errorf("got payload %v, want user_id u1", index.upserts["r1"])
	}
}

func TestSimilarSkipsSelfAndScopesToUser(t *testing.T) {
	reader := &memReader{rows: map[string]profile.Reflection{
		"r1": {ID: "r1", UserID: "u1", BaseIntakeText: "query"},
		"r2": {ID: "r2", UserID: "u1", BaseIntakeText: "neighbor"},
		"r3": {ID: "r3", UserID: "u1", BaseIntakeText: "further"},
	}}
	index := &memIndex{hits: []*vectorstore.SearchResult{
		{ID: "r1", Score: 0.99},
		{ID: "r2", Score: 0.8},
		{ID: "r3", Score: 0.6},
	}}
	svc := newTestService(t, reader, index)

	results, err := svc.Similar(context.Background(), "r1", 2)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Reflection.ID != "r2" || results[1].Reflection.ID != "r3" {
		t.Errorf("got order %s, %s; want r2, r3", results[0].Reflection.ID, results[1].Reflection.ID)
	}
	if results[0].Score != 0.8 {
		t.Errorf("got score %v, want 0.8", results[0].Score)
	}
	if index.gotFilter["user_id"] != "u1" {
		t.Errorf("search filter %v, want user_id u1", index.gotFilter)
	}
	if index.gotTopK != 3 {
		t.Errorf("got topK %d, want limit+1 = 3", index.gotTopK)
	}
}

func TestSimilarUnknownReflection(t *testing.T) {
	svc := newTestService(t, &memReader{}, &memIndex{})
	if _, err := svc.Similar(context.Background(), "missing", 5); err == nil {
		t.Fatal("expected error for unknown reflection")
	}
}

func TestSimilarNoNeighbors(t *testing.T) {
	reader := &memReader{rows: map[string]profile.Reflection{
		"r1": {ID: "r1", UserID: "u1", BaseIntakeText: "alone"},
	}}
	index := &memIndex{hits: []*vectorstore.SearchResult{{ID: "r1", Score: 0.99}}}
	svc := newTestService(t, reader, index)

	results, err := svc.Similar(context.Background(), "r1", 5)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want none", len(results))
	}
}

func TestSimilarDropsMissingRows(t *testing.T) {
	reader := &memReader{rows: map[string]profile.Reflection{
		"r1": {ID: "r1", UserID: "u1", BaseIntakeText: "query"},
	}}
	index := &memIndex{hits: []*vectorstore.SearchResult{
		{ID: "r1", Score: 0.99},
		{ID: "gone", Score: 0.7},
	}}
	svc := newTestService(t, reader, index)

	results, err := svc.Similar(context.Background(), "r1", 5)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want orphaned hit dropped", len(results))
	}
}

func TestIndexEmbedFailure(t *testing.T) {
	index := &memIndex{}
	svc, err := NewService(context.Background(), &memReader{}, &fixedEmbedder{}, index, zap.NewNop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.embedder = &fixedEmbedder{err: errors.New("embedder down")}

	if err := svc.Index(context.Background(), &profile.Reflection{ID: "r1"}); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}
