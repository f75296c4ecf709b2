package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DigiMedic/PillSee/internal/model"
	"github.com/DigiMedic/PillSee/internal/repository/postgres"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeStore struct {
	rows     []postgres.MatchRow
	matchErr error
	inserted []postgres.MedicationRow
	filter   json.RawMessage
}

func (f *fakeStore) BulkInsert(ctx context.Context, rows []postgres.MedicationRow) error {
	f.inserted = append(f.inserted, rows...)
	return nil
}

func (f *fakeStore) Match(ctx context.Context, embedding pgvector.Vector, count int, filter json.RawMessage) ([]postgres.MatchRow, error) {
	f.filter = filter
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	return f.rows, nil
}

func (f *fakeStore) Count(ctx context.Context) (int64, error) { return int64(len(f.inserted)), nil }
func (f *fakeStore) Ping(ctx context.Context) error           { return nil }

func matchRow(name string, similarity float64) postgres.MatchRow {
	meta, _ := json.Marshal(map[string]string{"name": name})
	return postgres.MatchRow{
		ID:         "id-" + name,
		Content:    "Název: " + name,
		Metadata:   meta,
		Similarity: similarity,
	}
}

func TestSearchFiltersBelowThreshold(t *testing.T) {
	store := &fakeStore{rows: []postgres.MatchRow{
		matchRow("PARALEN 500", 0.92),
		matchRow("IBALGIN 400", 0.58),
		matchRow("BRUFEN 400", 0.61),
	}}
	g := NewGateway(&fakeEmbedder{}, store, nil)

	matches := g.Search(context.Background(), "paralen", 5, 0.6, nil)

	require.Len(t, matches, 2)
	assert.Equal(t, 0.92, matches[0].Similarity)
	require.NotNil(t, matches[0].Metadata.Name)
	assert.Equal(t, "PARALEN 500", *matches[0].Metadata.Name)
}

func TestSearchDegradesOnEmbedderError(t *testing.T) {
	g := NewGateway(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeStore{}, nil)

	matches := g.Search(context.Background(), "paralen", 5, 0.6, nil)
	assert.Nil(t, matches)
}

func TestSearchDegradesOnStoreError(t *testing.T) {
	store := &fakeStore{matchErr: errors.New("connection refused")}
	g := NewGateway(&fakeEmbedder{}, store, nil)

	matches := g.Search(context.Background(), "paralen", 5, 0.6, nil)
	assert.Nil(t, matches)
}

func TestSearchEmptyQuery(t *testing.T) {
	embedder := &fakeEmbedder{}
	g := NewGateway(embedder, &fakeStore{}, nil)

	assert.Nil(t, g.Search(context.Background(), "   ", 5, 0.6, nil))
	assert.Zero(t, embedder.calls, "blank query never reaches the embedder")
}

func TestSearchCachesUnfilteredQueries(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{rows: []postgres.MatchRow{matchRow("PARALEN 500", 0.9)}}
	g := NewGateway(embedder, store, nil)

	first := g.Search(context.Background(), "paralen", 5, 0.6, nil)
	second := g.Search(context.Background(), "paralen", 5, 0.6, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.calls, "second lookup served from cache")
}

func TestSearchSkipsCacheWithFilter(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{rows: []postgres.MatchRow{matchRow("PARALEN 500", 0.9)}}
	g := NewGateway(embedder, store, nil)

	g.Search(context.Background(), "paralen", 5, 0.6, map[string]string{"atc_code": "N02BE01"})
	g.Search(context.Background(), "paralen", 5, 0.6, map[string]string{"atc_code": "N02BE01"})

	assert.Equal(t, 2, embedder.calls)
	assert.JSONEq(t, `{"atc_code":"N02BE01"}`, string(store.filter))
}

func TestIngest(t *testing.T) {
	store := &fakeStore{}
	g := NewGateway(&fakeEmbedder{}, store, nil)

	name := "PARALEN 500"
	docs := []model.EmbeddingDocument{
		{Content: "Název: PARALEN 500", Metadata: model.DocumentMetadata{Name: &name}},
	}
	require.NoError(t, g.Ingest(context.Background(), docs))

	require.Len(t, store.inserted, 1)
	assert.Equal(t, "Název: PARALEN 500", store.inserted[0].Content)
}

func TestIngestPropagatesEmbeddingError(t *testing.T) {
	g := NewGateway(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeStore{}, nil)

	err := g.Ingest(context.Background(), []model.EmbeddingDocument{{Content: "x"}})
	assert.Error(t, err)
}

func TestIngestEmpty(t *testing.T) {
	store := &fakeStore{}
	g := NewGateway(&fakeEmbedder{}, store, nil)

	require.NoError(t, g.Ingest(context.Background(), nil))
	assert.Empty(t, store.inserted)
}
