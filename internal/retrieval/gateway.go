package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"

	"github.com/DigiMedic/PillSee/internal/model"
	"github.com/DigiMedic/PillSee/internal/repository/postgres"
	"github.com/DigiMedic/PillSee/pkg/metrics"
)

// Embedder turns text into embedding vectors. Satisfied by ai.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the subset of the medication repository the gateway needs.
type Store interface {
	BulkInsert(ctx context.Context, rows []postgres.MedicationRow) error
	Match(ctx context.Context, embedding pgvector.Vector, count int, filter json.RawMessage) ([]postgres.MatchRow, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

const (
	cacheTTL     = 2 * time.Minute
	cacheCleanup = 5 * time.Minute
)

// Gateway wraps embedding generation and similarity search against the
// external vector store. In the orchestration path it degrades instead of
// failing: remote errors are logged and yield an empty result.
type Gateway struct {
	embedder Embedder
	store    Store
	cache    *gocache.Cache
	metrics  *metrics.Metrics
}

func NewGateway(embedder Embedder, store Store, m *metrics.Metrics) *Gateway {
	return &Gateway{
		embedder: embedder,
		store:    store,
		cache:    gocache.New(cacheTTL, cacheCleanup),
		metrics:  m,
	}
}

// Search embeds the query, asks the store for limit candidates and retains
// those at or above the similarity threshold. The remote call may cap or
// ignore the threshold itself, so filtering always happens here. Errors
// from the embedder or store degrade to an empty result.
func (g *Gateway) Search(ctx context.Context, query string, limit int, threshold float64, filter map[string]string) []model.RetrievedMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		log.Warn().Msg("empty search query")
		return nil
	}

	if g.metrics != nil {
		g.metrics.SearchesTotal.Inc()
	}

	cacheKey := fmt.Sprintf("%s|%d|%.2f", query, limit, threshold)
	if len(filter) == 0 {
		if cached, ok := g.cache.Get(cacheKey); ok {
			if g.metrics != nil {
				g.metrics.SearchCacheHits.Inc()
			}
			return cached.([]model.RetrievedMatch)
		}
	}

	embedding, err := g.embedder.Embed(ctx, query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("query embedding failed")
		return nil
	}

	var filterJSON json.RawMessage
	if len(filter) > 0 {
		filterJSON, err = json.Marshal(filter)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal metadata filter")
			return nil
		}
	}

	rows, err := g.store.Match(ctx, pgvector.NewVector(embedding), limit, filterJSON)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("similarity search failed")
		return nil
	}

	matches := make([]model.RetrievedMatch, 0, len(rows))
	for _, row := range rows {
		if row.Similarity < threshold {
			continue
		}

		var metadata model.DocumentMetadata
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			log.Warn().Err(err).Str("id", row.ID).Msg("failed to parse match metadata")
		}

		matches = append(matches, model.RetrievedMatch{
			Content:    row.Content,
			Metadata:   metadata,
			Similarity: row.Similarity,
		})
	}

	if g.metrics != nil {
		g.metrics.MatchesRetained.Observe(float64(len(matches)))
	}
	log.Info().
		Str("query", query).
		Int("matches", len(matches)).
		Float64("threshold", threshold).
		Msg("similarity search completed")

	if len(filter) == 0 {
		g.cache.Set(cacheKey, matches, gocache.DefaultExpiration)
	}
	return matches
}

// SearchByName looks up one medication by trade name.
func (g *Gateway) SearchByName(ctx context.Context, name string) []model.RetrievedMatch {
	return g.Search(ctx, "název "+name, 10, 0.6, nil)
}

// SearchByActiveIngredient lists medications sharing an active ingredient.
func (g *Gateway) SearchByActiveIngredient(ctx context.Context, ingredient string) []model.RetrievedMatch {
	return g.Search(ctx, "účinná látka "+ingredient, 15, 0.7, nil)
}

// Ingest embeds document contents in one batch call and bulk-inserts the
// rows. Unlike Search this is not an orchestration-path operation, so
// failures propagate to the importer.
func (g *Gateway) Ingest(ctx context.Context, docs []model.EmbeddingDocument) error {
	if len(docs) == 0 {
		log.Warn().Msg("no documents to ingest")
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	rows := make([]postgres.MedicationRow, len(docs))
	for i, doc := range docs {
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal document metadata: %w", err)
		}
		rows[i] = postgres.MedicationRow{
			Content:   doc.Content,
			Metadata:  metadata,
			Embedding: pgvector.NewVector(embeddings[i]),
		}
	}

	if err := g.store.BulkInsert(ctx, rows); err != nil {
		return fmt.Errorf("failed to insert documents: %w", err)
	}

	if g.metrics != nil {
		g.metrics.DocumentsIndexed.Add(float64(len(rows)))
	}
	log.Info().Int("documents", len(rows)).Msg("documents ingested")
	return nil
}

// Stats reports basic store statistics for the stats endpoint.
func (g *Gateway) Stats(ctx context.Context) (map[string]interface{}, error) {
	count, err := g.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get store stats: %w", err)
	}
	return map[string]interface{}{
		"total_medications": count,
		"status":            "connected",
	}, nil
}

// HealthCheck verifies the store connection.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	return g.store.Ping(ctx)
}
