package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/DigiMedic/PillSee/internal/ai"
	"github.com/DigiMedic/PillSee/internal/config"
	"github.com/DigiMedic/PillSee/internal/repository/postgres"
	"github.com/DigiMedic/PillSee/internal/retrieval"
	"github.com/DigiMedic/PillSee/internal/sukl"
	"github.com/DigiMedic/PillSee/pkg/logger"
	"github.com/DigiMedic/PillSee/pkg/metrics"
)

// defaultCSVName is the medication dataset filename as published in the
// SÚKL open-data catalogue.
const defaultCSVName = "nkod_dlp_lecivepripravky.csv"

func main() {
	csvPath := flag.String("csv", "", "path to the SÚKL medication CSV export (default: <sukl.data_dir>/"+defaultCSVName+")")
	batchSize := flag.Int("batch", 100, "documents embedded and inserted per batch")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(cfg.Server.LogLevel)

	path := *csvPath
	if path == "" {
		path = filepath.Join(cfg.SUKL.DataDir, defaultCSVName)
	}
	if _, err := os.Stat(path); err != nil {
		log.Fatal().Err(err).
			Str("path", path).
			Str("source", cfg.SUKL.DataURL).
			Msg("CSV export not found, download it from the SÚKL open-data catalogue")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("pillsee", "importer")
	aiClient := ai.NewClient(cfg.OpenAI, m)
	gateway := retrieval.NewGateway(aiClient, postgres.NewMedicationRepository(db), m)

	normalizer := sukl.NewNormalizer()
	table, err := normalizer.LoadCSV(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to load CSV")
	}

	records := normalizer.ExtractRecords(table)
	if len(records) == 0 {
		log.Fatal().Str("path", path).Msg("no usable medication records in CSV")
	}
	docs := sukl.BuildDocuments(records)
	log.Info().
		Int("rows", len(table.Rows)).
		Int("records", len(records)).
		Msg("normalized medication data")

	ctx := context.Background()
	start := time.Now()
	inserted := 0
	for i := 0; i < len(docs); i += *batchSize {
		end := i + *batchSize
		if end > len(docs) {
			end = len(docs)
		}
		if err := gateway.Ingest(ctx, docs[i:end]); err != nil {
			log.Fatal().Err(err).Int("offset", i).Msg("failed to ingest batch")
		}
		inserted += end - i
		log.Info().Int("inserted", inserted).Int("total", len(docs)).Msg("batch ingested")
	}

	log.Info().
		Int("documents", inserted).
		Dur("elapsed", time.Since(start)).
		Msg("import finished")
}
