package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/DigiMedic/PillSee/internal/ai"
	"github.com/DigiMedic/PillSee/internal/config"
	"github.com/DigiMedic/PillSee/internal/handler"
	queryHandler "github.com/DigiMedic/PillSee/internal/handler/query"
	"github.com/DigiMedic/PillSee/internal/repository/postgres"
	"github.com/DigiMedic/PillSee/internal/retrieval"
	"github.com/DigiMedic/PillSee/internal/router"
	answerService "github.com/DigiMedic/PillSee/internal/service/answer"
	visionService "github.com/DigiMedic/PillSee/internal/service/vision"
	"github.com/DigiMedic/PillSee/internal/workflow"
	"github.com/DigiMedic/PillSee/pkg/logger"
	"github.com/DigiMedic/PillSee/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(cfg.Server.LogLevel)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.NewMetrics("pillsee", "api")

	medicationRepo := postgres.NewMedicationRepository(db)
	aiClient := ai.NewClient(cfg.OpenAI, m)
	gateway := retrieval.NewGateway(aiClient, medicationRepo, m)

	answerSvc := answerService.NewService(aiClient, gateway)
	visionSvc := visionService.NewService(aiClient, gateway)
	pipeline := workflow.New(answerSvc, visionSvc, gateway, m)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse Redis URL")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	if err := queryHandler.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	h := handler.NewHandler(gateway, cfg.OpenAI.APIKey != "")
	queryH := queryHandler.NewHandler(pipeline, answerSvc)

	r := router.NewRouter(cfg, queryH, h, redisClient)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
