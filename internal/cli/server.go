package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"wrongnote-service/internal/app"
	"wrongnote-service/internal/config"
	"wrongnote-service/internal/domain"
	"wrongnote-service/internal/infra/memory"
	pgloader "wrongnote-service/internal/infra/postgres"
	redisinfra "wrongnote-service/internal/infra/redis"
	"wrongnote-service/internal/infra/remote"
	transport "wrongnote-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the wrong-answer note server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader *pgloader.WrongAnswerLoader
	if pool != nil {
		loader = pgloader.NewWrongAnswerLoader(pool)
	}
	fetcher, logs, analyzer := selectCollaborators(cfg, loader, logger)

	cacheTTL := config.TTLDuration(cfg.Analysis.CacheTTL, 10*time.Minute)
	var store app.SessionRepository
	if redisClient != nil {
		analyzer = redisinfra.NewAnalysisCache(redisClient, analyzer, cacheTTL)
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		analyzer = memory.NewAnalysisCache(analyzer, cacheTTL)
		store = memory.NewSessionStore()
	}

	service := app.NewNoteService(store, fetcher, analyzer, logs, app.Options{
		StaticCategories:    cfg.Categories,
		MinAnalysisDuration: config.TTLDuration(cfg.Analysis.MinDuration, app.DefaultMinAnalysisDuration),
		Logger:              logger,
	})
	wsHandler := transport.NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting wrong-answer note service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// selectCollaborators picks the upstream API when configured, else Postgres,
// else the built-in sample data.
func selectCollaborators(cfg config.Config, loader *pgloader.WrongAnswerLoader, logger *slog.Logger) (app.WrongAnswerFetcher, app.AttemptLogFetcher, app.Analyzer) {
	switch {
	case cfg.Upstream.BaseURL != "":
		client := remote.NewClient(cfg.Upstream.BaseURL, config.TTLDuration(cfg.Upstream.Timeout, 10*time.Second), logger)
		return client, client, client
	case loader != nil:
		// No analysis backend without upstream: every problem reports no analysis.
		return loader, loader, memory.NewStaticAnalyzer(nil)
	}
	sample := memory.NewStaticSource(sampleAnswers(), sampleLogs())
	return sample, sample, memory.NewStaticAnalyzer(sampleAnalyses())
}

// sampleAnswers provides a minimal wrong-answer set; configure upstream.baseURL or postgres.url in production.
func sampleAnswers() map[domain.Source][]domain.RawAnswer {
	return map[domain.Source][]domain.RawAnswer{
		domain.SourceRegular: {
			{QuizID: 1, Question: "What does compound interest earn interest on?", CorrectAnswer: "Principal and accrued interest", UserAnswer: "Principal only", CreatedAt: "2025-04-01T09:00:00", QuizMode: domain.MultipleChoiceMode, QuizSubject: "Savings"},
			{QuizID: 2, Question: "Name one fixed monthly expense.", CorrectAnswer: "Rent", UserAnswer: "Groceries", CreatedAt: "2025-04-01T09:05:00", QuizSubject: "Budgeting"},
			{QuizID: 1, Question: "What does compound interest earn interest on?", CorrectAnswer: "Principal and accrued interest", UserAnswer: "Interest only", CreatedAt: "2025-04-02T09:00:00", QuizMode: domain.MultipleChoiceMode, QuizSubject: "Savings"},
		},
		domain.SourceConsumption: {
			{QuizID: 101, Question: "Was the late-night delivery order necessary?", CorrectAnswer: "No", UserAnswer: "Yes", CreatedAt: "2025-04-03T22:10:00"},
		},
	}
}

func sampleLogs() map[int64][]domain.AttemptRecord {
	return map[int64][]domain.AttemptRecord{
		1: {
			{UserAnswer: "Principal only", CreatedAt: "2025-04-01T09:00:00"},
			{UserAnswer: "Interest only", CreatedAt: "2025-04-02T09:00:00"},
			{UserAnswer: "Principal and accrued interest", CreatedAt: "2025-04-03T09:00:00", Correct: true},
		},
	}
}

func sampleAnalyses() map[int64]domain.AnalysisResult {
	return map[int64]domain.AnalysisResult{
		1: {
			Analysis:       "Interest on interest is being overlooked.",
			Weakness:       "Compounding",
			Recommendation: "Work through a two-year savings example by hand.",
		},
		101: {
			Analysis:       "Convenience purchases late at night add up.",
			Weakness:       "Impulse spending",
			Recommendation: "Set a delivery budget for the week.",
		},
	}
}
