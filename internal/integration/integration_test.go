package integration

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"wrongnote-service/internal/app"
	"wrongnote-service/internal/domain"
	"wrongnote-service/internal/infra/memory"
	pgloader "wrongnote-service/internal/infra/postgres"
	pgmigrations "wrongnote-service/internal/infra/postgres/migrations"
	infraredis "wrongnote-service/internal/infra/redis"
)

func TestNoteSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedWrongAnswers(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewWrongAnswerLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	analyzer := infraredis.NewAnalysisCache(redisClient, memory.NewStaticAnalyzer(map[int64]domain.AnalysisResult{
		1: {Analysis: "mixes up interest types", Weakness: "compounding", Recommendation: "redo the savings table"},
	}), 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewNoteService(sessionStore, loader, analyzer, loader, app.Options{
		MinAnalysisDuration: 10 * time.Millisecond,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	session, err := service.Open(ctx, "member-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer service.Close("member-1")

	if _, err := session.SelectCategory("regular"); err != nil {
		t.Fatalf("select category: %v", err)
	}
	view := session.View()
	if len(view.Problems) != 2 || view.Problems[0].ID != 1 || view.Problems[0].WrongCount != 2 {
		t.Fatalf("unexpected regular problems %+v", view.Problems)
	}
	if got := view.Problems[0].AttemptHistory[0].CreatedAt; got != "2024-01-01T09:00:00" {
		t.Fatalf("unexpected createdAt rendering %q", got)
	}

	if _, err := session.SelectProblem(ctx, 1); err != nil {
		t.Fatalf("select problem: %v", err)
	}
	session.Wait()
	if state := session.State(); state.Phase != app.PhaseReady || state.Problem.AnalysisText != "mixes up interest types" {
		t.Fatalf("expected committed analysis, got %+v", state)
	}
	if n, err := redisClient.Exists(ctx, "analysis:member-1:regular:1").Result(); err != nil || n != 1 {
		t.Fatalf("expected cached analysis in redis, n=%d err=%v", n, err)
	}

	detail, err := session.Detail(ctx)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Rates.TotalAttempts != 3 || detail.Rates.CorrectAttempts != 1 {
		t.Fatalf("expected rates from quiz_logs, got %+v", detail.Rates)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "note", "POSTGRES_PASSWORD": "notepass", "POSTGRES_DB": "notedb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://note:notepass@%s:%s/notedb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedWrongAnswers(t *testing.T, ctx context.Context, dsn string) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	answers := []struct {
		source, createdAt, userAnswer string
		quizID                        int64
	}{
		{"regular", "2024-01-01 09:00:00", "Principal only", 1},
		{"regular", "2024-01-02 09:00:00", "Budget", 2},
		{"regular", "2024-01-03 09:00:00", "Interest only", 1},
		{"consumption", "2024-01-04 21:00:00", "Yes", 7},
	}
	for _, a := range answers {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO wrong_answers (member_id, source, quiz_id, question, correct_answer, user_answer, quiz_mode, quiz_subject, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			"member-1", a.source, a.quizID, fmt.Sprintf("Question %d", a.quizID), "Principal and interest", a.userAnswer,
			domain.MultipleChoiceMode, "Savings", a.createdAt); err != nil {
			t.Fatalf("insert wrong answer: %v", err)
		}
	}

	logs := []struct {
		answer  string
		correct bool
	}{{"Principal only", false}, {"Interest only", false}, {"Principal and interest", true}}
	for _, l := range logs {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO quiz_logs (member_id, quiz_id, user_answer, is_correct) VALUES (?, ?, ?, ?)`,
			"member-1", 1, l.answer, l.correct); err != nil {
			t.Fatalf("insert quiz log: %v", err)
		}
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
