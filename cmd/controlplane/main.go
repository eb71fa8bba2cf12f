package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	_ "github.com/lib/pq"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/api"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/config"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/persistence"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("control plane failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, closeRepo, err := openRepository(ctx, cfg.DatabaseURL, os.Getenv)
	if err != nil {
		return err
	}
	defer closeRepo()

	opts, err := serverOptions(cfg, repo, logger)
	if err != nil {
		return err
	}
	app := api.NewServer(repo, opts...).App(recover.New(), fiberlogger.New(), cors.New())

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	logger.Info("control plane listening", "port", cfg.Port, "env", cfg.Env)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	}
}

// serverOptions loads the optional course and house-rule files and wires
// agent-driven autoplay when endpoints are configured.
func serverOptions(cfg *config.Config, repo persistence.Repository, logger *slog.Logger) ([]api.ServerOption, error) {
	opts := []api.ServerOption{api.WithLogger(logger)}

	if cfg.CoursesFile != "" {
		courses, err := config.LoadCourses(cfg.CoursesFile)
		if err != nil {
			return nil, err
		}
		for _, course := range courses {
			if err := repo.UpsertCourse(course); err != nil {
				return nil, fmt.Errorf("seed course %q: %w", course.Name, err)
			}
		}
		logger.Info("courses loaded", "file", cfg.CoursesFile, "count", len(courses))
	}

	if cfg.HouseRulesFile != "" {
		rules, err := config.LoadHouseRules(cfg.HouseRulesFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, api.WithDefaultConfig(rules))
		logger.Info("house rules loaded", "file", cfg.HouseRulesFile, "base_wager", rules.BaseWager, "carry_over", rules.CarryOverPolicy)
	}

	sources, err := newPlayerSources(cfg.AgentEndpoints, cfg.AgentTimeout, cfg.ScoreSeed)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		logger.Info("autoplay disabled: no agent endpoints configured")
		return opts, nil
	}
	logger.Info("autoplay enabled", "agents", len(cfg.AgentEndpoints), "agent_timeout", cfg.AgentTimeout)
	return append(opts, api.WithPlayerSources(sources)), nil
}

func newLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(out, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts))
}

// openRepository uses Postgres when a database URL is set and falls back to
// the in-memory store otherwise.
func openRepository(ctx context.Context, databaseURL string, getenv func(string) string) (persistence.Repository, func(), error) {
	if databaseURL == "" {
		slog.Warn("DATABASE_URL not set, rounds are kept in memory only")
		return persistence.NewInMemoryRepository(), func() {}, nil
	}
	if !hasSQLDriver("postgres") {
		return nil, nil, errors.New("postgres SQL driver is not linked; add a driver import such as github.com/lib/pq in this binary")
	}

	maxOpenConns, err := parsePositiveIntEnvOrDefault(getenv, "DATABASE_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, nil, err
	}
	maxIdleConns, err := parsePositiveIntEnvOrDefault(getenv, "DATABASE_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, nil, err
	}
	connMaxLifetimeSec, err := parsePositiveIntEnvOrDefault(getenv, "DATABASE_CONN_MAX_LIFETIME_SEC", 300)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Duration(connMaxLifetimeSec) * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := persistence.MigratePostgres(pingCtx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database migration failed: %w", err)
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Error("close database", "error", err)
		}
	}
	return persistence.NewPostgresRepository(db), closeDB, nil
}

func parsePositiveIntEnvOrDefault(getenv func(string) string, key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s value %q", key, raw)
	}
	return value, nil
}

func hasSQLDriver(name string) bool {
	for _, driver := range sql.Drivers() {
		if driver == name {
			return true
		}
	}
	return false
}
