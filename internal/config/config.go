// Package config loads runtime settings from the environment and course
// and house-rule definitions from YAML files.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

const (
	defaultPort         = "8080"
	defaultEnv          = "development"
	defaultAgentTimeout = 2 * time.Second
)

type Config struct {
	Port        string
	DatabaseURL string
	Env         string
	LogLevel    slog.Level
	// CoursesFile and HouseRulesFile are optional YAML files loaded at startup.
	CoursesFile    string
	HouseRulesFile string
	// AgentEndpoints maps players to the URL of the bot that decides for them.
	AgentEndpoints map[domain.PlayerID]string
	AgentTimeout   time.Duration
	ScoreSeed      int64
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:           valueOr(getenv("PORT"), defaultPort),
		DatabaseURL:    strings.TrimSpace(getenv("DATABASE_URL")),
		Env:            valueOr(getenv("ENV"), defaultEnv),
		LogLevel:       slog.LevelInfo,
		CoursesFile:    strings.TrimSpace(getenv("COURSES_FILE")),
		HouseRulesFile: strings.TrimSpace(getenv("HOUSE_RULES_FILE")),
		AgentTimeout:   defaultAgentTimeout,
	}

	if raw := strings.TrimSpace(getenv("LOG_LEVEL")); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("%w: LOG_LEVEL: %v", domain.ErrConfiguration, err)
		}
	}
	if raw := strings.TrimSpace(getenv("AGENT_TIMEOUT_MS")); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("%w: AGENT_TIMEOUT_MS must be a positive integer, got %q", domain.ErrConfiguration, raw)
		}
		cfg.AgentTimeout = time.Duration(ms) * time.Millisecond
	}
	if raw := strings.TrimSpace(getenv("SCORE_SEED")); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: SCORE_SEED: %v", domain.ErrConfiguration, err)
		}
		cfg.ScoreSeed = seed
	}

	endpoints, err := ParseAgentEndpoints(getenv("AGENT_ENDPOINTS"))
	if err != nil {
		return nil, err
	}
	cfg.AgentEndpoints = endpoints
	return cfg, nil
}

// ParseAgentEndpoints reads "player=url" pairs separated by commas.
func ParseAgentEndpoints(raw string) (map[domain.PlayerID]string, error) {
	out := make(map[domain.PlayerID]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		player, url, ok := strings.Cut(pair, "=")
		player, url = strings.TrimSpace(player), strings.TrimSpace(url)
		if !ok || player == "" || url == "" {
			return nil, fmt.Errorf("%w: agent endpoint %q must look like player=url", domain.ErrConfiguration, pair)
		}
		if _, dup := out[domain.PlayerID(player)]; dup {
			return nil, fmt.Errorf("%w: duplicate agent endpoint for %s", domain.ErrConfiguration, player)
		}
		out[domain.PlayerID(player)] = url
	}
	return out, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func valueOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
