package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.AgentTimeout)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.AgentEndpoints)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := FromEnv(envMap(map[string]string{
		"PORT":             "9090",
		"DATABASE_URL":     "postgres://wgp@localhost/wgp",
		"ENV":              "production",
		"LOG_LEVEL":        "debug",
		"AGENT_TIMEOUT_MS": "750",
		"AGENT_ENDPOINTS":  "alice=http://bots:9000/alice, bob=http://bots:9000/bob",
		"SCORE_SEED":       "42",
		"COURSES_FILE":     "config/courses.yaml",
	}))
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://wgp@localhost/wgp", cfg.DatabaseURL)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 750*time.Millisecond, cfg.AgentTimeout)
	assert.Equal(t, int64(42), cfg.ScoreSeed)
	assert.Equal(t, "config/courses.yaml", cfg.CoursesFile)
	assert.Equal(t, map[domain.PlayerID]string{
		"alice": "http://bots:9000/alice",
		"bob":   "http://bots:9000/bob",
	}, cfg.AgentEndpoints)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	t.Parallel()

	for name, env := range map[string]map[string]string{
		"log level":      {"LOG_LEVEL": "loud"},
		"timeout":        {"AGENT_TIMEOUT_MS": "-5"},
		"seed":           {"SCORE_SEED": "lucky"},
		"endpoint":       {"AGENT_ENDPOINTS": "alice"},
		"dup endpoint":   {"AGENT_ENDPOINTS": "a=http://x,a=http://y"},
		"empty endpoint": {"AGENT_ENDPOINTS": "a="},
	} {
		_, err := FromEnv(envMap(env))
		assert.ErrorIs(t, err, domain.ErrConfiguration, name)
	}
}

func TestParseHouseRulesKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := ParseHouseRules([]byte("base_wager: 2\ncarry_over_policy: double\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.BaseWager)
	assert.Equal(t, domain.CarryOverDouble, cfg.CarryOverPolicy)
	assert.True(t, cfg.CreecherEnabled)
	assert.Equal(t, domain.DefaultVinniesStartHole, cfg.VinniesStartHole)

	empty, err := ParseHouseRules(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRoundConfig(), empty)
}

func TestParseHouseRulesRejectsInvalid(t *testing.T) {
	t.Parallel()

	_, err := ParseHouseRules([]byte("base_wager: 0\n"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = ParseHouseRules([]byte("carry_over_policy: triple\n"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = ParseHouseRules([]byte("base_wagr: 2\n"))
	assert.ErrorIs(t, err, domain.ErrConfiguration, "unknown key")
}

func TestParseCoursesValidates(t *testing.T) {
	t.Parallel()

	_, err := ParseCourses([]byte("courses: []\n"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = ParseCourses([]byte("courses:\n  - name: Short\n    holes:\n      - {hole: 1, par: 4, stroke_index: 1}\n"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = ParseCourses([]byte("courses:\n  - holes: []\n"))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestLoadShippedFiles(t *testing.T) {
	t.Parallel()

	courses, err := LoadCourses(filepath.Join("..", "..", "config", "courses.yaml"))
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "Hillcrest Municipal", courses[0].Name)
	hole, err := courses[0].Hole(4)
	require.NoError(t, err)
	assert.Equal(t, 1, hole.StrokeIndex)

	rules, err := LoadHouseRules(filepath.Join("..", "..", "config", "house_rules.yaml"))
	require.NoError(t, err)
	assert.True(t, rules.RandomizeFirstTee)
	assert.Equal(t, domain.CarryOverNone, rules.CarryOverPolicy)
}

func TestLoadCoursesDuplicateNames(t *testing.T) {
	t.Parallel()

	raw, err := os.ReadFile(filepath.Join("..", "..", "config", "courses.yaml"))
	require.NoError(t, err)
	courses, err := ParseCourses(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dup.yaml")
	body := "courses:\n" + courseYAML(courses[0]) + courseYAML(courses[0])
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err = LoadCourses(path)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = LoadCourses(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func courseYAML(c domain.Course) string {
	out := "  - name: " + c.Name + "\n    holes:\n"
	for _, h := range c.Holes {
		out += "      - {hole: " + strconv.Itoa(h.HoleNumber) + ", par: " + strconv.Itoa(h.Par) + ", stroke_index: " + strconv.Itoa(h.StrokeIndex) + "}\n"
	}
	return out
}
