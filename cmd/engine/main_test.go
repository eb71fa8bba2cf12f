package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

func TestBuildPlayersCreatesRequestedPlayerCount(t *testing.T) {
	t.Parallel()

	players, err := buildPlayers(6)
	if err != nil {
		t.Fatalf("buildPlayers failed: %v", err)
	}
	if len(players) != 6 {
		t.Fatalf("expected 6 players, got %d", len(players))
	}
	for i, player := range players {
		want := domain.PlayerID("p" + string(rune('1'+i)))
		if player.ID != want {
			t.Fatalf("player index %d: expected %s, got %s", i, want, player.ID)
		}
	}
}

func TestBuildPlayersRejectsOutOfRangeCounts(t *testing.T) {
	t.Parallel()

	if _, err := buildPlayers(3); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for players=3, got %v", err)
	}
	if _, err := buildPlayers(7); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for players=7, got %v", err)
	}
}

func TestPracticeCourseIsValid(t *testing.T) {
	t.Parallel()

	if err := practiceCourse().Validate(); err != nil {
		t.Fatalf("practice course invalid: %v", err)
	}
}

func TestSelectCourseFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join("..", "..", "config", "courses.yaml")
	course, err := selectCourse(path, "Riverside Links")
	if err != nil {
		t.Fatalf("selectCourse failed: %v", err)
	}
	if course.Name != "Riverside Links" {
		t.Fatalf("expected Riverside Links, got %q", course.Name)
	}
	if _, err := selectCourse(path, "Augusta"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown course, got %v", err)
	}
}

func TestRunSimulationWritesReport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.json")
	var out bytes.Buffer
	err := run(context.Background(), options{mode: "sim", players: 5, seed: 3, reportPath: path}, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out.String(), "ROUND COMPLETE") {
		t.Fatalf("expected completion banner, got:\n%s", out.String())
	}

	report := readReport(t, path)
	if report.HolesCompleted != domain.HolesPerRound {
		t.Fatalf("expected %d holes, got %d", domain.HolesPerRound, report.HolesCompleted)
	}
	if report.TotalFallbacks != 0 {
		t.Fatalf("expected bots to play without fallbacks, got %d", report.TotalFallbacks)
	}
	var total float64
	for _, standing := range report.Standings {
		total += standing.Quarters
	}
	if total > 1e-9 || total < -1e-9 {
		t.Fatalf("standings do not sum to zero: %v", report.Standings)
	}
}

func TestRunPlayModeFallsBackWhenInputEnds(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.json")
	var out bytes.Buffer
	err := run(context.Background(), options{mode: "play", players: 4, human: "p2", seed: 9, reportPath: path}, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	report := readReport(t, path)
	if report.Human == nil || *report.Human != "p2" {
		t.Fatalf("expected human p2 in report, got %v", report.Human)
	}
	if report.TotalFallbacks == 0 {
		t.Fatal("expected the silent human to be covered by fallbacks")
	}
	if report.HolesCompleted != domain.HolesPerRound {
		t.Fatalf("expected %d holes, got %d", domain.HolesPerRound, report.HolesCompleted)
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := run(context.Background(), options{mode: "watch", players: 4}, nil, &out); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for mode, got %v", err)
	}
	if err := run(context.Background(), options{mode: "play", players: 4, human: "p9"}, nil, &out); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown human, got %v", err)
	}
}

func readReport(t *testing.T, path string) runReport {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var report runReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	return report
}
