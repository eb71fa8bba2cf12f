package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/config"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/round"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
)

type options struct {
	mode        string
	players     int
	human       string
	seed        int64
	coursesFile string
	courseName  string
	houseRules  string
	reportPath  string
}

func main() {
	opts := options{}
	flag.StringVar(&opts.mode, "mode", "sim", "run mode: sim (bots only) or play (one human player)")
	flag.IntVar(&opts.players, "players", 4, "number of players (4-6)")
	flag.StringVar(&opts.human, "human", "p1", "player id controlled from stdin in play mode")
	flag.Int64Var(&opts.seed, "seed", 1, "seed for the first tee shuffle and simulated scores")
	flag.StringVar(&opts.coursesFile, "courses", "", "YAML file of courses; a practice course is used when empty")
	flag.StringVar(&opts.courseName, "course", "", "course name to play from -courses (first course when empty)")
	flag.StringVar(&opts.houseRules, "house-rules", "", "YAML file of round settings")
	flag.StringVar(&opts.reportPath, "report", "", "write a JSON run report to this path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	if opts.mode != "sim" && opts.mode != "play" {
		return fmt.Errorf("%w: unknown mode %q", domain.ErrConfiguration, opts.mode)
	}

	players, err := buildPlayers(opts.players)
	if err != nil {
		return err
	}
	course, err := selectCourse(opts.coursesFile, opts.courseName)
	if err != nil {
		return err
	}
	cfg := domain.DefaultRoundConfig()
	if opts.houseRules != "" {
		if cfg, err = config.LoadHouseRules(opts.houseRules); err != nil {
			return err
		}
	}
	cfg.RandomizeFirstTee = true
	cfg.Seed = opts.seed

	rd, err := round.New(round.NewInput{ID: "local-round-1", Config: cfg, Course: course, Players: players})
	if err != nil {
		return err
	}

	var provider roundrunner.DecisionProvider = botProvider{}
	var humanID *domain.PlayerID
	if opts.mode == "play" {
		id := domain.PlayerID(strings.TrimSpace(opts.human))
		if !containsPlayer(players, id) {
			return fmt.Errorf("%w: human player %q is not in the round", domain.ErrConfiguration, id)
		}
		humanID = &id
		provider = playerProvider{human: id, humanSide: newHumanProvider(in, out), bot: botProvider{}, out: out}
	}

	var timeline []roundrunner.DecisionEvent
	runner := roundrunner.New(provider, roundrunner.NewSimulatedScores(opts.seed), roundrunner.RunnerConfig{
		OnDecision: func(event roundrunner.DecisionEvent) {
			timeline = append(timeline, event)
		},
		OnHoleComplete: func(summary roundrunner.HoleSummary) {
			slog.Debug("hole complete",
				"hole", summary.Hole,
				"wager", summary.Record.Wager,
				"decisions", summary.DecisionCount,
				"fallbacks", summary.FallbackCount,
			)
		},
	})

	slog.Info("starting local round", "mode", opts.mode, "course", course.Name, "players", len(players), "seed", opts.seed)
	result, err := runner.RunRound(ctx, rd)
	if err != nil {
		return err
	}

	report := buildRunReport(buildRunReportInput{
		Mode:     opts.mode,
		RoundID:  rd.ID(),
		Course:   course.Name,
		Human:    humanID,
		FirstTee: rd.FirstTeeOrder(),
		Result:   result,
		Timeline: timeline,
	})
	fmt.Fprint(out, renderRunOutput(report))

	if opts.reportPath != "" {
		if err := writeRunReportJSON(opts.reportPath, report); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		slog.Info("run report written", "path", opts.reportPath)
	}
	return nil
}

func buildPlayers(count int) ([]domain.Player, error) {
	if count < domain.MinPlayers || count > domain.MaxPlayers {
		return nil, fmt.Errorf("%w: players must be in range %d..=%d, got %d", domain.ErrConfiguration, domain.MinPlayers, domain.MaxPlayers, count)
	}
	players := make([]domain.Player, 0, count)
	for i := 1; i <= count; i++ {
		player, err := domain.NewPlayer(domain.PlayerID(fmt.Sprintf("p%d", i)), fmt.Sprintf("Player %d", i), float64((i-1)*4))
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}
	return players, nil
}

func selectCourse(path, name string) (domain.Course, error) {
	if path == "" {
		return practiceCourse(), nil
	}
	courses, err := config.LoadCourses(path)
	if err != nil {
		return domain.Course{}, err
	}
	if name == "" {
		return courses[0], nil
	}
	for _, course := range courses {
		if course.Name == name {
			return course, nil
		}
	}
	return domain.Course{}, fmt.Errorf("%w: course %q not found in %s", domain.ErrConfiguration, name, path)
}

// practiceCourse is a par 72 layout with stroke indexes spread over both nines.
func practiceCourse() domain.Course {
	pars := [domain.HolesPerRound]int{4, 4, 3, 5, 4, 4, 3, 4, 5, 4, 3, 4, 5, 4, 4, 3, 4, 5}
	holes := make([]domain.CourseHole, 0, domain.HolesPerRound)
	for i, par := range pars {
		holes = append(holes, domain.CourseHole{HoleNumber: i + 1, Par: par, StrokeIndex: (i*7)%domain.HolesPerRound + 1})
	}
	return domain.Course{Name: "Practice Course", Holes: holes}
}

func containsPlayer(players []domain.Player, id domain.PlayerID) bool {
	for _, p := range players {
		if p.ID == id {
			return true
		}
	}
	return false
}
