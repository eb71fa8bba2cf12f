package roundrunner

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/round"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
)

func TestRunRound_CompletesWithFallbacksWhenProviderErrors(t *testing.T) {
	t.Parallel()

	var holes, events int
	runner := New(failingProvider{}, parScores{}, RunnerConfig{
		OnHoleComplete: func(HoleSummary) { holes++ },
		OnDecision:     func(DecisionEvent) { events++ },
	})
	rd := newTestRound(t, "a", "b", "c", "d")

	result, err := runner.RunRound(context.Background(), rd)
	if err != nil {
		t.Fatalf("RunRound failed: %v", err)
	}
	if !rd.IsComplete() {
		t.Fatal("expected round to be complete")
	}
	if result.HolesCompleted != domain.HolesPerRound || holes != domain.HolesPerRound {
		t.Fatalf("expected %d holes, got result=%d callback=%d", domain.HolesPerRound, result.HolesCompleted, holes)
	}
	if result.TotalFallbacks != result.TotalDecisions || result.TotalDecisions == 0 {
		t.Fatalf("expected every decision to be a fallback, got %d of %d", result.TotalFallbacks, result.TotalDecisions)
	}
	if events != result.TotalDecisions {
		t.Fatalf("expected %d decision events, got %d", result.TotalDecisions, events)
	}
	for _, summary := range result.HoleSummaries {
		if _, ok := summary.Record.Teams.(statemachine.Solo); !ok {
			t.Fatalf("hole %d: expected fallback solo, got %T", summary.Hole, summary.Record.Teams)
		}
	}
	assertZeroSum(t, result.Standings)
}

func TestRunHole_PlaysScriptedPartnership(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d")
	captain := rd.Rotation().Captain()
	runner := New(decideFunc(func(req DecisionRequest) (Decision, error) {
		switch req.Kind {
		case DecisionCaptain:
			return Decision{Action: ActionRequestPartner, Partner: req.Candidates[0]}, nil
		case DecisionPartnership:
			return Decision{Action: ActionAccept}, nil
		default:
			return Decision{Action: ActionPass}, nil
		}
	}), captainBirdie{captain: captain}, RunnerConfig{})

	summary, err := runner.RunHole(context.Background(), rd)
	if err != nil {
		t.Fatalf("RunHole failed: %v", err)
	}
	// request, accept, the captain's special pass and four double passes
	if summary.DecisionCount != 7 || summary.FallbackCount != 0 {
		t.Fatalf("expected 7 decisions and no fallbacks, got %d/%d", summary.DecisionCount, summary.FallbackCount)
	}
	partners, ok := summary.Record.Teams.(statemachine.Partners)
	if !ok {
		t.Fatalf("expected partners, got %T", summary.Record.Teams)
	}
	if partners.Team1[0] != captain {
		t.Fatalf("expected captain %s on team 1, got %v", captain, partners.Team1)
	}
	if summary.Record.Quarters[captain] <= 0 {
		t.Fatalf("expected captain to win quarters, got %v", summary.Record.Quarters)
	}
	if rd.CurrentHole() != 2 {
		t.Fatalf("expected hole 2 next, got %d", rd.CurrentHole())
	}
}

func TestRunHole_FallsBackOnIllegalDecision(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d")
	runner := New(decideFunc(func(req DecisionRequest) (Decision, error) {
		if req.Kind == DecisionCaptain {
			return Decision{Action: ActionRequestPartner, Partner: "nobody"}, nil
		}
		return Decision{Action: ActionPass}, nil
	}), parScores{}, RunnerConfig{})

	summary, err := runner.RunHole(context.Background(), rd)
	if err != nil {
		t.Fatalf("RunHole failed: %v", err)
	}
	if summary.FallbackCount != 1 {
		t.Fatalf("expected one fallback, got %d", summary.FallbackCount)
	}
	if _, ok := summary.Record.Teams.(statemachine.Solo); !ok {
		t.Fatalf("expected fallback solo, got %T", summary.Record.Teams)
	}
}

func TestRunHole_DeclinedDoubleForfeitsWithoutScores(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d")
	captain := rd.Rotation().Captain()
	runner := New(decideFunc(func(req DecisionRequest) (Decision, error) {
		switch req.Kind {
		case DecisionCaptain:
			return Decision{Action: ActionGoSolo}, nil
		case DecisionOfferDouble, DecisionSpecial:
			if req.Kind == DecisionOfferDouble && req.Actor == captain {
				return Decision{Action: ActionOfferDouble}, nil
			}
			return Decision{Action: ActionPass}, nil
		default:
			return Decision{Action: ActionDecline}, nil
		}
	}), unreachableScores{t: t}, RunnerConfig{})

	summary, err := runner.RunHole(context.Background(), rd)
	if err != nil {
		t.Fatalf("RunHole failed: %v", err)
	}
	if summary.Record.Forfeit == nil {
		t.Fatal("expected forfeited hole")
	}
	if summary.Record.Quarters[captain] <= 0 {
		t.Fatalf("expected the offering captain to collect, got %v", summary.Record.Quarters)
	}
	if rd.CurrentHole() != 2 {
		t.Fatalf("expected hole 2 next, got %d", rd.CurrentHole())
	}
}

func TestRunHole_CaptainTakesFloatAndDuncan(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d")
	captain := rd.Rotation().Captain()
	var specials [][]Action
	runner := New(decideFunc(func(req DecisionRequest) (Decision, error) {
		switch req.Kind {
		case DecisionCaptain:
			return Decision{Action: ActionGoSolo}, nil
		case DecisionSpecial:
			specials = append(specials, req.Legal)
			for _, action := range []Action{ActionFloat, ActionDuncan} {
				if slices.Contains(req.Legal, action) {
					return Decision{Action: action}, nil
				}
			}
			return Decision{Action: ActionPass}, nil
		default:
			return Decision{Action: ActionPass}, nil
		}
	}), captainBirdie{captain: captain}, RunnerConfig{})

	summary, err := runner.RunHole(context.Background(), rd)
	if err != nil {
		t.Fatalf("RunHole failed: %v", err)
	}
	if len(specials) != 2 {
		t.Fatalf("expected the captain to be asked twice, got %v", specials)
	}
	if !slices.Equal(specials[0], []Action{ActionFloat, ActionDuncan, ActionPass}) {
		t.Fatalf("unexpected first special options %v", specials[0])
	}
	if summary.FallbackCount != 0 || summary.DecisionCount != 7 {
		t.Fatalf("expected 7 decisions and no fallbacks, got %d/%d", summary.DecisionCount, summary.FallbackCount)
	}
	if summary.Record.Wager != 2*domain.DefaultBaseWager || !summary.Record.Duncan {
		t.Fatalf("expected a floated duncan hole, got wager %d duncan %v", summary.Record.Wager, summary.Record.Duncan)
	}
	if usage := rd.Betting().PlayerUsage[captain]; !usage.FloatUsed || !usage.DuncanUsed {
		t.Fatalf("expected float and duncan marked used, got %+v", usage)
	}
}

func TestRunRound_GoatSetsJoesSpecial(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d")
	var asked []int
	runner := New(decideFunc(func(req DecisionRequest) (Decision, error) {
		switch {
		case req.Kind == DecisionCaptain:
			return Decision{Action: ActionGoSolo}, nil
		case req.Kind == DecisionSpecial && slices.Contains(req.Legal, ActionJoesSpecial):
			if req.Actor != req.Rotation.GoatPlayerID {
				t.Errorf("hole %d: joe's special offered to %s, goat is %s", req.Hole, req.Actor, req.Rotation.GoatPlayerID)
			}
			asked = append(asked, req.Hole)
			if req.Hole == 17 {
				return Decision{Action: ActionJoesSpecial, Multiplier: 3}, nil
			}
			return Decision{Action: ActionJoesSpecial, Multiplier: 8}, nil
		default:
			return Decision{Action: ActionPass}, nil
		}
	}), parScores{}, RunnerConfig{})

	result, err := runner.RunRound(context.Background(), rd)
	if err != nil {
		t.Fatalf("RunRound failed: %v", err)
	}
	if !slices.Equal(asked, []int{17, 18}) {
		t.Fatalf("expected joe's special on holes 17 and 18, got %v", asked)
	}
	if result.TotalFallbacks != 1 {
		t.Fatalf("expected the bad multiplier to fall back once, got %d", result.TotalFallbacks)
	}
	wagers := map[int]int{}
	for _, summary := range result.HoleSummaries {
		wagers[summary.Hole] = summary.Record.Wager
	}
	if wagers[17] != domain.DefaultBaseWager || wagers[18] != 8*domain.DefaultBaseWager {
		t.Fatalf("expected wagers 1 and 8 on holes 17 and 18, got %d and %d", wagers[17], wagers[18])
	}
	assertZeroSum(t, result.Standings)
}

func TestRunHole_TossedAardvark(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d", "e")
	aardvarks := rd.Formation().Aardvarks
	if len(aardvarks) != 1 {
		t.Fatalf("expected one aardvark, got %v", aardvarks)
	}
	runner := New(decideFunc(func(req DecisionRequest) (Decision, error) {
		switch req.Kind {
		case DecisionCaptain:
			return Decision{Action: ActionRequestPartner, Partner: req.Candidates[0]}, nil
		case DecisionPartnership:
			return Decision{Action: ActionAccept}, nil
		case DecisionAardvark:
			return Decision{Action: ActionJoin, Team: statemachine.Team1}, nil
		case DecisionAardvarkResponse:
			return Decision{Action: ActionDecline}, nil
		default:
			return Decision{Action: ActionPass}, nil
		}
	}), parScores{}, RunnerConfig{})

	summary, err := runner.RunHole(context.Background(), rd)
	if err != nil {
		t.Fatalf("RunHole failed: %v", err)
	}
	partners, ok := summary.Record.Teams.(statemachine.Partners)
	if !ok {
		t.Fatalf("expected partners, got %T", summary.Record.Teams)
	}
	if len(partners.Team2) != 3 || partners.Team2[2] != aardvarks[0] {
		t.Fatalf("expected aardvark %s tossed to team 2, got %v", aardvarks[0], partners.Team2)
	}
	if summary.Record.Wager != 2*domain.DefaultBaseWager {
		t.Fatalf("expected doubled wager, got %d", summary.Record.Wager)
	}
}

func TestRunHole_StopsOnDecisionLimit(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d")
	runner := New(decideFunc(func(req DecisionRequest) (Decision, error) {
		if req.Kind == DecisionCaptain && len(req.Candidates) > 0 {
			return Decision{Action: ActionRequestPartner, Partner: req.Candidates[0]}, nil
		}
		return Decision{Action: ActionDecline}, nil
	}), parScores{}, RunnerConfig{MaxDecisionsPerHole: 2})

	_, err := runner.RunHole(context.Background(), rd)
	if !errors.Is(err, ErrDecisionLimitExceeded) {
		t.Fatalf("expected ErrDecisionLimitExceeded, got %v", err)
	}
}

func TestRunRound_RespectsContextCancellation(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d")
	runner := New(failingProvider{}, parScores{}, RunnerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.RunRound(ctx, rd)
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("expected ErrContextCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rd.CurrentHole() != 1 {
		t.Fatalf("expected round untouched, got hole %d", rd.CurrentHole())
	}
}

func TestRunRound_PropagatesScoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("scorecard lost")
	rd := newTestRound(t, "a", "b", "c", "d")
	runner := New(failingProvider{}, failingScores{err: boom}, RunnerConfig{})

	result, err := runner.RunRound(context.Background(), rd)
	if !errors.Is(err, boom) {
		t.Fatalf("expected score error, got %v", err)
	}
	if result.HolesCompleted != 0 {
		t.Fatalf("expected no completed holes, got %d", result.HolesCompleted)
	}
}

func TestRunRound_RejectsMissingProviders(t *testing.T) {
	t.Parallel()

	rd := newTestRound(t, "a", "b", "c", "d")
	if _, err := New(nil, parScores{}, RunnerConfig{}).RunRound(context.Background(), rd); !errors.Is(err, ErrRunnerMisconfigured) {
		t.Fatalf("expected ErrRunnerMisconfigured, got %v", err)
	}
	if _, err := New(failingProvider{}, parScores{}, RunnerConfig{}).RunRound(context.Background(), nil); !errors.Is(err, ErrRunnerMisconfigured) {
		t.Fatalf("expected ErrRunnerMisconfigured for nil round, got %v", err)
	}
}

type decideFunc func(req DecisionRequest) (Decision, error)

func (f decideFunc) Decide(_ context.Context, req DecisionRequest) (Decision, error) {
	return f(req)
}

type failingProvider struct{}

func (failingProvider) Decide(context.Context, DecisionRequest) (Decision, error) {
	return Decision{}, errors.New("provider unavailable")
}

type parScores struct{}

func (parScores) Scores(_ context.Context, req ScoreRequest) (map[domain.PlayerID]int, error) {
	out := make(map[domain.PlayerID]int, len(req.Players))
	for _, id := range req.Players {
		out[id] = req.Hole.Par
	}
	return out, nil
}

type captainBirdie struct {
	captain domain.PlayerID
}

func (s captainBirdie) Scores(_ context.Context, req ScoreRequest) (map[domain.PlayerID]int, error) {
	out := make(map[domain.PlayerID]int, len(req.Players))
	for _, id := range req.Players {
		out[id] = req.Hole.Par + 1
	}
	out[s.captain] = req.Hole.Par - 1
	return out, nil
}

type failingScores struct {
	err error
}

func (s failingScores) Scores(context.Context, ScoreRequest) (map[domain.PlayerID]int, error) {
	return nil, s.err
}

type unreachableScores struct {
	t *testing.T
}

func (s unreachableScores) Scores(context.Context, ScoreRequest) (map[domain.PlayerID]int, error) {
	s.t.Error("scores requested for a forfeited hole")
	return nil, errors.New("unexpected")
}

func newTestRound(t *testing.T, names ...string) *round.Round {
	t.Helper()
	holes := make([]domain.CourseHole, 0, domain.HolesPerRound)
	for i := 0; i < domain.HolesPerRound; i++ {
		holes = append(holes, domain.CourseHole{HoleNumber: i + 1, Par: 3 + i%3, StrokeIndex: (i*7)%18 + 1})
	}
	players := make([]domain.Player, 0, len(names))
	for _, name := range names {
		players = append(players, domain.Player{ID: domain.PlayerID(name), Name: name})
	}
	rd, err := round.New(round.NewInput{
		ID:      "run-1",
		Config:  domain.DefaultRoundConfig(),
		Course:  domain.Course{Name: "Runner Links", Holes: holes},
		Players: players,
	})
	if err != nil {
		t.Fatalf("round.New failed: %v", err)
	}
	return rd
}

func assertZeroSum(t *testing.T, standings map[domain.PlayerID]float64) {
	t.Helper()
	var total float64
	for _, q := range standings {
		total += q
	}
	if math.Abs(total) > 1e-9 {
		t.Fatalf("standings do not sum to zero: %v", standings)
	}
}
