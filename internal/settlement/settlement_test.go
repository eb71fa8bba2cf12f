package settlement

import (
	"errors"
	"math"
	"testing"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/betting"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
	"pgregory.net/rapid"
)

func TestSettlePartnersBestBall(t *testing.T) {
	t.Parallel()

	out := mustSettle(t, Input{
		Formation: statemachine.Partners{Team1: ids("a", "b"), Team2: ids("c", "d")},
		NetScores: scores(map[string]float64{"a": 4, "b": 6, "c": 5, "d": 5}),
		Wager:     2,
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": 1, "b": 1, "c": -1, "d": -1})
	if out.Halved {
		t.Fatal("decided hole should not be halved")
	}
}

func TestSettlePartnersTieIsHalved(t *testing.T) {
	t.Parallel()

	out := mustSettle(t, Input{
		Formation: statemachine.Partners{Team1: ids("a", "b"), Team2: ids("c", "d")},
		NetScores: scores(map[string]float64{"a": 4.5, "b": 6, "c": 4.5, "d": 5}),
		Wager:     4,
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": 0, "b": 0, "c": 0, "d": 0})
	if !out.Halved {
		t.Fatal("expected halved hole")
	}
}

func TestSettleSoloCaptainBeatsEveryone(t *testing.T) {
	t.Parallel()

	out := mustSettle(t, Input{
		Formation: statemachine.Solo{Captain: "a", Opponents: ids("b", "c", "d")},
		NetScores: scores(map[string]float64{"a": 3, "b": 4, "c": 5, "d": 4}),
		Wager:     6,
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": 18, "b": -6, "c": -6, "d": -6})
}

func TestSettleSoloSplitDecision(t *testing.T) {
	t.Parallel()

	out := mustSettle(t, Input{
		Formation: statemachine.Solo{Captain: "a", Opponents: ids("b", "c", "d")},
		NetScores: scores(map[string]float64{"a": 4, "b": 3, "c": 4, "d": 5}),
		Wager:     2,
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": 0, "b": 2, "c": 0, "d": -2})
}

func TestSettleSoloDuncanPaysThreeForTwo(t *testing.T) {
	t.Parallel()

	out := mustSettle(t, Input{
		Formation: statemachine.Solo{Captain: "a", Opponents: ids("b", "c", "d")},
		NetScores: scores(map[string]float64{"a": 3, "b": 4, "c": 4, "d": 4}),
		Wager:     2,
		Duncan:    true,
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": 9, "b": -3, "c": -3, "d": -3})
}

func TestSettleForfeitIgnoresScores(t *testing.T) {
	t.Parallel()

	partners := statemachine.Partners{Team1: ids("a", "b"), Team2: ids("c", "d")}
	out := mustSettle(t, Input{
		Formation: partners,
		Wager:     4,
		Forfeit:   &betting.Forfeit{OfferID: "o", OfferedBy: "c", DeclinedBy: ids("a", "b")},
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": -2, "b": -2, "c": 2, "d": 2})
	if out.Halved {
		t.Fatal("forfeit is never halved")
	}

	solo := statemachine.Solo{Captain: "a", Opponents: ids("b", "c", "d")}
	out = mustSettle(t, Input{
		Formation: solo,
		NetScores: scores(map[string]float64{"a": 9, "b": 3, "c": 3, "d": 3}),
		Wager:     2,
		Forfeit:   &betting.Forfeit{OfferID: "o", OfferedBy: "a", DeclinedBy: ids("b", "c", "d")},
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": 6, "b": -2, "c": -2, "d": -2})
}

func TestSettleSoloAardvarkAgainstFieldAverage(t *testing.T) {
	t.Parallel()

	out := mustSettle(t, Input{
		Formation: statemachine.Partners{Team1: ids("a", "b"), Team2: ids("c", "d"), SoloAardvarks: ids("e")},
		NetScores: scores(map[string]float64{"a": 4, "b": 5, "c": 4, "d": 5, "e": 3}),
		Wager:     4,
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": -1, "b": -1, "c": -1, "d": -1, "e": 4})

	out = mustSettle(t, Input{
		Formation: statemachine.Partners{Team1: ids("a", "b"), Team2: ids("c", "d"), SoloAardvarks: ids("e")},
		NetScores: scores(map[string]float64{"a": 4, "b": 5, "c": 4, "d": 5, "e": 6}),
		Wager:     4,
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": 1, "b": 1, "c": 1, "d": 1, "e": -4})

	// Net 4.5 matches the field average exactly.
	out = mustSettle(t, Input{
		Formation: statemachine.Partners{Team1: ids("a", "b"), Team2: ids("c", "d"), SoloAardvarks: ids("e")},
		NetScores: scores(map[string]float64{"a": 4, "b": 5, "c": 4, "d": 5, "e": 4.5}),
		Wager:     4,
	})
	assertQuarters(t, out.Quarters, map[string]float64{"a": 0, "b": 0, "c": 0, "d": 0, "e": 0})
	if !out.Halved {
		t.Fatalf("expected halved hole, got %+v", out)
	}
}

func TestSettleRejectsPendingFormationAndMissingScores(t *testing.T) {
	t.Parallel()

	_, err := Settle(Input{Formation: statemachine.Pending{Captain: "a", RequestedPartner: "b"}, Wager: 1})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	_, err = Settle(Input{
		Formation: statemachine.Solo{Captain: "a", Opponents: ids("b", "c", "d")},
		NetScores: scores(map[string]float64{"a": 4}),
		Wager:     1,
	})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestCheckZeroSumFlagsImbalance(t *testing.T) {
	t.Parallel()

	err := CheckZeroSum(scores(map[string]float64{"a": 1, "b": -0.5}))
	if !errors.Is(err, domain.ErrSettlementInvariant) {
		t.Fatalf("expected ErrSettlementInvariant, got %v", err)
	}
}

func TestSettleIsZeroSum(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(domain.MinPlayers, domain.MaxPlayers).Draw(t, "players")
		players := make([]domain.PlayerID, 0, n)
		net := make(map[domain.PlayerID]float64, n)
		for i := 0; i < n; i++ {
			id := domain.PlayerID(rune('a' + i))
			players = append(players, id)
			net[id] = float64(rapid.IntRange(4, 18).Draw(t, "net")) / 2
		}

		in := Input{
			NetScores: net,
			Wager:     rapid.IntRange(1, 512).Draw(t, "wager"),
		}
		switch rapid.SampledFrom([]string{"partners", "solo", "aardvarks"}).Draw(t, "mode") {
		case "partners":
			split := rapid.IntRange(1, n-1).Draw(t, "split")
			in.Formation = statemachine.Partners{Team1: players[:split], Team2: players[split:]}
		case "solo":
			in.Formation = statemachine.Solo{Captain: players[0], Opponents: players[1:]}
			in.Duncan = rapid.Bool().Draw(t, "duncan")
		case "aardvarks":
			in.Formation = statemachine.Partners{Team1: players[:2], Team2: players[2:4], SoloAardvarks: players[4:]}
		}
		if rapid.Bool().Draw(t, "forfeit") {
			offerer := rapid.SampledFrom(players).Draw(t, "offerer")
			in.Forfeit = &betting.Forfeit{OfferID: "o", OfferedBy: offerer}
		}

		out, err := Settle(in)
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}
		sum := 0.0
		for _, q := range out.Quarters {
			sum += q
		}
		if math.Abs(sum) > ZeroSumTolerance {
			t.Fatalf("quarters %v sum to %v", out.Quarters, sum)
		}
		if len(out.Quarters) != n {
			t.Fatalf("expected a delta for all %d players, got %d", n, len(out.Quarters))
		}
	})
}

func mustSettle(t *testing.T, in Input) Outcome {
	t.Helper()
	out, err := Settle(in)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	return out
}

func assertQuarters(t *testing.T, got map[domain.PlayerID]float64, want map[string]float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d players, got %v", len(want), got)
	}
	for id, q := range want {
		if math.Abs(got[domain.PlayerID(id)]-q) > ZeroSumTolerance {
			t.Fatalf("player %s: expected %v quarters, got %v (all: %v)", id, q, got[domain.PlayerID(id)], got)
		}
	}
}

func scores(in map[string]float64) map[domain.PlayerID]float64 {
	out := make(map[domain.PlayerID]float64, len(in))
	for id, v := range in {
		out[domain.PlayerID(id)] = v
	}
	return out
}

func ids(values ...string) []domain.PlayerID {
	out := make([]domain.PlayerID, 0, len(values))
	for _, v := range values {
		out = append(out, domain.PlayerID(v))
	}
	return out
}
