package persistence

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/round"
)

var contractTime = time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC)

func runRepositoryContractTests(t *testing.T, mkRepo func(t *testing.T) Repository) {
	t.Helper()

	t.Run("Contract_SaveAndGetRound", func(t *testing.T) {
		repo := mkRepo(t)
		r := mustPlayedRound(t, "r1", 3)
		if err := repo.SaveRound(NewRoundRecord(r, contractTime, contractTime)); err != nil {
			t.Fatalf("SaveRound failed: %v", err)
		}

		got, ok, err := repo.GetRound("r1")
		if err != nil {
			t.Fatalf("GetRound failed: %v", err)
		}
		if !ok {
			t.Fatal("expected round to exist")
		}
		if got.Status != RoundStatusInProgress || got.CurrentHole != 4 || got.PlayerCount != 4 {
			t.Fatalf("unexpected round header %+v", got)
		}
		if !reflect.DeepEqual(got.Snapshot, r.Snapshot()) {
			t.Fatal("stored snapshot does not match the round")
		}

		restored, err := round.Restore(got.Snapshot)
		if err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if restored.CurrentHole() != 4 {
			t.Fatalf("expected restored round on hole 4, got %d", restored.CurrentHole())
		}
	})

	t.Run("Contract_GetMissingRound", func(t *testing.T) {
		repo := mkRepo(t)
		_, ok, err := repo.GetRound("missing")
		if err != nil {
			t.Fatalf("GetRound failed: %v", err)
		}
		if ok {
			t.Fatal("expected missing round")
		}
		if _, err := repo.ListHoles("missing"); !errors.Is(err, ErrRoundNotFound) {
			t.Fatalf("expected ErrRoundNotFound, got %v", err)
		}
	})

	t.Run("Contract_SaveRoundReplacesHoles", func(t *testing.T) {
		repo := mkRepo(t)
		r := mustPlayedRound(t, "r1", 3)
		if err := repo.SaveRound(NewRoundRecord(r, contractTime, contractTime)); err != nil {
			t.Fatalf("SaveRound failed: %v", err)
		}
		if _, err := r.UndoLastHole(); err != nil {
			t.Fatalf("UndoLastHole failed: %v", err)
		}
		if err := repo.SaveRound(NewRoundRecord(r, contractTime, contractTime.Add(time.Minute))); err != nil {
			t.Fatalf("SaveRound update failed: %v", err)
		}

		holes, err := repo.ListHoles("r1")
		if err != nil {
			t.Fatalf("ListHoles failed: %v", err)
		}
		if len(holes) != 2 || holes[0].Hole != 1 || holes[1].Hole != 2 {
			t.Fatalf("expected holes 1 and 2 after undo, got %d records", len(holes))
		}
		if !reflect.DeepEqual(holes, r.Holes()) {
			t.Fatal("stored holes do not match the round history")
		}
	})

	t.Run("Contract_ListRoundsOrderedByCreation", func(t *testing.T) {
		repo := mkRepo(t)
		for i, id := range []string{"r2", "r1"} {
			created := contractTime.Add(time.Duration(i) * time.Minute)
			if err := repo.SaveRound(NewRoundRecord(mustPlayedRound(t, id, 0), created, created)); err != nil {
				t.Fatalf("SaveRound %s failed: %v", id, err)
			}
		}
		rounds, err := repo.ListRounds()
		if err != nil {
			t.Fatalf("ListRounds failed: %v", err)
		}
		if len(rounds) != 2 || rounds[0].RoundID != "r2" || rounds[1].RoundID != "r1" {
			t.Fatalf("expected [r2 r1], got %d rounds", len(rounds))
		}
	})

	t.Run("Contract_AppendActionRequiresRound", func(t *testing.T) {
		repo := mkRepo(t)
		err := repo.AppendAction(ActionRecord{RoundID: "missing", Hole: 1, Action: "declare_solo", At: contractTime})
		if !errors.Is(err, ErrRoundNotFound) {
			t.Fatalf("expected ErrRoundNotFound, got %v", err)
		}

		if err := repo.SaveRound(NewRoundRecord(mustPlayedRound(t, "r1", 0), contractTime, contractTime)); err != nil {
			t.Fatalf("SaveRound failed: %v", err)
		}
		for i := 0; i < 3; i++ {
			if err := repo.AppendAction(ActionRecord{
				RoundID: "r1",
				Hole:    1,
				Actor:   "a",
				Action:  fmt.Sprintf("a%d", i),
				At:      contractTime.Add(time.Duration(i) * time.Second),
			}); err != nil {
				t.Fatalf("AppendAction %d failed: %v", i, err)
			}
		}
		actions, err := repo.ListActions("r1")
		if err != nil {
			t.Fatalf("ListActions failed: %v", err)
		}
		if len(actions) != 3 {
			t.Fatalf("expected 3 actions, got %d", len(actions))
		}
		for i := range actions {
			if want := fmt.Sprintf("a%d", i); actions[i].Action != want || actions[i].Actor != "a" {
				t.Fatalf("expected action %q at index %d, got %+v", want, i, actions[i])
			}
		}
	})

	t.Run("Contract_UpsertAndGetCourse", func(t *testing.T) {
		repo := mkRepo(t)
		course := contractCourse()
		if err := repo.UpsertCourse(course); err != nil {
			t.Fatalf("UpsertCourse failed: %v", err)
		}
		course.Holes[0].Par = 5
		if err := repo.UpsertCourse(course); err != nil {
			t.Fatalf("UpsertCourse update failed: %v", err)
		}
		got, ok, err := repo.GetCourse(course.Name)
		if err != nil {
			t.Fatalf("GetCourse failed: %v", err)
		}
		if !ok || !reflect.DeepEqual(got, course) {
			t.Fatalf("expected updated course, got %+v", got)
		}

		bad := contractCourse()
		bad.Holes = bad.Holes[:10]
		if err := repo.UpsertCourse(bad); !errors.Is(err, domain.ErrConfiguration) {
			t.Fatalf("expected ErrConfiguration, got %v", err)
		}
	})
}

// mustPlayedRound starts a four-player round and settles the given number of
// holes with the captain and first partner winning each one.
func mustPlayedRound(t *testing.T, id string, holes int) *round.Round {
	t.Helper()
	players := []domain.Player{
		{ID: "a", Name: "Alice", CourseHandicap: 4},
		{ID: "b", Name: "Bob", CourseHandicap: 12},
		{ID: "c", Name: "Cara", CourseHandicap: 8},
		{ID: "d", Name: "Dev", CourseHandicap: 20.5},
	}
	r, err := round.New(round.NewInput{
		ID:      id,
		Config:  domain.DefaultRoundConfig(),
		Course:  contractCourse(),
		Players: players,
	}, round.WithClock(func() time.Time { return contractTime }))
	if err != nil {
		t.Fatalf("round.New failed: %v", err)
	}
	for i := 0; i < holes; i++ {
		rot := r.Rotation()
		if err := r.RequestPartner(rot.Captain(), rot.BaseGroup()[1]); err != nil {
			t.Fatalf("RequestPartner failed: %v", err)
		}
		if err := r.RespondToPartnership(true); err != nil {
			t.Fatalf("RespondToPartnership failed: %v", err)
		}
		gross := map[domain.PlayerID]int{"a": 5, "b": 6, "c": 5, "d": 7}
		gross[rot.Captain()] = 3
		if _, err := r.CompleteHole(gross); err != nil {
			t.Fatalf("CompleteHole failed: %v", err)
		}
	}
	return r
}

func contractCourse() domain.Course {
	holes := make([]domain.CourseHole, 0, domain.HolesPerRound)
	for i := 0; i < domain.HolesPerRound; i++ {
		holes = append(holes, domain.CourseHole{HoleNumber: i + 1, Par: 4, StrokeIndex: (i*5)%18 + 1})
	}
	return domain.Course{Name: "Contract Links", Holes: holes}
}
