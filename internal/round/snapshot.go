package round

import (
	"fmt"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/betting"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/rotation"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/settlement"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
)

const SnapshotVersion = 1

// Snapshot is the complete serializable state of a round. Restoring it
// yields a round that behaves identically to the one it was taken from.
type Snapshot struct {
	Version       int                     `json:"version"`
	RoundID       string                  `json:"round_id"`
	Config        domain.RoundConfig      `json:"config"`
	Course        domain.Course           `json:"course"`
	Players       []domain.Player         `json:"players"`
	FirstTeeOrder []domain.PlayerID       `json:"first_tee_order"`
	CurrentHole   int                     `json:"current_hole"`
	Complete      bool                    `json:"complete"`
	Rotation      rotation.State          `json:"rotation"`
	Formation     statemachine.State      `json:"formation"`
	Betting       betting.State           `json:"betting"`
	Holes         []settlement.HoleRecord `json:"holes"`
}

func (r *Round) Snapshot() Snapshot {
	return Snapshot{
		Version:       SnapshotVersion,
		RoundID:       r.id,
		Config:        r.config,
		Course:        cloneCourse(r.course),
		Players:       r.Players(),
		FirstTeeOrder: r.FirstTeeOrder(),
		CurrentHole:   r.currentHole,
		Complete:      r.complete,
		Rotation:      r.rotation.Clone(),
		Formation:     r.formation.Clone(),
		Betting:       r.betting.Clone(),
		Holes:         r.ledger.Records(),
	}
}

func Restore(snap Snapshot, opts ...Option) (*Round, error) {
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", domain.ErrConfiguration, snap.Version)
	}
	if snap.RoundID == "" {
		return nil, fmt.Errorf("%w: snapshot has no round id", domain.ErrConfiguration)
	}
	r, err := newRound(snap.RoundID, snap.Config, snap.Course, snap.Players, opts)
	if err != nil {
		return nil, err
	}
	if err := sameMembers(snap.FirstTeeOrder, domain.PlayerIDs(r.players)); err != nil {
		return nil, err
	}
	if err := domain.ValidateHoleNumber(snap.CurrentHole); err != nil {
		return nil, err
	}
	if snap.Rotation.HoleNumber != snap.CurrentHole || snap.Betting.HoleNumber != snap.CurrentHole {
		return nil, fmt.Errorf("%w: snapshot state is for a different hole than %d", domain.ErrConfiguration, snap.CurrentHole)
	}
	if err := sameMembers(snap.Rotation.RotationOrder, snap.FirstTeeOrder); err != nil {
		return nil, err
	}
	ledger, err := settlement.NewLedger(snap.Holes)
	if err != nil {
		return nil, err
	}
	settled := ledger.Len()
	switch {
	case snap.Complete && settled != domain.HolesPerRound:
		return nil, fmt.Errorf("%w: complete round has %d settled holes", domain.ErrConfiguration, settled)
	case !snap.Complete && settled != snap.CurrentHole-1:
		return nil, fmt.Errorf("%w: hole %d in play with %d settled holes", domain.ErrConfiguration, snap.CurrentHole, settled)
	}

	r.firstTee = append([]domain.PlayerID(nil), snap.FirstTeeOrder...)
	r.currentHole = snap.CurrentHole
	r.complete = snap.Complete
	r.rotation = snap.Rotation.Clone()
	r.formation = snap.Formation.Clone()
	r.betting = snap.Betting.Clone()
	r.ledger = ledger
	return r, nil
}

func sameMembers(got, want []domain.PlayerID) error {
	if len(got) != len(want) {
		return fmt.Errorf("%w: expected %d players, got %d", domain.ErrConfiguration, len(want), len(got))
	}
	seen := make(map[domain.PlayerID]bool, len(want))
	for _, id := range want {
		seen[id] = true
	}
	for _, id := range got {
		if !seen[id] {
			return fmt.Errorf("%w: unexpected player %s", domain.ErrConfiguration, id)
		}
		delete(seen, id)
	}
	return nil
}
