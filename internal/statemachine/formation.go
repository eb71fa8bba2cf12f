package statemachine

import (
	"encoding/json"
	"fmt"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

type FormationKind string

const (
	FormationPartners FormationKind = "partners"
	FormationSolo     FormationKind = "solo"
	FormationPending  FormationKind = "pending"
)

// TeamFormation is a closed sum type: Partners, Solo or Pending.
type TeamFormation interface {
	Kind() FormationKind
	Players() []domain.PlayerID
	isTeamFormation()
}

type Partners struct {
	Team1 []domain.PlayerID `json:"team1"`
	Team2 []domain.PlayerID `json:"team2"`
	// SoloAardvarks stayed out of both teams and play the field average.
	SoloAardvarks []domain.PlayerID `json:"solo_aardvarks,omitempty"`
}

type Solo struct {
	Captain   domain.PlayerID   `json:"captain"`
	Opponents []domain.PlayerID `json:"opponents"`
}

type Pending struct {
	Captain          domain.PlayerID `json:"captain"`
	RequestedPartner domain.PlayerID `json:"requested_partner"`
}

func (Partners) Kind() FormationKind { return FormationPartners }
func (Solo) Kind() FormationKind     { return FormationSolo }
func (Pending) Kind() FormationKind  { return FormationPending }

func (Partners) isTeamFormation() {}
func (Solo) isTeamFormation()     {}
func (Pending) isTeamFormation()  {}

func (p Partners) Players() []domain.PlayerID {
	out := make([]domain.PlayerID, 0, len(p.Team1)+len(p.Team2)+len(p.SoloAardvarks))
	out = append(out, p.Team1...)
	out = append(out, p.Team2...)
	return append(out, p.SoloAardvarks...)
}

func (s Solo) Players() []domain.PlayerID {
	return append([]domain.PlayerID{s.Captain}, s.Opponents...)
}

func (p Pending) Players() []domain.PlayerID {
	return []domain.PlayerID{p.Captain, p.RequestedPartner}
}

func IsFinal(f TeamFormation) bool {
	if f == nil {
		return false
	}
	return f.Kind() != FormationPending
}

// ValidateFinal checks that a finalized formation covers exactly the given
// players with no overlap.
func ValidateFinal(f TeamFormation, players []domain.PlayerID) error {
	if !IsFinal(f) {
		return fmt.Errorf("%w: team formation is not finalized", domain.ErrInvalidStateTransition)
	}
	switch v := f.(type) {
	case Partners:
		if len(v.Team1) == 0 || len(v.Team2) == 0 {
			return fmt.Errorf("%w: partners formation requires two non-empty teams", domain.ErrConfiguration)
		}
	case Solo:
		if v.Captain == "" || len(v.Opponents) == 0 {
			return fmt.Errorf("%w: solo formation requires a captain and opponents", domain.ErrConfiguration)
		}
	}

	want := make(map[domain.PlayerID]struct{}, len(players))
	for _, id := range players {
		want[id] = struct{}{}
	}
	seen := make(map[domain.PlayerID]struct{}, len(players))
	for _, id := range f.Players() {
		if _, ok := want[id]; !ok {
			return fmt.Errorf("%w: %s is not playing this hole", domain.ErrConfiguration, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s appears on more than one side", domain.ErrConfiguration, id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != len(want) {
		return fmt.Errorf("%w: formation covers %d of %d players", domain.ErrConfiguration, len(seen), len(want))
	}
	return nil
}

func CloneFormation(f TeamFormation) TeamFormation {
	switch v := f.(type) {
	case Partners:
		return Partners{
			Team1:         cloneIDs(v.Team1),
			Team2:         cloneIDs(v.Team2),
			SoloAardvarks: cloneIDs(v.SoloAardvarks),
		}
	case Solo:
		return Solo{Captain: v.Captain, Opponents: cloneIDs(v.Opponents)}
	case Pending:
		return v
	default:
		return nil
	}
}

// Envelope carries a TeamFormation through JSON as {"type": ..., ...}.
// A nil formation encodes as null.
type Envelope struct {
	Formation TeamFormation
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Formation == nil {
		return []byte("null"), nil
	}
	switch v := e.Formation.(type) {
	case Partners:
		return json.Marshal(struct {
			Type FormationKind `json:"type"`
			Partners
		}{Type: FormationPartners, Partners: v})
	case Solo:
		return json.Marshal(struct {
			Type FormationKind `json:"type"`
			Solo
		}{Type: FormationSolo, Solo: v})
	case Pending:
		return json.Marshal(struct {
			Type FormationKind `json:"type"`
			Pending
		}{Type: FormationPending, Pending: v})
	default:
		return nil, fmt.Errorf("unknown team formation %T", e.Formation)
	}
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		e.Formation = nil
		return nil
	}
	var head struct {
		Type FormationKind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Type {
	case FormationPartners:
		var v Partners
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Formation = v
	case FormationSolo:
		var v Solo
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Formation = v
	case FormationPending:
		var v Pending
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		e.Formation = v
	default:
		return fmt.Errorf("%w: unknown team formation type %q", domain.ErrConfiguration, head.Type)
	}
	return nil
}

func cloneIDs(ids []domain.PlayerID) []domain.PlayerID {
	if ids == nil {
		return nil
	}
	return append([]domain.PlayerID{}, ids...)
}
