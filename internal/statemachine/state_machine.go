package statemachine

import (
	"encoding/json"
	"fmt"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/rotation"
)

type Phase string

const (
	PhaseAwaitingCaptainDecision Phase = "awaiting_captain_decision"
	PhasePartnershipPending      Phase = "partnership_pending"
	PhaseAardvarkDeciding        Phase = "aardvark_deciding"
	PhaseAardvarkPending         Phase = "aardvark_pending"
	PhaseFinalized               Phase = "finalized"
)

type Team int

const (
	Team1 Team = 1
	Team2 Team = 2
)

func (t Team) other() Team {
	if t == Team1 {
		return Team2
	}
	return Team1
}

type AardvarkRequest struct {
	Aardvark domain.PlayerID `json:"aardvark"`
	Team     Team            `json:"team"`
}

// State is one hole's team formation progress. Transitions never modify
// their input.
type State struct {
	HoleNumber int               `json:"hole_number"`
	Phase      Phase             `json:"phase"`
	Captain    domain.PlayerID   `json:"captain"`
	BaseGroup  []domain.PlayerID `json:"base_group"`
	Aardvarks  []domain.PlayerID `json:"aardvarks,omitempty"`
	// Declined lists partners who turned the captain down this hole.
	Declined []domain.PlayerID `json:"declined,omitempty"`
	// Undecided aardvarks still to choose, in hitting order.
	Undecided       []domain.PlayerID `json:"undecided,omitempty"`
	Team1           []domain.PlayerID `json:"team1,omitempty"`
	Team2           []domain.PlayerID `json:"team2,omitempty"`
	SoloAardvarks   []domain.PlayerID `json:"solo_aardvarks,omitempty"`
	PendingAardvark *AardvarkRequest  `json:"pending_aardvark,omitempty"`
	Formation       TeamFormation     `json:"-"`
}

// Step is the result of a response transition. RejectionPenalty reports a
// declined partnership or a tossed aardvark, which doubles the wager.
type Step struct {
	State            State
	RejectionPenalty bool
}

func Start(rot rotation.State) (State, error) {
	captain := rot.Captain()
	if captain == "" || len(rot.RotationOrder) < domain.MinPlayers {
		return State{}, fmt.Errorf("%w: rotation for hole %d has no captain", domain.ErrConfiguration, rot.HoleNumber)
	}
	return State{
		HoleNumber: rot.HoleNumber,
		Phase:      PhaseAwaitingCaptainDecision,
		Captain:    captain,
		BaseGroup:  rot.BaseGroup(),
		Aardvarks:  cloneIDs(nilIfEmpty(rot.Aardvarks())),
	}, nil
}

func RequestPartner(state State, captain, partner domain.PlayerID) (State, error) {
	if state.Phase != PhaseAwaitingCaptainDecision {
		return State{}, transitionError(state, "request partner")
	}
	if captain != state.Captain {
		return State{}, fmt.Errorf("%w: %s is not the captain of hole %d", domain.ErrInvalidStateTransition, captain, state.HoleNumber)
	}
	if partner == captain {
		return State{}, fmt.Errorf("%w: captain cannot partner with themselves", domain.ErrInvalidStateTransition)
	}
	if !contains(state.BaseGroup, partner) {
		return State{}, fmt.Errorf("%w: %s is not in the hole's base group", domain.ErrInvalidStateTransition, partner)
	}
	if contains(state.Declined, partner) {
		return State{}, fmt.Errorf("%w: %s already declined this hole", domain.ErrInvalidStateTransition, partner)
	}

	next := cloneState(state)
	next.Phase = PhasePartnershipPending
	next.Formation = Pending{Captain: captain, RequestedPartner: partner}
	return next, nil
}

func RespondToPartnership(state State, accept bool) (Step, error) {
	if state.Phase != PhasePartnershipPending {
		return Step{}, transitionError(state, "respond to partnership")
	}
	pending, ok := state.Formation.(Pending)
	if !ok {
		return Step{}, transitionError(state, "respond to partnership")
	}

	next := cloneState(state)
	if !accept {
		next.Phase = PhaseAwaitingCaptainDecision
		next.Formation = nil
		next.Declined = append(next.Declined, pending.RequestedPartner)
		return Step{State: next, RejectionPenalty: true}, nil
	}

	next.Team1 = []domain.PlayerID{pending.Captain, pending.RequestedPartner}
	next.Team2 = nil
	for _, id := range state.BaseGroup {
		if id != pending.Captain && id != pending.RequestedPartner {
			next.Team2 = append(next.Team2, id)
		}
	}
	if len(state.Aardvarks) > 0 {
		next.Phase = PhaseAardvarkDeciding
		next.Undecided = cloneIDs(state.Aardvarks)
		next.Formation = nil
		return Step{State: next}, nil
	}
	return Step{State: finalizePartners(next)}, nil
}

func DeclareSolo(state State, captain domain.PlayerID) (State, error) {
	if state.Phase != PhaseAwaitingCaptainDecision {
		return State{}, transitionError(state, "declare solo")
	}
	if captain != state.Captain {
		return State{}, fmt.Errorf("%w: %s is not the captain of hole %d", domain.ErrInvalidStateTransition, captain, state.HoleNumber)
	}

	var opponents []domain.PlayerID
	for _, id := range state.BaseGroup {
		if id != captain {
			opponents = append(opponents, id)
		}
	}
	opponents = append(opponents, state.Aardvarks...)

	next := cloneState(state)
	next.Phase = PhaseFinalized
	next.Formation = Solo{Captain: captain, Opponents: opponents}
	return next, nil
}

// AardvarkRequestJoin asks a team to take the next undecided aardvark.
func AardvarkRequestJoin(state State, aardvark domain.PlayerID, team Team) (State, error) {
	if state.Phase != PhaseAardvarkDeciding {
		return State{}, transitionError(state, "aardvark join request")
	}
	if err := checkNextAardvark(state, aardvark); err != nil {
		return State{}, err
	}
	if team != Team1 && team != Team2 {
		return State{}, fmt.Errorf("%w: unknown team %d", domain.ErrInvalidStateTransition, team)
	}

	next := cloneState(state)
	next.Phase = PhaseAardvarkPending
	next.PendingAardvark = &AardvarkRequest{Aardvark: aardvark, Team: team}
	return next, nil
}

// RespondToAardvark resolves a join request. A rejected aardvark is tossed to
// the other team.
func RespondToAardvark(state State, accept bool) (Step, error) {
	if state.Phase != PhaseAardvarkPending || state.PendingAardvark == nil {
		return Step{}, transitionError(state, "respond to aardvark")
	}

	req := *state.PendingAardvark
	team := req.Team
	if !accept {
		team = team.other()
	}

	next := cloneState(state)
	next.PendingAardvark = nil
	if team == Team1 {
		next.Team1 = append(next.Team1, req.Aardvark)
	} else {
		next.Team2 = append(next.Team2, req.Aardvark)
	}
	next.Undecided = nilIfEmpty(next.Undecided[1:])
	return Step{State: advanceAardvarks(next), RejectionPenalty: !accept}, nil
}

func AardvarkStaySolo(state State, aardvark domain.PlayerID) (State, error) {
	if state.Phase != PhaseAardvarkDeciding {
		return State{}, transitionError(state, "aardvark stay solo")
	}
	if err := checkNextAardvark(state, aardvark); err != nil {
		return State{}, err
	}

	next := cloneState(state)
	next.SoloAardvarks = append(next.SoloAardvarks, aardvark)
	next.Undecided = nilIfEmpty(next.Undecided[1:])
	return advanceAardvarks(next), nil
}

// NextAardvark returns the aardvark whose decision is due.
func (s State) NextAardvark() (domain.PlayerID, bool) {
	if len(s.Undecided) == 0 {
		return "", false
	}
	return s.Undecided[0], true
}

func (s State) IsFinalized() bool {
	return s.Phase == PhaseFinalized && IsFinal(s.Formation)
}

func (s State) Players() []domain.PlayerID {
	out := append([]domain.PlayerID{}, s.BaseGroup...)
	return append(out, s.Aardvarks...)
}

type stateJSON struct {
	stateAlias
	Formation Envelope `json:"formation"`
}

type stateAlias State

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{stateAlias: stateAlias(s), Formation: Envelope{Formation: s.Formation}})
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = State(raw.stateAlias)
	s.Formation = raw.Formation.Formation
	return nil
}

func advanceAardvarks(state State) State {
	if len(state.Undecided) > 0 {
		state.Phase = PhaseAardvarkDeciding
		return state
	}
	return finalizePartners(state)
}

func finalizePartners(state State) State {
	state.Phase = PhaseFinalized
	state.Formation = Partners{
		Team1:         cloneIDs(state.Team1),
		Team2:         cloneIDs(state.Team2),
		SoloAardvarks: cloneIDs(state.SoloAardvarks),
	}
	return state
}

func checkNextAardvark(state State, aardvark domain.PlayerID) error {
	next, ok := state.NextAardvark()
	if !ok {
		return transitionError(state, "aardvark decision")
	}
	if next != aardvark {
		return fmt.Errorf("%w: %s decides before %s", domain.ErrInvalidStateTransition, next, aardvark)
	}
	return nil
}

func transitionError(state State, action string) error {
	return fmt.Errorf("%w: cannot %s in phase %s", domain.ErrInvalidStateTransition, action, state.Phase)
}

func cloneState(state State) State {
	out := state
	out.BaseGroup = cloneIDs(state.BaseGroup)
	out.Aardvarks = cloneIDs(state.Aardvarks)
	out.Declined = cloneIDs(state.Declined)
	out.Undecided = cloneIDs(state.Undecided)
	out.Team1 = cloneIDs(state.Team1)
	out.Team2 = cloneIDs(state.Team2)
	out.SoloAardvarks = cloneIDs(state.SoloAardvarks)
	out.Formation = CloneFormation(state.Formation)
	if state.PendingAardvark != nil {
		req := *state.PendingAardvark
		out.PendingAardvark = &req
	}
	return out
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	return cloneState(s)
}

func contains(ids []domain.PlayerID, id domain.PlayerID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func nilIfEmpty(ids []domain.PlayerID) []domain.PlayerID {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
