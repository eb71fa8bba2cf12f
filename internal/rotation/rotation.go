package rotation

import (
	"fmt"
	"sort"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

type State struct {
	HoleNumber          int               `json:"hole_number"`
	RotationOrder       []domain.PlayerID `json:"rotation_order"`
	CaptainIndex        int               `json:"captain_index"`
	IsHoepfingerPhase   bool              `json:"is_hoepfinger_phase"`
	HoepfingerStartHole int               `json:"hoepfinger_start_hole"`
	GoatPlayerIndex     *int              `json:"goat_player_index"`
	GoatPlayerID        domain.PlayerID   `json:"goat_player_id,omitempty"`
	AardvarkIndexes     []int             `json:"aardvark_indexes,omitempty"`
	InvisibleAardvark   bool              `json:"invisible_aardvark"`
}

type Input struct {
	HoleNumber int
	// Players is the round's first-tee order.
	Players []domain.PlayerID
	Prior   *State
	// Standings orders the Hoepfinger phase; missing players count as zero.
	Standings map[domain.PlayerID]float64
	// PhaseStartStandings, when set, are the standings at the end of the hole
	// before Hoepfinger began and decide the Goat.
	PhaseStartStandings map[domain.PlayerID]float64
}

// HoepfingerStartHole returns the first Hoepfinger hole for the player count.
func HoepfingerStartHole(playerCount int) (int, error) {
	switch playerCount {
	case 4:
		return 17, nil
	case 5:
		return 16, nil
	case 6:
		return 13, nil
	default:
		return 0, fmt.Errorf("%w: no hoepfinger schedule for %d players", domain.ErrConfiguration, playerCount)
	}
}

func Compute(input Input) (State, error) {
	if err := domain.ValidateHoleNumber(input.HoleNumber); err != nil {
		return State{}, err
	}
	if err := validatePlayers(input.Players); err != nil {
		return State{}, err
	}
	n := len(input.Players)
	if input.Prior != nil && len(input.Prior.RotationOrder) != n {
		return State{}, fmt.Errorf("%w: roster has %d players but prior rotation has %d", domain.ErrConfiguration, n, len(input.Prior.RotationOrder))
	}
	start, err := HoepfingerStartHole(n)
	if err != nil {
		return State{}, err
	}

	state := State{
		HoleNumber:          input.HoleNumber,
		HoepfingerStartHole: start,
		InvisibleAardvark:   n == 5,
	}

	if input.HoleNumber >= start {
		goat := pickGoat(input)
		state.IsHoepfingerPhase = true
		state.RotationOrder = standingsOrder(input.Players, input.Standings, goat)
		goatIdx := n - 1
		state.GoatPlayerIndex = &goatIdx
		state.GoatPlayerID = goat
	} else {
		shift := (input.HoleNumber - 1) % n
		order := make([]domain.PlayerID, 0, n)
		order = append(order, input.Players[shift:]...)
		order = append(order, input.Players[:shift]...)
		state.RotationOrder = order
	}

	for i := domain.BaseGroupSize; i < n; i++ {
		state.AardvarkIndexes = append(state.AardvarkIndexes, i)
	}
	return state, nil
}

func pickGoat(input Input) domain.PlayerID {
	if input.PhaseStartStandings != nil {
		return lowest(input.Players, input.PhaseStartStandings)
	}
	if input.Prior != nil && input.Prior.IsHoepfingerPhase && input.Prior.GoatPlayerID != "" {
		return input.Prior.GoatPlayerID
	}
	return lowest(input.Players, input.Standings)
}

// lowest returns the worst-standing player; ties go to the earlier tee position.
func lowest(players []domain.PlayerID, standings map[domain.PlayerID]float64) domain.PlayerID {
	goat := players[0]
	for _, id := range players[1:] {
		if standings[id] < standings[goat] {
			goat = id
		}
	}
	return goat
}

func standingsOrder(players []domain.PlayerID, standings map[domain.PlayerID]float64, goat domain.PlayerID) []domain.PlayerID {
	order := make([]domain.PlayerID, 0, len(players))
	for _, id := range players {
		if id != goat {
			order = append(order, id)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return standings[order[i]] < standings[order[j]]
	})
	return append(order, goat)
}

func validatePlayers(players []domain.PlayerID) error {
	if len(players) < domain.MinPlayers || len(players) > domain.MaxPlayers {
		return fmt.Errorf("%w: rotation requires %d..=%d players, got %d", domain.ErrConfiguration, domain.MinPlayers, domain.MaxPlayers, len(players))
	}
	seen := make(map[domain.PlayerID]struct{}, len(players))
	for _, id := range players {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate player %s in rotation", domain.ErrConfiguration, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (s State) Captain() domain.PlayerID {
	if s.CaptainIndex < 0 || s.CaptainIndex >= len(s.RotationOrder) {
		return ""
	}
	return s.RotationOrder[s.CaptainIndex]
}

// BaseGroup is the four-player core of the hole; aardvarks hit after it.
func (s State) BaseGroup() []domain.PlayerID {
	n := min(domain.BaseGroupSize, len(s.RotationOrder))
	return append([]domain.PlayerID(nil), s.RotationOrder[:n]...)
}

func (s State) Aardvarks() []domain.PlayerID {
	out := make([]domain.PlayerID, 0, len(s.AardvarkIndexes))
	for _, idx := range s.AardvarkIndexes {
		out = append(out, s.RotationOrder[idx])
	}
	return out
}

func (s State) Contains(id domain.PlayerID) bool {
	for _, p := range s.RotationOrder {
		if p == id {
			return true
		}
	}
	return false
}

func (s State) Goat() (domain.PlayerID, bool) {
	if s.GoatPlayerIndex == nil {
		return "", false
	}
	return s.RotationOrder[*s.GoatPlayerIndex], true
}

func (s State) Clone() State {
	out := s
	out.RotationOrder = append([]domain.PlayerID(nil), s.RotationOrder...)
	out.AardvarkIndexes = append([]int(nil), s.AardvarkIndexes...)
	if s.GoatPlayerIndex != nil {
		idx := *s.GoatPlayerIndex
		out.GoatPlayerIndex = &idx
	}
	return out
}
