package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	HolesPerRound            = 18
	MinPlayers               = 4
	MaxPlayers               = 6
	BaseGroupSize            = 4
	MaxCourseHandicap        = 36.0
	DefaultBaseWager         = 1
	DefaultVinniesStartHole  = 13
	DefaultVinniesMultiplier = 2
)

var (
	ErrConfiguration          = errors.New("configuration error")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAlreadyUsed            = errors.New("special already used this round")
	ErrSettlementInvariant    = errors.New("settlement invariant violation")
)

type Special string

const (
	SpecialFloat  Special = "float"
	SpecialOption Special = "option"
	SpecialDuncan Special = "duncan"
)

// AlreadyUsedError reports a once-per-round special that the player has
// already spent. It matches ErrAlreadyUsed under errors.Is.
type AlreadyUsedError struct {
	PlayerID PlayerID
	Special  Special
	Hole     int
}

func (e *AlreadyUsedError) Error() string {
	return fmt.Sprintf("%s already used by %s on hole %d", e.Special, e.PlayerID, e.Hole)
}

func (e *AlreadyUsedError) Unwrap() error {
	return ErrAlreadyUsed
}

type PlayerID string

type Player struct {
	ID             PlayerID `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	CourseHandicap float64  `json:"course_handicap" yaml:"course_handicap"`
}

func NewPlayer(id PlayerID, name string, courseHandicap float64) (Player, error) {
	p := Player{ID: id, Name: name, CourseHandicap: courseHandicap}
	if err := p.Validate(); err != nil {
		return Player{}, err
	}
	return p, nil
}

func (p Player) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return fmt.Errorf("%w: player id is required", ErrConfiguration)
	}
	if p.CourseHandicap < 0 || p.CourseHandicap > MaxCourseHandicap {
		return fmt.Errorf("%w: player %s course handicap must be in range 0..=%v, got %v", ErrConfiguration, p.ID, MaxCourseHandicap, p.CourseHandicap)
	}
	return nil
}

// ValidateRoster checks player count and identity uniqueness for a round.
func ValidateRoster(players []Player) error {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return fmt.Errorf("%w: round requires %d..=%d players, got %d", ErrConfiguration, MinPlayers, MaxPlayers, len(players))
	}
	seen := make(map[PlayerID]struct{}, len(players))
	for _, p := range players {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("%w: duplicate player id %s", ErrConfiguration, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func PlayerIDs(players []Player) []PlayerID {
	out := make([]PlayerID, 0, len(players))
	for _, p := range players {
		out = append(out, p.ID)
	}
	return out
}

func ValidateHoleNumber(hole int) error {
	if hole < 1 || hole > HolesPerRound {
		return fmt.Errorf("%w: hole number must be in range 1..=%d, got %d", ErrConfiguration, HolesPerRound, hole)
	}
	return nil
}

type CourseHole struct {
	HoleNumber  int `json:"hole_number" yaml:"hole"`
	Par         int `json:"par" yaml:"par"`
	StrokeIndex int `json:"stroke_index" yaml:"stroke_index"`
}

func (h CourseHole) Validate() error {
	if err := ValidateHoleNumber(h.HoleNumber); err != nil {
		return err
	}
	if h.Par < 3 || h.Par > 6 {
		return fmt.Errorf("%w: hole %d par must be in range 3..=6, got %d", ErrConfiguration, h.HoleNumber, h.Par)
	}
	if h.StrokeIndex < 1 || h.StrokeIndex > HolesPerRound {
		return fmt.Errorf("%w: hole %d stroke index must be in range 1..=%d, got %d", ErrConfiguration, h.HoleNumber, HolesPerRound, h.StrokeIndex)
	}
	return nil
}

type Course struct {
	Name  string       `json:"name" yaml:"name"`
	Holes []CourseHole `json:"holes" yaml:"holes"`
}

// Validate requires exactly 18 holes where both hole numbers and stroke
// indexes are permutations of 1..18.
func (c Course) Validate() error {
	if len(c.Holes) != HolesPerRound {
		return fmt.Errorf("%w: course must have %d holes, got %d", ErrConfiguration, HolesPerRound, len(c.Holes))
	}
	holes := make(map[int]struct{}, HolesPerRound)
	indexes := make(map[int]struct{}, HolesPerRound)
	for _, h := range c.Holes {
		if err := h.Validate(); err != nil {
			return err
		}
		if _, ok := holes[h.HoleNumber]; ok {
			return fmt.Errorf("%w: duplicate hole number %d", ErrConfiguration, h.HoleNumber)
		}
		if _, ok := indexes[h.StrokeIndex]; ok {
			return fmt.Errorf("%w: duplicate stroke index %d", ErrConfiguration, h.StrokeIndex)
		}
		holes[h.HoleNumber] = struct{}{}
		indexes[h.StrokeIndex] = struct{}{}
	}
	return nil
}

func (c Course) Hole(number int) (CourseHole, error) {
	for _, h := range c.Holes {
		if h.HoleNumber == number {
			return h, nil
		}
	}
	return CourseHole{}, fmt.Errorf("%w: course has no hole %d", ErrConfiguration, number)
}

// CarryOverPolicy decides how halved holes feed the next hole's multiplier.
type CarryOverPolicy string

const (
	CarryOverNone      CarryOverPolicy = "none"
	CarryOverIncrement CarryOverPolicy = "increment"
	CarryOverDouble    CarryOverPolicy = "double"
)

type RoundConfig struct {
	BaseWager         int             `json:"base_wager" yaml:"base_wager"`
	CreecherEnabled   bool            `json:"creecher_enabled" yaml:"creecher_enabled"`
	CarryOverPolicy   CarryOverPolicy `json:"carry_over_policy" yaml:"carry_over_policy"`
	VinniesEnabled    bool            `json:"vinnies_enabled" yaml:"vinnies_enabled"`
	VinniesStartHole  int             `json:"vinnies_start_hole" yaml:"vinnies_start_hole"`
	VinniesMultiplier int             `json:"vinnies_multiplier" yaml:"vinnies_multiplier"`
	AutoOption        bool            `json:"auto_option" yaml:"auto_option"`
	RandomizeFirstTee bool            `json:"randomize_first_tee" yaml:"randomize_first_tee"`
	Seed              int64           `json:"seed" yaml:"seed"`
}

func DefaultRoundConfig() RoundConfig {
	return RoundConfig{
		BaseWager:         DefaultBaseWager,
		CreecherEnabled:   true,
		CarryOverPolicy:   CarryOverNone,
		VinniesEnabled:    true,
		VinniesStartHole:  DefaultVinniesStartHole,
		VinniesMultiplier: DefaultVinniesMultiplier,
	}
}

func (c RoundConfig) Validate() error {
	if c.BaseWager <= 0 {
		return fmt.Errorf("%w: base wager must be positive, got %d", ErrConfiguration, c.BaseWager)
	}
	switch c.CarryOverPolicy {
	case CarryOverNone, CarryOverIncrement, CarryOverDouble:
	default:
		return fmt.Errorf("%w: unknown carry over policy %q", ErrConfiguration, c.CarryOverPolicy)
	}
	if c.VinniesEnabled {
		if err := ValidateHoleNumber(c.VinniesStartHole); err != nil {
			return fmt.Errorf("vinnies start hole: %w", err)
		}
		if c.VinniesMultiplier < 2 {
			return fmt.Errorf("%w: vinnies multiplier must be at least 2, got %d", ErrConfiguration, c.VinniesMultiplier)
		}
	}
	return nil
}
