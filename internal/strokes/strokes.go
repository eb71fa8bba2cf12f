package strokes

import (
	"fmt"
	"math"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

const (
	maxFullStrokes        = 2
	maxCreecherHalfHoles  = 6
	handicapResolution    = 10
	halfStrokeFractionMin = 0.5
)

type Allocation struct {
	PlayerID              domain.PlayerID `json:"player_id"`
	CourseHoleStrokeIndex int             `json:"course_hole_stroke_index"`
	FullStrokes           int             `json:"full_strokes"`
	HalfStroke            bool            `json:"half_stroke"`
	TotalStrokes          float64         `json:"total_strokes"`
	// HalfStrokeConflict is set when the next-hole half stroke and a Creecher
	// easy-hole half stroke land on the same hole. Both are counted.
	HalfStrokeConflict bool `json:"half_stroke_conflict,omitempty"`
}

// Allocate computes every player's strokes on one hole relative to the
// field's lowest handicap.
func Allocate(players []domain.Player, hole domain.CourseHole, creecherEnabled bool) (map[domain.PlayerID]Allocation, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("%w: stroke allocation requires players", domain.ErrConfiguration)
	}
	if err := hole.Validate(); err != nil {
		return nil, err
	}

	low := math.Inf(1)
	for _, p := range players {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		low = math.Min(low, p.CourseHandicap)
	}

	out := make(map[domain.PlayerID]Allocation, len(players))
	for _, p := range players {
		alloc := ForRelativeHandicap(p.CourseHandicap, p.CourseHandicap-low, hole.StrokeIndex, creecherEnabled)
		alloc.PlayerID = p.ID
		out[p.ID] = alloc
	}
	return out, nil
}

// ForRelativeHandicap allocates strokes on a hole of the given stroke index
// for a player whose handicap sits relative strokes above the field's best.
// The next-hole half stroke follows the fraction of the player's own handicap.
func ForRelativeHandicap(handicap, relative float64, strokeIndex int, creecherEnabled bool) Allocation {
	handicap = math.Round(handicap*handicapResolution) / handicapResolution
	relative = math.Round(relative*handicapResolution) / handicapResolution
	alloc := Allocation{CourseHoleStrokeIndex: strokeIndex}

	if relative >= float64(strokeIndex) {
		alloc.FullStrokes++
	}
	if relative >= float64(strokeIndex+domain.HolesPerRound) {
		alloc.FullStrokes++
	}

	if creecherEnabled {
		nextHole := nextHalfStroke(handicap, relative, strokeIndex)
		easyHole := creecherHalfStroke(relative, strokeIndex)
		switch {
		case nextHole && easyHole:
			alloc.FullStrokes++
			alloc.HalfStrokeConflict = true
		case nextHole || easyHole:
			alloc.HalfStroke = true
		}
	}

	alloc.FullStrokes = min(alloc.FullStrokes, maxFullStrokes)
	alloc.TotalStrokes = float64(alloc.FullStrokes)
	if alloc.HalfStroke {
		alloc.TotalStrokes += 0.5
	}
	return alloc
}

// nextHalfStroke grants half a stroke on the hole just past the player's full
// allocation when their handicap has a fractional part of at least .5.
func nextHalfStroke(handicap, relative float64, strokeIndex int) bool {
	if handicap-math.Floor(handicap) < halfStrokeFractionMin {
		return false
	}
	return strokeIndex == int(math.Floor(relative))%domain.HolesPerRound+1
}

// creecherHalfStroke grants half strokes on the easiest holes, stroke index 18
// downward, one per full stroke above 18, at most six.
func creecherHalfStroke(relative float64, strokeIndex int) bool {
	if relative <= domain.HolesPerRound {
		return false
	}
	holes := min(int(math.Floor(relative-domain.HolesPerRound)), maxCreecherHalfHoles)
	return strokeIndex > domain.HolesPerRound-holes
}

func NetScore(gross int, alloc Allocation) float64 {
	return float64(gross) - alloc.TotalStrokes
}

// NetScores requires a positive gross score for every allocated player.
func NetScores(gross map[domain.PlayerID]int, allocs map[domain.PlayerID]Allocation) (map[domain.PlayerID]float64, error) {
	out := make(map[domain.PlayerID]float64, len(allocs))
	for id, alloc := range allocs {
		score, ok := gross[id]
		if !ok {
			return nil, fmt.Errorf("%w: missing gross score for %s", domain.ErrConfiguration, id)
		}
		if score <= 0 {
			return nil, fmt.Errorf("%w: gross score for %s must be positive, got %d", domain.ErrConfiguration, id, score)
		}
		out[id] = NetScore(score, alloc)
	}
	for id := range gross {
		if _, ok := allocs[id]; !ok {
			return nil, fmt.Errorf("%w: gross score for unknown player %s", domain.ErrConfiguration, id)
		}
	}
	return out, nil
}

// Totals flattens allocations to the total strokes per player.
func Totals(allocs map[domain.PlayerID]Allocation) map[domain.PlayerID]float64 {
	out := make(map[domain.PlayerID]float64, len(allocs))
	for id, alloc := range allocs {
		out[id] = alloc.TotalStrokes
	}
	return out
}
