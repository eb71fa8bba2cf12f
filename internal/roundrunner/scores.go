package roundrunner

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

// scoreSpread is the relative-to-par distribution for a scratch player:
// one birdie, five pars, three bogeys and one double in ten.
var scoreSpread = [...]int{-1, 0, 0, 0, 0, 0, 1, 1, 1, 2}

// SimulatedScores draws gross scores around par, adding each player's
// strokes on the hole so handicaps roughly net out.
type SimulatedScores struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedScores(seed int64) *SimulatedScores {
	return &SimulatedScores{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimulatedScores) Scores(ctx context.Context, req ScoreRequest) (map[domain.PlayerID]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.PlayerID]int, len(req.Players))
	for _, id := range req.Players {
		strokes := int(math.Floor(req.Allocations[id].TotalStrokes))
		gross := req.Hole.Par + strokes + scoreSpread[s.rng.Intn(len(scoreSpread))]
		out[id] = max(gross, 1)
	}
	return out, nil
}
