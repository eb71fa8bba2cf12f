package rotation

import (
	cryptorand "crypto/rand"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
)

// Shuffler draws the hole 1 tee order.
type Shuffler interface {
	Shuffle([]domain.PlayerID) error
}

type cryptoShuffler struct{}

type seededShuffler struct {
	rng *rand.Rand
}

func NewCryptoShuffler() Shuffler {
	return cryptoShuffler{}
}

func NewSeededShuffler(seed int64) Shuffler {
	return seededShuffler{rng: rand.New(rand.NewSource(seed))}
}

func (s cryptoShuffler) Shuffle(ids []domain.PlayerID) error {
	for i := len(ids) - 1; i > 0; i-- {
		n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return fmt.Errorf("crypto shuffle failed: %w", err)
		}
		j := int(n.Int64())
		ids[i], ids[j] = ids[j], ids[i]
	}
	return nil
}

func (s seededShuffler) Shuffle(ids []domain.PlayerID) error {
	s.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
	return nil
}

// FirstTeeOrder fixes the seat order for the round. A nil shuffler keeps the
// roster order.
func FirstTeeOrder(players []domain.PlayerID, shuffler Shuffler) ([]domain.PlayerID, error) {
	if err := validatePlayers(players); err != nil {
		return nil, err
	}
	order := append([]domain.PlayerID(nil), players...)
	if shuffler == nil {
		return order, nil
	}
	if err := shuffler.Shuffle(order); err != nil {
		return nil, err
	}
	return order, nil
}
