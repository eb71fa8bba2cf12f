package settlement

import (
	"fmt"
	"math"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/betting"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
	"github.com/shopspring/decimal"
)

const (
	ZeroSumTolerance = 1e-9
	sharePlaces      = 10
)

var duncanStake = decimal.NewFromFloat(1.5)

type Input struct {
	Formation statemachine.TeamFormation
	NetScores map[domain.PlayerID]float64
	Wager     int
	Duncan    bool
	Forfeit   *betting.Forfeit
}

type Outcome struct {
	Quarters map[domain.PlayerID]float64
	// Halved is set when no quarters changed hands on a played hole.
	Halved bool
}

// Settle distributes the hole's wager. The result always sums to zero or an
// ErrSettlementInvariant is returned.
func Settle(in Input) (Outcome, error) {
	if in.Wager <= 0 {
		return Outcome{}, fmt.Errorf("%w: wager must be positive, got %d", domain.ErrConfiguration, in.Wager)
	}
	if !statemachine.IsFinal(in.Formation) {
		return Outcome{}, fmt.Errorf("%w: cannot settle an unfinished team formation", domain.ErrInvalidStateTransition)
	}
	players := in.Formation.Players()
	if in.Forfeit == nil {
		for _, id := range players {
			if _, ok := in.NetScores[id]; !ok {
				return Outcome{}, fmt.Errorf("%w: missing net score for %s", domain.ErrConfiguration, id)
			}
		}
	}

	ledger := make(map[domain.PlayerID]decimal.Decimal, len(players))
	for _, id := range players {
		ledger[id] = decimal.Zero
	}
	wager := decimal.NewFromInt(int64(in.Wager))

	switch f := in.Formation.(type) {
	case statemachine.Partners:
		if err := settlePartners(ledger, f, in, wager); err != nil {
			return Outcome{}, err
		}
	case statemachine.Solo:
		if err := settleSolo(ledger, f, in, wager); err != nil {
			return Outcome{}, err
		}
	default:
		return Outcome{}, fmt.Errorf("%w: unsupported formation %T", domain.ErrInvalidStateTransition, in.Formation)
	}

	return finish(ledger, in.Forfeit == nil)
}

func settlePartners(ledger map[domain.PlayerID]decimal.Decimal, f statemachine.Partners, in Input, wager decimal.Decimal) error {
	if in.Duncan {
		return fmt.Errorf("%w: duncan only applies to solo holes", domain.ErrInvalidStateTransition)
	}

	if in.Forfeit != nil {
		switch {
		case contains(f.Team1, in.Forfeit.OfferedBy):
			payTeams(ledger, f.Team1, f.Team2, wager)
		case contains(f.Team2, in.Forfeit.OfferedBy):
			payTeams(ledger, f.Team2, f.Team1, wager)
		case contains(f.SoloAardvarks, in.Forfeit.OfferedBy):
			payField(ledger, in.Forfeit.OfferedBy, f.Players(), wager, 1)
		default:
			return fmt.Errorf("%w: forfeit offered by %s who is not in the hole", domain.ErrConfiguration, in.Forfeit.OfferedBy)
		}
		return nil
	}

	best1 := bestBall(f.Team1, in.NetScores)
	best2 := bestBall(f.Team2, in.NetScores)
	switch {
	case best1 < best2:
		payTeams(ledger, f.Team1, f.Team2, wager)
	case best2 < best1:
		payTeams(ledger, f.Team2, f.Team1, wager)
	}

	for _, aardvark := range f.SoloAardvarks {
		own := decimal.NewFromFloat(in.NetScores[aardvark])
		field := fieldAverage(aardvark, f.Players(), in.NetScores)
		switch {
		case own.LessThan(field):
			payField(ledger, aardvark, f.Players(), wager, 1)
		case own.GreaterThan(field):
			payField(ledger, aardvark, f.Players(), wager, -1)
		}
	}
	return nil
}

func settleSolo(ledger map[domain.PlayerID]decimal.Decimal, f statemachine.Solo, in Input, wager decimal.Decimal) error {
	stake := wager
	if in.Duncan {
		stake = wager.Mul(duncanStake)
	}

	if in.Forfeit != nil {
		sign := int64(-1)
		switch {
		case in.Forfeit.OfferedBy == f.Captain:
			sign = 1
		case contains(f.Opponents, in.Forfeit.OfferedBy):
		default:
			return fmt.Errorf("%w: forfeit offered by %s who is not in the hole", domain.ErrConfiguration, in.Forfeit.OfferedBy)
		}
		for _, opp := range f.Opponents {
			transfer(ledger, f.Captain, opp, stake.Mul(decimal.NewFromInt(sign)))
		}
		return nil
	}

	captain := in.NetScores[f.Captain]
	for _, opp := range f.Opponents {
		theirs := in.NetScores[opp]
		switch {
		case captain < theirs:
			transfer(ledger, f.Captain, opp, stake)
		case theirs < captain:
			transfer(ledger, f.Captain, opp, stake.Neg())
		}
	}
	return nil
}

// payTeams moves the wager from losers to winners, each side splitting it
// evenly.
func payTeams(ledger map[domain.PlayerID]decimal.Decimal, winners, losers []domain.PlayerID, wager decimal.Decimal) {
	win := share(wager, len(winners))
	lose := share(wager, len(losers))
	for _, id := range winners {
		ledger[id] = ledger[id].Add(win)
	}
	for _, id := range losers {
		ledger[id] = ledger[id].Sub(lose)
	}
}

// payField settles a solo aardvark against everyone else in the hole. A
// positive sign means the aardvark won.
func payField(ledger map[domain.PlayerID]decimal.Decimal, aardvark domain.PlayerID, players []domain.PlayerID, wager decimal.Decimal, sign int64) {
	amount := wager.Mul(decimal.NewFromInt(sign))
	each := share(amount, len(players)-1)
	ledger[aardvark] = ledger[aardvark].Add(amount)
	for _, id := range players {
		if id != aardvark {
			ledger[id] = ledger[id].Sub(each)
		}
	}
}

// transfer pays amount from loser to winner; a negative amount reverses it.
func transfer(ledger map[domain.PlayerID]decimal.Decimal, winner, loser domain.PlayerID, amount decimal.Decimal) {
	ledger[winner] = ledger[winner].Add(amount)
	ledger[loser] = ledger[loser].Sub(amount)
}

func share(amount decimal.Decimal, n int) decimal.Decimal {
	return amount.DivRound(decimal.NewFromInt(int64(n)), sharePlaces)
}

func bestBall(team []domain.PlayerID, net map[domain.PlayerID]float64) float64 {
	best := math.Inf(1)
	for _, id := range team {
		best = math.Min(best, net[id])
	}
	return best
}

func fieldAverage(aardvark domain.PlayerID, players []domain.PlayerID, net map[domain.PlayerID]float64) decimal.Decimal {
	total := decimal.Zero
	count := 0
	for _, id := range players {
		if id == aardvark {
			continue
		}
		total = total.Add(decimal.NewFromFloat(net[id]))
		count++
	}
	return total.DivRound(decimal.NewFromInt(int64(count)), sharePlaces)
}

func finish(ledger map[domain.PlayerID]decimal.Decimal, played bool) (Outcome, error) {
	quarters := make(map[domain.PlayerID]float64, len(ledger))
	sum := decimal.Zero
	moved := false
	for id, amount := range ledger {
		sum = sum.Add(amount)
		quarters[id] = amount.InexactFloat64()
		if !amount.IsZero() {
			moved = true
		}
	}
	if err := CheckZeroSum(quarters); err != nil {
		return Outcome{}, err
	}
	if math.Abs(sum.InexactFloat64()) > ZeroSumTolerance {
		return Outcome{}, fmt.Errorf("%w: quarters sum to %s", domain.ErrSettlementInvariant, sum.String())
	}
	return Outcome{Quarters: quarters, Halved: played && !moved}, nil
}

// CheckZeroSum verifies a quarter distribution sums to zero within tolerance.
func CheckZeroSum(quarters map[domain.PlayerID]float64) error {
	sum := decimal.Zero
	for _, q := range quarters {
		sum = sum.Add(decimal.NewFromFloat(q))
	}
	if math.Abs(sum.InexactFloat64()) > ZeroSumTolerance {
		return fmt.Errorf("%w: quarters sum to %s", domain.ErrSettlementInvariant, sum.String())
	}
	return nil
}

func contains(ids []domain.PlayerID, id domain.PlayerID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
