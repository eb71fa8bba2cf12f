package settlement

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/betting"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
	"github.com/shopspring/decimal"
)

type HoleRecord struct {
	Hole              int                         `json:"hole"`
	Par               int                         `json:"par"`
	RotationOrder     []domain.PlayerID           `json:"rotation_order"`
	Teams             statemachine.TeamFormation  `json:"-"`
	GrossScores       map[domain.PlayerID]int     `json:"gross_scores"`
	StrokeAllocations map[domain.PlayerID]float64 `json:"stroke_allocations"`
	NetScores         map[domain.PlayerID]float64 `json:"net_scores"`
	Wager             int                         `json:"wager"`
	Quarters          map[domain.PlayerID]float64 `json:"quarters"`
	Duncan            bool                        `json:"duncan,omitempty"`
	Forfeit           *betting.Forfeit            `json:"forfeit,omitempty"`
	Halved            bool                        `json:"halved,omitempty"`
	Notes             string                      `json:"notes,omitempty"`
}

type holeRecordAlias HoleRecord

type holeRecordJSON struct {
	holeRecordAlias
	Teams statemachine.Envelope `json:"teams"`
}

func (r HoleRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(holeRecordJSON{holeRecordAlias: holeRecordAlias(r), Teams: statemachine.Envelope{Formation: r.Teams}})
}

func (r *HoleRecord) UnmarshalJSON(data []byte) error {
	var raw holeRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = HoleRecord(raw.holeRecordAlias)
	r.Teams = raw.Teams.Formation
	return nil
}

func (r HoleRecord) Clone() HoleRecord {
	out := r
	out.RotationOrder = append([]domain.PlayerID(nil), r.RotationOrder...)
	out.Teams = statemachine.CloneFormation(r.Teams)
	out.GrossScores = cloneMap(r.GrossScores)
	out.StrokeAllocations = cloneMap(r.StrokeAllocations)
	out.NetScores = cloneMap(r.NetScores)
	out.Quarters = cloneMap(r.Quarters)
	if r.Forfeit != nil {
		f := *r.Forfeit
		f.DeclinedBy = append([]domain.PlayerID(nil), r.Forfeit.DeclinedBy...)
		out.Forfeit = &f
	}
	return out
}

// Input rebuilds the settlement input the record was settled from.
func (r HoleRecord) Input() Input {
	return Input{
		Formation: statemachine.CloneFormation(r.Teams),
		NetScores: cloneMap(r.NetScores),
		Wager:     r.Wager,
		Duncan:    r.Duncan,
		Forfeit:   r.Clone().Forfeit,
	}
}

// Ledger is the ordered history of settled holes. Standings are always
// recomputed from the full history.
type Ledger struct {
	records []HoleRecord
}

func NewLedger(records []HoleRecord) (*Ledger, error) {
	l := &Ledger{}
	sorted := make([]HoleRecord, 0, len(records))
	for _, rec := range records {
		sorted = append(sorted, rec.Clone())
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Hole < sorted[j].Hole })
	for _, rec := range sorted {
		if err := l.Record(rec); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Record appends a newly settled hole. Holes must arrive in increasing order.
func (l *Ledger) Record(rec HoleRecord) error {
	if err := domain.ValidateHoleNumber(rec.Hole); err != nil {
		return err
	}
	if n := len(l.records); n > 0 && l.records[n-1].Hole >= rec.Hole {
		return fmt.Errorf("%w: hole %d recorded after hole %d", domain.ErrInvalidStateTransition, rec.Hole, l.records[n-1].Hole)
	}
	if err := CheckZeroSum(rec.Quarters); err != nil {
		return fmt.Errorf("hole %d: %w", rec.Hole, err)
	}
	l.records = append(l.records, rec.Clone())
	return nil
}

// Resettle re-runs settlement for a recorded hole with new teams, scores or
// wager and replaces its record. Other holes are untouched.
func (l *Ledger) Resettle(hole int, in Input) (HoleRecord, error) {
	idx := l.index(hole)
	if idx < 0 {
		return HoleRecord{}, fmt.Errorf("%w: hole %d has not been settled", domain.ErrInvalidStateTransition, hole)
	}
	current := l.records[idx]
	if err := statemachine.ValidateFinal(in.Formation, current.RotationOrder); err != nil {
		return HoleRecord{}, err
	}
	outcome, err := Settle(in)
	if err != nil {
		return HoleRecord{}, err
	}

	next := current.Clone()
	next.Teams = statemachine.CloneFormation(in.Formation)
	next.NetScores = cloneMap(in.NetScores)
	next.Wager = in.Wager
	next.Duncan = in.Duncan
	next.Quarters = outcome.Quarters
	next.Halved = outcome.Halved
	next.Forfeit = nil
	if in.Forfeit != nil {
		f := *in.Forfeit
		next.Forfeit = &f
	}
	l.records[idx] = next
	return next.Clone(), nil
}

// Replace swaps in a fully rebuilt record for an already settled hole.
func (l *Ledger) Replace(rec HoleRecord) error {
	idx := l.index(rec.Hole)
	if idx < 0 {
		return fmt.Errorf("%w: hole %d has not been settled", domain.ErrInvalidStateTransition, rec.Hole)
	}
	if err := CheckZeroSum(rec.Quarters); err != nil {
		return fmt.Errorf("hole %d: %w", rec.Hole, err)
	}
	l.records[idx] = rec.Clone()
	return nil
}

func (l *Ledger) UndoLast() (HoleRecord, error) {
	if len(l.records) == 0 {
		return HoleRecord{}, fmt.Errorf("%w: no settled holes to undo", domain.ErrInvalidStateTransition)
	}
	last := l.records[len(l.records)-1]
	l.records = l.records[:len(l.records)-1]
	return last, nil
}

func (l *Ledger) Get(hole int) (HoleRecord, bool) {
	idx := l.index(hole)
	if idx < 0 {
		return HoleRecord{}, false
	}
	return l.records[idx].Clone(), true
}

func (l *Ledger) Records() []HoleRecord {
	out := make([]HoleRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec.Clone())
	}
	return out
}

func (l *Ledger) Clone() *Ledger {
	return &Ledger{records: l.Records()}
}

func (l *Ledger) Len() int {
	return len(l.records)
}

func (l *Ledger) Standings() map[domain.PlayerID]float64 {
	return l.StandingsThrough(domain.HolesPerRound)
}

// StandingsThrough sums quarters over every hole up to and including hole.
func (l *Ledger) StandingsThrough(hole int) map[domain.PlayerID]float64 {
	totals := make(map[domain.PlayerID]decimal.Decimal)
	for _, rec := range l.records {
		if rec.Hole > hole {
			break
		}
		for id, q := range rec.Quarters {
			totals[id] = totals[id].Add(decimal.NewFromFloat(q))
		}
	}
	out := make(map[domain.PlayerID]float64, len(totals))
	for id, total := range totals {
		out[id] = total.InexactFloat64()
	}
	return out
}

// TrailingHalved counts consecutive halved holes at the end of the history.
func (l *Ledger) TrailingHalved() int {
	count := 0
	for i := len(l.records) - 1; i >= 0; i-- {
		if !l.records[i].Halved {
			break
		}
		count++
	}
	return count
}

func (l *Ledger) index(hole int) int {
	for i, rec := range l.records {
		if rec.Hole == hole {
			return i
		}
	}
	return -1
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
