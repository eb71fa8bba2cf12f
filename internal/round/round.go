package round

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/betting"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/rotation"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/settlement"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/strokes"
)

var ErrRoundComplete = errors.New("round complete")

type NewInput struct {
	ID      string
	Config  domain.RoundConfig
	Course  domain.Course
	Players []domain.Player
}

type Option func(*Round)

func WithClock(clock func() time.Time) Option {
	return func(r *Round) {
		if clock != nil {
			r.clock = clock
		}
	}
}

func WithOfferIDs(next func() string) Option {
	return func(r *Round) {
		if next != nil {
			r.newOfferID = next
		}
	}
}

// WithShuffler overrides how the first tee order is drawn when the round
// config asks for a random order.
func WithShuffler(shuffler rotation.Shuffler) Option {
	return func(r *Round) {
		r.shuffler = shuffler
	}
}

// Round is one 18-hole game. It is not safe for concurrent use; hosts must
// serialize calls per round.
type Round struct {
	id              string
	config          domain.RoundConfig
	course          domain.Course
	players         []domain.Player
	firstTee        []domain.PlayerID
	hoepfingerStart int

	currentHole int
	complete    bool
	rotation    rotation.State
	formation   statemachine.State
	betting     betting.State
	ledger      *settlement.Ledger

	clock      func() time.Time
	newOfferID func() string
	shuffler   rotation.Shuffler
}

type holeState struct {
	rotation  rotation.State
	formation statemachine.State
	betting   betting.State
}

// HoleEdit revises a settled hole. Nil fields keep the recorded value.
type HoleEdit struct {
	Formation   statemachine.TeamFormation
	GrossScores map[domain.PlayerID]int
	Wager       *int
	Duncan      *bool
	Notes       *string
}

func New(input NewInput, opts ...Option) (*Round, error) {
	r, err := newRound(input.ID, input.Config, input.Course, input.Players, opts)
	if err != nil {
		return nil, err
	}

	var shuffler rotation.Shuffler
	if r.config.RandomizeFirstTee {
		shuffler = r.shuffler
		if shuffler == nil {
			shuffler = rotation.NewSeededShuffler(r.config.Seed)
		}
	}
	r.firstTee, err = rotation.FirstTeeOrder(domain.PlayerIDs(r.players), shuffler)
	if err != nil {
		return nil, err
	}

	bet, err := betting.NewState(r.config.BaseWager, r.config.VinniesMultiplier)
	if err != nil {
		return nil, err
	}
	r.ledger = &settlement.Ledger{}
	hole, err := r.prepareHole(1, r.ledger, nil, bet)
	if err != nil {
		return nil, err
	}
	r.enter(1, hole)
	return r, nil
}

func newRound(id string, cfg domain.RoundConfig, course domain.Course, players []domain.Player, opts []Option) (*Round, error) {
	if cfg.VinniesMultiplier == 0 {
		cfg.VinniesMultiplier = domain.DefaultVinniesMultiplier
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := course.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateRoster(players); err != nil {
		return nil, err
	}
	start, err := rotation.HoepfingerStartHole(len(players))
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	r := &Round{
		id:              id,
		config:          cfg,
		course:          cloneCourse(course),
		players:         append([]domain.Player(nil), players...),
		hoepfingerStart: start,
		clock:           func() time.Time { return time.Now().UTC() },
		newOfferID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Round) ID() string { return r.id }
func (r *Round) Config() domain.RoundConfig { return r.config }
func (r *Round) CurrentHole() int { return r.currentHole }
func (r *Round) IsComplete() bool { return r.complete }
func (r *Round) HoepfingerStartHole() int { return r.hoepfingerStart }
func (r *Round) Rotation() rotation.State { return r.rotation.Clone() }
func (r *Round) Formation() statemachine.State { return r.formation.Clone() }
func (r *Round) Betting() betting.State { return r.betting.Clone() }
func (r *Round) Holes() []settlement.HoleRecord { return r.ledger.Records() }

func (r *Round) Players() []domain.Player {
	return append([]domain.Player(nil), r.players...)
}

func (r *Round) Course() domain.Course {
	return cloneCourse(r.course)
}

func (r *Round) FirstTeeOrder() []domain.PlayerID {
	return append([]domain.PlayerID(nil), r.firstTee...)
}

func (r *Round) Hole(number int) (settlement.HoleRecord, bool) {
	return r.ledger.Get(number)
}

// Standings sums every settled hole. Players without a result show zero.
func (r *Round) Standings() map[domain.PlayerID]float64 {
	return r.withAllPlayers(r.ledger.Standings())
}

// Allocations returns stroke allocations for the hole being played.
func (r *Round) Allocations() (map[domain.PlayerID]strokes.Allocation, error) {
	hole, err := r.course.Hole(r.currentHole)
	if err != nil {
		return nil, err
	}
	return strokes.Allocate(r.players, hole, r.config.CreecherEnabled)
}

func (r *Round) RequestPartner(captain, partner domain.PlayerID) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	next, err := statemachine.RequestPartner(r.formation, captain, partner)
	if err != nil {
		return err
	}
	r.formation = next
	return nil
}

func (r *Round) RespondToPartnership(accept bool) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	step, err := statemachine.RespondToPartnership(r.formation, accept)
	if err != nil {
		return err
	}
	return r.applyStep(step)
}

func (r *Round) DeclareSolo(captain domain.PlayerID) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	next, err := statemachine.DeclareSolo(r.formation, captain)
	if err != nil {
		return err
	}
	r.formation = next
	return nil
}

func (r *Round) AardvarkRequestJoin(aardvark domain.PlayerID, team statemachine.Team) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	next, err := statemachine.AardvarkRequestJoin(r.formation, aardvark, team)
	if err != nil {
		return err
	}
	r.formation = next
	return nil
}

func (r *Round) RespondToAardvark(accept bool) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	step, err := statemachine.RespondToAardvark(r.formation, accept)
	if err != nil {
		return err
	}
	return r.applyStep(step)
}

func (r *Round) AardvarkStaySolo(aardvark domain.PlayerID) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	next, err := statemachine.AardvarkStaySolo(r.formation, aardvark)
	if err != nil {
		return err
	}
	r.formation = next
	return nil
}

func (r *Round) InvokeFloat(player domain.PlayerID) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := r.requireCaptain(player, domain.SpecialFloat); err != nil {
		return err
	}
	next, err := betting.InvokeFloat(r.betting, player)
	if err != nil {
		return err
	}
	r.betting = next
	return nil
}

// InvokeOption is open only to a captain who is furthest behind.
func (r *Round) InvokeOption(player domain.PlayerID) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := r.requireCaptain(player, domain.SpecialOption); err != nil {
		return err
	}
	if !furthestBehind(r.Standings(), player) {
		return fmt.Errorf("%w: option requires %s to be furthest behind", domain.ErrInvalidStateTransition, player)
	}
	next, err := betting.InvokeOption(r.betting, player)
	if err != nil {
		return err
	}
	r.betting = next
	return nil
}

func (r *Round) InvokeDuncan(player domain.PlayerID) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := r.requireCaptain(player, domain.SpecialDuncan); err != nil {
		return err
	}
	var kind statemachine.FormationKind
	if r.formation.Formation != nil {
		kind = r.formation.Formation.Kind()
	}
	next, err := betting.InvokeDuncan(r.betting, player, kind)
	if err != nil {
		return err
	}
	r.betting = next
	return nil
}

// AvailableSpecials lists the once-per-round specials player may invoke on
// the hole in play.
func (r *Round) AvailableSpecials(player domain.PlayerID) []domain.Special {
	if r.complete || player != r.rotation.Captain() || r.betting.Forfeit != nil {
		return nil
	}
	usage := r.betting.PlayerUsage[player]
	var out []domain.Special
	if !usage.FloatUsed {
		out = append(out, domain.SpecialFloat)
	}
	if !usage.OptionUsed && furthestBehind(r.Standings(), player) {
		out = append(out, domain.SpecialOption)
	}
	solo := r.formation.Formation != nil && r.formation.Formation.Kind() == statemachine.FormationSolo
	if !usage.DuncanUsed && !r.betting.DuncanActive && solo {
		out = append(out, domain.SpecialDuncan)
	}
	return out
}

// JoesSpecialOpen reports the Goat while Joe's Special can still be set on
// the hole in play.
func (r *Round) JoesSpecialOpen() (domain.PlayerID, bool) {
	goat, ok := r.rotation.Goat()
	if r.complete || !ok || !r.rotation.IsHoepfingerPhase || r.betting.JoesSpecial != 0 || r.betting.Forfeit != nil {
		return "", false
	}
	if r.formation.Phase != statemachine.PhaseAwaitingCaptainDecision || len(r.formation.Declined) > 0 {
		return "", false
	}
	return goat, true
}

// SetJoesSpecial lets the Goat set the wager at the start of a Hoepfinger
// hole, before the captain has asked anyone.
func (r *Round) SetJoesSpecial(player domain.PlayerID, multiplier int) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	goat, ok := r.rotation.Goat()
	if !ok || !r.rotation.IsHoepfingerPhase {
		return fmt.Errorf("%w: joe's special is only available during hoepfinger", domain.ErrInvalidStateTransition)
	}
	if player != goat {
		return fmt.Errorf("%w: only the goat %s may set joe's special", domain.ErrInvalidStateTransition, goat)
	}
	if r.formation.Phase != statemachine.PhaseAwaitingCaptainDecision || len(r.formation.Declined) > 0 {
		return fmt.Errorf("%w: joe's special must be set before team selection", domain.ErrInvalidStateTransition)
	}
	next, err := betting.SetJoesSpecial(r.betting, multiplier)
	if err != nil {
		return err
	}
	r.betting = next
	return nil
}

// OfferDouble offers a double to the other side of the finalized teams.
func (r *Round) OfferDouble(from domain.PlayerID) (betting.BetOffer, error) {
	if err := r.checkOpen(); err != nil {
		return betting.BetOffer{}, err
	}
	if !r.formation.IsFinalized() {
		return betting.BetOffer{}, fmt.Errorf("%w: doubles are offered once teams are set", domain.ErrInvalidStateTransition)
	}
	to, err := opposingSide(r.formation.Formation, from)
	if err != nil {
		return betting.BetOffer{}, err
	}
	next, offer, err := betting.OfferBet(r.betting, betting.OfferRequest{
		ID:        r.newOfferID(),
		Type:      betting.OfferDouble,
		OfferedBy: from,
		OfferedTo: to,
		At:        r.clock(),
	})
	if err != nil {
		return betting.BetOffer{}, err
	}
	r.betting = next
	return offer, nil
}

func (r *Round) AcceptOffer(offerID string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	next, err := betting.AcceptOffer(r.betting, offerID)
	if err != nil {
		return err
	}
	r.betting = next
	return nil
}

// DeclineOffer forfeits the hole to the offering side and settles it at once.
func (r *Round) DeclineOffer(offerID string) (settlement.HoleRecord, error) {
	if err := r.checkOpen(); err != nil {
		return settlement.HoleRecord{}, err
	}
	bet, err := betting.DeclineOffer(r.betting, offerID)
	if err != nil {
		return settlement.HoleRecord{}, err
	}
	return r.finishHole(bet, nil)
}

// CompleteHole settles the current hole from gross scores and opens the next.
func (r *Round) CompleteHole(gross map[domain.PlayerID]int) (settlement.HoleRecord, error) {
	if err := r.checkOpen(); err != nil {
		return settlement.HoleRecord{}, err
	}
	if r.betting.HasPendingOffer() {
		return settlement.HoleRecord{}, fmt.Errorf("%w: resolve the pending offer before scoring", domain.ErrInvalidStateTransition)
	}
	return r.finishHole(r.betting, gross)
}

// Resettle replaces a settled hole and recomputes standings from the full
// history. Recorded holes are left as played. The hole in progress restarts
// when the edit changes its Hoepfinger order or its carry over; specials
// taken on it are released.
func (r *Round) Resettle(hole int, edit HoleEdit) (settlement.HoleRecord, error) {
	rec, ok := r.ledger.Get(hole)
	if !ok {
		return settlement.HoleRecord{}, fmt.Errorf("%w: hole %d has not been settled", domain.ErrInvalidStateTransition, hole)
	}

	formation := rec.Teams
	if edit.Formation != nil {
		formation = statemachine.CloneFormation(edit.Formation)
	}
	if err := statemachine.ValidateFinal(formation, rec.RotationOrder); err != nil {
		return settlement.HoleRecord{}, err
	}
	wager := rec.Wager
	if edit.Wager != nil {
		wager = *edit.Wager
	}
	duncan := rec.Duncan
	if edit.Duncan != nil {
		duncan = *edit.Duncan
	}
	gross := rec.GrossScores
	if edit.GrossScores != nil {
		gross = cloneScores(edit.GrossScores)
	}

	course, err := r.course.Hole(hole)
	if err != nil {
		return settlement.HoleRecord{}, err
	}
	allocs, err := strokes.Allocate(r.playersIn(rec.RotationOrder), course, r.config.CreecherEnabled)
	if err != nil {
		return settlement.HoleRecord{}, err
	}
	var net map[domain.PlayerID]float64
	if rec.Forfeit == nil {
		if net, err = strokes.NetScores(gross, allocs); err != nil {
			return settlement.HoleRecord{}, err
		}
	}
	outcome, err := settlement.Settle(settlement.Input{
		Formation: formation,
		NetScores: net,
		Wager:     wager,
		Duncan:    duncan,
		Forfeit:   rec.Forfeit,
	})
	if err != nil {
		return settlement.HoleRecord{}, err
	}

	rec.Teams = formation
	rec.GrossScores = gross
	rec.StrokeAllocations = strokes.Totals(allocs)
	rec.NetScores = net
	rec.Wager = wager
	rec.Duncan = duncan
	rec.Quarters = outcome.Quarters
	rec.Halved = outcome.Halved
	if edit.Notes != nil {
		rec.Notes = *edit.Notes
	}

	ledger := r.ledger.Clone()
	if err := ledger.Replace(rec); err != nil {
		return settlement.HoleRecord{}, err
	}

	if r.complete {
		r.ledger = ledger
		return rec.Clone(), nil
	}

	carries := r.config.CarryOverPolicy != domain.CarryOverNone && r.config.CarryOverPolicy != ""
	restart := carries && ledger.TrailingHalved() != r.ledger.TrailingHalved()
	if r.currentHole >= r.hoepfingerStart {
		rot, err := r.computeRotation(r.currentHole, ledger, nil)
		if err != nil {
			return settlement.HoleRecord{}, err
		}
		restart = restart || !sameOrder(rot, r.rotation)
	}
	if !restart {
		r.ledger = ledger
		return rec.Clone(), nil
	}

	current, err := r.prepareHole(r.currentHole, ledger, nil, betting.ReleaseUsageFrom(r.betting, r.currentHole))
	if err != nil {
		return settlement.HoleRecord{}, err
	}
	r.ledger = ledger
	r.enter(r.currentHole, current)
	return rec.Clone(), nil
}

// UndoLastHole drops the most recent hole record and reopens that hole.
// Usage of once-per-round specials taken on or after it is released.
func (r *Round) UndoLastHole() (settlement.HoleRecord, error) {
	ledger := r.ledger.Clone()
	undone, err := ledger.UndoLast()
	if err != nil {
		return settlement.HoleRecord{}, err
	}
	bet := betting.ReleaseUsageFrom(r.betting, undone.Hole)
	hole, err := r.prepareHole(undone.Hole, ledger, nil, bet)
	if err != nil {
		return settlement.HoleRecord{}, err
	}
	r.ledger = ledger
	r.complete = false
	r.enter(undone.Hole, hole)
	return undone, nil
}

func (r *Round) finishHole(bet betting.State, gross map[domain.PlayerID]int) (settlement.HoleRecord, error) {
	if !r.formation.IsFinalized() {
		return settlement.HoleRecord{}, fmt.Errorf("%w: hole %d teams are not set (phase %s)", domain.ErrInvalidStateTransition, r.currentHole, r.formation.Phase)
	}
	formation := r.formation.Formation
	if err := statemachine.ValidateFinal(formation, r.rotation.RotationOrder); err != nil {
		return settlement.HoleRecord{}, err
	}
	course, err := r.course.Hole(r.currentHole)
	if err != nil {
		return settlement.HoleRecord{}, err
	}
	allocs, err := strokes.Allocate(r.playersIn(r.rotation.RotationOrder), course, r.config.CreecherEnabled)
	if err != nil {
		return settlement.HoleRecord{}, err
	}

	var net map[domain.PlayerID]float64
	if bet.Forfeit == nil || gross != nil {
		if net, err = strokes.NetScores(gross, allocs); err != nil {
			return settlement.HoleRecord{}, err
		}
	}
	outcome, err := settlement.Settle(settlement.Input{
		Formation: formation,
		NetScores: net,
		Wager:     bet.CurrentWager,
		Duncan:    bet.DuncanActive,
		Forfeit:   bet.Forfeit,
	})
	if err != nil {
		return settlement.HoleRecord{}, err
	}

	rec := settlement.HoleRecord{
		Hole:              r.currentHole,
		Par:               course.Par,
		RotationOrder:     append([]domain.PlayerID(nil), r.rotation.RotationOrder...),
		Teams:             statemachine.CloneFormation(formation),
		GrossScores:       cloneScores(gross),
		StrokeAllocations: strokes.Totals(allocs),
		NetScores:         net,
		Wager:             bet.CurrentWager,
		Quarters:          outcome.Quarters,
		Duncan:            bet.DuncanActive,
		Forfeit:           bet.Forfeit,
		Halved:            outcome.Halved,
	}

	ledger := r.ledger.Clone()
	if err := ledger.Record(rec); err != nil {
		return settlement.HoleRecord{}, err
	}

	if r.currentHole == domain.HolesPerRound {
		r.ledger = ledger
		r.betting = bet
		r.complete = true
		return rec.Clone(), nil
	}

	prior := r.rotation
	hole, err := r.prepareHole(r.currentHole+1, ledger, &prior, bet)
	if err != nil {
		return settlement.HoleRecord{}, err
	}
	r.ledger = ledger
	r.enter(r.currentHole+1, hole)
	return rec.Clone(), nil
}

// prepareHole derives rotation, formation and betting for a new hole from
// the given history without touching the round.
func (r *Round) prepareHole(number int, ledger *settlement.Ledger, prior *rotation.State, bet betting.State) (holeState, error) {
	rot, err := r.computeRotation(number, ledger, prior)
	if err != nil {
		return holeState{}, err
	}
	form, err := statemachine.Start(rot)
	if err != nil {
		return holeState{}, err
	}
	bet, err = betting.ResetForNewHole(bet, number, ledger.TrailingHalved(), r.config.CarryOverPolicy)
	if err != nil {
		return holeState{}, err
	}
	if r.config.VinniesEnabled && number >= r.config.VinniesStartHole && number < r.hoepfingerStart {
		if bet, err = betting.InvokeVinnies(bet); err != nil {
			return holeState{}, err
		}
	}
	if r.config.AutoOption {
		captain := rot.Captain()
		if furthestBehind(r.withAllPlayers(ledger.Standings()), captain) {
			next, err := betting.InvokeOption(bet, captain)
			switch {
			case err == nil:
				bet = next
			case !errors.Is(err, domain.ErrAlreadyUsed):
				return holeState{}, err
			}
		}
	}
	return holeState{rotation: rot, formation: form, betting: bet}, nil
}

func (r *Round) computeRotation(number int, ledger *settlement.Ledger, prior *rotation.State) (rotation.State, error) {
	input := rotation.Input{
		HoleNumber: number,
		Players:    r.firstTee,
		Prior:      prior,
		Standings:  r.withAllPlayers(ledger.Standings()),
	}
	if number >= r.hoepfingerStart {
		input.PhaseStartStandings = r.withAllPlayers(ledger.StandingsThrough(r.hoepfingerStart - 1))
	}
	return rotation.Compute(input)
}

func (r *Round) enter(number int, hole holeState) {
	r.currentHole = number
	r.rotation = hole.rotation
	r.formation = hole.formation
	r.betting = hole.betting
}

func (r *Round) applyStep(step statemachine.Step) error {
	bet := r.betting
	if step.RejectionPenalty {
		var err error
		if bet, err = betting.ApplyRejectionPenalty(bet); err != nil {
			return err
		}
	}
	r.formation = step.State
	r.betting = bet
	return nil
}

func (r *Round) checkOpen() error {
	if r.complete {
		return fmt.Errorf("%w: %w", domain.ErrInvalidStateTransition, ErrRoundComplete)
	}
	return nil
}

func (r *Round) requireCaptain(player domain.PlayerID, special domain.Special) error {
	if player != r.rotation.Captain() {
		return fmt.Errorf("%w: only the captain may invoke %s", domain.ErrInvalidStateTransition, special)
	}
	return nil
}

func (r *Round) playersIn(order []domain.PlayerID) []domain.Player {
	byID := make(map[domain.PlayerID]domain.Player, len(r.players))
	for _, p := range r.players {
		byID[p.ID] = p
	}
	out := make([]domain.Player, 0, len(order))
	for _, id := range order {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *Round) withAllPlayers(standings map[domain.PlayerID]float64) map[domain.PlayerID]float64 {
	out := make(map[domain.PlayerID]float64, len(r.players))
	for _, p := range r.players {
		out[p.ID] = standings[p.ID]
	}
	return out
}

// furthestBehind reports whether player holds the lowest standing and
// somebody is ahead of them.
func furthestBehind(standings map[domain.PlayerID]float64, player domain.PlayerID) bool {
	own, ok := standings[player]
	if !ok {
		return false
	}
	ahead := false
	for id, total := range standings {
		if id == player {
			continue
		}
		if total < own {
			return false
		}
		if total > own {
			ahead = true
		}
	}
	return ahead
}

func opposingSide(f statemachine.TeamFormation, from domain.PlayerID) ([]domain.PlayerID, error) {
	switch v := f.(type) {
	case statemachine.Partners:
		switch {
		case containsID(v.Team1, from):
			return append([]domain.PlayerID(nil), v.Team2...), nil
		case containsID(v.Team2, from):
			return append([]domain.PlayerID(nil), v.Team1...), nil
		case containsID(v.SoloAardvarks, from):
			var out []domain.PlayerID
			for _, id := range v.Players() {
				if id != from {
					out = append(out, id)
				}
			}
			return out, nil
		}
	case statemachine.Solo:
		if from == v.Captain {
			return append([]domain.PlayerID(nil), v.Opponents...), nil
		}
		if containsID(v.Opponents, from) {
			return []domain.PlayerID{v.Captain}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not playing hole", domain.ErrInvalidStateTransition, from)
}

func sameOrder(a, b rotation.State) bool {
	if a.GoatPlayerID != b.GoatPlayerID || len(a.RotationOrder) != len(b.RotationOrder) {
		return false
	}
	for i := range a.RotationOrder {
		if a.RotationOrder[i] != b.RotationOrder[i] {
			return false
		}
	}
	return true
}

func containsID(ids []domain.PlayerID, id domain.PlayerID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneScores(in map[domain.PlayerID]int) map[domain.PlayerID]int {
	if in == nil {
		return nil
	}
	out := make(map[domain.PlayerID]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneCourse(c domain.Course) domain.Course {
	out := c
	out.Holes = append([]domain.CourseHole(nil), c.Holes...)
	return out
}
