package betting

import (
	"fmt"
	"time"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
)

const maxCarryOverDoublings = 10

type OfferType string

const (
	OfferDouble OfferType = "double"
)

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
)

type BetOffer struct {
	ID        string            `json:"id"`
	Type      OfferType         `json:"type"`
	OfferedBy domain.PlayerID   `json:"offered_by"`
	OfferedTo []domain.PlayerID `json:"offered_to"`
	Status    OfferStatus       `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
}

type Usage struct {
	FloatUsed  bool `json:"float_used"`
	FloatHole  int  `json:"float_hole,omitempty"`
	OptionUsed bool `json:"option_used"`
	OptionHole int  `json:"option_hole,omitempty"`
	DuncanUsed bool `json:"duncan_used"`
	DuncanHole int  `json:"duncan_hole,omitempty"`
}

// Forfeit records a declined double; the offering side wins the hole.
type Forfeit struct {
	OfferID    string            `json:"offer_id"`
	OfferedBy  domain.PlayerID   `json:"offered_by"`
	DeclinedBy []domain.PlayerID `json:"declined_by"`
}

// State is the wager ledger for the current hole plus the round's
// once-per-round usage. StartMultiplier is what the hole opened with after
// carry over.
type State struct {
	HoleNumber        int                       `json:"hole_number"`
	BaseWager         int                       `json:"base_wager"`
	CurrentWager      int                       `json:"current_wager"`
	WagerMultiplier   int                       `json:"wager_multiplier"`
	StartMultiplier   int                       `json:"start_multiplier"`
	CarryOver         int                       `json:"carry_over"`
	PlayerUsage       map[domain.PlayerID]Usage `json:"player_usage"`
	PendingOffers     []BetOffer                `json:"pending_offers"`
	DuncanActive      bool                      `json:"duncan_active"`
	DuncanPlayerID    domain.PlayerID           `json:"duncan_player_id,omitempty"`
	VinniesActive     bool                      `json:"vinnies_active"`
	VinniesMultiplier int                       `json:"vinnies_multiplier"`
	JoesSpecial       int                       `json:"joes_special,omitempty"`
	Forfeit           *Forfeit                  `json:"forfeit,omitempty"`
}

type OfferRequest struct {
	ID        string
	Type      OfferType
	OfferedBy domain.PlayerID
	OfferedTo []domain.PlayerID
	At        time.Time
}

func NewState(baseWager, vinniesMultiplier int) (State, error) {
	if baseWager <= 0 {
		return State{}, fmt.Errorf("%w: base wager must be positive, got %d", domain.ErrConfiguration, baseWager)
	}
	if vinniesMultiplier < 1 {
		return State{}, fmt.Errorf("%w: vinnies multiplier must be positive, got %d", domain.ErrConfiguration, vinniesMultiplier)
	}
	return State{
		HoleNumber:        1,
		BaseWager:         baseWager,
		CurrentWager:      baseWager,
		WagerMultiplier:   1,
		StartMultiplier:   1,
		PlayerUsage:       map[domain.PlayerID]Usage{},
		PendingOffers:     []BetOffer{},
		VinniesMultiplier: vinniesMultiplier,
	}, nil
}

func InvokeFloat(state State, player domain.PlayerID) (State, error) {
	usage := state.PlayerUsage[player]
	if usage.FloatUsed {
		return State{}, &domain.AlreadyUsedError{PlayerID: player, Special: domain.SpecialFloat, Hole: usage.FloatHole}
	}
	if err := checkOpen(state); err != nil {
		return State{}, err
	}

	next := cloneState(state)
	usage.FloatUsed = true
	usage.FloatHole = state.HoleNumber
	next.PlayerUsage[player] = usage
	return multiply(next, 2), nil
}

func InvokeOption(state State, player domain.PlayerID) (State, error) {
	usage := state.PlayerUsage[player]
	if usage.OptionUsed {
		return State{}, &domain.AlreadyUsedError{PlayerID: player, Special: domain.SpecialOption, Hole: usage.OptionHole}
	}
	if err := checkOpen(state); err != nil {
		return State{}, err
	}

	next := cloneState(state)
	usage.OptionUsed = true
	usage.OptionHole = state.HoleNumber
	next.PlayerUsage[player] = usage
	return multiply(next, 2), nil
}

// InvokeDuncan switches a solo hole to the 3-for-2 payout. It leaves the
// multiplier alone.
func InvokeDuncan(state State, player domain.PlayerID, formation statemachine.FormationKind) (State, error) {
	usage := state.PlayerUsage[player]
	if usage.DuncanUsed {
		return State{}, &domain.AlreadyUsedError{PlayerID: player, Special: domain.SpecialDuncan, Hole: usage.DuncanHole}
	}
	if formation != statemachine.FormationSolo {
		return State{}, fmt.Errorf("%w: duncan requires a solo formation, got %q", domain.ErrInvalidStateTransition, formation)
	}
	if err := checkOpen(state); err != nil {
		return State{}, err
	}
	if state.DuncanActive {
		return State{}, fmt.Errorf("%w: duncan already active on hole %d", domain.ErrInvalidStateTransition, state.HoleNumber)
	}

	next := cloneState(state)
	usage.DuncanUsed = true
	usage.DuncanHole = state.HoleNumber
	next.PlayerUsage[player] = usage
	next.DuncanActive = true
	next.DuncanPlayerID = player
	return next, nil
}

func InvokeVinnies(state State) (State, error) {
	if state.VinniesActive {
		return State{}, fmt.Errorf("%w: vinnies already active on hole %d", domain.ErrInvalidStateTransition, state.HoleNumber)
	}
	if err := checkOpen(state); err != nil {
		return State{}, err
	}
	next := cloneState(state)
	next.VinniesActive = true
	return multiply(next, next.VinniesMultiplier), nil
}

// SetJoesSpecial applies the Goat's chosen 2, 4 or 8 times multiplier, once
// per hole.
func SetJoesSpecial(state State, multiplier int) (State, error) {
	switch multiplier {
	case 2, 4, 8:
	default:
		return State{}, fmt.Errorf("%w: joe's special must be 2, 4 or 8, got %d", domain.ErrInvalidStateTransition, multiplier)
	}
	if state.JoesSpecial != 0 {
		return State{}, fmt.Errorf("%w: joe's special already set on hole %d", domain.ErrInvalidStateTransition, state.HoleNumber)
	}
	if err := checkOpen(state); err != nil {
		return State{}, err
	}
	next := cloneState(state)
	next.JoesSpecial = multiplier
	return multiply(next, multiplier), nil
}

// ApplyRejectionPenalty doubles the wager for a declined partnership or a
// tossed aardvark.
func ApplyRejectionPenalty(state State) (State, error) {
	if err := checkOpen(state); err != nil {
		return State{}, err
	}
	return multiply(cloneState(state), 2), nil
}

func OfferBet(state State, req OfferRequest) (State, BetOffer, error) {
	if req.ID == "" {
		return State{}, BetOffer{}, fmt.Errorf("%w: offer id is required", domain.ErrConfiguration)
	}
	if req.Type != OfferDouble {
		return State{}, BetOffer{}, fmt.Errorf("%w: unknown offer type %q", domain.ErrInvalidStateTransition, req.Type)
	}
	if len(req.OfferedTo) == 0 {
		return State{}, BetOffer{}, fmt.Errorf("%w: offer needs at least one recipient", domain.ErrInvalidStateTransition)
	}
	for _, id := range req.OfferedTo {
		if id == req.OfferedBy {
			return State{}, BetOffer{}, fmt.Errorf("%w: %s cannot offer a bet to themselves", domain.ErrInvalidStateTransition, id)
		}
	}
	if err := checkOpen(state); err != nil {
		return State{}, BetOffer{}, err
	}
	for _, offer := range state.PendingOffers {
		if offer.ID == req.ID {
			return State{}, BetOffer{}, fmt.Errorf("%w: duplicate offer id %s", domain.ErrConfiguration, req.ID)
		}
		if offer.Status == OfferPending {
			return State{}, BetOffer{}, fmt.Errorf("%w: offer %s is still pending", domain.ErrInvalidStateTransition, offer.ID)
		}
	}

	offer := BetOffer{
		ID:        req.ID,
		Type:      req.Type,
		OfferedBy: req.OfferedBy,
		OfferedTo: append([]domain.PlayerID(nil), req.OfferedTo...),
		Status:    OfferPending,
		Timestamp: req.At,
	}
	next := cloneState(state)
	next.PendingOffers = append(next.PendingOffers, offer)
	return next, cloneOffer(offer), nil
}

func AcceptOffer(state State, offerID string) (State, error) {
	idx, err := pendingOffer(state, offerID)
	if err != nil {
		return State{}, err
	}
	next := cloneState(state)
	next.PendingOffers[idx].Status = OfferAccepted
	return multiply(next, 2), nil
}

// DeclineOffer ends the hole in favor of the offering side.
func DeclineOffer(state State, offerID string) (State, error) {
	idx, err := pendingOffer(state, offerID)
	if err != nil {
		return State{}, err
	}
	next := cloneState(state)
	offer := next.PendingOffers[idx]
	next.PendingOffers[idx].Status = OfferDeclined
	next.Forfeit = &Forfeit{
		OfferID:    offer.ID,
		OfferedBy:  offer.OfferedBy,
		DeclinedBy: append([]domain.PlayerID(nil), offer.OfferedTo...),
	}
	return next, nil
}

// ResetForNewHole opens the next hole. Once-per-round usage survives; the
// opening multiplier follows the carry over policy for carryOver
// consecutive halved holes.
func ResetForNewHole(state State, hole, carryOver int, policy domain.CarryOverPolicy) (State, error) {
	if err := domain.ValidateHoleNumber(hole); err != nil {
		return State{}, err
	}
	if carryOver < 0 {
		return State{}, fmt.Errorf("%w: carry over cannot be negative, got %d", domain.ErrConfiguration, carryOver)
	}
	start, err := startMultiplier(policy, carryOver)
	if err != nil {
		return State{}, err
	}

	next := cloneState(state)
	next.HoleNumber = hole
	next.CarryOver = carryOver
	next.StartMultiplier = start
	next.WagerMultiplier = start
	next.CurrentWager = next.BaseWager * start
	next.PendingOffers = []BetOffer{}
	next.DuncanActive = false
	next.DuncanPlayerID = ""
	next.VinniesActive = false
	next.JoesSpecial = 0
	next.Forfeit = nil
	return next, nil
}

// ReleaseUsageFrom clears once-per-round usage taken on hole or later, for
// holes that are being replayed.
func ReleaseUsageFrom(state State, hole int) State {
	next := cloneState(state)
	for id, usage := range next.PlayerUsage {
		if usage.FloatUsed && usage.FloatHole >= hole {
			usage.FloatUsed, usage.FloatHole = false, 0
		}
		if usage.OptionUsed && usage.OptionHole >= hole {
			usage.OptionUsed, usage.OptionHole = false, 0
		}
		if usage.DuncanUsed && usage.DuncanHole >= hole {
			usage.DuncanUsed, usage.DuncanHole = false, 0
		}
		if usage == (Usage{}) {
			delete(next.PlayerUsage, id)
			continue
		}
		next.PlayerUsage[id] = usage
	}
	return next
}

func (s State) HasPendingOffer() bool {
	for _, offer := range s.PendingOffers {
		if offer.Status == OfferPending {
			return true
		}
	}
	return false
}

func (s State) Offer(offerID string) (BetOffer, bool) {
	for _, offer := range s.PendingOffers {
		if offer.ID == offerID {
			return cloneOffer(offer), true
		}
	}
	return BetOffer{}, false
}

func (s State) Clone() State {
	return cloneState(s)
}

func startMultiplier(policy domain.CarryOverPolicy, carryOver int) (int, error) {
	switch policy {
	case domain.CarryOverNone, "":
		return 1, nil
	case domain.CarryOverIncrement:
		return 1 + carryOver, nil
	case domain.CarryOverDouble:
		return 1 << min(carryOver, maxCarryOverDoublings), nil
	default:
		return 0, fmt.Errorf("%w: unknown carry over policy %q", domain.ErrConfiguration, policy)
	}
}

func pendingOffer(state State, offerID string) (int, error) {
	for i, offer := range state.PendingOffers {
		if offer.ID != offerID {
			continue
		}
		if offer.Status != OfferPending {
			return 0, fmt.Errorf("%w: offer %s is already %s", domain.ErrInvalidStateTransition, offerID, offer.Status)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: no offer %s on hole %d", domain.ErrInvalidStateTransition, offerID, state.HoleNumber)
}

func checkOpen(state State) error {
	if state.Forfeit != nil {
		return fmt.Errorf("%w: hole %d ended by forfeit", domain.ErrInvalidStateTransition, state.HoleNumber)
	}
	return nil
}

func multiply(state State, factor int) State {
	state.WagerMultiplier *= factor
	state.CurrentWager = state.BaseWager * state.WagerMultiplier
	return state
}

func cloneState(state State) State {
	out := state
	out.PlayerUsage = make(map[domain.PlayerID]Usage, len(state.PlayerUsage))
	for id, usage := range state.PlayerUsage {
		out.PlayerUsage[id] = usage
	}
	out.PendingOffers = make([]BetOffer, 0, len(state.PendingOffers))
	for _, offer := range state.PendingOffers {
		out.PendingOffers = append(out.PendingOffers, cloneOffer(offer))
	}
	if state.Forfeit != nil {
		f := *state.Forfeit
		f.DeclinedBy = append([]domain.PlayerID(nil), state.Forfeit.DeclinedBy...)
		out.Forfeit = &f
	}
	return out
}

func cloneOffer(offer BetOffer) BetOffer {
	out := offer
	out.OfferedTo = append([]domain.PlayerID(nil), offer.OfferedTo...)
	return out
}
