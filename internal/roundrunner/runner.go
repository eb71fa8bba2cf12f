package roundrunner

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/betting"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/rotation"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/round"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/settlement"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/strokes"
)

const defaultMaxDecisionsPerHole = 64

var (
	ErrDecisionLimitExceeded = errors.New("decision limit exceeded")
	ErrRunnerMisconfigured   = errors.New("runner misconfigured")
	ErrContextCancelled      = errors.New("runner context cancelled")
	ErrIllegalDecision       = errors.New("illegal decision")
)

type DecisionKind string

const (
	DecisionCaptain          DecisionKind = "captain"
	DecisionPartnership      DecisionKind = "partnership"
	DecisionAardvark         DecisionKind = "aardvark"
	DecisionAardvarkResponse DecisionKind = "aardvark_response"
	DecisionOfferDouble      DecisionKind = "offer_double"
	DecisionDoubleResponse   DecisionKind = "double_response"
	DecisionSpecial          DecisionKind = "special"
)

type Action string

const (
	ActionRequestPartner Action = "request_partner"
	ActionGoSolo         Action = "go_solo"
	ActionAccept         Action = "accept"
	ActionDecline        Action = "decline"
	ActionJoin           Action = "join"
	ActionStaySolo       Action = "stay_solo"
	ActionOfferDouble    Action = "offer_double"
	ActionPass           Action = "pass"
	ActionFloat          Action = "float"
	ActionOption         Action = "option"
	ActionDuncan         Action = "duncan"
	ActionJoesSpecial    Action = "joes_special"
)

var specialActions = map[domain.Special]Action{
	domain.SpecialFloat:  ActionFloat,
	domain.SpecialOption: ActionOption,
	domain.SpecialDuncan: ActionDuncan,
}

type Decision struct {
	Action  Action            `json:"action"`
	Partner domain.PlayerID   `json:"partner,omitempty"`
	Team    statemachine.Team `json:"team,omitempty"`
	// Multiplier is the Goat's Joe's Special choice: 2, 4 or 8.
	Multiplier int `json:"multiplier,omitempty"`
}

// DecisionRequest describes one pending choice and the state it is made in.
type DecisionRequest struct {
	RoundID string
	Hole    int
	Kind    DecisionKind
	Actor   domain.PlayerID
	Legal   []Action
	// Candidates are the partners a captain may still ask.
	Candidates []domain.PlayerID
	OfferID    string
	Rotation   rotation.State
	Formation  statemachine.State
	Betting    betting.State
	Standings  map[domain.PlayerID]float64
}

type DecisionProvider interface {
	Decide(ctx context.Context, req DecisionRequest) (Decision, error)
}

type ScoreRequest struct {
	RoundID     string
	Hole        domain.CourseHole
	Players     []domain.PlayerID
	Allocations map[domain.PlayerID]strokes.Allocation
}

type ScoreProvider interface {
	Scores(ctx context.Context, req ScoreRequest) (map[domain.PlayerID]int, error)
}

type DecisionEvent struct {
	Hole     int
	Kind     DecisionKind
	Actor    domain.PlayerID
	Decision Decision
	Fallback bool
}

type HoleSummary struct {
	Hole          int
	Record        settlement.HoleRecord
	DecisionCount int
	FallbackCount int
}

type RunnerConfig struct {
	MaxDecisionsPerHole int
	OnDecision          func(DecisionEvent)
	OnHoleComplete      func(HoleSummary)
}

type Runner struct {
	decisions DecisionProvider
	scores    ScoreProvider
	config    RunnerConfig
}

type RunRoundResult struct {
	HolesCompleted int
	TotalDecisions int
	TotalFallbacks int
	HoleSummaries  []HoleSummary
	Standings      map[domain.PlayerID]float64
}

func New(decisions DecisionProvider, scores ScoreProvider, config RunnerConfig) Runner {
	return Runner{
		decisions: decisions,
		scores:    scores,
		config:    config,
	}
}

// RunRound plays the round from its current hole to the end.
func (r Runner) RunRound(ctx context.Context, rd *round.Round) (RunRoundResult, error) {
	var result RunRoundResult

	if rd == nil || r.decisions == nil || r.scores == nil {
		return result, ErrRunnerMisconfigured
	}
	result.HoleSummaries = make([]HoleSummary, 0, domain.HolesPerRound)

	for !rd.IsComplete() {
		if err := checkContext(ctx); err != nil {
			result.Standings = rd.Standings()
			return result, err
		}

		summary, err := r.RunHole(ctx, rd)
		result.TotalDecisions += summary.DecisionCount
		result.TotalFallbacks += summary.FallbackCount
		if err != nil {
			result.Standings = rd.Standings()
			return result, fmt.Errorf("hole %d: %w", summary.Hole, err)
		}

		result.HolesCompleted++
		result.HoleSummaries = append(result.HoleSummaries, summary)
		if r.config.OnHoleComplete != nil {
			r.config.OnHoleComplete(summary)
		}
	}

	result.Standings = rd.Standings()
	return result, nil
}

// RunHole forms teams, lets the captain take specials, gives every player one
// chance to offer a double and then scores the current hole. On Hoepfinger
// holes the Goat is asked about Joe's Special before teams are formed.
func (r Runner) RunHole(ctx context.Context, rd *round.Round) (HoleSummary, error) {
	if rd == nil || r.decisions == nil || r.scores == nil {
		return HoleSummary{}, ErrRunnerMisconfigured
	}
	summary := HoleSummary{Hole: rd.CurrentHole()}
	if rd.IsComplete() {
		return summary, round.ErrRoundComplete
	}

	maxDecisions := r.config.MaxDecisionsPerHole
	if maxDecisions <= 0 {
		maxDecisions = defaultMaxDecisionsPerHole
	}

	if goat, ok := rd.JoesSpecialOpen(); ok {
		if err := checkContext(ctx); err != nil {
			return summary, err
		}
		req := newRequest(rd, DecisionSpecial, goat, ActionJoesSpecial, ActionPass)
		if _, err := r.decide(ctx, rd, req, &summary); err != nil {
			return summary, err
		}
	}

	for !rd.Formation().IsFinalized() {
		if err := checkContext(ctx); err != nil {
			return summary, err
		}
		if summary.DecisionCount >= maxDecisions {
			return summary, fmt.Errorf("%w: made %d decisions (max %d)", ErrDecisionLimitExceeded, summary.DecisionCount, maxDecisions)
		}
		req, err := formationRequest(rd)
		if err != nil {
			return summary, err
		}
		if _, err := r.decide(ctx, rd, req, &summary); err != nil {
			return summary, err
		}
	}

	if err := r.captainSpecials(ctx, rd, &summary); err != nil {
		return summary, err
	}

	for _, id := range rd.Rotation().RotationOrder {
		if err := checkContext(ctx); err != nil {
			return summary, err
		}
		req := newRequest(rd, DecisionOfferDouble, id, ActionOfferDouble, ActionPass)
		offer, err := r.decide(ctx, rd, req, &summary)
		if err != nil {
			return summary, err
		}
		if offer.ID == "" {
			continue
		}

		resp := newRequest(rd, DecisionDoubleResponse, offer.OfferedTo[0], ActionAccept, ActionDecline)
		resp.OfferID = offer.ID
		if _, err := r.decide(ctx, rd, resp, &summary); err != nil {
			return summary, err
		}
		if rd.IsComplete() || rd.CurrentHole() != summary.Hole {
			// declined: the hole was forfeited
			rec, _ := rd.Hole(summary.Hole)
			summary.Record = rec
			return summary, nil
		}
	}

	if err := checkContext(ctx); err != nil {
		return summary, err
	}
	allocs, err := rd.Allocations()
	if err != nil {
		return summary, err
	}
	hole, err := rd.Course().Hole(summary.Hole)
	if err != nil {
		return summary, err
	}
	gross, err := r.scores.Scores(ctx, ScoreRequest{
		RoundID:     rd.ID(),
		Hole:        hole,
		Players:     rd.Rotation().RotationOrder,
		Allocations: allocs,
	})
	if err != nil {
		if err := checkContext(ctx); err != nil {
			return summary, err
		}
		return summary, fmt.Errorf("scores: %w", err)
	}
	rec, err := rd.CompleteHole(gross)
	if err != nil {
		return summary, err
	}
	summary.Record = rec
	return summary, nil
}

// captainSpecials keeps asking the captain until they pass or nothing is
// left to invoke.
func (r Runner) captainSpecials(ctx context.Context, rd *round.Round, summary *HoleSummary) error {
	captain := rd.Rotation().Captain()
	for {
		if err := checkContext(ctx); err != nil {
			return err
		}
		available := rd.AvailableSpecials(captain)
		if len(available) == 0 {
			return nil
		}
		legal := make([]Action, 0, len(available)+1)
		for _, special := range available {
			legal = append(legal, specialActions[special])
		}
		legal = append(legal, ActionPass)

		if _, err := r.decide(ctx, rd, newRequest(rd, DecisionSpecial, captain, legal...), summary); err != nil {
			return err
		}
		if len(rd.AvailableSpecials(captain)) == len(available) {
			return nil
		}
	}
}

// decide asks the provider and applies its answer, falling back to the
// default for the decision when the provider fails or answers illegally.
func (r Runner) decide(ctx context.Context, rd *round.Round, req DecisionRequest, summary *HoleSummary) (betting.BetOffer, error) {
	decision, err := r.decisions.Decide(ctx, req)
	if err == nil {
		err = validate(req, decision)
	}
	if err == nil {
		if err := checkContext(ctx); err != nil {
			return betting.BetOffer{}, err
		}
		offer, applyErr := apply(rd, req, decision)
		if applyErr == nil {
			summary.DecisionCount++
			r.emit(req, decision, false)
			return offer, nil
		}
		err = applyErr
	}

	if err := checkContext(ctx); err != nil {
		return betting.BetOffer{}, err
	}
	fallback := fallbackDecision(req.Kind)
	offer, fallbackErr := apply(rd, req, fallback)
	if fallbackErr != nil {
		return betting.BetOffer{}, fmt.Errorf("fallback %s failed (%v): %w", fallback.Action, err, fallbackErr)
	}
	summary.DecisionCount++
	summary.FallbackCount++
	r.emit(req, fallback, true)
	return offer, nil
}

func (r Runner) emit(req DecisionRequest, decision Decision, fallback bool) {
	if r.config.OnDecision == nil {
		return
	}
	r.config.OnDecision(DecisionEvent{
		Hole:     req.Hole,
		Kind:     req.Kind,
		Actor:    req.Actor,
		Decision: decision,
		Fallback: fallback,
	})
}

func formationRequest(rd *round.Round) (DecisionRequest, error) {
	form := rd.Formation()
	switch form.Phase {
	case statemachine.PhaseAwaitingCaptainDecision:
		var candidates []domain.PlayerID
		for _, id := range form.BaseGroup {
			if id != form.Captain && !slices.Contains(form.Declined, id) {
				candidates = append(candidates, id)
			}
		}
		legal := []Action{ActionGoSolo}
		if len(candidates) > 0 {
			legal = append(legal, ActionRequestPartner)
		}
		req := newRequest(rd, DecisionCaptain, form.Captain, legal...)
		req.Candidates = candidates
		return req, nil
	case statemachine.PhasePartnershipPending:
		pending, ok := form.Formation.(statemachine.Pending)
		if !ok {
			return DecisionRequest{}, fmt.Errorf("%w: partnership pending without a request", ErrRunnerMisconfigured)
		}
		return newRequest(rd, DecisionPartnership, pending.RequestedPartner, ActionAccept, ActionDecline), nil
	case statemachine.PhaseAardvarkDeciding:
		next, ok := form.NextAardvark()
		if !ok {
			return DecisionRequest{}, fmt.Errorf("%w: no aardvark left to decide", ErrRunnerMisconfigured)
		}
		return newRequest(rd, DecisionAardvark, next, ActionJoin, ActionStaySolo), nil
	case statemachine.PhaseAardvarkPending:
		if form.PendingAardvark == nil {
			return DecisionRequest{}, fmt.Errorf("%w: aardvark pending without a request", ErrRunnerMisconfigured)
		}
		team := form.Team1
		if form.PendingAardvark.Team == statemachine.Team2 {
			team = form.Team2
		}
		return newRequest(rd, DecisionAardvarkResponse, team[0], ActionAccept, ActionDecline), nil
	default:
		return DecisionRequest{}, fmt.Errorf("%w: no decision in phase %s", ErrRunnerMisconfigured, form.Phase)
	}
}

func newRequest(rd *round.Round, kind DecisionKind, actor domain.PlayerID, legal ...Action) DecisionRequest {
	return DecisionRequest{
		RoundID:   rd.ID(),
		Hole:      rd.CurrentHole(),
		Kind:      kind,
		Actor:     actor,
		Legal:     legal,
		Rotation:  rd.Rotation(),
		Formation: rd.Formation(),
		Betting:   rd.Betting(),
		Standings: rd.Standings(),
	}
}

func validate(req DecisionRequest, d Decision) error {
	if !slices.Contains(req.Legal, d.Action) {
		return fmt.Errorf("%w: %s not legal for %s", ErrIllegalDecision, d.Action, req.Kind)
	}
	switch d.Action {
	case ActionRequestPartner:
		if !slices.Contains(req.Candidates, d.Partner) {
			return fmt.Errorf("%w: %s cannot be asked to partner", ErrIllegalDecision, d.Partner)
		}
	case ActionJoin:
		if d.Team != statemachine.Team1 && d.Team != statemachine.Team2 {
			return fmt.Errorf("%w: unknown team %d", ErrIllegalDecision, d.Team)
		}
	case ActionJoesSpecial:
		if d.Multiplier != 2 && d.Multiplier != 4 && d.Multiplier != 8 {
			return fmt.Errorf("%w: joe's special must be 2, 4 or 8, got %d", ErrIllegalDecision, d.Multiplier)
		}
	}
	return nil
}

func apply(rd *round.Round, req DecisionRequest, d Decision) (betting.BetOffer, error) {
	var err error
	switch req.Kind {
	case DecisionCaptain:
		if d.Action == ActionRequestPartner {
			err = rd.RequestPartner(req.Actor, d.Partner)
		} else {
			err = rd.DeclareSolo(req.Actor)
		}
	case DecisionPartnership:
		err = rd.RespondToPartnership(d.Action == ActionAccept)
	case DecisionAardvark:
		if d.Action == ActionJoin {
			err = rd.AardvarkRequestJoin(req.Actor, d.Team)
		} else {
			err = rd.AardvarkStaySolo(req.Actor)
		}
	case DecisionAardvarkResponse:
		err = rd.RespondToAardvark(d.Action == ActionAccept)
	case DecisionOfferDouble:
		if d.Action == ActionOfferDouble {
			return rd.OfferDouble(req.Actor)
		}
	case DecisionDoubleResponse:
		if d.Action == ActionAccept {
			err = rd.AcceptOffer(req.OfferID)
		} else {
			_, err = rd.DeclineOffer(req.OfferID)
		}
	case DecisionSpecial:
		switch d.Action {
		case ActionFloat:
			err = rd.InvokeFloat(req.Actor)
		case ActionOption:
			err = rd.InvokeOption(req.Actor)
		case ActionDuncan:
			err = rd.InvokeDuncan(req.Actor)
		case ActionJoesSpecial:
			err = rd.SetJoesSpecial(req.Actor, d.Multiplier)
		}
	default:
		err = fmt.Errorf("%w: unknown decision kind %q", ErrRunnerMisconfigured, req.Kind)
	}
	return betting.BetOffer{}, err
}

func fallbackDecision(kind DecisionKind) Decision {
	switch kind {
	case DecisionCaptain:
		return Decision{Action: ActionGoSolo}
	case DecisionAardvark:
		return Decision{Action: ActionStaySolo}
	case DecisionOfferDouble, DecisionSpecial:
		return Decision{Action: ActionPass}
	default:
		return Decision{Action: ActionAccept}
	}
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
	default:
		return nil
	}
}
