package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/persistence"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/round"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/settlement"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
)

type CreateRoundRequest struct {
	ID         string              `json:"id,omitempty"`
	CourseName string              `json:"course_name,omitempty"`
	Course     *domain.Course      `json:"course,omitempty"`
	Config     *domain.RoundConfig `json:"config,omitempty"`
	Players    []domain.Player     `json:"players"`
}

type PartnerRequest struct {
	Captain domain.PlayerID `json:"captain"`
	Partner domain.PlayerID `json:"partner"`
}

type ResponseRequest struct {
	Accept *bool `json:"accept"`
}

type PlayerRequest struct {
	Player domain.PlayerID `json:"player"`
}

type AardvarkJoinRequest struct {
	Aardvark domain.PlayerID   `json:"aardvark"`
	Team     statemachine.Team `json:"team"`
}

type SpecialRequest struct {
	Player     domain.PlayerID `json:"player"`
	Multiplier int             `json:"multiplier,omitempty"`
}

type OfferRequest struct {
	From domain.PlayerID `json:"from"`
}

type CompleteHoleRequest struct {
	GrossScores map[domain.PlayerID]int `json:"gross_scores"`
}

type ResettleRequest struct {
	Formation   *statemachine.Envelope  `json:"formation,omitempty"`
	GrossScores map[domain.PlayerID]int `json:"gross_scores,omitempty"`
	Wager       *int                    `json:"wager,omitempty"`
	Duncan      *bool                   `json:"duncan,omitempty"`
	Notes       *string                 `json:"notes,omitempty"`
}

type AutoplayRequest struct {
	// Holes caps how many holes are played; zero plays to the end.
	Holes               int `json:"holes,omitempty"`
	MaxDecisionsPerHole int `json:"max_decisions_per_hole,omitempty"`
}

type RoundResponse struct {
	round.Snapshot
	HoepfingerStartHole int                         `json:"hoepfinger_start_hole"`
	Standings           map[domain.PlayerID]float64 `json:"standings"`
}

type RoundSummary struct {
	RoundID     string                      `json:"round_id"`
	Status      persistence.RoundStatus     `json:"status"`
	CourseName  string                      `json:"course_name"`
	PlayerCount int                         `json:"player_count"`
	CurrentHole int                         `json:"current_hole"`
	Standings   map[domain.PlayerID]float64 `json:"standings"`
	CreatedAt   string                      `json:"created_at"`
	UpdatedAt   string                      `json:"updated_at"`
}

type AutoplayResponse struct {
	RoundID        string                      `json:"round_id"`
	HolesCompleted int                         `json:"holes_completed"`
	TotalDecisions int                         `json:"total_decisions"`
	TotalFallbacks int                         `json:"total_fallbacks"`
	Complete       bool                        `json:"complete"`
	Holes          []settlement.HoleRecord     `json:"holes"`
	Standings      map[domain.PlayerID]float64 `json:"standings"`
}

func newRoundResponse(rd *round.Round) RoundResponse {
	return RoundResponse{
		Snapshot:            rd.Snapshot(),
		HoepfingerStartHole: rd.HoepfingerStartHole(),
		Standings:           rd.Standings(),
	}
}

func (s *Server) handleCreateRound(c *fiber.Ctx) error {
	var req CreateRoundRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}

	course, err := s.resolveCourse(req)
	if err != nil {
		return s.fail(c, err)
	}
	cfg := s.defaultConfig
	if req.Config != nil {
		cfg = *req.Config
	}

	rd, err := round.New(round.NewInput{
		ID:      strings.TrimSpace(req.ID),
		Config:  cfg,
		Course:  course,
		Players: req.Players,
	}, s.roundOptions...)
	if err != nil {
		return s.fail(c, err)
	}

	unlock := s.lockRound(rd.ID())
	defer unlock()
	if _, exists, err := s.repo.GetRound(rd.ID()); err != nil {
		return s.fail(c, fmt.Errorf("load round: %w", err))
	} else if exists {
		return s.fail(c, fmt.Errorf("%w: %s", ErrRoundExists, rd.ID()))
	}
	if err := s.save(rd, s.now()); err != nil {
		return s.fail(c, fmt.Errorf("persist round: %w", err))
	}

	s.logger.Info("round created",
		"round_id", rd.ID(),
		"course", course.Name,
		"players", len(req.Players),
		"first_tee", rd.FirstTeeOrder(),
	)
	return c.Status(fiber.StatusCreated).JSON(newRoundResponse(rd))
}

func (s *Server) resolveCourse(req CreateRoundRequest) (domain.Course, error) {
	if req.Course != nil {
		return *req.Course, nil
	}
	name := strings.TrimSpace(req.CourseName)
	if name == "" {
		return domain.Course{}, fmt.Errorf("%w: course or course_name is required", domain.ErrConfiguration)
	}
	course, ok, err := s.repo.GetCourse(name)
	if err != nil {
		return domain.Course{}, fmt.Errorf("load course: %w", err)
	}
	if !ok {
		return domain.Course{}, fmt.Errorf("%w: %s", persistence.ErrCourseNotFound, name)
	}
	return course, nil
}

func (s *Server) handleListRounds(c *fiber.Ctx) error {
	records, err := s.repo.ListRounds()
	if err != nil {
		return s.fail(c, fmt.Errorf("list rounds: %w", err))
	}
	out := make([]RoundSummary, 0, len(records))
	for _, rec := range records {
		out = append(out, RoundSummary{
			RoundID:     rec.RoundID,
			Status:      rec.Status,
			CourseName:  rec.CourseName,
			PlayerCount: rec.PlayerCount,
			CurrentHole: rec.CurrentHole,
			Standings:   standingsOf(rec.Snapshot),
			CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:   rec.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(out)
}

func (s *Server) handleGetRound(c *fiber.Ctx) error {
	rd, _, err := s.load(c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(newRoundResponse(rd))
}

func (s *Server) handleListHoles(c *fiber.Ctx) error {
	holes, err := s.repo.ListHoles(c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(holes)
}

func (s *Server) handleListActions(c *fiber.Ctx) error {
	roundID := c.Params("id")
	if _, ok, err := s.repo.GetRound(roundID); err != nil {
		return s.fail(c, fmt.Errorf("load round: %w", err))
	} else if !ok {
		return s.fail(c, persistence.ErrRoundNotFound)
	}
	actions, err := s.repo.ListActions(roundID)
	if err != nil {
		return s.fail(c, fmt.Errorf("list actions: %w", err))
	}
	return c.JSON(actions)
}

func (s *Server) handleAllocations(c *fiber.Ctx) error {
	rd, _, err := s.load(c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	allocs, err := rd.Allocations()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(allocs)
}

func (s *Server) handleRequestPartner(c *fiber.Ctx) error {
	var req PartnerRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	return s.mutate(c, mutation{
		action: "request_partner",
		actor:  req.Captain,
		detail: string(req.Partner),
		apply: func(rd *round.Round) (any, error) {
			return nil, rd.RequestPartner(req.Captain, req.Partner)
		},
	})
}

func (s *Server) handlePartnerResponse(c *fiber.Ctx) error {
	var req ResponseRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	if req.Accept == nil {
		return s.fail(c, fmt.Errorf("%w: accept is required", errInvalidRequestBody))
	}
	return s.mutate(c, mutation{
		action: "partnership_response",
		detail: acceptDetail(*req.Accept),
		apply: func(rd *round.Round) (any, error) {
			return nil, rd.RespondToPartnership(*req.Accept)
		},
	})
}

func (s *Server) handleDeclareSolo(c *fiber.Ctx) error {
	var req PlayerRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	return s.mutate(c, mutation{
		action: "go_solo",
		actor:  req.Player,
		apply: func(rd *round.Round) (any, error) {
			return nil, rd.DeclareSolo(req.Player)
		},
	})
}

func (s *Server) handleAardvarkJoin(c *fiber.Ctx) error {
	var req AardvarkJoinRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	return s.mutate(c, mutation{
		action: "aardvark_join",
		actor:  req.Aardvark,
		detail: fmt.Sprintf("team %d", req.Team),
		apply: func(rd *round.Round) (any, error) {
			return nil, rd.AardvarkRequestJoin(req.Aardvark, req.Team)
		},
	})
}

func (s *Server) handleAardvarkResponse(c *fiber.Ctx) error {
	var req ResponseRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	if req.Accept == nil {
		return s.fail(c, fmt.Errorf("%w: accept is required", errInvalidRequestBody))
	}
	return s.mutate(c, mutation{
		action: "aardvark_response",
		detail: acceptDetail(*req.Accept),
		apply: func(rd *round.Round) (any, error) {
			return nil, rd.RespondToAardvark(*req.Accept)
		},
	})
}

func (s *Server) handleAardvarkSolo(c *fiber.Ctx) error {
	var req PlayerRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	return s.mutate(c, mutation{
		action: "aardvark_stay_solo",
		actor:  req.Player,
		apply: func(rd *round.Round) (any, error) {
			return nil, rd.AardvarkStaySolo(req.Player)
		},
	})
}

func (s *Server) handleSpecial(c *fiber.Ctx) error {
	var req SpecialRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}

	special := c.Params("special")
	var apply func(rd *round.Round) error
	switch special {
	case string(domain.SpecialFloat):
		apply = func(rd *round.Round) error { return rd.InvokeFloat(req.Player) }
	case string(domain.SpecialOption):
		apply = func(rd *round.Round) error { return rd.InvokeOption(req.Player) }
	case string(domain.SpecialDuncan):
		apply = func(rd *round.Round) error { return rd.InvokeDuncan(req.Player) }
	case "joes":
		apply = func(rd *round.Round) error { return rd.SetJoesSpecial(req.Player, req.Multiplier) }
	default:
		return s.fail(c, fmt.Errorf("%w: unknown special %q", domain.ErrConfiguration, special))
	}

	detail := ""
	if req.Multiplier != 0 {
		detail = fmt.Sprintf("multiplier %d", req.Multiplier)
	}
	return s.mutate(c, mutation{
		action: "special_" + special,
		actor:  req.Player,
		detail: detail,
		apply: func(rd *round.Round) (any, error) {
			return nil, apply(rd)
		},
	})
}

func (s *Server) handleOfferDouble(c *fiber.Ctx) error {
	var req OfferRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	return s.mutate(c, mutation{
		action: "offer_double",
		actor:  req.From,
		apply: func(rd *round.Round) (any, error) {
			offer, err := rd.OfferDouble(req.From)
			if err != nil {
				return nil, err
			}
			return offer, nil
		},
	})
}

func (s *Server) handleAcceptOffer(c *fiber.Ctx) error {
	offerID := c.Params("offer")
	return s.mutate(c, mutation{
		action: "accept_offer",
		detail: offerID,
		apply: func(rd *round.Round) (any, error) {
			return nil, rd.AcceptOffer(offerID)
		},
	})
}

func (s *Server) handleDeclineOffer(c *fiber.Ctx) error {
	offerID := c.Params("offer")
	return s.mutate(c, mutation{
		action: "decline_offer",
		detail: offerID,
		apply: func(rd *round.Round) (any, error) {
			rec, err := rd.DeclineOffer(offerID)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	})
}

func (s *Server) handleCompleteHole(c *fiber.Ctx) error {
	var req CompleteHoleRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	return s.mutate(c, mutation{
		action: "complete_hole",
		apply: func(rd *round.Round) (any, error) {
			rec, err := rd.CompleteHole(req.GrossScores)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	})
}

func (s *Server) handleResettle(c *fiber.Ctx) error {
	hole, err := c.ParamsInt("hole")
	if err != nil {
		return s.fail(c, fmt.Errorf("%w: hole must be a number", errInvalidRequestBody))
	}
	var req ResettleRequest
	if err := parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}

	edit := round.HoleEdit{
		GrossScores: req.GrossScores,
		Wager:       req.Wager,
		Duncan:      req.Duncan,
		Notes:       req.Notes,
	}
	if req.Formation != nil {
		edit.Formation = req.Formation.Formation
	}
	return s.mutate(c, mutation{
		action: "resettle_hole",
		detail: fmt.Sprintf("hole %d", hole),
		apply: func(rd *round.Round) (any, error) {
			rec, err := rd.Resettle(hole, edit)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	})
}

func (s *Server) handleUndoLastHole(c *fiber.Ctx) error {
	return s.mutate(c, mutation{
		action: "undo_hole",
		apply: func(rd *round.Round) (any, error) {
			rec, err := rd.UndoLastHole()
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
	})
}

// handleAutoplay plays holes with the configured decision and score
// sources, persisting after every hole so a failure keeps finished holes.
func (s *Server) handleAutoplay(c *fiber.Ctx) error {
	if s.sources == nil {
		return s.fail(c, ErrAutoplayDisabled)
	}
	var req AutoplayRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return s.fail(c, err)
		}
	}
	if req.Holes < 0 {
		return s.fail(c, fmt.Errorf("%w: holes must not be negative", errInvalidRequestBody))
	}

	roundID := c.Params("id")
	unlock := s.lockRound(roundID)
	defer unlock()

	rd, rec, err := s.load(roundID)
	if err != nil {
		return s.fail(c, err)
	}
	if rd.IsComplete() {
		return s.fail(c, fmt.Errorf("%w: %w", domain.ErrInvalidStateTransition, round.ErrRoundComplete))
	}
	decisions, scores, err := s.sources(roundID)
	if err != nil {
		return s.fail(c, fmt.Errorf("resolve player sources: %w", err))
	}

	var persistErr error
	runner := roundrunner.New(decisions, scores, roundrunner.RunnerConfig{
		MaxDecisionsPerHole: req.MaxDecisionsPerHole,
		OnDecision: func(event roundrunner.DecisionEvent) {
			if persistErr != nil {
				return
			}
			persistErr = s.repo.AppendAction(persistence.ActionRecord{
				RoundID:    roundID,
				Hole:       event.Hole,
				Actor:      event.Actor,
				Action:     string(event.Decision.Action),
				Detail:     decisionDetail(event),
				IsFallback: event.Fallback,
				At:         s.now(),
			})
		},
	})

	ctx, cancel := context.WithTimeout(c.UserContext(), s.autoplayTimeout)
	defer cancel()

	resp := AutoplayResponse{RoundID: roundID}
	for !rd.IsComplete() && (req.Holes == 0 || resp.HolesCompleted < req.Holes) {
		summary, err := runner.RunHole(ctx, rd)
		resp.TotalDecisions += summary.DecisionCount
		resp.TotalFallbacks += summary.FallbackCount
		if err != nil {
			return s.fail(c, fmt.Errorf("hole %d: %w", summary.Hole, err))
		}
		if persistErr != nil {
			return s.fail(c, fmt.Errorf("append action: %w", persistErr))
		}
		if err := s.save(rd, rec.CreatedAt); err != nil {
			return s.fail(c, fmt.Errorf("persist round: %w", err))
		}
		resp.HolesCompleted++
		resp.Holes = append(resp.Holes, summary.Record)
		s.logger.Info("hole autoplayed",
			"round_id", roundID,
			"hole", summary.Hole,
			"wager", summary.Record.Wager,
			"decisions", summary.DecisionCount,
			"fallbacks", summary.FallbackCount,
		)
	}

	resp.Complete = rd.IsComplete()
	resp.Standings = rd.Standings()
	return c.JSON(resp)
}

func (s *Server) handleGetCourse(c *fiber.Ctx) error {
	name := c.Params("name")
	course, ok, err := s.repo.GetCourse(name)
	if err != nil {
		return s.fail(c, fmt.Errorf("load course: %w", err))
	}
	if !ok {
		return s.fail(c, fmt.Errorf("%w: %s", persistence.ErrCourseNotFound, name))
	}
	return c.JSON(course)
}

func standingsOf(snap round.Snapshot) map[domain.PlayerID]float64 {
	out := make(map[domain.PlayerID]float64, len(snap.Players))
	for _, p := range snap.Players {
		out[p.ID] = 0
	}
	for _, hole := range snap.Holes {
		for id, q := range hole.Quarters {
			out[id] += q
		}
	}
	return out
}

func acceptDetail(accept bool) string {
	if accept {
		return "accepted"
	}
	return "declined"
}

func decisionDetail(event roundrunner.DecisionEvent) string {
	switch {
	case event.Decision.Partner != "":
		return string(event.Decision.Partner)
	case event.Decision.Team != 0:
		return fmt.Sprintf("team %d", event.Decision.Team)
	case event.Decision.Multiplier != 0:
		return fmt.Sprintf("x%d", event.Decision.Multiplier)
	default:
		return string(event.Kind)
	}
}
