package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/persistence"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/round"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
)

const defaultAutoplayTimeout = 30 * time.Second

var (
	ErrRoundExists        = errors.New("round already exists")
	ErrAutoplayDisabled   = errors.New("autoplay is not configured")
	errStoredRound        = errors.New("stored round is unreadable")
	errInvalidRequestBody = errors.New("invalid request body")
)

// PlayerSources resolves who makes decisions and who reports scores when a
// round is played automatically.
type PlayerSources func(roundID string) (roundrunner.DecisionProvider, roundrunner.ScoreProvider, error)

type Server struct {
	repo            persistence.Repository
	logger          *slog.Logger
	sources         PlayerSources
	defaultConfig   domain.RoundConfig
	roundOptions    []round.Option
	now             func() time.Time
	autoplayTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*roundLock
}

// roundLock serializes writes to one round. It is dropped from the server's
// map once no request holds or waits on it.
type roundLock struct {
	mu   sync.Mutex
	refs int
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPlayerSources(sources PlayerSources) ServerOption {
	return func(s *Server) { s.sources = sources }
}

// WithDefaultConfig sets the house rules used when a new round names none.
func WithDefaultConfig(cfg domain.RoundConfig) ServerOption {
	return func(s *Server) { s.defaultConfig = cfg }
}

func WithRoundOptions(opts ...round.Option) ServerOption {
	return func(s *Server) { s.roundOptions = append(s.roundOptions, opts...) }
}

func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func WithAutoplayTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.autoplayTimeout = timeout
		}
	}
}

func NewServer(repo persistence.Repository, opts ...ServerOption) *Server {
	s := &Server{
		repo:            repo,
		logger:          slog.Default(),
		defaultConfig:   domain.DefaultRoundConfig(),
		now:             func() time.Time { return time.Now().UTC() },
		autoplayTimeout: defaultAutoplayTimeout,
		locks:           make(map[string]*roundLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// App builds the fiber application serving the round routes. Middleware
// runs ahead of every route in the order given.
func (s *Server) App(middleware ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Wolf Goat Pig",
		Immutable:             true,
		DisableStartupMessage: true,
	})
	for _, handler := range middleware {
		app.Use(handler)
	}
	s.Register(app)
	return app
}

func (s *Server) Register(router fiber.Router) {
	router.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	router.Get("/courses/:name", s.handleGetCourse)

	rounds := router.Group("/rounds")
	rounds.Post("/", s.handleCreateRound)
	rounds.Get("/", s.handleListRounds)
	rounds.Get("/:id", s.handleGetRound)
	rounds.Get("/:id/holes", s.handleListHoles)
	rounds.Get("/:id/actions", s.handleListActions)
	rounds.Get("/:id/allocations", s.handleAllocations)

	rounds.Post("/:id/partner", s.handleRequestPartner)
	rounds.Post("/:id/partner/response", s.handlePartnerResponse)
	rounds.Post("/:id/solo", s.handleDeclareSolo)
	rounds.Post("/:id/aardvark/join", s.handleAardvarkJoin)
	rounds.Post("/:id/aardvark/response", s.handleAardvarkResponse)
	rounds.Post("/:id/aardvark/solo", s.handleAardvarkSolo)
	rounds.Post("/:id/specials/:special", s.handleSpecial)
	rounds.Post("/:id/offers", s.handleOfferDouble)
	rounds.Post("/:id/offers/:offer/accept", s.handleAcceptOffer)
	rounds.Post("/:id/offers/:offer/decline", s.handleDeclineOffer)
	rounds.Post("/:id/holes/complete", s.handleCompleteHole)
	rounds.Put("/:id/holes/:hole", s.handleResettle)
	rounds.Delete("/:id/holes/last", s.handleUndoLastHole)
	rounds.Post("/:id/autoplay", s.handleAutoplay)
}

// mutation applies fn to the stored round under the round's lock, then
// persists the new state and an audit entry.
type mutation struct {
	action string
	actor  domain.PlayerID
	detail string
	apply  func(rd *round.Round) (any, error)
}

func (s *Server) mutate(c *fiber.Ctx, m mutation) error {
	roundID := c.Params("id")
	unlock := s.lockRound(roundID)
	defer unlock()

	rd, rec, err := s.load(roundID)
	if err != nil {
		return s.fail(c, err)
	}
	hole := rd.CurrentHole()
	result, err := m.apply(rd)
	if err != nil {
		return s.fail(c, err)
	}
	if err := s.save(rd, rec.CreatedAt); err != nil {
		return s.fail(c, fmt.Errorf("persist round: %w", err))
	}
	if err := s.repo.AppendAction(persistence.ActionRecord{
		RoundID: roundID,
		Hole:    hole,
		Actor:   m.actor,
		Action:  m.action,
		Detail:  m.detail,
		At:      s.now(),
	}); err != nil {
		return s.fail(c, fmt.Errorf("append action: %w", err))
	}

	s.logger.Info("round updated",
		"round_id", roundID,
		"hole", hole,
		"action", m.action,
		"actor", m.actor,
	)
	if result == nil {
		result = newRoundResponse(rd)
	}
	return c.JSON(result)
}

func (s *Server) lockRound(roundID string) func() {
	s.mu.Lock()
	l, ok := s.locks[roundID]
	if !ok {
		l = &roundLock{}
		s.locks[roundID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, roundID)
		}
		s.mu.Unlock()
	}
}

func (s *Server) load(roundID string) (*round.Round, persistence.RoundRecord, error) {
	rec, ok, err := s.repo.GetRound(roundID)
	if err != nil {
		return nil, persistence.RoundRecord{}, fmt.Errorf("load round: %w", err)
	}
	if !ok {
		return nil, persistence.RoundRecord{}, persistence.ErrRoundNotFound
	}
	rd, err := round.Restore(rec.Snapshot, s.roundOptions...)
	if err != nil {
		return nil, persistence.RoundRecord{}, fmt.Errorf("%w: round %s: %v", errStoredRound, roundID, err)
	}
	return rd, rec, nil
}

func (s *Server) save(rd *round.Round, createdAt time.Time) error {
	now := s.now()
	if createdAt.IsZero() {
		createdAt = now
	}
	return s.repo.SaveRound(persistence.NewRoundRecord(rd, createdAt, now))
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	} else {
		s.logger.Debug("request rejected", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidRequestBody), errors.Is(err, domain.ErrConfiguration):
		return fiber.StatusBadRequest
	case errors.Is(err, persistence.ErrRoundNotFound), errors.Is(err, persistence.ErrCourseNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrRoundExists),
		errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrAlreadyUsed):
		return fiber.StatusConflict
	case errors.Is(err, ErrAutoplayDisabled):
		return fiber.StatusNotImplemented
	case errors.Is(err, roundrunner.ErrContextCancelled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequestBody, err)
	}
	return nil
}
