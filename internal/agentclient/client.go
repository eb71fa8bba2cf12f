package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
)

const (
	ProtocolVersion        = 1
	defaultTimeout         = 2 * time.Second
	defaultDecisionTimeout = uint64(2000)
	maxResponseBodyBytes   = 1 << 20
)

var (
	ErrEndpointNotConfigured = errors.New("agent endpoint not configured")
	ErrRequestTimeout        = errors.New("agent request timeout")
	ErrNetwork               = errors.New("agent network error")
	ErrMalformedResponse     = errors.New("agent response malformed")
	ErrIllegalAgentDecision  = errors.New("agent returned illegal decision")
)

type Client struct {
	httpClient *http.Client
}

type Request struct {
	EndpointURL       string
	Decision          roundrunner.DecisionRequest
	DecisionTimeoutMS uint64
}

type protocolRequest struct {
	ProtocolVersion  int                `json:"protocol_version"`
	RoundID          string             `json:"round_id"`
	Hole             int                `json:"hole"`
	Kind             string             `json:"kind"`
	Player           string             `json:"player"`
	Captain          string             `json:"captain"`
	Goat             string             `json:"goat,omitempty"`
	Phase            string             `json:"phase"`
	Wager            int                `json:"wager"`
	Team1            []string           `json:"team1,omitempty"`
	Team2            []string           `json:"team2,omitempty"`
	Candidates       []string           `json:"candidates,omitempty"`
	OfferID          string             `json:"offer_id,omitempty"`
	Standings        map[string]float64 `json:"standings"`
	LegalActions     []string           `json:"legal_actions"`
	DecisionDeadline uint64             `json:"decision_deadline_ms"`
}

type protocolResponse struct {
	Action     string `json:"action"`
	Partner    string `json:"partner,omitempty"`
	Team       int    `json:"team,omitempty"`
	Multiplier int    `json:"multiplier,omitempty"`
}

func New(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Client{httpClient: &http.Client{Timeout: timeout}}
}

// Decide posts the pending decision to an agent and returns its answer once
// it has been checked against the legal actions.
func (c Client) Decide(ctx context.Context, req Request) (roundrunner.Decision, error) {
	if strings.TrimSpace(req.EndpointURL) == "" {
		return roundrunner.Decision{}, ErrEndpointNotConfigured
	}
	if c.httpClient == nil {
		c = New(defaultTimeout)
	}

	payload := buildProtocolRequest(req.Decision, chooseDecisionTimeout(req))
	body, err := json.Marshal(payload)
	if err != nil {
		return roundrunner.Decision{}, fmt.Errorf("%w: marshal payload: %v", ErrMalformedResponse, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return roundrunner.Decision{}, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeoutError(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return roundrunner.Decision{}, fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		}
		return roundrunner.Decision{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return roundrunner.Decision{}, fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}

	decoder := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodyBytes+1))

	var dto protocolResponse
	if err := decoder.Decode(&dto); err != nil {
		return roundrunner.Decision{}, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); err != io.EOF {
		return roundrunner.Decision{}, fmt.Errorf("%w: response body has trailing data", ErrMalformedResponse)
	}

	return parseAndValidateProtocolResponse(dto, req.Decision)
}

func chooseDecisionTimeout(req Request) uint64 {
	if req.DecisionTimeoutMS > 0 {
		return req.DecisionTimeoutMS
	}
	return defaultDecisionTimeout
}

func buildProtocolRequest(req roundrunner.DecisionRequest, timeoutMS uint64) protocolRequest {
	payload := protocolRequest{
		ProtocolVersion:  ProtocolVersion,
		RoundID:          req.RoundID,
		Hole:             req.Hole,
		Kind:             string(req.Kind),
		Player:           string(req.Actor),
		Captain:          string(req.Formation.Captain),
		Goat:             string(req.Rotation.GoatPlayerID),
		Phase:            string(req.Formation.Phase),
		Wager:            req.Betting.CurrentWager,
		Team1:            toStrings(req.Formation.Team1),
		Team2:            toStrings(req.Formation.Team2),
		Candidates:       toStrings(req.Candidates),
		OfferID:          req.OfferID,
		Standings:        make(map[string]float64, len(req.Standings)),
		LegalActions:     make([]string, 0, len(req.Legal)),
		DecisionDeadline: timeoutMS,
	}
	for id, q := range req.Standings {
		payload.Standings[string(id)] = q
	}
	for _, action := range req.Legal {
		payload.LegalActions = append(payload.LegalActions, string(action))
	}
	return payload
}

func parseAndValidateProtocolResponse(dto protocolResponse, req roundrunner.DecisionRequest) (roundrunner.Decision, error) {
	action := roundrunner.Action(dto.Action)
	if !slices.Contains(req.Legal, action) {
		return roundrunner.Decision{}, fmt.Errorf("%w: action %q not legal", ErrIllegalAgentDecision, dto.Action)
	}

	decision := roundrunner.Decision{Action: action}
	switch action {
	case roundrunner.ActionRequestPartner:
		partner := slices.IndexFunc(req.Candidates, func(id domain.PlayerID) bool { return string(id) == dto.Partner })
		if partner < 0 {
			return roundrunner.Decision{}, fmt.Errorf("%w: %q is not an available partner", ErrIllegalAgentDecision, dto.Partner)
		}
		decision.Partner = req.Candidates[partner]
	case roundrunner.ActionJoin:
		team := statemachine.Team(dto.Team)
		if team != statemachine.Team1 && team != statemachine.Team2 {
			return roundrunner.Decision{}, fmt.Errorf("%w: join requires team 1 or 2, got %d", ErrIllegalAgentDecision, dto.Team)
		}
		decision.Team = team
	case roundrunner.ActionJoesSpecial:
		switch dto.Multiplier {
		case 2, 4, 8:
			decision.Multiplier = dto.Multiplier
		default:
			return roundrunner.Decision{}, fmt.Errorf("%w: joe's special requires multiplier 2, 4 or 8, got %d", ErrIllegalAgentDecision, dto.Multiplier)
		}
	}
	if dto.Partner != "" && action != roundrunner.ActionRequestPartner {
		return roundrunner.Decision{}, fmt.Errorf("%w: partner not allowed for %s", ErrIllegalAgentDecision, action)
	}
	if dto.Team != 0 && action != roundrunner.ActionJoin {
		return roundrunner.Decision{}, fmt.Errorf("%w: team not allowed for %s", ErrIllegalAgentDecision, action)
	}
	if dto.Multiplier != 0 && action != roundrunner.ActionJoesSpecial {
		return roundrunner.Decision{}, fmt.Errorf("%w: multiplier not allowed for %s", ErrIllegalAgentDecision, action)
	}
	return decision, nil
}

func toStrings(ids []domain.PlayerID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
