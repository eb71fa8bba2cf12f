package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/betting"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/rotation"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/statemachine"
)

func TestBuildProtocolRequestMapsFields(t *testing.T) {
	t.Parallel()

	payload := buildProtocolRequest(captainRequest(), 1500)

	if payload.ProtocolVersion != 1 {
		t.Fatalf("expected protocol 1, got %d", payload.ProtocolVersion)
	}
	if payload.RoundID != "round-1" || payload.Hole != 3 {
		t.Fatalf("unexpected round/hole: %s/%d", payload.RoundID, payload.Hole)
	}
	if payload.Kind != "captain" || payload.Player != "a" || payload.Captain != "a" {
		t.Fatalf("unexpected actor fields: %+v", payload)
	}
	if payload.Phase != string(statemachine.PhaseAwaitingCaptainDecision) {
		t.Fatalf("unexpected phase %q", payload.Phase)
	}
	if payload.Wager != 2 {
		t.Fatalf("expected wager 2, got %d", payload.Wager)
	}
	if len(payload.Candidates) != 2 || payload.Candidates[0] != "b" {
		t.Fatalf("unexpected candidates: %v", payload.Candidates)
	}
	if payload.Standings["d"] != -1.5 {
		t.Fatalf("expected standings d=-1.5, got %v", payload.Standings)
	}
	if len(payload.LegalActions) != 2 || payload.LegalActions[0] != "go_solo" {
		t.Fatalf("unexpected legal actions: %v", payload.LegalActions)
	}
	if payload.DecisionDeadline != 1500 {
		t.Fatalf("expected deadline 1500, got %d", payload.DecisionDeadline)
	}
}

func TestParseAndValidateProtocolResponse(t *testing.T) {
	t.Parallel()

	req := captainRequest()

	good, err := parseAndValidateProtocolResponse(protocolResponse{Action: "request_partner", Partner: "c"}, req)
	if err != nil {
		t.Fatalf("expected valid response, got %v", err)
	}
	if good.Action != roundrunner.ActionRequestPartner || good.Partner != "c" {
		t.Fatalf("unexpected decision %+v", good)
	}

	good, err = parseAndValidateProtocolResponse(protocolResponse{Action: "go_solo"}, req)
	if err != nil || good.Action != roundrunner.ActionGoSolo {
		t.Fatalf("expected go_solo, got %+v (%v)", good, err)
	}

	cases := []protocolResponse{
		{Action: "dance"},
		{Action: "request_partner", Partner: "d"},
		{Action: "request_partner"},
		{Action: "go_solo", Partner: "b"},
		{Action: "go_solo", Team: 1},
	}
	for _, dto := range cases {
		if _, err := parseAndValidateProtocolResponse(dto, req); !errors.Is(err, ErrIllegalAgentDecision) {
			t.Fatalf("expected ErrIllegalAgentDecision for %+v, got %v", dto, err)
		}
	}
}

func TestParseAndValidateProtocolResponseAardvarkTeam(t *testing.T) {
	t.Parallel()

	req := roundrunner.DecisionRequest{
		Kind:  roundrunner.DecisionAardvark,
		Actor: "e",
		Legal: []roundrunner.Action{roundrunner.ActionJoin, roundrunner.ActionStaySolo},
	}

	good, err := parseAndValidateProtocolResponse(protocolResponse{Action: "join", Team: 2}, req)
	if err != nil {
		t.Fatalf("expected valid join, got %v", err)
	}
	if good.Team != statemachine.Team2 {
		t.Fatalf("expected team 2, got %d", good.Team)
	}
	if _, err := parseAndValidateProtocolResponse(protocolResponse{Action: "join", Team: 3}, req); !errors.Is(err, ErrIllegalAgentDecision) {
		t.Fatalf("expected ErrIllegalAgentDecision for team 3, got %v", err)
	}
}

func TestParseAndValidateProtocolResponseJoesSpecial(t *testing.T) {
	t.Parallel()

	req := roundrunner.DecisionRequest{
		Kind:  roundrunner.DecisionSpecial,
		Actor: "d",
		Legal: []roundrunner.Action{roundrunner.ActionJoesSpecial, roundrunner.ActionPass},
	}

	good, err := parseAndValidateProtocolResponse(protocolResponse{Action: "joes_special", Multiplier: 4}, req)
	if err != nil {
		t.Fatalf("expected valid joe's special, got %v", err)
	}
	if good.Action != roundrunner.ActionJoesSpecial || good.Multiplier != 4 {
		t.Fatalf("unexpected decision %+v", good)
	}

	cases := []protocolResponse{
		{Action: "joes_special"},
		{Action: "joes_special", Multiplier: 3},
		{Action: "pass", Multiplier: 2},
		{Action: "float"},
	}
	for _, dto := range cases {
		if _, err := parseAndValidateProtocolResponse(dto, req); !errors.Is(err, ErrIllegalAgentDecision) {
			t.Fatalf("expected ErrIllegalAgentDecision for %+v, got %v", dto, err)
		}
	}
}

func TestClientDecideHappyPath(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		defer r.Body.Close()

		var payload protocolRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request payload: %v", err)
		}
		if payload.ProtocolVersion != 1 {
			t.Errorf("expected protocol version 1, got %d", payload.ProtocolVersion)
		}
		if payload.Player != "a" {
			t.Errorf("expected player a, got %q", payload.Player)
		}
		_ = json.NewEncoder(w).Encode(protocolResponse{Action: "request_partner", Partner: "b"})
	}))
	defer server.Close()

	client := New(2 * time.Second)
	decision, err := client.Decide(context.Background(), Request{
		EndpointURL:       server.URL,
		Decision:          captainRequest(),
		DecisionTimeoutMS: 2000,
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Partner != "b" {
		t.Fatalf("expected partner b, got %+v", decision)
	}
}

func TestClientDecideTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(protocolResponse{Action: "go_solo"})
	}))
	defer server.Close()

	client := New(5 * time.Millisecond)
	_, err := client.Decide(context.Background(), Request{
		EndpointURL: server.URL,
		Decision:    captainRequest(),
	})
	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("expected ErrRequestTimeout, got %v", err)
	}
}

func TestClientDecideMalformedResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not-json"))
	}))
	defer server.Close()

	client := New(2 * time.Second)
	_, err := client.Decide(context.Background(), Request{
		EndpointURL: server.URL,
		Decision:    captainRequest(),
	})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClientDecideRejectsTrailingResponseData(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"action":"go_solo"} {"extra":true}`))
	}))
	defer server.Close()

	client := New(2 * time.Second)
	_, err := client.Decide(context.Background(), Request{
		EndpointURL: server.URL,
		Decision:    captainRequest(),
	})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClientDecideNon200Status(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(2 * time.Second)
	_, err := client.Decide(context.Background(), Request{
		EndpointURL: server.URL,
		Decision:    captainRequest(),
	})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestClientDecideEmptyEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New(time.Second).Decide(context.Background(), Request{EndpointURL: "  ", Decision: captainRequest()})
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("expected ErrEndpointNotConfigured, got %v", err)
	}
}

func captainRequest() roundrunner.DecisionRequest {
	bet, _ := betting.NewState(1, 2)
	bet.CurrentWager = 2
	return roundrunner.DecisionRequest{
		RoundID:    "round-1",
		Hole:       3,
		Kind:       roundrunner.DecisionCaptain,
		Actor:      "a",
		Legal:      []roundrunner.Action{roundrunner.ActionGoSolo, roundrunner.ActionRequestPartner},
		Candidates: []domain.PlayerID{"b", "c"},
		Rotation: rotation.State{
			HoleNumber:    3,
			RotationOrder: []domain.PlayerID{"a", "b", "c", "d"},
		},
		Formation: statemachine.State{
			HoleNumber: 3,
			Phase:      statemachine.PhaseAwaitingCaptainDecision,
			Captain:    "a",
			BaseGroup:  []domain.PlayerID{"a", "b", "c", "d"},
			Declined:   []domain.PlayerID{"d"},
		},
		Betting:   bet,
		Standings: map[domain.PlayerID]float64{"a": 1, "b": 0.5, "c": 0, "d": -1.5},
	}
}
