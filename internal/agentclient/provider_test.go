package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
)

type failingEndpoints struct {
	err error
}

func (s failingEndpoints) EndpointForPlayer(string, domain.PlayerID) (string, error) {
	return "", s.err
}

func TestDecisionProviderHappyPath(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(protocolResponse{Action: "go_solo"})
	}))
	defer server.Close()

	provider := DecisionProvider{
		Client:    New(2 * time.Second),
		Endpoints: EndpointMap{"a": server.URL},
	}

	decision, err := provider.Decide(context.Background(), captainRequest())
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if decision.Action != roundrunner.ActionGoSolo {
		t.Fatalf("expected go_solo, got %q", decision.Action)
	}
}

func TestDecisionProviderMissingEndpoint(t *testing.T) {
	t.Parallel()

	provider := DecisionProvider{
		Client:    New(2 * time.Second),
		Endpoints: EndpointMap{},
	}

	_, err := provider.Decide(context.Background(), captainRequest())
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("expected ErrEndpointNotConfigured, got %v", err)
	}
}

func TestDecisionProviderEndpointLookupError(t *testing.T) {
	t.Parallel()

	provider := DecisionProvider{
		Client:    New(2 * time.Second),
		Endpoints: failingEndpoints{err: errors.New("lookup failed")},
	}

	_, err := provider.Decide(context.Background(), captainRequest())
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Fatalf("expected ErrEndpointNotConfigured, got %v", err)
	}
}

func TestDecisionProviderPropagatesClientError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not-json"))
	}))
	defer server.Close()

	provider := DecisionProvider{Endpoints: EndpointMap{"a": server.URL}}

	_, err := provider.Decide(context.Background(), captainRequest())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
