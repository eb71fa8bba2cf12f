package agentclient

import (
	"context"
	"fmt"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
)

type PlayerEndpointProvider interface {
	EndpointForPlayer(roundID string, player domain.PlayerID) (string, error)
}

// EndpointMap routes every round's decisions for a player to the same URL.
type EndpointMap map[domain.PlayerID]string

func (m EndpointMap) EndpointForPlayer(_ string, player domain.PlayerID) (string, error) {
	return m[player], nil
}

// DecisionProvider asks each acting player's agent over HTTP.
type DecisionProvider struct {
	Client           Client
	Endpoints        PlayerEndpointProvider
	DefaultTimeoutMS uint64
}

func (p DecisionProvider) Decide(ctx context.Context, req roundrunner.DecisionRequest) (roundrunner.Decision, error) {
	if p.Endpoints == nil {
		return roundrunner.Decision{}, ErrEndpointNotConfigured
	}

	endpoint, err := p.Endpoints.EndpointForPlayer(req.RoundID, req.Actor)
	if err != nil {
		return roundrunner.Decision{}, fmt.Errorf("%w: %v", ErrEndpointNotConfigured, err)
	}
	if endpoint == "" {
		return roundrunner.Decision{}, fmt.Errorf("%w: player %s", ErrEndpointNotConfigured, req.Actor)
	}

	timeoutMS := p.DefaultTimeoutMS
	if timeoutMS == 0 {
		timeoutMS = defaultDecisionTimeout
	}

	client := p.Client
	if client.httpClient == nil {
		client = New(defaultTimeout)
	}

	return client.Decide(ctx, Request{
		EndpointURL:       endpoint,
		Decision:          req,
		DecisionTimeoutMS: timeoutMS,
	})
}
