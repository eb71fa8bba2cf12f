package main

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"strings"
	"time"

	"github.com/imaddar/wolf-goat-pig/services/engine/internal/agentclient"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/api"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/domain"
	"github.com/imaddar/wolf-goat-pig/services/engine/internal/roundrunner"
)

// newPlayerSources returns nil when no agents are configured, which leaves
// autoplay disabled on the server.
func newPlayerSources(endpoints map[domain.PlayerID]string, clientTimeout time.Duration, scoreSeed int64) (api.PlayerSources, error) {
	if len(endpoints) == 0 {
		return nil, nil
	}

	routes := make(agentclient.EndpointMap, len(endpoints))
	for player, endpoint := range endpoints {
		if err := validateEndpoint(endpoint); err != nil {
			return nil, fmt.Errorf("agent for %s: %w", player, err)
		}
		routes[player] = strings.TrimSpace(endpoint)
	}

	decisions := agentclient.DecisionProvider{
		Client:           agentclient.New(clientTimeout),
		Endpoints:        routes,
		DefaultTimeoutMS: uint64(clientTimeout / time.Millisecond),
	}
	return func(roundID string) (roundrunner.DecisionProvider, roundrunner.ScoreProvider, error) {
		return decisions, roundrunner.NewSimulatedScores(roundSeed(scoreSeed, roundID)), nil
	}, nil
}

func validateEndpoint(endpoint string) error {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return fmt.Errorf("%w: %v", agentclient.ErrEndpointNotConfigured, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: endpoint %q must be http or https", agentclient.ErrEndpointNotConfigured, endpoint)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%w: endpoint %q has no host", agentclient.ErrEndpointNotConfigured, endpoint)
	}
	return nil
}

// roundSeed gives every round its own score stream under one configured seed.
func roundSeed(seed int64, roundID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(roundID))
	return seed ^ int64(h.Sum64())
}
