package engine

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/hupe1980/confsec/core"
)

// candidateNodes returns the routing candidates for the next dispatch: the
// client's node directory filtered by its current default tags, shuffled for
// load spreading, then capped at MaxCandidateNodes.
func (e *Engine) candidateNodes(ctx context.Context, h core.ClientHandle, cs *clientState) ([]nodeInfo, error) {
	e.mu.RLock()
	tags := append([]string(nil), cs.config.DefaultNodeTags...)
	maxNodes := cs.config.MaxCandidateNodes
	apiKey := cs.config.APIKey
	environment := cs.config.Environment
	e.mu.RUnlock()

	nodes, err := e.freshNodes(ctx, cs, apiKey, environment)
	if err != nil {
		return nil, core.WrapError(core.KindRequest, "fetching node directory", err)
	}

	matched := filterByTags(nodes, tags)

	e.logger.Debug("engine node selection handle=%s matched=%d total=%d", h, len(matched), len(nodes))

	if len(matched) == 0 {
		if len(nodes) == 0 {
			return nil, core.NewError(core.KindRequest, "no nodes available from backend")
		}
		return nil, core.Errorf(core.KindRequest, "no candidate nodes match tags %v", tags)
	}

	rand.Shuffle(len(matched), func(i, j int) { matched[i], matched[j] = matched[j], matched[i] })

	if len(matched) > maxNodes {
		matched = matched[:maxNodes]
	}

	return matched, nil
}

// freshNodes returns the client's cached node directory, refetching it from
// the backend when the cache is older than NodeRefreshInterval. A failed
// refresh falls back to the stale directory when one exists, so transient
// control plane trouble does not fail dispatches outright.
func (e *Engine) freshNodes(ctx context.Context, cs *clientState, apiKey string, environment *string) ([]nodeInfo, error) {
	cs.nodesMu.Lock()
	defer cs.nodesMu.Unlock()

	if cs.nodes != nil && time.Since(cs.nodesFetchedAt) < e.config.NodeRefreshInterval {
		return append([]nodeInfo(nil), cs.nodes...), nil
	}

	start := time.Now()

	nodes, err := e.backend.fetchNodes(ctx, apiKey, environment)
	if err != nil {
		if cs.nodes != nil {
			e.logger.Warn("engine node refresh failed, serving stale directory err=%v", err)
			return append([]nodeInfo(nil), cs.nodes...), nil
		}
		return nil, err
	}

	if nodes == nil {
		nodes = []nodeInfo{}
	}

	cs.nodes = nodes
	cs.nodesFetchedAt = time.Now()

	e.logger.Debug("engine node directory refreshed nodes=%d duration=%s", len(nodes), time.Since(start))

	return append([]nodeInfo(nil), nodes...), nil
}

// filterByTags returns the nodes that carry every required tag. Duplicate
// required tags do not demand duplicate node tags; containment is by set.
func filterByTags(nodes []nodeInfo, required []string) []nodeInfo {
	if len(required) == 0 {
		return append([]nodeInfo(nil), nodes...)
	}

	matched := make([]nodeInfo, 0, len(nodes))
	for _, n := range nodes {
		have := make(map[string]bool, len(n.Tags))
		for _, t := range n.Tags {
			have[t] = true
		}

		ok := true
		for _, t := range required {
			if !have[t] {
				ok = false
				break
			}
		}

		if ok {
			matched = append(matched, n)
		}
	}

	return matched
}
