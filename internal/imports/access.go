package imports

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/provider"
)

// filterAccessible keeps the candidates whose repository is reachable with the
// configured integrations. Candidates are grouped by the provider serving
// their host; each survivor carries that provider's approval tool.
func (s *Service) filterAccessible(ctx context.Context, candidates []candidate, logger *slog.Logger) []candidate {
	type partition struct {
		provider provider.Provider
		urls     []string
	}

	var (
		order      []provider.Provider
		partitions = make(map[provider.Provider]*partition)
	)

	for _, c := range candidates {
		p, err := s.providers.ForURL(c.RepoURL)
		if err != nil {
			logger.Debug("no integration for candidate", "repo", c.RepoURL, "error", err)
			continue
		}

		part, ok := partitions[p]
		if !ok {
			part = &partition{provider: p}
			partitions[p] = part
			order = append(order, p)
		}

		part.urls = append(part.urls, c.RepoURL)
	}

	var (
		mu        sync.Mutex
		reachable = make(map[string]provider.Provider)
	)

	s.fanOut(ctx, len(order), func(ctx context.Context, i int) {
		part := partitions[order[i]]

		urls, err := part.provider.FilterReachable(ctx, part.urls)
		if err != nil {
			logger.Warn("failed to filter reachable repositories", "host", part.provider.Host(), "error", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()

		for _, u := range urls {
			reachable[u] = part.provider
		}
	})

	out := make([]candidate, 0, len(candidates))

	for _, c := range candidates {
		p, ok := reachable[c.RepoURL]
		if !ok {
			continue
		}

		c.ApprovalTool = p.ApprovalTool()
		out = append(out, c)
	}

	return out
}
