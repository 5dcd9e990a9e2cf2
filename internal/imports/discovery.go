package imports

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
)

// candidate is a catalog location pointing at the root catalog file of a
// repository's default branch.
type candidate struct {
	Location      model.Location
	RepoURL       string
	DefaultBranch string
	ApprovalTool  model.ApprovalTool
}

// discoverCandidates keeps the locations that point at the catalog file in the
// root of their repository's default branch. Repositories whose default branch
// cannot be resolved are dropped.
func (s *Service) discoverCandidates(ctx context.Context, locations []model.Location, logger *slog.Logger) []candidate {
	type pending struct {
		loc     model.Location
		repoURL string
	}

	var (
		items []pending
		repos []string
		seen  = make(map[string]bool)
	)

	for _, loc := range locations {
		if !strings.HasSuffix(loc.Target, s.opts.CatalogFilename) {
			continue
		}

		repoURL, ok := giturl.SplitLocation(loc.Target)
		if !ok {
			continue
		}

		items = append(items, pending{loc: loc, repoURL: repoURL})

		if !seen[repoURL] {
			seen[repoURL] = true
			repos = append(repos, repoURL)
		}
	}

	branches := s.resolveDefaultBranches(ctx, repos, logger)

	var out []candidate

	for _, it := range items {
		branch, ok := branches[it.repoURL]
		if !ok {
			continue
		}

		gitlab := s.providers.ApprovalTool(it.repoURL) == model.ApprovalToolGitLab
		if !isRootCatalogFile(it.loc.Target, it.repoURL, branch, s.opts.CatalogFilename, gitlab) {
			continue
		}

		out = append(out, candidate{
			Location:      it.loc,
			RepoURL:       it.repoURL,
			DefaultBranch: branch,
		})
	}

	return out
}

func isRootCatalogFile(target, repoURL, branch, filename string, gitlab bool) bool {
	if target == giturl.CatalogFileURL(repoURL, branch, filename, false) {
		return true
	}

	return gitlab && target == giturl.CatalogFileURL(repoURL, branch, filename, true)
}

// resolveDefaultBranches looks up the default branch of every repository
// concurrently. Failed lookups are logged and left out of the result.
func (s *Service) resolveDefaultBranches(ctx context.Context, repos []string, logger *slog.Logger) map[string]string {
	var (
		mu       sync.Mutex
		branches = make(map[string]string, len(repos))
	)

	s.fanOut(ctx, len(repos), func(ctx context.Context, i int) {
		repoURL := repos[i]

		branch, err := s.defaultBranch(ctx, repoURL)
		if err != nil {
			logger.Warn("failed to resolve default branch", "repo", repoURL, "error", err)
			return
		}

		mu.Lock()
		branches[repoURL] = branch
		mu.Unlock()
	})

	return branches
}

func (s *Service) defaultBranch(ctx context.Context, repoURL string) (string, error) {
	if s.branches != nil {
		if branch, ok := s.branches.Get(repoURL); ok {
			return branch, nil
		}
	}

	p, err := s.providers.ForURL(repoURL)
	if err != nil {
		return "", err
	}

	branch, err := p.DefaultBranch(ctx, repoURL)
	if err != nil {
		return "", err
	}

	if s.branches != nil {
		if err := s.branches.Put(repoURL, branch); err != nil {
			s.logger.Debug("failed to cache default branch", "repo", repoURL, "error", err)
		}
	}

	return branch, nil
}
