package imports

import (
	"context"
	"fmt"
	"strings"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/ledger"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/pagination"
)

// resolve dispatches to the resolver of the configured mode.
func (s *Service) resolve(ctx context.Context, repoURL, defaultBranch string, tool model.ApprovalTool, withHistory bool) Lookup {
	switch s.opts.Mode {
	case config.ModeScaffolder:
		return s.resolveTask(ctx, repoURL, defaultBranch, tool, withHistory)
	case config.ModeOrchestrator:
		return s.resolveWorkflow(ctx, repoURL, defaultBranch, tool, withHistory)
	default:
		return s.resolvePR(ctx, repoURL, defaultBranch, tool)
	}
}

// ListImports returns one sorted page of imports. In orchestrator mode the
// repositories come from the ledger, otherwise from catalog locations.
func (s *Service) ListImports(ctx context.Context, opts model.ListOptions) (pagination.Page[*model.Import], error) {
	logger := s.batchLogger("list")

	if s.opts.Mode == config.ModeOrchestrator {
		return s.listWorkflowImports(ctx, opts)
	}

	locations, err := s.catalog.ListLocations(ctx, opts.Search, 0, 0)
	if err != nil {
		return pagination.Page[*model.Import]{}, fmt.Errorf("failed to list catalog locations: %w", err)
	}

	candidates := s.discoverCandidates(ctx, locations.Locations, logger)
	candidates = s.filterAccessible(ctx, candidates, logger)

	results := make([]*model.Import, len(candidates))

	s.fanOut(ctx, len(candidates), func(ctx context.Context, i int) {
		c := candidates[i]

		lookup := s.resolve(ctx, c.RepoURL, c.DefaultBranch, c.ApprovalTool, false)
		if lookup.Import == nil {
			return
		}

		lookup.Import.Source = c.Location.Source
		results[i] = lookup.Import
	})

	imports := compact(results)
	sortImports(imports, opts.SortColumn, opts.SortOrder)

	logger.Debug("listed imports", "locations", len(locations.Locations), "candidates", len(candidates), "imports", len(imports))

	return pagination.Slice(imports, opts.Page, opts.Size), nil
}

// ledgerOrder maps sort columns the ledger can order by itself.
var ledgerOrder = map[string]string{
	SortRepositoryURL: ledger.OrderURL,
	SortApprovalTool:  ledger.OrderApprovalTool,
}

// listWorkflowImports lists the workflow ledger. Columns stored in the ledger
// are sorted and paged by the query. Every other column is only known after
// resolution, so all matching rows are resolved, sorted and then sliced.
func (s *Service) listWorkflowImports(ctx context.Context, opts model.ListOptions) (pagination.Page[*model.Import], error) {
	if column, ok := ledgerOrder[opts.SortColumn]; ok {
		order := ledger.Order{Column: column, Desc: strings.EqualFold(opts.SortOrder, SortDesc)}

		rows, err := s.ledger.WorkflowRepositories.ListPaged(ctx, opts.Page, opts.Size, opts.Search, order)
		if err != nil {
			return pagination.Page[*model.Import]{}, err
		}

		return pagination.Page[*model.Import]{
			Data:       s.resolveWorkflowRows(ctx, rows.Data),
			Page:       rows.Page,
			Size:       rows.Size,
			Total:      rows.Total,
			TotalPages: rows.TotalPages,
		}, nil
	}

	rows, err := s.ledger.WorkflowRepositories.Search(ctx, opts.Search)
	if err != nil {
		return pagination.Page[*model.Import]{}, err
	}

	imports := s.resolveWorkflowRows(ctx, rows)
	sortImports(imports, opts.SortColumn, opts.SortOrder)

	return pagination.Slice(imports, opts.Page, opts.Size), nil
}

// resolveWorkflowRows resolves rows concurrently, keeping their order.
func (s *Service) resolveWorkflowRows(ctx context.Context, rows []ledger.Repository) []*model.Import {
	results := make([]*model.Import, len(rows))

	s.fanOut(ctx, len(rows), func(ctx context.Context, i int) {
		row := rows[i]

		lookup := s.resolveWorkflow(ctx, row.URL, "", model.ApprovalTool(row.ApprovalTool), false)
		if lookup.Import == nil {
			return
		}

		lookup.Import.Source = model.SourceIntegration
		results[i] = lookup.Import
	})

	return compact(results)
}

// GetImportByRepo resolves a single repository with its task or workflow
// history attached. An empty tool is inferred from the repository host.
func (s *Service) GetImportByRepo(ctx context.Context, repoURL, defaultBranch string, tool model.ApprovalTool) Lookup {
	if tool == "" {
		tool = s.providers.ApprovalTool(repoURL)
	}

	return s.resolve(ctx, repoURL, defaultBranch, tool, true)
}

func compact(imports []*model.Import) []*model.Import {
	out := make([]*model.Import, 0, len(imports))

	for _, imp := range imports {
		if imp != nil {
			out = append(out, imp)
		}
	}

	return out
}
