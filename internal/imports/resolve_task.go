package imports

import (
	"context"
	"errors"
	"fmt"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/scaffolder"
)

var errNoTaskAPI = errors.New("scaffolder task API is not configured")

// resolveTask derives the status of a repository imported through scaffolder
// tasks from its most recently executed task.
func (s *Service) resolveTask(ctx context.Context, repoURL, defaultBranch string, tool model.ApprovalTool, withHistory bool) Lookup {
	imp := newImport(repoURL, defaultBranch, tool)

	if s.tasks == nil {
		return failed(imp, model.StatusTaskFetchFailed, errNoTaskAPI)
	}

	repo, err := s.ledger.Repositories.FindByURL(ctx, repoURL)
	if err != nil {
		return failed(imp, model.StatusTaskFetchFailed, err)
	}

	if repo == nil {
		return failed(imp, model.StatusTaskFetchFailed, fmt.Errorf("no scaffolder task recorded for %s", repoURL))
	}

	if imp.ApprovalTool == "" {
		imp.ApprovalTool = model.ApprovalTool(repo.ApprovalTool)
	}

	last, err := s.ledger.Tasks.LastExecutedByRepositoryID(ctx, repo.ID)
	if err != nil {
		return failed(imp, model.StatusTaskFetchFailed, err)
	}

	if last == nil {
		return failed(imp, model.StatusTaskFetchFailed, fmt.Errorf("no scaffolder task recorded for %s", repoURL))
	}

	imp.Task = &model.TaskRef{TaskID: last.TaskID}
	imp.LastUpdate = last.ExecutedAt

	if withHistory {
		history, err := s.taskHistory(ctx, repo.ID)
		if err != nil {
			return failed(imp, model.StatusTaskFetchFailed, err)
		}

		imp.Tasks = history
	}

	task, err := s.tasks.GetTask(ctx, last.TaskID)
	if err != nil {
		imp.Status = model.StatusTaskFetchFailed
		imp.Errors = append(imp.Errors, upstreamText(err))

		return Lookup{Import: imp}
	}

	imp.Status = model.TaskStatus(task.Status)

	if task.LastHeartbeatAt != nil {
		imp.LastUpdate = task.LastHeartbeatAt
	}

	if published := task.PublishedPullRequest(); published != nil {
		imp.SetPullRequest(s.publishedPullRequest(ctx, repoURL, imp.ApprovalTool, published))
	}

	return Lookup{Import: imp}
}

func (s *Service) taskHistory(ctx context.Context, repositoryID int64) ([]model.TaskRecord, error) {
	rows, err := s.ledger.Tasks.FindByRepositoryID(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	history := make([]model.TaskRecord, 0, len(rows))

	for _, row := range rows {
		locations, err := s.ledger.Locations.FindByTaskID(ctx, row.TaskID)
		if err != nil {
			return nil, err
		}

		rec := model.TaskRecord{TaskID: row.TaskID, ExecutedAt: row.ExecutedAt}
		for _, loc := range locations {
			rec.Locations = append(rec.Locations, model.TaskLocationInfo{Location: loc.Location, Type: loc.Type})
		}

		history = append(history, rec)
	}

	return history, nil
}

// publishedPullRequest expands the pull request a task opened with the
// provider's view of it. Provider failures leave the bare reference.
func (s *Service) publishedPullRequest(ctx context.Context, repoURL string, tool model.ApprovalTool, published *scaffolder.PublishedPR) *model.PullRequest {
	pr := &model.PullRequest{Number: published.Number, URL: published.URL, HeadSHA: published.HeadSHA}

	p, err := s.providers.ForRepo(repoURL, tool)
	if err != nil {
		return pr
	}

	if published.Number > 0 {
		live, err := p.GetPR(ctx, repoURL, published.Number)
		if err != nil {
			s.logger.Warn("failed to fetch task pull request", "repo", repoURL, "number", published.Number, "error", err)
		} else {
			pr = live
			if pr.URL == "" {
				pr.URL = published.URL
			}

			if pr.HeadSHA == "" {
				pr.HeadSHA = published.HeadSHA
			}
		}
	}

	if pr.HeadSHA != "" {
		content, err := p.FileContent(ctx, repoURL, pr.HeadSHA, s.opts.CatalogFilename)
		if err != nil {
			s.logger.Debug("failed to read catalog file of task pull request", "repo", repoURL, "sha", pr.HeadSHA, "error", err)
		} else {
			pr.CatalogInfoContent = content
		}
	}

	return pr
}

// upstreamText returns the response body of an upstream failure, or the error
// text when there is none.
func upstreamText(err error) string {
	var upstream *model.UpstreamError
	if errors.As(err, &upstream) && upstream.Body != "" {
		return upstream.Body
	}

	return err.Error()
}
