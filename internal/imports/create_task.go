package imports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/ledger"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
)

// CreateTaskImportJobs submits a scaffolder task for every request. Requests
// that already reference an open pull request update it instead.
func (s *Service) CreateTaskImportJobs(ctx context.Context, reqs []model.ImportRequest) ([]*model.Import, error) {
	if len(reqs) == 0 {
		return nil, model.ErrEmptyRequest
	}

	logger := s.batchLogger("create-tasks").With("count", len(reqs))
	results := make([]*model.Import, len(reqs))

	s.fanOut(ctx, len(reqs), func(ctx context.Context, i int) {
		req := &reqs[i]

		if pr := req.PullRequest(); pr != nil && pr.Number > 0 {
			results[i] = s.updateTaskPR(ctx, req, pr, logger)
			return
		}

		results[i] = s.createTask(ctx, req, logger)
	})

	logger.Info("processed task import requests")

	return results, nil
}

// updateTaskPR rewrites the title and body of an import pull request a task
// opened earlier, and its catalog file when the request carries one.
func (s *Service) updateTaskPR(ctx context.Context, req *model.ImportRequest, pr *model.PullRequest, logger *slog.Logger) *model.Import {
	imp := s.requestImport(req)
	repoURL := req.Repository.URL

	err := func() error {
		p, err := s.providers.ForRepo(repoURL, imp.ApprovalTool)
		if err != nil {
			return err
		}

		if err := p.UpdatePR(ctx, repoURL, pr.Number, pr.Title, pr.Body); err != nil {
			return err
		}

		content := requestContent(req)
		if content == "" || pr.Branch == "" {
			return nil
		}

		return p.WriteFile(ctx, repoURL, pr.Branch, s.opts.CatalogFilename, content, "Update "+s.opts.CatalogFilename)
	}()
	if err != nil {
		logger.Warn("failed to update import pull request", "repo", repoURL, "number", pr.Number, "error", err)

		imp.Status = model.StatusPRError
		imp.AddError(err)

		return imp
	}

	imp.Status = model.StatusWaitPRApproval
	imp.SetPullRequest(pr)

	return imp
}

// taskValues are the template parameters of an import task.
func (s *Service) taskValues(req *model.ImportRequest, tool model.ApprovalTool) map[string]any {
	values := map[string]any{
		"repoUrl":            req.Repository.URL,
		"branchName":         s.opts.BranchName,
		"targetBranchName":   req.Repository.DefaultBranch,
		"approvalTool":       string(tool),
		"catalogInfoContent": requestContent(req),
	}

	if repo, err := giturl.ParseRepository(req.Repository.URL); err == nil {
		values["host"] = repo.Host
		values["owner"] = repo.Owner
		values["repo"] = repo.Name
	}

	if name := entityName(req, requestContent(req)); name != "" {
		values["catalogEntityName"] = name
	}

	if pr := req.PullRequest(); pr != nil {
		values["prTitle"] = pr.Title
		values["prBody"] = pr.Body
	}

	return values
}

func (s *Service) createTask(ctx context.Context, req *model.ImportRequest, logger *slog.Logger) *model.Import {
	imp := s.requestImport(req)
	repoURL := req.Repository.URL

	fail := func(err error) *model.Import {
		logger.Warn("failed to create import task", "repo", repoURL, "error", err)

		imp.Status = model.StatusTaskFetchFailed
		imp.AddError(err)

		return imp
	}

	if s.tasks == nil {
		return fail(errNoTaskAPI)
	}

	if s.opts.TemplateRef == "" {
		return fail(errors.New("no scaffolder template configured"))
	}

	values := s.taskValues(req, imp.ApprovalTool)

	taskID, err := s.tasks.CreateTask(ctx, s.opts.TemplateRef, values)
	if err != nil {
		return fail(err)
	}

	imp.Task = &model.TaskRef{TaskID: taskID}

	repoID, err := s.ledger.Repositories.InsertOrGet(ctx, repoURL, imp.ApprovalTool)
	if err != nil {
		return fail(err)
	}

	now := time.Now().UTC()

	if _, err := s.ledger.Tasks.Insert(ctx, &ledger.ScaffolderTask{
		TaskID:            taskID,
		RepositoryID:      repoID,
		ScaffolderOptions: values,
		ExecutedAt:        &now,
	}); err != nil {
		return fail(err)
	}

	if s.consumers != nil {
		if err := s.consumers.Start(taskID); err != nil {
			logger.Error("failed to start task event consumer", "task_id", taskID, "error", err)
		}
	}

	imp.LastUpdate = &now

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		imp.Status = model.StatusTaskFetchFailed
		imp.Errors = append(imp.Errors, upstreamText(err))

		return imp
	}

	imp.Status = model.TaskStatus(task.Status)

	logger.Info("submitted import task", "repo", repoURL, "task_id", taskID, "status", imp.Status)

	return imp
}
