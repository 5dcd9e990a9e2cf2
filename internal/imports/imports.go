// Package imports is the reconciliation engine of the bulk import service. It
// discovers import candidates from the catalog, resolves their status against
// the provider, task and workflow APIs, and drives the import and deletion
// flows.
package imports

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/catalog"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/ledger"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/orchestrator"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/provider"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/scaffolder"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 10

// Catalog is the subset of the catalog API the engine uses.
type Catalog interface {
	ListLocations(ctx context.Context, search string, page, size int) (*catalog.LocationPage, error)
	FindLocation(ctx context.Context, target string) (*model.Location, error)
	LocationExists(ctx context.Context, target string) (bool, error)
	AddLocation(ctx context.Context, target string) error
	RefreshLocation(ctx context.Context, target string) error
	DeleteLocationByID(ctx context.Context, id string) error
	EntityExists(ctx context.Context, name string) (bool, error)
}

// TaskAPI submits and inspects scaffolder tasks.
type TaskAPI interface {
	CreateTask(ctx context.Context, templateRef string, values map[string]any) (string, error)
	GetTask(ctx context.Context, taskID string) (*scaffolder.Task, error)
}

// TaskConsumers starts the background consumer of a task's event stream.
type TaskConsumers interface {
	Start(taskID string) error
}

// WorkflowAPI launches and inspects workflow instances.
type WorkflowAPI interface {
	Execute(ctx context.Context, workflowID string, inputs orchestrator.Inputs, tokens []orchestrator.AuthToken) (string, error)
	GetInstance(ctx context.Context, instanceID string) (*orchestrator.Instance, error)
}

// BranchCache remembers resolved default branches.
type BranchCache interface {
	Get(repoURL string) (string, bool)
	Put(repoURL, branch string) error
}

// Options are the engine settings taken from configuration.
type Options struct {
	Mode            config.Mode
	CatalogFilename string
	BranchName      string
	PRTitle         string
	PRBody          string
	CloseComment    string
	Concurrency     int
	TemplateRef     string
	WorkflowID      string
}

// OptionsFromConfig extracts the engine settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Mode:            cfg.Imports.Mode,
		CatalogFilename: cfg.Catalog.Filename,
		BranchName:      cfg.Imports.BranchName,
		PRTitle:         cfg.Imports.PRTitle,
		PRBody:          cfg.Imports.PRBody,
		CloseComment:    cfg.Imports.CloseComment,
		Concurrency:     cfg.Imports.Concurrency,
		TemplateRef:     cfg.Scaffolder.TemplateRef,
		WorkflowID:      cfg.Orchestrator.WorkflowID,
	}
}

// Service is the import engine.
type Service struct {
	opts      Options
	catalog   Catalog
	providers *provider.Selector
	ledger    *ledger.Ledger
	tasks     TaskAPI
	consumers TaskConsumers
	workflows WorkflowAPI
	branches  BranchCache
	logger    *slog.Logger
}

// New returns an engine over the catalog, the configured providers and the
// ledger. Task and workflow collaborators are attached with WithTasks and
// WithWorkflows.
func New(opts Options, cat Catalog, providers *provider.Selector, l *ledger.Ledger) *Service {
	if opts.CatalogFilename == "" {
		opts.CatalogFilename = "catalog-info.yaml"
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}

	if opts.Mode == "" {
		opts.Mode = config.ModePullRequests
	}

	return &Service{
		opts:      opts,
		catalog:   cat,
		providers: providers,
		ledger:    l,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the service
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}

	return s
}

// WithTasks attaches the scaffolder task API and the event consumer registry.
func (s *Service) WithTasks(api TaskAPI, consumers TaskConsumers) *Service {
	s.tasks = api
	s.consumers = consumers

	return s
}

// WithWorkflows attaches the workflow engine API.
func (s *Service) WithWorkflows(api WorkflowAPI) *Service {
	s.workflows = api
	return s
}

// WithBranchCache attaches a default-branch cache.
func (s *Service) WithBranchCache(c BranchCache) *Service {
	s.branches = c
	return s
}

// Mode returns the approval flow the service drives.
func (s *Service) Mode() config.Mode {
	return s.opts.Mode
}

func (s *Service) batchLogger(op string) *slog.Logger {
	return s.logger.With("op", op, "batch_id", uuid.NewString())
}

// fanOut runs fn for every index with bounded concurrency. fn reports failures
// in its own result, so siblings are never cancelled.
func (s *Service) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var eg errgroup.Group
	eg.SetLimit(s.opts.Concurrency)

	for i := range n {
		eg.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}

	_ = eg.Wait()
}
