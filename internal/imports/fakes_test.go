package imports

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/catalog"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/ledger"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/orchestrator"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/provider"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/scaffolder"
	"github.com/stretchr/testify/require"
)

const testBranch = "backstage-integration"

func fileKey(repoURL, ref, path string) string {
	return repoURL + "@" + ref + ":" + path
}

type fakeProvider struct {
	tool model.ApprovalTool
	host string

	mu          sync.Mutex
	branches    map[string]string
	files       map[string]bool
	contents    map[string]string
	openPRs     map[string]*model.PullRequest
	prs         map[int]*model.PullRequest
	prErrs      map[string]error
	unreachable map[string]bool
	empty       map[string]bool
	submit      map[string]*provider.SubmitResult
	updateErr   error

	branchCalls int
	closed      []int
	updated     []int
	written     []string
	deleted     []string
	submitted   []provider.SubmitRequest
}

func newFakeProvider(tool model.ApprovalTool, host string) *fakeProvider {
	return &fakeProvider{
		tool:        tool,
		host:        host,
		branches:    map[string]string{},
		files:       map[string]bool{},
		contents:    map[string]string{},
		openPRs:     map[string]*model.PullRequest{},
		prs:         map[int]*model.PullRequest{},
		prErrs:      map[string]error{},
		unreachable: map[string]bool{},
		empty:       map[string]bool{},
		submit:      map[string]*provider.SubmitResult{},
	}
}

func (f *fakeProvider) ApprovalTool() model.ApprovalTool { return f.tool }
func (f *fakeProvider) Host() string                     { return f.host }
func (f *fakeProvider) CodeOwnersPaths() []string        { return []string{".github/CODEOWNERS", "CODEOWNERS"} }

func (f *fakeProvider) Repository(_ context.Context, repoURL string) (*provider.RepoDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	branch, ok := f.branches[repoURL]
	if !ok {
		return nil, fmt.Errorf("GET %s: 404 Not Found", repoURL)
	}

	parts := strings.Split(strings.TrimPrefix(repoURL, "https://"+f.host+"/"), "/")
	updated := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	return &provider.RepoDetails{
		URL:           repoURL,
		Name:          parts[len(parts)-1],
		Organization:  parts[0],
		ID:            parts[0] + "/" + parts[len(parts)-1],
		DefaultBranch: branch,
		UpdatedAt:     &updated,
	}, nil
}

func (f *fakeProvider) DefaultBranch(ctx context.Context, repoURL string) (string, error) {
	f.mu.Lock()
	f.branchCalls++
	f.mu.Unlock()

	d, err := f.Repository(ctx, repoURL)
	if err != nil {
		return "", err
	}

	return d.DefaultBranch, nil
}

func (f *fakeProvider) FileExists(_ context.Context, repoURL, ref, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.files[fileKey(repoURL, ref, path)], nil
}

func (f *fakeProvider) FileContent(_ context.Context, repoURL, ref, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.contents[fileKey(repoURL, ref, path)]
	if !ok {
		return "", &model.NotFoundError{Kind: "file", ID: path}
	}

	return c, nil
}

func (f *fakeProvider) IsEmpty(_ context.Context, repoURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.empty[repoURL], nil
}

func (f *fakeProvider) FindOpenImportPR(_ context.Context, repoURL, _ string) (*model.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.prErrs[repoURL]; err != nil {
		return nil, err
	}

	return f.openPRs[repoURL], nil
}

func (f *fakeProvider) GetPR(_ context.Context, _ string, number int) (*model.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pr, ok := f.prs[number]
	if !ok {
		return nil, &model.NotFoundError{Kind: "pull request", ID: fmt.Sprint(number)}
	}

	cp := *pr

	return &cp, nil
}

func (f *fakeProvider) ClosePR(_ context.Context, repoURL string, number int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = append(f.closed, number)
	delete(f.openPRs, repoURL)

	return nil
}

func (f *fakeProvider) UpdatePR(_ context.Context, _ string, number int, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}

	f.updated = append(f.updated, number)

	return nil
}

func (f *fakeProvider) DeleteBranch(_ context.Context, repoURL, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, repoURL+"#"+branch)

	return nil
}

func (f *fakeProvider) WriteFile(_ context.Context, repoURL, branch, path, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.written = append(f.written, fileKey(repoURL, branch, path))

	return nil
}

func (f *fakeProvider) SubmitPR(_ context.Context, req provider.SubmitRequest) (*provider.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, req)

	if res, ok := f.submit[req.RepoURL]; ok {
		return res, nil
	}

	return &provider.SubmitResult{HasChanges: false}, nil
}

func (f *fakeProvider) FilterReachable(_ context.Context, urls []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string

	for _, u := range urls {
		if !f.unreachable[u] {
			out = append(out, u)
		}
	}

	return out, nil
}

func (f *fakeProvider) Credentials(_ context.Context, _ string) (*provider.Credentials, error) {
	return &provider.Credentials{Host: f.host, Token: "token-" + f.host}, nil
}

type fakeCatalog struct {
	mu         sync.Mutex
	locations  []model.Location
	entities   map[string]bool
	refreshed  []string
	added      []string
	deletedIDs []string
}

func (f *fakeCatalog) ListLocations(_ context.Context, search string, _, _ int) (*catalog.LocationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []model.Location

	for _, l := range f.locations {
		if search == "" || strings.Contains(strings.ToLower(l.Target), strings.ToLower(search)) {
			out = append(out, l)
		}
	}

	return &catalog.LocationPage{Locations: out, TotalCount: len(out)}, nil
}

func (f *fakeCatalog) FindLocation(_ context.Context, target string) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, l := range f.locations {
		if l.Target == target {
			return &l, nil
		}
	}

	return nil, nil
}

func (f *fakeCatalog) LocationExists(ctx context.Context, target string) (bool, error) {
	loc, err := f.FindLocation(ctx, target)
	return loc != nil, err
}

func (f *fakeCatalog) AddLocation(_ context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.added = append(f.added, target)

	return nil
}

func (f *fakeCatalog) RefreshLocation(_ context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refreshed = append(f.refreshed, target)

	return nil
}

func (f *fakeCatalog) DeleteLocationByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletedIDs = append(f.deletedIDs, id)

	return nil
}

func (f *fakeCatalog) EntityExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.entities[name], nil
}

type fakeTasks struct {
	mu      sync.Mutex
	tasks   map[string]*scaffolder.Task
	errs    map[string]error
	created []map[string]any
	nextID  int
}

func (f *fakeTasks) CreateTask(_ context.Context, _ string, values map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("task-%d", f.nextID)
	f.created = append(f.created, values)

	if f.tasks == nil {
		f.tasks = map[string]*scaffolder.Task{}
	}

	if _, ok := f.tasks[id]; !ok {
		f.tasks[id] = &scaffolder.Task{ID: id, Status: "open"}
	}

	return id, nil
}

func (f *fakeTasks) GetTask(_ context.Context, taskID string) (*scaffolder.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.errs[taskID]; err != nil {
		return nil, err
	}

	t, ok := f.tasks[taskID]
	if !ok {
		return nil, &model.UpstreamError{Service: "scaffolder", StatusCode: 404, Body: "task not found"}
	}

	return t, nil
}

type fakeConsumers struct {
	mu      sync.Mutex
	started []string
}

func (f *fakeConsumers) Start(taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = append(f.started, taskID)

	return nil
}

type fakeWorkflows struct {
	mu         sync.Mutex
	states     map[string]string
	getErr     error
	execErrs   map[string]error
	executions []orchestrator.Inputs
	nextID     int
}

func (f *fakeWorkflows) Execute(_ context.Context, _ string, inputs orchestrator.Inputs, _ []orchestrator.AuthToken) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.execErrs[inputs.Repo]; err != nil {
		return "", err
	}

	f.nextID++
	id := fmt.Sprintf("instance-%d", f.nextID)
	f.executions = append(f.executions, inputs)

	if f.states == nil {
		f.states = map[string]string{}
	}

	if _, ok := f.states[id]; !ok {
		f.states[id] = "ACTIVE"
	}

	return id, nil
}

func (f *fakeWorkflows) GetInstance(_ context.Context, instanceID string) (*orchestrator.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	state, ok := f.states[instanceID]
	if !ok {
		return nil, &model.UpstreamError{Service: "orchestrator", StatusCode: 404}
	}

	return &orchestrator.Instance{ID: instanceID, State: state}, nil
}

type fakeBranchCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func (f *fakeBranchCache) Get(repoURL string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.entries[repoURL]

	return b, ok
}

func (f *fakeBranchCache) Put(repoURL, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[repoURL] = branch

	return nil
}

type testEnv struct {
	svc       *Service
	github    *fakeProvider
	gitlab    *fakeProvider
	catalog   *fakeCatalog
	ledger    *ledger.Ledger
	tasks     *fakeTasks
	consumers *fakeConsumers
	workflows *fakeWorkflows
}

func setupEnv(t *testing.T, mode config.Mode) *testEnv {
	t.Helper()

	l, err := ledger.Open(context.Background(), ledger.Config{Driver: ledger.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = l.Close() })

	env := &testEnv{
		github:    newFakeProvider(model.ApprovalToolGit, "github.com"),
		gitlab:    newFakeProvider(model.ApprovalToolGitLab, "gitlab.com"),
		catalog:   &fakeCatalog{entities: map[string]bool{}},
		ledger:    l,
		tasks:     &fakeTasks{},
		consumers: &fakeConsumers{},
		workflows: &fakeWorkflows{},
	}

	env.svc = New(Options{
		Mode:            mode,
		CatalogFilename: "catalog-info.yaml",
		BranchName:      testBranch,
		PRTitle:         "Add catalog-info.yaml config file",
		PRBody:          "body",
		CloseComment:    "closing",
		Concurrency:     4,
		TemplateRef:     "template:default/import",
		WorkflowID:      "import-wf",
	}, env.catalog, provider.NewSelector(env.github, env.gitlab), l).
		WithTasks(env.tasks, env.consumers).
		WithWorkflows(env.workflows)

	return env
}
