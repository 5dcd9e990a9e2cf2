package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/imports"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImporter struct {
	mode config.Mode

	listOpts model.ListOptions
	listErr  error
	page     pagination.Page[*model.Import]

	lookup imports.Lookup

	createCalls []string
	dryRun      bool
	createErr   error

	deleted   []string
	deleteErr error
}

func (f *fakeImporter) Mode() config.Mode { return f.mode }

func (f *fakeImporter) ListImports(_ context.Context, opts model.ListOptions) (pagination.Page[*model.Import], error) {
	f.listOpts = opts
	return f.page, f.listErr
}

func (f *fakeImporter) GetImportByRepo(context.Context, string, string, model.ApprovalTool) imports.Lookup {
	return f.lookup
}

func (f *fakeImporter) results(reqs []model.ImportRequest, status model.Status) []*model.Import {
	out := make([]*model.Import, 0, len(reqs))
	for _, r := range reqs {
		repo := r.Repository
		out = append(out, &model.Import{Repository: &repo, Status: status})
	}

	return out
}

func (f *fakeImporter) CreateImportJobs(_ context.Context, reqs []model.ImportRequest, dryRun bool) ([]*model.Import, error) {
	f.createCalls = append(f.createCalls, "pr")
	f.dryRun = dryRun

	return f.results(reqs, model.StatusWaitPRApproval), f.createErr
}

func (f *fakeImporter) CreateTaskImportJobs(_ context.Context, reqs []model.ImportRequest) ([]*model.Import, error) {
	f.createCalls = append(f.createCalls, "task")
	return f.results(reqs, model.StatusTaskOpen), f.createErr
}

func (f *fakeImporter) CreateWorkflowImportJobs(_ context.Context, reqs []model.ImportRequest) ([]*model.Import, error) {
	f.createCalls = append(f.createCalls, "workflow")
	return f.results(reqs, model.StatusWorkflowActive), f.createErr
}

func (f *fakeImporter) DeleteImportByRepo(_ context.Context, repoURL, _ string) error {
	f.deleted = append(f.deleted, repoURL)
	return f.deleteErr
}

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, s *Server, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	return rec
}

func TestPing(t *testing.T) {
	s := New(&fakeImporter{}, nil)

	rec := do(t, s, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListImports(t *testing.T) {
	imp := &fakeImporter{page: pagination.Page[*model.Import]{
		Data:  []*model.Import{{ID: "a", Status: model.StatusAdded}},
		Page:  2,
		Size:  1,
		Total: 7,
	}}
	s := New(imp, nil)

	rec := do(t, s, http.MethodGet, "/imports?page=2&size=1&search=my&sortColumn=status&sortOrder=desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body importsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 1, body.Size)
	assert.Equal(t, int64(7), body.TotalCount)
	require.Len(t, body.Imports, 1)
	assert.Equal(t, "a", body.Imports[0].ID)

	assert.Equal(t, model.ListOptions{Search: "my", Page: 2, Size: 1, SortColumn: "status", SortOrder: "desc"}, imp.listOpts)
}

func TestListImports_V1(t *testing.T) {
	imp := &fakeImporter{page: pagination.Page[*model.Import]{Data: []*model.Import{{ID: "a"}, {ID: "b"}}}}
	s := New(imp, nil)

	rec := do(t, s, http.MethodGet, "/imports", "", map[string]string{apiVersionHeader: "v1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body []model.Import
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body, 2)
}

func TestListImports_Errors(t *testing.T) {
	s := New(&fakeImporter{}, nil)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/imports?page=abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/imports?size=-1", "", nil).Code)

	s = New(&fakeImporter{listErr: errors.New("catalog unreachable")}, nil)
	assert.Equal(t, http.StatusInternalServerError, do(t, s, http.MethodGet, "/imports", "", nil).Code)
}

func TestCreateImports_Dispatch(t *testing.T) {
	const body = `[{"repository":{"url":"https://github.com/org/repo"}}]`

	tests := []struct {
		name  string
		mode  config.Mode
		query string
		want  string
		dry   bool
	}{
		{name: "pull requests", mode: config.ModePullRequests, want: "pr"},
		{name: "scaffolder", mode: config.ModeScaffolder, want: "task"},
		{name: "orchestrator", mode: config.ModeOrchestrator, want: "workflow"},
		{name: "dry run in scaffolder mode", mode: config.ModeScaffolder, query: "?dryRun=true", want: "pr", dry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imp := &fakeImporter{mode: tt.mode}
			s := New(imp, nil)

			rec := do(t, s, http.MethodPost, "/imports"+tt.query, body, nil)
			require.Equal(t, http.StatusAccepted, rec.Code)

			assert.Equal(t, []string{tt.want}, imp.createCalls)
			assert.Equal(t, tt.dry, imp.dryRun)

			var out []model.Import
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			require.Len(t, out, 1)
			assert.Equal(t, "https://github.com/org/repo", out[0].Repository.URL)
		})
	}
}

func TestCreateImports_BadRequest(t *testing.T) {
	imp := &fakeImporter{mode: config.ModePullRequests}
	s := New(imp, nil)

	rec := do(t, s, http.MethodPost, "/imports", `[]`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/imports", `{"not":"an array"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, imp.createCalls)
}

func TestGetImportByRepo(t *testing.T) {
	imp := &fakeImporter{lookup: imports.Lookup{Import: &model.Import{ID: "x", Status: model.StatusAdded}}}
	s := New(imp, nil)

	rec := do(t, s, http.MethodGet, "/import/by-repo?repo=https://github.com/org/repo", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ADDED"`)

	imp.lookup = imports.Lookup{Import: &model.Import{ID: "x", Errors: []string{"404 Not Found"}}, NotFound: true}
	rec = do(t, s, http.MethodGet, "/import/by-repo?repo=https://github.com/org/repo", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "404 Not Found")

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/import/by-repo", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/import/by-repo?repo=x&approvalTool=SVN", "", nil).Code)
}

func TestDeleteImportByRepo(t *testing.T) {
	imp := &fakeImporter{}
	s := New(imp, nil)

	rec := do(t, s, http.MethodDelete, "/import/by-repo?repo=https://github.com/org/repo&defaultBranch=main", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"https://github.com/org/repo"}, imp.deleted)

	imp.deleteErr = errors.New("ledger locked")
	rec = do(t, s, http.MethodDelete, "/import/by-repo?repo=https://github.com/org/repo", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecovery(t *testing.T) {
	s := New(&fakeImporter{}, nil)
	s.engine.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := do(t, s, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
