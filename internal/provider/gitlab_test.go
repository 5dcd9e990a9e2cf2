package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

func setupGitLab(t *testing.T) (*GitLab, *http.ServeMux) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := gitlab.NewClient("test-token", gitlab.WithBaseURL(srv.URL+"/api/v4"))
	require.NoError(t, err)

	return newGitLab("gitlab.com", "test-token", client), mux
}

func TestGitLab_Repository(t *testing.T) {
	gl, mux := setupGitLab(t)

	mux.HandleFunc("GET /api/v4/projects/{pid}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "my-group/sub/my-repo", r.PathValue("pid"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"id":               77,
			"path":             "my-repo",
			"web_url":          "https://gitlab.com/my-group/sub/my-repo",
			"default_branch":   "main",
			"empty_repo":       false,
			"last_activity_at": "2024-03-01T00:00:00Z",
			"namespace":        map[string]any{"full_path": "my-group/sub"},
		})
	})

	details, err := gl.Repository(context.Background(), "https://gitlab.com/my-group/sub/my-repo")
	require.NoError(t, err)

	assert.Equal(t, "77", details.ID)
	assert.Equal(t, "my-repo", details.Name)
	assert.Equal(t, "my-group/sub", details.Organization)
	assert.Equal(t, "main", details.DefaultBranch)
	assert.False(t, details.Empty)
	require.NotNil(t, details.UpdatedAt)
}

func TestGitLab_FindOpenImportPR(t *testing.T) {
	gl, mux := setupGitLab(t)

	mux.HandleFunc("GET /api/v4/projects/{pid}/merge_requests", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "opened", r.URL.Query().Get("state"))
		assert.Equal(t, "backstage-integration", r.URL.Query().Get("source_branch"))

		writeJSON(t, w, http.StatusOK, []map[string]any{{
			"iid":           4,
			"title":         "Add catalog-info.yaml",
			"state":         "opened",
			"source_branch": "backstage-integration",
			"sha":           "cafe",
			"web_url":       "https://gitlab.com/g/r/-/merge_requests/4",
		}})
	})

	pr, err := gl.FindOpenImportPR(context.Background(), "https://gitlab.com/g/r", "backstage-integration")
	require.NoError(t, err)
	require.NotNil(t, pr)

	assert.Equal(t, 4, pr.Number)
	assert.Equal(t, "cafe", pr.HeadSHA)
	assert.True(t, pr.Open)
}

func TestGitLab_DeleteBranchMissingIsNoop(t *testing.T) {
	gl, mux := setupGitLab(t)

	mux.HandleFunc("DELETE /api/v4/projects/{pid}/repository/branches/{branch}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "404 Branch Not Found"})
	})

	assert.NoError(t, gl.DeleteBranch(context.Background(), "https://gitlab.com/g/r", "backstage-integration"))
}

func TestGitLab_FilterReachable(t *testing.T) {
	gl, mux := setupGitLab(t)

	mux.HandleFunc("GET /api/v4/projects/{pid}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("pid") == "g/visible" {
			writeJSON(t, w, http.StatusOK, map[string]any{"id": 1, "path": "visible"})
			return
		}

		writeJSON(t, w, http.StatusNotFound, map[string]any{"message": "404 Project Not Found"})
	})

	got, err := gl.FilterReachable(context.Background(), []string{
		"https://gitlab.com/g/visible",
		"https://gitlab.com/g/hidden",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://gitlab.com/g/visible"}, got)
}

func TestGitLab_FileExists(t *testing.T) {
	gl, mux := setupGitLab(t)

	mux.HandleFunc("HEAD /api/v4/projects/{pid}/repository/files/{file}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ref") == "main" {
			w.Header().Set("X-Gitlab-File-Name", "catalog-info.yaml")
			w.WriteHeader(http.StatusOK)
			return
		}

		w.WriteHeader(http.StatusNotFound)
	})

	exists, err := gl.FileExists(context.Background(), "https://gitlab.com/g/r", "main", "catalog-info.yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = gl.FileExists(context.Background(), "https://gitlab.com/g/r", "dev", "catalog-info.yaml")
	require.NoError(t, err)
	assert.False(t, exists)
}
