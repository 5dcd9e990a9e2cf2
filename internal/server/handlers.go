package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/giturl"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
)

const (
	apiVersionHeader = "api-version"
	apiVersionV1     = "v1"
)

// importsResponse is the v2 listing envelope.
type importsResponse struct {
	Imports    []*model.Import `json:"imports"`
	Page       int             `json:"page"`
	Size       int             `json:"size"`
	TotalCount int64           `json:"totalCount"`
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key + " parameter: " + raw)
	}

	return n, nil
}

func (s *Server) handleListImports(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	size, err := queryInt(c, "size")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.importer.ListImports(c.Request.Context(), model.ListOptions{
		Search:     c.Query("search"),
		Page:       page,
		Size:       size,
		SortColumn: c.Query("sortColumn"),
		SortOrder:  c.Query("sortOrder"),
	})
	if err != nil {
		s.logger.Error("failed to list imports", "error", err)
		errorJSON(c, http.StatusInternalServerError, err)

		return
	}

	if c.GetHeader(apiVersionHeader) == apiVersionV1 {
		c.JSON(http.StatusOK, result.Data)
		return
	}

	c.JSON(http.StatusOK, importsResponse{
		Imports:    result.Data,
		Page:       result.Page,
		Size:       result.Size,
		TotalCount: result.Total,
	})
}

func (s *Server) handleCreateImports(c *gin.Context) {
	var reqs []model.ImportRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}

	if len(reqs) == 0 {
		c.Status(http.StatusBadRequest)
		return
	}

	dryRun, _ := strconv.ParseBool(c.Query("dryRun"))
	ctx := c.Request.Context()

	var (
		results []*model.Import
		err     error
	)

	switch {
	case dryRun:
		results, err = s.importer.CreateImportJobs(ctx, reqs, true)
	case s.importer.Mode() == config.ModeScaffolder:
		results, err = s.importer.CreateTaskImportJobs(ctx, reqs)
	case s.importer.Mode() == config.ModeOrchestrator:
		results, err = s.importer.CreateWorkflowImportJobs(ctx, reqs)
	default:
		results, err = s.importer.CreateImportJobs(ctx, reqs, false)
	}

	switch {
	case errors.Is(err, model.ErrEmptyRequest):
		c.Status(http.StatusBadRequest)
		return
	case err != nil:
		s.logger.Error("failed to create imports", "error", err)
		errorJSON(c, http.StatusInternalServerError, err)

		return
	}

	c.JSON(http.StatusAccepted, results)
}

func (s *Server) handleGetImportByRepo(c *gin.Context) {
	repoURL := c.Query("repo")
	if repoURL == "" {
		errorJSON(c, http.StatusBadRequest, errors.New("repo parameter is required"))
		return
	}

	tool := model.ApprovalTool(c.Query("approvalTool"))
	if tool != "" && !tool.Valid() {
		errorJSON(c, http.StatusBadRequest, errors.New("unknown approvalTool: "+string(tool)))
		return
	}

	lookup := s.importer.GetImportByRepo(c.Request.Context(), repoURL, c.Query("defaultBranch"), tool)

	status := http.StatusOK
	if lookup.NotFound {
		status = http.StatusNotFound
	}

	c.JSON(status, lookup.Import)
}

func (s *Server) handleDeleteImportByRepo(c *gin.Context) {
	repoURL := c.Query("repo")
	if repoURL == "" {
		errorJSON(c, http.StatusBadRequest, errors.New("repo parameter is required"))
		return
	}

	if err := s.importer.DeleteImportByRepo(c.Request.Context(), repoURL, c.Query("defaultBranch")); err != nil {
		s.logger.Error("failed to delete import", "repo", giturl.Redact(repoURL), "error", err)
		errorJSON(c, http.StatusInternalServerError, err)

		return
	}

	c.Status(http.StatusNoContent)
}
