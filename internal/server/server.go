// Package server exposes the import engine over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/imports"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/pagination"
)

// Importer is the engine behind the HTTP routes.
type Importer interface {
	Mode() config.Mode
	ListImports(ctx context.Context, opts model.ListOptions) (pagination.Page[*model.Import], error)
	GetImportByRepo(ctx context.Context, repoURL, defaultBranch string, tool model.ApprovalTool) imports.Lookup
	CreateImportJobs(ctx context.Context, reqs []model.ImportRequest, dryRun bool) ([]*model.Import, error)
	CreateTaskImportJobs(ctx context.Context, reqs []model.ImportRequest) ([]*model.Import, error)
	CreateWorkflowImportJobs(ctx context.Context, reqs []model.ImportRequest) ([]*model.Import, error)
	DeleteImportByRepo(ctx context.Context, repoURL, defaultBranch string) error
}

// Server is the HTTP front of the import engine.
type Server struct {
	importer Importer
	engine   *gin.Engine
	logger   *slog.Logger
	srv      *http.Server
}

// New builds the router. Routes are registered immediately, so Handler can be
// used without starting a listener.
func New(importer Importer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(recovery(logger), requestLogger(logger))

	s := &Server{
		importer: importer,
		engine:   engine,
		logger:   logger,
	}

	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/ping", s.handlePing)

	s.engine.GET("/imports", s.handleListImports)
	s.engine.POST("/imports", s.handleCreateImports)

	s.engine.GET("/import/by-repo", s.handleGetImportByRepo)
	s.engine.DELETE("/import/by-repo", s.handleDeleteImportByRepo)
}

// Serve answers requests on lis until Shutdown is called.
func (s *Server) Serve(lis net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("listening and serving HTTP", "addr", lis.Addr().String())

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	return s.srv.Shutdown(ctx)
}
