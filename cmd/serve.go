package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/application"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/branchcache"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/catalog"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/imports"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/ledger"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/orchestrator"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/process"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/provider"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/scaffolder"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/server"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/server/grpc"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 30 * time.Second
	healthInterval  = 15 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bulk import HTTP server",
	Long: `Start the bulk import HTTP server on the configured port.

When server.healthPort is set, a gRPC health service is served on that port
and reports NOT_SERVING while the ledger database is unreachable.

The server shuts down gracefully on Ctrl+C or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 7007, "Port to listen on")
	serveCmd.Flags().Int("health-port", 0, "Port for the gRPC health service (0 to disable)")
	serveCmd.Flags().String("mode", string(config.ModePullRequests), "Import mode: open-pull-requests, scaffolder or orchestrator")
	serveCmd.Flags().Bool("gops", false, "Start the gops diagnostics agent")

	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("server.healthPort", serveCmd.Flags().Lookup("health-port"))
	_ = v.BindPFlag("imports.mode", serveCmd.Flags().Lookup("mode"))
	_ = v.BindPFlag("server.gops", serveCmd.Flags().Lookup("gops"))
}

func pidFile() *process.PIDFile {
	return process.NewPIDFile(application.DataPath(application.AppName + ".pid"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	pids := pidFile()
	if pid, alive := pids.Alive(application.AppName); alive {
		return fmt.Errorf("server already running (PID: %d)", pid)
	}

	if err := pids.Write(os.Getpid()); err != nil {
		logger.Warn("failed to write pid file", "error", err)
	}

	defer func() { _ = pids.Remove() }()

	if cfg.Server.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Warn("failed to start gops agent", "error", err)
		} else {
			defer agent.Close()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := ledger.Open(ctx, ledger.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}

	defer func() { _ = l.Close() }()

	svc, cleanup, err := buildService(ctx, l)
	if err != nil {
		return err
	}

	defer cleanup()

	httpSrv := server.New(svc, logger)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	errCh := make(chan error, 2)

	go func() { errCh <- httpSrv.Serve(lis) }()

	var health *grpc.ServerWithHealth

	if cfg.Server.HealthPort > 0 {
		healthAddr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HealthPort))

		healthLis, err := net.Listen("tcp", healthAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", healthAddr, err)
		}

		health = grpc.NewServer(logger)

		go health.Watch(ctx, l, healthInterval)

		go func() {
			logger.Info("serving gRPC health", "addr", healthAddr)

			if err := health.GRPCServer.Serve(healthLis); err != nil {
				errCh <- fmt.Errorf("health server: %w", err)
			}
		}()
	}

	logger.Info("bulk import server started", "addr", addr, "mode", cfg.Imports.Mode)

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if health != nil {
		health.SetServing(false)
	}

	var errs []error

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if health != nil {
		stopped := make(chan struct{})

		go func() {
			health.Stop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			logger.Warn("timeout waiting for graceful shutdown, forcing stop")
			health.GRPCServer.Stop()
		}
	}

	logger.Info("server stopped")

	return errors.Join(errs...)
}

// buildService wires the import engine for the configured mode. The returned
// cleanup releases background consumers and caches.
func buildService(ctx context.Context, l *ledger.Ledger) (*imports.Service, func(), error) {
	providers, err := provider.NewFromConfig(ctx, cfg.Integrations, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure integrations: %w", err)
	}

	cat := catalog.New(ctx, cfg.Catalog.BaseURL, cfg.Catalog.Token, cfg.Catalog.StaticLocations).WithLogger(logger)

	svc := imports.New(imports.OptionsFromConfig(cfg), cat, providers, l).WithLogger(logger)

	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Cache.Path != "" {
		cache, err := branchcache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			logger.Warn("branch cache disabled", "path", cfg.Cache.Path, "error", err)
		} else {
			svc = svc.WithBranchCache(cache)
			closers = append(closers, func() { _ = cache.Close() })
		}
	}

	switch cfg.Imports.Mode {
	case config.ModeScaffolder:
		tasks := scaffolder.NewClient(ctx, cfg.Scaffolder.BaseURL, cfg.Scaffolder.Token)

		supervisor, err := scaffolder.NewSupervisor(tasks, l.Locations, cfg.Scaffolder.RegisteredPattern)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		supervisor = supervisor.WithLogger(logger)
		svc = svc.WithTasks(tasks, supervisor)

		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := supervisor.Shutdown(ctx); err != nil {
				logger.Warn("task consumers did not stop in time", "error", err)
			}
		})
	case config.ModeOrchestrator:
		svc = svc.WithWorkflows(orchestrator.NewClient(ctx, cfg.Orchestrator.BaseURL, cfg.Orchestrator.Token))
	}

	return svc, cleanup, nil
}
