package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/application"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/process"
	"github.com/spf13/cobra"
)

var stopTimeout time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running server",
	Long:  `Stop the bulk import server by sending a termination signal to the process recorded in its pid file.`,
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the server is running",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pid, alive := pidFile().Alive(application.AppName)
		if !alive {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Server status: stopped")
			return nil
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Server status: running (PID: %d)\n", pid)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)

	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 30*time.Second, "Timeout waiting for the server to stop")
}

func runStop(cmd *cobra.Command, _ []string) error {
	pid, alive := pidFile().Alive(application.AppName)
	if !alive {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Server is not running")
		return nil
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stopping server (PID: %d)...\n", pid)

	if err := terminateProcess(pid); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), stopTimeout)
	defer cancel()

	if err := process.WaitExit(ctx, pid, 100*time.Millisecond); err != nil {
		return fmt.Errorf("server did not stop within timeout: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Server stopped successfully")

	return nil
}

// terminateProcess sends a termination signal to pid.
func terminateProcess(pid int) error {
	if runtime.GOOS == "windows" {
		return exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/F").Run()
	}

	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	return p.Signal(syscall.SIGTERM)
}
