package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/application"
	"github.com/redhat-developer/rhdh-plugins-sub008/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	v       = config.New()
	cfg     *config.Config
	logger  = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   application.AppName,
	Short: "Bulk import of repositories into the software catalog",
	Long: `bulk-import discovers repositories that carry a catalog descriptor, tracks
their onboarding through pull requests, scaffolder tasks or orchestrator
workflows, and exposes the result over HTTP.`,
	Version:       application.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}

		cfg = loaded
		logger = newLogger(cfg.Log)
		slog.SetDefault(logger)

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetRootCmd returns the root command for introspection purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to the YAML config file")
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
