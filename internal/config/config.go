// Package config loads service settings from a YAML file, BULK_IMPORT_*
// environment variables and command-line flags through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/application"
	"github.com/spf13/viper"
)

// Mode selects the approval flow driven by the service.
type Mode string

const (
	ModePullRequests Mode = "open-pull-requests"
	ModeScaffolder   Mode = "scaffolder"
	ModeOrchestrator Mode = "orchestrator"
)

// Config holds the service configuration.
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Imports      ImportsConfig      `mapstructure:"imports"`
	Scaffolder   ScaffolderConfig   `mapstructure:"scaffolder"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Integrations IntegrationsConfig `mapstructure:"integrations"`
	Cache        CacheConfig        `mapstructure:"cache"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	HealthPort int    `mapstructure:"healthPort"`
	Gops       bool   `mapstructure:"gops"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CatalogConfig struct {
	BaseURL         string   `mapstructure:"baseURL"`
	Token           string   `mapstructure:"token"`
	Filename        string   `mapstructure:"filename"`
	StaticLocations []string `mapstructure:"staticLocations"`
}

type ImportsConfig struct {
	Mode         Mode   `mapstructure:"mode"`
	BranchName   string `mapstructure:"branchName"`
	PRTitle      string `mapstructure:"prTitle"`
	PRBody       string `mapstructure:"prBody"`
	CloseComment string `mapstructure:"closeComment"`
	Concurrency  int    `mapstructure:"concurrency"`
}

type ScaffolderConfig struct {
	BaseURL           string `mapstructure:"baseURL"`
	Token             string `mapstructure:"token"`
	TemplateRef       string `mapstructure:"templateRef"`
	RegisteredPattern string `mapstructure:"registeredPattern"`
}

type OrchestratorConfig struct {
	BaseURL    string `mapstructure:"baseURL"`
	Token      string `mapstructure:"token"`
	WorkflowID string `mapstructure:"workflowID"`
}

// Integration is one configured source-control host.
type Integration struct {
	Host       string `mapstructure:"host"`
	APIBaseURL string `mapstructure:"apiBaseURL"`
	Token      string `mapstructure:"token"`
}

type IntegrationsConfig struct {
	GitHub []Integration `mapstructure:"github"`
	GitLab []Integration `mapstructure:"gitlab"`
}

type CacheConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 7007)
	v.SetDefault("server.healthPort", 0)
	v.SetDefault("server.gops", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", application.DataPath(application.AppName+".db"))

	v.SetDefault("catalog.baseURL", "http://localhost:7007/api/catalog")
	v.SetDefault("catalog.token", "")
	v.SetDefault("catalog.filename", "catalog-info.yaml")

	v.SetDefault("imports.mode", string(ModePullRequests))
	v.SetDefault("imports.branchName", "backstage-integration")
	v.SetDefault("imports.prTitle", "Add catalog-info.yaml config file")
	v.SetDefault("imports.prBody", "This pull request adds a **Backstage entity metadata file** to this repository so that the component can be added to the software catalog.")
	v.SetDefault("imports.closeComment", "Closing this pull request: the repository was removed from the bulk import list.")
	v.SetDefault("imports.concurrency", 10)

	v.SetDefault("scaffolder.baseURL", "http://localhost:7007/api/scaffolder")
	v.SetDefault("scaffolder.token", "")
	v.SetDefault("scaffolder.templateRef", "")
	v.SetDefault("scaffolder.registeredPattern", `Registering (\S+) in the catalog`)

	v.SetDefault("orchestrator.baseURL", "http://localhost:7007/api/orchestrator")
	v.SetDefault("orchestrator.token", "")
	v.SetDefault("orchestrator.workflowID", "")

	v.SetDefault("cache.path", application.DataPath("branches.bolt"))
	v.SetDefault("cache.ttl", "10m")
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(application.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config file at path into v and decodes it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error

	switch c.Imports.Mode {
	case ModePullRequests, ModeScaffolder, ModeOrchestrator:
	default:
		errs = append(errs, fmt.Errorf("imports.mode: unknown mode %q", c.Imports.Mode))
	}

	if c.Catalog.Filename == "" {
		errs = append(errs, errors.New("catalog.filename is required"))
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port: invalid port %d", c.Server.Port))
	}

	if c.Imports.Mode == ModeScaffolder && c.Scaffolder.TemplateRef == "" {
		errs = append(errs, errors.New("scaffolder.templateRef is required in scaffolder mode"))
	}

	if c.Imports.Mode == ModeOrchestrator && c.Orchestrator.WorkflowID == "" {
		errs = append(errs, errors.New("orchestrator.workflowID is required in orchestrator mode"))
	}

	if c.Imports.Concurrency < 1 {
		c.Imports.Concurrency = 1
	}

	return errors.Join(errs...)
}
