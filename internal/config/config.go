package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Roles accepted by Validate.
const (
	RoleExtract = "extract"
	RoleReplay  = "replay"
	RoleMigrate = "migrate"
	RoleCluster = "cluster"
)

type Config struct {
	SourceHost  string `yaml:"source_host" validate:"required,url"`
	SourceToken string `yaml:"source_token" validate:"required"`
	TargetHost  string `yaml:"target_host" validate:"required,url"`
	TargetToken string `yaml:"target_token" validate:"required"`

	// OutputRoot holds one timestamped directory per extraction run.
	OutputRoot string `yaml:"output_root" validate:"required"`
	// ReplayDir pins replay to a specific run directory. When empty the
	// most recent run under OutputRoot is used.
	ReplayDir string `yaml:"replay_dir"`

	ClusterID   string `yaml:"cluster_id" validate:"required"`
	SnapshotDir string `yaml:"snapshot_dir" validate:"required"`

	WorkspaceConfKeys []string      `yaml:"workspace_conf_keys"`
	HTTPTimeout       time.Duration `yaml:"http_timeout" validate:"gte=0"`
	CACert            string        `yaml:"ca_cert" validate:"omitempty,file"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`

	Archive ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig points at S3-compatible storage that receives a copy of
// each extraction run. Archiving is off when Bucket is empty.
type ArchiveConfig struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Endpoint  string `yaml:"endpoint" validate:"omitempty,url"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

var validate = validator.New()

func defaults() *Config {
	return &Config{
		OutputRoot:  "environment",
		SnapshotDir: "environment/single_cluster_details",
		HTTPTimeout: 60 * time.Second,
		LogLevel:    "info",
		LogFormat:   "console",
		Archive: ArchiveConfig{
			Region: "us-east-1",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.SourceHost = getEnv("MIGRATE_SOURCE_HOST", cfg.SourceHost)
	cfg.SourceToken = getEnv("MIGRATE_SOURCE_TOKEN", cfg.SourceToken)
	cfg.TargetHost = getEnv("MIGRATE_TARGET_HOST", cfg.TargetHost)
	cfg.TargetToken = getEnv("MIGRATE_TARGET_TOKEN", cfg.TargetToken)
	cfg.OutputRoot = getEnv("MIGRATE_OUTPUT_ROOT", cfg.OutputRoot)
	cfg.ReplayDir = getEnv("MIGRATE_REPLAY_DIR", cfg.ReplayDir)
	cfg.ClusterID = getEnv("MIGRATE_CLUSTER_ID", cfg.ClusterID)
	cfg.SnapshotDir = getEnv("MIGRATE_SNAPSHOT_DIR", cfg.SnapshotDir)
	cfg.CACert = getEnv("MIGRATE_CA_CERT", cfg.CACert)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if v := os.Getenv("MIGRATE_WORKSPACE_CONF_KEYS"); v != "" {
		cfg.WorkspaceConfKeys = splitList(v)
	}
	if v := os.Getenv("MIGRATE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse MIGRATE_HTTP_TIMEOUT %q: %w", v, err)
		}
		cfg.HTTPTimeout = d
	}

	cfg.Archive.Bucket = getEnv("MIGRATE_ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.Prefix = getEnv("MIGRATE_ARCHIVE_PREFIX", cfg.Archive.Prefix)
	cfg.Archive.Endpoint = getEnv("MIGRATE_ARCHIVE_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.Region = getEnv("MIGRATE_ARCHIVE_REGION", cfg.Archive.Region)
	cfg.Archive.AccessKey = getEnv("MIGRATE_ARCHIVE_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = getEnv("MIGRATE_ARCHIVE_SECRET_KEY", cfg.Archive.SecretKey)

	return cfg, nil
}

// Validate checks the fields the given role needs. Problems are reported
// by environment variable name.
func (c *Config) Validate(role string) error {
	fields := []string{"OutputRoot", "HTTPTimeout", "CACert", "LogFormat"}
	switch role {
	case RoleExtract:
		fields = append(fields, "SourceHost", "SourceToken")
	case RoleReplay:
		fields = append(fields, "TargetHost", "TargetToken")
	case RoleMigrate:
		fields = append(fields, "SourceHost", "SourceToken", "TargetHost", "TargetToken")
	case RoleCluster:
		fields = append(fields, "SourceHost", "SourceToken", "TargetHost", "TargetToken", "ClusterID", "SnapshotDir")
	default:
		return fmt.Errorf("unknown config role %q", role)
	}

	var problems []string
	if err := validate.StructPartial(c, fields...); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.Archive.Enabled() {
		if err := validate.Struct(c.Archive); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return fmt.Errorf("validate archive config: %w", err)
			}
			for _, fe := range verrs {
				problems = append(problems, describe(fe))
			}
		}
		if (c.Archive.AccessKey == "") != (c.Archive.SecretKey == "") {
			problems = append(problems, "MIGRATE_ARCHIVE_ACCESS_KEY and MIGRATE_ARCHIVE_SECRET_KEY must both be set")
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

var envNames = map[string]string{
	"SourceHost":  "MIGRATE_SOURCE_HOST",
	"SourceToken": "MIGRATE_SOURCE_TOKEN",
	"TargetHost":  "MIGRATE_TARGET_HOST",
	"TargetToken": "MIGRATE_TARGET_TOKEN",
	"OutputRoot":  "MIGRATE_OUTPUT_ROOT",
	"ClusterID":   "MIGRATE_CLUSTER_ID",
	"SnapshotDir": "MIGRATE_SNAPSHOT_DIR",
	"HTTPTimeout": "MIGRATE_HTTP_TIMEOUT",
	"CACert":      "MIGRATE_CA_CERT",
	"LogFormat":   "LOG_FORMAT",
	"Endpoint":    "MIGRATE_ARCHIVE_ENDPOINT",
}

func describe(fe validator.FieldError) string {
	name, ok := envNames[fe.Field()]
	if !ok {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "url":
		return name + " must be a URL"
	case "file":
		return name + " must point to an existing file"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q check", name, fe.Tag())
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
