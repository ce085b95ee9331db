package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-ini/ini"
	"github.com/goccy/go-yaml"

	"github.com/byte4ever/hashit/digester"
	"github.com/byte4ever/hashit/keytmpl"
	"github.com/byte4ever/hashit/logging"
	"github.com/byte4ever/hashit/report"
)

// Backend types.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendIndex  = "index"
	BackendKube   = "kube"
	BackendGitHub = "github"
	BackendGitLab = "gitlab"
)

// Color modes.
const (
	ColorAuto = "auto"
	ColorOn   = "on"
	ColorOff  = "off"
)

// DefaultIndex is the index file used by the index
// backend when none is configured.
const DefaultIndex = ".hashit.idx"

var (
	// ErrInvalid is returned by Validate.
	ErrInvalid = errors.New("invalid configuration")
	// ErrFileType is returned by Load for an unsupported
	// file extension.
	ErrFileType = errors.New("unsupported config file type")
)

// Config is the complete hashit configuration.
type Config struct {
	Algorithm   string  `yaml:"algorithm" toml:"algorithm" ini:"algorithm"`
	KeyTemplate string  `yaml:"key_template" toml:"key_template" ini:"key_template"`
	Format      string  `yaml:"format" toml:"format" ini:"format"`
	Color       string  `yaml:"color" toml:"color" ini:"color"`
	Lock        bool    `yaml:"lock" toml:"lock" ini:"lock"`
	Jobs        int     `yaml:"jobs" toml:"jobs" ini:"jobs"`
	Log         Log     `yaml:"log" toml:"log" ini:"log"`
	Backend     Backend `yaml:"backend" toml:"backend" ini:"backend"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" toml:"level" ini:"level"`
	Format string `yaml:"format" toml:"format" ini:"format"`
}

// Backend selects and configures where entries live.
// Fields prefixed with a platform only apply to that
// backend type.
type Backend struct {
	Type string `yaml:"type" toml:"type" ini:"type"`

	// Root confines file keys to a directory.
	Root string `yaml:"root" toml:"root" ini:"root"`
	// Index is the index backend's file.
	Index string `yaml:"index" toml:"index" ini:"index"`

	Namespace  string `yaml:"namespace" toml:"namespace" ini:"namespace"`
	ConfigMap  string `yaml:"configmap" toml:"configmap" ini:"configmap"`
	Kubeconfig string `yaml:"kubeconfig" toml:"kubeconfig" ini:"kubeconfig"`

	GitHubRepoOwner      string `yaml:"github_repo_owner" toml:"github_repo_owner" ini:"github_repo_owner"`
	GitHubRepo           string `yaml:"github_repo" toml:"github_repo" ini:"github_repo"`
	GitHubEnterpriseHost string `yaml:"github_enterprise_host" toml:"github_enterprise_host" ini:"github_enterprise_host"`
	GitHubBaseURL        string `yaml:"github_base_url" toml:"github_base_url" ini:"github_base_url"`

	GitLabHost string `yaml:"gitlab_host" toml:"gitlab_host" ini:"gitlab_host"`
	GitLabRepo string `yaml:"gitlab_repo" toml:"gitlab_repo" ini:"gitlab_repo"`

	// Branch, Prefix and CommitMessage apply to both git
	// hosting backends.
	Branch        string `yaml:"branch" toml:"branch" ini:"branch"`
	Prefix        string `yaml:"prefix" toml:"prefix" ini:"prefix"`
	CommitMessage string `yaml:"commit_message" toml:"commit_message" ini:"commit_message"`

	// TokenEnv names the environment variable holding
	// the access token. Defaults to GITHUB_TOKEN or
	// GITLAB_TOKEN.
	TokenEnv string `yaml:"token_env" toml:"token_env" ini:"token_env"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Algorithm:   digester.DefaultName,
		KeyTemplate: keytmpl.Default,
		Format:      report.Text,
		Color:       ColorAuto,
		Backend: Backend{
			Type: BackendFile,
		},
	}
}

// Load overlays the file at path on Default. An empty
// path returns Default unchanged.
func Load(path string) (Config, error) {
	const errCtx = "loading config"

	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided by design
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := decode(path, data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %s: %w", errCtx, path, err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.UnmarshalWithOptions(data, cfg, yaml.Strict())
	case ".toml":
		meta, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}

		if und := meta.Undecoded(); len(und) > 0 {
			return fmt.Errorf("unknown keys: %v", und)
		}

		return nil
	case ".ini":
		fi, err := ini.Load(data)
		if err != nil {
			return err
		}

		return fi.MapTo(cfg)
	default:
		return fmt.Errorf("%w: %q", ErrFileType, ext)
	}
}

// AlgorithmSpec resolves the configured digest algorithm.
func (c Config) AlgorithmSpec() (digester.Algorithm, error) {
	return digester.Lookup(c.Algorithm)
}

// Validate checks every enumerated setting.
func (c Config) Validate() error {
	const errCtx = "validating config"

	var errs []error

	if _, err := c.AlgorithmSpec(); err != nil {
		errs = append(errs, err)
	}

	if _, err := report.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}

	switch c.Color {
	case ColorAuto, ColorOn, ColorOff:
	default:
		errs = append(errs, fmt.Errorf(
			"color must be auto, on or off, got %q", c.Color,
		))
	}

	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf(
			"jobs must not be negative, got %d", c.Jobs,
		))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}

	if err := c.Backend.validate(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%s: %w: %w", errCtx, ErrInvalid, err)
	}

	return nil
}

func (b Backend) validate() error {
	switch b.Type {
	case BackendFile, BackendMemory, BackendIndex:
		return nil
	case BackendKube:
		if b.Namespace == "" || b.ConfigMap == "" {
			return errors.New("kube backend needs namespace and configmap")
		}
	case BackendGitHub:
		if b.GitHubRepoOwner == "" || b.GitHubRepo == "" {
			return errors.New("github backend needs github_repo_owner and github_repo")
		}
	case BackendGitLab:
		if b.GitLabRepo == "" {
			return errors.New("gitlab backend needs gitlab_repo")
		}
	default:
		return fmt.Errorf("unknown backend type %q", b.Type)
	}

	return nil
}
