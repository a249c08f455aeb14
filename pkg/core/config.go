// pkg/core/config.go
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultInstallMode is applied to every installed file and directory when
// NormalizeModes is set. It reproduces the literal chmod 0755 of the ASP
// tooling and drops narrower payload permission bits.
const DefaultInstallMode os.FileMode = 0o755

const (
	DefaultBasedir         = "/"
	DefaultHookInterpreter = "python3"
	DefaultHookTimeout     = 5 * time.Minute
	DefaultLockTimeout     = 30 * time.Second
	SystemConfigPath       = "/etc/aspkg/config.yaml"
)

// Config holds aspkg configuration
type Config struct {
	Basedir         string        `yaml:"basedir"`
	Debug           bool          `yaml:"debug"`
	InfoDir         string        `yaml:"info_dir"`
	RepositoryDir   string        `yaml:"repository_dir"`
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	HookInterpreter string        `yaml:"hook_interpreter"`
	HookTimeout     time.Duration `yaml:"hook_timeout"`
	NormalizeModes  bool          `yaml:"normalize_modes"`
	OwnerUID        int           `yaml:"owner_uid"`
	OwnerGID        int           `yaml:"owner_gid"`
	MetricsTextfile string        `yaml:"metrics_textfile"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Basedir:         getDefaultBasedir(),
		Debug:           false,
		LockTimeout:     DefaultLockTimeout,
		HookInterpreter: DefaultHookInterpreter,
		HookTimeout:     DefaultHookTimeout,
		NormalizeModes:  true,
	}
}

// LoadConfig loads configuration from file. With an empty path the system
// file is tried first, then the per-user one.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = findConfig()
		if path == "" {
			return DefaultConfig(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Unset keys keep their defaults
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if env := os.Getenv("ASPKG_BASEDIR"); env != "" {
		cfg.Basedir = env
	}

	return cfg, nil
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".config", "aspkg", "config.yaml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func findConfig() string {
	if _, err := os.Stat(SystemConfigPath); err == nil {
		return SystemConfigPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "aspkg", "config.yaml")
}

func getDefaultBasedir() string {
	if path := os.Getenv("ASPKG_BASEDIR"); path != "" {
		return path
	}
	return DefaultBasedir
}
