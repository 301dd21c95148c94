// Package config handles CLI configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "SINGLEBASE_"

// DefaultProfileName is used when neither a flag, the environment nor the
// config file names a profile.
const DefaultProfileName = "default"

// maxConfigFileSize bounds the config file read.
const maxConfigFileSize = 1 << 20

// Keystore backends accepted in the keystore setting.
const (
	KeystoreFile    = "file"
	KeystoreKeyring = "keyring"
)

// ErrConfigTooLarge is returned when the config file exceeds 1MB.
var ErrConfigTooLarge = errors.New("config: file too large")

// Config represents the CLI configuration.
//
// Only DefaultProfile, Keystore and Profiles are persisted. The remaining
// fields are populated from SINGLEBASE_* environment variables and override
// the selected profile.
type Config struct {
	DefaultProfile string             `koanf:"default_profile" yaml:"default_profile,omitempty"`
	Keystore       string             `koanf:"keystore" yaml:"keystore,omitempty"`
	Profiles       map[string]Profile `koanf:"profiles" yaml:"profiles"`

	Profile string `koanf:"profile" yaml:"-"`
	APIURL  string `koanf:"api_url" yaml:"-"`
	APIKey  string `koanf:"api_key" yaml:"-"`
	Timeout string `koanf:"timeout" yaml:"-"`
}

// Profile holds connection settings for one Singlebase tenant.
type Profile struct {
	APIURL     string `koanf:"api_url" yaml:"api_url" json:"api_url"`
	APIKeyRef  string `koanf:"api_key_ref" yaml:"api_key_ref,omitempty" json:"api_key_ref,omitempty"`
	Timeout    string `koanf:"timeout" yaml:"timeout,omitempty" json:"timeout,omitempty"`
	AuthHeader string `koanf:"auth_header" yaml:"auth_header,omitempty" json:"auth_header,omitempty"`
	AuthScheme string `koanf:"auth_scheme" yaml:"auth_scheme,omitempty" json:"auth_scheme,omitempty"`
}

// Resolved is a profile with environment overrides applied.
type Resolved struct {
	Name string
	Profile
	// APIKey is set only when SINGLEBASE_API_KEY is present. Otherwise the
	// key is looked up in the keystore under KeyRef.
	APIKey  string
	KeyRef  string
	Timeout time.Duration
}

// DefaultConfigPath returns the default configuration file path for the current platform.
// - macOS/Linux: ~/.singlebase/config.yaml
// - Windows: %USERPROFILE%\.singlebase\config.yaml
func DefaultConfigPath() string {
	home := homeDir()
	if home == "" {
		return "config.yaml"
	}
	return filepath.Join(home, ".singlebase", "config.yaml")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE")
	}
	return os.Getenv("HOME")
}

// LoadDotEnv loads .env.local then .env from dir. Variables already present
// in the process environment are never overwritten. Missing files are skipped.
func LoadDotEnv(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from the specified path and overlays
// SINGLEBASE_* environment variables.
// If the file doesn't exist, the result holds only the environment values.
// Returns an error only if the file exists but cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// SINGLEBASE_API_URL -> api_url. Keys stay flat; nested profile values
	// are only read from the file. Empty variables are ignored.
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing config file is not an error
			return nil, nil
		}
		return nil, err
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrConfigTooLarge, path, info.Size())
	}
	return os.ReadFile(path)
}

// SaveConfig writes the persisted part of cfg as YAML, creating the parent
// directory if needed. The file is readable by the owner only.
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ProfileName picks the effective profile: the explicit name, then
// SINGLEBASE_PROFILE, then default_profile, then "default".
func (c *Config) ProfileName(explicit string) string {
	switch {
	case explicit != "":
		return explicit
	case c.Profile != "":
		return c.Profile
	case c.DefaultProfile != "":
		return c.DefaultProfile
	default:
		return DefaultProfileName
	}
}

// GetProfile returns the profile with the given name.
// Returns nil if the profile is not configured.
func (c *Config) GetProfile(name string) *Profile {
	if c.Profiles == nil {
		return nil
	}
	if p, ok := c.Profiles[name]; ok {
		return &p
	}
	return nil
}

// SetProfile stores p under name.
func (c *Config) SetProfile(name string, p Profile) {
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	c.Profiles[name] = p
}

// Resolve returns the effective settings for the named profile (see
// ProfileName) with environment overrides applied. A profile missing from
// the file is an error only when it was named explicitly.
func (c *Config) Resolve(explicit string) (*Resolved, error) {
	name := c.ProfileName(explicit)

	r := &Resolved{Name: name}
	if p := c.GetProfile(name); p != nil {
		r.Profile = *p
	} else if explicit != "" {
		return nil, fmt.Errorf("profile %q not found", name)
	}

	if c.APIURL != "" {
		r.APIURL = c.APIURL
	}
	r.APIKey = c.APIKey

	r.KeyRef = r.APIKeyRef
	if r.KeyRef == "" {
		r.KeyRef = name
	}

	timeout := r.Profile.Timeout
	if c.Timeout != "" {
		timeout = c.Timeout
	}
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("profile %q: invalid timeout %q: %w", name, timeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("profile %q: timeout must not be negative", name)
		}
		r.Timeout = d
	}

	return r, nil
}
