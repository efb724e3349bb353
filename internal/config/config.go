package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scivant/go-mdsci/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrInvalidField    = errors.New("invalid config field")
)

// Bounds for validated fields.
const (
	MaxScale          = 10.0
	MaxWorkers        = 64
	MaxTimeoutSeconds = 600
	MaxPreambleLength = 16 * 1024 // embedded in every rendered document
)

// Config holds all configuration for document processing.
type Config struct {
	Input        InputConfig    `yaml:"input"`
	Output       OutputConfig   `yaml:"output"`
	Cache        CacheConfig    `yaml:"cache"`
	Bibliography BibConfig      `yaml:"bibliography"`
	Renderer     RendererConfig `yaml:"renderer"`
	Workers      int            `yaml:"workers"` // 0 = one per CPU
}

// InputConfig defines input source options.
type InputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default input directory (empty = must specify)
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default output directory (empty = same as source)
}

// CacheConfig defines artifact cache options.
type CacheConfig struct {
	Dir string `yaml:"dir"` // Empty = .mdsci-cache next to the output
}

// BibConfig points at the bibliography database.
type BibConfig struct {
	Path string `yaml:"path"` // Empty = no citations allowed
}

// RendererConfig defines external toolchain options.
type RendererConfig struct {
	Mode           string  `yaml:"mode"`           // "latex" (default)
	InlineScale    float64 `yaml:"inlineScale"`    // zoom for inline artifacts (default 1.3)
	BlockScale     float64 `yaml:"blockScale"`     // zoom for display artifacts (default 1.6)
	Preamble       string  `yaml:"preamble"`       // extra LaTeX preamble lines
	TimeoutSeconds int     `yaml:"timeoutSeconds"` // per-span render timeout (default 90)
}

// Timeout returns the per-span render timeout as a duration.
func (r RendererConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Validate checks ranges and enumerations. Called automatically by
// LoadConfig, but available for consumers who construct Config manually.
func (c *Config) Validate() error {
	if c.Renderer.Mode != "" && c.Renderer.Mode != "latex" {
		return fmt.Errorf("%w: renderer.mode: unsupported value %q (must be latex)",
			ErrInvalidField, c.Renderer.Mode)
	}
	if err := validateScale("renderer.inlineScale", c.Renderer.InlineScale); err != nil {
		return err
	}
	if err := validateScale("renderer.blockScale", c.Renderer.BlockScale); err != nil {
		return err
	}
	if len(c.Renderer.Preamble) > MaxPreambleLength {
		return fmt.Errorf("%w: renderer.preamble: %d bytes, max %d",
			ErrInvalidField, len(c.Renderer.Preamble), MaxPreambleLength)
	}
	if c.Renderer.TimeoutSeconds < 0 || c.Renderer.TimeoutSeconds > MaxTimeoutSeconds {
		return fmt.Errorf("%w: renderer.timeoutSeconds: must be between 0 and %d, got %d",
			ErrInvalidField, MaxTimeoutSeconds, c.Renderer.TimeoutSeconds)
	}
	if c.Workers < 0 || c.Workers > MaxWorkers {
		return fmt.Errorf("%w: workers: must be between 0 and %d, got %d",
			ErrInvalidField, MaxWorkers, c.Workers)
	}
	return nil
}

func validateScale(fieldName string, v float64) error {
	if v < 0 || v > MaxScale {
		return fmt.Errorf("%w: %s: must be between 0 and %g, got %g",
			ErrInvalidField, fieldName, MaxScale, v)
	}
	return nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Renderer: RendererConfig{
			Mode:           "latex",
			InlineScale:    1.3,
			BlockScale:     1.6,
			TimeoutSeconds: 90,
		},
	}
}

// ApplyDefaults fills zero-valued renderer fields from DefaultConfig.
// A loaded file only needs to state what it changes.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.Renderer.Mode == "" {
		c.Renderer.Mode = def.Renderer.Mode
	}
	if c.Renderer.InlineScale == 0 {
		c.Renderer.InlineScale = def.Renderer.InlineScale
	}
	if c.Renderer.BlockScale == 0 {
		c.Renderer.BlockScale = def.Renderer.BlockScale
	}
	if c.Renderer.TimeoutSeconds == 0 {
		c.Renderer.TimeoutSeconds = def.Renderer.TimeoutSeconds
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if isFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/mdsci/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2) // 2 locations

	for _, ext := range extensions {
		localPath := name + ext
		if fileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "mdsci", name+ext)
			if fileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}

// fileExists returns true if the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
