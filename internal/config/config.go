package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	TempDir string `yaml:"temp_dir"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Remote background-removal API settings
	API APIConfig `yaml:"api"`

	// Default export settings
	Export ExportConfig `yaml:"export"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
}

type APIConfig struct {
	BaseURL      string `yaml:"base_url"`
	Key          string `yaml:"key"`
	PollInterval int    `yaml:"poll_interval_seconds"`
}

type ExportConfig struct {
	CRF    int    `yaml:"crf"`
	Preset string `yaml:"preset"`
	Format string `yaml:"format"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		TempDir: os.TempDir(),
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
		},
		API: APIConfig{
			BaseURL:      "",
			Key:          "",
			PollInterval: 5,
		},
		Export: ExportConfig{
			CRF:    23,
			Preset: "medium",
			Format: "mp4",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./matte.yaml",
		"./matte.yml",
		filepath.Join(os.Getenv("HOME"), ".matte", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
