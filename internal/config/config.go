// Package config provides configuration management for the TikOps Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// Default values
	DefaultPort      = 8820
	DefaultSharePort = 8000
	DefaultLogLevel  = "info"
	DefaultDataDir   = ".tikops"

	// Environment variable names
	EnvPort      = "TIKOPS_PORT"
	EnvSharePort = "TIKOPS_SHARE_PORT"
	EnvLogLevel  = "TIKOPS_LOG_LEVEL"
	EnvDataDir   = "TIKOPS_DATA_DIR"
	EnvOutputDir = "TIKOPS_OUTPUT_DIR"
	EnvTempDir   = "TIKOPS_TEMP_DIR"

	// Media tool environment variable names
	EnvFFmpegPath  = "TIKOPS_FFMPEG_PATH"
	EnvFFprobePath = "TIKOPS_FFPROBE_PATH"

	// AI copywriter environment variable names
	EnvAIBaseURL = "TIKOPS_AI_BASE_URL"
	EnvAIAPIKey  = "TIKOPS_AI_API_KEY"
	EnvAIModel   = "TIKOPS_AI_MODEL"

	// Database filename
	DBFilename = "tikops.db"

	// AI defaults (DeepSeek speaks the OpenAI chat protocol)
	DefaultAIBaseURL = "https://api.deepseek.com"
	DefaultAIModel   = "deepseek-chat"

	// Output filename suffix appended to processed videos
	DefaultOutputSuffix = "_processed"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	SharePort() int
	LogLevel() string
	DataDir() string
	DBPath() string
	OutputDir() string
	TempDir() string
	OutputSuffix() string
	FFmpegPath() string
	FFprobePath() string
	AIBaseURL() string
	AIAPIKey() string
	AIModel() string
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port      int
	sharePort int
	logLevel  string
	dataDir   string
	outputDir string
	tempDir   string

	ffmpegPath  string
	ffprobePath string

	aiBaseURL string
	aiAPIKey  string
	aiModel   string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:      DefaultPort,
		sharePort: DefaultSharePort,
		logLevel:  DefaultLogLevel,
		dataDir:   defaultDataDir(),
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := parsePort(EnvPort, p)
		if err != nil {
			return nil, err
		}
		cfg.port = port
	}

	if p := os.Getenv(EnvSharePort); p != "" {
		port, err := parsePort(EnvSharePort, p)
		if err != nil {
			return nil, err
		}
		cfg.sharePort = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if od := os.Getenv(EnvOutputDir); od != "" {
		cfg.outputDir = od
	}

	if td := os.Getenv(EnvTempDir); td != "" {
		cfg.tempDir = td
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	cfg.aiBaseURL = os.Getenv(EnvAIBaseURL)
	cfg.aiAPIKey = os.Getenv(EnvAIAPIKey)
	cfg.aiModel = os.Getenv(EnvAIModel)

	return cfg, nil
}

func parsePort(env, value string) (int, error) {
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid %s: port must be between 1 and 65535", env)
	}
	return port, nil
}

// Port returns the control API port
func (c *EnvConfig) Port() int {
	return c.port
}

// SharePort returns the LAN share HTTP port
func (c *EnvConfig) SharePort() int {
	return c.sharePort
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// OutputDir returns the directory processed videos are written to
func (c *EnvConfig) OutputDir() string {
	if c.outputDir != "" {
		return c.outputDir
	}
	return filepath.Join(c.dataDir, "output")
}

// TempDir returns the directory for temporary filter-graph script files.
// Empty means the OS default temp directory.
func (c *EnvConfig) TempDir() string {
	return c.tempDir
}

// OutputSuffix returns the filename suffix for processed videos
func (c *EnvConfig) OutputSuffix() string {
	return DefaultOutputSuffix
}

// FFmpegPath returns the explicitly configured ffmpeg binary, if any
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

// FFprobePath returns the explicitly configured ffprobe binary, if any
func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) AIBaseURL() string {
	if c.aiBaseURL != "" {
		return c.aiBaseURL
	}
	return DefaultAIBaseURL
}

func (c *EnvConfig) AIAPIKey() string {
	return c.aiAPIKey
}

func (c *EnvConfig) AIModel() string {
	if c.aiModel != "" {
		return c.aiModel
	}
	return DefaultAIModel
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
