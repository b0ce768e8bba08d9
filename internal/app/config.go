package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. YAML file first, then environment
// overrides on top.
type Config struct {
	DataDir      string `yaml:"dataDir"`
	DatabasePath string `yaml:"databasePath"`
	MetricsAddr  string `yaml:"metricsAddr"`
	LogLevel     string `yaml:"logLevel"`
}

func DefaultConfig() Config {
	dataDir := "osnova-data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".osnova")
	}
	return Config{
		DataDir:     dataDir,
		MetricsAddr: "127.0.0.1:9464",
		LogLevel:    "info",
	}
}

// LoadConfig reads configPath when given, otherwise tries the usual
// locations. A missing or unparsable file falls back to defaults; env
// overrides always apply last.
func LoadConfig(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/config.yaml",
			"config.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		mergeConfig(&merged, parsed)
		applyEnvOverrides(&merged)
		return merged
	}

	applyEnvOverrides(&cfg)
	return cfg
}

func mergeConfig(dst *Config, src Config) {
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.DatabasePath != "" {
		dst.DatabasePath = src.DatabasePath
	}
	if src.MetricsAddr != "" {
		dst.MetricsAddr = src.MetricsAddr
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
}

func applyEnvOverrides(cfg *Config) {
	if dir := strings.TrimSpace(os.Getenv("OSNOVA_DATA_DIR")); dir != "" {
		cfg.DataDir = dir
	}
	if path := strings.TrimSpace(os.Getenv("OSNOVA_DB_PATH")); path != "" {
		cfg.DatabasePath = path
	}
	if addr := strings.TrimSpace(os.Getenv("OSNOVA_METRICS_ADDR")); addr != "" {
		cfg.MetricsAddr = addr
	}
	if level := strings.TrimSpace(os.Getenv("OSNOVA_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
}

// databasePath resolves the row-store file, defaulting to a file inside the
// data dir.
func (c Config) databasePath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.DataDir, "osnova.db")
}

// SlogLevel maps the configured log level onto slog; unknown values mean
// info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
