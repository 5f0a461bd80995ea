package swarm

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries environment-driven settings for the engine. All fields
// have working defaults so a zero-config start is valid.
type Config struct {
	// CheckpointDir is where the file state store writes checkpoints.
	CheckpointDir string

	// CheckpointRetention bounds how long completed checkpoints are kept.
	CheckpointRetention time.Duration

	// OTLPEndpoint enables trace export when non-empty (host:port).
	OTLPEndpoint string

	// LogFormat selects "text" or "json" logging.
	LogFormat string
}

func DefaultConfig() *Config {
	return &Config{
		CheckpointDir:       "./checkpoints",
		CheckpointRetention: DefaultCheckpointRetention,
		LogFormat:           "text",
	}
}

// LoadConfig reads settings from the environment, after loading .env if one
// is present. Unset variables keep their defaults.
func LoadConfig() (*Config, error) {
	// Missing .env is not an error; real environments set vars directly.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if v := os.Getenv("SWARM_CHECKPOINT_DIR"); v != "" {
		cfg.CheckpointDir = v
	}
	if v := os.Getenv("SWARM_CHECKPOINT_RETENTION_HOURS"); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid SWARM_CHECKPOINT_RETENTION_HOURS %q: %w", v, err)
		}
		cfg.CheckpointRetention = time.Duration(hours * float64(time.Hour))
	}
	if v := os.Getenv("SWARM_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("SWARM_LOG_FORMAT"); v != "" {
		if v != "text" && v != "json" {
			return nil, fmt.Errorf("invalid SWARM_LOG_FORMAT %q: want text or json", v)
		}
		cfg.LogFormat = v
	}
	return cfg, nil
}
