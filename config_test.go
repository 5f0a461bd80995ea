package swarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "./checkpoints", cfg.CheckpointDir)
		require.Equal(t, DefaultCheckpointRetention, cfg.CheckpointRetention)
		require.Empty(t, cfg.OTLPEndpoint)
		require.Equal(t, "text", cfg.LogFormat)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("SWARM_CHECKPOINT_DIR", "/var/lib/swarm")
		t.Setenv("SWARM_CHECKPOINT_RETENTION_HOURS", "48")
		t.Setenv("SWARM_OTLP_ENDPOINT", "localhost:4318")
		t.Setenv("SWARM_LOG_FORMAT", "json")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "/var/lib/swarm", cfg.CheckpointDir)
		require.Equal(t, 48*time.Hour, cfg.CheckpointRetention)
		require.Equal(t, "localhost:4318", cfg.OTLPEndpoint)
		require.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("fractional retention hours", func(t *testing.T) {
		t.Setenv("SWARM_CHECKPOINT_RETENTION_HOURS", "0.5")
		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, 30*time.Minute, cfg.CheckpointRetention)
	})

	t.Run("invalid retention", func(t *testing.T) {
		t.Setenv("SWARM_CHECKPOINT_RETENTION_HOURS", "soon")
		_, err := LoadConfig()
		require.Error(t, err)
	})

	t.Run("invalid log format", func(t *testing.T) {
		t.Setenv("SWARM_LOG_FORMAT", "xml")
		_, err := LoadConfig()
		require.Error(t, err)
	})
}
