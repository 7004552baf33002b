package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8091", cfg.HTTPPort)
	assert.Equal(t, 10, cfg.SessionMaxParticipants)
	assert.Equal(t, 15*time.Second, cfg.PresenceTickInterval)
	assert.Equal(t, 30*time.Second, cfg.IdleThreshold)
	assert.Equal(t, 90*time.Second, cfg.DisconnectThreshold)
	assert.Equal(t, 2*time.Minute, cfg.AbandonGracePeriod)
	assert.Equal(t, 5*time.Minute, cfg.ActorRetention)
	assert.Equal(t, "workout-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("PRESENCE_IDLE_THRESHOLD", "45s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.IdleThreshold)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestDurationEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("PRESENCE_IDLE_THRESHOLD", "soon")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.IdleThreshold)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.IdleThreshold = cfg.DisconnectThreshold
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.SessionMaxParticipants = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load()
	cfg.AppEnv = "production"
	cfg.DB.Password = ""
	assert.Error(t, cfg.Validate())
}

func TestDSNAndDatabaseURL(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.DB.Password = "p@ss"

	assert.Contains(t, cfg.DSN(), "dbname=live_workout_service")
	assert.Contains(t, cfg.DatabaseURL(), "postgres://postgres:p%40ss@")
	assert.Equal(t, "0.0.0.0:8091", cfg.Addr())
}
