package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, EngineMemory, cfg.Store.Engine)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "ride-events", cfg.Kafka.RideEventsTopic)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: "9000"
store:
  engine: postgres
  timeout: 750ms
kafka:
  brokers: ["k1:9092"]
dispatch:
  nearbyLimit: 5
`), 0o600)
	require.NoError(t, err)

	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port, "env overrides file")
	assert.Equal(t, EnginePostgres, cfg.Store.Engine)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Dispatch.NearbyLimit)
	assert.Equal(t, 5.0, cfg.Dispatch.NearbyRadiusKm, "unset keys keep defaults")
}

func TestLoad_InvalidEnvValueKeepsDefault(t *testing.T) {
	t.Setenv("STORE_TIMEOUT", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Store.Engine = "sqlite"
	cfg.Store.Timeout = 0
	cfg.NewRelic.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.engine")
	assert.Contains(t, err.Error(), "store.timeout")
	assert.Contains(t, err.Error(), "newrelic.licenseKey")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	dsn := Default().Database.DSN()
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=dispatch sslmode=disable", dsn)
}
