package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.CodeTTL)
	assert.Equal(t, 5, cfg.Auth.MaxCodeAttempts)
	assert.Equal(t, 12, cfg.Auth.TempPasswordLength)
	assert.Equal(t, "log", cfg.Notify.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "societycore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
storage:
  driver: memory
auth:
  code_ttl: 5m
events:
  driver: kafka
  brokers: ["k1:9092"]
`), 0o600))

	t.Setenv("SOCIETYCORE_HTTP_ADDR", ":7070")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Auth.CodeTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "sk_test_123", cfg.Billing.StripeSecretKey)
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("SOCIETYCORE_STORAGE_DRIVER", "memory")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestValidateCollectsProblems(t *testing.T) {
	t.Setenv("SOCIETYCORE_STORAGE_DRIVER", "postgres")
	t.Setenv("SOCIETYCORE_BLOB_DRIVER", "s3")
	t.Setenv("SOCIETYCORE_NOTIFY_DRIVER", "rabbitmq")
	_, err := Load("")
	require.Error(t, err)
	assert.ErrorContains(t, err, "storage.postgres_dsn")
	assert.ErrorContains(t, err, "blob.bucket")
	assert.ErrorContains(t, err, "notify.url")

	t.Setenv("SOCIETYCORE_STORAGE_DRIVER", "mongo")
	_, err = Load("")
	assert.ErrorContains(t, err, `unknown storage.driver "mongo"`)
}
