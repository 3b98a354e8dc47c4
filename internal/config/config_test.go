package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/interview-orchestrator/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
database:
  host: db.internal
  password: secret
video:
  base_url: https://video.example.com
  server_url: wss://video.example.com
  api_key: key
  api_secret: secret
messaging:
  base_url: https://messaging.example.com
  api_token: token
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "interview-orchestrator", cfg.Service.Name)
	assert.Equal(t, 8087, cfg.Service.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 5, cfg.Notifications.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Notifications.BaseBackoff)
	assert.Equal(t, 2*time.Hour, cfg.Video.TokenTTL)
	assert.Equal(t, 500, cfg.Transcripts.MaxBatchSegments)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	t.Setenv("POSTGRES_ORCHESTRATOR_HOST", "env-db")
	t.Setenv("ORCHESTRATOR_PORT", "9099")
	t.Setenv("NOTIFY_MAX_ATTEMPTS", "3")
	t.Setenv("VIDEO_TOKEN_TTL", "45m")

	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-db", cfg.Database.Host)
	assert.Equal(t, 9099, cfg.Service.Port)
	assert.Equal(t, 3, cfg.Notifications.MaxAttempts)
	assert.Equal(t, 45*time.Minute, cfg.Video.TokenTTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestValidate_RequiredFields(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing video credentials", func(c *config.Config) { c.Video.APISecret = "" }},
		{"missing video url", func(c *config.Config) { c.Video.BaseURL = "" }},
		{"missing messaging token", func(c *config.Config) { c.Messaging.APIToken = "" }},
		{"port out of range", func(c *config.Config) { c.Service.Port = 70000 }},
		{"zero max attempts", func(c *config.Config) { c.Notifications.MaxAttempts = 0 }},
		{"non-positive backoff", func(c *config.Config) { c.Notifications.BaseBackoff = -time.Second }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfig(t, minimalConfig))
			require.NoError(t, err)

			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	db := config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "app",
		Password: "pw", Database: "orchestrator", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=app password=pw dbname=orchestrator sslmode=disable",
		db.DSN())
	assert.Equal(t,
		"postgres://app:pw@localhost:5432/orchestrator?sslmode=disable",
		db.MigrateURL())
}
