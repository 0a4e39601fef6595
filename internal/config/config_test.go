package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"toohak-backend/internal/config"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	req.NoError(err)

	req.Equal(":8080", cfg.Addr)
	req.Equal(31*time.Second, cfg.Room.RevealTimeout)
	req.Equal(5*time.Second, cfg.Room.BroadcastTimeout)
	req.Equal(int64(512), cfg.Room.WebsocketReadLimit)
	req.Equal(20, cfg.Room.EventRateLimit)
	req.Equal([]string{"http://localhost:5173"}, cfg.AllowedOrigins)
	req.Equal("data", cfg.DB.Path)
	req.False(cfg.DB.InMemory)
}

func TestLoadConfigDotenv(t *testing.T) {
	req := require.New(t)

	path := filepath.Join(t.TempDir(), ".env")
	content := "ADDR=:9090\nROOM_REVEAL_TIMEOUT=10s\nDB_IN_MEMORY=true\nCORS_ALLOWED_ORIGINS=http://a,http://b\n"
	req.NoError(os.WriteFile(path, []byte(content), 0o600))

	// godotenv never overrides variables already set, t.Setenv restores them.
	for _, key := range []string{"ADDR", "ROOM_REVEAL_TIMEOUT", "DB_IN_MEMORY", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := config.LoadConfig(path)
	req.NoError(err)

	req.Equal(":9090", cfg.Addr)
	req.Equal(10*time.Second, cfg.Room.RevealTimeout)
	req.True(cfg.DB.InMemory)
	req.Equal([]string{"http://a", "http://b"}, cfg.AllowedOrigins)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("ROOM_EVENT_RATE_LIMIT", "0")

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}
