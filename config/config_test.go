package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", `
server:
  port: 9000
storage:
  driver: mongo
mongo:
  uri: mongodb://db:27017
redis:
  enabled: true
  host: cache
comment:
  max_length: 500
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, StorageMongo, cfg.Storage.Driver)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "didmybit", cfg.Mongo.Database)
	assert.Equal(t, "comments", cfg.Mongo.Collection)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache", cfg.Redis.Host)

	assert.Equal(t, 500, cfg.Comment.MaxLength)
	assert.Equal(t, DefaultMaxDepth, cfg.Comment.MaxDepth)
	assert.Equal(t, DefaultReactionRetries, cfg.Comment.ReactionRetries)
	assert.Equal(t, DefaultCacheTTLSeconds, cfg.Comment.CacheTTLSeconds)
	assert.Equal(t, DefaultReconcileBatch, cfg.Reconcile.BatchSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_LocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", "jwt:\n  secret: from-main\n")
	writeConfig(t, dir, "config.local.yaml", "jwt:\n  secret: from-local\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-local", cfg.JWT.Secret)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "jwt:\n  secret: from-file\nserver:\n  port: 8080\n")

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestCommentConfig_WithDefaults(t *testing.T) {
	cfg := CommentConfig{MaxLength: 10, MaxDepth: -1}.WithDefaults()

	assert.Equal(t, 10, cfg.MaxLength)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, DefaultReactionRetries, cfg.ReactionRetries)
	assert.Equal(t, DefaultCacheTTLSeconds, cfg.CacheTTLSeconds)
}
