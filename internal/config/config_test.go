package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithArgs(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	fs := Flags()
	require.NoError(t, fs.Parse(args))
	return Load(fs)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadWithArgs(t)
	require.NoError(t, err)

	assert.Equal(t, "ankichat.db", cfg.DBPath)
	assert.Equal(t, "default", cfg.UserID)
	assert.Equal(t, 20, cfg.MaxSessionCards)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /tmp/cards.db
user_id: alice
max_session_cards: 5
llm:
  model: gpt-4o
`), 0o644))

	cfg, err := loadWithArgs(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cards.db", cfg.DBPath)
	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, 5, cfg.MaxSessionCards)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	// Untouched keys keep their defaults.
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := loadWithArgs(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_id: alice\n"), 0o644))

	t.Setenv("ANKICHAT_USER_ID", "bob")
	t.Setenv("ANKICHAT_LLM__API_KEY", "secret")

	cfg, err := loadWithArgs(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.UserID)
	assert.Equal(t, "secret", cfg.LLM.APIKey)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("ANKICHAT_USER_ID", "bob")

	cfg, err := loadWithArgs(t, "--user-id", "carol", "--source", "/cards", "--source", "git@example.com:a/b.git")
	require.NoError(t, err)

	assert.Equal(t, "carol", cfg.UserID)
	assert.Equal(t, []string{"/cards", "git@example.com:a/b.git"}, cfg.Sources)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := loadWithArgs(t, "--max-session-cards", "0")
	assert.Error(t, err)

	_, err = loadWithArgs(t, "--log-level", "loud")
	assert.Error(t, err)
}
