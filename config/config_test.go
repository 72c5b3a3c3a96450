package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", s.TgToken)
	assert.Equal(t, "reminders.db", s.DBPath)
	assert.Equal(t, 30*time.Second, s.PollInterval)
	assert.Equal(t, 50, s.DueBatchLimit)
	assert.Equal(t, "0 8 * * *", s.DigestSchedule)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("REMINDER_DB_PATH", "/var/lib/bot/reminders.db")
	t.Setenv("POLL_INTERVAL_SECONDS", "5")
	t.Setenv("DUE_BATCH_LIMIT", "10")
	t.Setenv("DIGEST_SCHEDULE", "0 9 * * 1")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/bot/reminders.db", s.DBPath)
	assert.Equal(t, 5*time.Second, s.PollInterval)
	assert.Equal(t, 10, s.DueBatchLimit)
	assert.Equal(t, "0 9 * * 1", s.DigestSchedule)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	t.Run("non-numeric interval", func(t *testing.T) {
		t.Setenv("POLL_INTERVAL_SECONDS", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero interval", func(t *testing.T) {
		t.Setenv("POLL_INTERVAL_SECONDS", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("negative batch limit", func(t *testing.T) {
		t.Setenv("DUE_BATCH_LIMIT", "-1")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadEmptyScheduleDisablesDigest(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DIGEST_SCHEDULE", "")

	s, err := Load()
	require.NoError(t, err)
	assert.Empty(t, s.DigestSchedule)
}
