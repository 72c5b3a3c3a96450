package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	defaultDBPath         = "reminders.db"
	defaultPollInterval   = 30
	defaultDueBatchLimit  = 50
	defaultDigestSchedule = "0 8 * * *"
)

// Settings keeps everything the bot needs to start. Values come from the
// environment; a .env file is honored when present.
type Settings struct {
	TgToken        string
	DBPath         string
	PollInterval   time.Duration
	DueBatchLimit  int
	DigestSchedule string // cron spec; empty disables the daily digest
}

// Load reads settings from environment variables with sensible defaults.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, errors.New("environment variable TELEGRAM_BOT_TOKEN is required")
	}

	pollSeconds, err := intEnv("POLL_INTERVAL_SECONDS", defaultPollInterval)
	if err != nil {
		return nil, err
	}
	if pollSeconds <= 0 {
		return nil, errors.New("POLL_INTERVAL_SECONDS must be positive")
	}

	batchLimit, err := intEnv("DUE_BATCH_LIMIT", defaultDueBatchLimit)
	if err != nil {
		return nil, err
	}
	if batchLimit <= 0 {
		return nil, errors.New("DUE_BATCH_LIMIT must be positive")
	}

	// set-but-empty DIGEST_SCHEDULE turns the daily digest off
	schedule := defaultDigestSchedule
	if value, ok := os.LookupEnv("DIGEST_SCHEDULE"); ok {
		schedule = value
	}

	return &Settings{
		TgToken:        token,
		DBPath:         getenvDefault("REMINDER_DB_PATH", defaultDBPath),
		PollInterval:   time.Duration(pollSeconds) * time.Second,
		DueBatchLimit:  batchLimit,
		DigestSchedule: schedule,
	}, nil
}

func getenvDefault(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return def, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to parse %s=%q", key, value)
	}
	return parsed, nil
}
