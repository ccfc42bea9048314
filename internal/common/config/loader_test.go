package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: bookings
apis:
  calendar:
    base_url: http://calendar.local
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.Booking.DefaultTimezone)
	assert.Equal(t, 10, cfg.Booking.DefaultDaypartHour)
	assert.Equal(t, "1", cfg.Booking.DefaultCountryCode)
	assert.Equal(t, 30, cfg.Booking.MeetingDuration)
	assert.Equal(t, ModeRules, cfg.Booking.Classifier.Mode)
	assert.Equal(t, StoreMemory, cfg.Booking.StateStore)
	assert.Equal(t, LockLocal, cfg.Booking.Lock.Backend)
	assert.Equal(t, 6, cfg.Booking.HistoryWindow)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "booking-transitions", cfg.Database.Elasticsearch.AuditIndex)
	assert.Equal(t, time.UTC, cfg.Booking.Location())
}

func TestLoadFromFile_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_BOOKING_TZ", "Asia/Kathmandu")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig+`
booking:
  default_timezone: ${TEST_BOOKING_TZ}
`))
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kathmandu", cfg.Booking.DefaultTimezone)
	assert.Equal(t, "Asia/Kathmandu", cfg.Booking.Location().String())
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		want  string
	}{
		{
			name:  "unknown timezone",
			extra: "booking:\n  default_timezone: Mars/Olympus\n",
			want:  "default_timezone",
		},
		{
			name:  "unknown classifier mode",
			extra: "booking:\n  classifier:\n    mode: magic\n",
			want:  "classifier.mode",
		},
		{
			name:  "llm without genai",
			extra: "booking:\n  extractor:\n    mode: llm\n",
			want:  "apis.genai.base_url",
		},
		{
			name:  "redis store without address",
			extra: "booking:\n  state_store: redis\n",
			want:  "database.redis.address",
		},
		{
			name:  "bad daypart",
			extra: "booking:\n  default_daypart_hour: 25\n",
			want:  "default_daypart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, minimalConfig+tt.extra))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromFile_MissingBroker(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "database:\n  postgres:\n    host: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camunda.broker_address")
}

func TestGetWorkerConfig(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"list-bookings": {Enabled: false, MaxJobsActive: 2, Timeout: 1000, MaxRetries: 1},
	}}

	assert.Equal(t, 2, GetWorkerConfig(cfg, "list-bookings").MaxJobsActive)
	assert.False(t, IsWorkerEnabled(cfg, "list-bookings"))

	fallback := GetWorkerConfig(cfg, "handle-conversation-turn")
	assert.True(t, fallback.Enabled)
	assert.Equal(t, 30000, fallback.Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "handle-conversation-turn"))
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
