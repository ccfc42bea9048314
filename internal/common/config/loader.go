package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeRules = "rules"
	ModeLLM   = "llm"

	StoreMemory = "memory"
	StoreRedis  = "redis"

	LockLocal = "local"
	LockRedis = "redis"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return decode(v)
}

func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				fmt.Printf("loaded .env from: %s\n", path)
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.APIs.GenAI.APIKey, "GENAI_API_KEY"},
		{&cfg.APIs.RAG.APIKey, "RAG_API_KEY"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
		{&cfg.Database.Redis.Password, "REDIS_PASSWORD"},
		{&cfg.Booking.DefaultTimezone, "BOOKING_TIMEZONE"},
	}
	for _, o := range overrides {
		if *o.target != "" {
			continue
		}
		if val := os.Getenv(o.env); val != "" {
			*o.target = val
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "booking-assistant"
	}
	if cfg.App.HTTPAddress == "" {
		cfg.App.HTTPAddress = ":8080"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.AuditIndex == "" {
		cfg.Database.Elasticsearch.AuditIndex = "booking-transitions"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = cfg.App.Name
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	for _, api := range []*ServiceEndpoint{&cfg.APIs.GenAI, &cfg.APIs.Calendar, &cfg.APIs.RAG} {
		if api.Timeout == 0 {
			api.Timeout = 10000
		}
		if api.MaxRetries == 0 {
			api.MaxRetries = 2
		}
	}

	b := &cfg.Booking
	if b.DefaultTimezone == "" {
		b.DefaultTimezone = "UTC"
	}
	if b.DefaultDaypartHour == 0 && b.DefaultDaypartMinute == 0 {
		b.DefaultDaypartHour = 10
	}
	if b.DefaultCountryCode == "" {
		b.DefaultCountryCode = "1"
	}
	if b.MeetingDuration == 0 {
		b.MeetingDuration = 30
	}
	if b.MeetingTitleTemplate == "" {
		b.MeetingTitleTemplate = "Call with {{name}}"
	}
	if b.StateStore == "" {
		b.StateStore = StoreMemory
	}
	if b.HistoryWindow == 0 {
		b.HistoryWindow = 6
	}
	if b.CollaboratorTimeout == 0 {
		b.CollaboratorTimeout = 15000
	}
	if b.Classifier.Mode == "" {
		b.Classifier.Mode = ModeRules
	}
	if b.Classifier.Timeout == 0 {
		b.Classifier.Timeout = 5000
	}
	if b.Extractor.Mode == "" {
		b.Extractor.Mode = ModeRules
	}
	if b.Extractor.Timeout == 0 {
		b.Extractor.Timeout = 5000
	}
	if b.Lock.Backend == "" {
		b.Lock.Backend = LockLocal
	}
	if b.Lock.TTL == 0 {
		b.Lock.TTL = 30000
	}
	if b.Lock.RetryInterval == 0 {
		b.Lock.RetryInterval = 50
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}

	b := cfg.Booking
	if _, err := time.LoadLocation(b.DefaultTimezone); err != nil {
		return fmt.Errorf("booking.default_timezone %q is not a known timezone: %w", b.DefaultTimezone, err)
	}
	if b.DefaultDaypartHour < 0 || b.DefaultDaypartHour > 23 || b.DefaultDaypartMinute < 0 || b.DefaultDaypartMinute > 59 {
		return fmt.Errorf("booking.default_daypart must be a valid clock time")
	}
	for name, mode := range map[string]string{"classifier": b.Classifier.Mode, "extractor": b.Extractor.Mode} {
		if mode != ModeRules && mode != ModeLLM {
			return fmt.Errorf("booking.%s.mode must be %q or %q", name, ModeRules, ModeLLM)
		}
		if mode == ModeLLM && cfg.APIs.GenAI.BaseURL == "" {
			return fmt.Errorf("apis.genai.base_url is required when booking.%s.mode is %q", name, ModeLLM)
		}
	}
	if b.StateStore != StoreMemory && b.StateStore != StoreRedis {
		return fmt.Errorf("booking.state_store must be %q or %q", StoreMemory, StoreRedis)
	}
	if b.Lock.Backend != LockLocal && b.Lock.Backend != LockRedis {
		return fmt.Errorf("booking.lock.backend must be %q or %q", LockLocal, LockRedis)
	}
	if (b.StateStore == StoreRedis || b.Lock.Backend == LockRedis) && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required for redis state or locks")
	}
	if cfg.APIs.Calendar.BaseURL == "" {
		return fmt.Errorf("apis.calendar.base_url is required")
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
