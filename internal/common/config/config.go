package config

import (
	"fmt"
	"time"
)

type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Booking       BookingConfig           `mapstructure:"booking"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPAddress string `mapstructure:"http_address"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
	Enabled    bool     `mapstructure:"enabled"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

type ServiceEndpoint struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

type APIsConfig struct {
	GenAI    ServiceEndpoint `mapstructure:"genai"`
	Calendar ServiceEndpoint `mapstructure:"calendar"`
	RAG      ServiceEndpoint `mapstructure:"rag"`
}

// BookingConfig tunes the slot-filling state machine
type BookingConfig struct {
	DefaultTimezone      string `mapstructure:"default_timezone"`
	DefaultDaypartHour   int    `mapstructure:"default_daypart_hour"`
	DefaultDaypartMinute int    `mapstructure:"default_daypart_minute"`
	DefaultCountryCode   string `mapstructure:"default_country_code"`
	MeetingDuration      int    `mapstructure:"meeting_duration"` // minutes
	MeetingTitleTemplate string `mapstructure:"meeting_title_template"`
	StateStore           string `mapstructure:"state_store"` // memory | redis
	StateTTL             int    `mapstructure:"state_ttl"`   // seconds, 0 keeps state forever
	HistoryWindow        int    `mapstructure:"history_window"`
	CollaboratorTimeout  int    `mapstructure:"collaborator_timeout"` // milliseconds

	Classifier ComponentConfig `mapstructure:"classifier"`
	Extractor  ComponentConfig `mapstructure:"extractor"`
	Lock       LockConfig      `mapstructure:"lock"`
}

// ComponentConfig selects between the rule based and model backed implementation
type ComponentConfig struct {
	Mode    string `mapstructure:"mode"`    // rules | llm
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

type LockConfig struct {
	Backend       string `mapstructure:"backend"`        // local | redis
	TTL           int    `mapstructure:"ttl"`            // milliseconds
	RetryInterval int    `mapstructure:"retry_interval"` // milliseconds
}

func (b BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
