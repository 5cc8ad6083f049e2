package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when CLOUDBDAY_CONFIG is unset. A missing default file
// is not an error.
const DefaultFile = "cloudbday.yaml"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Observability ObservabilityConfig `yaml:"observability"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Auth          AuthConfig          `yaml:"auth"`
	Secrets       SecretsConfig       `yaml:"secrets"`
	Cache         CacheConfig         `yaml:"cache"`
	Queue         QueueConfig         `yaml:"queue"`
	Google        GoogleConfig        `yaml:"google"`
	Mail          MailConfig          `yaml:"mail"`
	Templates     TemplatesConfig     `yaml:"templates"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	// MaxUploadBytes bounds import uploads.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string  `yaml:"log_level"`
	LogFormat      string  `yaml:"log_format"`
	OTELEnabled    bool    `yaml:"otel_enabled"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	SamplingRate   float64 `yaml:"sampling_rate"`
}

// AuthConfig holds token settings for the admin API and task triggers.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// SecretsConfig holds the master key sealing tenant refresh tokens.
type SecretsConfig struct {
	Key string `yaml:"key"`
}

// CacheConfig selects the cache tiers. Redis is used when RedisAddr is set.
type CacheConfig struct {
	L1MaxBytes    int64         `yaml:"l1_max_bytes"`
	L1TTL         time.Duration `yaml:"l1_ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	RedisPrefix   string        `yaml:"redis_prefix"`
}

// QueueConfig selects the task queue. Tasks run inline when NATSURL is empty.
type QueueConfig struct {
	NATSURL    string        `yaml:"nats_url"`
	Stream     string        `yaml:"stream"`
	MaxDeliver int           `yaml:"max_deliver"`
	AckWait    time.Duration `yaml:"ack_wait"`
}

// GoogleConfig holds the OAuth client and API endpoints.
type GoogleConfig struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	TokenURL     string        `yaml:"token_url"`
	PeopleURL    string        `yaml:"people_url"`
	CalendarURL  string        `yaml:"calendar_url"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryCount   int           `yaml:"retry_count"`
}

// MailConfig selects the transport: mandrill, smtp or log.
type MailConfig struct {
	Transport      string        `yaml:"transport"`
	SenderAddress  string        `yaml:"sender_address"`
	MandrillAPIKey string        `yaml:"mandrill_api_key"`
	MandrillURL    string        `yaml:"mandrill_url"`
	SMTPHost       string        `yaml:"smtp_host"`
	SMTPPort       int           `yaml:"smtp_port"`
	SMTPUsername   string        `yaml:"smtp_username"`
	SMTPPassword   string        `yaml:"smtp_password"`
	Timeout        time.Duration `yaml:"timeout"`
}

// TemplatesConfig points at tenant mail templates.
type TemplatesConfig struct {
	Dir string `yaml:"dir"`
}

// ScheduleConfig drives cmd/scheduler. Specs use the cron.v2 syntax.
type ScheduleConfig struct {
	TimeZone      string `yaml:"time_zone"`
	Birthdays     string `yaml:"birthdays"`
	DirectorySync string `yaml:"directory_sync"`
	CalendarSync  string `yaml:"calendar_sync"`
}

// Location resolves TimeZone, defaulting to UTC.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", s.TimeZone, err)
	}
	return loc, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			User:            "cloudbday",
			Database:        "cloudbday",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "cloudbday",
			ServiceVersion: "0.1.0",
			Environment:    "development",
			SamplingRate:   1.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Auth: AuthConfig{
			Issuer:   "cloudbday",
			TokenTTL: 12 * time.Hour,
		},
		Cache: CacheConfig{
			L1MaxBytes:  64 << 20,
			L1TTL:       30 * time.Second,
			RedisPrefix: "cloudbday:",
		},
		Queue: QueueConfig{
			Stream:     "CLOUDBDAY",
			MaxDeliver: 5,
			AckWait:    time.Minute,
		},
		Google: GoogleConfig{
			Timeout:    30 * time.Second,
			RetryCount: 3,
		},
		Mail: MailConfig{
			Transport:     "log",
			SenderAddress: "noreply@cloudbday.io",
			SMTPPort:      587,
			Timeout:       30 * time.Second,
		},
		Templates: TemplatesConfig{
			Dir: "templates",
		},
		Schedule: ScheduleConfig{
			TimeZone:      "UTC",
			Birthdays:     "0 0 7 * * *",
			DirectorySync: "0 0 2 * * *",
			CalendarSync:  "0 30 2 * * 0",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CLOUDBDAY_CONFIG (or DefaultFile) and environment variables, in that
// order of precedence.
func Load() (*Config, error) {
	cfg := Defaults()

	path, explicit := os.LookupEnv("CLOUDBDAY_CONFIG")
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = parseDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = parseDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = parseDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.MaxUploadBytes = int64(parseInt("SERVER_MAX_UPLOAD_BYTES", int(c.Server.MaxUploadBytes)))

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = parseInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = parseInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = parseDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)

	c.Observability.LogLevel = getEnv("LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.LogFormat = getEnv("LOG_FORMAT", c.Observability.LogFormat)
	c.Observability.OTELEnabled = parseBool("OTEL_ENABLED", c.Observability.OTELEnabled)
	c.Observability.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Observability.ServiceName)
	c.Observability.ServiceVersion = getEnv("OTEL_SERVICE_VERSION", c.Observability.ServiceVersion)
	c.Observability.Environment = getEnv("DEPLOYMENT_ENVIRONMENT", c.Observability.Environment)
	c.Observability.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", c.Observability.OTLPEndpoint)
	c.Observability.SamplingRate = parseFloat("OTEL_SAMPLING_RATE", c.Observability.SamplingRate)

	c.RateLimit.RequestsPerSecond = parseFloat("RATELIMIT_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = parseInt("RATELIMIT_BURST", c.RateLimit.Burst)

	c.Auth.Secret = getEnv("AUTH_SECRET", c.Auth.Secret)
	c.Auth.Issuer = getEnv("AUTH_ISSUER", c.Auth.Issuer)
	c.Auth.TokenTTL = parseDuration("AUTH_TOKEN_TTL", c.Auth.TokenTTL)

	c.Secrets.Key = getEnv("SECRETS_KEY", c.Secrets.Key)

	c.Cache.L1MaxBytes = int64(parseInt("CACHE_L1_MAX_BYTES", int(c.Cache.L1MaxBytes)))
	c.Cache.L1TTL = parseDuration("CACHE_L1_TTL", c.Cache.L1TTL)
	c.Cache.RedisAddr = getEnv("REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.RedisPassword = getEnv("REDIS_PASSWORD", c.Cache.RedisPassword)
	c.Cache.RedisDB = parseInt("REDIS_DB", c.Cache.RedisDB)
	c.Cache.RedisPrefix = getEnv("REDIS_PREFIX", c.Cache.RedisPrefix)

	c.Queue.NATSURL = getEnv("NATS_URL", c.Queue.NATSURL)
	c.Queue.Stream = getEnv("QUEUE_STREAM", c.Queue.Stream)
	c.Queue.MaxDeliver = parseInt("QUEUE_MAX_DELIVER", c.Queue.MaxDeliver)
	c.Queue.AckWait = parseDuration("QUEUE_ACK_WAIT", c.Queue.AckWait)

	c.Google.ClientID = getEnv("GOOGLE_CLIENT_ID", c.Google.ClientID)
	c.Google.ClientSecret = getEnv("GOOGLE_CLIENT_SECRET", c.Google.ClientSecret)
	c.Google.TokenURL = getEnv("GOOGLE_TOKEN_URL", c.Google.TokenURL)
	c.Google.PeopleURL = getEnv("GOOGLE_PEOPLE_URL", c.Google.PeopleURL)
	c.Google.CalendarURL = getEnv("GOOGLE_CALENDAR_URL", c.Google.CalendarURL)
	c.Google.Timeout = parseDuration("GOOGLE_TIMEOUT", c.Google.Timeout)
	c.Google.RetryCount = parseInt("GOOGLE_RETRY_COUNT", c.Google.RetryCount)

	c.Mail.Transport = strings.ToLower(getEnv("MAIL_TRANSPORT", c.Mail.Transport))
	c.Mail.SenderAddress = getEnv("MAIL_SENDER_ADDRESS", c.Mail.SenderAddress)
	c.Mail.MandrillAPIKey = getEnv("MANDRILL_API_KEY", c.Mail.MandrillAPIKey)
	c.Mail.MandrillURL = getEnv("MANDRILL_URL", c.Mail.MandrillURL)
	c.Mail.SMTPHost = getEnv("SMTP_HOST", c.Mail.SMTPHost)
	c.Mail.SMTPPort = parseInt("SMTP_PORT", c.Mail.SMTPPort)
	c.Mail.SMTPUsername = getEnv("SMTP_USERNAME", c.Mail.SMTPUsername)
	c.Mail.SMTPPassword = getEnv("SMTP_PASSWORD", c.Mail.SMTPPassword)
	c.Mail.Timeout = parseDuration("MAIL_TIMEOUT", c.Mail.Timeout)

	c.Templates.Dir = getEnv("TEMPLATES_DIR", c.Templates.Dir)

	c.Schedule.TimeZone = getEnv("SCHEDULE_TIME_ZONE", c.Schedule.TimeZone)
	c.Schedule.Birthdays = getEnv("SCHEDULE_BIRTHDAYS", c.Schedule.Birthdays)
	c.Schedule.DirectorySync = getEnv("SCHEDULE_DIRECTORY_SYNC", c.Schedule.DirectorySync)
	c.Schedule.CalendarSync = getEnv("SCHEDULE_CALENDAR_SYNC", c.Schedule.CalendarSync)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("AUTH_SECRET is required and must be at least 32 bytes"))
	}
	if len(c.Secrets.Key) < 32 {
		errs = append(errs, errors.New("SECRETS_KEY is required and must be at least 32 bytes"))
	}
	switch c.Mail.Transport {
	case "log":
	case "mandrill":
		if c.Mail.MandrillAPIKey == "" {
			errs = append(errs, errors.New("MANDRILL_API_KEY is required for the mandrill transport"))
		}
	case "smtp":
		if c.Mail.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_TRANSPORT %q", c.Mail.Transport))
	}
	if _, err := c.Schedule.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
