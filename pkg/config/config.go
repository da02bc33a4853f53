package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Mail providers understood by pkg/mail.
const (
	MailProviderConsole  = "console"
	MailProviderResend   = "resend"
	MailProviderSendGrid = "sendgrid"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Mail     MailConfig
	Billing  BillingConfig
	Ledger   LedgerConfig
	Archive  ArchiveConfig
	Timeouts TimeoutConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	ConnectRetries    int
	ConnectRetryDelay time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	// KeyPrefix namespaces every cache key.
	KeyPrefix string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MailConfig selects and configures the transactional mail provider.
type MailConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	FromName       string
	FromAddress    string
	RecordsAddress string
	ReceiptBCC     string
	WelcomeBCC     string
}

// BillingConfig controls the scheduled bill run.
type BillingConfig struct {
	SchedulerEnabled bool
	Schedule         string
	Timezone         string
	QueueWorkers     int
}

// LedgerConfig tunes the balance cache.
type LedgerConfig struct {
	CacheTTL time.Duration
}

// ArchiveConfig controls stored ledger snapshots and their download links.
type ArchiveConfig struct {
	Dir           string
	SigningSecret string
	LinkTTL       time.Duration
	Retention     time.Duration
	PruneSchedule string
}

// TimeoutConfig bounds calls to the store and mail collaborators.
type TimeoutConfig struct {
	Store time.Duration
	Mail  time.Duration
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		ConnectRetries:    v.GetInt("DB_CONNECT_RETRIES"),
		ConnectRetryDelay: parseDuration(v.GetString("DB_CONNECT_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),

		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Mail = MailConfig{
		Provider:       strings.ToLower(v.GetString("MAIL_PROVIDER")),
		APIKey:         v.GetString("MAIL_API_KEY"),
		BaseURL:        v.GetString("MAIL_BASE_URL"),
		FromName:       v.GetString("MAIL_FROM_NAME"),
		FromAddress:    v.GetString("MAIL_FROM_ADDRESS"),
		RecordsAddress: v.GetString("MAIL_RECORDS_ADDRESS"),
		ReceiptBCC:     v.GetString("MAIL_RECEIPT_BCC"),
		WelcomeBCC:     v.GetString("MAIL_WELCOME_BCC"),
	}

	cfg.Billing = BillingConfig{
		SchedulerEnabled: v.GetBool("ENABLE_BILL_SCHEDULER"),
		Schedule:         v.GetString("BILL_SCHEDULE"),
		Timezone:         v.GetString("BILL_TIMEZONE"),
		QueueWorkers:     v.GetInt("BILL_QUEUE_WORKERS"),
	}

	cfg.Ledger = LedgerConfig{
		CacheTTL: parseDuration(v.GetString("LEDGER_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Archive = ArchiveConfig{
		Dir:           v.GetString("ARCHIVE_DIR"),
		SigningSecret: v.GetString("ARCHIVE_SIGNING_SECRET"),
		LinkTTL:       parseDuration(v.GetString("ARCHIVE_LINK_TTL"), 24*time.Hour),
		Retention:     parseDuration(v.GetString("ARCHIVE_RETENTION"), 7*24*time.Hour),
		PruneSchedule: v.GetString("ARCHIVE_PRUNE_SCHEDULE"),
	}
	if cfg.Archive.SigningSecret == "" {
		cfg.Archive.SigningSecret = cfg.JWT.Secret
	}

	cfg.Timeouts = TimeoutConfig{
		Store: parseDuration(v.GetString("STORE_TIMEOUT"), 10*time.Second),
		Mail:  parseDuration(v.GetString("MAIL_TIMEOUT"), 15*time.Second),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_hostel")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("DB_CONNECT_RETRY_DELAY", "2s")

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "hostel:")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "campus-hostel-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MAIL_PROVIDER", MailProviderConsole)
	v.SetDefault("MAIL_API_KEY", "")
	v.SetDefault("MAIL_BASE_URL", "https://api.resend.com")
	v.SetDefault("MAIL_FROM_NAME", "Campus Kota")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@campuskota.in")
	v.SetDefault("MAIL_RECORDS_ADDRESS", "records@campuskota.in")
	v.SetDefault("MAIL_RECEIPT_BCC", "")
	v.SetDefault("MAIL_WELCOME_BCC", "")

	v.SetDefault("ENABLE_BILL_SCHEDULER", false)
	v.SetDefault("BILL_SCHEDULE", "0 6 1 * *")
	v.SetDefault("BILL_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("BILL_QUEUE_WORKERS", 1)

	v.SetDefault("LEDGER_CACHE_TTL", "2m")
	v.SetDefault("ARCHIVE_DIR", "./archive")
	v.SetDefault("ARCHIVE_SIGNING_SECRET", "")
	v.SetDefault("ARCHIVE_LINK_TTL", "24h")
	v.SetDefault("ARCHIVE_RETENTION", "168h")
	v.SetDefault("ARCHIVE_PRUNE_SCHEDULE", "@hourly")
	v.SetDefault("STORE_TIMEOUT", "10s")
	v.SetDefault("MAIL_TIMEOUT", "15s")
	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
