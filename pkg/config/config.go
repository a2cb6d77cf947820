package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full process configuration. Every binary loads all of it;
// sections a binary does not use only need their required keys present.
type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Reservations ReservationsConfig
}

// Load reads FOODRESCUE_* variables from the environment. Callers load any
// .env file first.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DB.DSN == "" {
		dsn, err := cfg.DB.Parts.dsn()
		if err != nil {
			return nil, err
		}
		cfg.DB.DSN = dsn
	}
	if cfg.Cron.LockTTL <= cfg.Cron.Interval {
		return nil, fmt.Errorf("%s must exceed %s", EnvCronLockTTL, EnvCronInterval)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"FOODRESCUE_APP_ENV" required:"true"`
	Port         string   `envconfig:"FOODRESCUE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"FOODRESCUE_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"FOODRESCUE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"FOODRESCUE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"FOODRESCUE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FOODRESCUE_DB_DSN"`
	Driver string `envconfig:"FOODRESCUE_DB_DRIVER" default:"postgres"`
	Parts  DSNParts

	MaxOpenConns    int           `envconfig:"FOODRESCUE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODRESCUE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODRESCUE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODRESCUE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// DSNParts is the discrete form of a postgres DSN, used when
// FOODRESCUE_DB_DSN is unset.
type DSNParts struct {
	Host     string `envconfig:"FOODRESCUE_DB_HOST"`
	Port     int    `envconfig:"FOODRESCUE_DB_PORT" default:"5432"`
	User     string `envconfig:"FOODRESCUE_DB_USER"`
	Password string `envconfig:"FOODRESCUE_DB_PASSWORD"`
	Name     string `envconfig:"FOODRESCUE_DB_NAME"`
	SSLMode  string `envconfig:"FOODRESCUE_DB_SSLMODE" default:"disable"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODRESCUE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FOODRESCUE_REDIS_ADDR"`
	Password     string        `envconfig:"FOODRESCUE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODRESCUE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODRESCUE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODRESCUE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODRESCUE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODRESCUE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODRESCUE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig covers verification of access tokens minted by the auth service.
type JWTConfig struct {
	Secret string `envconfig:"FOODRESCUE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FOODRESCUE_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FOODRESCUE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"FOODRESCUE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"FOODRESCUE_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FOODRESCUE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FOODRESCUE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FOODRESCUE_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names topics and subscriptions by ID or full resource name.
// Each worker requires only the subscription it consumes.
type PubSubConfig struct {
	ReservationsTopic        string `envconfig:"FOODRESCUE_PUBSUB_RESERVATIONS_TOPIC" default:"fr-reservation-events"`
	ReservationsSubscription string `envconfig:"FOODRESCUE_PUBSUB_RESERVATIONS_SUBSCRIPTION"`
	AnalyticsTopic           string `envconfig:"FOODRESCUE_PUBSUB_ANALYTICS_TOPIC" default:"fr-analytics-events"`
	AnalyticsSubscription    string `envconfig:"FOODRESCUE_PUBSUB_ANALYTICS_SUBSCRIPTION"`
	MaxOutstanding           int    `envconfig:"FOODRESCUE_PUBSUB_MAX_OUTSTANDING" default:"100"`
	ReceiveGoroutines        int    `envconfig:"FOODRESCUE_PUBSUB_RECEIVE_GOROUTINES" default:"2"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"FOODRESCUE_BIGQUERY_DATASET" default:"foodrescue"`
	ImpactTable string `envconfig:"FOODRESCUE_BIGQUERY_IMPACT_TABLE" default:"impact_facts"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"FOODRESCUE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"FOODRESCUE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"FOODRESCUE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"FOODRESCUE_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	MaxBackoff     time.Duration `envconfig:"FOODRESCUE_OUTBOX_MAX_BACKOFF" default:"10s"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"FOODRESCUE_CRON_INTERVAL" default:"1m"`
	LockTTL         time.Duration `envconfig:"FOODRESCUE_CRON_LOCK_TTL" default:"5m"`
	OutboxRetention time.Duration `envconfig:"FOODRESCUE_CRON_OUTBOX_RETENTION" default:"720h"`
	RetentionEvery  time.Duration `envconfig:"FOODRESCUE_CRON_OUTBOX_RETENTION_EVERY" default:"1h"`
	ExpiryBatchSize int           `envconfig:"FOODRESCUE_CRON_EXPIRY_BATCH_SIZE" default:"200"`
}

// ReservationsConfig tunes the pickup window derived for new reservations.
type ReservationsConfig struct {
	WindowPadding time.Duration `envconfig:"FOODRESCUE_RESERVATION_WINDOW_PADDING" default:"1h"`
}

func (p DSNParts) dsn() (string, error) {
	var missing []string
	for env, value := range map[string]string{EnvDBHost: p.Host, EnvDBUser: p.User, EnvDBName: p.Name} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%s is unset and %s missing", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(p.User),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Name,
	}
	if p.Password != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String(), nil
}
