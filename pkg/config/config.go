package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Tables       TablesConfig
	Sessions     SessionsConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Tables.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Sessions.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TABLEORDERS_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLEORDERS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLEORDERS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLEORDERS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TABLEORDERS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TABLEORDERS_DB_DSN"`
	Driver string `envconfig:"TABLEORDERS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TABLEORDERS_DB_HOST"`
	LegacyPort     int    `envconfig:"TABLEORDERS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TABLEORDERS_DB_USER"`
	LegacyPassword string `envconfig:"TABLEORDERS_DB_PASSWORD"`
	LegacyName     string `envconfig:"TABLEORDERS_DB_NAME"`
	LegacySSLMode  string `envconfig:"TABLEORDERS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLEORDERS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLEORDERS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLEORDERS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLEORDERS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TABLEORDERS_DB_SLOW_QUERY" default:"250ms"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLEORDERS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TABLEORDERS_REDIS_ADDR"`
	Password     string        `envconfig:"TABLEORDERS_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLEORDERS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLEORDERS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLEORDERS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLEORDERS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLEORDERS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLEORDERS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TABLEORDERS_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL     time.Duration `envconfig:"TABLEORDERS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	AlertRetentionDays int           `envconfig:"TABLEORDERS_ALERT_RETENTION_DAYS" default:"14"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TABLEORDERS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SessionsTopic      string `envconfig:"TABLEORDERS_PUBSUB_SESSIONS_TOPIC" default:"table-session-events"`
	AlertsSubscription string `envconfig:"TABLEORDERS_PUBSUB_ALERTS_SUBSCRIPTION" default:"table-session-alerts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TABLEORDERS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TABLEORDERS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TABLEORDERS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"TABLEORDERS_OUTBOX_RETENTION_DAYS" default:"30"`
}

// TablesConfig lists the closed set of table numbers the restaurant serves.
type TablesConfig struct {
	Numbers []int `envconfig:"TABLEORDERS_TABLE_NUMBERS" default:"1,2,3,4"`
}

// Contains reports whether tableNumber is one of the configured tables.
func (t TablesConfig) Contains(tableNumber int) bool {
	for _, n := range t.Numbers {
		if n == tableNumber {
			return true
		}
	}
	return false
}

func (t TablesConfig) validate() error {
	if len(t.Numbers) == 0 {
		return fmt.Errorf("%s must list at least one table", EnvTableNumbers)
	}
	seen := map[int]struct{}{}
	for _, n := range t.Numbers {
		if n <= 0 {
			return fmt.Errorf("%s contains invalid table number %d", EnvTableNumbers, n)
		}
		if _, ok := seen[n]; ok {
			return fmt.Errorf("%s contains duplicate table number %d", EnvTableNumbers, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

type SessionsConfig struct {
	MatchBy           string        `envconfig:"TABLEORDERS_SESSIONS_MATCH_BY" default:"name"`
	MaxUpdateAttempts int           `envconfig:"TABLEORDERS_SESSIONS_MAX_UPDATE_ATTEMPTS" default:"3"`
	ReceiptStrategy   string        `envconfig:"TABLEORDERS_SESSIONS_RECEIPT_STRATEGY" default:"timestamp"`
	PaymentNudgeAfter time.Duration `envconfig:"TABLEORDERS_SESSIONS_PAYMENT_NUDGE_AFTER" default:"30m"`
}

func (s SessionsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.MatchBy)) {
	case MatchByName, MatchByID:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvSessionsMatchBy, MatchByName, MatchByID)
	}
	switch strings.ToLower(strings.TrimSpace(s.ReceiptStrategy)) {
	case ReceiptStrategyTimestamp, ReceiptStrategyCounter:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvSessionsReceiptStrategy, ReceiptStrategyTimestamp, ReceiptStrategyCounter)
	}
	return nil
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TABLEORDERS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
