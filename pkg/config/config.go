package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Commerce     CommerceConfig
	Scheduler    SchedulerConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Breaker      BreakerConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AQUAFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"AQUAFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"AQUAFLOW_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"AQUAFLOW_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"AQUAFLOW_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"AQUAFLOW_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AQUAFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AQUAFLOW_DB_DSN"`
	Driver string `envconfig:"AQUAFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AQUAFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"AQUAFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AQUAFLOW_DB_USER"`
	LegacyPassword string `envconfig:"AQUAFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"AQUAFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"AQUAFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AQUAFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AQUAFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AQUAFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AQUAFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// LockTimeout bounds how long a transaction waits on a row lock (postgres only).
	LockTimeout     time.Duration `envconfig:"AQUAFLOW_DB_LOCK_TIMEOUT" default:"3s"`
	ConflictRetries int           `envconfig:"AQUAFLOW_DB_CONFLICT_RETRIES" default:"3"`
	ConflictBackoff time.Duration `envconfig:"AQUAFLOW_DB_CONFLICT_BACKOFF" default:"25ms"`

	SlowQueryThreshold time.Duration `envconfig:"AQUAFLOW_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the configured driver is sqlite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"AQUAFLOW_REDIS_URL"`
	Address      string        `envconfig:"AQUAFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"AQUAFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"AQUAFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AQUAFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AQUAFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AQUAFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AQUAFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AQUAFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"AQUAFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"AQUAFLOW_AUTO_MIGRATE" default:"false"`
}

// CommerceConfig holds the defaults for the settings snapshot. Rows in the
// settings table override these at runtime.
type CommerceConfig struct {
	PointsPerUnit           int             `envconfig:"AQUAFLOW_POINTS_PER_UNIT" default:"1"`
	PesoPerPoint            decimal.Decimal `envconfig:"AQUAFLOW_PESO_PER_POINT" default:"1"`
	DefaultDeliveryFeeCents int64           `envconfig:"AQUAFLOW_DEFAULT_DELIVERY_FEE_CENTS" default:"0"`
	StockDeductOn           string          `envconfig:"AQUAFLOW_STOCK_DEDUCT_ON" default:"order_placed"`
	PointsCategories        []string        `envconfig:"AQUAFLOW_POINTS_CATEGORIES" default:"refill"`
	IdempotencyTTL          time.Duration   `envconfig:"AQUAFLOW_IDEMPOTENCY_TTL" default:"24h"`
}

func (c CommerceConfig) validate() error {
	if c.PointsPerUnit < 0 {
		return fmt.Errorf("%s must be >= 0", EnvPointsPerUnit)
	}
	if c.PesoPerPoint.IsNegative() {
		return fmt.Errorf("%s must be >= 0", EnvPesoPerPoint)
	}
	if c.DefaultDeliveryFeeCents < 0 {
		return fmt.Errorf("%s must be >= 0", EnvDefaultDeliveryFee)
	}
	switch c.StockDeductOn {
	case StockDeductOnOrderPlaced, StockDeductOnOrderDelivered:
	default:
		return fmt.Errorf("%s must be %s or %s", EnvStockDeductOn, StockDeductOnOrderPlaced, StockDeductOnOrderDelivered)
	}
	return nil
}

type SchedulerConfig struct {
	Interval   time.Duration `envconfig:"AQUAFLOW_SCHEDULER_INTERVAL" default:"24h"`
	LockTTL    time.Duration `envconfig:"AQUAFLOW_SCHEDULER_LOCK_TTL" default:"1h"`
	BatchLimit int           `envconfig:"AQUAFLOW_SCHEDULER_BATCH_LIMIT" default:"500"`
	Timezone   string        `envconfig:"AQUAFLOW_SCHEDULER_TIMEZONE" default:"Asia/Manila"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AQUAFLOW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AQUAFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AQUAFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"AQUAFLOW_PUBSUB_NOTIFICATION_TOPIC" default:"af-notification-events"`
	NotificationSubscription string `envconfig:"AQUAFLOW_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	OrdersTopic              string `envconfig:"AQUAFLOW_PUBSUB_ORDERS_TOPIC" default:"af-order-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AQUAFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AQUAFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AQUAFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"AQUAFLOW_OUTBOX_RETENTION_DAYS" default:"30"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `envconfig:"AQUAFLOW_BREAKER_FAILURE_THRESHOLD" default:"5"`
	MaxRequests      uint32        `envconfig:"AQUAFLOW_BREAKER_MAX_REQUESTS" default:"1"`
	Interval         time.Duration `envconfig:"AQUAFLOW_BREAKER_INTERVAL" default:"1m"`
	Timeout          time.Duration `envconfig:"AQUAFLOW_BREAKER_TIMEOUT" default:"30s"`
}

type RateLimitConfig struct {
	OrderWindow time.Duration `envconfig:"AQUAFLOW_RATE_LIMIT_ORDER_WINDOW" default:"1m"`
	OrderLimit  int           `envconfig:"AQUAFLOW_RATE_LIMIT_ORDER_LIMIT" default:"20"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:aquaflow.db?_busy_timeout=5000"
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
