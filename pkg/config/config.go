package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Midtrans MidtransConfig
	Payout   PayoutConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"JOKIPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"JOKIPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"JOKIPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"JOKIPAY_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"JOKIPAY_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"JOKIPAY_DB_DSN"`

	Host     string `envconfig:"JOKIPAY_DB_HOST"`
	Port     int    `envconfig:"JOKIPAY_DB_PORT" default:"5432"`
	User     string `envconfig:"JOKIPAY_DB_USER"`
	Password string `envconfig:"JOKIPAY_DB_PASSWORD"`
	Name     string `envconfig:"JOKIPAY_DB_NAME"`
	SSLMode  string `envconfig:"JOKIPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"JOKIPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"JOKIPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"JOKIPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"JOKIPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either JOKIPAY_DB_DSN or host/user/name settings are required")
	}
	userInfo := url.User(d.User)
	if d.Password != "" {
		userInfo = url.UserPassword(d.User, d.Password)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"JOKIPAY_REDIS_URL"`
	Address      string        `envconfig:"JOKIPAY_REDIS_ADDR"`
	Password     string        `envconfig:"JOKIPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"JOKIPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"JOKIPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"JOKIPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"JOKIPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"JOKIPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"JOKIPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"JOKIPAY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"JOKIPAY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"JOKIPAY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type MidtransConfig struct {
	ServerKey   string `envconfig:"JOKIPAY_MIDTRANS_SERVER_KEY" required:"true"`
	ClientKey   string `envconfig:"JOKIPAY_MIDTRANS_CLIENT_KEY"`
	SnapBaseURL string `envconfig:"JOKIPAY_MIDTRANS_SNAP_BASE_URL" default:"https://app.sandbox.midtrans.com"`
}

type PayoutConfig struct {
	// MinimumAmount is denominated in Rupiah.
	MinimumAmount int64 `envconfig:"JOKIPAY_PAYOUT_MINIMUM_AMOUNT" default:"50000"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"JOKIPAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SettlementTopic string `envconfig:"JOKIPAY_PUBSUB_SETTLEMENT_TOPIC" default:"payment-settlements"`
}

type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"JOKIPAY_OUTBOX_POLL_INTERVAL" default:"5s"`
	BatchSize    int           `envconfig:"JOKIPAY_OUTBOX_BATCH_SIZE" default:"50"`
}
