package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix  = ""
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Catalog CatalogConfig
	Cron    CronConfig
	Notify  NotifyConfig
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
	Env          string `envconfig:"STAGETRAK_APP_ENV" required:"true"`
	Port         string `envconfig:"STAGETRAK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STAGETRAK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STAGETRAK_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"STAGETRAK_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STAGETRAK_DB_DSN"`
	Driver string `envconfig:"STAGETRAK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STAGETRAK_DB_HOST"`
	Port     int    `envconfig:"STAGETRAK_DB_PORT" default:"5432"`
	User     string `envconfig:"STAGETRAK_DB_USER"`
	Password string `envconfig:"STAGETRAK_DB_PASSWORD"`
	Name     string `envconfig:"STAGETRAK_DB_NAME"`
	SSLMode  string `envconfig:"STAGETRAK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STAGETRAK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STAGETRAK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STAGETRAK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STAGETRAK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if strings.TrimSpace(d.DSN) != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("db config requires either STAGETRAK_DB_DSN or host/user/name")
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
	URL          string        `envconfig:"STAGETRAK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STAGETRAK_REDIS_ADDR"`
	Password     string        `envconfig:"STAGETRAK_REDIS_PASSWORD"`
	DB           int           `envconfig:"STAGETRAK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STAGETRAK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STAGETRAK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STAGETRAK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STAGETRAK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STAGETRAK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STAGETRAK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STAGETRAK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STAGETRAK_JWT_EXPIRATION_MINUTES" default:"480"`
}

// CatalogConfig points at the fixed, ordered stage sequence. The catalog is
// loaded once at boot and treated as read-only configuration afterwards.
type CatalogConfig struct {
	Stages string `envconfig:"STAGETRAK_STAGE_CATALOG" default:"CUT:Cutting,SEW:Sewing,ASM:Assembly,FIN:Finishing,PCK:Packing"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"STAGETRAK_CRON_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"STAGETRAK_CRON_LOCK_TTL" default:"20m"`
}

type NotifyConfig struct {
	StreamHeartbeat time.Duration `envconfig:"STAGETRAK_NOTIFY_STREAM_HEARTBEAT" default:"25s"`
}
