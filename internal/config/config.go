package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full environment-sourced configuration surface. Every value
// can be overridden with a PARKIT_-prefixed variable, e.g.
// PARKIT_AUTH_ACCESS_SECRET or PARKIT_RATELIMIT_AUTH_MAX.
type Config struct {
	App       App       `mapstructure:"app"`
	Server    Server    `mapstructure:"server"`
	DB        DB        `mapstructure:"db"`
	Auth      Auth      `mapstructure:"auth"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	Log       Log       `mapstructure:"log"`
}

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
}

type DB struct {
	DSN           string `mapstructure:"dsn"`
	MaxOpenConns  int    `mapstructure:"max_open_conns"`
	MaxIdleConns  int    `mapstructure:"max_idle_conns"`
	Migrate       bool   `mapstructure:"migrate"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type Auth struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	ResetSecret   string        `mapstructure:"reset_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	ResetTTL      time.Duration `mapstructure:"reset_ttl"`
	Issuer        string        `mapstructure:"issuer"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
}

type RateLimit struct {
	AuthWindow time.Duration `mapstructure:"auth_window"`
	AuthMax    int           `mapstructure:"auth_max"`
	APIWindow  time.Duration `mapstructure:"api_window"`
	APIMax     int           `mapstructure:"api_max"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads an optional YAML file and the environment. Signing secrets have
// no defaults on purpose: a service with guessable secrets must not start.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig()
	}

	v.SetDefault("app.name", "parkit-auth")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "0.1.0")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.graceful_timeout", "10s")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.migrate", false)
	v.SetDefault("db.migrations_dir", "migrations")

	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "336h")
	v.SetDefault("auth.reset_ttl", "30m")
	v.SetDefault("auth.issuer", "parkit")
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("ratelimit.auth_window", "15m")
	v.SetDefault("ratelimit.auth_max", 5)
	v.SetDefault("ratelimit.api_window", "1m")
	v.SetDefault("ratelimit.api_max", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvPrefix("PARKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only materializes keys viper already knows about. The signing
	// secrets have no defaults, so bind them explicitly or env-only
	// deployments could never provide them.
	for _, key := range []string{"auth.access_secret", "auth.refresh_secret", "auth.reset_secret"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Auth.AccessSecret == "" || cfg.Auth.RefreshSecret == "" {
		return nil, errors.New("config: auth.access_secret and auth.refresh_secret are required")
	}
	if cfg.Auth.AccessSecret == cfg.Auth.RefreshSecret {
		return nil, errors.New("config: access and refresh secrets must differ")
	}
	return &cfg, nil
}
