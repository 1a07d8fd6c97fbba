package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"pdmrelease/internal/bootstrap/logging"
	"pdmrelease/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Workdir  WorkdirConfig  `mapstructure:"workdir"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Package  PackageConfig  `mapstructure:"package"`
	Branding BrandingConfig `mapstructure:"branding"`
	Lock     LockConfig     `mapstructure:"lock"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	S3       S3Config       `mapstructure:"s3"`
	NATS     NATSConfig     `mapstructure:"nats"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// WorkdirConfig points at the vault root that line item source paths are
// relative to.
type WorkdirConfig struct {
	Root string `mapstructure:"root"`
}

type BridgeConfig struct {
	Mode          string        `mapstructure:"mode"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	Profile       string        `mapstructure:"profile"`
}

type PackageConfig struct {
	OutputRoot string `mapstructure:"output_root"`
}

type BrandingConfig struct {
	CompanyName string `mapstructure:"company_name"`
	Address     string `mapstructure:"address"`
	Email       string `mapstructure:"email"`
	Phone       string `mapstructure:"phone"`
}

type LockConfig struct {
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	QueueName string `mapstructure:"queue_name"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	// A local .env only seeds the process environment; real env vars win.
	if err := godotenv.Load(); err == nil {
		logging.Info(logCtx, "loaded .env file")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PDM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env", slog.String("config_file", configFile))
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("bridge_mode", cfg.Bridge.Mode),
		slog.String("lock_backend", cfg.Lock.Backend),
	)

	return cfg, nil
}

// Validate checks fields that have no usable default. Missing workdir or bridge
// settings are not fatal here: generation reports them as service unavailable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}

	switch strings.ToLower(c.Lock.Backend) {
	case "memory", "sqlite", "redis":
	default:
		return errors.New("lock.backend must be one of memory|sqlite|redis")
	}

	switch strings.ToLower(c.Bridge.Mode) {
	case "", "none", "http", "exec":
	default:
		return errors.New("bridge.mode must be one of none|http|exec")
	}

	if strings.EqualFold(c.Lock.Backend, "redis") || c.Queue.Enabled {
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return errors.New("redis.addr is required for redis lock or queue")
		}
	}
	if c.S3.Enabled && strings.TrimSpace(c.S3.Bucket) == "" {
		return errors.New("s3.bucket is required when s3.enabled is true")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pdmrelease")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".pdm/state/pdm.sqlite")
	v.SetDefault("workdir.root", "")
	v.SetDefault("bridge.mode", "none")
	v.SetDefault("bridge.timeout", 5*time.Minute)
	v.SetDefault("bridge.rate_per_second", 0)
	v.SetDefault("bridge.burst", 1)
	v.SetDefault("bridge.profile", "bridge.toml")
	v.SetDefault("package.output_root", ".pdm/releases")
	v.SetDefault("lock.backend", "sqlite")
	v.SetDefault("lock.ttl", 30*time.Minute)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.queue_name", "release")
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.prefix", "rfq-releases")
	v.SetDefault("nats.subject_prefix", "pdm.rfq")
	v.SetDefault("http.addr", ":8090")
}
