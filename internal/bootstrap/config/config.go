package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"partnermap/internal/bootstrap/logging"
	"partnermap/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Geocode  GeocodeConfig  `mapstructure:"geocode"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Import   ImportConfig   `mapstructure:"import"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type UploadsConfig struct {
	// Backend is "local" or "s3".
	Backend   string   `mapstructure:"backend"`
	Dir       string   `mapstructure:"dir"`
	URLPrefix string   `mapstructure:"url_prefix"`
	S3        S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type GeocodeConfig struct {
	HTTPTimeout time.Duration   `mapstructure:"http_timeout"`
	Nominatim   NominatimConfig `mapstructure:"nominatim"`
	Google      GoogleConfig    `mapstructure:"google"`
	Limiter     LimiterConfig   `mapstructure:"limiter"`
}

type NominatimConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type GoogleConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

type LimiterConfig struct {
	// Backend is "memory" for one process or "redis" to share spacing across instances.
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	// Backend is "memory" or "nats".
	Backend    string        `mapstructure:"backend"`
	Size       int           `mapstructure:"size"`
	NATSURL    string        `mapstructure:"nats_url"`
	Durable    string        `mapstructure:"durable"`
	AckWait    time.Duration `mapstructure:"ack_wait"`
	MaxDeliver int           `mapstructure:"max_deliver"`
	Heartbeat  time.Duration `mapstructure:"heartbeat"`

	// RedeliveryDelay is how long a job that could not start waits before
	// it is delivered again.
	RedeliveryDelay time.Duration `mapstructure:"redelivery_delay"`
}

type ImportConfig struct {
	AliasesFile string `mapstructure:"aliases_file"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PM")
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
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
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
		slog.String("uploads_backend", cfg.Uploads.Backend),
		slog.String("queue_backend", cfg.Queue.Backend),
		slog.String("limiter_backend", cfg.Geocode.Limiter.Backend),
		slog.Bool("google_enabled", cfg.Geocode.Google.APIKey != ""),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Uploads.Backend {
	case "local":
		if c.Uploads.Dir == "" {
			return errors.New("uploads.dir is required for the local backend")
		}
	case "s3":
		if c.Uploads.S3.Bucket == "" {
			return errors.New("uploads.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported uploads.backend %q", c.Uploads.Backend)
	}
	switch c.Queue.Backend {
	case "memory", "nats":
	default:
		return fmt.Errorf("unsupported queue.backend %q", c.Queue.Backend)
	}
	switch c.Geocode.Limiter.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported geocode.limiter.backend %q", c.Geocode.Limiter.Backend)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "partnermap")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/partnermap.sqlite")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("uploads.backend", "local")
	v.SetDefault("uploads.dir", "public/uploads/partner-imports")
	v.SetDefault("uploads.url_prefix", "/uploads/partner-imports")
	v.SetDefault("uploads.s3.region", "us-east-1")
	v.SetDefault("uploads.s3.endpoint", "")
	v.SetDefault("uploads.s3.bucket", "")
	v.SetDefault("uploads.s3.prefix", "partner-imports")
	v.SetDefault("uploads.s3.access_key", "")
	v.SetDefault("uploads.s3.secret_key", "")
	v.SetDefault("uploads.s3.use_ssl", true)

	v.SetDefault("geocode.http_timeout", time.Duration(0))
	v.SetDefault("geocode.nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.nominatim.user_agent", "go-exchange-client (dev)")
	v.SetDefault("geocode.nominatim.min_interval", 1100*time.Millisecond)
	v.SetDefault("geocode.google.base_url", "https://maps.googleapis.com")
	v.SetDefault("geocode.google.api_key", "")
	v.SetDefault("geocode.google.min_interval", 200*time.Millisecond)
	v.SetDefault("geocode.limiter.backend", "memory")
	v.SetDefault("geocode.limiter.redis.addr", "localhost:6379")
	v.SetDefault("geocode.limiter.redis.password", "")
	v.SetDefault("geocode.limiter.redis.db", 0)

	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.size", 64)
	v.SetDefault("queue.nats_url", "nats://127.0.0.1:4222")
	v.SetDefault("queue.durable", "partnermap-worker")
	v.SetDefault("queue.ack_wait", time.Minute)
	v.SetDefault("queue.max_deliver", 5)
	v.SetDefault("queue.heartbeat", 20*time.Second)
	v.SetDefault("queue.redelivery_delay", time.Second)

	v.SetDefault("import.aliases_file", "")
}
