package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxMultipartMemory int64
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AppName         string
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint  string
	PublicURL string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

type SecurityConfig struct {
	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration
	BcryptCost         int
}

type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool
	SameSite string
}

type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

type UploadConfig struct {
	MaxBytes int64
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	MaxDeliveries int
}

type JobsConfig struct {
	SweepSchedule string
	SweepGrace    time.Duration
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Cookie           CookieConfig
	RateLimit        RateLimitConfig
	Upload           UploadConfig
	Queue            QueueConfig
	Jobs             JobsConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

var ErrMissingTokenSettings = errors.New("token secrets and expiries must be configured")

// Load reads the API configuration and fails when token settings are absent.
func Load() (*AppConfig, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker reads the same configuration for the cleanup worker, which never
// signs or verifies tokens.
func LoadWorker() (*AppConfig, error) {
	return load()
}

func load() (*AppConfig, error) {
	// A local .env only fills variables the environment does not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("VIDTUBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports settings the process cannot start without.
func (c *AppConfig) Validate() error {
	s := c.Security
	if s.AccessTokenSecret == "" || s.RefreshTokenSecret == "" || s.AccessTokenTTL <= 0 || s.RefreshTokenTTL <= 0 {
		return ErrMissingTokenSettings
	}
	if s.AccessTokenSecret == s.RefreshTokenSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8000)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "30s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.maxmultipartmemory", 8<<20)

	v.SetDefault("postgres.maxopen", 20)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.connmaxidletime", "5m")
	v.SetDefault("postgres.appname", "vidtube")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucket", "vidtube-images")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("security.accesstokenttl", "1h")
	v.SetDefault("security.refreshtokenttl", "240h") // 10 days
	v.SetDefault("security.bcryptcost", 10)

	v.SetDefault("cookie.path", "/")
	v.SetDefault("cookie.secure", true)
	v.SetDefault("cookie.samesite", "lax")

	v.SetDefault("ratelimit.limit", 20)
	v.SetDefault("ratelimit.window", "1m")

	v.SetDefault("upload.maxbytes", 5<<20)

	v.SetDefault("queue.stream", "media:cleanup")
	v.SetDefault("queue.group", "media-janitors")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")
	v.SetDefault("queue.maxdeliveries", 5)

	v.SetDefault("jobs.sweepschedule", "0 30 3 * * *")
	v.SetDefault("jobs.sweepgrace", "24h")

	v.SetDefault("logging.level", "info")
}

// AutomaticEnv only resolves keys viper already knows about; secrets have no
// default so they are bound explicitly.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"postgres.dsn",
		"redis.password",
		"storage.endpoint",
		"storage.publicurl",
		"storage.accesskey",
		"storage.secretkey",
		"security.accesstokensecret",
		"security.refreshtokensecret",
		"cookie.domain",
		"allowcorsorigins",
	} {
		_ = v.BindEnv(key)
	}
}
