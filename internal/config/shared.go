package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Addr        string `mapstructure:"addr"`
		MetricsPort string `mapstructure:"metrics_port"`
		Mode        string `mapstructure:"mode"` // gin mode: debug or release
		TrustProxy  bool   `mapstructure:"trust_proxy"`
		RequestRate int    `mapstructure:"requests_per_minute"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // text or json
	} `mapstructure:"log"`
	Database struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`
	Storage struct {
		Provider      string `mapstructure:"provider"` // local or s3
		LocalStorage  string `mapstructure:"local_path"`
		KeyID         string `mapstructure:"key_id"`
		AppKey        string `mapstructure:"app_key"`
		Endpoint      string `mapstructure:"endpoint"`
		Region        string `mapstructure:"region"`
		BucketImages  string `mapstructure:"bucket_images"`
		PublicBaseURL string `mapstructure:"public_base_url"`
	} `mapstructure:"storage"`
	Auth struct {
		JWTSecret     string        `mapstructure:"jwt_secret"`
		TokenTTL      time.Duration `mapstructure:"token_ttl"`
		AdminUser     string        `mapstructure:"admin_user"`
		AdminPassword string        `mapstructure:"admin_password"`
	} `mapstructure:"auth"`
	RateLimit struct {
		Backend        string        `mapstructure:"backend"` // memory or badger
		BadgerPath     string        `mapstructure:"badger_path"`
		PlayWindow     time.Duration `mapstructure:"play_window"`
		LikeWindow     time.Duration `mapstructure:"like_window"`
		FeedbackWindow time.Duration `mapstructure:"feedback_window"`
	} `mapstructure:"ratelimit"`
	Geo struct {
		Endpoint string        `mapstructure:"endpoint"`
		Timeout  time.Duration `mapstructure:"timeout"`
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
		CacheMax int           `mapstructure:"cache_size"`
	} `mapstructure:"geo"`
	Quality struct {
		RecalcInterval time.Duration `mapstructure:"recalc_interval"`
		BatchSize      int           `mapstructure:"batch_size"`
	} `mapstructure:"quality"`
	Images struct {
		MaxBytes int64         `mapstructure:"max_bytes"`
		Size     int           `mapstructure:"size"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"images"`
	Services struct {
		RadioBrowserURL string `mapstructure:"radio_browser_url"`
		UserAgent       string `mapstructure:"user_agent"`
	} `mapstructure:"services"`
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Database.Host,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.Port,
		c.Database.SSLMode,
	)
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STATIONHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Register keys so env-only deployments unmarshal them
	for _, key := range []string{
		"server.addr", "server.metrics_port", "server.mode", "server.trust_proxy", "server.requests_per_minute",
		"log.level", "log.format",
		"database.host", "database.port", "database.user", "database.password", "database.name", "database.sslmode",
		"storage.provider", "storage.local_path", "storage.key_id", "storage.app_key", "storage.endpoint",
		"storage.region", "storage.bucket_images", "storage.public_base_url",
		"auth.jwt_secret", "auth.token_ttl", "auth.admin_user", "auth.admin_password",
		"ratelimit.backend", "ratelimit.badger_path", "ratelimit.play_window", "ratelimit.like_window", "ratelimit.feedback_window",
		"geo.endpoint", "geo.timeout", "geo.cache_ttl", "geo.cache_size",
		"quality.recalc_interval", "quality.batch_size",
		"images.max_bytes", "images.size", "images.timeout",
		"services.radio_browser_url", "services.user_agent",
	} {
		_ = v.BindEnv(key)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Println("Info: config.yaml not found, using Environment Variables only.")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required (STATIONHUB_AUTH_JWT_SECRET)")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8081")
	v.SetDefault("server.metrics_port", ":9091")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.requests_per_minute", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "stationhub")
	v.SetDefault("database.name", "stationhub")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_path", "./data")
	v.SetDefault("storage.bucket_images", "station-images")
	v.SetDefault("storage.public_base_url", "/images")

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.badger_path", "./data/ratelimit")
	v.SetDefault("ratelimit.play_window", 5*time.Minute)
	v.SetDefault("ratelimit.like_window", 24*time.Hour)
	v.SetDefault("ratelimit.feedback_window", time.Hour)

	v.SetDefault("geo.endpoint", "http://ip-api.com/json")
	v.SetDefault("geo.timeout", 3*time.Second)
	v.SetDefault("geo.cache_ttl", 6*time.Hour)
	v.SetDefault("geo.cache_size", 10000)

	v.SetDefault("quality.recalc_interval", 6*time.Hour)
	v.SetDefault("quality.batch_size", 200)

	v.SetDefault("images.max_bytes", 5<<20)
	v.SetDefault("images.size", 256)
	v.SetDefault("images.timeout", 10*time.Second)

	v.SetDefault("services.radio_browser_url", "https://de1.api.radio-browser.info")
	v.SetDefault("services.user_agent", "StationHub/1.0")
}
