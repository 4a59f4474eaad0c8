package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "bracket.yaml"

type Config struct {
	Port        int      `yaml:"port"`
	DBDriver    string   `yaml:"dbDriver"`
	DatabaseURL string   `yaml:"databaseUrl"`
	LogLevel    string   `yaml:"logLevel"`
	CORSOrigins []string `yaml:"corsOrigins"`

	Feed     FeedConfig     `yaml:"feed"`
	Redis    RedisConfig    `yaml:"redis"`
	Operator OperatorConfig `yaml:"operator"`
	Auth     AuthConfig     `yaml:"auth"`
	Publish  PublishConfig  `yaml:"publish"`
}

type FeedConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	Window        int           `yaml:"window"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cacheTtl"`
	CacheSize     int           `yaml:"cacheSize"`
}

// RedisConfig enables the shared history cache when Host is set.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type OperatorConfig struct {
	Token string   `yaml:"token"`
	IDs   []string `yaml:"ids"`
}

type AuthConfig struct {
	DiscordKey         string `yaml:"discordKey"`
	DiscordSecret      string `yaml:"discordSecret"`
	DiscordCallbackURL string `yaml:"discordCallbackUrl"`
	GoogleKey          string `yaml:"googleKey"`
	GoogleSecret       string `yaml:"googleSecret"`
	GoogleCallbackURL  string `yaml:"googleCallbackUrl"`
}

// PublishConfig points at an S3 compatible bucket (Cloudflare R2).
type PublishConfig struct {
	AccountID       string `yaml:"accountId"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	Bucket          string `yaml:"bucket"`
	PublicBaseURL   string `yaml:"publicBaseUrl"`
}

func (p PublishConfig) Enabled() bool {
	return p.Bucket != "" && p.AccessKeyID != ""
}

func Default() *Config {
	return &Config{
		Port:        8080,
		DBDriver:    "sqlite3",
		DatabaseURL: "dbc_bracket.db?_journal_mode=WAL",
		LogLevel:    "info",
		Feed: FeedConfig{
			BaseURL:       "https://api.brawlstars.com/v1",
			Timeout:       10 * time.Second,
			Window:        25,
			RatePerSecond: 5,
			Burst:         5,
			CacheTTL:      30 * time.Second,
			CacheSize:     512,
		},
		Redis: RedisConfig{Port: 6379},
	}
}

// Load builds the config from defaults, then the optional YAML file named by
// BRACKET_CONFIG, then environment variables. A .env file is loaded first
// when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path := os.Getenv("BRACKET_CONFIG")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if err := cfg.loadFile(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "Error reading config file [%s]", path)
	}
	if err := yaml.Unmarshal(bytes, c); err != nil {
		return errors.Wrapf(err, "Error parsing config file [%s]", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setList(&c.CORSOrigins, "CORS_ORIGINS")

	setString(&c.Feed.BaseURL, "FEED_BASE_URL")
	setString(&c.Feed.Token, "FEED_TOKEN")

	setString(&c.Redis.Host, "REDIS_HOST")
	setString(&c.Redis.Password, "REDIS_PW")

	setString(&c.Operator.Token, "OPERATOR_TOKEN")
	setList(&c.Operator.IDs, "OPERATOR_IDS")

	setString(&c.Auth.DiscordKey, "DISCORD_KEY")
	setString(&c.Auth.DiscordSecret, "DISCORD_SECRET")
	setString(&c.Auth.DiscordCallbackURL, "DISCORD_CALLBACK_URL")
	setString(&c.Auth.GoogleKey, "GOOGLE_KEY")
	setString(&c.Auth.GoogleSecret, "GOOGLE_SECRET")
	setString(&c.Auth.GoogleCallbackURL, "GOOGLE_CALLBACK_URL")

	setString(&c.Publish.AccountID, "R2_ACCOUNT_ID")
	setString(&c.Publish.AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&c.Publish.SecretAccessKey, "R2_SECRET_ACCESS_KEY")
	setString(&c.Publish.Bucket, "R2_BUCKET")
	setString(&c.Publish.PublicBaseURL, "R2_PUBLIC_BASE_URL")

	for _, err := range []error{
		setInt(&c.Port, "PORT"),
		setInt(&c.Feed.Window, "FEED_WINDOW"),
		setInt(&c.Feed.Burst, "FEED_BURST"),
		setInt(&c.Feed.CacheSize, "FEED_CACHE_SIZE"),
		setInt(&c.Redis.Port, "REDIS_PORT"),
		setInt(&c.Redis.DB, "REDIS_DB"),
		setFloat(&c.Feed.RatePerSecond, "FEED_RATE_PER_SEC"),
		setDuration(&c.Feed.Timeout, "FEED_TIMEOUT"),
		setDuration(&c.Feed.CacheTTL, "FEED_CACHE_TTL"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return errors.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.Feed.Timeout <= 0 {
		return errors.Errorf("FEED_TIMEOUT must be positive, got %s", c.Feed.Timeout)
	}
	if c.Feed.Window <= 0 {
		return errors.Errorf("FEED_WINDOW must be positive, got %d", c.Feed.Window)
	}
	if c.Feed.CacheSize <= 0 {
		return errors.Errorf("FEED_CACHE_SIZE must be positive, got %d", c.Feed.CacheSize)
	}
	if c.Feed.RatePerSecond < 0 {
		return errors.Errorf("FEED_RATE_PER_SEC cannot be negative, got %v", c.Feed.RatePerSecond)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dst = items
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return errors.Wrapf(err, "invalid %s", key)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", key)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return errors.Wrapf(err, "invalid %s", key)
	}
	*dst = d
	return nil
}
