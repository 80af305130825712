// Package config loads cookbook settings from defaults, an optional config
// file, a .env file and COOKBOOK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/arthur-debert/cookbook/odm"
	"github.com/arthur-debert/cookbook/storage"
)

// EnvPrefix prefixes every environment variable read by the configuration
const EnvPrefix = "COOKBOOK"

// Config holds application configuration
type Config struct {
	Remote RemoteConfig `mapstructure:"remote"`
	Drafts DraftsConfig `mapstructure:"drafts"`
	GitHub GitHubConfig `mapstructure:"github"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Sqlite SqliteConfig `mapstructure:"sqlite"`
	Mongo  MongoConfig  `mapstructure:"mongo"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type RemoteConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type DraftsConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
}

type GitHubConfig struct {
	Owner  string `mapstructure:"owner"`
	Repo   string `mapstructure:"repo"`
	Branch string `mapstructure:"branch"`
	Path   string `mapstructure:"path"`
	Token  string `mapstructure:"token"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	Prefix   string `mapstructure:"prefix"`
}

type CacheConfig struct {
	Policy string `mapstructure:"policy"`
}

type ServerConfig struct {
	Addr      string          `mapstructure:"addr"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures the per-client token bucket. With Redis set,
// a fixed-window counter in redis.addr is shared by every server instance.
type RateLimitConfig struct {
	RPS    float64       `mapstructure:"rps"`
	Burst  int           `mapstructure:"burst"`
	Redis  bool          `mapstructure:"redis"`
	Window time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Stderr bool   `mapstructure:"stderr"`
}

// dataDir returns the XDG data directory for cookbook
func dataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".local", "share")
		} else {
			base = os.TempDir()
		}
	}
	return filepath.Join(base, "cookbook")
}

// New returns a viper instance with defaults, config file discovery and
// environment bindings set up. Callers may bind flags on it before Load.
func New() *viper.Viper {
	v := viper.New()

	// COOKBOOK_CONFIG names a config file explicitly
	if configFile := os.Getenv(EnvPrefix + "_CONFIG"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cookbook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cookbook")
		v.AddConfigPath("/etc/cookbook")
	}

	v.SetEnvPrefix(EnvPrefix)
	// remote.backend -> COOKBOOK_REMOTE_BACKEND, rate-limit -> RATE_LIMIT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	dir := dataDir()
	v.SetDefault("remote.backend", storage.BackendFile)
	v.SetDefault("remote.dir", filepath.Join(dir, "remote"))
	v.SetDefault("drafts.backend", storage.BackendFile)
	v.SetDefault("drafts.dir", filepath.Join(dir, "drafts"))
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.branch", "")
	v.SetDefault("github.path", "data")
	v.SetDefault("github.token", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "cookbook:")
	v.SetDefault("sqlite.path", filepath.Join(dir, "cookbook.db"))
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "cookbook")
	v.SetDefault("mongo.prefix", "")
	v.SetDefault("cache.policy", "remote")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit.rps", 20.0)
	v.SetDefault("server.rate_limit.burst", 40)
	v.SetDefault("server.rate_limit.redis", false)
	v.SetDefault("server.rate_limit.window", time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stderr", false)

	return v
}

// Load reads envFile (if present) into the environment, then the config
// file (if found), and decodes and validates the result
func Load(v *viper.Viper, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	remoteBackends = []string{storage.BackendMemory, storage.BackendFile, storage.BackendGitHub, storage.BackendRedis, storage.BackendSqlite, storage.BackendMongo}
	draftBackends  = []string{storage.BackendMemory, storage.BackendFile, storage.BackendRedis, storage.BackendSqlite, storage.BackendMongo, storage.BackendRemote}
)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate rejects unknown backends and missing settings the selected
// backends require
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.Remote.Backend, remoteBackends) {
		errs = append(errs, fmt.Errorf("remote.backend: unknown backend %q (supported: %s)", c.Remote.Backend, strings.Join(remoteBackends, ", ")))
	}
	if !oneOf(c.Drafts.Backend, draftBackends) {
		errs = append(errs, fmt.Errorf("drafts.backend: unknown backend %q (supported: %s)", c.Drafts.Backend, strings.Join(draftBackends, ", ")))
	}

	uses := func(backend string) bool {
		return c.Remote.Backend == backend || c.Drafts.Backend == backend
	}
	if c.Remote.Backend == storage.BackendFile && c.Remote.Dir == "" {
		errs = append(errs, errors.New("remote.dir is required by the file backend"))
	}
	if c.Drafts.Backend == storage.BackendFile && c.Drafts.Dir == "" {
		errs = append(errs, errors.New("drafts.dir is required by the file backend"))
	}
	if c.Remote.Backend == storage.BackendGitHub && (c.GitHub.Owner == "" || c.GitHub.Repo == "") {
		errs = append(errs, errors.New("github.owner and github.repo are required by the github backend"))
	}
	if (uses(storage.BackendRedis) || c.Server.RateLimit.Redis) && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required by the redis backend"))
	}
	if uses(storage.BackendSqlite) && c.Sqlite.Path == "" {
		errs = append(errs, errors.New("sqlite.path is required by the sqlite backend"))
	}
	if uses(storage.BackendMongo) && (c.Mongo.URI == "" || c.Mongo.Database == "") {
		errs = append(errs, errors.New("mongo.uri and mongo.database are required by the mongo backend"))
	}

	if _, err := odm.ParseCachePolicy(c.Cache.Policy); err != nil {
		errs = append(errs, fmt.Errorf("cache.policy: %w", err))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Server.RateLimit.RPS < 0 || c.Server.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("server.rate_limit: rps and burst must not be negative"))
	}

	return errors.Join(errs...)
}

// LogLevel parses log.level
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// CachePolicy parses cache.policy
func (c *Config) CachePolicy() odm.CachePolicy {
	policy, _ := odm.ParseCachePolicy(c.Cache.Policy)
	return policy
}

// Storage returns the backend selection for storage.Open
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Remote:    c.Remote.Backend,
		Drafts:    c.Drafts.Backend,
		RemoteDir: c.Remote.Dir,
		DraftsDir: c.Drafts.Dir,
		GitHub: storage.GitHubConfig{
			Owner:  c.GitHub.Owner,
			Repo:   c.GitHub.Repo,
			Branch: c.GitHub.Branch,
			Dir:    c.GitHub.Path,
		},
		GitHubToken:   c.GitHub.Token,
		RedisAddr:     c.Redis.Addr,
		RedisPassword: c.Redis.Password,
		RedisDB:       c.Redis.DB,
		RedisPrefix:   c.Redis.Prefix,
		SqlitePath:    c.Sqlite.Path,
		MongoURI:      c.Mongo.URI,
		MongoDatabase: c.Mongo.Database,
		MongoPrefix:   c.Mongo.Prefix,
	}
}
