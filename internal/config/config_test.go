package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/cookbook/odm"
	"github.com/arthur-debert/cookbook/storage"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("COOKBOOK_CONFIG", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Remote.Backend != storage.BackendFile {
		t.Errorf("remote backend = %q, want file", cfg.Remote.Backend)
	}
	if want := filepath.Join(dir, "cookbook", "remote"); cfg.Remote.Dir != want {
		t.Errorf("remote dir = %q, want %q", cfg.Remote.Dir, want)
	}
	if want := filepath.Join(dir, "cookbook", "drafts"); cfg.Drafts.Dir != want {
		t.Errorf("drafts dir = %q, want %q", cfg.Drafts.Dir, want)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.RateLimit.RPS != 20 || cfg.Server.RateLimit.Burst != 40 || cfg.Server.RateLimit.Window != time.Second {
		t.Errorf("rate limit = %+v", cfg.Server.RateLimit)
	}
	if cfg.CachePolicy() != odm.CacheRemote {
		t.Errorf("cache policy = %v, want CacheRemote", cfg.CachePolicy())
	}
	level, err := cfg.LogLevel()
	if err != nil || level != slog.LevelInfo {
		t.Errorf("log level = %v, %v", level, err)
	}
}

func TestLoadEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("COOKBOOK_REMOTE_BACKEND", "github")
	t.Setenv("COOKBOOK_GITHUB_OWNER", "alice")
	t.Setenv("COOKBOOK_GITHUB_REPO", "recipes")
	t.Setenv("COOKBOOK_DRAFTS_BACKEND", "remote")
	t.Setenv("COOKBOOK_SERVER_RATE_LIMIT_BURST", "5")
	t.Setenv("COOKBOOK_SERVER_RATE_LIMIT_WINDOW", "1m")
	t.Setenv("COOKBOOK_LOG_LEVEL", "debug")

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Remote.Backend != "github" || cfg.Drafts.Backend != "remote" {
		t.Errorf("backends = %q/%q", cfg.Remote.Backend, cfg.Drafts.Backend)
	}
	if cfg.GitHub.Owner != "alice" || cfg.GitHub.Repo != "recipes" {
		t.Errorf("github = %+v", cfg.GitHub)
	}
	if cfg.Server.RateLimit.Burst != 5 {
		t.Errorf("burst = %d, want 5", cfg.Server.RateLimit.Burst)
	}
	if cfg.Server.RateLimit.Window != time.Minute {
		t.Errorf("window = %v, want 1m", cfg.Server.RateLimit.Window)
	}
	if level, _ := cfg.LogLevel(); level != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	content := `
remote:
  backend: sqlite
drafts:
  backend: sqlite
sqlite:
  path: /tmp/cookbook-test.db
cache:
  policy: all
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("COOKBOOK_CONFIG", path)

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Remote.Backend != "sqlite" || cfg.Sqlite.Path != "/tmp/cookbook-test.db" {
		t.Errorf("config file not applied: %+v", cfg)
	}
	if cfg.CachePolicy() != odm.CacheAll {
		t.Errorf("cache policy = %v, want CacheAll", cfg.CachePolicy())
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	// godotenv does not override variables already set
	t.Setenv("COOKBOOK_CACHE_POLICY", "")
	os.Unsetenv("COOKBOOK_CACHE_POLICY")

	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("COOKBOOK_CACHE_POLICY=all\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(New(), envFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CachePolicy() != odm.CacheAll {
		t.Errorf("cache policy = %v, want CacheAll", cfg.CachePolicy())
	}

	// A missing .env is not an error
	if _, err := Load(New(), filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Remote: RemoteConfig{Backend: "file", Dir: "/data/remote"},
			Drafts: DraftsConfig{Backend: "file", Dir: "/data/drafts"},
			Cache:  CacheConfig{Policy: "remote"},
			Log:    LogConfig{Level: "info"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown remote", func(c *Config) { c.Remote.Backend = "s3" }, "remote.backend"},
		{"github drafts", func(c *Config) { c.Drafts.Backend = "github" }, "drafts.backend"},
		{"github without repo", func(c *Config) {
			c.Remote.Backend = "github"
			c.GitHub.Owner = "alice"
		}, "github.owner and github.repo"},
		{"file without dir", func(c *Config) { c.Remote.Dir = "" }, "remote.dir"},
		{"redis without addr", func(c *Config) { c.Drafts.Backend = "redis" }, "redis.addr"},
		{"redis limiter without addr", func(c *Config) { c.Server.RateLimit.Redis = true }, "redis.addr"},
		{"sqlite without path", func(c *Config) { c.Remote.Backend = "sqlite" }, "sqlite.path"},
		{"mongo without uri", func(c *Config) { c.Drafts.Backend = "mongo" }, "mongo.uri"},
		{"bad cache policy", func(c *Config) { c.Cache.Policy = "sometimes" }, "cache.policy"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative rate", func(c *Config) { c.Server.RateLimit.RPS = -1 }, "server.rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestStorage(t *testing.T) {
	cfg := Config{
		Remote: RemoteConfig{Backend: "github", Dir: "/r"},
		Drafts: DraftsConfig{Backend: "redis", Dir: "/d"},
		GitHub: GitHubConfig{Owner: "o", Repo: "r", Branch: "main", Path: "data", Token: "t"},
		Redis:  RedisConfig{Addr: "localhost:6379", Password: "p", DB: 2, Prefix: "cb:"},
		Sqlite: SqliteConfig{Path: "/db"},
		Mongo:  MongoConfig{URI: "mongodb://m", Database: "cookbook", Prefix: "x_"},
	}

	want := storage.Config{
		Remote:        "github",
		Drafts:        "redis",
		RemoteDir:     "/r",
		DraftsDir:     "/d",
		GitHub:        storage.GitHubConfig{Owner: "o", Repo: "r", Branch: "main", Dir: "data"},
		GitHubToken:   "t",
		RedisAddr:     "localhost:6379",
		RedisPassword: "p",
		RedisDB:       2,
		RedisPrefix:   "cb:",
		SqlitePath:    "/db",
		MongoURI:      "mongodb://m",
		MongoDatabase: "cookbook",
		MongoPrefix:   "x_",
	}
	if diff := cmp.Diff(want, cfg.Storage()); diff != "" {
		t.Errorf("Storage() mismatch (-want +got):\n%s", diff)
	}
}
