package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendGitHub = "github"
	BackendRedis  = "redis"
	BackendSqlite = "sqlite"
	BackendMongo  = "mongo"
	BackendRemote = "remote" // drafts only: keep drafts as blobs in the remote
)

// Config selects and configures the remote and draft backends
type Config struct {
	Remote string
	Drafts string

	RemoteDir string
	DraftsDir string

	GitHub      GitHubConfig
	GitHubToken string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	SqlitePath string

	MongoURI      string
	MongoDatabase string
	MongoPrefix   string
}

// Backends is an opened pair of storage collaborators
type Backends struct {
	Remote Remote
	Drafts Drafts

	closers []func() error
}

// Close releases every client opened for the backends
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// opener memoizes clients so a remote and a draft backend of the same kind
// share one connection
type opener struct {
	cfg      Config
	backends *Backends

	redis  *RedisStore
	sqlite *SqliteStore
	mongo  *MongoStore
}

// Open creates the remote and draft stores named in cfg.
//
// Supported remote backends: memory, file, github, redis, sqlite, mongo.
// Supported draft backends: the same minus github, plus "remote".
func Open(ctx context.Context, cfg Config) (*Backends, error) {
	o := &opener{cfg: cfg, backends: &Backends{}}

	remote, err := o.remote(ctx)
	if err != nil {
		_ = o.backends.Close()
		return nil, err
	}
	drafts, err := o.drafts(ctx, remote)
	if err != nil {
		_ = o.backends.Close()
		return nil, err
	}

	o.backends.Remote = InstrumentRemote(remote, cfg.Remote)
	o.backends.Drafts = InstrumentDrafts(drafts, cfg.Drafts)
	return o.backends, nil
}

func (o *opener) remote(ctx context.Context) (Remote, error) {
	switch o.cfg.Remote {
	case BackendMemory, "":
		return NewMemoryRemote(), nil
	case BackendFile:
		return NewFileStore(o.cfg.RemoteDir)
	case BackendGitHub:
		if o.cfg.GitHub.Owner == "" || o.cfg.GitHub.Repo == "" {
			return nil, fmt.Errorf("github backend requires owner and repo")
		}
		return NewGitHubStore(NewGitHubClient(o.cfg.GitHubToken), o.cfg.GitHub), nil
	case BackendRedis:
		return o.redisStore(ctx)
	case BackendSqlite:
		return o.sqliteStore()
	case BackendMongo:
		return o.mongoStore(ctx)
	default:
		return nil, fmt.Errorf("unknown remote backend: %q (supported: memory, file, github, redis, sqlite, mongo)", o.cfg.Remote)
	}
}

func (o *opener) drafts(ctx context.Context, remote Remote) (Drafts, error) {
	switch o.cfg.Drafts {
	case BackendMemory, "":
		return NewMemoryDrafts(), nil
	case BackendFile:
		return NewFileStore(o.cfg.DraftsDir)
	case BackendRedis:
		return o.redisStore(ctx)
	case BackendSqlite:
		return o.sqliteStore()
	case BackendMongo:
		return o.mongoStore(ctx)
	case BackendRemote:
		return NewRemoteDrafts(remote), nil
	default:
		return nil, fmt.Errorf("unknown drafts backend: %q (supported: memory, file, redis, sqlite, mongo, remote)", o.cfg.Drafts)
	}
}

func (o *opener) redisStore(ctx context.Context) (*RedisStore, error) {
	if o.redis != nil {
		return o.redis, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     o.cfg.RedisAddr,
		Password: o.cfg.RedisPassword,
		DB:       o.cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.cfg.RedisAddr, err)
	}
	o.backends.closers = append(o.backends.closers, client.Close)
	o.redis = NewRedisStore(client, o.cfg.RedisPrefix)
	return o.redis, nil
}

func (o *opener) sqliteStore() (*SqliteStore, error) {
	if o.sqlite != nil {
		return o.sqlite, nil
	}
	s, err := NewSqliteStore(o.cfg.SqlitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", o.cfg.SqlitePath, err)
	}
	o.backends.closers = append(o.backends.closers, s.Close)
	o.sqlite = s
	return s, nil
}

func (o *opener) mongoStore(ctx context.Context) (*MongoStore, error) {
	if o.mongo != nil {
		return o.mongo, nil
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(o.cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	o.backends.closers = append(o.backends.closers, func() error {
		return client.Disconnect(context.Background())
	})
	o.mongo = NewMongoStore(client.Database(o.cfg.MongoDatabase), o.cfg.MongoPrefix)
	return o.mongo, nil
}
