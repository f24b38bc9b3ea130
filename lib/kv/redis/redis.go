// Package redis implements kv.Backend on top of go-redis.
package redis

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dFacade/lib/config"
	"github.com/ValentinKolb/dFacade/lib/connector"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/kv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
	"time"
)

var (
	Logger = logger.GetLogger("kv/redis")

	// compare and delete in one server-side step
	deleteIfEqualsScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
)

// Backend is a kv.Backend backed by a go-redis client
type Backend struct {
	client *redis.Client
}

var _ kv.Backend = (*Backend)(nil)

// New wraps an existing client. The backend closes the client in Close.
func New(client *redis.Client) *Backend {
	return &Backend{client: client}
}

// Connect resolves the redis credentials from reg, connects to the logical database db
// and verifies the connection with a ping.
func Connect(ctx context.Context, reg *config.Registry, db int) (*Backend, error) {
	cred, err := reg.Resolve(database.BackendRedis)
	if err != nil {
		return nil, err
	}
	uri, err := connector.RedisURI(cred, db)
	if err != nil {
		return nil, err
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, database.WrapBackend("parse redis url", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, database.WrapBackend("connect to redis at "+cred.Addr(), err)
	}

	Logger.Infof("connected to redis at %s (db %d)", cred.Addr(), db)
	return New(client), nil
}

// Open connects to redis (see Connect) and returns a key-value facade on top of it.
func Open(ctx context.Context, reg *config.Registry, db int, opts ...kv.Option) (*kv.Store, error) {
	b, err := Connect(ctx, reg, db)
	if err != nil {
		return nil, err
	}
	return kv.New(b, opts...), nil
}

// Client returns the underlying go-redis client
func (b *Backend) Client() *redis.Client {
	return b.client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see kv.Backend)
// --------------------------------------------------------------------------

func (b *Backend) Type() database.BackendType {
	return database.BackendRedis
}

func (b *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *Backend) Set(ctx context.Context, key, value string) error {
	return b.client.Set(ctx, key, value, 0).Err()
}

func (b *Backend) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, key, value, ttl).Result()
}

func (b *Backend) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return b.client.Del(ctx, keys...).Result()
}

func (b *Backend) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	n, err := deleteIfEqualsScript.Run(ctx, b.client, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *Backend) Publish(ctx context.Context, channel, message string) error {
	return b.client.Publish(ctx, channel, message).Err()
}

func (b *Backend) OpenPubSub(ctx context.Context) (kv.PubSub, error) {
	return newPubSub(b.client.Subscribe(ctx)), nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Backend) Close() error {
	return b.client.Close()
}
