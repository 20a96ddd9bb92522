package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/aisuru/companion/backend/internal/model/chat"
)

// RedisStore keeps each transcript as a JSON document under prefix+documentID.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ TranscriptStore = &RedisStore{}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore connects to Redis. The connection is not checked; call Ping
// to verify it.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisStoreWithClient(client, opts.KeyPrefix)
}

// NewRedisStoreWithClient uses an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Ping checks connectivity and credentials.
func (s *RedisStore) Ping(ctx context.Context) error {
	return classifyRedisError(s.client.Ping(ctx).Err(), "ping")
}

// Close implements TranscriptStore.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(k chat.SessionKey) string {
	return s.prefix + k.DocumentID()
}

// Load implements TranscriptStore.
func (s *RedisStore) Load(ctx context.Context, key chat.SessionKey) (chat.History, error) {
	if !key.Valid() {
		return chat.History{}, ErrInvalidKey
	}

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return chat.History{}, errors.Wrapf(ErrNotFound, "redis store: %s", key)
	}
	if err != nil {
		return chat.History{}, classifyRedisError(err, "load "+s.key(key))
	}

	var h chat.History
	if err := json.Unmarshal(data, &h); err != nil {
		return chat.History{}, errors.Wrapf(err, "redis transcript store: decode %s", s.key(key))
	}
	return h, nil
}

// Save implements TranscriptStore.
func (s *RedisStore) Save(ctx context.Context, history chat.History) error {
	key := history.Key()
	if !key.Valid() {
		return ErrInvalidKey
	}
	if history.LastUpdated.IsZero() {
		history.LastUpdated = time.Now().UTC()
	}

	data, err := json.Marshal(history)
	if err != nil {
		return errors.Wrap(err, "redis transcript store: encode")
	}
	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return classifyRedisError(err, "save "+s.key(key))
	}
	return nil
}

var permissionPrefixes = []string{"NOPERM", "NOAUTH", "WRONGPASS"}

// classifyRedisError maps ACL and authentication failures to ErrPermission.
func classifyRedisError(err error, op string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, prefix := range permissionPrefixes {
		if strings.HasPrefix(msg, prefix) {
			return errors.Wrapf(ErrPermission, "redis %s: %s", op, msg)
		}
	}
	return errors.Wrapf(err, "redis transcript store: %s", op)
}
