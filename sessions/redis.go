package sessions

import (
	"errors"
	"fmt"

	"github.com/go-redis/redis/v7"
	"github.com/rs/zerolog/log"
)

// RedisProvider stores namespaces as plain Redis keys "<prefix>:<namespace>:<key>"
type RedisProvider struct {
	client *redis.Client
	prefix string
}

var _ Provider = (*RedisProvider)(nil)

// NewRedisProvider connects and pings the server
func NewRedisProvider(addr, password string, db int, prefix string) (*RedisProvider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		return nil, fmt.Errorf("[sessions NewRedisProvider] ping %s: %w", addr, err)
	}
	return NewRedisProviderWithClient(client, prefix), nil
}

func NewRedisProviderWithClient(client *redis.Client, prefix string) *RedisProvider {
	return &RedisProvider{client: client, prefix: prefix}
}

func (p *RedisProvider) Open(namespace string) (Store, error) {
	if !namespacePattern.MatchString(namespace) {
		return nil, fmt.Errorf("invalid namespace %q", namespace)
	}
	return &RedisStore{client: p.client, prefix: p.prefix + ":" + namespace}, nil
}

func (p *RedisProvider) Remove(namespace string) error {
	if !namespacePattern.MatchString(namespace) {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	prefix := p.prefix + ":" + namespace
	return p.client.Del(prefix+":"+AccessTokenKey, prefix+":"+RefreshTokenKey).Err()
}

func (p *RedisProvider) Close() error {
	return p.client.Close()
}

type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// Get treats any Redis failure as an absent value; the caller then behaves as logged out.
func (s *RedisStore) Get(key string) (string, bool) {
	v, err := s.client.Get(s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		log.Err(err).Str("key", s.key(key)).Msg("Session store read failed")
		return "", false
	}
	return v, true
}

func (s *RedisStore) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return s.client.Set(s.key(key), value, 0).Err()
}

func (s *RedisStore) Clear(key string) error {
	return s.client.Del(s.key(key)).Err()
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}
