// Package redissession keeps user sessions as Redis hashes, one hash per
// session id.
package redissession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-ccx/pkg/session"
)

const (
	defaultPrefix = "ccx:session:"
	defaultCookie = "sessionid"
)

// Config configures a Store.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to session ids to build hash keys.
	Prefix string
	// Cookie names the cookie carrying the session id.
	Cookie string
	// TTL refreshes the hash expiry on every write when positive.
	TTL time.Duration
}

// Store hands out Redis-backed sessions.
type Store struct {
	client redis.Cmdable
	prefix string
	cookie string
	ttl    time.Duration
	closer func() error
}

// Open connects to Redis at cfg.Addr.
func Open(cfg Config) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	store := New(client, cfg)
	store.closer = client.Close
	return store
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client redis.Cmdable, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	cookie := strings.TrimSpace(cfg.Cookie)
	if cookie == "" {
		cookie = defaultCookie
	}
	return &Store{client: client, prefix: prefix, cookie: cookie, ttl: cfg.TTL}
}

// Close releases the client opened by Open.
func (s *Store) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// Session returns the session with the given id.
func (s *Store) Session(id string) *Session {
	return &Session{store: s, key: s.prefix + id}
}

// FromRequest returns the session named by the request's session cookie, or
// nil when there is none. It fits middleware.SessionLoader.
func (s *Store) FromRequest(r *http.Request) (session.Session, error) {
	cookie, err := r.Cookie(s.cookie)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return nil, nil
	}
	return s.Session(cookie.Value), nil
}

// Session is one Redis hash.
type Session struct {
	store *Store
	key   string
}

var _ session.Session = (*Session)(nil)

func (s *Session) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.store.client.HGet(ctx, s.key, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redissession: get %s: %w", key, err)
	}
	return value, true, nil
}

// Pop reads and deletes key in one MULTI/EXEC transaction.
func (s *Session) Pop(ctx context.Context, key string) (string, bool, error) {
	var get *redis.StringCmd
	_, err := s.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGet(ctx, s.key, key)
		pipe.HDel(ctx, s.key, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", false, fmt.Errorf("redissession: pop %s: %w", key, err)
	}
	value, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redissession: pop %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (s *Session) Set(ctx context.Context, key, value string) error {
	_, err := s.store.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, key, value)
		if s.store.ttl > 0 {
			pipe.Expire(ctx, s.key, s.store.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redissession: set %s: %w", key, err)
	}
	return nil
}
