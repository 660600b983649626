package redis

// Package redis provides Redis-backed adapters for the portal.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/gestorhq/portal-api/internal/domain/auth"
	"github.com/gestorhq/portal-api/internal/ports"
)

// SessionStore is a Redis-backed session store with sliding expiry: every
// successful Get pushes the key TTL (and the session's ExpiresAt) forward
// by the configured window.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// SessionStoreOptions configures NewSessionStore.
type SessionStoreOptions struct {
	Client redis.UniversalClient
	// Prefix defaults to "sid:".
	Prefix string
	// TTL is the sliding-expiry window; defaults to 7 days.
	TTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	if opts.Prefix == "" {
		opts.Prefix = "sid:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionStore{
		client: opts.Client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		now:    opts.Now,
	}
}

// Save stores the session under its ID with the full sliding window as TTL.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = s.now().Add(s.ttl)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ttl := sess.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if err := s.indexAdd(ctx, sess); err != nil {
		return err
	}
	return nil
}

// Get returns the session and extends its expiry by the full window. The
// rewrite and TTL reset go out in one pipeline.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}

	now := s.now()
	if now.After(sess.ExpiresAt) {
		if deleteErr := s.Delete(ctx, id); deleteErr != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", deleteErr)
		}
		return domainauth.Session{}, ErrNotFound
	}

	sess.ExpiresAt = now.Add(s.ttl)
	refreshed, err := json.Marshal(sess)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("marshal session: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(id), refreshed, s.ttl)
	pipe.Expire(ctx, s.indexKey(sess.PrincipalID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return domainauth.Session{}, fmt.Errorf("extend session: %w", err)
	}

	return sess, nil
}

// Delete removes the session. Deleting an absent session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err == nil {
		var sess domainauth.Session
		if json.Unmarshal([]byte(data), &sess) == nil && sess.PrincipalID != "" {
			if err := s.client.SRem(ctx, s.indexKey(sess.PrincipalID), id).Err(); err != nil {
				return fmt.Errorf("redis srem: %w", err)
			}
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis get: %w", err)
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// DeleteByPrincipal removes every live session owned by the principal.
// Used when an account is locked or its password changes.
func (s *SessionStore) DeleteByPrincipal(ctx context.Context, principalID string) error {
	if principalID == "" {
		return nil
	}
	idxKey := s.indexKey(principalID)
	ids, err := s.client.SMembers(ctx, idxKey).Result()
	if err != nil {
		return fmt.Errorf("redis smembers: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, idxKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// indexAdd tracks the session ID in a per-principal set so all of a
// principal's sessions can be revoked at once.
func (s *SessionStore) indexAdd(ctx context.Context, sess domainauth.Session) error {
	if sess.PrincipalID == "" {
		return nil
	}
	idxKey := s.indexKey(sess.PrincipalID)
	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, idxKey, sess.ID)
	pipe.Expire(ctx, idxKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *SessionStore) key(id string) string {
	return s.prefix + id
}

func (s *SessionStore) indexKey(principalID string) string {
	return s.prefix + "principal:" + principalID
}

// ErrNotFound is returned when a session is not found.
var ErrNotFound = ports.ErrSessionNotFound
