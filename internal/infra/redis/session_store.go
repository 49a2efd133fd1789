package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quiz-retry-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps session records in Redis so every server process sees the same state.
// Each record is stored as JSON under quiz:session:{sessionID}; the TTL is refreshed on every save,
// so idle sessions expire on their own.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// maxUpdateAttempts bounds how often Update re-reads a record that another writer changed.
const maxUpdateAttempts = 10

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.SessionRecord, error) {
	return s.get(ctx, s.client, sessionID)
}

func (s *SessionStore) Save(ctx context.Context, rec domain.SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(rec.ID), raw, s.ttl).Err()
}

// Update applies fn to the stored record under WATCH, so a write from another process between
// the read and the write makes the transaction fail and fn runs again on the fresh record.
// When fn returns an error nothing is written.
func (s *SessionStore) Update(ctx context.Context, sessionID string, fn func(rec *domain.SessionRecord) error) error {
	key := s.key(sessionID)
	txf := func(tx *redis.Tx) error {
		rec, err := s.get(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", domain.ErrSessionConflict, sessionID)
}

// getter is the part of *redis.Client and *redis.Tx that reading a record needs.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *SessionStore) get(ctx context.Context, c getter, sessionID string) (domain.SessionRecord, error) {
	raw, err := c.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionRecord{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.SessionRecord{}, fmt.Errorf("%w: decode session: %v", domain.ErrMissingQuizData, err)
	}
	return rec, nil
}

func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
