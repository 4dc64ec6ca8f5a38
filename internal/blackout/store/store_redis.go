package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"beacon/internal/blackout/models"
	id "beacon/pkg/domain"
	"beacon/pkg/platform/sentinel"
)

const (
	blackoutKeyPrefix = "beacon:blackout:"
	maxTxRetries      = 5
)

// RedisStore keeps one key per signal whose TTL tracks the blackout expiry.
// Creation uses SET NX so concurrent instances cannot both start a window.
// Ended blackouts are deleted rather than retained.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func blackoutKey(signalID id.SignalID) string {
	return blackoutKeyPrefix + signalID.String()
}

func (s *RedisStore) CreateIfAbsent(ctx context.Context, rec *models.Record, now time.Time) (*models.Record, bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("marshal blackout: %w", err)
	}
	key := blackoutKey(rec.SignalID)
	ttl := rec.ExpiresAt.Sub(now)
	if ttl <= 0 {
		return nil, false, fmt.Errorf("blackout for %s already expired", rec.SignalID)
	}

	for range maxTxRetries {
		ok, err := s.client.SetNX(ctx, key, data, ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("setnx blackout: %w", err)
		}
		if ok {
			return rec, true, nil
		}

		existing, err := s.get(ctx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if existing.IsBlacked(now) {
			return existing, false, nil
		}
		// Stale record the server clock has not expired yet.
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return nil, false, fmt.Errorf("delete stale blackout: %w", err)
		}
	}
	return nil, false, fmt.Errorf("create blackout for %s: %w", rec.SignalID, sentinel.ErrUnavailable)
}

func (s *RedisStore) FindActive(ctx context.Context, signalID id.SignalID, now time.Time) (*models.Record, error) {
	rec, err := s.get(ctx, blackoutKey(signalID))
	if err != nil {
		return nil, err
	}
	if !rec.IsBlacked(now) {
		return nil, sentinel.ErrNotFound
	}
	return rec, nil
}

// Extend rewrites the record under WATCH so a concurrent End or Extend
// forces a retry instead of being overwritten.
func (s *RedisStore) Extend(ctx context.Context, signalID id.SignalID, by id.PartnerID, d time.Duration, now time.Time) (*models.Record, error) {
	key := blackoutKey(signalID)
	var out *models.Record

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get blackout: %w", err)
		}
		var rec models.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode blackout: %w", err)
		}
		if !rec.IsBlacked(now) {
			return sentinel.ErrNotFound
		}
		rec.Extend(by, d)
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal blackout: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, rec.ExpiresAt.Sub(now))
			return nil
		})
		out = &rec
		return err
	}

	for range maxTxRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("extend blackout for %s: %w", signalID, sentinel.ErrUnavailable)
}

func (s *RedisStore) End(ctx context.Context, signalID id.SignalID, now time.Time) error {
	if _, err := s.FindActive(ctx, signalID, now); err != nil {
		return err
	}
	n, err := s.client.Del(ctx, blackoutKey(signalID)).Result()
	if err != nil {
		return fmt.Errorf("delete blackout: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, key string) (*models.Record, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blackout: %w", err)
	}
	var rec models.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode blackout: %w", err)
	}
	return &rec, nil
}
