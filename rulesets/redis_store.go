package rulesets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisRulesetKeyPrefix = "rulesets:"
	maxPublishRetries     = 5
)

// RedisStore keeps each scholarship's versions as a Redis list of JSON
// records, newest first.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore constructs a Redis-backed ruleset store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Publish rewrites the scholarship's list with the new version in front and
// every prior version deactivated. The write is retried when another writer
// touches the key between the read and the transaction.
//
// Errors: ErrInvalidRuleset, ErrVersionExists, or wrapped Redis errors.
func (s *RedisStore) Publish(ctx context.Context, rs *Ruleset) error {
	record, err := prepare(rs, s.now())
	if err != nil {
		return err
	}
	key := rulesetKey(record.ScholarshipID)

	txf := func(tx *redis.Tx) error {
		existing, err := decodeList(tx.LRange(ctx, key, 0, -1))
		if err != nil {
			return err
		}

		payloads := make([]any, 0, len(existing)+1)
		encoded, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode ruleset: %w", err)
		}
		payloads = append(payloads, encoded)

		for _, old := range existing {
			if old.Version == record.Version {
				return fmt.Errorf("%w: %s@%s", ErrVersionExists, record.ScholarshipID, record.Version)
			}
			old.IsActive = false
			b, err := json.Marshal(old)
			if err != nil {
				return fmt.Errorf("encode ruleset: %w", err)
			}
			payloads = append(payloads, b)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.RPush(ctx, key, payloads...)
			return nil
		})
		return err
	}

	for i := 0; i < maxPublishRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			*rs = record
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrVersionExists) {
			return err
		}
		return fmt.Errorf("publish ruleset: %w", err)
	}
	return fmt.Errorf("publish ruleset: gave up after %d concurrent updates", maxPublishRetries)
}

// Active returns the newest active version for a scholarship.
func (s *RedisStore) Active(ctx context.Context, scholarshipID string) (*Ruleset, error) {
	list, err := s.List(ctx, scholarshipID)
	if err != nil {
		return nil, err
	}
	for _, rs := range list {
		if rs.IsActive {
			return rs, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, scholarshipID)
}

// List returns every stored version, newest first.
func (s *RedisStore) List(ctx context.Context, scholarshipID string) ([]*Ruleset, error) {
	list, err := decodeList(s.client.LRange(ctx, rulesetKey(scholarshipID), 0, -1))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func decodeList(cmd *redis.StringSliceCmd) ([]*Ruleset, error) {
	raw, err := cmd.Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read rulesets: %w", err)
	}

	list := make([]*Ruleset, 0, len(raw))
	for _, item := range raw {
		var rs Ruleset
		if err := json.Unmarshal([]byte(item), &rs); err != nil {
			return nil, fmt.Errorf("decode ruleset: %w", err)
		}
		list = append(list, &rs)
	}
	return list, nil
}

func rulesetKey(scholarshipID string) string {
	return redisRulesetKeyPrefix + scholarshipID
}
