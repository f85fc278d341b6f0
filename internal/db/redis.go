package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidder/internal/models"
)

// ErrNotFound is returned when a run or period has no mirrored submission.
var ErrNotFound = errors.New("not found")

// RedisStore mirrors the bid submissions of a run into Redis so other
// processes can follow a run while it is in progress. Every key expires after
// TTL and is scoped by run ID.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
}

// InitRedis initializes a Redis client and returns a RedisStore.
func InitRedis(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	rs := &RedisStore{
		Client: redis.NewClient(&redis.Options{Addr: addr}),
		TTL:    ttl,
	}

	// Add OpenTelemetry instrumentation to Redis client
	if err := redisotel.InstrumentTracing(rs.Client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := rs.Client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return rs, nil
}

func bidsKey(runID string, period int) string {
	return fmt.Sprintf("run:%s:bids:%d", runID, period)
}

func periodsKey(runID string) string {
	return fmt.Sprintf("run:%s:periods", runID)
}

func latestKey(runID string) string {
	return fmt.Sprintf("run:%s:latest", runID)
}

// Publish stores the submission under its run and period and marks it as
// the latest of the run.
func (r *RedisStore) Publish(ctx context.Context, sub models.BidSubmission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	pipe := r.Client.TxPipeline()
	pipe.Set(ctx, bidsKey(sub.RunID, sub.Period), payload, r.TTL)
	pipe.Set(ctx, latestKey(sub.RunID), sub.Period, r.TTL)
	pipe.RPush(ctx, periodsKey(sub.RunID), sub.Period)
	pipe.Expire(ctx, periodsKey(sub.RunID), r.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror run %s period %d: %w", sub.RunID, sub.Period, err)
	}
	return nil
}

// Submission returns the mirrored submission of one period.
func (r *RedisStore) Submission(ctx context.Context, runID string, period int) (models.BidSubmission, error) {
	raw, err := r.Client.Get(ctx, bidsKey(runID, period)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.BidSubmission{}, ErrNotFound
	}
	if err != nil {
		return models.BidSubmission{}, err
	}
	var sub models.BidSubmission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return models.BidSubmission{}, fmt.Errorf("decode submission: %w", err)
	}
	return sub, nil
}

// Latest returns the most recent mirrored submission of a run.
func (r *RedisStore) Latest(ctx context.Context, runID string) (models.BidSubmission, error) {
	v, err := r.Client.Get(ctx, latestKey(runID)).Result()
	if errors.Is(err, redis.Nil) {
		return models.BidSubmission{}, ErrNotFound
	}
	if err != nil {
		return models.BidSubmission{}, err
	}
	period, err := strconv.Atoi(v)
	if err != nil {
		return models.BidSubmission{}, fmt.Errorf("latest period %q: %w", v, err)
	}
	return r.Submission(ctx, runID, period)
}

// Periods lists the mirrored periods of a run in publish order.
func (r *RedisStore) Periods(ctx context.Context, runID string) ([]int, error) {
	vals, err := r.Client.LRange(ctx, periodsKey(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("period %q: %w", v, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// Purge deletes every key of a run.
func (r *RedisStore) Purge(ctx context.Context, runID string) error {
	var cursor uint64
	for {
		keys, next, err := r.Client.Scan(ctx, cursor, fmt.Sprintf("run:%s:*", runID), 100).Result()
		if err != nil {
			return fmt.Errorf("scan run %s: %w", runID, err)
		}
		if len(keys) > 0 {
			if err := r.Client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("purge run %s: %w", runID, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close shuts down the Redis client.
func (r *RedisStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
