// Package storage provides Redis client for real-time channel state.
package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sv2pool/core/internal/config"
)

// RedisClient wraps Redis operations for the Sv2 server.
type RedisClient struct {
	client    *redis.Client
	cfg       config.RedisConfig
	logger    *zap.Logger
	keyPrefix string
}

// NewRedisClient creates a new Redis client.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
	)

	return &RedisClient{
		client:    client,
		cfg:       cfg,
		logger:    logger.Named("redis"),
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// key generates a prefixed key.
func (r *RedisClient) key(parts ...string) string {
	key := r.keyPrefix
	for _, part := range parts {
		key += part + ":"
	}
	return key[:len(key)-1]
}

// CheckDuplicateShare atomically checks-and-sets a share's identity key,
// used as a cross-process backstop to the in-memory seen-shares set each
// channel keeps for the lifetime of its own process.
func (r *RedisClient) CheckDuplicateShare(ctx context.Context, channelID uint32, shareKey string) (bool, error) {
	key := r.key("share", strconv.FormatUint(uint64(channelID), 10), shareKey)

	result, err := r.client.SetNX(ctx, key, 1, r.cfg.ShareTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate share: %w", err)
	}

	// If result is false, the key already existed (duplicate).
	return !result, nil
}

// AddOnlineChannel adds a channel to the online channels set and records
// its heartbeat.
func (r *RedisClient) AddOnlineChannel(ctx context.Context, channelID uint32) error {
	key := r.key("channels", "online")
	idStr := strconv.FormatUint(uint64(channelID), 10)

	if _, err := r.client.SAdd(ctx, key, idStr).Result(); err != nil {
		return fmt.Errorf("failed to add online channel: %w", err)
	}

	heartbeatKey := r.key("channel", idStr, "heartbeat")
	_, err := r.client.Set(ctx, heartbeatKey, time.Now().Unix(), r.cfg.ChannelTTL).Result()
	return err
}

// RemoveOnlineChannel removes a channel from the online channels set.
func (r *RedisClient) RemoveOnlineChannel(ctx context.Context, channelID uint32) error {
	key := r.key("channels", "online")
	idStr := strconv.FormatUint(uint64(channelID), 10)

	if _, err := r.client.SRem(ctx, key, idStr).Result(); err != nil {
		return fmt.Errorf("failed to remove online channel: %w", err)
	}

	heartbeatKey := r.key("channel", idStr, "heartbeat")
	r.client.Del(ctx, heartbeatKey)
	return nil
}

// GetOnlineChannelCount returns the number of online channels.
func (r *RedisClient) GetOnlineChannelCount(ctx context.Context) (int64, error) {
	key := r.key("channels", "online")

	count, err := r.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get online channel count: %w", err)
	}
	return count, nil
}

// IncrementChannelShares increments the share counter for a channel.
func (r *RedisClient) IncrementChannelShares(ctx context.Context, channelID uint32, valid bool) error {
	idStr := strconv.FormatUint(uint64(channelID), 10)
	var key string
	if valid {
		key = r.key("channel", idStr, "valid_shares")
	} else {
		key = r.key("channel", idStr, "invalid_shares")
	}

	_, err := r.client.Incr(ctx, key).Result()
	return err
}

// SetChannelTarget caches a channel's current target (hex-encoded) for
// dashboards and reconnect recovery.
func (r *RedisClient) SetChannelTarget(ctx context.Context, channelID uint32, targetHex string) error {
	key := r.key("channel", strconv.FormatUint(uint64(channelID), 10), "target")
	_, err := r.client.Set(ctx, key, targetHex, r.cfg.ChannelTTL).Result()
	return err
}

// GetChannelTarget retrieves a channel's cached target.
func (r *RedisClient) GetChannelTarget(ctx context.Context, channelID uint32) (string, error) {
	key := r.key("channel", strconv.FormatUint(uint64(channelID), 10), "target")

	result, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get channel target: %w", err)
	}
	return result, nil
}

// CacheCurrentJob caches the most recent job's serialized form, keyed both
// as "current" and by job ID for short-lived retrieval by job ID.
func (r *RedisClient) CacheCurrentJob(ctx context.Context, jobID uint32, jobData []byte) error {
	key := r.key("job", "current")

	if _, err := r.client.Set(ctx, key, jobData, 5*time.Minute).Result(); err != nil {
		return fmt.Errorf("failed to cache job: %w", err)
	}

	historyKey := r.key("job", strconv.FormatUint(uint64(jobID), 10))
	_, err := r.client.Set(ctx, historyKey, jobData, time.Hour).Result()
	return err
}

// GetCachedJob retrieves a cached job by ID.
func (r *RedisClient) GetCachedJob(ctx context.Context, jobID uint32) ([]byte, error) {
	key := r.key("job", strconv.FormatUint(uint64(jobID), 10))

	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached job: %w", err)
	}
	return data, nil
}

// UpdatePoolHashrate updates the pool's total estimated hashrate.
func (r *RedisClient) UpdatePoolHashrate(ctx context.Context, hashrate float64) error {
	key := r.key("pool", "hashrate")
	_, err := r.client.Set(ctx, key, hashrate, time.Minute).Result()
	return err
}

// GetPoolHashrate gets the pool's total estimated hashrate.
func (r *RedisClient) GetPoolHashrate(ctx context.Context) (float64, error) {
	key := r.key("pool", "hashrate")

	result, err := r.client.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get pool hashrate: %w", err)
	}
	return result, nil
}

// RecordShareForHashrate records an accepted share's difficulty against a
// per-channel sorted set, scored by submission time, for a rolling
// hashrate estimate.
func (r *RedisClient) RecordShareForHashrate(ctx context.Context, channelID uint32, shareDiff float64) error {
	key := r.key("channel", strconv.FormatUint(uint64(channelID), 10), "share_times")
	now := float64(time.Now().UnixNano())

	if _, err := r.client.ZAdd(ctx, key, redis.Z{Score: now, Member: shareDiff}).Result(); err != nil {
		return err
	}

	cutoff := float64(time.Now().Add(-10 * time.Minute).UnixNano())
	r.client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%f", cutoff))
	r.client.Expire(ctx, key, time.Hour)
	return nil
}

// CalculateChannelHashrate estimates a channel's hashrate from the last ten
// minutes of accepted-share difficulties: sum(diff) * 2^32 / time_span.
func (r *RedisClient) CalculateChannelHashrate(ctx context.Context, channelID uint32) (float64, error) {
	key := r.key("channel", strconv.FormatUint(uint64(channelID), 10), "share_times")

	cutoff := float64(time.Now().Add(-10 * time.Minute).UnixNano())
	now := float64(time.Now().UnixNano())

	results, err := r.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%f", cutoff),
		Max: fmt.Sprintf("%f", now),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get share times: %w", err)
	}

	if len(results) < 2 {
		return 0, nil
	}

	var totalDiff float64
	for _, z := range results {
		diff, _ := z.Member.(float64)
		totalDiff += diff
	}

	firstTime := results[0].Score
	lastTime := results[len(results)-1].Score
	timeSpanSeconds := (lastTime - firstTime) / 1e9
	if timeSpanSeconds <= 0 {
		return 0, nil
	}

	return totalDiff * 4294967296.0 / timeSpanSeconds, nil
}

// Publish publishes a message to a channel (used for cross-process
// new-template/new-prev-hash fan-out when running multiple server
// instances behind one template source).
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return r.client.Publish(ctx, r.key(channel), message).Err()
}

// Subscribe subscribes to a channel.
func (r *RedisClient) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return r.client.Subscribe(ctx, r.key(channel))
}
