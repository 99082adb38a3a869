// api/db/redis.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/warden/api/logging"
	pdp_model "github.com/dev-mohitbeniwal/warden/api/pdp/model"
)

var RedisClient *redis.Client

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

// DecisionCache is the redis tier of the decision cache. Entries carry a
// short TTL; staleness beyond that window is bounded by the TTL rather than
// explicit invalidation.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	return &DecisionCache{client: client, ttl: ttl}
}

func (c *DecisionCache) GetDecision(ctx context.Context, key string) (*pdp_model.AccessDecision, bool) {
	raw, err := c.client.Get(ctx, "decision:"+key).Result()
	if err == redis.Nil {
		return nil, false
	} else if err != nil {
		logger.Warn("Failed to read cached decision", zap.Error(err), zap.String("key", key))
		return nil, false
	}

	var decision pdp_model.AccessDecision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		logger.Warn("Failed to unmarshal cached decision", zap.Error(err), zap.String("key", key))
		return nil, false
	}
	return &decision, true
}

func (c *DecisionCache) SetDecision(ctx context.Context, key string, decision pdp_model.AccessDecision) {
	data, err := json.Marshal(decision)
	if err != nil {
		logger.Warn("Failed to marshal decision for cache", zap.Error(err), zap.String("key", key))
		return
	}
	if err := c.client.Set(ctx, "decision:"+key, data, c.ttl).Err(); err != nil {
		logger.Warn("Failed to cache decision", zap.Error(err), zap.String("key", key))
	}
}

// RateLimit implements a sliding-window limiter over a redis sorted set.
func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
