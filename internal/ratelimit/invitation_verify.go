package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sharehold/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyInvitationVerifyClient = "invitation:verify:client:%s"

// InvitationVerifyLimiter throttles the public invitation lookup per client.
type InvitationVerifyLimiter struct {
	bucket *TokenBucket
	memory *MemoryBucket
	rate   float64
	burst  int
}

func NewInvitationVerifyLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *InvitationVerifyLimiter {
	limiter := &InvitationVerifyLimiter{
		memory: NewMemoryBucket(),
		rate:   cfg.RateLimit.InvitationVerifyRate,
		burst:  cfg.RateLimit.InvitationVerifyBurst,
	}

	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		log.Info("redis addr not configured, invitation verify limiter runs in memory")
		return limiter
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	limiter.bucket = NewTokenBucket(client)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("redis ping failed, rate limiting will fail open until it recovers", zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}

	return limiter
}

// NewInvitationVerifyLimiterWithClient builds a Redis-backed limiter around client.
func NewInvitationVerifyLimiterWithClient(client *redis.Client, rate float64, burst int) *InvitationVerifyLimiter {
	return &InvitationVerifyLimiter{
		bucket: NewTokenBucket(client),
		memory: NewMemoryBucket(),
		rate:   rate,
		burst:  burst,
	}
}

// Enabled reports whether limits are configured; a non-positive rate disables limiting.
func (l *InvitationVerifyLimiter) Enabled() bool {
	return l != nil && l.rate > 0 && l.burst > 0
}

// AllowClient consumes one token for clientKey. A Redis error is returned
// together with an allowing decision so callers can fail open.
func (l *InvitationVerifyLimiter) AllowClient(ctx context.Context, clientKey string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}

	key := fmt.Sprintf(keyInvitationVerifyClient, strings.TrimSpace(clientKey))
	if l.bucket == nil {
		return l.memory.Take(key, l.rate, l.burst), nil
	}

	decision, err := l.bucket.Take(ctx, key, l.rate, l.burst)
	if err != nil {
		return Decision{Allowed: true}, err
	}
	return decision, nil
}
