package distributed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cloudops/internal/config"
	"cloudops/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const leaderKey = "cloudops:leader"

const resignScript = `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        end
        return 0
    `

// LeaseClient is the subset of the redis client the election needs.
type LeaseClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Election holds a TTL lease in redis so that only one replica runs the
// jobs that mutate namespaces.
type Election struct {
	client     LeaseClient
	InstanceID string
	TTL        time.Duration
	logger     *slog.Logger
	isLeader   bool
	mu         sync.RWMutex
}

func NewElection(client LeaseClient, instanceID string, ttl time.Duration, logger *slog.Logger) *Election {
	if ttl <= 0 {
		ttl = config.DefaultDistributedConfig.TTL
	}
	return &Election{
		client:     client,
		InstanceID: instanceID,
		TTL:        ttl,
		logger:     logger,
	}
}

func (e *Election) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// CheckInterval is how often leadership is renewed and should be polled.
func (e *Election) CheckInterval() time.Duration {
	return e.TTL / 3
}

func (e *Election) campaign(ctx context.Context) {
	ok, err := e.client.SetNX(ctx, leaderKey, e.InstanceID, e.TTL).Result()
	if err != nil {
		e.logger.Error("failed to campaign for leadership", "error", err, "instance", e.InstanceID)
		return
	}

	e.mu.Lock()
	wasLeader := e.isLeader

	if ok {
		e.isLeader = true
	} else {
		currentLeader, err := e.client.Get(ctx, leaderKey).Result()
		if err == nil && currentLeader == e.InstanceID {
			e.isLeader = true
			e.client.Expire(ctx, leaderKey, e.TTL)
		} else {
			e.isLeader = false
		}
	}

	isLeader := e.isLeader
	e.mu.Unlock()

	if isLeader && !wasLeader {
		e.logger.Info("became leader", "instance", e.InstanceID)
		metrics.IsLeader.Set(1)
		metrics.LeadershipChanges.Inc()
	} else if !isLeader && wasLeader {
		e.logger.Info("lost leadership", "instance", e.InstanceID)
		metrics.IsLeader.Set(0)
		metrics.LeadershipChanges.Inc()
	}
}

// Start campaigns until ctx is done, then resigns.
func (e *Election) Start(ctx context.Context) {
	ticker := time.NewTicker(e.CheckInterval())
	defer ticker.Stop()

	e.campaign(ctx)

	for {
		select {
		case <-ctx.Done():
			// the lease must be released even though ctx is gone
			e.resign(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			e.campaign(ctx)
		}
	}
}

func (e *Election) resign(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isLeader {
		return
	}

	_, err := e.client.Eval(ctx, resignScript, []string{leaderKey}, e.InstanceID).Result()
	if err != nil {
		e.logger.Error("failed to resign leadership", "error", err, "instance", e.InstanceID)
	} else {
		e.logger.Info("resigned leadership", "instance", e.InstanceID)
		metrics.IsLeader.Set(0)
	}

	e.isLeader = false
}
