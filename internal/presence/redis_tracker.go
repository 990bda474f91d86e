package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hxbeeb/excalidraw/internal/config"
	"github.com/hxbeeb/excalidraw/pkg/log"
)

// RedisTracker keeps one TTL key per live room, refreshed by a
// heartbeat loop so keys expire when the hub dies.
type RedisTracker struct {
	client            *redis.Client
	instance          string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{}
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

// NewRedisTracker connects to Redis and returns a tracker advertising
// rooms under the configured prefix.
func NewRedisTracker(cfg config.PresenceConfig, instance string) (*RedisTracker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisTracker{
		client:            client,
		instance:          instance,
		prefix:            cfg.KeyPrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}, nil
}

func (r *RedisTracker) keyFor(room string) string {
	return fmt.Sprintf("%s:room:%s", r.prefix, room)
}

// Register advertises a live room.
func (r *RedisTracker) Register(ctx context.Context, room string) error {
	key := r.keyFor(room)

	if err := r.client.Set(ctx, key, r.instance, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register room: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldRoom, room).Msg("room registered in presence")
	return nil
}

// Deregister withdraws a room advertisement.
func (r *RedisTracker) Deregister(ctx context.Context, room string) error {
	key := r.keyFor(room)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to deregister room: %w", err)
	}

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldRoom, room).Msg("room deregistered from presence")
	return nil
}

// StartHeartbeat begins refreshing managed keys until the context ends
// or StopHeartbeat is called.
func (r *RedisTracker) StartHeartbeat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("presence heartbeat started")
	return nil
}

func (r *RedisTracker) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisTracker) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	for _, key := range keys {
		if err := r.client.Set(ctx, key, r.instance, r.keyTTL).Err(); err != nil {
			l := log.L()
			l.Error().Str("key", key).Err(err).Msg("failed to refresh presence key")
		}
	}
}

// StopHeartbeat stops the refresh loop.
func (r *RedisTracker) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Close stops the heartbeat and releases the client.
func (r *RedisTracker) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}
