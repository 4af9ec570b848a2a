package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes snapshots on a Redis channel so every server
// process sees every write. Received snapshots are re-published to a local
// Broker, which is what subscribers attach to. Run must be running for
// anything to be delivered, including the process's own writes.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	local   *Broker
	logger  *slog.Logger
}

func NewRedisNotifier(rdb *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisNotifier{
		rdb:     rdb,
		channel: channel,
		local:   NewBroker(),
		logger:  logger,
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(collection, id string) (<-chan Snapshot, func()) {
	return n.local.Subscribe(collection, id)
}

// Run relays the Redis channel into the local broker until ctx is done.
func (n *RedisNotifier) Run(ctx context.Context) error {
	sub := n.rdb.Subscribe(ctx, n.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var snap Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				n.logger.Warn("dropping malformed snapshot", "error", err)
				continue
			}
			n.local.Publish(ctx, snap)
		}
	}
}
