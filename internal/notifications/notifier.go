// Package notifications fans row change events out to websocket clients and
// in-process listeners, optionally through Redis pub/sub so every server
// instance sees every change.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"recipebox/internal/middleware"
	"recipebox/internal/models"

	"github.com/redis/go-redis/v9"
)

const changeChannelPattern = "changes:*"

// Notifier publishes change events into Redis channels.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether the notifier has a Redis client.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// ChangeChannel is the Redis channel carrying changes of table rows that
// belong to recipeID, e.g. changes:comments:recipe:<id>.
func ChangeChannel(table, recipeID string) string {
	return fmt.Sprintf("changes:%s:recipe:%s", table, recipeID)
}

// PublishChange sends the event to its recipe's channel.
func (n *Notifier) PublishChange(ctx context.Context, ev models.ChangeEvent) error {
	if !n.Enabled() {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	return n.rdb.Publish(ctx, ChangeChannel(ev.Table, ev.RecipeID), payload).Err()
}

// StartChangeSubscriber subscribes to every change channel and calls onEvent
// for each decoded event until ctx is cancelled.
func (n *Notifier) StartChangeSubscriber(ctx context.Context, onEvent func(models.ChangeEvent)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, changeChannelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", changeChannelPattern, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in change subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					var ev models.ChangeEvent
					if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
						middleware.Logger.Warn("invalid change payload", "channel", msg.Channel, "error", err)
						return
					}
					onEvent(ev)
				}()
			}
		}
	}()

	return nil
}
