package notifications

import (
	"context"

	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/observability"
)

// Feed is the write side of the change feed. With Redis configured events go
// through pub/sub and reach the hub via StartWiring; without it they are
// dispatched to the local hub directly. Each event is delivered once either way.
type Feed struct {
	hub      *Hub
	notifier *Notifier
}

// NewFeed returns a Feed publishing to notifier when enabled, else to hub.
func NewFeed(hub *Hub, notifier *Notifier) *Feed {
	return &Feed{hub: hub, notifier: notifier}
}

// Publish emits ev. Failures are logged, never returned to the writer: the
// row change has already been committed.
func (f *Feed) Publish(ctx context.Context, ev models.ChangeEvent) {
	observability.ChangeEventsPublished.WithLabelValues(ev.Table, ev.Type).Inc()

	if f.notifier.Enabled() {
		if err := f.notifier.PublishChange(ctx, ev); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish change event",
				"table", ev.Table, "type", ev.Type, "recipe_id", ev.RecipeID, "error", err)
		}
		return
	}
	if f.hub != nil {
		f.hub.Dispatch(ev)
	}
}
