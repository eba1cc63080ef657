package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/todolist-app/server/types"
)

const publishTimeout = 3 * time.Second

// EventPublisher delivers activity events to a broker channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Events publishes activity events. A nil *Events, or one without a publisher,
// drops every event.
type Events struct {
	publisher EventPublisher
	channel   string
}

func NewEvents(publisher EventPublisher, channel string) *Events {
	return &Events{publisher: publisher, channel: channel}
}

// emit is best-effort: failures are logged and never reach the caller.
func (e *Events) emit(ctx context.Context, event types.Event) {
	if e == nil || e.publisher == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: encode %s: %v", event.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if _, err := e.publisher.Publish(ctx, e.channel, data, map[string]string{"type": event.Type}); err != nil {
		log.Printf("events: publish %s: %v", event.Type, err)
	}
}
