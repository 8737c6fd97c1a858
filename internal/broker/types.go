package broker

import (
	"context"

	"github.com/casualjim/recall/events"
)

// Broker hands out topics by name.
type Broker interface {
	Topic(context.Context, string) Topic
}

// Topic is a named stream of session events.
type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// SessionTopic is the topic name a session publishes its events on.
func SessionTopic(room string) string {
	return "recall.rooms." + room
}
