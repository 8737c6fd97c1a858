// Package broker distributes session events to subscribers.
//
// Local keeps topics in process and hands events to hooks over buffered
// channels; a subscriber that cannot keep up is dropped after a timeout. NATS
// publishes the JSON encoding of events on a subject per topic so dashboards
// and other processes can follow a session.
//
//	topic := b.Topic(ctx, broker.SessionTopic(room))
//	sub, err := topic.Subscribe(ctx, events.LoggingHook(logger.With(slogx.Room(room))))
//	defer sub.Unsubscribe()
//	err = topic.Publish(ctx, events.SessionStarted{Header: h})
package broker
