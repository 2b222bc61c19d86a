// Package eventbus fans tab, settings and notification events out to the
// WebSocket connections of each user.
package eventbus

import (
	"context"
	"slices"
	"sync"

	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

// DefaultDepth is the per-subscriber buffer. A subscriber that falls this
// far behind loses events rather than stalling the publisher.
const DefaultDepth = 256

// EventType identifies the event payload.
type EventType string

const (
	EventTab          EventType = "tab"
	EventSettings     EventType = "settings"
	EventNotification EventType = "notification"
)

// Event is one update for one user. Only the field matching Type is set.
type Event struct {
	Type         EventType
	Tab          schema.TabEvent
	Settings     schema.SettingsEvent
	Notification schema.NotificationEvent
}

type subscriber struct {
	ch      chan Event
	dropped int
}

// Bus is safe for concurrent use. A nil *Bus drops everything.
type Bus struct {
	log   pslog.Logger
	depth int

	mu   sync.Mutex
	subs map[schema.UserID][]*subscriber
}

// New constructs a Bus with DefaultDepth buffers.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		log:   logger,
		depth: DefaultDepth,
		subs:  make(map[schema.UserID][]*subscriber),
	}
}

// Subscribe returns the event channel of a new subscriber for userID and the
// func that removes it. The channel is closed on removal.
func (b *Bus) Subscribe(userID schema.UserID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	sub := &subscriber{ch: make(chan Event, b.depth)}
	b.mu.Lock()
	b.subs[userID] = append(b.subs[userID], sub)
	count := len(b.subs[userID])
	b.mu.Unlock()
	log := b.log.With("user", userID)
	log.Debug("eventbus subscribe", "subs", count)

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			remaining := slices.DeleteFunc(b.subs[userID], func(s *subscriber) bool { return s == sub })
			if len(remaining) == 0 {
				delete(b.subs, userID)
			} else {
				b.subs[userID] = remaining
			}
			close(sub.ch)
			b.mu.Unlock()
			log.Debug("eventbus unsubscribe", "dropped", sub.dropped)
		})
	}
}

// OnTabEvent implements core.EventSink.
func (b *Bus) OnTabEvent(event schema.TabEvent) {
	b.publish(event.UserID, Event{Type: EventTab, Tab: event})
}

// OnSettingsEvent implements core.EventSink.
func (b *Bus) OnSettingsEvent(event schema.SettingsEvent) {
	b.publish(event.UserID, Event{Type: EventSettings, Settings: event})
}

// OnNotification implements notify.Sink.
func (b *Bus) OnNotification(event schema.NotificationEvent) {
	b.publish(event.UserID, Event{Type: EventNotification, Notification: event})
}

// Users returns the users with at least one subscriber.
func (b *Bus) Users() []schema.UserID {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	users := make([]schema.UserID, 0, len(b.subs))
	for userID := range b.subs {
		users = append(users, userID)
	}
	return users
}

// publish sends without blocking while holding the lock, so an unsubscribe
// can never close a channel mid-send.
func (b *Bus) publish(userID schema.UserID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, sub := range b.subs[userID] {
		select {
		case sub.ch <- event:
		default:
			sub.dropped++
			dropped++
		}
	}
	if dropped > 0 {
		b.log.With("user", userID).Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
