package httpapi

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/schema"
)

// Stream event types.
const (
	streamSnapshot     = "snapshot"
	streamTab          = "tab"
	streamSettings     = "settings"
	streamNotification = "notification"
)

// StreamEvent is sent to SSE and WebSocket clients.
type StreamEvent struct {
	Seq          uint64               `json:"seq"`
	Type         string               `json:"type"`
	TabEvent     string               `json:"tabEvent,omitempty"`
	Tab          *schema.TabSnapshot  `json:"tab,omitempty"`
	ActiveTab    schema.TabID         `json:"activeTab,omitempty"`
	Settings     *schema.UISettings   `json:"settings,omitempty"`
	Notification *schema.Notification `json:"notification,omitempty"`
	Snapshot     *SnapshotPayload     `json:"snapshot,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Tabs      []schema.TabSnapshot `json:"tabs"`
	ActiveTab schema.TabID         `json:"activeTab"`
	Settings  schema.UISettings    `json:"settings"`
}

const subscriberDepth = 64

// Hub fans sink events out to per-user stream subscribers. Each user has an
// independent sequence and a bounded log used for Last-Event-ID replay.
type Hub struct {
	clock    clockwork.Clock
	capacity int

	mu      sync.Mutex
	streams map[schema.UserID]*userStream
}

type userStream struct {
	log  eventLog
	subs []*streamSub
}

type streamSub struct {
	ch      chan StreamEvent
	dropped int
}

// NewHub returns a hub retaining historySize events per user.
func NewHub(historySize int, clock clockwork.Clock) *Hub {
	if historySize <= 0 {
		historySize = 256
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Hub{
		clock:    clock,
		capacity: historySize,
		streams:  make(map[schema.UserID]*userStream),
	}
}

// OnTabEvent implements core.EventSink.
func (h *Hub) OnTabEvent(event schema.TabEvent) {
	h.publish(event.UserID, tabStreamEvent(event))
}

// OnSettingsEvent implements core.EventSink.
func (h *Hub) OnSettingsEvent(event schema.SettingsEvent) {
	h.publish(event.UserID, settingsStreamEvent(event))
}

// OnNotification implements notify.Sink.
func (h *Hub) OnNotification(event schema.NotificationEvent) {
	h.publish(event.UserID, notificationStreamEvent(event))
}

func tabStreamEvent(event schema.TabEvent) StreamEvent {
	tab := event.Tab
	return StreamEvent{Type: streamTab, TabEvent: string(event.Type), Tab: &tab, ActiveTab: event.ActiveTab}
}

func settingsStreamEvent(event schema.SettingsEvent) StreamEvent {
	settings := event.Settings
	return StreamEvent{Type: streamSettings, Settings: &settings}
}

func notificationStreamEvent(event schema.NotificationEvent) StreamEvent {
	note := event.Notification
	return StreamEvent{Type: streamNotification, Notification: &note}
}

// Connected lists users with at least one open stream, sorted.
func (h *Hub) Connected() []schema.UserID {
	h.mu.Lock()
	defer h.mu.Unlock()
	var users []schema.UserID
	for id, stream := range h.streams {
		if len(stream.subs) > 0 {
			users = append(users, id)
		}
	}
	slices.Sort(users)
	return users
}

// Subscribe attaches a stream for userID. The returned seq is the last one
// published before the registration, so every event after it arrives on the
// channel.
func (h *Hub) Subscribe(userID schema.UserID) (<-chan StreamEvent, func(), uint64) {
	sub := &streamSub{ch: make(chan StreamEvent, subscriberDepth)}

	h.mu.Lock()
	stream := h.streamLocked(userID)
	stream.subs = append(stream.subs, sub)
	seq := stream.log.last
	count := len(stream.subs)
	h.mu.Unlock()

	log := logx.WithUser(context.Background(), userID)
	log.Info("hub subscribe", "subs", count, "seq", seq)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			stream.subs = slices.DeleteFunc(stream.subs, func(s *streamSub) bool { return s == sub })
			close(sub.ch)
			remaining := len(stream.subs)
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining, "dropped", sub.dropped)
		})
	}
	return sub.ch, unsubscribe, seq
}

// Replay returns the retained events with a seq greater than after. Unknown
// users yield nil.
func (h *Hub) Replay(userID schema.UserID, after uint64) []StreamEvent {
	h.mu.Lock()
	stream := h.streams[userID]
	var events []StreamEvent
	if stream != nil {
		events = stream.log.since(after)
	}
	h.mu.Unlock()
	if stream == nil {
		return nil
	}
	logx.WithUser(context.Background(), userID).Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(userID schema.UserID, event StreamEvent) {
	log := logx.WithUser(context.Background(), userID)
	log.Trace("hub publish", "type", event.Type, "tab_event", event.TabEvent)

	h.mu.Lock()
	stream := h.streamLocked(userID)
	event = stream.log.add(event, h.clock.Now())
	dropped := 0
	for _, sub := range stream.subs {
		select {
		case sub.ch <- event:
		default:
			sub.dropped++
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		log.Warn("hub event dropped", "type", event.Type, "seq", event.Seq, "dropped", dropped)
	}
}

func (h *Hub) streamLocked(userID schema.UserID) *userStream {
	stream := h.streams[userID]
	if stream == nil {
		stream = &userStream{log: eventLog{buf: make([]StreamEvent, 0, min(h.capacity, 16)), max: h.capacity}}
		h.streams[userID] = stream
	}
	return stream
}

// eventLog is a fixed-capacity ring of sequenced events.
type eventLog struct {
	buf  []StreamEvent
	max  int
	head int
	last uint64
}

func (l *eventLog) add(event StreamEvent, now time.Time) StreamEvent {
	l.last++
	event.Seq = l.last
	event.Timestamp = now
	if len(l.buf) < l.max {
		l.buf = append(l.buf, event)
		return event
	}
	l.buf[l.head] = event
	l.head = (l.head + 1) % l.max
	return event
}

// since returns the retained events after seq in publish order.
func (l *eventLog) since(seq uint64) []StreamEvent {
	n := len(l.buf)
	if n == 0 || seq >= l.last {
		return []StreamEvent{}
	}
	oldest := l.last - uint64(n) + 1
	skip := 0
	if seq >= oldest {
		skip = int(seq - oldest + 1)
	}
	out := make([]StreamEvent, 0, n-skip)
	for i := skip; i < n; i++ {
		out = append(out, l.buf[(l.head+i)%n])
	}
	return out
}
