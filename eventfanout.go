package halolight

import (
	"pkt.systems/halolight/core"
	"pkt.systems/halolight/httpapi"
	"pkt.systems/halolight/internal/eventbus"
	"pkt.systems/halolight/internal/metrics"
	"pkt.systems/halolight/internal/notify"
	"pkt.systems/halolight/schema"
)

// eventSink is everything the fanout forwards.
type eventSink interface {
	core.EventSink
	notify.Sink
}

type eventFanout struct {
	sinks []eventSink
	extra core.EventSink
}

// newEventFanout skips nil components so typed nils never reach the list.
func newEventFanout(extra core.EventSink, hub *httpapi.Hub, bus *eventbus.Bus, m *metrics.Metrics) eventFanout {
	f := eventFanout{extra: extra}
	if hub != nil {
		f.sinks = append(f.sinks, hub)
	}
	if bus != nil {
		f.sinks = append(f.sinks, bus)
	}
	if m != nil {
		f.sinks = append(f.sinks, m)
	}
	return f
}

func (f eventFanout) OnTabEvent(event schema.TabEvent) {
	if f.extra != nil {
		f.extra.OnTabEvent(event)
	}
	for _, sink := range f.sinks {
		sink.OnTabEvent(event)
	}
}

func (f eventFanout) OnSettingsEvent(event schema.SettingsEvent) {
	if f.extra != nil {
		f.extra.OnSettingsEvent(event)
	}
	for _, sink := range f.sinks {
		sink.OnSettingsEvent(event)
	}
}

func (f eventFanout) OnNotification(event schema.NotificationEvent) {
	for _, sink := range f.sinks {
		sink.OnNotification(event)
	}
}
