package eventbus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"pkt.systems/halolight/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("1")
	defer cancel()

	event := schema.TabEvent{UserID: "1", Type: schema.TabEventCreated, Tab: schema.TabSnapshot{ID: "tab-a", Path: "/users"}, ActiveTab: "tab-a"}
	bus.OnTabEvent(event)

	select {
	case got := <-ch:
		if got.Type != EventTab {
			t.Fatalf("expected tab event, got %v", got.Type)
		}
		if got.Tab.UserID != event.UserID || got.Tab.Tab.ID != event.Tab.ID {
			t.Fatalf("unexpected payload: %+v", got.Tab)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublishIsPerUser(t *testing.T) {
	bus := New(nil)
	alice, cancelAlice := bus.Subscribe("1")
	defer cancelAlice()
	bob, cancelBob := bus.Subscribe("2")
	defer cancelBob()

	bus.OnSettingsEvent(schema.SettingsEvent{UserID: "2", Settings: schema.DefaultUISettings()})
	bus.OnNotification(schema.NotificationEvent{UserID: "2", Notification: schema.Notification{ID: "ws-1"}})

	for _, want := range []EventType{EventSettings, EventNotification} {
		select {
		case got := <-bob:
			if got.Type != want {
				t.Fatalf("expected %s, got %s", want, got.Type)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	select {
	case got := <-alice:
		t.Fatalf("unexpected event for other user: %+v", got)
	default:
	}
	if users := bus.Users(); len(users) != 2 {
		t.Fatalf("expected two connected users, got %v", users)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe("1")
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
	if users := bus.Users(); len(users) != 0 {
		t.Fatalf("expected no users, got %v", users)
	}
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	ch, cancel := bus.Subscribe("1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for range 3 {
			bus.OnTabEvent(schema.TabEvent{UserID: "1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
	if got := len(ch); got != 1 {
		t.Fatalf("expected one buffered event, got %d", got)
	}
	bus.mu.Lock()
	dropped := bus.subs["1"][0].dropped
	bus.mu.Unlock()
	if dropped != 2 {
		t.Fatalf("expected 2 dropped events, got %d", dropped)
	}
}

func TestUnsubscribeRacesPublish(t *testing.T) {
	bus := New(nil)
	var wg sync.WaitGroup
	for i := range 20 {
		_, cancel := bus.Subscribe("1")
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.OnNotification(schema.NotificationEvent{UserID: "1", Notification: schema.Notification{ID: fmt.Sprint(i)}})
		}()
		go func() {
			defer wg.Done()
			cancel()
			cancel()
		}()
	}
	wg.Wait()
	if users := bus.Users(); len(users) != 0 {
		t.Fatalf("expected all subscribers gone, got %v", users)
	}
}
