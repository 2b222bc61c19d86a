package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"pkt.systems/halolight/schema"
)

type scriptedRand struct {
	floats []float64
	ints   []int
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 1
	}
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

func (r *scriptedRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0] % n
	r.ints = r.ints[1:]
	return v
}

type recordingSink struct {
	mu     sync.Mutex
	events []schema.NotificationEvent
	notify chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 16)}
}

func (s *recordingSink) OnNotification(event schema.NotificationEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.notify <- struct{}{}
}

func (s *recordingSink) snapshot() []schema.NotificationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.NotificationEvent(nil), s.events...)
}

func TestTickHonorsProbability(t *testing.T) {
	sink := newRecordingSink()
	gen := New(Options{
		Probability: 0.2,
		Clock:       clockwork.NewFakeClock(),
		Rand:        &scriptedRand{floats: []float64{0.5, 0.1}, ints: []int{1}},
		Recipients:  func() []schema.UserID { return []schema.UserID{"1", "2"} },
		Sink:        sink,
	})
	if sent := gen.Tick(); sent != 0 {
		t.Fatalf("expected miss at 0.5, sent %d", sent)
	}
	if sent := gen.Tick(); sent != 2 {
		t.Fatalf("expected both users notified, sent %d", sent)
	}
	events := sink.snapshot()
	if events[0].UserID != "1" || events[1].UserID != "2" {
		t.Fatalf("unexpected recipients %+v", events)
	}
	note := events[0].Notification
	if note.Type != schema.NotificationSystem || note.Title != "系统通知" || note.Content != "数据备份已完成" {
		t.Fatalf("unexpected notification %+v", note)
	}
	if note.Read || !strings.HasPrefix(note.ID, "ws-") {
		t.Fatalf("unexpected notification state %+v", note)
	}
	if events[1].Notification.ID != note.ID {
		t.Fatalf("recipients should share one notification")
	}
}

func TestNextTemplates(t *testing.T) {
	gen := New(Options{Clock: clockwork.NewFakeClock(), Rand: &scriptedRand{ints: []int{0, 2, 3, 2, 3}}})
	user := gen.Next()
	if user.Type != schema.NotificationUser || user.Content != "用户 王五 刚刚完成注册" || user.Link != "/users" {
		t.Fatalf("unexpected user notification %+v", user)
	}
	alert := gen.Next()
	if alert.Type != schema.NotificationAlert || alert.Title != "安全提醒" {
		t.Fatalf("unexpected alert %+v", alert)
	}
	task := gen.Next()
	if task.Type != schema.NotificationTask || task.Title != "任务更新" {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestTickWithoutRecipients(t *testing.T) {
	sink := newRecordingSink()
	gen := New(Options{
		Probability: 1,
		Rand:        &scriptedRand{floats: []float64{0}},
		Recipients:  func() []schema.UserID { return nil },
		Sink:        sink,
	})
	if sent := gen.Tick(); sent != 0 {
		t.Fatalf("expected nothing sent, got %d", sent)
	}
}

func TestRunTicksOnClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sink := newRecordingSink()
	gen := New(Options{
		Interval:    10 * time.Second,
		Probability: 1,
		Clock:       clock,
		Rand:        &scriptedRand{floats: []float64{0, 0}},
		Recipients:  func() []schema.UserID { return []schema.UserID{"1"} },
		Sink:        sink,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gen.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := clock.BlockUntilContext(waitCtx, 1); err != nil {
		t.Fatalf("ticker not armed: %v", err)
	}
	clock.Advance(10 * time.Second)
	select {
	case <-sink.notify:
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification after one interval")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("generator did not stop")
	}
}
