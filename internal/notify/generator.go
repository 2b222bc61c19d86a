// Package notify produces the mock real-time notifications shown in the
// shell's notification bell.
package notify

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

// Sink receives generated notifications.
type Sink interface {
	OnNotification(event schema.NotificationEvent)
}

// Random is the subset of *rand.Rand the generator draws from.
type Random interface {
	Float64() float64
	IntN(n int) int
}

// Options configures a Generator.
type Options struct {
	Interval    time.Duration
	Probability float64
	Clock       clockwork.Clock
	Rand        Random
	// Recipients lists the users that currently have a stream open.
	Recipients func() []schema.UserID
	Sink       Sink
	Logger     pslog.Logger
}

// Generator rolls the dice once per interval and, on a hit, sends every
// connected user a notification picked from a fixed set of templates.
type Generator struct {
	opts Options
}

var newUserNames = []string{"张三", "李四", "王五", "赵六"}

// New returns a generator. Interval defaults to 10s.
func New(opts Options) *Generator {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return &Generator{opts: opts}
}

// Run ticks until ctx is done.
func (g *Generator) Run(ctx context.Context) error {
	log := g.logger(ctx)
	ticker := g.opts.Clock.NewTicker(g.opts.Interval)
	defer ticker.Stop()
	log.Info("notify generator started", "interval", g.opts.Interval, "probability", g.opts.Probability)
	for {
		select {
		case <-ctx.Done():
			log.Info("notify generator stopped")
			return nil
		case <-ticker.Chan():
			sent := g.Tick()
			if sent > 0 {
				log.Debug("notify generator sent", "recipients", sent)
			}
		}
	}
}

// Tick performs one roll and returns the number of users notified.
func (g *Generator) Tick() int {
	if g.opts.Sink == nil || g.opts.Recipients == nil {
		return 0
	}
	if g.opts.Rand.Float64() >= g.opts.Probability {
		return 0
	}
	recipients := g.opts.Recipients()
	if len(recipients) == 0 {
		return 0
	}
	note := g.Next()
	for _, userID := range recipients {
		g.opts.Sink.OnNotification(schema.NotificationEvent{UserID: userID, Notification: note})
	}
	return len(recipients)
}

// Next builds a random notification stamped with the generator clock.
func (g *Generator) Next() schema.Notification {
	note := schema.Notification{
		ID:        "ws-" + uuid.NewString(),
		CreatedAt: g.opts.Clock.Now().UTC(),
	}
	switch g.opts.Rand.IntN(4) {
	case 0:
		note.Type = schema.NotificationUser
		note.Title = "新用户注册"
		note.Content = "用户 " + newUserNames[g.opts.Rand.IntN(len(newUserNames))] + " 刚刚完成注册"
		note.Link = "/users"
	case 1:
		note.Type = schema.NotificationSystem
		note.Title = "系统通知"
		note.Content = "数据备份已完成"
	case 2:
		note.Type = schema.NotificationTask
		note.Title = "任务更新"
		note.Content = "您有一个新任务待处理"
		note.Link = "/notifications"
	default:
		note.Type = schema.NotificationAlert
		note.Title = "安全提醒"
		note.Content = "检测到异常登录尝试"
	}
	return note
}

func (g *Generator) logger(ctx context.Context) pslog.Logger {
	if g.opts.Logger != nil {
		return g.opts.Logger
	}
	return pslog.Ctx(ctx)
}
