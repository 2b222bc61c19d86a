package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/halolight/internal/eventbus"
	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/schema"
	"pkt.systems/pslog"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleWebSocket streams the same events as /api/stream over a WebSocket,
// fed by the event bus. Messages from the client are ignored; reading only
// detects the close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	log := logx.WithUser(r.Context(), user.ID)
	events, cancel := s.bus.Subscribe(user.ID)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("http websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	if s.metrics != nil {
		defer s.metrics.StreamOpened("ws")()
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	snapshot := s.buildSnapshot(r.Context(), user.ID)
	if err := s.writeWS(conn, StreamEvent{Type: streamSnapshot, Snapshot: &snapshot, Timestamp: s.clock.Now()}); err != nil {
		log.Debug("http websocket snapshot failed", "err", err)
		return
	}
	log.Info("http websocket opened", "tabs", len(snapshot.Tabs))

	ping := s.clock.NewTicker(wsPingPeriod)
	defer ping.Stop()
	var seq uint64
	for {
		select {
		case <-closed:
			log.Info("http websocket closed")
			return
		case <-r.Context().Done():
			return
		case <-ping.Chan():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logPumpEnd(log, err)
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			seq++
			out := streamEventFromBus(event)
			out.Seq = seq
			out.Timestamp = s.clock.Now()
			if err := s.writeWS(conn, out); err != nil {
				logPumpEnd(log, err)
				return
			}
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, event StreamEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}

func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func logPumpEnd(log pslog.Logger, err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	log.Debug("http websocket write failed", "err", err)
}

func streamEventFromBus(event eventbus.Event) StreamEvent {
	switch event.Type {
	case eventbus.EventTab:
		tab := event.Tab.Tab
		return StreamEvent{Type: streamTab, TabEvent: string(event.Tab.Type), Tab: &tab, ActiveTab: event.Tab.ActiveTab}
	case eventbus.EventSettings:
		settings := event.Settings.Settings
		return StreamEvent{Type: streamSettings, Settings: &settings}
	default:
		note := event.Notification.Notification
		return StreamEvent{Type: streamNotification, Notification: &note}
	}
}
