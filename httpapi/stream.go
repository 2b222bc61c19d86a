package httpapi

import (
	"context"
	"errors"
	"net/http"

	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/schema"
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.WithUser(r.Context(), user.ID)
	if s.metrics != nil {
		defer s.metrics.StreamOpened("sse")()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))

	// Subscribe before the snapshot so nothing published in between is lost.
	ch, unsubscribe, seq := s.hub.Subscribe(user.ID)
	defer unsubscribe()
	// An id ahead of the hub was issued before a restart; start over.
	if lastID > seq {
		log.Info("http stream resets stale event id", "last_id", lastID, "seq", seq)
		lastID = 0
	}

	snapshot := s.buildSnapshot(r.Context(), user.ID)
	_ = writeSSEvent(w, StreamEvent{
		Type:      streamSnapshot,
		Snapshot:  &snapshot,
		Timestamp: s.clock.Now(),
	})
	flusher.Flush()

	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(user.ID, lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
			lastID = event.Seq
		}
		flusher.Flush()
	}

	done := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", replayCount, "tabs", len(snapshot.Tabs))
	for {
		select {
		case <-done:
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Seq <= lastID {
				continue
			}
			if err := writeSSEvent(w, event); err != nil {
				log.Debug("http stream write failed", "err", err)
				return
			}
			flusher.Flush()
		}
	}
}

// buildSnapshot seeds a stream client with the tab bar and settings as the
// calling session sees them.
func (s *Server) buildSnapshot(ctx context.Context, userID schema.UserID) SnapshotPayload {
	payload := SnapshotPayload{Settings: schema.DefaultUISettings()}
	if resp, err := s.service.ListTabs(ctx, schema.ListTabsRequest{UserID: userID}); err == nil {
		payload.Tabs = resp.Tabs
		payload.ActiveTab = resp.ActiveTab
	} else {
		logx.WithUser(ctx, userID).Warn("http snapshot tabs failed", "err", err)
	}
	if resp, err := s.service.GetSettings(ctx, schema.GetSettingsRequest{UserID: userID}); err == nil {
		payload.Settings = resp.Settings
	}
	return payload
}
