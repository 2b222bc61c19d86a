package httpapi

import (
	"net/http"

	"pkt.systems/halolight/internal/logx"
	"pkt.systems/halolight/schema"
)

type addTabPayload struct {
	Title    string `json:"title"`
	Path     string `json:"path"`
	Closable *bool  `json:"closable,omitempty"`
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	resp, err := s.service.ListTabs(r.Context(), schema.ListTabsRequest{UserID: user.ID})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddTab(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	var payload addTabPayload
	if err := decodeRequest(w, r, &payload); err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp, err := s.service.AddTab(r.Context(), schema.AddTabRequest{
		UserID:   user.ID,
		Title:    payload.Title,
		Path:     payload.Path,
		Closable: payload.Closable,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.sessions.persist()
	logx.WithUserTab(r.Context(), user.ID, resp.Tab.ID).Debug("http tab added", "path", resp.Tab.Path, "created", resp.Created)
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleLookupTab(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	resp, err := s.service.GetTabByPath(r.Context(), schema.GetTabByPathRequest{
		UserID: user.ID,
		Path:   r.URL.Query().Get("path"),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTab(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	resp, err := s.service.GetTab(r.Context(), schema.GetTabRequest{
		UserID: user.ID,
		TabID:  schema.TabID(r.PathValue("id")),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateTab(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	var patch schema.TabPatch
	if err := decodeRequest(w, r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp, err := s.service.UpdateTab(r.Context(), schema.UpdateTabRequest{
		UserID: user.ID,
		TabID:  schema.TabID(r.PathValue("id")),
		Patch:  patch,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRemoveTab(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	tabID := schema.TabID(r.PathValue("id"))
	resp, err := s.service.RemoveTab(r.Context(), schema.RemoveTabRequest{UserID: user.ID, TabID: tabID})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.sessions.persist()
	logx.WithUserTab(r.Context(), user.ID, tabID).Debug("http tab closed", "active", resp.ActiveTab)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActivateTab(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	resp, err := s.service.ActivateTab(r.Context(), schema.ActivateTabRequest{
		UserID: user.ID,
		TabID:  schema.TabID(r.PathValue("id")),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if resp.Changed {
		s.sessions.persist()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearTabs(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	resp, err := s.service.ClearTabs(r.Context(), schema.ClearTabsRequest{UserID: user.ID})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.sessions.persist()
	writeJSON(w, http.StatusOK, resp)
}
