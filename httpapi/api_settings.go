package httpapi

import (
	"net/http"
	"strings"

	"pkt.systems/halolight/internal/pagemeta"
	"pkt.systems/halolight/schema"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	resp, err := s.service.GetSettings(r.Context(), schema.GetSettingsRequest{UserID: user.ID})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	var patch schema.UISettingsPatch
	if err := decodeRequest(w, r, &patch); err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp, err := s.service.UpdateSettings(r.Context(), schema.UpdateSettingsRequest{UserID: user.ID, Patch: patch})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request, user schema.User, _ string) {
	resp, err := s.service.ResetSettings(r.Context(), schema.ResetSettingsRequest{UserID: user.ID})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Page metadata and navigation are public: the login screens render them too.

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}
	normalized, err := schema.NormalizeTabPath(path)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	normalized, _, _ = strings.Cut(normalized, "?")
	writeJSON(w, http.StatusOK, s.pages.Generate(normalized, nil))
}

func (s *Server) handleNav(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"nav":      pagemeta.Nav(),
		"userMenu": pagemeta.UserMenu(),
	})
}
