package web

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// handleScreenshots covers POST /api/screenshots (store a base64 PNG) and
// GET /api/screenshots (list, newest first).
func (s *Server) handleScreenshots(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if s.screenshots == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "screenshots not available")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			Filename string `json:"filename"`
			Data     string `json:"data"`
			PaneID   string `json:"paneId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Data == "" {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
			return
		}
		name, err := s.screenshots.Save(req.Filename, req.Data)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		log.Printf("[WEB] Screenshot stored: %s (pane %s)", name, req.PaneID)
		writeJSON(w, http.StatusOK, map[string]string{"name": name})

	case http.MethodGet:
		list, err := s.screenshots.List()
		if err != nil {
			log.Printf("[WEB] Screenshot list failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "screenshot list failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"screenshots": list})

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handleScreenshotByName serves (GET) or removes (DELETE) a single stored
// screenshot.
func (s *Server) handleScreenshotByName(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if s.screenshots == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "screenshots not available")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/screenshots/")

	switch r.Method {
	case http.MethodGet:
		path, ok := s.screenshots.Path(name)
		if !ok {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown screenshot")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		http.ServeFile(w, r, path)

	case http.MethodDelete:
		removed, err := s.screenshots.Delete(name)
		if err != nil {
			log.Printf("[WEB] Screenshot delete failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "screenshot delete failed")
			return
		}
		if !removed {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown screenshot")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}
