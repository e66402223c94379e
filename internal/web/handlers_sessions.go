package web

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/splitdeck/splitdeck/internal/history"
	"github.com/splitdeck/splitdeck/internal/layout"
)

// handleSessionsHello answers with the prioritized session-id record for the
// current workspace.
func (s *Server) handleSessionsHello(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, layout.SessionsForHello(s.layout.Snapshot()))
}

// handleHistoryList answers GET /api/sessions/history?provider=&limit= and
// POST /api/sessions/history/import when the path carries no id.
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if s.history == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "session history not available")
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}

	provider := r.URL.Query().Get("provider")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.history.List(provider, limit)
	if err != nil {
		log.Printf("[WEB] History list failed: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "history list failed")
		return
	}
	if entries == nil {
		entries = []*history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": entries})
}

// handleHistoryByID covers POST /api/sessions/history/import and
// DELETE /api/sessions/history/{id}.
func (s *Server) handleHistoryByID(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if s.history == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "session history not available")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/history/")

	switch {
	case r.Method == http.MethodPost && rest == "import":
		s.handleHistoryImport(w)

	case r.Method == http.MethodDelete && rest != "":
		if _, err := s.history.Get(rest); err != nil {
			if errors.Is(err, history.ErrNotFound) {
				writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown session")
				return
			}
			log.Printf("[WEB] History lookup failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "history lookup failed")
			return
		}
		if err := s.history.Delete(rest); err != nil {
			log.Printf("[WEB] History delete failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "history delete failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handleHistoryImport scans the provider transcript directories and records
// sessions the store has not seen yet.
func (s *Server) handleHistoryImport(w http.ResponseWriter) {
	home, err := os.UserHomeDir()
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "home directory unavailable")
		return
	}

	added := 0
	n, err := s.history.ImportClaude(filepath.Join(home, ".claude", "projects"))
	if err != nil {
		log.Printf("[WEB] Claude import failed: %v", err)
	}
	added += n
	n, err = s.history.ImportGemini(filepath.Join(home, ".gemini", "tmp"))
	if err != nil {
		log.Printf("[WEB] Gemini import failed: %v", err)
	}
	added += n

	log.Printf("[WEB] History import added %d sessions", added)
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}
