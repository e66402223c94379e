package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/splitdeck/splitdeck/internal/keys"
)

// handlePaneByID dispatches /api/panes/{id}/capture, /keys and /resize.
func (s *Server) handlePaneByID(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if s.terminals == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "terminals not available")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/panes/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown pane")
		return
	}
	paneID, action := parts[0], parts[1]

	if _, _, ok := s.layout.PaneContentByID(paneID); !ok {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown pane")
		return
	}

	switch {
	case r.Method == http.MethodGet && action == "capture":
		s.handlePaneCapture(w, r, paneID)
	case r.Method == http.MethodPost && action == "keys":
		s.handlePaneKeys(w, r, paneID)
	case r.Method == http.MethodPost && action == "resize":
		s.handlePaneResize(w, r, paneID)
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handlePaneCapture returns the pane's scrollback. ?plain=1 strips ANSI
// sequences, ?lines=n keeps only the trailing n lines. A pane that never
// started answers with empty text.
func (s *Server) handlePaneCapture(w http.ResponseWriter, r *http.Request, paneID string) {
	data, err := s.terminals.Capture(paneID)
	if err != nil {
		data = nil
	}
	text := string(data)
	if r.URL.Query().Get("plain") == "1" {
		text = ansi.Strip(text)
	}
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n := 0
		for _, ch := range raw {
			if ch < '0' || ch > '9' {
				writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "lines must be a non-negative integer")
				return
			}
			n = n*10 + int(ch-'0')
		}
		text = tailLines(text, n)
	}
	writeJSON(w, http.StatusOK, map[string]string{"paneId": paneID, "text": text})
}

// tailLines keeps the last n lines of text. A trailing newline does not
// count as an extra line.
func tailLines(text string, n int) string {
	if n <= 0 {
		return ""
	}
	trimmed := strings.TrimSuffix(text, "\n")
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= n {
		return text
	}
	out := strings.Join(lines[len(lines)-n:], "\n")
	if strings.HasSuffix(text, "\n") {
		out += "\n"
	}
	return out
}

func (s *Server) handlePaneKeys(w http.ResponseWriter, r *http.Request, paneID string) {
	var req struct {
		Steps []keys.Step `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	seq, err := keys.Expand(req.Steps)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_KEY", err.Error())
		return
	}
	if err := s.terminals.Write(paneID, seq); err != nil {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "no running instance for pane")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handlePaneResize(w http.ResponseWriter, r *http.Request, paneID string) {
	var req struct {
		Cols uint16 `json:"cols"`
		Rows uint16 `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	if req.Cols == 0 || req.Rows == 0 {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "cols and rows must be positive")
		return
	}
	if err := s.terminals.Resize(paneID, req.Cols, req.Rows); err != nil {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "no running instance for pane")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
