package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/splitdeck/splitdeck/internal/layout"
)

// tabsResponse is the workspace-level tab listing.
type tabsResponse struct {
	ActiveTab string       `json:"activeTab,omitempty"`
	Tabs      []layout.Tab `json:"tabs"`
}

// layoutOpResponse is the shared answer for layout mutations. Changed stays
// false when the target tab or pane did not resolve; the request still
// succeeds.
type layoutOpResponse struct {
	Changed   bool        `json:"changed"`
	Tab       *layout.Tab `json:"tab,omitempty"`
	NewPaneID string      `json:"newPaneId,omitempty"`
}

func (s *Server) tabsSnapshot() tabsResponse {
	return tabsResponse{ActiveTab: s.layout.ActiveTab(), Tabs: s.layout.Tabs()}
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.tabsSnapshot())

	case http.MethodPost:
		var req struct {
			Title   string              `json:"title"`
			Content *layout.PaneContent `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
			return
		}
		tab := s.layout.AddTab(req.Title)
		if req.Content != nil {
			s.layout.InitLayout(tab.ID, req.Content)
		}
		s.layout.SetActiveTab(tab.ID)
		s.broadcastTabs()
		s.layoutChanged(tab.ID)
		created, _ := s.layout.Tab(tab.ID)
		writeJSON(w, http.StatusOK, created)

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handleTabByID covers DELETE /api/tabs/{id} and POST /api/tabs/{id}/activate.
func (s *Server) handleTabByID(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/tabs/")
	parts := strings.SplitN(rest, "/", 2)
	tabID := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	if tabID == "" {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown tab")
		return
	}

	switch {
	case r.Method == http.MethodDelete && action == "":
		tab, ok := s.layout.Tab(tabID)
		if !ok {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown tab")
			return
		}
		paneIDs := layout.CollectPaneIDs(tab.Root)
		s.layout.CloseTab(tabID)
		if s.terminals != nil {
			for _, paneID := range paneIDs {
				_ = s.terminals.Close(paneID)
			}
		}
		s.saveWorkspace()
		s.broadcastTabs()
		if s.presence != nil {
			s.presence.Kick()
		}
		writeJSON(w, http.StatusOK, s.tabsSnapshot())

	case r.Method == http.MethodPost && action == "activate":
		if _, ok := s.layout.Tab(tabID); !ok {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown tab")
			return
		}
		// SetActiveTab reports false for the already-active tab; that is
		// still a successful request, just nothing to announce.
		if s.layout.SetActiveTab(tabID) {
			s.saveWorkspace()
			s.broadcastTabs()
			if s.presence != nil {
				s.presence.Kick()
			}
		}
		writeJSON(w, http.StatusOK, s.tabsSnapshot())

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handleLayoutGet answers GET /api/layout?tab= with one tab's pane tree. An
// empty tab parameter means the active tab.
func (s *Server) handleLayoutGet(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	tabID := r.URL.Query().Get("tab")
	if tabID == "" {
		tabID = s.layout.ActiveTab()
	}
	tab, ok := s.layout.Tab(tabID)
	if !ok {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown tab")
		return
	}
	writeJSON(w, http.StatusOK, tab)
}

// handleLayoutOp dispatches POST /api/layout/{init,split,close,active}.
// Mutations that do not resolve their target answer 200 with changed:false.
func (s *Server) handleLayoutOp(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	op := strings.TrimPrefix(r.URL.Path, "/api/layout/")

	var req struct {
		TabID     string              `json:"tabId"`
		PaneID    string              `json:"paneId"`
		Direction layout.Direction    `json:"direction"`
		Content   *layout.PaneContent `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	content := req.Content
	if content == nil {
		content = layout.TerminalContent(layout.ModeShell, "")
	}

	resp := layoutOpResponse{}
	switch op {
	case "init":
		resp.Changed = s.layout.InitLayout(req.TabID, content)

	case "split":
		if req.Direction != layout.Horizontal && req.Direction != layout.Vertical {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "direction must be horizontal or vertical")
			return
		}
		resp.NewPaneID, resp.Changed = s.layout.SplitPane(req.TabID, req.PaneID, req.Direction, content)

	case "close":
		resp.Changed = s.layout.ClosePane(req.TabID, req.PaneID)
		if resp.Changed && s.terminals != nil {
			_ = s.terminals.Close(req.PaneID)
		}

	case "active":
		resp.Changed = s.layout.SetActivePane(req.TabID, req.PaneID)

	default:
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown layout operation")
		return
	}

	if resp.Changed {
		s.layoutChanged(req.TabID)
	}
	if tab, ok := s.layout.Tab(req.TabID); ok {
		resp.Tab = &tab
	}
	writeJSON(w, http.StatusOK, resp)
}
