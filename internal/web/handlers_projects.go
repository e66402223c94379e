package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/splitdeck/splitdeck/internal/project"
)

// handleProjects answers GET /api/projects with favorites first, then
// discovered projects by score. Workdirs of running panes count as active.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.discovery == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "project discovery not available")
		return
	}

	var activePaths []string
	if s.terminals != nil {
		for _, info := range s.terminals.List() {
			if info.Running && info.WorkDir != "" {
				activePaths = append(activePaths, info.WorkDir)
			}
		}
	}

	discovered, err := s.discovery.Discover(activePaths)
	if err != nil {
		log.Printf("[WEB] Project discovery failed: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "project discovery failed")
		return
	}

	var favorites []project.Favorite
	if s.favorites != nil {
		favorites, err = s.favorites.List()
		if err != nil {
			log.Printf("[WEB] Favorites read failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "favorites read failed")
			return
		}
	}

	projects := project.MergeCatalog(favorites, discovered)
	if projects == nil {
		projects = []project.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleFavorites covers POST /api/projects/favorites (add or update) and
// DELETE /api/projects/favorites?path=.
func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if s.favorites == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "favorites not available")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var fav project.Favorite
		if err := json.NewDecoder(r.Body).Decode(&fav); err != nil {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
			return
		}
		if err := s.favorites.Add(fav); err != nil {
			if errors.Is(err, project.ErrNotAbsolute) {
				writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "path must be absolute")
				return
			}
			log.Printf("[WEB] Favorite add failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "favorite add failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	case http.MethodDelete:
		path := r.URL.Query().Get("path")
		if path == "" {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "path parameter required")
			return
		}
		removed, err := s.favorites.Remove(path)
		if err != nil {
			log.Printf("[WEB] Favorite remove failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "favorite remove failed")
			return
		}
		if !removed {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown favorite")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}

// handleProjectUsed records a project launch for frecency scoring.
func (s *Server) handleProjectUsed(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodPost {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.discovery == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "project discovery not available")
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	if err := s.discovery.RecordUsage(req.Path); err != nil {
		log.Printf("[WEB] Usage record failed: %v", err)
		writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "usage record failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
