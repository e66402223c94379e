package web

import (
	"encoding/json"
	"log"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// handlePushKey hands the VAPID public key to the client so it can create a
// browser push subscription.
func (s *Server) handlePushKey(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		return
	}
	if s.notifier == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "push not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": s.notifier.PublicKey()})
}

// handlePushSubscribe stores (POST) or removes (DELETE) a browser push
// subscription. The POST body is the PushSubscription JSON the browser
// produces; DELETE needs only the endpoint.
func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeRequest(r) {
		writeAPIError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	if s.pushStore == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "push not available")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var sub webpush.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed subscription")
			return
		}
		if err := s.pushStore.Save(&sub); err != nil {
			log.Printf("[WEB] Subscription save failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "subscription save failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	case http.MethodDelete:
		var req struct {
			Endpoint string `json:"endpoint"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Endpoint == "" {
			writeAPIError(w, http.StatusBadRequest, "INVALID_REQUEST", "endpoint required")
			return
		}
		removed, err := s.pushStore.Remove(req.Endpoint)
		if err != nil {
			log.Printf("[WEB] Subscription remove failed: %v", err)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "subscription remove failed")
			return
		}
		if !removed {
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "unknown subscription")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	}
}
