package web

import (
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/splitdeck/splitdeck/internal/history"
	"github.com/splitdeck/splitdeck/internal/layout"
)

func newTestServerWithHistory(t *testing.T) *Server {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := NewServer(Config{
		ListenAddr: "127.0.0.1:0",
		Profile:    "test",
		Token:      testToken,
		History:    store,
	})
	t.Cleanup(srv.Close)
	return srv
}

func seedSession(t *testing.T, srv *Server, id, provider string, lastActive time.Time) {
	t.Helper()
	err := srv.history.Record(&history.Entry{
		SessionID:  id,
		Provider:   provider,
		Title:      "session " + id,
		LastActive: lastActive,
	})
	if err != nil {
		t.Fatalf("record %s: %v", id, err)
	}
}

func TestSessionsHelloEmptyWorkspace(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(srv, authedRequest(http.MethodGet, "/api/sessions/hello", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rr.Code)
	}
	if body := strings.TrimSpace(rr.Body.String()); body != "{}" {
		t.Fatalf("expected empty record, got: %s", body)
	}
}

func TestSessionsHelloPartitions(t *testing.T) {
	srv := newTestServer(t)

	tab := srv.layout.AddTab("work")
	srv.layout.InitLayout(tab.ID, layout.TerminalContent(layout.ModeClaude, "sess-active"))
	srv.layout.SetActiveTab(tab.ID)

	background := srv.layout.AddTab("other")
	srv.layout.InitLayout(background.ID, layout.TerminalContent(layout.ModeCodex, "sess-bg"))
	srv.layout.SetActiveTab(tab.ID)

	rr := doRequest(srv, authedRequest(http.MethodGet, "/api/sessions/hello", nil))
	body := rr.Body.String()
	if !strings.Contains(body, `"active":"sess-active"`) {
		t.Fatalf("expected active session, got: %s", body)
	}
	if !strings.Contains(body, `"background":["sess-bg"]`) {
		t.Fatalf("expected background session, got: %s", body)
	}
}

func TestHistoryListAndFilter(t *testing.T) {
	srv := newTestServerWithHistory(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedSession(t, srv, "s1", "claude", base.Add(2*time.Hour))
	seedSession(t, srv, "s2", "codex", base.Add(time.Hour))
	seedSession(t, srv, "s3", "claude", base)

	rr := doRequest(srv, authedRequest(http.MethodGet, "/api/sessions/history", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rr.Code)
	}
	var listing struct {
		Sessions []*history.Entry `json:"sessions"`
	}
	decodeBody(t, rr.Body.String(), &listing)
	if len(listing.Sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(listing.Sessions))
	}
	if listing.Sessions[0].SessionID != "s1" {
		t.Fatalf("expected most recent first, got %s", listing.Sessions[0].SessionID)
	}

	rr = doRequest(srv, authedRequest(http.MethodGet, "/api/sessions/history?provider=claude&limit=1", nil))
	decodeBody(t, rr.Body.String(), &listing)
	if len(listing.Sessions) != 1 || listing.Sessions[0].Provider != "claude" {
		t.Fatalf("unexpected filtered listing: %s", rr.Body.String())
	}
}

func TestHistoryListEmptyIsArray(t *testing.T) {
	srv := newTestServerWithHistory(t)

	rr := doRequest(srv, authedRequest(http.MethodGet, "/api/sessions/history", nil))
	if !strings.Contains(rr.Body.String(), `"sessions":[]`) {
		t.Fatalf("expected empty array, got: %s", rr.Body.String())
	}
}

func TestHistoryListBadLimit(t *testing.T) {
	srv := newTestServerWithHistory(t)

	rr := doRequest(srv, authedRequest(http.MethodGet, "/api/sessions/history?limit=banana", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestHistoryListWithoutStoreIs503(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(srv, authedRequest(http.MethodGet, "/api/sessions/history", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected %d, got %d", http.StatusServiceUnavailable, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "SERVICE_UNAVAILABLE") {
		t.Fatalf("expected SERVICE_UNAVAILABLE code, got: %s", rr.Body.String())
	}
}

func TestHistoryDelete(t *testing.T) {
	srv := newTestServerWithHistory(t)
	seedSession(t, srv, "s1", "claude", time.Now())

	rr := doRequest(srv, authedRequest(http.MethodDelete, "/api/sessions/history/s1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = doRequest(srv, authedRequest(http.MethodDelete, "/api/sessions/history/s1", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected %d for deleted session, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestHistoryImportEmptyHome(t *testing.T) {
	srv := newTestServerWithHistory(t)
	t.Setenv("HOME", t.TempDir())

	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/sessions/history/import", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"added":0`) {
		t.Fatalf("expected zero imports, got: %s", rr.Body.String())
	}
}
