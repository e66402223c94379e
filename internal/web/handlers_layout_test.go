package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/splitdeck/splitdeck/internal/layout"
)

func decodeBody(t *testing.T, body string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(body), v); err != nil {
		t.Fatalf("decode response %q: %v", body, err)
	}
}

func TestTabsLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// Create a tab with an initial terminal layout.
	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/tabs",
		strings.NewReader(`{"title":"work","content":{"kind":"terminal","mode":"shell"}}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("create tab: expected %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var created layout.Tab
	decodeBody(t, rr.Body.String(), &created)
	if created.ID == "" || created.Title != "work" {
		t.Fatalf("unexpected created tab: %+v", created)
	}
	if created.Root == nil || created.ActivePane == "" {
		t.Fatalf("expected initialized layout, got: %+v", created)
	}

	// The listing shows it as active.
	rr = doRequest(srv, authedRequest(http.MethodGet, "/api/tabs", nil))
	var listing tabsResponse
	decodeBody(t, rr.Body.String(), &listing)
	if len(listing.Tabs) != 1 || listing.ActiveTab != created.ID {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	// A second tab takes over as active; activate flips back.
	rr = doRequest(srv, authedRequest(http.MethodPost, "/api/tabs", strings.NewReader(`{"title":"scratch"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("create second tab: got %d", rr.Code)
	}
	rr = doRequest(srv, authedRequest(http.MethodPost, "/api/tabs/"+created.ID+"/activate", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("activate: got %d: %s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr.Body.String(), &listing)
	if listing.ActiveTab != created.ID {
		t.Fatalf("expected %s active, got %s", created.ID, listing.ActiveTab)
	}

	// Delete the second tab.
	var second layout.Tab
	for _, tab := range listing.Tabs {
		if tab.ID != created.ID {
			second = tab
		}
	}
	rr = doRequest(srv, authedRequest(http.MethodDelete, "/api/tabs/"+second.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("delete tab: got %d", rr.Code)
	}
	decodeBody(t, rr.Body.String(), &listing)
	if len(listing.Tabs) != 1 {
		t.Fatalf("expected one tab left, got %d", len(listing.Tabs))
	}
}

func TestTabActivateUnknownIs404(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/tabs/nope/activate", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "NOT_FOUND") {
		t.Fatalf("expected NOT_FOUND code, got: %s", rr.Body.String())
	}
}

func TestTabDeleteUnknownIs404(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(srv, authedRequest(http.MethodDelete, "/api/tabs/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestTabsMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/tabs", strings.NewReader(`{`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "INVALID_REQUEST") {
		t.Fatalf("expected INVALID_REQUEST code, got: %s", rr.Body.String())
	}
}

func TestLayoutGet(t *testing.T) {
	srv := newTestServer(t)
	tab := srv.layout.AddTab("work")
	srv.layout.InitLayout(tab.ID, layout.TerminalContent(layout.ModeClaude, "sess-1"))

	// Explicit tab parameter.
	rr := doRequest(srv, authedRequest(http.MethodGet, "/api/layout?tab="+tab.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rr.Code)
	}
	var got layout.Tab
	decodeBody(t, rr.Body.String(), &got)
	if got.Root == nil || got.Root.Content == nil || got.Root.Content.Mode != layout.ModeClaude {
		t.Fatalf("unexpected layout: %s", rr.Body.String())
	}

	// Empty parameter means the active tab.
	srv.layout.SetActiveTab(tab.ID)
	rr = doRequest(srv, authedRequest(http.MethodGet, "/api/layout", nil))
	decodeBody(t, rr.Body.String(), &got)
	if got.ID != tab.ID {
		t.Fatalf("expected active tab %s, got %s", tab.ID, got.ID)
	}

	rr = doRequest(srv, authedRequest(http.MethodGet, "/api/layout?tab=nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected %d for unknown tab, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestLayoutSplitAndClose(t *testing.T) {
	srv := newTestServer(t)
	tab := srv.layout.AddTab("work")
	srv.layout.InitLayout(tab.ID, layout.TerminalContent(layout.ModeShell, ""))
	initial, _ := srv.layout.Tab(tab.ID)

	body := fmt.Sprintf(`{"tabId":%q,"paneId":%q,"direction":"vertical"}`, tab.ID, initial.ActivePane)
	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/layout/split", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("split: expected %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp layoutOpResponse
	decodeBody(t, rr.Body.String(), &resp)
	if !resp.Changed || resp.NewPaneID == "" {
		t.Fatalf("expected a split, got: %+v", resp)
	}
	if resp.Tab == nil || resp.Tab.Root == nil || len(resp.Tab.Root.Children) != 2 {
		t.Fatalf("expected two children after split, got: %s", rr.Body.String())
	}
	if resp.Tab.Root.Direction != layout.Vertical {
		t.Fatalf("expected vertical split, got %s", resp.Tab.Root.Direction)
	}

	body = fmt.Sprintf(`{"tabId":%q,"paneId":%q}`, tab.ID, resp.NewPaneID)
	rr = doRequest(srv, authedRequest(http.MethodPost, "/api/layout/close", strings.NewReader(body)))
	resp = layoutOpResponse{}
	decodeBody(t, rr.Body.String(), &resp)
	if !resp.Changed {
		t.Fatalf("expected close to change the tree, got: %+v", resp)
	}
	if resp.Tab.Root == nil || !resp.Tab.Root.IsLeaf() {
		t.Fatalf("expected tree collapsed to a leaf, got: %s", rr.Body.String())
	}
}

func TestLayoutSplitUnresolvedTargetIsSilent(t *testing.T) {
	srv := newTestServer(t)
	tab := srv.layout.AddTab("work")
	srv.layout.InitLayout(tab.ID, layout.TerminalContent(layout.ModeShell, ""))

	body := fmt.Sprintf(`{"tabId":%q,"paneId":"nope","direction":"horizontal"}`, tab.ID)
	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/layout/split", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, rr.Code)
	}
	var resp layoutOpResponse
	decodeBody(t, rr.Body.String(), &resp)
	if resp.Changed {
		t.Fatalf("expected changed=false for unknown pane, got: %+v", resp)
	}
}

func TestLayoutSplitBadDirection(t *testing.T) {
	srv := newTestServer(t)

	body := `{"tabId":"t","paneId":"p","direction":"diagonal"}`
	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/layout/split", strings.NewReader(body)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestLayoutInitDefaultsToShell(t *testing.T) {
	srv := newTestServer(t)
	tab := srv.layout.AddTab("work")

	body := fmt.Sprintf(`{"tabId":%q}`, tab.ID)
	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/layout/init", strings.NewReader(body)))
	var resp layoutOpResponse
	decodeBody(t, rr.Body.String(), &resp)
	if !resp.Changed {
		t.Fatalf("expected init to apply, got: %+v", resp)
	}
	if resp.Tab.Root.Content == nil || resp.Tab.Root.Content.Mode != layout.ModeShell {
		t.Fatalf("expected default shell content, got: %s", rr.Body.String())
	}
}

func TestLayoutActivePane(t *testing.T) {
	srv := newTestServer(t)
	tab := srv.layout.AddTab("work")
	srv.layout.InitLayout(tab.ID, layout.TerminalContent(layout.ModeShell, ""))
	initial, _ := srv.layout.Tab(tab.ID)
	newPane, _ := srv.layout.SplitPane(tab.ID, initial.ActivePane, layout.Horizontal, layout.TerminalContent(layout.ModeShell, ""))

	body := fmt.Sprintf(`{"tabId":%q,"paneId":%q}`, tab.ID, newPane)
	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/layout/active", strings.NewReader(body)))
	var resp layoutOpResponse
	decodeBody(t, rr.Body.String(), &resp)
	if !resp.Changed || resp.Tab.ActivePane != newPane {
		t.Fatalf("expected active pane %s, got: %+v", newPane, resp)
	}
}

func TestLayoutUnknownOperation(t *testing.T) {
	srv := newTestServer(t)

	rr := doRequest(srv, authedRequest(http.MethodPost, "/api/layout/rotate", strings.NewReader(`{}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected %d, got %d", http.StatusNotFound, rr.Code)
	}
}
