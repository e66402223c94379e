package layout

import (
	"fmt"
	"testing"
	"time"
)

func newTestStore() *Store {
	s := NewStore()
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("id-%02d", n)
	}
	s.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestAddTab_FirstBecomesActive(t *testing.T) {
	s := newTestStore()

	first := s.AddTab("work")
	second := s.AddTab("scratch")

	if s.ActiveTab() != first.ID {
		t.Errorf("active tab = %q, want first tab %q", s.ActiveTab(), first.ID)
	}
	tabs := s.Tabs()
	if len(tabs) != 2 || tabs[0].ID != first.ID || tabs[1].ID != second.ID {
		t.Errorf("unexpected tab order: %+v", tabs)
	}
	if first.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCloseTab_ActivatesPrevious(t *testing.T) {
	s := newTestStore()
	t1 := s.AddTab("one")
	t2 := s.AddTab("two")
	t3 := s.AddTab("three")

	s.SetActiveTab(t2.ID)
	if !s.CloseTab(t2.ID) {
		t.Fatal("CloseTab returned false for an existing tab")
	}
	if s.ActiveTab() != t1.ID {
		t.Errorf("active tab after closing middle = %q, want %q", s.ActiveTab(), t1.ID)
	}

	s.SetActiveTab(t1.ID)
	s.CloseTab(t1.ID)
	if s.ActiveTab() != t3.ID {
		t.Errorf("active tab after closing first = %q, want %q", s.ActiveTab(), t3.ID)
	}

	s.CloseTab(t3.ID)
	if s.ActiveTab() != "" {
		t.Errorf("active tab after closing last = %q, want empty", s.ActiveTab())
	}
	if s.CloseTab("missing") {
		t.Error("CloseTab on unknown id should report no change")
	}
}

func TestInitLayout_Idempotent(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")

	if !s.InitLayout(tab.ID, TerminalContent(ModeClaude, "s1")) {
		t.Fatal("first InitLayout should create the layout")
	}
	got, _ := s.Tab(tab.ID)
	if got.Root == nil || !got.Root.IsLeaf() {
		t.Fatalf("expected a root leaf, got %+v", got.Root)
	}
	if got.ActivePane != got.Root.ID {
		t.Errorf("active pane = %q, want root leaf %q", got.ActivePane, got.Root.ID)
	}
	rootID := got.Root.ID

	if s.InitLayout(tab.ID, TerminalContent(ModeShell, "")) {
		t.Error("second InitLayout should be a no-op")
	}
	again, _ := s.Tab(tab.ID)
	if again.Root.ID != rootID || again.Root.Content.Mode != ModeClaude {
		t.Errorf("second InitLayout mutated the tree: %+v", again.Root)
	}

	if s.InitLayout("missing", TerminalContent(ModeShell, "")) {
		t.Error("InitLayout on unknown tab should be a no-op")
	}
}

func TestSplitPane_OriginalStaysFirst(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeClaude, "s1"))

	before, _ := s.Tab(tab.ID)
	originalID := before.Root.ID

	newID, changed := s.SplitPane(tab.ID, originalID, Horizontal, TerminalContent(ModeShell, ""))
	if !changed || newID == "" {
		t.Fatalf("SplitPane = (%q, %v), want a new id and changed", newID, changed)
	}

	got, _ := s.Tab(tab.ID)
	root := got.Root
	if root.IsLeaf() || root.Direction != Horizontal {
		t.Fatalf("root should be a horizontal split, got %+v", root)
	}
	if root.ID == originalID {
		t.Error("the split node must get a fresh id, not reuse the original pane's")
	}

	first, second := root.Children[0], root.Children[1]
	if first.ID != originalID {
		t.Errorf("original pane should stay first: got %q, want %q", first.ID, originalID)
	}
	if first.Content.Mode != ModeClaude || first.Content.ResumeSessionID != "s1" {
		t.Errorf("original content not preserved: %+v", first.Content)
	}
	if second.ID != newID || second.Content.Mode != ModeShell {
		t.Errorf("new pane should land second with the new content: %+v", second)
	}

	ids := CollectSessionIDs(root)
	if len(ids) != 1 || ids[0] != "s1" {
		t.Errorf("CollectSessionIDs after split = %v, want [s1]", ids)
	}

	if got.ActivePane != originalID {
		t.Errorf("split must not steal the active pane: got %q", got.ActivePane)
	}
}

func TestSplitPane_NestedTarget(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeShell, ""))
	before, _ := s.Tab(tab.ID)
	p1 := before.Root.ID

	p2, _ := s.SplitPane(tab.ID, p1, Horizontal, TerminalContent(ModeCodex, "s2"))
	p3, changed := s.SplitPane(tab.ID, p2, Vertical, BrowserContent("https://example.com"))
	if !changed {
		t.Fatal("nested split should change the tree")
	}

	got, _ := s.Tab(tab.ID)
	right := got.Root.Children[1]
	if right.IsLeaf() || right.Direction != Vertical {
		t.Fatalf("right child should be a vertical split, got %+v", right)
	}
	if right.Children[0].ID != p2 || right.Children[1].ID != p3 {
		t.Errorf("nested split children = [%q %q], want [%q %q]",
			right.Children[0].ID, right.Children[1].ID, p2, p3)
	}
	if err := Validate(got.Root); err != nil {
		t.Errorf("tree invalid after nested split: %v", err)
	}
}

func TestSplitPane_SilentNoOps(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeShell, ""))
	before, _ := s.Tab(tab.ID)
	p1 := before.Root.ID
	s.SplitPane(tab.ID, p1, Horizontal, TerminalContent(ModeShell, ""))
	mid, _ := s.Tab(tab.ID)
	splitID := mid.Root.ID

	tests := []struct {
		name      string
		tabID     string
		paneID    string
		direction Direction
	}{
		{"unknown tab", "missing", p1, Horizontal},
		{"unknown pane", tab.ID, "missing", Horizontal},
		{"split node target", tab.ID, splitID, Horizontal},
		{"bad direction", tab.ID, p1, Direction("diagonal")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, changed := s.SplitPane(tt.tabID, tt.paneID, tt.direction, TerminalContent(ModeShell, ""))
			if changed || id != "" {
				t.Errorf("SplitPane = (%q, %v), want silent no-op", id, changed)
			}
			after, _ := s.Tab(tab.ID)
			if err := Validate(after.Root); err != nil {
				t.Errorf("tree invalid after no-op: %v", err)
			}
			if len(after.Root.Children) != 2 {
				t.Errorf("no-op mutated the tree: %+v", after.Root)
			}
		})
	}
}

func TestClosePane_RootLeaf(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeShell, ""))
	got, _ := s.Tab(tab.ID)

	if !s.ClosePane(tab.ID, got.Root.ID) {
		t.Fatal("closing the root leaf should succeed")
	}
	after, _ := s.Tab(tab.ID)
	if after.Root != nil || after.ActivePane != "" {
		t.Errorf("closing the root leaf should empty the layout: %+v", after)
	}
}

func TestClosePane_PromotesSibling(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeClaude, "s1"))
	before, _ := s.Tab(tab.ID)
	p1 := before.Root.ID
	p2, _ := s.SplitPane(tab.ID, p1, Horizontal, TerminalContent(ModeShell, ""))
	s.SetActivePane(tab.ID, p2)

	if !s.ClosePane(tab.ID, p2) {
		t.Fatal("ClosePane returned false for an existing leaf")
	}
	after, _ := s.Tab(tab.ID)
	if !after.Root.IsLeaf() || after.Root.ID != p1 {
		t.Errorf("sibling should be promoted to root: %+v", after.Root)
	}
	if after.Root.Content.Mode != ModeClaude || after.Root.Content.ResumeSessionID != "s1" {
		t.Errorf("promoted content wrong: %+v", after.Root.Content)
	}
	if after.ActivePane != p1 {
		t.Errorf("active pane should repair to the promoted leaf %q, got %q", p1, after.ActivePane)
	}
}

func TestClosePane_DeepPromotion(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeShell, ""))
	snap, _ := s.Tab(tab.ID)
	p1 := snap.Root.ID
	p2, _ := s.SplitPane(tab.ID, p1, Horizontal, TerminalContent(ModeCodex, "s2"))
	p3, _ := s.SplitPane(tab.ID, p2, Vertical, TerminalContent(ModeGemini, "s3"))
	s.SetActivePane(tab.ID, p2)

	// Closing p2 collapses the right split; its sibling subtree (p3)
	// takes the slot and p3 becomes active.
	if !s.ClosePane(tab.ID, p2) {
		t.Fatal("ClosePane returned false")
	}
	after, _ := s.Tab(tab.ID)
	if err := Validate(after.Root); err != nil {
		t.Fatalf("tree invalid after close: %v", err)
	}
	right := after.Root.Children[1]
	if !right.IsLeaf() || right.ID != p3 {
		t.Errorf("right slot should hold the promoted leaf %q: %+v", p3, right)
	}
	if after.ActivePane != p3 {
		t.Errorf("active pane = %q, want promoted leaf %q", after.ActivePane, p3)
	}

	ids := CollectSessionIDs(after.Root)
	if len(ids) != 1 || ids[0] != "s3" {
		t.Errorf("CollectSessionIDs = %v, want [s3]", ids)
	}
}

func TestClosePane_NoOps(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeShell, ""))
	snap, _ := s.Tab(tab.ID)
	p1 := snap.Root.ID
	s.SplitPane(tab.ID, p1, Horizontal, TerminalContent(ModeShell, ""))
	mid, _ := s.Tab(tab.ID)
	rootSplit := mid.Root.ID

	if s.ClosePane(tab.ID, rootSplit) {
		t.Error("closing a split node should be a no-op")
	}
	if s.ClosePane(tab.ID, "missing") {
		t.Error("closing an unknown pane should be a no-op")
	}
	if s.ClosePane("missing", p1) {
		t.Error("closing in an unknown tab should be a no-op")
	}
}

func TestSetActivePane(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeShell, ""))
	snap, _ := s.Tab(tab.ID)
	p1 := snap.Root.ID
	p2, _ := s.SplitPane(tab.ID, p1, Vertical, TerminalContent(ModeShell, ""))
	mid, _ := s.Tab(tab.ID)
	splitID := mid.Root.ID

	if !s.SetActivePane(tab.ID, p2) {
		t.Error("activating an existing leaf should succeed")
	}
	if s.SetActivePane(tab.ID, p2) {
		t.Error("re-activating the active pane should report no change")
	}
	if s.SetActivePane(tab.ID, splitID) {
		t.Error("a split node must not become the active pane")
	}
	if s.SetActivePane(tab.ID, "missing") {
		t.Error("an unknown pane must not become the active pane")
	}

	got, _ := s.Tab(tab.ID)
	if got.ActivePane != p2 {
		t.Errorf("active pane = %q, want %q", got.ActivePane, p2)
	}
}

func TestPaneContentByID(t *testing.T) {
	s := newTestStore()
	t1 := s.AddTab("one")
	t2 := s.AddTab("two")
	s.InitLayout(t1.ID, TerminalContent(ModeShell, ""))
	s.InitLayout(t2.ID, TerminalContent(ModeClaude, "s9"))
	snap, _ := s.Tab(t2.ID)

	tabID, content, ok := s.PaneContentByID(snap.Root.ID)
	if !ok || tabID != t2.ID {
		t.Fatalf("PaneContentByID = (%q, _, %v), want tab %q", tabID, ok, t2.ID)
	}
	if content.ResumeSessionID != "s9" {
		t.Errorf("content = %+v", content)
	}

	// Returned content is a copy.
	content.ResumeSessionID = "mutated"
	again, _ := s.Tab(t2.ID)
	if again.Root.Content.ResumeSessionID != "s9" {
		t.Error("PaneContentByID leaked a live pointer into the store")
	}

	if _, _, ok := s.PaneContentByID("missing"); ok {
		t.Error("unknown pane id should not resolve")
	}
}

func TestSnapshot_DeepCopy(t *testing.T) {
	s := newTestStore()
	tab := s.AddTab("work")
	s.InitLayout(tab.ID, TerminalContent(ModeClaude, "s1"))

	snap := s.Snapshot()
	snap.Tabs[0].Root.Content.ResumeSessionID = "mutated"
	snap.Tabs[0].Title = "mutated"

	got, _ := s.Tab(tab.ID)
	if got.Root.Content.ResumeSessionID != "s1" || got.Title != "work" {
		t.Error("snapshot mutation leaked into the store")
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	s := newTestStore()
	t1 := s.AddTab("one")
	t2 := s.AddTab("two")
	s.InitLayout(t1.ID, TerminalContent(ModeClaude, "s1"))
	s.InitLayout(t2.ID, TerminalContent(ModeShell, ""))
	snap1, _ := s.Tab(t1.ID)
	s.SplitPane(t1.ID, snap1.Root.ID, Horizontal, TerminalContent(ModeCodex, "s2"))
	s.SetActiveTab(t2.ID)

	snap := s.Snapshot()

	restored := newTestStore()
	restored.Restore(snap)

	if restored.ActiveTab() != t2.ID {
		t.Errorf("restored active tab = %q, want %q", restored.ActiveTab(), t2.ID)
	}
	tabs := restored.Tabs()
	if len(tabs) != 2 {
		t.Fatalf("restored %d tabs, want 2", len(tabs))
	}
	ids := CollectSessionIDs(tabs[0].Root)
	if len(ids) != 2 || ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("restored session ids = %v, want [s1 s2]", ids)
	}
}

func TestRestore_PrunesInvalidState(t *testing.T) {
	valid := &PaneNode{ID: "p1", Content: TerminalContent(ModeShell, "")}
	broken := &PaneNode{ID: "b1", Direction: Horizontal, Children: []*PaneNode{
		{ID: "b2", Content: TerminalContent(ModeShell, "")},
	}}

	snap := Snapshot{
		ActiveTab: "t-broken",
		Tabs: []Tab{
			{ID: "t-ok", Title: "ok", Root: valid, ActivePane: "stale"},
			{ID: "t-broken", Title: "broken", Root: broken},
			{ID: "t-ok", Title: "duplicate"},
			{ID: "", Title: "anonymous"},
		},
	}

	s := newTestStore()
	s.Restore(snap)

	tabs := s.Tabs()
	if len(tabs) != 1 || tabs[0].ID != "t-ok" || tabs[0].Title != "ok" {
		t.Fatalf("restored tabs = %+v, want only t-ok", tabs)
	}
	if tabs[0].ActivePane != "p1" {
		t.Errorf("stale active pane should default to the first leaf, got %q", tabs[0].ActivePane)
	}
	if s.ActiveTab() != "t-ok" {
		t.Errorf("active tab should fall back to the first surviving tab, got %q", s.ActiveTab())
	}
}
