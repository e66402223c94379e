package layout

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tab is one top-level workspace container owning an independent pane tree.
// Root is nil until the layout is initialized on first render.
type Tab struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Root       *PaneNode `json:"root,omitempty"`
	ActivePane string    `json:"activePane,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store holds the workspace state: the ordered tab list, each tab's pane
// tree, the per-tab active pane and the active tab. All mutations run under
// the write lock and all snapshots are deep copies taken under the read
// lock, so observers see either the pre-mutation or the fully post-mutation
// state, never a partial tree.
//
// Mutation entry points treat unresolved targets as silent no-ops: the only
// caller path already guards on an existing active pane, so a stale id means
// the operation raced a close and there is nothing useful to report. Each
// mutation returns whether state changed so transports can gate broadcasts.
type Store struct {
	mu        sync.RWMutex
	tabs      []*Tab
	byID      map[string]*Tab
	activeTab string

	newID func() string
	now   func() time.Time
}

// NewStore creates an empty workspace store.
func NewStore() *Store {
	return &Store{
		byID:  make(map[string]*Tab),
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// AddTab appends a tab with no layout and returns a copy of it. The first
// tab added becomes the active tab.
func (s *Store) AddTab(title string) Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab := &Tab{
		ID:        s.newID(),
		Title:     title,
		CreatedAt: s.now().UTC(),
	}
	s.tabs = append(s.tabs, tab)
	s.byID[tab.ID] = tab
	if s.activeTab == "" {
		s.activeTab = tab.ID
	}
	return *snapshotTab(tab)
}

// CloseTab removes a tab and its tree. Closing the active tab activates the
// previous tab in order, or the first remaining one. Unknown ids are a
// no-op.
func (s *Store) CloseTab(tabID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, tab := range s.tabs {
		if tab.ID == tabID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)
	delete(s.byID, tabID)

	if s.activeTab == tabID {
		s.activeTab = ""
		if len(s.tabs) > 0 {
			next := idx - 1
			if next < 0 {
				next = 0
			}
			s.activeTab = s.tabs[next].ID
		}
	}
	return true
}

// SetActiveTab records the active tab. Unknown ids are a no-op.
func (s *Store) SetActiveTab(tabID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[tabID]; !ok {
		return false
	}
	if s.activeTab == tabID {
		return false
	}
	s.activeTab = tabID
	return true
}

// ActiveTab returns the active tab id, or "" when no tabs exist.
func (s *Store) ActiveTab() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTab
}

// Tab returns a deep copy of the tab, or false if the id is unknown.
func (s *Store) Tab(tabID string) (Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tab, ok := s.byID[tabID]
	if !ok {
		return Tab{}, false
	}
	return *snapshotTab(tab), true
}

// Tabs returns deep copies of all tabs in order.
func (s *Store) Tabs() []Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Tab, 0, len(s.tabs))
	for _, tab := range s.tabs {
		out = append(out, *snapshotTab(tab))
	}
	return out
}

// InitLayout creates the tab's root leaf with the given content and makes it
// the active pane. Idempotent: a tab that already has a layout, or an
// unknown tab, is left untouched. Reports whether a layout was created.
func (s *Store) InitLayout(tabID string, content *PaneContent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, ok := s.byID[tabID]
	if !ok || tab.Root != nil {
		return false
	}
	leaf := &PaneNode{ID: s.newID(), Content: content.Clone()}
	tab.Root = leaf
	tab.ActivePane = leaf.ID
	return true
}

// SplitPane replaces the leaf paneID with a split node in the given
// direction whose children are the original leaf first and a new leaf
// holding newContent second. The new pane always lands second; the split
// direction is the caller's snapshot decision and is never recomputed.
// If paneID does not resolve to an existing leaf the tree is left untouched.
// Returns the new pane's id and whether the tree changed.
func (s *Store) SplitPane(tabID, paneID string, direction Direction, newContent *PaneContent) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, ok := s.byID[tabID]
	if !ok || tab.Root == nil || !IsValidDirection(direction) {
		return "", false
	}
	target := tab.Root.FindLeaf(paneID)
	if target == nil {
		return "", false
	}

	original := &PaneNode{ID: target.ID, Content: target.Content}
	newLeaf := &PaneNode{ID: s.newID(), Content: newContent.Clone()}

	// The target node itself becomes the split, so the parent's child
	// pointer stays valid; its old identity moves into the first child.
	target.ID = s.newID()
	target.Content = nil
	target.Direction = direction
	target.Children = []*PaneNode{original, newLeaf}

	return newLeaf.ID, true
}

// ClosePane removes the leaf paneID and collapses its parent split,
// promoting the sibling subtree into the parent's position. Closing the root
// leaf empties the tab's layout. If the closed pane was active, the first
// pre-order leaf of the promoted sibling becomes active. Unresolved targets
// are a no-op.
func (s *Store) ClosePane(tabID, paneID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, ok := s.byID[tabID]
	if !ok || tab.Root == nil {
		return false
	}

	if tab.Root.ID == paneID {
		if !tab.Root.IsLeaf() {
			return false
		}
		tab.Root = nil
		tab.ActivePane = ""
		return true
	}

	parent := findParentOfLeaf(tab.Root, paneID)
	if parent == nil {
		return false
	}
	sibling := parent.Children[0]
	if sibling.ID == paneID {
		sibling = parent.Children[1]
	}

	// Promote the sibling into the parent's slot in place.
	parent.ID = sibling.ID
	parent.Content = sibling.Content
	parent.Direction = sibling.Direction
	parent.Children = sibling.Children

	if tab.ActivePane == paneID {
		tab.ActivePane = parent.FirstLeaf().ID
	}
	return true
}

// SetActivePane records the tab's active pane, only when paneID resolves to
// a leaf in that tab's tree. Everything else is a no-op.
func (s *Store) SetActivePane(tabID, paneID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab, ok := s.byID[tabID]
	if !ok || tab.Root == nil {
		return false
	}
	if tab.Root.FindLeaf(paneID) == nil {
		return false
	}
	if tab.ActivePane == paneID {
		return false
	}
	tab.ActivePane = paneID
	return true
}

// PaneContentByID returns a copy of the content of the leaf paneID in any
// tab, with the owning tab's id. Used by the terminal manager to look up
// what a pane should run.
func (s *Store) PaneContentByID(paneID string) (string, *PaneContent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tab := range s.tabs {
		if tab.Root == nil {
			continue
		}
		if leaf := tab.Root.FindLeaf(paneID); leaf != nil {
			return tab.ID, leaf.Content.Clone(), true
		}
	}
	return "", nil, false
}

// Snapshot returns a deep copy of the full workspace state for extraction
// and persistence.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{ActiveTab: s.activeTab, Tabs: make([]Tab, 0, len(s.tabs))}
	for _, tab := range s.tabs {
		snap.Tabs = append(snap.Tabs, *snapshotTab(tab))
	}
	return snap
}

// Restore replaces the store's state with a previously persisted snapshot.
// Tabs whose trees violate the structural invariants are dropped and an
// active pane that no longer resolves to a leaf is cleared; restoring never
// fails.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tabs = nil
	s.byID = make(map[string]*Tab)
	s.activeTab = ""

	for i := range snap.Tabs {
		tab := snap.Tabs[i]
		if tab.ID == "" {
			continue
		}
		if tab.Root != nil && Validate(tab.Root) != nil {
			continue
		}
		if _, dup := s.byID[tab.ID]; dup {
			continue
		}
		cp := snapshotTab(&tab)
		if cp.Root == nil || cp.Root.FindLeaf(cp.ActivePane) == nil {
			cp.ActivePane = ""
		}
		if cp.Root != nil && cp.ActivePane == "" {
			cp.ActivePane = cp.Root.FirstLeaf().ID
		}
		s.tabs = append(s.tabs, cp)
		s.byID[cp.ID] = cp
	}

	if tab, ok := s.byID[snap.ActiveTab]; ok {
		s.activeTab = tab.ID
	} else if len(s.tabs) > 0 {
		s.activeTab = s.tabs[0].ID
	}
}

// findParentOfLeaf returns the split whose direct child is the leaf paneID,
// walking pre-order. Returns nil when the id is absent, names a split, or
// names the root.
func findParentOfLeaf(n *PaneNode, paneID string) *PaneNode {
	if n == nil || n.IsLeaf() {
		return nil
	}
	for _, child := range n.Children {
		if child.ID == paneID {
			if !child.IsLeaf() {
				return nil
			}
			return n
		}
		if found := findParentOfLeaf(child, paneID); found != nil {
			return found
		}
	}
	return nil
}

func snapshotTab(tab *Tab) *Tab {
	cp := *tab
	cp.Root = tab.Root.Clone()
	return &cp
}
