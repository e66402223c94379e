package layout

import "encoding/json"

// Snapshot is an immutable copy of the workspace state, produced by
// Store.Snapshot. The extraction functions below are pure over it.
type Snapshot struct {
	ActiveTab string `json:"activeTab,omitempty"`
	Tabs      []Tab  `json:"tabs"`
}

// HelloSessions is the session-identifier record reported to the backend on
// hello/handshake, partitioned by priority.
//
// Field presence carries meaning: Active is absent when the active pane is
// not a resumable assistant terminal, Visible is present (possibly empty)
// exactly when the active tab has a layout, and Background is present only
// when non-empty. A nil Visible slice means absent; an allocated empty slice
// means present. MarshalJSON preserves that distinction on the wire.
type HelloSessions struct {
	Active     string
	Visible    []string
	Background []string
}

// MarshalJSON emits only the fields that are present: empty Active and nil
// slices are omitted, while an allocated empty Visible is emitted as [].
func (h HelloSessions) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3)
	if h.Active != "" {
		out["active"] = h.Active
	}
	if h.Visible != nil {
		out["visible"] = h.Visible
	}
	if len(h.Background) > 0 {
		out["background"] = h.Background
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the presence distinctions MarshalJSON encodes.
func (h *HelloSessions) UnmarshalJSON(data []byte) error {
	var raw struct {
		Active     string   `json:"active"`
		Visible    []string `json:"visible"`
		Background []string `json:"background"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	h.Active = raw.Active
	h.Visible = raw.Visible
	h.Background = raw.Background
	return nil
}

// SessionsForHello partitions the workspace's resumable session ids by
// priority:
//
//   - Active: the session id of the active pane within the active tab, when
//     that pane is a terminal leaf running an assistant CLI with a
//     resumeSessionId. Absent otherwise, including when no active-pane id is
//     recorded at all.
//   - Visible: every session id collected from the active tab's tree except
//     Active's value. Present (possibly empty) whenever the active tab has a
//     layout; absent when it has none.
//   - Background: session ids of every other tab concatenated in tab order,
//     present only when non-empty.
//
// The active leaf is located by the same pre-order walk CollectSessionIDs
// uses; ids are unique within a tree so the first match is the only one.
// Malformed state (an active-pane id that resolves to nothing, a missing
// layout) is handled by omission, never by failing.
func SessionsForHello(snap Snapshot) HelloSessions {
	var hello HelloSessions

	var activeTab *Tab
	for i := range snap.Tabs {
		if snap.Tabs[i].ID == snap.ActiveTab {
			activeTab = &snap.Tabs[i]
			break
		}
	}

	if activeTab != nil && activeTab.Root != nil {
		if activeTab.ActivePane != "" {
			if leaf := activeTab.Root.FindLeaf(activeTab.ActivePane); leaf != nil && leaf.Content != nil {
				c := leaf.Content
				if c.Kind == ContentTerminal && IsAssistantMode(c.Mode) && c.ResumeSessionID != "" {
					hello.Active = c.ResumeSessionID
				}
			}
		}

		hello.Visible = make([]string, 0)
		for _, id := range CollectSessionIDs(activeTab.Root) {
			if id == hello.Active {
				continue
			}
			hello.Visible = append(hello.Visible, id)
		}
	}

	for i := range snap.Tabs {
		tab := &snap.Tabs[i]
		if tab.ID == snap.ActiveTab || tab.Root == nil {
			continue
		}
		hello.Background = append(hello.Background, CollectSessionIDs(tab.Root)...)
	}

	return hello
}
