package layout

import "fmt"

// ContentKind discriminates what a leaf pane displays.
type ContentKind string

const (
	ContentTerminal       ContentKind = "terminal"
	ContentBrowser        ContentKind = "browser"
	ContentSession        ContentKind = "session"
	ContentHistorySession ContentKind = "history-session"
)

// IsValidKind returns true if kind is a known pane content kind.
func IsValidKind(kind ContentKind) bool {
	switch kind {
	case ContentTerminal, ContentBrowser, ContentSession, ContentHistorySession:
		return true
	}
	return false
}

// TerminalMode selects what a terminal pane runs: a plain shell or one of
// the assistant CLIs.
type TerminalMode string

const (
	ModeShell    TerminalMode = "shell"
	ModeClaude   TerminalMode = "claude"
	ModeCodex    TerminalMode = "codex"
	ModeOpencode TerminalMode = "opencode"
	ModeGemini   TerminalMode = "gemini"
	ModeKimi     TerminalMode = "kimi"
)

// IsValidMode returns true if mode is a known terminal mode.
func IsValidMode(mode TerminalMode) bool {
	switch mode {
	case ModeShell, ModeClaude, ModeCodex, ModeOpencode, ModeGemini, ModeKimi:
		return true
	}
	return false
}

// IsAssistantMode returns true for terminal modes that run an assistant CLI
// rather than a plain shell.
func IsAssistantMode(mode TerminalMode) bool {
	return mode != ModeShell && IsValidMode(mode)
}

// Direction is the axis along which a split divides its area.
type Direction string

const (
	Horizontal Direction = "horizontal"
	Vertical   Direction = "vertical"
)

// IsValidDirection returns true if d is a known split direction.
func IsValidDirection(d Direction) bool {
	return d == Horizontal || d == Vertical
}

// PaneContent is what a leaf pane displays. Kind selects which field group
// applies: terminal panes use Mode/ResumeSessionID/WorkDir, browser panes use
// URL/DevToolsOpen, session and history-session panes use
// SessionID/Provider/Title.
type PaneContent struct {
	Kind ContentKind `json:"kind"`

	// Terminal panes.
	Mode            TerminalMode `json:"mode,omitempty"`
	ResumeSessionID string       `json:"resumeSessionId,omitempty"`
	WorkDir         string       `json:"workDir,omitempty"`

	// Browser panes.
	URL          string `json:"url,omitempty"`
	DevToolsOpen bool   `json:"devToolsOpen,omitempty"`

	// Session and history-session panes.
	SessionID string `json:"sessionId,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Title     string `json:"title,omitempty"`
}

// TerminalContent builds terminal pane content. An empty resumeID means a
// fresh session.
func TerminalContent(mode TerminalMode, resumeID string) *PaneContent {
	return &PaneContent{Kind: ContentTerminal, Mode: mode, ResumeSessionID: resumeID}
}

// BrowserContent builds browser pane content.
func BrowserContent(url string) *PaneContent {
	return &PaneContent{Kind: ContentBrowser, URL: url}
}

// HistoryContent builds history-session pane content referencing a past
// assistant session.
func HistoryContent(sessionID, provider, title string) *PaneContent {
	return &PaneContent{Kind: ContentHistorySession, SessionID: sessionID, Provider: provider, Title: title}
}

// Clone returns a copy of the content.
func (c *PaneContent) Clone() *PaneContent {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// PaneNode is one node of a tab's pane tree: either a leaf carrying content,
// or a split carrying a direction and exactly two ordered children. Leaves
// never have children and splits never carry content.
type PaneNode struct {
	ID        string       `json:"id"`
	Content   *PaneContent `json:"content,omitempty"`
	Direction Direction    `json:"direction,omitempty"`
	Children  []*PaneNode  `json:"children,omitempty"`
}

// IsLeaf reports whether the node is a leaf pane.
func (n *PaneNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// FindNode returns the node with the given id, walking the tree pre-order
// (first child before second). Returns nil if no node matches. Node ids are
// unique within a tree, so the first match is the only one.
func (n *PaneNode) FindNode(id string) *PaneNode {
	if n == nil {
		return nil
	}
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.FindNode(id); found != nil {
			return found
		}
	}
	return nil
}

// FindLeaf returns the leaf with the given id, or nil if the id is absent or
// names a split.
func (n *PaneNode) FindLeaf(id string) *PaneNode {
	node := n.FindNode(id)
	if node == nil || !node.IsLeaf() {
		return nil
	}
	return node
}

// FirstLeaf returns the first leaf in pre-order, which is the visually
// top-left pane of the subtree.
func (n *PaneNode) FirstLeaf() *PaneNode {
	if n == nil {
		return nil
	}
	if n.IsLeaf() {
		return n
	}
	return n.Children[0].FirstLeaf()
}

// Leaves returns all leaves in pre-order.
func (n *PaneNode) Leaves() []*PaneNode {
	var leaves []*PaneNode
	n.walk(func(node *PaneNode) {
		if node.IsLeaf() {
			leaves = append(leaves, node)
		}
	})
	return leaves
}

func (n *PaneNode) walk(fn func(*PaneNode)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children {
		child.walk(fn)
	}
}

// Clone returns a deep copy of the subtree.
func (n *PaneNode) Clone() *PaneNode {
	if n == nil {
		return nil
	}
	cp := &PaneNode{
		ID:        n.ID,
		Content:   n.Content.Clone(),
		Direction: n.Direction,
	}
	if len(n.Children) > 0 {
		cp.Children = make([]*PaneNode, len(n.Children))
		for i, child := range n.Children {
			cp.Children[i] = child.Clone()
		}
	}
	return cp
}

// CollectPaneIDs returns the ids of every leaf pane in pre-order. Callers
// use it to release per-pane resources when a whole tab goes away.
func CollectPaneIDs(root *PaneNode) []string {
	var ids []string
	root.walk(func(n *PaneNode) {
		if n.IsLeaf() {
			ids = append(ids, n.ID)
		}
	})
	return ids
}

// CollectSessionIDs walks the tree pre-order (first child before second) and
// returns the session ids of terminal leaves running an assistant CLI with a
// resumable session. Leaves without one contribute nothing, so the result
// has exactly one entry per resumable leaf, in deterministic order.
func CollectSessionIDs(root *PaneNode) []string {
	var ids []string
	root.walk(func(n *PaneNode) {
		if !n.IsLeaf() || n.Content == nil {
			return
		}
		c := n.Content
		if c.Kind == ContentTerminal && IsAssistantMode(c.Mode) && c.ResumeSessionID != "" {
			ids = append(ids, c.ResumeSessionID)
		}
	})
	return ids
}

// Validate checks the structural invariants of a pane tree: unique node ids,
// splits with exactly two children and no content, leaves with content and
// no direction. Used when loading persisted state; trees built through Store
// mutations hold these by construction.
func Validate(root *PaneNode) error {
	if root == nil {
		return fmt.Errorf("nil root")
	}
	seen := make(map[string]bool)
	return validateNode(root, seen)
}

func validateNode(n *PaneNode, seen map[string]bool) error {
	if n == nil {
		return fmt.Errorf("nil node")
	}
	if n.ID == "" {
		return fmt.Errorf("node without id")
	}
	if seen[n.ID] {
		return fmt.Errorf("duplicate node id %q", n.ID)
	}
	seen[n.ID] = true

	if n.IsLeaf() {
		if n.Content == nil {
			return fmt.Errorf("leaf %q without content", n.ID)
		}
		if !IsValidKind(n.Content.Kind) {
			return fmt.Errorf("leaf %q has unknown content kind %q", n.ID, n.Content.Kind)
		}
		if n.Direction != "" {
			return fmt.Errorf("leaf %q carries a split direction", n.ID)
		}
		return nil
	}

	if len(n.Children) != 2 {
		return fmt.Errorf("split %q has %d children, want 2", n.ID, len(n.Children))
	}
	if n.Content != nil {
		return fmt.Errorf("split %q carries content", n.ID)
	}
	if !IsValidDirection(n.Direction) {
		return fmt.Errorf("split %q has unknown direction %q", n.ID, n.Direction)
	}
	for _, child := range n.Children {
		if err := validateNode(child, seen); err != nil {
			return err
		}
	}
	return nil
}
