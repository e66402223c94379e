// Package command parses palette input into workspace actions.
package command

import (
	"strings"

	"github.com/splitdeck/splitdeck/internal/layout"
)

// Kind identifies what a routed action does.
type Kind string

const (
	KindSplit     Kind = "split" // split the active pane
	KindNewTab    Kind = "new"   // new tab with a terminal pane
	KindOpenURL   Kind = "open"  // browser pane in the active tab
	KindAddTab    Kind = "tab"   // new empty tab with a title
	KindClosePane Kind = "close" // close the active pane
)

// Action is one parsed palette command.
type Action struct {
	Kind      Kind
	Direction layout.Direction    // KindSplit
	Mode      layout.TerminalMode // KindNewTab
	URL       string              // KindOpenURL
	Title     string              // KindAddTab
}

var verbs = []string{"split", "new", "open", "tab", "close"}

var modes = []string{
	string(layout.ModeShell),
	string(layout.ModeClaude),
	string(layout.ModeCodex),
	string(layout.ModeOpencode),
	string(layout.ModeGemini),
	string(layout.ModeKimi),
}

// Route parses palette text. Verbs and their keyword arguments match
// case-insensitively by unique prefix ("sp h", "new cl"). Unknown or
// ambiguous input returns ok=false.
func Route(input string) (Action, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Action{}, false
	}

	verbRaw, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	verb, ok := matchPrefix(verbRaw, verbs)
	if !ok {
		return Action{}, false
	}

	switch verb {
	case "split":
		dir, ok := matchPrefix(rest, []string{"horizontal", "vertical"})
		if !ok {
			return Action{}, false
		}
		return Action{Kind: KindSplit, Direction: layout.Direction(dir)}, true

	case "new":
		mode, ok := matchPrefix(rest, modes)
		if !ok {
			return Action{}, false
		}
		return Action{Kind: KindNewTab, Mode: layout.TerminalMode(mode)}, true

	case "open":
		if rest == "" {
			return Action{}, false
		}
		return Action{Kind: KindOpenURL, URL: normalizeURL(rest)}, true

	case "tab":
		// The rest is a free-form title; empty titles are allowed, the
		// client renders a positional fallback.
		return Action{Kind: KindAddTab, Title: rest}, true

	case "close":
		if rest != "" {
			return Action{}, false
		}
		return Action{Kind: KindClosePane}, true
	}
	return Action{}, false
}

// matchPrefix resolves raw against candidates case-insensitively. The match
// must be non-empty and unambiguous.
func matchPrefix(raw string, candidates []string) (string, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", false
	}
	match := ""
	for _, c := range candidates {
		if c == raw {
			return c, true
		}
		if strings.HasPrefix(c, raw) {
			if match != "" {
				return "", false
			}
			match = c
		}
	}
	return match, match != ""
}

// normalizeURL defaults the scheme to https for bare hosts.
func normalizeURL(raw string) string {
	if strings.Contains(raw, "://") {
		return raw
	}
	return "https://" + raw
}
