// Package keys translates symbolic key names into raw terminal escape
// sequences for programmatic input injection into panes.
package keys

import (
	"fmt"
	"strings"
)

// Limits for injection requests to prevent abuse.
const (
	MaxSteps           = 100   // maximum steps in a single request
	MaxKeyNameLength   = 32    // maximum length of a key name (e.g. "C-c", "Enter")
	MaxTextStepLength  = 4096  // maximum length of a single text step
	MaxTotalTextLength = 16384 // maximum total text length across all steps
)

// Step is a single unit of an injection request: a named key chord or a
// literal text run.
type Step struct {
	Type  string `json:"type"`  // "key" or "text"
	Value string `json:"value"` // key name or literal text
}

const (
	StepKey  = "key"
	StepText = "text"
)

// namedKeys maps lowercase key names to xterm byte sequences. tmux-style
// aliases (DC, IC, PPage, NPage, BSpace) are included so clients written
// against send-keys naming keep working.
var namedKeys = map[string]string{
	"enter":     "\r",
	"tab":       "\t",
	"btab":      "\x1b[Z",
	"space":     " ",
	"escape":    "\x1b",
	"backspace": "\x7f",
	"bspace":    "\x7f",

	"up":    "\x1b[A",
	"down":  "\x1b[B",
	"right": "\x1b[C",
	"left":  "\x1b[D",
	"home":  "\x1b[H",
	"end":   "\x1b[F",

	"pgup":   "\x1b[5~",
	"ppage":  "\x1b[5~",
	"pgdn":   "\x1b[6~",
	"npage":  "\x1b[6~",
	"insert": "\x1b[2~",
	"ic":     "\x1b[2~",
	"delete": "\x1b[3~",
	"dc":     "\x1b[3~",

	"f1":  "\x1bOP",
	"f2":  "\x1bOQ",
	"f3":  "\x1bOR",
	"f4":  "\x1bOS",
	"f5":  "\x1b[15~",
	"f6":  "\x1b[17~",
	"f7":  "\x1b[18~",
	"f8":  "\x1b[19~",
	"f9":  "\x1b[20~",
	"f10": "\x1b[21~",
	"f11": "\x1b[23~",
	"f12": "\x1b[24~",
}

// Translate resolves a key name to the byte sequence a terminal would
// produce. Named keys are case-insensitive; "C-x" resolves to the control
// byte, "M-x" to the ESC-prefixed character, and a single printable ASCII
// character to itself. Unknown names are rejected, never passed through.
func Translate(name string) (string, bool) {
	if name == "" || len(name) > MaxKeyNameLength {
		return "", false
	}

	if seq, ok := namedKeys[strings.ToLower(name)]; ok {
		return seq, true
	}

	if rest, ok := strings.CutPrefix(name, "C-"); ok {
		return translateControl(rest)
	}
	if rest, ok := strings.CutPrefix(name, "M-"); ok {
		if len(rest) == 1 && isPrintableASCII(rest[0]) {
			return "\x1b" + rest, true
		}
		return "", false
	}

	if len(name) == 1 && isPrintableASCII(name[0]) {
		return name, true
	}
	return "", false
}

// translateControl maps the X in "C-X" to its control byte: letters to
// 0x01..0x1A, the @[\]^_ column to 0x00 and 0x1B..0x1F, "?" to DEL and
// "Space" to NUL.
func translateControl(rest string) (string, bool) {
	if strings.EqualFold(rest, "space") {
		return "\x00", true
	}
	if len(rest) != 1 {
		return "", false
	}
	ch := rest[0]
	switch {
	case ch >= 'a' && ch <= 'z':
		return string(ch - 'a' + 1), true
	case ch >= 'A' && ch <= 'Z':
		return string(ch - 'A' + 1), true
	case ch == '@':
		return "\x00", true
	case ch >= '[' && ch <= '_': // [ \ ] ^ _
		return string(ch - '[' + 0x1b), true
	case ch == '?':
		return "\x7f", true
	}
	return "", false
}

// IsValidKeyName reports whether Translate would accept the name.
func IsValidKeyName(name string) bool {
	_, ok := Translate(name)
	return ok
}

func isPrintableASCII(b byte) bool {
	return b >= 0x20 && b <= 0x7e
}

// Expand validates every step and concatenates the resulting bytes. The
// whole request is checked before any byte is produced, so a bad step never
// leaves a partial sequence written to the pane.
func Expand(steps []Step) ([]byte, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps provided")
	}
	if len(steps) > MaxSteps {
		return nil, fmt.Errorf("too many steps: %d (max %d)", len(steps), MaxSteps)
	}

	totalText := 0
	for i, step := range steps {
		switch step.Type {
		case StepKey:
			if !IsValidKeyName(step.Value) {
				return nil, fmt.Errorf("invalid key name at step %d: %q", i, step.Value)
			}
		case StepText:
			if len(step.Value) > MaxTextStepLength {
				return nil, fmt.Errorf("text too long at step %d: %d bytes (max %d)", i, len(step.Value), MaxTextStepLength)
			}
			totalText += len(step.Value)
			if totalText > MaxTotalTextLength {
				return nil, fmt.Errorf("total text exceeds limit: %d bytes (max %d)", totalText, MaxTotalTextLength)
			}
		default:
			return nil, fmt.Errorf("invalid step type at step %d: %q", i, step.Type)
		}
	}

	var out []byte
	for _, step := range steps {
		if step.Type == StepKey {
			seq, _ := Translate(step.Value)
			out = append(out, seq...)
			continue
		}
		out = append(out, step.Value...)
	}
	return out, nil
}
