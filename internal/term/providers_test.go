package term

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinProviders(t *testing.T) {
	providers := BuiltinProviders()

	for _, name := range []string{"shell", "claude", "codex", "opencode", "gemini", "kimi"} {
		if _, ok := providers[name]; !ok {
			t.Errorf("missing builtin provider %q", name)
		}
	}

	if providers["shell"].Command != "" {
		t.Errorf("shell provider should have no command, got %q", providers["shell"].Command)
	}
	if providers["claude"].Command != "claude" {
		t.Errorf("claude command = %q", providers["claude"].Command)
	}
}

func TestProvider_CommandLine(t *testing.T) {
	providers := BuiltinProviders()

	tests := []struct {
		name     string
		provider string
		resumeID string
		want     []string
	}{
		{"shell has no command line", "shell", "", nil},
		{"shell ignores resume id", "shell", "abc", nil},
		{"fresh claude", "claude", "", []string{"claude"}},
		{"claude resume is a flag", "claude", "sess-1", []string{"claude", "--resume", "sess-1"}},
		{"codex resume is a subcommand", "codex", "sess-2", []string{"codex", "resume", "sess-2"}},
		{"opencode resume", "opencode", "sess-3", []string{"opencode", "--session", "sess-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := providers[tt.provider].CommandLine(tt.resumeID)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProvider_LaunchLine_Escapes(t *testing.T) {
	p := Provider{
		Name:    "custom",
		Command: "/opt/my tool/bin/run",
		Args:    []string{"--flag", "a b"},
	}
	line := p.LaunchLine("")
	assert.Equal(t, "'/opt/my tool/bin/run' --flag 'a b'", line)
}

func TestLoadProviders_MissingFileReturnsBuiltins(t *testing.T) {
	providers, err := LoadProviders(t.TempDir())
	require.NoError(t, err)
	assert.Len(t, providers, len(BuiltinProviders()))
}

func TestLoadProviders_OverlayAndAddition(t *testing.T) {
	dir := t.TempDir()
	yaml := `providers:
  - name: claude
    command: /usr/local/bin/claude
    args: ["--dangerously-skip-permissions"]
    resume_args: ["--resume", "{id}"]
  - name: aider
    command: aider
    homepage: https://aider.chat
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "providers.yaml"), []byte(yaml), 0o644))

	providers, err := LoadProviders(dir)
	require.NoError(t, err)

	claude := providers["claude"]
	assert.Equal(t, "/usr/local/bin/claude", claude.Command)
	assert.Equal(t, []string{"--dangerously-skip-permissions"}, claude.Args)
	assert.Equal(t, []string{"/usr/local/bin/claude", "--dangerously-skip-permissions", "--resume", "s9"},
		claude.CommandLine("s9"))

	aider, ok := providers["aider"]
	require.True(t, ok, "custom provider should be registered")
	assert.Equal(t, "aider", aider.Command)
	assert.Equal(t, "https://aider.chat", aider.Homepage)

	// Untouched builtins survive the overlay.
	if _, ok := providers["codex"]; !ok {
		t.Error("codex builtin lost during overlay")
	}
}

func TestLoadProviders_BadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "providers.yaml"), []byte("providers: [broken"), 0o644))

	_, err := LoadProviders(dir)
	assert.Error(t, err)
}

func TestProvider_ResumePlaceholderSubstitution(t *testing.T) {
	p := Provider{
		Name:       "x",
		Command:    "x",
		ResumeArgs: []string{"--attach", "id={id}"},
	}
	got := p.CommandLine("42")
	assert.Equal(t, []string{"x", "--attach", "id=42"}, got)
}
