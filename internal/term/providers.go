// Package term runs pane commands on PTYs: provider launch lines, output
// capture, rate-limited input and scrollback archiving.
package term

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"al.essio.dev/pkg/shellescape"
	"gopkg.in/yaml.v3"
)

// providersFile is the filename for provider overrides in the data dir.
const providersFile = "providers.yaml"

// Provider describes how to launch one terminal mode. ResumeArgs may contain
// the "{id}" placeholder, replaced with the resume session id; providers
// whose resume takes a subcommand (codex) list it as a literal arg.
type Provider struct {
	Name       string   `yaml:"name"`
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args,omitempty"`
	ResumeArgs []string `yaml:"resume_args,omitempty"`
	Homepage   string   `yaml:"homepage,omitempty"`
}

// providersConfig is the YAML structure of providers.yaml.
type providersConfig struct {
	Providers []Provider `yaml:"providers"`
}

// BuiltinProviders returns the built-in provider set keyed by name. The
// shell provider has no command: the manager launches the configured shell
// itself.
func BuiltinProviders() map[string]Provider {
	list := []Provider{
		{Name: "shell"},
		{Name: "claude", Command: "claude", ResumeArgs: []string{"--resume", "{id}"}, Homepage: "https://docs.anthropic.com/en/docs/claude-code"},
		{Name: "codex", Command: "codex", ResumeArgs: []string{"resume", "{id}"}, Homepage: "https://github.com/openai/codex"},
		{Name: "opencode", Command: "opencode", ResumeArgs: []string{"--session", "{id}"}, Homepage: "https://opencode.ai"},
		{Name: "gemini", Command: "gemini", ResumeArgs: []string{"--resume", "{id}"}, Homepage: "https://github.com/google-gemini/gemini-cli"},
		{Name: "kimi", Command: "kimi", ResumeArgs: []string{"--resume", "{id}"}, Homepage: "https://github.com/MoonshotAI/kimi-cli"},
	}
	out := make(map[string]Provider, len(list))
	for _, p := range list {
		out[p.Name] = p
	}
	return out
}

// LoadProviders returns the built-ins overlaid with providers.yaml from the
// data dir. Entries match by name: a known name replaces the built-in, a new
// name adds a provider. A missing file yields the built-ins.
func LoadProviders(dataDir string) (map[string]Provider, error) {
	providers := BuiltinProviders()

	data, err := os.ReadFile(filepath.Join(dataDir, providersFile))
	if err != nil {
		if os.IsNotExist(err) {
			return providers, nil
		}
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	var cfg providersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse providers file: %w", err)
	}
	for _, p := range cfg.Providers {
		if p.Name == "" {
			continue
		}
		providers[p.Name] = p
	}
	return providers, nil
}

// CommandLine builds the argv for a provider, substituting the resume id.
// An empty resumeID launches fresh. The shell provider (no command) returns
// nil: the caller runs the bare shell.
func (p Provider) CommandLine(resumeID string) []string {
	if p.Command == "" {
		return nil
	}
	argv := make([]string, 0, 1+len(p.Args)+len(p.ResumeArgs))
	argv = append(argv, p.Command)
	argv = append(argv, p.Args...)
	if resumeID != "" {
		for _, a := range p.ResumeArgs {
			argv = append(argv, strings.ReplaceAll(a, "{id}", resumeID))
		}
	}
	return argv
}

// LaunchLine renders the argv as a single shell-escaped line. Pane commands
// run through the user's login shell so PATH additions from profile files
// apply; escaping keeps resume ids intact through that indirection.
func (p Provider) LaunchLine(resumeID string) string {
	argv := p.CommandLine(resumeID)
	if len(argv) == 0 {
		return ""
	}
	return shellescape.QuoteCommand(argv)
}
