package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/splitdeck/splitdeck/internal/config"
	"github.com/splitdeck/splitdeck/internal/layout"
	"github.com/splitdeck/splitdeck/internal/project"
	"github.com/splitdeck/splitdeck/internal/web"
)

// openTimeout bounds each request against the running server.
const openTimeout = 5 * time.Second

// handleOpen quick-launches a project as a new tab on a running server.
func handleOpen(args []string) {
	fs := flag.NewFlagSet("open", flag.ExitOnError)
	server := fs.String("server", "", "Server base URL (default from config listen address)")
	token := fs.String("token", "", "Access token (default resolved like the web command)")
	mode := fs.String("mode", "", "Terminal mode for the new tab (default from the favorites entry, else shell)")
	configPath := fs.String("config", "", "Config file path (default <data-dir>/config.toml)")

	fs.Usage = func() {
		fmt.Println("Usage: splitdeck open [options] <path>")
		fmt.Println()
		fmt.Println("Open a project directory as a new tab on a running splitdeck server.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  splitdeck open ~/code/myproject")
		fmt.Println("  splitdeck open -mode claude ~/code/myproject")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: open needs exactly one project path")
		fs.Usage()
		os.Exit(1)
	}

	if err := runOpen(fs.Arg(0), *server, *token, *mode, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runOpen creates a terminal tab rooted at path on the server and records
// the project usage for frecency.
func runOpen(path, serverURL, tokenFlag, modeFlag, configPath string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	if configPath == "" {
		if configPath, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnvOverrides()

	token, source, err := web.ResolveToken(tokenFlag, cfg.Server.Token)
	if err != nil {
		return err
	}
	if source == "generated" {
		return fmt.Errorf("no access token found; pass -token or set SPLITDECK_TOKEN")
	}

	if serverURL == "" {
		serverURL = "http://" + cfg.Server.Listen
	}

	favoriteMode := ""
	if fav, ok, err := project.NewFavoriteStore(dataDir).Get(abs); err == nil && ok {
		favoriteMode = fav.Mode
	}
	mode, err := resolveMode(modeFlag, favoriteMode)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: openTimeout}

	var tab layout.Tab
	if err := postJSON(client, serverURL+"/api/tabs", token, newTabRequest(abs, mode), &tab); err != nil {
		return fmt.Errorf("create tab: %w", err)
	}

	usage := struct {
		Path string `json:"path"`
	}{Path: abs}
	if err := postJSON(client, serverURL+"/api/projects/used", token, usage, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not record project usage: %v\n", err)
	}

	fmt.Printf("Opened %s as tab %q (%s) on %s\n", abs, tab.Title, mode, serverURL)
	return nil
}

// tabRequest is the create-tab payload.
type tabRequest struct {
	Title   string              `json:"title"`
	Content *layout.PaneContent `json:"content"`
}

// newTabRequest builds the payload for a terminal tab rooted at path.
func newTabRequest(path string, mode layout.TerminalMode) tabRequest {
	return tabRequest{
		Title: filepath.Base(path),
		Content: &layout.PaneContent{
			Kind:    layout.ContentTerminal,
			Mode:    mode,
			WorkDir: path,
		},
	}
}

// resolveMode picks the terminal mode: explicit flag, then the favorites
// entry, then shell. Unknown modes are rejected rather than sent upstream.
func resolveMode(flagMode, favoriteMode string) (layout.TerminalMode, error) {
	raw := flagMode
	if raw == "" {
		raw = favoriteMode
	}
	if raw == "" {
		return layout.ModeShell, nil
	}
	mode := layout.TerminalMode(raw)
	if !layout.IsValidMode(mode) {
		return "", fmt.Errorf("unknown terminal mode %q", raw)
	}
	return mode, nil
}

// postJSON sends body as JSON with the bearer token and decodes a 2xx
// response into out when out is non-nil.
func postJSON(client *http.Client, url, token string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
