package web

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/fsnotify/fsnotify"
)

// devRebuildDelay coalesces bursts of file events (editors write several
// times per save) into one rebuild.
const devRebuildDelay = 250 * time.Millisecond

// devBundlePath is where the dev bundler writes the client bundle. Empty
// when the server has no data dir.
func (s *Server) devBundlePath() string {
	if s.cfg.DataDir == "" {
		return ""
	}
	return filepath.Join(s.cfg.DataDir, "dev", "app.js")
}

// BundleClient runs esbuild over the client entry point once, writing the
// bundle where the static server picks it up in dev mode.
func (s *Server) BundleClient(srcDir string) error {
	out := s.devBundlePath()
	if out == "" {
		return fmt.Errorf("dev bundle needs a data dir")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create dev bundle dir: %w", err)
	}
	entry := filepath.Join(srcDir, "app.js")

	start := time.Now()
	result := api.Build(api.BuildOptions{
		EntryPoints: []string{entry},
		Outfile:     out,
		Bundle:      true,
		Write:       true,
		Format:      api.FormatIIFE,
		Target:      api.ES2020,
		Sourcemap:   api.SourceMapInline,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage})
		return fmt.Errorf("bundle %s: %s", entry, strings.TrimSpace(strings.Join(msgs, "; ")))
	}
	log.Printf("[DEV] Bundled %s in %v", entry, time.Since(start).Round(time.Millisecond))
	return nil
}

// WatchClient rebuilds the dev bundle whenever a client source changes and
// tells connected clients to reload. It blocks until the context is
// canceled.
func (s *Server) WatchClient(ctx context.Context, srcDir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create source watcher: %w", err)
	}
	defer watcher.Close()

	addDirs := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		})
	}
	if err := addDirs(srcDir); err != nil {
		return fmt.Errorf("watch %s: %w", srcDir, err)
	}
	log.Printf("[DEV] Watching %s for changes", srcDir)

	var rebuild <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addDirs(event.Name)
				}
			}
			if !isClientSource(event.Name) {
				continue
			}
			rebuild = time.After(devRebuildDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[DEV] Watcher error: %v", err)

		case <-rebuild:
			rebuild = nil
			if err := s.BundleClient(srcDir); err != nil {
				log.Printf("[DEV] Rebuild failed: %v", err)
				continue
			}
			s.broadcast(wsMessage{Type: msgReload})
		}
	}
}

func isClientSource(name string) bool {
	switch filepath.Ext(name) {
	case ".js", ".css", ".html":
		return true
	}
	return false
}
