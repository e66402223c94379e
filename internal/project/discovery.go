// Package project discovers project directories for the quick-open surface:
// marker-file scanning, frecency ranking and pinned favorites.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/splitdeck/splitdeck/internal/config"
)

const frecencyFile = "frecency.json"

// projectMarkers are the files and directories whose presence makes a
// directory a project root.
var projectMarkers = []string{".git", "go.mod", "package.json", "Cargo.toml", "pyproject.toml", "CLAUDE.md"}

// sessionBoost dominates any frecency score so directories with live panes
// always sort first among discovered projects.
const sessionBoost = 1000

// Project is one entry in the quick-open catalog.
type Project struct {
	Name       string  `json:"name"`
	Path       string  `json:"path"`
	Score      float64 `json:"score"`
	Favorite   bool    `json:"favorite"`
	Mode       string  `json:"mode,omitempty"`
	HasSession bool    `json:"hasSession,omitempty"`
}

// ProjectUsage tracks how often and how recently a project was opened.
type ProjectUsage struct {
	UseCount   int       `json:"useCount"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}

// FrecencyData is the frecency.json document.
type FrecencyData struct {
	Projects map[string]ProjectUsage `json:"projects"`
}

// Discovery scans configured paths for projects and ranks them by frecency.
type Discovery struct {
	mu           sync.Mutex
	cfg          config.DiscoveryConfig
	frecencyPath string
	frecency     *FrecencyData
	now          func() time.Time
}

// NewDiscovery loads frecency state from the data dir. A missing or corrupt
// frecency file starts empty.
func NewDiscovery(cfg config.DiscoveryConfig, dataDir string) *Discovery {
	d := &Discovery{
		cfg:          cfg,
		frecencyPath: filepath.Join(dataDir, frecencyFile),
		frecency:     &FrecencyData{Projects: make(map[string]ProjectUsage)},
		now:          time.Now,
	}
	d.loadFrecency()
	return d
}

func (d *Discovery) loadFrecency() {
	data, err := os.ReadFile(d.frecencyPath)
	if err != nil {
		return
	}
	var loaded FrecencyData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return
	}
	if loaded.Projects != nil {
		d.frecency = &loaded
	}
}

// RecordUsage bumps a project's use count, stamps the time and persists.
func (d *Discovery) RecordUsage(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	usage := d.frecency.Projects[path]
	usage.UseCount++
	usage.LastUsedAt = d.now()
	d.frecency.Projects[path] = usage

	return d.saveFrecencyLocked()
}

func (d *Discovery) saveFrecencyLocked() error {
	data, err := json.MarshalIndent(d.frecency, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(d.frecencyPath), 0o755); err != nil {
		return err
	}
	tmp := d.frecencyPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, d.frecencyPath)
}

// Score computes the frecency score for a path: use count times a recency
// multiplier (today 100, week 70, month 50, quarter 30, older 10). Unused
// paths score zero.
func (d *Discovery) Score(path string) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scoreLocked(path)
}

func (d *Discovery) scoreLocked(path string) float64 {
	usage, ok := d.frecency.Projects[path]
	if !ok || usage.UseCount == 0 {
		return 0
	}
	age := d.now().Sub(usage.LastUsedAt)
	var multiplier float64
	switch {
	case age <= 24*time.Hour:
		multiplier = 100
	case age <= 7*24*time.Hour:
		multiplier = 70
	case age <= 30*24*time.Hour:
		multiplier = 50
	case age <= 90*24*time.Hour:
		multiplier = 30
	default:
		multiplier = 10
	}
	return float64(usage.UseCount) * multiplier
}

// Discover walks the configured scan paths and returns projects sorted by
// score, highest first. activePaths are working directories with live panes;
// those projects get a flat boost so they rank above everything idle, and
// they appear even when outside the scan paths.
func (d *Discovery) Discover(activePaths []string) ([]Project, error) {
	matcher := ignore.CompileIgnoreLines(d.cfg.Ignore...)
	maxDepth := d.cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = config.DefaultScanDepth
	}

	active := make(map[string]bool, len(activePaths))
	for _, p := range activePaths {
		if p != "" {
			active[expandPath(p)] = true
		}
	}

	seen := make(map[string]bool)
	var projects []Project
	add := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		score := d.Score(path)
		if active[path] {
			score += sessionBoost
		}
		projects = append(projects, Project{
			Name:       filepath.Base(path),
			Path:       path,
			Score:      score,
			HasSession: active[path],
		})
	}

	for _, root := range d.cfg.Paths {
		root = expandPath(root)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			continue
		}
		d.scan(root, root, 0, maxDepth, matcher, add)
	}
	for path := range active {
		if isProject(path) {
			add(path)
		}
	}

	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Score != projects[j].Score {
			return projects[i].Score > projects[j].Score
		}
		return projects[i].Name < projects[j].Name
	})
	return projects, nil
}

// scan recursively visits dir at the given depth. Project roots are reported
// and not descended into.
func (d *Discovery) scan(root, dir string, depth, maxDepth int, matcher *ignore.GitIgnore, add func(string)) {
	if isProject(dir) {
		add(dir)
		return
	}
	if depth >= maxDepth {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		sub := filepath.Join(dir, e.Name())
		rel, err := filepath.Rel(root, sub)
		if err == nil && matcher != nil && matcher.MatchesPath(rel) {
			continue
		}
		d.scan(root, sub, depth+1, maxDepth, matcher, add)
	}
}

// isProject reports whether dir carries any project marker.
func isProject(dir string) bool {
	for _, marker := range projectMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// expandPath resolves a leading ~ against the home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return filepath.Clean(path)
}

// MergeCatalog produces the quick-open list: favorites first in their stored
// order, then discovered projects by score with favorite paths deduplicated.
func MergeCatalog(favorites []Favorite, discovered []Project) []Project {
	out := make([]Project, 0, len(favorites)+len(discovered))
	favPaths := make(map[string]bool, len(favorites))

	byPath := make(map[string]Project, len(discovered))
	for _, p := range discovered {
		byPath[p.Path] = p
	}

	for _, f := range favorites {
		name := f.Name
		if name == "" {
			name = filepath.Base(f.Path)
		}
		entry := Project{
			Name:     name,
			Path:     f.Path,
			Favorite: true,
			Mode:     f.Mode,
		}
		if p, ok := byPath[f.Path]; ok {
			entry.Score = p.Score
			entry.HasSession = p.HasSession
		}
		favPaths[f.Path] = true
		out = append(out, entry)
	}
	for _, p := range discovered {
		if !favPaths[p.Path] {
			out = append(out, p)
		}
	}
	return out
}

// ErrNotAbsolute rejects relative favorite paths before they reach disk.
var ErrNotAbsolute = fmt.Errorf("project path must be absolute")
