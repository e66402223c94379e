package web

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// maxScreenshotBytes caps a decoded screenshot payload.
const maxScreenshotBytes = 10 << 20

var screenshotNamePattern = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ScreenshotStore writes client-captured PNGs under the profile dir.
type ScreenshotStore struct {
	dir string
}

// NewScreenshotStore creates the screenshots/ subdirectory if needed.
func NewScreenshotStore(profileDir string) (*ScreenshotStore, error) {
	dir := filepath.Join(profileDir, "screenshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshots directory: %w", err)
	}
	return &ScreenshotStore{dir: dir}, nil
}

// ScreenshotInfo is one stored screenshot.
type ScreenshotInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// SanitizeScreenshotName reduces a client-supplied filename to a safe .png
// name. An empty or fully-stripped name gets a timestamp name.
func SanitizeScreenshotName(name string, now time.Time) string {
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = screenshotNamePattern.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "screenshot-" + now.UTC().Format("20060102T150405")
	}
	return name + ".png"
}

// Save decodes a base64 payload and writes it as a PNG. Data URL prefixes
// from canvas.toDataURL are tolerated. Returns the stored name.
func (s *ScreenshotStore) Save(filename, base64Data string) (string, error) {
	if idx := strings.Index(base64Data, ";base64,"); idx >= 0 {
		base64Data = base64Data[idx+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return "", fmt.Errorf("decode screenshot data: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("screenshot payload is empty")
	}
	if len(data) > maxScreenshotBytes {
		return "", fmt.Errorf("screenshot exceeds %d bytes", maxScreenshotBytes)
	}

	name := SanitizeScreenshotName(filename, time.Now())
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("finalize screenshot: %w", err)
	}
	return name, nil
}

// List returns stored screenshots, newest first.
func (s *ScreenshotStore) List() ([]ScreenshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read screenshots directory: %w", err)
	}
	out := make([]ScreenshotInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ScreenshotInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Path resolves a stored screenshot name for serving. Names that escape the
// directory or were never stored resolve to ok=false.
func (s *ScreenshotStore) Path(name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || !strings.HasSuffix(name, ".png") {
		return "", false
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Delete removes a screenshot by name. Reports whether a file was removed.
func (s *ScreenshotStore) Delete(name string) (bool, error) {
	path, ok := s.Path(name)
	if !ok {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("remove screenshot: %w", err)
	}
	return true, nil
}
