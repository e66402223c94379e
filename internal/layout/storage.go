package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// storageVersion is bumped when the workspace file format changes.
const storageVersion = 1

// workspaceFile is the on-disk form of a Snapshot.
type workspaceFile struct {
	Version   int    `json:"version"`
	ActiveTab string `json:"activeTab,omitempty"`
	Tabs      []Tab  `json:"tabs"`
}

// Storage persists the workspace snapshot as a single JSON file under the
// profile directory. Writes are atomic (tmp + rename) so a crash never
// leaves a torn file behind.
type Storage struct {
	mu   sync.Mutex
	path string
}

// NewStorage creates a Storage writing to dir/workspace.json, creating dir
// if needed.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	return &Storage{path: filepath.Join(dir, "workspace.json")}, nil
}

// Path returns the workspace file path.
func (st *Storage) Path() string {
	return st.path
}

// Save writes the snapshot to disk.
func (st *Storage) Save(snap Snapshot) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	file := workspaceFile{
		Version:   storageVersion,
		ActiveTab: snap.ActiveTab,
		Tabs:      snap.Tabs,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal workspace: %w", err)
	}

	tmpPath := st.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write workspace file: %w", err)
	}
	if err := os.Rename(tmpPath, st.path); err != nil {
		return fmt.Errorf("rename workspace file: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. A missing file yields an empty
// snapshot, not an error; feeding the result to Store.Restore prunes
// anything structurally invalid.
func (st *Storage) Load() (Snapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("read workspace file: %w", err)
	}

	var file workspaceFile
	if err := json.Unmarshal(data, &file); err != nil {
		return Snapshot{}, fmt.Errorf("parse workspace file: %w", err)
	}
	return Snapshot{ActiveTab: file.ActiveTab, Tabs: file.Tabs}, nil
}
