package project

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

const favoritesFile = "favorites.toml"

// Favorite is a pinned project with an optional default terminal mode.
type Favorite struct {
	Name string `toml:"name" json:"name"`
	Path string `toml:"path" json:"path"`
	Mode string `toml:"mode,omitempty" json:"mode,omitempty"`
}

// favoritesConfig is the favorites.toml document.
type favoritesConfig struct {
	Favorites []Favorite `toml:"favorites"`
}

// FavoriteStore persists pinned projects in the data dir.
type FavoriteStore struct {
	mu   sync.Mutex
	path string
}

// NewFavoriteStore points at favorites.toml under the data dir.
func NewFavoriteStore(dataDir string) *FavoriteStore {
	return &FavoriteStore{path: filepath.Join(dataDir, favoritesFile)}
}

// List returns the stored favorites in file order. A missing file is empty.
func (s *FavoriteStore) List() ([]Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FavoriteStore) loadLocked() ([]Favorite, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read favorites: %w", err)
	}
	var cfg favoritesConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse favorites: %w", err)
	}
	return cfg.Favorites, nil
}

// Add pins a project. An existing favorite with the same path is updated in
// place, keeping its position.
func (s *FavoriteStore) Add(f Favorite) error {
	if !filepath.IsAbs(f.Path) {
		return ErrNotAbsolute
	}
	if f.Name == "" {
		f.Name = filepath.Base(f.Path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	favorites, err := s.loadLocked()
	if err != nil {
		return err
	}
	updated := false
	for i := range favorites {
		if favorites[i].Path == f.Path {
			favorites[i] = f
			updated = true
			break
		}
	}
	if !updated {
		favorites = append(favorites, f)
	}
	return s.saveLocked(favorites)
}

// Remove unpins the favorite with the given path. Reports whether an entry
// was removed.
func (s *FavoriteStore) Remove(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favorites, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	kept := favorites[:0]
	removed := false
	for _, f := range favorites {
		if f.Path == path {
			removed = true
			continue
		}
		kept = append(kept, f)
	}
	if !removed {
		return false, nil
	}
	return true, s.saveLocked(kept)
}

// Get returns the favorite for a path.
func (s *FavoriteStore) Get(path string) (Favorite, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favorites, err := s.loadLocked()
	if err != nil {
		return Favorite{}, false, err
	}
	for _, f := range favorites {
		if f.Path == path {
			return f, true, nil
		}
	}
	return Favorite{}, false, nil
}

func (s *FavoriteStore) saveLocked(favorites []Favorite) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(favoritesConfig{Favorites: favorites}); err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
