// Package notify delivers Web Push notifications for pane lifecycle events.
package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// SubscriptionStore provides filesystem JSON-based CRUD for push
// subscriptions. Each subscription is stored as an individual JSON file
// under basePath/push/, keyed by a hash of its endpoint.
type SubscriptionStore struct {
	mu  sync.RWMutex
	dir string
}

// NewSubscriptionStore creates the push/ subdirectory if needed.
func NewSubscriptionStore(basePath string) (*SubscriptionStore, error) {
	dir := filepath.Join(basePath, "push")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create push directory: %w", err)
	}
	return &SubscriptionStore{dir: dir}, nil
}

// endpointKey derives the filename component for an endpoint. Endpoints are
// long opaque URLs, so files are keyed by a digest prefix.
func endpointKey(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])[:16]
}

// Save persists a subscription. Saving the same endpoint again overwrites
// the existing file, so re-subscribing is idempotent.
func (s *SubscriptionStore) Save(sub *webpush.Subscription) error {
	if sub == nil || sub.Endpoint == "" {
		return fmt.Errorf("subscription endpoint is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	path := filepath.Join(s.dir, endpointKey(sub.Endpoint)+".json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write subscription file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename subscription file: %w", err)
	}
	return nil
}

// Remove deletes the subscription for an endpoint. Reports whether a file
// was removed.
func (s *SubscriptionStore) Remove(endpoint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, endpointKey(endpoint)+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove subscription file: %w", err)
	}
	return true, nil
}

// List returns all stored subscriptions. Corrupt files are skipped.
func (s *SubscriptionStore) List() ([]*webpush.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read push directory: %w", err)
	}
	var subs []*webpush.Subscription
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var sub webpush.Subscription
		if err := json.Unmarshal(data, &sub); err != nil || sub.Endpoint == "" {
			continue
		}
		subs = append(subs, &sub)
	}
	return subs, nil
}

// Count returns the number of stored subscriptions.
func (s *SubscriptionStore) Count() int {
	subs, err := s.List()
	if err != nil {
		return 0
	}
	return len(subs)
}
