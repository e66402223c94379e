// Package remote publishes workspace presence to a Pub/Sub topic so other
// hosts running splitdeck can see which sessions live where.
package remote

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/splitdeck/splitdeck/internal/layout"
)

// Peer is one remote host's last reported presence.
type Peer struct {
	ID       string               `json:"id"`
	Host     string               `json:"host"`
	Sessions layout.HelloSessions `json:"sessions"`
	LastSeen time.Time            `json:"lastSeen"`
}

// PeerID derives a stable identifier for a host/tab pair. The same inputs
// always produce the same id, so subscribers can merge repeated reports.
func PeerID(hostID, tabID string) string {
	sum := sha256.Sum256([]byte(hostID + "/" + tabID))
	return "peer-" + hex.EncodeToString(sum[:])[:12]
}

// MergePeers folds an incoming report into the known set. A peer with a
// known id is updated in place, keeping list order; new peers append.
func MergePeers(peers []Peer, incoming Peer) []Peer {
	for i := range peers {
		if peers[i].ID == incoming.ID {
			peers[i] = incoming
			return peers
		}
	}
	return append(peers, incoming)
}

// StalePeers partitions peers by freshness: peers last seen within ttl of
// now are fresh, the rest are stale.
func StalePeers(peers []Peer, now time.Time, ttl time.Duration) (fresh, stale []Peer) {
	for _, p := range peers {
		if now.Sub(p.LastSeen) <= ttl {
			fresh = append(fresh, p)
		} else {
			stale = append(stale, p)
		}
	}
	return fresh, stale
}
