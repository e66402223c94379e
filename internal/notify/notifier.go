package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/splitdeck/splitdeck/internal/config"
)

const vapidFile = "vapid.json"

// pushTTL is how long push services hold an undelivered notification.
const pushTTL = 60

// vapidKeys is the vapid.json document holding the generated server keypair.
type vapidKeys struct {
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

// LoadOrCreateVAPID returns the server's VAPID keypair, generating and
// persisting one on first use so subscriptions survive restarts.
func LoadOrCreateVAPID(dataDir string) (publicKey, privateKey string, err error) {
	path := filepath.Join(dataDir, vapidFile)
	if data, err := os.ReadFile(path); err == nil {
		var keys vapidKeys
		if jsonErr := json.Unmarshal(data, &keys); jsonErr == nil && keys.PublicKey != "" && keys.PrivateKey != "" {
			return keys.PublicKey, keys.PrivateKey, nil
		}
	}

	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	data, err := json.MarshalIndent(vapidKeys{PublicKey: publicKey, PrivateKey: privateKey}, "", "  ")
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", "", fmt.Errorf("persist VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}

// Payload is the notification document the client's service worker renders.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// Notifier broadcasts payloads to every stored subscription.
type Notifier struct {
	store      *SubscriptionStore
	publicKey  string
	privateKey string
	subscriber string
}

// NewNotifier wires a notifier to a subscription store. Keys come from the
// [push] config when set, otherwise from the persisted vapid.json in the
// data dir.
func NewNotifier(store *SubscriptionStore, cfg config.PushConfig, dataDir string) (*Notifier, error) {
	publicKey, privateKey := cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey
	if publicKey == "" || privateKey == "" {
		var err error
		publicKey, privateKey, err = LoadOrCreateVAPID(dataDir)
		if err != nil {
			return nil, err
		}
	}
	return &Notifier{
		store:      store,
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: cfg.Contact,
	}, nil
}

// PublicKey returns the VAPID public key clients use to subscribe.
func (n *Notifier) PublicKey() string {
	return n.publicKey
}

// Broadcast sends a payload to all subscriptions and returns how many were
// delivered. Subscriptions the push service reports gone (404/410) are
// pruned; other failures are logged and skipped.
func (n *Notifier) Broadcast(p Payload) (int, error) {
	message, err := json.Marshal(p)
	if err != nil {
		return 0, err
	}
	subs, err := n.store.List()
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range subs {
		resp, err := webpush.SendNotification(message, sub, &webpush.Options{
			Subscriber:      n.subscriber,
			VAPIDPublicKey:  n.publicKey,
			VAPIDPrivateKey: n.privateKey,
			TTL:             pushTTL,
		})
		if err != nil {
			log.Printf("[PUSH] Send failed for %s: %v", endpointKey(sub.Endpoint), err)
			continue
		}
		status := resp.StatusCode
		resp.Body.Close()

		if status == http.StatusNotFound || status == http.StatusGone {
			if _, err := n.store.Remove(sub.Endpoint); err == nil {
				log.Printf("[PUSH] Pruned expired subscription %s", endpointKey(sub.Endpoint))
			}
			continue
		}
		if status >= 400 {
			log.Printf("[PUSH] Push service returned %d for %s", status, endpointKey(sub.Endpoint))
			continue
		}
		sent++
	}
	return sent, nil
}

// NotifySessionEnded reports a pane process exit. The tag lets the client
// collapse repeated notifications for the same pane.
func (n *Notifier) NotifySessionEnded(provider, paneID string) {
	if n.store.Count() == 0 {
		return
	}
	sent, err := n.Broadcast(Payload{
		Title: "splitdeck",
		Body:  fmt.Sprintf("%s session ended", provider),
		Tag:   paneID,
	})
	if err != nil {
		log.Printf("[PUSH] Broadcast failed: %v", err)
		return
	}
	if sent > 0 {
		log.Printf("[PUSH] Notified %d subscribers that %s pane %s ended", sent, provider, paneID)
	}
}
