package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/splitdeck/splitdeck/internal/config"
)

const (
	// presenceInterval is the steady-state heartbeat.
	presenceInterval = 60 * time.Second
	// coalesceGap bounds how often layout-change kicks may publish.
	coalesceGap = 5 * time.Second
)

// Publisher reports this host's hello snapshot to the configured topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	hostID string

	mu          sync.Mutex
	lastPublish time.Time
	now         func() time.Time

	kick chan struct{}
}

// NewPublisher connects to Pub/Sub using the configured service-account
// file and ensures the presence topic exists.
func NewPublisher(ctx context.Context, cfg config.RemoteConfig) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("remote presence is not configured")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, pubsub.ScopePubSub)
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	client, err := pubsub.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	p, err := newPublisher(ctx, client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return p, nil
}

// newPublisher wires a publisher onto an existing client. Tests inject a
// client backed by an in-memory server here.
func newPublisher(ctx context.Context, client *pubsub.Client, cfg config.RemoteConfig) (*Publisher, error) {
	hostID := cfg.HostID
	if hostID == "" {
		if hostname, err := os.Hostname(); err == nil {
			hostID = hostname
		} else {
			hostID = "splitdeck"
		}
	}

	topic, err := ensureTopic(ctx, client, cfg.Topic)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		client: client,
		topic:  topic,
		hostID: hostID,
		now:    time.Now,
		kick:   make(chan struct{}, 1),
	}, nil
}

// ensureTopic resolves the topic, creating it when the service reports
// NotFound. A concurrent creator racing us is fine.
func ensureTopic(ctx context.Context, client *pubsub.Client, topicID string) (*pubsub.Topic, error) {
	topic := client.Topic(topicID)
	_, err := topic.Config(ctx)
	if err == nil {
		return topic, nil
	}
	if status.Code(err) != codes.NotFound {
		return nil, fmt.Errorf("inspect topic %s: %w", topicID, err)
	}

	created, err := client.CreateTopic(ctx, topicID)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return topic, nil
		}
		return nil, fmt.Errorf("create topic %s: %w", topicID, err)
	}
	return created, nil
}

// HostID returns the identifier stamped on published messages.
func (p *Publisher) HostID() string {
	return p.hostID
}

// Publish sends a presence snapshot now, unless one went out within the
// coalescing gap. Returns whether a message was actually sent.
func (p *Publisher) Publish(ctx context.Context, snapshot any) (bool, error) {
	p.mu.Lock()
	if p.now().Sub(p.lastPublish) < coalesceGap {
		p.mu.Unlock()
		return false, nil
	}
	p.lastPublish = p.now()
	p.mu.Unlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return false, fmt.Errorf("marshal presence: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"host": p.hostID},
	})
	if _, err := result.Get(ctx); err != nil {
		return false, fmt.Errorf("publish presence: %w", err)
	}
	return true, nil
}

// Kick requests an immediate publish from the run loop, used on layout
// changes. Kicks landing inside the coalescing gap are dropped.
func (p *Publisher) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run publishes snapshot() on every kick and on the heartbeat interval
// until the context is canceled. It blocks.
func (p *Publisher) Run(ctx context.Context, snapshot func() any) error {
	log.Printf("[REMOTE] Presence publisher started (host %s)", p.hostID)

	publish := func(force bool) {
		if force {
			p.mu.Lock()
			p.lastPublish = time.Time{}
			p.mu.Unlock()
		}
		if _, err := p.Publish(ctx, snapshot()); err != nil {
			log.Printf("[REMOTE] Presence publish failed: %v", err)
		}
	}
	publish(true)

	ticker := time.NewTicker(presenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[REMOTE] Presence publisher stopping")
			p.Close()
			return nil
		case <-ticker.C:
			publish(true)
		case <-p.kick:
			publish(false)
		}
	}
}

// Close flushes pending messages and releases the client.
func (p *Publisher) Close() {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		p.client.Close()
	}
}
