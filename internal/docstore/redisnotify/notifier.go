// Package redisnotify propagates docstore change signals between server
// instances over Redis pub/sub, so a write handled by one instance wakes the
// live subscriptions held by the others.
package redisnotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
)

// DefaultChannel is the pub/sub channel used when Config.Channel is empty.
const DefaultChannel = "docstore:changes"

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Notifier publishes local changes and replays remote ones into a Hub.
type Notifier struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *docstore.Hub
}

// New connects, pings, and installs the notifier on hub.
func New(ctx context.Context, cfg Config, hub *docstore.Hub) (*Notifier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisnotify: ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(rdb, cfg.Channel, hub), nil
}

// NewWithClient wraps an existing client and installs the notifier on hub.
func NewWithClient(rdb *redis.Client, channel string, hub *docstore.Hub) *Notifier {
	if channel == "" {
		channel = DefaultChannel
	}
	n := &Notifier{client: rdb, channel: channel, origin: xid.New().String(), hub: hub}
	hub.SetNotifier(n)
	return n
}

// Notify publishes a change of collection, tagged with this instance's origin.
func (n *Notifier) Notify(ctx context.Context, collection string) error {
	return n.client.Publish(ctx, n.channel, n.origin+"|"+collection).Err()
}

// Run relays remote changes into the hub until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	ps := n.client.Subscribe(ctx, n.channel)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redisnotify: subscribe: %w", err)
	}
	log.Info().Str("channel", n.channel).Msg("redis change relay started")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			n.handle(m.Payload)
		}
	}
}

// handle broadcasts a remote payload; own echoes and garbage are dropped.
func (n *Notifier) handle(payload string) bool {
	origin, collection, ok := strings.Cut(payload, "|")
	if !ok || origin == n.origin || docstore.ValidateCollection(collection) != nil {
		return false
	}
	n.hub.Broadcast(collection)
	return true
}

// Close closes the Redis client.
func (n *Notifier) Close() error { return n.client.Close() }
