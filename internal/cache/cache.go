// Package cache connects to Redis and republishes ledger events on a channel
// for services outside this process.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"custody-wallet/internal/event"
	"custody-wallet/internal/logger"
)

func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

type Publisher struct {
	rdb     *redis.Client
	channel string
}

func NewPublisher(rdb *redis.Client, channel string) *Publisher {
	return &Publisher{rdb: rdb, channel: channel}
}

type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	At    time.Time   `json:"published_at"`
}

func (p *Publisher) Publish(ctx context.Context, name string, payload interface{}) error {
	msg, err := json.Marshal(envelope{Event: name, Data: payload, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := p.rdb.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	return nil
}

// Forward republishes the listed bus events. Redis being down is logged and
// never affects the ledger.
func (p *Publisher) Forward(bus *event.Bus, events ...string) {
	for _, name := range events {
		bus.Subscribe(name, func(payload interface{}) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := p.Publish(ctx, name, payload); err != nil {
				logger.Log.Warn("redis publish failed", zap.String("channel", p.channel), zap.Error(err))
			}
		})
	}
}
