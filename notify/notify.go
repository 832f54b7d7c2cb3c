// Package notify publishes balance-change events for real-time UI refresh.
// Transport is Redis pub/sub; consumers fan the event out to the affected
// user's sockets.
package notify

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Event describes one balance-affecting action after commit.
type Event struct {
	TargetUserID uint    `json:"target_user_id"`
	Action       string  `json:"action"`
	Amount       float64 `json:"amount"`
	NewBalance   float64 `json:"new_balance"`
	PerformedBy  uint    `json:"performed_by"`
}

type Publisher struct {
	rdb     *redis.Client
	channel string
	log     zerolog.Logger
}

// NewPublisher wraps a redis client. A nil client disables publishing,
// which is the default in tests and single-node deployments.
func NewPublisher(rdb *redis.Client, channel string, log zerolog.Logger) *Publisher {
	if channel == "" {
		channel = "lotto:balance"
	}
	return &Publisher{rdb: rdb, channel: channel, log: log}
}

// Publish sends the event after the owning transaction has committed.
// Failures are logged, never propagated: notification loss must not fail
// the financial operation it describes.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	if p == nil || p.rdb == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("marshal balance event")
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.Error().Err(err).Uint("target", ev.TargetUserID).Msg("publish balance event")
	}
}
