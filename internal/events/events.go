// Package events publishes account lifecycle events to the message broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/accounthub/apiserver/internal/mq"
	"github.com/accounthub/apiserver/types"
	"go.uber.org/zap"
)

// Event types.
const (
	AccountCreated  = "account.created"
	LoginSucceeded  = "account.login_succeeded"
	PasswordChanged = "account.password_changed"
	ProfileUpdated  = "account.profile_updated"
)

const attrEventType = "event_type"

// Event is the payload published for an account change. It never carries
// password material.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event of the given type for user.
func New(eventType string, user types.User) Event {
	return Event{
		Type:       eventType,
		UserID:     user.ID.Hex(),
		Email:      user.Email,
		OccurredAt: time.Now().UTC(),
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Publisher sends events to a single broker channel.
type Publisher struct {
	mq      *mq.MQ
	channel string
	log     *zap.Logger
}

func NewPublisher(queue *mq.MQ, channel string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{mq: queue, channel: channel, log: logger}
}

// Publish sends event. Failures are logged and otherwise ignored so that a
// broker outage never fails an account request.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		p.log.Error("marshal account event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	id, err := p.mq.Publish(ctx, p.channel, data, map[string]string{
		attrEventType:      event.Type,
		mq.AttrOrderingKey: event.UserID,
	})
	if err != nil {
		p.log.Warn("publish account event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}
	p.log.Debug("account event published", zap.String("type", event.Type), zap.String("message_id", id))
}

// Consume decodes events from the channel and passes them to handle until
// ctx is cancelled. Undecodable messages are acknowledged and dropped.
func (p *Publisher) Consume(ctx context.Context, handle func(context.Context, Event) error) error {
	return p.mq.Subscribe(ctx, p.channel, func(ctx context.Context, msg mq.Message) error {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			p.log.Warn("drop malformed account event", zap.String("message_id", msg.ID), zap.Error(err))
			return nil
		}
		if err := handle(ctx, event); err != nil {
			return fmt.Errorf("handle %s: %w", event.Type, err)
		}
		return nil
	})
}
