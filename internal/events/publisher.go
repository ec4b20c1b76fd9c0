// Package events publishes evaluation lifecycle notifications on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Event types.
const (
	TypeInitialCompleted = "evaluation.initial.completed"
	TypeFinalCompleted   = "evaluation.final.completed"
)

// Event describes a completed evaluation round.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     uint           `json:"user_id"`
	Level      string         `json:"level"`
	Attributes map[string]any `json:"attributes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType string, userID uint, level string, attributes map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		Level:      level,
		Attributes: attributes,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// NATSPublisher publishes events on "<subjectBase>.<event type>".
type NATSPublisher struct {
	conn        *nats.Conn
	subjectBase string
	logger      zerolog.Logger
}

// NewNATSPublisher builds a publisher. A nil connection yields a NopPublisher.
func NewNATSPublisher(conn *nats.Conn, subjectBase string, logger zerolog.Logger) Publisher {
	if conn == nil {
		return NopPublisher{}
	}
	subjectBase = strings.Trim(strings.ReplaceAll(strings.TrimSpace(subjectBase), ":", "."), ".")
	return &NATSPublisher{
		conn:        conn,
		subjectBase: subjectBase,
		logger:      logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Subject returns the subject an event of eventType is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	if p.subjectBase == "" {
		return eventType
	}
	return p.subjectBase + "." + eventType
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	subject := p.Subject(event.Type)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug().Str("subject", subject).Str("event_id", event.ID).Msg("event published")
	return nil
}
