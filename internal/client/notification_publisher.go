package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes moderation lifecycle events to NATS
// JetStream for consumption by the notifications service.
//
// Subject convention: notifications.cms.<event_type>
// Event types: change_request.submitted, change_request.approved,
//              change_request.rejected
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt the workflow.
type NotificationPublisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string         `json:"event_type"`
	BranchID     string         `json:"branch_id"`
	ActorID      string         `json:"actor_id"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Severity     string         `json:"severity,omitempty"`
	Category     string         `json:"category,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher over an established NATS
// connection.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) (*NotificationPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &NotificationPublisher{js: js, log: log}, nil
}

// PublishModerationEvent publishes a moderation event.
// Subject: notifications.cms.<eventType>
func (p *NotificationPublisher) PublishModerationEvent(ctx context.Context, eventType, requestID, branchID, actorID string, payload map[string]any) {
	if p == nil || p.js == nil {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		BranchID:     branchID,
		ActorID:      actorID,
		ResourceType: "change_request",
		ResourceID:   requestID,
		Severity:     "info",
		Category:     "cms_moderation",
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.cms.%s", eventType)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("request_id", requestID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("request_id", requestID).
		Msg("notification: event published")
}
