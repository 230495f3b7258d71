package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/pkg/metrics"
)

const (
	// StreamName is the name of the inbox events stream.
	StreamName = "INBOX_EVENTS"

	// SubjectPrefix is the prefix for all inbox subjects.
	SubjectPrefix = "inbox"
)

// StreamManager publishes and subscribes to inbox events.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the inbox events stream exists.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.js

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		MaxBytes:    1 << 30,
		Duplicates:  2 * time.Minute,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Inbox mutations applied through the console gateway",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for an event.
func EventSubject(tenantID string, conversationID int64, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%d.event.%s", SubjectPrefix, token(tenantID), conversationID, eventType)
}

// TenantFilter returns the filter subject for every event of a tenant.
func TenantFilter(tenantID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, token(tenantID))
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// PublishEvent publishes an event to JetStream.
func (m *StreamManager) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	subject := EventSubject(event.TenantID, event.ConversationID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.ID))
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "ok").Inc()

	return ack.Sequence, nil
}

// SubscribeTenant delivers every event of a tenant to fn until the returned
// cancel function is called.
func (m *StreamManager) SubscribeTenant(tenantID string, fn func(*model.ConversationEvent)) (func(), error) {
	sub, err := m.client.conn.Subscribe(TenantFilter(tenantID), func(msg *nats.Msg) {
		var event model.ConversationEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			m.client.logger.Warn("dropping malformed inbox event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		fn(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return func() {
		_ = sub.Unsubscribe()
	}, nil
}
