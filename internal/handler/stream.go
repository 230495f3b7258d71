package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/service"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/pkg/logger"
	"github.com/ventia/console-gateway/pkg/metrics"
)

const (
	eventBuffer       = 64
	heartbeatInterval = 30 * time.Second
)

// Subscriber delivers the inbox events of a tenant.
type Subscriber interface {
	SubscribeTenant(tenantID string, fn func(*model.ConversationEvent)) (func(), error)
}

// StreamHandler handles the workspace SSE endpoint.
type StreamHandler struct {
	inbox      *service.InboxService
	subscriber Subscriber
	logger     *logger.Logger
}

// NewStreamHandler creates a new stream handler. A nil subscriber disables
// the endpoint.
func NewStreamHandler(inbox *service.InboxService, subscriber Subscriber, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		inbox:      inbox,
		subscriber: subscriber,
		logger:     log,
	}
}

// Events handles GET /api/v1/workspace/events. Changes made by other users of
// the tenant are folded into the caller's workspace and then forwarded.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	log := h.logger.ForSession(sess)

	if h.subscriber == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable", "NATS is disabled")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}

	events := make(chan *model.ConversationEvent, eventBuffer)
	cancel, err := h.subscriber.SubscribeTenant(sess.TenantID, func(e *model.ConversationEvent) {
		select {
		case events <- e:
		default:
			log.Warn("dropping inbox event for slow SSE client", zap.String("event_id", e.ID))
		}
	})
	if err != nil {
		log.Error("failed to subscribe to inbox events", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable", err.Error())
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"tenant_id": sess.TenantID,
	})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case e := <-events:
			name := "conversation_event"
			if h.inbox.ApplyRemote(sess, e) {
				name = "conversation_updated"
				if e.Type == model.EventTypeDeleted {
					name = "conversation_deleted"
				}
			}
			if err := sendSSEEvent(w, flusher, name, e); err != nil {
				log.Warn("failed to write SSE event", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
