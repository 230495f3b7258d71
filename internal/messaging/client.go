// Package messaging is a typed client for the backend messaging façade.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/pkg/logger"
	"github.com/ventia/console-gateway/pkg/metrics"
)

const maxBodySize = 10 << 20

// Client talks to the backend REST API on behalf of a session. It never
// retries; callers decide what to do with a failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
	tracer     trace.Tracer
}

// NewClient creates a new messaging client.
func NewClient(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
		tracer:     otel.Tracer("github.com/ventia/console-gateway/internal/messaging"),
	}
}

// ListConversations returns the conversations matching filter.
func (c *Client) ListConversations(ctx context.Context, sess *session.Session, filter model.ConversationFilter) (*model.ListConversationsResponse, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.InboxID > 0 {
		q.Set("inbox_id", strconv.FormatInt(filter.InboxID, 10))
	}
	if filter.Label != "" {
		q.Set("label", filter.Label)
	}
	if filter.Temperature != model.TemperatureNone {
		q.Set("temperature", string(filter.Temperature))
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}

	body, err := c.call(ctx, sess, "list_conversations", http.MethodGet, "/messaging/conversations", q, nil)
	if err != nil {
		return nil, err
	}

	resp := &model.ListConversationsResponse{}
	if err := decode(body, &resp.Conversations); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	if meta := gjson.GetBytes(body, "meta"); meta.IsObject() {
		resp.Meta = &model.Meta{}
		if err := json.Unmarshal([]byte(meta.Raw), resp.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode meta: %w", err)
		}
	}
	if resp.Conversations == nil {
		resp.Conversations = []model.Conversation{}
	}
	for i := range resp.Conversations {
		c.warnUnknownTemperature(sess, resp.Conversations[i])
	}
	return resp, nil
}

// ListInboxes returns the tenant's inboxes.
func (c *Client) ListInboxes(ctx context.Context, sess *session.Session) ([]model.Inbox, error) {
	var inboxes []model.Inbox
	if err := c.doJSON(ctx, sess, "list_inboxes", http.MethodGet, "/messaging/inboxes", nil, nil, &inboxes); err != nil {
		return nil, err
	}
	return inboxes, nil
}

// ListLabels returns every label of the tenant.
func (c *Client) ListLabels(ctx context.Context, sess *session.Session) ([]model.Label, error) {
	var labels []model.Label
	if err := c.doJSON(ctx, sess, "list_labels", http.MethodGet, "/messaging/labels", nil, nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// AddConversationLabel attaches a label to a conversation.
func (c *Client) AddConversationLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) error {
	path := fmt.Sprintf("/messaging/conversations/%d/labels", conversationID)
	return c.doJSON(ctx, sess, "add_conversation_label", http.MethodPost, path, nil, model.AddLabelRequest{LabelID: labelID}, nil)
}

// RemoveConversationLabel detaches a label from a conversation.
func (c *Client) RemoveConversationLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) error {
	path := fmt.Sprintf("/messaging/conversations/%d/labels/%d", conversationID, labelID)
	return c.doJSON(ctx, sess, "remove_conversation_label", http.MethodDelete, path, nil, nil, nil)
}

// CreateLabel creates a label and returns it as stored by the provider.
func (c *Client) CreateLabel(ctx context.Context, sess *session.Session, req model.CreateLabelRequest) (*model.Label, error) {
	var label model.Label
	if err := c.doJSON(ctx, sess, "create_label", http.MethodPost, "/messaging/labels", nil, req, &label); err != nil {
		return nil, err
	}
	return &label, nil
}

// UpdateConversation applies a partial update. The returned conversation is
// nil when the backend answers without a body.
func (c *Client) UpdateConversation(ctx context.Context, sess *session.Session, conversationID int64, update model.ConversationUpdate) (*model.Conversation, error) {
	path := fmt.Sprintf("/messaging/conversations/%d", conversationID)
	body, err := c.call(ctx, sess, "update_conversation", http.MethodPatch, path, nil, update)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var conv model.Conversation
	if err := decode(body, &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	if conv.ID == 0 {
		return nil, nil
	}
	c.warnUnknownTemperature(sess, conv)
	return &conv, nil
}

// DeleteConversation deletes a conversation at the provider.
func (c *Client) DeleteConversation(ctx context.Context, sess *session.Session, conversationID int64) error {
	path := fmt.Sprintf("/messaging/conversations/%d", conversationID)
	return c.doJSON(ctx, sess, "delete_conversation", http.MethodDelete, path, nil, nil, nil)
}

// ListMessages returns the transcript of a conversation.
func (c *Client) ListMessages(ctx context.Context, sess *session.Session, conversationID int64) ([]model.Message, error) {
	path := fmt.Sprintf("/messaging/conversations/%d/messages", conversationID)
	var messages []model.Message
	if err := c.doJSON(ctx, sess, "list_messages", http.MethodGet, path, nil, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Response is a raw backend answer relayed by Forward.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Forward relays a request to an arbitrary backend path with the session's
// bearer token attached. Non-2xx answers are returned as *APIError.
func (c *Client) Forward(ctx context.Context, sess *session.Session, method, path string, query url.Values, body io.Reader, contentType string) (*Response, error) {
	if !sess.Valid() {
		return nil, ErrNoSession
	}

	ctx, span := c.tracer.Start(ctx, "messaging.forward", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("backend.path", path))

	req, err := c.newRequest(ctx, sess, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	status, respBody, header, err := c.send(req, "forward")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status > 299 {
		return nil, newAPIError(status, respBody)
	}
	return &Response{
		Status:      status,
		ContentType: header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

// warnUnknownTemperature logs conversations whose temperature was read as
// none because the backend sent a value outside cold, warm and hot.
func (c *Client) warnUnknownTemperature(sess *session.Session, conv model.Conversation) {
	if raw, ok := conv.UnknownTemperature(); ok {
		c.logger.ForSession(sess).ForConversation(conv.ID).Warn("unknown temperature from backend, treating as none",
			zap.String("temperature", raw),
		)
	}
}

func (c *Client) doJSON(ctx context.Context, sess *session.Session, op, method, path string, query url.Values, in, out interface{}) error {
	body, err := c.call(ctx, sess, op, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := decode(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// call performs one backend round trip and returns the raw 2xx body.
func (c *Client) call(ctx context.Context, sess *session.Session, op, method, path string, query url.Values, in interface{}) ([]byte, error) {
	if !sess.Valid() {
		return nil, ErrNoSession
	}

	ctx, span := c.tracer.Start(ctx, "messaging."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("backend.path", path),
		attribute.String("tenant.id", sess.TenantID),
	)

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, sess, method, path, query, reqBody)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	status, body, _, err := c.send(req, op)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status > 299 {
		apiErr := newAPIError(status, body)
		span.SetStatus(codes.Error, apiErr.Message)
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, sess *session.Session, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	req.Header.Set("Accept", "application/json")
	if id := session.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, op string) (int, []byte, http.Header, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordBackendCall(op, "transport_error", time.Since(start).Seconds())
		c.logger.Warn("backend request failed",
			zap.String("op", op),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return 0, nil, nil, fmt.Errorf("%s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	metrics.RecordBackendCall(op, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}

	if resp.StatusCode >= 400 {
		c.logger.Debug("backend rejected request",
			zap.String("op", op),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
		)
	}
	return resp.StatusCode, body, resp.Header, nil
}

// decode unwraps a {success, data, meta} envelope when present and decodes
// the payload into out.
func decode(body []byte, out interface{}) error {
	raw := body
	if res := gjson.ParseBytes(body); res.IsObject() {
		if data := res.Get("data"); data.Exists() && res.Get("success").Exists() {
			raw = []byte(data.Raw)
		}
	}
	return json.Unmarshal(raw, out)
}
