package handler

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/labels"
	"github.com/ventia/console-gateway/internal/messaging"
	"github.com/ventia/console-gateway/internal/middleware"
	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/internal/temperature"
	"github.com/ventia/console-gateway/pkg/logger"
)

const maxForwardBody = 10 << 20

// Backend is the backend surface the proxy relays to.
type Backend interface {
	ListConversations(ctx context.Context, sess *session.Session, filter model.ConversationFilter) (*model.ListConversationsResponse, error)
	ListInboxes(ctx context.Context, sess *session.Session) ([]model.Inbox, error)
	ListLabels(ctx context.Context, sess *session.Session) ([]model.Label, error)
	ListMessages(ctx context.Context, sess *session.Session, conversationID int64) ([]model.Message, error)
	AddConversationLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) error
	RemoveConversationLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) error
	CreateLabel(ctx context.Context, sess *session.Session, req model.CreateLabelRequest) (*model.Label, error)
	UpdateConversation(ctx context.Context, sess *session.Session, conversationID int64, update model.ConversationUpdate) (*model.Conversation, error)
	Forward(ctx context.Context, sess *session.Session, method, path string, query url.Values, body io.Reader, contentType string) (*messaging.Response, error)
}

// ProxyHandler exposes the backend messaging façade to the browser.
type ProxyHandler struct {
	backend Backend
	policy  labels.Policy
	logger  *logger.Logger
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(backend Backend, policy labels.Policy, log *logger.Logger) *ProxyHandler {
	return &ProxyHandler{
		backend: backend,
		policy:  policy,
		logger:  log,
	}
}

// ListConversations handles GET /api/v1/conversations
func (h *ProxyHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter", err.Error())
		return
	}

	resp, err := h.backend.ListConversations(r.Context(), session.FromContext(r.Context()), filter)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateConversation handles PATCH /api/v1/conversations/{id}
func (h *ProxyHandler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"), "conversation")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	var update model.ConversationUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	conv, err := h.backend.UpdateConversation(r.Context(), session.FromContext(r.Context()), conversationID, update)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if conv == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// AddLabel handles POST /api/v1/conversations/{id}/labels
func (h *ProxyHandler) AddLabel(w http.ResponseWriter, r *http.Request) {
	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"), "conversation")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	var req model.AddLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LabelID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid label ID format", "")
		return
	}

	if err := h.backend.AddConversationLabel(r.Context(), session.FromContext(r.Context()), conversationID, req.LabelID); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveLabel handles DELETE /api/v1/conversations/{id}/labels/{labelId}
func (h *ProxyHandler) RemoveLabel(w http.ResponseWriter, r *http.Request) {
	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"), "conversation")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	labelID, err := middleware.ParseID(chi.URLParam(r, "labelId"), "label")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.backend.RemoveConversationLabel(r.Context(), session.FromContext(r.Context()), conversationID, labelID); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages handles GET /api/v1/conversations/{id}/messages
func (h *ProxyHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"), "conversation")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	messages, err := h.backend.ListMessages(r.Context(), session.FromContext(r.Context()), conversationID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// ListInboxes handles GET /api/v1/inboxes
func (h *ProxyHandler) ListInboxes(w http.ResponseWriter, r *http.Request) {
	inboxes, err := h.backend.ListInboxes(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if inboxes == nil {
		inboxes = []model.Inbox{}
	}
	writeJSON(w, http.StatusOK, inboxes)
}

// ListLabels handles GET /api/v1/labels
func (h *ProxyHandler) ListLabels(w http.ResponseWriter, r *http.Request) {
	list, err := h.backend.ListLabels(r.Context(), session.FromContext(r.Context()))
	if err != nil {
		writeFailure(w, err)
		return
	}
	if list == nil {
		list = []model.Label{}
	}
	writeJSON(w, http.StatusOK, list)
}

// CreateLabel handles POST /api/v1/labels. Reserved titles are refused here
// so the rule holds for every caller, not only the inbox workspace.
func (h *ProxyHandler) CreateLabel(w http.ResponseWriter, r *http.Request) {
	var req model.CreateLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.policy.CheckTitle(req.Title); err != nil {
		writeFailure(w, err)
		return
	}
	color, err := labels.NormalizeColor(req.Color)
	if err != nil {
		writeFailure(w, err)
		return
	}

	label, err := h.backend.CreateLabel(r.Context(), session.FromContext(r.Context()), model.CreateLabelRequest{
		Title: strings.TrimSpace(req.Title),
		Color: color,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, label)
}

// Forward returns a handler relaying everything under a route to base on the
// backend, e.g. /api/v1/backend/invoices/12/pdf to /invoices/12/pdf.
func (h *ProxyHandler) Forward(base string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, ok := forwardPath(base, chi.URLParam(r, "*"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid path", "")
			return
		}

		var body io.Reader
		if r.Body != nil && r.Method != http.MethodGet && r.Method != http.MethodHead {
			body = http.MaxBytesReader(w, r.Body, maxForwardBody)
		}

		sess := session.FromContext(r.Context())
		resp, err := h.backend.Forward(r.Context(), sess, r.Method, target, r.URL.Query(), body, r.Header.Get("Content-Type"))
		if err != nil {
			if messaging.StatusOf(err) == 0 {
				h.logger.ForSession(sess).Error("backend forward failed",
					zap.String("path", target),
					zap.String("correlation_id", session.CorrelationID(r.Context())),
					zap.Error(err),
				)
			}
			writeFailure(w, err)
			return
		}

		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		w.WriteHeader(resp.Status)
		if len(resp.Body) > 0 {
			w.Write(resp.Body)
		}
	}
}

// forwardPath resolves the wildcard part of a passthrough route against base.
// chi hands over the raw, still escaped path, so it is unescaped and cleaned
// before checking that it stays under base. The result is re-escaped.
func forwardPath(base, rest string) (string, bool) {
	if rest == "" {
		return base, true
	}
	unescaped, err := url.PathUnescape(rest)
	if err != nil {
		return "", false
	}
	cleaned := path.Clean(base + "/" + unescaped)
	if cleaned != base && !strings.HasPrefix(cleaned, base+"/") {
		return "", false
	}
	return (&url.URL{Path: cleaned}).EscapedPath(), true
}

func parseFilter(q url.Values) (model.ConversationFilter, error) {
	filter := model.ConversationFilter{
		Status: model.Status(q.Get("status")),
		Label:  q.Get("label"),
	}
	if v := q.Get("inbox_id"); v != "" {
		id, err := middleware.ParseID(v, "inbox")
		if err != nil {
			return filter, err
		}
		filter.InboxID = id
	}
	if v := q.Get("temperature"); v != "" {
		t := model.Temperature(v)
		if !t.Valid() {
			return filter, temperature.ErrInvalid
		}
		filter.Temperature = t
	}
	if v := q.Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			filter.Page = p
		}
	}
	return filter, nil
}
