package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ventia/console-gateway/internal/middleware"
	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/service"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/pkg/logger"
)

// WorkspaceHandler serves the inbox workspace of the calling user.
type WorkspaceHandler struct {
	inbox        *service.InboxService
	defaultWidth int
	logger       *logger.Logger
}

// NewWorkspaceHandler creates a new workspace handler. Requests that do not
// report a viewport width are rendered at defaultWidth.
func NewWorkspaceHandler(inbox *service.InboxService, defaultWidth int, log *logger.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		inbox:        inbox,
		defaultWidth: defaultWidth,
		logger:       log,
	}
}

type openRequest struct {
	Filter model.ConversationFilter `json:"filter"`
	Width  int                      `json:"width"`
}

type selectRequest struct {
	ConversationID int64 `json:"conversation_id"`
}

type infoRequest struct {
	Show *bool `json:"show"`
}

type temperatureRequest struct {
	Temperature model.Temperature `json:"temperature"`
}

type createLabelResponse struct {
	Label        *model.Label       `json:"label"`
	Conversation model.Conversation `json:"conversation"`
}

// Open handles POST /api/v1/workspace
func (h *WorkspaceHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.Width <= 0 {
		req.Width = h.width(r)
	}

	ctx := r.Context()
	ws := h.inbox.Open(ctx, session.FromContext(ctx), req.Filter)
	writeJSON(w, http.StatusOK, ws.View(req.Width))
}

// Get handles GET /api/v1/workspace
func (h *WorkspaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, h.inbox.View(ctx, session.FromContext(ctx), h.width(r)))
}

// Close handles DELETE /api/v1/workspace
func (h *WorkspaceHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.inbox.Close(session.FromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// Select handles POST /api/v1/workspace/select
func (h *WorkspaceHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	sess := session.FromContext(ctx)
	if err := h.inbox.Select(ctx, sess, req.ConversationID); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.inbox.View(ctx, sess, h.width(r)))
}

// Back handles POST /api/v1/workspace/back
func (h *WorkspaceHandler) Back(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := session.FromContext(ctx)
	h.inbox.Back(ctx, sess)
	writeJSON(w, http.StatusOK, h.inbox.View(ctx, sess, h.width(r)))
}

// Info handles POST /api/v1/workspace/info. An empty body toggles the panel.
func (h *WorkspaceHandler) Info(w http.ResponseWriter, r *http.Request) {
	var req infoRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	sess := session.FromContext(ctx)
	if _, err := h.inbox.SetInfo(ctx, sess, req.Show); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.inbox.View(ctx, sess, h.width(r)))
}

// Panel handles GET /api/v1/workspace/conversations/{id}/panel
func (h *WorkspaceHandler) Panel(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	panel, err := h.inbox.Panel(ctx, session.FromContext(ctx), conversationID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, panel)
}

// AddLabel handles POST /api/v1/workspace/conversations/{id}/labels
func (h *WorkspaceHandler) AddLabel(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	var req model.AddLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	conv, err := h.inbox.AddLabel(ctx, session.FromContext(ctx), conversationID, req.LabelID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// RemoveLabel handles DELETE /api/v1/workspace/conversations/{id}/labels/{labelId}
func (h *WorkspaceHandler) RemoveLabel(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	labelID, err := middleware.ParseID(chi.URLParam(r, "labelId"), "label")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	ctx := r.Context()
	conv, err := h.inbox.RemoveLabel(ctx, session.FromContext(ctx), conversationID, labelID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// CreateLabel handles POST /api/v1/workspace/conversations/{id}/labels/new
func (h *WorkspaceHandler) CreateLabel(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	var req model.CreateLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	label, conv, err := h.inbox.CreateLabel(ctx, session.FromContext(ctx), conversationID, req.Title, req.Color)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createLabelResponse{Label: label, Conversation: conv})
}

// Temperature handles POST /api/v1/workspace/conversations/{id}/temperature
func (h *WorkspaceHandler) Temperature(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	var req temperatureRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	conv, err := h.inbox.ToggleTemperature(ctx, session.FromContext(ctx), conversationID, req.Temperature)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// SuggestTemperature handles POST /api/v1/workspace/conversations/{id}/temperature/suggest
func (h *WorkspaceHandler) SuggestTemperature(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	suggestion, err := h.inbox.SuggestTemperature(ctx, session.FromContext(ctx), conversationID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestion)
}

// Delete handles DELETE /api/v1/workspace/conversations/{id}
func (h *WorkspaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	sess := session.FromContext(ctx)
	if err := h.inbox.DeleteConversation(ctx, sess, conversationID); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.inbox.View(ctx, sess, h.width(r)))
}

// Messages handles GET /api/v1/workspace/conversations/{id}/messages
func (h *WorkspaceHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := h.conversationID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	messages, err := h.inbox.Transcript(ctx, session.FromContext(ctx), conversationID)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *WorkspaceHandler) conversationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := middleware.ParseID(chi.URLParam(r, "id"), "conversation")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return 0, false
	}
	return id, true
}

func (h *WorkspaceHandler) width(r *http.Request) int {
	return middleware.ParseWidth(r.URL.Query().Get("width"), h.defaultWidth)
}
