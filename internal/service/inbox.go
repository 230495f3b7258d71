// Package service provides the inbox orchestration of the console gateway.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/advisor"
	"github.com/ventia/console-gateway/internal/labels"
	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/internal/temperature"
	"github.com/ventia/console-gateway/internal/workspace"
	"github.com/ventia/console-gateway/pkg/logger"
)

// MessagingClient is the backend surface the inbox needs.
type MessagingClient interface {
	labels.Client
	temperature.Client
	ListConversations(ctx context.Context, sess *session.Session, filter model.ConversationFilter) (*model.ListConversationsResponse, error)
	ListInboxes(ctx context.Context, sess *session.Session) ([]model.Inbox, error)
	ListLabels(ctx context.Context, sess *session.Session) ([]model.Label, error)
	ListMessages(ctx context.Context, sess *session.Session, conversationID int64) ([]model.Message, error)
	DeleteConversation(ctx context.Context, sess *session.Session, conversationID int64) error
}

// EventPublisher receives every mutation applied through the gateway.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// InboxService owns the per-user workspaces and routes mutations through the
// label manager and the temperature selector.
type InboxService struct {
	client   MessagingClient
	registry *workspace.Registry
	labels   *labels.Manager
	temps    *temperature.Selector
	advisor  *advisor.Advisor
	events   EventPublisher
	logger   *logger.Logger
}

// NewInboxService creates a new inbox service. events and adv may be nil.
func NewInboxService(
	client MessagingClient,
	registry *workspace.Registry,
	labelManager *labels.Manager,
	selector *temperature.Selector,
	adv *advisor.Advisor,
	events EventPublisher,
	log *logger.Logger,
) *InboxService {
	return &InboxService{
		client:   client,
		registry: registry,
		labels:   labelManager,
		temps:    selector,
		advisor:  adv,
		events:   events,
		logger:   log,
	}
}

// Open performs the initial fetch for the caller's workspace. A failed fetch
// is logged and replaced by an empty list so the inbox still renders.
func (s *InboxService) Open(ctx context.Context, sess *session.Session, filter model.ConversationFilter) *workspace.Workspace {
	ws := s.registry.GetOrCreate(sess.Key())
	log := s.logger.ForSession(sess)

	var (
		wg            sync.WaitGroup
		conversations []model.Conversation
		inboxes       []model.Inbox
		catalog       []model.Label
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		resp, err := s.client.ListConversations(ctx, sess, filter)
		if err != nil {
			log.Warn("failed to load conversations", zap.Error(err))
			return
		}
		conversations = resp.Conversations
	}()
	go func() {
		defer wg.Done()
		var err error
		if inboxes, err = s.client.ListInboxes(ctx, sess); err != nil {
			log.Warn("failed to load inboxes", zap.Error(err))
			inboxes = nil
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if catalog, err = s.client.ListLabels(ctx, sess); err != nil {
			log.Warn("failed to load labels", zap.Error(err))
			catalog = nil
		}
	}()
	wg.Wait()

	ws.Load(conversations, inboxes, catalog)
	log.Debug("workspace loaded",
		zap.Int("conversations", len(conversations)),
		zap.Int("inboxes", len(inboxes)),
		zap.Int("labels", len(catalog)),
	)
	return ws
}

// Close discards the caller's workspace.
func (s *InboxService) Close(sess *session.Session) {
	s.registry.Drop(sess.Key())
}

// View renders the caller's workspace for a viewport width, opening it first
// if needed.
func (s *InboxService) View(ctx context.Context, sess *session.Session, width int) workspace.View {
	return s.workspace(ctx, sess).View(width)
}

// Select selects a conversation.
func (s *InboxService) Select(ctx context.Context, sess *session.Session, conversationID int64) error {
	return s.workspace(ctx, sess).Select(conversationID)
}

// Back clears the selection.
func (s *InboxService) Back(ctx context.Context, sess *session.Session) {
	s.workspace(ctx, sess).Back()
}

// SetInfo shows or hides the info panel; a nil show toggles it.
func (s *InboxService) SetInfo(ctx context.Context, sess *session.Session, show *bool) (bool, error) {
	ws := s.workspace(ctx, sess)
	if show == nil {
		return ws.ToggleInfo()
	}
	if err := ws.SetInfo(*show); err != nil {
		return false, err
	}
	return *show, nil
}

// Panel is the contact info panel of one conversation.
type Panel struct {
	Conversation    model.Conversation  `json:"conversation"`
	Contact         model.Contact       `json:"contact"`
	Temperature     model.Temperature   `json:"temperature"`
	Temperatures    []model.Temperature `json:"temperatures"`
	Labels          []model.Label       `json:"labels"`
	AvailableLabels []model.Label       `json:"available_labels"`
	LabelColors     []string            `json:"label_colors"`
}

// Panel returns the info panel data for a conversation.
func (s *InboxService) Panel(ctx context.Context, sess *session.Session, conversationID int64) (*Panel, error) {
	ws := s.workspace(ctx, sess)
	conv, ok := ws.Get(conversationID)
	if !ok {
		return nil, workspace.ErrNotFound
	}
	attached := conv.Labels
	if attached == nil {
		attached = []model.Label{}
	}
	return &Panel{
		Conversation:    conv,
		Contact:         conv.Contact,
		Temperature:     conv.Temperature,
		Temperatures:    model.Temperatures,
		Labels:          attached,
		AvailableLabels: labels.Available(ws.Labels(), attached),
		LabelColors:     labels.Palette,
	}, nil
}

// AddLabel attaches a label to a conversation.
func (s *InboxService) AddLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) (model.Conversation, error) {
	conv, err := s.labels.Add(ctx, sess, s.workspace(ctx, sess), conversationID, labelID)
	s.afterMutation(ctx, sess, model.EventTypeLabelAdded, conv, err)
	return conv, err
}

// RemoveLabel detaches a label from a conversation.
func (s *InboxService) RemoveLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) (model.Conversation, error) {
	conv, err := s.labels.Remove(ctx, sess, s.workspace(ctx, sess), conversationID, labelID)
	s.afterMutation(ctx, sess, model.EventTypeLabelRemoved, conv, err)
	return conv, err
}

// CreateLabel creates a label and attaches it to the conversation.
func (s *InboxService) CreateLabel(ctx context.Context, sess *session.Session, conversationID int64, title, color string) (*model.Label, model.Conversation, error) {
	label, conv, err := s.labels.Create(ctx, sess, s.workspace(ctx, sess), conversationID, title, color)
	if label != nil {
		s.publish(ctx, sess, model.EventTypeLabelCreated, conv, label.Title)
		s.afterMutation(ctx, sess, model.EventTypeLabelAdded, conv, err)
	}
	return label, conv, err
}

// ToggleTemperature applies a click on a temperature value.
func (s *InboxService) ToggleTemperature(ctx context.Context, sess *session.Session, conversationID int64, clicked model.Temperature) (model.Conversation, error) {
	conv, err := s.temps.Toggle(ctx, sess, s.workspace(ctx, sess), conversationID, clicked)
	s.afterMutation(ctx, sess, model.EventTypeTemperatureChanged, conv, err)
	return conv, err
}

// DeleteConversation deletes a conversation at the provider and drops it from
// the workspace, clearing the selection if it was selected.
func (s *InboxService) DeleteConversation(ctx context.Context, sess *session.Session, conversationID int64) error {
	ws := s.workspace(ctx, sess)
	conv, ok := ws.Get(conversationID)
	if !ok {
		return workspace.ErrNotFound
	}
	if err := s.client.DeleteConversation(ctx, sess, conversationID); err != nil {
		s.logger.ForSession(sess).ForConversation(conversationID).Error("failed to delete conversation", zap.Error(err))
		return err
	}
	ws.Remove(conversationID)
	s.publish(ctx, sess, model.EventTypeDeleted, conv, "")
	return nil
}

// Transcript returns the messages of a conversation in the workspace.
func (s *InboxService) Transcript(ctx context.Context, sess *session.Session, conversationID int64) ([]model.Message, error) {
	if _, ok := s.workspace(ctx, sess).Get(conversationID); !ok {
		return nil, workspace.ErrNotFound
	}
	messages, err := s.client.ListMessages(ctx, sess, conversationID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// SuggestTemperature asks the advisor for a temperature. Nothing is written.
func (s *InboxService) SuggestTemperature(ctx context.Context, sess *session.Session, conversationID int64) (*advisor.Suggestion, error) {
	if !s.advisor.Enabled() {
		return nil, advisor.ErrDisabled
	}
	conv, ok := s.workspace(ctx, sess).Get(conversationID)
	if !ok {
		return nil, workspace.ErrNotFound
	}
	messages, err := s.client.ListMessages(ctx, sess, conversationID)
	if err != nil {
		return nil, err
	}
	return s.advisor.Suggest(ctx, conv, messages)
}

// ApplyRemote folds an event produced by another user of the same tenant into
// the caller's workspace. Events produced by the caller are ignored.
func (s *InboxService) ApplyRemote(sess *session.Session, event *model.ConversationEvent) bool {
	if event.TenantID != sess.TenantID || event.Subject == sess.Subject {
		return false
	}
	ws, ok := s.registry.Get(sess.Key())
	if !ok {
		return false
	}
	if event.Type == model.EventTypeDeleted {
		return ws.Remove(event.ConversationID)
	}
	if event.Conversation == nil {
		return false
	}
	return ws.Replace(*event.Conversation)
}

func (s *InboxService) workspace(ctx context.Context, sess *session.Session) *workspace.Workspace {
	if ws, ok := s.registry.Get(sess.Key()); ok {
		return ws
	}
	return s.Open(ctx, sess, model.ConversationFilter{})
}

// afterMutation publishes the outcome of an optimistic mutation. Validation
// errors never touched state and publish nothing.
func (s *InboxService) afterMutation(ctx context.Context, sess *session.Session, applied model.EventType, conv model.Conversation, err error) {
	switch {
	case err == nil:
		s.publish(ctx, sess, applied, conv, "")
	case isBackendFailure(err) && conv.ID != 0:
		s.publish(ctx, sess, model.EventTypeRolledBack, conv, err.Error())
	}
}

func (s *InboxService) publish(ctx context.Context, sess *session.Session, eventType model.EventType, conv model.Conversation, reason string) {
	if s.events == nil || conv.ID == 0 {
		return
	}
	snapshot := conv
	event := &model.ConversationEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		TenantID:       sess.TenantID,
		Subject:        sess.Subject,
		Type:           eventType,
		Reason:         reason,
		Conversation:   &snapshot,
		CreatedAt:      time.Now(),
	}
	if _, err := s.events.PublishEvent(ctx, event); err != nil {
		s.logger.ForSession(sess).Warn("failed to publish inbox event",
			zap.String("type", string(eventType)),
			zap.Int64("conversation_id", conv.ID),
			zap.Error(err),
		)
	}
}

// isBackendFailure separates backend/transport errors from local validation.
func isBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	for _, local := range []error{
		workspace.ErrNotFound,
		labels.ErrUnknownLabel,
		labels.ErrBusy,
		labels.ErrEmptyTitle,
		labels.ErrReservedTitle,
		labels.ErrTitleTooLong,
		labels.ErrInvalidColor,
		temperature.ErrInvalid,
	} {
		if errors.Is(err, local) {
			return false
		}
	}
	return true
}
