// Package labels manages the labels attached to a conversation with
// optimistic local updates and rollback on failure.
package labels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/internal/workspace"
	"github.com/ventia/console-gateway/pkg/logger"
	"github.com/ventia/console-gateway/pkg/metrics"
)

var (
	// ErrUnknownLabel is returned for label ids missing from the catalog.
	ErrUnknownLabel = errors.New("label not found")
	// ErrBusy is returned while a label creation is already in flight for
	// the same conversation.
	ErrBusy = errors.New("label creation already in progress")
)

// Client is the subset of the messaging client used for labels.
type Client interface {
	AddConversationLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) error
	RemoveConversationLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) error
	CreateLabel(ctx context.Context, sess *session.Session, req model.CreateLabelRequest) (*model.Label, error)
}

// Store is the local state labels are applied to.
type Store interface {
	Get(id int64) (model.Conversation, bool)
	Labels() []model.Label
	MergeLabel(label model.Label)
	Begin(id int64, mutate func(*model.Conversation)) (workspace.Ticket, model.Conversation, error)
	Commit(t workspace.Ticket, server *model.Conversation) (model.Conversation, error)
	Rollback(t workspace.Ticket, undo func(*model.Conversation)) (model.Conversation, error)
	TryAcquire(key string) bool
	Release(key string)
}

// Manager applies label mutations.
type Manager struct {
	client Client
	policy Policy
	logger *logger.Logger
}

// NewManager creates a new label manager.
func NewManager(client Client, policy Policy, log *logger.Logger) *Manager {
	return &Manager{
		client: client,
		policy: policy,
		logger: log,
	}
}

// Policy returns the title policy in use.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Add attaches labelID to the conversation. Adding a label that is already
// attached is a no-op. On failure the label set is restored and the error
// returned.
func (m *Manager) Add(ctx context.Context, sess *session.Session, store Store, conversationID, labelID int64) (model.Conversation, error) {
	label, ok := findLabel(store.Labels(), labelID)
	if !ok {
		return model.Conversation{}, ErrUnknownLabel
	}

	conv, ok := store.Get(conversationID)
	if !ok {
		return model.Conversation{}, workspace.ErrNotFound
	}
	if conv.HasLabel(labelID) {
		return conv, nil
	}

	ticket, _, err := store.Begin(conversationID, attach(label))
	if err != nil {
		return model.Conversation{}, err
	}

	if err := m.client.AddConversationLabel(ctx, sess, conversationID, labelID); err != nil {
		return m.rollback(store, ticket, "label_add", detach(labelID), err,
			zap.Int64("conversation_id", conversationID),
			zap.Int64("label_id", labelID),
		)
	}
	return m.commit(store, ticket, "label_add")
}

// Remove detaches labelID from the conversation, symmetric to Add.
func (m *Manager) Remove(ctx context.Context, sess *session.Session, store Store, conversationID, labelID int64) (model.Conversation, error) {
	conv, ok := store.Get(conversationID)
	if !ok {
		return model.Conversation{}, workspace.ErrNotFound
	}
	if !conv.HasLabel(labelID) {
		return conv, nil
	}

	var removed model.Label
	for _, l := range conv.Labels {
		if l.ID == labelID {
			removed = l
		}
	}
	ticket, _, err := store.Begin(conversationID, detach(labelID))
	if err != nil {
		return model.Conversation{}, err
	}

	if err := m.client.RemoveConversationLabel(ctx, sess, conversationID, labelID); err != nil {
		return m.rollback(store, ticket, "label_remove", attach(removed), err,
			zap.Int64("conversation_id", conversationID),
			zap.Int64("label_id", labelID),
		)
	}
	return m.commit(store, ticket, "label_remove")
}

// Create makes a new label and attaches it to the conversation. The title is
// checked before any network call. If the attach fails the label stays
// created at the provider and in the catalog; only the attach is rolled back.
func (m *Manager) Create(ctx context.Context, sess *session.Session, store Store, conversationID int64, title, color string) (*model.Label, model.Conversation, error) {
	if err := m.policy.CheckTitle(title); err != nil {
		return nil, model.Conversation{}, err
	}
	color, err := NormalizeColor(color)
	if err != nil {
		return nil, model.Conversation{}, err
	}
	if _, ok := store.Get(conversationID); !ok {
		return nil, model.Conversation{}, workspace.ErrNotFound
	}

	key := fmt.Sprintf("create_label:%d", conversationID)
	if !store.TryAcquire(key) {
		return nil, model.Conversation{}, ErrBusy
	}
	defer store.Release(key)

	label, err := m.client.CreateLabel(ctx, sess, model.CreateLabelRequest{
		Title: strings.TrimSpace(title),
		Color: color,
	})
	if err != nil {
		metrics.RecordMutation("label_create", "failed")
		m.logger.Error("failed to create label",
			zap.Int64("conversation_id", conversationID),
			zap.Error(err),
		)
		conv, _ := store.Get(conversationID)
		return nil, conv, err
	}
	metrics.RecordMutation("label_create", "applied")
	store.MergeLabel(*label)

	conv, err := m.Add(ctx, sess, store, conversationID, label.ID)
	if err != nil {
		m.logger.Warn("label created but attach failed",
			zap.Int64("conversation_id", conversationID),
			zap.Int64("label_id", label.ID),
			zap.Error(err),
		)
		return label, conv, err
	}
	return label, conv, nil
}

// Available returns the catalog labels that can still be attached: not
// already attached and not system labels.
func Available(all []model.Label, attached []model.Label) []model.Label {
	have := make(map[int64]struct{}, len(attached))
	for _, l := range attached {
		have[l.ID] = struct{}{}
	}
	out := []model.Label{}
	for _, l := range all {
		if l.System {
			continue
		}
		if _, ok := have[l.ID]; ok {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (m *Manager) commit(store Store, ticket workspace.Ticket, kind string) (model.Conversation, error) {
	conv, err := store.Commit(ticket, nil)
	if errors.Is(err, workspace.ErrStale) {
		metrics.RecordStale(kind)
		metrics.RecordMutation(kind, "applied")
		return conv, nil
	}
	if err != nil {
		return conv, err
	}
	metrics.RecordMutation(kind, "applied")
	return conv, nil
}

// rollback undoes a failed mutation. When a newer write to the same
// conversation is pending, only this mutation's own change is reversed.
func (m *Manager) rollback(store Store, ticket workspace.Ticket, kind string, undo func(*model.Conversation), cause error, fields ...zap.Field) (model.Conversation, error) {
	conv, err := store.Rollback(ticket, undo)
	switch {
	case errors.Is(err, workspace.ErrStale):
		metrics.RecordStale(kind)
		metrics.RecordMutation(kind, "stale")
	case err != nil:
		m.logger.Warn("rollback target vanished", append(fields, zap.Error(err))...)
		metrics.RecordMutation(kind, "rolled_back")
	default:
		metrics.RecordMutation(kind, "rolled_back")
	}
	m.logger.Error("label mutation failed, rolled back", append(fields, zap.String("kind", kind), zap.Error(cause))...)
	return conv, cause
}

func attach(label model.Label) func(*model.Conversation) {
	return func(c *model.Conversation) {
		if !c.HasLabel(label.ID) {
			c.Labels = append(c.Labels, label)
		}
	}
}

func detach(labelID int64) func(*model.Conversation) {
	return func(c *model.Conversation) {
		kept := make([]model.Label, 0, len(c.Labels))
		for _, l := range c.Labels {
			if l.ID != labelID {
				kept = append(kept, l)
			}
		}
		c.Labels = kept
	}
}

func findLabel(labels []model.Label, id int64) (model.Label, bool) {
	for _, l := range labels {
		if l.ID == id {
			return l, true
		}
	}
	return model.Label{}, false
}
