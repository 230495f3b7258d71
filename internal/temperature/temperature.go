// Package temperature implements the cold/warm/hot selector of a conversation.
package temperature

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/internal/workspace"
	"github.com/ventia/console-gateway/pkg/logger"
	"github.com/ventia/console-gateway/pkg/metrics"
)

// ErrInvalid is returned for values outside cold, warm and hot.
var ErrInvalid = errors.New("temperature must be one of cold, warm, hot")

// Next returns the temperature after clicking clicked while current is set.
// Clicking the active value clears it.
func Next(current, clicked model.Temperature) model.Temperature {
	if clicked == current {
		return model.TemperatureNone
	}
	return clicked
}

// Client is the subset of the messaging client used by the selector.
type Client interface {
	UpdateConversation(ctx context.Context, sess *session.Session, conversationID int64, update model.ConversationUpdate) (*model.Conversation, error)
}

// Store is the local state the selector writes to.
type Store interface {
	Get(id int64) (model.Conversation, bool)
	Begin(id int64, mutate func(*model.Conversation)) (workspace.Ticket, model.Conversation, error)
	Commit(t workspace.Ticket, server *model.Conversation) (model.Conversation, error)
	Rollback(t workspace.Ticket, undo func(*model.Conversation)) (model.Conversation, error)
}

// Selector toggles temperatures optimistically.
type Selector struct {
	client Client
	logger *logger.Logger
}

// NewSelector creates a new temperature selector.
func NewSelector(client Client, log *logger.Logger) *Selector {
	return &Selector{client: client, logger: log}
}

// Toggle applies a click on clicked. The new value is visible in store before
// the backend answers; on failure the prior value is restored and the error
// returned.
func (s *Selector) Toggle(ctx context.Context, sess *session.Session, store Store, conversationID int64, clicked model.Temperature) (model.Conversation, error) {
	if clicked == model.TemperatureNone || !clicked.Valid() {
		return model.Conversation{}, ErrInvalid
	}
	if _, ok := store.Get(conversationID); !ok {
		return model.Conversation{}, workspace.ErrNotFound
	}

	var next model.Temperature
	ticket, _, err := store.Begin(conversationID, func(c *model.Conversation) {
		next = Next(c.Temperature, clicked)
		c.Temperature = next
	})
	if err != nil {
		return model.Conversation{}, err
	}

	server, err := s.client.UpdateConversation(ctx, sess, conversationID, model.ConversationUpdate{
		Temperature: &next,
	})
	if err != nil {
		// A newer click already replaced the value; there is nothing to undo.
		conv, rbErr := store.Rollback(ticket, nil)
		if errors.Is(rbErr, workspace.ErrStale) {
			metrics.RecordStale("temperature")
			metrics.RecordMutation("temperature", "stale")
		} else {
			metrics.RecordMutation("temperature", "rolled_back")
		}
		s.logger.ForSession(sess).ForConversation(conversationID).Error("temperature update failed, rolled back",
			zap.String("temperature", string(next)),
			zap.Error(err),
		)
		return conv, err
	}

	conv, err := store.Commit(ticket, server)
	if errors.Is(err, workspace.ErrStale) {
		metrics.RecordStale("temperature")
		err = nil
	}
	if err != nil {
		return conv, err
	}
	metrics.RecordMutation("temperature", "applied")
	return conv, nil
}
