package workspace

import (
	"errors"

	"github.com/ventia/console-gateway/internal/model"
)

// ErrStale is returned when a commit or rollback arrives after a newer local
// write to the same conversation. The newer write wins.
var ErrStale = errors.New("superseded by a newer local change")

// Ticket tracks one optimistic mutation until the server answers.
type Ticket struct {
	ConversationID int64
	Version        uint64
	Prior          model.Conversation
}

// Begin applies mutate to the conversation immediately and returns a ticket
// plus the optimistic state. Each Begin bumps the conversation's version.
func (w *Workspace) Begin(id int64, mutate func(*model.Conversation)) (Ticket, model.Conversation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexOf(id)
	if i < 0 {
		return Ticket{}, model.Conversation{}, ErrNotFound
	}

	prior := w.conversations[i].Clone()
	next := prior.Clone()
	mutate(&next)
	w.conversations[i] = next

	w.versions[id]++
	t := Ticket{
		ConversationID: id,
		Version:        w.versions[id],
		Prior:          prior,
	}
	return t, next.Clone(), nil
}

// Commit confirms a mutation. When server is non-nil it replaces the local
// entry. Confirmations for superseded tickets are dropped with ErrStale.
func (w *Workspace) Commit(t Ticket, server *model.Conversation) (model.Conversation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexOf(t.ConversationID)
	if i < 0 {
		return model.Conversation{}, ErrNotFound
	}
	if w.versions[t.ConversationID] != t.Version {
		return w.conversations[i].Clone(), ErrStale
	}
	if server != nil && server.ID == t.ConversationID {
		w.conversations[i] = server.Clone()
	}
	return w.conversations[i].Clone(), nil
}

// Rollback restores the state captured by Begin. If a newer local write has
// happened since, the prior snapshot would clobber it: undo, when non-nil, is
// applied to the current entry instead so that only this ticket's own change
// is reverted, and ErrStale is returned. The version is not bumped by a merge,
// so the newer write still commits normally.
func (w *Workspace) Rollback(t Ticket, undo func(*model.Conversation)) (model.Conversation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.indexOf(t.ConversationID)
	if i < 0 {
		return model.Conversation{}, ErrNotFound
	}
	if w.versions[t.ConversationID] != t.Version {
		if undo != nil {
			merged := w.conversations[i].Clone()
			undo(&merged)
			w.conversations[i] = merged
		}
		return w.conversations[i].Clone(), ErrStale
	}
	w.conversations[i] = t.Prior.Clone()
	return w.conversations[i].Clone(), nil
}
