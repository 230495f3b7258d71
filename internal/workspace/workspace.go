// Package workspace holds the per-user inbox state: the conversation list,
// the selection and the info panel flag. The list is the single source of
// truth; the selected conversation is always looked up in it.
package workspace

import (
	"errors"
	"sync"

	"github.com/ventia/console-gateway/internal/model"
)

var (
	// ErrNotFound is returned for ids that are not in the list.
	ErrNotFound = errors.New("conversation not found")
	// ErrNoSelection is returned when an operation needs a selected conversation.
	ErrNoSelection = errors.New("no conversation selected")
)

// Workspace is safe for concurrent use.
type Workspace struct {
	mu sync.Mutex

	conversations []model.Conversation
	inboxes       []model.Inbox
	labels        []model.Label

	selectedID   int64
	hasSelection bool
	showInfo     bool

	versions map[int64]uint64
	busy     map[string]struct{}

	breakpoint int
}

// New creates an empty workspace.
func New(breakpoint int) *Workspace {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}
	return &Workspace{
		conversations: []model.Conversation{},
		inboxes:       []model.Inbox{},
		labels:        []model.Label{},
		versions:      make(map[int64]uint64),
		busy:          make(map[string]struct{}),
		breakpoint:    breakpoint,
	}
}

// Load replaces the cached server state. Every version is bumped so that
// responses to mutations started before the load are treated as stale. The
// selection survives only if the selected conversation is still listed.
func (w *Workspace) Load(conversations []model.Conversation, inboxes []model.Inbox, labels []model.Label) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.conversations = make([]model.Conversation, 0, len(conversations))
	for _, c := range conversations {
		w.conversations = append(w.conversations, c.Clone())
		w.versions[c.ID]++
	}
	w.inboxes = append([]model.Inbox{}, inboxes...)
	w.labels = append([]model.Label{}, labels...)

	if w.hasSelection && w.indexOf(w.selectedID) < 0 {
		w.clearSelection()
	}
}

// Conversations returns a copy of the list in display order.
func (w *Workspace) Conversations() []model.Conversation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.copyConversations()
}

// Labels returns the label catalog.
func (w *Workspace) Labels() []model.Label {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Label{}, w.labels...)
}

// Inboxes returns the inbox catalog.
func (w *Workspace) Inboxes() []model.Inbox {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Inbox{}, w.inboxes...)
}

// MergeLabel adds label to the catalog, replacing an entry with the same id.
func (w *Workspace) MergeLabel(label model.Label) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.labels {
		if w.labels[i].ID == label.ID {
			w.labels[i] = label
			return
		}
	}
	w.labels = append(w.labels, label)
}

// Get returns a copy of the conversation with the given id.
func (w *Workspace) Get(id int64) (model.Conversation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexOf(id)
	if i < 0 {
		return model.Conversation{}, false
	}
	return w.conversations[i].Clone(), true
}

// Select makes id the selected conversation and hides the info panel.
func (w *Workspace) Select(id int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.indexOf(id) < 0 {
		return ErrNotFound
	}
	w.selectedID = id
	w.hasSelection = true
	w.showInfo = false
	return nil
}

// Back returns to the list-only state.
func (w *Workspace) Back() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.clearSelection()
}

// SetInfo shows or hides the info panel.
func (w *Workspace) SetInfo(show bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if show && !w.hasSelection {
		return ErrNoSelection
	}
	w.showInfo = show
	return nil
}

// ToggleInfo flips the info panel flag and returns the new value.
func (w *Workspace) ToggleInfo() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasSelection {
		return false, ErrNoSelection
	}
	w.showInfo = !w.showInfo
	return w.showInfo, nil
}

// Selected returns the selected conversation, looked up in the list.
func (w *Workspace) Selected() (model.Conversation, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasSelection {
		return model.Conversation{}, false
	}
	i := w.indexOf(w.selectedID)
	if i < 0 {
		return model.Conversation{}, false
	}
	return w.conversations[i].Clone(), true
}

// SelectedID returns the selected id, if any.
func (w *Workspace) SelectedID() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedID, w.hasSelection
}

// ShowInfo reports whether the info panel is visible.
func (w *Workspace) ShowInfo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.showInfo
}

// Replace swaps in conv for the entry with the same id, keeping list order.
func (w *Workspace) Replace(conv model.Conversation) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexOf(conv.ID)
	if i < 0 {
		return false
	}
	w.conversations[i] = conv.Clone()
	w.versions[conv.ID]++
	return true
}

// Remove drops a conversation. If it was selected, the selection and the info
// panel are cleared.
func (w *Workspace) Remove(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexOf(id)
	if i < 0 {
		return false
	}
	w.conversations = append(w.conversations[:i], w.conversations[i+1:]...)
	delete(w.versions, id)
	if w.hasSelection && w.selectedID == id {
		w.clearSelection()
	}
	return true
}

// TryAcquire sets an in-flight flag. It returns false if the flag is already set.
func (w *Workspace) TryAcquire(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.busy[key]; ok {
		return false
	}
	w.busy[key] = struct{}{}
	return true
}

// Release clears an in-flight flag.
func (w *Workspace) Release(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.busy, key)
}

// View is the rendered state of the inbox for one viewport width.
type View struct {
	Mode          Mode                 `json:"mode"`
	Panes         []Pane               `json:"panes"`
	CanGoBack     bool                 `json:"can_go_back"`
	SelectedID    *int64               `json:"selected_id"`
	ShowInfo      bool                 `json:"show_info"`
	Selected      *model.Conversation  `json:"selected,omitempty"`
	Conversations []model.Conversation `json:"conversations"`
	Inboxes       []model.Inbox        `json:"inboxes"`
	Labels        []model.Label        `json:"labels"`
}

// View renders the workspace for the given viewport width.
func (w *Workspace) View(width int) View {
	w.mu.Lock()
	defer w.mu.Unlock()

	mode, panes := Layout(width, w.breakpoint, w.hasSelection, w.showInfo)
	v := View{
		Mode:          mode,
		Panes:         panes,
		CanGoBack:     mode == ModeStacked && w.hasSelection,
		ShowInfo:      w.showInfo,
		Conversations: w.copyConversations(),
		Inboxes:       append([]model.Inbox{}, w.inboxes...),
		Labels:        append([]model.Label{}, w.labels...),
	}
	if w.hasSelection {
		id := w.selectedID
		v.SelectedID = &id
		if i := w.indexOf(id); i >= 0 {
			sel := w.conversations[i].Clone()
			v.Selected = &sel
		}
	}
	return v
}

func (w *Workspace) indexOf(id int64) int {
	for i := range w.conversations {
		if w.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

func (w *Workspace) clearSelection() {
	w.selectedID = 0
	w.hasSelection = false
	w.showInfo = false
}

func (w *Workspace) copyConversations() []model.Conversation {
	out := make([]model.Conversation, len(w.conversations))
	for i := range w.conversations {
		out[i] = w.conversations[i].Clone()
	}
	return out
}
