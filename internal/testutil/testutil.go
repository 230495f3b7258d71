// Package testutil provides fakes and helpers shared by the gateway tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ventia/console-gateway/internal/llm"
	"github.com/ventia/console-gateway/internal/messaging"
	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/session"
)

// Operation names used by FakeMessaging for failures and call counts.
const (
	OpListConversations = "list_conversations"
	OpListInboxes       = "list_inboxes"
	OpListLabels        = "list_labels"
	OpListMessages      = "list_messages"
	OpAddLabel          = "add_conversation_label"
	OpRemoveLabel       = "remove_conversation_label"
	OpCreateLabel       = "create_label"
	OpUpdate            = "update_conversation"
	OpDelete            = "delete_conversation"
	OpForward           = "forward"
)

// TestSecret signs tokens minted by SessionToken.
const TestSecret = "test-secret"

// Session returns a valid session for tenant-1/user-1.
func Session() *session.Session {
	return &session.Session{
		AccessToken: "test-token",
		Subject:     "user-1",
		TenantID:    "tenant-1",
	}
}

// SessionToken mints an HS256 session token signed with TestSecret.
func SessionToken(t *testing.T, subject, tenantID string, scopes ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":       subject,
		"tenant_id": tenantID,
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	if len(scopes) > 0 {
		claims["scope"] = scopes
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// BackendError returns the error the fake reports for a rejected call.
func BackendError(status int, detail string) error {
	return &messaging.APIError{Status: status, Message: http.StatusText(status), Detail: detail}
}

// ForwardCall records one Forward invocation.
type ForwardCall struct {
	Method string
	Path   string
	Query  url.Values
	Body   string
}

// FakeMessaging is an in-memory stand-in for the messaging client.
type FakeMessaging struct {
	mu sync.Mutex

	Conversations []model.Conversation
	Inboxes       []model.Inbox
	Labels        []model.Label
	Messages      map[int64][]model.Message

	// UpdateResult is returned by UpdateConversation when set.
	UpdateResult *model.Conversation
	// ForwardResult is returned by Forward when set.
	ForwardResult *messaging.Response
	// BeforeCall runs at the start of every call, outside the lock.
	BeforeCall func(op string)

	Forwarded []ForwardCall

	errs   map[string]error
	calls  map[string]int
	nextID int64
}

// NewFakeMessaging creates an empty fake.
func NewFakeMessaging() *FakeMessaging {
	return &FakeMessaging{
		Messages: make(map[int64][]model.Message),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
		nextID:   1000,
	}
}

// Fail makes every later call of op return err. A nil err clears it.
func (f *FakeMessaging) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// Calls returns how many times op was called.
func (f *FakeMessaging) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (f *FakeMessaging) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *FakeMessaging) enter(op string, sess *session.Session) error {
	if hook := f.BeforeCall; hook != nil {
		hook(op)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if !sess.Valid() {
		return messaging.ErrNoSession
	}
	return f.errs[op]
}

func (f *FakeMessaging) ListConversations(ctx context.Context, sess *session.Session, filter model.ConversationFilter) (*model.ListConversationsResponse, error) {
	if err := f.enter(OpListConversations, sess); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Conversation, 0, len(f.Conversations))
	for _, c := range f.Conversations {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, c.Clone())
	}
	return &model.ListConversationsResponse{Conversations: out}, nil
}

func (f *FakeMessaging) ListInboxes(ctx context.Context, sess *session.Session) ([]model.Inbox, error) {
	if err := f.enter(OpListInboxes, sess); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Inbox{}, f.Inboxes...), nil
}

func (f *FakeMessaging) ListLabels(ctx context.Context, sess *session.Session) ([]model.Label, error) {
	if err := f.enter(OpListLabels, sess); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Label{}, f.Labels...), nil
}

func (f *FakeMessaging) ListMessages(ctx context.Context, sess *session.Session, conversationID int64) ([]model.Message, error) {
	if err := f.enter(OpListMessages, sess); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message{}, f.Messages[conversationID]...), nil
}

func (f *FakeMessaging) AddConversationLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) error {
	return f.enter(OpAddLabel, sess)
}

func (f *FakeMessaging) RemoveConversationLabel(ctx context.Context, sess *session.Session, conversationID, labelID int64) error {
	return f.enter(OpRemoveLabel, sess)
}

func (f *FakeMessaging) CreateLabel(ctx context.Context, sess *session.Session, req model.CreateLabelRequest) (*model.Label, error) {
	if err := f.enter(OpCreateLabel, sess); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	label := model.Label{ID: f.nextID, Title: req.Title, Color: req.Color}
	f.Labels = append(f.Labels, label)
	return &label, nil
}

func (f *FakeMessaging) UpdateConversation(ctx context.Context, sess *session.Session, conversationID int64, update model.ConversationUpdate) (*model.Conversation, error) {
	if err := f.enter(OpUpdate, sess); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateResult == nil {
		return nil, nil
	}
	c := f.UpdateResult.Clone()
	return &c, nil
}

func (f *FakeMessaging) DeleteConversation(ctx context.Context, sess *session.Session, conversationID int64) error {
	return f.enter(OpDelete, sess)
}

func (f *FakeMessaging) Forward(ctx context.Context, sess *session.Session, method, path string, query url.Values, body io.Reader, contentType string) (*messaging.Response, error) {
	if err := f.enter(OpForward, sess); err != nil {
		return nil, err
	}
	var data []byte
	if body != nil {
		var err error
		if data, err = io.ReadAll(body); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Forwarded = append(f.Forwarded, ForwardCall{Method: method, Path: path, Query: query, Body: string(data)})
	if f.ForwardResult != nil {
		return f.ForwardResult, nil
	}
	return &messaging.Response{Status: http.StatusOK, ContentType: "application/json", Body: []byte(`{}`)}, nil
}

// FakePublisher records published events.
type FakePublisher struct {
	mu     sync.Mutex
	Events []model.ConversationEvent
	Err    error
}

// PublishEvent records event.
func (p *FakePublisher) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return 0, p.Err
	}
	p.Events = append(p.Events, *event)
	return uint64(len(p.Events)), nil
}

// Types returns the types of the recorded events in order.
func (p *FakePublisher) Types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Type
	}
	return out
}

// FakeLLM answers every completion with Answer.
type FakeLLM struct {
	mu       sync.Mutex
	Answer   string
	Err      error
	Requests []*llm.CompletionRequest
}

// Complete records req and returns the canned answer.
func (f *FakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Requests = append(f.Requests, req)
	if f.Err != nil {
		return nil, f.Err
	}
	return &llm.CompletionResponse{Content: f.Answer, Model: "fake-model"}, nil
}

// Name returns the provider name.
func (f *FakeLLM) Name() string {
	return "fake"
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
