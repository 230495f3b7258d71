package messaging

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/pkg/logger"
)

var testSession = &session.Session{AccessToken: "tok-123", Subject: "user-1", TenantID: "tenant-1"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second, logger.NewNop())
}

func TestListConversationsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/messaging/conversations", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "3", r.URL.Query().Get("inbox_id"))
		assert.Equal(t, "hot", r.URL.Query().Get("temperature"))
		assert.Empty(t, r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"status":"open","temperature":null,"contact":{"id":9,"name":null}},{"id":2,"status":"open","temperature":"hot","contact":{"id":10}}],"meta":{"page":1,"per_page":25,"total_count":2}}`)
	})

	resp, err := c.ListConversations(context.Background(), testSession, model.ConversationFilter{
		Status:      model.StatusOpen,
		InboxID:     3,
		Temperature: model.TemperatureHot,
	})
	require.NoError(t, err)
	require.Len(t, resp.Conversations, 2)
	assert.Equal(t, model.TemperatureNone, resp.Conversations[0].Temperature)
	assert.Nil(t, resp.Conversations[0].Contact.Name)
	assert.Equal(t, model.TemperatureHot, resp.Conversations[1].Temperature)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.TotalCount)
}

func TestListConversationsPlainArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":7,"status":"pending"}]`)
	})

	resp, err := c.ListConversations(context.Background(), testSession, model.ConversationFilter{})
	require.NoError(t, err)
	require.Len(t, resp.Conversations, 1)
	assert.Equal(t, int64(7), resp.Conversations[0].ID)
	assert.Nil(t, resp.Meta)
}

func TestListConversationsUnknownTemperature(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"temperature":"lukewarm"},{"id":2,"temperature":"cold"}]}`)
	})

	resp, err := c.ListConversations(context.Background(), testSession, model.ConversationFilter{})
	require.NoError(t, err)
	require.Len(t, resp.Conversations, 2)
	assert.Equal(t, model.TemperatureNone, resp.Conversations[0].Temperature)
	assert.Equal(t, model.TemperatureCold, resp.Conversations[1].Temperature)
}

func TestListConversationsEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success":true,"data":null}`)
	})

	resp, err := c.ListConversations(context.Background(), testSession, model.ConversationFilter{})
	require.NoError(t, err)
	assert.NotNil(t, resp.Conversations)
	assert.Empty(t, resp.Conversations)
}

func TestCorrelationIDForwarded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "corr-42", r.Header.Get("X-Correlation-ID"))
		_, _ = io.WriteString(w, `[]`)
	})

	ctx := session.WithCorrelationID(context.Background(), "corr-42")
	_, err := c.ListInboxes(ctx, testSession)
	require.NoError(t, err)
}

func TestNoSessionShortCircuits(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	})

	for _, sess := range []*session.Session{nil, {}, {Subject: "u", TenantID: "t"}} {
		_, err := c.ListLabels(context.Background(), sess)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, StatusOf(err))

		_, err = c.Forward(context.Background(), sess, http.MethodGet, "/orders", nil, nil, "")
		assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	}
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestAPIErrorBodies(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		detail  string
	}{
		{"error and detail", 422, `{"error":"invalid label","detail":"title taken"}`, "invalid label", "title taken"},
		{"message only", 404, `{"message":"Conversation not found"}`, "Conversation not found", ""},
		{"envelope error", 400, `{"success":false,"error":"bad request","message":"page must be positive"}`, "bad request", "page must be positive"},
		{"plain text", 502, "upstream down", "bad gateway", "upstream down"},
		{"empty", 503, "", "service unavailable", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.AddConversationLabel(context.Background(), testSession, 1, 2)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.detail, apiErr.Detail)
		})
	}
}

func TestLongTextDetailIsTruncated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, strings.Repeat("x", 2000))
	})

	_, err := c.ListInboxes(context.Background(), testSession)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Detail, maxDetailLen)
}

func TestTransportErrorHasNoStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	c := NewClient(srv.URL, time.Second, logger.NewNop())

	_, err := c.ListLabels(context.Background(), testSession)
	require.Error(t, err)
	assert.Zero(t, StatusOf(err))
}

func TestNoRetries(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.ListLabels(context.Background(), testSession)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestLabelCalls(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, r.Method+" "+r.URL.Path+" "+strings.TrimSpace(string(body)))
		if r.URL.Path == "/messaging/labels" {
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":31,"title":"vip","color":"#ef4444"}}`)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, c.AddConversationLabel(ctx, testSession, 5, 31))
	require.NoError(t, c.RemoveConversationLabel(ctx, testSession, 5, 31))
	label, err := c.CreateLabel(ctx, testSession, model.CreateLabelRequest{Title: "vip", Color: "#ef4444"})
	require.NoError(t, err)
	assert.Equal(t, int64(31), label.ID)

	assert.Equal(t, []string{
		`POST /messaging/conversations/5/labels {"label_id":31}`,
		`DELETE /messaging/conversations/5/labels/31 `,
		`POST /messaging/labels {"title":"vip","color":"#ef4444"}`,
	}, got)
}

func TestUpdateConversationClearsTemperature(t *testing.T) {
	var body map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/messaging/conversations/1", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"success":true,"data":{"id":1,"status":"open","temperature":null}}`)
	})

	none := model.TemperatureNone
	conv, err := c.UpdateConversation(context.Background(), testSession, 1, model.ConversationUpdate{Temperature: &none})
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, model.TemperatureNone, conv.Temperature)

	v, ok := body["temperature"]
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = body["status"]
	assert.False(t, ok)
}

func TestUpdateConversationEmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	warm := model.TemperatureWarm
	conv, err := c.UpdateConversation(context.Background(), testSession, 1, model.ConversationUpdate{Temperature: &warm})
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestListMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messaging/conversations/4/messages", r.URL.Path)
		_, _ = io.WriteString(w, `[{"id":1,"content":"hola","message_type":"incoming"}]`)
	})

	msgs, err := c.ListMessages(context.Background(), testSession, 4)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.MessageTypeIncoming, msgs[0].MessageType)
}

func TestForward(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/12", r.URL.Path)
		assert.Equal(t, "paid", r.URL.Query().Get("status"))
		assert.Equal(t, "text/csv", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "a,b", string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"ok":true}`)
	})

	resp, err := c.Forward(context.Background(), testSession, http.MethodPost, "/orders/12",
		url.Values{"status": {"paid"}}, strings.NewReader("a,b"), "text/csv")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, "application/json", resp.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestForwardError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":"forbidden","detail":"tenant mismatch"}`)
	})

	_, err := c.Forward(context.Background(), testSession, http.MethodGet, "/invoices", nil, nil, "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "tenant mismatch", apiErr.Detail)
}
