package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventia/console-gateway/internal/advisor"
	"github.com/ventia/console-gateway/internal/labels"
	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/session"
	"github.com/ventia/console-gateway/internal/temperature"
	"github.com/ventia/console-gateway/internal/testutil"
	"github.com/ventia/console-gateway/internal/workspace"
	"github.com/ventia/console-gateway/pkg/logger"
)

type fixture struct {
	svc      *InboxService
	fake     *testutil.FakeMessaging
	events   *testutil.FakePublisher
	llm      *testutil.FakeLLM
	registry *workspace.Registry
	sess     *session.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	fake := testutil.NewFakeMessaging()
	fake.Conversations = []model.Conversation{
		{ID: 4, Status: model.StatusOpen},
		{ID: 5, Status: model.StatusOpen, Temperature: model.TemperatureWarm},
		{ID: 6, Status: model.StatusPending},
	}
	fake.Inboxes = []model.Inbox{{ID: 1, Name: "WhatsApp", ChannelType: "whatsapp"}}
	fake.Labels = []model.Label{{ID: 1, Title: "vip", Color: "#ef4444"}, {ID: 2, Title: "bot", System: true}}

	events := &testutil.FakePublisher{}
	fakeLLM := &testutil.FakeLLM{Answer: "warm"}
	registry := workspace.NewRegistry(0, nil)
	svc := NewInboxService(
		fake,
		registry,
		labels.NewManager(fake, labels.NewPolicy(labels.DefaultReserved), log),
		temperature.NewSelector(fake, log),
		advisor.New(fakeLLM, "", log),
		events,
		log,
	)
	return &fixture{svc: svc, fake: fake, events: events, llm: fakeLLM, registry: registry, sess: testutil.Session()}
}

func TestOpen(t *testing.T) {
	f := newFixture(t)

	ws := f.svc.Open(context.Background(), f.sess, model.ConversationFilter{})
	assert.Len(t, ws.Conversations(), 3)
	assert.Len(t, ws.Inboxes(), 1)
	assert.Len(t, ws.Labels(), 2)
	assert.Equal(t, 1, f.registry.Len())
}

func TestOpenFailuresBecomeEmptyLists(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(testutil.OpListConversations, testutil.BackendError(http.StatusInternalServerError, ""))
	f.fake.Fail(testutil.OpListLabels, errors.New("connection reset"))

	ws := f.svc.Open(context.Background(), f.sess, model.ConversationFilter{})
	assert.Empty(t, ws.Conversations())
	assert.NotNil(t, ws.Conversations())
	assert.Empty(t, ws.Labels())
	assert.Len(t, ws.Inboxes(), 1)

	v := f.svc.View(context.Background(), f.sess, 1024)
	assert.Equal(t, workspace.ModeThreePane, v.Mode)
}

func TestWorkspaceOpensLazily(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Select(context.Background(), f.sess, 5))
	assert.Equal(t, 1, f.fake.Calls(testutil.OpListConversations))

	v := f.svc.View(context.Background(), f.sess, 375)
	assert.Equal(t, []workspace.Pane{workspace.PaneTranscript}, v.Panes)
	assert.Equal(t, 1, f.fake.Calls(testutil.OpListConversations))
}

func TestWorkspacesArePerSession(t *testing.T) {
	f := newFixture(t)
	other := &session.Session{AccessToken: "x", Subject: "user-2", TenantID: "tenant-1"}

	require.NoError(t, f.svc.Select(context.Background(), f.sess, 5))
	v := f.svc.View(context.Background(), other, 375)
	assert.Nil(t, v.SelectedID)
	assert.Equal(t, 2, f.registry.Len())

	f.svc.Close(other)
	assert.Equal(t, 1, f.registry.Len())
}

func TestSetInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	show := true
	_, err := f.svc.SetInfo(ctx, f.sess, &show)
	assert.ErrorIs(t, err, workspace.ErrNoSelection)

	require.NoError(t, f.svc.Select(ctx, f.sess, 4))
	got, err := f.svc.SetInfo(ctx, f.sess, &show)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = f.svc.SetInfo(ctx, f.sess, nil)
	require.NoError(t, err)
	assert.False(t, got)

	f.svc.Back(ctx, f.sess)
	v := f.svc.View(ctx, f.sess, 1280)
	assert.Nil(t, v.SelectedID)
	assert.False(t, v.ShowInfo)
}

func TestPanel(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Panel(context.Background(), f.sess, 5)
	require.NoError(t, err)
	assert.Equal(t, model.TemperatureWarm, p.Temperature)
	assert.Equal(t, model.Temperatures, p.Temperatures)
	assert.NotNil(t, p.Labels)
	assert.Equal(t, []model.Label{{ID: 1, Title: "vip", Color: "#ef4444"}}, p.AvailableLabels)
	assert.Equal(t, labels.Palette, p.LabelColors)

	_, err = f.svc.Panel(context.Background(), f.sess, 99)
	assert.ErrorIs(t, err, workspace.ErrNotFound)
}

func TestAddLabelPublishes(t *testing.T) {
	f := newFixture(t)

	conv, err := f.svc.AddLabel(context.Background(), f.sess, 4, 1)
	require.NoError(t, err)
	assert.True(t, conv.HasLabel(1))

	require.Equal(t, []model.EventType{model.EventTypeLabelAdded}, f.events.Types())
	e := f.events.Events[0]
	assert.Equal(t, int64(4), e.ConversationID)
	assert.Equal(t, "tenant-1", e.TenantID)
	assert.Equal(t, "user-1", e.Subject)
	assert.NotEmpty(t, e.ID)
	require.NotNil(t, e.Conversation)
	assert.True(t, e.Conversation.HasLabel(1))
}

func TestFailedMutationPublishesRollback(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(testutil.OpUpdate, testutil.BackendError(http.StatusInternalServerError, "db down"))

	conv, err := f.svc.ToggleTemperature(context.Background(), f.sess, 5, model.TemperatureHot)
	require.Error(t, err)
	assert.Equal(t, model.TemperatureWarm, conv.Temperature)

	require.Equal(t, []model.EventType{model.EventTypeRolledBack}, f.events.Types())
	assert.Contains(t, f.events.Events[0].Reason, "db down")
}

func TestValidationErrorPublishesNothing(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.CreateLabel(context.Background(), f.sess, 4, "Bot", "")
	assert.ErrorIs(t, err, labels.ErrReservedTitle)
	_, err = f.svc.AddLabel(context.Background(), f.sess, 4, 77)
	assert.ErrorIs(t, err, labels.ErrUnknownLabel)

	assert.Empty(t, f.events.Types())
	assert.Zero(t, f.fake.Calls(testutil.OpCreateLabel))
}

func TestCreateLabelPublishes(t *testing.T) {
	f := newFixture(t)

	label, conv, err := f.svc.CreateLabel(context.Background(), f.sess, 6, "mayorista", "")
	require.NoError(t, err)
	assert.True(t, conv.HasLabel(label.ID))
	assert.Equal(t, []model.EventType{model.EventTypeLabelCreated, model.EventTypeLabelAdded}, f.events.Types())
	assert.Equal(t, "mayorista", f.events.Events[0].Reason)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	f.events.Err = errors.New("nats down")

	_, err := f.svc.ToggleTemperature(context.Background(), f.sess, 4, model.TemperatureCold)
	assert.NoError(t, err)
}

func TestDeleteSelected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Select(ctx, f.sess, 5))
	show := true
	_, err := f.svc.SetInfo(ctx, f.sess, &show)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteConversation(ctx, f.sess, 5))

	v := f.svc.View(ctx, f.sess, 1280)
	assert.Nil(t, v.SelectedID)
	assert.False(t, v.ShowInfo)
	for _, c := range v.Conversations {
		assert.NotEqual(t, int64(5), c.ID)
	}
	assert.Equal(t, []model.EventType{model.EventTypeDeleted}, f.events.Types())
}

func TestDeleteFailureKeepsConversation(t *testing.T) {
	f := newFixture(t)
	f.fake.Fail(testutil.OpDelete, testutil.BackendError(http.StatusForbidden, ""))

	err := f.svc.DeleteConversation(context.Background(), f.sess, 5)
	require.Error(t, err)
	assert.Len(t, f.svc.View(context.Background(), f.sess, 1280).Conversations, 3)
	assert.Empty(t, f.events.Types())
}

func TestTranscript(t *testing.T) {
	f := newFixture(t)
	f.fake.Messages[4] = []model.Message{{ID: 1, Content: "hola"}}

	msgs, err := f.svc.Transcript(context.Background(), f.sess, 4)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	msgs, err = f.svc.Transcript(context.Background(), f.sess, 6)
	require.NoError(t, err)
	assert.NotNil(t, msgs)

	_, err = f.svc.Transcript(context.Background(), f.sess, 99)
	assert.ErrorIs(t, err, workspace.ErrNotFound)
}

func TestSuggestTemperature(t *testing.T) {
	f := newFixture(t)
	f.fake.Messages[4] = []model.Message{{Content: "me interesa", MessageType: model.MessageTypeIncoming}}

	s, err := f.svc.SuggestTemperature(context.Background(), f.sess, 4)
	require.NoError(t, err)
	assert.Equal(t, model.TemperatureWarm, s.Temperature)

	conv, _ := f.registry.GetOrCreate(f.sess.Key()).Get(4)
	assert.Equal(t, model.TemperatureNone, conv.Temperature)
	assert.Zero(t, f.fake.Calls(testutil.OpUpdate))
}

func TestSuggestTemperatureDisabled(t *testing.T) {
	log := logger.NewNop()
	fake := testutil.NewFakeMessaging()
	svc := NewInboxService(fake, workspace.NewRegistry(0, nil),
		labels.NewManager(fake, labels.NewPolicy(nil), log),
		temperature.NewSelector(fake, log), nil, nil, log)

	_, err := svc.SuggestTemperature(context.Background(), testutil.Session(), 1)
	assert.ErrorIs(t, err, advisor.ErrDisabled)

	// Mutations work without a publisher.
	fake.Conversations = []model.Conversation{{ID: 1}}
	svc.Open(context.Background(), testutil.Session(), model.ConversationFilter{})
	_, err = svc.ToggleTemperature(context.Background(), testutil.Session(), 1, model.TemperatureHot)
	assert.NoError(t, err)
}

func TestApplyRemote(t *testing.T) {
	f := newFixture(t)
	f.svc.Open(context.Background(), f.sess, model.ConversationFilter{})

	remote := func(subject, tenant string, typ model.EventType, conv *model.Conversation) *model.ConversationEvent {
		e := &model.ConversationEvent{Subject: subject, TenantID: tenant, Type: typ, Conversation: conv}
		if conv != nil {
			e.ConversationID = conv.ID
		}
		return e
	}
	hot := &model.Conversation{ID: 4, Temperature: model.TemperatureHot}

	assert.False(t, f.svc.ApplyRemote(f.sess, remote("user-1", "tenant-1", model.EventTypeTemperatureChanged, hot)))
	assert.False(t, f.svc.ApplyRemote(f.sess, remote("user-2", "tenant-2", model.EventTypeTemperatureChanged, hot)))
	assert.False(t, f.svc.ApplyRemote(f.sess, remote("user-2", "tenant-1", model.EventTypeRolledBack, nil)))

	assert.True(t, f.svc.ApplyRemote(f.sess, remote("user-2", "tenant-1", model.EventTypeTemperatureChanged, hot)))
	ws, _ := f.registry.Get(f.sess.Key())
	conv, _ := ws.Get(4)
	assert.Equal(t, model.TemperatureHot, conv.Temperature)

	deleted := &model.ConversationEvent{Subject: "user-2", TenantID: "tenant-1", Type: model.EventTypeDeleted, ConversationID: 6}
	assert.True(t, f.svc.ApplyRemote(f.sess, deleted))
	_, ok := ws.Get(6)
	assert.False(t, ok)

	closed := &session.Session{AccessToken: "x", Subject: "user-3", TenantID: "tenant-1"}
	assert.False(t, f.svc.ApplyRemote(closed, remote("user-2", "tenant-1", model.EventTypeTemperatureChanged, hot)))
}
