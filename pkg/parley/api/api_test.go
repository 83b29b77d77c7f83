package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/auth"
	"github.com/tsarna/parley/pkg/parley/client"
	"github.com/tsarna/parley/pkg/parley/hub"
	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/protocol"
	"github.com/tsarna/parley/pkg/parley/realtime"
	"github.com/tsarna/parley/pkg/parley/result"
	"github.com/tsarna/parley/pkg/parley/store/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	srv      *httptest.Server
	hub      *hub.Hub
	verifier *auth.HMACVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := memory.NewDirectory(
		model.User{ID: "alice", Username: "alice"},
		model.User{ID: "bob", Username: "bob"},
		model.User{ID: "carol", Username: "carol"},
	)
	store := memory.NewStore(dir, zap.NewNop())

	h, err := hub.NewConfig().
		WithLogger(zap.NewNop()).
		WithChats(store).
		WithMessages(store).
		WithMembership(store).
		WithFriends(memory.NewFriends(dir, zap.NewNop())).
		WithUsers(dir).
		Build()
	require.NoError(t, err)

	verifier, err := auth.NewHMACVerifier("api-secret", 0)
	require.NoError(t, err)
	validator := auth.NewLocalValidator(verifier, zap.NewNop())

	listener, err := realtime.NewListenerConfig().
		WithHub(h).
		WithValidator(validator).
		WithLogger(zap.NewNop()).
		WithPingInterval(0).
		Build()
	require.NoError(t, err)

	router, err := NewConfig().
		WithHub(h).
		WithListener(listener).
		WithValidator(validator).
		Build()
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, hub: h, verifier: verifier}
}

func (f *fixture) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := f.verifier.Sign(user, time.Hour)
	require.NoError(t, err)
	return tok
}

// call performs a request as user ("" sends no token) and decodes the
// result body.
func (f *fixture) call(t *testing.T, method, path, user string, body any) (int, result.Result) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.srv.URL+DefaultBasePath+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+f.token(t, user))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var r result.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	return resp.StatusCode, r
}

func (f *fixture) connect(t *testing.T, path, user string, decoder client.Decoder) *client.Inbox {
	t.Helper()

	inbox := client.NewInbox(16)
	c, err := client.NewClient().
		WithURL("ws" + strings.TrimPrefix(f.srv.URL, "http") + DefaultBasePath + path).
		WithToken(f.token(t, user)).
		WithDecoder(decoder).
		WithHandler(inbox).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(func() { c.Disconnect() })

	return inbox
}

func next(t *testing.T, inbox *client.Inbox) protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	f, err := inbox.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, f.Message, string(f.Raw))
	return f.Message
}

func TestConfigValidation(t *testing.T) {
	_, err := NewConfig().Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Hub")
	assert.Contains(t, err.Error(), "Listener")
	assert.Contains(t, err.Error(), "Validator")

	assert.Equal(t, "/chat/api", NewConfig().WithBasePath("chat/api/").basePath)
	assert.Equal(t, "", NewConfig().WithBasePath("/").basePath)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + DefaultBasePath + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["connections"])
	assert.Equal(t, float64(0), body["topics"])
}

func TestCorrelationID(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + DefaultBasePath + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	_, err = ksuid.Parse(resp.Header.Get(CorrelationHeader))
	assert.NoError(t, err)

	incoming := ksuid.New().String()
	req, err := http.NewRequest(http.MethodGet, f.srv.URL+DefaultBasePath+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(CorrelationHeader, incoming)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, incoming, resp.Header.Get(CorrelationHeader))
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)

	code, r := f.call(t, http.MethodGet, "/chat/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "No token", r.Message)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+DefaultBasePath+"/friends", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	assert.Equal(t, "Invalid token", r.Message)
}

func TestCreateChatNotifiesParticipants(t *testing.T) {
	f := newFixture(t)
	bob := f.connect(t, "/chat/ws/chats", "bob", client.ChatFrames)
	require.Eventually(t, func() bool { return f.hub.Users().HasTopic("bob") }, time.Second, 10*time.Millisecond)

	code, r := f.call(t, http.MethodPost, "/chat/create", "alice", model.CreateChatRequest{ParticipantUserIDs: []string{"alice", "bob"}})
	require.Equal(t, http.StatusOK, code, r.Message)

	var chat model.Chat
	require.NoError(t, r.Decode(&chat))

	m, ok := next(t, bob).(protocol.NewChat)
	require.True(t, ok)
	assert.Equal(t, chat.ID, m.Chat.ID)

	code, r = f.call(t, http.MethodPost, "/chat/create", "bob", model.CreateChatRequest{ParticipantUserIDs: []string{"bob", "alice"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusConflict, r.Status)

	code, r = f.call(t, http.MethodGet, "/chat/", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var chats []model.Chat
	require.NoError(t, r.Decode(&chats))
	require.Len(t, chats, 1)
	assert.Equal(t, chat.ID, chats[0].ID)
}

func TestChatEndpoints(t *testing.T) {
	f := newFixture(t)

	code, r := f.call(t, http.MethodPost, "/chat/create", "alice", `{"chatName":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid data format", r.Message)

	code, r = f.call(t, http.MethodPost, "/chat/create", "alice", `{"chatName":"no participants"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid data format", r.Message)

	_, r = f.call(t, http.MethodPost, "/chat/create", "alice", model.CreateChatRequest{ParticipantUserIDs: []string{"alice", "bob"}})
	var chat model.Chat
	require.NoError(t, r.Decode(&chat))

	name := "Pied Piper"
	code, r = f.call(t, http.MethodPost, "/chat/"+chat.ID+"/update", "bob", model.UpdateChatRequest{ChatName: &name})
	require.Equal(t, http.StatusOK, code, r.Message)
	require.NoError(t, r.Decode(&chat))
	require.NotNil(t, chat.ChatName)
	assert.Equal(t, name, *chat.ChatName)

	code, r = f.call(t, http.MethodPost, "/chat/"+chat.ID+"/add-user/carol", "alice", nil)
	require.Equal(t, http.StatusOK, code, r.Message)

	code, r = f.call(t, http.MethodGet, "/chat/messages/"+chat.ID+"?limit=10", "carol", nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	var page model.MessagesResponse
	require.NoError(t, r.Decode(&page))
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)

	code, r = f.call(t, http.MethodGet, "/chat/messages/"+chat.ID+"?limit=ten", "carol", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid data format", r.Message)

	code, r = f.call(t, http.MethodPost, "/chat/"+chat.ID+"/leave", "carol", nil)
	require.Equal(t, http.StatusOK, code, r.Message)

	code, r = f.call(t, http.MethodGet, "/chat/messages/"+chat.ID, "carol", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusForbidden, r.Status)
}

func TestLeaveNotifiesGroup(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, "/chat/ws/chats", "alice", client.ChatFrames)
	require.Eventually(t, func() bool { return f.hub.Users().HasTopic("alice") }, time.Second, 10*time.Millisecond)

	_, r := f.call(t, http.MethodPost, "/chat/create", "bob", model.CreateChatRequest{ParticipantUserIDs: []string{"alice", "bob", "carol"}})
	var chat model.Chat
	require.NoError(t, r.Decode(&chat))
	assert.IsType(t, protocol.NewChat{}, next(t, alice))

	code, _ := f.call(t, http.MethodPost, "/chat/"+chat.ID+"/leave", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, protocol.UserLeftChat{ChatID: chat.ID, UserID: "bob", IsPublic: true}, next(t, alice))
}

func TestFriendEndpoints(t *testing.T) {
	f := newFixture(t)
	alice := f.connect(t, "/ws/friends", "alice", client.FriendFrames)
	bob := f.connect(t, "/ws/friends", "bob", client.FriendFrames)
	require.Eventually(t, func() bool {
		return f.hub.Friends().HasTopic("alice") && f.hub.Friends().HasTopic("bob")
	}, time.Second, 10*time.Millisecond)

	code, r := f.call(t, http.MethodPost, "/friends/request/bob", "alice", nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	assert.Equal(t, protocol.FriendRequestSent{FromUserID: "alice", ToUserID: "bob"}, next(t, bob))

	code, r = f.call(t, http.MethodGet, "/friends/requests", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	var requests []model.UserMetadata
	require.NoError(t, r.Decode(&requests))
	require.Len(t, requests, 1)
	assert.Equal(t, "alice", requests[0].UserID)

	code, _ = f.call(t, http.MethodPost, "/friends/accept/alice", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.IsType(t, protocol.FriendRequestAccepted{}, next(t, bob))
	assert.IsType(t, protocol.FriendRequestAccepted{}, next(t, alice))

	code, r = f.call(t, http.MethodGet, "/friends", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	var friends []model.UserMetadata
	require.NoError(t, r.Decode(&friends))
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].UserID)

	code, r = f.call(t, http.MethodPost, "/friends/decline/carol", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, http.StatusNotFound, r.Status)

	code, _ = f.call(t, http.MethodPost, "/friends/remove/bob", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, protocol.FriendRemoved{UserID: "bob"}, next(t, alice))
	assert.Equal(t, protocol.FriendRemoved{UserID: "alice"}, next(t, bob))
}

func TestWebsocketRequiresToken(t *testing.T) {
	f := newFixture(t)

	c, err := client.NewClient().
		WithURL("ws" + strings.TrimPrefix(f.srv.URL, "http") + DefaultBasePath + "/chat/ws/messages").
		WithHandler(client.NewInbox(1)).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	select {
	case <-c.Done():
	case <-ctx.Done():
		t.Fatal("connection was not closed")
	}
	assert.Contains(t, c.Err().Error(), "No token")
}
