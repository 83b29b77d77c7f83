package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/protocol"
)

// echoServer accepts one connection, records its Authorization header,
// greets it and echoes every frame back.
func echoServer(t *testing.T, greeting protocol.Message, auth chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth != nil {
			auth <- r.Header.Get("Authorization")
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		if greeting != nil {
			if err := conn.Write(ctx, websocket.MessageText, protocol.MustEncode(greeting)); err != nil {
				return
			}
		}
		for {
			kind, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, kind, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBuilderValidation(t *testing.T) {
	_, err := NewClient().Build()
	assert.EqualError(t, err, "URL is required")

	_, err = NewClient().WithURL("ws://localhost").Build()
	assert.EqualError(t, err, "handler is required")

	c, err := NewClient().WithURL("ws://localhost").WithHandler(NewInbox(1)).WithDialTimeout(-1).Build()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.dialTimeout)
}

func TestClientReceivesAndSends(t *testing.T) {
	auth := make(chan string, 1)
	srv := echoServer(t, protocol.FriendRemoved{UserID: "bob"}, auth)

	inbox := NewInbox(8)
	c, err := NewClient().
		WithURL(wsURL(srv)).
		WithLogger(zap.NewNop()).
		WithToken("tok").
		WithDecoder(FriendFrames).
		WithHandler(inbox).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	assert.Equal(t, "Bearer tok", <-auth)

	f, err := inbox.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.FriendRemoved{UserID: "bob"}, f.Message)

	require.NoError(t, c.Send(ctx, protocol.SendFriendRequest{TargetUserID: "carol"}))
	f, err = inbox.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.SendFriendRequest{TargetUserID: "carol"}, f.Message)

	require.NoError(t, c.SendRaw(ctx, []byte(`{"type":"bogus"}`)))
	f, err = inbox.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, f.Message)
	assert.JSONEq(t, `{"type":"bogus"}`, string(f.Raw))
}

func TestClientReportsServerClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		conn.Close(websocket.StatusPolicyViolation, "No token")
	}))
	defer srv.Close()

	c, err := NewClient().WithURL(wsURL(srv)).WithHandler(NewInbox(1)).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	select {
	case <-c.Done():
	case <-ctx.Done():
		t.Fatal("connection did not end")
	}

	var ce websocket.CloseError
	require.True(t, errors.As(c.Err(), &ce), "got %v", c.Err())
	assert.Equal(t, websocket.StatusPolicyViolation, ce.Code)
	assert.Equal(t, "No token", ce.Reason)

	assert.NoError(t, c.Disconnect())
	assert.ErrorIs(t, c.SendRaw(ctx, []byte("{}")), ErrNotConnected)
}

func TestConnectFailure(t *testing.T) {
	c, err := NewClient().WithURL("ws://127.0.0.1:1").WithHandler(NewInbox(1)).WithDialTimeout(time.Second).Build()
	require.NoError(t, err)

	assert.Error(t, c.Connect(context.Background()))
	assert.ErrorIs(t, c.SendRaw(context.Background(), []byte("{}")), ErrNotConnected)
}
