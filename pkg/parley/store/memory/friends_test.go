package memory

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/result"
)

func userIDs(t *testing.T, r result.Result) []string {
	t.Helper()
	require.True(t, r.IsSuccess(), r.Message)

	var users []model.UserMetadata
	require.NoError(t, r.Decode(&users))
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.UserID
	}
	return ids
}

func TestFriendRequestLifecycle(t *testing.T) {
	f := NewFriends(newDirectory(), zap.NewNop())
	ctx := context.Background()

	r := f.SendFriendRequest(ctx, "alice", "bob")
	require.True(t, r.IsSuccess(), r.Message)
	assert.Equal(t, "Friend request sent successfully", r.Message)

	// The request sits in the target's list.
	assert.Equal(t, []string{"alice"}, userIDs(t, f.GetFriendRequests(ctx, "bob")))
	assert.Empty(t, userIDs(t, f.GetFriendRequests(ctx, "alice")))

	r = f.AcceptFriendRequest(ctx, "bob", "alice")
	require.True(t, r.IsSuccess(), r.Message)
	var md model.UserMetadata
	require.NoError(t, r.Decode(&md))
	assert.Equal(t, "alice", md.UserID)
	assert.Equal(t, "a.png", *md.AvatarURL)

	assert.Equal(t, []string{"alice"}, userIDs(t, f.GetFriends(ctx, "bob")))
	assert.Equal(t, []string{"bob"}, userIDs(t, f.GetFriends(ctx, "alice")))
	assert.Empty(t, userIDs(t, f.GetFriendRequests(ctx, "bob")))

	r = f.RemoveFriend(ctx, "alice", "bob")
	require.True(t, r.IsSuccess())
	assert.Empty(t, userIDs(t, f.GetFriends(ctx, "alice")))
	assert.Empty(t, userIDs(t, f.GetFriends(ctx, "bob")))
}

func TestSendFriendRequestErrors(t *testing.T) {
	f := NewFriends(newDirectory(), zap.NewNop())
	ctx := context.Background()

	r := f.SendFriendRequest(ctx, "alice", "alice")
	assert.Equal(t, http.StatusBadRequest, r.Status)
	assert.Equal(t, "Cannot send friend request to yourself", r.Message)

	r = f.SendFriendRequest(ctx, "alice", "zed")
	assert.Equal(t, http.StatusNotFound, r.Status)
	assert.Equal(t, "Target user not found", r.Message)

	require.True(t, f.SendFriendRequest(ctx, "alice", "bob").IsSuccess())
	r = f.SendFriendRequest(ctx, "alice", "bob")
	assert.Equal(t, http.StatusConflict, r.Status)
	assert.Equal(t, "Friend request already sent", r.Message)

	r = f.SendFriendRequest(ctx, "bob", "alice")
	assert.Equal(t, http.StatusConflict, r.Status)

	require.True(t, f.AcceptFriendRequest(ctx, "bob", "alice").IsSuccess())
	r = f.SendFriendRequest(ctx, "alice", "bob")
	assert.Equal(t, http.StatusConflict, r.Status)
	assert.Equal(t, "User is already a friend", r.Message)
}

func TestAcceptDeclineRemoveNotFound(t *testing.T) {
	f := NewFriends(newDirectory(), zap.NewNop())
	ctx := context.Background()

	r := f.AcceptFriendRequest(ctx, "bob", "alice")
	assert.Equal(t, http.StatusNotFound, r.Status)
	assert.Equal(t, "Friend request not found", r.Message)

	r = f.DeclineFriendRequest(ctx, "bob", "alice")
	assert.Equal(t, http.StatusNotFound, r.Status)
	assert.Equal(t, "Friend request not found", r.Message)

	r = f.RemoveFriend(ctx, "bob", "alice")
	assert.Equal(t, http.StatusNotFound, r.Status)
	assert.Equal(t, "Friend not found", r.Message)
}

func TestDeclineFriendRequest(t *testing.T) {
	f := NewFriends(newDirectory(), zap.NewNop())
	ctx := context.Background()

	require.True(t, f.SendFriendRequest(ctx, "carol", "dave").IsSuccess())
	r := f.DeclineFriendRequest(ctx, "dave", "carol")
	require.True(t, r.IsSuccess())
	assert.Equal(t, "Friend request declined successfully", r.Message)

	assert.Empty(t, userIDs(t, f.GetFriendRequests(ctx, "dave")))
	assert.Empty(t, userIDs(t, f.GetFriends(ctx, "dave")))

	// Declined requests can be sent again.
	assert.True(t, f.SendFriendRequest(ctx, "carol", "dave").IsSuccess())
}

func TestAcceptWithVanishedUser(t *testing.T) {
	dir := newDirectory()
	f := NewFriends(dir, zap.NewNop())
	ctx := context.Background()

	require.True(t, f.SendFriendRequest(ctx, "alice", "bob").IsSuccess())

	dir.mu.Lock()
	delete(dir.users, "alice")
	dir.mu.Unlock()

	r := f.AcceptFriendRequest(ctx, "bob", "alice")
	assert.Equal(t, http.StatusNotFound, r.Status)
	assert.Equal(t, "Target user not found", r.Message)
}
