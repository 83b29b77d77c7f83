package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/protocol"
	"github.com/tsarna/parley/pkg/parley/registry"
	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/result"
)

// SubscribeFriendEvents registers sub for the friend events of userID.
func (h *Hub) SubscribeFriendEvents(userID string, sub registry.Subscriber) {
	h.friendTopics.Subscribe(userID, sub)
}

func (h *Hub) GetFriends(ctx context.Context, requesterID string) result.Result {
	return h.friends.GetFriends(ctx, requesterID)
}

func (h *Hub) GetFriendRequests(ctx context.Context, requesterID string) result.Result {
	return h.friends.GetFriendRequests(ctx, requesterID)
}

// SendFriendRequest notifies the target of the new request.
func (h *Hub) SendFriendRequest(ctx context.Context, requesterID, targetID string) result.Result {
	ctx, finish := h.span(ctx, "send_friend_request", o11y.Label{Key: "user_id", Value: requesterID})
	r := h.friends.SendFriendRequest(ctx, requesterID, targetID)
	finish(resultErr(r))

	if r.IsSuccess() {
		h.broadcast(ctx, h.friendTopics, targetID, protocol.FriendRequestSent{FromUserID: requesterID, ToUserID: targetID})
	}
	return r
}

// AcceptFriendRequest tells each side about the other.
func (h *Hub) AcceptFriendRequest(ctx context.Context, requesterID, targetID string) result.Result {
	ctx, finish := h.span(ctx, "accept_friend_request", o11y.Label{Key: "user_id", Value: requesterID})
	r := h.friends.AcceptFriendRequest(ctx, requesterID, targetID)
	finish(resultErr(r))

	if !r.IsSuccess() {
		return r
	}

	var friend model.UserMetadata
	if err := r.Decode(&friend); err != nil {
		h.logger.Warn("Accepted request not announced", zap.String("user_id", requesterID), zap.Error(err))
		return r
	}
	h.broadcast(ctx, h.friendTopics, requesterID, protocol.FriendRequestAccepted{FriendMetadata: friend})

	requester, ok := repository.LookupMetadata(ctx, h.users, requesterID)
	if !ok {
		h.logger.Debug("Requester metadata unavailable", zap.String("user_id", requesterID))
		return r
	}
	h.broadcast(ctx, h.friendTopics, targetID, protocol.FriendRequestAccepted{FriendMetadata: requester})

	return r
}

// DeclineFriendRequest sends no notification.
func (h *Hub) DeclineFriendRequest(ctx context.Context, requesterID, targetID string) result.Result {
	return h.friends.DeclineFriendRequest(ctx, requesterID, targetID)
}

// RemoveFriend tells both former friends.
func (h *Hub) RemoveFriend(ctx context.Context, requesterID, targetID string) result.Result {
	ctx, finish := h.span(ctx, "remove_friend", o11y.Label{Key: "user_id", Value: requesterID})
	r := h.friends.RemoveFriend(ctx, requesterID, targetID)
	finish(resultErr(r))

	if r.IsSuccess() {
		h.broadcast(ctx, h.friendTopics, requesterID, protocol.FriendRemoved{UserID: targetID})
		h.broadcast(ctx, h.friendTopics, targetID, protocol.FriendRemoved{UserID: requesterID})
	}
	return r
}
