package memory

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/result"
)

// Friends implements repository.FriendRepository. A pending request lives in
// the target's list, keyed by the user who sent it.
type Friends struct {
	logger *zap.Logger
	users  repository.UserDirectory

	mu    sync.RWMutex
	lists map[string]*model.FriendList
}

var _ repository.FriendRepository = (*Friends)(nil)

func NewFriends(users repository.UserDirectory, logger *zap.Logger) *Friends {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Friends{
		logger: logger,
		users:  users,
		lists:  make(map[string]*model.FriendList),
	}
}

// listLocked returns userID's list, creating it on first use.
func (f *Friends) listLocked(userID string) *model.FriendList {
	list, ok := f.lists[userID]
	if !ok {
		list = &model.FriendList{
			UserID:         userID,
			Friends:        []model.UserMetadata{},
			FriendRequests: []model.UserMetadata{},
		}
		f.lists[userID] = list
	}
	return list
}

func (f *Friends) snapshot(userID string) model.FriendList {
	f.mu.RLock()
	defer f.mu.RUnlock()

	list, ok := f.lists[userID]
	if !ok {
		return model.FriendList{UserID: userID, Friends: []model.UserMetadata{}, FriendRequests: []model.UserMetadata{}}
	}
	return model.FriendList{
		UserID:         list.UserID,
		Friends:        slices.Clone(list.Friends),
		FriendRequests: slices.Clone(list.FriendRequests),
	}
}

func (f *Friends) GetFriends(ctx context.Context, requesterID string) result.Result {
	return guard(ctx, "An error occurred while getting friends: ", func() result.Result {
		return result.OK("Friends retrieved successfully", f.snapshot(requesterID).Friends)
	})
}

func (f *Friends) GetFriendRequests(ctx context.Context, requesterID string) result.Result {
	return guard(ctx, "An error occurred while getting friend requests: ", func() result.Result {
		return result.OK("Friend requests retrieved successfully", f.snapshot(requesterID).FriendRequests)
	})
}

func (f *Friends) SendFriendRequest(ctx context.Context, requesterID, targetID string) result.Result {
	return guard(ctx, "An error occurred while sending friend request: ", func() result.Result {
		if requesterID == targetID {
			return result.Failure(http.StatusBadRequest, "Cannot send friend request to yourself")
		}

		if _, ok := repository.LookupMetadata(ctx, f.users, targetID); !ok {
			return result.Failure(http.StatusNotFound, "Target user not found")
		}

		requester, ok := repository.LookupMetadata(ctx, f.users, requesterID)
		if !ok {
			requester = model.UserMetadata{UserID: requesterID}
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		mine := f.listLocked(requesterID)
		theirs := f.listLocked(targetID)

		if mine.HasFriend(targetID) {
			return result.Failure(http.StatusConflict, "User is already a friend")
		}
		if mine.HasRequestFrom(targetID) || theirs.HasRequestFrom(requesterID) {
			return result.Failure(http.StatusConflict, "Friend request already sent")
		}

		theirs.FriendRequests = append(theirs.FriendRequests, requester)
		f.logger.Debug("Friend request stored", zap.String("user_id", requesterID), zap.String("target_id", targetID))

		return result.OK("Friend request sent successfully", nil)
	})
}

func (f *Friends) AcceptFriendRequest(ctx context.Context, requesterID, targetID string) result.Result {
	return guard(ctx, "An error occurred while accepting friend request: ", func() result.Result {
		if !f.snapshot(requesterID).HasRequestFrom(targetID) {
			return result.Failure(http.StatusNotFound, "Friend request not found")
		}

		target, ok := repository.LookupMetadata(ctx, f.users, targetID)
		if !ok {
			return result.Failure(http.StatusNotFound, "Target user not found")
		}
		requester, ok := repository.LookupMetadata(ctx, f.users, requesterID)
		if !ok {
			return result.Failure(http.StatusNotFound, "Requester user not found")
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		mine := f.listLocked(requesterID)
		if !mine.HasRequestFrom(targetID) {
			return result.Failure(http.StatusNotFound, "Friend request not found")
		}

		mine.FriendRequests = removeUser(mine.FriendRequests, targetID)
		mine.Friends = append(mine.Friends, target)

		theirs := f.listLocked(targetID)
		theirs.FriendRequests = removeUser(theirs.FriendRequests, requesterID)
		theirs.Friends = append(theirs.Friends, requester)

		return result.OK("Friend request accepted successfully", target)
	})
}

func (f *Friends) DeclineFriendRequest(ctx context.Context, requesterID, targetID string) result.Result {
	return guard(ctx, "An error occurred while declining friend request: ", func() result.Result {
		f.mu.Lock()
		defer f.mu.Unlock()

		mine := f.listLocked(requesterID)
		if !mine.HasRequestFrom(targetID) {
			return result.Failure(http.StatusNotFound, "Friend request not found")
		}
		mine.FriendRequests = removeUser(mine.FriendRequests, targetID)

		return result.OK("Friend request declined successfully", nil)
	})
}

func (f *Friends) RemoveFriend(ctx context.Context, requesterID, targetID string) result.Result {
	return guard(ctx, "An error occurred while removing friend: ", func() result.Result {
		f.mu.Lock()
		defer f.mu.Unlock()

		mine := f.listLocked(requesterID)
		if !mine.HasFriend(targetID) {
			return result.Failure(http.StatusNotFound, "Friend not found")
		}
		mine.Friends = removeUser(mine.Friends, targetID)

		theirs := f.listLocked(targetID)
		theirs.Friends = removeUser(theirs.Friends, requesterID)

		return result.OK("Friend removed successfully", nil)
	})
}

func removeUser(users []model.UserMetadata, userID string) []model.UserMetadata {
	return slices.DeleteFunc(users, func(u model.UserMetadata) bool {
		return u.UserID == userID
	})
}
