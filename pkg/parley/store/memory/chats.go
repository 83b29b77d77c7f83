package memory

import (
	"context"
	"net/http"
	"slices"

	"github.com/tsarna/go-structdiff"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/result"
)

func (s *Store) GetUserChats(ctx context.Context, requesterID string) result.Result {
	return guard(ctx, "An error occurred while receiving user chats: ", func() result.Result {
		s.mu.RLock()
		defer s.mu.RUnlock()

		chats := make([]model.Chat, 0, len(s.memberships[requesterID]))
		for _, link := range s.memberships[requesterID] {
			if chat, ok := s.chats[link.ChatID]; ok {
				chats = append(chats, cloneChat(chat))
			}
		}

		return result.OK("The user's chats were successfully received", chats)
	})
}

func (s *Store) CreateChat(ctx context.Context, requesterID string, req model.CreateChatRequest) result.Result {
	return guard(ctx, "An error occurred during chat creation: ", func() result.Result {
		if !slices.Contains(req.ParticipantUserIDs, requesterID) {
			return result.Failure(http.StatusBadRequest, "Requester must be included in participant list")
		}

		ids := unique(req.ParticipantUserIDs)
		if len(ids) < 2 {
			return result.Failure(http.StatusBadRequest, "Chat must have at least 2 participants")
		}

		if existing, ok := s.findPrivate(ids); ok {
			return result.WithData(http.StatusConflict, "Private chat already exists", existing)
		}

		users, ok := s.metadataFor(ctx, ids)
		if !ok {
			return result.Failure(http.StatusBadRequest, "Could not get metadata for all participants")
		}

		chat := model.Chat{
			ID:          s.newID(),
			Users:       users,
			ChatName:    req.ChatName,
			Description: req.Description,
			AvatarURL:   req.AvatarURL,
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		// The directory lookups ran unlocked; another request may have won.
		if existing, ok := s.findPrivateLocked(ids); ok {
			return result.WithData(http.StatusConflict, "Private chat already exists", existing)
		}

		if err := s.step("insert_chat"); err != nil {
			return result.Failure(http.StatusInternalServerError, "Couldn't add chat")
		}
		s.chats[chat.ID] = chat

		if err := s.step("create_log"); err != nil {
			delete(s.chats, chat.ID)
			return result.Failure(http.StatusInternalServerError, "Couldn't add chat messages record")
		}
		s.logs[chat.ID] = []model.Message{}

		if err := s.linkUsersLocked(chat.ID, ids); err != nil {
			delete(s.chats, chat.ID)
			delete(s.logs, chat.ID)
			s.logger.Warn("Chat creation rolled back", zap.String("chat_id", chat.ID), zap.Error(err))
			return result.Failure(http.StatusInternalServerError, "Couldn't add users to chat")
		}

		s.logger.Debug("Chat created", zap.String("chat_id", chat.ID), zap.Strings("participants", ids))
		return result.OK("The chat was created successfully", cloneChat(chat))
	})
}

// linkUsersLocked links every id to chatID, removing the links it already
// made if a later one fails.
func (s *Store) linkUsersLocked(chatID string, ids []string) error {
	for i, id := range ids {
		if err := s.step("link_user"); err != nil {
			for _, done := range ids[:i] {
				s.unlinkLocked(done, chatID)
			}
			return err
		}
		s.linkLocked(id, chatID)
	}
	return nil
}

func (s *Store) linkLocked(userID, chatID string) {
	s.memberships[userID] = append(s.memberships[userID], model.UserInChat{
		ID:       s.newID(),
		ChatID:   chatID,
		JoinedAt: s.now().UnixMilli(),
	})
}

func (s *Store) unlinkLocked(userID, chatID string) {
	links := slices.DeleteFunc(s.memberships[userID], func(link model.UserInChat) bool {
		return link.ChatID == chatID
	})
	if len(links) == 0 {
		delete(s.memberships, userID)
		return
	}
	s.memberships[userID] = links
}

func (s *Store) findPrivate(ids []string) (model.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findPrivateLocked(ids)
}

// findPrivateLocked finds an existing two person chat between exactly the
// given users. Only meaningful when len(ids) == 2.
func (s *Store) findPrivateLocked(ids []string) (model.Chat, bool) {
	if len(ids) != 2 {
		return model.Chat{}, false
	}

	for _, chat := range s.chats {
		if chat.IsPrivate() && chat.HasParticipant(ids[0]) && chat.HasParticipant(ids[1]) {
			return cloneChat(chat), true
		}
	}
	return model.Chat{}, false
}

func (s *Store) UpdateChat(ctx context.Context, chatID, requesterID string, req model.UpdateChatRequest) result.Result {
	return guard(ctx, "An error occurred while updating the chat: ", func() result.Result {
		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.isMemberLocked(requesterID, chatID) {
			return result.Failure(http.StatusForbidden, "User is not a member of this chat")
		}

		chat, ok := s.chats[chatID]
		if !ok {
			return result.Failure(http.StatusNotFound, "Chat not found")
		}

		before := chatFields(chat)
		after := chatFields(chat)
		if err := structdiff.Apply(&after, updateFields(req)); err != nil {
			return result.Failure(http.StatusBadRequest, "Couldn't update chat")
		}
		setChatFields(&chat, after)
		s.chats[chatID] = chat

		if changes, err := structdiff.Diff(before, after); err == nil {
			s.logger.Debug("Chat updated",
				zap.String("chat_id", chatID),
				zap.String("user_id", requesterID),
				zap.Any("changes", changes))
		}

		return result.OK("The chat has been updated", cloneChat(chat))
	})
}

func (s *Store) AddUser(ctx context.Context, chatID, requesterID, targetID string) result.Result {
	return guard(ctx, "An error occurred while adding a user to the chat: ", func() result.Result {
		if r, ok := s.checkAddUser(chatID, requesterID, targetID); !ok {
			return r
		}

		metadata, ok := s.metadataFor(ctx, []string{targetID})
		if !ok {
			return result.Failure(http.StatusBadRequest, "Couldn't get user data")
		}
		added := metadata[0]

		s.mu.Lock()
		defer s.mu.Unlock()

		if r, ok := s.checkAddUserLocked(chatID, requesterID, targetID); !ok {
			return r
		}

		chat := s.chats[chatID]
		chat.Users = append(cloneChat(chat).Users, added)
		s.chats[chatID] = chat
		s.linkLocked(targetID, chatID)

		return result.OK("The user has been successfully added to the chat", added)
	})
}

func (s *Store) checkAddUser(chatID, requesterID, targetID string) (result.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkAddUserLocked(chatID, requesterID, targetID)
}

func (s *Store) checkAddUserLocked(chatID, requesterID, targetID string) (result.Result, bool) {
	if !s.isMemberLocked(requesterID, chatID) {
		return result.Failure(http.StatusForbidden, "Requester is not a member of this chat"), false
	}
	if s.isMemberLocked(targetID, chatID) {
		return result.Failure(http.StatusConflict, "User is already a member of this chat"), false
	}
	if _, ok := s.chats[chatID]; !ok {
		return result.Failure(http.StatusNotFound, "Chat not found"), false
	}
	return result.Result{}, true
}

func (s *Store) LeaveChat(ctx context.Context, chatID, requesterID string) result.Result {
	return guard(ctx, "An error occurred while leaving the chat: ", func() result.Result {
		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.isMemberLocked(requesterID, chatID) {
			return result.Failure(http.StatusForbidden, "User is not a member of this chat")
		}

		chat, ok := s.chats[chatID]
		if !ok {
			return result.Failure(http.StatusNotFound, "Chat not found")
		}

		s.unlinkLocked(requesterID, chatID)
		chat.Users = slices.DeleteFunc(cloneChat(chat).Users, func(u model.UserMetadata) bool {
			return u.UserID == requesterID
		})
		s.chats[chatID] = chat

		return result.OK("User has successfully left the chat", nil)
	})
}

// chatFields, updateFields and setChatFields move the editable chat
// attributes through a map so updates can be applied as a structdiff patch.
func chatFields(c model.Chat) map[string]any {
	fields := make(map[string]any)
	putString(fields, "chatName", c.ChatName)
	putString(fields, "description", c.Description)
	putString(fields, "avatarUrl", c.AvatarURL)
	return fields
}

func updateFields(req model.UpdateChatRequest) map[string]any {
	patch := make(map[string]any)
	putString(patch, "chatName", req.ChatName)
	putString(patch, "description", req.Description)
	putString(patch, "avatarUrl", req.AvatarURL)
	return patch
}

func setChatFields(c *model.Chat, fields map[string]any) {
	c.ChatName = getString(fields, "chatName")
	c.Description = getString(fields, "description")
	c.AvatarURL = getString(fields, "avatarUrl")
}

func putString(m map[string]any, key string, v *string) {
	if v != nil {
		m[key] = *v
	}
}

func getString(m map[string]any, key string) *string {
	if v, ok := m[key].(string); ok {
		return &v
	}
	return nil
}
