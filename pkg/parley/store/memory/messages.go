package memory

import (
	"context"
	"net/http"
	"slices"
	"sort"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/result"
)

func (s *Store) GetMessages(ctx context.Context, chatID string, afterTimestamp *int64, limit int) result.Result {
	return guard(ctx, "An error occurred while receiving the messages: ", func() result.Result {
		if limit <= 0 {
			limit = repository.DefaultMessageLimit
		}

		s.mu.RLock()
		log, ok := s.logs[chatID]
		matching := make([]model.Message, 0, len(log))
		for _, msg := range log {
			if afterTimestamp == nil || msg.Timestamp > *afterTimestamp {
				matching = append(matching, msg)
			}
		}
		s.mu.RUnlock()

		if !ok {
			return result.Failure(http.StatusBadRequest, "Couldn't receive chat messages")
		}

		sort.SliceStable(matching, func(i, j int) bool {
			return matching[i].Timestamp < matching[j].Timestamp
		})

		page := model.MessagesResponse{Messages: matching, HasMore: len(matching) > limit}
		if page.HasMore {
			page.Messages = matching[:limit]
		}

		return result.OK("Messages received successfully", page)
	})
}

func (s *Store) SendMessage(ctx context.Context, chatID, requesterID string, msg model.Message) result.Result {
	return guard(ctx, "An error occurred while sending the message: ", func() result.Result {
		s.mu.Lock()
		defer s.mu.Unlock()

		if !s.isMemberLocked(requesterID, chatID) {
			return result.Failure(http.StatusForbidden, "User is not a member of this chat")
		}

		log, ok := s.logs[chatID]
		if !ok {
			return result.Failure(http.StatusNotFound, "Chat not found")
		}

		s.logs[chatID] = append(log, msg)
		return result.OK("The message was sent successfully", msg)
	})
}

func (s *Store) UpdateMessage(ctx context.Context, chatID string, msg model.Message) result.Result {
	return guard(ctx, "An error occurred while updating the message: ", func() result.Result {
		s.mu.Lock()
		defer s.mu.Unlock()

		log, ok := s.logs[chatID]
		if !ok {
			return result.Failure(http.StatusNotFound, "Chat not found")
		}

		i := slices.IndexFunc(log, func(m model.Message) bool { return m.ID == msg.ID })
		if i < 0 {
			return result.Failure(http.StatusNotFound, "Message not found")
		}

		existing := log[i]
		if existing.Sender != msg.Sender {
			return result.Failure(http.StatusForbidden, "Only the sender can update this message")
		}

		msg.Timestamp = existing.Timestamp
		msg.IsUpdateMessage = true
		log[i] = msg
		return result.OK("The message has been successfully updated", msg)
	})
}

func (s *Store) DeleteMessage(ctx context.Context, chatID, messageID string) result.Result {
	return guard(ctx, "An error occurred while deleting the message: ", func() result.Result {
		s.mu.Lock()
		defer s.mu.Unlock()

		log, ok := s.logs[chatID]
		if !ok {
			return result.Failure(http.StatusNotFound, "Chat not found")
		}

		i := slices.IndexFunc(log, func(m model.Message) bool { return m.ID == messageID })
		if i < 0 {
			return result.Failure(http.StatusNotFound, "Message not found")
		}

		s.logs[chatID] = slices.Delete(log, i, i+1)
		return result.OK("The message was successfully deleted", nil)
	})
}
