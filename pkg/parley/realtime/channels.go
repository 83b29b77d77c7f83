package realtime

import (
	"context"
	"net/http"

	"github.com/tsarna/parley/pkg/parley/protocol"
	"github.com/tsarna/parley/pkg/parley/result"
)

// channelRoute describes how one channel decodes frames, what a new session
// subscribes to, and how decoded commands are handled. handle returns the
// outcome of the command, which has already been reported to the client
// where the channel calls for it.
type channelRoute struct {
	name   Channel
	decode func([]byte) (protocol.Message, error)
	join   func(c *Connection)
	handle func(ctx context.Context, c *Connection, msg protocol.Message) result.Result
}

var channels = map[Channel]*channelRoute{
	ChannelChats: {
		name:   ChannelChats,
		decode: decodeChat,
		join: func(c *Connection) {
			c.hub.SubscribeUser(c.userID, c.session)
		},
		handle: handleChats,
	},
	ChannelMessages: {
		name:   ChannelMessages,
		decode: decodeChat,
		handle: handleMessages,
	},
	ChannelFriends: {
		name:   ChannelFriends,
		decode: decodeFriend,
		join: func(c *Connection) {
			c.hub.SubscribeFriendEvents(c.userID, c.session)
		},
		handle: handleFriends,
	},
}

func decodeChat(data []byte) (protocol.Message, error) {
	m, err := protocol.DecodeChat(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodeFriend(data []byte) (protocol.Message, error) {
	m, err := protocol.DecodeFriend(data)
	if err != nil {
		return nil, err
	}
	return m, nil
}

var (
	unsupportedOnChats = result.Failure(http.StatusBadRequest, "Unsupported message type for this socket")
	unknownType        = result.Failure(http.StatusBadRequest, "Unknown message type")
)

// handleChats accepts only the leave command. The leaver and the privacy of
// the chat are taken from the session and the stored chat, never from the
// frame.
func handleChats(ctx context.Context, c *Connection, msg protocol.Message) result.Result {
	switch m := msg.(type) {
	case protocol.UserLeftChat:
		return c.replyFailure(c.hub.LeaveChat(ctx, m.ChatID, c.userID, c.session))
	default:
		return c.replyResult(unsupportedOnChats)
	}
}

// handleMessages covers posting, editing and deleting messages and the
// explicit per-chat subscriptions. Message commands are answered by the
// broadcast itself.
func handleMessages(ctx context.Context, c *Connection, msg protocol.Message) result.Result {
	switch m := msg.(type) {
	case protocol.NewMessage:
		return c.replyFailure(c.hub.SendMessage(ctx, c.userID, m))
	case protocol.UpdateMessage:
		return c.replyFailure(c.hub.UpdateMessage(ctx, c.userID, m))
	case protocol.DeleteMessage:
		return c.replyFailure(c.hub.DeleteMessage(ctx, c.userID, m))
	case protocol.SubscribeToMessages:
		return c.replyResult(c.hub.SubscribeMessages(ctx, c.userID, m.ChatID, c.session))
	case protocol.UnsubscribeFromMessages:
		return c.replyResult(c.hub.UnsubscribeMessages(m.ChatID, c.session))
	default:
		return c.replyResult(unknownType)
	}
}

// handleFriends runs the friend commands. Send and decline have no event
// for the requester and are acknowledged directly; accept and remove are
// acknowledged by the events they produce.
func handleFriends(ctx context.Context, c *Connection, msg protocol.Message) result.Result {
	switch m := msg.(type) {
	case protocol.SendFriendRequest:
		return c.replyResult(c.hub.SendFriendRequest(ctx, c.userID, m.TargetUserID))
	case protocol.AcceptFriendRequest:
		return c.replyFailure(c.hub.AcceptFriendRequest(ctx, c.userID, m.TargetUserID))
	case protocol.DeclineFriendRequest:
		return c.replyResult(c.hub.DeclineFriendRequest(ctx, c.userID, m.TargetUserID))
	case protocol.RemoveFriend:
		return c.replyFailure(c.hub.RemoveFriend(ctx, c.userID, m.TargetUserID))
	default:
		return c.replyResult(unknownType)
	}
}
