package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tsarna/parley/pkg/parley/model"
	"github.com/tsarna/parley/pkg/parley/repository"
)

func (r *Router) getUserChats(c *gin.Context) {
	respond(c, r.hub.GetUserChats(c.Request.Context(), requester(c)))
}

func (r *Router) getMessages(c *gin.Context) {
	var after *int64
	if v := c.Query("afterTimestamp"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respond(c, invalidData)
			return
		}
		after = &ts
	}

	limit := repository.DefaultMessageLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respond(c, invalidData)
			return
		}
		limit = n
	}

	respond(c, r.hub.GetMessages(c.Request.Context(), c.Param("chatId"), requester(c), after, limit))
}

func (r *Router) createChat(c *gin.Context) {
	var req model.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, invalidData)
		return
	}
	respond(c, r.hub.CreateChat(c.Request.Context(), requester(c), req))
}

func (r *Router) updateChat(c *gin.Context) {
	var req model.UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, invalidData)
		return
	}
	respond(c, r.hub.UpdateChat(c.Request.Context(), c.Param("chatId"), requester(c), req))
}

func (r *Router) addUser(c *gin.Context) {
	respond(c, r.hub.AddUser(c.Request.Context(), c.Param("chatId"), requester(c), c.Param("targetUserId")))
}

// leaveChat has no socket of its own to answer, so a private leave is
// acknowledged by the response alone.
func (r *Router) leaveChat(c *gin.Context) {
	respond(c, r.hub.LeaveChat(c.Request.Context(), c.Param("chatId"), requester(c), nil))
}
