package api

import (
	"github.com/gin-gonic/gin"
)

func (r *Router) getFriends(c *gin.Context) {
	respond(c, r.hub.GetFriends(c.Request.Context(), requester(c)))
}

func (r *Router) getFriendRequests(c *gin.Context) {
	respond(c, r.hub.GetFriendRequests(c.Request.Context(), requester(c)))
}

func (r *Router) sendFriendRequest(c *gin.Context) {
	respond(c, r.hub.SendFriendRequest(c.Request.Context(), requester(c), c.Param("targetUserId")))
}

func (r *Router) acceptFriendRequest(c *gin.Context) {
	respond(c, r.hub.AcceptFriendRequest(c.Request.Context(), requester(c), c.Param("targetUserId")))
}

func (r *Router) declineFriendRequest(c *gin.Context) {
	respond(c, r.hub.DeclineFriendRequest(c.Request.Context(), requester(c), c.Param("targetUserId")))
}

func (r *Router) removeFriend(c *gin.Context) {
	respond(c, r.hub.RemoveFriend(c.Request.Context(), requester(c), c.Param("targetUserId")))
}
