// Package api exposes the request/response endpoints and mounts the live
// channels on the same gin engine. Handlers forward collaborator results
// unchanged as the response body.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/hub"
	"github.com/tsarna/parley/pkg/parley/realtime"
	"github.com/tsarna/parley/pkg/parley/result"
)

// Router is an http.Handler serving every route under the base path.
type Router struct {
	engine   *gin.Engine
	hub      *hub.Hub
	listener *realtime.Listener
	logger   *zap.Logger
}

func newRouter(c *Config) *Router {
	r := &Router{
		engine:   gin.New(),
		hub:      c.hub,
		listener: c.listener,
		logger:   c.logger,
	}

	r.engine.Use(gin.Recovery(), correlationID(), requestLogger(c.logger), tracing(c.tracer))

	base := r.engine.Group(c.basePath)
	base.GET("/healthz", r.health)

	base.GET("/chat/ws/chats", gin.WrapF(c.listener.Handler(realtime.ChannelChats)))
	base.GET("/chat/ws/messages", gin.WrapF(c.listener.Handler(realtime.ChannelMessages)))
	base.GET("/ws/friends", gin.WrapF(c.listener.Handler(realtime.ChannelFriends)))

	authed := base.Group("", authenticate(c.validator, c.logger))

	chat := authed.Group("/chat")
	chat.GET("/", r.getUserChats)
	chat.GET("/messages/:chatId", r.getMessages)
	chat.POST("/create", r.createChat)
	chat.POST("/:chatId/update", r.updateChat)
	chat.POST("/:chatId/add-user/:targetUserId", r.addUser)
	chat.POST("/:chatId/leave", r.leaveChat)

	friends := authed.Group("/friends")
	friends.GET("", r.getFriends)
	friends.GET("/requests", r.getFriendRequests)
	friends.POST("/request/:targetUserId", r.sendFriendRequest)
	friends.POST("/accept/:targetUserId", r.acceptFriendRequest)
	friends.POST("/decline/:targetUserId", r.declineFriendRequest)
	friends.POST("/remove/:targetUserId", r.removeFriend)

	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}

// respond writes r with 200 on success and 400 otherwise; the precise
// status stays in the body.
func respond(c *gin.Context, r result.Result) {
	code := http.StatusOK
	if !r.IsSuccess() {
		code = http.StatusBadRequest
	}
	c.JSON(code, r)
}

var invalidData = result.Failure(http.StatusBadRequest, "Invalid data format")

func (r *Router) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": r.listener.ConnectionCount(),
		"topics":      r.hub.Topics(),
	})
}
