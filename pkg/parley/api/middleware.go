package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/auth"
	"github.com/tsarna/parley/pkg/parley/o11y"
	"github.com/tsarna/parley/pkg/parley/repository"
	"github.com/tsarna/parley/pkg/parley/result"
)

// CorrelationHeader carries the request's correlation id. An incoming value
// is kept; otherwise a new KSUID is generated.
const CorrelationHeader = "X-Parley-CID"

const userIDKey = "parley.user_id"

type correlationKey struct{}

// CorrelationID returns the id attached to ctx by the router, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(CorrelationHeader)
		if id == "" {
			id = ksuid.New().String()
		}
		c.Header(CorrelationHeader, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), correlationKey{}, id))
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("cid", CorrelationID(c.Request.Context())),
		)
	}
}

func tracing(tracer o11y.TracingProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tracer == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, finish := o11y.StartSpan(c.Request.Context(), tracer, "parley.http "+c.Request.Method+" "+route,
			o11y.Label{Key: "http.method", Value: c.Request.Method},
			o11y.Label{Key: "http.target", Value: c.Request.URL.Path},
			o11y.Label{Key: "parley.cid", Value: CorrelationID(c.Request.Context())},
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		var err error
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			err = errors.New(http.StatusText(status))
		}
		finish(err)
	}
}

// authenticate resolves the bearer token to a user id, or aborts with 401.
func authenticate(validator repository.TokenValidator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.Authenticate(c.Request.Context(), validator, auth.TokenFromRequest(c.Request))
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, auth.ErrMissingToken) {
				message = "No token"
			}
			logger.Info("Rejecting unauthenticated request",
				zap.String("path", c.Request.URL.Path),
				zap.String("reason", message),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, result.Failure(http.StatusUnauthorized, message))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func requester(c *gin.Context) string {
	return c.GetString(userIDKey)
}
