package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"attention-engine/internal/config"
	"attention-engine/internal/handler"
	"attention-engine/internal/model"
	"attention-engine/pkg/metrics"
	"attention-engine/pkg/trace"
)

// TraceMiddleware propagates the caller's trace id or mints one, and
// echoes it back in the response.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), traceID))
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	}
}

// RequestLogMiddleware logs every request with latency and records the
// HTTP duration histogram.
func RequestLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		latency := time.Since(start)
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), latency)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
	}
}

const identityKey = "user_identity"

// AuthMiddleware validates the bearer token and stores the caller's
// identity. Identity is who is asking; it never selects which
// account's data is touched.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := extractToken(c.Request)
		if tokenStr == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		identity, err := parseIdentity(tokenStr, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(identityKey, identity.String())
		c.Next()
	}
}

// Identity returns the authenticated caller set by AuthMiddleware.
func Identity(c *gin.Context) model.UserIdentity {
	return model.UserIdentity(c.GetString(identityKey))
}

func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return ""
	}
	return auth[len(prefix):]
}

func parseIdentity(tokenStr, secret string) (model.UserIdentity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenMalformed
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", jwt.ErrTokenMalformed
	}
	return model.UserIdentity(sub), nil
}

// AccountMiddleware validates the :account path segment against the
// configured account list before any handler runs.
func AccountMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("account")
		if cfg.Account(name) == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown account"})
			c.Abort()
			return
		}
		handler.SetAccount(c, model.AccountID(name))
		c.Next()
	}
}
