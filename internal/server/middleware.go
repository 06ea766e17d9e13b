package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ngenohkevin/cassandra-mcp/internal/auth"
	"github.com/ngenohkevin/cassandra-mcp/internal/metrics"
	"github.com/ngenohkevin/cassandra-mcp/internal/nodetool"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	authMethodKey   = "auth_method"
	transportName   = "http"
)

// ExtractToken extracts the credential from the Authorization or X-API-Key
// header, falling back to the token query parameter
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		// Bearer token
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		// Raw token
		return authHeader
	}

	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// AuthMiddleware rejects requests without a valid API key or token: 401
// when none is given, 403 when it is wrong
func AuthMiddleware(a *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		status := a.StatusCode(token)
		a.LogAttempt(token, status == http.StatusOK, c.ClientIP(), transportName)

		switch status {
		case http.StatusOK:
			if a.ValidateAPIKey(token) {
				c.Set(authMethodKey, authMethodAPIKey)
			} else {
				c.Set(authMethodKey, authMethodJWT)
			}
			c.Next()
		case http.StatusUnauthorized:
			abortWithError(c, status, nodetool.CodeUnauthorized, "API key is required")
		default:
			abortWithError(c, status, nodetool.CodeForbidden, "Invalid API key")
		}
	}
}

const (
	authMethodAPIKey = "api_key"
	authMethodJWT    = "jwt"
)

// RequireAPIKey only admits requests AuthMiddleware accepted by API key.
// Tokens cannot mint tokens or keys.
func RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(authMethodKey) != authMethodAPIKey {
			abortWithError(c, http.StatusForbidden, nodetool.CodeForbidden, "This endpoint requires an API key")
			return
		}
		c.Next()
	}
}

// RateLimiter implements a simple rate limiter
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    requestsPerSecond,
		window:   time.Second,
	}
}

// Allow checks if a request should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	// Clean old requests
	var recent []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}

	rl.requests[key] = append(recent, now)
	return true
}

// RateLimitMiddleware creates rate limiting middleware
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			abortWithError(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}
		c.Next()
	}
}

// RequestID assigns each request an id, reusing one supplied by the client
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request and records it in metrics
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.RecordHTTPRequest(c.Request.Method, path, status)

		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		authMethod, _ := c.Get(authMethodKey)
		method, _ := authMethod.(string)

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(requestIDKey)).
			Str("auth", method).
			Int("bytes", c.Writer.Size()).
			Msg("http_request")
	}
}

// RecoveryMiddleware handles panics
func RecoveryMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("recovered from panic")
				abortWithError(c, http.StatusInternalServerError, nodetool.CodeExecutionError, "internal server error")
			}
		}()
		c.Next()
	}
}

// CORSMiddleware handles CORS headers
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					c.Header("Access-Control-Allow-Origin", origin)
					c.Header("Access-Control-Allow-Credentials", "true")
					c.Header("Vary", "Origin")
					break
				}
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-API-Key, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, code, message string) {
	resp := nodetool.NewErrorResponse(code, message, nil)
	resp.RequestID = c.GetString(requestIDKey)
	c.AbortWithStatusJSON(status, resp)
}
