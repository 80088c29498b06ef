package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/task-tracker/internal/domain/entity"
	"github.com/garyjia/task-tracker/internal/ratelimit"
)

const actorContextKey = "actor"

// actorFrom returns the authenticated user set by the auth middleware,
// or nil for unauthenticated requests.
func actorFrom(c *gin.Context) *entity.User {
	if v, ok := c.Get(actorContextKey); ok {
		if user, ok := v.(*entity.User); ok {
			return user
		}
	}
	return nil
}

// authContextMiddleware materializes the actor from the X-User-ID header.
// Authentication proper (tokens, sessions) lives upstream of this service;
// the header is the trusted identity it forwards.
func (s *Server) authContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-User-ID")
		if header == "" {
			c.Next()
			return
		}

		userID, err := strconv.ParseInt(header, 10, 64)
		if err != nil {
			c.Next()
			return
		}

		user, err := s.userRepo.GetByID(c.Request.Context(), userID)
		if err != nil {
			s.logger.Error("Failed to resolve actor", "user_id", userID, "error", err)
			c.Next()
			return
		}
		if user != nil {
			c.Set(actorContextKey, user)
		}
		c.Next()
	}
}

// rateLimitMiddleware consults the limiter before any handler runs. Reads and
// writes draw on separate budgets; a zero-limit denial is a role violation
// (403), not a retry-later condition (429).
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		class := ratelimit.ClassWrite
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead:
			class = ratelimit.ClassRead
		}

		decision := s.limiter.Allow(actorFrom(c), class)
		if decision.Allowed {
			c.Next()
			return
		}

		if decision.HardBlocked {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "WRITE operations are not allowed.",
			})
			return
		}

		if class == ratelimit.ClassWrite {
			c.Header("X-Write-Available-In", strconv.Itoa(decision.WaitSeconds))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
			Success: false,
			Error:   "Rate limit exceeded.",
			Data:    gin.H{"wait_seconds": decision.WaitSeconds},
		})
	}
}

// bodyCaptureWriter tees the response body so the audit middleware can log it
// for error responses.
type bodyCaptureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// auditLoggingMiddleware records every /api request except the analytics
// path. Request bodies are captured for mutating methods with sensitive keys
// masked; response bodies only for errors.
func (s *Server) auditLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/api/tasks/analytics") {
			c.Next()
			return
		}

		var rawBody []byte
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.Body != nil {
				rawBody, _ = io.ReadAll(c.Request.Body)
				c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
			}
		}

		capture := &bodyCaptureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = capture

		requestID := uuid.NewString()
		c.Header("X-Request-ID", requestID)

		c.Next()

		log := &entity.APIAuditLog{
			RequestID:  requestID,
			Endpoint:   path,
			Method:     c.Request.Method,
			StatusCode: c.Writer.Status(),
			IPAddress:  clientIP(c),
			Timestamp:  time.Now(),
		}
		if actor := actorFrom(c); actor != nil {
			log.UserID = &actor.ID
		}
		if len(rawBody) > 0 {
			log.RequestBody = maskJSONBody(rawBody)
		}
		if c.Writer.Status() >= 400 {
			log.ResponseBody = capture.body.String()
		}

		if err := s.auditRepo.Create(c.Request.Context(), log); err != nil {
			s.logger.Error("Failed to write audit log",
				"endpoint", path,
				"error", err)
		}
	}
}

// maskJSONBody decodes, masks, and re-encodes a JSON request body.
// Unparseable bodies are dropped rather than logged raw.
func maskJSONBody(raw []byte) string {
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ""
	}
	masked, err := json.Marshal(MaskSensitive(decoded))
	if err != nil {
		return ""
	}
	return string(masked)
}

// clientIP honors the first X-Forwarded-For hop before falling back to the
// connection address.
func clientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		parts := strings.SplitN(forwarded, ",", 2)
		return strings.TrimSpace(parts[0])
	}
	return c.ClientIP()
}

// requestLoggingMiddleware logs request lines through zap
func (s *Server) requestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
