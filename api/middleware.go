package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const (
	authorizationHeaderKey  = "authorization"
	authorizationTypeBearer = "bearer"
	clientKey               = "client"
)

// authentication checks the bearer API key against the configured bcrypt
// hash. With no hash configured every caller is let through and identified
// by address.
func (server *Server) authentication(c *gin.Context) {
	hash := server.cfg.Server.APIKeyHash
	if hash == "" {
		c.Set(clientKey, c.ClientIP())
		c.Next()
		return
	}

	authorizationHeader := c.GetHeader(authorizationHeaderKey)
	if len(authorizationHeader) == 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("authorization header is not provided")))
		return
	}

	fields := strings.Fields(authorizationHeader)
	if len(fields) < 2 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("invalid authorization header format")))
		return
	}

	authorizationType := strings.ToLower(fields[0])
	if authorizationType != authorizationTypeBearer {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(fmt.Errorf("unsupported authorization type: %s", authorizationType)))
		return
	}

	apiKey := fields[1]
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(errors.New("please input a valid API Key")))
		return
	}

	// Limit by key prefix.
	prefix, _, _ := strings.Cut(apiKey, ".")
	c.Set(clientKey, prefix)
	c.Next()
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (server *Server) limiter(client string) *rate.Limiter {
	server.mu.Lock()
	defer server.mu.Unlock()
	now := time.Now()
	entry, ok := server.limiters[client]
	if !ok {
		if len(server.limiters) >= server.maxLimiters {
			server.evictLimiters(now)
		}
		entry = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(server.cfg.Server.RateLimit), server.cfg.Server.Burst)}
		server.limiters[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// evictLimiters drops clients idle for longer than the TTL, or the least
// recently seen client when none is. Callers hold server.mu.
func (server *Server) evictLimiters(now time.Time) {
	var oldest string
	var oldestSeen time.Time
	found := false
	for client, entry := range server.limiters {
		if now.Sub(entry.lastSeen) > server.limiterTTL {
			delete(server.limiters, client)
			continue
		}
		if !found || entry.lastSeen.Before(oldestSeen) {
			oldest, oldestSeen, found = client, entry.lastSeen, true
		}
	}
	if found && len(server.limiters) >= server.maxLimiters {
		delete(server.limiters, oldest)
	}
}

func (server *Server) rateLimit(c *gin.Context) {
	if !server.limiter(c.GetString(clientKey)).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse(errors.New("too many requests")))
		return
	}
	c.Next()
}

func (server *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	server.log.Info("http request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"client", c.ClientIP(),
		"latency", time.Since(start),
	)
}
