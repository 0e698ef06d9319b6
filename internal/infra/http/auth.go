package http

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"picproof/internal/domain"

	"github.com/gin-gonic/gin"
)

// requireAPIKey checks the device credential: either
// "Authorization: ApiKey <key>" or an X-Api-Key header. The comparison is
// constant-time; the response does not say which header failed.
func (s *Server) requireAPIKey(c *gin.Context) bool {
	if keyEqual(extractAPIKey(c), s.apiKey) {
		return true
	}
	writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid api key")
	return false
}

func extractAPIKey(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(auth, "ApiKey ") {
		return strings.TrimSpace(auth[len("ApiKey "):])
	}
	return strings.TrimSpace(c.GetHeader("X-Api-Key"))
}

// requireAdminKey guards the admin API. An unset ADMIN_API_KEY disables the
// whole surface rather than opening it.
func (s *Server) requireAdminKey(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin api disabled")
		return false
	}
	if keyEqual(strings.TrimSpace(c.GetHeader("X-Admin-Key")), s.adminAPIKey) {
		return true
	}
	writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
	return false
}

func keyEqual(supplied, expected string) bool {
	if supplied == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(expected)) == 1
}

// allowRate applies the per-client upload limit when one is configured. A
// limiter outage fails open.
func (s *Server) allowRate(c *gin.Context) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	decision, err := s.rateLimiter.Allow(c.Request.Context(), "upload:"+c.ClientIP(), s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		return true
	}
	if decision.Allowed {
		return true
	}
	retry := time.Until(decision.ResetAt)
	if retry < time.Second {
		retry = time.Second
	}
	c.Header("Retry-After", strconv.Itoa(int(retry.Seconds())))
	writeError(c, domain.ErrRateLimited)
	return false
}
