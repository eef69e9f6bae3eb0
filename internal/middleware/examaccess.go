package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/response"
	"github.com/examgate/examgate-backend/internal/service"
)

// SecureBrowserHeader must carry a non-empty value when a test demands the
// locked-down exam browser. The header's presence is an honesty check, not a
// security boundary; real lockdown lives in the client.
const SecureBrowserHeader = "X-Secure-Browser"

// TestAccessGuard enforces per-test access restrictions on student exam
// routes: the IP allow-list and the secure-browser requirement. Guards can
// be disabled deployment-wide through settings for troubleshooting.
func TestAccessGuard(tests service.TestStore, settings *service.SettingService, log zerolog.Logger) gin.HandlerFunc {
	guardLog := log.With().Str("component", "test_access_guard").Logger()

	return func(c *gin.Context) {
		if settings.GetBool(c.Request.Context(), service.SettingDisableAccessGuards, false) {
			c.Next()
			return
		}

		testID, err := uuid.Parse(c.Param("testId"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		test, err := tests.GetByID(c.Request.Context(), testID)
		if err != nil {
			response.AbortFail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
		if test == nil {
			response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}

		if len(test.AllowedIPs) > 0 && !ipAllowed(c.ClientIP(), test.AllowedIPs) {
			guardLog.Warn().Str("ip", c.ClientIP()).Str("test_id", testID.String()).Msg("blocked by ip allow-list")
			response.AbortFail(c, http.StatusForbidden, response.ErrIPNotAllowed)
			return
		}

		if test.SecureBrowser && c.GetHeader(SecureBrowserHeader) == "" {
			response.AbortFail(c, http.StatusForbidden, response.ErrSecureBrowser)
			return
		}

		c.Next()
	}
}

// Maintenance rejects all requests while the maintenance flag is set.
// Auth routes stay open so admins can log in and turn it off.
func Maintenance(settings *service.SettingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if settings.GetBool(c.Request.Context(), service.SettingMaintenanceMode, false) {
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrMaintenanceMode)
			return
		}
		c.Next()
	}
}

// ipAllowed matches the client IP against plain addresses and CIDR ranges.
func ipAllowed(clientIP string, allowed []string) bool {
	ip := net.ParseIP(clientIP)
	if ip == nil {
		return false
	}
	for _, entry := range allowed {
		if _, cidr, err := net.ParseCIDR(entry); err == nil {
			if cidr.Contains(ip) {
				return true
			}
			continue
		}
		if entryIP := net.ParseIP(entry); entryIP != nil && entryIP.Equal(ip) {
			return true
		}
	}
	return false
}
