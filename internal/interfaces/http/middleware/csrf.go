package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/erp/pos/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Double-submit CSRF protection for the terminal's own endpoints
const (
	CSRFCookieName = "pos_csrf"
	CSRFHeaderName = "X-CSRF-Token"
	csrfContextKey = "csrf_token"
	csrfTokenBytes = 32
)

// CSRFConfig holds CSRF middleware configuration
type CSRFConfig struct {
	// Secure sets the Secure flag on the token cookie
	Secure bool
	// MaxAge of the token cookie in seconds; 0 makes it a session cookie
	MaxAge int
}

// CSRF issues a token cookie on safe requests and requires every unsafe
// request to echo it in the X-CSRF-Token header
func CSRF(cfg CSRFConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(CSRFCookieName)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if token == "" {
				token = newCSRFToken()
				c.SetSameSite(http.SameSiteStrictMode)
				c.SetCookie(CSRFCookieName, token, cfg.MaxAge, "/", "", cfg.Secure, false)
			}
			c.Set(csrfContextKey, token)
			c.Next()
			return
		}

		header := c.GetHeader(CSRFHeaderName)
		if token == "" || header == "" || subtle.ConstantTimeCompare([]byte(token), []byte(header)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden,
				"Missing or invalid CSRF token",
				GetRequestID(c),
			))
			return
		}
		c.Set(csrfContextKey, token)
		c.Next()
	}
}

// CSRFToken returns the token for the current request, for embedding in
// the page
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfContextKey)
}

func newCSRFToken() string {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic("csrf: crypto/rand failed: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
