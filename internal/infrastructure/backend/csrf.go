package backend

import (
	"net/http"
	"net/url"
)

// CSRFHeader is the header the backend reads its CSRF token from
const CSRFHeader = "X-CSRFToken"

// CSRFSource supplies the CSRF token for state-changing requests: a
// static token when one was configured, otherwise the value of the
// backend's CSRF cookie as last seen in the cookie jar.
type CSRFSource struct {
	static     string
	cookieName string
	jar        http.CookieJar
	origin     *url.URL
}

// NewCSRFSource creates a CSRFSource
func NewCSRFSource(static, cookieName string, jar http.CookieJar, origin *url.URL) *CSRFSource {
	if cookieName == "" {
		cookieName = "csrftoken"
	}
	return &CSRFSource{static: static, cookieName: cookieName, jar: jar, origin: origin}
}

// Token returns the current token, or "" when none is known
func (s *CSRFSource) Token() string {
	if s.static != "" {
		return s.static
	}
	if s.jar == nil {
		return ""
	}
	for _, c := range s.jar.Cookies(s.origin) {
		if c.Name == s.cookieName {
			return c.Value
		}
	}
	return ""
}

// Apply sets the CSRF header on req when a token is known
func (s *CSRFSource) Apply(req *http.Request) {
	if token := s.Token(); token != "" {
		req.Header.Set(CSRFHeader, token)
	}
}
