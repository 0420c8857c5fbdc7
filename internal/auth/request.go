package auth

import (
	"net/http"
	"net/url"
	"strings"

	"hospital-frontend/internal/audit"

	"github.com/gin-gonic/gin"
)

// Well-known page paths.
const (
	LoginPath     = "/auth/login/"
	DashboardPath = "/dashboard/"
	authPrefix    = "/auth/"
	apiPrefix     = "/api/"
)

// IsAJAX reports whether the caller expects JSON rather than a page.
func IsAJAX(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if strings.HasPrefix(r.URL.Path, apiPrefix) {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// LoginURL is the login page with a next parameter back to the current page.
func LoginURL(r *http.Request) string {
	next := r.URL.RequestURI()
	if next == "" || next == "/" || strings.HasPrefix(r.URL.Path, authPrefix) {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// SafeNext returns next when it is a local path, otherwise the dashboard.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return DashboardPath
	}
	return next
}

// RequestInfo extracts the audit fields of a request.
func RequestInfo(c *gin.Context) audit.RequestInfo {
	return audit.RequestInfo{IP: c.ClientIP(), Method: c.Request.Method, Path: c.Request.URL.Path}
}

// AbortUnauthenticated redirects pages to the login form and answers AJAX
// callers with a 401 envelope carrying the login URL.
func AbortUnauthenticated(c *gin.Context, message string) {
	loginURL := LoginURL(c.Request)
	if IsAJAX(c.Request) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"success":  false,
			"message":  message,
			"redirect": loginURL,
		})
		return
	}
	c.Redirect(http.StatusFound, loginURL)
	c.Abort()
}
