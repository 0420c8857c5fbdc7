package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"hospital-frontend/internal/rbac"
	"hospital-frontend/internal/session"

	"github.com/gin-gonic/gin"
)

// Resource is a gateway collection exposed under /api/<Name>.
type Resource struct {
	Name   string
	Policy rbac.Policy
	// List guards the bare collection path when it differs from Policy.
	List *rbac.Policy
}

var clinicalReaders = []session.Role{session.RoleAdmin, session.RoleStaff, session.RoleDoctor, session.RolePatient}

var ownData = []rbac.OwnData{rbac.DoctorOwnData(), rbac.PatientOwnData()}

// Resources lists what the browser may reach through the proxy and who may
// reach it.
var Resources = []Resource{
	{
		Name: "prescriptions",
		Policy: rbac.Policy{
			Roles:    clinicalReaders,
			OwnData:  ownData,
			ReadOnly: []session.Role{session.RoleStaff, session.RolePatient},
		},
	},
	{
		Name: "appointments",
		Policy: rbac.Policy{
			Roles:    clinicalReaders,
			OwnData:  ownData,
			ReadOnly: []session.Role{session.RolePatient},
		},
	},
	{Name: "patients", Policy: rbac.Policy{Roles: rbac.Clinicians}},
	{
		Name:   "doctors",
		Policy: rbac.Policy{},
		List: &rbac.Policy{
			Roles: rbac.Clinicians,
			Hide:  []rbac.HideListForRole{{Role: session.RoleDoctor, Target: "doctors"}},
		},
	},
	{Name: "doctor-availability", Policy: rbac.Policy{}},
	{Name: "users", Policy: rbac.Policy{Roles: rbac.AdminOnly}},
	{Name: "analytics", Policy: rbac.Policy{Roles: rbac.Clinicians}},
	{Name: "notifications", Policy: rbac.Policy{}},
	{Name: "medications", Policy: rbac.Policy{}},
}

// RegisterAPI mounts the proxy for every resource on g, each behind its policy.
// Paths are checked before any policy runs, so the resource a policy was
// chosen for is the resource the gateway receives.
func (h Handlers) RegisterAPI(g *gin.RouterGroup, e rbac.Enforcer) {
	for _, r := range Resources {
		list := r.Policy
		if r.List != nil {
			list = *r.List
		}
		listGuard := e.Policy(list)
		g.Any("/"+r.Name, rejectAmbiguousPath, listGuard, h.Proxy)
		g.Any("/"+r.Name+"/*rest", rejectAmbiguousPath, collectionOr(listGuard, e.Policy(r.Policy)), h.Proxy)
	}
}

// collectionOr sends "/<name>/" to the collection guard with the trailing
// slash removed, and everything below it to the item guard.
func collectionOr(list, item gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.Trim(c.Param("rest"), "/") == "" {
			c.Request.URL.Path = strings.TrimRight(c.Request.URL.Path, "/")
			c.Request.URL.RawPath = ""
			list(c)
			return
		}
		item(c)
	}
}

func rejectAmbiguousPath(c *gin.Context) {
	if !canonicalPath(c.Request.URL) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid resource path"})
		return
	}
	c.Next()
}

// canonicalPath reports whether u's path has no dot or empty segments and no
// encoded dots, slashes or backslashes. Trailing slashes are allowed.
func canonicalPath(u *url.URL) bool {
	escaped := strings.ToLower(u.EscapedPath())
	for _, enc := range []string{"%2e", "%2f", "%5c"} {
		if strings.Contains(escaped, enc) {
			return false
		}
	}
	if strings.Contains(u.Path, `\`) || !strings.HasPrefix(u.Path, "/") {
		return false
	}
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// Proxy forwards the request path and query to the gateway with the
// session's token and relays the envelope.
func (h Handlers) Proxy(c *gin.Context) {
	method := c.Request.Method
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"success": false, "message": "method not allowed"})
		return
	}

	var body any
	if method == http.MethodPost || method == http.MethodPut {
		raw, err := c.GetRawData()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "unreadable request body"})
			return
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			if !json.Valid(raw) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "request body must be JSON"})
				return
			}
			body = json.RawMessage(raw)
		}
	}

	res := h.Gateway.Request(c.Request.Context(), method, c.Request.URL.Path, tokenOf(c), body, c.Request.URL.Query())
	if !res.OK() {
		c.JSON(statusFor(res), failureBody(res))
		return
	}
	c.JSON(http.StatusOK, res.Envelope)
}
