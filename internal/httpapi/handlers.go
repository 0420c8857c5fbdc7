package httpapi

import (
	"context"
	"net/http"
	"net/url"

	"hospital-frontend/internal/audit"
	"hospital-frontend/internal/auth"
	"hospital-frontend/internal/gateway"
	"hospital-frontend/internal/pii"
	"hospital-frontend/internal/session"

	"github.com/gin-gonic/gin"
)

// Gateway is the slice of the gateway client the handlers use.
type Gateway interface {
	Login(ctx context.Context, username, password string) (gateway.LoginData, gateway.Result)
	Profile(ctx context.Context, accessToken string) (gateway.User, gateway.Result)
	Register(ctx context.Context, payload any) gateway.Result
	ForgotPassword(ctx context.Context, email string) gateway.Result
	ResetPassword(ctx context.Context, resetToken, newPassword string) gateway.Result
	UpdateProfile(ctx context.Context, accessToken string, payload any) gateway.Result
	ChangePassword(ctx context.Context, accessToken string, payload any) gateway.Result
	Request(ctx context.Context, method, path, token string, body any, query url.Values) gateway.Result
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, call the gateway, return a view model.
type Handlers struct {
	Gateway Gateway
	Codec   *pii.Codec
	Audit   *audit.Service
}

// render writes a page view model. Every page carries the caller's user
// block and any pending flash messages.
func render(c *gin.Context, status int, page string, data gin.H) {
	out := gin.H{
		"page": page,
		"user": auth.SubjectFrom(c.Request.Context()).View(),
	}
	if s := session.FromContext(c.Request.Context()); s != nil {
		if f := s.PopFlashes(); len(f) > 0 {
			out["messages"] = f
		}
	}
	for k, v := range data {
		out[k] = v
	}
	c.JSON(status, out)
}

func flash(c *gin.Context, level, msg string) {
	if s := session.FromContext(c.Request.Context()); s != nil {
		s.AddFlash(level, msg)
	}
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
}

// statusFor maps a gateway result onto the status returned to the browser.
func statusFor(res gateway.Result) int {
	switch res.Kind {
	case gateway.KindOK:
		return http.StatusOK
	case gateway.KindBackend:
		if res.Status >= 400 && res.Status < 600 {
			return res.Status
		}
		return http.StatusBadRequest
	case gateway.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// failureBody is the JSON envelope for a failed gateway result. It never
// carries transport detail.
func failureBody(res gateway.Result) gin.H {
	body := gin.H{"success": false, "message": res.Message()}
	if len(res.Envelope.Errors) > 0 {
		body["errors"] = res.Envelope.Errors
	}
	return body
}

func subjectOf(c *gin.Context) auth.Subject {
	return auth.SubjectFrom(c.Request.Context())
}

func tokenOf(c *gin.Context) string {
	if s := session.FromContext(c.Request.Context()); s != nil {
		return s.AccessToken()
	}
	return ""
}

// Health is the liveness probe.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
