package main

import (
	"context"
	"net/http"

	"hospital-frontend/internal/audit"
	"hospital-frontend/internal/auth"
	"hospital-frontend/internal/gateway"
	"hospital-frontend/internal/httpapi"
	"hospital-frontend/internal/metrics"
	"hospital-frontend/internal/pii"
	"hospital-frontend/internal/rbac"
	"hospital-frontend/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type deps struct {
	Sessions *session.Manager
	Gateway  *gateway.Client
	Codec    *pii.Codec
	Audit    *audit.Service
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	// Ready reports whether the session store answers.
	Ready func(ctx context.Context) error
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	// public, no session
	r.GET("/healthz", httpapi.Health)
	r.GET("/readyz", readiness(d.Ready))
	r.GET("/metrics", gin.WrapH(metrics.HandlerFor(d.Registry)))

	h := httpapi.Handlers{Gateway: d.Gateway, Codec: d.Codec, Audit: d.Audit}
	e := rbac.Enforcer{Audit: d.Audit, Recorder: d.Metrics}
	signedIn := e.Policy(rbac.Policy{})

	// Everything else runs with a session and a validated token.
	app := r.Group("/",
		d.Sessions.Middleware(),
		auth.RefreshTokens(auth.Options{Gateway: d.Gateway, Audit: d.Audit, Recorder: d.Metrics}),
	)

	app.GET("/", httpapi.Home)

	// Account pages. Login and register are public; the token check passes
	// anonymous visitors through on the other /auth/ pages.
	app.GET(auth.LoginPath, h.LoginForm)
	app.POST(auth.LoginPath, h.Login)
	app.GET(httpapi.LogoutPath, h.Logout)
	app.POST(httpapi.LogoutPath, h.Logout)
	app.GET(httpapi.RegisterPath, h.RegisterForm)
	app.POST(httpapi.RegisterPath, h.Register)
	app.GET(httpapi.ForgotPasswordPath, h.ForgotPasswordForm)
	app.POST(httpapi.ForgotPasswordPath, h.ForgotPassword)
	app.GET(httpapi.ResetPasswordPath, h.ResetPasswordForm)
	app.POST(httpapi.ResetPasswordPath, h.ResetPassword)
	app.GET(httpapi.ProfilePath, signedIn, h.Profile)
	app.POST(httpapi.ProfileEditPath, signedIn, h.UpdateProfile)
	app.PUT(httpapi.ProfileEditPath, signedIn, h.UpdateProfile)
	app.POST(httpapi.ChangePasswordPath, signedIn, h.ChangePassword)

	// Pages
	app.GET(auth.DashboardPath, signedIn, h.Dashboard)
	app.GET("/doctors/:id/", signedIn, h.DoctorDetail)

	// Gateway proxy, one policy per resource.
	h.RegisterAPI(app.Group("/api"), e)
}

func readiness(ready func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ready != nil {
			if err := ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "session_store": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
