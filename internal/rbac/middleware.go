package rbac

import (
	"log/slog"
	"net/http"

	"hospital-frontend/internal/audit"
	"hospital-frontend/internal/auth"
	"hospital-frontend/internal/session"
	"hospital-frontend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Recorder counts denials.
type Recorder interface {
	ObserveDenial(guard, kind string)
}

// Enforcer runs guard chains inside gin and turns denials into responses.
type Enforcer struct {
	Audit    *audit.Service
	Recorder Recorder
}

// Require evaluates chain for every request. The subject comes from the
// request context set by the token middleware; an ownership rewrite
// replaces the request's query string before downstream handlers run.
func (e Enforcer) Require(chain Chain) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := RequestFromGin(c)
		out, denial := chain.Evaluate(req)
		if denial != nil {
			e.deny(c, req.Subject, denial)
			return
		}
		if rewritten := out.Query.Encode(); rewritten != c.Request.URL.RawQuery {
			logScopeChange(c, req, out)
			c.Request.URL.RawQuery = rewritten
		}
		c.Next()
	}
}

// Policy is shorthand for Require(p.Chain()).
func (e Enforcer) Policy(p Policy) gin.HandlerFunc {
	return e.Require(p.Chain())
}

// logScopeChange notes client-supplied ownership filters that were replaced.
func logScopeChange(c *gin.Context, in, out Request) {
	for _, key := range []string{"doctorId", "doctor_id", "patientId", "patient_id"} {
		supplied := in.Query.Get(key)
		if supplied == "" || supplied == out.Query.Get(key) {
			continue
		}
		logger.From(c.Request.Context()).Debug("ownership filter overwritten",
			slog.String("param", key),
			slog.String("supplied", supplied),
			slog.String("user_id", out.Subject.UserID),
		)
	}
}

// RequestFromGin snapshots the guard input of a gin request.
func RequestFromGin(c *gin.Context) Request {
	return Request{
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Query:   c.Request.URL.Query(),
		Referer: c.Request.Referer(),
		Host:    c.Request.Host,
		Subject: auth.SubjectFrom(c.Request.Context()),
	}
}

func (e Enforcer) deny(c *gin.Context, sub auth.Subject, d *Denial) {
	ctx := c.Request.Context()
	logger.From(ctx).Warn("access denied",
		slog.String("guard", d.Guard),
		slog.String("kind", string(d.Kind)),
		slog.String("user_id", sub.UserID),
		slog.String("role", string(sub.Role)),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
	)
	if d.Kind != DenyUnauthenticated {
		e.Audit.LogAccessDenied(ctx, sub.UserID, string(sub.Role), auth.RequestInfo(c), d.Guard, d.Message)
	}
	if e.Recorder != nil {
		e.Recorder.ObserveDenial(d.Guard, string(d.Kind))
	}

	s := session.FromContext(ctx)
	ajax := auth.IsAJAX(c.Request)

	switch d.Kind {
	case DenyUnauthenticated:
		flash(s, session.FlashInfo, d.Message)
		auth.AbortUnauthenticated(c, "Authentication required")
	case DenyForbidden:
		if ajax {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "Access denied. Insufficient permissions.",
			})
			return
		}
		flash(s, session.FlashError, d.Message)
		c.Data(http.StatusForbidden, "text/plain; charset=utf-8", []byte("Access denied"))
		c.Abort()
	default:
		if ajax {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": d.Message})
			return
		}
		level := session.FlashError
		if d.Kind == DenyHidden {
			level = session.FlashWarning
		}
		flash(s, level, d.Message)
		c.Redirect(http.StatusFound, d.Redirect)
		c.Abort()
	}
}

func flash(s *session.Session, level, msg string) {
	if s != nil {
		s.AddFlash(level, msg)
	}
}
