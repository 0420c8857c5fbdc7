package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hospital-frontend/internal/audit"
	"hospital-frontend/internal/gateway"
	"hospital-frontend/internal/session"
	"hospital-frontend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// User-visible notices set when a request is bounced to the login page.
const (
	MsgLoginToAccess  = "Please login to access this page."
	MsgLoginToProceed = "Please login to continue."
	MsgSessionExpired = "Your session has expired. Please login again."
	MsgAuthError      = "Authentication error. Please login again."
)

// TokenGateway is the part of the gateway client the middleware needs.
type TokenGateway interface {
	Profile(ctx context.Context, accessToken string) (gateway.User, gateway.Result)
	Refresh(ctx context.Context, refreshToken string) (gateway.Tokens, gateway.Result)
}

// Recorder counts check outcomes.
type Recorder interface {
	ObserveAuthCheck(outcome string)
}

// Outcome of one token check.
type Outcome string

const (
	OutcomeValid     Outcome = "valid"
	OutcomeRefreshed Outcome = "refreshed"
	OutcomeNoRefresh Outcome = "no_refresh_token"
	OutcomeExpired   Outcome = "refresh_failed"
	OutcomeError     Outcome = "error"
	OutcomeNoToken   Outcome = "no_token"
	OutcomeSkipped   Outcome = "skipped"
)

// DefaultPublicPrefixes are never checked.
var DefaultPublicPrefixes = []string{
	"/auth/login/",
	"/auth/register/",
	"/admin/",
	"/static/",
	"/media/",
	"/healthz",
	"/metrics",
}

type Options struct {
	Gateway        TokenGateway
	Audit          *audit.Service
	Recorder       Recorder
	PublicPrefixes []string
}

// RefreshTokens validates the session's access token against the live
// profile on every request, refreshing it at most once. It must run after
// the session middleware and before any authorization guard.
func RefreshTokens(opts Options) gin.HandlerFunc {
	public := opts.PublicPrefixes
	if public == nil {
		public = DefaultPublicPrefixes
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if hasAnyPrefix(path, public) {
			observe(opts.Recorder, OutcomeSkipped)
			c.Next()
			return
		}

		s := session.FromGin(c)
		onAuthPage := strings.HasPrefix(path, authPrefix)

		if !s.IsAuthenticated() {
			observe(opts.Recorder, OutcomeNoToken)
			if onAuthPage {
				c.Next()
				return
			}
			s.AddFlash(session.FlashInfo, MsgLoginToAccess)
			AbortUnauthenticated(c, "Authentication required")
			return
		}

		prior := SubjectFromSession(s)
		outcome := Check(c.Request.Context(), opts.Gateway, s)
		observe(opts.Recorder, outcome)

		switch outcome {
		case OutcomeValid:
		case OutcomeRefreshed:
			opts.Audit.LogTokenRefreshed(c.Request.Context(), prior.UserID, string(prior.Role), RequestInfo(c))
		default:
			s.Clear()
			opts.Audit.LogSessionExpired(c.Request.Context(), prior.UserID, string(prior.Role), RequestInfo(c), string(outcome))
			if onAuthPage {
				break
			}
			switch outcome {
			case OutcomeNoRefresh:
				s.AddFlash(session.FlashWarning, MsgLoginToProceed)
			case OutcomeError:
				s.AddFlash(session.FlashError, MsgAuthError)
			default:
				s.AddFlash(session.FlashWarning, MsgSessionExpired)
			}
			AbortUnauthenticated(c, "Session expired")
			return
		}

		c.Request = c.Request.WithContext(WithSubject(c.Request.Context(), SubjectFromSession(s)))
		c.Next()
	}
}

// Check runs the probe/refresh state machine against s. It updates tokens
// or identity on success and leaves clearing to the caller. Panics from the
// gateway are treated as a failed check.
func Check(ctx context.Context, gw TokenGateway, s *session.Session) (outcome Outcome) {
	log := logger.From(ctx)
	defer func() {
		if p := recover(); p != nil {
			log.Error("token check panicked", slog.String("panic", fmt.Sprint(p)))
			outcome = OutcomeError
		}
	}()

	user, res := gw.Profile(ctx, s.AccessToken())
	if res.OK() {
		if err := s.SyncIdentity(IdentityOf(user)); err != nil {
			log.Warn("profile identity rejected", slog.Any("err", err))
			return OutcomeError
		}
		return OutcomeValid
	}
	log.Info("token probe failed", slog.String("kind", string(res.Kind)), slog.String("token", logger.TokenHint(s.AccessToken())))

	refresh := s.RefreshToken()
	if refresh == "" {
		return OutcomeNoRefresh
	}
	tokens, res := gw.Refresh(ctx, refresh)
	if !res.OK() {
		log.Info("token refresh failed", slog.String("kind", string(res.Kind)), slog.String("message", res.Message()))
		return OutcomeExpired
	}
	if err := s.ReplaceTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
		log.Warn("refreshed tokens rejected", slog.Any("err", err))
		return OutcomeError
	}
	if id, ok := s.Identity(); ok {
		log.Info("token refreshed", slog.String("username", id.Username))
	}
	return OutcomeRefreshed
}

// IdentityOf maps a gateway user onto the session identity.
func IdentityOf(u gateway.User) session.Identity {
	role, _ := session.ParseRole(u.Role)
	return session.Identity{
		UserID:   string(u.ID),
		Username: u.Username,
		Role:     role,
		Email:    u.Email,
		FullName: u.FullName(),
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func observe(r Recorder, o Outcome) {
	if r != nil {
		r.ObserveAuthCheck(string(o))
	}
}
