package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"hospital-frontend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ErrorRecorder counts store failures by operation.
type ErrorRecorder interface {
	ObserveStoreError(op string)
}

// ManagerConfig configures cookie and lifetime behavior.
type ManagerConfig struct {
	CookieName  string
	Secret      string
	TTL         time.Duration
	RememberTTL time.Duration
	Secure      bool
}

// Manager loads the session for each request and commits it before the
// response is written. Every committed save slides the expiry forward.
type Manager struct {
	store    Store
	signer   *CookieSigner
	cfg      ManagerConfig
	recorder ErrorRecorder
	clock    func() time.Time
}

func NewManager(cfg ManagerConfig, store Store, recorder ErrorRecorder) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: store is required")
	}
	signer, err := NewCookieSigner(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "hf_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	return &Manager{store: store, signer: signer, cfg: cfg, recorder: recorder, clock: time.Now}, nil
}

type ctxKey struct{}

const ginKey = "session"

// NewContext attaches s to ctx.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the request's session or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKey{}).(*Session)
	return s
}

// FromGin returns the request's session. It panics if the session
// middleware is not installed.
func FromGin(c *gin.Context) *Session {
	if v, ok := c.Get(ginKey); ok {
		if s, ok := v.(*Session); ok {
			return s
		}
	}
	panic("session: middleware not installed")
}

// Attach exposes s to later handlers through both the gin and request contexts.
func Attach(c *gin.Context, s *Session) {
	c.Set(ginKey, s)
	c.Request = c.Request.WithContext(NewContext(c.Request.Context(), s))
}

// Middleware loads the session, exposes it to later handlers and commits it.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := m.load(c.Request.Context(), c.Request)
		Attach(c, s)

		cw := &commitWriter{ResponseWriter: c.Writer}
		cw.commit = func() { m.commit(c.Request.Context(), cw.ResponseWriter, s) }
		c.Writer = cw

		c.Next()

		cw.commitOnce()
	}
}

func (m *Manager) load(ctx context.Context, r *http.Request) *Session {
	log := logger.From(ctx)

	ck, err := r.Cookie(m.cfg.CookieName)
	if err != nil || ck.Value == "" {
		return newSession(uuid.NewString())
	}
	sid, err := m.signer.Verify(ck.Value, m.clock())
	if err != nil {
		log.Debug("session cookie rejected", slog.Any("err", err))
		return newSession(uuid.NewString())
	}
	data, err := m.store.Get(ctx, sid)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Error("session load failed", slog.Any("err", err))
			m.observe("get")
		}
		return newSession(uuid.NewString())
	}
	s, invalidAuth, err := decode(sid, data)
	if err != nil {
		log.Warn("session record unreadable", slog.Any("err", err))
		return newSession(uuid.NewString())
	}
	if invalidAuth {
		log.Warn("session held a token without a valid identity; signing out")
	}
	return s
}

func (m *Manager) commit(ctx context.Context, w http.ResponseWriter, s *Session) {
	log := logger.From(ctx)

	if s.flushed || s.empty() {
		if !s.isNew {
			if err := m.store.Delete(ctx, s.id); err != nil {
				log.Error("session delete failed", slog.Any("err", err))
				m.observe("delete")
			}
			m.expireCookie(w)
		}
		if s.flushed && !s.empty() {
			// Flush followed by new content (e.g. a flash): store under a fresh id.
			s.id = uuid.NewString()
			s.isNew = true
		} else {
			return
		}
	}

	ttl := m.cfg.TTL
	if s.rememberMe {
		ttl = m.cfg.RememberTTL
	}
	data, err := encode(s)
	if err != nil {
		log.Error("session encode failed", slog.Any("err", err))
		return
	}

	switch {
	case s.rotate && !s.isNew:
		newID := uuid.NewString()
		if err := m.store.Rotate(ctx, s.id, newID, data, ttl); err != nil {
			log.Error("session rotate failed", slog.Any("err", err))
			m.observe("rotate")
			return
		}
		s.id = newID
	default:
		if err := m.store.Save(ctx, s.id, data, ttl); err != nil {
			log.Error("session save failed", slog.Any("err", err))
			m.observe("save")
			return
		}
	}

	value, err := m.signer.Sign(s.id, m.clock(), ttl)
	if err != nil {
		log.Error("session cookie sign failed", slog.Any("err", err))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.isNew = false
	s.rotate = false
	s.dirty = false
}

func (m *Manager) expireCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) observe(op string) {
	if m.recorder != nil {
		m.recorder.ObserveStoreError(op)
	}
}

// commitWriter persists the session right before the first byte of the
// response goes out, while headers can still carry the cookie.
type commitWriter struct {
	gin.ResponseWriter
	commit    func()
	committed bool
}

func (w *commitWriter) commitOnce() {
	if w.committed {
		return
	}
	w.committed = true
	w.commit()
}

func (w *commitWriter) WriteHeaderNow() {
	w.commitOnce()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *commitWriter) Write(b []byte) (int, error) {
	w.commitOnce()
	return w.ResponseWriter.Write(b)
}

func (w *commitWriter) WriteString(s string) (int, error) {
	w.commitOnce()
	return w.ResponseWriter.WriteString(s)
}

func (w *commitWriter) Flush() {
	w.commitOnce()
	w.ResponseWriter.Flush()
}
