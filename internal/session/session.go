// Package session holds the per-user server-side session: bearer tokens,
// the identity they belong to, and one-shot flash messages.
package session

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Role string

// Role names. Keep these stable; they are part of the gateway's auth contract.
const (
	RoleAdmin   Role = "admin"
	RoleStaff   Role = "staff"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RolePatient Role = "patient"
)

// ParseRole accepts a known role name, case-insensitively.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleStaff, RoleDoctor, RoleNurse, RolePatient:
		return r, true
	default:
		return "", false
	}
}

// Title is the display form used in user-facing messages ("Doctor").
func (r Role) Title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

var (
	ErrInvalidIdentity = errors.New("session: identity requires user id, username and a known role")
	ErrMissingToken    = errors.New("session: access token is required")
	ErrNotLoggedIn     = errors.New("session: not logged in")
)

// Identity is who the access token belongs to. Email may be empty when the
// backend has none on file.
type Identity struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name"`
}

func (id Identity) validate() error {
	if id.UserID == "" || id.Username == "" {
		return ErrInvalidIdentity
	}
	if _, ok := ParseRole(string(id.Role)); !ok {
		return ErrInvalidIdentity
	}
	return nil
}

func (id Identity) normalized() Identity {
	id.Role, _ = ParseRole(string(id.Role))
	if strings.TrimSpace(id.FullName) == "" {
		id.FullName = id.Username
	}
	return id
}

// auth exists only as a whole: a token never outlives its identity.
type auth struct {
	accessToken  string
	refreshToken string
	identity     Identity
}

// Flash levels.
const (
	FlashInfo    = "info"
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashError   = "error"
)

type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Session is request-scoped; it is not safe for concurrent use.
type Session struct {
	id         string
	auth       *auth
	flashes    []Flash
	rememberMe bool

	isNew   bool
	dirty   bool
	rotate  bool
	flushed bool
}

func newSession(id string) *Session {
	return &Session{id: id, isNew: true}
}

// New returns an empty, unsaved session.
func New() *Session { return newSession(uuid.NewString()) }

func (s *Session) ID() string { return s.id }

// Login installs a token pair and its identity atomically. On error the
// session is left unchanged.
func (s *Session) Login(accessToken, refreshToken string, id Identity) error {
	if accessToken == "" {
		return ErrMissingToken
	}
	if err := id.validate(); err != nil {
		return err
	}
	s.auth = &auth{accessToken: accessToken, refreshToken: refreshToken, identity: id.normalized()}
	s.rotate = true
	s.dirty = true
	return nil
}

// ReplaceTokens swaps in a refreshed pair, keeping the identity.
func (s *Session) ReplaceTokens(accessToken, refreshToken string) error {
	if s.auth == nil {
		return ErrNotLoggedIn
	}
	if accessToken == "" {
		return ErrMissingToken
	}
	s.auth.accessToken = accessToken
	if refreshToken != "" {
		s.auth.refreshToken = refreshToken
	}
	s.dirty = true
	return nil
}

// SyncIdentity overwrites the stored identity with the live profile.
func (s *Session) SyncIdentity(id Identity) error {
	if s.auth == nil {
		return ErrNotLoggedIn
	}
	if err := id.validate(); err != nil {
		return err
	}
	id = id.normalized()
	if s.auth.identity != id {
		s.auth.identity = id
		s.dirty = true
	}
	return nil
}

// Clear drops tokens and identity. Pending flash messages survive so the
// login page can explain why the user was signed out.
func (s *Session) Clear() {
	if s.auth == nil && !s.rememberMe {
		return
	}
	s.auth = nil
	s.rememberMe = false
	s.dirty = true
}

// Flush clears everything, including flashes, and deletes the stored record.
func (s *Session) Flush() {
	s.auth = nil
	s.flashes = nil
	s.rememberMe = false
	s.flushed = true
	s.dirty = true
}

func (s *Session) IsAuthenticated() bool { return s.auth != nil }

func (s *Session) AccessToken() string {
	if s.auth == nil {
		return ""
	}
	return s.auth.accessToken
}

func (s *Session) RefreshToken() string {
	if s.auth == nil {
		return ""
	}
	return s.auth.refreshToken
}

// Identity returns the signed-in identity.
func (s *Session) Identity() (Identity, bool) {
	if s.auth == nil {
		return Identity{}, false
	}
	return s.auth.identity, true
}

// SetRememberMe selects the long session lifetime.
func (s *Session) SetRememberMe(v bool) {
	if s.rememberMe != v {
		s.rememberMe = v
		s.dirty = true
	}
}

func (s *Session) RememberMe() bool { return s.rememberMe }

func (s *Session) AddFlash(level, message string) {
	s.flashes = append(s.flashes, Flash{Level: level, Message: message})
	s.dirty = true
}

// PopFlashes returns and removes pending flashes.
func (s *Session) PopFlashes() []Flash {
	if len(s.flashes) == 0 {
		return nil
	}
	out := s.flashes
	s.flashes = nil
	s.dirty = true
	return out
}

func (s *Session) empty() bool {
	return s.auth == nil && len(s.flashes) == 0 && !s.rememberMe
}
