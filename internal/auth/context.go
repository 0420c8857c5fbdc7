package auth

import (
	"context"

	"hospital-frontend/internal/session"
)

type ctxKey int

const (
	ctxSubject ctxKey = iota
)

// Subject is who is making the request, derived fresh from the session on
// every request and never cached elsewhere.
type Subject struct {
	UserID        string
	Username      string
	Role          session.Role
	Email         string
	FullName      string
	Authenticated bool
}

// SubjectFromSession builds the request subject. A nil or anonymous session
// yields an unauthenticated subject.
func SubjectFromSession(s *session.Session) Subject {
	if s == nil {
		return Subject{}
	}
	id, ok := s.Identity()
	if !ok {
		return Subject{}
	}
	return Subject{
		UserID:        id.UserID,
		Username:      id.Username,
		Role:          id.Role,
		Email:         id.Email,
		FullName:      id.FullName,
		Authenticated: true,
	}
}

func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, ctxSubject, s)
}

// SubjectFrom returns the subject stored by WithSubject, or an
// unauthenticated one.
func SubjectFrom(ctx context.Context) Subject {
	s, _ := ctx.Value(ctxSubject).(Subject)
	return s
}

func (s Subject) HasRole(roles ...session.Role) bool {
	if !s.Authenticated {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// Role tiers used by views to toggle features.
func (s Subject) IsAdmin() bool   { return s.HasRole(session.RoleAdmin) }
func (s Subject) IsStaff() bool   { return s.HasRole(session.RoleAdmin, session.RoleStaff) }
func (s Subject) IsDoctor() bool  { return s.HasRole(session.RoleAdmin, session.RoleStaff, session.RoleDoctor) }
func (s Subject) IsNurse() bool   { return s.HasRole(session.RoleAdmin, session.RoleStaff, session.RoleDoctor, session.RoleNurse) }
func (s Subject) IsPatient() bool { return s.HasRole(session.RolePatient) }

// ViewContext is the per-page user block every rendered view receives.
type ViewContext struct {
	UserID          string       `json:"user_id,omitempty"`
	Username        string       `json:"username,omitempty"`
	Role            session.Role `json:"user_role,omitempty"`
	Email           string       `json:"user_email,omitempty"`
	FullName        string       `json:"user_full_name,omitempty"`
	IsAuthenticated bool         `json:"is_authenticated"`
	IsAdmin         bool         `json:"is_admin"`
	IsStaff         bool         `json:"is_staff"`
	IsDoctor        bool         `json:"is_doctor"`
	IsNurse         bool         `json:"is_nurse"`
	IsPatient       bool         `json:"is_patient"`
}

func (s Subject) View() ViewContext {
	return ViewContext{
		UserID:          s.UserID,
		Username:        s.Username,
		Role:            s.Role,
		Email:           s.Email,
		FullName:        s.FullName,
		IsAuthenticated: s.Authenticated,
		IsAdmin:         s.IsAdmin(),
		IsStaff:         s.IsStaff(),
		IsDoctor:        s.IsDoctor(),
		IsNurse:         s.IsNurse(),
		IsPatient:       s.IsPatient(),
	}
}
