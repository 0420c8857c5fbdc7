package audit

import (
	"context"
	"errors"
	"time"

	"hospital-frontend/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records security-relevant events.
// Callers treat audit logging as best-effort; the Log* helpers never fail.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Error("audit append failed", "type", string(e.Type), "err", err)
	}
}

func withRequest(e Event, r RequestInfo) Event {
	e.IPAddress = r.IP
	e.Method = r.Method
	e.Path = r.Path
	return e
}

// LogAccessDenied records a request rejected by an authorization guard.
func (s *Service) LogAccessDenied(ctx context.Context, userID, role string, r RequestInfo, reason, message string) {
	s.record(ctx, withRequest(Event{
		Type:        EventTypeAccessDenied,
		ActorUserID: userID,
		ActorRole:   role,
		Reason:      reason,
		Message:     message,
	}, r))
}

// LogSessionExpired records a forced sign-out after a failed probe and refresh.
func (s *Service) LogSessionExpired(ctx context.Context, userID, role string, r RequestInfo, reason string) {
	s.record(ctx, withRequest(Event{
		Type:        EventTypeSessionExpired,
		ActorUserID: userID,
		ActorRole:   role,
		Reason:      reason,
	}, r))
}

// LogTokenRefreshed records a transparent token refresh.
func (s *Service) LogTokenRefreshed(ctx context.Context, userID, role string, r RequestInfo) {
	s.record(ctx, withRequest(Event{
		Type:        EventTypeTokenRefreshed,
		ActorUserID: userID,
		ActorRole:   role,
	}, r))
}

func (s *Service) LogLogin(ctx context.Context, userID, role, username string, r RequestInfo) {
	s.record(ctx, withRequest(Event{
		Type:        EventTypeLogin,
		ActorUserID: userID,
		ActorRole:   role,
		Username:    username,
	}, r))
}

func (s *Service) LogLoginFailed(ctx context.Context, username string, r RequestInfo, reason string) {
	s.record(ctx, withRequest(Event{
		Type:     EventTypeLoginFailed,
		Username: username,
		Reason:   reason,
	}, r))
}

func (s *Service) LogLogout(ctx context.Context, userID, role string, r RequestInfo) {
	s.record(ctx, withRequest(Event{
		Type:        EventTypeLogout,
		ActorUserID: userID,
		ActorRole:   role,
	}, r))
}
