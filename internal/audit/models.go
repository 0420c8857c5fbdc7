package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Tokens and decrypted PII are never recorded.
// - actor and ip capture are best-effort; do not block request flows on audit failures.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the security category of the record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the signed-in user causing the event (if any).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	// Username is only set for login attempts, where no user id exists yet.
	Username string `json:"username,omitempty" db:"username"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	Method    string `json:"method,omitempty" db:"method"`
	Path      string `json:"path,omitempty" db:"path"`

	// Reason names the guard or failure that produced the event.
	Reason string `json:"reason,omitempty" db:"reason"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeLogin          EventType = "login"
	EventTypeLoginFailed    EventType = "login_failed"
	EventTypeLogout         EventType = "logout"
	EventTypeSessionExpired EventType = "session_expired"
	EventTypeTokenRefreshed EventType = "token_refreshed"
	EventTypeAccessDenied   EventType = "access_denied"
)

// RequestInfo is the request context attached to an event.
type RequestInfo struct {
	IP     string
	Method string
	Path   string
}
