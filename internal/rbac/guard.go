package rbac

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"hospital-frontend/internal/auth"
	"hospital-frontend/internal/session"
)

// DenyKind classifies why a guard rejected a request.
type DenyKind string

const (
	DenyUnauthenticated DenyKind = "unauthenticated"
	DenyForbidden       DenyKind = "forbidden"
	DenyReadOnly        DenyKind = "read_only"
	DenyHidden          DenyKind = "hidden"
)

// Request is everything a guard may look at. Guards never mutate it in
// place; ownership scoping returns a copy with a rewritten Query.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Referer string
	// Host is the host the request was addressed to; referers from other
	// hosts are never used as redirect targets.
	Host    string
	Subject auth.Subject
}

func (r Request) withQuery(q url.Values) Request {
	r.Query = q
	return r
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q)+1)
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Denial explains a rejected request.
type Denial struct {
	Guard   string
	Kind    DenyKind
	Message string
	// Redirect is the page-flow destination; empty means render a 403 page.
	Redirect string
}

// Guard is one pure authorization step.
type Guard interface {
	Name() string
	Evaluate(r Request) (Request, *Denial)
}

// Chain runs guards in order and stops at the first denial.
type Chain []Guard

func (ch Chain) Evaluate(r Request) (Request, *Denial) {
	for _, g := range ch {
		var d *Denial
		r, d = g.Evaluate(r)
		if d != nil {
			return r, d
		}
	}
	return r, nil
}

// LoginRequired rejects anonymous callers.
type LoginRequired struct{}

func (LoginRequired) Name() string { return "login_required" }

func (LoginRequired) Evaluate(r Request) (Request, *Denial) {
	if r.Subject.Authenticated {
		return r, nil
	}
	return r, &Denial{Guard: "login_required", Kind: DenyUnauthenticated, Message: auth.MsgLoginToAccess, Redirect: auth.LoginPath}
}

// RoleRequired admits only the listed roles, regardless of method.
type RoleRequired struct {
	Allowed []session.Role
}

func (RoleRequired) Name() string { return "role_required" }

func (g RoleRequired) Evaluate(r Request) (Request, *Denial) {
	if !r.Subject.Authenticated {
		return LoginRequired{}.Evaluate(r)
	}
	if r.Subject.HasRole(g.Allowed...) {
		return r, nil
	}
	return r, &Denial{Guard: g.Name(), Kind: DenyForbidden, Message: "You do not have permission to access this page."}
}

// HideListForRole keeps Role away from a listing of Target (e.g. doctors
// may not browse the doctors list).
type HideListForRole struct {
	Role   session.Role
	Target string
}

func (HideListForRole) Name() string { return "hide_list_for_role" }

func (g HideListForRole) Evaluate(r Request) (Request, *Denial) {
	if r.Subject.Role != g.Role {
		return r, nil
	}
	return r, &Denial{
		Guard:    g.Name(),
		Kind:     DenyHidden,
		Message:  fmt.Sprintf("%ss cannot access the %s list.", g.Role.Title(), g.Target),
		Redirect: auth.DashboardPath,
	}
}

// OwnData forces Param to the caller's own user id when the caller has Role.
// Any client-supplied value, and every alias spelling of it, is replaced.
type OwnData struct {
	Role    session.Role
	Param   string
	Aliases []string
}

// DoctorOwnData scopes doctors to doctorId.
func DoctorOwnData() OwnData {
	return OwnData{Role: session.RoleDoctor, Param: "doctorId", Aliases: []string{"doctor_id"}}
}

// PatientOwnData scopes patients to patientId.
func PatientOwnData() OwnData {
	return OwnData{Role: session.RolePatient, Param: "patientId", Aliases: []string{"patient_id"}}
}

func (OwnData) Name() string { return "own_data" }

func (g OwnData) Evaluate(r Request) (Request, *Denial) {
	if r.Subject.Role != g.Role || !r.Subject.Authenticated {
		return r, nil
	}
	q := cloneQuery(r.Query)
	for _, a := range g.Aliases {
		q.Del(a)
	}
	q.Set(g.Param, r.Subject.UserID)
	return r.withQuery(q), nil
}

// ReadOnlyForRole rejects mutating methods for the listed roles.
type ReadOnlyForRole struct {
	Roles []session.Role
}

func (ReadOnlyForRole) Name() string { return "read_only_for_role" }

func (g ReadOnlyForRole) Evaluate(r Request) (Request, *Denial) {
	if !isMutating(r.Method) || !r.Subject.HasRole(g.Roles...) {
		return r, nil
	}
	redirect := localReferer(r.Referer, r.Host)
	return r, &Denial{
		Guard:    g.Name(),
		Kind:     DenyReadOnly,
		Message:  fmt.Sprintf("%s role has read-only access to this resource.", r.Subject.Role.Title()),
		Redirect: redirect,
	}
}

// localReferer reduces ref to a path on host, or "/" when it points elsewhere.
func localReferer(ref, host string) string {
	u, err := url.Parse(ref)
	if err != nil || ref == "" {
		return "/"
	}
	if u.Scheme != "" || u.Host != "" {
		if (u.Scheme != "http" && u.Scheme != "https") || host == "" || !strings.EqualFold(u.Host, host) {
			return "/"
		}
		ref = u.RequestURI()
	}
	if !strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "//") || strings.Contains(ref, `\`) {
		return "/"
	}
	return ref
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
