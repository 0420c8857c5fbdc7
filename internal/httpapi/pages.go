package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"hospital-frontend/internal/auth"
	"hospital-frontend/internal/gateway"
	"hospital-frontend/internal/rbac"
	"hospital-frontend/internal/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// panel is one dashboard section loaded from the gateway.
type panel struct {
	key   string
	path  string // "{id}" is replaced with the caller's user id
	query url.Values
	field string // key inside data holding the rows; "" keeps all of data
}

var dashboardPanels = map[session.Role][]panel{
	session.RoleAdmin: {
		{key: "stats", path: "/api/analytics/dashboard/admin", query: url.Values{"days": {"30"}}},
		{key: "recent_users", path: "/api/users", query: url.Values{"page": {"1"}, "limit": {"5"}}, field: "users"},
		{key: "monthly_stats", path: "/api/analytics/patients/monthly", query: url.Values{"limit": {"6"}}, field: "monthlyStats"},
	},
	session.RoleStaff: {
		{key: "recent_patients", path: "/api/patients", query: url.Values{"page": {"1"}, "limit": {"5"}}, field: "patients"},
		{key: "recent_appointments", path: "/api/appointments", query: url.Values{"limit": {"10"}}, field: "appointments"},
	},
	session.RoleDoctor: {
		{key: "stats", path: "/api/analytics/dashboard/doctor/{id}", query: url.Values{"days": {"30"}}},
		{key: "my_appointments", path: "/api/appointments", query: url.Values{"limit": {"10"}}, field: "appointments"},
		{key: "my_prescriptions", path: "/api/prescriptions", query: url.Values{"limit": {"5"}}, field: "prescriptions"},
	},
	session.RoleNurse: {
		{key: "assigned_patients", path: "/api/patients", query: url.Values{"page": {"1"}, "limit": {"10"}}, field: "patients"},
		{key: "today_appointments", path: "/api/appointments", query: url.Values{"limit": {"10"}}, field: "appointments"},
	},
	session.RolePatient: {
		{key: "my_appointments", path: "/api/appointments", query: url.Values{"limit": {"5"}}, field: "appointments"},
		{key: "my_prescriptions", path: "/api/prescriptions", query: url.Values{"limit": {"5"}}, field: "prescriptions"},
	},
}

// Dashboard loads the caller's role-specific panels concurrently. A panel
// that fails renders empty; the page itself never fails.
func (h Handlers) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	sub := subjectOf(c)
	token := tokenOf(c)
	panels := dashboardPanels[sub.Role]

	values := make([]json.RawMessage, len(panels))
	failed := make([]bool, len(panels))
	var g errgroup.Group
	g.SetLimit(4)
	for i, p := range panels {
		g.Go(func() error {
			values[i], failed[i] = h.loadPanel(ctx, sub, token, p)
			return nil
		})
	}
	_ = g.Wait()

	data := gin.H{}
	warned := false
	for i, p := range panels {
		data[p.key] = values[i]
		if failed[i] && !warned {
			flash(c, session.FlashWarning, "Unable to load dashboard data.")
			warned = true
		}
	}
	render(c, http.StatusOK, "dashboard", data)
}

func (h Handlers) loadPanel(ctx context.Context, sub auth.Subject, token string, p panel) (json.RawMessage, bool) {
	empty := json.RawMessage(`[]`)
	if p.field == "" {
		empty = json.RawMessage(`{}`)
	}

	// Panels are scoped exactly like the proxy scopes list calls.
	req := rbac.Request{Method: http.MethodGet, Path: p.path, Query: p.query, Subject: sub}
	req, _ = rbac.Chain{rbac.DoctorOwnData(), rbac.PatientOwnData()}.Evaluate(req)

	path := strings.ReplaceAll(p.path, "{id}", url.PathEscape(sub.UserID))
	res := h.Gateway.Request(ctx, http.MethodGet, path, token, nil, req.Query)
	if !res.OK() {
		return empty, true
	}
	if p.field == "" {
		if len(res.Envelope.Data) == 0 {
			return empty, false
		}
		return res.Envelope.Data, false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(res.Envelope.Data, &doc); err != nil {
		return empty, true
	}
	if rows, ok := doc[p.field]; ok && string(rows) != "null" {
		return rows, false
	}
	return empty, false
}

// DoctorDetail shows one doctor. Contact fields are resolved from the
// richest source the caller may read, then revealed if encrypted.
func (h Handlers) DoctorDetail(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	sub := subjectOf(c)
	token := tokenOf(c)

	res := h.Gateway.Request(ctx, http.MethodGet, "/api/doctors/profile/"+url.PathEscape(id), "", nil, nil)
	var doctor map[string]any
	if res.OK() {
		_ = json.Unmarshal(res.Envelope.Data, &doctor)
	}
	if doctor == nil {
		flash(c, session.FlashError, "Doctor not found")
		redirect(c, auth.DashboardPath)
		return
	}

	own := sub.UserID == id
	privileged := own || sub.IsAdmin()
	user := gateway.ResultSource("user", func(ctx context.Context) gateway.Result {
		return h.Gateway.Request(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), token, nil, nil)
	})

	var sources []gateway.Source
	if own {
		sources = append(sources, gateway.ResultSource("auth_profile", func(ctx context.Context) gateway.Result {
			return h.Gateway.Request(ctx, http.MethodGet, gateway.PathProfile, token, nil, nil)
		}))
	}
	if privileged {
		sources = append(sources, user)
	}
	sources = append(sources, gateway.StaticSource("doctor_profile", doctor))
	if !privileged {
		sources = append(sources, user)
	}
	r := gateway.NewResolver(sources...)

	out := make(map[string]any, len(doctor)+4)
	for k, v := range doctor {
		out[k] = v
	}
	out["email"] = h.Codec.Reveal(ctx, "email", r.Any(ctx, "", "email", "user.email"))
	out["phone"] = h.Codec.Reveal(ctx, "phone", r.Any(ctx, "", "phone", "profile.phone", "user.profile.phone"))
	if v, _, ok := r.Lookup(ctx, "avatarUrl", "profile.avatarUrl", "user.profile.avatarUrl"); ok {
		out["avatarUrl"] = v
	}
	out["fullName"] = doctorName(doctor)
	if _, ok := out["isActive"]; !ok {
		accepting, ok := doctor["isAcceptingPatients"].(bool)
		out["isActive"] = !ok || accepting
	}

	render(c, http.StatusOK, "doctor_detail", gin.H{"doctor": out, "can_edit": privileged})
}

func doctorName(doc map[string]any) string {
	first, _ := doc["firstName"].(string)
	last, _ := doc["lastName"].(string)
	if n := strings.TrimSpace(first + " " + last); n != "" {
		return n
	}
	if u, _ := doc["username"].(string); u != "" {
		return u
	}
	return "Unknown Doctor"
}

// Home sends visitors to the dashboard.
func Home(c *gin.Context) {
	redirect(c, auth.DashboardPath)
}
