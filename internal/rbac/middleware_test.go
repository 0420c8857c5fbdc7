package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hospital-frontend/internal/audit"
	"hospital-frontend/internal/auth"
	"hospital-frontend/internal/session"

	"github.com/gin-gonic/gin"
)

type denials struct{ got []string }

func (d *denials) ObserveDenial(guard, kind string) { d.got = append(d.got, guard+":"+kind) }

type fixture struct {
	router  *gin.Engine
	sess    *session.Session
	events  *audit.MemoryRepo
	denials *denials
	query   string
}

func newFixture(sub auth.Subject, p Policy) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{sess: session.New(), events: audit.NewMemoryRepo(), denials: &denials{}}
	e := Enforcer{Audit: audit.NewService(f.events), Recorder: f.denials}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		session.Attach(c, f.sess)
		c.Request = c.Request.WithContext(auth.WithSubject(c.Request.Context(), sub))
	})
	handler := func(c *gin.Context) {
		f.query = c.Request.URL.RawQuery
		c.Status(http.StatusOK)
	}
	r.Any("/x", e.Policy(p), handler)
	r.Any("/api/x", e.Policy(p), handler)
	f.router = r
	return f
}

func (f *fixture) do(method, target string, header ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestEnforcer_AllowsAndRewritesQuery(t *testing.T) {
	f := newFixture(subject(session.RoleDoctor, "d1"), Policy{Roles: Clinicians, OwnData: []OwnData{DoctorOwnData()}})

	w := f.do(http.MethodGet, "/x?doctorId=d9&page=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.query != "doctorId=d1&page=2" {
		t.Fatalf("unexpected downstream query %q", f.query)
	}
}

func TestEnforcer_ForbiddenPageGets403AndFlash(t *testing.T) {
	f := newFixture(subject(session.RolePatient, "p1"), Policy{Roles: StaffOrAdmin})

	w := f.do(http.MethodGet, "/x")
	if w.Code != http.StatusForbidden || w.Body.String() != "Access denied" {
		t.Fatalf("expected 403 Access denied, got %d %q", w.Code, w.Body.String())
	}
	flashes := f.sess.PopFlashes()
	if len(flashes) != 1 || flashes[0].Level != session.FlashError {
		t.Fatalf("unexpected flashes %+v", flashes)
	}
	evs := f.events.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeAccessDenied || evs[0].Reason != "role_required" {
		t.Fatalf("unexpected audit events %+v", evs)
	}
	if len(f.denials.got) != 1 || f.denials.got[0] != "role_required:forbidden" {
		t.Fatalf("unexpected denial metrics %v", f.denials.got)
	}
}

func TestEnforcer_ForbiddenAjaxGetsJSON(t *testing.T) {
	f := newFixture(subject(session.RolePatient, "p1"), Policy{Roles: AdminOnly})

	w := f.do(http.MethodGet, "/api/x")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false {
		t.Fatalf("unexpected body %v", body)
	}
	if len(f.sess.PopFlashes()) != 0 {
		t.Fatalf("ajax denials must not flash")
	}
}

func TestEnforcer_ReadOnlyRedirectsToReferer(t *testing.T) {
	f := newFixture(subject(session.RolePatient, "p1"), Policy{ReadOnly: []session.Role{session.RolePatient}})

	w := f.do(http.MethodPost, "/x", "Referer", "/prescriptions/")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/prescriptions/" {
		t.Fatalf("expected redirect to referer, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if w := f.do(http.MethodGet, "/x"); w.Code != http.StatusOK {
		t.Fatalf("expected GET allowed, got %d", w.Code)
	}
}

func TestEnforcer_ReadOnlyIgnoresForeignReferer(t *testing.T) {
	f := newFixture(subject(session.RolePatient, "p1"), Policy{ReadOnly: []session.Role{session.RolePatient}})

	// httptest requests are addressed to example.com.
	w := f.do(http.MethodPost, "/x", "Referer", "https://evil.example/form")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home, got %d %q", w.Code, w.Header().Get("Location"))
	}
	w = f.do(http.MethodPost, "/x", "Referer", "http://example.com/prescriptions/")
	if w.Header().Get("Location") != "/prescriptions/" {
		t.Fatalf("expected same-host referer kept as path, got %q", w.Header().Get("Location"))
	}
}

func TestEnforcer_HiddenListRedirectsToDashboard(t *testing.T) {
	f := newFixture(subject(session.RoleDoctor, "d1"), Policy{Hide: []HideListForRole{{Role: session.RoleDoctor, Target: "doctors"}}})

	w := f.do(http.MethodGet, "/x")
	if w.Code != http.StatusFound || w.Header().Get("Location") != auth.DashboardPath {
		t.Fatalf("expected dashboard redirect, got %d %q", w.Code, w.Header().Get("Location"))
	}
	flashes := f.sess.PopFlashes()
	if len(flashes) != 1 || flashes[0].Level != session.FlashWarning {
		t.Fatalf("unexpected flashes %+v", flashes)
	}
}

func TestEnforcer_AnonymousGoesToLogin(t *testing.T) {
	f := newFixture(auth.Subject{}, Policy{})

	w := f.do(http.MethodGet, "/x?a=1")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/auth/login/?next=%2Fx%3Fa%3D1" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Header().Get("Location"))
	}
	if len(f.events.Events()) != 0 {
		t.Fatalf("anonymous bounces are not access denials")
	}
}
