package rbac

import (
	"net/http"
	"net/url"
	"testing"

	"hospital-frontend/internal/auth"
	"hospital-frontend/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subject(role session.Role, id string) auth.Subject {
	return auth.Subject{UserID: id, Username: "u" + id, Role: role, Authenticated: true}
}

func get(sub auth.Subject, rawQuery string) Request {
	q, _ := url.ParseQuery(rawQuery)
	return Request{Method: http.MethodGet, Path: "/api/prescriptions", Query: q, Subject: sub}
}

func TestLoginRequired(t *testing.T) {
	_, d := LoginRequired{}.Evaluate(get(auth.Subject{}, ""))
	require.NotNil(t, d)
	assert.Equal(t, DenyUnauthenticated, d.Kind)
	assert.Equal(t, auth.LoginPath, d.Redirect)

	_, d = LoginRequired{}.Evaluate(get(subject(session.RolePatient, "p1"), ""))
	assert.Nil(t, d)
}

func TestRoleRequired_MembershipIgnoresMethod(t *testing.T) {
	g := RoleRequired{Allowed: StaffOrAdmin}
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		r := get(subject(session.RoleDoctor, "d1"), "")
		r.Method = method
		_, d := g.Evaluate(r)
		require.NotNil(t, d, method)
		assert.Equal(t, DenyForbidden, d.Kind)
		assert.Equal(t, "You do not have permission to access this page.", d.Message)

		r.Subject = subject(session.RoleStaff, "s1")
		_, d = g.Evaluate(r)
		assert.Nil(t, d, method)
	}
}

func TestRoleRequired_AnonymousIsUnauthenticated(t *testing.T) {
	_, d := RoleRequired{Allowed: AdminOnly}.Evaluate(get(auth.Subject{}, ""))
	require.NotNil(t, d)
	assert.Equal(t, DenyUnauthenticated, d.Kind)
}

func TestDoctorOwnData_InjectsOwnID(t *testing.T) {
	out, d := DoctorOwnData().Evaluate(get(subject(session.RoleDoctor, "d1"), "status=active"))
	require.Nil(t, d)
	assert.Equal(t, "d1", out.Query.Get("doctorId"))
	assert.Equal(t, "active", out.Query.Get("status"))
}

func TestDoctorOwnData_OverwritesClientValues(t *testing.T) {
	in := get(subject(session.RoleDoctor, "d1"), "doctorId=d9&doctorId=d8&doctor_id=d7")
	out, d := DoctorOwnData().Evaluate(in)
	require.Nil(t, d)
	assert.Equal(t, []string{"d1"}, out.Query["doctorId"])
	assert.Empty(t, out.Query["doctor_id"])

	// input is untouched
	assert.Equal(t, []string{"d9", "d8"}, in.Query["doctorId"])
}

func TestOwnData_OtherRolesUnchanged(t *testing.T) {
	in := get(subject(session.RoleAdmin, "a1"), "doctorId=d9")
	out, d := DoctorOwnData().Evaluate(in)
	require.Nil(t, d)
	assert.Equal(t, "d9", out.Query.Get("doctorId"))

	out, d = PatientOwnData().Evaluate(get(subject(session.RolePatient, "p1"), "patient_id=p2"))
	require.Nil(t, d)
	assert.Equal(t, "p1", out.Query.Get("patientId"))
	assert.Empty(t, out.Query.Get("patient_id"))
}

func TestReadOnlyForRole(t *testing.T) {
	g := ReadOnlyForRole{Roles: []session.Role{session.RolePatient, session.RoleStaff}}

	r := get(subject(session.RolePatient, "p1"), "")
	_, d := g.Evaluate(r)
	assert.Nil(t, d)

	r.Method = http.MethodPost
	_, d = g.Evaluate(r)
	require.NotNil(t, d)
	assert.Equal(t, DenyReadOnly, d.Kind)
	assert.Equal(t, "Patient role has read-only access to this resource.", d.Message)
	assert.Equal(t, "/", d.Redirect)

	r.Referer = "/prescriptions/"
	_, d = g.Evaluate(r)
	require.NotNil(t, d)
	assert.Equal(t, "/prescriptions/", d.Redirect)

	r.Subject = subject(session.RoleDoctor, "d1")
	_, d = g.Evaluate(r)
	assert.Nil(t, d)
}

func TestReadOnlyForRole_RedirectStaysOnHost(t *testing.T) {
	g := ReadOnlyForRole{Roles: []session.Role{session.RolePatient}}
	r := get(subject(session.RolePatient, "p1"), "")
	r.Method = http.MethodPost
	r.Host = "hospital.example"

	cases := map[string]string{
		"https://hospital.example/prescriptions/?page=2": "/prescriptions/?page=2",
		"http://HOSPITAL.example/appointments/":          "/appointments/",
		"https://evil.example/phish":                     "/",
		"//evil.example/phish":                           "/",
		"javascript:alert(1)":                            "/",
		"prescriptions/":                                 "/",
		`/\evil.example`:                                "/",
	}
	for ref, want := range cases {
		r.Referer = ref
		_, d := g.Evaluate(r)
		require.NotNil(t, d, ref)
		assert.Equal(t, want, d.Redirect, ref)
	}
}

func TestHideListForRole(t *testing.T) {
	g := HideListForRole{Role: session.RoleDoctor, Target: "doctors"}
	_, d := g.Evaluate(get(subject(session.RoleDoctor, "d1"), ""))
	require.NotNil(t, d)
	assert.Equal(t, DenyHidden, d.Kind)
	assert.Equal(t, "Doctors cannot access the doctors list.", d.Message)
	assert.Equal(t, auth.DashboardPath, d.Redirect)

	_, d = g.Evaluate(get(subject(session.RoleStaff, "s1"), ""))
	assert.Nil(t, d)
}

func TestPolicyChain_OrderAndIdempotence(t *testing.T) {
	p := Policy{
		Roles:    []session.Role{session.RoleAdmin, session.RoleStaff, session.RoleDoctor, session.RolePatient},
		OwnData:  []OwnData{DoctorOwnData(), PatientOwnData()},
		ReadOnly: []session.Role{session.RoleStaff, session.RolePatient},
	}
	ch := p.Chain()
	require.Len(t, ch, 5)
	assert.Equal(t, "login_required", ch[0].Name())
	assert.Equal(t, "read_only_for_role", ch[len(ch)-1].Name())

	first, d := ch.Evaluate(get(subject(session.RoleDoctor, "d1"), "doctorId=x"))
	require.Nil(t, d)
	second, d := ch.Evaluate(first)
	require.Nil(t, d)
	assert.Equal(t, first.Query.Encode(), second.Query.Encode())

	_, d = ch.Evaluate(get(subject(session.RoleNurse, "n1"), ""))
	require.NotNil(t, d)
	assert.Equal(t, "role_required", d.Guard)

	r := get(subject(session.RolePatient, "p1"), "")
	r.Method = http.MethodPut
	_, d = ch.Evaluate(r)
	require.NotNil(t, d)
	assert.Equal(t, DenyReadOnly, d.Kind)
}
