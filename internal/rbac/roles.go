package rbac

import "hospital-frontend/internal/session"

// Role groups shared by route policies.
var (
	AdminOnly      = []session.Role{session.RoleAdmin}
	StaffOrAdmin   = []session.Role{session.RoleAdmin, session.RoleStaff}
	Clinicians     = []session.Role{session.RoleAdmin, session.RoleStaff, session.RoleDoctor}
	MedicalStaff   = []session.Role{session.RoleAdmin, session.RoleStaff, session.RoleDoctor, session.RoleNurse}
	PatientOrStaff = []session.Role{session.RoleAdmin, session.RoleStaff, session.RoleDoctor, session.RoleNurse, session.RolePatient}
)
