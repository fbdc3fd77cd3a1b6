package service

import "fluxia/internal/domain"

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
	RoleUser    = "user"
)

// Principal is the signed-in identity behind a session token.
type Principal struct {
	Token   string
	User    *domain.User
	Doctor  *domain.Doctor         // nil unless the user is linked to a doctor row
	Patient *domain.PatientProfile // nil unless a patient profile resolves
}

func (p *Principal) Role() string {
	switch {
	case p == nil:
		return ""
	case p.Doctor != nil:
		return RoleDoctor
	case p.Patient != nil:
		return RolePatient
	default:
		return RoleUser
	}
}

func (p *Principal) UserID() string {
	if p == nil || p.User == nil {
		return ""
	}
	return p.User.UserID
}
