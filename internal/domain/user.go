package domain

import "time"

// User es un usuario autenticado por número de teléfono.
type User struct {
	ID                  string    `json:"id"`
	PhoneNumber         string    `json:"phone_number"`
	InviteCode          string    `json:"invite_code"`
	ActivatedInviteCode *string   `json:"activated_invite_code"`
	CreatedAt           time.Time `json:"created_at"`
}

// HasActivatedInvite indica si el usuario ya registró a su referente.
func (u User) HasActivatedInvite() bool {
	return u.ActivatedInviteCode != nil && *u.ActivatedInviteCode != ""
}

// Profile es la vista del usuario con los teléfonos de sus referidos.
type Profile struct {
	User
	Referrals []string `json:"referrals"`
}
