package domain

import "time"

// VerificationCode es un código de un solo uso que prueba el control de un teléfono.
type VerificationCode struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsValid devuelve true mientras now sea anterior a ExpiresAt.
func (v VerificationCode) IsValid(now time.Time) bool {
	return now.Before(v.ExpiresAt)
}
