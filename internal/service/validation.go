package service

import (
	"strings"
	"unicode/utf8"
)

const (
	phoneMinLength      = 10
	phoneMaxLength      = 15
	inviteCodeMaxLength = 16
)

// ValidatePhone exige prefijo '+' y longitud entre 10 y 15.
func ValidatePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	switch {
	case phone == "":
		return "", newValidationError("phone_number", "phone number is required")
	case !strings.HasPrefix(phone, "+"):
		return "", newValidationError("phone_number", "phone number must start with '+'")
	case utf8.RuneCountInString(phone) < phoneMinLength:
		return "", newValidationError("phone_number", "phone number is too short")
	case utf8.RuneCountInString(phone) > phoneMaxLength:
		return "", newValidationError("phone_number", "phone number is too long")
	}
	return phone, nil
}

func validateCode(code string, maxLength int) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", newValidationError("code", "code is required")
	}
	if maxLength > 0 && utf8.RuneCountInString(code) > maxLength {
		return "", newValidationError("code", "code is too long")
	}
	return code, nil
}

func validateInviteCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", newValidationError("invite_code", "invite code is required")
	}
	if utf8.RuneCountInString(code) > inviteCodeMaxLength {
		return "", newValidationError("invite_code", "invite code is too long")
	}
	return code, nil
}
