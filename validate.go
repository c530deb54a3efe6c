package goGuardian

import (
	"errors"
	"strings"
)

const recoveryCodeLength = 24

// validateOTPCode returns code without surrounding whitespace, the form sent to the
// service.
func validateOTPCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", &FieldRequiredError{Field: "otpCode"}
	}
	if len(code) != otpDigits || !isNumericString(code) {
		return "", ErrOTPValidation
	}
	return code, nil
}

// validateRecoveryCode returns code without surrounding whitespace.
func validateRecoveryCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", &FieldRequiredError{Field: "recoveryCode"}
	}
	if len(code) != recoveryCodeLength || !isAlphanumericString(code) {
		return "", ErrRecoveryCodeValidation
	}
	return code, nil
}

func isNumericString(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}

func isAlphanumericString(v string) bool {
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrFieldRequired) ||
		errors.Is(err, ErrOTPValidation) ||
		errors.Is(err, ErrRecoveryCodeValidation)
}
