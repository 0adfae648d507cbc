package security

import (
	"errors"
	"testing"
)

func TestDefaultPasswordValidator_AcceptsStrongPassword(t *testing.T) {
	validator := DefaultPasswordValidator()

	if err := validator.Validate("Sup3r!SecurePass#7890"); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
}

func TestDefaultPasswordValidator_Violations(t *testing.T) {
	validator := DefaultPasswordValidator()

	cases := []struct {
		name     string
		password string
		code     string
	}{
		{"too short", "a1", "min_length"},
		{"no letter", "12345678", "letter"},
		{"no digit", "abcdefgh", "digit"},
		{"weak", "password1", "weak_password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.password)
			if err == nil {
				t.Fatalf("expected violation for %q", tc.password)
			}

			var violation *PasswordValidationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected PasswordValidationError, got %T", err)
			}
			if violation.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, violation.Code)
			}
		})
	}
}

func TestRequireDifferentFrom(t *testing.T) {
	rule := RequireDifferentFrom("old password 1")

	if err := rule.Validate("old password 1"); err == nil {
		t.Fatalf("expected violation when passwords match")
	}
	if err := rule.Validate("new password 2"); err != nil {
		t.Fatalf("expected distinct password to pass, got %v", err)
	}
}

func TestRequirePasswordStrengthRule_DisabledWhenZero(t *testing.T) {
	rule := RequirePasswordStrengthRule(0)
	if err := rule.Validate("password"); err != nil {
		t.Fatalf("expected rule to be disabled at score 0, got %v", err)
	}
}

func TestPasswordValidator_NilGuard(t *testing.T) {
	var validator *PasswordValidator
	if err := validator.Validate("anything"); err == nil {
		t.Fatalf("expected error from nil validator")
	}
}
