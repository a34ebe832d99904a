package auth

import "unicode"

// MinPasswordLength is the minimum required password length
const MinPasswordLength = 8

// PasswordRuleViolation names a specific password policy rule that failed
type PasswordRuleViolation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// PasswordPolicy checks passwords against the strength requirements:
// minimum length, at least one uppercase letter, one lowercase letter and
// one digit.
type PasswordPolicy struct{}

// NewPasswordPolicy creates a new PasswordPolicy instance
func NewPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{}
}

// Validate returns the list of rule violations, empty for a valid password
func (p *PasswordPolicy) Validate(password string) []PasswordRuleViolation {
	var violations []PasswordRuleViolation

	if len(password) < MinPasswordLength {
		violations = append(violations, PasswordRuleViolation{
			Rule:    "min_length",
			Message: "Password must be at least 8 characters long",
		})
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}

	if !hasUpper {
		violations = append(violations, PasswordRuleViolation{
			Rule:    "uppercase",
			Message: "Password must contain at least one uppercase letter",
		})
	}

	if !hasLower {
		violations = append(violations, PasswordRuleViolation{
			Rule:    "lowercase",
			Message: "Password must contain at least one lowercase letter",
		})
	}

	if !hasDigit {
		violations = append(violations, PasswordRuleViolation{
			Rule:    "digit",
			Message: "Password must contain at least one number",
		})
	}

	return violations
}

// IsValid reports whether the password meets all requirements
func (p *PasswordPolicy) IsValid(password string) bool {
	return len(p.Validate(password)) == 0
}
