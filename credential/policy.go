package credential

import "unicode"

// MinPasswordLength is the minimum master-password length.
const MinPasswordLength = 12

// checkPasswordPolicy returns nil when the password satisfies the policy:
// at least MinPasswordLength characters, with at least one lowercase letter,
// one uppercase letter, one digit and one symbol.
func checkPasswordPolicy(password string) *WeakPasswordError {
	var missing []string

	if len([]rune(password)) < MinPasswordLength {
		missing = append(missing, "minimum length")
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	if !lower {
		missing = append(missing, "lowercase letter")
	}
	if !upper {
		missing = append(missing, "uppercase letter")
	}
	if !digit {
		missing = append(missing, "digit")
	}
	if !symbol {
		missing = append(missing, "symbol")
	}

	if len(missing) > 0 {
		return &WeakPasswordError{Missing: missing}
	}
	return nil
}
