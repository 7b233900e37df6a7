package name

import "strings"

const (
	// Suffix is appended to every registered name.
	Suffix = ".pepu"

	// MaxLength bounds the label (the part before the suffix).
	MaxLength = 32

	// DefaultMinLength is the default minimum label length. The minimum is
	// a policy knob, not an invariant; 0 disables the check.
	DefaultMinLength = 3
)

const (
	KindInvalidEmpty = "invalid_empty"
	KindInvalidChars = "invalid_chars"
	KindTooShort     = "too_short"
	KindTooLong      = "too_long"
)

type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks a candidate label. The suffix, if present, is ignored so
// that already-normalized names validate the same as raw input.
func Validate(raw string, minLength int) error {
	label := Label(raw)

	if label == "" {
		return &ValidationError{Kind: KindInvalidEmpty, Message: "domain name is required"}
	}

	for _, c := range label {
		if !isAllowed(c) {
			return &ValidationError{Kind: KindInvalidChars, Message: "only letters, numbers, and hyphens are allowed"}
		}
	}

	if minLength > 0 && len(label) < minLength {
		return &ValidationError{Kind: KindTooShort, Message: "domain name is too short"}
	}

	if len(label) > MaxLength {
		return &ValidationError{Kind: KindTooLong, Message: "domain name is too long"}
	}

	return nil
}

// Normalize lower-cases a name and appends the suffix if missing. It is
// idempotent; every code path that reads or writes a domain name must go
// through it, or uniqueness checks diverge on case and suffix variants.
func Normalize(raw string) string {
	n := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasSuffix(n, Suffix) {
		return n
	}
	return n + Suffix
}

// Label returns the part of a name before the suffix.
func Label(raw string) string {
	n := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimSuffix(n, Suffix)
}

func isAllowed(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-':
		return true
	}
	return false
}
