package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Shared validation sentinels.
var (
	// ErrInvalidValue marks an input that failed parsing or validation.
	ErrInvalidValue = errors.New("invalid value")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks an operation outside the caller's scope.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks a write that clashes with existing state.
	ErrConflict = errors.New("conflict")
)

// ValidationErrors maps field names to human readable problems.
type ValidationErrors map[string]string

// Add records msg for field unless the field already has a message.
func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err returns nil when no problems were recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrInvalidValue) match validation failures.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidValue
}

// NormalizeEmail trims and lowercases an address and checks its syntax.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidValue)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", fmt.Errorf("%w: malformed email %q", ErrInvalidValue, raw)
	}
	return email, nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// SanitizeText strips markup and control characters and collapses whitespace.
func SanitizeText(raw string) string {
	s := tagPattern.ReplaceAllString(raw, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

var hslPattern = regexp.MustCompile(`^hsl\(\s*(\d{1,3})\s*,\s*(\d{1,3})%\s*,\s*(\d{1,3})%\s*\)$`)

// ValidateHSLColor accepts colors in the form "hsl(210, 40%, 50%)".
func ValidateHSLColor(raw string) error {
	m := hslPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return fmt.Errorf("%w: %q is not an hsl() color", ErrInvalidValue, raw)
	}
	limits := []int{360, 100, 100}
	for i, limit := range limits {
		n, _ := strconv.Atoi(m[i+1])
		if n > limit {
			return fmt.Errorf("%w: hsl component %d out of range in %q", ErrInvalidValue, n, raw)
		}
	}
	return nil
}
