package common

import "strings"

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used for passwords after the last call that needs them.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// NormalizeEmail trims and lower-cases an email address. The directory and
// the identity provider treat addresses case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
