package auth

import (
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// generateFromPassword is a seam for bcrypt.GenerateFromPassword.
var generateFromPassword = bcrypt.GenerateFromPassword

// PasswordHasher produces the salted one-way hash kept in the local
// directory. Verification is the identity provider's job, so there is no
// Compare counterpart here.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher with the given bcrypt cost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &PasswordHasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of password. Every call draws a fresh salt,
// so hashing the same password twice yields different strings.
// Failures of the underlying primitive are reported as common.ErrHashing.
func (h *PasswordHasher) Hash(password []byte) (string, error) {
	hash, err := generateFromPassword(password, h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrHashing, err)
	}
	return string(hash), nil
}
