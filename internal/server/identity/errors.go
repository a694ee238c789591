package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// ErrorCode is the closed set of sign-in failure codes the service reacts
// to. Anything the provider sends outside this set is CodeUnknown.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeInvalidPassword
	CodeEmailNotFound
	CodeTooManyAttempts
	CodeUserDisabled
)

var codeNames = map[string]ErrorCode{
	"INVALID_PASSWORD":            CodeInvalidPassword,
	"INVALID_LOGIN_CREDENTIALS":   CodeInvalidPassword,
	"EMAIL_NOT_FOUND":             CodeEmailNotFound,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyAttempts,
	"USER_DISABLED":               CodeUserDisabled,
}

// ParseErrorCode maps a provider error message to an ErrorCode. The provider
// sometimes appends a detail as "CODE : detail"; only the code is used.
func ParseErrorCode(message string) ErrorCode {
	code, _, _ := strings.Cut(message, ":")
	if c, ok := codeNames[strings.TrimSpace(code)]; ok {
		return c
	}
	return CodeUnknown
}

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidPassword:
		return "INVALID_PASSWORD"
	case CodeEmailNotFound:
		return "EMAIL_NOT_FOUND"
	case CodeTooManyAttempts:
		return "TOO_MANY_ATTEMPTS_TRY_LATER"
	case CodeUserDisabled:
		return "USER_DISABLED"
	default:
		return "UNKNOWN"
	}
}

// Err returns the sentinel error callers match on.
func (c ErrorCode) Err() error {
	switch c {
	case CodeInvalidPassword:
		return common.ErrInvalidPassword
	case CodeEmailNotFound:
		return common.ErrAccountNotFound
	case CodeTooManyAttempts:
		return common.ErrTooManyAttempts
	case CodeUserDisabled:
		return common.ErrAccountDisabled
	default:
		return common.ErrUnknownProvider
	}
}

// Admin operations reported in ProviderError.Op.
const (
	OpCreate = "create"
	OpDelete = "delete"
)

// ProviderError reports a failed remote account mutation. It matches
// common.ErrProviderCreate or common.ErrProviderDelete depending on Op.
type ProviderError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider %s failed: %s", e.Op, e.Reason)
}

func (e *ProviderError) Unwrap() []error {
	errs := make([]error, 0, 2)
	switch e.Op {
	case OpCreate:
		errs = append(errs, common.ErrProviderCreate)
	case OpDelete:
		errs = append(errs, common.ErrProviderDelete)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// apiError is the error envelope returned by the provider's REST endpoints.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusError is a non-2xx admin API response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func reasonOf(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
