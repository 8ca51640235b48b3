package auth

import (
	"errors"
	"fmt"
)

var (
	ErrNoCachedSession      = errors.New("no cached session")
	ErrNoMatchingAccount    = errors.New("no matching account")
	ErrNetwork              = errors.New("identity provider request failed")
	ErrMissingRedirectToken = errors.New("no token in redirect fragment")
)

// NoMatchError reports an identity that is not on the host allowlist.
type NoMatchError struct {
	DisplayName string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no account matches %s", e.DisplayName)
}

func (e *NoMatchError) Is(target error) bool {
	return target == ErrNoMatchingAccount
}

// StatusError is returned by providers when the identity endpoint answers with
// a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: identity endpoint returned status %d", e.Provider, e.StatusCode)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNetwork
}
