package core

import (
	"errors"
	"fmt"
)

var (
	ErrCapabilityUnavailable    = errors.New("connector not initialized")
	ErrUpstream                 = errors.New("connector call failed")
	ErrInvalidState             = errors.New("invalid state or chat_id")
	ErrWalletVerificationFailed = errors.New("failed to verify wallet connection")
	ErrInvalidIdentity          = errors.New("invalid chat_id")
	ErrBackend                  = errors.New("backend error")
)

// BackendError carries the status and body the backend answered with
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend responded with status %d", e.Status)
}

// Is makes BackendError match ErrBackend
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}
