// Package common defines sentinel errors shared by the allocation engine
// layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Allocation errors.
	ErrEmptyPool                  = errors.New("no eligible applicants")
	ErrConflict                   = errors.New("conflicting pending offer")
	ErrInvalidState               = errors.New("invalid state")
	ErrEligibilityDataUnavailable = errors.New("eligibility data unavailable")

	// Offer response token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
