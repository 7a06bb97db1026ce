package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNotClaimable      = errors.New("job not claimable")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrInvalidJob        = errors.New("invalid job record")
)
