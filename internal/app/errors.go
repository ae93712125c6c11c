package service

import "errors"

var (
	// ErrAlreadyRunning is returned when Run is called while a run is active.
	ErrAlreadyRunning = errors.New("run already in progress")
	// ErrNoConsumers is returned when items would be produced with nobody to take them.
	ErrNoConsumers = errors.New("no consumers for produced items")
	// ErrVerification is returned when the consumed streams fail verification.
	ErrVerification = errors.New("verification failed")
)
