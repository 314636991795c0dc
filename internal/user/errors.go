package user

import "errors"

var (
	// ErrUserNotFound signals that no quota record exists for the user.
	ErrUserNotFound = errors.New("user not found")
	// ErrInsufficientStorage signals that the reservation would push
	// used_space past total_space.
	ErrInsufficientStorage = errors.New("insufficient storage quota")
)
