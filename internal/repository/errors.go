package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	// It is the backstop for check-then-create races on registration.
	ErrDuplicate = errors.New("repository: duplicate")
)
