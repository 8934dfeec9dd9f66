// Package apperr holds the sentinel errors shared across the wiki packages.
package apperr

import "errors"

var (
	// ErrNotFound means the requested document or directory does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath covers containment failures, traversal attempts and
	// self-referential directory moves.
	ErrInvalidPath = errors.New("invalid path")
	// ErrCollision means a move destination is already occupied.
	ErrCollision = errors.New("target already exists")
	// ErrAlreadyExists is returned when creating something that exists.
	ErrAlreadyExists = errors.New("already exists")
)
