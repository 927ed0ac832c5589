package repositories

import "github.com/pkg/errors"

var (
	ErrNotFound        = errors.New("repositories: not found")
	ErrConflict        = errors.New("repositories: record changed concurrently")
	ErrDuplicate       = errors.New("repositories: duplicate key")
	ErrAlreadyResolved = errors.New("repositories: appeal already resolved")
)
