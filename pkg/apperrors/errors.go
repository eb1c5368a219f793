package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrColumnExists      = errors.New("column already exists")
	ErrDisallowedKey     = errors.New("key not in allow-list")
	ErrProtectedColumn   = errors.New("column is protected")
	ErrInvalidIdentifier = errors.New("invalid column identifier")
	ErrSelectorMissing   = errors.New("selector column does not exist")
)
