package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates the referenced chat, user, or document is absent.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey indicates a uniqueness violation on create.
	ErrDuplicateKey = errors.New("duplicate key")
)

// translateError converts driver-level failures into the store taxonomy so
// callers never observe the underlying storage error type.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicateKey
	}
	return err
}
