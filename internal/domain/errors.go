package domain

import "errors"

// Caller-facing failures of the catalog. None of them succeed on retry.
var (
	ErrNotFound        = errors.New("not found")
	ErrTenantMismatch  = errors.New("tenant mismatch")
	ErrVersionConflict = errors.New("version mismatch")
	ErrUniqueConflict  = errors.New("already in use")
	ErrDuplicateKey    = errors.New("attribute already exists")
	ErrUnknownKey      = errors.New("attribute does not exist")
	ErrBadRequest      = errors.New("bad request")
)

// IsCallerError reports whether err belongs to the caller-facing taxonomy.
func IsCallerError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrTenantMismatch,
		ErrVersionConflict,
		ErrUniqueConflict,
		ErrDuplicateKey,
		ErrUnknownKey,
		ErrBadRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
