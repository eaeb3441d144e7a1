package service

import (
	"errors"
	"fmt"

	"catalog-service/internal/domain"
	"catalog-service/internal/repository"

	"github.com/google/uuid"
)

// CheckVersion compares the version a caller last read with the stored one.
func CheckVersion(expected, actual int) error {
	if expected != actual {
		return fmt.Errorf("%w: expected %d, stored %d", domain.ErrVersionConflict, expected, actual)
	}
	return nil
}

// requireTenant rejects commands and queries without tenant context before
// any store access.
func requireTenant(tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return fmt.Errorf("%w: tenant id is missing", domain.ErrBadRequest)
	}
	return nil
}

// translate maps store failures onto the caller-facing taxonomy. Errors the
// store does not classify are wrapped as-is and treated as infrastructure.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound), errors.Is(err, repository.ErrVariantNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, repository.ErrVersionMismatch):
		return fmt.Errorf("%w: %w", domain.ErrVersionConflict, err)
	case errors.Is(err, repository.ErrSlugTaken), errors.Is(err, repository.ErrSKUTaken):
		return fmt.Errorf("%w: %w", domain.ErrUniqueConflict, err)
	case errors.Is(err, repository.ErrInvalidInput):
		return fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	case domain.IsCallerError(err):
		return err
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
