package service

import (
	"errors"
	"fmt"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/repository"
)

func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicate)
}

// asServiceErr lifts repository-level races into the Conflict class: a lost
// version CAS or a uniqueness violation means another writer committed first
// and the caller should refetch.
func asServiceErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrVersionMismatch) || errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
