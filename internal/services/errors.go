package services

import (
	"errors"
	"fmt"

	"github.com/bizledger/api/internal/repositories"
)

var (
	// ErrStorageUnavailable indicates the persistence layer could not serve the request.
	ErrStorageUnavailable = errors.New("storage: unavailable")
)

// classifyRepositoryError translates repository categorisation into the
// caller-supplied sentinels, falling back to the raw error for anything
// unrecognised.
func classifyRepositoryError(err error, notFound, conflict error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) {
		return err
	}
	switch {
	case repoErr.IsNotFound() && notFound != nil:
		return fmt.Errorf("%w: %s", notFound, repoErr.Error())
	case repoErr.IsConflict() && conflict != nil:
		return fmt.Errorf("%w: %s", conflict, repoErr.Error())
	case repoErr.IsUnavailable():
		return fmt.Errorf("%w: %s", ErrStorageUnavailable, repoErr.Error())
	default:
		return err
	}
}

func isRepositoryConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
