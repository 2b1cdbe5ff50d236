package service

import (
	"errors"

	"github.com/final-year-project/doubtfire-api/internal/repository"
	"github.com/final-year-project/doubtfire-api/pkg/util/errorutil"
)

// mapRepoError turns repository sentinels into API errors. resource names the
// thing that was looked up for NotFound messages.
func mapRepoError(err error, resource string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return errorutil.NewNotFound(resource, nil)
	}
	return err
}

func int64Ptr(v int64) *int64 {
	return &v
}
