package service

import (
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func newPagination(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}

func validate(v *validator.Validate, payload interface{}, message string) error {
	if err := v.Struct(payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	return nil
}

// storeError maps a repository failure to a typed error. sql.ErrNoRows and unparseable ids
// become NotFound with the given message; anything else is internal.
func storeError(err error, notFound, internal string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows), repository.IsMalformedInput(err):
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "resource already exists")
	default:
		return appErrors.Internal(err, internal)
	}
}

func requireActor(actor *models.JWTClaims) error {
	if actor == nil || actor.Email == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	return nil
}
