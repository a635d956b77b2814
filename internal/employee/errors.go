package employee

import (
	apperrors "github.com/crestbank/core/internal/shared/errors"
)

var (
	ErrNotFound           = apperrors.NotFound("employee")
	ErrInvalidCredentials = apperrors.Unauthorized("invalid username or password")
	ErrInactive           = apperrors.Forbidden("employee is deactivated")
)
