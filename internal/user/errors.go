package user

import (
	apperrors "github.com/crestbank/core/internal/shared/errors"
)

var (
	ErrNotFound            = apperrors.NotFound("user")
	ErrAlreadyExists       = apperrors.Precondition("username or email already registered")
	ErrInvalidUsername     = apperrors.InvalidInput("username must be 3-32 lowercase letters, digits, or underscores")
	ErrInvalidEmail        = apperrors.InvalidInput("invalid email address")
	ErrInvalidPasswordHash = apperrors.InvalidInput("password hash is empty")
	ErrInvalidKYCStatus    = apperrors.InvalidInput("invalid KYC status")
	ErrPasswordTooShort    = apperrors.InvalidInput("password must be at least 8 characters")
	ErrInvalidCredentials  = apperrors.Unauthorized("invalid username or password")
	ErrInactive            = apperrors.Forbidden("user is deactivated")
)
