// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add a case to StatusOf for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ghuser/dkn/pkg/auth"
	pkgvalidator "github.com/ghuser/dkn/pkg/validator"
	authdomain "github.com/ghuser/dkn/services/auth/domain"
)

// StatusOf returns the HTTP status for err.
// Uses errors.Is() so wrapped sentinel errors are matched correctly.
// Defaults to 500 Internal Server Error for unrecognized errors.
func StatusOf(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, authdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized // 401
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, authdomain.ErrInactiveUser):
		return http.StatusForbidden // 403
	case errors.Is(err, authdomain.ErrUserNotFound):
		return http.StatusNotFound // 404
	case errors.Is(err, authdomain.ErrUserAlreadyExists):
		return http.StatusConflict // 409
	case errors.Is(err, authdomain.ErrInvalidUsername),
		errors.Is(err, authdomain.ErrInvalidEmail),
		errors.Is(err, authdomain.ErrInvalidRole),
		errors.Is(err, authdomain.ErrWeakPassword),
		errors.As(err, &verrs):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, pkgvalidator.ErrMalformedForm):
		return http.StatusBadRequest // 400
	case errors.Is(err, pkgvalidator.ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge // 413
	default:
		return http.StatusInternalServerError // 500
	}
}
