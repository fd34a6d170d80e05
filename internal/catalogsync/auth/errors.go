package auth

import (
	"net/http"

	"github.com/datasud/idgo/internal/common/apperrors"
)

var (
	ErrAuth               apperrors.Error = apperrors.New("auth error").SetStatusCode(http.StatusUnauthorized)
	ErrMissingIdentity    apperrors.Error = ErrAuth.New("unable to identify the user")
	ErrUnableToParseToken apperrors.Error = ErrAuth.New("unable to parse token")
	ErrInvalidToken       apperrors.Error = ErrAuth.New("invalid token")
	ErrUnknownUser        apperrors.Error = ErrAuth.New("unknown user")
	ErrInactiveUser       apperrors.Error = ErrAuth.New("this account is disabled").SetStatusCode(http.StatusForbidden)
	ErrTokenCreation      apperrors.Error = apperrors.New("unable to create token").SetStatusCode(http.StatusInternalServerError)
)
