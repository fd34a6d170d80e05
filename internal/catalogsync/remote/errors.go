// Package remote classifies failures of the external catalog, layer registry and
// extraction services into a small error taxonomy shared by their clients.
package remote

import (
	"net/http"

	"github.com/datasud/idgo/internal/common/apperrors"
)

var (
	ErrRemote            apperrors.Error = apperrors.New("remote service error").SetStatusCode(http.StatusBadGateway)
	ErrRemoteNotFound    apperrors.Error = ErrRemote.New("remote object not found").SetStatusCode(http.StatusNotFound)
	ErrRemoteConflict    apperrors.Error = ErrRemote.New("remote object conflicts with an existing one").SetStatusCode(http.StatusConflict)
	ErrRemoteTimeout     apperrors.Error = ErrRemote.New("remote service did not answer in time, outcome is uncertain").SetStatusCode(http.StatusGatewayTimeout)
	ErrRemoteUnavailable apperrors.Error = ErrRemote.New("remote service unavailable").SetStatusCode(http.StatusBadGateway)
)
