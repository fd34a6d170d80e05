package apis

import (
	"net/http"

	"github.com/datasud/idgo/internal/common/apperrors"
)

var (
	ErrBadRequest    apperrors.Error = apperrors.New("bad request").SetStatusCode(http.StatusBadRequest).SetField(apperrors.FieldAll)
	ErrInvalidInput  apperrors.Error = ErrBadRequest.New("invalid input")
	ErrForbidden     apperrors.Error = apperrors.New("you are not allowed to change this object").SetStatusCode(http.StatusForbidden)
	ErrNoActor       apperrors.Error = apperrors.New("unable to identify the user").SetStatusCode(http.StatusUnauthorized)
	ErrNotFound      apperrors.Error = apperrors.New("not found").SetStatusCode(http.StatusNotFound)
	ErrNoExtractor   apperrors.Error = apperrors.New("the extraction service is not configured").SetStatusCode(http.StatusServiceUnavailable)
	ErrUploadFailed  apperrors.Error = apperrors.New("unable to store the uploaded file").SetStatusCode(http.StatusInternalServerError)
	ErrUploadMissing apperrors.Error = ErrBadRequest.New("no file was uploaded").SetField("up_file")
)

// fieldError attributes a bad request to a single input.
func fieldError(field, msg string) apperrors.Error {
	return ErrInvalidInput.Msg(msg).SetField(field)
}
