package reconciler

import (
	"net/http"

	"github.com/datasud/idgo/internal/common/apperrors"
)

var (
	ErrReconcile     apperrors.Error = apperrors.New("synchronization failed").SetStatusCode(http.StatusInternalServerError)
	ErrValidation    apperrors.Error = apperrors.New("validation failed").SetStatusCode(http.StatusBadRequest).SetField(apperrors.FieldAll)
	ErrNotPublished  apperrors.Error = ErrValidation.New("the dataset has not been published yet").SetField("dataset")
	ErrLocalStore    apperrors.Error = ErrReconcile.New("unable to save the changes")
	ErrEntityMissing apperrors.Error = apperrors.New("not found").SetStatusCode(http.StatusNotFound)
)

// invalid returns a validation error attributed to field.
func invalid(field, msg string) apperrors.Error {
	return ErrValidation.Msg(msg).SetField(field)
}
