package dberror

import (
	"errors"
	"net/http"

	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

var (
	ErrDatabase          apperrors.Error = apperrors.New("db error").SetStatusCode(http.StatusInternalServerError)
	ErrAlreadyExists     apperrors.Error = ErrDatabase.New("already exists").SetStatusCode(http.StatusConflict)
	ErrNotFound          apperrors.Error = ErrDatabase.New("not found").SetStatusCode(http.StatusNotFound)
	ErrInvalidInput      apperrors.Error = ErrDatabase.New("invalid input").SetStatusCode(http.StatusBadRequest)
	ErrInvalidReference  apperrors.Error = ErrInvalidInput.New("invalid reference").SetStatusCode(http.StatusBadRequest)
	ErrMissingConnection apperrors.Error = ErrDatabase.New("no database connection in context")
)

// FromPg maps driver errors to the errors above. what names the object in messages.
func FromPg(err error, what string) apperrors.Error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrAlreadyExists.Msg(what + " already exists")
		case pgerrcode.ForeignKeyViolation:
			return ErrInvalidReference.Msg(what + " references a missing object")
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.StringDataRightTruncationDataException:
			return ErrInvalidInput.Msg("invalid " + what)
		}
	}
	return ErrDatabase.Err(err)
}
