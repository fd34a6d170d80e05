package refdata

import (
	"net/http"

	"github.com/datasud/idgo/internal/common/apperrors"
)

var (
	ErrRefData         apperrors.Error = apperrors.New("reference data error").SetStatusCode(http.StatusInternalServerError)
	ErrInvalidDocument apperrors.Error = ErrRefData.New("invalid reference data document").SetStatusCode(http.StatusBadRequest)
	ErrUnknownKind     apperrors.Error = ErrInvalidDocument.New("unknown reference data kind")
	ErrSync            apperrors.Error = ErrRefData.New("unable to synchronize reference data")
)
