package extractor

import (
	"net/http"

	"github.com/datasud/idgo/internal/common/apperrors"
)

var (
	ErrExtractor            apperrors.Error = apperrors.New("extraction service error").SetStatusCode(http.StatusBadGateway)
	ErrExtractionRejected   apperrors.Error = ErrExtractor.New("the extraction request was rejected").SetStatusCode(http.StatusBadRequest)
	ErrExtractorUnavailable apperrors.Error = ErrExtractor.New("the extraction service is not available at the moment")
	ErrInvalidResponse      apperrors.Error = ErrExtractor.New("unexpected response from the extraction service")
)
