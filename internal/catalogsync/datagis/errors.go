package datagis

import (
	"net/http"

	"github.com/datasud/idgo/internal/common/apperrors"
)

var (
	ErrGisImport          apperrors.Error = apperrors.New("gis import failed").SetStatusCode(http.StatusBadRequest).SetField(apperrors.FieldAll)
	ErrNotSpatial         apperrors.Error = ErrGisImport.New("the file is not recognized as a valid GIS dataset")
	ErrCrsNotFound        apperrors.Error = ErrGisImport.New("the resource seems to contain GIS data but its coordinate system could not be detected, select the CRS code").SetField("crs")
	ErrCrsNotSupported    apperrors.Error = ErrGisImport.New("the coordinate system of the GIS data is not supported")
	ErrLayerLimitExceeded apperrors.Error = ErrGisImport.New("the file contains more layers than allowed")
	ErrImportFailed       apperrors.Error = ErrGisImport.New("the GIS data could not be imported")

	ErrDownload             apperrors.Error = apperrors.New("the download of the file failed").SetStatusCode(http.StatusBadRequest).SetField("dl_url")
	ErrDownloadNotFound     apperrors.Error = ErrDownload.New("the remote resource does not seem to exist, make sure the URL is correct")
	ErrDownloadForbidden    apperrors.Error = ErrDownload.New("you are not allowed to access the resource")
	ErrDownloadUnauthorized apperrors.Error = ErrDownload.New("authentication is required to access the resource")
	ErrSizeLimitExceeded    apperrors.Error = ErrDownload.New("the file size exceeds the allowed limit")

	ErrSpatialStore apperrors.Error = apperrors.New("spatial store error").SetStatusCode(http.StatusInternalServerError)
)
