package apis

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"slices"

	jsonitor "github.com/json-iterator/go"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/httpx"
	"github.com/datasud/idgo/internal/common/uuid"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// requestInput reads a JSON object, an urlencoded form or a multipart form.
func requestInput(r *http.Request, maxMemory int64) (map[string]any, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, readError(err)
		}
		return formValues(r.MultipartForm.Value), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, readError(err)
		}
		return formValues(r.PostForm), nil
	}
	if r.Body == nil {
		return nil, httpx.ErrInvalidRequest("request body is required")
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, readError(err)
	}
	in := map[string]any{}
	if err := json.Unmarshal(body, &in); err != nil {
		return nil, httpx.ErrUnableToParseReqData()
	}
	return in, nil
}

func readError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return httpx.ErrRequestTooLarge(maxErr.Limit)
	}
	return httpx.ErrUnableToParseReqData()
}

func actorOf(ctx context.Context) (*catcommon.Actor, error) {
	a := catcommon.GetActor(ctx)
	if a == nil || a.Username == "" {
		return nil, ErrNoActor
	}
	return a, nil
}

// canPublishFor reports whether the actor may publish datasets on behalf of
// the organisation.
func canPublishFor(ctx context.Context, st Store, a *catcommon.Actor, orgID uuid.UUID) (bool, error) {
	if a.IsAdmin {
		return true, nil
	}
	contributors, err := st.ListOrganisationContributors(ctx, orgID)
	if err != nil {
		return false, err
	}
	return slices.Contains(contributors, a.Username), nil
}

// canEdit reports whether the actor may change the dataset: administrators,
// the editor and the contributors of the owning organisation.
func canEdit(ctx context.Context, st Store, a *catcommon.Actor, d *models.Dataset) (bool, error) {
	if a.IsAdmin || d.Editor == a.Username {
		return true, nil
	}
	if d.OrganisationID == nil {
		return false, nil
	}
	return canPublishFor(ctx, st, a, *d.OrganisationID)
}

// editableDataset loads a dataset by slug and checks the actor may change it.
func editableDataset(ctx context.Context, st Store, slug string) (*models.Dataset, *catcommon.Actor, error) {
	a, err := actorOf(ctx)
	if err != nil {
		return nil, nil, err
	}
	d, err := datasetBySlug(ctx, st, slug)
	if err != nil {
		return nil, nil, err
	}
	ok, err := canEdit(ctx, st, a, d)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrForbidden
	}
	return d, a, nil
}

func datasetBySlug(ctx context.Context, st Store, slug string) (*models.Dataset, error) {
	d, err := st.GetDatasetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, httpx.ErrNotFound("dataset")
		}
		return nil, err
	}
	return d, nil
}

// organisationBySlug resolves an organisation given in a request field.
func organisationBySlug(ctx context.Context, st Store, field, slug string) (*models.Organisation, error) {
	org, err := st.GetOrganisationBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, fieldError(field, "unknown organisation: "+slug)
		}
		return nil, err
	}
	return org, nil
}
