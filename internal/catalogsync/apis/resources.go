package apis

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/datagis"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/reconciler"
	"github.com/datasud/idgo/internal/common/httpx"
	"github.com/datasud/idgo/internal/common/uuid"
)

type resourceRsp struct {
	Resource *resourceView `json:"resource"`
	Outcome  *outcomeView  `json:"outcome,omitempty"`
}

func baseName(p string) string {
	if p == "" {
		return ""
	}
	return filepath.Base(p)
}

// resourceCommandOf prefills a command with the current values of res.
func resourceCommandOf(ctx context.Context, st Store, res *models.Resource) resourceCommand {
	geo, extractable, ogc := res.GeoRestriction, res.Extractable, res.OgcServices
	cmd := resourceCommand{
		Name:             res.Name,
		Description:      res.Description,
		Lang:             res.Lang,
		Format:           res.Format,
		DataType:         res.DataType,
		RestrictionLevel: string(res.RestrictionLevel),
		DlURL:            res.DlURL,
		ReferencedURL:    res.ReferencedURL,
		FtpFile:          res.FtpFile,
		SyncFrequency:    res.SyncFrequency,
		Crs:              res.Crs,
		GeoRestriction:   &geo,
		Extractable:      &extractable,
		OgcServices:      &ogc,
	}
	switch res.RestrictionLevel {
	case catcommon.LevelAllowedUsers:
		cmd.RestrictedList = res.AllowedUsers
	case catcommon.LevelAnyOrganisation:
		for _, id := range res.AllowedOrgs {
			if org, err := st.GetOrganisation(ctx, id); err == nil {
				cmd.RestrictedList = append(cmd.RestrictedList, org.Slug)
			}
		}
	}
	return cmd
}

// apply writes the command onto res. Users and organisations named in the
// restriction list must exist.
func (c *resourceCommand) apply(ctx context.Context, st Store, res *models.Resource) error {
	level, err := c.level()
	if err != nil {
		return err
	}
	res.Name = c.Name
	res.Description = c.Description
	res.Lang = c.Lang
	res.Format = c.Format
	res.DataType = c.DataType
	res.RestrictionLevel = level
	res.DlURL = c.DlURL
	res.ReferencedURL = c.ReferencedURL
	res.FtpFile = c.FtpFile
	res.SyncFrequency = c.SyncFrequency
	if c.GeoRestriction != nil {
		res.GeoRestriction = *c.GeoRestriction
	}
	// new resources are extractable and served over OGC unless told otherwise
	if c.Extractable != nil {
		res.Extractable = *c.Extractable
	} else if res.CreatedAt.IsZero() {
		res.Extractable = true
	}
	if c.OgcServices != nil {
		res.OgcServices = *c.OgcServices
	} else if res.CreatedAt.IsZero() {
		res.OgcServices = true
	}

	res.AllowedUsers, res.AllowedOrgs = nil, nil
	names := trimAll(c.RestrictedList)
	switch level {
	case catcommon.LevelAllowedUsers:
		for _, name := range names {
			if _, err := st.GetUser(ctx, name); err != nil {
				if errors.Is(err, dberror.ErrNotFound) {
					return fieldError("restricted_list", "unknown user: "+name)
				}
				return err
			}
		}
		res.AllowedUsers = names
	case catcommon.LevelAnyOrganisation:
		for _, slug := range names {
			org, err := organisationBySlug(ctx, st, "restricted_list", slug)
			if err != nil {
				return err
			}
			res.AllowedOrgs = append(res.AllowedOrgs, org.OrganisationID)
		}
	}
	return nil
}

// storeUpload copies the uploaded file under the upload directory of the
// resource.
func (s *Service) storeUpload(fh *multipart.FileHeader, resourceID uuid.UUID) (string, error) {
	name := filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", ErrUploadMissing
	}
	dir := filepath.Join(s.opts.UploadDir, resourceID.String(), uuid.New().String()[:8])
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", ErrUploadFailed.Err(err)
	}
	src, err := fh.Open()
	if err != nil {
		return "", ErrUploadFailed.Err(err)
	}
	defer src.Close()

	p := filepath.Join(dir, name)
	dst, err := os.Create(p)
	if err != nil {
		return "", ErrUploadFailed.Err(err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.RemoveAll(dir)
		return "", ErrUploadFailed.Err(err)
	}
	if err := dst.Close(); err != nil {
		os.RemoveAll(dir)
		return "", ErrUploadFailed.Err(err)
	}
	return p, nil
}

func removeUpload(ctx context.Context, p string) {
	if p == "" {
		return
	}
	if err := os.RemoveAll(filepath.Dir(p)); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("path", p).Msg("unable to remove uploaded file")
	}
}

func uploadedFile(r *http.Request) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if files := r.MultipartForm.File["up_file"]; len(files) > 0 {
		return files[0]
	}
	return nil
}

// saveResource runs the shared part of create and update: decode, upload,
// reconcile. prev is nil on creation.
func (s *Service) saveResource(r *http.Request, d *models.Dataset, prev *models.Resource) (*models.Resource, *reconciler.Outcome, error) {
	ctx := r.Context()
	st := s.store(ctx)
	r.Body = http.MaxBytesReader(nil, r.Body, s.opts.MaxUploadSize)
	in, err := requestInput(r, 32<<20)
	if err != nil {
		return nil, nil, err
	}

	res := &models.Resource{ResourceID: uuid.New(), DatasetID: &d.DatasetID}
	cmd := resourceCommand{}
	if prev != nil {
		res = prev.Clone()
		cmd = resourceCommandOf(ctx, st, prev)
	}
	if err := decodeCommand(in, resourceAliases, &cmd); err != nil {
		return nil, nil, err
	}
	if err := cmd.apply(ctx, st, res); err != nil {
		return nil, nil, err
	}
	epsg, err := cmd.epsg()
	if err != nil {
		return nil, nil, err
	}

	var uploaded string
	if fh := uploadedFile(r); fh != nil {
		if uploaded, err = s.storeUpload(fh, res.ResourceID); err != nil {
			return nil, nil, err
		}
		res.UpFile = uploaded
		res.DlURL, res.ReferencedURL, res.FtpFile = "", "", ""
		if _, set := in["format"]; !set {
			res.Format = datagis.ExtensionOf(uploaded)
		}
	} else if res.DlURL != "" || res.ReferencedURL != "" || res.FtpFile != "" {
		// another source replaces the uploaded file
		res.UpFile = ""
	}

	outcome, err := s.reconciler.SaveResource(ctx, reconciler.ResourceChange{Resource: res, EPSG: epsg})
	if err != nil {
		removeUpload(ctx, uploaded)
		return nil, outcome, err
	}
	if prev != nil && prev.UpFile != "" && prev.UpFile != res.UpFile {
		removeUpload(ctx, prev.UpFile)
	}
	saved, aerr := st.GetResource(ctx, res.ResourceID)
	if aerr != nil {
		return nil, outcome, aerr
	}
	return saved, outcome, nil
}

func (s *Service) resourceOf(ctx context.Context, st Store, d *models.Dataset, rawID string) (*models.Resource, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, httpx.ErrNotFound("resource")
	}
	res, aerr := st.GetResource(ctx, id)
	if aerr != nil {
		if errors.Is(aerr, dberror.ErrNotFound) {
			return nil, httpx.ErrNotFound("resource")
		}
		return nil, aerr
	}
	if res.DatasetID == nil || *res.DatasetID != d.DatasetID {
		return nil, httpx.ErrNotFound("resource")
	}
	return res, nil
}

func (s *Service) listResources(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	st := s.store(ctx)
	d, _, err := editableDataset(ctx, st, chi.URLParam(r, "datasetName"))
	if err != nil {
		return nil, err
	}
	resources, aerr := st.ListResourcesByDataset(ctx, d.DatasetID)
	if aerr != nil {
		return nil, aerr
	}
	views := []*resourceView{}
	for _, res := range resources {
		views = append(views, viewResource(res))
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: views}, nil
}

func (s *Service) getResource(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	st := s.store(ctx)
	d, _, err := editableDataset(ctx, st, chi.URLParam(r, "datasetName"))
	if err != nil {
		return nil, err
	}
	res, err := s.resourceOf(ctx, st, d, chi.URLParam(r, "resourceID"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: viewResource(res)}, nil
}

func (s *Service) createResource(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	d, _, err := editableDataset(ctx, s.store(ctx), chi.URLParam(r, "datasetName"))
	if err != nil {
		return nil, err
	}
	saved, outcome, err := s.saveResource(r, d, nil)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   datasetLocation(d.Slug) + "/resources/" + saved.ResourceID.String(),
		Response:   &resourceRsp{Resource: viewResource(saved), Outcome: viewOutcome(outcome)},
	}, nil
}

func (s *Service) updateResource(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	st := s.store(ctx)
	d, _, err := editableDataset(ctx, st, chi.URLParam(r, "datasetName"))
	if err != nil {
		return nil, err
	}
	prev, err := s.resourceOf(ctx, st, d, chi.URLParam(r, "resourceID"))
	if err != nil {
		return nil, err
	}
	saved, outcome, err := s.saveResource(r, d, prev)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &resourceRsp{Resource: viewResource(saved), Outcome: viewOutcome(outcome)},
	}, nil
}

func (s *Service) deleteResource(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	st := s.store(ctx)
	d, _, err := editableDataset(ctx, st, chi.URLParam(r, "datasetName"))
	if err != nil {
		return nil, err
	}
	res, err := s.resourceOf(ctx, st, d, chi.URLParam(r, "resourceID"))
	if err != nil {
		return nil, err
	}
	if err := s.reconciler.DeleteResource(ctx, res.ResourceID); err != nil {
		return nil, err
	}
	removeUpload(ctx, res.UpFile)
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}
