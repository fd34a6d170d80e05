package apis

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/httpx"
	"github.com/datasud/idgo/internal/common/uuid"
)

type datasetRsp struct {
	Dataset *datasetView `json:"dataset"`
	Outcome *outcomeView `json:"outcome,omitempty"`
}

func datasetLocation(slug string) string {
	return "/datasets/" + slug
}

// commandOf prefills a command with the current values of d so that an
// update only changes the fields the request carries.
func commandOf(d *models.Dataset, orgSlug string) datasetCommand {
	published := d.Published
	return datasetCommand{
		Title:            d.Title,
		Slug:             d.Slug,
		Description:      d.Description,
		Organisation:     orgSlug,
		License:          d.LicenseID,
		Keywords:         d.Keywords,
		Categories:       d.Categories,
		DataTypes:        d.DataTypes,
		Support:          d.Support,
		Geocover:         d.Geocover,
		UpdateFrequency:  d.UpdateFrequency,
		Published:        &published,
		OwnerName:        d.OwnerName,
		OwnerEmail:       d.OwnerEmail,
		DateCreation:     formatDate(d.DateCreation),
		DateModification: formatDate(d.DateModification),
		DatePublication:  formatDate(d.DatePublication),
	}
}

func (c *datasetCommand) apply(d *models.Dataset, org *models.Organisation) error {
	var err error
	if d.DateCreation, err = parseDate("date_creation", c.DateCreation); err != nil {
		return err
	}
	if d.DateModification, err = parseDate("date_modification", c.DateModification); err != nil {
		return err
	}
	if d.DatePublication, err = parseDate("date_publication", c.DatePublication); err != nil {
		return err
	}
	orgID := org.OrganisationID
	d.Title = c.Title
	d.Slug = c.Slug
	d.Description = c.Description
	d.OrganisationID = &orgID
	d.LicenseID = c.License
	d.Keywords = trimAll(c.Keywords)
	d.Categories = trimAll(c.Categories)
	d.DataTypes = trimAll(c.DataTypes)
	d.Support = c.Support
	d.Geocover = c.Geocover
	d.UpdateFrequency = c.UpdateFrequency
	if c.Published != nil {
		d.Published = *c.Published
	}
	d.OwnerName = c.OwnerName
	d.OwnerEmail = c.OwnerEmail
	return nil
}

func (s *Service) listDatasets(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	a, err := actorOf(ctx)
	if err != nil {
		return nil, err
	}
	st := s.store(ctx)

	var orgID *uuid.UUID
	if slug := r.URL.Query().Get("organisation"); slug != "" {
		org, err := organisationBySlug(ctx, st, "organisation", slug)
		if err != nil {
			return nil, err
		}
		orgID = &org.OrganisationID
	}
	datasets, aerr := st.ListDatasets(ctx, orgID)
	if aerr != nil {
		return nil, aerr
	}

	views := []*datasetView{}
	for _, d := range datasets {
		ok, err := canEdit(ctx, st, a, d)
		if err != nil {
			return nil, err
		}
		if ok {
			views = append(views, viewDataset(ctx, st, d))
		}
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: views}, nil
}

func (s *Service) getDataset(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	st := s.store(ctx)
	d, _, err := editableDataset(ctx, st, chi.URLParam(r, "datasetName"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: viewDataset(ctx, st, d)}, nil
}

func (s *Service) createDataset(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	a, err := actorOf(ctx)
	if err != nil {
		return nil, err
	}
	in, err := requestInput(r, s.opts.MaxUploadSize)
	if err != nil {
		return nil, err
	}
	var cmd datasetCommand
	if err := decodeCommand(in, datasetAliases, &cmd); err != nil {
		return nil, err
	}

	st := s.store(ctx)
	org, err := organisationBySlug(ctx, st, "organisation", cmd.Organisation)
	if err != nil {
		return nil, err
	}
	ok, err := canPublishFor(ctx, st, a, org.OrganisationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden.Msg("you do not contribute to " + org.Slug)
	}

	d := &models.Dataset{DatasetID: uuid.New(), Editor: a.Username}
	if err := cmd.apply(d, org); err != nil {
		return nil, err
	}
	outcome, err := s.reconciler.SaveDataset(ctx, d)
	if err != nil {
		log.Ctx(ctx).Info().Err(err).Str("dataset", d.Slug).Msg("dataset not created")
		return nil, err
	}
	saved, aerr := st.GetDataset(ctx, d.DatasetID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   datasetLocation(saved.Slug),
		Response:   &datasetRsp{Dataset: viewDataset(ctx, st, saved), Outcome: viewOutcome(outcome)},
	}, nil
}

func (s *Service) updateDataset(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	st := s.store(ctx)
	d, a, err := editableDataset(ctx, st, chi.URLParam(r, "datasetName"))
	if err != nil {
		return nil, err
	}
	in, err := requestInput(r, s.opts.MaxUploadSize)
	if err != nil {
		return nil, err
	}

	var orgSlug string
	if d.OrganisationID != nil {
		if org, aerr := st.GetOrganisation(ctx, *d.OrganisationID); aerr == nil {
			orgSlug = org.Slug
		}
	}
	cmd := commandOf(d, orgSlug)
	if err := decodeCommand(in, datasetAliases, &cmd); err != nil {
		return nil, err
	}
	org, err := organisationBySlug(ctx, st, "organisation", cmd.Organisation)
	if err != nil {
		return nil, err
	}
	if cmd.Organisation != orgSlug {
		ok, err := canPublishFor(ctx, st, a, org.OrganisationID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden.Msg("you do not contribute to " + org.Slug)
		}
	}
	if err := cmd.apply(d, org); err != nil {
		return nil, err
	}

	outcome, err := s.reconciler.SaveDataset(ctx, d)
	if err != nil {
		return nil, err
	}
	saved, aerr := st.GetDataset(ctx, d.DatasetID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &datasetRsp{Dataset: viewDataset(ctx, st, saved), Outcome: viewOutcome(outcome)},
	}, nil
}

func (s *Service) deleteDataset(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	d, _, err := editableDataset(ctx, s.store(ctx), chi.URLParam(r, "datasetName"))
	if err != nil {
		return nil, err
	}
	if err := s.reconciler.DeleteDataset(ctx, d.DatasetID); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}
