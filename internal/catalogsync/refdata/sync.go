package refdata

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/datasud/idgo/internal/catalogsync/ckan"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/remote"
	"github.com/datasud/idgo/internal/common/apperrors"
)

// Catalog is the part of the remote catalog client used by the Syncer.
type Catalog interface {
	GetGroup(ctx context.Context, id string) (*ckan.Object, error)
	CreateGroup(ctx context.Context, p ckan.GroupParams) (*ckan.Object, error)
	UpdateGroup(ctx context.Context, p ckan.GroupParams) error
	DeleteGroup(ctx context.Context, id string) error
	GetOrganization(ctx context.Context, id string) (*ckan.Object, error)
	UpdateOrganization(ctx context.Context, p ckan.OrganizationParams) error
	Licenses(ctx context.Context) ([]ckan.License, error)
}

// SyncStore is the part of the local store used by the Syncer.
type SyncStore interface {
	ListCategories(ctx context.Context) ([]*models.Category, apperrors.Error)
	GetCategory(ctx context.Context, slug string) (*models.Category, apperrors.Error)
	SetCategoryRemoteID(ctx context.Context, slug, remoteID string) apperrors.Error
	DeleteCategory(ctx context.Context, slug string) apperrors.Error
	ListOrganisations(ctx context.Context) ([]*models.Organisation, apperrors.Error)
	UpsertLicense(ctx context.Context, l *models.License) apperrors.Error
}

// Outcome of a synchronization for a single item.
type Outcome string

const (
	Created Outcome = "created"
	Updated Outcome = "updated"
	Deleted Outcome = "deleted"
	Skipped Outcome = "skipped"
)

// Result reports what happened to one item.
type Result struct {
	Name    string
	Outcome Outcome
}

// Syncer aligns the remote catalog with the reference tables of the local
// store. Each call is explicit; nothing runs in the background.
type Syncer struct {
	store   SyncStore
	catalog Catalog
}

func NewSyncer(st SyncStore, c Catalog) *Syncer {
	return &Syncer{store: st, catalog: c}
}

func groupParams(c *models.Category) ckan.GroupParams {
	return ckan.GroupParams{
		ID:          c.RemoteID,
		Name:        c.Slug,
		Title:       c.Name,
		Description: c.Description,
	}
}

// SyncCategories publishes every category as a remote group, creating the
// groups that do not exist yet, and records the remote ids locally.
func (s *Syncer) SyncCategories(ctx context.Context) ([]Result, apperrors.Error) {
	categories, aerr := s.store.ListCategories(ctx)
	if aerr != nil {
		return nil, aerr
	}

	var results []Result
	for _, c := range categories {
		outcome := Updated
		p := groupParams(c)
		p.ID = ""
		g, err := s.catalog.GetGroup(ctx, c.Slug)
		switch {
		case remote.IsNotFound(err):
			g, err = s.catalog.CreateGroup(ctx, p)
			outcome = Created
		case err == nil:
			p.ID = g.ID
			err = s.catalog.UpdateGroup(ctx, p)
		}
		if err != nil {
			return results, ErrSync.MsgErr("category "+c.Slug, err)
		}
		if g.ID != c.RemoteID {
			if aerr := s.store.SetCategoryRemoteID(ctx, c.Slug, g.ID); aerr != nil {
				return results, aerr
			}
		}
		log.Ctx(ctx).Info().Str("category", c.Slug).Str("remote_id", g.ID).Str("outcome", string(outcome)).Msg("category synchronized")
		results = append(results, Result{Name: c.Slug, Outcome: outcome})
	}
	return results, nil
}

// RemoveCategory deletes the remote group of a category, then the category.
// A group already gone upstream is not an error.
func (s *Syncer) RemoveCategory(ctx context.Context, slug string) apperrors.Error {
	c, aerr := s.store.GetCategory(ctx, slug)
	if aerr != nil {
		return aerr
	}
	id := c.RemoteID
	if id == "" {
		id = c.Slug
	}
	if err := remote.IgnoreNotFound(s.catalog.DeleteGroup(ctx, id)); err != nil {
		return ErrSync.MsgErr("category "+slug, err)
	}
	return s.store.DeleteCategory(ctx, slug)
}

// SyncOrganisations updates the remote organisations that exist upstream.
// Organisations never published are skipped; they are created on the first
// publication of one of their datasets.
func (s *Syncer) SyncOrganisations(ctx context.Context) ([]Result, apperrors.Error) {
	orgs, aerr := s.store.ListOrganisations(ctx)
	if aerr != nil {
		return nil, aerr
	}

	var results []Result
	for _, o := range orgs {
		id := o.RemoteID
		if id == "" {
			id = o.Slug
		}
		remoteOrg, err := s.catalog.GetOrganization(ctx, id)
		if remote.IsNotFound(err) {
			results = append(results, Result{Name: o.Slug, Outcome: Skipped})
			continue
		}
		if err != nil {
			return results, ErrSync.MsgErr("organisation "+o.Slug, err)
		}
		err = s.catalog.UpdateOrganization(ctx, ckan.OrganizationParams{
			ID:          remoteOrg.ID,
			Name:        o.Slug,
			Title:       o.Name,
			Description: o.Description,
			Website:     o.Website,
		})
		if err != nil {
			return results, ErrSync.MsgErr("organisation "+o.Slug, err)
		}
		log.Ctx(ctx).Info().Str("organisation", o.Slug).Msg("organisation synchronized")
		results = append(results, Result{Name: o.Slug, Outcome: Updated})
	}
	return results, nil
}

// SyncLicenses copies the licenses accepted by the remote catalog into the
// local store.
func (s *Syncer) SyncLicenses(ctx context.Context) ([]Result, apperrors.Error) {
	licenses, err := s.catalog.Licenses(ctx)
	if err != nil {
		return nil, ErrSync.MsgErr("licenses", err)
	}

	var results []Result
	for _, l := range licenses {
		if l.ID == "" {
			continue
		}
		title := l.Title
		if title == "" {
			title = l.ID
		}
		if aerr := s.store.UpsertLicense(ctx, &models.License{LicenseID: l.ID, Title: title, URL: l.URL}); aerr != nil {
			return results, aerr
		}
		results = append(results, Result{Name: l.ID, Outcome: Updated})
	}
	log.Ctx(ctx).Info().Int("licenses", len(results)).Msg("licenses synchronized")
	return results, nil
}
