package reconciler

import (
	"context"
	"errors"
	"time"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/ledger"
	"github.com/datasud/idgo/internal/catalogsync/remote"
	"github.com/datasud/idgo/internal/catalogsync/schemavalidator"
	"github.com/datasud/idgo/internal/common"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

type datasetRules struct {
	Title           string     `json:"title" validate:"required,max=256"`
	Slug            string     `json:"slug" validate:"required,max=100,catalogName"`
	Organisation    *uuid.UUID `json:"organisation" validate:"required"`
	License         string     `json:"license" validate:"required"`
	UpdateFrequency string     `json:"update_frequency" validate:"omitempty,updateFrequency"`
	OwnerEmail      string     `json:"owner_email" validate:"omitempty,email"`
	Editor          string     `json:"editor" validate:"required"`
}

func validate(rules any) error {
	if err := schemavalidator.V().Struct(rules); err != nil {
		if field, msg, ok := schemavalidator.FirstError(err); ok {
			return invalid(field, msg)
		}
		return ErrValidation.Err(err)
	}
	return nil
}

// datasetSlug derives the catalog name of a dataset from its title.
func datasetSlug(title string) string {
	return common.CatalogSlug(title)
}

func (rc *Reconciler) today() *time.Time {
	t := rc.opts.Now()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}

func (rc *Reconciler) applyDatasetDefaults(ctx context.Context, st Store, d, prev *models.Dataset) {
	if prev != nil {
		if prev.Slug != "" {
			d.Slug = prev.Slug
		}
		if d.RemoteID == "" {
			d.RemoteID = prev.RemoteID
		}
		d.CreatedAt = prev.CreatedAt
	}
	if d.Slug == "" {
		d.Slug = datasetSlug(d.Title)
	}
	if d.DateCreation == nil {
		d.DateCreation = rc.today()
	}
	if d.DateModification == nil {
		d.DateModification = rc.today()
	}
	if d.Published && d.DatePublication == nil {
		d.DatePublication = rc.today()
	}
	if d.Editor == "" {
		d.Editor = catcommon.GetActorName(ctx)
	}
	if d.Editor != "" && (d.OwnerName == "" || d.OwnerEmail == "") {
		if u, err := st.GetUser(ctx, d.Editor); err == nil {
			if d.OwnerName == "" {
				d.OwnerName = u.FullName
			}
			if d.OwnerEmail == "" {
				d.OwnerEmail = u.Email
			}
		}
	}
}

func (rc *Reconciler) maintainerOf(ctx context.Context, st Store, d *models.Dataset) maintainer {
	m := maintainer{name: rc.opts.DefaultMaintainer, email: rc.opts.DefaultEmail}
	if d.Support == "" {
		return m
	}
	s, err := st.GetSupport(ctx, d.Support)
	if err != nil {
		return m
	}
	m.name = s.Name
	if s.Email != "" {
		m.email = s.Email
	}
	return m
}

// categoryGroups returns the catalog group of each category of d.
func categoryGroups(ctx context.Context, st Store, d *models.Dataset) ([]string, error) {
	groups := make([]string, 0, len(d.Categories))
	for _, slug := range d.Categories {
		c, err := st.GetCategory(ctx, slug)
		if err != nil {
			if errors.Is(err, dberror.ErrNotFound) {
				return nil, invalid("categories", "unknown category: "+slug)
			}
			return nil, err
		}
		groups = append(groups, c.Slug)
	}
	return groups, nil
}

// SaveDataset publishes d to the catalog and persists it with its ledger
// entry. A dataset without an id is created. The dataset is written once,
// after the catalog holds it: a failure leaves the stored dataset as it was.
func (rc *Reconciler) SaveDataset(ctx context.Context, d *models.Dataset) (*Outcome, error) {
	if d == nil {
		return nil, ErrValidation.Msg("no dataset given")
	}
	d = d.Clone()
	if d.DatasetID == uuid.Nil {
		d.DatasetID = uuid.New()
	}
	defer rc.lock(datasetKey(d.DatasetID))()

	st := rc.store(ctx)
	prev, err := st.GetDataset(ctx, d.DatasetID)
	if err != nil && !errors.Is(err, dberror.ErrNotFound) {
		return nil, err
	}
	create := prev == nil
	prevEntry, err := ledger.DatasetEntry(ctx, st, d.DatasetID)
	if err != nil {
		return nil, err
	}

	r := newRun("dataset", d.DatasetID)
	var (
		org     *models.Organisation
		members []string
		groups  []string
		entry   *models.DatasetLedger
	)
	runErr := r.exec(ctx,
		step{StateGisImported, func(ctx context.Context) error { return nil }},
		step{StateValidated, func(ctx context.Context) error {
			rc.applyDatasetDefaults(ctx, st, d, prev)
			if err := validate(&datasetRules{
				Title:           d.Title,
				Slug:            d.Slug,
				Organisation:    d.OrganisationID,
				License:         d.LicenseID,
				UpdateFrequency: d.UpdateFrequency,
				OwnerEmail:      d.OwnerEmail,
				Editor:          d.Editor,
			}); err != nil {
				return err
			}
			var err error
			if org, err = loadOrganisation(ctx, st, d.OrganisationID); err != nil {
				return err
			}
			if _, err := st.GetLicense(ctx, d.LicenseID); err != nil {
				if errors.Is(err, dberror.ErrNotFound) {
					return invalid("license", "unknown license")
				}
				return err
			}
			if groups, err = categoryGroups(ctx, st, d); err != nil {
				return err
			}
			contributors, lerr := st.ListOrganisationContributors(ctx, org.OrganisationID)
			if lerr != nil {
				return lerr
			}
			members = contributors
			return nil
		}},
		step{StateRemoteOrgEnsured, func(ctx context.Context) error {
			return rc.ensureOrganisation(ctx, st, r, org, members)
		}},
		step{StateRemotePublished, func(ctx context.Context) error {
			var err error
			entry, err = rc.publishDataset(ctx, r, d, prevEntry, org, groups, rc.maintainerOf(ctx, st, d))
			return err
		}},
		step{StateLayersReconciled, func(ctx context.Context) error {
			var err error
			d.BBox, err = rc.datasetExtent(ctx, st, d.DatasetID, nil, nil)
			return err
		}},
		step{StateCommitted, func(ctx context.Context) error {
			return commitError(st.CommitDataset(ctx, d, create, entry))
		}},
	)
	if runErr != nil {
		return &r.outcome, runErr
	}

	if prev != nil && prev.OrganisationID != nil && d.OrganisationID != nil && *prev.OrganisationID != *d.OrganisationID {
		rc.deactivateIfEmpty(ctx, st, *prev.OrganisationID)
	}
	log.Ctx(ctx).Info().Str("dataset", d.Slug).Bool("created", create).Bool("skipped", r.outcome.Skipped).Msg("dataset synchronized")
	return &r.outcome, nil
}

// publishDataset creates or updates the catalog package. The package is left
// alone when the document did not change since the last synchronization.
func (rc *Reconciler) publishDataset(ctx context.Context, r *run, d *models.Dataset, prevEntry *models.DatasetLedger,
	org *models.Organisation, groups []string, m maintainer) (*models.DatasetLedger, error) {

	ok, err := rc.catalog.HasLicense(ctx, d.LicenseID)
	if err != nil {
		return nil, err
	}
	params := packageParams(d, org, groups, m)
	if !ok {
		log.Ctx(ctx).Warn().Str("license", d.LicenseID).Msg("license unknown to the catalog, not sent")
		delete(params, "license_id")
	}
	snap, err := ledger.NewSnapshot(params)
	if err != nil {
		return nil, ErrReconcile.MsgErr("unable to snapshot the dataset", err)
	}
	entry := &models.DatasetLedger{
		DatasetID:     d.DatasetID,
		PayloadDigest: snap.Digest,
		Snapshot:      snap.Data,
		SyncedAt:      rc.opts.Now(),
	}

	if d.RemoteID != "" && prevEntry != nil && prevEntry.PayloadDigest == snap.Digest {
		r.outcome.Skipped = true
		entry.RemoteID = d.RemoteID
		return entry, nil
	}

	id := d.RemoteID
	if id == "" {
		id = d.DatasetID.String()
	}
	pkg, created, err := rc.catalog.PublishPackage(ctx, id, params)
	if err != nil {
		if d.RemoteID != "" {
			return nil, err
		}
		if err = rc.confirmCreated(ctx, "package", err, func(ctx context.Context) error {
			var gerr error
			pkg, gerr = rc.catalog.GetPackage(ctx, id)
			return gerr
		}); err != nil {
			return nil, err
		}
		created = true
	}
	if created {
		r.compensate("purge package "+id, func(ctx context.Context) error {
			return rc.catalog.PurgePackage(ctx, id)
		})
	} else if prevEntry != nil {
		r.compensate("restore package "+id, func(ctx context.Context) error {
			return rc.restorePackage(ctx, id, prevEntry)
		})
	}

	for _, g := range groups {
		if err := rc.catalog.AddGroupMember(ctx, g, d.Editor); err != nil {
			if remote.IsNotFound(err) {
				return nil, invalid("categories", "category not synchronized with the catalog: "+g)
			}
			return nil, err
		}
	}

	d.RemoteID = id
	if pkg != nil && pkg.ID != "" {
		d.RemoteID = pkg.ID
	}
	entry.RemoteID = d.RemoteID
	return entry, nil
}

func (rc *Reconciler) restorePackage(ctx context.Context, id string, prevEntry *models.DatasetLedger) error {
	canonical, err := ledger.Decode(prevEntry.Snapshot)
	if err != nil {
		return err
	}
	params, err := decodeParams(canonical)
	if err != nil || params == nil {
		return err
	}
	_, _, err = rc.catalog.PublishPackage(ctx, id, params)
	return err
}

// DeleteDataset removes the package from the catalog, the layers and tables
// of each resource, then the dataset. Resources are kept without a dataset.
// The organisation is deactivated remotely when it has no dataset left.
func (rc *Reconciler) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	defer rc.lock(datasetKey(id))()

	st := rc.store(ctx)
	d, err := st.GetDataset(ctx, id)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return ErrEntityMissing.Msg("dataset not found")
		}
		return err
	}
	var org *models.Organisation
	if d.OrganisationID != nil {
		if org, err = st.GetOrganisation(ctx, *d.OrganisationID); err != nil && !errors.Is(err, dberror.ErrNotFound) {
			return err
		}
	}

	entries, err := st.ListResourceLedgersByDataset(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := rc.cleanTables(ctx, org, e.Tables); err != nil {
			return err
		}
		if e.RemoteID != "" {
			if err := remote.IgnoreNotFound(rc.catalog.DeleteResource(ctx, e.RemoteID)); err != nil {
				return err
			}
		}
	}
	if d.RemoteID != "" {
		if err := remote.IgnoreNotFound(rc.catalog.PurgePackage(ctx, d.RemoteID)); err != nil {
			return err
		}
	}
	if err := st.DeleteDataset(ctx, id); err != nil {
		return commitError(err)
	}
	if org != nil {
		rc.deactivateIfEmpty(ctx, st, org.OrganisationID)
	}
	log.Ctx(ctx).Info().Str("dataset", d.Slug).Msg("dataset deleted")
	return nil
}

// deactivateIfEmpty soft-deletes the remote organisation when it holds no
// dataset anymore. Failures are logged only.
func (rc *Reconciler) deactivateIfEmpty(ctx context.Context, st Store, orgID uuid.UUID) {
	org, err := st.GetOrganisation(ctx, orgID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("organisation", orgID.String()).Msg("organisation not found")
		return
	}
	deactivated, derr := rc.catalog.DeactivateOrganizationIfEmpty(ctx, organisationRemoteID(org))
	if derr != nil && !remote.IsNotFound(derr) {
		log.Ctx(ctx).Warn().Err(derr).Str("organisation", org.Slug).Msg("unable to deactivate the remote organisation")
		return
	}
	if deactivated {
		log.Ctx(ctx).Info().Str("organisation", org.Slug).Msg("remote organisation deactivated")
	}
}

// datasetExtent is the union of the extents of the tables of every resource
// of a dataset. When resourceID is set, tables replaces what the ledger holds
// for that resource.
func (rc *Reconciler) datasetExtent(ctx context.Context, st Store, datasetID uuid.UUID, resourceID *uuid.UUID, tables []string) (*models.Extent, error) {
	entries, err := st.ListResourceLedgersByDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	extents := make(map[string]*models.Extent)
	add := func(ts []string) {
		for _, t := range ts {
			e, err := rc.spatial.Extent(ctx, t, rc.opts.BboxEPSG)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("table", t).Msg("unable to compute the extent")
				continue
			}
			extents[t] = e
		}
	}
	for _, e := range entries {
		if resourceID != nil && e.ResourceID == *resourceID {
			continue
		}
		add(e.Tables)
	}
	if resourceID != nil {
		add(tables)
	}
	return ledger.DatasetExtent(extents), nil
}

// commitError attributes unique violations of the local store to the slug.
func commitError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dberror.ErrAlreadyExists) {
		return invalid("slug", "a dataset with this title or name already exists")
	}
	return ErrLocalStore.Err(err)
}
