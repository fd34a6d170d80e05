package reconciler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/datasud/idgo/internal/catalogsync/accesspolicy"
	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/datagis"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/ledger"
	"github.com/datasud/idgo/internal/catalogsync/remote"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

// ResourceChange is a resource to save. EPSG forces the coordinate system of
// the imported layers; 0 detects it from the file.
type ResourceChange struct {
	Resource *models.Resource
	EPSG     int
}

type resourceRules struct {
	Name             string `json:"name" validate:"required,max=150"`
	Lang             string `json:"lang" validate:"oneof=french english italian german other"`
	DataType         string `json:"data_type" validate:"oneof=raw annexe service"`
	RestrictionLevel string `json:"restriction_level" validate:"restrictionLevel"`
	DlURL            string `json:"dl_url" validate:"omitempty,url"`
	ReferencedURL    string `json:"referenced_url" validate:"omitempty,url"`
	SyncFrequency    string `json:"sync_frequency" validate:"omitempty,syncFrequency"`
}

func applyResourceDefaults(res *models.Resource) {
	if res.Lang == "" {
		res.Lang = "french"
	}
	if res.DataType == "" {
		res.DataType = "raw"
	}
	if res.RestrictionLevel == "" {
		res.RestrictionLevel = catcommon.LevelPublic
	}
	if res.GeoRestriction {
		res.OgcServices = false
	}
	res.Format = strings.ToLower(strings.TrimSpace(res.Format))
}

func validateResource(res *models.Resource) error {
	if _, ok := res.SourceKind(); !ok {
		return invalid(apperrors.FieldAll, "only one source can be given: file, download URL, referenced URL or FTP file")
	}
	return validate(&resourceRules{
		Name:             res.Name,
		Lang:             res.Lang,
		DataType:         res.DataType,
		RestrictionLevel: string(res.RestrictionLevel),
		DlURL:            res.DlURL,
		ReferencedURL:    res.ReferencedURL,
		SyncFrequency:    res.SyncFrequency,
	})
}

// resourceState carries what the steps of a resource reconciliation produce.
type resourceState struct {
	path           string // local file holding the content, empty for referenced sources
	digest         string
	contentChanged bool
	tables         []string
	format         *models.ResourceFormat
	policy         accesspolicy.Policy
	entry          *models.ResourceLedger
}

// SaveResource imports the content of a resource, publishes it to the catalog
// with its access metadata, publishes its tables as layers and persists it
// with its ledger entry. The dataset must have been published before.
func (rc *Reconciler) SaveResource(ctx context.Context, ch ResourceChange) (*Outcome, error) {
	if ch.Resource == nil {
		return nil, ErrValidation.Msg("no resource given")
	}
	res := ch.Resource.Clone()
	if res.DatasetID == nil {
		return nil, invalid("dataset", "this field is required")
	}
	if res.ResourceID == uuid.Nil {
		res.ResourceID = uuid.New()
	}
	defer rc.lock(datasetKey(*res.DatasetID), resourceKey(res.ResourceID))()

	st := rc.store(ctx)
	d, err := st.GetDataset(ctx, *res.DatasetID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, invalid("dataset", "unknown dataset")
		}
		return nil, err
	}
	if d.RemoteID == "" {
		return nil, ErrNotPublished
	}
	prev, err := st.GetResource(ctx, res.ResourceID)
	if err != nil && !errors.Is(err, dberror.ErrNotFound) {
		return nil, err
	}
	create := prev == nil
	prevEntry, err := ledger.ResourceEntry(ctx, st, res.ResourceID)
	if err != nil {
		return nil, err
	}
	org, oerr := loadOrganisation(ctx, st, d.OrganisationID)
	if oerr != nil {
		return nil, oerr
	}
	applyResourceDefaults(res)
	if prev != nil && res.RemoteID == "" {
		res.RemoteID = prev.RemoteID
	}

	r := newRun("resource", res.ResourceID)
	s := &resourceState{}
	cleanup := func() {}
	defer func() { cleanup() }()

	runErr := r.exec(ctx,
		step{StateGisImported, func(ctx context.Context) error {
			if err := validateResource(res); err != nil {
				return err
			}
			var err error
			cleanup, err = rc.importContent(ctx, st, r, res, prev, prevEntry, ch.EPSG, s)
			return err
		}},
		step{StateValidated, func(ctx context.Context) error {
			var err error
			s.policy, err = resolvePolicy(ctx, st, res, org)
			if err != nil {
				return err
			}
			if res.Format != "" {
				f, ferr := st.GetResourceFormat(ctx, res.Format)
				if ferr != nil && !errors.Is(ferr, dberror.ErrNotFound) {
					return ferr
				}
				s.format = f
			}
			return nil
		}},
		step{StateRemoteOrgEnsured, func(ctx context.Context) error {
			return rc.ensureOrganisation(ctx, st, r, org, nil)
		}},
		step{StateRemotePublished, func(ctx context.Context) error {
			return rc.publishResource(ctx, r, d, res, prevEntry, s)
		}},
		step{StateLayersReconciled, func(ctx context.Context) error {
			return rc.reconcileLayers(ctx, r, d, org, res, ledger.Tables(prevEntry), s)
		}},
		step{StateCommitted, func(ctx context.Context) error {
			bbox, err := rc.datasetExtent(ctx, st, *res.DatasetID, &res.ResourceID, s.tables)
			if err != nil {
				return err
			}
			s.entry.Tables = s.tables
			s.entry.ContentDigest = s.digest
			return commitError(st.CommitResource(ctx, res, create, s.entry, bbox))
		}},
	)
	if runErr != nil {
		return &r.outcome, runErr
	}
	log.Ctx(ctx).Info().Str("resource", res.ResourceID.String()).Strs("tables", s.tables).
		Bool("created", create).Msg("resource synchronized")
	return &r.outcome, nil
}

// localSource returns the file holding the content of a resource. Downloaded
// files are removed by the returned cleanup, which is never nil.
func (rc *Reconciler) localSource(ctx context.Context, res *models.Resource) (string, func(), error) {
	kind, _ := res.SourceKind()
	switch kind {
	case catcommon.SourceUpload:
		return res.UpFile, func() {}, nil
	case catcommon.SourceFTP:
		return res.FtpFile, func() {}, nil
	case catcommon.SourceDownload:
		dl, cleanup, err := rc.fetcher.Fetch(ctx, res.DlURL)
		if err != nil {
			return "", cleanup, err
		}
		if res.Format == "" {
			res.Format = datagis.ExtensionOf(dl.Filename)
		}
		return dl.Path, cleanup, nil
	}
	return "", func() {}, nil
}

// importContent imports the content of a resource into spatial tables. A
// file identical to the one of the last synchronization keeps its tables.
func (rc *Reconciler) importContent(ctx context.Context, st Store, r *run, res, prev *models.Resource,
	prevEntry *models.ResourceLedger, epsg int, s *resourceState) (func(), error) {

	prevTables := ledger.Tables(prevEntry)
	path, cleanup, err := rc.localSource(ctx, res)
	if err != nil {
		return cleanup, err
	}
	s.path = path
	s.tables = []string{}
	if path == "" {
		res.Crs = ""
		return cleanup, nil
	}
	if res.Format == "" {
		res.Format = datagis.ExtensionOf(path)
	}

	if s.digest, err = ledger.FileDigest(path); err != nil {
		return cleanup, datagis.ErrImportFailed.MsgErr("unable to read the file", err)
	}
	if prev != nil && prevEntry != nil && prevEntry.ContentDigest == s.digest &&
		(epsg == 0 || epsg == epsgOf(prev.Crs)) {
		s.tables = prevTables
		res.Crs = prev.Crs
		return cleanup, nil
	}
	s.contentChanged = true

	supported, serr := st.ListSupportedCrs(ctx)
	if serr != nil {
		return cleanup, serr
	}
	tables, err := rc.importer.Import(ctx, datagis.Request{
		Path:      path,
		Extension: res.Format,
		Existing:  ledger.IndexByBasename(prevTables),
		EPSG:      epsg,
		Supported: supported,
	})
	if err != nil {
		if errors.Is(err, datagis.ErrNotSpatial) && !catcommon.ExplicitlySpatial(res.Format) {
			log.Ctx(ctx).Debug().Str("format", res.Format).Msg("no spatial content")
			res.Crs = ""
			return cleanup, nil
		}
		return cleanup, err
	}

	var minted []string
	for _, t := range tables {
		s.tables = append(s.tables, t.ID)
		if !slices.Contains(prevTables, t.ID) {
			minted = append(minted, t.ID)
		}
	}
	if len(minted) > 0 {
		r.compensate("drop imported tables", func(ctx context.Context) error {
			var errs []error
			for _, t := range minted {
				errs = append(errs, rc.spatial.DropTable(ctx, t))
			}
			return errors.Join(errs...)
		})
	}
	res.Crs = ""
	if len(tables) > 0 {
		res.Crs = fmt.Sprintf("EPSG:%d", tables[0].EPSG)
	}
	return cleanup, nil
}

// resolvePolicy loads the memberships the restriction level of res depends on.
func resolvePolicy(ctx context.Context, st Store, res *models.Resource, org *models.Organisation) (accesspolicy.Policy, error) {
	var (
		home    *accesspolicy.Organisation
		allowed []accesspolicy.Organisation
	)
	switch res.RestrictionLevel {
	case catcommon.LevelSameOrganisation:
		members, err := st.ListOrganisationMembers(ctx, org.OrganisationID)
		if err != nil {
			return accesspolicy.Policy{}, err
		}
		home = &accesspolicy.Organisation{ID: org.OrganisationID.String(), Members: members}
	case catcommon.LevelAnyOrganisation:
		for _, id := range res.AllowedOrgs {
			members, err := st.ListOrganisationMembers(ctx, id)
			if err != nil {
				if errors.Is(err, dberror.ErrNotFound) {
					return accesspolicy.Policy{}, invalid("allowed_orgs", "unknown organisation: "+id.String())
				}
				return accesspolicy.Policy{}, err
			}
			allowed = append(allowed, accesspolicy.Organisation{ID: id.String(), Members: members})
		}
	}
	return accesspolicy.Resolve(res.RestrictionLevel, res.AllowedUsers, allowed, home), nil
}

// publishResource creates or updates the catalog resource, then uploads the
// file when its content changed.
func (rc *Reconciler) publishResource(ctx context.Context, r *run, d *models.Dataset, res *models.Resource,
	prevEntry *models.ResourceLedger, s *resourceState) error {

	params := resourceParams(res, s.format, s.policy)
	snap, err := ledger.NewSnapshot(params)
	if err != nil {
		return ErrReconcile.MsgErr("unable to snapshot the resource", err)
	}
	s.entry = &models.ResourceLedger{
		ResourceID:    res.ResourceID,
		DatasetID:     res.DatasetID,
		PayloadDigest: snap.Digest,
		Snapshot:      snap.Data,
		SyncedAt:      rc.opts.Now(),
	}
	if res.RemoteID != "" && prevEntry != nil && prevEntry.PayloadDigest == snap.Digest && !s.contentChanged {
		r.outcome.Skipped = true
		s.entry.RemoteID = res.RemoteID
		return nil
	}

	id := res.RemoteID
	if id == "" {
		id = res.ResourceID.String()
	}
	created, err := rc.catalog.PublishResource(ctx, d.RemoteID, id, params)
	if err != nil {
		if res.RemoteID != "" {
			return err
		}
		if err = rc.confirmCreated(ctx, "resource", err, func(ctx context.Context) error {
			_, gerr := rc.catalog.GetResource(ctx, id)
			return gerr
		}); err != nil {
			return err
		}
		created = true
	}
	if created {
		r.compensate("delete resource "+id, func(ctx context.Context) error {
			return rc.catalog.DeleteResource(ctx, id)
		})
	} else if prevEntry != nil {
		r.compensate("restore resource "+id, func(ctx context.Context) error {
			return rc.restoreResource(ctx, d.RemoteID, id, prevEntry)
		})
	}

	if kind, _ := res.SourceKind(); s.contentChanged && (kind == catcommon.SourceUpload || kind == catcommon.SourceFTP) {
		if err := rc.catalog.UploadResource(ctx, id, s.path); err != nil {
			return err
		}
	}
	res.RemoteID = id
	s.entry.RemoteID = id
	return nil
}

func (rc *Reconciler) restoreResource(ctx context.Context, packageID, id string, prevEntry *models.ResourceLedger) error {
	canonical, err := ledger.Decode(prevEntry.Snapshot)
	if err != nil {
		return err
	}
	params, err := decodeParams(canonical)
	if err != nil || params == nil {
		return err
	}
	_, err = rc.catalog.PublishResource(ctx, packageID, id, params)
	return err
}

// reconcileLayers publishes the tables of a resource as layers of the
// organisation workspace, exposes or hides them through the WMS, then removes
// the tables the resource no longer has.
func (rc *Reconciler) reconcileLayers(ctx context.Context, r *run, d *models.Dataset, org *models.Organisation,
	res *models.Resource, prevTables []string, s *resourceState) error {

	ws := org.Slug
	ds := rc.opts.Datastore
	diff := ledger.Diff(prevTables, s.tables)

	if len(s.tables) > 0 {
		pub, err := rc.registry.PublishLayers(ctx, ws, ds, s.tables, res.OgcServices)
		if pub != nil {
			if pub.Workspace {
				r.compensate("delete workspace "+ws, func(ctx context.Context) error {
					return rc.registry.DeleteWorkspace(ctx, ws)
				})
			}
			if pub.Datastore {
				r.compensate("delete datastore "+ws+"/"+ds, func(ctx context.Context) error {
					return rc.registry.DeleteDatastore(ctx, ws, ds)
				})
			}
			for _, ft := range pub.FeatureTypes {
				r.compensate("unpublish "+ft, func(ctx context.Context) error {
					return rc.registry.Unpublish(ctx, ws, ds, ft)
				})
			}
		}
		if err != nil {
			return err
		}

		owsURL := rc.opts.OwsURL(ws)
		for _, t := range s.tables {
			if res.OgcServices {
				created, err := rc.catalog.PublishResource(ctx, d.RemoteID, t, wmsParams(res, t, owsURL, rc.opts.LegendCrs, s.policy))
				if err != nil {
					return err
				}
				if created {
					r.compensate("delete resource "+t, func(ctx context.Context) error {
						return rc.catalog.DeleteResource(ctx, t)
					})
				}
			} else if err := remote.IgnoreNotFound(rc.catalog.DeleteResource(ctx, t)); err != nil {
				return err
			}
			if err := rc.registry.SetLayerEnabled(ctx, t, res.OgcServices); err != nil {
				return err
			}
		}
	}

	return rc.cleanTables(ctx, org, diff.Removed)
}

// cleanTables removes the layer, featuretype and catalog entry of each table,
// then drops it. Objects already gone are ignored.
func (rc *Reconciler) cleanTables(ctx context.Context, org *models.Organisation, tables []string) error {
	for _, t := range tables {
		if org != nil {
			if err := rc.registry.Unpublish(ctx, org.Slug, rc.opts.Datastore, t); err != nil && !remote.IsNotFound(err) {
				return err
			}
		}
		if err := remote.IgnoreNotFound(rc.catalog.DeleteResource(ctx, t)); err != nil {
			return err
		}
		if err := rc.spatial.DropTable(ctx, t); err != nil {
			return ErrReconcile.MsgErr("unable to drop table "+t, err)
		}
		log.Ctx(ctx).Debug().Str("table", t).Msg("table removed")
	}
	return nil
}

// DeleteResource removes the layers, tables and catalog entries of a
// resource, then the resource and its ledger entry.
func (rc *Reconciler) DeleteResource(ctx context.Context, id uuid.UUID) error {
	st := rc.store(ctx)
	res, err := st.GetResource(ctx, id)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return ErrEntityMissing.Msg("resource not found")
		}
		return err
	}
	keys := []string{resourceKey(id)}
	if res.DatasetID != nil {
		keys = []string{datasetKey(*res.DatasetID), resourceKey(id)}
	}
	defer rc.lock(keys...)()

	// a change that held the lock first may have removed it
	if res, err = st.GetResource(ctx, id); err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return ErrEntityMissing.Msg("resource not found")
		}
		return err
	}

	entry, err := ledger.ResourceEntry(ctx, st, id)
	if err != nil {
		return err
	}
	var org *models.Organisation
	if res.DatasetID != nil {
		d, derr := st.GetDataset(ctx, *res.DatasetID)
		if derr != nil && !errors.Is(derr, dberror.ErrNotFound) {
			return derr
		}
		if d != nil && d.OrganisationID != nil {
			if org, err = st.GetOrganisation(ctx, *d.OrganisationID); err != nil && !errors.Is(err, dberror.ErrNotFound) {
				return err
			}
		}
	}

	if err := rc.cleanTables(ctx, org, ledger.Tables(entry)); err != nil {
		return err
	}
	remoteID := res.RemoteID
	if entry != nil && entry.RemoteID != "" {
		remoteID = entry.RemoteID
	}
	if remoteID != "" {
		if err := remote.IgnoreNotFound(rc.catalog.DeleteResource(ctx, remoteID)); err != nil {
			return err
		}
	}

	var bbox *models.Extent
	if res.DatasetID != nil {
		var berr error
		if bbox, berr = rc.datasetExtent(ctx, st, *res.DatasetID, &id, nil); berr != nil {
			return berr
		}
	}
	if err := st.DeleteResource(ctx, id, bbox); err != nil {
		return ErrLocalStore.Err(err)
	}
	log.Ctx(ctx).Info().Str("resource", id.String()).Msg("resource deleted")
	return nil
}
