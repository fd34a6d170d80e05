// Package reconciler brings the remote catalog and the layer registry in line
// with a dataset or resource change, one change at a time. Each change runs
// through explicit states; a failure compensates what the change created
// remotely and leaves the local store and the ledger untouched.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/ckan"
	"github.com/datasud/idgo/internal/catalogsync/datagis"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/remote"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/im7mortal/kmutex"
	"github.com/rs/zerolog/log"
)

// Options holds the settings of a Reconciler.
type Options struct {
	Datastore         string // registry datastore holding the spatial tables
	OwsURL            func(workspace string) string
	LegendCrs         string // CRS description given to the WMS catalog entries
	BboxEPSG          int
	DefaultMaintainer string
	DefaultEmail      string
	RecheckAttempts   uint
	RecheckDelay      time.Duration
	Now               func() time.Time
}

func (o *Options) setDefaults() {
	if o.Datastore == "" {
		o.Datastore = catcommon.DefaultDatastore
	}
	if o.OwsURL == nil {
		o.OwsURL = func(string) string { return "" }
	}
	if o.BboxEPSG == 0 {
		o.BboxEPSG = 4326
	}
	if o.RecheckAttempts == 0 {
		o.RecheckAttempts = 3
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Reconciler synchronizes datasets and resources. Changes to different
// entities run in parallel; changes to the same entity are serialized.
type Reconciler struct {
	store    StoreFunc
	catalog  Catalog
	registry Registry
	importer Importer
	spatial  datagis.SpatialStore
	fetcher  Fetcher
	opts     Options
	locks    *kmutex.Kmutex
}

func New(store StoreFunc, catalog Catalog, registry Registry, importer Importer, spatial datagis.SpatialStore, fetcher Fetcher, opts Options) *Reconciler {
	opts.setDefaults()
	return &Reconciler{
		store:    store,
		catalog:  catalog,
		registry: registry,
		importer: importer,
		spatial:  spatial,
		fetcher:  fetcher,
		opts:     opts,
		locks:    kmutex.New(),
	}
}

// lock serializes work on the given entities. Keys are taken in the order
// given, datasets before resources, so two callers never wait on each other
// in opposite orders.
func (rc *Reconciler) lock(keys ...string) func() {
	for _, k := range keys {
		rc.locks.Lock(k)
	}
	return func() {
		for i := len(keys) - 1; i >= 0; i-- {
			rc.locks.Unlock(keys[i])
		}
	}
}

func datasetKey(id uuid.UUID) string  { return "dataset:" + id.String() }
func resourceKey(id uuid.UUID) string { return "resource:" + id.String() }

// confirmCreated is called when the creation of a remote object timed out. The
// outcome is unknown: the object is looked up again a bounded number of times
// and the creation is confirmed when it shows up. Otherwise the timeout is
// returned as is.
func (rc *Reconciler) confirmCreated(ctx context.Context, what string, cause error, lookup func(ctx context.Context) error) error {
	if !remote.IsTimeout(cause) {
		return cause
	}
	log.Ctx(ctx).Warn().Err(cause).Str("object", what).Msg("remote call timed out, checking remote state")
	err := retry.Do(func() error {
		err := lookup(ctx)
		if err != nil && !remote.IsNotFound(err) && !remote.IsTimeout(err) {
			return retry.Unrecoverable(err)
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(rc.opts.RecheckAttempts),
		retry.Delay(rc.opts.RecheckDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return cause
	}
	log.Ctx(ctx).Info().Str("object", what).Msg("creation confirmed after timeout")
	return nil
}

// organisationRemoteID is the identifier of the remote counterpart of org.
func organisationRemoteID(org *models.Organisation) string {
	if org.RemoteID != "" {
		return org.RemoteID
	}
	return org.OrganisationID.String()
}

// ensureOrganisation gets or creates the remote organisation and reactivates
// it when it was soft-deleted upstream. The local organisation is marked
// active and linked to its counterpart in a write of its own, kept even if
// the reconciliation fails later.
func (rc *Reconciler) ensureOrganisation(ctx context.Context, st Store, r *run, org *models.Organisation, members []string) error {
	id := organisationRemoteID(org)
	obj, err := rc.catalog.GetOrganization(ctx, id)
	switch {
	case remote.IsNotFound(err):
		params := ckan.OrganizationParams{
			ID:          id,
			Name:        org.Slug,
			Title:       org.Name,
			Description: org.Description,
			Website:     org.Website,
		}
		obj, err = rc.catalog.CreateOrganization(ctx, params)
		if remote.IsAlreadyExists(err) {
			// created by a concurrent save, which owns its removal
			existing, gerr := rc.catalog.GetOrganization(ctx, id)
			if gerr != nil {
				return err
			}
			log.Ctx(ctx).Debug().Str("organisation", org.Slug).Msg("remote organisation created concurrently")
			obj = existing
			break
		}
		if err != nil {
			if err = rc.confirmCreated(ctx, "organisation", err, func(ctx context.Context) error {
				var gerr error
				obj, gerr = rc.catalog.GetOrganization(ctx, id)
				return gerr
			}); err != nil {
				return err
			}
		}
		r.compensate("purge organisation "+id, func(ctx context.Context) error {
			return rc.catalog.PurgeOrganization(ctx, id)
		})
	case err != nil:
		return err
	case obj.IsDeleted():
		if err := rc.catalog.ActivateOrganization(ctx, id); err != nil {
			return err
		}
	}

	if obj != nil && obj.ID != "" && (org.RemoteID != obj.ID || !org.IsActive) {
		org.RemoteID = obj.ID
		org.IsActive = true
		if err := st.UpdateOrganisation(ctx, org); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("organisation", org.Slug).Msg("unable to record the remote organisation")
			return ErrLocalStore.Err(err)
		}
	}

	for _, m := range members {
		if err := rc.catalog.AddOrganizationMember(ctx, organisationRemoteID(org), m, "editor"); err != nil {
			return err
		}
	}
	return nil
}

// loadOrganisation returns the organisation of a dataset.
func loadOrganisation(ctx context.Context, st Store, id *uuid.UUID) (*models.Organisation, error) {
	if id == nil {
		return nil, invalid("organisation", "this field is required")
	}
	org, err := st.GetOrganisation(ctx, *id)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, invalid("organisation", "unknown organisation")
		}
		return nil, err
	}
	return org, nil
}

// epsgOf reads "EPSG:2154" or "2154".
func epsgOf(crs string) int {
	var code int
	if _, err := fmt.Sscanf(crs, "EPSG:%d", &code); err == nil {
		return code
	}
	if _, err := fmt.Sscanf(crs, "%d", &code); err == nil {
		return code
	}
	return 0
}
