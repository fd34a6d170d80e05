// Package ledger keeps track of the remote objects associated with each local
// record after its last successful synchronization.
package ledger

import (
	"context"
	"errors"
	"slices"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
)

// Reader is the read side of the ledger. Entries are only written together
// with the entity they describe, once its synchronization has committed.
type Reader interface {
	GetResourceLedger(ctx context.Context, resourceID uuid.UUID) (*models.ResourceLedger, apperrors.Error)
	ListResourceLedgersByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.ResourceLedger, apperrors.Error)
	GetDatasetLedger(ctx context.Context, datasetID uuid.UUID) (*models.DatasetLedger, apperrors.Error)
}

// ResourceEntry returns the entry of a resource, or nil if it was never synchronized.
func ResourceEntry(ctx context.Context, r Reader, id uuid.UUID) (*models.ResourceLedger, apperrors.Error) {
	e, err := r.GetResourceLedger(ctx, id)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// DatasetEntry returns the entry of a dataset, or nil if it was never synchronized.
func DatasetEntry(ctx context.Context, r Reader, id uuid.UUID) (*models.DatasetLedger, apperrors.Error) {
	e, err := r.GetDatasetLedger(ctx, id)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// Tables returns the tables of an entry, never nil.
func Tables(e *models.ResourceLedger) []string {
	if e == nil || e.Tables == nil {
		return []string{}
	}
	return slices.Clone(e.Tables)
}

// TableDiff is the outcome of comparing two table sets. Each list keeps the
// order of the set it comes from.
type TableDiff struct {
	Removed []string // only in the previous set
	Added   []string // only in the new set
	Kept    []string // in both
}

// Empty reports whether nothing has to change remotely.
func (d TableDiff) Empty() bool {
	return len(d.Removed) == 0 && len(d.Added) == 0
}

// Diff compares the previous and the new table sets of a resource.
func Diff(prev, next []string) TableDiff {
	d := TableDiff{Removed: []string{}, Added: []string{}, Kept: []string{}}
	inNext := make(map[string]bool, len(next))
	for _, t := range next {
		inNext[t] = true
	}
	inPrev := make(map[string]bool, len(prev))
	for _, t := range prev {
		if inPrev[t] {
			continue
		}
		inPrev[t] = true
		if inNext[t] {
			d.Kept = append(d.Kept, t)
		} else {
			d.Removed = append(d.Removed, t)
		}
	}
	seen := make(map[string]bool, len(next))
	for _, t := range next {
		if seen[t] || inPrev[t] {
			continue
		}
		seen[t] = true
		d.Added = append(d.Added, t)
	}
	return d
}

// IndexByBasename maps the layer base name of each table to the table, so an
// import can reuse the name a layer had before.
func IndexByBasename(tables []string) map[string]string {
	idx := make(map[string]string, len(tables))
	for _, t := range tables {
		base := common.TableBasename(t)
		if base == "" {
			base = t
		}
		idx[base] = t
	}
	return idx
}

// DatasetExtent is the union of the extents of every table of a dataset,
// nil when it has no spatial table.
func DatasetExtent(extents map[string]*models.Extent) *models.Extent {
	keys := make([]string, 0, len(extents))
	for k := range extents {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out *models.Extent
	for _, k := range keys {
		out = out.Union(extents[k])
	}
	return out
}
