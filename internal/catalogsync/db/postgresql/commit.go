package postgresql

import (
	"context"
	"database/sql"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

// inTx runs fn in a transaction that is rolled back if fn or the commit fails.
func inTx(ctx context.Context, conn *sql.Conn, fn func(tx *sql.Tx) apperrors.Error) (err apperrors.Error) {
	tx, errStd := conn.BeginTx(ctx, nil)
	if errStd != nil {
		log.Ctx(ctx).Error().Err(errStd).Msg("failed to begin transaction")
		return dberror.ErrDatabase.Err(errStd)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if errStd := tx.Commit(); errStd != nil {
		log.Ctx(ctx).Error().Err(errStd).Msg("failed to commit transaction")
		return dberror.ErrDatabase.Err(errStd)
	}
	return nil
}

// CommitDataset persists a synchronized dataset together with its ledger entry.
func (om *objectManager) CommitDataset(ctx context.Context, d *models.Dataset, create bool, entry *models.DatasetLedger) apperrors.Error {
	return inTx(ctx, om.conn(), func(tx *sql.Tx) apperrors.Error {
		var err apperrors.Error
		if create {
			err = insertDataset(ctx, tx, d)
		} else {
			err = updateDataset(ctx, tx, d)
		}
		if err != nil {
			return err
		}
		if entry != nil {
			entry.DatasetID = d.DatasetID
			return putDatasetLedger(ctx, tx, entry)
		}
		return nil
	})
}

// CommitResource persists a synchronized resource, its ledger entry and the
// recomputed bounding box of its dataset in one transaction.
func (om *objectManager) CommitResource(ctx context.Context, r *models.Resource, create bool, entry *models.ResourceLedger, bbox *models.Extent) apperrors.Error {
	return inTx(ctx, om.conn(), func(tx *sql.Tx) apperrors.Error {
		var err apperrors.Error
		if create {
			err = insertResource(ctx, tx, r)
		} else {
			err = updateResource(ctx, tx, r)
		}
		if err != nil {
			return err
		}
		if entry != nil {
			entry.ResourceID = r.ResourceID
			entry.DatasetID = r.DatasetID
			if err := putResourceLedger(ctx, tx, entry); err != nil {
				return err
			}
		}
		if r.DatasetID != nil {
			return setDatasetBBox(ctx, tx, *r.DatasetID, bbox)
		}
		return nil
	})
}

// DeleteDataset removes a dataset. Its resources are kept with a null dataset.
func (om *objectManager) DeleteDataset(ctx context.Context, id uuid.UUID) apperrors.Error {
	return inTx(ctx, om.conn(), func(tx *sql.Tx) apperrors.Error {
		if _, err := tx.ExecContext(ctx, `UPDATE resource_ledger SET dataset_id = NULL WHERE dataset_id = $1`, id); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE dataset_id = $1`, id)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		if n, err := result.RowsAffected(); err != nil {
			return dberror.ErrDatabase.Err(err)
		} else if n == 0 {
			return dberror.ErrNotFound.Msg("dataset not found")
		}
		return nil
	})
}

// DeleteResource removes a resource and its ledger entry, then stores the
// recomputed bounding box of the dataset it belonged to.
func (om *objectManager) DeleteResource(ctx context.Context, id uuid.UUID, bbox *models.Extent) apperrors.Error {
	return inTx(ctx, om.conn(), func(tx *sql.Tx) apperrors.Error {
		var datasetID uuid.NullUUID
		err := tx.QueryRowContext(ctx, `DELETE FROM resources WHERE resource_id = $1 RETURNING dataset_id`, id).
			Scan(&datasetID)
		if err != nil {
			if err == sql.ErrNoRows {
				return dberror.ErrNotFound.Msg("resource not found")
			}
			return dberror.ErrDatabase.Err(err)
		}
		if datasetID.Valid {
			return setDatasetBBox(ctx, tx, datasetID.UUID, bbox)
		}
		return nil
	})
}
