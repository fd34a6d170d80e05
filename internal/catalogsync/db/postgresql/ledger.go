package postgresql

import (
	"context"
	"database/sql"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/jackc/pgtype"
)

const resourceLedgerColumns = `resource_id, dataset_id, remote_id, tables, content_digest, payload_digest, snapshot, synced_at`

func scanResourceLedger(row scanner) (*models.ResourceLedger, error) {
	var (
		e         models.ResourceLedger
		datasetID uuid.NullUUID
		tables    pgtype.TextArray
	)
	err := row.Scan(&e.ResourceID, &datasetID, &e.RemoteID, &tables, &e.ContentDigest, &e.PayloadDigest,
		&e.Snapshot, &e.SyncedAt)
	if err != nil {
		return nil, err
	}
	e.DatasetID = uuid.Ptr(datasetID)
	e.Tables = stringsOf(tables)
	return &e, nil
}

func scanDatasetLedger(row scanner) (*models.DatasetLedger, error) {
	var e models.DatasetLedger
	if err := row.Scan(&e.DatasetID, &e.RemoteID, &e.PayloadDigest, &e.Snapshot, &e.SyncedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (lm *ledgerManager) GetResourceLedger(ctx context.Context, resourceID uuid.UUID) (*models.ResourceLedger, apperrors.Error) {
	return queryOne(ctx, lm.conn(), "ledger entry",
		`SELECT `+resourceLedgerColumns+` FROM resource_ledger WHERE resource_id = $1`, scanResourceLedger, resourceID)
}

func (lm *ledgerManager) ListResourceLedgersByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.ResourceLedger, apperrors.Error) {
	return queryAll(ctx, lm.conn(),
		`SELECT `+resourceLedgerColumns+` FROM resource_ledger WHERE dataset_id = $1 ORDER BY resource_id`,
		scanResourceLedger, datasetID)
}

func (lm *ledgerManager) GetDatasetLedger(ctx context.Context, datasetID uuid.UUID) (*models.DatasetLedger, apperrors.Error) {
	return queryOne(ctx, lm.conn(), "ledger entry",
		`SELECT dataset_id, remote_id, payload_digest, snapshot, synced_at FROM dataset_ledger WHERE dataset_id = $1`,
		scanDatasetLedger, datasetID)
}

func putResourceLedger(ctx context.Context, tx *sql.Tx, e *models.ResourceLedger) apperrors.Error {
	query := `
		INSERT INTO resource_ledger (resource_id, dataset_id, remote_id, tables, content_digest, payload_digest, snapshot, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (resource_id) DO UPDATE
		SET dataset_id = EXCLUDED.dataset_id,
		    remote_id = EXCLUDED.remote_id,
		    tables = EXCLUDED.tables,
		    content_digest = EXCLUDED.content_digest,
		    payload_digest = EXCLUDED.payload_digest,
		    snapshot = EXCLUDED.snapshot,
		    synced_at = EXCLUDED.synced_at
		RETURNING synced_at
	`
	err := tx.QueryRowContext(ctx, query, e.ResourceID, uuid.Null(e.DatasetID), e.RemoteID, textArray(e.Tables),
		e.ContentDigest, e.PayloadDigest, e.Snapshot).Scan(&e.SyncedAt)
	if err != nil {
		return dberror.FromPg(err, "ledger entry")
	}
	return nil
}

func putDatasetLedger(ctx context.Context, tx *sql.Tx, e *models.DatasetLedger) apperrors.Error {
	query := `
		INSERT INTO dataset_ledger (dataset_id, remote_id, payload_digest, snapshot, synced_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (dataset_id) DO UPDATE
		SET remote_id = EXCLUDED.remote_id,
		    payload_digest = EXCLUDED.payload_digest,
		    snapshot = EXCLUDED.snapshot,
		    synced_at = EXCLUDED.synced_at
		RETURNING synced_at
	`
	err := tx.QueryRowContext(ctx, query, e.DatasetID, e.RemoteID, e.PayloadDigest, e.Snapshot).Scan(&e.SyncedAt)
	if err != nil {
		return dberror.FromPg(err, "ledger entry")
	}
	return nil
}
