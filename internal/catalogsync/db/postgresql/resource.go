package postgresql

import (
	"context"
	"database/sql"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/jackc/pgtype"
	"github.com/rs/zerolog/log"
)

const resourceColumns = `
	resource_id, dataset_id, name, description, up_file, dl_url, referenced_url, ftp_file, format,
	lang, data_type, restriction_level, allowed_users, allowed_orgs, geo_restriction, extractable,
	ogc_services, sync_frequency, crs, remote_id, created_at, updated_at`

func scanResource(row scanner) (*models.Resource, error) {
	var (
		r                          models.Resource
		datasetID                  uuid.NullUUID
		upFile, dlURL, refURL, ftp sql.NullString
		level                      string
		users                      pgtype.TextArray
		orgs                       pgtype.UUIDArray
	)
	err := row.Scan(&r.ResourceID, &datasetID, &r.Name, &r.Description, &upFile, &dlURL, &refURL, &ftp,
		&r.Format, &r.Lang, &r.DataType, &level, &users, &orgs, &r.GeoRestriction, &r.Extractable,
		&r.OgcServices, &r.SyncFrequency, &r.Crs, &r.RemoteID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.DatasetID = uuid.Ptr(datasetID)
	r.UpFile, r.DlURL, r.ReferencedURL, r.FtpFile = upFile.String, dlURL.String, refURL.String, ftp.String
	r.RestrictionLevel = catcommon.RestrictionLevel(level)
	r.AllowedUsers = stringsOf(users)
	r.AllowedOrgs = uuidsOf(orgs)
	return &r, nil
}

func (om *objectManager) GetResource(ctx context.Context, id uuid.UUID) (*models.Resource, apperrors.Error) {
	return queryOne(ctx, om.conn(), "resource",
		`SELECT `+resourceColumns+` FROM resources WHERE resource_id = $1`, scanResource, id)
}

func (om *objectManager) ListResourcesByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Resource, apperrors.Error) {
	return queryAll(ctx, om.conn(),
		`SELECT `+resourceColumns+` FROM resources WHERE dataset_id = $1 ORDER BY created_at, resource_id`,
		scanResource, datasetID)
}

func resourceArgs(r *models.Resource) []any {
	return []any{
		r.ResourceID, uuid.Null(r.DatasetID), r.Name, r.Description,
		nullString(r.UpFile), nullString(r.DlURL), nullString(r.ReferencedURL), nullString(r.FtpFile),
		r.Format, r.Lang, r.DataType, string(r.RestrictionLevel), textArray(r.AllowedUsers),
		uuidArray(r.AllowedOrgs), r.GeoRestriction, r.Extractable, r.OgcServices, r.SyncFrequency,
		r.Crs, r.RemoteID,
	}
}

func insertResource(ctx context.Context, tx *sql.Tx, r *models.Resource) apperrors.Error {
	if r.ResourceID == uuid.Nil {
		r.ResourceID = uuid.New()
	}
	query := `
		INSERT INTO resources (resource_id, dataset_id, name, description, up_file, dl_url,
			referenced_url, ftp_file, format, lang, data_type, restriction_level, allowed_users,
			allowed_orgs, geo_restriction, extractable, ogc_services, sync_frequency, crs, remote_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRowContext(ctx, query, resourceArgs(r)...).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("resource_id", r.ResourceID.String()).Msg("failed to insert resource")
		return dberror.FromPg(err, "resource")
	}
	return nil
}

func updateResource(ctx context.Context, tx *sql.Tx, r *models.Resource) apperrors.Error {
	query := `
		UPDATE resources
		SET dataset_id = $2, name = $3, description = $4, up_file = $5, dl_url = $6,
		    referenced_url = $7, ftp_file = $8, format = $9, lang = $10, data_type = $11,
		    restriction_level = $12, allowed_users = $13, allowed_orgs = $14, geo_restriction = $15,
		    extractable = $16, ogc_services = $17, sync_frequency = $18, crs = $19, remote_id = $20,
		    updated_by = ` + actorExpr + `,
		    updated_at = NOW()
		WHERE resource_id = $1
		RETURNING updated_at
	`
	err := tx.QueryRowContext(ctx, query, resourceArgs(r)...).Scan(&r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("resource not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("resource_id", r.ResourceID.String()).Msg("failed to update resource")
		return dberror.FromPg(err, "resource")
	}
	return nil
}
