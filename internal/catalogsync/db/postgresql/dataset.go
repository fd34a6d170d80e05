package postgresql

import (
	"context"
	"database/sql"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/jackc/pgtype"
	"github.com/rs/zerolog/log"
)

const datasetColumns = `
	dataset_id, title, slug, description, organisation_id, license_id, keywords, categories, data_types,
	support, geocover, update_frequency, published, editor, owner_name, owner_email,
	date_creation, date_modification, date_publication, remote_id, bbox, created_at, updated_at`

func scanDataset(row scanner) (*models.Dataset, error) {
	var (
		d                          models.Dataset
		orgID                      uuid.NullUUID
		license                    sql.NullString
		keywords, categories, typs pgtype.TextArray
		created, modified, pub     sql.NullTime
		bbox                       pgtype.JSONB
	)
	err := row.Scan(&d.DatasetID, &d.Title, &d.Slug, &d.Description, &orgID, &license,
		&keywords, &categories, &typs, &d.Support, &d.Geocover, &d.UpdateFrequency, &d.Published,
		&d.Editor, &d.OwnerName, &d.OwnerEmail, &created, &modified, &pub, &d.RemoteID, &bbox,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.OrganisationID = uuid.Ptr(orgID)
	d.LicenseID = license.String
	d.Keywords = stringsOf(keywords)
	d.Categories = stringsOf(categories)
	d.DataTypes = stringsOf(typs)
	d.DateCreation = timePtr(created)
	d.DateModification = timePtr(modified)
	d.DatePublication = timePtr(pub)
	d.BBox = extentOf(bbox)
	return &d, nil
}

func (om *objectManager) GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, apperrors.Error) {
	return queryOne(ctx, om.conn(), "dataset",
		`SELECT `+datasetColumns+` FROM datasets WHERE dataset_id = $1`, scanDataset, id)
}

func (om *objectManager) GetDatasetBySlug(ctx context.Context, slug string) (*models.Dataset, apperrors.Error) {
	return queryOne(ctx, om.conn(), "dataset",
		`SELECT `+datasetColumns+` FROM datasets WHERE slug = $1`, scanDataset, slug)
}

// ListDatasets lists the datasets of an organisation, or all of them when orgID is nil.
func (om *objectManager) ListDatasets(ctx context.Context, orgID *uuid.UUID) ([]*models.Dataset, apperrors.Error) {
	if orgID == nil {
		return queryAll(ctx, om.conn(), `SELECT `+datasetColumns+` FROM datasets ORDER BY slug`, scanDataset)
	}
	return queryAll(ctx, om.conn(),
		`SELECT `+datasetColumns+` FROM datasets WHERE organisation_id = $1 ORDER BY slug`, scanDataset, *orgID)
}

func (om *objectManager) CountDatasetsByOrganisation(ctx context.Context, orgID uuid.UUID) (int, apperrors.Error) {
	var n int
	err := om.conn().QueryRowContext(ctx, `SELECT count(*) FROM datasets WHERE organisation_id = $1`, orgID).Scan(&n)
	if err != nil {
		return 0, dberror.ErrDatabase.Err(err)
	}
	return n, nil
}

func insertDataset(ctx context.Context, tx *sql.Tx, d *models.Dataset) apperrors.Error {
	if d.DatasetID == uuid.Nil {
		d.DatasetID = uuid.New()
	}
	query := `
		INSERT INTO datasets (dataset_id, title, slug, description, organisation_id, license_id,
			keywords, categories, data_types, support, geocover, update_frequency, published,
			editor, owner_name, owner_email, date_creation, date_modification, date_publication,
			remote_id, bbox)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at, updated_at
	`
	err := tx.QueryRowContext(ctx, query,
		d.DatasetID, d.Title, d.Slug, d.Description, uuid.Null(d.OrganisationID), nullString(d.LicenseID),
		textArray(d.Keywords), textArray(d.Categories), textArray(d.DataTypes), d.Support, d.Geocover,
		d.UpdateFrequency, d.Published, d.Editor, d.OwnerName, d.OwnerEmail,
		nullTime(d.DateCreation), nullTime(d.DateModification), nullTime(d.DatePublication),
		d.RemoteID, extentJSONB(d.BBox),
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("slug", d.Slug).Msg("failed to insert dataset")
		return dberror.FromPg(err, "dataset")
	}
	return nil
}

func updateDataset(ctx context.Context, tx *sql.Tx, d *models.Dataset) apperrors.Error {
	query := `
		UPDATE datasets
		SET title = $2, slug = $3, description = $4, organisation_id = $5, license_id = $6,
		    keywords = $7, categories = $8, data_types = $9, support = $10, geocover = $11,
		    update_frequency = $12, published = $13, editor = $14, owner_name = $15, owner_email = $16,
		    date_creation = $17, date_modification = $18, date_publication = $19, remote_id = $20,
		    bbox = $21,
		    updated_by = ` + actorExpr + `,
		    updated_at = NOW()
		WHERE dataset_id = $1
		RETURNING updated_at
	`
	err := tx.QueryRowContext(ctx, query,
		d.DatasetID, d.Title, d.Slug, d.Description, uuid.Null(d.OrganisationID), nullString(d.LicenseID),
		textArray(d.Keywords), textArray(d.Categories), textArray(d.DataTypes), d.Support, d.Geocover,
		d.UpdateFrequency, d.Published, d.Editor, d.OwnerName, d.OwnerEmail,
		nullTime(d.DateCreation), nullTime(d.DateModification), nullTime(d.DatePublication),
		d.RemoteID, extentJSONB(d.BBox),
	).Scan(&d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return dberror.ErrNotFound.Msg("dataset not found")
		}
		log.Ctx(ctx).Error().Err(err).Str("slug", d.Slug).Msg("failed to update dataset")
		return dberror.FromPg(err, "dataset")
	}
	return nil
}

func setDatasetBBox(ctx context.Context, tx *sql.Tx, id uuid.UUID, bbox *models.Extent) apperrors.Error {
	_, err := tx.ExecContext(ctx, `UPDATE datasets SET bbox = $2, updated_at = NOW() WHERE dataset_id = $1`,
		id, extentJSONB(bbox))
	if err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}
