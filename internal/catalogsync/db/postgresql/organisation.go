package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

const organisationColumns = `organisation_id, name, slug, remote_id, description, website, is_active, created_at, updated_at`

func scanOrganisation(row scanner) (*models.Organisation, error) {
	var o models.Organisation
	err := row.Scan(&o.OrganisationID, &o.Name, &o.Slug, &o.RemoteID, &o.Description, &o.Website,
		&o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (mm *metadataManager) CreateOrganisation(ctx context.Context, org *models.Organisation) apperrors.Error {
	if org.Name == "" || org.Slug == "" {
		return dberror.ErrInvalidInput.Msg("organisation name and slug are required")
	}
	if org.OrganisationID == uuid.Nil {
		org.OrganisationID = uuid.New()
	}

	query := `
		INSERT INTO organisations (organisation_id, name, slug, remote_id, description, website, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := mm.conn().QueryRowContext(ctx, query,
		org.OrganisationID, org.Name, org.Slug, org.RemoteID, org.Description, org.Website, org.IsActive,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("slug", org.Slug).Msg("failed to insert organisation")
		return dberror.FromPg(err, "organisation")
	}
	return nil
}

func (mm *metadataManager) GetOrganisation(ctx context.Context, id uuid.UUID) (*models.Organisation, apperrors.Error) {
	query := `SELECT ` + organisationColumns + ` FROM organisations WHERE organisation_id = $1`
	org, err := scanOrganisation(mm.conn().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("organisation not found")
		}
		return nil, dberror.ErrDatabase.Err(err)
	}
	return org, nil
}

func (mm *metadataManager) GetOrganisationBySlug(ctx context.Context, slug string) (*models.Organisation, apperrors.Error) {
	query := `SELECT ` + organisationColumns + ` FROM organisations WHERE slug = $1`
	org, err := scanOrganisation(mm.conn().QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("organisation not found")
		}
		return nil, dberror.ErrDatabase.Err(err)
	}
	return org, nil
}

func (mm *metadataManager) UpdateOrganisation(ctx context.Context, org *models.Organisation) apperrors.Error {
	query := `
		UPDATE organisations
		SET name = $2,
		    slug = $3,
		    remote_id = $4,
		    description = $5,
		    website = $6,
		    is_active = $7,
		    updated_by = ` + actorExpr + `,
		    updated_at = NOW()
		WHERE organisation_id = $1
		RETURNING updated_at
	`
	err := mm.conn().QueryRowContext(ctx, query,
		org.OrganisationID, org.Name, org.Slug, org.RemoteID, org.Description, org.Website, org.IsActive,
	).Scan(&org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dberror.ErrNotFound.Msg("organisation not found")
		}
		log.Ctx(ctx).Error().Err(err).Msg("failed to update organisation")
		return dberror.FromPg(err, "organisation")
	}
	return nil
}

func (mm *metadataManager) ListOrganisations(ctx context.Context) ([]*models.Organisation, apperrors.Error) {
	query := `SELECT ` + organisationColumns + ` FROM organisations ORDER BY slug`
	rows, err := mm.conn().QueryContext(ctx, query)
	if err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	var orgs []*models.Organisation
	for rows.Next() {
		org, err := scanOrganisation(rows)
		if err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return orgs, nil
}

func (mm *metadataManager) DeleteOrganisation(ctx context.Context, id uuid.UUID) apperrors.Error {
	result, err := mm.conn().ExecContext(ctx, `DELETE FROM organisations WHERE organisation_id = $1`, id)
	if err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	if rowsAffected == 0 {
		return dberror.ErrNotFound.Msg("organisation not found")
	}
	return nil
}

// ListOrganisationMembers returns the usernames of the active users of an organisation.
func (mm *metadataManager) ListOrganisationMembers(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error) {
	return mm.listUsernames(ctx, `
		SELECT username FROM users
		WHERE organisation_id = $1 AND is_active
		ORDER BY username
	`, id)
}

// ListOrganisationContributors returns the usernames allowed to publish for an organisation.
func (mm *metadataManager) ListOrganisationContributors(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error) {
	return mm.listUsernames(ctx, `
		SELECT c.username FROM organisation_contributors c
		JOIN users u ON u.username = c.username
		WHERE c.organisation_id = $1 AND u.is_active
		ORDER BY c.username
	`, id)
}

func (mm *metadataManager) listUsernames(ctx context.Context, query string, id uuid.UUID) ([]string, apperrors.Error) {
	rows, err := mm.conn().QueryContext(ctx, query, id)
	if err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return names, nil
}

func (mm *metadataManager) AddContributor(ctx context.Context, orgID uuid.UUID, username string) apperrors.Error {
	query := `
		INSERT INTO organisation_contributors (username, organisation_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	if _, err := mm.conn().ExecContext(ctx, query, username, orgID); err != nil {
		return dberror.FromPg(err, "contributor")
	}
	return nil
}
