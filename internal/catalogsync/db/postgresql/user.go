package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
)

func (mm *metadataManager) UpsertUser(ctx context.Context, u *models.User) apperrors.Error {
	if u.Username == "" {
		return dberror.ErrInvalidInput.Msg("username cannot be empty")
	}
	query := `
		INSERT INTO users (username, full_name, email, organisation_id, is_admin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (username) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    email = EXCLUDED.email,
		    organisation_id = EXCLUDED.organisation_id,
		    is_admin = EXCLUDED.is_admin,
		    is_active = EXCLUDED.is_active
	`
	_, err := mm.conn().ExecContext(ctx, query,
		u.Username, u.FullName, u.Email, uuid.Null(u.OrganisationID), u.IsAdmin, u.IsActive)
	if err != nil {
		return dberror.FromPg(err, "user")
	}
	return nil
}

func (mm *metadataManager) GetUser(ctx context.Context, username string) (*models.User, apperrors.Error) {
	query := `
		SELECT username, full_name, email, organisation_id, is_admin, is_active
		FROM users WHERE username = $1
	`
	var u models.User
	var orgID uuid.NullUUID
	err := mm.conn().QueryRowContext(ctx, query, username).
		Scan(&u.Username, &u.FullName, &u.Email, &orgID, &u.IsAdmin, &u.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg("user not found")
		}
		return nil, dberror.ErrDatabase.Err(err)
	}
	u.OrganisationID = uuid.Ptr(orgID)
	return &u, nil
}

func (mm *metadataManager) DeleteUser(ctx context.Context, username string) apperrors.Error {
	if _, err := mm.conn().ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username); err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}
