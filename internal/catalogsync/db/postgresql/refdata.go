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

// queryAll runs query and collects one value per row using scan.
func queryAll[T any](ctx context.Context, conn *sql.Conn, query string, scan func(scanner) (*T, error), args ...any) ([]*T, apperrors.Error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	defer rows.Close()

	out := []*T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, dberror.ErrDatabase.Err(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, dberror.ErrDatabase.Err(err)
	}
	return out, nil
}

// queryOne returns dberror.ErrNotFound when no row matches.
func queryOne[T any](ctx context.Context, conn *sql.Conn, what, query string, scan func(scanner) (*T, error), args ...any) (*T, apperrors.Error) {
	v, err := scan(conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dberror.ErrNotFound.Msg(what + " not found")
		}
		return nil, dberror.ErrDatabase.Err(err)
	}
	return v, nil
}

// Licenses

func scanLicense(row scanner) (*models.License, error) {
	var l models.License
	if err := row.Scan(&l.LicenseID, &l.Title, &l.URL); err != nil {
		return nil, err
	}
	return &l, nil
}

func (mm *metadataManager) UpsertLicense(ctx context.Context, l *models.License) apperrors.Error {
	query := `
		INSERT INTO licenses (license_id, title, url) VALUES ($1, $2, $3)
		ON CONFLICT (license_id) DO UPDATE SET title = EXCLUDED.title, url = EXCLUDED.url
	`
	if _, err := mm.conn().ExecContext(ctx, query, l.LicenseID, l.Title, l.URL); err != nil {
		return dberror.FromPg(err, "license")
	}
	return nil
}

func (mm *metadataManager) GetLicense(ctx context.Context, id string) (*models.License, apperrors.Error) {
	return queryOne(ctx, mm.conn(), "license",
		`SELECT license_id, title, url FROM licenses WHERE license_id = $1`, scanLicense, id)
}

func (mm *metadataManager) ListLicenses(ctx context.Context) ([]*models.License, apperrors.Error) {
	return queryAll(ctx, mm.conn(), `SELECT license_id, title, url FROM licenses ORDER BY license_id`, scanLicense)
}

// Categories

func scanCategory(row scanner) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.CategoryID, &c.Slug, &c.Name, &c.Description, &c.RemoteID); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCategory inserts or updates a category by slug. The remote id is left untouched.
func (mm *metadataManager) UpsertCategory(ctx context.Context, c *models.Category) apperrors.Error {
	if c.CategoryID == uuid.Nil {
		c.CategoryID = uuid.New()
	}
	query := `
		INSERT INTO categories (category_id, slug, name, description) VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		RETURNING category_id, remote_id
	`
	err := mm.conn().QueryRowContext(ctx, query, c.CategoryID, c.Slug, c.Name, c.Description).
		Scan(&c.CategoryID, &c.RemoteID)
	if err != nil {
		return dberror.FromPg(err, "category")
	}
	return nil
}

func (mm *metadataManager) SetCategoryRemoteID(ctx context.Context, slug, remoteID string) apperrors.Error {
	result, err := mm.conn().ExecContext(ctx, `UPDATE categories SET remote_id = $2 WHERE slug = $1`, slug, remoteID)
	if err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return dberror.ErrDatabase.Err(err)
	} else if n == 0 {
		return dberror.ErrNotFound.Msg("category not found")
	}
	return nil
}

func (mm *metadataManager) GetCategory(ctx context.Context, slug string) (*models.Category, apperrors.Error) {
	return queryOne(ctx, mm.conn(), "category",
		`SELECT category_id, slug, name, description, remote_id FROM categories WHERE slug = $1`, scanCategory, slug)
}

func (mm *metadataManager) ListCategories(ctx context.Context) ([]*models.Category, apperrors.Error) {
	return queryAll(ctx, mm.conn(),
		`SELECT category_id, slug, name, description, remote_id FROM categories ORDER BY slug`, scanCategory)
}

func (mm *metadataManager) DeleteCategory(ctx context.Context, slug string) apperrors.Error {
	if _, err := mm.conn().ExecContext(ctx, `DELETE FROM categories WHERE slug = $1`, slug); err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	return nil
}

// Data types

func scanDataType(row scanner) (*models.DataType, error) {
	var d models.DataType
	if err := row.Scan(&d.Slug, &d.Name); err != nil {
		return nil, err
	}
	return &d, nil
}

func (mm *metadataManager) UpsertDataType(ctx context.Context, d *models.DataType) apperrors.Error {
	query := `
		INSERT INTO data_types (slug, name) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
	`
	if _, err := mm.conn().ExecContext(ctx, query, d.Slug, d.Name); err != nil {
		return dberror.FromPg(err, "data type")
	}
	return nil
}

func (mm *metadataManager) ListDataTypes(ctx context.Context) ([]*models.DataType, apperrors.Error) {
	return queryAll(ctx, mm.conn(), `SELECT slug, name FROM data_types ORDER BY slug`, scanDataType)
}

// Supports

func scanSupport(row scanner) (*models.Support, error) {
	var s models.Support
	if err := row.Scan(&s.Slug, &s.Name, &s.Email); err != nil {
		return nil, err
	}
	return &s, nil
}

func (mm *metadataManager) UpsertSupport(ctx context.Context, s *models.Support) apperrors.Error {
	query := `
		INSERT INTO supports (slug, name, email) VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email
	`
	if _, err := mm.conn().ExecContext(ctx, query, s.Slug, s.Name, s.Email); err != nil {
		return dberror.FromPg(err, "support")
	}
	return nil
}

func (mm *metadataManager) GetSupport(ctx context.Context, slug string) (*models.Support, apperrors.Error) {
	return queryOne(ctx, mm.conn(), "support",
		`SELECT slug, name, email FROM supports WHERE slug = $1`, scanSupport, slug)
}

// Supported coordinate systems

func scanSupportedCrs(row scanner) (*models.SupportedCrs, error) {
	var c models.SupportedCrs
	if err := row.Scan(&c.AuthName, &c.AuthCode, &c.Description); err != nil {
		return nil, err
	}
	return &c, nil
}

func (mm *metadataManager) UpsertSupportedCrs(ctx context.Context, c *models.SupportedCrs) apperrors.Error {
	query := `
		INSERT INTO supported_crs (auth_name, auth_code, description) VALUES ($1, $2, $3)
		ON CONFLICT (auth_name, auth_code) DO UPDATE SET description = EXCLUDED.description
	`
	if _, err := mm.conn().ExecContext(ctx, query, c.AuthName, c.AuthCode, c.Description); err != nil {
		return dberror.FromPg(err, "supported crs")
	}
	return nil
}

func (mm *metadataManager) ListSupportedCrs(ctx context.Context) ([]*models.SupportedCrs, apperrors.Error) {
	return queryAll(ctx, mm.conn(),
		`SELECT auth_name, auth_code, description FROM supported_crs ORDER BY auth_name, auth_code`, scanSupportedCrs)
}

// Resource formats

func scanResourceFormat(row scanner) (*models.ResourceFormat, error) {
	var f models.ResourceFormat
	if err := row.Scan(&f.Extension, &f.Description, &f.CkanView, &f.IsGis); err != nil {
		return nil, err
	}
	return &f, nil
}

func (mm *metadataManager) UpsertResourceFormat(ctx context.Context, f *models.ResourceFormat) apperrors.Error {
	query := `
		INSERT INTO resource_formats (extension, description, ckan_view, is_gis) VALUES ($1, $2, $3, $4)
		ON CONFLICT (extension) DO UPDATE
		SET description = EXCLUDED.description, ckan_view = EXCLUDED.ckan_view, is_gis = EXCLUDED.is_gis
	`
	if _, err := mm.conn().ExecContext(ctx, query, f.Extension, f.Description, f.CkanView, f.IsGis); err != nil {
		return dberror.FromPg(err, "resource format")
	}
	return nil
}

func (mm *metadataManager) GetResourceFormat(ctx context.Context, ext string) (*models.ResourceFormat, apperrors.Error) {
	return queryOne(ctx, mm.conn(), "resource format",
		`SELECT extension, description, ckan_view, is_gis FROM resource_formats WHERE extension = $1`, scanResourceFormat, ext)
}
