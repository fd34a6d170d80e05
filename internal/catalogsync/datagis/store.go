package datagis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datasud/idgo/internal/catalogsync/db/dbmanager"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// SpatialStore manages the tables of the shared spatial database.
type SpatialStore interface {
	DropTable(ctx context.Context, table string) error
	// ReplaceTable renames src to dst, dropping any previous dst.
	ReplaceTable(ctx context.Context, src, dst string) error
	// Extent returns the bounding box of a table in the given CRS, nil when the table is empty.
	Extent(ctx context.Context, table string, epsg int) (*models.Extent, error)
}

type postgisStore struct {
	pool   dbmanager.ScopedDb
	schema string
}

// NewPostgisStore returns a SpatialStore over a pool on the spatial database.
func NewPostgisStore(pool dbmanager.ScopedDb, schema string) SpatialStore {
	return &postgisStore{pool: pool, schema: schema}
}

func (s *postgisStore) qualified(table string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(table)
}

func (s *postgisStore) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	c, err := s.pool.Conn(ctx)
	if err != nil {
		return ErrSpatialStore.MsgErr("unable to reach the spatial store", err)
	}
	defer c.Close(context.Background())
	return fn(c.Conn())
}

func (s *postgisStore) DropTable(ctx context.Context, table string) error {
	return s.withConn(ctx, func(c *sql.Conn) error {
		if _, err := c.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.qualified(table)+" CASCADE"); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("table", table).Msg("failed to drop table")
			return ErrSpatialStore.Err(err)
		}
		return nil
	})
}

func (s *postgisStore) ReplaceTable(ctx context.Context, src, dst string) error {
	if src == dst {
		return nil
	}
	return s.withConn(ctx, func(c *sql.Conn) error {
		tx, err := c.BeginTx(ctx, nil)
		if err != nil {
			return ErrSpatialStore.Err(err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.qualified(dst)+" CASCADE"); err != nil {
			return ErrSpatialStore.Err(err)
		}
		if _, err := tx.ExecContext(ctx, "ALTER TABLE "+s.qualified(src)+" RENAME TO "+pq.QuoteIdentifier(dst)); err != nil {
			return ErrSpatialStore.Err(err)
		}
		if err := tx.Commit(); err != nil {
			return ErrSpatialStore.Err(err)
		}
		return nil
	})
}

func (s *postgisStore) Extent(ctx context.Context, table string, epsg int) (*models.Extent, error) {
	query := fmt.Sprintf(`
		SELECT ST_XMin(e), ST_YMin(e), ST_XMax(e), ST_YMax(e)
		FROM (SELECT ST_Extent(ST_Transform(the_geom, $1))::geometry AS e FROM %s) s
		WHERE e IS NOT NULL
	`, s.qualified(table))

	var ext *models.Extent
	err := s.withConn(ctx, func(c *sql.Conn) error {
		e := models.Extent{EPSG: epsg}
		err := c.QueryRowContext(ctx, query, epsg).Scan(&e.MinX, &e.MinY, &e.MaxX, &e.MaxY)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return ErrSpatialStore.Err(err)
		}
		ext = &e
		return nil
	})
	return ext, err
}
