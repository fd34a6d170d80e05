package postgresql

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/jackc/pgtype"
)

// actorExpr is the acting user recorded in updated_by columns.
const actorExpr = `coalesce(current_setting('idgo.actor', true), '')`

type scanner interface {
	Scan(dest ...any) error
}

func textArray(v []string) pgtype.TextArray {
	var a pgtype.TextArray
	if v == nil {
		v = []string{}
	}
	_ = a.Set(v)
	return a
}

func stringsOf(a pgtype.TextArray) []string {
	out := []string{}
	if a.Status == pgtype.Present {
		_ = a.AssignTo(&out)
	}
	return out
}

func uuidArray(v []uuid.UUID) pgtype.UUIDArray {
	var a pgtype.UUIDArray
	_ = a.Set(uuid.Strings(v))
	return a
}

func uuidsOf(a pgtype.UUIDArray) []uuid.UUID {
	var s []string
	if a.Status == pgtype.Present {
		_ = a.AssignTo(&s)
	}
	ids, err := uuid.ParseAll(s)
	if err != nil {
		return []uuid.UUID{}
	}
	return ids
}

// nullString treats the empty string as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func extentJSONB(e *models.Extent) pgtype.JSONB {
	j := pgtype.JSONB{Status: pgtype.Null}
	if e != nil {
		_ = j.Set(e)
	}
	return j
}

func extentOf(j pgtype.JSONB) *models.Extent {
	if j.Status != pgtype.Present {
		return nil
	}
	var e models.Extent
	if err := json.Unmarshal(j.Bytes, &e); err != nil {
		return nil
	}
	return &e
}
