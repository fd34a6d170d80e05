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

const extractorTaskColumns = `task_id, username, layer, submission_datetime, success, details, created_at`

func scanExtractorTask(row scanner) (*models.ExtractorTask, error) {
	var (
		t         models.ExtractorTask
		submitted sql.NullTime
		success   sql.NullBool
	)
	if err := row.Scan(&t.TaskID, &t.Username, &t.Layer, &submitted, &success, &t.Details, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.SubmissionDatetime = timePtr(submitted)
	if success.Valid {
		v := success.Bool
		t.Success = &v
	}
	return &t, nil
}

func (om *objectManager) CreateExtractorTask(ctx context.Context, t *models.ExtractorTask) apperrors.Error {
	if t.TaskID == uuid.Nil {
		return dberror.ErrInvalidInput.Msg("task id is required")
	}
	query := `
		INSERT INTO extractor_tasks (task_id, username, layer, submission_datetime, success, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if t.Details.Status == pgtype.Undefined {
		t.Details = pgtype.JSONB{Status: pgtype.Null}
	}
	var success sql.NullBool
	if t.Success != nil {
		success = sql.NullBool{Bool: *t.Success, Valid: true}
	}
	err := om.conn().QueryRowContext(ctx, query, t.TaskID, t.Username, t.Layer,
		nullTime(t.SubmissionDatetime), success, t.Details).Scan(&t.CreatedAt)
	if err != nil {
		return dberror.FromPg(err, "extractor task")
	}
	return nil
}

func (om *objectManager) GetExtractorTask(ctx context.Context, id uuid.UUID) (*models.ExtractorTask, apperrors.Error) {
	return queryOne(ctx, om.conn(), "extractor task",
		`SELECT `+extractorTaskColumns+` FROM extractor_tasks WHERE task_id = $1`, scanExtractorTask, id)
}

func (om *objectManager) UpdateExtractorTaskStatus(ctx context.Context, id uuid.UUID, success bool, details []byte) apperrors.Error {
	result, err := om.conn().ExecContext(ctx,
		`UPDATE extractor_tasks SET success = $2, details = $3 WHERE task_id = $1`, id, success, string(details))
	if err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return dberror.ErrDatabase.Err(err)
	} else if n == 0 {
		return dberror.ErrNotFound.Msg("extractor task not found")
	}
	return nil
}

func (om *objectManager) ListExtractorTasks(ctx context.Context, username string) ([]*models.ExtractorTask, apperrors.Error) {
	return queryAll(ctx, om.conn(),
		`SELECT `+extractorTaskColumns+` FROM extractor_tasks WHERE username = $1 ORDER BY created_at DESC`,
		scanExtractorTask, username)
}
