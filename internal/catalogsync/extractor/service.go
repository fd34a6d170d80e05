package extractor

import (
	"context"

	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/jackc/pgtype"
	"github.com/rs/zerolog/log"
)

// TaskStore persists submitted jobs.
type TaskStore interface {
	CreateExtractorTask(ctx context.Context, t *models.ExtractorTask) apperrors.Error
	GetExtractorTask(ctx context.Context, id uuid.UUID) (*models.ExtractorTask, apperrors.Error)
	UpdateExtractorTaskStatus(ctx context.Context, id uuid.UUID, success bool, details []byte) apperrors.Error
}

// Submitter is the part of the extraction service the tracker needs.
type Submitter interface {
	Submit(ctx context.Context, job *Job) (*Submission, error)
	Status(ctx context.Context, taskID uuid.UUID) (*Status, error)
}

// Tracker submits jobs and records them.
type Tracker struct {
	client Submitter
	store  TaskStore
}

func NewTracker(client Submitter, store TaskStore) *Tracker {
	return &Tracker{client: client, store: store}
}

// Submit sends the job and records the task once the service accepted it.
func (t *Tracker) Submit(ctx context.Context, job *Job) (*models.ExtractorTask, error) {
	sub, err := t.client.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	task := &models.ExtractorTask{
		TaskID:             sub.TaskID,
		Username:           job.Username,
		Layer:              job.Layer,
		SubmissionDatetime: sub.SubmissionDatetime,
		Details:            pgtype.JSONB{Bytes: sub.Details, Status: pgtype.Present},
	}
	if len(sub.Details) == 0 {
		task.Details = pgtype.JSONB{Status: pgtype.Null}
	}
	if err := t.store.CreateExtractorTask(ctx, task); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("task_id", sub.TaskID.String()).Msg("submitted task could not be recorded")
		return nil, err
	}
	return task, nil
}

// Refresh asks the service for the state of a pending task and records it.
func (t *Tracker) Refresh(ctx context.Context, id uuid.UUID) (*models.ExtractorTask, error) {
	task, err := t.store.GetExtractorTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Success != nil {
		return task, nil
	}
	st, serr := t.client.Status(ctx, id)
	if serr != nil {
		return nil, serr
	}
	if !st.Done {
		return task, nil
	}
	if err := t.store.UpdateExtractorTaskStatus(ctx, id, st.Success, st.Details); err != nil {
		return nil, err
	}
	success := st.Success
	task.Success = &success
	task.Details = pgtype.JSONB{Bytes: st.Details, Status: pgtype.Present}
	return task, nil
}
