package server

import (
	"context"

	"github.com/datasud/idgo/internal/catalogsync/apis"
	"github.com/datasud/idgo/internal/catalogsync/db"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/reconciler"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
)

var (
	_ apis.Store       = db.Database(nil)
	_ reconciler.Store = db.Database(nil)
)

// The local store is bound to each request by the db middleware. These
// adapters resolve it from the context at call time.

func APIStore(ctx context.Context) apis.Store {
	return db.DB(ctx)
}

func ReconcilerStore(ctx context.Context) reconciler.Store {
	return db.DB(ctx)
}

// TaskStore serves the extraction tracker, which outlives requests.
type TaskStore struct{}

func (TaskStore) CreateExtractorTask(ctx context.Context, t *models.ExtractorTask) apperrors.Error {
	return db.DB(ctx).CreateExtractorTask(ctx, t)
}

func (TaskStore) GetExtractorTask(ctx context.Context, id uuid.UUID) (*models.ExtractorTask, apperrors.Error) {
	return db.DB(ctx).GetExtractorTask(ctx, id)
}

func (TaskStore) UpdateExtractorTaskStatus(ctx context.Context, id uuid.UUID, success bool, details []byte) apperrors.Error {
	return db.DB(ctx).UpdateExtractorTaskStatus(ctx, id, success, details)
}
