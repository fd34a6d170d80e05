// Package apis is the HTTP boundary of the catalog synchronization service.
// Requests are mapped to typed commands through an explicit alias table,
// validated once, and handed to the reconciler.
package apis

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/extractor"
	"github.com/datasud/idgo/internal/catalogsync/reconciler"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/httpx"
	"github.com/datasud/idgo/internal/common/uuid"
)

// Store is the part of the local store the handlers read.
type Store interface {
	GetOrganisation(ctx context.Context, id uuid.UUID) (*models.Organisation, apperrors.Error)
	GetOrganisationBySlug(ctx context.Context, slug string) (*models.Organisation, apperrors.Error)
	ListOrganisationContributors(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error)
	GetUser(ctx context.Context, username string) (*models.User, apperrors.Error)
	GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, apperrors.Error)
	GetDatasetBySlug(ctx context.Context, slug string) (*models.Dataset, apperrors.Error)
	ListDatasets(ctx context.Context, orgID *uuid.UUID) ([]*models.Dataset, apperrors.Error)
	GetResource(ctx context.Context, id uuid.UUID) (*models.Resource, apperrors.Error)
	ListResourcesByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Resource, apperrors.Error)
	GetResourceLedger(ctx context.Context, resourceID uuid.UUID) (*models.ResourceLedger, apperrors.Error)
	ListExtractorTasks(ctx context.Context, username string) ([]*models.ExtractorTask, apperrors.Error)
}

// Reconciler publishes changes to the remote systems and persists them.
type Reconciler interface {
	SaveDataset(ctx context.Context, d *models.Dataset) (*reconciler.Outcome, error)
	DeleteDataset(ctx context.Context, id uuid.UUID) error
	SaveResource(ctx context.Context, ch reconciler.ResourceChange) (*reconciler.Outcome, error)
	DeleteResource(ctx context.Context, id uuid.UUID) error
}

// Extractor submits and follows extraction jobs.
type Extractor interface {
	Submit(ctx context.Context, job *extractor.Job) (*models.ExtractorTask, error)
	Refresh(ctx context.Context, id uuid.UUID) (*models.ExtractorTask, error)
}

type Options struct {
	UploadDir       string // Where uploaded resource files are kept
	MaxUploadSize   int64
	ExtractorSource string
	DefaultDstSRS   string
	FootprintSRS    string
}

// Service holds the handlers and their collaborators.
type Service struct {
	store      func(ctx context.Context) Store
	reconciler Reconciler
	extractor  Extractor
	opts       Options
}

// New returns the service. ext may be nil when no extraction service is
// configured.
func New(store func(ctx context.Context) Store, rec Reconciler, ext Extractor, opts Options) *Service {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 100 << 20
	}
	return &Service{store: store, reconciler: rec, extractor: ext, opts: opts}
}

type handlerParam struct {
	Method  string
	Path    string
	Handler httpx.RequestHandler
}

func (s *Service) handlers() []handlerParam {
	return []handlerParam{
		{http.MethodGet, "/datasets", s.listDatasets},
		{http.MethodPost, "/datasets", s.createDataset},
		{http.MethodGet, "/datasets/{datasetName}", s.getDataset},
		{http.MethodPut, "/datasets/{datasetName}", s.updateDataset},
		{http.MethodDelete, "/datasets/{datasetName}", s.deleteDataset},
		{http.MethodGet, "/datasets/{datasetName}/resources", s.listResources},
		{http.MethodPost, "/datasets/{datasetName}/resources", s.createResource},
		{http.MethodGet, "/datasets/{datasetName}/resources/{resourceID}", s.getResource},
		{http.MethodPut, "/datasets/{datasetName}/resources/{resourceID}", s.updateResource},
		{http.MethodDelete, "/datasets/{datasetName}/resources/{resourceID}", s.deleteResource},
		{http.MethodGet, "/extractor/tasks", s.listTasks},
		{http.MethodPost, "/extractor/tasks", s.submitTask},
		{http.MethodGet, "/extractor/tasks/{taskID}", s.getTask},
	}
}

// Router registers the handlers on r.
func (s *Service) Router(r chi.Router) chi.Router {
	for _, h := range s.handlers() {
		r.Method(h.Method, h.Path, httpx.WrapHttpRsp(h.Handler))
	}
	return r
}
