package apis

import (
	"context"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/extractor"
	"github.com/datasud/idgo/internal/catalogsync/reconciler"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
)

type memStore struct {
	orgs         map[uuid.UUID]*models.Organisation
	contributors map[uuid.UUID][]string
	users        map[string]*models.User
	datasets     map[uuid.UUID]*models.Dataset
	resources    map[uuid.UUID]*models.Resource
	ledger       map[uuid.UUID]*models.ResourceLedger
	tasks        []*models.ExtractorTask
}

func newMemStore() *memStore {
	return &memStore{
		orgs:         map[uuid.UUID]*models.Organisation{},
		contributors: map[uuid.UUID][]string{},
		users:        map[string]*models.User{},
		datasets:     map[uuid.UUID]*models.Dataset{},
		resources:    map[uuid.UUID]*models.Resource{},
		ledger:       map[uuid.UUID]*models.ResourceLedger{},
	}
}

func (m *memStore) GetOrganisation(_ context.Context, id uuid.UUID) (*models.Organisation, apperrors.Error) {
	if o, ok := m.orgs[id]; ok {
		return o, nil
	}
	return nil, dberror.ErrNotFound.Msg("organisation not found")
}

func (m *memStore) GetOrganisationBySlug(_ context.Context, slug string) (*models.Organisation, apperrors.Error) {
	for _, o := range m.orgs {
		if o.Slug == slug {
			return o, nil
		}
	}
	return nil, dberror.ErrNotFound.Msg("organisation not found")
}

func (m *memStore) ListOrganisationContributors(_ context.Context, id uuid.UUID) ([]string, apperrors.Error) {
	return m.contributors[id], nil
}

func (m *memStore) GetUser(_ context.Context, username string) (*models.User, apperrors.Error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, dberror.ErrNotFound.Msg("user not found")
}

func (m *memStore) GetDataset(_ context.Context, id uuid.UUID) (*models.Dataset, apperrors.Error) {
	if d, ok := m.datasets[id]; ok {
		return d.Clone(), nil
	}
	return nil, dberror.ErrNotFound.Msg("dataset not found")
}

func (m *memStore) GetDatasetBySlug(_ context.Context, slug string) (*models.Dataset, apperrors.Error) {
	for _, d := range m.datasets {
		if d.Slug == slug {
			return d.Clone(), nil
		}
	}
	return nil, dberror.ErrNotFound.Msg("dataset not found")
}

func (m *memStore) ListDatasets(_ context.Context, orgID *uuid.UUID) ([]*models.Dataset, apperrors.Error) {
	var out []*models.Dataset
	for _, d := range m.datasets {
		if orgID == nil || (d.OrganisationID != nil && *d.OrganisationID == *orgID) {
			out = append(out, d.Clone())
		}
	}
	return out, nil
}

func (m *memStore) GetResource(_ context.Context, id uuid.UUID) (*models.Resource, apperrors.Error) {
	if r, ok := m.resources[id]; ok {
		return r.Clone(), nil
	}
	return nil, dberror.ErrNotFound.Msg("resource not found")
}

func (m *memStore) ListResourcesByDataset(_ context.Context, datasetID uuid.UUID) ([]*models.Resource, apperrors.Error) {
	var out []*models.Resource
	for _, r := range m.resources {
		if r.DatasetID != nil && *r.DatasetID == datasetID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memStore) GetResourceLedger(_ context.Context, id uuid.UUID) (*models.ResourceLedger, apperrors.Error) {
	if e, ok := m.ledger[id]; ok {
		return e, nil
	}
	return nil, dberror.ErrNotFound.Msg("no ledger entry")
}

func (m *memStore) ListExtractorTasks(_ context.Context, username string) ([]*models.ExtractorTask, apperrors.Error) {
	var out []*models.ExtractorTask
	for _, t := range m.tasks {
		if t.Username == username {
			out = append(out, t)
		}
	}
	return out, nil
}

// fakeReconciler persists what it is given, or fails with err.
type fakeReconciler struct {
	st        *memStore
	err       error
	datasets  []*models.Dataset
	resources []reconciler.ResourceChange
	deleted   []uuid.UUID
}

func (f *fakeReconciler) SaveDataset(_ context.Context, d *models.Dataset) (*reconciler.Outcome, error) {
	f.datasets = append(f.datasets, d.Clone())
	if f.err != nil {
		return &reconciler.Outcome{State: reconciler.StateRolledBack}, f.err
	}
	f.st.datasets[d.DatasetID] = d.Clone()
	return &reconciler.Outcome{State: reconciler.StateCommitted}, nil
}

func (f *fakeReconciler) DeleteDataset(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.st.datasets, id)
	return f.err
}

func (f *fakeReconciler) SaveResource(_ context.Context, ch reconciler.ResourceChange) (*reconciler.Outcome, error) {
	f.resources = append(f.resources, ch)
	if f.err != nil {
		return &reconciler.Outcome{State: reconciler.StateRolledBack}, f.err
	}
	f.st.resources[ch.Resource.ResourceID] = ch.Resource.Clone()
	return &reconciler.Outcome{State: reconciler.StateCommitted}, nil
}

func (f *fakeReconciler) DeleteResource(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.st.resources, id)
	return f.err
}

type fakeExtractor struct {
	jobs []*extractor.Job
	task *models.ExtractorTask
}

func (f *fakeExtractor) Submit(_ context.Context, job *extractor.Job) (*models.ExtractorTask, error) {
	f.jobs = append(f.jobs, job)
	f.task = &models.ExtractorTask{TaskID: uuid.New(), Username: job.Username, Layer: job.Layer}
	return f.task, nil
}

func (f *fakeExtractor) Refresh(_ context.Context, id uuid.UUID) (*models.ExtractorTask, error) {
	if f.task == nil || f.task.TaskID != id {
		return nil, dberror.ErrNotFound.Msg("task not found")
	}
	return f.task, nil
}
