package reconciler

import (
	"context"

	"github.com/datasud/idgo/internal/catalogsync/ckan"
	"github.com/datasud/idgo/internal/catalogsync/datagis"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/ledger"
	"github.com/datasud/idgo/internal/catalogsync/mra"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
)

// Store is the part of the local store the reconciler reads and writes.
type Store interface {
	ledger.Reader

	GetOrganisation(ctx context.Context, id uuid.UUID) (*models.Organisation, apperrors.Error)
	UpdateOrganisation(ctx context.Context, org *models.Organisation) apperrors.Error
	ListOrganisationMembers(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error)
	ListOrganisationContributors(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error)
	GetUser(ctx context.Context, username string) (*models.User, apperrors.Error)
	GetLicense(ctx context.Context, id string) (*models.License, apperrors.Error)
	GetCategory(ctx context.Context, slug string) (*models.Category, apperrors.Error)
	GetSupport(ctx context.Context, slug string) (*models.Support, apperrors.Error)
	ListSupportedCrs(ctx context.Context) ([]*models.SupportedCrs, apperrors.Error)
	GetResourceFormat(ctx context.Context, ext string) (*models.ResourceFormat, apperrors.Error)

	GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, apperrors.Error)
	CommitDataset(ctx context.Context, d *models.Dataset, create bool, entry *models.DatasetLedger) apperrors.Error
	DeleteDataset(ctx context.Context, id uuid.UUID) apperrors.Error
	GetResource(ctx context.Context, id uuid.UUID) (*models.Resource, apperrors.Error)
	ListResourcesByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Resource, apperrors.Error)
	CommitResource(ctx context.Context, r *models.Resource, create bool, entry *models.ResourceLedger, bbox *models.Extent) apperrors.Error
	DeleteResource(ctx context.Context, id uuid.UUID, bbox *models.Extent) apperrors.Error
}

// StoreFunc returns the store bound to the connection carried by ctx.
type StoreFunc func(ctx context.Context) Store

// Catalog is the remote catalog.
type Catalog interface {
	GetOrganization(ctx context.Context, id string) (*ckan.Object, error)
	CreateOrganization(ctx context.Context, p ckan.OrganizationParams) (*ckan.Object, error)
	ActivateOrganization(ctx context.Context, id string) error
	DeactivateOrganizationIfEmpty(ctx context.Context, id string) (bool, error)
	PurgeOrganization(ctx context.Context, id string) error
	AddOrganizationMember(ctx context.Context, id, username, capacity string) error
	AddGroupMember(ctx context.Context, id, username string) error

	GetPackage(ctx context.Context, id string) (*ckan.Object, error)
	PublishPackage(ctx context.Context, id string, params map[string]any) (*ckan.Object, bool, error)
	PurgePackage(ctx context.Context, id string) error

	GetResource(ctx context.Context, id string) (*ckan.Object, error)
	PublishResource(ctx context.Context, packageID, id string, params map[string]any) (bool, error)
	UploadResource(ctx context.Context, id, path string) error
	DeleteResource(ctx context.Context, id string) error

	HasLicense(ctx context.Context, id string) (bool, error)
}

// Registry is the remote layer registry.
type Registry interface {
	PublishLayers(ctx context.Context, ws, ds string, tables []string, enabled bool) (*mra.Publication, error)
	Unpublish(ctx context.Context, ws, ds, table string) error
	DeleteWorkspace(ctx context.Context, ws string) error
	DeleteDatastore(ctx context.Context, ws, ds string) error
	SetLayerEnabled(ctx context.Context, name string, enabled bool) error
}

// Importer turns files into spatial tables.
type Importer interface {
	Import(ctx context.Context, req datagis.Request) ([]datagis.Table, error)
}

// Fetcher downloads remote sources.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*datagis.Download, func(), error)
}
