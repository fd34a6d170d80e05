// Package db provides the local store interfaces and their PostgreSQL implementation.
// It defines four interfaces:
// - MetadataManager: organisations, users and reference data
// - ObjectManager: datasets, resources and extractor tasks
// - LedgerManager: read side of the synchronization ledger
// - ConnectionManager: connection and scope management
package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/datasud/idgo/internal/catalogsync/db/dbmanager"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/db/postgresql"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

// MetadataManager handles organisations, users and the reference tables.
type MetadataManager interface {
	// Organisation
	CreateOrganisation(ctx context.Context, org *models.Organisation) apperrors.Error
	GetOrganisation(ctx context.Context, id uuid.UUID) (*models.Organisation, apperrors.Error)
	GetOrganisationBySlug(ctx context.Context, slug string) (*models.Organisation, apperrors.Error)
	UpdateOrganisation(ctx context.Context, org *models.Organisation) apperrors.Error
	ListOrganisations(ctx context.Context) ([]*models.Organisation, apperrors.Error)
	DeleteOrganisation(ctx context.Context, id uuid.UUID) apperrors.Error
	ListOrganisationMembers(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error)
	ListOrganisationContributors(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error)
	AddContributor(ctx context.Context, orgID uuid.UUID, username string) apperrors.Error

	// User
	UpsertUser(ctx context.Context, u *models.User) apperrors.Error
	GetUser(ctx context.Context, username string) (*models.User, apperrors.Error)
	DeleteUser(ctx context.Context, username string) apperrors.Error

	// Reference data
	UpsertLicense(ctx context.Context, l *models.License) apperrors.Error
	GetLicense(ctx context.Context, id string) (*models.License, apperrors.Error)
	ListLicenses(ctx context.Context) ([]*models.License, apperrors.Error)
	UpsertCategory(ctx context.Context, c *models.Category) apperrors.Error
	GetCategory(ctx context.Context, slug string) (*models.Category, apperrors.Error)
	ListCategories(ctx context.Context) ([]*models.Category, apperrors.Error)
	SetCategoryRemoteID(ctx context.Context, slug, remoteID string) apperrors.Error
	DeleteCategory(ctx context.Context, slug string) apperrors.Error
	UpsertDataType(ctx context.Context, d *models.DataType) apperrors.Error
	ListDataTypes(ctx context.Context) ([]*models.DataType, apperrors.Error)
	UpsertSupport(ctx context.Context, s *models.Support) apperrors.Error
	GetSupport(ctx context.Context, slug string) (*models.Support, apperrors.Error)
	UpsertSupportedCrs(ctx context.Context, c *models.SupportedCrs) apperrors.Error
	ListSupportedCrs(ctx context.Context) ([]*models.SupportedCrs, apperrors.Error)
	UpsertResourceFormat(ctx context.Context, f *models.ResourceFormat) apperrors.Error
	GetResourceFormat(ctx context.Context, ext string) (*models.ResourceFormat, apperrors.Error)
}

// ObjectManager handles datasets and resources. Writes that follow a remote
// synchronization go through the Commit methods so the entity and its ledger
// entry change together.
type ObjectManager interface {
	// Dataset
	GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, apperrors.Error)
	GetDatasetBySlug(ctx context.Context, slug string) (*models.Dataset, apperrors.Error)
	ListDatasets(ctx context.Context, orgID *uuid.UUID) ([]*models.Dataset, apperrors.Error)
	CountDatasetsByOrganisation(ctx context.Context, orgID uuid.UUID) (int, apperrors.Error)
	CommitDataset(ctx context.Context, d *models.Dataset, create bool, entry *models.DatasetLedger) apperrors.Error
	DeleteDataset(ctx context.Context, id uuid.UUID) apperrors.Error

	// Resource
	GetResource(ctx context.Context, id uuid.UUID) (*models.Resource, apperrors.Error)
	ListResourcesByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.Resource, apperrors.Error)
	CommitResource(ctx context.Context, r *models.Resource, create bool, entry *models.ResourceLedger, bbox *models.Extent) apperrors.Error
	DeleteResource(ctx context.Context, id uuid.UUID, bbox *models.Extent) apperrors.Error

	// Extractor task
	CreateExtractorTask(ctx context.Context, t *models.ExtractorTask) apperrors.Error
	GetExtractorTask(ctx context.Context, id uuid.UUID) (*models.ExtractorTask, apperrors.Error)
	UpdateExtractorTaskStatus(ctx context.Context, id uuid.UUID, success bool, details []byte) apperrors.Error
	ListExtractorTasks(ctx context.Context, username string) ([]*models.ExtractorTask, apperrors.Error)
}

// LedgerManager reads the synchronization ledger. Entries are written by the
// Commit methods of ObjectManager only.
type LedgerManager interface {
	GetResourceLedger(ctx context.Context, resourceID uuid.UUID) (*models.ResourceLedger, apperrors.Error)
	ListResourceLedgersByDataset(ctx context.Context, datasetID uuid.UUID) ([]*models.ResourceLedger, apperrors.Error)
	GetDatasetLedger(ctx context.Context, datasetID uuid.UUID) (*models.DatasetLedger, apperrors.Error)
}

// ConnectionManager handles database connection and scope management.
type ConnectionManager interface {
	// Scope Management
	AddScopes(ctx context.Context, scopes map[string]string) error
	DropScopes(ctx context.Context, scopes []string) error
	AddScope(ctx context.Context, scope, value string) error
	DropScope(ctx context.Context, scope string) error
	DropAllScopes(ctx context.Context) error

	ExecScript(ctx context.Context, script string) error

	// Close the connection to the database.
	Close(ctx context.Context)
}

// Database combines the managers into a single interface.
type Database interface {
	MetadataManager
	ObjectManager
	LedgerManager
	ConnectionManager
}

// Scope_Actor records the acting user in the updated_by columns.
const Scope_Actor string = "idgo.actor"

var configuredScopes = []string{
	Scope_Actor,
}

var pool dbmanager.ScopedDb

//go:embed scripts/schema.sql
var schema string

// Init creates the connection pool of the local store.
func Init(dsn string) {
	ctx := log.Logger.WithContext(context.Background())
	pg := dbmanager.NewScopedDb(ctx, "postgresql", dsn, configuredScopes)
	if pg == nil {
		panic("unable to create db pool")
	}
	pool = pg
}

// Conn returns a new database connection from the pool.
func Conn(ctx context.Context) (dbmanager.ScopedConn, error) {
	if pool != nil {
		conn, err := pool.Conn(ctx)
		if err == nil {
			return conn, nil
		}
		log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
		return nil, err
	}
	return nil, fmt.Errorf("database pool not initialized")
}

type ctxDbKeyType string

const ctxDbKey ctxDbKeyType = "IdgoCatalogSyncDb"

// ConnCtx adds a database connection to the context.
func ConnCtx(ctx context.Context) (context.Context, error) {
	conn, err := Conn(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, ctxDbKey, conn), nil
}

type catalogSyncDb struct {
	MetadataManager
	ObjectManager
	LedgerManager
	ConnectionManager
}

// DB returns the database bound to the connection carried by ctx, or nil
// when ctx carries none.
func DB(ctx context.Context) Database {
	if conn, ok := ctx.Value(ctxDbKey).(dbmanager.ScopedConn); ok {
		mm, om, lm, cm := postgresql.NewCatalogSyncDb(conn)
		return &catalogSyncDb{
			MetadataManager:   mm,
			ObjectManager:     om,
			LedgerManager:     lm,
			ConnectionManager: cm,
		}
	}
	log.Ctx(ctx).Error().Msg("unable to get db connection from context")
	return nil
}

// Migrate creates the tables of the local store when they are missing.
func Migrate(ctx context.Context) error {
	d := DB(ctx)
	if d == nil {
		return fmt.Errorf("no database connection in context")
	}
	if err := d.ExecScript(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
