package cli

import (
	"context"
	"fmt"

	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/ckan"
	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/catalogsync/datagis"
	"github.com/datasud/idgo/internal/catalogsync/db"
	"github.com/datasud/idgo/internal/catalogsync/db/dbmanager"
	"github.com/datasud/idgo/internal/catalogsync/extractor"
	"github.com/datasud/idgo/internal/catalogsync/mra"
	"github.com/datasud/idgo/internal/catalogsync/reconciler"
	"github.com/datasud/idgo/internal/catalogsync/server"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// systemActor is recorded as the author of changes made from the command line.
const systemActor = "idgosync"

// app holds the collaborators built from the configuration.
type app struct {
	cfg        *config.ConfigParam
	catalog    *ckan.Client
	reconciler *reconciler.Reconciler
	tracker    *extractor.Tracker
}

// newApp opens the pools and builds the collaborators. The local store pool
// is process wide.
func newApp(ctx context.Context, cfg *config.ConfigParam) (*app, error) {
	db.Init(cfg.DSN())

	spatialPool := dbmanager.NewScopedDb(ctx, "postgresql", cfg.Datagis.DSN(), nil)
	if spatialPool == nil {
		return nil, fmt.Errorf("unable to create the spatial store pool")
	}
	spatial := datagis.NewPostgisStore(spatialPool, cfg.Datagis.Schema)
	importer := datagis.NewImporter(datagis.NewOgrTool(&cfg.Datagis), spatial, cfg.Datagis.MaxLayersPerResource)
	downloader := datagis.NewDownloader(cfg.Datagis.WorkDir, cfg.Datagis.DownloadSizeLimit, cfg.Datagis.GetImportTimeout())

	a := &app{
		cfg:     cfg,
		catalog: ckan.NewFromConfig(&cfg.Ckan),
	}
	a.reconciler = reconciler.New(server.ReconcilerStore, a.catalog,
		mra.NewFromConfig(&cfg.MRA, &cfg.Datagis.DBConfig), importer, spatial, downloader,
		reconciler.Options{
			Datastore:         cfg.MRA.Datastore,
			OwsURL:            cfg.MRA.OwsURL,
			LegendCrs:         cfg.MRA.LegendCrsName,
			BboxEPSG:          cfg.Datagis.BboxEPSG,
			DefaultMaintainer: cfg.Ckan.DefaultMaintainer,
			DefaultEmail:      cfg.Ckan.DefaultEmail,
			RecheckAttempts:   cfg.Reconciler.TimeoutRecheckAttempts,
			RecheckDelay:      cfg.Reconciler.GetTimeoutRecheckDelay(),
		})
	if cfg.Extractor.URL != "" {
		a.tracker = extractor.NewTracker(extractor.NewFromConfig(&cfg.Extractor), server.TaskStore{})
	} else {
		log.Ctx(ctx).Info().Msg("no extraction service configured")
	}
	return a, nil
}

// withStore binds a connection of the local store to ctx for the duration
// of fn.
func withStore(ctx context.Context, fn func(ctx context.Context, st db.Database) error) error {
	ctx = catcommon.WithActor(ctx, &catcommon.Actor{Username: systemActor, IsAdmin: true})
	ctx, err := db.ConnCtx(ctx)
	if err != nil {
		return fmt.Errorf("unable to reach the local store: %w", err)
	}
	st := db.DB(ctx)
	defer st.Close(context.Background())
	if err := st.AddScope(ctx, db.Scope_Actor, systemActor); err != nil {
		return fmt.Errorf("unable to set actor scope: %w", err)
	}
	return fn(ctx, st)
}
