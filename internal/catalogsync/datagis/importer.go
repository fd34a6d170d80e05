// Package datagis turns uploaded or downloaded files into tables of the shared
// spatial store.
package datagis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/common"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/rs/zerolog/log"
)

// Request describes one import.
type Request struct {
	Path      string
	Extension string            // declared format of the file
	Existing  map[string]string // layer base name to the table it was imported into before
	EPSG      int               // coordinate system forced by the user, 0 to detect it
	Supported []*models.SupportedCrs
}

// Table is a table created or refreshed by an import.
type Table struct {
	ID   string
	EPSG int
}

// Importer imports GIS files. On any error no table created by the call is
// left in the spatial store.
type Importer struct {
	tool      Tool
	store     SpatialStore
	maxLayers int
}

func NewImporter(tool Tool, store SpatialStore, maxLayers int) *Importer {
	return &Importer{tool: tool, store: store, maxLayers: maxLayers}
}

// Store returns the spatial store the importer writes to.
func (i *Importer) Store() SpatialStore {
	return i.store
}

type plannedLayer struct {
	layer   string
	target  string
	staging string
	epsg    int
	reused  bool
}

// Import returns the tables holding the layers of the file, in layer order.
// Formats other than the GIS ones are never probed and yield no table.
func (i *Importer) Import(ctx context.Context, req Request) ([]Table, error) {
	ext := strings.ToLower(req.Extension)
	if !catcommon.GeoExtensions[ext] {
		return nil, nil
	}

	src, err := probe(req.Path, ext)
	if err != nil {
		return nil, err
	}

	infos, err := i.tool.Layers(ctx, src.Path)
	if err != nil {
		if errors.Is(err, ErrNotSpatial) {
			return nil, err
		}
		log.Ctx(ctx).Error().Err(err).Str("source", src.Path).Msg("unable to list the layers")
		return nil, ErrImportFailed.MsgErr("unable to read the layers of the file", err)
	}
	var layers []LayerInfo
	for _, l := range infos {
		if l.Geometries > 0 {
			layers = append(layers, l)
		}
	}
	if len(layers) == 0 {
		return nil, ErrNotSpatial
	}
	if i.maxLayers > 0 && len(layers) > i.maxLayers {
		return nil, ErrLayerLimitExceeded.Msg(fmt.Sprintf(
			"the file contains %d layers, the maximum allowed is %d", len(layers), i.maxLayers))
	}

	plan, err := i.plan(req, layers)
	if err != nil {
		return nil, err
	}

	if err := i.run(ctx, src.Path, plan); err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(plan))
	for _, p := range plan {
		tables = append(tables, Table{ID: p.target, EPSG: p.epsg})
	}
	return tables, nil
}

// plan checks every layer before any table is written.
func (i *Importer) plan(req Request, layers []LayerInfo) ([]plannedLayer, error) {
	supported := make(map[int]bool, len(req.Supported))
	for _, c := range req.Supported {
		if strings.EqualFold(c.AuthName, "EPSG") {
			var code int
			if _, err := fmt.Sscan(c.AuthCode, &code); err == nil {
				supported[code] = true
			}
		}
	}

	used := make(map[string]bool)
	plan := make([]plannedLayer, 0, len(layers))
	for _, l := range layers {
		epsg := req.EPSG
		if epsg == 0 {
			epsg = l.EPSG
		}
		if epsg == 0 {
			return nil, ErrCrsNotFound
		}
		if !supported[epsg] {
			return nil, ErrCrsNotSupported.Msg(fmt.Sprintf("the coordinate system EPSG:%d is not supported", epsg))
		}

		base := common.Slugify(l.Name)
		target, reused := req.Existing[base]
		if !reused || used[target] {
			reused = false
			var err error
			if target, err = uniqueTableName(base, used); err != nil {
				return nil, ErrImportFailed.Err(err)
			}
		}
		used[target] = true
		staging, err := uniqueTableName(base, used)
		if err != nil {
			return nil, ErrImportFailed.Err(err)
		}
		used[staging] = true
		plan = append(plan, plannedLayer{layer: l.Name, target: target, staging: staging, epsg: epsg, reused: reused})
	}
	return plan, nil
}

func uniqueTableName(base string, used map[string]bool) (string, error) {
	for {
		name, err := common.NewTableName(base)
		if err != nil {
			return "", err
		}
		if !used[name] {
			return name, nil
		}
	}
}

// run writes every layer into a staging table, then moves the staging tables
// onto their targets. Previous tables are only replaced once all layers were
// written.
func (i *Importer) run(ctx context.Context, source string, plan []plannedLayer) (err error) {
	var staged []string
	defer func() {
		if err == nil {
			return
		}
		for _, t := range staged {
			if dropErr := i.store.DropTable(context.WithoutCancel(ctx), t); dropErr != nil {
				log.Ctx(ctx).Error().Err(dropErr).Str("table", t).Msg("failed to clean up staging table")
			}
		}
	}()

	for _, p := range plan {
		staged = append(staged, p.staging)
		if err = i.tool.ToPostGIS(ctx, source, p.layer, p.staging, p.epsg); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("layer", p.layer).Msg("import failed")
			return ErrImportFailed.MsgErr(fmt.Sprintf("the layer %q could not be imported", p.layer), err)
		}
	}
	for n, p := range plan {
		if err = i.store.ReplaceTable(ctx, p.staging, p.target); err != nil {
			for _, done := range plan[:n] {
				if !done.reused {
					staged = append(staged, done.target)
				}
			}
			return ErrImportFailed.MsgErr("the imported tables could not be published", err)
		}
	}
	return nil
}

// IsGisError reports whether err is a user-correctable import error.
func IsGisError(err error) bool {
	return errors.Is(err, ErrGisImport) || errors.Is(err, ErrDownload)
}

// FieldOf returns the input an import error is attributed to.
func FieldOf(err error) string {
	return apperrors.FieldOf(err)
}
