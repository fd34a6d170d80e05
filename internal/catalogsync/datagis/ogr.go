package datagis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// LayerInfo describes one layer of a source as reported by ogrinfo.
type LayerInfo struct {
	Name         string
	FeatureCount int64
	Geometries   int // number of geometry fields
	EPSG         int // 0 when no authority code could be read
}

// Tool runs the GDAL/OGR command line tools.
type Tool interface {
	Layers(ctx context.Context, source string) ([]LayerInfo, error)
	ToPostGIS(ctx context.Context, source, layer, table string, epsg int) error
}

type ogrTool struct {
	ogrinfo string
	ogr2ogr string
	db      config.DBConfig
	schema  string
}

// NewOgrTool returns a Tool writing into the spatial store described by cfg.
func NewOgrTool(cfg *config.DatagisConfig) Tool {
	return &ogrTool{
		ogrinfo: cfg.OgrinfoPath,
		ogr2ogr: cfg.Ogr2ogrPath,
		db:      cfg.DBConfig,
		schema:  cfg.Schema,
	}
}

func (o *ogrTool) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+o.db.Password)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.Ctx(ctx).Debug().Str("tool", name).Str("stderr", stderr.String()).Msg("command failed")
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

func (o *ogrTool) Layers(ctx context.Context, source string) ([]LayerInfo, error) {
	out, err := o.run(ctx, o.ogrinfo, "-json", "-ro", "-so", "-al", source)
	if err != nil {
		var exitErr *exec.ExitError
		if ctx.Err() == nil && errors.As(err, &exitErr) && unrecognized(err.Error()) {
			return nil, ErrNotSpatial.MsgErr(ErrNotSpatial.Error(), err)
		}
		return nil, err
	}
	return parseOgrinfo(out)
}

// unrecognized reports whether ogrinfo ran but could open the source with
// none of its drivers.
func unrecognized(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "unable to open datasource") ||
		strings.Contains(msg, "not recognized as") ||
		strings.Contains(msg, "not recognised as")
}

// authority of the outermost object of a WKT1 or WKT2 definition
var wktAuthority = regexp.MustCompile(`(?:AUTHORITY\["EPSG",\s*"(\d+)"\]|ID\["EPSG",\s*(\d+)\])\s*\]\s*$`)

// parseOgrinfo reads the output of `ogrinfo -json`.
func parseOgrinfo(out []byte) ([]LayerInfo, error) {
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("unexpected ogrinfo output")
	}
	var layers []LayerInfo
	gjson.GetBytes(out, "layers").ForEach(func(_, l gjson.Result) bool {
		info := LayerInfo{
			Name:         l.Get("name").String(),
			FeatureCount: l.Get("featureCount").Int(),
		}
		geoms := l.Get("geometryFields").Array()
		info.Geometries = len(geoms)
		if len(geoms) > 0 {
			info.EPSG = epsgOf(geoms[0].Get("coordinateSystem"))
		}
		layers = append(layers, info)
		return true
	})
	return layers, nil
}

func epsgOf(cs gjson.Result) int {
	if !cs.Exists() {
		return 0
	}
	if id := cs.Get("projjson.id"); id.Exists() && strings.EqualFold(id.Get("authority").String(), "EPSG") {
		return int(id.Get("code").Int())
	}
	if m := wktAuthority.FindStringSubmatch(strings.TrimSpace(cs.Get("wkt").String())); m != nil {
		code, _ := strconv.Atoi(m[1] + m[2])
		return code
	}
	return 0
}

// pgConnString builds the OGR connection string. The password is passed
// through the environment.
func (o *ogrTool) pgConnString() string {
	return fmt.Sprintf("PG:host=%s port=%d dbname=%s user=%s", o.db.Host, o.db.Port, o.db.DBName, o.db.User)
}

func (o *ogrTool) ToPostGIS(ctx context.Context, source, layer, table string, epsg int) error {
	args := []string{
		"-f", "PostgreSQL", o.pgConnString(), source, layer,
		"-nln", o.schema + "." + table,
		"-overwrite",
		"-nlt", "PROMOTE_TO_MULTI",
		"-lco", "GEOMETRY_NAME=the_geom",
		"-lco", "FID=fid",
		"-lco", "SPATIAL_INDEX=GIST",
		"-lco", "LAUNDER=YES",
		"--config", "PG_USE_COPY", "YES",
	}
	if epsg > 0 {
		args = append(args, "-a_srs", fmt.Sprintf("EPSG:%d", epsg))
	}
	_, err := o.run(ctx, o.ogr2ogr, args...)
	return err
}
