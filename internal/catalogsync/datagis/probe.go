package datagis

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"io"
	"os"
	"path"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// members of an archive that OGR can open as a dataset
var spatialMembers = map[string]bool{
	".shp":     true,
	".geojson": true,
	".json":    true,
	".gpkg":    true,
	".kml":     true,
	".gml":     true,
	".tab":     true,
	".mif":     true,
	".gdb":     true,
	".csv":     false,
}

// Source is what the import tool opens for a given file.
type Source struct {
	Path    string   // path, possibly behind a GDAL virtual file system prefix
	Members []string // spatial members found in an archive
}

// probe checks that a file can carry spatial data and returns how to open it.
// ErrNotSpatial is returned when it obviously cannot.
func probe(p, ext string) (*Source, error) {
	head, err := readHead(p)
	if err != nil {
		return nil, ErrImportFailed.MsgErr("unable to read the file", err)
	}

	switch ext {
	case "zip", "shapezip":
		if !filetype.IsType(head, matchers.TypeZip) {
			return nil, ErrNotSpatial.Msg("the file is not a zip archive")
		}
		members, err := zipMembers(p)
		if err != nil {
			return nil, ErrNotSpatial.MsgErr("the zip archive cannot be read", err)
		}
		if len(members) == 0 {
			return nil, ErrNotSpatial
		}
		if ext == "shapezip" && !hasSuffix(members, ".shp") {
			return nil, ErrNotSpatial.Msg("the archive does not contain any shapefile")
		}
		return &Source{Path: "/vsizip/" + p, Members: members}, nil

	case "tar":
		if !filetype.IsType(head, matchers.TypeTar) && !filetype.IsType(head, matchers.TypeGz) {
			return nil, ErrNotSpatial.Msg("the file is not a tar archive")
		}
		if filetype.IsType(head, matchers.TypeGz) {
			// members of a compressed tar are listed by the import tool
			return &Source{Path: "/vsitar//vsigzip/" + p}, nil
		}
		members, err := tarMembers(p)
		if err != nil {
			return nil, ErrNotSpatial.MsgErr("the tar archive cannot be read", err)
		}
		if len(members) == 0 {
			return nil, ErrNotSpatial
		}
		return &Source{Path: "/vsitar/" + p, Members: members}, nil

	case "geojson":
		kind, _ := filetype.Match(head)
		if kind != filetype.Unknown {
			return nil, ErrNotSpatial.Msg("the file is not a GeoJSON document")
		}
		return &Source{Path: p}, nil
	}
	return nil, ErrNotSpatial
}

func readHead(p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return head[:n], nil
}

func isSpatialMember(name string) bool {
	if strings.HasPrefix(path.Base(name), ".") || strings.HasPrefix(name, "__MACOSX/") {
		return false
	}
	return spatialMembers[strings.ToLower(path.Ext(name))]
}

func zipMembers(p string) ([]string, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []string
	for _, f := range r.File {
		if !f.FileInfo().IsDir() && isSpatialMember(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out, nil
}

func tarMembers(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	tr := tar.NewReader(f)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if h.Typeflag == tar.TypeReg && isSpatialMember(h.Name) {
			out = append(out, h.Name)
		}
	}
}

func hasSuffix(names []string, suffix string) bool {
	for _, n := range names {
		if strings.EqualFold(path.Ext(n), suffix) {
			return true
		}
	}
	return false
}
