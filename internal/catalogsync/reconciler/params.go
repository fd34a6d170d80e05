package reconciler

import (
	"fmt"
	"time"

	"github.com/datasud/idgo/internal/catalogsync/accesspolicy"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	jsonitor "github.com/json-iterator/go"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

const dateLayout = "2006-01-02"

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

type maintainer struct {
	name  string
	email string
}

// packageParams is the catalog document of a dataset.
func packageParams(d *models.Dataset, org *models.Organisation, groups []string, m maintainer) map[string]any {
	tags := make([]map[string]string, 0, len(d.Keywords))
	for _, k := range d.Keywords {
		tags = append(tags, map[string]string{"name": k})
	}
	grps := make([]map[string]string, 0, len(groups))
	for _, g := range groups {
		grps = append(grps, map[string]string{"name": g})
	}
	p := map[string]any{
		"name":                      d.Slug,
		"title":                     d.Title,
		"notes":                     d.Description,
		"author":                    d.OwnerName,
		"author_email":              d.OwnerEmail,
		"maintainer":                m.name,
		"maintainer_email":          m.email,
		"owner_org":                 organisationRemoteID(org),
		"private":                   !d.Published,
		"state":                     "active",
		"tags":                      tags,
		"groups":                    grps,
		"update_frequency":          d.UpdateFrequency,
		"geocover":                  d.Geocover,
		"datatype":                  d.DataTypes,
		"support":                   d.Support,
		"dataset_creation_date":     formatDate(d.DateCreation),
		"dataset_modification_date": formatDate(d.DateModification),
		"dataset_publication_date":  formatDate(d.DatePublication),
	}
	if d.LicenseID != "" {
		p["license_id"] = d.LicenseID
	}
	return p
}

// resourceParams is the catalog document of a resource.
func resourceParams(r *models.Resource, format *models.ResourceFormat, policy accesspolicy.Policy) map[string]any {
	p := map[string]any{
		"name":            r.Name,
		"description":     r.Description,
		"format":          r.Format,
		"lang":            r.Lang,
		"data_type":       r.DataType,
		"restricted":      policy.Restricted(),
		"crs":             r.Crs,
		"extractable":     r.Extractable,
		"ogc_services":    r.OgcServices,
		"geo_restriction": r.GeoRestriction,
		"sync_frequency":  r.SyncFrequency,
	}
	switch {
	case r.ReferencedURL != "":
		p["url"] = r.ReferencedURL
	case r.DlURL != "":
		p["url"] = r.DlURL
	}
	if format != nil && format.CkanView != "" {
		p["view_type"] = format.CkanView
	}
	return p
}

// wmsParams is the catalog entry exposing a table through the organisation's WMS.
func wmsParams(r *models.Resource, table, owsURL, legendCrs string, policy accesspolicy.Policy) map[string]any {
	return map[string]any{
		"name":             fmt.Sprintf("%s (OGC:WMS)", r.Name),
		"description":      r.Description,
		"format":           "WMS",
		"view_type":        "geo_view",
		"url":              owsURL + "#" + table,
		"lang":             r.Lang,
		"restricted":       policy.Restricted(),
		"crs":              legendCrs,
		"getlegendgraphic": fmt.Sprintf("%sSERVICE=WMS&VERSION=1.1.1&REQUEST=GetLegendGraphic&LAYER=%s&FORMAT=image/png", owsURL, table),
	}
}

// decodeParams reads back the document kept in a ledger snapshot.
func decodeParams(canonical []byte) (map[string]any, error) {
	if len(canonical) == 0 {
		return nil, nil
	}
	var p map[string]any
	if err := json.Unmarshal(canonical, &p); err != nil {
		return nil, err
	}
	return p, nil
}
