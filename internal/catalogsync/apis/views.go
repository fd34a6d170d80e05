package apis

import (
	"context"
	"time"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/reconciler"
)

type datasetView struct {
	Name             string         `json:"name"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Keywords         []string       `json:"keywords"`
	Categories       []string       `json:"categories"`
	DateCreation     string         `json:"date_creation,omitempty"`
	DateModification string         `json:"date_modification,omitempty"`
	DatePublication  string         `json:"date_publication,omitempty"`
	UpdateFrequency  string         `json:"update_frequency,omitempty"`
	Geocover         string         `json:"geocover,omitempty"`
	Organisation     string         `json:"organisation,omitempty"`
	License          string         `json:"license"`
	Type             []string       `json:"type"`
	Private          bool           `json:"private"`
	OwnerName        string         `json:"owner_name,omitempty"`
	OwnerEmail       string         `json:"owner_email,omitempty"`
	Extent           *[2][2]float64 `json:"extent"`
	RemoteID         string         `json:"remote_id,omitempty"`
}

type sourceView struct {
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type resourceView struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Format           string      `json:"format"`
	Source           *sourceView `json:"source"`
	Type             string      `json:"type"`
	Lang             string      `json:"language"`
	RestrictionLevel string      `json:"restricted_level"`
	Crs              string      `json:"crs,omitempty"`
	OgcServices      bool        `json:"ogc_services"`
	Extractable      bool        `json:"extractable"`
	GeoRestriction   bool        `json:"geo_restriction"`
	RemoteID         string      `json:"remote_id,omitempty"`
}

type outcomeView struct {
	State       string   `json:"state"`
	Skipped     bool     `json:"skipped,omitempty"`
	Compensated []string `json:"compensated,omitempty"`
}

type taskView struct {
	ID                 string     `json:"id"`
	Layer              string     `json:"layer"`
	SubmissionDatetime *time.Time `json:"submission_datetime,omitempty"`
	Success            *bool      `json:"success"`
	Details            any        `json:"details,omitempty"`
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// viewDataset renders a dataset. The organisation slug is looked up when
// the dataset belongs to one.
func viewDataset(ctx context.Context, st Store, d *models.Dataset) *datasetView {
	v := &datasetView{
		Name:             d.Slug,
		Title:            d.Title,
		Description:      d.Description,
		Keywords:         emptyIfNil(d.Keywords),
		Categories:       emptyIfNil(d.Categories),
		DateCreation:     formatDate(d.DateCreation),
		DateModification: formatDate(d.DateModification),
		DatePublication:  formatDate(d.DatePublication),
		UpdateFrequency:  d.UpdateFrequency,
		Geocover:         d.Geocover,
		License:          d.LicenseID,
		Type:             emptyIfNil(d.DataTypes),
		Private:          !d.Published,
		OwnerName:        d.OwnerName,
		OwnerEmail:       d.OwnerEmail,
		RemoteID:         d.RemoteID,
	}
	if d.OrganisationID != nil {
		if org, err := st.GetOrganisation(ctx, *d.OrganisationID); err == nil {
			v.Organisation = org.Slug
		}
	}
	if b := d.BBox; b != nil {
		// lat/lon pairs, south-west then north-east
		v.Extent = &[2][2]float64{{b.MinY, b.MinX}, {b.MaxY, b.MaxX}}
	}
	return v
}

func viewResource(r *models.Resource) *resourceView {
	v := &resourceView{
		ID:               r.ResourceID.String(),
		Title:            r.Name,
		Description:      r.Description,
		Format:           r.Format,
		Type:             r.DataType,
		Lang:             r.Lang,
		RestrictionLevel: string(r.RestrictionLevel),
		Crs:              r.Crs,
		OgcServices:      r.OgcServices,
		Extractable:      r.Extractable,
		GeoRestriction:   r.GeoRestriction,
		RemoteID:         r.RemoteID,
	}
	switch kind, _ := r.SourceKind(); kind {
	case catcommon.SourceUpload:
		v.Source = &sourceView{Type: "uploaded", Filename: baseName(r.UpFile)}
	case catcommon.SourceDownload:
		v.Source = &sourceView{Type: "downloaded", URL: r.DlURL}
	case catcommon.SourceReferenced:
		v.Source = &sourceView{Type: "referenced", URL: r.ReferencedURL}
	case catcommon.SourceFTP:
		v.Source = &sourceView{Type: "ftp", Filename: baseName(r.FtpFile)}
	}
	return v
}

func viewOutcome(o *reconciler.Outcome) *outcomeView {
	if o == nil {
		return nil
	}
	return &outcomeView{State: string(o.State), Skipped: o.Skipped, Compensated: o.Compensated}
}

func viewTask(t *models.ExtractorTask) *taskView {
	v := &taskView{
		ID:                 t.TaskID.String(),
		Layer:              t.Layer,
		SubmissionDatetime: t.SubmissionDatetime,
		Success:            t.Success,
	}
	if len(t.Details.Bytes) > 0 {
		var details any
		if err := json.Unmarshal(t.Details.Bytes, &details); err == nil {
			v.Details = details
		}
	}
	return v
}
