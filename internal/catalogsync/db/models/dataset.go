package models

import (
	"time"

	"github.com/datasud/idgo/internal/common/uuid"
)

/*
      Column       |           Type           | Nullable
-------------------+--------------------------+---------
 dataset_id        | uuid                     | not null
 title             | character varying(256)   | not null
 slug              | character varying(100)   | not null
 description       | text                     |
 organisation_id   | uuid                     |
 license_id        | character varying(100)   |
 keywords          | text[]                   | not null
 categories        | text[]                   | not null
 data_types        | text[]                   | not null
 support           | character varying(100)   |
 geocover          | character varying(30)    |
 update_frequency  | character varying(30)    |
 published         | boolean                  | not null
 editor            | character varying(150)   | not null
 owner_name        | character varying(300)   |
 owner_email       | character varying(254)   |
 date_creation     | date                     |
 date_modification | date                     |
 date_publication  | date                     |
 remote_id         | character varying(64)    |
 bbox              | jsonb                    |
 created_at        | timestamp with time zone | not null
 updated_at        | timestamp with time zone | not null
Indexes:
    "datasets_pkey" PRIMARY KEY, btree (dataset_id)
    "datasets_title_key" UNIQUE, btree (title)
    "datasets_slug_key" UNIQUE, btree (slug)
*/

// Dataset is a top-level catalog entry owned by an organisation.
// RemoteID stays empty until the first successful publication.
type Dataset struct {
	DatasetID        uuid.UUID  `db:"dataset_id"`
	Title            string     `db:"title"`
	Slug             string     `db:"slug"`
	Description      string     `db:"description"`
	OrganisationID   *uuid.UUID `db:"organisation_id"`
	LicenseID        string     `db:"license_id"`
	Keywords         []string   `db:"keywords"`
	Categories       []string   `db:"categories"`
	DataTypes        []string   `db:"data_types"`
	Support          string     `db:"support"`
	Geocover         string     `db:"geocover"`
	UpdateFrequency  string     `db:"update_frequency"`
	Published        bool       `db:"published"`
	Editor           string     `db:"editor"`
	OwnerName        string     `db:"owner_name"`
	OwnerEmail       string     `db:"owner_email"`
	DateCreation     *time.Time `db:"date_creation"`
	DateModification *time.Time `db:"date_modification"`
	DatePublication  *time.Time `db:"date_publication"`
	RemoteID         string     `db:"remote_id"`
	BBox             *Extent    `db:"bbox"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// Clone returns a deep copy of d.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	c := *d
	c.Keywords = append([]string(nil), d.Keywords...)
	c.Categories = append([]string(nil), d.Categories...)
	c.DataTypes = append([]string(nil), d.DataTypes...)
	if d.OrganisationID != nil {
		id := *d.OrganisationID
		c.OrganisationID = &id
	}
	if d.BBox != nil {
		b := *d.BBox
		c.BBox = &b
	}
	return &c
}

// Extent is a bounding box expressed in the configured bbox CRS.
type Extent struct {
	MinX float64 `json:"xmin"`
	MinY float64 `json:"ymin"`
	MaxX float64 `json:"xmax"`
	MaxY float64 `json:"ymax"`
	EPSG int     `json:"epsg"`
}

// Union returns the smallest extent covering e and o. Either may be nil.
func (e *Extent) Union(o *Extent) *Extent {
	switch {
	case e == nil && o == nil:
		return nil
	case e == nil:
		c := *o
		return &c
	case o == nil:
		c := *e
		return &c
	}
	return &Extent{
		MinX: min(e.MinX, o.MinX),
		MinY: min(e.MinY, o.MinY),
		MaxX: max(e.MaxX, o.MaxX),
		MaxY: max(e.MaxY, o.MaxY),
		EPSG: e.EPSG,
	}
}
