package models

import (
	"time"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/common/uuid"
)

/*
      Column          |           Type           | Nullable
----------------------+--------------------------+---------
 resource_id          | uuid                     | not null
 dataset_id           | uuid                     |
 name                 | character varying(150)   | not null
 description          | text                     |
 up_file              | character varying(1024)  |
 dl_url               | character varying(2000)  |
 referenced_url       | character varying(2000)  |
 ftp_file             | character varying(1024)  |
 format               | character varying(30)    |
 lang                 | character varying(10)    | not null
 data_type            | character varying(10)    | not null
 restriction_level    | character varying(30)    | not null
 allowed_users        | text[]                   | not null
 allowed_orgs         | uuid[]                   | not null
 geo_restriction      | boolean                  | not null
 extractable          | boolean                  | not null
 ogc_services         | boolean                  | not null
 sync_frequency       | character varying(20)    |
 crs                  | character varying(30)    |
 remote_id            | character varying(64)    |
 created_at           | timestamp with time zone | not null
 updated_at           | timestamp with time zone | not null
Indexes:
    "resources_pkey" PRIMARY KEY, btree (resource_id)
Check constraints:
    "resources_single_source" CHECK (num_nonnulls(up_file, dl_url, referenced_url, ftp_file) <= 1)
Foreign-key constraints:
    "resources_dataset_id_fkey" FOREIGN KEY (dataset_id) REFERENCES datasets(dataset_id) ON DELETE SET NULL
*/

// Resource is one data file, service or reference belonging to a dataset.
// DatasetID becomes nil when the dataset is deleted; the resource is kept as a tombstone.
type Resource struct {
	ResourceID       uuid.UUID                  `db:"resource_id"`
	DatasetID        *uuid.UUID                 `db:"dataset_id"`
	Name             string                     `db:"name"`
	Description      string                     `db:"description"`
	UpFile           string                     `db:"up_file"`
	DlURL            string                     `db:"dl_url"`
	ReferencedURL    string                     `db:"referenced_url"`
	FtpFile          string                     `db:"ftp_file"`
	Format           string                     `db:"format"`
	Lang             string                     `db:"lang"`
	DataType         string                     `db:"data_type"`
	RestrictionLevel catcommon.RestrictionLevel `db:"restriction_level"`
	AllowedUsers     []string                   `db:"allowed_users"`
	AllowedOrgs      []uuid.UUID                `db:"allowed_orgs"`
	GeoRestriction   bool                       `db:"geo_restriction"`
	Extractable      bool                       `db:"extractable"`
	OgcServices      bool                       `db:"ogc_services"`
	SyncFrequency    string                     `db:"sync_frequency"`
	Crs              string                     `db:"crs"`
	RemoteID         string                     `db:"remote_id"`
	CreatedAt        time.Time                  `db:"created_at"`
	UpdatedAt        time.Time                  `db:"updated_at"`
}

// SourceKind reports which source is set. ok is false when more than one is.
func (r *Resource) SourceKind() (kind catcommon.SourceKind, ok bool) {
	n := 0
	if r.UpFile != "" {
		kind, n = catcommon.SourceUpload, n+1
	}
	if r.DlURL != "" {
		kind, n = catcommon.SourceDownload, n+1
	}
	if r.ReferencedURL != "" {
		kind, n = catcommon.SourceReferenced, n+1
	}
	if r.FtpFile != "" {
		kind, n = catcommon.SourceFTP, n+1
	}
	if n > 1 {
		return catcommon.SourceNone, false
	}
	return kind, true
}

// Clone returns a deep copy of r.
func (r *Resource) Clone() *Resource {
	if r == nil {
		return nil
	}
	c := *r
	c.AllowedUsers = append([]string(nil), r.AllowedUsers...)
	c.AllowedOrgs = append([]uuid.UUID(nil), r.AllowedOrgs...)
	if r.DatasetID != nil {
		id := *r.DatasetID
		c.DatasetID = &id
	}
	return &c
}
