package models

import (
	"time"

	"github.com/datasud/idgo/internal/common/uuid"
)

/*
     Column     |           Type           | Nullable
----------------+--------------------------+---------
 resource_id    | uuid                     | not null
 dataset_id     | uuid                     |
 remote_id      | character varying(64)    |
 tables         | text[]                   | not null
 content_digest | character varying(64)    |
 payload_digest | character varying(128)   |
 snapshot       | bytea                    |
 synced_at      | timestamp with time zone | not null
Indexes:
    "resource_ledger_pkey" PRIMARY KEY, btree (resource_id)
*/

// ResourceLedger is the last successful synchronization of a resource.
// Tables is ordered as the import produced them.
type ResourceLedger struct {
	ResourceID    uuid.UUID  `db:"resource_id"`
	DatasetID     *uuid.UUID `db:"dataset_id"`
	RemoteID      string     `db:"remote_id"`
	Tables        []string   `db:"tables"`
	ContentDigest string     `db:"content_digest"` // SHA-256 of the last imported file
	PayloadDigest string     `db:"payload_digest"` // SHA-512 of the canonical published metadata
	Snapshot      []byte     `db:"snapshot"`       // snappy-compressed canonical published metadata
	SyncedAt      time.Time  `db:"synced_at"`
}

/*
 dataset_ledger (dataset_id uuid PRIMARY KEY, remote_id varchar(64) NOT NULL,
                 payload_digest varchar(128), snapshot bytea, synced_at timestamptz NOT NULL)
*/

// DatasetLedger is the last successful synchronization of a dataset.
type DatasetLedger struct {
	DatasetID     uuid.UUID `db:"dataset_id"`
	RemoteID      string    `db:"remote_id"`
	PayloadDigest string    `db:"payload_digest"`
	Snapshot      []byte    `db:"snapshot"`
	SyncedAt      time.Time `db:"synced_at"`
}
