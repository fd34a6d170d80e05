package models

import (
	"time"

	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/jackc/pgtype"
)

/*
       Column         |           Type           | Nullable
----------------------+--------------------------+---------
 task_id              | uuid                     | not null
 username             | character varying(150)   | not null
 layer                | character varying(100)   | not null
 submission_datetime  | timestamp with time zone |
 success              | boolean                  |
 details              | jsonb                    |
 created_at           | timestamp with time zone | not null
Indexes:
    "extractor_tasks_pkey" PRIMARY KEY, btree (task_id)
*/

// ExtractorTask records a job submitted to the extraction service.
type ExtractorTask struct {
	TaskID             uuid.UUID    `db:"task_id"`
	Username           string       `db:"username"`
	Layer              string       `db:"layer"`
	SubmissionDatetime *time.Time   `db:"submission_datetime"`
	Success            *bool        `db:"success"`
	Details            pgtype.JSONB `db:"details"`
	CreatedAt          time.Time    `db:"created_at"`
}
