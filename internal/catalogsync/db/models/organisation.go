package models

import (
	"time"

	"github.com/datasud/idgo/internal/common/uuid"
)

/*
     Column      |           Type           | Nullable | Default
-----------------+--------------------------+----------+---------
 organisation_id | uuid                     | not null |
 name            | character varying(256)   | not null |
 slug            | character varying(100)   | not null |
 remote_id       | character varying(64)    |          |
 description     | text                     |          |
 website         | character varying(512)   |          |
 is_active       | boolean                  | not null | true
 created_at      | timestamp with time zone | not null | now()
 updated_at      | timestamp with time zone | not null | now()
Indexes:
    "organisations_pkey" PRIMARY KEY, btree (organisation_id)
    "organisations_name_key" UNIQUE, btree (name)
    "organisations_slug_key" UNIQUE, btree (slug)
*/

// Organisation is the legal identity owning datasets. Slug doubles as the
// remote catalog name and the layer registry workspace name.
type Organisation struct {
	OrganisationID uuid.UUID `db:"organisation_id"`
	Name           string    `db:"name"`
	Slug           string    `db:"slug"`
	RemoteID       string    `db:"remote_id"`
	Description    string    `db:"description"`
	Website        string    `db:"website"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

/*
     Column      |          Type          | Nullable
-----------------+------------------------+---------
 username        | character varying(150) | not null
 full_name       | character varying(300) |
 email           | character varying(254) |
 organisation_id | uuid                   |
 is_admin        | boolean                | not null
 is_active       | boolean                | not null
Indexes:
    "users_pkey" PRIMARY KEY, btree (username)
Foreign-key constraints:
    "users_organisation_id_fkey" FOREIGN KEY (organisation_id) REFERENCES organisations(organisation_id) ON DELETE SET NULL

organisation_contributors (username, organisation_id) PRIMARY KEY
*/

// User is an account of the platform. Members of an organisation are the
// active users whose organisation_id points to it.
type User struct {
	Username       string     `db:"username"`
	FullName       string     `db:"full_name"`
	Email          string     `db:"email"`
	OrganisationID *uuid.UUID `db:"organisation_id"`
	IsAdmin        bool       `db:"is_admin"`
	IsActive       bool       `db:"is_active"`
}
