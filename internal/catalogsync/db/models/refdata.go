package models

import (
	"fmt"

	"github.com/datasud/idgo/internal/common/uuid"
)

// License of a dataset. LicenseID is also the identifier in the remote catalog.
type License struct {
	LicenseID string `db:"license_id" json:"id" mapstructure:"id" validate:"required"`
	Title     string `db:"title" json:"title" mapstructure:"title" validate:"required"`
	URL       string `db:"url" json:"url,omitempty" mapstructure:"url"`
}

// Category is published as a remote catalog group.
type Category struct {
	CategoryID  uuid.UUID `db:"category_id" json:"-" mapstructure:"-"`
	Slug        string    `db:"slug" json:"slug" mapstructure:"slug" validate:"required"`
	Name        string    `db:"name" json:"name" mapstructure:"name" validate:"required"`
	Description string    `db:"description" json:"description,omitempty" mapstructure:"description"`
	RemoteID    string    `db:"remote_id" json:"remote_id,omitempty" mapstructure:"-"`
}

type DataType struct {
	Slug string `db:"slug" json:"slug" mapstructure:"slug" validate:"required"`
	Name string `db:"name" json:"name" mapstructure:"name" validate:"required"`
}

// Support is the body maintaining a dataset.
type Support struct {
	Slug  string `db:"slug" json:"slug" mapstructure:"slug" validate:"required"`
	Name  string `db:"name" json:"name" mapstructure:"name" validate:"required"`
	Email string `db:"email" json:"email,omitempty" mapstructure:"email" validate:"omitempty,email"`
}

// SupportedCrs lists the coordinate systems accepted for imported layers.
type SupportedCrs struct {
	AuthName    string `db:"auth_name" json:"auth_name" mapstructure:"auth_name" validate:"required"`
	AuthCode    string `db:"auth_code" json:"auth_code" mapstructure:"auth_code" validate:"required"`
	Description string `db:"description" json:"description" mapstructure:"description"`
}

// String returns "EPSG:2154" style identifiers.
func (c *SupportedCrs) String() string {
	return fmt.Sprintf("%s:%s", c.AuthName, c.AuthCode)
}

// ResourceFormat describes an accepted file format.
type ResourceFormat struct {
	Extension   string `db:"extension" json:"extension" mapstructure:"extension" validate:"required"`
	Description string `db:"description" json:"description" mapstructure:"description"`
	CkanView    string `db:"ckan_view" json:"ckan_view,omitempty" mapstructure:"ckan_view"`
	IsGis       bool   `db:"is_gis" json:"is_gis" mapstructure:"is_gis"`
}
