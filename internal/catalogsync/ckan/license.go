package ckan

import (
	"context"
	"slices"
)

// License is a license the catalog accepts.
type License struct {
	ID    string
	Title string
	URL   string
}

// Licenses returns the licenses the catalog accepts. Concurrent callers share
// a single request.
func (c *Client) Licenses(ctx context.Context) ([]License, error) {
	v, err, _ := c.licenses.Do("license_list", func() (any, error) {
		r, err := c.call(ctx, "license_list", map[string]any{})
		if err != nil {
			return nil, err
		}
		var out []License
		for _, l := range r.Array() {
			out = append(out, License{
				ID:    l.Get("id").String(),
				Title: l.Get("title").String(),
				URL:   l.Get("url").String(),
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]License)), nil
}

// LicenseIDs returns the identifiers of the licenses the catalog accepts.
func (c *Client) LicenseIDs(ctx context.Context) ([]string, error) {
	licenses, err := c.Licenses(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(licenses))
	for _, l := range licenses {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// HasLicense reports whether the catalog accepts the license.
func (c *Client) HasLicense(ctx context.Context, id string) (bool, error) {
	ids, err := c.LicenseIDs(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, id), nil
}
