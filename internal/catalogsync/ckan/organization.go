package ckan

import (
	"context"
)

// OrganizationParams describes the remote counterpart of an organisation.
type OrganizationParams struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
	Website     string `json:"website,omitempty"`
}

func (p OrganizationParams) fields() map[string]any {
	f := map[string]any{
		"name":        p.Name,
		"title":       p.Title,
		"description": p.Description,
	}
	if p.ID != "" {
		f["id"] = p.ID
	}
	if p.ImageURL != "" {
		f["image_url"] = p.ImageURL
	}
	if p.Website != "" {
		f["extras"] = []map[string]string{{"key": "website", "value": p.Website}}
	}
	return f
}

func (c *Client) GetOrganization(ctx context.Context, id string) (*Object, error) {
	return c.show(ctx, "organization_show", id)
}

func (c *Client) CreateOrganization(ctx context.Context, p OrganizationParams) (*Object, error) {
	f := p.fields()
	f["state"] = "active"
	r, err := c.call(ctx, "organization_create", f)
	if err != nil {
		return nil, err
	}
	return objectOf(r), nil
}

// UpdateOrganization patches the organisation, leaving its members untouched.
func (c *Client) UpdateOrganization(ctx context.Context, p OrganizationParams) error {
	_, err := c.call(ctx, "organization_patch", p.fields())
	return err
}

// ActivateOrganization brings back an organisation soft-deleted upstream.
func (c *Client) ActivateOrganization(ctx context.Context, id string) error {
	_, err := c.call(ctx, "organization_patch", map[string]any{"id": id, "state": "active"})
	return err
}

// DeactivateOrganizationIfEmpty soft-deletes the organisation when it holds
// no dataset, private ones included. It reports whether it did.
func (c *Client) DeactivateOrganizationIfEmpty(ctx context.Context, id string) (bool, error) {
	r, err := c.call(ctx, "package_search", map[string]any{
		"fq":              "owner_org:" + id,
		"rows":            0,
		"include_private": true,
	})
	if err != nil {
		return false, err
	}
	if r.Get("count").Int() > 0 {
		return false, nil
	}
	if _, err := c.call(ctx, "organization_patch", map[string]any{"id": id, "state": "deleted"}); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) PurgeOrganization(ctx context.Context, id string) error {
	_, err := c.call(ctx, "organization_purge", map[string]any{"id": id})
	return err
}

// AddOrganizationMember grants username the given capacity in the organisation.
// Adding an existing member updates its capacity.
func (c *Client) AddOrganizationMember(ctx context.Context, id, username, capacity string) error {
	if capacity == "" {
		capacity = "editor"
	}
	_, err := c.call(ctx, "organization_member_create", map[string]any{
		"id":       id,
		"username": username,
		"role":     capacity,
	})
	return err
}

func (c *Client) RemoveOrganizationMember(ctx context.Context, id, username string) error {
	_, err := c.call(ctx, "organization_member_delete", map[string]any{"id": id, "username": username})
	return err
}
