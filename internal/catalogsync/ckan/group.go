package ckan

import (
	"context"
)

// GroupParams describes the remote counterpart of a category.
type GroupParams struct {
	ID          string
	Name        string
	Title       string
	Description string
}

func (p GroupParams) fields() map[string]any {
	f := map[string]any{
		"name":        p.Name,
		"title":       p.Title,
		"description": p.Description,
		"type":        "group",
	}
	if p.ID != "" {
		f["id"] = p.ID
	}
	return f
}

func (c *Client) GetGroup(ctx context.Context, id string) (*Object, error) {
	return c.show(ctx, "group_show", id)
}

func (c *Client) CreateGroup(ctx context.Context, p GroupParams) (*Object, error) {
	r, err := c.call(ctx, "group_create", p.fields())
	if err != nil {
		return nil, err
	}
	return objectOf(r), nil
}

func (c *Client) UpdateGroup(ctx context.Context, p GroupParams) error {
	_, err := c.call(ctx, "group_patch", p.fields())
	return err
}

// DeleteGroup purges the group.
func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	_, err := c.call(ctx, "group_purge", map[string]any{"id": id})
	return err
}

func (c *Client) AddGroupMember(ctx context.Context, id, username string) error {
	_, err := c.call(ctx, "group_member_create", map[string]any{
		"id":       id,
		"username": username,
		"role":     "member",
	})
	return err
}
