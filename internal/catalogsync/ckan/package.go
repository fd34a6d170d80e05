package ckan

import (
	"context"

	"github.com/datasud/idgo/internal/catalogsync/remote"
)

// GetPackage returns the package with the given id or name.
func (c *Client) GetPackage(ctx context.Context, id string) (*Object, error) {
	return c.show(ctx, "package_show", id)
}

// PublishPackage creates the package with the given id, or updates it when it
// exists. On update params are merged into the current package so that the
// members the platform does not manage, resources included, survive.
func (c *Client) PublishPackage(ctx context.Context, id string, params map[string]any) (pkg *Object, created bool, err error) {
	current, err := c.GetPackage(ctx, id)
	if err != nil && !remote.IsNotFound(err) {
		return nil, false, err
	}

	if current == nil {
		body := make(map[string]any, len(params)+1)
		for k, v := range params {
			body[k] = v
		}
		body["id"] = id
		r, err := c.call(ctx, "package_create", body)
		if err != nil {
			return nil, false, err
		}
		return objectOf(r), true, nil
	}

	doc, err := merge(current.Raw, params)
	if err != nil {
		return nil, false, remote.ErrRemote.MsgErr("unable to merge package", err)
	}
	r, err := c.call(ctx, "package_update", jsonRaw(doc))
	if err != nil {
		return nil, false, err
	}
	return objectOf(r), false, nil
}

// PurgePackage removes the package and its resources for good.
func (c *Client) PurgePackage(ctx context.Context, id string) error {
	_, err := c.call(ctx, "dataset_purge", map[string]any{"id": id})
	return err
}
