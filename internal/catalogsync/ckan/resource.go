package ckan

import (
	"context"
	"fmt"

	"github.com/datasud/idgo/internal/catalogsync/remote"
)

func (c *Client) GetResource(ctx context.Context, id string) (*Object, error) {
	return c.show(ctx, "resource_show", id)
}

// PublishResource creates the resource with the given id in a package, or
// updates it when it exists.
func (c *Client) PublishResource(ctx context.Context, packageID, id string, params map[string]any) (created bool, err error) {
	current, err := c.GetResource(ctx, id)
	if err != nil && !remote.IsNotFound(err) {
		return false, err
	}

	if current == nil {
		body := make(map[string]any, len(params)+2)
		for k, v := range params {
			body[k] = v
		}
		body["id"] = id
		body["package_id"] = packageID
		_, err := c.call(ctx, "resource_create", body)
		return err == nil, err
	}

	doc, err := merge(current.Raw, params)
	if err != nil {
		return false, remote.ErrRemote.MsgErr("unable to merge resource", err)
	}
	_, err = c.call(ctx, "resource_update", jsonRaw(doc))
	return false, err
}

// UploadResource attaches a file to an existing resource.
func (c *Client) UploadResource(ctx context.Context, id, path string) error {
	_, err := c.upload(ctx, "resource_patch", map[string]string{"id": id}, path)
	return err
}

func (c *Client) DeleteResource(ctx context.Context, id string) error {
	_, err := c.call(ctx, "resource_delete", map[string]any{"id": id})
	return err
}

// jsonRaw is an already encoded action body.
type jsonRaw []byte

func (j jsonRaw) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return j, nil
}
