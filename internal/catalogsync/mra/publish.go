package mra

import (
	"context"

	"github.com/datasud/idgo/internal/catalogsync/remote"
)

// Publication lists what PublishLayers had to create. Objects that already
// existed are not listed.
type Publication struct {
	Workspace    bool
	Datastore    bool
	FeatureTypes []string
}

// PublishLayers makes every table available as a featuretype of the
// workspace, then enables the WMS and WFS endpoints of the workspace.
// The returned publication is valid even when err is not nil.
func (c *Client) PublishLayers(ctx context.Context, ws, ds string, tables []string, enabled bool) (*Publication, error) {
	pub := &Publication{}
	var err error
	if pub.Workspace, err = c.GetOrCreateWorkspace(ctx, ws); err != nil {
		return pub, err
	}
	if pub.Datastore, err = c.GetOrCreateDatastore(ctx, ws, ds); err != nil {
		return pub, err
	}
	for _, t := range tables {
		created, err := c.GetOrCreateFeatureType(ctx, ws, ds, t, enabled)
		if created {
			pub.FeatureTypes = append(pub.FeatureTypes, t)
		}
		if err != nil {
			return pub, err
		}
	}
	if err := c.SetWMS(ctx, ws, true); err != nil {
		return pub, err
	}
	if err := c.SetWFS(ctx, ws, true); err != nil {
		return pub, err
	}
	return pub, nil
}

// Unpublish removes a layer and its featuretype. Objects already gone are ignored.
func (c *Client) Unpublish(ctx context.Context, ws, ds, table string) error {
	if err := c.DeleteLayer(ctx, table); err != nil && !remote.IsNotFound(err) {
		return err
	}
	if err := c.DeleteFeatureType(ctx, ws, ds, table); err != nil && !remote.IsNotFound(err) {
		return err
	}
	return nil
}
