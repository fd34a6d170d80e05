// Package mra is a client for the REST API of the map layer registry.
package mra

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/catalogsync/remote"
	"github.com/datasud/idgo/internal/common/httpclient"
	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

const (
	service     = "mra"
	sldMimeType = "application/vnd.ogc.sld+xml; charset=utf-8"
)

// DatastoreParams are the connection parameters of the spatial store given
// to the datastores the client creates.
type DatastoreParams struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// Client calls the layer registry.
type Client struct {
	http      *httpclient.HTTPClient
	baseURL   string
	datastore DatastoreParams
}

// New returns a client. cfg usually carries basic auth credentials.
func New(cfg httpclient.Configurator, ds DatastoreParams, opts ...httpclient.ClientOptions) *Client {
	return &Client{
		http:      httpclient.NewClient(cfg, opts...),
		baseURL:   strings.TrimSuffix(cfg.GetServerURL(), "/") + "/",
		datastore: ds,
	}
}

// NewFromConfig returns a client for the [mra] section, creating datastores
// over the spatial store of the [datagis] section.
func NewFromConfig(c *config.MRAConfig, db *config.DBConfig) *Client {
	return New(httpclient.StaticConfig{
		ServerURL: c.URL,
		Username:  c.Username,
		Password:  c.Password,
		Timeout:   c.GetTimeout(),
	}, DatastoreParams{
		Host:     db.Host,
		Port:     db.Port,
		Database: db.DBName,
		User:     db.User,
		Password: db.Password,
	})
}

// resource builds "a/b/c.ext".
func resource(ext string, segments ...string) string {
	return path.Join(segments...) + "." + ext
}

func (c *Client) do(ctx context.Context, opts httpclient.RequestOptions) ([]byte, error) {
	body, _, err := c.http.DoRequest(ctx, opts)
	if err != nil {
		err = remote.Classify(service, err)
		log.Ctx(ctx).Debug().Err(err).Str("method", opts.Method).Str("path", opts.Path).
			Str("kind", string(remote.KindOf(err))).Msg("layer registry call failed")
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, p string) (gjson.Result, error) {
	body, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: p})
	if err != nil {
		return gjson.Result{}, err
	}
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return gjson.Result{}, nil
	}
	return gjson.ParseBytes(body), nil
}

func (c *Client) send(ctx context.Context, method, p string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return remote.ErrRemote.MsgErr("unable to encode request", err)
	}
	_, err = c.do(ctx, httpclient.RequestOptions{Method: method, Path: p, Body: body})
	return err
}

func (c *Client) delete(ctx context.Context, p string) error {
	_, err := c.do(ctx, httpclient.RequestOptions{Method: http.MethodDelete, Path: p})
	return err
}

// getOrCreate reads an object and creates it when the registry does not know it.
func (c *Client) getOrCreate(ctx context.Context, get func() error, create func() error) (created bool, err error) {
	err = get()
	if err == nil {
		return false, nil
	}
	if !remote.IsNotFound(err) {
		return false, err
	}
	if err := create(); err != nil {
		if !remote.IsAlreadyExists(err) {
			return false, err
		}
		// created by a concurrent call
		if gerr := get(); gerr != nil {
			return false, err
		}
		log.Ctx(ctx).Debug().Err(err).Msg("object created concurrently")
		return false, nil
	}
	// confirms the object is readable
	if err := get(); err != nil {
		return true, err
	}
	return true, nil
}

func (c *Client) GetWorkspace(ctx context.Context, ws string) error {
	_, err := c.get(ctx, resource("json", "workspaces", ws))
	return err
}

// GetOrCreateWorkspace reports whether the workspace had to be created.
func (c *Client) GetOrCreateWorkspace(ctx context.Context, ws string) (bool, error) {
	return c.getOrCreate(ctx,
		func() error { return c.GetWorkspace(ctx, ws) },
		func() error {
			return c.send(ctx, http.MethodPost, "workspaces.json", map[string]any{
				"workspace": map[string]any{"name": ws},
			})
		})
}

func (c *Client) DeleteWorkspace(ctx context.Context, ws string) error {
	return c.delete(ctx, resource("json", "workspaces", ws))
}

func (c *Client) GetDatastore(ctx context.Context, ws, ds string) error {
	_, err := c.get(ctx, resource("json", "workspaces", ws, "datastores", ds))
	return err
}

// GetOrCreateDatastore reports whether the datastore had to be created.
func (c *Client) GetOrCreateDatastore(ctx context.Context, ws, ds string) (bool, error) {
	return c.getOrCreate(ctx,
		func() error { return c.GetDatastore(ctx, ws, ds) },
		func() error {
			return c.send(ctx, http.MethodPost, resource("json", "workspaces", ws, "datastores"), map[string]any{
				"dataStore": map[string]any{
					"name": ds,
					"connectionParameters": map[string]any{
						"host":     c.datastore.Host,
						"user":     c.datastore.User,
						"database": c.datastore.Database,
						"dbtype":   "postgis",
						"password": c.datastore.Password,
						"port":     strconv.Itoa(c.datastore.Port),
					},
				},
			})
		})
}

func (c *Client) DeleteDatastore(ctx context.Context, ws, ds string) error {
	return c.delete(ctx, resource("json", "workspaces", ws, "datastores", ds))
}

func (c *Client) GetFeatureType(ctx context.Context, ws, ds, ft string) error {
	_, err := c.get(ctx, resource("json", "workspaces", ws, "datastores", ds, "featuretypes", ft))
	return err
}

// GetOrCreateFeatureType reports whether the featuretype had to be created.
// An existing featuretype is left as is, enabled or not.
func (c *Client) GetOrCreateFeatureType(ctx context.Context, ws, ds, ft string, enabled bool) (bool, error) {
	return c.getOrCreate(ctx,
		func() error { return c.GetFeatureType(ctx, ws, ds, ft) },
		func() error {
			return c.send(ctx, http.MethodPost, resource("json", "workspaces", ws, "datastores", ds, "featuretypes"), map[string]any{
				"featureType": map[string]any{
					"name":     ft,
					"title":    ft,
					"abstract": ft,
					"enabled":  enabled,
				},
			})
		})
}

func (c *Client) DeleteFeatureType(ctx context.Context, ws, ds, ft string) error {
	return c.delete(ctx, resource("json", "workspaces", ws, "datastores", ds, "featuretypes", ft))
}

// GetLayer returns the layer document.
func (c *Client) GetLayer(ctx context.Context, name string) ([]byte, error) {
	r, err := c.get(ctx, resource("json", "layers", name))
	if err != nil {
		return nil, err
	}
	return []byte(r.Get("layer").Raw), nil
}

func (c *Client) updateLayer(ctx context.Context, name string, layer any) error {
	return c.send(ctx, http.MethodPut, resource("json", "layers", name), map[string]any{"layer": layer})
}

// SetLayerEnabled shows or hides a layer. A disabled layer is kept.
func (c *Client) SetLayerEnabled(ctx context.Context, name string, enabled bool) error {
	return c.updateLayer(ctx, name, map[string]any{"enabled": enabled})
}

// SetLayerDefaultStyle points the default style of a layer to a registered style.
func (c *Client) SetLayerDefaultStyle(ctx context.Context, name, style string) error {
	layer, err := c.GetLayer(ctx, name)
	if err != nil {
		return err
	}
	if len(layer) == 0 {
		layer = []byte("{}")
	}
	if layer, err = sjson.SetBytes(layer, "defaultStyle.name", style); err == nil {
		layer, err = sjson.SetBytes(layer, "defaultStyle.href", fmt.Sprintf("%sstyles/%s.json", c.baseURL, style))
	}
	if err != nil {
		return remote.ErrRemote.MsgErr("unable to patch the layer", err)
	}
	return c.updateLayer(ctx, name, rawJSON(layer))
}

func (c *Client) DeleteLayer(ctx context.Context, name string) error {
	return c.delete(ctx, resource("json", "layers", name))
}

// GetStyle returns the SLD document of a style.
func (c *Client) GetStyle(ctx context.Context, name string) ([]byte, error) {
	return c.do(ctx, httpclient.RequestOptions{
		Method:      http.MethodGet,
		Path:        resource("sld", "styles", name),
		ContentType: sldMimeType,
	})
}

// CreateOrUpdateStyle replaces the SLD document of a style, creating the style
// when the registry does not know it.
func (c *Client) CreateOrUpdateStyle(ctx context.Context, name string, sld []byte) error {
	_, err := c.do(ctx, httpclient.RequestOptions{
		Method:      http.MethodPut,
		Path:        resource("sld", "styles", name),
		Body:        sld,
		ContentType: sldMimeType,
	})
	if !remote.IsNotFound(err) {
		return err
	}
	_, err = c.do(ctx, httpclient.RequestOptions{
		Method:      http.MethodPost,
		Path:        "styles.sld",
		QueryParams: map[string]string{"name": name},
		Body:        sld,
		ContentType: sldMimeType,
	})
	return err
}

func (c *Client) setService(ctx context.Context, ws, svc string, enabled bool) error {
	return c.send(ctx, http.MethodPut, resource("json", "services", "workspaces", ws, svc, "settings"), map[string]any{
		svc: map[string]any{"enabled": enabled},
	})
}

// SetWMS enables or disables the WMS endpoint of a workspace.
func (c *Client) SetWMS(ctx context.Context, ws string, enabled bool) error {
	return c.setService(ctx, ws, "wms", enabled)
}

// SetWFS enables or disables the WFS endpoint of a workspace.
func (c *Client) SetWFS(ctx context.Context, ws string, enabled bool) error {
	return c.setService(ctx, ws, "wfs", enabled)
}

type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return r, nil }
