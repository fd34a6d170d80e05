// Package ckan is a client for the action API of the remote catalog.
// Every failure is classified with the remote package and returned as is:
// the client never retries and never swallows errors.
package ckan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/catalogsync/remote"
	"github.com/datasud/idgo/internal/common/httpclient"
	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/singleflight"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

const service = "ckan"

// Object is the part of a catalog object the synchronization relies on.
// Raw holds the complete document as returned by the catalog.
type Object struct {
	ID    string
	Name  string
	State string
	Raw   []byte
}

// IsDeleted reports whether the object was soft-deleted upstream.
func (o *Object) IsDeleted() bool {
	return o != nil && o.State == "deleted"
}

func objectOf(r gjson.Result) *Object {
	return &Object{
		ID:    r.Get("id").String(),
		Name:  r.Get("name").String(),
		State: r.Get("state").String(),
		Raw:   []byte(r.Raw),
	}
}

// Client calls the catalog on behalf of the platform.
type Client struct {
	http     *httpclient.HTTPClient
	licenses singleflight.Group
}

// New returns a client authenticating with the API key of cfg.
func New(cfg httpclient.Configurator, opts ...httpclient.ClientOptions) *Client {
	return &Client{http: httpclient.NewClient(cfg, opts...)}
}

// NewFromConfig returns a client for the [ckan] configuration section.
func NewFromConfig(c *config.CkanConfig) *Client {
	return New(httpclient.StaticConfig{
		ServerURL: c.URL,
		APIKey:    c.APIKey,
		Timeout:   c.GetTimeout(),
	})
}

func actionPath(action string) string {
	return "api/3/action/" + action
}

// call posts params to an action and returns its result member.
func (c *Client) call(ctx context.Context, action string, params any) (gjson.Result, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return gjson.Result{}, remote.ErrRemote.MsgErr("unable to encode "+action+" parameters", err)
	}
	data, err := c.http.Post(ctx, actionPath(action), body, nil)
	if err != nil {
		err = remote.Classify(service, err)
		log.Ctx(ctx).Debug().Err(err).Str("action", action).Str("kind", string(remote.KindOf(err))).Msg("catalog call failed")
		return gjson.Result{}, err
	}
	return parseResult(action, data)
}

func parseResult(action string, data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, remote.ErrRemoteUnavailable.Msg(fmt.Sprintf("%s: %s returned an invalid document", service, action))
	}
	if !gjson.GetBytes(data, "success").Bool() {
		return gjson.Result{}, remote.ErrRemoteUnavailable.Msg(fmt.Sprintf("%s: %s failed: %s", service, action, gjson.GetBytes(data, "error").Raw))
	}
	return gjson.GetBytes(data, "result"), nil
}

// show calls one of the *_show actions.
func (c *Client) show(ctx context.Context, action, id string) (*Object, error) {
	r, err := c.call(ctx, action, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return objectOf(r), nil
}

var pathEscaper = strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)

// merge sets every entry of params on a copy of doc. Members of doc that
// params does not name are kept, the resources of a package among them.
func merge(doc []byte, params map[string]any) ([]byte, error) {
	out := append([]byte(nil), doc...)
	for k, v := range params {
		var err error
		if out, err = sjson.SetBytes(out, pathEscaper.Replace(k), v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// upload sends a file with a multipart action call.
func (c *Client) upload(ctx context.Context, action string, fields map[string]string, path string) (gjson.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return gjson.Result{}, remote.ErrRemote.MsgErr("unable to open the file to upload", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return gjson.Result{}, remote.ErrRemote.Err(err)
		}
	}
	part, err := w.CreateFormFile("upload", filepath.Base(path))
	if err != nil {
		return gjson.Result{}, remote.ErrRemote.Err(err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return gjson.Result{}, remote.ErrRemote.Err(err)
	}
	if err := w.Close(); err != nil {
		return gjson.Result{}, remote.ErrRemote.Err(err)
	}

	data, _, err := c.http.DoRequest(ctx, httpclient.RequestOptions{
		Method:      http.MethodPost,
		Path:        actionPath(action),
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	})
	if err != nil {
		return gjson.Result{}, remote.Classify(service, err)
	}
	return parseResult(action, data)
}
