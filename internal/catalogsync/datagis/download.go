package datagis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/datasud/idgo/internal/common/httpclient"
	"github.com/rs/zerolog/log"
)

// Download is a remote file saved in the work directory.
type Download struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
}

// Downloader fetches remote files with a size cap.
type Downloader struct {
	workDir   string
	sizeLimit int64
	timeout   time.Duration
	transport http.RoundTripper
}

func NewDownloader(workDir string, sizeLimit int64, timeout time.Duration) *Downloader {
	return &Downloader{workDir: workDir, sizeLimit: sizeLimit, timeout: timeout}
}

// WithTransport overrides the transport used for downloads.
func (d *Downloader) WithTransport(rt http.RoundTripper) *Downloader {
	d.transport = rt
	return d
}

// Fetch downloads rawURL. The returned cleanup removes the file and its
// directory and is never nil.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (*Download, func(), error) {
	noop := func() {}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, noop, ErrDownload.Msg("the URL is not valid")
	}

	client := httpclient.NewClient(httpclient.StaticConfig{
		ServerURL: rawURL,
		Timeout:   d.timeout,
	}, httpclient.ClientOptions{Transport: d.transport})

	body, header, err := client.StreamRequest(ctx, httpclient.RequestOptions{Method: http.MethodGet})
	if err != nil {
		return nil, noop, downloadError(err)
	}
	defer body.Close()

	dir, err := os.MkdirTemp(d.workDir, "download-")
	if err != nil {
		return nil, noop, ErrDownload.MsgErr("unable to store the file", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("failed to remove download directory")
		}
	}

	name := filenameOf(header, rawURL)
	dst := filepath.Join(dir, name)
	f, err := os.Create(dst)
	if err != nil {
		cleanup()
		return nil, noop, ErrDownload.MsgErr("unable to store the file", err)
	}
	defer f.Close()

	r := io.Reader(body)
	if d.sizeLimit > 0 {
		r = io.LimitReader(body, d.sizeLimit+1)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		cleanup()
		return nil, noop, downloadError(err)
	}
	if d.sizeLimit > 0 && n > d.sizeLimit {
		cleanup()
		return nil, noop, ErrSizeLimitExceeded.Msg(fmt.Sprintf(
			"the file size exceeds the allowed limit of %d bytes", d.sizeLimit))
	}

	log.Ctx(ctx).Debug().Str("url", rawURL).Int64("size", n).Msg("file downloaded")
	return &Download{
		Path:        dst,
		Filename:    name,
		ContentType: header.Get("Content-Type"),
		Size:        n,
	}, cleanup, nil
}

func downloadError(err error) error {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusNotFound:
			return ErrDownloadNotFound
		case http.StatusForbidden:
			return ErrDownloadForbidden
		case http.StatusUnauthorized:
			return ErrDownloadUnauthorized
		}
	}
	return ErrDownload.MsgErr("the download of the file failed", err)
}

// filenameOf prefers the name announced in Content-Disposition.
func filenameOf(header http.Header, rawURL string) string {
	if cd := header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := filepath.Base(params["filename"]); name != "" && name != "." && name != "/" {
				return name
			}
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
			return name
		}
	}
	return "download"
}

// ExtensionOf returns the lower-cased extension of a file name, without the dot.
func ExtensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
