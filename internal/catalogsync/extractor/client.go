// Package extractor submits extraction jobs to the extraction service and
// keeps track of them.
package extractor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/datasud/idgo/internal/catalogsync/config"
	"github.com/datasud/idgo/internal/common/httpclient"
	"github.com/datasud/idgo/internal/common/uuid"
	jsonitor "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

var json = jsonitor.ConfigCompatibleWithStandardLibrary

// Requester identifies who asked for an extraction.
type Requester struct {
	Username  string `json:"user_id"`
	Email     string `json:"user_email_address"`
	LastName  string `json:"user_name"`
	FirstName string `json:"user_first_name"`
	Company   string `json:"user_company"`
	Address   string `json:"user_address"`
}

// Job describes an extraction.
type Job struct {
	Requester
	Source       string              `json:"source"`
	DstFormat    map[string]string   `json:"dst_format"`
	DstSRS       string              `json:"dst_srs"`
	Footprint    jsonitor.RawMessage `json:"footprint"`
	FootprintSRS string              `json:"footprint_srs"`
	Layer        string              `json:"layer"`
}

// Submission is the answer to an accepted job.
type Submission struct {
	TaskID             uuid.UUID
	SubmissionDatetime *time.Time
	Details            []byte
}

// Status of a submitted job.
type Status struct {
	Done    bool
	Success bool
	Details []byte
}

type Client struct {
	http *httpclient.HTTPClient
}

func New(cfg httpclient.Configurator, opts ...httpclient.ClientOptions) *Client {
	return &Client{http: httpclient.NewClient(cfg, opts...)}
}

func NewFromConfig(c *config.ExtractorConfig) *Client {
	return New(httpclient.StaticConfig{ServerURL: c.URL, Timeout: c.GetTimeout()})
}

// Submit posts a job. A job rejected by the service carries its explanation.
func (c *Client) Submit(ctx context.Context, job *Job) (*Submission, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return nil, ErrExtractor.MsgErr("unable to encode the job", err)
	}
	data, err := c.http.Post(ctx, "", body, nil)
	if err != nil {
		return nil, classify(ctx, err)
	}

	id, err := uuid.Parse(gjson.GetBytes(data, "task_id").String())
	if err != nil {
		return nil, ErrInvalidResponse.Err(err)
	}
	sub := &Submission{TaskID: id, Details: data}
	if s := gjson.GetBytes(data, "submission_datetime").String(); s != "" {
		if t, err := parseTime(s); err == nil {
			sub.SubmissionDatetime = &t
		}
	}
	return sub, nil
}

// Status returns the state of a submitted job.
func (c *Client) Status(ctx context.Context, taskID uuid.UUID) (*Status, error) {
	data, err := c.http.Get(ctx, taskID.String(), nil)
	if err != nil {
		return nil, classify(ctx, err)
	}
	st := &Status{Details: data}
	switch gjson.GetBytes(data, "status").String() {
	case "SUCCESS":
		st.Done, st.Success = true, true
	case "FAILURE", "REVOKED":
		st.Done = true
	}
	return st, nil
}

func classify(ctx context.Context, err error) error {
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest {
		return ErrExtractionRejected.MsgErr(httpErr.Message, err)
	}
	log.Ctx(ctx).Error().Err(err).Msg("extraction service call failed")
	return ErrExtractorUnavailable.Err(err)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized time format: " + s)
}
