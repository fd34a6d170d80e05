package apis

import (
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	jsonitor "github.com/json-iterator/go"

	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/extractor"
	"github.com/datasud/idgo/internal/common/httpx"
	"github.com/datasud/idgo/internal/common/uuid"
)

type extractionCommand struct {
	Resource     string              `json:"resource" validate:"required,uuid"`
	Layer        string              `json:"layer" validate:"required"`
	DstFormat    map[string]string   `json:"dst_format" validate:"required"`
	DstSRS       string              `json:"dst_srs"`
	Footprint    jsonitor.RawMessage `json:"footprint"`
	FootprintSRS string              `json:"footprint_srs"`
}

func (s *Service) submitTask(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}
	a, err := actorOf(ctx)
	if err != nil {
		return nil, err
	}
	if r.Body == nil {
		return nil, httpx.ErrInvalidRequest("request body is required")
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, readError(err)
	}
	var cmd extractionCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		return nil, httpx.ErrUnableToParseReqData()
	}
	if err := validateCommand(&cmd); err != nil {
		return nil, err
	}

	st := s.store(ctx)
	resourceID, _ := uuid.Parse(cmd.Resource)
	res, aerr := st.GetResource(ctx, resourceID)
	if aerr != nil {
		if errors.Is(aerr, dberror.ErrNotFound) {
			return nil, fieldError("resource", "unknown resource")
		}
		return nil, aerr
	}
	if !res.Extractable {
		return nil, fieldError("resource", "this resource cannot be extracted")
	}
	entry, aerr := st.GetResourceLedger(ctx, resourceID)
	if aerr != nil && !errors.Is(aerr, dberror.ErrNotFound) {
		return nil, aerr
	}
	if entry == nil || !slices.Contains(entry.Tables, cmd.Layer) {
		return nil, fieldError("layer", "unknown layer")
	}
	user, aerr := st.GetUser(ctx, a.Username)
	if aerr != nil {
		return nil, aerr
	}

	job := &extractor.Job{
		Requester: extractor.Requester{
			Username: user.Username,
			Email:    user.Email,
			LastName: user.FullName,
		},
		Source:       s.opts.ExtractorSource,
		DstFormat:    cmd.DstFormat,
		DstSRS:       cmd.DstSRS,
		Footprint:    cmd.Footprint,
		FootprintSRS: cmd.FootprintSRS,
		Layer:        cmd.Layer,
	}
	if job.DstSRS == "" {
		job.DstSRS = s.opts.DefaultDstSRS
	}
	if job.FootprintSRS == "" {
		job.FootprintSRS = s.opts.FootprintSRS
	}
	task, err := s.extractor.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/extractor/tasks/" + task.TaskID.String(),
		Response:   viewTask(task),
	}, nil
}

func (s *Service) getTask(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}
	a, err := actorOf(ctx)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		return nil, httpx.ErrNotFound("task")
	}
	task, err := s.extractor.Refresh(ctx, id)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, httpx.ErrNotFound("task")
		}
		return nil, err
	}
	if task.Username != a.Username && !a.IsAdmin {
		return nil, httpx.ErrNotFound("task")
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: viewTask(task)}, nil
}

func (s *Service) listTasks(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	a, err := actorOf(ctx)
	if err != nil {
		return nil, err
	}
	tasks, aerr := s.store(ctx).ListExtractorTasks(ctx, a.Username)
	if aerr != nil {
		return nil, aerr
	}
	views := []*taskView{}
	for _, t := range tasks {
		views = append(views, viewTask(t))
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: views}, nil
}
