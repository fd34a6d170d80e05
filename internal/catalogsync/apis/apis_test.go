package apis

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/datasud/idgo/internal/catalogsync/catcommon"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/reconciler"
	"github.com/datasud/idgo/internal/catalogsync/remote"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
)

type fixture struct {
	st      *memStore
	rec     *fakeReconciler
	ext     *fakeExtractor
	router  chi.Router
	org     *models.Organisation
	dataset *models.Dataset
	uploads string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := newMemStore()
	org := &models.Organisation{OrganisationID: uuid.New(), Slug: "commune-de-test", Name: "Commune de Test"}
	other := &models.Organisation{OrganisationID: uuid.New(), Slug: "autre", Name: "Autre"}
	st.orgs[org.OrganisationID] = org
	st.orgs[other.OrganisationID] = other
	st.contributors[org.OrganisationID] = []string{"alice"}
	st.users["alice"] = &models.User{Username: "alice", FullName: "Alice", Email: "alice@example.org"}
	st.users["bob"] = &models.User{Username: "bob"}

	orgID := org.OrganisationID
	d := &models.Dataset{
		DatasetID:      uuid.New(),
		Title:          "Réseau cyclable",
		Slug:           "reseau-cyclable",
		OrganisationID: &orgID,
		LicenseID:      "lov2",
		Keywords:       []string{"vélo"},
		Categories:     []string{"transports"},
		Editor:         "bob",
		RemoteID:       "pkg-1",
	}
	st.datasets[d.DatasetID] = d

	rec := &fakeReconciler{st: st}
	ext := &fakeExtractor{}
	uploads := t.TempDir()
	svc := New(func(context.Context) Store { return st }, rec, ext, Options{
		UploadDir:       uploads,
		ExtractorSource: "PG:dbname=datagis",
		DefaultDstSRS:   "EPSG:2154",
		FootprintSRS:    "EPSG:4326",
	})
	return &fixture{
		st:      st,
		rec:     rec,
		ext:     ext,
		router:  svc.Router(chi.NewRouter()),
		org:     org,
		dataset: d,
		uploads: uploads,
	}
}

func (f *fixture) do(t *testing.T, actor string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if actor != "" {
		req = req.WithContext(catcommon.WithActor(req.Context(), &catcommon.Actor{Username: actor}))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func formRequest(method, target string, v url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(v.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateDatasetAliases(t *testing.T) {
	f := newFixture(t)
	rsp := f.do(t, "alice", formRequest(http.MethodPost, "/datasets", url.Values{
		"title":        {"Communes 2024"},
		"name":         {"communes-2024"},
		"organisation": {"commune-de-test"},
		"license":      {"lov2"},
		"type":         {"vecteur", "raster"},
		"category":     {"environnement"},
		"keyword":      {"limites, communes"},
		"private":      {"false"},
	}))

	require.Equal(t, http.StatusCreated, rsp.Code, rsp.Body.String())
	assert.Equal(t, "/datasets/communes-2024", rsp.Header().Get("Location"))
	require.Len(t, f.rec.datasets, 1)
	d := f.rec.datasets[0]
	assert.Equal(t, "communes-2024", d.Slug)
	assert.Equal(t, []string{"vecteur", "raster"}, d.DataTypes)
	assert.Equal(t, []string{"environnement"}, d.Categories)
	assert.Equal(t, []string{"limites", "communes"}, d.Keywords)
	assert.True(t, d.Published)
	assert.Equal(t, "alice", d.Editor)
	assert.Equal(t, f.org.OrganisationID, *d.OrganisationID)

	body := rsp.Body.Bytes()
	assert.Equal(t, "communes-2024", gjson.GetBytes(body, "dataset.name").String())
	assert.False(t, gjson.GetBytes(body, "dataset.private").Bool())
	assert.Equal(t, "committed", gjson.GetBytes(body, "outcome.state").String())
}

func TestCreateDatasetCanonicalKeyWins(t *testing.T) {
	f := newFixture(t)
	rsp := f.do(t, "alice", jsonRequest(http.MethodPost, "/datasets", `{
		"title": "Communes", "slug": "communes", "name": "ignored",
		"organisation": "commune-de-test", "license": "lov2",
		"published": true, "private": true, "keywords": ["a", "b"]
	}`))

	require.Equal(t, http.StatusCreated, rsp.Code, rsp.Body.String())
	d := f.rec.datasets[0]
	assert.Equal(t, "communes", d.Slug)
	assert.True(t, d.Published)
	assert.Equal(t, []string{"a", "b"}, d.Keywords)
}

func TestCreateDatasetRejected(t *testing.T) {
	tests := []struct {
		name       string
		actor      string
		body       string
		wantStatus int
		wantField  string
	}{
		{"no actor", "", `{"title": "t", "organisation": "commune-de-test", "license": "lov2"}`, http.StatusUnauthorized, ""},
		{"missing license", "alice", `{"title": "t", "organisation": "commune-de-test"}`, http.StatusBadRequest, "license"},
		{"bad slug", "alice", `{"title": "t", "name": "Not A Slug", "organisation": "commune-de-test", "license": "lov2"}`, http.StatusBadRequest, "slug"},
		{"unknown organisation", "alice", `{"title": "t", "organisation": "nope", "license": "lov2"}`, http.StatusBadRequest, "organisation"},
		{"bad frequency", "alice", `{"title": "t", "organisation": "commune-de-test", "license": "lov2", "update_frequency": "hourly"}`, http.StatusBadRequest, "update_frequency"},
		{"bad private", "alice", `{"title": "t", "organisation": "commune-de-test", "license": "lov2", "private": "maybe"}`, http.StatusBadRequest, "private"},
		{"bad date", "alice", `{"title": "t", "organisation": "commune-de-test", "license": "lov2", "date_creation": "17/05/2024"}`, http.StatusBadRequest, "date_creation"},
		{"not a contributor", "bob", `{"title": "t", "organisation": "commune-de-test", "license": "lov2"}`, http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rsp := f.do(t, tt.actor, jsonRequest(http.MethodPost, "/datasets", tt.body))
			assert.Equal(t, tt.wantStatus, rsp.Code, rsp.Body.String())
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, gjson.Get(rsp.Body.String(), "field").String())
			}
			assert.Empty(t, f.rec.datasets)
		})
	}
}

func TestUpdateDatasetKeepsUnsetFields(t *testing.T) {
	f := newFixture(t)
	rsp := f.do(t, "bob", jsonRequest(http.MethodPut, "/datasets/reseau-cyclable", `{"title": "Réseau cyclable 2024"}`))

	require.Equal(t, http.StatusOK, rsp.Code, rsp.Body.String())
	d := f.rec.datasets[0]
	assert.Equal(t, f.dataset.DatasetID, d.DatasetID)
	assert.Equal(t, "Réseau cyclable 2024", d.Title)
	assert.Equal(t, "reseau-cyclable", d.Slug)
	assert.Equal(t, "lov2", d.LicenseID)
	assert.Equal(t, []string{"vélo"}, d.Keywords)
	assert.Equal(t, []string{"transports"}, d.Categories)
	assert.Equal(t, "pkg-1", d.RemoteID)
}

func TestUpdateDatasetReplacesLists(t *testing.T) {
	f := newFixture(t)
	f.st.datasets[f.dataset.DatasetID].Keywords = []string{"a", "b", "c"}
	rsp := f.do(t, "bob", jsonRequest(http.MethodPut, "/datasets/reseau-cyclable", `{"keyword": "d"}`))

	require.Equal(t, http.StatusOK, rsp.Code, rsp.Body.String())
	assert.Equal(t, []string{"d"}, f.rec.datasets[0].Keywords)
}

func TestUpdateDatasetMoveRequiresContribution(t *testing.T) {
	f := newFixture(t)
	rsp := f.do(t, "alice", jsonRequest(http.MethodPut, "/datasets/reseau-cyclable", `{"organisation": "autre"}`))
	assert.Equal(t, http.StatusForbidden, rsp.Code)
	assert.Empty(t, f.rec.datasets)

	rsp = f.do(t, "carol", jsonRequest(http.MethodPut, "/datasets/reseau-cyclable", `{"title": "x"}`))
	assert.Equal(t, http.StatusForbidden, rsp.Code)

	rsp = f.do(t, "bob", jsonRequest(http.MethodPut, "/datasets/inconnu", `{"title": "x"}`))
	assert.Equal(t, http.StatusNotFound, rsp.Code)
}

func TestReconcilerErrorsReachTheCaller(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantField  string
	}{
		{"remote unavailable", remote.ErrRemoteUnavailable.Msg("bad gateway"), http.StatusBadGateway, apperrors.FieldAll},
		{"remote timeout", remote.ErrRemoteTimeout.Msg("timeout"), http.StatusGatewayTimeout, apperrors.FieldAll},
		{"field error", reconciler.ErrValidation.Msg("unknown category").SetField("categories"), http.StatusBadRequest, "categories"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.rec.err = tt.err
			rsp := f.do(t, "bob", jsonRequest(http.MethodPut, "/datasets/reseau-cyclable", `{"title": "x"}`))
			assert.Equal(t, tt.wantStatus, rsp.Code)
			assert.Equal(t, tt.wantField, gjson.Get(rsp.Body.String(), "field").String())
			assert.Equal(t, "Réseau cyclable", f.st.datasets[f.dataset.DatasetID].Title)
		})
	}
}

func TestListAndDeleteDatasets(t *testing.T) {
	f := newFixture(t)
	rsp := f.do(t, "alice", httptest.NewRequest(http.MethodGet, "/datasets", nil))
	require.Equal(t, http.StatusOK, rsp.Code)
	list := gjson.Parse(rsp.Body.String()).Array()
	require.Len(t, list, 1)
	assert.Equal(t, "commune-de-test", list[0].Get("organisation").String())

	rsp = f.do(t, "carol", httptest.NewRequest(http.MethodGet, "/datasets", nil))
	assert.JSONEq(t, `[]`, rsp.Body.String())

	rsp = f.do(t, "alice", httptest.NewRequest(http.MethodDelete, "/datasets/reseau-cyclable", nil))
	assert.Equal(t, http.StatusNoContent, rsp.Code)
	assert.Equal(t, []uuid.UUID{f.dataset.DatasetID}, f.rec.deleted)
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("up_file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestCreateResourceUpload(t *testing.T) {
	f := newFixture(t)
	rsp := f.do(t, "bob", multipartRequest(t, http.MethodPost, "/datasets/reseau-cyclable/resources", map[string]string{
		"title":            "Pistes",
		"type":             "raw",
		"restricted_level": "only_allowed_users",
		"restricted_list":  "alice,bob",
		"crs":              "EPSG:2154",
	}, "pistes.zip", []byte("PK\x03\x04")))

	require.Equal(t, http.StatusCreated, rsp.Code, rsp.Body.String())
	require.Len(t, f.rec.resources, 1)
	ch := f.rec.resources[0]
	res := ch.Resource
	assert.Equal(t, 2154, ch.EPSG)
	assert.Equal(t, "Pistes", res.Name)
	assert.Equal(t, "zip", res.Format)
	assert.Equal(t, catcommon.LevelAllowedUsers, res.RestrictionLevel)
	assert.Equal(t, []string{"alice", "bob"}, res.AllowedUsers)
	assert.True(t, res.OgcServices)
	assert.True(t, res.Extractable)
	assert.Equal(t, f.dataset.DatasetID, *res.DatasetID)
	require.NotEmpty(t, res.UpFile)
	assert.True(t, strings.HasPrefix(res.UpFile, f.uploads))
	content, err := os.ReadFile(res.UpFile)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), content)

	body := rsp.Body.String()
	assert.Equal(t, "uploaded", gjson.Get(body, "resource.source.type").String())
	assert.Equal(t, "pistes.zip", gjson.Get(body, "resource.source.filename").String())
}

func TestCreateResourceServiceFlags(t *testing.T) {
	tests := []struct {
		name            string
		fields          map[string]string
		wantExtractable bool
		wantOgc         bool
	}{
		{"defaults", map[string]string{}, true, true},
		{"not extractable", map[string]string{"extractable": "false"}, false, true},
		{"no ogc services", map[string]string{"ogc_services": "false"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.fields["title"] = "Pistes"
			tt.fields["referenced_url"] = "https://example.org/pistes.pdf"
			rsp := f.do(t, "bob", multipartRequest(t, http.MethodPost, "/datasets/reseau-cyclable/resources", tt.fields, "", nil))
			require.Equal(t, http.StatusCreated, rsp.Code, rsp.Body.String())
			require.Len(t, f.rec.resources, 1)
			res := f.rec.resources[0].Resource
			assert.Equal(t, tt.wantExtractable, res.Extractable)
			assert.Equal(t, tt.wantOgc, res.OgcServices)
		})
	}
}

func TestCreateResourceFailureRemovesUpload(t *testing.T) {
	f := newFixture(t)
	f.rec.err = reconciler.ErrValidation.Msg("not spatial").SetField("up_file")
	rsp := f.do(t, "bob", multipartRequest(t, http.MethodPost, "/datasets/reseau-cyclable/resources",
		map[string]string{"title": "Pistes"}, "pistes.zip", []byte("PK")))

	assert.Equal(t, http.StatusBadRequest, rsp.Code)
	assert.Equal(t, "up_file", gjson.Get(rsp.Body.String(), "field").String())
	entries, err := os.ReadDir(filepath.Join(f.uploads, f.rec.resources[0].Resource.ResourceID.String()))
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestCreateResourceRestrictionList(t *testing.T) {
	tests := []struct {
		name      string
		fields    map[string]string
		wantField string
		check     func(t *testing.T, res *models.Resource)
	}{
		{
			name:      "unknown user",
			fields:    map[string]string{"title": "r", "restricted_level": "2", "restricted_list": "alice,zoe"},
			wantField: "restricted_list",
		},
		{
			name:      "unknown organisation",
			fields:    map[string]string{"title": "r", "restricted_level": "any_organization", "restricted_list": "nope"},
			wantField: "restricted_list",
		},
		{
			name:      "unknown level",
			fields:    map[string]string{"title": "r", "restricted_level": "secret"},
			wantField: "restriction_level",
		},
		{
			name:   "organisations",
			fields: map[string]string{"title": "r", "restricted_level": "any_organization", "restricted_list": "autre, commune-de-test", "referenced_url": "https://example.org/doc.pdf"},
			check: func(t *testing.T, res *models.Resource) {
				assert.Equal(t, catcommon.LevelAnyOrganisation, res.RestrictionLevel)
				assert.Len(t, res.AllowedOrgs, 2)
				assert.Nil(t, res.AllowedUsers)
				assert.Empty(t, res.UpFile)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rsp := f.do(t, "bob", multipartRequest(t, http.MethodPost, "/datasets/reseau-cyclable/resources", tt.fields, "", nil))
			if tt.wantField != "" {
				assert.Equal(t, http.StatusBadRequest, rsp.Code)
				assert.Equal(t, tt.wantField, gjson.Get(rsp.Body.String(), "field").String())
				assert.Empty(t, f.rec.resources)
				return
			}
			require.Equal(t, http.StatusCreated, rsp.Code, rsp.Body.String())
			tt.check(t, f.rec.resources[0].Resource)
		})
	}
}

func TestUpdateResource(t *testing.T) {
	f := newFixture(t)
	old := filepath.Join(f.uploads, "old", "v1", "pistes.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(old), 0o750))
	require.NoError(t, os.WriteFile(old, []byte("PK"), 0o640))
	res := &models.Resource{
		ResourceID:       uuid.New(),
		DatasetID:        &f.dataset.DatasetID,
		Name:             "Pistes",
		UpFile:           old,
		Format:           "zip",
		RestrictionLevel: catcommon.LevelPublic,
		OgcServices:      true,
	}
	f.st.resources[res.ResourceID] = res
	target := "/datasets/reseau-cyclable/resources/" + res.ResourceID.String()

	// metadata only: the file stays
	rsp := f.do(t, "bob", formRequest(http.MethodPut, target, url.Values{"ogc_services": {"false"}}))
	require.Equal(t, http.StatusOK, rsp.Code, rsp.Body.String())
	got := f.rec.resources[0].Resource
	assert.False(t, got.OgcServices)
	assert.Equal(t, old, got.UpFile)
	assert.Equal(t, "Pistes", got.Name)
	assert.FileExists(t, old)

	// a download URL replaces the uploaded file
	rsp = f.do(t, "bob", formRequest(http.MethodPut, target, url.Values{"dl_url": {"https://example.org/pistes.zip"}}))
	require.Equal(t, http.StatusOK, rsp.Code, rsp.Body.String())
	got = f.rec.resources[1].Resource
	assert.Empty(t, got.UpFile)
	assert.Equal(t, "https://example.org/pistes.zip", got.DlURL)
	assert.NoFileExists(t, old)

	rsp = f.do(t, "bob", formRequest(http.MethodPut, "/datasets/reseau-cyclable/resources/"+uuid.New().String(), url.Values{}))
	assert.Equal(t, http.StatusNotFound, rsp.Code)
}

func TestDeleteResource(t *testing.T) {
	f := newFixture(t)
	res := &models.Resource{ResourceID: uuid.New(), DatasetID: &f.dataset.DatasetID, Name: "Pistes"}
	f.st.resources[res.ResourceID] = res

	rsp := f.do(t, "bob", httptest.NewRequest(http.MethodGet, "/datasets/reseau-cyclable/resources", nil))
	require.Equal(t, http.StatusOK, rsp.Code)
	assert.Len(t, gjson.Parse(rsp.Body.String()).Array(), 1)

	rsp = f.do(t, "bob", httptest.NewRequest(http.MethodDelete, "/datasets/reseau-cyclable/resources/"+res.ResourceID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rsp.Code)
	assert.Equal(t, []uuid.UUID{res.ResourceID}, f.rec.deleted)
}

func TestSubmitExtraction(t *testing.T) {
	f := newFixture(t)
	res := &models.Resource{ResourceID: uuid.New(), DatasetID: &f.dataset.DatasetID, Name: "Pistes", Extractable: true}
	f.st.resources[res.ResourceID] = res
	f.st.ledger[res.ResourceID] = &models.ResourceLedger{ResourceID: res.ResourceID, Tables: []string{"pistes_a1b2c3d"}}

	body := `{"resource": "` + res.ResourceID.String() + `", "layer": "pistes_a1b2c3d",
		"dst_format": {"gdal_driver": "ESRI Shapefile"},
		"footprint": {"type": "Polygon", "coordinates": [[[5.3, 43.2], [5.4, 43.2], [5.4, 43.3], [5.3, 43.2]]]}}`
	rsp := f.do(t, "alice", jsonRequest(http.MethodPost, "/extractor/tasks", body))
	require.Equal(t, http.StatusCreated, rsp.Code, rsp.Body.String())
	require.Len(t, f.ext.jobs, 1)
	job := f.ext.jobs[0]
	assert.Equal(t, "alice@example.org", job.Email)
	assert.Equal(t, "PG:dbname=datagis", job.Source)
	assert.Equal(t, "EPSG:2154", job.DstSRS)
	assert.Equal(t, "EPSG:4326", job.FootprintSRS)
	assert.Equal(t, "Polygon", gjson.GetBytes(job.Footprint, "type").String())

	id := gjson.Get(rsp.Body.String(), "id").String()
	rsp = f.do(t, "alice", httptest.NewRequest(http.MethodGet, "/extractor/tasks/"+id, nil))
	assert.Equal(t, http.StatusOK, rsp.Code)
	rsp = f.do(t, "bob", httptest.NewRequest(http.MethodGet, "/extractor/tasks/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rsp.Code)

	rsp = f.do(t, "alice", jsonRequest(http.MethodPost, "/extractor/tasks", strings.Replace(body, "pistes_a1b2c3d", "other_0000000", 1)))
	assert.Equal(t, http.StatusBadRequest, rsp.Code)
	assert.Equal(t, "layer", gjson.Get(rsp.Body.String(), "field").String())

	res.Extractable = false
	rsp = f.do(t, "alice", jsonRequest(http.MethodPost, "/extractor/tasks", body))
	assert.Equal(t, http.StatusBadRequest, rsp.Code)
	assert.Equal(t, "resource", gjson.Get(rsp.Body.String(), "field").String())
}

func TestNormalize(t *testing.T) {
	out, err := normalize(map[string]any{"name": "a", "private": "on", "title": "t"}, datasetAliases)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"slug": "a", "published": false, "title": "t"}, out)

	_, err = normalize(map[string]any{"private": 3}, datasetAliases)
	assert.Equal(t, "private", apperrors.FieldOf(err))
}
