package reconciler

import (
	"context"
	"slices"
	"sync"

	"github.com/datasud/idgo/internal/catalogsync/ckan"
	"github.com/datasud/idgo/internal/catalogsync/datagis"
	"github.com/datasud/idgo/internal/catalogsync/db/dberror"
	"github.com/datasud/idgo/internal/catalogsync/db/models"
	"github.com/datasud/idgo/internal/catalogsync/mra"
	"github.com/datasud/idgo/internal/catalogsync/remote"
	"github.com/datasud/idgo/internal/common/apperrors"
	"github.com/datasud/idgo/internal/common/uuid"
)

// memStore is an in-memory Store, safe for concurrent use.
type memStore struct {
	mu            sync.Mutex
	orgs          map[uuid.UUID]*models.Organisation
	members       map[uuid.UUID][]string
	contributors  map[uuid.UUID][]string
	users         map[string]*models.User
	licenses      map[string]*models.License
	categories    map[string]*models.Category
	supports      map[string]*models.Support
	crs           []*models.SupportedCrs
	formats       map[string]*models.ResourceFormat
	datasets      map[uuid.UUID]*models.Dataset
	resources     map[uuid.UUID]*models.Resource
	resLedger     map[uuid.UUID]*models.ResourceLedger
	datasetLedger map[uuid.UUID]*models.DatasetLedger
	commitErr     apperrors.Error
	writes        int
}

func newMemStore() *memStore {
	return &memStore{
		orgs:          map[uuid.UUID]*models.Organisation{},
		members:       map[uuid.UUID][]string{},
		contributors:  map[uuid.UUID][]string{},
		users:         map[string]*models.User{},
		licenses:      map[string]*models.License{},
		categories:    map[string]*models.Category{},
		supports:      map[string]*models.Support{},
		formats:       map[string]*models.ResourceFormat{},
		datasets:      map[uuid.UUID]*models.Dataset{},
		resources:     map[uuid.UUID]*models.Resource{},
		resLedger:     map[uuid.UUID]*models.ResourceLedger{},
		datasetLedger: map[uuid.UUID]*models.DatasetLedger{},
	}
}

func (s *memStore) GetResourceLedger(ctx context.Context, id uuid.UUID) (*models.ResourceLedger, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.resLedger[id]; ok {
		c := *e
		c.Tables = slices.Clone(e.Tables)
		return &c, nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) ListResourceLedgersByDataset(ctx context.Context, id uuid.UUID) ([]*models.ResourceLedger, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ResourceLedger
	for _, e := range s.resLedger {
		if e.DatasetID != nil && *e.DatasetID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) GetDatasetLedger(ctx context.Context, id uuid.UUID) (*models.DatasetLedger, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.datasetLedger[id]; ok {
		return e, nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) GetOrganisation(ctx context.Context, id uuid.UUID) (*models.Organisation, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orgs[id]; ok {
		c := *o
		return &c, nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) UpdateOrganisation(ctx context.Context, org *models.Organisation) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *org
	s.orgs[org.OrganisationID] = &c
	return nil
}

func (s *memStore) ListOrganisationMembers(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[id]; !ok {
		return nil, dberror.ErrNotFound
	}
	return s.members[id], nil
}

func (s *memStore) ListOrganisationContributors(ctx context.Context, id uuid.UUID) ([]string, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contributors[id], nil
}

func (s *memStore) GetUser(ctx context.Context, username string) (*models.User, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) GetLicense(ctx context.Context, id string) (*models.License, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.licenses[id]; ok {
		return l, nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) GetCategory(ctx context.Context, slug string) (*models.Category, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categories[slug]; ok {
		return c, nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) GetSupport(ctx context.Context, slug string) (*models.Support, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.supports[slug]; ok {
		return v, nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) ListSupportedCrs(ctx context.Context) ([]*models.SupportedCrs, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crs, nil
}

func (s *memStore) GetResourceFormat(ctx context.Context, ext string) (*models.ResourceFormat, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.formats[ext]; ok {
		return f, nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) GetDataset(ctx context.Context, id uuid.UUID) (*models.Dataset, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.datasets[id]; ok {
		return d.Clone(), nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) CommitDataset(ctx context.Context, d *models.Dataset, create bool, entry *models.DatasetLedger) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	if _, exists := s.datasets[d.DatasetID]; exists == create {
		if create {
			return dberror.ErrAlreadyExists
		}
		return dberror.ErrNotFound
	}
	s.writes++
	s.datasets[d.DatasetID] = d.Clone()
	if entry != nil {
		s.datasetLedger[d.DatasetID] = entry
	}
	return nil
}

func (s *memStore) DeleteDataset(ctx context.Context, id uuid.UUID) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[id]; !ok {
		return dberror.ErrNotFound
	}
	s.writes++
	delete(s.datasets, id)
	delete(s.datasetLedger, id)
	for _, r := range s.resources {
		if r.DatasetID != nil && *r.DatasetID == id {
			r.DatasetID = nil
		}
	}
	for _, e := range s.resLedger {
		if e.DatasetID != nil && *e.DatasetID == id {
			e.DatasetID = nil
		}
	}
	return nil
}

func (s *memStore) GetResource(ctx context.Context, id uuid.UUID) (*models.Resource, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.resources[id]; ok {
		return r.Clone(), nil
	}
	return nil, dberror.ErrNotFound
}

func (s *memStore) ListResourcesByDataset(ctx context.Context, id uuid.UUID) ([]*models.Resource, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Resource
	for _, r := range s.resources {
		if r.DatasetID != nil && *r.DatasetID == id {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *memStore) CommitResource(ctx context.Context, r *models.Resource, create bool, entry *models.ResourceLedger, bbox *models.Extent) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.writes++
	s.resources[r.ResourceID] = r.Clone()
	if entry != nil {
		s.resLedger[r.ResourceID] = entry
	}
	if r.DatasetID != nil {
		if d, ok := s.datasets[*r.DatasetID]; ok {
			d.BBox = bbox
		}
	}
	return nil
}

func (s *memStore) DeleteResource(ctx context.Context, id uuid.UUID, bbox *models.Extent) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return dberror.ErrNotFound
	}
	s.writes++
	delete(s.resources, id)
	delete(s.resLedger, id)
	if r.DatasetID != nil {
		if d, ok := s.datasets[*r.DatasetID]; ok {
			d.BBox = bbox
		}
	}
	return nil
}

// fakeCatalog records the calls made to the remote catalog.
type fakeCatalog struct {
	mu        sync.Mutex
	calls     map[string]int
	failOn    map[string]error
	orgs      map[string]*ckan.Object
	packages  map[string]map[string]any
	resources map[string]map[string]any
	uploads   map[string]string
	members   map[string][]string
	licenses  map[string]bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		calls:     map[string]int{},
		failOn:    map[string]error{},
		orgs:      map[string]*ckan.Object{},
		packages:  map[string]map[string]any{},
		resources: map[string]map[string]any{},
		uploads:   map[string]string{},
		members:   map[string][]string{},
		licenses:  map[string]bool{},
	}
}

func (c *fakeCatalog) call(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[name]++
	return c.failOn[name]
}

func (c *fakeCatalog) total() int {
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *fakeCatalog) GetOrganization(ctx context.Context, id string) (*ckan.Object, error) {
	if err := c.call("GetOrganization"); err != nil {
		return nil, err
	}
	if o, ok := c.orgs[id]; ok {
		return o, nil
	}
	return nil, remote.ErrRemoteNotFound
}

func (c *fakeCatalog) CreateOrganization(ctx context.Context, p ckan.OrganizationParams) (*ckan.Object, error) {
	o := &ckan.Object{ID: p.ID, Name: p.Name, State: "active"}
	c.orgs[p.ID] = o
	if err := c.call("CreateOrganization"); err != nil {
		return nil, err
	}
	return o, nil
}

func (c *fakeCatalog) ActivateOrganization(ctx context.Context, id string) error {
	if err := c.call("ActivateOrganization"); err != nil {
		return err
	}
	c.orgs[id].State = "active"
	return nil
}

func (c *fakeCatalog) DeactivateOrganizationIfEmpty(ctx context.Context, id string) (bool, error) {
	if err := c.call("DeactivateOrganizationIfEmpty"); err != nil {
		return false, err
	}
	for _, p := range c.packages {
		if p["owner_org"] == id {
			return false, nil
		}
	}
	if o, ok := c.orgs[id]; ok {
		o.State = "deleted"
		return true, nil
	}
	return false, remote.ErrRemoteNotFound
}

func (c *fakeCatalog) PurgeOrganization(ctx context.Context, id string) error {
	if err := c.call("PurgeOrganization"); err != nil {
		return err
	}
	delete(c.orgs, id)
	return nil
}

func (c *fakeCatalog) AddOrganizationMember(ctx context.Context, id, username, capacity string) error {
	if err := c.call("AddOrganizationMember"); err != nil {
		return err
	}
	c.members[id] = append(c.members[id], username+":"+capacity)
	return nil
}

func (c *fakeCatalog) AddGroupMember(ctx context.Context, id, username string) error {
	if err := c.call("AddGroupMember"); err != nil {
		return err
	}
	c.members[id] = append(c.members[id], username)
	return nil
}

func (c *fakeCatalog) GetPackage(ctx context.Context, id string) (*ckan.Object, error) {
	if err := c.call("GetPackage"); err != nil {
		return nil, err
	}
	if p, ok := c.packages[id]; ok {
		name, _ := p["name"].(string)
		return &ckan.Object{ID: id, Name: name, State: "active"}, nil
	}
	return nil, remote.ErrRemoteNotFound
}

func (c *fakeCatalog) PublishPackage(ctx context.Context, id string, params map[string]any) (*ckan.Object, bool, error) {
	if err := c.call("PublishPackage"); err != nil {
		return nil, false, err
	}
	_, exists := c.packages[id]
	c.packages[id] = params
	name, _ := params["name"].(string)
	return &ckan.Object{ID: id, Name: name, State: "active"}, !exists, nil
}

func (c *fakeCatalog) PurgePackage(ctx context.Context, id string) error {
	if err := c.call("PurgePackage"); err != nil {
		return err
	}
	if _, ok := c.packages[id]; !ok {
		return remote.ErrRemoteNotFound
	}
	delete(c.packages, id)
	return nil
}

func (c *fakeCatalog) GetResource(ctx context.Context, id string) (*ckan.Object, error) {
	if err := c.call("GetResource"); err != nil {
		return nil, err
	}
	if _, ok := c.resources[id]; ok {
		return &ckan.Object{ID: id, State: "active"}, nil
	}
	return nil, remote.ErrRemoteNotFound
}

func (c *fakeCatalog) PublishResource(ctx context.Context, packageID, id string, params map[string]any) (bool, error) {
	if err := c.call("PublishResource"); err != nil {
		return false, err
	}
	_, exists := c.resources[id]
	p := map[string]any{"package_id": packageID}
	for k, v := range params {
		p[k] = v
	}
	c.resources[id] = p
	return !exists, nil
}

func (c *fakeCatalog) UploadResource(ctx context.Context, id, path string) error {
	if err := c.call("UploadResource"); err != nil {
		return err
	}
	c.uploads[id] = path
	return nil
}

func (c *fakeCatalog) DeleteResource(ctx context.Context, id string) error {
	if err := c.call("DeleteResource"); err != nil {
		return err
	}
	if _, ok := c.resources[id]; !ok {
		return remote.ErrRemoteNotFound
	}
	delete(c.resources, id)
	return nil
}

func (c *fakeCatalog) HasLicense(ctx context.Context, id string) (bool, error) {
	if err := c.call("HasLicense"); err != nil {
		return false, err
	}
	return c.licenses[id], nil
}

// fakeRegistry is an in-memory layer registry.
type fakeRegistry struct {
	workspaces   map[string]bool
	featureTypes map[string]bool
	enabled      map[string]bool
	unpublished  []string
	failOn       map[string]error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		workspaces:   map[string]bool{},
		featureTypes: map[string]bool{},
		enabled:      map[string]bool{},
		failOn:       map[string]error{},
	}
}

func (r *fakeRegistry) PublishLayers(ctx context.Context, ws, ds string, tables []string, enabled bool) (*mra.Publication, error) {
	pub := &mra.Publication{}
	if !r.workspaces[ws] {
		r.workspaces[ws] = true
		pub.Workspace = true
		pub.Datastore = true
	}
	for _, t := range tables {
		if !r.featureTypes[t] {
			r.featureTypes[t] = true
			r.enabled[t] = enabled
			pub.FeatureTypes = append(pub.FeatureTypes, t)
		}
	}
	return pub, r.failOn["PublishLayers"]
}

func (r *fakeRegistry) Unpublish(ctx context.Context, ws, ds, table string) error {
	r.unpublished = append(r.unpublished, table)
	delete(r.featureTypes, table)
	delete(r.enabled, table)
	return nil
}

func (r *fakeRegistry) DeleteWorkspace(ctx context.Context, ws string) error {
	delete(r.workspaces, ws)
	return nil
}

func (r *fakeRegistry) DeleteDatastore(ctx context.Context, ws, ds string) error {
	return nil
}

func (r *fakeRegistry) SetLayerEnabled(ctx context.Context, name string, enabled bool) error {
	if err := r.failOn["SetLayerEnabled"]; err != nil {
		return err
	}
	if !r.featureTypes[name] {
		return remote.ErrRemoteNotFound
	}
	r.enabled[name] = enabled
	return nil
}

// fakeImporter returns the tables it is told to, and creates them in the spatial store.
type fakeImporter struct {
	spatial  *fakeSpatial
	tables   []datagis.Table
	err      error
	requests []datagis.Request
}

func (i *fakeImporter) Import(ctx context.Context, req datagis.Request) ([]datagis.Table, error) {
	i.requests = append(i.requests, req)
	if i.err != nil {
		return nil, i.err
	}
	for _, t := range i.tables {
		i.spatial.tables[t.ID] = true
	}
	return slices.Clone(i.tables), nil
}

type fakeSpatial struct {
	tables  map[string]bool
	dropped []string
}

func newFakeSpatial() *fakeSpatial {
	return &fakeSpatial{tables: map[string]bool{}}
}

func (s *fakeSpatial) DropTable(ctx context.Context, table string) error {
	s.dropped = append(s.dropped, table)
	delete(s.tables, table)
	return nil
}

func (s *fakeSpatial) ReplaceTable(ctx context.Context, src, dst string) error {
	delete(s.tables, src)
	s.tables[dst] = true
	return nil
}

// Extent gives each table a unit square shifted by its position in the name.
func (s *fakeSpatial) Extent(ctx context.Context, table string, epsg int) (*models.Extent, error) {
	if !s.tables[table] {
		return nil, nil
	}
	x := float64(len(table))
	return &models.Extent{MinX: x, MinY: 0, MaxX: x + 1, MaxY: 1, EPSG: epsg}, nil
}

type fakeFetcher struct {
	path    string
	err     error
	cleaned int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*datagis.Download, func(), error) {
	cleanup := func() { f.cleaned++ }
	if f.err != nil {
		return nil, cleanup, f.err
	}
	return &datagis.Download{Path: f.path, Filename: "data.zip"}, cleanup, nil
}
