package main

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/sergeknystautas/rbclient/internal/config"
	"github.com/sergeknystautas/rbclient/internal/detect"
	"github.com/sergeknystautas/rbclient/internal/editor"
	"github.com/sergeknystautas/rbclient/internal/scm"
	"github.com/sergeknystautas/rbclient/pkg/rbapi"
)

// syncBuffer is a bytes.Buffer safe for the watcher's goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// MockClient is a scripted scm.Client.
type MockClient struct {
	info      *scm.RepositoryInfo
	server    string
	rng       *scm.RevisionRange
	rangeErr  error
	diff      *scm.DiffResult
	diffErr   error
	message   *scm.CommitMessage
	commitErr error

	mu         sync.Mutex
	revisions  [][]string
	diffOpts   []scm.DiffOptions
	commitOpts []scm.CommitOptions
	diffCalls  int
}

func (m *MockClient) Name() string {
	return "mock"
}

func (m *MockClient) RepositoryInfo(ctx context.Context) (*scm.RepositoryInfo, error) {
	return m.info, nil
}

func (m *MockClient) ScanForServer(ctx context.Context, info *scm.RepositoryInfo) (string, error) {
	return m.server, nil
}

func (m *MockClient) ParseRevisionSpec(ctx context.Context, revisions []string) (*scm.RevisionRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revisions = append(m.revisions, revisions)
	if m.rangeErr != nil {
		return nil, m.rangeErr
	}
	if m.rng != nil {
		return m.rng, nil
	}
	return &scm.RevisionRange{Base: "aaaaaaaaaaaa", Tip: "bbbbbbbbbbbb"}, nil
}

func (m *MockClient) Diff(ctx context.Context, revisions *scm.RevisionRange, opts scm.DiffOptions) (*scm.DiffResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diffCalls++
	m.diffOpts = append(m.diffOpts, opts)
	if m.diffErr != nil {
		return nil, m.diffErr
	}
	if m.diff != nil {
		return m.diff, nil
	}
	return &scm.DiffResult{Diff: []byte{}}, nil
}

func (m *MockClient) CreateCommit(ctx context.Context, opts scm.CommitOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitOpts = append(m.commitOpts, opts)
	return m.commitErr
}

func (m *MockClient) CommitMessage(ctx context.Context, revisions *scm.RevisionRange) (*scm.CommitMessage, error) {
	return m.message, nil
}

func (m *MockClient) HasPendingChanges(ctx context.Context) (bool, error) {
	return false, nil
}

func (m *MockClient) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.diffCalls
}

// MockAPI is a scripted rbapi.API that records what it was sent.
type MockAPI struct {
	user      string
	userErr   error
	repoID    int
	requests  []rbapi.ReviewRequest
	existing  map[int]*rbapi.ReviewRequest
	createdID int
	uploadErr error

	created   []string
	uploads   map[int]rbapi.DiffUpload
	drafts    map[int]rbapi.DraftUpdate
	queries   []rbapi.ReviewRequestQuery
	repoPaths []string
}

func (m *MockAPI) CurrentUser(ctx context.Context) (string, error) {
	return m.user, m.userErr
}

func (m *MockAPI) FindRepositoryID(ctx context.Context, path, name string) (int, error) {
	m.repoPaths = append(m.repoPaths, path)
	return m.repoID, nil
}

func (m *MockAPI) ListReviewRequests(ctx context.Context, query rbapi.ReviewRequestQuery) ([]rbapi.ReviewRequest, error) {
	m.queries = append(m.queries, query)
	return m.requests, nil
}

func (m *MockAPI) GetReviewRequest(ctx context.Context, id int) (*rbapi.ReviewRequest, error) {
	if rr, ok := m.existing[id]; ok {
		return rr, nil
	}
	return nil, &rbapi.APIError{StatusCode: 404, Code: 100, Message: "Object does not exist"}
}

func (m *MockAPI) CreateReviewRequest(ctx context.Context, repositoryID int, commitID string) (*rbapi.ReviewRequest, error) {
	m.created = append(m.created, commitID)
	return &rbapi.ReviewRequest{ID: m.createdID}, nil
}

func (m *MockAPI) UploadDiff(ctx context.Context, reviewRequestID int, upload rbapi.DiffUpload) (*rbapi.Diff, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	if m.uploads == nil {
		m.uploads = make(map[int]rbapi.DiffUpload)
	}
	m.uploads[reviewRequestID] = upload
	return &rbapi.Diff{ID: 1, Revision: 1}, nil
}

func (m *MockAPI) UpdateDraft(ctx context.Context, reviewRequestID int, update rbapi.DraftUpdate) (*rbapi.Draft, error) {
	if m.drafts == nil {
		m.drafts = make(map[int]rbapi.DraftUpdate)
	}
	m.drafts[reviewRequestID] = update
	return &rbapi.Draft{ID: reviewRequestID, Summary: update.Summary, Public: update.Public}, nil
}

func (m *MockAPI) ReviewRequestURL(id int) string {
	return "https://reviews.example.com/r/" + strconv.Itoa(id) + "/"
}

// testEnv wires an app to mocks.
type testEnv struct {
	app    *app
	stdout *syncBuffer
	stderr *syncBuffer
	cfg    *config.Config
	client *MockClient
	api    *MockAPI

	detectOpts []detect.Options
	detectErr  error
	apiServers []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		stdout: &syncBuffer{},
		stderr: &syncBuffer{},
		cfg:    config.Default(),
		client: &MockClient{
			info: &scm.RepositoryInfo{
				Type:                scm.TypeMercurial,
				Path:                "https://hg.example.com/repo",
				LocalPath:           t.TempDir(),
				SupportsParentDiffs: true,
				SupportsChangesets:  true,
			},
		},
		api: &MockAPI{user: "alice", repoID: 3, createdID: 42},
	}

	a := newApp(env.stdout, env.stderr)
	a.dir = t.TempDir()
	a.loadCfg = func(dir string) (*config.Config, error) { return env.cfg, nil }
	a.detect = func(ctx context.Context, opts detect.Options) (*detect.Result, error) {
		env.detectOpts = append(env.detectOpts, opts)
		if env.detectErr != nil {
			return nil, env.detectErr
		}
		return &detect.Result{Client: env.client, Info: env.client.info}, nil
	}
	a.newAPI = func(baseURL, token string) rbapi.API {
		env.apiServers = append(env.apiServers, baseURL)
		return env.api
	}
	a.newEditor = func(string) editor.Editor { return nil }
	env.app = a
	return env
}
