package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"sort"
	"sync"
	"testing"

	"highway_monitor/internal/model"
	"highway_monitor/internal/notify"
	"highway_monitor/internal/realtime"
	"highway_monitor/internal/repository"

	"github.com/stretchr/testify/require"
)

type fakeIssueRepo struct {
	mu     sync.Mutex
	issues map[string]model.HighwayIssue
	err    error
	writes int
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{issues: make(map[string]model.HighwayIssue)}
}

func (r *fakeIssueRepo) Create(_ context.Context, issue *model.HighwayIssue) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	if issue.RequestID != nil {
		for _, existing := range r.issues {
			if existing.RequestID != nil && *existing.RequestID == *issue.RequestID {
				*issue = existing
				return false, nil
			}
		}
	}
	r.writes++
	r.issues[issue.ID] = *issue
	return true, nil
}

func (r *fakeIssueRepo) FindByID(_ context.Context, id string) (*model.HighwayIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if i, ok := r.issues[id]; ok {
		return &i, nil
	}
	return nil, nil
}

func (r *fakeIssueRepo) FindByRequestID(_ context.Context, requestID string) (*model.HighwayIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, i := range r.issues {
		if i.RequestID != nil && *i.RequestID == requestID {
			return &i, nil
		}
	}
	return nil, nil
}

func (r *fakeIssueRepo) FindAll(_ context.Context, filters model.IssueFilters) ([]model.HighwayIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := []model.HighwayIssue{}
	for _, i := range r.issues {
		if filters.Status != nil && i.Status != *filters.Status {
			continue
		}
		if filters.UserID != nil && i.UserID != *filters.UserID {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID > out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

func (r *fakeIssueRepo) UpdateStatus(_ context.Context, id, status string) (*model.HighwayIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	i, ok := r.issues[id]
	if !ok {
		return nil, nil
	}
	r.writes++
	i.Status = status
	r.issues[id] = i
	return &i, nil
}

type fakeProfileRepo struct {
	profiles map[string]model.UserProfile
	err      error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[string]model.UserProfile)}
}

func (r *fakeProfileRepo) FindByID(_ context.Context, id string) (*model.UserProfile, error) {
	if r.err != nil {
		return nil, r.err
	}
	if p, ok := r.profiles[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *fakeProfileRepo) UpdateRole(_ context.Context, id, role string) (*model.UserProfile, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.profiles[id]
	if !ok {
		return nil, nil
	}
	p.Role = role
	r.profiles[id] = p
	return &p, nil
}

func (r *fakeProfileRepo) Create(_ context.Context, p *model.UserProfile) error {
	if r.err != nil {
		return r.err
	}
	r.profiles[p.ID] = *p
	return nil
}

type storedFile struct {
	path        string
	contentType string
	data        []byte
}

type fakeFileStore struct {
	mu    sync.Mutex
	files []storedFile
	err   error
}

func (f *fakeFileStore) Put(_ context.Context, objectPath, contentType string, r io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, storedFile{path: objectPath, contentType: contentType, data: data})
	return "http://storage.test/highway-issues/" + objectPath, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.IssueEvent
}

func (n *fakeNotifier) PublishIssueEvent(_ context.Context, e notify.IssueEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

type fakeTokenProvider struct {
	exchange    *model.TokenPair
	exchangeErr error
	refresh     *model.TokenPair
	refreshErr  error
	signedOut   []string
	redirectURI string
}

func (p *fakeTokenProvider) ExchangeCode(_ context.Context, _, redirectURI string) (*model.TokenPair, error) {
	p.redirectURI = redirectURI
	return p.exchange, p.exchangeErr
}

func (p *fakeTokenProvider) RefreshSession(_ context.Context, _ string) (*model.TokenPair, error) {
	return p.refresh, p.refreshErr
}

func (p *fakeTokenProvider) SignOut(_ context.Context, accessToken string) error {
	p.signedOut = append(p.signedOut, accessToken)
	return nil
}

// newTestIssueService wires an IssueService to in-memory collaborators and a live hub
func newTestIssueService(t *testing.T, policy TransitionPolicy) (IssueService, *fakeIssueRepo, *fakeFileStore, *fakeNotifier, *realtime.Hub) {
	t.Helper()
	repo := newFakeIssueRepo()
	files := &fakeFileStore{}
	notifier := &fakeNotifier{}
	hub := realtime.NewHub(8)
	svc := NewIssueService(IssueServiceDeps{
		Repo:             repo,
		Files:            files,
		Changes:          hub,
		Subscriber:       hub,
		Notifier:         notifier,
		SchemaPolicy:     SchemaDefault,
		TransitionPolicy: policy,
	})
	return svc, repo, files, notifier, hub
}

var _ repository.IssueRepository = (*fakeIssueRepo)(nil)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fileHeader builds a real multipart.FileHeader as gin would hand it over
func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}
