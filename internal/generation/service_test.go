package generation_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/blob"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/cache"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generation"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generator/mock"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/worker"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockCache struct {
	mu       sync.Mutex
	values   map[string][]byte
	statuses map[int64]string
	err      error
}

func newMockCache() *mockCache {
	return &mockCache{values: make(map[string][]byte), statuses: make(map[int64]string)}
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.values[key] = value
	return nil
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.values, key)
	return nil
}

func (c *mockCache) Ping(_ context.Context) error { return c.err }

func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

func (c *mockCache) SetJobStatus(_ context.Context, jobID int64, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.statuses[jobID] = status
	return nil
}

func (c *mockCache) GetJobStatus(_ context.Context, jobID int64) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[jobID]
	return s, ok, nil
}

var _ cache.Cache = (*mockCache)(nil)

// rejectingSubmitter refuses every task.
type rejectingSubmitter struct{ err error }

func (r rejectingSubmitter) Submit(worker.Task) error { return r.err }

// partialSubmitter runs the first accept tasks on their own goroutines and
// rejects the rest. Before rejecting it gives the accepted tasks up to grace
// to finish.
type partialSubmitter struct {
	accept int
	grace  time.Duration

	mu       sync.Mutex
	accepted int
	wg       sync.WaitGroup
}

func (p *partialSubmitter) Submit(task worker.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accepted < p.accept {
		p.accepted++
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			task(context.Background())
		}()
		return nil
	}

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(p.grace):
	}
	return worker.ErrQueueFull
}

// --- fixtures ---

type testEnv struct {
	store *store.SQLiteStore
	cache *mockCache
	blobs *blob.LocalStore
	svc   *generation.Service
}

func newTestEnv(t *testing.T, gen models.Generator, opts ...generation.Option) *testEnv {
	t.Helper()
	pool := worker.NewPool(4, 100)
	env := newTestEnvWithPool(t, gen, pool, opts...)
	t.Cleanup(func() {
		env.svc.Wait()
		require.NoError(t, pool.Stop(context.Background()))
	})
	return env
}

func newTestEnvWithPool(t *testing.T, gen models.Generator, pool generation.Submitter, opts ...generation.Option) *testEnv {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "headshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	blobs, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ca := newMockCache()
	return &testEnv{
		store: st,
		cache: ca,
		blobs: blobs,
		svc:   generation.NewService(st, ca, blobs, gen, pool, opts...),
	}
}

// createOwner registers a user and uploads a photo for them.
func (e *testEnv) createOwner(t *testing.T, email string) (*models.User, *models.ImageUpload) {
	t.Helper()
	ctx := context.Background()
	user, err := e.svc.CreateUser(ctx, email, "Test User")
	require.NoError(t, err)
	upload, err := e.svc.StoreImage(ctx, user.ID, "portrait.png", models.MimeTypePNG, mock.SamplePNG())
	require.NoError(t, err)
	return user, upload
}

func (e *testEnv) waitForStatus(t *testing.T, jobID int64, status string) *models.GenerationJob {
	t.Helper()
	var job *models.GenerationJob
	require.Eventually(t, func() bool {
		j, err := e.store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.Status == status
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func (e *testEnv) headshots(t *testing.T, jobID int64) []*models.GeneratedHeadshot {
	t.Helper()
	hs, err := e.svc.ListJobHeadshots(context.Background(), jobID)
	require.NoError(t, err)
	return hs
}

// blockingGenerator holds every call until release is closed.
func blockingGenerator(release <-chan struct{}) *mock.MockGenerator {
	data := mock.SamplePNG()
	return &mock.MockGenerator{
		Name_: "mock-blocking",
		GenerateFunc: func(ctx context.Context, _ models.GenerateRequest) (models.Artifact, error) {
			select {
			case <-release:
				return models.Artifact{Data: data, MimeType: models.MimeTypePNG}, nil
			case <-ctx.Done():
				return models.Artifact{}, ctx.Err()
			}
		},
	}
}

// failStylesGenerator fails the given styles with errors carrying their message.
func failStylesGenerator(failures map[int64]string) *mock.MockGenerator {
	data := mock.SamplePNG()
	return &mock.MockGenerator{
		Name_: "mock-partial",
		GenerateFunc: func(_ context.Context, req models.GenerateRequest) (models.Artifact, error) {
			if msg, ok := failures[req.Style.ID]; ok {
				return models.Artifact{}, errors.New(msg)
			}
			return models.Artifact{Data: data, MimeType: models.MimeTypePNG}, nil
		},
	}
}
