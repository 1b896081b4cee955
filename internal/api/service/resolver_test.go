package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthanhphan/go-model-share/internal/api/adapter/outbound/cache"
	"github.com/anthanhphan/go-model-share/internal/api/adapter/outbound/prober"
	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/go-model-share/internal/api/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/anthanhphan/go-model-share/pkg/resilience"
	"go.uber.org/mock/gomock"
)

// proberFunc adapts a function to port.Prober.
type proberFunc func(ctx context.Context, url string) domain.ProbeResult

func (f proberFunc) Probe(ctx context.Context, url string) domain.ProbeResult {
	return f(ctx, url)
}

// reachableSet answers reachable for the listed URLs and records every probe.
type reachableSet struct {
	mu     sync.Mutex
	ok     map[string]bool
	probed []string
}

func newReachableSet(urls ...string) *reachableSet {
	s := &reachableSet{ok: map[string]bool{}}
	for _, u := range urls {
		s.ok[u] = true
	}
	return s
}

func (s *reachableSet) Probe(ctx context.Context, url string) domain.ProbeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probed = append(s.probed, url)
	if s.ok[url] {
		return domain.ProbeResult{Reachable: true, StatusCode: 200, Status: "OK"}
	}
	return domain.ProbeResult{Reachable: false, StatusCode: 404, Status: "Not Found"}
}

const (
	chairID     = "model_1700000000000_chair"
	chairURL    = rawBase + "/3d_models/1700000000000_chair.glb"
	staleURL    = imageBase + "/v1/3d_models/1700000000000_chair.glb"
	cloudDomain = "res.cloudinary.com"
)

func chairRecord(url string) domain.ModelRecord {
	return domain.ModelRecord{
		ID:               chairID,
		RemoteURL:        url,
		OriginalFilename: "chair.glb",
		SizeBytes:        1024,
		SizeLabel:        "1 KB",
		UploadedAt:       time.UnixMilli(1700000000000).UTC(),
	}
}

func TestResolver_CacheHitSkipsGenerator(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockCacheStore(ctrl)
	prober := mocks.NewMockProber(ctrl)
	generator := mocks.NewMockCandidateGenerator(ctrl)

	rec := chairRecord(chairURL)
	store.EXPECT().Get(gomock.Any(), chairID).Return(&rec, nil)
	prober.EXPECT().Probe(gomock.Any(), chairURL).Return(domain.ProbeResult{Reachable: true, StatusCode: 200})
	generator.EXPECT().Generate(gomock.Any()).Times(0)

	r := newResolver(store, prober, generator, cloudDomain, 1)
	res, err := r.resolve(context.Background(), chairID)

	require.NoError(t, err)
	assert.Equal(t, domain.SourceCache, res.Source)
	assert.Equal(t, rec, res.Record)
}

func TestResolver_UnreachableCacheEvictedThenNotFound(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), chairRecord(staleURL)))

	prober := newReachableSet()
	r := newResolver(store, prober, NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models"), cloudDomain, 1)

	res, err := r.resolve(context.Background(), chairID)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, port.ErrModelNotFound)
	_, getErr := store.Get(context.Background(), chairID)
	assert.ErrorIs(t, getErr, port.ErrRecordNotFound)

	// The stale URL first, then every generated candidate.
	assert.Equal(t, staleURL, prober.probed[0])
	assert.Len(t, prober.probed, 1+16)
}

func TestResolver_ChairScenario(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), chairRecord(staleURL)))

	prober := newReachableSet(chairURL)
	r := newResolver(store, prober, NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models"), cloudDomain, 1)

	res, err := r.resolve(context.Background(), chairID)

	require.NoError(t, err)
	assert.Equal(t, domain.SourceCandidate, res.Source)
	assert.Equal(t, chairURL, res.Record.RemoteURL)
	assert.Equal(t, "chair.glb", res.Record.OriginalFilename)
	assert.Equal(t, domain.UnknownSizeLabel, res.Record.SizeLabel)
	assert.Equal(t, int64(1700000000000), res.Record.UploadedAt.UnixMilli())

	cached, err := store.Get(context.Background(), chairID)
	require.NoError(t, err)
	assert.Equal(t, chairURL, cached.RemoteURL)
	assert.Equal(t, []string{staleURL, chairURL}, prober.probed)
}

func TestResolver_ForeignCachedURLEvictedWithoutProbe(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockCacheStore(ctrl)
	prober := mocks.NewMockProber(ctrl)
	generator := mocks.NewMockCandidateGenerator(ctrl)

	rec := chairRecord("https://evil.example.com/res.cloudinary.com/chair.glb")
	store.EXPECT().Get(gomock.Any(), chairID).Return(&rec, nil)
	store.EXPECT().Remove(gomock.Any(), chairID).Return(nil)
	generator.EXPECT().Generate(chairID).Return([]string{chairURL})
	prober.EXPECT().Probe(gomock.Any(), chairURL).Return(domain.ProbeResult{Reachable: true})
	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)

	r := newResolver(store, prober, generator, cloudDomain, 1)
	res, err := r.resolve(context.Background(), chairID)

	require.NoError(t, err)
	assert.Equal(t, chairURL, res.Record.RemoteURL)
}

func TestResolver_SubdomainIsTrusted(t *testing.T) {
	r := newResolver(nil, nil, nil, "cloudinary.com", 1)

	assert.True(t, r.isTrusted("https://res.cloudinary.com/demo/raw/upload/x.glb"))
	assert.True(t, r.isTrusted("https://cloudinary.com/x.glb"))
	assert.False(t, r.isTrusted("https://notcloudinary.com/x.glb"))
	assert.False(t, r.isTrusted("https://cloudinary.com.evil.io/x.glb"))
	assert.False(t, r.isTrusted("not a url"))
}

func TestResolver_CacheReadErrorFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockCacheStore(ctrl)
	generator := mocks.NewMockCandidateGenerator(ctrl)

	store.EXPECT().Get(gomock.Any(), chairID).Return(nil, errors.New("redis down"))
	generator.EXPECT().Generate(chairID).Return([]string{chairURL})
	store.EXPECT().Put(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	r := newResolver(store, newReachableSet(chairURL), generator, cloudDomain, 1)
	res, err := r.resolve(context.Background(), chairID)

	// A failed repair write does not change the outcome.
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCandidate, res.Source)
}

func TestResolver_NotFoundIffAllUnreachable(t *testing.T) {
	candidates := NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models").Generate(chairID)

	for i, reachable := range candidates {
		store := cache.NewMemoryStore()
		r := newResolver(store, newReachableSet(reachable), NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models"), cloudDomain, 1)

		res, err := r.resolve(context.Background(), chairID)
		require.NoError(t, err, "candidate %d", i)
		assert.Equal(t, reachable, res.Record.RemoteURL)
	}

	r := newResolver(cache.NewMemoryStore(), newReachableSet(), NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models"), cloudDomain, 1)
	_, err := r.resolve(context.Background(), chairID)
	assert.ErrorIs(t, err, port.ErrModelNotFound)
}

func TestResolver_ParallelPicksLowestIndex(t *testing.T) {
	generator := NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models")
	candidates := generator.Generate(chairID)
	early, late := candidates[3], candidates[10]

	prober := proberFunc(func(ctx context.Context, url string) domain.ProbeResult {
		switch url {
		case early:
			// The earlier candidate answers last.
			select {
			case <-time.After(100 * time.Millisecond):
				return domain.ProbeResult{Reachable: true}
			case <-ctx.Done():
				return domain.ProbeResult{Reason: ctx.Err().Error()}
			}
		case late:
			return domain.ProbeResult{Reachable: true}
		default:
			return domain.ProbeResult{StatusCode: 404}
		}
	})

	r := newResolver(cache.NewMemoryStore(), prober, generator, cloudDomain, 8)
	res, err := r.resolve(context.Background(), chairID)

	require.NoError(t, err)
	assert.Equal(t, early, res.Record.RemoteURL)
}

func TestResolver_ParallelNotFound(t *testing.T) {
	r := newResolver(cache.NewMemoryStore(), newReachableSet(), NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models"), cloudDomain, 4)

	_, err := r.resolve(context.Background(), chairID)
	assert.ErrorIs(t, err, port.ErrModelNotFound)
}

func TestResolver_CancelledContext(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), chairRecord(chairURL)))

	ctx, cancel := context.WithCancel(context.Background())
	prober := proberFunc(func(ctx context.Context, url string) domain.ProbeResult {
		cancel()
		return domain.ProbeResult{Reason: "cancelled"}
	})

	r := newResolver(store, prober, NewCandidateBuilder([]string{rawBase}, "3d_models"), cloudDomain, 1)
	_, err := r.resolve(ctx, chairID)

	assert.ErrorIs(t, err, context.Canceled)
	// Cancellation must not evict a possibly good entry.
	_, getErr := store.Get(context.Background(), chairID)
	assert.NoError(t, getErr)
}

func TestResolver_InconclusiveProbeKeepsCacheEntry(t *testing.T) {
	store := cache.NewMemoryStore()
	rec := chairRecord(chairURL)
	rec.ProviderObjectID = "3d_models/1700000000000_chair"
	require.NoError(t, store.Put(context.Background(), rec))

	noAnswer := proberFunc(func(ctx context.Context, url string) domain.ProbeResult {
		return domain.ProbeResult{Reason: "circuit open", Inconclusive: true}
	})

	r := newResolver(store, noAnswer, NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models"), cloudDomain, 1)
	_, err := r.resolve(context.Background(), chairID)

	assert.ErrorIs(t, err, port.ErrModelUnavailable)
	assert.NotErrorIs(t, err, port.ErrModelNotFound)

	got, getErr := store.Get(context.Background(), chairID)
	require.NoError(t, getErr)
	assert.Equal(t, rec, *got)
}

func TestResolver_AnyInconclusiveCandidateIsNotNotFound(t *testing.T) {
	firstCandidate := rawBase + "/3d_models/1700000000000_chair.glb"
	mixed := proberFunc(func(ctx context.Context, url string) domain.ProbeResult {
		if url == firstCandidate {
			return domain.ProbeResult{Reason: "context deadline exceeded", Inconclusive: true}
		}
		return domain.ProbeResult{StatusCode: 404, Status: "Not Found"}
	})

	for _, parallelism := range []int{1, 4} {
		r := newResolver(cache.NewMemoryStore(), mixed, NewCandidateBuilder([]string{rawBase, imageBase}, "3d_models"), cloudDomain, parallelism)
		_, err := r.resolve(context.Background(), chairID)
		assert.ErrorIs(t, err, port.ErrModelUnavailable, "parallelism=%d", parallelism)
	}
}

func TestResolver_OpenCircuitDoesNotEvictHealthyRecord(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 5 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hostURL, err := url.Parse(srv.URL)
	require.NoError(t, err)

	httpProber := prober.NewHTTPProber(srv.Client(), prober.Config{
		Timeout: time.Second,
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 5, OpenTimeout: time.Minute},
	})
	for i := 0; i < 5; i++ {
		res := httpProber.Probe(context.Background(), srv.URL+"/3d_models/other.glb")
		require.False(t, res.Reachable)
	}

	store := cache.NewMemoryStore()
	rec := chairRecord(srv.URL + "/3d_models/1700000000000_chair.glb")
	rec.ProviderObjectID = "3d_models/1700000000000_chair"
	require.NoError(t, store.Put(context.Background(), rec))

	r := newResolver(store, httpProber, NewCandidateBuilder([]string{srv.URL}, "3d_models"), hostURL.Hostname(), 1)
	_, err = r.resolve(context.Background(), chairID)

	assert.ErrorIs(t, err, port.ErrModelUnavailable)
	assert.Equal(t, int32(5), calls.Load(), "no request should reach the host while the circuit is open")

	got, getErr := store.Get(context.Background(), chairID)
	require.NoError(t, getErr)
	assert.Equal(t, rec, *got)
}
