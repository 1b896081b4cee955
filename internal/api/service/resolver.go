package service

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/metrics"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/go-model-share/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

// strategyOutcome is the tri-state result of one resolution strategy.
type strategyOutcome int

const (
	outcomeSkipped strategyOutcome = iota
	outcomeResolved
	outcomeFailed
	// outcomeInconclusive means the host could not be asked, so nothing was learned.
	outcomeInconclusive
)

func (o strategyOutcome) String() string {
	switch o {
	case outcomeResolved:
		return "resolved"
	case outcomeFailed:
		return "failed"
	case outcomeInconclusive:
		return "inconclusive"
	default:
		return "skipped"
	}
}

type resolveStrategy struct {
	name string
	run  func(ctx context.Context, id string) (*domain.ResolvedModel, strategyOutcome)
}

// resolver turns a shared model ID into a verified remote URL.
type resolver struct {
	cache         port.CacheStore
	prober        port.Prober
	generator     port.CandidateGenerator
	trustedDomain string
	parallelism   int

	strategies []resolveStrategy
}

func newResolver(cache port.CacheStore, prober port.Prober, generator port.CandidateGenerator, trustedDomain string, parallelism int) *resolver {
	r := &resolver{
		cache:         cache,
		prober:        prober,
		generator:     generator,
		trustedDomain: strings.ToLower(strings.TrimSpace(trustedDomain)),
		parallelism:   parallelism,
	}
	r.strategies = []resolveStrategy{
		{name: "cache", run: r.fromCache},
		{name: "candidate", run: r.fromCandidates},
	}
	return r
}

// resolve returns the first strategy that resolves, or the context error once
// ctx is done. ErrModelNotFound is only returned when every probe answered;
// otherwise the result is ErrModelUnavailable.
func (r *resolver) resolve(ctx context.Context, id string) (*domain.ResolvedModel, error) {
	inconclusive := false
	for _, strategy := range r.strategies {
		res, outcome := strategy.run(ctx, id)
		logger.Debugw("Resolution strategy finished", "model_id", id, "strategy", strategy.name, "outcome", outcome.String())

		if outcome == outcomeResolved {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if outcome == outcomeInconclusive {
			inconclusive = true
		}
	}
	if inconclusive {
		return nil, port.ErrModelUnavailable
	}
	return nil, port.ErrModelNotFound
}

// fromCache verifies the cached URL; a stale or foreign entry is evicted.
func (r *resolver) fromCache(ctx context.Context, id string) (*domain.ResolvedModel, strategyOutcome) {
	rec, err := r.cache.Get(ctx, id)
	if errors.Is(err, port.ErrRecordNotFound) {
		return nil, outcomeSkipped
	}
	if err != nil {
		logger.Warnw("Cache read failed, falling back to candidates", "model_id", id, "error", err.Error())
		return nil, outcomeSkipped
	}

	if !r.isTrusted(rec.RemoteURL) {
		logger.Warnw("Cached URL outside trusted domain, evicting", "model_id", id, "url", rec.RemoteURL)
		r.evict(ctx, id)
		return nil, outcomeFailed
	}

	probe := r.prober.Probe(ctx, rec.RemoteURL)
	if probe.Reachable {
		return &domain.ResolvedModel{Record: *rec, Source: domain.SourceCache}, outcomeResolved
	}
	if probe.Inconclusive || ctx.Err() != nil {
		logger.Infow("Cached URL could not be verified, keeping entry", "model_id", id, "url", rec.RemoteURL, "reason", probe.Reason)
		return nil, outcomeInconclusive
	}

	logger.Infow("Cached URL unreachable, evicting", "model_id", id, "url", rec.RemoteURL)
	r.evict(ctx, id)
	return nil, outcomeFailed
}

// fromCandidates probes generated URLs and repairs the cache on success.
func (r *resolver) fromCandidates(ctx context.Context, id string) (*domain.ResolvedModel, strategyOutcome) {
	parsed, err := domain.ParseID(id)
	if err != nil {
		return nil, outcomeFailed
	}

	candidates := r.generator.Generate(id)
	idx, inconclusive := r.firstReachable(ctx, candidates)
	if idx < 0 {
		if inconclusive {
			return nil, outcomeInconclusive
		}
		return nil, outcomeFailed
	}

	found := candidates[idx]
	rec := domain.ModelRecord{
		ID:               id,
		RemoteURL:        found,
		OriginalFilename: parsed.Suffix + urlExtension(found),
		SizeLabel:        domain.UnknownSizeLabel,
		UploadedAt:       time.UnixMilli(parsed.Timestamp).UTC(),
	}

	if err := r.cache.Put(ctx, rec); err != nil {
		metrics.CacheWriteFailures.WithLabelValues("put").Inc()
		logger.Warnw("Cache repair write failed", "model_id", id, "error", err.Error())
	}

	logger.Infow("Model resolved from candidate", "model_id", id, "url", found, "candidate_index", idx)
	return &domain.ResolvedModel{Record: rec, Source: domain.SourceCandidate}, outcomeResolved
}

// firstReachable returns the lowest index whose probe is reachable, or -1.
// inconclusive reports whether any probe checked before giving up got no answer.
func (r *resolver) firstReachable(ctx context.Context, candidates []string) (idx int, inconclusive bool) {
	if len(candidates) == 0 {
		return -1, false
	}
	if r.parallelism <= 1 || len(candidates) == 1 {
		for i, candidate := range candidates {
			if ctx.Err() != nil {
				return -1, true
			}
			res := r.prober.Probe(ctx, candidate)
			if res.Reachable {
				return i, inconclusive
			}
			inconclusive = inconclusive || res.Inconclusive
		}
		return -1, inconclusive
	}

	probeCtx, cancel := context.WithCancel(ctx)
	pool := resilience.NewWorkerPool(probeCtx, r.parallelism, len(candidates))
	defer func() {
		cancel()
		pool.Close()
		pool.Wait()
	}()

	results := make([]chan domain.ProbeResult, len(candidates))
	for i := range results {
		results[i] = make(chan domain.ProbeResult, 1)
	}
	for i, candidate := range candidates {
		if err := pool.Submit(func(ctx context.Context) {
			results[i] <- r.prober.Probe(ctx, candidate)
		}); err != nil {
			results[i] <- domain.ProbeResult{Reason: err.Error(), Inconclusive: true}
		}
	}

	// Walk in candidate order so a later hit never beats an earlier one.
	for i := range candidates {
		select {
		case res := <-results[i]:
			if res.Reachable {
				return i, inconclusive
			}
			inconclusive = inconclusive || res.Inconclusive
		case <-ctx.Done():
			return -1, true
		}
	}
	return -1, inconclusive
}

func (r *resolver) evict(ctx context.Context, id string) {
	if err := r.cache.Remove(ctx, id); err != nil {
		metrics.CacheWriteFailures.WithLabelValues("remove").Inc()
		logger.Warnw("Cache eviction failed", "model_id", id, "error", err.Error())
	}
}

// isTrusted accepts URLs on the configured domain or one of its subdomains.
func (r *resolver) isTrusted(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	if r.trustedDomain == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return host == r.trustedDomain || strings.HasSuffix(host, "."+r.trustedDomain)
}

func urlExtension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
