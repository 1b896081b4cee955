package prober

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/metrics"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/go-model-share/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
)

const (
	DefaultTimeout = 5 * time.Second

	// bodyDiscardLimit bounds how much of a fallback GET body is drained for connection reuse.
	bodyDiscardLimit = 64 * 1024
)

// Config tunes the HTTP prober.
type Config struct {
	Timeout time.Duration
	// Origin is sent with every probe so hosts apply their cross-origin policy.
	Origin  string
	Breaker resilience.CircuitBreakerConfig
}

// HTTPProber checks remote URLs with HEAD, falling back to a one-byte ranged
// GET for hosts that refuse HEAD.
type HTTPProber struct {
	client   *http.Client
	timeout  time.Duration
	origin   string
	breakers *resilience.BreakerSet
}

var _ port.Prober = (*HTTPProber)(nil)

func NewHTTPProber(client *http.Client, cfg Config) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.OpenTimeout <= 0 {
		cfg.Breaker.OpenTimeout = 30 * time.Second
	}

	return &HTTPProber{
		client:   client,
		timeout:  cfg.Timeout,
		origin:   cfg.Origin,
		breakers: resilience.NewBreakerSet(cfg.Breaker),
	}
}

// serverError marks a 5xx answer so the host breaker counts it.
type serverError struct {
	code   int
	status string
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error %d", e.code)
}

func (p *HTTPProber) Probe(ctx context.Context, rawURL string) domain.ProbeResult {
	start := time.Now()
	result := p.probe(ctx, rawURL)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	outcome := "reachable"
	switch {
	case result.Reason == reasonCircuitOpen:
		outcome = "circuit_open"
	case result.Inconclusive:
		outcome = "inconclusive"
	case !result.Reachable:
		outcome = "unreachable"
	}
	if !result.Reachable {
		logger.Debugw("Probe unreachable", "url", rawURL, "status_code", result.StatusCode,
			"reason", result.Reason, "inconclusive", result.Inconclusive)
	}
	metrics.ProbesTotal.WithLabelValues(outcome).Inc()
	return result
}

const reasonCircuitOpen = "circuit open"

func (p *HTTPProber) probe(ctx context.Context, rawURL string) domain.ProbeResult {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ProbeResult{Reachable: false, Reason: "invalid url"}
	}

	// The breaker sees the caller's ctx; only the probe's own timeout counts against the host.
	var result domain.ProbeResult
	err = p.breakers.Get(u.Host).Execute(ctx, func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		code, status, err := p.do(probeCtx, http.MethodHead, rawURL)
		if err == nil && (code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented) {
			code, status, err = p.do(probeCtx, http.MethodGet, rawURL)
		}
		if err != nil {
			return err
		}

		result = domain.ProbeResult{
			Reachable:  code >= 200 && code < 300,
			StatusCode: code,
			Status:     status,
		}
		if code >= 500 {
			return &serverError{code: code, status: status}
		}
		return nil
	})

	var serverErr *serverError
	switch {
	case err == nil, errors.As(err, &serverErr):
		return result
	case errors.Is(err, resilience.ErrCircuitOpen):
		// No request was sent.
		return domain.ProbeResult{Reachable: false, Reason: reasonCircuitOpen, Inconclusive: true}
	case ctx.Err() != nil:
		return domain.ProbeResult{Reachable: false, Reason: ctx.Err().Error(), Inconclusive: true}
	default:
		return domain.ProbeResult{Reachable: false, Reason: err.Error()}
	}
}

func (p *HTTPProber) do(ctx context.Context, method, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, "", err
	}
	if p.origin != "" {
		req.Header.Set("Origin", p.origin)
	}
	if method == http.MethodGet {
		req.Header.Set("Range", "bytes=0-0")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, bodyDiscardLimit))

	return resp.StatusCode, http.StatusText(resp.StatusCode), nil
}
