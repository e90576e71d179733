package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// ErrRetriesExhausted wraps the last error of a call that kept failing with
// retryable errors.
var ErrRetriesExhausted = errors.New("max retries exceeded")

const (
	defaultBaseBackoff = time.Second
	defaultBurst       = 1
)

// ResilientOptions tunes a Resilient provider.
type ResilientOptions struct {
	// Task and Suffix are applied with ApplyTemplate to every text.
	Task   Task
	Suffix string
	// Dimension, when > 0, is enforced on every returned vector.
	Dimension int
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RequestsPerSecond limits calls to the provider. 0 disables limiting.
	RequestsPerSecond float64
	// Timeout bounds a single attempt. 0 means no per-attempt timeout.
	Timeout time.Duration
	// BaseBackoff is the first retry delay, doubled on each further retry.
	BaseBackoff time.Duration
	// Model labels metrics.
	Model string
	// MeterProvider receives call metrics. Defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// Resilient wraps a Provider with templating, rate limiting, retries with
// exponential backoff and a dimension check.
type Resilient struct {
	provider Provider
	opts     ResilientOptions
	limiter  *rate.Limiter
	metrics  *callMetrics
	logger   *zap.Logger
}

// NewResilient wraps p.
func NewResilient(p Provider, opts ResilientOptions, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaultBaseBackoff
	}
	if opts.Task == "" {
		opts.Task = TaskNone
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Resilient{
		provider: p,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, defaultBurst),
		metrics:  newCallMetrics(opts.MeterProvider, logger),
		logger:   logger,
	}
}

// EmbedDocuments templates and embeds texts.
func (r *Resilient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	templated := make([]string, len(texts))
	for i, t := range texts {
		templated[i] = ApplyTemplate(t, r.opts.Task, r.opts.Suffix)
	}

	start := time.Now()
	var vectors [][]float32
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = r.provider.EmbedDocuments(ctx, templated)
		return err
	})
	if err == nil {
		err = r.checkDimensions(vectors...)
	}
	r.metrics.observe(ctx, r.opts.Model, "embed_documents", time.Since(start), len(texts), err)
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

// EmbedQuery templates and embeds a single text.
func (r *Resilient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	templated := ApplyTemplate(text, r.opts.Task, r.opts.Suffix)

	start := time.Now()
	var vector []float32
	err := r.do(ctx, func(ctx context.Context) error {
		var err error
		vector, err = r.provider.EmbedQuery(ctx, templated)
		return err
	})
	if err == nil {
		err = r.checkDimensions(vector)
	}
	r.metrics.observe(ctx, r.opts.Model, "embed_query", time.Since(start), 1, err)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// Dimension returns the enforced dimension, falling back to the provider's.
func (r *Resilient) Dimension() int {
	if r.opts.Dimension > 0 {
		return r.opts.Dimension
	}
	return r.provider.Dimension()
}

// Close closes the wrapped provider.
func (r *Resilient) Close() error {
	return r.provider.Close()
}

func (r *Resilient) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.opts.BaseBackoff * time.Duration(1<<(attempt-1))
			r.logger.Warn("embedding request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			r.metrics.retried(ctx, r.opts.Model)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		err := r.attempt(ctx, call)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !isRetryableError(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func (r *Resilient) attempt(ctx context.Context, call func(context.Context) error) error {
	if r.opts.Timeout <= 0 {
		return call(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	err := call(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &retryableError{err: fmt.Errorf("attempt timed out after %s: %w", r.opts.Timeout, err)}
	}
	return err
}

func (r *Resilient) checkDimensions(vectors ...[]float32) error {
	if r.opts.Dimension <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != r.opts.Dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				vecmath.ErrDimensionMismatch, i, len(v), r.opts.Dimension)
		}
	}
	return nil
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryableError reports whether err is transient: an attempt timeout,
// a network timeout, HTTP 429 or a 5xx response.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
