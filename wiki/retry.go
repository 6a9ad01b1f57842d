package wiki

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// RetryConfig controls the read-retry behavior of RetryingTransport.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per read, including
	// the first one.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to the backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the retry defaults: one retry with
// exponential backoff for idempotent reads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		BackoffBase:       500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Second,
	}
}

// RetryingTransport wraps a Transport and retries idempotent reads on
// transport failures. Writes (EditPage, DeletePage, MovePage,
// UploadFile, RawAPI) pass through untouched: a write that failed
// mid-flight must not be replayed blindly.
type RetryingTransport struct {
	inner  Transport
	cfg    RetryConfig
	logger *slog.Logger
}

// RetryOption configures a RetryingTransport.
type RetryOption func(*RetryingTransport)

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) RetryOption {
	return func(t *RetryingTransport) { t.cfg = cfg }
}

// WithRetryLogger sets the logger.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(t *RetryingTransport) { t.logger = logger }
}

// NewRetryingTransport wraps inner with read-retry behavior.
func NewRetryingTransport(inner Transport, opts ...RetryOption) *RetryingTransport {
	t := &RetryingTransport{
		inner:  inner,
		cfg:    DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// retryRead runs fn up to cfg.MaxAttempts times, backing off between
// attempts, as long as the failure is a TransportError.
func retryRead[T any](ctx context.Context, t *RetryingTransport, op string, fn func() (T, error)) (T, error) {
	var zero T
	backoff := t.cfg.BackoffBase
	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsTransport(err) || attempt == t.cfg.MaxAttempts {
			return zero, err
		}
		t.logger.Warn("read failed, retrying",
			"op", op,
			"attempt", attempt,
			"backoff", backoff,
			"error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * t.cfg.BackoffMultiplier)
		if backoff > t.cfg.MaxBackoff {
			backoff = t.cfg.MaxBackoff
		}
	}
	return zero, lastErr
}

// GetPage implements Transport.
func (t *RetryingTransport) GetPage(ctx context.Context, fullTitle string) (*PageData, error) {
	return retryRead(ctx, t, "GetPage", func() (*PageData, error) {
		return t.inner.GetPage(ctx, fullTitle)
	})
}

// EditPage implements Transport. Never retried.
func (t *RetryingTransport) EditPage(ctx context.Context, fullTitle string, updates []SlotUpdate, comment string) error {
	return t.inner.EditPage(ctx, fullTitle, updates, comment)
}

// DeletePage implements Transport. Never retried.
func (t *RetryingTransport) DeletePage(ctx context.Context, fullTitle string, comment string) error {
	return t.inner.DeletePage(ctx, fullTitle, comment)
}

// MovePage implements Transport. Never retried.
func (t *RetryingTransport) MovePage(ctx context.Context, fullTitle, newFullTitle, comment string, redirect bool) error {
	return t.inner.MovePage(ctx, fullTitle, newFullTitle, comment, redirect)
}

// UploadFile implements Transport. Never retried.
func (t *RetryingTransport) UploadFile(ctx context.Context, title string, r io.Reader, comment string, ignoreExisting bool) error {
	return t.inner.UploadFile(ctx, title, r, comment, ignoreExisting)
}

// DownloadFile implements Transport.
func (t *RetryingTransport) DownloadFile(ctx context.Context, title string) (io.ReadCloser, error) {
	return retryRead(ctx, t, "DownloadFile", func() (io.ReadCloser, error) {
		return t.inner.DownloadFile(ctx, title)
	})
}

// SemanticSearch implements Transport.
func (t *RetryingTransport) SemanticSearch(ctx context.Context, q SearchQuery) ([]string, error) {
	return retryRead(ctx, t, "SemanticSearch", func() ([]string, error) {
		return t.inner.SemanticSearch(ctx, q)
	})
}

// PrefixSearch implements Transport.
func (t *RetryingTransport) PrefixSearch(ctx context.Context, prefix string, limit int) ([]string, error) {
	return retryRead(ctx, t, "PrefixSearch", func() ([]string, error) {
		return t.inner.PrefixSearch(ctx, prefix, limit)
	})
}

// RawAPI implements Transport. Never retried: arbitrary actions may
// not be idempotent.
func (t *RetryingTransport) RawAPI(ctx context.Context, action string, params map[string]string) (map[string]any, error) {
	return t.inner.RawAPI(ctx, action, params)
}
