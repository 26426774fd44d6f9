package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"
)

// Retry defaults.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 2
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 10 * time.Second
)

// Options configures a Recovery.
type Options struct {
	// Timeout bounds a single attempt. Zero uses DefaultTimeout, negative disables it.
	Timeout time.Duration
	// MaxRetries counts retries after the first attempt. Negative disables retrying.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	Clock   clock.Clock
	History *History
	Logger  *log.Logger
}

// DefaultOptions returns the default retry policy.
func DefaultOptions() Options {
	return Options{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// Result is the outcome of Run.
type Result[T any] struct {
	Value    T
	Attempts int

	// Stale is set when Value came from the fallback store.
	Stale       bool
	StoredAt    time.Time
	FallbackKey string
	// Degraded is the failure that forced the fallback. It is nil when the
	// fallback was preferred because of recent errors.
	Degraded *Error
}

// Op is a lookup attempt. It should stop when ctx is done.
type Op[T any] func(ctx context.Context) (T, error)

// Recovery runs operations with timeout, retry and fallback.
type Recovery[T any] struct {
	opts    Options
	store   Store[T]
	history *History
	clock   clock.Clock
	logger  *log.Logger
}

// New creates a Recovery backed by store. A nil store means no fallback.
func New[T any](opts Options, store Store[T]) *Recovery[T] {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}

	r := &Recovery[T]{
		opts:    opts,
		store:   store,
		history: opts.History,
		clock:   clock.OrReal(opts.Clock),
		logger:  opts.Logger,
	}
	if r.history == nil {
		r.history = NewHistory(HistoryOptions{})
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// History returns the error window shared by every Run.
func (r *Recovery[T]) History() *History {
	return r.history
}

// Backoff returns the delay before retry number attempt (zero-based).
func (r *Recovery[T]) Backoff(attempt int) time.Duration {
	d := r.opts.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= r.opts.MaxDelay {
			return r.opts.MaxDelay
		}
	}
	return min(d, r.opts.MaxDelay)
}

// Run executes op under key. Successful values are saved to the fallback
// store. When every attempt fails, or a non-retryable error occurs, the
// freshest stored value for key or one of related is returned with
// Result.Stale set. Otherwise the classified *Error is returned.
//
// If ctx is cancelled Run returns ctx.Err() unclassified.
func (r *Recovery[T]) Run(ctx context.Context, key string, op Op[T], related ...string) (Result[T], error) {
	if r.history.ShouldPreferFallback(r.clock.Now()) {
		if res, ok := r.fallback(key, related); ok {
			r.logger.Warn("Recent failures, serving fallback", "key", key, "from", res.FallbackKey)
			return res, nil
		}
	}

	var (
		errs     *multierror.Error
		last     *Error
		attempts int
	)
	for attempt := 0; attempt <= r.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{Attempts: attempts}, err
		}

		attempts++
		v, err := r.attempt(ctx, op)
		if err == nil {
			r.save(key, v)
			return Result[T]{Value: v, Attempts: attempts}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result[T]{Attempts: attempts}, ctxErr
		}

		last = Classify(err, r.clock.Now())
		r.history.Record(last)
		errs = multierror.Append(errs, err)

		if !last.Retryable {
			r.logger.Debug("Lookup failed, not retryable", "key", key, "kind", last.Kind, "err", err)
			break
		}
		if attempt == r.opts.MaxRetries {
			break
		}

		delay := r.Backoff(attempt)
		r.logger.Warn("Lookup failed, retrying", "key", key, "kind", last.Kind, "attempt", attempts, "delay", delay)
		if err := r.clock.Sleep(ctx, delay); err != nil {
			return Result[T]{Attempts: attempts}, err
		}
	}

	final := *last
	final.Cause = errs.ErrorOrNil()

	if res, ok := r.fallback(key, related); ok {
		final.FallbackAvailable = true
		res.Attempts = attempts
		res.Degraded = &final
		r.logger.Warn("Lookup failed, serving fallback", "key", key, "kind", final.Kind, "from", res.FallbackKey)
		return res, nil
	}

	r.logger.Error("Lookup failed", "key", key, "kind", final.Kind, "attempts", attempts)
	return Result[T]{Attempts: attempts}, &final
}

func (r *Recovery[T]) attempt(ctx context.Context, op Op[T]) (T, error) {
	if r.opts.Timeout < 0 {
		return op(ctx)
	}

	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	expired := make(chan struct{})

	timer := r.clock.AfterFunc(r.opts.Timeout, func() { close(expired) })
	defer timer.Cancel()

	go func() {
		v, err := op(actx)
		done <- outcome{v, err}
	}()

	var zero T
	select {
	case o := <-done:
		return o.v, o.err
	case <-expired:
		return zero, NewError(KindTimeout, fmt.Sprintf("lookup timed out after %s", r.opts.Timeout), context.DeadlineExceeded)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *Recovery[T]) save(key string, v T) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(Key(key), v); err != nil {
		r.logger.Warn("Failed to save fallback", "key", key, "err", err)
	}
}

func (r *Recovery[T]) fallback(key string, related []string) (Result[T], bool) {
	if r.store == nil {
		return Result[T]{}, false
	}

	for _, k := range append([]string{key}, related...) {
		v, at, err := r.store.Load(Key(k))
		if err != nil {
			if !errors.Is(err, ErrNoFallback) {
				r.logger.Warn("Failed to read fallback", "key", k, "err", err)
			}
			continue
		}
		return Result[T]{Value: v, Stale: true, StoredAt: at, FallbackKey: k}, true
	}
	return Result[T]{}, false
}
