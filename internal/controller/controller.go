package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-news-desk/internal/domain"
	"github.com/samvad-hq/samvad-news-desk/internal/logger"
)

// DefaultDelay is the debounce window applied when Options.Delay is unset.
const DefaultDelay = 500 * time.Millisecond

var (
	// ErrDisposed is returned by operations on a disposed controller.
	ErrDisposed = errors.New("controller disposed")
	// ErrSuperseded is returned by a fetch whose result lost to a newer generation.
	ErrSuperseded = errors.New("fetch superseded by a newer generation")
)

// Source retrieves the result set for a query. Empty query means default headlines.
type Source interface {
	Fetch(ctx context.Context, query string) ([]domain.Article, error)
}

// Metrics observes controller activity.
type Metrics interface {
	QuerySet()
	FetchStarted()
	FetchFinished(outcome string, elapsed time.Duration)
	FetchDiscarded(reason string)
}

const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"

	DiscardSuperseded = "superseded"
	DiscardDisposed   = "disposed"
)

// Options configures a Controller.
type Options struct {
	Source  Source
	Delay   time.Duration
	Clock   Clock
	Log     logger.Logger
	Metrics Metrics
}

// Controller debounces query changes into fetches and owns the resulting state.
// Every issued fetch gets a generation; only the newest generation may change state.
type Controller struct {
	source  Source
	delay   time.Duration
	clock   Clock
	log     logger.Logger
	metrics Metrics

	// root is cancelled on Dispose; every triggered fetch derives from it.
	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	query     string
	status    Status
	articles  []domain.Article
	lastErr   error
	issued    uint64
	completed uint64
	updatedAt time.Time
	timer     Timer
	timerSeq  uint64
	disposed  bool
	changed   chan struct{}
	done      chan struct{}
}

// New builds an idle controller with an empty query.
func New(opts Options) (*Controller, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("controller source must not be nil")
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	root, cancel := context.WithCancel(context.Background())
	return &Controller{
		source:    opts.Source,
		delay:     opts.Delay,
		clock:     opts.Clock,
		log:       logger.OrNop(opts.Log),
		metrics:   opts.Metrics,
		root:      root,
		cancel:    cancel,
		status:    StatusIdle,
		updatedAt: opts.Clock.Now(),
		changed:   make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start issues the startup fetch immediately, without waiting for the debounce window.
func (c *Controller) Start() error {
	return c.trigger("startup")
}

// Refresh issues an immediate fetch for the current query, replacing any pending trigger.
func (c *Controller) Refresh() error {
	return c.trigger("refresh")
}

// SetQuery records q and reschedules the debounced fetch. No I/O happens here.
// It is a no-op once the controller is disposed.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	c.query = q
	c.stopTimerLocked()
	seq := c.timerSeq
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(seq) })
	c.touchLocked()
	c.metrics.QuerySet()
}

// Fetch runs one fetch for the current query and waits for it.
// A result that is no longer the newest generation is discarded and ErrSuperseded returned.
func (c *Controller) Fetch(ctx context.Context) ([]domain.Article, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil, ErrDisposed
	}
	c.issued++
	gen := c.issued
	query := c.query
	c.status = StatusLoading
	c.touchLocked()
	c.mu.Unlock()

	c.metrics.FetchStarted()
	c.log.DebugObj("fetch started", "fetch_meta", map[string]any{
		"generation": gen,
		"query":      query,
	})

	start := c.clock.Now()
	articles, err := c.source.Fetch(ctx, query)
	elapsed := c.clock.Now().Sub(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		c.discardLocked(gen, DiscardDisposed)
		return nil, ErrDisposed
	}
	if gen != c.issued {
		c.discardLocked(gen, DiscardSuperseded)
		return nil, ErrSuperseded
	}

	c.completed = gen
	if err != nil {
		c.status = StatusFailed
		c.lastErr = err
		c.touchLocked()
		c.metrics.FetchFinished(OutcomeFailed, elapsed)
		c.log.WarnObj("fetch failed", "fetch_error", map[string]any{
			"generation": gen,
			"query":      query,
			"error":      err.Error(),
			"elapsed_ms": elapsed.Milliseconds(),
		})
		return nil, err
	}

	c.status = StatusSucceeded
	c.articles = domain.CloneArticles(articles)
	if c.articles == nil {
		c.articles = []domain.Article{}
	}
	c.lastErr = nil
	c.touchLocked()
	c.metrics.FetchFinished(OutcomeSucceeded, elapsed)
	c.log.InfoObj("fetch completed", "fetch_meta", map[string]any{
		"generation": gen,
		"query":      query,
		"articles":   len(c.articles),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return domain.CloneArticles(c.articles), nil
}

// Dispose cancels any pending trigger, stops further state changes and waits for
// fetches it started. Safe to call more than once.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.stopTimerLocked()
	close(c.done)
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.log.DebugObj("controller disposed", "controller_state", map[string]any{"disposed": true})
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Query:     c.query,
		Status:    c.status,
		Articles:  domain.CloneArticles(c.articles),
		Err:       c.lastErr,
		Issued:    c.issued,
		Completed: c.completed,
		UpdatedAt: c.updatedAt,
		Disposed:  c.disposed,
	}
	if s.Articles == nil {
		s.Articles = []domain.Article{}
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	return s
}

// Changed returns a channel closed on the next state change. Read it before Snapshot
// to avoid missing a transition.
func (c *Controller) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Done is closed when the controller is disposed.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) trigger(reason string) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.stopTimerLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.DebugObj("fetch triggered", "trigger", reason)
	go func() {
		defer c.wg.Done()
		_, _ = c.Fetch(c.root)
	}()
	return nil
}

// fire runs when a debounce timer elapses. Timers replaced or stopped since
// scheduling carry an outdated seq and do nothing, even if Stop lost the race.
func (c *Controller) fire(seq uint64) {
	c.mu.Lock()
	if c.disposed || seq != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.wg.Add(1)
	c.mu.Unlock()

	defer c.wg.Done()
	_, _ = c.Fetch(c.root)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
}

func (c *Controller) discardLocked(gen uint64, reason string) {
	c.metrics.FetchDiscarded(reason)
	c.log.DebugObj("fetch result discarded", "fetch_meta", map[string]any{
		"generation": gen,
		"newest":     c.issued,
		"reason":     reason,
	})
}

func (c *Controller) touchLocked() {
	c.updatedAt = c.clock.Now()
	close(c.changed)
	c.changed = make(chan struct{})
}

type nopMetrics struct{}

func (nopMetrics) QuerySet()                           {}
func (nopMetrics) FetchStarted()                       {}
func (nopMetrics) FetchFinished(string, time.Duration) {}
func (nopMetrics) FetchDiscarded(string)               {}
