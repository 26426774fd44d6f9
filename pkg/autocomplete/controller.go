package autocomplete

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/bastiangx/campuscomplete/pkg/debounce"
	"github.com/bastiangx/campuscomplete/pkg/recovery"
	"github.com/bastiangx/campuscomplete/pkg/request"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// ErrSuperseded is returned by Query when a newer lookup replaced it.
var ErrSuperseded = errors.New("lookup superseded")

type lookupResult = recovery.Result[[]suggest.Suggestion]

type listenerEntry struct {
	id int
	fn Listener
}

// Controller runs the lookup cycle for one input box:
//
//	idle → debouncing → looking-up → resolved | errored → idle
//
// A lookup whose token is no longer current when it finishes is dropped
// without touching the state.
type Controller struct {
	scope    string
	source   Source
	cache    *suggest.Cache[[]suggest.Suggestion]
	coord    *request.Coordinator
	recovery *recovery.Recovery[[]suggest.Suggestion]
	group    *singleflight.Group
	clock    clock.Clock
	delay    time.Duration
	rank     suggest.RankOptions
	ranker   suggest.Ranker
	logger   *log.Logger
	onSelect func(suggest.Suggestion)

	debouncer *debounce.Debouncer[string]
	inflight  sync.WaitGroup

	mu         sync.Mutex
	state      State
	lastQuery  string
	stopped    bool
	listeners  []listenerEntry
	nextID     int
	outbox     []State
	delivering bool
}

// New creates a controller looking up scope through source.
func New(scope string, source Source, opts ...Option) *Controller {
	c := &Controller{
		scope:  scope,
		source: source,
		delay:  debounce.DefaultKeyboardDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.clock = clock.OrReal(c.clock)
	if c.cache == nil {
		c.cache = suggest.NewCache[[]suggest.Suggestion](suggest.CacheOptions{Clock: c.clock})
	}
	if c.coord == nil {
		c.coord = request.NewCoordinator()
	}
	if c.logger == nil {
		c.logger = log.Default().WithPrefix("autocomplete")
	}
	if c.recovery == nil {
		opts := recovery.DefaultOptions()
		opts.Clock = c.clock
		opts.Logger = c.logger
		c.recovery = recovery.New(opts, recovery.NewMemoryStore[[]suggest.Suggestion](0, c.clock))
	}
	if c.group == nil {
		c.group = &singleflight.Group{}
	}
	if c.ranker == nil {
		c.ranker = suggest.DefaultRanker
	}

	c.debouncer = debounce.New(c.clock, c.delay, c.search)
	c.state = State{Scope: scope, HighlightedIndex: NoHighlight}
	return c
}

// Scope returns the lookup scope.
func (c *Controller) Scope() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

// SetScope switches scope and resets the list.
func (c *Controller) SetScope(scope string) {
	c.debouncer.Cancel()
	c.mu.Lock()
	c.coord.Invalidate()
	c.scope = scope
	c.state = State{Query: c.state.Query, Scope: scope, HighlightedIndex: NoHighlight}
	c.publishLocked()
	c.mu.Unlock()
	c.deliver()
}

// Input handles a keystroke. Empty input returns to idle at once; anything
// else is looked up once typing pauses.
func (c *Controller) Input(text string) {
	if c.reset(text) {
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.state.Query = text
	c.state.Phase = PhaseDebouncing
	c.publishLocked()
	c.mu.Unlock()
	c.deliver()

	c.debouncer.Push(text)
}

// Flush skips the rest of the debounce window.
func (c *Controller) Flush() bool {
	return c.debouncer.Flush()
}

// Query runs a lookup for text immediately and waits for it. The returned
// error is ErrSuperseded if a newer lookup replaced this one, ctx.Err() if
// ctx ended first, or the lookup failure.
func (c *Controller) Query(ctx context.Context, text string) (State, error) {
	c.debouncer.Cancel()
	if c.reset(text) {
		return c.State(), nil
	}

	tok := c.begin(ctx, text)
	if tok == nil {
		return c.State(), nil
	}
	c.fetch(tok, text)

	if err := ctx.Err(); err != nil {
		c.abandon(tok)
		return c.State(), err
	}
	if !tok.IsCurrent() {
		return c.State(), ErrSuperseded
	}
	st := c.State()
	if st.Phase == PhaseErrored && st.Error != nil {
		return st, st.Error
	}
	return st, nil
}

// Retry repeats the last lookup. It reports false if there is nothing to retry.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	q := c.lastQuery
	stopped := c.stopped
	c.mu.Unlock()

	if stopped || suggest.Normalize(q) == "" {
		return false
	}
	c.debouncer.Cancel()
	c.search(q)
	return true
}

// Select picks suggestion i: the query becomes its display name and the
// list closes.
func (c *Controller) Select(i int) (suggest.Suggestion, bool) {
	c.mu.Lock()
	if i < 0 || i >= len(c.state.Suggestions) {
		c.mu.Unlock()
		return suggest.Suggestion{}, false
	}
	sel := c.state.Suggestions[i]
	c.coord.Invalidate()
	c.state = State{
		Query:            sel.DisplayName,
		Scope:            c.scope,
		Phase:            PhaseIdle,
		HighlightedIndex: NoHighlight,
	}
	c.publishLocked()
	onSelect := c.onSelect
	c.mu.Unlock()

	c.debouncer.Cancel()
	c.deliver()
	c.logger.Debug("Selected suggestion", "id", sel.ID)
	if onSelect != nil {
		onSelect(sel)
	}
	return sel, true
}

// Highlight moves the highlight to i, or clears it with NoHighlight.
// Out of range indexes are ignored.
func (c *Controller) Highlight(i int) bool {
	c.mu.Lock()
	if i < NoHighlight || i >= len(c.state.Suggestions) || (i != NoHighlight && !c.state.IsOpen) {
		c.mu.Unlock()
		return false
	}
	c.state.HighlightedIndex = i
	c.publishLocked()
	c.mu.Unlock()
	c.deliver()
	return true
}

// HighlightNext moves the highlight down, wrapping to the top.
func (c *Controller) HighlightNext() bool {
	c.mu.Lock()
	n, h := len(c.state.Suggestions), c.state.HighlightedIndex
	c.mu.Unlock()
	if n == 0 {
		return false
	}
	return c.Highlight((h + 1) % n)
}

// HighlightPrev moves the highlight up, wrapping to the bottom.
func (c *Controller) HighlightPrev() bool {
	c.mu.Lock()
	n, h := len(c.state.Suggestions), c.state.HighlightedIndex
	c.mu.Unlock()
	if n == 0 {
		return false
	}
	if h <= 0 {
		return c.Highlight(n - 1)
	}
	return c.Highlight(h - 1)
}

// AutocompleteHighlighted selects the highlighted suggestion.
func (c *Controller) AutocompleteHighlighted() (suggest.Suggestion, bool) {
	c.mu.Lock()
	h := c.state.HighlightedIndex
	c.mu.Unlock()
	if h == NoHighlight {
		return suggest.Suggestion{}, false
	}
	return c.Select(h)
}

// Close hides the list and drops any pending or in-flight lookup.
func (c *Controller) Close() {
	c.debouncer.Cancel()
	c.mu.Lock()
	c.coord.Invalidate()
	c.state.IsOpen = false
	c.state.IsLoading = false
	c.state.HighlightedIndex = NoHighlight
	if c.state.Phase == PhaseDebouncing || c.state.Phase == PhaseLookingUp {
		c.state.Phase = PhaseIdle
	}
	c.publishLocked()
	c.mu.Unlock()
	c.deliver()
}

// DismissError clears a shown error.
func (c *Controller) DismissError() {
	c.mu.Lock()
	if c.state.Error == nil {
		c.mu.Unlock()
		return
	}
	c.state.Error = nil
	c.state.IsTimeout = false
	if c.state.Phase == PhaseErrored {
		c.state.Phase = PhaseIdle
		c.state.IsOpen = len(c.state.Suggestions) > 0
	}
	c.publishLocked()
	c.mu.Unlock()
	c.deliver()
}

// Subscribe registers l for every state change and returns a function
// removing it.
func (c *Controller) Subscribe(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: l})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, e := range c.listeners {
			if e.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Cache returns the result cache.
func (c *Controller) Cache() *suggest.Cache[[]suggest.Suggestion] {
	return c.cache
}

// Recovery returns the retry policy in use.
func (c *Controller) Recovery() *recovery.Recovery[[]suggest.Suggestion] {
	return c.recovery
}

// Wait blocks until in-flight lookups have finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// Stop cancels pending work and ignores further input. Lookups already in
// flight finish in the background but are discarded.
func (c *Controller) Stop() {
	c.debouncer.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	c.coord.Invalidate()
	c.listeners = nil
}

// reset returns the controller to idle if text is blank and reports
// whether it did.
func (c *Controller) reset(text string) bool {
	if suggest.Normalize(text) != "" {
		return false
	}
	c.debouncer.Cancel()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return true
	}
	c.coord.Invalidate()
	c.state = State{Query: text, Scope: c.scope, HighlightedIndex: NoHighlight}
	c.publishLocked()
	c.mu.Unlock()
	c.deliver()
	return true
}

// search is the debounce target. The token is issued now; the lookup
// itself runs in the background.
func (c *Controller) search(text string) {
	tok := c.begin(context.Background(), text)
	if tok == nil {
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.fetch(tok, text)
	}()
}

// begin issues a token for text and either resolves it from the cache, in
// which case it returns nil, or moves to looking-up.
func (c *Controller) begin(ctx context.Context, text string) *request.Token {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	scope := c.scope
	c.lastQuery = text
	c.state.Query = text
	tok := c.coord.Issue(ctx)
	key := Key(scope, text)

	if hit, ok := c.cache.Get(key); ok {
		c.logger.Debug("Cache hit", "key", key)
		c.resolveLocked(text, hit, nil, false)
		c.mu.Unlock()
		c.deliver()
		tok.Release()
		return nil
	}

	c.state.Phase = PhaseLookingUp
	c.state.IsLoading = true
	c.state.IsTimeout = false
	c.state.Error = nil
	c.publishLocked()
	c.mu.Unlock()
	c.deliver()
	return tok
}

func (c *Controller) fetch(tok *request.Token, text string) {
	defer tok.Release()

	c.mu.Lock()
	scope := c.scope
	c.mu.Unlock()
	key := Key(scope, text)

	for {
		ch := c.group.DoChan(key, func() (any, error) {
			return c.recovery.Run(tok.Context(), key, c.lookup(text, scope), relatedKeys(scope, text)...)
		})

		select {
		case <-tok.Done():
			c.logger.Debug("Lookup superseded", "key", key, "token", tok.ID)
			return
		case res := <-ch:
			if tok.Context().Err() != nil {
				return
			}
			// The shared call belonged to a caller that has been superseded.
			if errors.Is(res.Err, context.Canceled) {
				continue
			}
			c.finish(tok, text, key, res)
			return
		}
	}
}

// abandon returns to idle if tok is still the current lookup.
func (c *Controller) abandon(tok *request.Token) {
	c.mu.Lock()
	if !tok.IsCurrent() {
		c.mu.Unlock()
		return
	}
	c.coord.Invalidate()
	c.state.Phase = PhaseIdle
	c.state.IsLoading = false
	c.publishLocked()
	c.mu.Unlock()
	c.deliver()
}

func (c *Controller) lookup(text, scope string) recovery.Op[[]suggest.Suggestion] {
	return func(ctx context.Context) ([]suggest.Suggestion, error) {
		found, err := c.source.Lookup(ctx, text, scope)
		if err != nil {
			return nil, err
		}
		return c.ranker.Rank(found, text, c.rank), nil
	}
}

func (c *Controller) finish(tok *request.Token, text, key string, res singleflight.Result) {
	c.mu.Lock()
	if !tok.IsCurrent() {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale result", "key", key, "token", tok.ID)
		return
	}

	if res.Err != nil {
		var e *recovery.Error
		if !errors.As(res.Err, &e) {
			e = recovery.Classify(res.Err, c.clock.Now())
		}
		if c.state.Phase != PhaseDebouncing || text == c.state.Query {
			c.state.Phase = PhaseErrored
		}
		c.state.ResultsQuery = text
		c.state.IsLoading = false
		c.state.IsTimeout = e.Kind == recovery.KindTimeout
		c.state.Error = e
		c.state.Stale = false
		c.state.Suggestions = nil
		c.state.IsOpen = true
		c.state.HighlightedIndex = NoHighlight
		c.publishLocked()
		c.mu.Unlock()
		c.deliver()
		return
	}

	out := res.Val.(lookupResult)
	list := out.Value
	if out.Stale {
		list = c.ranker.Rank(list, text, c.rank)
	} else {
		c.cache.Set(key, list)
	}
	c.resolveLocked(text, list, out.Degraded, out.Stale)
	c.mu.Unlock()
	c.deliver()
}

// resolveLocked must be called with c.mu held. Input typed since the lookup
// began keeps the phase at debouncing; the results still replace the list.
func (c *Controller) resolveLocked(text string, list []suggest.Suggestion, degraded *recovery.Error, stale bool) {
	if c.state.Phase != PhaseDebouncing || text == c.state.Query {
		c.state.Phase = PhaseResolved
	}
	c.state.ResultsQuery = text
	c.state.Suggestions = list
	c.state.IsLoading = false
	c.state.IsOpen = len(list) > 0
	c.state.Error = degraded
	c.state.IsTimeout = degraded != nil && degraded.Kind == recovery.KindTimeout
	c.state.Stale = stale
	c.state.HighlightedIndex = NoHighlight
	c.publishLocked()
}

// publishLocked must be called with c.mu held.
func (c *Controller) publishLocked() {
	c.outbox = append(c.outbox, c.state.clone())
}

// deliver hands queued states to listeners in order. Only one goroutine
// delivers at a time; states published meanwhile join its queue.
func (c *Controller) deliver() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for len(c.outbox) > 0 {
		st := c.outbox[0]
		c.outbox = c.outbox[1:]
		listeners := make([]listenerEntry, len(c.listeners))
		copy(listeners, c.listeners)

		c.mu.Unlock()
		for _, l := range listeners {
			l.fn(st)
		}
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}
