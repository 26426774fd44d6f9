package server

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bastiangx/campuscomplete/internal/logger"
	"github.com/bastiangx/campuscomplete/pkg/autocomplete"
	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/bastiangx/campuscomplete/pkg/config"
	"github.com/bastiangx/campuscomplete/pkg/debounce"
	"github.com/bastiangx/campuscomplete/pkg/dictionary"
	"github.com/bastiangx/campuscomplete/pkg/recovery"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Engine owns the state shared by every controller of a session: the
// result cache, the retry policy with its fallback store and error window,
// and the in-flight lookup group. Controllers are created per scope.
type Engine struct {
	cfg      *config.Config
	registry *dictionary.Registry
	source   autocomplete.Source
	clock    clock.Clock
	logger   *log.Logger

	cache    *suggest.Cache[[]suggest.Suggestion]
	recovery *recovery.Recovery[[]suggest.Suggestion]
	group    singleflight.Group

	mu          sync.Mutex
	controllers map[string]*autocomplete.Controller
}

// NewEngine wires the shared state from cfg. registry may be nil when the
// source is remote; scopes are then not checked. A nil store disables the
// fallback.
func NewEngine(cfg *config.Config, registry *dictionary.Registry, source autocomplete.Source,
	store recovery.Store[[]suggest.Suggestion], clk clock.Clock) *Engine {
	clk = clock.OrReal(clk)
	e := &Engine{
		cfg:         cfg,
		registry:    registry,
		source:      source,
		clock:       clk,
		logger:      logger.New("engine"),
		controllers: make(map[string]*autocomplete.Controller),
	}

	e.cache = suggest.NewCache[[]suggest.Suggestion](suggest.CacheOptions{
		MaxSize: cfg.Cache.MaxSize,
		TTL:     cfg.Cache.TTL(),
		Clock:   clk,
	})

	rc := cfg.Recovery
	e.recovery = recovery.New(recovery.Options{
		Timeout:    rc.Timeout(),
		MaxRetries: rc.MaxRetries,
		BaseDelay:  rc.BaseDelay(),
		MaxDelay:   rc.MaxDelay(),
		Clock:      clk,
		History: recovery.NewHistory(recovery.HistoryOptions{
			Window:           rc.ErrorWindow(),
			Threshold:        rc.ErrorThreshold,
			NetworkThreshold: rc.NetworkErrorThreshold,
		}),
		Logger: logger.New("recovery"),
	}, store)

	if registry != nil {
		registry.OnChange(e.invalidateScopes)
	}
	return e
}

// Delays returns the configured debounce delays.
func (e *Engine) Delays() debounce.Delays {
	return debounce.Delays{
		Keyboard: e.cfg.Debounce.Keyboard(),
		Touch:    e.cfg.Debounce.Touch(),
		BatchCap: e.cfg.Debounce.BatchCap(),
	}
}

// RankOptions returns the ordering used by every controller. Results are
// kept up to the server limit so one cached list serves any request limit.
func (e *Engine) RankOptions() suggest.RankOptions {
	return suggest.RankOptions{
		MaxResults:    max(e.cfg.Server.MaxLimit, e.cfg.Ranking.MaxResults),
		CaseSensitive: e.cfg.Ranking.CaseSensitive,
	}
}

// NewController creates an unshared controller for scope, for interactive
// use. The caller owns it and must Stop it.
func (e *Engine) NewController(scope string, profile debounce.Profile, opts ...autocomplete.Option) (*autocomplete.Controller, error) {
	if err := e.checkScope(scope); err != nil {
		return nil, err
	}
	base := []autocomplete.Option{
		autocomplete.WithCache(e.cache),
		autocomplete.WithRecovery(e.recovery),
		autocomplete.WithGroup(&e.group),
		autocomplete.WithClock(e.clock),
		autocomplete.WithProfile(e.Delays(), profile),
		autocomplete.WithRankOptions(e.RankOptions()),
		autocomplete.WithLogger(logger.New("autocomplete")),
	}
	return autocomplete.New(scope, e.source, append(base, opts...)...), nil
}

// Controller returns the engine's controller for scope, creating it on first use.
func (e *Engine) Controller(scope string) (*autocomplete.Controller, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.controllers[scope]; ok {
		return c, nil
	}
	c, err := e.NewController(scope, debounce.Batch)
	if err != nil {
		return nil, err
	}
	e.controllers[scope] = c
	e.logger.Debug("Controller created", "scope", scope)
	return c, nil
}

func (e *Engine) checkScope(scope string) error {
	if scope == "" {
		return fmt.Errorf("%w: empty scope", dictionary.ErrUnknownScope)
	}
	if e.registry == nil {
		return nil
	}
	_, err := e.registry.Suggestions(scope)
	return err
}

// Scopes lists the known scopes, or those with a controller when there is
// no registry.
func (e *Engine) Scopes() []string {
	if e.registry != nil {
		return e.registry.Scopes()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.controllers))
	for name := range e.controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invalidate drops cached results of scope, or of every scope when scope
// is empty, and returns how many were removed.
func (e *Engine) Invalidate(scope string) int {
	if scope == "" {
		n := e.cache.Len()
		e.cache.Purge()
		return n
	}
	return e.cache.DeletePrefix(autocomplete.ScopePrefix(scope))
}

func (e *Engine) invalidateScopes(changed []string) {
	removed := 0
	for _, scope := range changed {
		removed += e.Invalidate(scope)
	}
	e.logger.Info("Cache invalidated after reload", "scopes", len(changed), "entries", removed)
}

// StartSweeper removes expired cache entries on the configured interval.
func (e *Engine) StartSweeper(ctx context.Context) clock.Timer {
	return e.cache.StartSweeper(ctx, e.cfg.Cache.SweepInterval())
}

func (e *Engine) Cache() *suggest.Cache[[]suggest.Suggestion] {
	return e.cache
}

func (e *Engine) Recovery() *recovery.Recovery[[]suggest.Suggestion] {
	return e.recovery
}

func (e *Engine) Registry() *dictionary.Registry {
	return e.registry
}

func (e *Engine) Clock() clock.Clock {
	return e.clock
}

// Stop stops every controller and waits for their lookups.
func (e *Engine) Stop() {
	e.mu.Lock()
	controllers := make([]*autocomplete.Controller, 0, len(e.controllers))
	for _, c := range e.controllers {
		controllers = append(controllers, c)
	}
	e.controllers = make(map[string]*autocomplete.Controller)
	e.mu.Unlock()

	for _, c := range controllers {
		c.Stop()
	}
}
