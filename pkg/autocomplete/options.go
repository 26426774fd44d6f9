package autocomplete

import (
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/bastiangx/campuscomplete/pkg/debounce"
	"github.com/bastiangx/campuscomplete/pkg/recovery"
	"github.com/bastiangx/campuscomplete/pkg/request"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Option configures a Controller.
type Option func(*Controller)

// WithCache shares a result cache between controllers.
func WithCache(cache *suggest.Cache[[]suggest.Suggestion]) Option {
	return func(c *Controller) {
		c.cache = cache
	}
}

// WithRecovery sets the retry and fallback policy.
func WithRecovery(r *recovery.Recovery[[]suggest.Suggestion]) Option {
	return func(c *Controller) {
		c.recovery = r
	}
}

// WithCoordinator sets the token source.
func WithCoordinator(coord *request.Coordinator) Option {
	return func(c *Controller) {
		c.coord = coord
	}
}

// WithClock sets the clock used for debouncing and the default cache and recovery.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithDelay sets the debounce delay.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.delay = d
	}
}

// WithProfile sets the debounce delay for an input device.
func WithProfile(delays debounce.Delays, p debounce.Profile) Option {
	return WithDelay(delays.For(p))
}

// WithRankOptions sets result ordering and the result cap.
func WithRankOptions(opts suggest.RankOptions) Option {
	return func(c *Controller) {
		c.rank = opts
	}
}

// WithRanker replaces the default scoring policy.
func WithRanker(r suggest.Ranker) Option {
	return func(c *Controller) {
		c.ranker = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithGroup collapses identical in-flight lookups across controllers
// sharing g.
func WithGroup(g *singleflight.Group) Option {
	return func(c *Controller) {
		c.group = g
	}
}

// WithOnSelect registers a callback for Select.
func WithOnSelect(fn func(suggest.Suggestion)) Option {
	return func(c *Controller) {
		c.onSelect = fn
	}
}
