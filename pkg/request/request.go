// Package request hands out lookup tokens so that results of superseded
// lookups can be recognised and dropped.
package request

import (
	"context"
	"sync"
)

// Coordinator issues strictly increasing tokens. Exactly one token is
// current at a time.
type Coordinator struct {
	mu      sync.Mutex
	last    uint64
	current *Token
}

// Token identifies one lookup. It stops being current once a newer token is
// issued or the coordinator is invalidated, and never becomes current again.
type Token struct {
	ID uint64

	c      *Coordinator
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoordinator returns a coordinator with no current token.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Issue retires the current token, cancelling its context, and returns a
// fresh one derived from parent.
func (c *Coordinator) Issue(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	c.last++
	t := &Token{ID: c.last, c: c, ctx: ctx, cancel: cancel}
	prev := c.current
	c.current = t
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	return t
}

// Invalidate retires the current token without issuing a new one.
func (c *Coordinator) Invalidate() {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
}

// Current returns the ID of the current token, or 0 if there is none.
func (c *Coordinator) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return 0
	}
	return c.current.ID
}

// IsCurrent reports whether t is still the newest token.
func (t *Token) IsCurrent() bool {
	if t == nil {
		return false
	}
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	return t.c.current == t
}

// Context is cancelled when the token is retired.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Done is shorthand for t.Context().Done().
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Release cancels the token's context without retiring it. Call it once the
// work started under t has finished.
func (t *Token) Release() {
	t.cancel()
}
