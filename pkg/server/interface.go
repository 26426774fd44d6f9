/*
Package server implements msgpack IPC for institution autocomplete.

The server reads a stream of msgpack requests from stdin and writes one
msgpack response per request to stdout. Requests are handled in order.

# IPC

Every request carries an ID echoed in its response, and an action.
An empty action means "complete":

	{"id": "req_001", "s": "josaa", "q": "iit b", "l": 5}

The response lists suggestions best first with their rank and score:

	{"id": "req_001", "s": [{"id": "IIT/iit-bombay", "n": "IIT Bombay", "slug": "iit-bombay", "c": "IIT", "r": 1, "sc": 890}], "c": 1, "t": 312}

When the lookup failed and stored results were served instead, "stale" is
set and "e" carries the notice. Failed requests get an error response:

	{"id": "req_001", "e": "unknown scope: comedk", "code": 404}

Other actions:

	{"id": "a", "action": "scopes"}               scope names with entry counts
	{"id": "b", "action": "stats"}                cache and error statistics
	{"id": "c", "action": "invalidate", "s": ""}  drop cached results (all scopes when s is empty)
	{"id": "d", "action": "cleanup"}              sweep expired cache entries
	{"id": "e", "action": "health"}
	{"id": "f", "action": "config", "max_limit": 20}

Config changes are saved to the active config file.
*/
package server

import "github.com/bastiangx/campuscomplete/pkg/suggest"

// Actions understood by the server.
const (
	ActionComplete   = "complete"
	ActionScopes     = "scopes"
	ActionStats      = "stats"
	ActionInvalidate = "invalidate"
	ActionCleanup    = "cleanup"
	ActionHealth     = "health"
	ActionConfig     = "config"
)

// Request is any client message.
type Request struct {
	ID     string `msgpack:"id"`
	Action string `msgpack:"action,omitempty"`
	Scope  string `msgpack:"s,omitempty"`
	Query  string `msgpack:"q,omitempty"`
	Limit  int    `msgpack:"l,omitempty"`

	// config only
	MaxLimit *int `msgpack:"max_limit,omitempty"`
	MinQuery *int `msgpack:"min_query,omitempty"`
	MaxQuery *int `msgpack:"max_query,omitempty"`
}

// CompletionSuggestion - minimal suggestion response
type CompletionSuggestion struct {
	ID       string `msgpack:"id"`
	Name     string `msgpack:"n"`
	Slug     string `msgpack:"slug"`
	Category string `msgpack:"c"`
	Rank     uint16 `msgpack:"r"`
	Score    int    `msgpack:"sc"`
}

// CompletionResponse - completion response. TimeTaken is in microseconds.
type CompletionResponse struct {
	ID          string                 `msgpack:"id"`
	Suggestions []CompletionSuggestion `msgpack:"s"`
	Count       int                    `msgpack:"c"`
	TimeTaken   int64                  `msgpack:"t"`
	Stale       bool                   `msgpack:"stale,omitempty"`
	Error       string                 `msgpack:"e,omitempty"`
}

// ScopeInfo describes one loaded scope.
type ScopeInfo struct {
	Name  string `msgpack:"name"`
	Count int    `msgpack:"count"`
}

// ScopesResponse lists the scopes that can be queried.
type ScopesResponse struct {
	ID         string      `msgpack:"id"`
	Scopes     []ScopeInfo `msgpack:"scopes"`
	Categories []string    `msgpack:"categories"`
	Version    uint64      `msgpack:"version"`
}

// ErrorStats summarises the recent lookup failures.
type ErrorStats struct {
	Total          int            `msgpack:"total"`
	ByKind         map[string]int `msgpack:"by_kind"`
	PreferFallback bool           `msgpack:"prefer_fallback"`
}

// StatsResponse - stats operation response
type StatsResponse struct {
	ID       string             `msgpack:"id"`
	Cache    suggest.CacheStats `msgpack:"cache"`
	Errors   ErrorStats         `msgpack:"errors"`
	Requests int                `msgpack:"requests"`
	Uptime   int64              `msgpack:"uptime_ms"`
}

// StatusResponse answers actions that only report success.
type StatusResponse struct {
	ID      string `msgpack:"id"`
	Status  string `msgpack:"status"`
	Removed int    `msgpack:"removed,omitempty"`
}

// ConfigResponse - config operation response
type ConfigResponse struct {
	ID       string `msgpack:"id"`
	Status   string `msgpack:"status"`
	MaxLimit int    `msgpack:"max_limit"`
	MinQuery int    `msgpack:"min_query"`
	MaxQuery int    `msgpack:"max_query"`
}

// CompletionError holds basic error information for failed requests
type CompletionError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"code"`
}
