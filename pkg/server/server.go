package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/campuscomplete/internal/utils"
	"github.com/bastiangx/campuscomplete/pkg/autocomplete"
	"github.com/bastiangx/campuscomplete/pkg/config"
	"github.com/bastiangx/campuscomplete/pkg/dictionary"
	"github.com/bastiangx/campuscomplete/pkg/recovery"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Server handles the IPC for institution completions
type Server struct {
	engine     *Engine
	cfg        *config.Config
	configPath string

	decoder *msgpack.Decoder
	encoder *msgpack.Encoder

	requestCount int
	startedAt    time.Time
}

// NewServer creates a completion server using stdin/stdout for IPC.
// configPath is where config changes are saved; empty keeps them in memory.
func NewServer(engine *Engine, cfg *config.Config, configPath string) *Server {
	return NewServerWithIO(engine, cfg, configPath, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server over arbitrary streams.
func NewServerWithIO(engine *Engine, cfg *config.Config, configPath string, r io.Reader, w io.Writer) *Server {
	return &Server{
		engine:     engine,
		cfg:        cfg,
		configPath: configPath,
		decoder:    msgpack.NewDecoder(r),
		encoder:    msgpack.NewEncoder(w),
		startedAt:  time.Now(),
	}
}

// Start begins listening for IPC requests. It returns nil when the input
// ends or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	log.Debug("Starting Server.")

	// Signal that the server is ready
	s.sendResponse(StatusResponse{Status: "ready"})

	for ctx.Err() == nil {
		var raw msgpack.RawMessage
		if err := s.decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Errorf("Reading from stdin: %v", err)
			return err
		}

		var req Request
		if err := msgpack.Unmarshal(raw, &req); err != nil {
			log.Errorf("Unmarshaling request: %v", err)
			s.sendError("", "Invalid msgpack request", 400)
			continue
		}
		s.handleRequest(ctx, req)
	}
	return nil
}

// handleRequest dispatches on the request action
func (s *Server) handleRequest(ctx context.Context, req Request) {
	s.requestCount++

	switch req.Action {
	case "", ActionComplete:
		s.handleComplete(ctx, req)
	case ActionScopes:
		s.handleScopes(req)
	case ActionStats:
		s.handleStats(req)
	case ActionInvalidate:
		removed := s.engine.Invalidate(req.Scope)
		log.Debugf("Invalidated %d cached results (scope=%q)", removed, req.Scope)
		s.sendResponse(StatusResponse{ID: req.ID, Status: "ok", Removed: removed})
	case ActionCleanup:
		removed := s.engine.Cache().Cleanup()
		s.sendResponse(StatusResponse{ID: req.ID, Status: "ok", Removed: removed})
	case ActionHealth:
		s.sendResponse(StatusResponse{ID: req.ID, Status: "ok"})
	case ActionConfig:
		s.handleConfig(req)
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown action: %s", req.Action), 400)
	}
}

func (s *Server) sendResponse(response any) {
	if err := s.encoder.Encode(response); err != nil {
		log.Errorf("Encoding response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.sendResponse(CompletionError{ID: id, Error: message, Code: code})
}

// handleComplete validates the request, runs the scope's controller and
// sends the ranked suggestions.
func (s *Server) handleComplete(ctx context.Context, req Request) {
	query := req.Query
	sc := s.cfg.Server

	if strings.TrimSpace(query) == "" {
		s.sendError(req.ID, "Missing 'q' parameter", 400)
		log.Debug("Query is empty in request")
		return
	}
	if !utils.QueryLenOK(query, sc.MinQuery, sc.MaxQuery) {
		s.sendError(req.ID, fmt.Sprintf("Query must be between %d and %d characters", sc.MinQuery, sc.MaxQuery), 400)
		log.Debug("Query length out of range", "len", len([]rune(query)))
		return
	}
	if req.Scope == "" {
		s.sendError(req.ID, "Missing 's' parameter", 400)
		return
	}

	limit := req.Limit
	if limit < 1 {
		limit = s.cfg.Ranking.MaxResults
	}
	if sc.MaxLimit > 0 && limit > sc.MaxLimit {
		limit = sc.MaxLimit
	}

	start := time.Now()
	if !utils.IsValidQuery(query) {
		s.sendResponse(CompletionResponse{ID: req.ID, Suggestions: []CompletionSuggestion{}})
		return
	}

	ctrl, err := s.engine.Controller(req.Scope)
	if err != nil {
		code := 500
		if errors.Is(err, dictionary.ErrUnknownScope) {
			code = 404
		}
		s.sendError(req.ID, err.Error(), code)
		return
	}

	st, err := ctrl.Query(ctx, query)
	elapsed := time.Since(start)
	if err != nil {
		s.sendLookupError(req.ID, err)
		return
	}

	items := st.Suggestions
	if len(items) > limit {
		items = items[:limit]
	}
	response := CompletionResponse{
		ID:          req.ID,
		Suggestions: s.toWire(items, query),
		Count:       len(items),
		TimeTaken:   elapsed.Microseconds(),
		Stale:       st.Stale,
	}
	if st.Stale {
		response.Error = st.Notice()
	}
	s.sendResponse(response)
}

func (s *Server) sendLookupError(id string, err error) {
	var rerr *recovery.Error
	switch {
	case errors.As(err, &rerr):
		code := 503
		if rerr.Kind == recovery.KindTimeout {
			code = 504
		}
		s.sendError(id, rerr.Error(), code)
	case errors.Is(err, autocomplete.ErrSuperseded):
		s.sendError(id, err.Error(), 409)
	default:
		s.sendError(id, err.Error(), 500)
	}
}

func (s *Server) toWire(items []suggest.Suggestion, query string) []CompletionSuggestion {
	ranks := utils.CreateRankList(len(items))
	out := make([]CompletionSuggestion, len(items))
	for i, it := range items {
		score := suggest.ScoreCase(it.DisplayName, query, s.cfg.Ranking.CaseSensitive)
		if score > suggest.ScoreNone {
			score += it.Weight()
		}
		out[i] = CompletionSuggestion{
			ID:       it.ID,
			Name:     it.DisplayName,
			Slug:     it.Slug,
			Category: string(it.Category),
			Rank:     ranks[i],
			Score:    score,
		}
	}
	return out
}

func (s *Server) handleScopes(req Request) {
	resp := ScopesResponse{ID: req.ID, Scopes: []ScopeInfo{}}
	var counts map[string]int
	if reg := s.engine.Registry(); reg != nil {
		counts = reg.Count()
		resp.Version = reg.Version()
	}
	for _, name := range s.engine.Scopes() {
		resp.Scopes = append(resp.Scopes, ScopeInfo{Name: name, Count: counts[name]})
	}
	for _, c := range suggest.Categories() {
		resp.Categories = append(resp.Categories, string(c))
	}
	s.sendResponse(resp)
}

func (s *Server) handleStats(req Request) {
	now := s.engine.Clock().Now()
	snap := s.engine.Recovery().History().Snapshot(now)
	byKind := make(map[string]int, len(snap.ByKind))
	for k, n := range snap.ByKind {
		byKind[k.String()] = n
	}
	s.sendResponse(StatsResponse{
		ID:    req.ID,
		Cache: s.engine.Cache().Stats(),
		Errors: ErrorStats{
			Total:          snap.Total,
			ByKind:         byKind,
			PreferFallback: snap.Prefers,
		},
		Requests: s.requestCount,
		Uptime:   time.Since(s.startedAt).Milliseconds(),
	})
}

// handleConfig updates the server limits. Invalid combinations are
// rejected before anything changes.
func (s *Server) handleConfig(req Request) {
	next := s.cfg.Server
	if req.MaxLimit != nil {
		next.MaxLimit = *req.MaxLimit
	}
	if req.MinQuery != nil {
		next.MinQuery = *req.MinQuery
	}
	if req.MaxQuery != nil {
		next.MaxQuery = *req.MaxQuery
	}
	if next.MaxLimit < 1 || next.MinQuery < 0 || (next.MaxQuery > 0 && next.MaxQuery < next.MinQuery) {
		s.sendError(req.ID, "Invalid server limits", 400)
		return
	}

	status := "ok"
	if s.configPath == "" {
		s.cfg.Server = next
		status = "unsaved"
	} else if err := s.cfg.Update(s.configPath, req.MaxLimit, req.MinQuery, req.MaxQuery); err != nil {
		log.Warnf("Config updated in memory but not saved: %v", err)
		status = "unsaved"
	}

	sc := s.cfg.Server
	log.Infof("Server limits: max_limit=%d min_query=%d max_query=%d", sc.MaxLimit, sc.MinQuery, sc.MaxQuery)
	s.sendResponse(ConfigResponse{
		ID:       req.ID,
		Status:   status,
		MaxLimit: sc.MaxLimit,
		MinQuery: sc.MinQuery,
		MaxQuery: sc.MaxQuery,
	})
}
