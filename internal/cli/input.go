// Package cli is an interactive front end to one autocomplete controller,
// for trying out scopes, debouncing and keyboard navigation from a terminal.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bastiangx/campuscomplete/internal/utils"
	"github.com/bastiangx/campuscomplete/pkg/autocomplete"
	"github.com/bastiangx/campuscomplete/pkg/debounce"
	"github.com/bastiangx/campuscomplete/pkg/server"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

const maxNameWidth = 48

// ProfileFor picks the debounce profile for input read from f. Piped input
// arrives in bursts and uses the short batch delay.
func ProfileFor(f *os.File, touch bool) debounce.Profile {
	if touch {
		return debounce.Touch
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return debounce.Keyboard
	}
	return debounce.Batch
}

// InputHandler reads queries and commands line by line and prints the
// suggestion list whenever a lookup settles.
type InputHandler struct {
	engine *server.Engine
	ctrl   *autocomplete.Controller
	limit  int
	reader io.Reader
	out    *log.Logger
}

// NewInputHandler creates a handler for scope reading from r.
func NewInputHandler(engine *server.Engine, scope string, profile debounce.Profile, limit int, r io.Reader) (*InputHandler, error) {
	h := &InputHandler{
		engine: engine,
		limit:  limit,
		reader: r,
		out:    log.Default(),
	}
	ctrl, err := engine.NewController(scope, profile, autocomplete.WithOnSelect(func(s suggest.Suggestion) {
		h.out.Printf("Selected %s [%s] (%s)", s.DisplayName, s.Category, s.ID)
	}))
	if err != nil {
		return nil, err
	}
	h.ctrl = ctrl
	ctrl.Subscribe(h.render)
	log.Debugf("CLI using %s debounce (%v)", profile, engine.Delays().For(profile))
	return h, nil
}

// SetOutput redirects printed results.
func (h *InputHandler) SetOutput(l *log.Logger) {
	h.out = l
}

// Start begins the interface loop. It returns nil at end of input, after
// the last lookup has settled.
func (h *InputHandler) Start() error {
	defer h.ctrl.Stop()

	h.out.Print("campuscomplete CLI [BETA]")
	h.out.Printf("scope %q, type a name (:help for commands, Ctrl+C to exit):", h.ctrl.Scope())
	scanner := bufio.NewScanner(h.reader)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			h.ctrl.Input("")
			continue
		}
		if strings.HasPrefix(line, ":") {
			h.settle()
			h.handleCommand(line[1:])
			continue
		}
		h.handleInput(line)
	}
	h.settle()
	return scanner.Err()
}

func (h *InputHandler) settle() {
	h.ctrl.Flush()
	h.ctrl.Wait()
}

func (h *InputHandler) handleInput(query string) {
	if !utils.IsValidQuery(query) {
		h.out.Warnf("No suggestions found for '%s' (filtered out)", query)
		return
	}
	log.Debug("Processing query", "query", query)
	h.ctrl.Input(query)
}

// render prints settled states with an open list or an error.
func (h *InputHandler) render(st autocomplete.State) {
	switch st.Phase {
	case autocomplete.PhaseResolved, autocomplete.PhaseErrored:
	default:
		return
	}
	if !st.IsOpen && len(st.Suggestions) > 0 {
		return
	}

	if notice := st.Notice(); notice != "" {
		h.out.Warn(notice)
	}
	if len(st.Suggestions) == 0 {
		if st.Error == nil {
			h.out.Warnf("No suggestions found for '%s'", st.ResultsQuery)
		}
		return
	}

	items := st.Suggestions
	if h.limit > 0 && len(items) > h.limit {
		items = items[:h.limit]
	}
	h.out.Printf("Found %d suggestions for '%s':", len(st.Suggestions), st.ResultsQuery)
	for i, s := range items {
		marker := " "
		if i == st.HighlightedIndex {
			marker = ">"
		}
		name := fmt.Sprintf("\033[38;5;75m%s\033[0m", utils.Truncate(s.DisplayName, maxNameWidth))
		h.out.Printf("%s%2d. %-60s [%s]", marker, i+1, name, s.Category)
	}
}

func (h *InputHandler) handleCommand(cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "scope":
		if arg == "" {
			h.out.Printf("scope: %s", h.ctrl.Scope())
			return
		}
		if err := h.checkScope(arg); err != nil {
			h.out.Error(err)
			return
		}
		h.ctrl.SetScope(arg)
		h.out.Printf("scope: %s", arg)
	case "scopes":
		h.out.Printf("scopes: %s", strings.Join(h.engine.Scopes(), ", "))
	case "select", "s":
		n, err := strconv.Atoi(arg)
		if err != nil {
			h.out.Errorf("usage: :select N")
			return
		}
		if _, ok := h.ctrl.Select(n - 1); !ok {
			h.out.Errorf("no suggestion %d", n)
		}
	case "hl":
		h.highlight(arg)
	case "enter":
		if _, ok := h.ctrl.AutocompleteHighlighted(); !ok {
			h.out.Warn("nothing highlighted")
		}
	case "close":
		h.ctrl.Close()
		h.out.Print("closed")
	case "retry":
		if !h.ctrl.Retry() {
			h.out.Warn("nothing to retry")
			return
		}
		h.settle()
	case "dismiss":
		h.ctrl.DismissError()
	case "stats":
		h.printStats()
	case "help":
		h.out.Print(":scope [name]  :scopes  :select N  :hl next|prev|N  :enter  :close  :retry  :dismiss  :stats")
	default:
		h.out.Errorf("unknown command :%s", fields[0])
	}
}

func (h *InputHandler) checkScope(scope string) error {
	if reg := h.engine.Registry(); reg != nil {
		_, err := reg.Suggestions(scope)
		return err
	}
	return nil
}

func (h *InputHandler) highlight(arg string) {
	var ok bool
	switch arg {
	case "next", "":
		ok = h.ctrl.HighlightNext()
	case "prev":
		ok = h.ctrl.HighlightPrev()
	default:
		n, err := strconv.Atoi(arg)
		if err != nil {
			h.out.Errorf("usage: :hl next|prev|N")
			return
		}
		ok = h.ctrl.Highlight(n - 1)
	}
	if !ok {
		h.out.Warn("nothing to highlight")
		return
	}
	if s, found := h.ctrl.State().Highlighted(); found {
		h.out.Printf("highlighted: %s", s.DisplayName)
	}
}

func (h *InputHandler) printStats() {
	cs := h.engine.Cache().Stats()
	h.out.Printf("cache: %d/%d entries, %d hits, %d misses, %d evictions, %d expired",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.Evictions, cs.Expired)

	snap := h.engine.Recovery().History().Snapshot(h.engine.Clock().Now())
	h.out.Printf("errors: %d in window, prefer fallback: %v", snap.Total, snap.Prefers)
	if reg := h.engine.Registry(); reg != nil {
		h.out.Printf("tables: version %d, %d files", reg.Version(), len(reg.Files()))
	}
}
