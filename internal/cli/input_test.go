package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
	"github.com/bastiangx/campuscomplete/pkg/config"
	"github.com/bastiangx/campuscomplete/pkg/debounce"
	"github.com/bastiangx/campuscomplete/pkg/dictionary"
	"github.com/bastiangx/campuscomplete/pkg/server"
	"github.com/bastiangx/campuscomplete/pkg/source"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *server.Engine {
	t.Helper()
	table := dictionary.NewTable()
	table.Scopes["josaa"] = dictionary.Scope{Types: map[string][]string{"IIT": {"iit-bombay", "iit-bhubaneswar", "iit-delhi"}}}
	table.Scopes["jac"] = dictionary.Scope{Flat: []string{"dtu", "nsut", "iiitd"}}
	table.Names = map[string]string{
		"iit-bombay":      "IIT Bombay",
		"iit-bhubaneswar": "IIT Bhubaneswar",
		"iit-delhi":       "IIT Delhi",
		"dtu":             "Delhi Technological University",
		"nsut":            "Netaji Subhas University of Technology",
		"iiitd":           "IIIT Delhi",
	}
	reg := dictionary.NewRegistry(table, nil)
	fc := clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := server.NewEngine(config.DefaultConfig(), reg, source.NewLocal(reg), nil, fc)
	t.Cleanup(e.Stop)
	return e
}

func runScript(t *testing.T, scope, script string) string {
	t.Helper()
	h, err := NewInputHandler(newEngine(t), scope, debounce.Batch, 5, strings.NewReader(script))
	require.NoError(t, err)
	var buf bytes.Buffer
	h.SetOutput(log.New(&buf))

	require.NoError(t, h.Start())
	return buf.String()
}

func TestInputHandler_NavigateAndSelect(t *testing.T) {
	// Given: a query followed by keyboard navigation
	script := strings.Join([]string{
		"iit b",
		":hl next",
		":enter",
	}, "\n")

	// When: the script runs
	out := runScript(t, "josaa", script)

	// Then: the list prints, the first entry is highlighted and then chosen
	assert.Contains(t, out, "Found 2 suggestions for 'iit b'")
	assert.Contains(t, out, "highlighted: IIT Bhubaneswar")
	assert.Contains(t, out, "Selected IIT Bhubaneswar [IIT] (IIT/iit-bhubaneswar)")
	assert.NotContains(t, out, "IIT Delhi")
}

func TestInputHandler_ScopeSwitchAndSelect(t *testing.T) {
	script := strings.Join([]string{
		":scope jac",
		"delhi",
		":select 2",
		":stats",
	}, "\n")

	out := runScript(t, "josaa", script)

	assert.Contains(t, out, "scope: jac")
	assert.Contains(t, out, "Found 2 suggestions for 'delhi'")
	assert.Contains(t, out, "Selected IIIT Delhi")
	assert.Contains(t, out, "cache: 1/100 entries")
}

func TestInputHandler_LastLineIsLookedUpAtEOF(t *testing.T) {
	out := runScript(t, "jac", "net\nnetaji")

	assert.Contains(t, out, "Found 1 suggestions for 'netaji'")
	assert.NotContains(t, out, "for 'net'", "batched lines collapse into one lookup")
}

func TestInputHandler_BadCommands(t *testing.T) {
	script := strings.Join([]string{
		":scope comedk",
		":select x",
		":select 3",
		":enter",
		":retry",
		":bogus",
		"%%$",
	}, "\n")

	out := runScript(t, "jac", script)

	assert.Contains(t, out, "unknown scope")
	assert.Contains(t, out, "usage: :select N")
	assert.Contains(t, out, "no suggestion 3")
	assert.Contains(t, out, "nothing highlighted")
	assert.Contains(t, out, "nothing to retry")
	assert.Contains(t, out, "unknown command :bogus")
	assert.Contains(t, out, "filtered out")
}

func TestNewInputHandler_UnknownScope(t *testing.T) {
	_, err := NewInputHandler(newEngine(t), "comedk", debounce.Keyboard, 5, strings.NewReader(""))
	assert.ErrorIs(t, err, dictionary.ErrUnknownScope)
}

func TestProfileFor(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "input"))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, debounce.Batch, ProfileFor(f, false))
	assert.Equal(t, debounce.Touch, ProfileFor(f, true))
}
