// Copyright 2025 The WordServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the institution autocomplete server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

campuscomplete suggests universities and colleges as the user types, within
a counselling scope such as "josaa" or "jac". Lookups are debounced, cached,
retried with exponential backoff and, when the source keeps failing, answered
from results stored earlier in the session.

# Usage

Start the server with default settings:

	campuscomplete

Use a custom table directory and enable debug mode:

	campuscomplete -data /path/to/tables -d

Run in CLI mode for interactive testing:

	campuscomplete -c -scope josaa -limit 5

Query a remote endpoint instead of the local tables:

	campuscomplete -source https://example.org/api/institutions

# Tables

The data directory holds institution tables in TOML, YAML, JSON or
MessagePack. Each lists scopes, display names and optional weights:

	[scopes.josaa]
	IIT = ["iit-bombay", "iit-delhi"]

	[names]
	iit-bombay = "IIT Bombay"

Tables are reloaded when they change unless -no-watch is given; cached
results of the changed scopes are dropped.

# Configuration

Runtime configuration lives in config.toml, created with defaults if it
doesn't exist:

	[server]
	max_limit = 50
	min_query = 1
	max_query = 80

	[cache]
	max_size = 100
	ttl_ms = 300000

	[recovery]
	timeout_ms = 5000
	max_retries = 2
	base_delay_ms = 1000

# IPC Protocol

The server communicates via MessagePack over stdin/stdout, see package server.

	{"id": "req1", "s": "josaa", "q": "iit b", "l": 5}

# Command Line Flags

	-data string
	    Directory containing institution tables (default from config)
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-config string
	    Path to config.toml
	-scope string
	    Initial scope in CLI mode
	-limit int
	    Number of suggestions to print in CLI mode
	-touch
	    Use the touch debounce delay in CLI mode
	-source string
	    Base URL of a remote lookup endpoint
	-latency duration
	    Simulated delay for local lookups
	-no-watch
	    Do not reload tables on change
	-diag
	    Print path diagnostics and exit
	-reset-config
	    Rewrite the default config.toml and exit
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bastiangx/campuscomplete/internal/cli"
	"github.com/bastiangx/campuscomplete/internal/utils"
	"github.com/bastiangx/campuscomplete/pkg/autocomplete"
	"github.com/bastiangx/campuscomplete/pkg/config"
	"github.com/bastiangx/campuscomplete/pkg/dictionary"
	"github.com/bastiangx/campuscomplete/pkg/recovery"
	"github.com/bastiangx/campuscomplete/pkg/server"
	"github.com/bastiangx/campuscomplete/pkg/source"
	"github.com/bastiangx/campuscomplete/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const (
	Version = "0.3.0-beta"
	AppName = "campuscomplete"
	gh      = "https://github.com/bastiangx/campuscomplete"
)

// sigHandler cancels the returned context on the first signal and exits on the second.
func sigHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		cancel()
		<-c
		os.Exit(0)
	}()
	return ctx
}

// main wires the packages together and only manages the flow.
func main() {
	ctx := sigHandler()
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	dataDir := flag.String("data", "", "Directory containing the institution tables")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	configFile := flag.String("config", "", "Path to config.toml")
	scope := flag.String("scope", "", "Initial scope in CLI mode (default: first loaded scope)")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of suggestions to print in CLI mode")
	touch := flag.Bool("touch", defaultConfig.CLI.Touch, "Use the touch debounce delay in CLI mode")
	remote := flag.String("source", "", "Base URL of a remote lookup endpoint (default: local tables)")
	latency := flag.Duration("latency", 0, "Simulated delay for local lookups")
	noWatch := flag.Bool("no-watch", false, "Do not reload tables when they change")
	diag := flag.Bool("diag", false, "Print path diagnostics and exit")
	resetConfig := flag.Bool("reset-config", false, "Rewrite the default config.toml with built-in defaults and exit")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}
	if *resetConfig {
		if err := config.RebuildConfigFile(); err != nil {
			log.Fatalf("Failed to rebuild config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "Config reset at %s\n", config.GetActiveConfigPath(""))
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Print("Either env is not set or system is not supported")
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}

	cfg, configPath, err := config.LoadConfigWithPriority(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(configPath))

	tablesArg := cfg.Data.Tables
	if *dataDir != "" {
		tablesArg = *dataDir
	}

	if *diag {
		out, err := yaml.Marshal(pathResolver.DiagnosePathIssues(tablesArg))
		if err != nil {
			log.Fatalf("Failed to encode diagnostics: %v", err)
		}
		os.Stderr.Write(out)
		os.Exit(0)
	}

	registry, tablesDir := loadTables(pathResolver, tablesArg, *remote == "")

	var src autocomplete.Source
	if *remote != "" {
		log.Debugf("Using remote source at %s", *remote)
		src = source.NewHTTP(*remote, nil)
	} else {
		opts := []source.LocalOption{source.WithShortlist(max(cfg.Server.MaxLimit, cfg.Ranking.MaxResults))}
		if *latency > 0 {
			opts = append(opts, source.WithLatency(nil, *latency))
		}
		src = source.NewLocal(registry, opts...)
	}

	engine := server.NewEngine(cfg, registry, src, fallbackStore(pathResolver, cfg), nil)
	defer engine.Stop()
	sweeper := engine.StartSweeper(ctx)
	defer sweeper.Cancel()

	if registry != nil && cfg.Data.Watch && !*noWatch {
		w, err := dictionary.Watch(tablesDir, registry, nil, dictionary.DefaultReloadDelay)
		if err != nil {
			log.Warnf("Table hot reload disabled: %v", err)
		} else {
			defer w.Close()
		}
	}

	// CLI would be mainly used for testing and dbg purposes.
	if *cliMode {
		log.SetReportTimestamp(false)
		initial := *scope
		if initial == "" {
			if scopes := engine.Scopes(); len(scopes) > 0 {
				initial = scopes[0]
			}
		}
		profile := cli.ProfileFor(os.Stdin, *touch)
		log.Debug("Input info:", "scope", initial, "limit", *limit, "profile", profile)

		inputHandler, err := cli.NewInputHandler(engine, initial, profile, *limit, os.Stdin)
		if err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(engine, cfg, configPath)
	showStartupInfo(tablesDir, engine.Scopes())

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// loadTables resolves and loads the table directory. Without required a
// missing directory is not fatal and the registry is nil.
func loadTables(pr *utils.PathResolver, path string, required bool) (*dictionary.Registry, string) {
	dir, err := pr.GetDataDir(path)
	if err != nil {
		if required {
			log.Fatalf("Failed to resolve data dir (looked first at %s): %v", dir, err)
		}
		log.Debugf("No table dir: %v", err)
		return nil, ""
	}
	log.Debugf("Using data dir at: %s", dir)

	table, err := dictionary.LoadDir(dir)
	if err != nil {
		if table == nil || len(table.Scopes) == 0 {
			if required {
				log.Fatalf("Failed to load tables: %v", err)
			}
			return nil, ""
		}
		log.Warnf("Some tables were skipped: %v", err)
	}
	return dictionary.NewRegistry(table, nil), dir
}

// fallbackStore keeps stale results in the session dir, or in memory if
// the dir can't be used.
func fallbackStore(pr *utils.PathResolver, cfg *config.Config) recovery.Store[[]suggest.Suggestion] {
	dir := pr.SessionDir(cfg.Data.SessionDir)
	store, err := recovery.NewFileStore[[]suggest.Suggestion](dir, cfg.Recovery.FallbackTTL(), nil)
	if err != nil {
		log.Warnf("Fallback results kept in memory only: %v", err)
		return recovery.NewMemoryStore[[]suggest.Suggestion](cfg.Recovery.FallbackTTL(), nil)
	}
	log.Debugf("Fallback store at %s", store.Path())
	return store
}

func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ campuscomplete ] Suggests institutions as you type")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process on stderr.
func showStartupInfo(dataDir string, scopes []string) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(currentLevel)

	fmt.Fprintln(os.Stderr, "================")
	fmt.Fprintln(os.Stderr, " campuscomplete ")
	fmt.Fprintln(os.Stderr, "================")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("data dir: ( %s )", dataDir)
	log.Infof("scopes: %v", scopes)
	log.Infof("started: %s", time.Now().Format(time.RFC3339))
	log.Info("status: ready")
	fmt.Fprintln(os.Stderr, "================")
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to exit")
}
