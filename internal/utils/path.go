package utils

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

const appName = "campuscomplete"

// ErrNoTables is returned when no candidate directory holds a table file.
var ErrNoTables = errors.New("no institution tables found")

// TableExtensions are the file extensions read as institution tables.
var TableExtensions = []string{".toml", ".yaml", ".yml", ".json", ".msgpack"}

// IsTableFile reports whether name has a table extension.
func IsTableFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range TableExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// PathResolver finds the table, config and session directories relative to
// the running binary, the working directory and the user's config dir.
type PathResolver struct {
	execDir   string
	workDir   string
	configDir string
}

// NewPathResolver resolves the executable location, following symlinks.
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	if execPath, err = filepath.EvalSymlinks(execPath); err != nil {
		return nil, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		home = os.TempDir()
	}
	wd, _ := os.Getwd()

	pr := &PathResolver{
		execDir:   filepath.Dir(execPath),
		workDir:   wd,
		configDir: userConfigDir(home),
	}
	log.Debugf("PathResolver initialized: execDir=%s, workDir=%s, configDir=%s", pr.execDir, pr.workDir, pr.configDir)
	return pr, nil
}

func userConfigDir(home string) string {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName)
		}
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName)
		}
		return filepath.Join(home, "AppData", "Roaming", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// dataCandidates lists where tables are looked for, best first, without
// duplicates.
func (pr *PathResolver) dataCandidates(path string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p = filepath.Clean(p); !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	if filepath.IsAbs(path) {
		add(path)
	} else {
		add(filepath.Join(pr.execDir, path))
		if pr.workDir != "" {
			add(filepath.Join(pr.workDir, path))
		}
	}
	add(filepath.Join(pr.execDir, "data"))
	add(filepath.Join(filepath.Dir(pr.execDir), "data"))
	add(filepath.Join(pr.configDir, "data"))
	return out
}

// GetDataDir returns the first candidate directory holding a table file.
func (pr *PathResolver) GetDataDir(path string) (string, error) {
	candidates := pr.dataCandidates(path)
	for _, dir := range candidates {
		if len(listTableFiles(dir)) > 0 {
			log.Debugf("Found valid data directory: %s", dir)
			return dir, nil
		}
		log.Debugf("Data directory candidate not valid: %s", dir)
	}
	return candidates[0], ErrNoTables
}

// SessionDir returns the directory for per-session state such as fallback
// results. A relative path is taken from the executable directory; an
// empty one selects a directory under the system temp dir.
func (pr *PathResolver) SessionDir(path string) string {
	switch {
	case path == "":
		return filepath.Join(os.TempDir(), appName, "session")
	case filepath.IsAbs(path):
		return path
	default:
		return filepath.Join(pr.execDir, path)
	}
}

// Candidate is one probed table directory.
type Candidate struct {
	Path   string   `yaml:"path"`
	Exists bool     `yaml:"exists"`
	Tables []string `yaml:"tables,omitempty"`
}

// Diagnostics describes how paths were resolved, for -diag output.
type Diagnostics struct {
	OS         string            `yaml:"os"`
	Arch       string            `yaml:"arch"`
	ExecDir    string            `yaml:"exec_dir"`
	WorkDir    string            `yaml:"work_dir"`
	ConfigDir  string            `yaml:"config_dir"`
	Requested  string            `yaml:"requested_data_dir"`
	Resolved   string            `yaml:"resolved_data_dir"`
	Error      string            `yaml:"error,omitempty"`
	Candidates []Candidate       `yaml:"candidates"`
	Env        map[string]string `yaml:"env,omitempty"`
}

// DiagnosePathIssues probes every data directory candidate for path.
func (pr *PathResolver) DiagnosePathIssues(path string) Diagnostics {
	d := Diagnostics{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		ExecDir:   pr.execDir,
		WorkDir:   pr.workDir,
		ConfigDir: pr.configDir,
		Requested: path,
		Env:       make(map[string]string),
	}
	resolved, err := pr.GetDataDir(path)
	d.Resolved = resolved
	if err != nil {
		d.Error = err.Error()
	}
	for _, dir := range pr.dataCandidates(path) {
		_, statErr := os.Stat(dir)
		d.Candidates = append(d.Candidates, Candidate{Path: dir, Exists: statErr == nil, Tables: listTableFiles(dir)})
	}
	for _, key := range []string{"HOME", "XDG_CONFIG_HOME", "APPDATA"} {
		if v := os.Getenv(key); v != "" {
			d.Env[strings.ToLower(key)] = v
		}
	}
	return d
}

func listTableFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsTableFile(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}
