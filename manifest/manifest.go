// Package manifest handles tcvm.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "tcvm.toml"

// Manifest represents a tcvm.toml configuration.
type Manifest struct {
	Engine  Engine  `toml:"engine" json:"engine"`
	Bench   Bench   `toml:"bench" json:"bench"`
	Results Results `toml:"results" json:"results"`
	Program Program `toml:"program" json:"program"`

	// Dir is the directory containing the tcvm.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Engine configures program execution.
type Engine struct {
	StackDepthLimit int  `toml:"stack-depth-limit" json:"stackDepthLimit"`
	Verify          bool `toml:"verify" json:"verify"`
	Trace           bool `toml:"trace" json:"trace"`
}

// Bench configures the timing harness.
type Bench struct {
	Warmup     int `toml:"warmup" json:"warmup"`
	Iterations int `toml:"iterations" json:"iterations"`
	Parallel   int `toml:"parallel" json:"parallel"`
}

// Results configures the benchmark results database.
type Results struct {
	Path string `toml:"path" json:"path"`
}

// Program selects what runs when no file is given on the command line.
type Program struct {
	Path  string `toml:"path" json:"path"`
	Count uint32 `toml:"count" json:"count"`
}

// Default returns the configuration used when no tcvm.toml exists.
func Default() *Manifest {
	return &Manifest{
		Engine: Engine{
			StackDepthLimit: 500,
		},
		Bench: Bench{
			Warmup:     10,
			Iterations: 100,
			Parallel:   1,
		},
		Results: Results{
			Path: filepath.Join(".tcvm", "results.db"),
		},
		Program: Program{
			Count: 1048575,
		},
	}
}

// Load parses a tcvm.toml file from the given directory. Keys missing from
// the file keep their defaults; unknown keys are an error.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path, which need not be named
// tcvm.toml. Relative paths inside it resolve against its directory.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad loads the tcvm.toml nearest to startDir, looking in startDir
// and then each of its parents. It returns nil, nil when none exists, so
// callers fall back to Default.
func FindAndLoad(startDir string) (*Manifest, error) {
	path, err := find(startDir)
	if err != nil || path == "" {
		return nil, err
	}
	return LoadFile(path)
}

// find returns the path of the nearest tcvm.toml, or "" at the root.
func find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(dir, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// ResultsPath returns the results database path, resolved against Dir.
func (m *Manifest) ResultsPath() string {
	return m.resolve(m.Results.Path)
}

// ProgramPath returns the configured program path resolved against Dir, or
// "" when none is configured.
func (m *Manifest) ProgramPath() string {
	if m.Program.Path == "" {
		return ""
	}
	return m.resolve(m.Program.Path)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
