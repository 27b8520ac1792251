package project

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"elang/internal/diag"
)

const (
	DefaultOutDir     = "build"
	DefaultTraceLevel = "off"
)

var (
	// ErrPackageSectionMissing indicates that [package] is missing in elang.toml.
	ErrPackageSectionMissing = errors.New("missing [package]")
	// ErrPackageNameMissing indicates that [package].name is missing or empty.
	ErrPackageNameMissing = errors.New("missing [package].name")
)

// Manifest is a parsed elang.toml together with its location.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

type Config struct {
	Package PackageConfig `toml:"package"`
	Build   BuildConfig   `toml:"build"`
	Trace   TraceConfig   `toml:"trace"`
}

type PackageConfig struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"` // модуль с main; по умолчанию совпадает с name
}

type BuildConfig struct {
	OutDir  string   `toml:"out_dir"`
	Sources []string `toml:"sources"` // каталоги с .east относительно корня
}

type TraceConfig struct {
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

// LoadManifest locates elang.toml from startDir upwards and parses it.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

// LoadConfig parses path and fills the defaults of optional sections.
// Failures carry diag.ProjManifest.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, diag.Wrap(diag.ProjManifest, err, "%s: failed to parse TOML", path)
	}
	if !meta.IsDefined("package") {
		return Config{}, diag.Wrap(diag.ProjManifest, ErrPackageSectionMissing, "%s", path)
	}
	cfg.Package.Name = strings.TrimSpace(cfg.Package.Name)
	if !meta.IsDefined("package", "name") || cfg.Package.Name == "" {
		return Config{}, diag.Wrap(diag.ProjManifest, ErrPackageNameMissing, "%s", path)
	}
	if !IsValidModuleIdent(cfg.Package.Name) {
		return Config{}, diag.Errorf(diag.ProjManifest, "%s: invalid [package].name %q", path, cfg.Package.Name)
	}

	cfg.Package.Entry = strings.TrimSpace(cfg.Package.Entry)
	if cfg.Package.Entry == "" {
		cfg.Package.Entry = cfg.Package.Name
	} else if !IsValidModuleIdent(cfg.Package.Entry) {
		return Config{}, diag.Errorf(diag.ProjManifest, "%s: invalid [package].entry %q", path, cfg.Package.Entry)
	}

	if strings.TrimSpace(cfg.Build.OutDir) == "" {
		cfg.Build.OutDir = DefaultOutDir
	}
	if len(cfg.Build.Sources) == 0 {
		cfg.Build.Sources = []string{"."}
	}
	root := filepath.Dir(path)
	for _, src := range cfg.Build.Sources {
		if filepath.IsAbs(src) || !pathWithin(root, filepath.Join(root, filepath.FromSlash(src))) {
			return Config{}, diag.Errorf(diag.ProjManifest, "%s: [build].sources entry %q escapes the project root", path, src)
		}
	}

	if cfg.Trace.Level == "" {
		cfg.Trace.Level = DefaultTraceLevel
	}
	return cfg, nil
}

// SourceDirs returns the absolute source directories of the manifest.
func (m *Manifest) SourceDirs() []string {
	out := make([]string, 0, len(m.Config.Build.Sources))
	for _, src := range m.Config.Build.Sources {
		out = append(out, filepath.Join(m.Root, filepath.FromSlash(src)))
	}
	return out
}

// OutDir returns the absolute output directory.
func (m *Manifest) OutDir() string {
	if filepath.IsAbs(m.Config.Build.OutDir) {
		return m.Config.Build.OutDir
	}
	return filepath.Join(m.Root, filepath.FromSlash(m.Config.Build.OutDir))
}

// TraceOutput returns the trace output path relative to the manifest root.
// "-" and the empty string are returned as is.
func (m *Manifest) TraceOutput() string {
	out := m.Config.Trace.Output
	if out == "" || out == "-" || filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(m.Root, filepath.FromSlash(out))
}

func pathWithin(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..") && rel != ".."
}
