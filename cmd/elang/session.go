package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"elang/internal/ast"
	"elang/internal/buildpipeline"
	"elang/internal/driver"
	"elang/internal/project"
)

const noManifestMessage = "no " + project.ManifestName + " found\nplease specify the modules explicitly, e.g.:\n  elang run path/to/main" + ast.Ext

// session collects everything a compiling command derives from its flags,
// arguments and the project manifest.
type session struct {
	manifest *project.Manifest
	target   target

	maxDiagnostics int
	jobs           int
	timings        bool
	diagFormat     string
	color          bool
	ui             uiMode

	failed  bool // set by reportBuild, read by cleanup
	cleanup func()
}

// target is what gets compiled.
type target struct {
	paths   []string
	root    string // граница относительных импортов, пусто - без ограничения
	baseDir string
	entry   string
	outDir  string
}

func openSession(cmd *cobra.Command, args []string) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	colorFlag, err := flags.GetString("color")
	if err != nil {
		return nil, fmt.Errorf("failed to get color flag: %w", err)
	}
	uiFlag, err := flags.GetString("ui")
	if err != nil {
		return nil, fmt.Errorf("failed to get ui flag: %w", err)
	}
	diagFormat, err := flags.GetString("diag-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get diag-format flag: %w", err)
	}
	s := &session{cleanup: func() {}}
	if s.maxDiagnostics, err = flags.GetInt("max-diagnostics"); err != nil {
		return nil, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if s.jobs, err = flags.GetInt("jobs"); err != nil {
		return nil, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if s.timings, err = flags.GetBool("timings"); err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}

	s.diagFormat = strings.ToLower(strings.TrimSpace(diagFormat))
	if s.diagFormat != "pretty" && s.diagFormat != "json" {
		return nil, fmt.Errorf("unsupported diagnostics format %q (must be pretty or json)", diagFormat)
	}
	if s.color, err = shouldColor(colorFlag, os.Stderr); err != nil {
		return nil, err
	}
	color.NoColor = !s.color
	if s.ui, err = readUIMode(uiFlag); err != nil {
		return nil, err
	}

	manifest, found, err := project.LoadManifest(".")
	if err != nil {
		return nil, err
	}
	if found {
		s.manifest = manifest
	}
	if s.target, err = resolveTarget(s.manifest, args); err != nil {
		return nil, err
	}

	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return nil, err
	}
	stopTracing, err := setupTracing(cmd, s.manifest)
	if err != nil {
		stopProfiling()
		return nil, err
	}
	s.cleanup = func() {
		stopTracing(s.failed)
		stopProfiling()
	}
	return s, nil
}

// resolveTarget uses explicit arguments when given and the manifest
// sources otherwise.
func resolveTarget(manifest *project.Manifest, args []string) (target, error) {
	var t target
	if manifest != nil {
		t.outDir = manifest.OutDir()
	}
	if len(args) == 0 {
		if manifest == nil {
			return t, errors.New(noManifestMessage)
		}
		t.paths = manifest.SourceDirs()
		t.root = manifest.Root
		t.baseDir = manifest.Root
		t.entry = manifest.Config.Package.Entry
		return t, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return t, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	t.paths = append(t.paths, args...)
	t.baseDir = cwd
	if manifest != nil && allWithin(manifest.Root, args) {
		t.root = manifest.Root
	}
	return t, nil
}

func allWithin(root string, paths []string) bool {
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return false
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return false
		}
	}
	return true
}

// buildRequest fills the request shared by run and build.
func (s *session) buildRequest(backend buildpipeline.Backend) buildpipeline.BuildRequest {
	return buildpipeline.BuildRequest{
		CompileRequest: buildpipeline.CompileRequest{
			Paths:          s.target.paths,
			Root:           s.target.root,
			BaseDir:        s.target.baseDir,
			MaxDiagnostics: s.maxDiagnostics,
			Jobs:           s.jobs,
		},
		Backend: backend,
		Entry:   s.target.entry,
		OutDir:  s.target.outDir,
	}
}

// progressFiles returns the files the progress UI tracks, or nil when the
// UI is off or there is a single module to build.
func (s *session) progressFiles() []string {
	if !shouldUseTUI(s.ui) {
		return nil
	}
	files, err := driver.Discover(s.target.paths...)
	if err != nil || len(files) < 2 {
		return nil
	}
	return buildpipeline.ProgressFiles(s.target.baseDir, files)
}

func (s *session) build(cmd *cobra.Command, title string, files []string, req *buildpipeline.BuildRequest) (buildpipeline.BuildResult, error) {
	if len(files) > 0 {
		return runBuildWithUI(cmd.Context(), title, files, req)
	}
	return buildpipeline.Build(cmd.Context(), req)
}

func entryFlag(cmd *cobra.Command, s *session) error {
	entry, err := cmd.Flags().GetString("entry")
	if err != nil {
		return fmt.Errorf("failed to get entry flag: %w", err)
	}
	if entry != "" {
		s.target.entry = entry
	}
	return nil
}
