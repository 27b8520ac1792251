package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"elang/internal/buildpipeline"
	"elang/internal/diag"
	"elang/internal/diagfmt"
	"elang/internal/driver"
	"elang/internal/ir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump [flags] [paths...]",
	Short: "Print decoded ASTs or the LLVM IR built from them",
	Long: `Print the modules under the given .east files or directories (or the
manifest sources). tree and json show the decoded AST; ir builds the modules
and prints the IR of the entry module, or of every module without one.`,
	RunE: dumpExecution,
}

func init() {
	dumpCmd.Flags().String("format", "ir", "output format (tree|json|ir)")
	dumpCmd.Flags().String("entry", "", "module to print with --format=ir")
}

func dumpExecution(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "tree", "json", "ir":
	default:
		return fmt.Errorf("unsupported format %q (must be tree, json or ir)", format)
	}

	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.cleanup()
	if err := entryFlag(cmd, s); err != nil {
		return err
	}

	if format == "ir" {
		return s.dumpIR(cmd)
	}
	return s.dumpAST(cmd, format)
}

func (s *session) dumpAST(cmd *cobra.Command, format string) error {
	files, err := driver.Discover(s.target.paths...)
	if err != nil {
		return s.reportBuild(cmd.ErrOrStderr(), nil, diag.Wrap(diag.ProjLoadFile, err, "discover sources"))
	}
	decoded, err := driver.DecodeFiles(cmd.Context(), files, s.maxDiagnostics, s.jobs, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bag := diag.NewBag(s.maxDiagnostics)
	for i := range decoded {
		res := &decoded[i]
		if res.Module == nil {
			bag.Merge(res.Bag)
			continue
		}
		if format == "json" {
			err = diagfmt.FormatASTJSON(out, res.Module)
		} else {
			err = dumpTree(out, formatPathForOutput(s.target.baseDir, res.Path), res, len(decoded) > 1)
		}
		if err != nil {
			return err
		}
	}
	if err := s.printDiagnostics(cmd.ErrOrStderr(), bag); err != nil {
		return err
	}
	if bag.HasErrors() {
		return &exitError{code: 1}
	}
	return nil
}

func dumpTree(w io.Writer, label string, res *driver.DecodeResult, header bool) error {
	if header {
		if _, err := fmt.Fprintf(w, "== %s ==\n", label); err != nil {
			return err
		}
	}
	return diagfmt.FormatASTPretty(w, res.Module)
}

func (s *session) dumpIR(cmd *cobra.Command) error {
	ctx := cmd.Context()
	c, err := buildpipeline.NewContext(ctx, s.target.outDir, cmd.OutOrStdout())
	if c != nil {
		defer c.Close()
	}
	if err != nil {
		return err
	}
	req := s.buildRequest(buildpipeline.BackendAOT).CompileRequest
	req.AllowDiagnosticsError = true
	res, err := buildpipeline.Compile(ctx, c, &req)
	if err != nil {
		return s.reportBuild(cmd.ErrOrStderr(), res.Driver, err)
	}

	var mods []*ir.Module
	if s.target.entry != "" {
		m := c.Module(s.target.entry)
		if m == nil {
			err = diag.Errorf(diag.BackendNoEntry, "entry module %q was not built", s.target.entry)
			return s.reportBuild(cmd.ErrOrStderr(), res.Driver, err)
		}
		mods = append(mods, m)
	} else {
		for _, name := range res.Driver.Order() {
			mods = append(mods, c.Module(name))
		}
	}

	out := cmd.OutOrStdout()
	for i, m := range mods {
		if i > 0 {
			if _, err := io.WriteString(out, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(out, c.Dump(m)); err != nil {
			return err
		}
	}
	if res.Driver.HasErrors() {
		return s.reportBuild(cmd.ErrOrStderr(), res.Driver, buildpipeline.ErrDiagnostics)
	}
	return nil
}
