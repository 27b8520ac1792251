package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"elang/internal/buildpipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] [paths...]",
	Short: "Build modules and write their LLVM IR",
	Long: `Build every module under the given .east files or directories (or the
manifest sources) and write <out-dir>/<module>.ll for each module that built.`,
	RunE: buildExecution,
}

func init() {
	buildCmd.Flags().String("out-dir", "", "output directory (default: manifest out_dir or ./build)")
	buildCmd.Flags().String("entry", "", "require this module to define a runnable main")
	buildCmd.Flags().Bool("dump", false, "print the entry module IR")
}

func buildExecution(cmd *cobra.Command, args []string) error {
	outDir, err := cmd.Flags().GetString("out-dir")
	if err != nil {
		return fmt.Errorf("failed to get out-dir flag: %w", err)
	}
	dump, err := cmd.Flags().GetBool("dump")
	if err != nil {
		return fmt.Errorf("failed to get dump flag: %w", err)
	}
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.cleanup()
	if err := entryFlag(cmd, s); err != nil {
		return err
	}
	if outDir != "" {
		if s.target.outDir, err = filepath.Abs(outDir); err != nil {
			return fmt.Errorf("failed to resolve out-dir: %w", err)
		}
	}

	req := s.buildRequest(buildpipeline.BackendAOT)
	req.Stdout = cmd.OutOrStdout()
	if dump {
		if s.target.entry == "" {
			return fmt.Errorf("--dump requires an entry module (--entry or manifest entry)")
		}
		req.Dump = cmd.OutOrStdout()
	}

	res, err := s.build(cmd, "elang build", s.progressFiles(), &req)
	if res.Context != nil {
		defer res.Context.Close()
	}
	if err := s.reportBuild(cmd.ErrOrStderr(), res.Compile.Driver, err); err != nil {
		return err
	}
	if s.timings {
		if err := printStageTimings(cmd.ErrOrStderr(), res.Timings, true, false); err != nil {
			return err
		}
	}
	for _, path := range res.Outputs {
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", formatPathForOutput(s.target.baseDir, path)); err != nil {
			return err
		}
	}
	return nil
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}
