package main

import (
	"bytes"
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/spf13/cobra"

	"elang/internal/buildpipeline"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [paths...]",
	Short: "Build modules and run the entry module in process",
	Long: `Build every module under the given .east files or directories (or the
manifest sources), then JIT-run main of the entry module. The process exits
with the status main returned.`,
	RunE: runExecution,
}

func init() {
	runCmd.Flags().String("entry", "", "module whose main runs (default: manifest entry or the only root module)")
	runCmd.Flags().Bool("dump", false, "print the entry module IR before running it")
}

func runExecution(cmd *cobra.Command, args []string) error {
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

	req := s.buildRequest(buildpipeline.BackendJIT)
	files := s.progressFiles()
	out := cmd.OutOrStdout()
	// пока работает TUI, вывод программы копится в буфере
	var buffered bytes.Buffer
	if len(files) > 0 {
		out = &buffered
	}
	req.Stdout = out
	if dump {
		req.Dump = out
	}

	res, err := s.build(cmd, "elang run", files, &req)
	if res.Context != nil {
		defer res.Context.Close()
	}
	if buffered.Len() > 0 {
		if _, copyErr := io.Copy(cmd.OutOrStdout(), &buffered); copyErr != nil {
			return copyErr
		}
	}
	if err := s.reportBuild(cmd.ErrOrStderr(), res.Compile.Driver, err); err != nil {
		return err
	}
	if s.timings {
		if err := printStageTimings(cmd.ErrOrStderr(), res.Timings, false, true); err != nil {
			return err
		}
	}
	if res.ExitCode != 0 {
		return &exitError{code: exitStatus(res.ExitCode)}
	}
	return nil
}

// exitStatus maps a main result to a process status the way a shell sees it.
func exitStatus(code int64) int {
	status, err := safecast.Conv[int](code & 0xff)
	if err != nil {
		return 1
	}
	return status
}
