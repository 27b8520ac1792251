package main

import (
	"fmt"
	"io"
	"time"

	"elang/internal/buildpipeline"
)

func printStageTimings(out io.Writer, timings buildpipeline.Timings, includeEmit, includeRun bool) error {
	if out == nil {
		return nil
	}
	lines := []struct {
		stage   buildpipeline.Stage
		label   string
		enabled bool
	}{
		{buildpipeline.StageDecode, "decoded", true},
		{buildpipeline.StageBuild, "built", true},
		{buildpipeline.StageVerify, "verified", true},
		{buildpipeline.StageEmit, "emitted", includeEmit},
		{buildpipeline.StageRun, "ran", includeRun},
	}
	for _, line := range lines {
		if !line.enabled || !timings.Has(line.stage) {
			continue
		}
		if _, err := fmt.Fprintf(out, "%s %.1f ms\n", line.label, toMillis(timings.Duration(line.stage))); err != nil {
			return err
		}
	}
	return nil
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
