package main

import (
	"errors"
	"io"

	"elang/internal/buildpipeline"
	"elang/internal/diag"
	"elang/internal/diagfmt"
	"elang/internal/driver"
)

// printDiagnostics renders bag in the session's format.
func (s *session) printDiagnostics(w io.Writer, bag *diag.Bag) error {
	if bag == nil || bag.Len() == 0 {
		return nil
	}
	bag.Sort()
	if s.diagFormat == "json" {
		return diagfmt.JSON(w, bag, diagfmt.JSONOpts{Max: s.maxDiagnostics, IncludeNotes: true})
	}
	diagfmt.Pretty(w, bag, diagfmt.PrettyOpts{Color: s.color, ShowNotes: true})
	return nil
}

// reportBuild prints the diagnostics of a build and turns a failed build
// into an exit error. Errors that carry no diagnostics are returned as is.
func (s *session) reportBuild(w io.Writer, res *driver.Result, err error) error {
	var bag *diag.Bag
	if res != nil {
		bag = res.Bag
	}
	if err != nil && !errors.Is(err, buildpipeline.ErrDiagnostics) {
		if diag.CodeOf(err) == diag.UnknownCode {
			s.failed = true
			if printErr := s.printDiagnostics(w, bag); printErr != nil {
				return printErr
			}
			return err
		}
		if bag == nil {
			bag = diag.NewBag(s.maxDiagnostics)
		}
		bag.AddError("", err)
	}
	if printErr := s.printDiagnostics(w, bag); printErr != nil {
		return printErr
	}
	if err != nil {
		s.failed = true
		return &exitError{code: 1}
	}
	return nil
}
