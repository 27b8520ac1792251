package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"elang/internal/ast"
	"elang/internal/bridge/llvm"
	"elang/internal/version"
)

// versionReport is what `elang version` prints. Empty fields were not
// requested.
type versionReport struct {
	Tool      string `json:"tool"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go,omitempty"`
	Schema    uint16 `json:"east_schema,omitempty"`
	Backend   string `json:"backend,omitempty"`
	Target    string `json:"target,omitempty"`
}

var (
	versionFormat    string
	versionBuild     bool
	versionToolchain bool
	versionFull      bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionBuild, "build", false, "include commit, build date and Go version")
	versionCmd.Flags().BoolVar(&versionToolchain, "toolchain", false, "include the .east schema, backend and target")
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "same as --build --toolchain")
	versionCmd.Flags().StringVar(&versionFormat, "format", "pretty", "output format (pretty|json)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show elang build and toolchain information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(versionFormat)
		if format != "pretty" && format != "json" {
			return fmt.Errorf("unsupported format %q (must be pretty or json)", versionFormat)
		}
		report := buildVersionReport(version.Resolve(), versionBuild || versionFull, versionToolchain || versionFull)
		if format == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		colorFlag, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return fmt.Errorf("failed to get color flag: %w", err)
		}
		useColor, err := shouldColor(colorFlag, os.Stdout)
		if err != nil {
			return err
		}
		color.NoColor = !useColor
		return renderVersionPretty(cmd.OutOrStdout(), report, version.Colored())
	},
}

func buildVersionReport(info version.Info, build, toolchain bool) versionReport {
	r := versionReport{Tool: "elang", Version: info.Version}
	if build {
		r.Commit = valueOrUnknown(info.Commit)
		if info.Modified && info.Commit != "" {
			r.Commit += "+dirty"
		}
		r.BuildDate = valueOrUnknown(info.BuildDate)
		r.GoVersion = info.GoVersion
	}
	if toolchain {
		r.Schema = ast.SchemaVersion
		r.Backend = "llvm ir (llir/llvm), jit interpreter"
		r.Target = llvm.Target
	}
	return r
}

// renderVersionPretty prints the banner line followed by one aligned line
// per requested field.
func renderVersionPretty(out io.Writer, r versionReport, banner string) error {
	rows := [][2]string{
		{"commit", r.Commit},
		{"built", r.BuildDate},
		{"go", r.GoVersion},
		{"backend", r.Backend},
		{"target", r.Target},
	}
	if r.Schema != 0 {
		rows = append(rows, [2]string{"schema", fmt.Sprintf("east v%d", r.Schema)})
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", r.Tool, banner)
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "  %-8s %s\n", row[0]+":", row[1])
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func valueOrUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
