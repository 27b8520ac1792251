package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"elang/internal/diag"
)

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <module>: <SEV> <CODE>: <Message>
// затем Notes с отступом.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	if bag == nil {
		return
	}
	moduleColor := paint(opts.Color, color.Bold)
	codeColor := paint(opts.Color, color.Faint)
	noteColor := paint(opts.Color, color.FgCyan)
	for _, d := range bag.Items() {
		msg := d.Message
		if opts.Width > 0 {
			msg = runewidth.Truncate(msg, int(opts.Width), "…")
		}
		prefix := ""
		if d.Module != "" {
			prefix = moduleColor.Sprint(d.Module) + ": "
		}
		fmt.Fprintf(w, "%s%s %s: %s\n", prefix, severityColor(opts.Color, d.Severity).Sprint(d.Severity), codeColor.Sprint(d.Code.ID()), msg)
		if !opts.ShowNotes {
			continue
		}
		for _, note := range d.Notes {
			fmt.Fprintf(w, "  %s %s\n", noteColor.Sprint("note:"), note)
		}
	}
}

func severityColor(enabled bool, sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return paint(enabled, color.FgRed, color.Bold)
	case diag.SevWarning:
		return paint(enabled, color.FgYellow, color.Bold)
	default:
		return paint(enabled, color.FgBlue)
	}
}

func paint(enabled bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}
