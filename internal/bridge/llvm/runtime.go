package llvm

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

type shimFunc func(vm *machine, args []any) (any, error)

// shims back the C library functions declared by the cstd and core modules.
var shims = map[string]shimFunc{
	"malloc":  shimMalloc,
	"free":    shimFree,
	"printf":  shimPrintf,
	"sprintf": shimSprintf,
	"strlen":  shimStrlen,
	"puts":    shimPuts,
	"print":   shimPrint,
}

func shimMalloc(vm *machine, args []any) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("malloc: want 1 argument")
	}
	n := toInt(args[0])
	if n < 0 {
		return ptr{}, nil
	}
	return vm.alloc(n), nil
}

func shimFree(_ *machine, args []any) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("free: want 1 argument")
	}
	p, _ := args[0].(ptr)
	if p.isNull() {
		return nil, nil
	}
	if p.obj.freed {
		return nil, errors.New("free: double free")
	}
	p.obj.freed = true
	return nil, nil
}

func shimPrintf(vm *machine, args []any) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("printf: missing format")
	}
	format, err := readCString(args[0])
	if err != nil {
		return nil, fmt.Errorf("printf: %w", err)
	}
	s, err := formatC(format, args[1:])
	if err != nil {
		return nil, fmt.Errorf("printf: %w", err)
	}
	return writeOut(vm.b.opts.Stdout, s)
}

func shimSprintf(_ *machine, args []any) (any, error) {
	if len(args) < 2 {
		return nil, errors.New("sprintf: want a buffer and a format")
	}
	dst, ok := args[0].(ptr)
	if !ok || dst.isNull() {
		return nil, errors.New("sprintf: null buffer")
	}
	format, err := readCString(args[1])
	if err != nil {
		return nil, fmt.Errorf("sprintf: %w", err)
	}
	s, err := formatC(format, args[2:])
	if err != nil {
		return nil, fmt.Errorf("sprintf: %w", err)
	}
	writeCString(dst, s)
	return int64(len(s)), nil
}

func shimStrlen(_ *machine, args []any) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("strlen: want 1 argument")
	}
	s, err := readCString(args[0])
	if err != nil {
		return nil, fmt.Errorf("strlen: %w", err)
	}
	return int64(len(s)), nil
}

func shimPuts(vm *machine, args []any) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("puts: want 1 argument")
	}
	s, err := readCString(args[0])
	if err != nil {
		return nil, fmt.Errorf("puts: %w", err)
	}
	return writeOut(vm.b.opts.Stdout, s+"\n")
}

func shimPrint(vm *machine, args []any) (any, error) {
	if len(args) != 1 {
		return nil, errors.New("print: want 1 argument")
	}
	s, err := readCString(args[0])
	if err != nil {
		return nil, fmt.Errorf("print: %w", err)
	}
	return writeOut(vm.b.opts.Stdout, s)
}

func writeOut(w io.Writer, s string) (any, error) {
	n, err := io.WriteString(w, s)
	return int64(n), err
}

func readCString(v any) (string, error) {
	p, ok := v.(ptr)
	if !ok || p.isNull() {
		return "", errors.New("null string")
	}
	if p.obj.freed {
		return "", errors.New("string in freed memory")
	}
	var sb strings.Builder
	for off := p.off; ; off++ {
		c, ok := p.obj.cells[off]
		if !ok {
			break
		}
		b := byte(toInt(c))
		if b == 0 {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}

func writeCString(p ptr, s string) {
	for i := 0; i < len(s); i++ {
		p.obj.cells[p.off+int64(i)] = int64(s[i])
	}
	p.obj.cells[p.off+int64(len(s))] = int64(0)
}

// formatC renders a printf-style format. Length modifiers are accepted and
// ignored; %i and %u print as %d.
func formatC(format string, args []any) (string, error) {
	var sb strings.Builder
	next := 0
	arg := func() (any, error) {
		if next >= len(args) {
			return nil, errors.New("too few arguments for format")
		}
		a := args[next]
		next++
		return a, nil
	}
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ #0", format[j]) >= 0 {
			j++
		}
		for j < len(format) && (format[j] >= '0' && format[j] <= '9' || format[j] == '.') {
			j++
		}
		spec := format[i:j]
		for j < len(format) && strings.IndexByte("hlLqjzt", format[j]) >= 0 {
			j++
		}
		if j >= len(format) {
			return "", errors.New("truncated format directive")
		}
		verb := format[j]
		i = j
		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		a, err := arg()
		if err != nil {
			return "", err
		}
		switch verb {
		case 'd', 'i', 'u':
			fmt.Fprintf(&sb, spec+"d", toInt(a))
		case 'x', 'X', 'o':
			fmt.Fprintf(&sb, spec+string(verb), toInt(a))
		case 'c':
			fmt.Fprintf(&sb, spec+"c", rune(toInt(a)))
		case 'f', 'F', 'e', 'E', 'g', 'G':
			fmt.Fprintf(&sb, spec+string(verb), toFloat(a))
		case 's':
			s, err := readCString(a)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&sb, spec+"s", s)
		case 'p':
			fmt.Fprintf(&sb, "0x%x", toInt(a))
		default:
			return "", fmt.Errorf("unsupported format verb %%%c", verb)
		}
	}
	return sb.String(), nil
}
