package ast

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"elang/internal/diag"
)

// Ext is the file extension of encoded modules.
const Ext = ".east"

// SchemaVersion is written into every .east file. Bump it when the node
// layout changes.
const SchemaVersion uint16 = 1

type envelope struct {
	Schema uint16  `msgpack:"schema"`
	Module *Module `msgpack:"module"`
}

// Encode writes m to w.
func Encode(w io.Writer, m *Module) error {
	if m == nil {
		return diag.Errorf(diag.ProjDecodeAST, "cannot encode a nil module")
	}
	enc := msgpack.NewEncoder(w)
	enc.SetOmitEmpty(true)
	return enc.Encode(&envelope{Schema: SchemaVersion, Module: m})
}

// Decode reads one module from r and validates its shape.
func Decode(r io.Reader) (*Module, error) {
	var env envelope
	if err := msgpack.NewDecoder(r).Decode(&env); err != nil {
		return nil, diag.Wrap(diag.ProjDecodeAST, err, "malformed module")
	}
	if env.Schema != SchemaVersion {
		return nil, diag.Errorf(diag.ProjDecodeAST, "schema %d, want %d", env.Schema, SchemaVersion)
	}
	if env.Module == nil {
		return nil, diag.Errorf(diag.ProjDecodeAST, "empty payload")
	}
	if err := Validate(env.Module); err != nil {
		return nil, err
	}
	return env.Module, nil
}

// Marshal is Encode into a byte slice.
func Marshal(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile encodes m into path.
func WriteFile(path string, m *Module) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return diag.Wrap(diag.ProjLoadFile, err, "write %s", path)
	}
	return nil
}

// ReadFile decodes the module stored at path and records path on it.
func ReadFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diag.Wrap(diag.ProjLoadFile, err, "open %s", path)
	}
	defer f.Close()
	m, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}
