package project

import (
	"path/filepath"
	"testing"
)

func TestIsValidModuleIdent(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"main", true},
		{"_x1", true},
		{"", false},
		{"1x", false},
		{"a-b", false},
		{"модуль", false},
	}
	for _, tt := range tests {
		if got := IsValidModuleIdent(tt.name); got != tt.want {
			t.Fatalf("IsValidModuleIdent(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestResolveImportPath(t *testing.T) {
	root := filepath.FromSlash("/proj")
	from := filepath.FromSlash("/proj/src/main.east")
	tests := []struct {
		target  string
		want    string
		wantErr bool
	}{
		{"./util", "/proj/src/util.east", false},
		{"./lib/math.east", "/proj/src/lib/math.east", false},
		{"../shared/io", "/proj/shared/io.east", false},
		{"../../etc/passwd", "", true},
		{"util", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveImportPath(root, from, tt.target, ".east")
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ResolveImportPath(%q) expected error, got %q", tt.target, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ResolveImportPath(%q): %v", tt.target, err)
		}
		if got != filepath.FromSlash(tt.want) {
			t.Fatalf("ResolveImportPath(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}
