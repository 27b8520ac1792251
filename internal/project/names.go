package project

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

func IsValidModuleIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r > unicode.MaxASCII {
			return false
		}
		if i == 0 && r != '_' && !unicode.IsLetter(r) {
			return false
		}
		if i > 0 && r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// ResolveImportPath turns a relative import target ("./x", "../lib/y.east")
// into a cleaned file path next to the importing file. The extension is
// appended when missing. Targets that climb above root are rejected.
func ResolveImportPath(root, fromFile, target, ext string) (string, error) {
	if target == "" {
		return "", fmt.Errorf("empty import path")
	}
	if !strings.HasPrefix(target, ".") {
		return "", fmt.Errorf("import %q is not relative", target)
	}
	p := filepath.Join(filepath.Dir(fromFile), filepath.FromSlash(target))
	if filepath.Ext(p) != ext {
		p += ext
	}
	if root != "" && !pathWithin(root, p) {
		return "", fmt.Errorf("import %q escapes project root", target)
	}
	return p, nil
}
