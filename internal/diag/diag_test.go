package diag

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeIDs(t *testing.T) {
	cases := map[Code]string{
		SemaRedefinition:   "SEM3002",
		ModImportCollision: "MOD4003",
		BackendVerify:      "BCK5002",
		ProjImportCycle:    "PRJ6004",
		UnknownCode:        "E0000",
	}
	for code, want := range cases {
		if got := code.ID(); got != want {
			t.Fatalf("%d: got %s, want %s", code, got, want)
		}
	}
	if SemaTypeMismatch.Title() != "Type mismatch" {
		t.Fatalf("unexpected title %q", SemaTypeMismatch.Title())
	}
}

func TestCodeOfUnwrapsChains(t *testing.T) {
	base := Errorf(SemaUnresolvedSymbol, "symbol %q not found", "x")
	wrapped := fmt.Errorf("lowering main: %w", base)
	if got := CodeOf(wrapped); got != SemaUnresolvedSymbol {
		t.Fatalf("expected SemaUnresolvedSymbol, got %v", got)
	}
	if CodeOf(errors.New("plain")) != UnknownCode {
		t.Fatalf("plain errors have no code")
	}
	if Wrap(BackendError, nil, "ignored") != nil {
		t.Fatalf("wrapping nil must yield nil")
	}
	inner := errors.New("disk full")
	err := Wrap(BackendAOT, inner, "write module")
	if !errors.Is(err, inner) {
		t.Fatalf("wrapped error must unwrap to its cause")
	}
	if err.Error() != "BCK5004: write module: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestBagLimitSortDedup(t *testing.T) {
	bag := NewBag(3)
	bag.Add(NewError(SemaTypeMismatch, "b", "x"))
	bag.Add(NewError(SemaRedefinition, "a", "y"))
	bag.Add(NewError(SemaTypeMismatch, "b", "x"))
	if bag.Add(NewError(SemaError, "c", "z")) {
		t.Fatalf("bag should be full")
	}
	bag.Dedup()
	bag.Sort()
	items := bag.Items()
	if len(items) != 2 || items[0].Module != "a" || items[1].Module != "b" {
		t.Fatalf("unexpected items %+v", items)
	}
	if !bag.HasErrors() {
		t.Fatalf("expected errors")
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	d := FromError("main", Errorf(ModNotFound, "module %q not found", "io").WithNote("loaded: core"))
	r.Report(d)
	r.Report(d)
	if bag.Len() != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", bag.Len())
	}
	if got := bag.Items()[0]; got.Code != ModNotFound || len(got.Notes) != 1 {
		t.Fatalf("unexpected diagnostic %+v", got)
	}
}
