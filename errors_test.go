package rbuild

import (
	"fmt"
	"strings"
	"testing"
)

func TestFatalClassification(t *testing.T) {
	for _, k := range []Kind{Cycle, ConfigSyntax, UnknownTarget} {
		if !k.Fatal() {
			t.Errorf("%v.Fatal() = false, want true", k)
		}
	}
	for _, k := range []Kind{CommandSpawn, CommandExit, CacheCorrupt, CacheIO} {
		if k.Fatal() {
			t.Errorf("%v.Fatal() = true, want false", k)
		}
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := Errorf(CommandExit, "process exited: %d", 1)
	if !Is(err, CommandExit) {
		t.Fatal("Is(err, CommandExit) = false, want true")
	}
	if Is(err, CacheIO) {
		t.Fatal("Is(err, CacheIO) = true, want false")
	}
}

func TestErrorPlusVSurfacesFrameDetail(t *testing.T) {
	err := Errorf(CacheIO, "writing cache: %v", "disk full")
	plain := fmt.Sprintf("%v", err)
	detailed := fmt.Sprintf("%+v", err)
	if !strings.Contains(plain, "writing cache: disk full") {
		t.Fatalf("%%v output = %q, want it to contain the message", plain)
	}
	if detailed == plain {
		t.Fatalf("%%+v output is identical to %%v; the xerrors frame chain was lost")
	}
	// xerrors records the frame where xerrors.Errorf was called, which is
	// inside rbuild.Errorf itself (errors.go), not this test's call site.
	if !strings.Contains(detailed, "errors.go") {
		t.Fatalf("%%+v output = %q, want it to name the frame xerrors recorded", detailed)
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	if Is(errString("boom"), ConfigIO) {
		t.Fatal("Is on a non-*Error value returned true")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
