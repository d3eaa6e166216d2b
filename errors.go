package rbuild

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Kind identifies a member of the error taxonomy from the design
// document's error handling section. Fatal kinds abort the run before any
// command executes; local kinds are reported per-target on the result
// channel and only cancel that target's downstream cone.
type Kind int

const (
	// ConfigIO indicates the configuration file could not be read.
	ConfigIO Kind = iota
	// ConfigSyntax indicates an unrecognized keyword, a dangling keyword
	// value, an undefined dependency reference, or an unterminated quoted
	// string.
	ConfigSyntax
	// UnknownTarget indicates a user-named target is absent from the graph.
	UnknownTarget
	// Cycle indicates compile detected a back edge among requested targets.
	Cycle
	// CommandSpawn indicates an executable could not be found or launched.
	CommandSpawn
	// CommandExit indicates a process exited with a non-zero status.
	CommandExit
	// CacheCorrupt indicates a malformed record was found while reading the
	// hash cache.
	CacheCorrupt
	// CacheIO indicates a cache read or write failure unrelated to the
	// record format.
	CacheIO
)

func (k Kind) String() string {
	switch k {
	case ConfigIO:
		return "ConfigIO"
	case ConfigSyntax:
		return "ConfigSyntax"
	case UnknownTarget:
		return "UnknownTarget"
	case Cycle:
		return "Cycle"
	case CommandSpawn:
		return "CommandSpawn"
	case CommandExit:
		return "CommandExit"
	case CacheCorrupt:
		return "CacheCorrupt"
	case CacheIO:
		return "CacheIO"
	default:
		return "Unknown"
	}
}

// Fatal reports whether an error of this kind must abort the run before any
// command is executed, per the error handling section of the design
// document: Cycle, ConfigSyntax, and UnknownTarget are fatal; the others are
// local to a single target (command failures) or non-fatal (cache issues).
func (k Kind) Fatal() bool {
	switch k {
	case Cycle, ConfigSyntax, UnknownTarget:
		return true
	default:
		return false
	}
}

// Error is the typed error carried through the taxonomy. Wrap it with
// xerrors.Errorf("...: %w", err) to add context while preserving Kind for
// errors.As/xerrors.Is callers.
//
// The underlying xerrors error is kept alive, not flattened to a string,
// so that a %+v on the *Error (as -debug does at the command's reporting
// site) still reaches the frame information xerrors attaches, the same
// thing a bare %+v on a live xerrors error gets you.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string {
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// Format implements fmt.Formatter so that %+v on an *Error delegates to
// the wrapped xerrors error's own Format, surfacing its frame chain.
// xerrors.Errorf always returns a value implementing fmt.Formatter, so
// the plain fmt.Fprint fallback only matters for an *Error built by hand
// around some other error type.
func (e *Error) Format(f fmt.State, verb rune) {
	if formatter, ok := e.err.(fmt.Formatter); ok {
		formatter.Format(f, verb)
		return
	}
	fmt.Fprint(f, e.err.Error())
}

// Errorf builds a new *Error of the given kind, following the same
// formatting convention as xerrors.Errorf.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, err: xerrors.Errorf(format, args...)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !xerrors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
