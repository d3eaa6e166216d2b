// Package command implements HashedCommand, an executable invocation
// plus the 64-bit fingerprint that identifies it, and the fingerprint
// function the staleness oracle and the hash cache codec both rely on.
//
// The fingerprint uses hash/fnv's 64-bit FNV-1a, the same hash family
// distri uses for its own build-input digest
// (internal/build/build.go's Ctx.Digest, which hashes a package's
// resolved inputs with fnv.New128a()), narrowed to 64 bits per the
// fingerprint's fixed-width on-disk representation.
package command

import "hash/fnv"

// HashedCommand is one executable invocation plus its identity.
type HashedCommand struct {
	// Program is the executable name or path.
	Program string
	// Args are the ordered argument strings.
	Args []string
	// Fingerprint is fixed at construction: a deterministic 64-bit hash of
	// Program followed by Args, in order. Reordering Args changes it.
	Fingerprint uint64
	// CachedFingerprint is the fingerprint recorded for this command during
	// a previous successful build, if the hash cache had an entry for it.
	CachedFingerprint *uint64
}

// New builds a HashedCommand, computing its fingerprint immediately.
func New(program string, args ...string) *HashedCommand {
	return &HashedCommand{
		Program:     program,
		Args:        args,
		Fingerprint: Fingerprint(program, args),
	}
}

// Fingerprint computes the 64-bit FNV-1a hash of program followed by each
// argument in args, in order, with an interior separator so that
// concatenation ambiguities (e.g. program "ab", arg "c" vs. program "a",
// arg "bc") do not collide.
func Fingerprint(program string, args []string) uint64 {
	h := fnv.New64a()
	writeField(h, program)
	for _, a := range args {
		writeField(h, a)
	}
	return h.Sum64()
}

func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0}) // NUL separator, never valid inside a single argv element
}

// Stale reports the fingerprint half of the rerun decision: it is true if
// no cached fingerprint is present, or the cached fingerprint no longer
// matches the current one. It does not look at file timestamps; the
// caller combines it with the input-newer-than-output check.
func (c *HashedCommand) Stale() bool {
	return c.CachedFingerprint == nil || *c.CachedFingerprint != c.Fingerprint
}

// MarkRan records that the command executed successfully, so that a
// subsequent hash-cache write persists the up-to-date fingerprint.
func (c *HashedCommand) MarkRan() {
	fp := c.Fingerprint
	c.CachedFingerprint = &fp
}
