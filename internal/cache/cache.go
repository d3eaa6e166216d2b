// Package cache implements the on-disk hash cache codec: a persistent
// mapping from target path to the list of command fingerprints recorded
// during that target's last successful build.
//
// The binary layout is fixed by the design document:
//
//	record* := { path_len:u64 | path:bytes[path_len] | n_cmds:u64 | fp:u64 * n_cmds }
//	file    := record* (no header, no terminator)
//
// all integers little-endian. This package implements that layout
// directly with encoding/binary rather than reaching for a serialization
// library: the format is a fixed, minimal, spec-mandated byte layout with
// no schema evolution story, which is exactly the case the standard
// library's binary codec is for (see DESIGN.md for the full
// justification). The read/write rules mirror the original Rust
// implementation's target::write_hash_cache / target::read_hash_cache
// byte-for-byte.
package cache

import (
	"bufio"
	"encoding/binary"
	"io"

	"rbuild/internal/graph"

	"golang.org/x/xerrors"
)

// Write emits one record per target in g's iteration order, skipping any
// target whose command list is empty. The current fingerprint is
// recorded for every command regardless of whether it executed during
// this run, so the file always reflects the last-known-good identity of
// each command.
func Write(w io.Writer, g *graph.Graph) error {
	bw := bufio.NewWriter(w)
	var u64 [8]byte
	for _, id := range g.Iter() {
		t, err := g.Get(id)
		if err != nil {
			return xerrors.Errorf("cache write: %w", err)
		}
		if len(t.Cmds) == 0 {
			continue
		}
		binary.LittleEndian.PutUint64(u64[:], uint64(len(t.Path)))
		if _, err := bw.Write(u64[:]); err != nil {
			return xerrors.Errorf("cache write: %w", err)
		}
		if _, err := bw.WriteString(t.Path); err != nil {
			return xerrors.Errorf("cache write: %w", err)
		}
		binary.LittleEndian.PutUint64(u64[:], uint64(len(t.Cmds)))
		if _, err := bw.Write(u64[:]); err != nil {
			return xerrors.Errorf("cache write: %w", err)
		}
		for _, c := range t.Cmds {
			binary.LittleEndian.PutUint64(u64[:], c.Fingerprint)
			if _, err := bw.Write(u64[:]); err != nil {
				return xerrors.Errorf("cache write: %w", err)
			}
		}
	}
	return bw.Flush()
}

// Read streams records from r, populating CachedFingerprint on the
// matching targets in g (resolved through g.Lookup). A path absent from
// g is skipped without altering any state. A malformed record (a
// truncated length prefix, a path or fingerprint list running past the
// end of the input) aborts with an error whose message begins with
// "corrupt cache"; it is a plain wrapped error, not an *rbuild.Error of
// kind CacheCorrupt. Callers may elect to proceed as if no cache existed.
func Read(r io.Reader, g *graph.Graph) error {
	br := bufio.NewReader(r)
	for {
		pathLen, err := readU64(br)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("corrupt cache: reading path length: %w", err)
		}
		path := make([]byte, pathLen)
		if _, err := io.ReadFull(br, path); err != nil {
			return xerrors.Errorf("corrupt cache: reading path: %w", err)
		}
		nCmds, err := readU64(br)
		if err != nil {
			return xerrors.Errorf("corrupt cache: reading command count: %w", err)
		}

		id, ok := g.Lookup(string(path))
		if !ok {
			// Skip forward by n_cmds * 8 bytes without touching any state.
			if _, err := io.CopyN(io.Discard, br, int64(nCmds)*8); err != nil {
				return xerrors.Errorf("corrupt cache: skipping stale record for %q: %w", path, err)
			}
			continue
		}
		target, err := g.Get(id)
		if err != nil {
			return xerrors.Errorf("corrupt cache: %w", err)
		}
		n := nCmds
		if uint64(len(target.Cmds)) < n {
			n = uint64(len(target.Cmds))
		}
		for i := uint64(0); i < n; i++ {
			fp, err := readU64(br)
			if err != nil {
				return xerrors.Errorf("corrupt cache: reading fingerprint %d of %q: %w", i, path, err)
			}
			v := fp
			target.Cmds[i].CachedFingerprint = &v
		}
		// Skip any remaining fingerprints in this record beyond the
		// target's current command count (the target shrank since the
		// cache was written).
		if remaining := nCmds - n; remaining > 0 {
			if _, err := io.CopyN(io.Discard, br, int64(remaining)*8); err != nil {
				return xerrors.Errorf("corrupt cache: skipping tail of %q: %w", path, err)
			}
		}
	}
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
