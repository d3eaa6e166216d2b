package rbuild

import "time"

// Freshness is a modification timestamp propagated along the edges of the
// dependency graph during a run. Epoch (the Unix epoch) is the sentinel
// meaning "the file does not exist, or its time is otherwise unavailable";
// it compares strictly less than any real timestamp. NewFreshness maps a
// zero time.Time to Epoch; the zero Freshness value itself is not Epoch.
type Freshness time.Time

// Epoch is the sentinel Freshness value for a missing or timeless file.
var Epoch = Freshness(time.Unix(0, 0).UTC())

// NewFreshness wraps t as a Freshness value.
func NewFreshness(t time.Time) Freshness {
	if t.IsZero() {
		return Epoch
	}
	return Freshness(t)
}

// After reports whether f is strictly newer than other.
func (f Freshness) After(other Freshness) bool {
	return time.Time(f).After(time.Time(other))
}

// Max returns the newer of f and other.
func (f Freshness) Max(other Freshness) Freshness {
	if other.After(f) {
		return other
	}
	return f
}

// MaxFreshness returns the newest value in vs, or Epoch if vs is empty.
func MaxFreshness(vs []Freshness) Freshness {
	newest := Epoch
	for _, v := range vs {
		newest = newest.Max(v)
	}
	return newest
}

func (f Freshness) String() string {
	return time.Time(f).Format(time.RFC3339Nano)
}
