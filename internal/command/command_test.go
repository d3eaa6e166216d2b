package command

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("cc", []string{"-c", "a.c"})
	b := Fingerprint("cc", []string{"-c", "a.c"})
	if a != b {
		t.Fatalf("Fingerprint is not deterministic: %d != %d", a, b)
	}
}

func TestFingerprintSensitiveToArgOrder(t *testing.T) {
	a := Fingerprint("ld", []string{"a.o", "b.o"})
	b := Fingerprint("ld", []string{"b.o", "a.o"})
	if a == b {
		t.Fatal("Fingerprint did not change when argument order changed")
	}
}

func TestFingerprintAvoidsConcatenationCollision(t *testing.T) {
	a := Fingerprint("ab", []string{"c"})
	b := Fingerprint("a", []string{"bc"})
	if a == b {
		t.Fatal("Fingerprint collided across a field boundary")
	}
}

func TestStale(t *testing.T) {
	c := New("touch", "b")
	if !c.Stale() {
		t.Fatal("a freshly constructed command with no cached fingerprint must be stale")
	}
	c.MarkRan()
	if c.Stale() {
		t.Fatal("command should not be stale immediately after MarkRan")
	}
}

func TestStaleAfterArgChange(t *testing.T) {
	c := New("touch", "b")
	c.MarkRan()
	c.Args = []string{"-a", "b"}
	c.Fingerprint = Fingerprint(c.Program, c.Args)
	if !c.Stale() {
		t.Fatal("changing the command's arguments must make it stale again")
	}
}
