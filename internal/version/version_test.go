package version

import "testing"

func TestGet(t *testing.T) {
	if v := Get(); v == "" || v[len(v)-1] == '\n' {
		t.Errorf("Get() = %q", v)
	}
}

func TestString(t *testing.T) {
	old := Commit
	t.Cleanup(func() { Commit = old })

	Commit = ""
	if got := String(); got != Get() {
		t.Errorf("String() = %q, want %q", got, Get())
	}
	Commit = "0123456789abcdef"
	if got, want := String(), Get()+" (0123456)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
