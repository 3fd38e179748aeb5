package fd

import (
	"testing"

	"pageos/ustr"
)

func TestCanonicalpathCollapsesDotDot(t *testing.T) {
	cwd := MkRootCwd(nil)
	cwd.Path = ustr.Ustr("/home/user")

	got := cwd.Canonicalpath(ustr.Ustr("../bin/../etc/passwd"))
	want := "/home/etc/passwd"
	if got.String() != want {
		t.Fatalf("canonicalpath = %q, want %q", got.String(), want)
	}
}

func TestCanonicalpathAbsolute(t *testing.T) {
	cwd := MkRootCwd(nil)
	cwd.Path = ustr.Ustr("/home/user")

	got := cwd.Canonicalpath(ustr.Ustr("/etc/./passwd"))
	want := "/etc/passwd"
	if got.String() != want {
		t.Fatalf("canonicalpath = %q, want %q", got.String(), want)
	}
}

func TestCopyfdSharesOpenFile(t *testing.T) {
	f := &Fd_t{Perms: FD_READ}
	nf, err := Copyfd(f)
	if err != 0 {
		t.Fatalf("copyfd: %d", err)
	}
	if nf.File != f.File {
		t.Fatalf("copyfd should share the underlying open file")
	}
}
