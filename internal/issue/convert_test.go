package issue

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/danieljhkim/hostconf/internal/instr"
)

// fakeResolver names ids from fixed tables.
type fakeResolver struct {
	users  map[uint32]string
	groups map[uint32]string
}

func (r fakeResolver) UID(name string) (uint32, error) { return 0, errors.New("unused") }
func (r fakeResolver) GID(name string) (uint32, error) { return 0, errors.New("unused") }

func (r fakeResolver) UserName(uid uint32) (string, error) {
	if name, ok := r.users[uid]; ok {
		return name, nil
	}
	return "", fmt.Errorf("unknown uid %d", uid)
}

func (r fakeResolver) GroupName(gid uint32) (string, error) {
	if name, ok := r.groups[gid]; ok {
		return name, nil
	}
	return "", fmt.Errorf("unknown gid %d", gid)
}

func newTestConverter(t *testing.T, allow ...string) *Converter {
	t.Helper()
	c, err := NewConverter(allow, fakeResolver{
		users:  map[uint32]string{0: "root", 1000: "x"},
		groups: map[uint32]string{0: "root", 10: "wheel"},
	})
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}
	return c
}

func ops(instrs []instr.FsInstruction) []instr.FsOp {
	out := make([]instr.FsOp, len(instrs))
	for i, ins := range instrs {
		out[i] = ins.Op
	}
	return out
}

func countOp(instrs []instr.FsInstruction, path string, op instr.FsOp) int {
	n := 0
	for _, ins := range instrs {
		if ins.Path == path && ins.Op.Equal(op) {
			n++
		}
	}
	return n
}

func TestConvert_SingleKinds(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		want []instr.FsOp
	}{
		{name: "missing", kind: KindMissing(), want: []instr.FsOp{instr.Restore()}},
		{name: "unexpected", kind: KindUnexpected(), want: []instr.FsOp{instr.Remove()}},
		{name: "mode", kind: KindWrongMode(0600, 0644), want: []instr.FsOp{instr.SetMode(0644)}},
		{name: "owner", kind: KindWrongOwner(0, 1000), want: []instr.FsOp{instr.SetOwner("x")}},
		{name: "group", kind: KindWrongGroup(0, 10), want: []instr.FsOp{instr.SetGroup("wheel")}},
		{name: "checksum", kind: KindChecksumIncorrect(), want: []instr.FsOp{instr.Restore()}},
		{name: "size", kind: KindSizeIncorrect(), want: []instr.FsOp{instr.Restore()}},
		{name: "symlink mismatch", kind: KindSymlinkTarget("/a", "/b"), want: []instr.FsOp{instr.Restore()}},
		{name: "symlink match", kind: KindSymlinkTarget("/a", "/a"), want: []instr.FsOp{}},
		{name: "type", kind: KindTypeIncorrect(), want: []instr.FsOp{instr.Remove(), instr.Restore()}},
	}

	c := newTestConverter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, diags := c.Convert([]Issue{{Path: "/etc/foo", Kinds: []Kind{tt.kind}}})
			if len(diags) != 0 {
				t.Fatalf("unexpected diagnostics: %v", diags)
			}
			gotOps := ops(got)
			if len(gotOps) != len(tt.want) {
				t.Fatalf("got %v, want %v", gotOps, tt.want)
			}
			for i := range tt.want {
				if !gotOps[i].Equal(tt.want[i]) {
					t.Errorf("op %d = %s, want %s", i, gotOps[i], tt.want[i])
				}
			}
		})
	}
}

func TestConvert_MultiKind(t *testing.T) {
	c := newTestConverter(t)
	got, diags := c.Convert([]Issue{{
		Path:  "/etc/p",
		Kinds: []Kind{KindWrongMode(0600, 0644), KindWrongOwner(0, 1000)},
	}})

	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(got) != 2 {
		t.Fatalf("got %d instructions, want 2: %v", len(got), got)
	}
	if countOp(got, "/etc/p", instr.SetMode(0644)) != 1 {
		t.Error("expected exactly one SetMode(0644)")
	}
	if countOp(got, "/etc/p", instr.SetOwner("x")) != 1 {
		t.Error("expected exactly one SetOwner(x)")
	}
}

func TestConvert_DeduplicatesRestore(t *testing.T) {
	c := newTestConverter(t)
	got, _ := c.Convert([]Issue{{
		Path:  "/etc/q",
		Kinds: []Kind{KindSizeIncorrect(), KindChecksumIncorrect(), KindTypeIncorrect()},
	}})

	if countOp(got, "/etc/q", instr.Restore()) != 1 {
		t.Errorf("expected one Restore, got %v", got)
	}
	if countOp(got, "/etc/q", instr.Remove()) != 1 {
		t.Errorf("expected one Remove, got %v", got)
	}

	instr.SortFs(got)
	if got[0].Op.Kind != instr.OpRemove {
		t.Errorf("Remove should sort before Restore, got %v", got)
	}
}

func TestConvert_AllowListedUnexpected(t *testing.T) {
	c := newTestConverter(t, "/etc/**/*.pacnew", "/var/lib/cache/**")
	got, _ := c.Convert([]Issue{
		{Path: "/etc/ssh/sshd_config.pacnew", Kinds: []Kind{KindUnexpected()}},
		{Path: "/var/lib/cache/a/b", Kinds: []Kind{KindUnexpected()}},
		{Path: "/etc/stray", Kinds: []Kind{KindUnexpected()}},
	})

	if countOp(got, "/etc/ssh/sshd_config.pacnew", instr.Comment()) != 1 {
		t.Error("allow-listed .pacnew should become a comment")
	}
	if countOp(got, "/var/lib/cache/a/b", instr.Comment()) != 1 {
		t.Error("allow-listed cache path should become a comment")
	}
	if countOp(got, "/etc/stray", instr.Remove()) != 1 {
		t.Error("non-listed unexpected path should be removed")
	}
}

func TestConvert_Diagnostics(t *testing.T) {
	c := newTestConverter(t)
	cause := fs.ErrPermission
	got, diags := c.Convert([]Issue{
		{Path: "/root/secret", Kinds: []Kind{KindPermissionDenied()}},
		{Path: "/proc/x", Kinds: []Kind{KindMetadataError(cause)}},
		{Path: "/etc/y", Kinds: []Kind{KindFsCheckError(errors.New("io error")), KindMissing()}},
	})

	if len(diags) != 3 {
		t.Fatalf("got %d diagnostics, want 3: %v", len(diags), diags)
	}
	if !errors.Is(diags[1], fs.ErrPermission) {
		t.Errorf("diagnostic should unwrap to its cause: %v", diags[1])
	}
	if len(got) != 1 || got[0].Path != "/etc/y" || got[0].Op.Kind != instr.OpRestore {
		t.Errorf("convertible kinds next to errors should still convert, got %v", got)
	}
}

func TestConvert_UnknownIDsFallBackToNumbers(t *testing.T) {
	c := newTestConverter(t)
	got, _ := c.Convert([]Issue{{
		Path:  "/srv/data",
		Kinds: []Kind{KindWrongOwner(0, 4242), KindWrongGroup(0, 77)},
	}})

	if countOp(got, "/srv/data", instr.SetOwner("4242")) != 1 {
		t.Errorf("expected numeric owner fallback, got %v", got)
	}
	if countOp(got, "/srv/data", instr.SetGroup("77")) != 1 {
		t.Errorf("expected numeric group fallback, got %v", got)
	}
}

func TestNewConverter_BadPattern(t *testing.T) {
	if _, err := NewConverter([]string{"/etc/[a"}, nil); !errors.Is(err, ErrBadPattern) {
		t.Errorf("error = %v, want ErrBadPattern", err)
	}
}
