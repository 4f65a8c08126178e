package instr

import (
	"errors"
	"testing"
)

func TestPkgIdent_Compare(t *testing.T) {
	tests := []struct {
		a, b PkgIdent
		want int
	}{
		{PkgIdent{"apt", "zsh"}, PkgIdent{"pacman", "git"}, -1},
		{PkgIdent{"pacman", "git"}, PkgIdent{"pacman", "zsh"}, -1},
		{PkgIdent{"pacman", "zsh"}, PkgIdent{"pacman", "zsh"}, 0},
		{PkgIdent{"pacman", "zsh"}, PkgIdent{"flatpak", "org.gimp.GIMP"}, 1},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%s.Compare(%s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPkgInstruction_Equal(t *testing.T) {
	a := PkgInstruction{Op: Install, Comment: "shell"}
	b := PkgInstruction{Op: Install}
	if !a.Equal(b) {
		t.Error("comment should not affect equality")
	}
	if a.Equal(PkgInstruction{Op: Uninstall}) {
		t.Error("different ops should not be equal")
	}
	if Install.Invert() != Uninstall || Uninstall.Invert() != Install {
		t.Error("Invert is wrong")
	}
}

func TestPkgInstructions_Ordered(t *testing.T) {
	var p PkgInstructions
	p.Set(PkgIdent{"pacman", "zsh"}, PkgInstruction{Op: Install})
	p.Set(PkgIdent{"apt", "vim"}, PkgInstruction{Op: Install})
	p.Set(PkgIdent{"pacman", "git"}, PkgInstruction{Op: Uninstall})

	var got []string
	for id := range p.All() {
		got = append(got, id.String())
	}
	want := []string{"apt:vim", "pacman:git", "pacman:zsh"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: %s, want %s", i, got[i], want[i])
		}
	}

	entries := p.Entries()
	if entries[1].Instruction.Op != Uninstall {
		t.Errorf("Entries()[1] = %v", entries[1])
	}
}

func TestPkgInstructions_Insert(t *testing.T) {
	p := NewPkgInstructions()
	id := PkgIdent{"pacman", "zsh"}

	if err := p.Insert(id, PkgInstruction{Op: Install}); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	err := p.Insert(id, PkgInstruction{Op: Uninstall})
	if !errors.Is(err, ErrDuplicatePackage) {
		t.Errorf("second Insert error = %v, want ErrDuplicatePackage", err)
	}
	if got, _ := p.Get(id); got.Op != Install {
		t.Error("failed Insert replaced the existing entry")
	}

	p.Set(id, PkgInstruction{Op: Uninstall})
	if got, _ := p.Get(id); got.Op != Uninstall {
		t.Error("Set did not replace the entry")
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}
