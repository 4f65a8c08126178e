package planner

import (
	"testing"

	"github.com/danieljhkim/hostconf/internal/instr"
)

func TestConflictChecker_CheckPath(t *testing.T) {
	tests := []struct {
		name         string
		ops          []instr.FsOp
		wantConflict bool
	}{
		{name: "remove only", ops: []instr.FsOp{instr.Remove()}, wantConflict: false},
		{name: "remove with comment", ops: []instr.FsOp{instr.Remove(), instr.Comment()}, wantConflict: false},
		{name: "create and mode", ops: []instr.FsOp{instr.CreateDirectory(), instr.SetMode(0755)}, wantConflict: false},
		{name: "remove and owner", ops: []instr.FsOp{instr.Remove(), instr.SetOwner("root")}, wantConflict: true},
		{name: "remove and create", ops: []instr.FsOp{instr.Remove(), instr.CreateFifo()}, wantConflict: true},
		{name: "nothing", ops: nil, wantConflict: false},
	}

	checker := NewConflictChecker()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := checker.CheckPath("/etc/x", tt.ops)
			if (c != nil) != tt.wantConflict {
				t.Errorf("CheckPath = %+v, wantConflict %v", c, tt.wantConflict)
			}
			if c != nil && c.Path != "/etc/x" {
				t.Errorf("conflict path = %s", c.Path)
			}
		})
	}
}
