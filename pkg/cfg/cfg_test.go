package cfg

import (
	"testing"

	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
)

func nop() target.Instr { return &target.NoOp{} }

func TestFallThrough(t *testing.T) {
	instrs := []target.Instr{nop(), nop(), &target.End{}}
	g, err := Build(instrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := g[0][1]; !ok {
		t.Error("instr 0 should fall through to 1")
	}
	if _, ok := g[1][2]; !ok {
		t.Error("instr 1 should fall through to 2")
	}
	if len(g[2]) != 0 {
		t.Error("END should have no successors")
	}
}

func TestBranchSuccessors(t *testing.T) {
	// 0: br L0 if any(ZC)
	// 1: nop
	// 2: L0:
	// 3: end
	instrs := []target.Instr{
		&target.BRL{Cond: target.BranchCond{Tag: target.BrAny, Flag: target.ZC}, Label: 0},
		nop(),
		&target.Lab{Label: 0},
		&target.End{},
	}
	g, err := Build(instrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := g[0][1]; !ok {
		t.Error("conditional branch should keep its fall-through edge")
	}
	if _, ok := g[0][2]; !ok {
		t.Error("conditional branch should have its label as successor")
	}
}

func TestUnconditionalBranchDropsFallThrough(t *testing.T) {
	instrs := []target.Instr{
		&target.BRL{Cond: target.BranchAlways(), Label: 0},
		nop(),
		&target.Lab{Label: 0},
		&target.End{},
	}
	g, err := Build(instrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := g[0][1]; ok {
		t.Error("unconditional branch should not fall through")
	}
	if _, ok := g[0][2]; !ok {
		t.Error("unconditional branch should reach its label")
	}
}

func TestSuccessorsInRange(t *testing.T) {
	instrs := []target.Instr{
		&target.Lab{Label: 0},
		nop(),
		&target.BRL{Cond: target.BranchAlways(), Label: 0},
		&target.End{},
	}
	g, err := Build(instrs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i, succs := range g {
		for s := range succs {
			if s < 0 || s >= len(instrs) {
				t.Errorf("succ(%d) contains out-of-range %d", i, s)
			}
		}
	}
}

func TestDanglingLabel(t *testing.T) {
	instrs := []target.Instr{
		&target.BRL{Cond: target.BranchAlways(), Label: 7},
		&target.End{},
	}
	_, err := Build(instrs)
	if err == nil {
		t.Fatal("expected an error for a dangling label")
	}
	de, ok := err.(*diag.Error)
	if !ok || de.Kind != diag.CFGError {
		t.Errorf("want CFGError, got %v", err)
	}
}

func TestDuplicateLabel(t *testing.T) {
	instrs := []target.Instr{
		&target.Lab{Label: 1},
		&target.Lab{Label: 1},
		&target.End{},
	}
	_, err := Build(instrs)
	if err == nil {
		t.Fatal("expected an error for a duplicate label")
	}
}
