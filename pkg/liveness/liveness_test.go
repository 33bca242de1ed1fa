package liveness

import (
	"testing"

	"github.com/vidcore/v3dlib/pkg/cfg"
	"github.com/vidcore/v3dlib/pkg/target"
)

func li(dest int, v int32) target.Instr {
	return &target.LI{Cond: target.CondAlways(), Dest: target.VarReg(dest), Imm: target.IntImm(v)}
}

func add(dest, a, b int) target.Instr {
	return &target.ALU{
		Cond: target.CondAlways(),
		Dest: target.VarReg(dest),
		SrcA: target.RegOp{Reg: target.VarReg(a)},
		Op:   target.A_Add,
		SrcB: target.RegOp{Reg: target.VarReg(b)},
	}
}

func pri(src int) target.Instr {
	return &target.PRI{Src: target.VarReg(src)}
}

func mustCFG(t *testing.T, instrs []target.Instr) cfg.CFG {
	t.Helper()
	g, err := cfg.Build(instrs)
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}
	return g
}

func TestVarSetOperations(t *testing.T) {
	t.Run("Add and Contains", func(t *testing.T) {
		s := NewVarSet()
		s.Add(1)
		s.Add(2)

		if !s.Contains(1) {
			t.Error("set should contain 1")
		}
		if !s.Contains(2) {
			t.Error("set should contain 2")
		}
		if s.Contains(3) {
			t.Error("set should not contain 3")
		}
	})

	t.Run("AddAll reports growth", func(t *testing.T) {
		s := NewVarSet()
		s.Add(1)
		o := NewVarSet()
		o.Add(1)
		o.Add(2)

		if !s.AddAll(o) {
			t.Error("AddAll should report growth")
		}
		if s.AddAll(o) {
			t.Error("AddAll should not report growth twice")
		}
	})

	t.Run("Copy", func(t *testing.T) {
		s := NewVarSet()
		s.Add(1)
		c := s.Copy()
		s.Add(2)
		if c.Contains(2) {
			t.Error("copy should not be affected by later additions")
		}
	})
}

func TestComputeDefUse(t *testing.T) {
	// 0: x0 = 42        ; def x0
	// 1: x1 = x0 + x0   ; use x0, def x1
	// 2: print x1       ; use x1
	instrs := []target.Instr{
		li(0, 42),
		add(1, 0, 0),
		pri(1),
		&target.End{},
	}
	def, use := ComputeDefUse(instrs)

	if !def[0].Contains(0) || len(def[0]) != 1 {
		t.Errorf("instr 0 def = %v, want {0}", def[0].Slice())
	}
	if len(use[0]) != 0 {
		t.Errorf("instr 0 use = %v, want {}", use[0].Slice())
	}
	if !def[1].Contains(1) || len(def[1]) != 1 {
		t.Errorf("instr 1 def = %v, want {1}", def[1].Slice())
	}
	if !use[1].Contains(0) || len(use[1]) != 1 {
		t.Errorf("instr 1 use = %v, want {0}", use[1].Slice())
	}
	if !use[2].Contains(1) || len(use[2]) != 1 {
		t.Errorf("instr 2 use = %v, want {1}", use[2].Slice())
	}
}

func TestConditionalWriteReadsDest(t *testing.T) {
	// A lane-masked write keeps the old value on unselected lanes,
	// so the destination counts as used.
	instr := &target.ALU{
		Cond: target.CondFlag(target.ZC),
		Dest: target.VarReg(3),
		SrcA: target.RegOp{Reg: target.VarReg(1)},
		Op:   target.A_BOr,
		SrcB: target.RegOp{Reg: target.VarReg(1)},
	}
	_, use := ComputeDefUse([]target.Instr{instr})
	if !use[0].Contains(3) {
		t.Error("conditional write should use its destination")
	}
}

func TestAnalyzeSimple(t *testing.T) {
	// 0: x0 = 1
	// 1: x1 = 2
	// 2: x2 = x0 + x1
	// 3: print x2
	instrs := []target.Instr{
		li(0, 1),
		li(1, 2),
		add(2, 0, 1),
		pri(2),
		&target.End{},
	}
	info := Analyze(instrs, mustCFG(t, instrs))

	if !info.LiveIn[3].Contains(2) {
		t.Error("x2 should be live at entry to instr 3")
	}
	if len(info.LiveOut[3]) != 0 {
		t.Error("nothing should be live at exit of instr 3")
	}
	if !info.LiveIn[2].Contains(0) || !info.LiveIn[2].Contains(1) {
		t.Error("x0 and x1 should be live at entry to instr 2")
	}
	if !info.LiveOut[2].Contains(2) {
		t.Error("x2 should be live at exit of instr 2")
	}
	if !info.LiveOut[0].Contains(0) {
		t.Error("x0 should be live at exit of instr 0")
	}
	if info.LiveIn[0].Contains(0) {
		t.Error("x0 should not be live before its definition")
	}
}

func TestAnalyzeLoop(t *testing.T) {
	// 0: L0:
	// 1: flags from x0
	// 2: br L1 if all zero
	// 3: x0 = x0 + x1
	// 4: br L0
	// 5: L1:
	// 6: print x0
	setFlags := &target.ALU{
		SetFlags: true,
		Cond:     target.CondAlways(),
		Dest:     target.NoneReg(),
		SrcA:     target.RegOp{Reg: target.VarReg(0)},
		Op:       target.A_BOr,
		SrcB:     target.RegOp{Reg: target.VarReg(0)},
	}
	instrs := []target.Instr{
		&target.Lab{Label: 0},
		setFlags,
		&target.BRL{Cond: target.BranchCond{Tag: target.BrAll, Flag: target.ZS}, Label: 1},
		add(0, 0, 1),
		&target.BRL{Cond: target.BranchAlways(), Label: 0},
		&target.Lab{Label: 1},
		pri(0),
		&target.End{},
	}
	info := Analyze(instrs, mustCFG(t, instrs))

	if !info.LiveIn[0].Contains(0) || !info.LiveIn[0].Contains(1) {
		t.Error("x0 and x1 should be live at the loop header")
	}
	if !info.LiveOut[3].Contains(0) {
		t.Error("x0 should be live around the back edge")
	}
}

func TestLiveInSubsetOfPredecessorLiveOut(t *testing.T) {
	instrs := []target.Instr{
		li(0, 1),
		li(1, 2),
		add(2, 0, 1),
		pri(2),
		&target.End{},
	}
	g := mustCFG(t, instrs)
	info := Analyze(instrs, g)

	for i := range instrs {
		for s := range g[i] {
			for v := range info.LiveIn[s] {
				if !info.LiveOut[i].Contains(v) {
					t.Errorf("live_in(%d) var %d missing from live_out(%d)", s, v, i)
				}
			}
		}
	}
}

func TestLiveSets(t *testing.T) {
	// x0 and x1 are live together; x2 overlaps x0 only.
	instrs := []target.Instr{
		li(0, 1),
		li(1, 2),
		add(2, 0, 1), // last use of x1
		add(3, 2, 0),
		pri(3),
		&target.End{},
	}
	g := mustCFG(t, instrs)
	info := Analyze(instrs, g)
	ls := NewLiveSets(4, instrs, info)

	if !ls.With(0).Contains(1) || !ls.With(1).Contains(0) {
		t.Error("x0 and x1 should be concurrently live")
	}
	if !ls.With(2).Contains(0) {
		t.Error("x2 should be concurrently live with x0")
	}
	if ls.With(1).Contains(3) {
		t.Error("x1 should not be concurrently live with x3")
	}
}
