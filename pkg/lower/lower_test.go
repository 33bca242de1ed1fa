package lower

import (
	"testing"

	"github.com/vidcore/v3dlib/pkg/cfg"
	"github.com/vidcore/v3dlib/pkg/dsl"
	"github.com/vidcore/v3dlib/pkg/regalloc"
	"github.com/vidcore/v3dlib/pkg/source"
	"github.com/vidcore/v3dlib/pkg/target"
)

// capture builds a statement tree through the DSL.
func capture(ctx *source.Context, f func()) source.Stmt {
	dsl.Begin(ctx)
	defer dsl.Abort()
	f()
	return dsl.Finish()
}

func translate(t *testing.T, tgt target.Platform, withParams bool, f func()) []target.Instr {
	t.Helper()
	ctx := source.NewContext()
	s := capture(ctx, func() {
		if withParams {
			dsl.LoadReserved()
		}
		f()
	})
	instrs, err := Translate(ctx, s, tgt)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	return instrs
}

func TestEmptyKernelIsInitPlusEnd(t *testing.T) {
	instrs := translate(t, target.VC4, false, func() {})
	if len(instrs) != 2 {
		t.Fatalf("empty kernel should lower to 2 instructions, got:\n%s", target.Mnemonics(instrs))
	}
	if _, ok := instrs[0].(*target.InitBegin); !ok {
		t.Errorf("first instruction should be initBegin, got %s", target.Mnemonic(instrs[0]))
	}
	if _, ok := instrs[1].(*target.End); !ok {
		t.Errorf("last instruction should be end, got %s", target.Mnemonic(instrs[1]))
	}
}

func TestUniformLoadsPrecedeInitBegin(t *testing.T) {
	instrs := translate(t, target.VC4, true, func() {
		x := dsl.ParamInt()
		y := dsl.NewInt()
		y.Set(x.Add(dsl.I(1)))
	})
	initAt := -1
	for i, instr := range instrs {
		if _, ok := instr.(*target.InitBegin); ok {
			initAt = i
			break
		}
	}
	if initAt != 3 {
		t.Fatalf("initBegin should follow the 3 uniform loads, found at %d:\n%s",
			initAt, target.Mnemonics(instrs))
	}
	for i := 0; i < initAt; i++ {
		if !isUniformLoad(instrs[i]) {
			t.Errorf("instr %d before initBegin is not a uniform load: %s",
				i, target.Mnemonic(instrs[i]))
		}
	}
}

func TestNoPtrParamsSkipsOffsetPass(t *testing.T) {
	instrs := translate(t, target.VC4, true, func() {
		x := dsl.ParamInt()
		y := dsl.NewInt()
		y.Set(x.IntExpr)
	})
	for _, instr := range instrs {
		if _, ok := instr.(*target.InitEnd); ok {
			t.Fatal("a kernel without pointer parameters should have an empty init block")
		}
	}
}

func TestPtrParamsGetOffsetBlock(t *testing.T) {
	instrs := translate(t, target.VC4, true, func() {
		p := dsl.ParamIntPtr()
		p.Store(dsl.I(1))
	})
	sawBegin, sawEnd := false, false
	offsetAdds := 0
	for _, instr := range instrs {
		switch i := instr.(type) {
		case *target.InitBegin:
			sawBegin = true
		case *target.InitEnd:
			sawEnd = true
		case *target.ALU:
			if sawBegin && !sawEnd && i.Op == target.A_Add {
				offsetAdds++
			}
		}
	}
	if !sawBegin || !sawEnd {
		t.Fatalf("init block markers missing:\n%s", target.Mnemonics(instrs))
	}
	// One add for elem_num, one per pointer parameter.
	if offsetAdds != 2 {
		t.Errorf("init block should contain 2 adds, got %d", offsetAdds)
	}
}

func TestEveryBranchTargetsExactlyOneLabel(t *testing.T) {
	instrs := translate(t, target.VC4, true, func() {
		n := dsl.ParamInt()
		x := dsl.NewInt()
		x.Set(dsl.I(0))
		dsl.While(dsl.Any(x.Lt(n.IntExpr)))
		dsl.If(dsl.All(x.Gt(dsl.I(2))))
		x.Set(x.Add(dsl.I(2)))
		dsl.Else()
		x.Set(x.Add(dsl.I(1)))
		dsl.End()
		dsl.End()
	})

	labels := map[target.Label]int{}
	for _, instr := range instrs {
		if lab, ok := instr.(*target.Lab); ok {
			labels[lab.Label]++
		}
	}
	for _, instr := range instrs {
		if brl, ok := instr.(*target.BRL); ok {
			if labels[brl.Label] != 1 {
				t.Errorf("branch label L%d defined %d times", brl.Label, labels[brl.Label])
			}
		}
	}
}

func TestFixupResolvesBranches(t *testing.T) {
	instrs := translate(t, target.VC4, true, func() {
		x := dsl.ParamInt()
		dsl.While(dsl.Any(x.Gt(dsl.I(0))))
		x.Set(x.Sub(dsl.I(1)))
		dsl.End()
	})

	// Remember where each label sits before fixup.
	labelAt := map[target.Label]int{}
	for i, instr := range instrs {
		if lab, ok := instr.(*target.Lab); ok {
			labelAt[lab.Label] = i
		}
	}
	targets := map[int]int{} // branch index -> expected target
	for i, instr := range instrs {
		if brl, ok := instr.(*target.BRL); ok {
			targets[i] = labelAt[brl.Label]
		}
	}

	if err := Fixup(instrs); err != nil {
		t.Fatalf("Fixup: %v", err)
	}
	for i, instr := range instrs {
		switch instr := instr.(type) {
		case *target.BRL, *target.Lab:
			t.Errorf("instr %d: %s survived fixup", i, target.Mnemonic(instr))
		case *target.BR:
			want := targets[i]
			if got := i + 4 + instr.Target.ImmOffset; got != want {
				t.Errorf("branch at %d resolves to %d, want %d", i, got, want)
			}
		}
	}
}

func TestFixupDanglingLabel(t *testing.T) {
	instrs := []target.Instr{
		&target.BRL{Cond: target.BranchAlways(), Label: 3},
		&target.End{},
	}
	if err := Fixup(instrs); err == nil {
		t.Fatal("expected a CFGError for an unresolved label")
	}
}

func TestBranchesCarryDelaySlots(t *testing.T) {
	instrs := translate(t, target.VC4, true, func() {
		x := dsl.ParamInt()
		dsl.While(dsl.Any(x.Gt(dsl.I(0))))
		x.Set(x.Sub(dsl.I(1)))
		dsl.End()
	})
	for i, instr := range instrs {
		if _, ok := instr.(*target.BRL); ok {
			for d := 1; d <= 3; d++ {
				if _, ok := instrs[i+d].(*target.NoOp); !ok {
					t.Errorf("branch at %d is missing delay slot %d", i, d)
				}
			}
		}
	}
}

func TestV3DStoreUsesTMU(t *testing.T) {
	instrs := translate(t, target.V3D, true, func() {
		p := dsl.ParamIntPtr()
		p.Store(dsl.I(1))
	})
	for _, instr := range instrs {
		if alu, ok := instr.(*target.ALU); ok && alu.Dest.Tag == target.Special {
			switch target.SpecialId(alu.Dest.Id) {
			case target.SpecVPMWrite, target.SpecDMAStAddr, target.SpecDMALdAddr:
				t.Errorf("v3d lowering produced a DMA/VPM write: %s", target.Mnemonic(instr))
			}
		}
		switch instr.(type) {
		case *target.DMALoadWait, *target.DMAStoreWait:
			t.Errorf("v3d lowering produced a DMA wait: %s", target.Mnemonic(instr))
		}
	}
}

func TestDMAStatementsRejectedOnV3D(t *testing.T) {
	ctx := source.NewContext()
	s := capture(ctx, func() {
		dsl.SetReadStride(dsl.I(16))
	})
	if _, err := Translate(ctx, s, target.V3D); err == nil {
		t.Fatal("expected a LoweringError for DMA strides on v3d")
	}
}

func TestWhereLowersToConditionalWrites(t *testing.T) {
	instrs := translate(t, target.VC4, true, func() {
		x := dsl.ParamInt()
		dsl.Where(x.Gt(dsl.I(0)))
		x.Set(x.Sub(dsl.I(1)))
		dsl.End()
	})
	conditional := 0
	for _, instr := range instrs {
		if alu, ok := instr.(*target.ALU); ok && alu.Cond.Tag == target.Flagged {
			conditional++
		}
	}
	if conditional == 0 {
		t.Error("Where should produce flag-conditional writes")
	}
}

func TestSatisfyEnforcesRegfileReadLimits(t *testing.T) {
	ctx := source.NewContext()
	s := capture(ctx, func() {
		dsl.LoadReserved()
		p := dsl.ParamIntPtr()
		n := dsl.LetInt(p.Deref())
		sum := dsl.LetInt(dsl.I(0))
		dsl.While(dsl.Any(n.Gt(dsl.I(0))))
		dsl.Where(n.Gt(dsl.I(0)))
		sum.Set(sum.Add(n.IntExpr))
		n.Set(n.Sub(dsl.I(1)))
		dsl.End()
		dsl.End()
		p.Store(sum.IntExpr)
	})
	instrs, err := Translate(ctx, s, target.VC4)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	g, err := cfg.Build(instrs)
	if err != nil {
		t.Fatalf("cfg: %v", err)
	}
	if err := regalloc.Alloc(instrs, g, ctx.VarCount(), target.VC4); err != nil {
		t.Fatalf("alloc: %v", err)
	}
	instrs, err = Satisfy(instrs, target.VC4)
	if err != nil {
		t.Fatalf("satisfy: %v", err)
	}

	for idx, instr := range instrs {
		alu, ok := instr.(*target.ALU)
		if !ok {
			continue
		}
		var readsA, readsB []target.Reg
		note := func(o target.Operand) {
			ro, ok := o.(target.RegOp)
			if !ok {
				return
			}
			switch readFileOf(ro.Reg) {
			case fileA:
				readsA = append(readsA, ro.Reg)
			case fileB:
				readsB = append(readsB, ro.Reg)
			}
		}
		note(alu.SrcA)
		note(alu.SrcB)
		if len(readsA) == 2 && readsA[0] != readsA[1] {
			t.Errorf("instr %d reads two regfile-A registers: %s", idx, target.Mnemonic(instr))
		}
		if len(readsB) == 2 && readsB[0] != readsB[1] {
			t.Errorf("instr %d reads two regfile-B registers: %s", idx, target.Mnemonic(instr))
		}
		if _, imm := alu.SrcA.(target.ImmOp); imm {
			if len(readsB) != 0 {
				t.Errorf("instr %d pairs an immediate with a regfile-B read: %s", idx, target.Mnemonic(instr))
			}
		}
		if _, imm := alu.SrcB.(target.ImmOp); imm {
			if len(readsB) != 0 {
				t.Errorf("instr %d pairs an immediate with a regfile-B read: %s", idx, target.Mnemonic(instr))
			}
		}
	}
}
