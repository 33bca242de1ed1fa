// Package lower translates source statements into the linear target IR.
// The output layout is: uniform loads, INIT_BEGIN, the per-QPU init
// block and INIT_END (both present only when the kernel has pointer
// parameters), the lowered program body, the kernel terminator.
// Branches leave the lowerer as BRLs; Fixup resolves them to offsets
// after register allocation.
package lower

import (
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/source"
	"github.com/vidcore/v3dlib/pkg/target"
)

type translator struct {
	ctx       *source.Context
	tgt       target.Platform
	instrs    []target.Instr
	nextLabel target.Label

	// maskVar is the variable holding the current Where mask, or -1
	// outside any Where block.
	maskVar int

	// storedAny notes whether a store request was lowered, so the
	// terminator knows to drain the DMA engine.
	storedAny bool
}

// Translate lowers a statement tree for the given platform.
func Translate(ctx *source.Context, s source.Stmt, tgt target.Platform) ([]target.Instr, error) {
	t := &translator{ctx: ctx, tgt: tgt, maskVar: -1}

	if err := t.stmt(s); err != nil {
		return nil, err
	}
	t.insertInitBlock()
	t.kernelFinish()
	return t.instrs, nil
}

func (t *translator) emit(i target.Instr) { t.instrs = append(t.instrs, i) }

func (t *translator) freshLabel() target.Label {
	l := t.nextLabel
	t.nextLabel++
	return l
}

func (t *translator) freshVar() target.Reg {
	return target.VarReg(int(t.ctx.FreshVar().Id))
}

func (t *translator) errf(format string, args ...any) error {
	return diag.New(diag.LoweringError, format, args...)
}

// emitBranch emits a branch plus its three delay slots. The hardware
// keeps executing for three instructions after a branch; padding the
// slots with nops keeps the semantics straight-line.
func (t *translator) emitBranch(cond target.BranchCond, label target.Label) {
	t.emit(&target.BRL{Cond: cond, Label: label})
	t.emit(&target.NoOp{})
	t.emit(&target.NoOp{})
	t.emit(&target.NoOp{})
}

// --- Statements ---

func (t *translator) stmt(s source.Stmt) error {
	switch s := s.(type) {
	case *source.Skip:
		return nil
	case *source.Seq:
		if err := t.stmt(s.S0); err != nil {
			return err
		}
		return t.stmt(s.S1)
	case *source.Assign:
		return t.assign(s)
	case *source.Where:
		return t.where(s)
	case *source.If:
		return t.ifStmt(s)
	case *source.While:
		return t.while(s)
	case *source.For:
		return t.forStmt(s)
	case *source.Print:
		return t.print(s)
	case *source.StoreRequest:
		return t.storeRequest(s.Data, s.Addr)
	case *source.Gather:
		a, err := t.exprToReg(s.Addr)
		if err != nil {
			return err
		}
		t.emit(target.Mov(target.SpecialReg(target.SpecTMU0S), a))
		return nil
	case *source.LoadReceive:
		v, ok := s.Dest.(*source.Var)
		if !ok || v.Kind != source.Standard {
			return t.errf("receive destination must be a variable")
		}
		t.emit(&target.TMU0ToAcc4{})
		t.emit(target.Mov(target.VarReg(int(v.Id)), target.AccReg(4)))
		return nil
	case *source.SetReadStride:
		return t.setStride(s.E, target.SpecRdSetup)
	case *source.SetWriteStride:
		return t.setStride(s.E, target.SpecWrSetup)
	case *source.SemaInc:
		t.emit(&target.SInc{Id: s.Id})
		return nil
	case *source.SemaDec:
		t.emit(&target.SDec{Id: s.Id})
		return nil
	case *source.SendIRQ:
		t.emit(&target.IRQ{})
		return nil
	case *source.DMAStartRead:
		if err := t.requireVC4("DMA read"); err != nil {
			return err
		}
		a, err := t.exprToReg(s.E)
		if err != nil {
			return err
		}
		t.emit(target.Mov(target.SpecialReg(target.SpecDMALdAddr), a))
		return nil
	case *source.DMAStartWrite:
		if err := t.requireVC4("DMA write"); err != nil {
			return err
		}
		a, err := t.exprToReg(s.E)
		if err != nil {
			return err
		}
		t.emit(target.Mov(target.SpecialReg(target.SpecDMAStAddr), a))
		return nil
	case *source.DMAReadWait:
		if err := t.requireVC4("DMA read wait"); err != nil {
			return err
		}
		t.emit(&target.DMALoadWait{})
		return nil
	case *source.DMAWriteWait:
		if err := t.requireVC4("DMA write wait"); err != nil {
			return err
		}
		t.emit(&target.DMAStoreWait{})
		return nil
	}
	return t.errf("unsupported statement %T", s)
}

func (t *translator) requireVC4(what string) error {
	if t.tgt != target.VC4 {
		return t.errf("%s not available on %s", what, t.tgt)
	}
	return nil
}

func (t *translator) setStride(e source.Expr, dst target.SpecialId) error {
	if err := t.requireVC4("DMA stride"); err != nil {
		return err
	}
	op, err := t.expr(e)
	if err != nil {
		return err
	}
	t.emit(&target.ALU{
		Cond: target.CondAlways(),
		Dest: target.SpecialReg(dst),
		SrcA: op,
		Op:   target.A_BOr,
		SrcB: op,
	})
	return nil
}

// assign lowers ASSIGN. The destination is a variable or a deref.
func (t *translator) assign(s *source.Assign) error {
	switch lhs := s.Lhs.(type) {
	case *source.Var:
		if lhs.Kind != source.Standard {
			return t.errf("assignment to non-variable %s", source.ExprString(lhs))
		}
		return t.varAssign(target.VarReg(int(lhs.Id)), s.Rhs)
	case *source.Deref:
		return t.storeRequest(s.Rhs, lhs.Addr)
	}
	return t.errf("unsupported assignment target %T", s.Lhs)
}

// varAssign computes rhs into dest. Under a Where mask the final write
// is conditional; everything leading up to it is not.
func (t *translator) varAssign(dest target.Reg, rhs source.Expr) error {
	if t.maskVar < 0 {
		return t.evalInto(dest, rhs)
	}
	// Set the lane flags from the mask, then write conditionally.
	// Intermediate instructions never set flags, so the flags survive
	// the rhs evaluation; still, evaluating first keeps the masked
	// write adjacent to its flag source.
	op, err := t.expr(rhs)
	if err != nil {
		return err
	}
	t.setFlagsFromMask()
	t.emit(&target.ALU{
		Cond: target.CondFlag(target.ZC),
		Dest: dest,
		SrcA: op,
		Op:   target.A_BOr,
		SrcB: op,
	})
	return nil
}

func (t *translator) setFlagsFromMask() {
	m := target.VarReg(t.maskVar)
	t.emit(&target.ALU{
		SetFlags: true,
		Cond:     target.CondAlways(),
		Dest:     target.NoneReg(),
		SrcA:     target.RegOp{Reg: m},
		Op:       target.A_BOr,
		SrcB:     target.RegOp{Reg: m},
	})
}

// storeRequest lowers a vector store. vc4 goes through VPM and the DMA
// engine; v3d writes the TMU data/address registers.
func (t *translator) storeRequest(data, addr source.Expr) error {
	if t.maskVar >= 0 {
		return t.errf("store inside Where is not supported")
	}
	d, err := t.exprToReg(data)
	if err != nil {
		return err
	}
	a, err := t.exprToReg(addr)
	if err != nil {
		return err
	}
	switch t.tgt {
	case target.VC4:
		if t.storedAny {
			t.emit(&target.DMAStoreWait{})
		}
		t.emit(target.Mov(target.SpecialReg(target.SpecVPMWrite), d))
		t.emit(target.Mov(target.SpecialReg(target.SpecDMAStAddr), a))
	default:
		t.emit(target.Mov(target.SpecialReg(target.SpecTMUD), d))
		t.emit(target.Mov(target.SpecialReg(target.SpecTMUA), a))
	}
	t.storedAny = true
	return nil
}

func (t *translator) print(s *source.Print) error {
	switch s.Kind {
	case source.PrintStr:
		t.emit(&target.PRS{Str: s.Str})
		return nil
	case source.PrintInt:
		r, err := t.exprToReg(s.E)
		if err != nil {
			return err
		}
		t.emit(&target.PRI{Src: r})
		return nil
	default:
		r, err := t.exprToReg(s.E)
		if err != nil {
			return err
		}
		t.emit(&target.PRF{Src: r})
		return nil
	}
}

// --- Structured control flow ---

// where lowers lane-masked assignment. The then-branch mask is the
// enclosing mask intersected with the condition; the else-branch mask
// with its negation.
func (t *translator) where(s *source.Where) error {
	m, err := t.bexpr(s.Cond)
	if err != nil {
		return err
	}
	thenMask := m
	if t.maskVar >= 0 {
		thenMask, err = t.maskAnd(t.maskVar, m)
		if err != nil {
			return err
		}
	}
	saved := t.maskVar
	t.maskVar = thenMask
	if err := t.stmt(s.Then); err != nil {
		return err
	}
	if _, skip := s.Else.(*source.Skip); !skip {
		notM, err := t.maskNot(m)
		if err != nil {
			return err
		}
		elseMask := notM
		if saved >= 0 {
			elseMask, err = t.maskAnd(saved, notM)
			if err != nil {
				return err
			}
		}
		t.maskVar = elseMask
		if err := t.stmt(s.Else); err != nil {
			return err
		}
	}
	t.maskVar = saved
	return nil
}

// branchWhenFalse emits the flag evaluation of a quantified condition
// and a BRL to label taken when the condition does NOT hold.
func (t *translator) branchWhenFalse(c source.CExpr, label target.Label) error {
	m, err := t.bexpr(c.B)
	if err != nil {
		return err
	}
	save := t.maskVar
	t.maskVar = m
	t.setFlagsFromMask()
	t.maskVar = save

	var cond target.BranchCond
	if c.Tag == source.Any {
		// not-any-true == all lanes zero
		cond = target.BranchCond{Tag: target.BrAll, Flag: target.ZS}
	} else {
		// not-all-true == some lane zero
		cond = target.BranchCond{Tag: target.BrAny, Flag: target.ZS}
	}
	t.emitBranch(cond, label)
	return nil
}

func (t *translator) ifStmt(s *source.If) error {
	elseL := t.freshLabel()
	if err := t.branchWhenFalse(s.Cond, elseL); err != nil {
		return err
	}
	if err := t.stmt(s.Then); err != nil {
		return err
	}
	if _, skip := s.Else.(*source.Skip); skip {
		t.emit(&target.Lab{Label: elseL})
		return nil
	}
	endL := t.freshLabel()
	t.emitBranch(target.BranchAlways(), endL)
	t.emit(&target.Lab{Label: elseL})
	if err := t.stmt(s.Else); err != nil {
		return err
	}
	t.emit(&target.Lab{Label: endL})
	return nil
}

func (t *translator) while(s *source.While) error {
	startL := t.freshLabel()
	endL := t.freshLabel()
	t.emit(&target.Lab{Label: startL})
	if err := t.branchWhenFalse(s.Cond, endL); err != nil {
		return err
	}
	if err := t.stmt(s.Body); err != nil {
		return err
	}
	t.emitBranch(target.BranchAlways(), startL)
	t.emit(&target.Lab{Label: endL})
	return nil
}

func (t *translator) forStmt(s *source.For) error {
	startL := t.freshLabel()
	endL := t.freshLabel()
	t.emit(&target.Lab{Label: startL})
	if err := t.branchWhenFalse(s.Cond, endL); err != nil {
		return err
	}
	if err := t.stmt(s.Body); err != nil {
		return err
	}
	if err := t.stmt(s.Inc); err != nil {
		return err
	}
	t.emitBranch(target.BranchAlways(), startL)
	t.emit(&target.Lab{Label: endL})
	return nil
}

// --- Init block ---

// insertInitBlock places INIT_BEGIN after the leading uniform loads
// and, when the kernel has pointer parameters, inserts the per-QPU
// offsetting code: each pointer advances by (qpu_id<<4 | elem_num)<<2
// bytes so that QPU q, lane l addresses element 16q+l.
func (t *translator) insertInitBlock() {
	n := 0
	for n < len(t.instrs) && isUniformLoad(t.instrs[n]) {
		n++
	}

	var init []target.Instr
	if ptrs := t.ctx.PtrParams(); len(ptrs) > 0 {
		acc0 := target.AccReg(0)
		acc1 := target.AccReg(1)
		qpuID := target.VarReg(int(source.RsvQPUID))
		init = append(init,
			&target.ALU{
				Cond: target.CondAlways(), Dest: acc1,
				SrcA: target.RegOp{Reg: qpuID}, Op: target.A_Shl,
				SrcB: target.ImmOp{Imm: target.SmallImm{Val: 4}},
			},
			&target.ALU{
				Cond: target.CondAlways(), Dest: acc0,
				SrcA: target.RegOp{Reg: acc1}, Op: target.A_Add,
				SrcB: target.RegOp{Reg: target.SpecialReg(target.SpecElemNum)},
			},
			&target.ALU{
				Cond: target.CondAlways(), Dest: acc0,
				SrcA: target.RegOp{Reg: acc0}, Op: target.A_Shl,
				SrcB: target.ImmOp{Imm: target.SmallImm{Val: 2}},
			},
		)
		for _, p := range ptrs {
			pr := target.VarReg(int(p))
			init = append(init, &target.ALU{
				Cond: target.CondAlways(), Dest: pr,
				SrcA: target.RegOp{Reg: pr}, Op: target.A_Add,
				SrcB: target.RegOp{Reg: acc0},
			})
		}
	}

	block := make([]target.Instr, 0, len(init)+2)
	block = append(block, &target.InitBegin{})
	if len(init) > 0 {
		block = append(block, init...)
		block = append(block, &target.InitEnd{})
	}

	rest := make([]target.Instr, len(t.instrs[n:]))
	copy(rest, t.instrs[n:])
	t.instrs = append(append(t.instrs[:n:n], block...), rest...)
}

func isUniformLoad(i target.Instr) bool {
	alu, ok := i.(*target.ALU)
	if !ok {
		return false
	}
	ra, okA := alu.SrcA.(target.RegOp)
	return okA && ra.Reg.Tag == target.Special &&
		target.SpecialId(ra.Reg.Id) == target.SpecUniform
}

// kernelFinish appends the terminator: drain outstanding stores on
// vc4, then halt.
func (t *translator) kernelFinish() {
	if t.storedAny && t.tgt == target.VC4 {
		t.emit(&target.DMAStoreWait{})
	}
	t.emit(&target.End{})
}
