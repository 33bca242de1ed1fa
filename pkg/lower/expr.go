package lower

import (
	"github.com/vidcore/v3dlib/pkg/source"
	"github.com/vidcore/v3dlib/pkg/target"
)

// Operator selection. Integer multiply is mul24, the only integer
// multiplier the QPU has.
var intOps = map[source.OpKind]target.ALUOp{
	source.Add:  target.A_Add,
	source.Sub:  target.A_Sub,
	source.Mul:  target.M_Mul24,
	source.Min:  target.A_Min,
	source.Max:  target.A_Max,
	source.Shl:  target.A_Shl,
	source.Shr:  target.A_Shr,
	source.Asr:  target.A_Asr,
	source.Ror:  target.A_Ror,
	source.BAnd: target.A_BAnd,
	source.BOr:  target.A_BOr,
	source.BXor: target.A_BXor,
	source.BNot: target.A_BNot,
	source.ItoF: target.A_ItoF,
	source.FtoI: target.A_FtoI,
}

var floatOps = map[source.OpKind]target.ALUOp{
	source.Add: target.A_FAdd,
	source.Sub: target.A_FSub,
	source.Mul: target.M_FMul,
	source.Min: target.A_FMin,
	source.Max: target.A_FMax,
}

var sfuRegs = map[source.OpKind]target.SpecialId{
	source.Recip:     target.SpecSFURecip,
	source.RecipSqrt: target.SpecSFURecipSqrt,
	source.Exp2:      target.SpecSFUExp,
	source.Log2:      target.SpecSFULog,
}

func aluOpFor(op source.Op) (target.ALUOp, bool) {
	if op.Kind == source.ItoF || op.Kind == source.FtoI {
		// Conversions are add-pipeline ops regardless of the type tag.
		return intOps[op.Kind], true
	}
	if op.Type == source.Float32 {
		o, ok := floatOps[op.Kind]
		return o, ok
	}
	o, ok := intOps[op.Kind]
	return o, ok
}

// expr lowers an expression to an operand, emitting whatever
// instructions the evaluation needs.
func (t *translator) expr(e source.Expr) (target.Operand, error) {
	switch e := e.(type) {
	case *source.IntLit:
		imm := target.SmallImm{Val: e.Value}
		if _, ok := imm.Encode(); ok {
			return target.ImmOp{Imm: imm}, nil
		}
		dst := t.freshVar()
		t.emit(&target.LI{Cond: target.CondAlways(), Dest: dst, Imm: target.IntImm(e.Value)})
		return target.RegOp{Reg: dst}, nil
	case *source.FloatLit:
		dst := t.freshVar()
		t.emit(&target.LI{Cond: target.CondAlways(), Dest: dst, Imm: target.FloatImm(e.Value)})
		return target.RegOp{Reg: dst}, nil
	case *source.Var:
		switch e.Kind {
		case source.Standard:
			return target.RegOp{Reg: target.VarReg(int(e.Id))}, nil
		case source.Uniform:
			return t.movSpecial(target.SpecUniform)
		case source.ElemNumK:
			return t.movSpecial(target.SpecElemNum)
		case source.QPUNumK:
			return t.movSpecial(target.SpecQPUNum)
		default:
			return t.movSpecial(target.SpecVPMRead)
		}
	case *source.Apply:
		if e.Op.Kind == source.Rotate {
			return t.rotate(e)
		}
		dst := t.freshVar()
		if err := t.applyInto(dst, e); err != nil {
			return nil, err
		}
		return target.RegOp{Reg: dst}, nil
	case *source.Unary:
		dst := t.freshVar()
		if err := t.unaryInto(dst, e); err != nil {
			return nil, err
		}
		return target.RegOp{Reg: dst}, nil
	case *source.Deref:
		dst := t.freshVar()
		if err := t.derefInto(dst, e); err != nil {
			return nil, err
		}
		return target.RegOp{Reg: dst}, nil
	}
	return nil, t.errf("unsupported expression %T", e)
}

// exprToReg lowers an expression and forces the result into a register.
func (t *translator) exprToReg(e source.Expr) (target.Reg, error) {
	op, err := t.expr(e)
	if err != nil {
		return target.Reg{}, err
	}
	if ro, ok := op.(target.RegOp); ok {
		return ro.Reg, nil
	}
	dst := t.freshVar()
	t.emit(&target.ALU{
		Cond: target.CondAlways(), Dest: dst,
		SrcA: op, Op: target.A_BOr, SrcB: op,
	})
	return dst, nil
}

// evalInto computes e with the final instruction targeting dest.
func (t *translator) evalInto(dest target.Reg, e source.Expr) error {
	switch e := e.(type) {
	case *source.IntLit:
		t.emit(&target.LI{Cond: target.CondAlways(), Dest: dest, Imm: target.IntImm(e.Value)})
		return nil
	case *source.FloatLit:
		t.emit(&target.LI{Cond: target.CondAlways(), Dest: dest, Imm: target.FloatImm(e.Value)})
		return nil
	case *source.Apply:
		if e.Op.Kind == source.Rotate {
			op, err := t.rotate(e)
			if err != nil {
				return err
			}
			t.emitMovOp(dest, op)
			return nil
		}
		return t.applyInto(dest, e)
	case *source.Unary:
		return t.unaryInto(dest, e)
	case *source.Deref:
		return t.derefInto(dest, e)
	case *source.Var:
		switch e.Kind {
		case source.Standard:
			t.emit(target.Mov(dest, target.VarReg(int(e.Id))))
		case source.Uniform:
			t.emit(target.Mov(dest, target.SpecialReg(target.SpecUniform)))
		case source.ElemNumK:
			t.emit(target.Mov(dest, target.SpecialReg(target.SpecElemNum)))
		case source.QPUNumK:
			t.emit(target.Mov(dest, target.SpecialReg(target.SpecQPUNum)))
		default:
			t.emit(target.Mov(dest, target.SpecialReg(target.SpecVPMRead)))
		}
		return nil
	default:
		op, err := t.expr(e)
		if err != nil {
			return err
		}
		t.emitMovOp(dest, op)
		return nil
	}
}

func (t *translator) emitMovOp(dest target.Reg, op target.Operand) {
	t.emit(&target.ALU{
		Cond: target.CondAlways(), Dest: dest,
		SrcA: op, Op: target.A_BOr, SrcB: op,
	})
}

func (t *translator) applyInto(dest target.Reg, e *source.Apply) error {
	op, ok := aluOpFor(e.Op)
	if !ok {
		return t.errf("operator %s has no target op", e.Op)
	}
	a, err := t.expr(e.Lhs)
	if err != nil {
		return err
	}
	b, err := t.expr(e.Rhs)
	if err != nil {
		return err
	}
	if _, aImm := a.(target.ImmOp); aImm {
		if _, bImm := b.(target.ImmOp); bImm {
			// Two immediates cannot share the regfile-B slot.
			r, err := t.immToReg(a)
			if err != nil {
				return err
			}
			a = target.RegOp{Reg: r}
		}
	}
	t.emit(&target.ALU{Cond: target.CondAlways(), Dest: dest, SrcA: a, Op: op, SrcB: b})
	return nil
}

func (t *translator) immToReg(op target.Operand) (target.Reg, error) {
	dst := t.freshVar()
	t.emitMovOp(dst, op)
	return dst, nil
}

func (t *translator) unaryInto(dest target.Reg, e *source.Unary) error {
	if sfu, ok := sfuRegs[e.Op.Kind]; ok {
		a, err := t.exprToReg(e.Arg)
		if err != nil {
			return err
		}
		t.emit(target.Mov(target.SpecialReg(sfu), a))
		t.emit(&target.NoOp{})
		t.emit(&target.NoOp{})
		t.emit(target.Mov(dest, target.AccReg(4)))
		return nil
	}
	op, ok := aluOpFor(e.Op)
	if !ok {
		return t.errf("operator %s has no target op", e.Op)
	}
	a, err := t.expr(e.Arg)
	if err != nil {
		return err
	}
	t.emit(&target.ALU{Cond: target.CondAlways(), Dest: dest, SrcA: a, Op: op, SrcB: a})
	return nil
}

// derefInto lowers *addr: issue the TMU request, wait out the latency,
// pop the response through ACC4.
func (t *translator) derefInto(dest target.Reg, e *source.Deref) error {
	a, err := t.exprToReg(e.Addr)
	if err != nil {
		return err
	}
	t.emit(target.Mov(target.SpecialReg(target.SpecTMU0S), a))
	t.emit(&target.NoOp{})
	t.emit(&target.NoOp{})
	t.emit(&target.TMU0ToAcc4{})
	t.emit(target.Mov(dest, target.AccReg(4)))
	return nil
}

// rotate lowers a lane rotation. srcA must be ACC0; the amount is a
// small immediate in [1,15] or ACC5.
func (t *translator) rotate(e *source.Apply) (target.Operand, error) {
	a, err := t.exprToReg(e.Lhs)
	if err != nil {
		return nil, err
	}
	var amount target.Operand
	if lit, ok := e.Rhs.(*source.IntLit); ok && lit.Value >= 1 && lit.Value <= 15 {
		amount = target.ImmOp{Imm: target.SmallImm{Val: lit.Value}}
	} else {
		n, err := t.exprToReg(e.Rhs)
		if err != nil {
			return nil, err
		}
		t.emit(target.Mov(target.AccReg(5), n))
		t.emit(&target.NoOp{})
		amount = target.RegOp{Reg: target.AccReg(5)}
	}
	t.emit(target.Mov(target.AccReg(0), a))
	dst := t.freshVar()
	t.emit(&target.ALU{
		Cond: target.CondAlways(), Dest: dst,
		SrcA: target.RegOp{Reg: target.AccReg(0)},
		Op:   target.M_Rotate,
		SrcB: amount,
	})
	return target.RegOp{Reg: dst}, nil
}

func (t *translator) movSpecial(s target.SpecialId) (target.Operand, error) {
	dst := t.freshVar()
	t.emit(target.Mov(dst, target.SpecialReg(s)))
	return target.RegOp{Reg: dst}, nil
}

// --- Boolean expressions ---

// bexpr lowers a boolean expression to a 0/1 mask variable.
func (t *translator) bexpr(b source.BExpr) (int, error) {
	switch b := b.(type) {
	case *source.Cmp:
		return t.cmp(b)
	case *source.Not:
		m, err := t.bexpr(b.X)
		if err != nil {
			return 0, err
		}
		return t.maskNot(m)
	case *source.And:
		l, err := t.bexpr(b.Lhs)
		if err != nil {
			return 0, err
		}
		r, err := t.bexpr(b.Rhs)
		if err != nil {
			return 0, err
		}
		return t.maskOp(target.A_BAnd, l, r)
	case *source.Or:
		l, err := t.bexpr(b.Lhs)
		if err != nil {
			return 0, err
		}
		r, err := t.bexpr(b.Rhs)
		if err != nil {
			return 0, err
		}
		return t.maskOp(target.A_BOr, l, r)
	}
	return 0, t.errf("unsupported boolean expression %T", b)
}

// cmpPlan maps a comparison to an operand order and the flag that
// selects the lanes where it holds after a flag-setting subtract.
func cmpPlan(k source.CmpKind) (swap bool, flag target.Flag) {
	switch k {
	case source.EQ:
		return false, target.ZS
	case source.NEQ:
		return false, target.ZC
	case source.LT:
		return false, target.NS
	case source.GE:
		return false, target.NC
	case source.GT:
		return true, target.NS
	default: // LE
		return true, target.NC
	}
}

// cmp lowers a comparison to a mask variable: subtract with flags,
// initialise the mask to 0, then set it to 1 on the selected lanes.
func (t *translator) cmp(b *source.Cmp) (int, error) {
	lhs, rhs := b.Lhs, b.Rhs
	swap, flag := cmpPlan(b.Op.Kind)
	if swap {
		lhs, rhs = rhs, lhs
	}
	a, err := t.expr(lhs)
	if err != nil {
		return 0, err
	}
	bb, err := t.expr(rhs)
	if err != nil {
		return 0, err
	}
	if _, aImm := a.(target.ImmOp); aImm {
		if _, bImm := bb.(target.ImmOp); bImm {
			r, err := t.immToReg(a)
			if err != nil {
				return 0, err
			}
			a = target.RegOp{Reg: r}
		}
	}
	subOp := target.A_Sub
	if b.Op.Type == source.Float32 {
		subOp = target.A_FSub
	}
	t.emit(&target.ALU{
		SetFlags: true,
		Cond:     target.CondAlways(),
		Dest:     target.NoneReg(),
		SrcA:     a,
		Op:       subOp,
		SrcB:     bb,
	})
	m := t.freshVar()
	t.emit(&target.LI{Cond: target.CondAlways(), Dest: m, Imm: target.IntImm(0)})
	t.emit(&target.LI{Cond: target.CondFlag(flag), Dest: m, Imm: target.IntImm(1)})
	return m.Id, nil
}

func (t *translator) maskOp(op target.ALUOp, l, r int) (int, error) {
	dst := t.freshVar()
	t.emit(&target.ALU{
		Cond: target.CondAlways(), Dest: dst,
		SrcA: target.RegOp{Reg: target.VarReg(l)},
		Op:   op,
		SrcB: target.RegOp{Reg: target.VarReg(r)},
	})
	return dst.Id, nil
}

func (t *translator) maskAnd(l, r int) (int, error) {
	return t.maskOp(target.A_BAnd, l, r)
}

func (t *translator) maskNot(m int) (int, error) {
	dst := t.freshVar()
	t.emit(&target.ALU{
		Cond: target.CondAlways(), Dest: dst,
		SrcA: target.RegOp{Reg: target.VarReg(m)},
		Op:   target.A_BXor,
		SrcB: target.ImmOp{Imm: target.SmallImm{Val: 1}},
	})
	return dst.Id, nil
}
