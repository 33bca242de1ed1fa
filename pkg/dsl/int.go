package dsl

import "github.com/vidcore/v3dlib/pkg/source"

// IntExpr is an integer vector expression, usable only on the
// right-hand side of assignments.
type IntExpr struct {
	e source.Expr
}

// Expr exposes the underlying source expression.
func (x IntExpr) Expr() source.Expr { return x.e }

// Int is an integer vector variable, usable on both sides of an
// assignment.
type Int struct {
	IntExpr
}

// NewInt declares a fresh, uninitialised integer variable.
func NewInt() Int {
	return Int{IntExpr{e: freshVar()}}
}

// LetInt declares a fresh integer variable initialised to e.
func LetInt(e IntExpr) Int {
	x := NewInt()
	x.Set(e)
	return x
}

// I builds an integer literal expression.
func I(v int32) IntExpr {
	return IntExpr{e: &source.IntLit{Value: v}}
}

// Set assigns rhs to the variable.
func (x Int) Set(rhs IntExpr) {
	emit(&source.Assign{Lhs: x.e, Rhs: rhs.e})
}

// AddAssign is x += rhs.
func (x Int) AddAssign(rhs IntExpr) { x.Set(x.Add(rhs)) }

// Inc is x++.
func (x Int) Inc() { x.AddAssign(I(1)) }

func intApply(a IntExpr, k source.OpKind, b IntExpr) IntExpr {
	op := source.Op{Kind: k, Type: source.Int32}
	return IntExpr{e: &source.Apply{Lhs: a.e, Op: op, Rhs: b.e}}
}

func intUnary(k source.OpKind, a IntExpr) IntExpr {
	op := source.Op{Kind: k, Type: source.Int32}
	return IntExpr{e: &source.Unary{Op: op, Arg: a.e}}
}

func (a IntExpr) Add(b IntExpr) IntExpr  { return intApply(a, source.Add, b) }
func (a IntExpr) Sub(b IntExpr) IntExpr  { return intApply(a, source.Sub, b) }
func (a IntExpr) Mul(b IntExpr) IntExpr  { return intApply(a, source.Mul, b) }
func (a IntExpr) Min(b IntExpr) IntExpr  { return intApply(a, source.Min, b) }
func (a IntExpr) Max(b IntExpr) IntExpr  { return intApply(a, source.Max, b) }
func (a IntExpr) Shl(b IntExpr) IntExpr  { return intApply(a, source.Shl, b) }
func (a IntExpr) Shr(b IntExpr) IntExpr  { return intApply(a, source.Shr, b) }
func (a IntExpr) Asr(b IntExpr) IntExpr  { return intApply(a, source.Asr, b) }
func (a IntExpr) Ror(b IntExpr) IntExpr  { return intApply(a, source.Ror, b) }
func (a IntExpr) BAnd(b IntExpr) IntExpr { return intApply(a, source.BAnd, b) }
func (a IntExpr) BOr(b IntExpr) IntExpr  { return intApply(a, source.BOr, b) }
func (a IntExpr) BXor(b IntExpr) IntExpr { return intApply(a, source.BXor, b) }
func (a IntExpr) BNot() IntExpr          { return intUnary(source.BNot, a) }

// ToFloat converts lane-wise to float.
func (a IntExpr) ToFloat() FloatExpr {
	op := source.Op{Kind: source.ItoF, Type: source.Int32}
	return FloatExpr{e: &source.Unary{Op: op, Arg: a.e}}
}

func intCmp(a IntExpr, k source.CmpKind, b IntExpr) BoolExpr {
	op := source.CmpOp{Kind: k, Type: source.Int32}
	return BoolExpr{b: &source.Cmp{Lhs: a.e, Op: op, Rhs: b.e}}
}

func (a IntExpr) Eq(b IntExpr) BoolExpr  { return intCmp(a, source.EQ, b) }
func (a IntExpr) Neq(b IntExpr) BoolExpr { return intCmp(a, source.NEQ, b) }
func (a IntExpr) Lt(b IntExpr) BoolExpr  { return intCmp(a, source.LT, b) }
func (a IntExpr) Le(b IntExpr) BoolExpr  { return intCmp(a, source.LE, b) }
func (a IntExpr) Gt(b IntExpr) BoolExpr  { return intCmp(a, source.GT, b) }
func (a IntExpr) Ge(b IntExpr) BoolExpr  { return intCmp(a, source.GE, b) }

// Rotate rotates a upwards by n lanes.
func Rotate(a, n IntExpr) IntExpr { return intApply(a, source.Rotate, n) }

// Index is the lane index vector [0,1,...,15].
func Index() IntExpr {
	return IntExpr{e: &source.Var{Kind: source.ElemNumK}}
}

// Me is this QPU's logical id, as supplied in the uniform stream.
func Me() IntExpr {
	cur().ctx.NoteReservedUse()
	return IntExpr{e: &source.Var{Kind: source.Standard, Id: source.RsvQPUID}}
}

// NumQPUs is the number of QPUs the kernel runs on.
func NumQPUs() IntExpr {
	cur().ctx.NoteReservedUse()
	return IntExpr{e: &source.Var{Kind: source.Standard, Id: source.RsvNumQPUs}}
}

// UniformInt reads the next word of the uniform FIFO.
func UniformInt() IntExpr {
	return IntExpr{e: &source.Var{Kind: source.Uniform}}
}

// VPMGetInt reads the next vector from the VPM read queue (vc4).
func VPMGetInt() IntExpr {
	return IntExpr{e: &source.Var{Kind: source.VPMReadK}}
}
