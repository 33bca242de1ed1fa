package dsl

import "github.com/vidcore/v3dlib/pkg/source"

// FloatExpr is a float vector expression, usable only on the
// right-hand side of assignments.
type FloatExpr struct {
	e source.Expr
}

// Expr exposes the underlying source expression.
func (x FloatExpr) Expr() source.Expr { return x.e }

// Float is a float vector variable.
type Float struct {
	FloatExpr
}

// NewFloat declares a fresh, uninitialised float variable.
func NewFloat() Float {
	return Float{FloatExpr{e: freshVar()}}
}

// LetFloat declares a fresh float variable initialised to e.
func LetFloat(e FloatExpr) Float {
	x := NewFloat()
	x.Set(e)
	return x
}

// F builds a float literal expression.
func F(v float32) FloatExpr {
	return FloatExpr{e: &source.FloatLit{Value: v}}
}

// Set assigns rhs to the variable.
func (x Float) Set(rhs FloatExpr) {
	emit(&source.Assign{Lhs: x.e, Rhs: rhs.e})
}

func fltApply(a FloatExpr, k source.OpKind, b FloatExpr) FloatExpr {
	op := source.Op{Kind: k, Type: source.Float32}
	return FloatExpr{e: &source.Apply{Lhs: a.e, Op: op, Rhs: b.e}}
}

func fltUnary(k source.OpKind, a FloatExpr) FloatExpr {
	op := source.Op{Kind: k, Type: source.Float32}
	return FloatExpr{e: &source.Unary{Op: op, Arg: a.e}}
}

func (a FloatExpr) Add(b FloatExpr) FloatExpr { return fltApply(a, source.Add, b) }
func (a FloatExpr) Sub(b FloatExpr) FloatExpr { return fltApply(a, source.Sub, b) }
func (a FloatExpr) Mul(b FloatExpr) FloatExpr { return fltApply(a, source.Mul, b) }
func (a FloatExpr) Min(b FloatExpr) FloatExpr { return fltApply(a, source.Min, b) }
func (a FloatExpr) Max(b FloatExpr) FloatExpr { return fltApply(a, source.Max, b) }

// SFU approximations. Two SFU delay slots on hardware; exact on the
// interpreter and emulator.
func Recip(a FloatExpr) FloatExpr     { return fltUnary(source.Recip, a) }
func RecipSqrt(a FloatExpr) FloatExpr { return fltUnary(source.RecipSqrt, a) }
func Exp2(a FloatExpr) FloatExpr      { return fltUnary(source.Exp2, a) }
func Log2(a FloatExpr) FloatExpr      { return fltUnary(source.Log2, a) }

// ToInt truncates lane-wise to integer.
func (a FloatExpr) ToInt() IntExpr {
	op := source.Op{Kind: source.FtoI, Type: source.Float32}
	return IntExpr{e: &source.Unary{Op: op, Arg: a.e}}
}

func fltCmp(a FloatExpr, k source.CmpKind, b FloatExpr) BoolExpr {
	op := source.CmpOp{Kind: k, Type: source.Float32}
	return BoolExpr{b: &source.Cmp{Lhs: a.e, Op: op, Rhs: b.e}}
}

func (a FloatExpr) Eq(b FloatExpr) BoolExpr  { return fltCmp(a, source.EQ, b) }
func (a FloatExpr) Neq(b FloatExpr) BoolExpr { return fltCmp(a, source.NEQ, b) }
func (a FloatExpr) Lt(b FloatExpr) BoolExpr  { return fltCmp(a, source.LT, b) }
func (a FloatExpr) Le(b FloatExpr) BoolExpr  { return fltCmp(a, source.LE, b) }
func (a FloatExpr) Gt(b FloatExpr) BoolExpr  { return fltCmp(a, source.GT, b) }
func (a FloatExpr) Ge(b FloatExpr) BoolExpr  { return fltCmp(a, source.GE, b) }

// RotateF rotates a upwards by n lanes.
func RotateF(a FloatExpr, n IntExpr) FloatExpr {
	op := source.Op{Kind: source.Rotate, Type: source.Float32}
	return FloatExpr{e: &source.Apply{Lhs: a.e, Op: op, Rhs: n.e}}
}

// UniformFloat reads the next word of the uniform FIFO as a float.
func UniformFloat() FloatExpr {
	return FloatExpr{e: &source.Var{Kind: source.Uniform}}
}
