package dsl

import "github.com/vidcore/v3dlib/pkg/source"

// PtrSource is any pointer-valued DSL expression; it yields the
// per-lane address vector.
type PtrSource interface {
	ptrExpr() source.Expr
}

// IntPtrExpr is a pointer-to-int expression.
type IntPtrExpr struct {
	e source.Expr
}

// IntPtr is a pointer-to-int variable.
type IntPtr struct {
	IntPtrExpr
}

// FloatPtrExpr is a pointer-to-float expression.
type FloatPtrExpr struct {
	e source.Expr
}

// FloatPtr is a pointer-to-float variable.
type FloatPtr struct {
	FloatPtrExpr
}

func (p IntPtrExpr) ptrExpr() source.Expr   { return p.e }
func (p FloatPtrExpr) ptrExpr() source.Expr { return p.e }

// NewIntPtr declares a fresh pointer-to-int variable.
func NewIntPtr() IntPtr {
	return IntPtr{IntPtrExpr{e: freshVar()}}
}

// NewFloatPtr declares a fresh pointer-to-float variable.
func NewFloatPtr() FloatPtr {
	return FloatPtr{FloatPtrExpr{e: freshVar()}}
}

// offset scales an element index to a byte offset.
func offset(e source.Expr) source.Expr {
	two := &source.IntLit{Value: 2}
	op := source.Op{Kind: source.Shl, Type: source.Int32}
	return &source.Apply{Lhs: e, Op: op, Rhs: two}
}

func addAddr(p, off source.Expr) source.Expr {
	op := source.Op{Kind: source.Add, Type: source.Int32}
	return &source.Apply{Lhs: p, Op: op, Rhs: off}
}

// Plus advances the pointer by i elements.
func (p IntPtrExpr) Plus(i IntExpr) IntPtrExpr {
	return IntPtrExpr{e: addAddr(p.e, offset(i.e))}
}

// Plus advances the pointer by i elements.
func (p FloatPtrExpr) Plus(i IntExpr) FloatPtrExpr {
	return FloatPtrExpr{e: addAddr(p.e, offset(i.e))}
}

// Deref reads the pointed-to vector: *p on the right-hand side.
func (p IntPtrExpr) Deref() IntExpr {
	return IntExpr{e: &source.Deref{Addr: p.e}}
}

// Deref reads the pointed-to vector: *p on the right-hand side.
func (p FloatPtrExpr) Deref() FloatExpr {
	return FloatExpr{e: &source.Deref{Addr: p.e}}
}

// Store writes data through the pointer: *p = data.
func (p IntPtrExpr) Store(data IntExpr) {
	emit(&source.Assign{Lhs: &source.Deref{Addr: p.e}, Rhs: data.e})
}

// Store writes data through the pointer: *p = data.
func (p FloatPtrExpr) Store(data FloatExpr) {
	emit(&source.Assign{Lhs: &source.Deref{Addr: p.e}, Rhs: data.e})
}

// Set assigns another pointer value to the variable.
func (p IntPtr) Set(rhs IntPtrExpr) {
	emit(&source.Assign{Lhs: p.e, Rhs: rhs.e})
}

// Set assigns another pointer value to the variable.
func (p FloatPtr) Set(rhs FloatPtrExpr) {
	emit(&source.Assign{Lhs: p.e, Rhs: rhs.e})
}

// UniformPtr reads the next uniform word as a device address.
func UniformPtr() IntPtrExpr {
	return IntPtrExpr{e: &source.Var{Kind: source.Uniform, IsPtr: true}}
}

// UniformFloatPtr reads the next uniform word as a device address.
func UniformFloatPtr() FloatPtrExpr {
	return FloatPtrExpr{e: &source.Var{Kind: source.Uniform, IsPtr: true}}
}
