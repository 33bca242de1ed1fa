package dsl

import "github.com/vidcore/v3dlib/pkg/source"

// BoolExpr is a per-lane boolean vector expression.
type BoolExpr struct {
	b source.BExpr
}

// BExpr exposes the underlying boolean expression.
func (b BoolExpr) BExpr() source.BExpr { return b.b }

func (a BoolExpr) And(b BoolExpr) BoolExpr {
	return BoolExpr{b: &source.And{Lhs: a.b, Rhs: b.b}}
}

func (a BoolExpr) Or(b BoolExpr) BoolExpr {
	return BoolExpr{b: &source.Or{Lhs: a.b, Rhs: b.b}}
}

func (a BoolExpr) Not() BoolExpr {
	return BoolExpr{b: &source.Not{X: a.b}}
}

// Cond is a boolean expression quantified over the 16 lanes.
type Cond struct {
	c source.CExpr
}

// CExpr exposes the underlying conditional expression.
func (c Cond) CExpr() source.CExpr { return c.c }

// Any holds when b holds on at least one lane.
func Any(b BoolExpr) Cond {
	return Cond{c: source.CExpr{Tag: source.Any, B: b.b}}
}

// All holds when b holds on every lane.
func All(b BoolExpr) Cond {
	return Cond{c: source.CExpr{Tag: source.All, B: b.b}}
}

// --- Statements outside the structured constructs ---

// PrintStr emits a literal string to the kernel output stream.
func PrintStr(s string) {
	emit(&source.Print{Kind: source.PrintStr, Str: s})
}

// PrintInt emits an integer vector to the kernel output stream.
func PrintInt(e IntExpr) {
	emit(&source.Print{Kind: source.PrintInt, E: e.e})
}

// PrintFloat emits a float vector to the kernel output stream.
func PrintFloat(e FloatExpr) {
	emit(&source.Print{Kind: source.PrintFloat, E: e.e})
}

// Gather issues a load for the pointed-to vector; the value arrives at
// the matching Receive.
func Gather(p PtrSource) {
	emit(&source.Gather{Addr: p.ptrExpr()})
}

// ReceiveInt receives the oldest outstanding gather into dest.
func ReceiveInt(dest Int) {
	emit(&source.LoadReceive{Dest: dest.e})
}

// ReceiveFloat receives the oldest outstanding gather into dest.
func ReceiveFloat(dest Float) {
	emit(&source.LoadReceive{Dest: dest.e})
}

// StoreInt requests a store of data to the pointed-to address.
func StoreInt(data IntExpr, p PtrSource) {
	emit(&source.StoreRequest{Data: data.e, Addr: p.ptrExpr()})
}

// StoreFloat requests a store of data to the pointed-to address.
func StoreFloat(data FloatExpr, p PtrSource) {
	emit(&source.StoreRequest{Data: data.e, Addr: p.ptrExpr()})
}

// SetReadStride sets the DMA read stride (vc4 only).
func SetReadStride(e IntExpr) {
	emit(&source.SetReadStride{E: e.e})
}

// SetWriteStride sets the DMA write stride (vc4 only).
func SetWriteStride(e IntExpr) {
	emit(&source.SetWriteStride{E: e.e})
}

// SemaInc increments semaphore id, blocking while it is at 15.
func SemaInc(id int) {
	checkSema(id)
	emit(&source.SemaInc{Id: id})
}

// SemaDec decrements semaphore id, blocking while it is at 0.
func SemaDec(id int) {
	checkSema(id)
	emit(&source.SemaDec{Id: id})
}

func checkSema(id int) {
	if id < 0 || id > 15 {
		panic("dsl: semaphore id out of range 0..15")
	}
}

// HostIRQ raises the host interrupt.
func HostIRQ() {
	emit(&source.SendIRQ{})
}

// DMAStartRead begins a DMA read from the pointed-to address (vc4).
func DMAStartRead(p PtrSource) {
	emit(&source.DMAStartRead{E: p.ptrExpr()})
}

// DMAStartWrite begins a DMA write to the pointed-to address (vc4).
func DMAStartWrite(p PtrSource) {
	emit(&source.DMAStartWrite{E: p.ptrExpr()})
}

// DMAReadWait blocks until the outstanding DMA read completes (vc4).
func DMAReadWait() {
	emit(&source.DMAReadWait{})
}

// DMAWriteWait blocks until the outstanding DMA write completes (vc4).
func DMAWriteWait() {
	emit(&source.DMAWriteWait{})
}
