// Package dsl is the host-side kernel language. Value types Int, Float
// and the pointer types build source-IR expressions without evaluating
// them; statements accumulate on a statement stack owned by the active
// compilation. Scoped constructs (If/Where/While/For ... End) push a
// frame on entry and synthesise their statement node at End.
//
// One compilation owns the stack at a time; Begin locks it and Finish
// releases it, so concurrent compilations serialise rather than race.
package dsl

import (
	"sync"

	"github.com/vidcore/v3dlib/pkg/source"
)

type frameKind int

const (
	rootFrame frameKind = iota
	ifFrame
	whereFrame
	whileFrame
	forFrame
)

type frame struct {
	kind   frameKind
	cexpr  source.CExpr // if/while/for
	bexpr  source.BExpr // where
	inc    source.Stmt  // for
	stmts  []source.Stmt
	then   []source.Stmt // saved Then branch once Else begins
	inElse bool
}

type scope struct {
	ctx   *source.Context
	stack []*frame
}

var (
	mu      sync.Mutex
	current *scope
)

// Begin claims the statement stack for a new compilation.
func Begin(ctx *source.Context) {
	mu.Lock()
	current = &scope{ctx: ctx, stack: []*frame{{kind: rootFrame}}}
}

// Finish pops the root frame, returns the accumulated statement tree
// and releases the stack. Unmatched scoped constructs are a programming
// error in the kernel function and panic.
func Finish() source.Stmt {
	s := cur()
	if len(s.stack) != 1 {
		panic("dsl: unterminated If/Where/While/For block at end of kernel")
	}
	body := source.MkSeq(s.stack[0].stmts...)
	current = nil
	mu.Unlock()
	return body
}

// Abort releases the stack after a failed compilation.
func Abort() {
	if current != nil {
		current = nil
		mu.Unlock()
	}
}

func cur() *scope {
	if current == nil {
		panic("dsl: no active kernel compilation")
	}
	return current
}

func top() *frame {
	s := cur()
	return s.stack[len(s.stack)-1]
}

func emit(st source.Stmt) {
	f := top()
	f.stmts = append(f.stmts, st)
}

func freshVar() *source.Var { return cur().ctx.FreshVar() }

func push(f *frame) {
	s := cur()
	s.stack = append(s.stack, f)
}

func pop() *frame {
	s := cur()
	if len(s.stack) <= 1 {
		panic("dsl: End without matching If/Where/While/For")
	}
	f := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return f
}

// If opens a vector-branch conditional.
func If(c Cond) {
	push(&frame{kind: ifFrame, cexpr: c.c})
}

// Where opens a lane-masked assignment block.
func Where(b BoolExpr) {
	push(&frame{kind: whereFrame, bexpr: b.b})
}

// Else switches the innermost If or Where block to its else branch.
func Else() {
	f := top()
	if f.kind != ifFrame && f.kind != whereFrame {
		panic("dsl: Else outside If/Where")
	}
	if f.inElse {
		panic("dsl: duplicate Else")
	}
	f.then = f.stmts
	f.stmts = nil
	f.inElse = true
}

// While opens a loop guarded by a quantified condition.
func While(c Cond) {
	push(&frame{kind: whileFrame, cexpr: c.c})
}

// For opens a loop with an increment run after each iteration. The inc
// closure is captured immediately; the statements it emits become the
// loop increment.
func For(c Cond, inc func()) {
	push(&frame{kind: rootFrame}) // scratch frame to capture inc
	inc()
	f := pop()
	push(&frame{kind: forFrame, cexpr: c.c, inc: source.MkSeq(f.stmts...)})
}

// End closes the innermost scoped construct.
func End() {
	f := pop()
	var st source.Stmt
	switch f.kind {
	case ifFrame:
		thenS, elseS := branches(f)
		st = &source.If{Cond: f.cexpr, Then: thenS, Else: elseS}
	case whereFrame:
		thenS, elseS := branches(f)
		st = &source.Where{Cond: f.bexpr, Then: thenS, Else: elseS}
	case whileFrame:
		st = &source.While{Cond: f.cexpr, Body: source.MkSeq(f.stmts...)}
	case forFrame:
		st = &source.For{Cond: f.cexpr, Inc: f.inc, Body: source.MkSeq(f.stmts...)}
	default:
		panic("dsl: End without matching If/Where/While/For")
	}
	emit(st)
}

func branches(f *frame) (thenS, elseS source.Stmt) {
	if f.inElse {
		return source.MkSeq(f.then...), source.MkSeq(f.stmts...)
	}
	return source.MkSeq(f.stmts...), &source.Skip{}
}
