package dsl

import (
	"testing"

	"github.com/vidcore/v3dlib/pkg/source"
)

func build(t *testing.T, f func()) source.Stmt {
	t.Helper()
	ctx := source.NewContext()
	Begin(ctx)
	defer Abort()
	f()
	return Finish()
}

// flatten collects the statements of a Seq spine.
func flatten(s source.Stmt) []source.Stmt {
	if seq, ok := s.(*source.Seq); ok {
		return append(flatten(seq.S0), flatten(seq.S1)...)
	}
	return []source.Stmt{s}
}

func TestAssignBuildsStatement(t *testing.T) {
	s := build(t, func() {
		x := NewInt()
		x.Set(I(3).Add(I(4)))
	})
	stmts := flatten(s)
	if len(stmts) != 1 {
		t.Fatalf("want 1 statement, got %d", len(stmts))
	}
	a, ok := stmts[0].(*source.Assign)
	if !ok {
		t.Fatalf("want Assign, got %T", stmts[0])
	}
	if _, ok := a.Lhs.(*source.Var); !ok {
		t.Errorf("assign target should be a variable, got %T", a.Lhs)
	}
	app, ok := a.Rhs.(*source.Apply)
	if !ok {
		t.Fatalf("want Apply rhs, got %T", a.Rhs)
	}
	if app.Op.Kind != source.Add {
		t.Errorf("want Add, got %v", app.Op.Kind)
	}
}

func TestFreshVarsAreDense(t *testing.T) {
	ctx := source.NewContext()
	Begin(ctx)
	defer Abort()
	x := NewInt()
	y := NewInt()
	Finish()

	xv := x.Expr().(*source.Var)
	yv := y.Expr().(*source.Var)
	if xv.Id != 2 || yv.Id != 3 {
		t.Errorf("variables after the two reserved ids should be 2,3; got %d,%d", xv.Id, yv.Id)
	}
	if ctx.VarCount() != 4 {
		t.Errorf("VarCount = %d, want 4", ctx.VarCount())
	}
}

func TestIfElseEnd(t *testing.T) {
	s := build(t, func() {
		x := NewInt()
		If(Any(x.Gt(I(0))))
		x.Set(I(1))
		Else()
		x.Set(I(2))
		End()
	})
	stmts := flatten(s)
	// Declaration emits nothing; If is the only statement.
	ifStmt, ok := stmts[len(stmts)-1].(*source.If)
	if !ok {
		t.Fatalf("want If, got %T", stmts[len(stmts)-1])
	}
	if ifStmt.Cond.Tag != source.Any {
		t.Error("want Any quantifier")
	}
	if _, ok := ifStmt.Then.(*source.Assign); !ok {
		t.Errorf("then branch should be an Assign, got %T", ifStmt.Then)
	}
	if _, ok := ifStmt.Else.(*source.Assign); !ok {
		t.Errorf("else branch should be an Assign, got %T", ifStmt.Else)
	}
}

func TestWhereWithoutElse(t *testing.T) {
	s := build(t, func() {
		x := NewInt()
		Where(x.Lt(I(0)))
		x.Set(I(0))
		End()
	})
	stmts := flatten(s)
	w, ok := stmts[len(stmts)-1].(*source.Where)
	if !ok {
		t.Fatalf("want Where, got %T", stmts[len(stmts)-1])
	}
	if _, ok := w.Else.(*source.Skip); !ok {
		t.Errorf("missing else should be Skip, got %T", w.Else)
	}
}

func TestForCapturesIncrement(t *testing.T) {
	s := build(t, func() {
		i := NewInt()
		i.Set(I(0))
		For(Any(i.Lt(I(4))), func() { i.Inc() })
		End()
	})
	stmts := flatten(s)
	f, ok := stmts[len(stmts)-1].(*source.For)
	if !ok {
		t.Fatalf("want For, got %T", stmts[len(stmts)-1])
	}
	if _, ok := f.Inc.(*source.Assign); !ok {
		t.Errorf("increment should be an Assign, got %T", f.Inc)
	}
	if _, ok := f.Body.(*source.Skip); !ok {
		t.Errorf("empty body should be Skip, got %T", f.Body)
	}
}

func TestUnmatchedEndPanics(t *testing.T) {
	ctx := source.NewContext()
	Begin(ctx)
	defer Abort()
	defer func() {
		if recover() == nil {
			t.Error("End without an open block should panic")
		}
	}()
	End()
}

func TestUnterminatedBlockPanics(t *testing.T) {
	ctx := source.NewContext()
	Begin(ctx)
	defer Abort()
	x := NewInt()
	While(Any(x.Gt(I(0))))
	defer func() {
		if recover() == nil {
			t.Error("Finish with an open block should panic")
		}
	}()
	Finish()
}

func TestElseOutsideBlockPanics(t *testing.T) {
	ctx := source.NewContext()
	Begin(ctx)
	defer Abort()
	defer func() {
		if recover() == nil {
			t.Error("Else outside If/Where should panic")
		}
	}()
	Else()
}

func TestPtrArithmeticScalesToBytes(t *testing.T) {
	s := build(t, func() {
		p := NewIntPtr()
		p.Plus(I(3)).Store(I(1))
	})
	stmts := flatten(s)
	a := stmts[len(stmts)-1].(*source.Assign)
	d, ok := a.Lhs.(*source.Deref)
	if !ok {
		t.Fatalf("store should assign through Deref, got %T", a.Lhs)
	}
	add, ok := d.Addr.(*source.Apply)
	if !ok || add.Op.Kind != source.Add {
		t.Fatalf("address should be base + offset")
	}
	shl, ok := add.Rhs.(*source.Apply)
	if !ok || shl.Op.Kind != source.Shl {
		t.Fatalf("offset should be the index shifted to bytes")
	}
	lit, ok := shl.Rhs.(*source.IntLit)
	if !ok || lit.Value != 2 {
		t.Error("element offsets scale by four bytes")
	}
}
