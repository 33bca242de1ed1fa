package source

import (
	"strings"
	"testing"
)

func TestExprString(t *testing.T) {
	e := &Apply{
		Lhs: &Var{Kind: Standard, Id: 2},
		Op:  Op{Kind: Add, Type: Int32},
		Rhs: &IntLit{Value: 3},
	}
	if got := ExprString(e); got != "(v2 + 3)" {
		t.Errorf("ExprString = %q", got)
	}
	d := &Deref{Addr: &Var{Kind: Standard, Id: 4}}
	if got := ExprString(d); got != "*v4" {
		t.Errorf("ExprString = %q", got)
	}
	u := &Unary{Op: Op{Kind: Recip, Type: Float32}, Arg: &FloatLit{Value: 2}}
	if got := ExprString(u); got != "(recip 2)" {
		t.Errorf("ExprString = %q", got)
	}
}

func TestBExprString(t *testing.T) {
	b := &And{
		Lhs: &Cmp{Lhs: &Var{Id: 2}, Op: CmpOp{Kind: LT, Type: Int32}, Rhs: &IntLit{Value: 8}},
		Rhs: &Not{X: &Cmp{Lhs: &Var{Id: 3}, Op: CmpOp{Kind: EQ, Type: Int32}, Rhs: &IntLit{}}},
	}
	want := "((v2 < 8) && !(v3 == 0))"
	if got := BExprString(b); got != want {
		t.Errorf("BExprString = %q, want %q", got, want)
	}
}

func TestPrintStmtIndents(t *testing.T) {
	s := &While{
		Cond: CExpr{Tag: Any, B: &Cmp{Lhs: &Var{Id: 2}, Op: CmpOp{Kind: GT, Type: Int32}, Rhs: &IntLit{}}},
		Body: &Assign{Lhs: &Var{Id: 2}, Rhs: &IntLit{Value: 1}},
	}
	var sb strings.Builder
	NewPrinter(&sb).PrintStmt(s)
	want := "while any(v2 > 0) {\n  v2 = 1\n}\n"
	if sb.String() != want {
		t.Errorf("PrintStmt = %q, want %q", sb.String(), want)
	}
}

func TestMkSeq(t *testing.T) {
	if _, ok := MkSeq().(*Skip); !ok {
		t.Error("empty MkSeq should be Skip")
	}
	one := &SendIRQ{}
	if MkSeq(one) != one {
		t.Error("single-statement MkSeq should be the statement itself")
	}
	s := MkSeq(&Skip{}, &SendIRQ{}, &Skip{})
	seq, ok := s.(*Seq)
	if !ok {
		t.Fatalf("want Seq, got %T", s)
	}
	if _, ok := seq.S0.(*Seq); !ok {
		t.Error("MkSeq should nest to the left")
	}
}

func TestContextReservesTwoVariables(t *testing.T) {
	ctx := NewContext()
	v := ctx.FreshVar()
	if v.Id != 2 {
		t.Errorf("first fresh variable should be 2, got %d", v.Id)
	}
	if ctx.VarCount() != 3 {
		t.Errorf("VarCount = %d, want 3", ctx.VarCount())
	}
}
