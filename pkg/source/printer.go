// Source AST printing, used by Kernel.Pretty and the test suites.
package source

import (
	"fmt"
	"io"
)

// Printer outputs the source AST in an indented textual form.
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new source AST printer.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) line(format string, args ...any) {
	for i := 0; i < p.indent; i++ {
		fmt.Fprint(p.w, "  ")
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

// PrintStmt prints a statement tree.
func (p *Printer) PrintStmt(s Stmt) {
	switch s := s.(type) {
	case *Skip:
		p.line("skip")
	case *Assign:
		p.line("%s = %s", ExprString(s.Lhs), ExprString(s.Rhs))
	case *Seq:
		p.PrintStmt(s.S0)
		p.PrintStmt(s.S1)
	case *Where:
		p.line("where %s {", BExprString(s.Cond))
		p.block(s.Then)
		if _, skip := s.Else.(*Skip); !skip {
			p.line("} else {")
			p.block(s.Else)
		}
		p.line("}")
	case *If:
		p.line("if %s {", CExprString(s.Cond))
		p.block(s.Then)
		if _, skip := s.Else.(*Skip); !skip {
			p.line("} else {")
			p.block(s.Else)
		}
		p.line("}")
	case *While:
		p.line("while %s {", CExprString(s.Cond))
		p.block(s.Body)
		p.line("}")
	case *For:
		p.line("for %s {", CExprString(s.Cond))
		p.block(s.Body)
		p.line("} inc {")
		p.block(s.Inc)
		p.line("}")
	case *Print:
		switch s.Kind {
		case PrintStr:
			p.line("print %q", s.Str)
		default:
			p.line("print %s", ExprString(s.E))
		}
	case *StoreRequest:
		p.line("store %s -> %s", ExprString(s.Data), ExprString(s.Addr))
	case *Gather:
		p.line("gather %s", ExprString(s.Addr))
	case *LoadReceive:
		p.line("receive %s", ExprString(s.Dest))
	case *SetReadStride:
		p.line("setReadStride %s", ExprString(s.E))
	case *SetWriteStride:
		p.line("setWriteStride %s", ExprString(s.E))
	case *SemaInc:
		p.line("semaInc %d", s.Id)
	case *SemaDec:
		p.line("semaDec %d", s.Id)
	case *SendIRQ:
		p.line("hostIRQ")
	case *DMAStartRead:
		p.line("dmaStartRead %s", ExprString(s.E))
	case *DMAStartWrite:
		p.line("dmaStartWrite %s", ExprString(s.E))
	case *DMAReadWait:
		p.line("dmaReadWait")
	case *DMAWriteWait:
		p.line("dmaWriteWait")
	default:
		p.line("?%T", s)
	}
}

func (p *Printer) block(s Stmt) {
	p.indent++
	p.PrintStmt(s)
	p.indent--
}

// ExprString renders an expression on one line.
func ExprString(e Expr) string {
	switch e := e.(type) {
	case *IntLit:
		return fmt.Sprintf("%d", e.Value)
	case *FloatLit:
		return fmt.Sprintf("%g", e.Value)
	case *Var:
		switch e.Kind {
		case Uniform:
			return "UNIFORM"
		case ElemNumK:
			return "ELEM_NUM"
		case QPUNumK:
			return "QPU_NUM"
		case VPMReadK:
			return "VPM_READ"
		}
		return fmt.Sprintf("v%d", e.Id)
	case *Apply:
		return fmt.Sprintf("(%s %s %s)", ExprString(e.Lhs), e.Op, ExprString(e.Rhs))
	case *Unary:
		return fmt.Sprintf("(%s %s)", e.Op, ExprString(e.Arg))
	case *Deref:
		return fmt.Sprintf("*%s", ExprString(e.Addr))
	}
	return fmt.Sprintf("?%T", e)
}

// BExprString renders a boolean expression on one line.
func BExprString(b BExpr) string {
	switch b := b.(type) {
	case *Not:
		return fmt.Sprintf("!%s", BExprString(b.X))
	case *And:
		return fmt.Sprintf("(%s && %s)", BExprString(b.Lhs), BExprString(b.Rhs))
	case *Or:
		return fmt.Sprintf("(%s || %s)", BExprString(b.Lhs), BExprString(b.Rhs))
	case *Cmp:
		return fmt.Sprintf("(%s %s %s)", ExprString(b.Lhs), b.Op, ExprString(b.Rhs))
	}
	return fmt.Sprintf("?%T", b)
}

// CExprString renders a quantified condition on one line.
func CExprString(c CExpr) string {
	if c.Tag == All {
		return fmt.Sprintf("all%s", BExprString(c.B))
	}
	return fmt.Sprintf("any%s", BExprString(c.B))
}
