// Package gen produces random kernel bodies for the differential
// autotest: the same program is run through the source interpreter and
// the target emulator and the two output streams must be identical.
// Loops always count a dedicated variable down to zero so every
// generated program terminates.
package gen

import (
	"math/rand"

	"github.com/vidcore/v3dlib/pkg/dsl"
)

// Options controls the shape of generated programs.
type Options struct {
	Depth      int // maximum nesting of control structures
	Length     int // statements per block
	NumIntArgs int // integer kernel arguments (0..4)
	NumIntVars int // extra integer variables
	LoopBound  int // maximum iterations per generated loop
}

// BasicOptions mirrors the canonical autotest configuration.
func BasicOptions() Options {
	return Options{
		Depth:      3,
		Length:     4,
		NumIntArgs: 4,
		NumIntVars: 4,
		LoopBound:  5,
	}
}

// IntLit returns a random literal in the small, overflow-safe range
// the generator sticks to.
func IntLit(r *rand.Rand) int32 {
	return int32(r.Intn(33) - 16)
}

type generator struct {
	r    *rand.Rand
	opts Options
	vars []dsl.Int
}

// Kernel returns a kernel function with the configured number of
// integer arguments whose body is generated from r when the kernel is
// compiled. Each returned function must be compiled exactly once.
func Kernel(r *rand.Rand, opts Options) any {
	body := func(args []dsl.Int) {
		g := &generator{r: r, opts: opts, vars: args}
		for i := 0; i < opts.NumIntVars; i++ {
			g.vars = append(g.vars, dsl.LetInt(dsl.I(IntLit(r))))
		}
		g.block(opts.Depth, opts.Length)
		// Make every variable observable.
		for _, v := range g.vars {
			dsl.PrintInt(v.IntExpr)
		}
	}
	switch opts.NumIntArgs {
	case 0:
		return func() { body(nil) }
	case 1:
		return func(a dsl.Int) { body([]dsl.Int{a}) }
	case 2:
		return func(a, b dsl.Int) { body([]dsl.Int{a, b}) }
	case 3:
		return func(a, b, c dsl.Int) { body([]dsl.Int{a, b, c}) }
	default:
		return func(a, b, c, d dsl.Int) { body([]dsl.Int{a, b, c, d}) }
	}
}

func (g *generator) randVar() dsl.Int {
	return g.vars[g.r.Intn(len(g.vars))]
}

// expr builds a random integer expression. Operands stay small enough
// that accumulated arithmetic cannot reach the comparison-overflow
// region.
func (g *generator) expr(depth int) dsl.IntExpr {
	if depth <= 0 || g.r.Intn(3) == 0 {
		if g.r.Intn(2) == 0 {
			return dsl.I(IntLit(g.r))
		}
		return g.randVar().IntExpr
	}
	a := g.expr(depth - 1)
	b := g.expr(depth - 1)
	switch g.r.Intn(7) {
	case 0:
		return a.Add(b)
	case 1:
		return a.Sub(b)
	case 2:
		return a.Min(b)
	case 3:
		return a.Max(b)
	case 4:
		return a.BAnd(b)
	case 5:
		return a.BOr(b)
	default:
		return a.BXor(b)
	}
}

func (g *generator) bexpr(depth int) dsl.BoolExpr {
	if depth <= 0 || g.r.Intn(2) == 0 {
		a := g.expr(1)
		b := g.expr(1)
		switch g.r.Intn(6) {
		case 0:
			return a.Eq(b)
		case 1:
			return a.Neq(b)
		case 2:
			return a.Lt(b)
		case 3:
			return a.Le(b)
		case 4:
			return a.Gt(b)
		default:
			return a.Ge(b)
		}
	}
	switch g.r.Intn(3) {
	case 0:
		return g.bexpr(depth - 1).And(g.bexpr(depth - 1))
	case 1:
		return g.bexpr(depth - 1).Or(g.bexpr(depth - 1))
	default:
		return g.bexpr(depth - 1).Not()
	}
}

func (g *generator) cond(depth int) dsl.Cond {
	if g.r.Intn(2) == 0 {
		return dsl.Any(g.bexpr(depth))
	}
	return dsl.All(g.bexpr(depth))
}

func (g *generator) block(depth, length int) {
	for i := 0; i < length; i++ {
		g.stmt(depth)
	}
}

func (g *generator) stmt(depth int) {
	choices := 3
	if depth > 0 {
		choices = 6
	}
	switch g.r.Intn(choices) {
	case 0, 1:
		g.randVar().Set(g.expr(2))
	case 2:
		dsl.PrintInt(g.expr(1))
	case 3:
		dsl.If(g.cond(depth - 1))
		g.block(depth-1, g.opts.Length)
		if g.r.Intn(2) == 0 {
			dsl.Else()
			g.block(depth-1, g.opts.Length)
		}
		dsl.End()
	case 4:
		dsl.Where(g.bexpr(depth - 1))
		g.whereBlock(depth-1, g.opts.Length)
		if g.r.Intn(2) == 0 {
			dsl.Else()
			g.whereBlock(depth-1, g.opts.Length)
		}
		dsl.End()
	default:
		// A counted loop: always terminates.
		n := dsl.LetInt(dsl.I(int32(g.r.Intn(g.opts.LoopBound) + 1)))
		dsl.While(dsl.Any(n.Gt(dsl.I(0))))
		g.block(depth-1, g.opts.Length-1)
		n.Set(n.Sub(dsl.I(1)))
		dsl.End()
	}
}

// whereBlock only emits assignments and nested Wheres; other
// statements are not maskable.
func (g *generator) whereBlock(depth, length int) {
	for i := 0; i < length; i++ {
		if depth > 0 && g.r.Intn(4) == 0 {
			dsl.Where(g.bexpr(depth - 1))
			g.whereBlock(depth-1, length-1)
			dsl.End()
			continue
		}
		g.randVar().Set(g.expr(2))
	}
}
