// Package interp evaluates the source IR directly on 16-lane vectors.
// It is the gold standard the target emulator is differentially tested
// against: both build their lane semantics and print formatting on
// package vec, so agreement is structural rather than accidental.
package interp

import (
	"bytes"

	"github.com/vidcore/v3dlib/pkg/buffer"
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/source"
	"github.com/vidcore/v3dlib/pkg/vec"
)

// loopLimit bounds loop iterations so a non-terminating program
// reports an error instead of hanging.
const loopLimit = 10_000_000

type state struct {
	qpuID    int
	env      []vec.Vec
	mask     [vec.NumLanes]bool
	uniforms []int32
	unifNext int
	gather   []vec.Vec
	vpmRead  []vec.Vec
	mem      buffer.Object
	out      *bytes.Buffer

	readStride  int32
	writeStride int32
	loops       int
}

// Run interprets the program for numQPUs QPUs, one after the other.
// numVars is the source variable count; uniforms is the packed
// parameter block whose first word is the qpu-id placeholder.
func Run(numQPUs int, s source.Stmt, numVars int, uniforms []int32, mem buffer.Object, out *bytes.Buffer) error {
	for q := 0; q < numQPUs; q++ {
		u := make([]int32, len(uniforms))
		copy(u, uniforms)
		if len(u) > 0 {
			u[0] = int32(q)
		}
		st := &state{
			qpuID:    q,
			env:      make([]vec.Vec, numVars),
			uniforms: u,
			mem:      mem,
			out:      out,
		}
		for i := range st.mask {
			st.mask[i] = true
		}
		if err := st.exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (st *state) errf(format string, args ...any) error {
	return diag.New(diag.DispatchError, format, args...)
}

// --- Expressions ---

func (st *state) eval(e source.Expr) (vec.Vec, error) {
	switch e := e.(type) {
	case *source.IntLit:
		return vec.SplatInt(e.Value), nil
	case *source.FloatLit:
		return vec.SplatFloat(e.Value), nil
	case *source.Var:
		return st.evalVar(e)
	case *source.Apply:
		a, err := st.eval(e.Lhs)
		if err != nil {
			return vec.Vec{}, err
		}
		b, err := st.eval(e.Rhs)
		if err != nil {
			return vec.Vec{}, err
		}
		return st.apply(e.Op, a, b)
	case *source.Unary:
		a, err := st.eval(e.Arg)
		if err != nil {
			return vec.Vec{}, err
		}
		return st.unary(e.Op, a)
	case *source.Deref:
		addr, err := st.eval(e.Addr)
		if err != nil {
			return vec.Vec{}, err
		}
		return st.load(addr), nil
	}
	return vec.Vec{}, st.errf("cannot interpret expression %T", e)
}

func (st *state) evalVar(v *source.Var) (vec.Vec, error) {
	switch v.Kind {
	case source.Standard:
		if int(v.Id) >= len(st.env) {
			return vec.Vec{}, st.errf("variable %d out of range", v.Id)
		}
		return st.env[v.Id], nil
	case source.Uniform:
		val := int32(0)
		if st.unifNext < len(st.uniforms) {
			val = st.uniforms[st.unifNext]
			st.unifNext++
		}
		if v.IsPtr {
			// Pointer uniforms arrive offset per QPU and lane, the
			// way the target init block spreads them.
			var r vec.Vec
			for i := range r {
				r[i] = vec.IntWord(val + int32(st.qpuID)<<6 + int32(4*i))
			}
			return r, nil
		}
		return vec.SplatInt(val), nil
	case source.ElemNumK:
		return vec.ElemNum(), nil
	case source.QPUNumK:
		return vec.SplatInt(int32(st.qpuID)), nil
	default: // VPM read
		if len(st.vpmRead) == 0 {
			return vec.Vec{}, nil
		}
		val := st.vpmRead[0]
		st.vpmRead = st.vpmRead[1:]
		return val, nil
	}
}

func (st *state) apply(op source.Op, a, b vec.Vec) (vec.Vec, error) {
	if op.Kind == source.Rotate {
		return vec.Rotate(a, b[0].I()&15), nil
	}
	if op.Type == source.Float32 {
		switch op.Kind {
		case source.Add:
			return vec.AddF(a, b), nil
		case source.Sub:
			return vec.SubF(a, b), nil
		case source.Mul:
			return vec.MulF(a, b), nil
		case source.Min:
			return vec.MinF(a, b), nil
		case source.Max:
			return vec.MaxF(a, b), nil
		}
		return vec.Vec{}, st.errf("bad float operator %s", op)
	}
	switch op.Kind {
	case source.Add:
		return vec.AddI(a, b), nil
	case source.Sub:
		return vec.SubI(a, b), nil
	case source.Mul:
		return vec.Mul24(a, b), nil
	case source.Min:
		return vec.MinI(a, b), nil
	case source.Max:
		return vec.MaxI(a, b), nil
	case source.Shl:
		return vec.Shl(a, b), nil
	case source.Shr:
		return vec.Shr(a, b), nil
	case source.Asr:
		return vec.Asr(a, b), nil
	case source.Ror:
		return vec.Ror(a, b), nil
	case source.BAnd:
		return vec.And(a, b), nil
	case source.BOr:
		return vec.Or(a, b), nil
	case source.BXor:
		return vec.Xor(a, b), nil
	}
	return vec.Vec{}, st.errf("bad int operator %s", op)
}

func (st *state) unary(op source.Op, a vec.Vec) (vec.Vec, error) {
	switch op.Kind {
	case source.BNot:
		return vec.NotI(a), nil
	case source.ItoF:
		return vec.ItoF(a), nil
	case source.FtoI:
		return vec.FtoI(a), nil
	case source.Recip:
		return vec.Recip(a), nil
	case source.RecipSqrt:
		return vec.RecipSqrt(a), nil
	case source.Exp2:
		return vec.Exp2(a), nil
	case source.Log2:
		return vec.Log2(a), nil
	}
	return vec.Vec{}, st.errf("bad unary operator %s", op)
}

func (st *state) load(addr vec.Vec) vec.Vec {
	var r vec.Vec
	for i := range r {
		r[i] = vec.Word(st.mem.Load(uint32(addr[i])))
	}
	return r
}

// --- Boolean and conditional expressions ---

func (st *state) evalB(b source.BExpr) ([vec.NumLanes]bool, error) {
	switch b := b.(type) {
	case *source.Cmp:
		a, err := st.eval(b.Lhs)
		if err != nil {
			return [vec.NumLanes]bool{}, err
		}
		c, err := st.eval(b.Rhs)
		if err != nil {
			return [vec.NumLanes]bool{}, err
		}
		if b.Op.Type == source.Float32 {
			return vec.CmpMaskF(a, c, int(b.Op.Kind)), nil
		}
		return vec.CmpMaskI(a, c, int(b.Op.Kind)), nil
	case *source.Not:
		m, err := st.evalB(b.X)
		if err != nil {
			return m, err
		}
		for i := range m {
			m[i] = !m[i]
		}
		return m, nil
	case *source.And:
		l, err := st.evalB(b.Lhs)
		if err != nil {
			return l, err
		}
		r, err := st.evalB(b.Rhs)
		if err != nil {
			return r, err
		}
		for i := range l {
			l[i] = l[i] && r[i]
		}
		return l, nil
	case *source.Or:
		l, err := st.evalB(b.Lhs)
		if err != nil {
			return l, err
		}
		r, err := st.evalB(b.Rhs)
		if err != nil {
			return r, err
		}
		for i := range l {
			l[i] = l[i] || r[i]
		}
		return l, nil
	}
	return [vec.NumLanes]bool{}, st.errf("cannot interpret boolean %T", b)
}

func (st *state) evalC(c source.CExpr) (bool, error) {
	m, err := st.evalB(c.B)
	if err != nil {
		return false, err
	}
	if c.Tag == source.All {
		for _, x := range m {
			if !x {
				return false, nil
			}
		}
		return true, nil
	}
	for _, x := range m {
		if x {
			return true, nil
		}
	}
	return false, nil
}
