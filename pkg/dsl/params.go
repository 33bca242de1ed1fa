package dsl

import "github.com/vidcore/v3dlib/pkg/source"

// Kernel parameter construction. Each parameter is a fresh variable
// loaded from the uniform FIFO, in declaration order. LoadReserved
// runs first so the qpu-id and num-qpus words land in the two reserved
// variables.

// LoadReserved loads the two reserved uniforms.
func LoadReserved() {
	emit(&source.Assign{
		Lhs: &source.Var{Kind: source.Standard, Id: source.RsvQPUID},
		Rhs: &source.Var{Kind: source.Uniform},
	})
	emit(&source.Assign{
		Lhs: &source.Var{Kind: source.Standard, Id: source.RsvNumQPUs},
		Rhs: &source.Var{Kind: source.Uniform},
	})
}

// ReservedLoads returns the statements LoadReserved emits, for callers
// that need to prepend them outside an active compilation.
func ReservedLoads() source.Stmt {
	return source.MkSeq(
		&source.Assign{
			Lhs: &source.Var{Kind: source.Standard, Id: source.RsvQPUID},
			Rhs: &source.Var{Kind: source.Uniform},
		},
		&source.Assign{
			Lhs: &source.Var{Kind: source.Standard, Id: source.RsvNumQPUs},
			Rhs: &source.Var{Kind: source.Uniform},
		},
	)
}

// ParamInt declares an integer kernel parameter.
func ParamInt() Int {
	x := NewInt()
	x.Set(UniformInt())
	return x
}

// ParamFloat declares a float kernel parameter.
func ParamFloat() Float {
	x := NewFloat()
	x.Set(UniformFloat())
	return x
}

// ParamIntPtr declares a pointer kernel parameter. The init block
// offsets it per QPU and lane.
func ParamIntPtr() IntPtr {
	p := NewIntPtr()
	p.Set(UniformPtr())
	if v, ok := p.e.(*source.Var); ok {
		cur().ctx.NotePtrParam(v.Id)
	}
	return p
}

// ParamFloatPtr declares a pointer kernel parameter.
func ParamFloatPtr() FloatPtr {
	p := NewFloatPtr()
	p.Set(UniformFloatPtr())
	if v, ok := p.e.(*source.Var); ok {
		cur().ctx.NotePtrParam(v.Id)
	}
	return p
}
