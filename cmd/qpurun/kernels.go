package main

import (
	"fmt"
	"io"

	"github.com/vidcore/v3dlib/pkg/buffer"
	"github.com/vidcore/v3dlib/pkg/dsl"
	"github.com/vidcore/v3dlib/pkg/kernel"
	"github.com/vidcore/v3dlib/pkg/target"
)

// The example kernels. Each entry compiles, loads and runs a kernel
// and prints its result arrays.

// hello writes 1 through every lane's pointer.
func hello(p dsl.IntPtr) {
	p.Store(dsl.I(1))
}

// triInt computes the triangular number of each lane's input.
func triInt(p dsl.IntPtr) {
	n := dsl.LetInt(p.Deref())
	sum := dsl.LetInt(dsl.I(0))
	dsl.While(dsl.Any(n.Gt(dsl.I(0))))
	dsl.Where(n.Gt(dsl.I(0)))
	sum.Set(sum.Add(n.IntExpr))
	n.Set(n.Sub(dsl.I(1)))
	dsl.End()
	dsl.End()
	p.Store(sum.IntExpr)
}

// intOps adds a constant to the lane index.
func intOps(p dsl.IntPtr) {
	a := dsl.LetInt(dsl.Index().Add(dsl.I(3)))
	p.Store(a.IntExpr)
}

// nestedFor runs two nested counted loops with a masked increment:
// odd lanes accumulate 3 per iteration, even lanes 2.
func nestedFor(p dsl.IntPtr) {
	x := dsl.LetInt(dsl.I(0))
	i := dsl.LetInt(dsl.I(0))
	dsl.For(dsl.Any(i.Lt(dsl.I(3))), func() { i.Inc() })
	j := dsl.LetInt(dsl.I(0))
	dsl.For(dsl.Any(j.Lt(dsl.I(3))), func() { j.Inc() })
	dsl.Where(dsl.Index().BAnd(dsl.I(1)).Eq(dsl.I(1)))
	x.Set(x.Add(dsl.I(3)))
	dsl.Else()
	x.Set(x.Add(dsl.I(2)))
	dsl.End()
	dsl.End()
	dsl.End()
	p.Store(x.IntExpr)
}

// rot3D1 rotates n 2-D points by the angle whose cosine and sine are
// supplied, 16 points per iteration.
func rot3D1(n dsl.Int, cosTheta, sinTheta dsl.Float, x, y dsl.FloatPtr) {
	i := dsl.LetInt(dsl.I(0))
	dsl.For(dsl.Any(i.Lt(n.IntExpr)), func() { i.Set(i.Add(dsl.I(16))) })
	xOld := dsl.LetFloat(x.Plus(i.IntExpr).Deref())
	yOld := dsl.LetFloat(y.Plus(i.IntExpr).Deref())
	x.Plus(i.IntExpr).Store(xOld.Mul(cosTheta.FloatExpr).Sub(yOld.Mul(sinTheta.FloatExpr)))
	y.Plus(i.IntExpr).Store(yOld.Mul(cosTheta.FloatExpr).Add(xOld.Mul(sinTheta.FloatExpr)))
	dsl.End()
}

type kernelRunner func(s *settings, w io.Writer) error

var kernels = map[string]kernelRunner{
	"hello":      runHello,
	"tri":        runTri,
	"int_ops":    runIntOps,
	"nested_for": runNestedFor,
	"rot3d":      runRot3D,
}

func prepare(s *settings, fn any) (*kernel.Kernel, error) {
	k, err := kernel.Compile(s.platform(), fn)
	if err != nil {
		return nil, err
	}
	if err := k.SetNumQPUs(s.numQPUs); err != nil {
		return nil, err
	}
	return k, nil
}

func finish(s *settings, k *kernel.Kernel, w io.Writer) error {
	if s.outputCode {
		code, err := k.EncodeBytes()
		if err != nil {
			return err
		}
		for i := 0; i+8 <= len(code); i += 8 {
			fmt.Fprintf(w, "%02x%02x%02x%02x%02x%02x%02x%02x\n",
				code[i+7], code[i+6], code[i+5], code[i+4],
				code[i+3], code[i+2], code[i+1], code[i])
		}
	}
	if s.perfCounters {
		if s.platform() != target.VC4 {
			return fmt.Errorf("performance counters are vc4-only")
		}
		fmt.Fprintf(w, "Performance counters\n--------------------\n")
		fmt.Fprintf(w, "instructions executed: %d\n", k.Steps)
	}
	return nil
}

func showArray(s *settings, w io.Writer, arr *buffer.SharedArray) {
	if !s.display || s.silent {
		return
	}
	for i := 0; i < arr.Size(); i++ {
		fmt.Fprintf(w, "%d: %d\n", i, arr.Get(i))
	}
}

func showArrayF(s *settings, w io.Writer, arr *buffer.SharedArray) {
	if !s.display || s.silent {
		return
	}
	for i := 0; i < arr.Size(); i++ {
		fmt.Fprintf(w, "%d: %f\n", i, arr.GetF(i))
	}
}

func runHello(s *settings, w io.Writer) error {
	k, err := prepare(s, hello)
	if err != nil {
		return err
	}
	if s.compileOnly {
		return finish(s, k, w)
	}
	arr, err := buffer.NewSharedArray(kernel.BufferObject(), 16*s.numQPUs)
	if err != nil {
		return err
	}
	defer arr.Free()
	for i := 0; i < arr.Size(); i++ {
		arr.Set(i, 100)
	}
	if err := k.Load(arr); err != nil {
		return err
	}
	if err := k.Call(); err != nil {
		return err
	}
	showArray(s, w, arr)
	return finish(s, k, w)
}

func runTri(s *settings, w io.Writer) error {
	k, err := prepare(s, triInt)
	if err != nil {
		return err
	}
	if s.compileOnly {
		return finish(s, k, w)
	}
	arr, err := buffer.NewSharedArray(kernel.BufferObject(), 16*s.numQPUs)
	if err != nil {
		return err
	}
	defer arr.Free()
	for i := 0; i < arr.Size(); i++ {
		arr.Set(i, int32(i))
	}
	if err := k.Load(arr); err != nil {
		return err
	}
	if err := k.Call(); err != nil {
		return err
	}
	showArray(s, w, arr)
	return finish(s, k, w)
}

func runIntOps(s *settings, w io.Writer) error {
	k, err := prepare(s, intOps)
	if err != nil {
		return err
	}
	if s.compileOnly {
		return finish(s, k, w)
	}
	arr, err := buffer.NewSharedArray(kernel.BufferObject(), 16*s.numQPUs)
	if err != nil {
		return err
	}
	defer arr.Free()
	if err := k.Load(arr); err != nil {
		return err
	}
	if err := k.Call(); err != nil {
		return err
	}
	showArray(s, w, arr)
	return finish(s, k, w)
}

func runNestedFor(s *settings, w io.Writer) error {
	k, err := prepare(s, nestedFor)
	if err != nil {
		return err
	}
	if s.compileOnly {
		return finish(s, k, w)
	}
	arr, err := buffer.NewSharedArray(kernel.BufferObject(), 16*s.numQPUs)
	if err != nil {
		return err
	}
	defer arr.Free()
	if err := k.Load(arr); err != nil {
		return err
	}
	if err := k.Call(); err != nil {
		return err
	}
	showArray(s, w, arr)
	return finish(s, k, w)
}

func runRot3D(s *settings, w io.Writer) error {
	k, err := prepare(s, rot3D1)
	if err != nil {
		return err
	}
	if s.compileOnly {
		return finish(s, k, w)
	}
	const n = 16
	x, err := buffer.NewSharedArray(kernel.BufferObject(), n)
	if err != nil {
		return err
	}
	defer x.Free()
	y, err := buffer.NewSharedArray(kernel.BufferObject(), n)
	if err != nil {
		return err
	}
	defer y.Free()
	for i := 0; i < n; i++ {
		x.SetF(i, float32(i))
		y.SetF(i, float32(i))
	}
	if err := k.Load(n, float32(1), float32(0), x, y); err != nil {
		return err
	}
	if err := k.Call(); err != nil {
		return err
	}
	showArrayF(s, w, x)
	showArrayF(s, w, y)
	return finish(s, k, w)
}
