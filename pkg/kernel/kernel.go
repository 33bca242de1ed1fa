// Package kernel drives the whole pipeline: it runs a host kernel
// function under the DSL to capture the source tree, lowers and
// allocates the target code, and dispatches invocations to the
// device, the target emulator or the source interpreter.
package kernel

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"

	"github.com/vidcore/v3dlib/pkg/buffer"
	"github.com/vidcore/v3dlib/pkg/cfg"
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/dsl"
	"github.com/vidcore/v3dlib/pkg/emu"
	"github.com/vidcore/v3dlib/pkg/interp"
	"github.com/vidcore/v3dlib/pkg/lower"
	"github.com/vidcore/v3dlib/pkg/regalloc"
	"github.com/vidcore/v3dlib/pkg/source"
	"github.com/vidcore/v3dlib/pkg/target"
)

// ParamKind records a kernel parameter's wire type.
type ParamKind int

const (
	ParamInt ParamKind = iota
	ParamFloat
	ParamPtr
)

// Device invokes compiled code on hardware. When no device is
// attached, Call falls back to the emulator.
type Device interface {
	Invoke(tgt target.Platform, code []byte, uniforms []int32, numQPUs int) error
}

// defaultHeap is the buffer object shared by kernels and their
// SharedArrays under emulation.
var defaultHeap = buffer.NewHeap(1 << 20)

// BufferObject returns the process-wide emulation buffer object.
func BufferObject() buffer.Object { return defaultHeap }

// Kernel is a compiled kernel plus its invocation state.
type Kernel struct {
	Source  source.Stmt
	Code    []target.Instr
	NumVars int // source variable count, for the interpreter

	tgt     target.Platform
	params  []ParamKind
	numQPUs int
	loaded  []int32
	device  Device
	out     io.Writer

	// Steps is the emulator's instruction count from the last Emu
	// run, surfaced by the performance-counter flag.
	Steps int
}

// maxQPUs returns the QPU count limit of a platform.
func maxQPUs(tgt target.Platform) int {
	if tgt == target.V3D {
		return 8
	}
	return 12
}

var paramTypes = map[reflect.Type]ParamKind{
	reflect.TypeOf(dsl.Int{}):      ParamInt,
	reflect.TypeOf(dsl.Float{}):    ParamFloat,
	reflect.TypeOf(dsl.IntPtr{}):   ParamPtr,
	reflect.TypeOf(dsl.FloatPtr{}): ParamPtr,
}

// Compile builds a kernel for the given platform from a host function
// whose parameters are DSL value types.
func Compile(tgt target.Platform, fn any) (k *Kernel, err error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.NumOut() != 0 {
		return nil, diag.New(diag.UsageError, "kernel must be a function without results")
	}

	ctx := source.NewContext()
	dsl.Begin(ctx)
	defer func() {
		if err != nil {
			dsl.Abort()
		}
	}()

	var params []ParamKind
	if ft.NumIn() > 0 {
		dsl.LoadReserved()
	}
	args := make([]reflect.Value, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		kind, ok := paramTypes[ft.In(i)]
		if !ok {
			return nil, diag.New(diag.UsageError, "unsupported kernel parameter type %s", ft.In(i))
		}
		params = append(params, kind)
		switch ft.In(i) {
		case reflect.TypeOf(dsl.Int{}):
			args[i] = reflect.ValueOf(dsl.ParamInt())
		case reflect.TypeOf(dsl.Float{}):
			args[i] = reflect.ValueOf(dsl.ParamFloat())
		case reflect.TypeOf(dsl.IntPtr{}):
			args[i] = reflect.ValueOf(dsl.ParamIntPtr())
		default:
			args[i] = reflect.ValueOf(dsl.ParamFloatPtr())
		}
	}

	fv.Call(args)
	body := dsl.Finish()

	if ft.NumIn() == 0 && ctx.UsesReserved() {
		body = &source.Seq{S0: dsl.ReservedLoads(), S1: body}
	}

	srcVars := ctx.VarCount()
	instrs, err := lower.Translate(ctx, body, tgt)
	if err != nil {
		return nil, err
	}
	g, err := cfg.Build(instrs)
	if err != nil {
		return nil, err
	}
	if err := regalloc.Alloc(instrs, g, ctx.VarCount(), tgt); err != nil {
		return nil, err
	}
	instrs, err = lower.Satisfy(instrs, tgt)
	if err != nil {
		return nil, err
	}
	if err := lower.Fixup(instrs); err != nil {
		return nil, err
	}

	return &Kernel{
		Source:  body,
		Code:    instrs,
		NumVars: srcVars,
		tgt:     tgt,
		params:  params,
		numQPUs: 1,
		out:     os.Stdout,
	}, nil
}

// SetNumQPUs selects how many QPUs the next invocation uses.
func (k *Kernel) SetNumQPUs(n int) error {
	if n < 1 || n > maxQPUs(k.tgt) {
		return diag.New(diag.UsageError, "numQPUs %d out of range 1..%d for %s",
			n, maxQPUs(k.tgt), k.tgt)
	}
	k.numQPUs = n
	return nil
}

// NumQPUs returns the configured QPU count.
func (k *Kernel) NumQPUs() int { return k.numQPUs }

// SetOutput redirects print output of the execution sinks.
func (k *Kernel) SetOutput(w io.Writer) { k.out = w }

// AttachDevice routes Call to hardware.
func (k *Kernel) AttachDevice(d Device) { k.device = d }

// Load marshals the arguments for the next invocation. The argument
// list must match the kernel's parameters: ints, floats, and
// *buffer.SharedArray for pointers.
func (k *Kernel) Load(args ...any) error {
	if len(args) != len(k.params) {
		return diag.New(diag.UsageError, "kernel takes %d arguments, got %d",
			len(k.params), len(args))
	}
	var words []int32
	for i, a := range args {
		switch k.params[i] {
		case ParamInt:
			switch v := a.(type) {
			case int:
				words = append(words, int32(v))
			case int32:
				words = append(words, v)
			default:
				return diag.New(diag.UsageError, "argument %d: want int, got %T", i, a)
			}
		case ParamFloat:
			switch v := a.(type) {
			case float32:
				words = append(words, int32(math.Float32bits(v)))
			case float64:
				words = append(words, int32(math.Float32bits(float32(v))))
			default:
				return diag.New(diag.UsageError, "argument %d: want float, got %T", i, a)
			}
		case ParamPtr:
			arr, ok := a.(*buffer.SharedArray)
			if !ok {
				return diag.New(diag.UsageError, "argument %d: want *buffer.SharedArray, got %T", i, a)
			}
			words = append(words, int32(arr.Address()))
		}
	}
	k.loaded = words
	return nil
}

// uniforms packs the wire-format block: qpu-id placeholder, the QPU
// count, then one word per parameter.
func (k *Kernel) uniforms() []int32 {
	u := make([]int32, 0, 2+len(k.loaded))
	u = append(u, 0, int32(k.numQPUs))
	return append(u, k.loaded...)
}

// Emu runs the target emulator.
func (k *Kernel) Emu() error {
	var out bytes.Buffer
	st, err := emu.Run(k.numQPUs, k.Code, k.uniforms(), defaultHeap, &out)
	if st != nil {
		k.Steps = st.Steps
	}
	if out.Len() > 0 {
		k.out.Write(out.Bytes())
	}
	return err
}

// Interpret runs the source interpreter.
func (k *Kernel) Interpret() error {
	var out bytes.Buffer
	err := interp.Run(k.numQPUs, k.Source, k.NumVars, k.uniforms(), defaultHeap, &out)
	if out.Len() > 0 {
		k.out.Write(out.Bytes())
	}
	return err
}

// Call invokes the kernel: on the attached device if any, otherwise on
// the emulator. It blocks until the invocation completes.
func (k *Kernel) Call() error {
	if k.device == nil {
		return k.Emu()
	}
	code, err := k.EncodeBytes()
	if err != nil {
		return err
	}
	return k.device.Invoke(k.tgt, code, k.uniforms(), k.numQPUs)
}

// Pretty dumps the source and target code.
func (k *Kernel) Pretty(w io.Writer) {
	fmt.Fprintf(w, "Source code\n===========\n\n")
	source.NewPrinter(w).PrintStmt(k.Source)
	fmt.Fprintf(w, "\nTarget code\n===========\n\n")
	fmt.Fprint(w, target.Mnemonics(k.Code))
}

// PrettyFile writes Pretty output to path, or stdout when empty.
func (k *Kernel) PrettyFile(path string) error {
	if path == "" {
		k.Pretty(os.Stdout)
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pretty output: %w", err)
	}
	defer f.Close()
	k.Pretty(f)
	return nil
}
