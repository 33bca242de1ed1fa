// Package emu executes lowered, allocated, fixed-up target code on a
// 16-lane vector machine: 64 regfile-A and 64 regfile-B slots, six
// accumulators, per-lane Z/N flags, a uniform FIFO, a TMU response
// queue, a VPM/DMA model and the shared semaphores. QPUs step in
// lockstep round-robin so semaphore synchronisation terminates.
package emu

import (
	"bytes"
	"math"

	"github.com/vidcore/v3dlib/pkg/buffer"
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
	"github.com/vidcore/v3dlib/pkg/vec"
)

// stepLimit bounds a run so that a miscompiled kernel cannot hang the
// host. Generous next to any expected kernel size.
const stepLimit = 50_000_000

type qpu struct {
	id   int
	pc   int
	done bool

	regA [64]vec.Vec
	regB [64]vec.Vec
	acc  [6]vec.Vec

	flagZ [vec.NumLanes]bool
	flagN [vec.NumLanes]bool

	uniforms []int32
	unifNext int

	tmuQueue []vec.Vec
	vpmRead  []vec.Vec
	vpmWrite []vec.Vec

	tmudPending vec.Vec
	hasTMUD     bool

	readStride  int32
	writeStride int32
}

// State is one emulation run.
type State struct {
	instrs []target.Instr
	mem    buffer.Object
	qpus   []*qpu
	sema   [16]int
	out    *bytes.Buffer

	// Steps counts executed instructions, for the performance-counter
	// surface.
	Steps int
}

// Run executes the code on numQPUs QPUs. uniforms is the packed
// parameter block; its first word is the per-QPU id placeholder.
// Output from print instructions lands in out.
func Run(numQPUs int, instrs []target.Instr, uniforms []int32, mem buffer.Object, out *bytes.Buffer) (*State, error) {
	s := &State{instrs: instrs, mem: mem, out: out}
	for q := 0; q < numQPUs; q++ {
		u := make([]int32, len(uniforms))
		copy(u, uniforms)
		if len(u) > 0 {
			u[0] = int32(q)
		}
		s.qpus = append(s.qpus, &qpu{id: q, uniforms: u})
	}

	for {
		running := false
		for _, q := range s.qpus {
			if q.done {
				continue
			}
			running = true
			if err := s.step(q); err != nil {
				return s, err
			}
			s.Steps++
			if s.Steps > stepLimit {
				return s, diag.New(diag.DispatchError, "emulator step limit exceeded")
			}
		}
		if !running {
			return s, nil
		}
	}
}

func (s *State) step(q *qpu) error {
	if q.pc < 0 || q.pc >= len(s.instrs) {
		q.done = true
		return nil
	}
	instr := s.instrs[q.pc]
	switch i := instr.(type) {
	case *target.End:
		q.done = true
		return nil
	case *target.LI:
		v := vec.SplatInt(immBits(i.Imm))
		s.writeDest(q, i.Dest, v, i.Cond)
		if i.SetFlags {
			q.setFlags(v, false)
		}
	case *target.ALU:
		if err := s.alu(q, i); err != nil {
			return err
		}
	case *target.BR:
		if q.branchTaken(i.Cond) {
			q.pc += 4 + i.Target.ImmOffset
			return nil
		}
	case *target.SInc:
		if s.sema[i.Id] >= 15 {
			return nil // stall
		}
		s.sema[i.Id]++
	case *target.SDec:
		if s.sema[i.Id] <= 0 {
			return nil // stall
		}
		s.sema[i.Id]--
	case *target.TMU0ToAcc4:
		if len(q.tmuQueue) == 0 {
			return diag.At(diag.DispatchError, q.pc, target.Mnemonic(instr), "TMU queue empty")
		}
		q.acc[4] = q.tmuQueue[0]
		q.tmuQueue = q.tmuQueue[1:]
	case *target.Recv:
		if len(q.tmuQueue) == 0 {
			return diag.At(diag.DispatchError, q.pc, target.Mnemonic(instr), "TMU queue empty")
		}
		s.writeDest(q, i.Dest, q.tmuQueue[0], target.CondAlways())
		q.tmuQueue = q.tmuQueue[1:]
	case *target.PRS:
		s.out.WriteString(i.Str)
	case *target.PRI:
		s.out.Write(vec.AppendInt(nil, q.readReg(s, i.Src)))
	case *target.PRF:
		s.out.Write(vec.AppendFloat(nil, q.readReg(s, i.Src)))
	case *target.IRQ, *target.DMALoadWait, *target.DMAStoreWait,
		*target.NoOp, *target.InitBegin, *target.InitEnd, *target.Lab:
		// The DMA model completes transfers at issue time, so the
		// waits are no-ops here.
	case *target.BRL:
		return diag.At(diag.DispatchError, q.pc, target.Mnemonic(instr),
			"unresolved branch label reached the emulator")
	default:
		return diag.At(diag.DispatchError, q.pc, target.Mnemonic(instr), "cannot emulate")
	}
	q.pc++
	return nil
}

func immBits(imm target.Imm) int32 {
	if imm.Tag == target.ImmFloat32 {
		return int32(math.Float32bits(imm.FltVal))
	}
	return imm.IntVal
}

func (q *qpu) branchTaken(c target.BranchCond) bool {
	switch c.Tag {
	case target.BrAlways:
		return true
	case target.BrNever:
		return false
	}
	all, any := true, false
	for i := 0; i < vec.NumLanes; i++ {
		if q.flagHolds(c.Flag, i) {
			any = true
		} else {
			all = false
		}
	}
	if c.Tag == target.BrAll {
		return all
	}
	return any
}

func (q *qpu) flagHolds(f target.Flag, lane int) bool {
	switch f {
	case target.ZS:
		return q.flagZ[lane]
	case target.ZC:
		return !q.flagZ[lane]
	case target.NS:
		return q.flagN[lane]
	default:
		return !q.flagN[lane]
	}
}

func (q *qpu) condMask(c target.AssignCond) [vec.NumLanes]bool {
	var m [vec.NumLanes]bool
	switch c.Tag {
	case target.Always:
		for i := range m {
			m[i] = true
		}
	case target.Never:
	case target.Flagged:
		for i := range m {
			m[i] = q.flagHolds(c.Flag, i)
		}
	}
	return m
}

func floatResult(op target.ALUOp) bool {
	switch op {
	case target.A_FAdd, target.A_FSub, target.A_FMin, target.A_FMax,
		target.A_FMinAbs, target.A_FMaxAbs, target.A_ItoF, target.M_FMul:
		return true
	}
	return false
}

func (q *qpu) setFlags(v vec.Vec, isFloat bool) {
	for i := 0; i < vec.NumLanes; i++ {
		if isFloat {
			f := v[i].F()
			q.flagZ[i] = f == 0
			q.flagN[i] = f < 0
		} else {
			q.flagZ[i] = v[i] == 0
			q.flagN[i] = v[i].I() < 0
		}
	}
}
