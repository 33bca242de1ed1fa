package emu

import (
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
	"github.com/vidcore/v3dlib/pkg/vec"
)

// alu executes one ALU instruction on a QPU.
func (s *State) alu(q *qpu, i *target.ALU) error {
	if i.Op == target.M_Rotate {
		return s.rotate(q, i)
	}

	a, b := s.readOperands(q, i.SrcA, i.SrcB)

	var r vec.Vec
	switch i.Op {
	case target.A_Add:
		r = vec.AddI(a, b)
	case target.A_Sub:
		r = vec.SubI(a, b)
	case target.M_Mul24:
		r = vec.Mul24(a, b)
	case target.A_Min:
		r = vec.MinI(a, b)
	case target.A_Max:
		r = vec.MaxI(a, b)
	case target.A_Shl:
		r = vec.Shl(a, b)
	case target.A_Shr:
		r = vec.Shr(a, b)
	case target.A_Asr:
		r = vec.Asr(a, b)
	case target.A_Ror:
		r = vec.Ror(a, b)
	case target.A_BAnd:
		r = vec.And(a, b)
	case target.A_BOr:
		r = vec.Or(a, b)
	case target.A_BXor:
		r = vec.Xor(a, b)
	case target.A_BNot:
		r = vec.NotI(a)
	case target.A_Clz:
		r = vec.Clz(a)
	case target.A_FAdd:
		r = vec.AddF(a, b)
	case target.A_FSub:
		r = vec.SubF(a, b)
	case target.M_FMul:
		r = vec.MulF(a, b)
	case target.A_FMin:
		r = vec.MinF(a, b)
	case target.A_FMax:
		r = vec.MaxF(a, b)
	case target.A_ItoF:
		r = vec.ItoF(a)
	case target.A_FtoI:
		r = vec.FtoI(a)
	default:
		return diag.At(diag.DispatchError, q.pc, target.Mnemonic(i), "cannot emulate op")
	}

	s.writeDest(q, i.Dest, r, i.Cond)
	if i.SetFlags {
		q.setFlags(r, floatResult(i.Op))
	}
	return nil
}

// rotate executes the full-vector lane rotation: srcA is ACC0, the
// amount is a small immediate or ACC5 lane 0.
func (s *State) rotate(q *qpu, i *target.ALU) error {
	a := q.acc[0]
	var n int32
	switch b := i.SrcB.(type) {
	case target.ImmOp:
		n = b.Imm.Val
	case target.RegOp:
		n = q.acc[5][0].I()
	}
	r := vec.Rotate(a, n&15)
	s.writeDest(q, i.Dest, r, i.Cond)
	if i.SetFlags {
		q.setFlags(r, false)
	}
	return nil
}

// readOperands evaluates both sources, reading a shared side-effecting
// register (the uniform FIFO, the VPM queue) only once when both
// operands name it.
func (s *State) readOperands(q *qpu, srcA, srcB target.Operand) (a, b vec.Vec) {
	ra, okA := srcA.(target.RegOp)
	rb, okB := srcB.(target.RegOp)
	if okA && okB && ra.Reg == rb.Reg {
		v := q.readReg(s, ra.Reg)
		return v, v
	}
	return s.readOperand(q, srcA), s.readOperand(q, srcB)
}

func (s *State) readOperand(q *qpu, o target.Operand) vec.Vec {
	switch o := o.(type) {
	case target.ImmOp:
		return vec.SplatInt(o.Imm.Val)
	case target.RegOp:
		return q.readReg(s, o.Reg)
	}
	return vec.Vec{}
}

func (q *qpu) readReg(s *State, r target.Reg) vec.Vec {
	switch r.Tag {
	case target.RegA:
		return q.regA[r.Id&63]
	case target.RegB:
		return q.regB[r.Id&63]
	case target.Acc:
		return q.acc[r.Id]
	case target.Special:
		switch target.SpecialId(r.Id) {
		case target.SpecUniform:
			v := int32(0)
			if q.unifNext < len(q.uniforms) {
				v = q.uniforms[q.unifNext]
				q.unifNext++
			}
			return vec.SplatInt(v)
		case target.SpecElemNum:
			return vec.ElemNum()
		case target.SpecQPUNum:
			return vec.SplatInt(int32(q.id))
		case target.SpecVPMRead:
			if len(q.vpmRead) == 0 {
				return vec.Vec{}
			}
			v := q.vpmRead[0]
			q.vpmRead = q.vpmRead[1:]
			return v
		}
	}
	return vec.Vec{}
}

// writeDest commits a result vector under the assignment condition.
// Special destinations drive the memory engines; their writes ignore
// lane conditions.
func (s *State) writeDest(q *qpu, dest target.Reg, v vec.Vec, cond target.AssignCond) {
	switch dest.Tag {
	case target.RegA:
		q.regA[dest.Id&63] = merge(q.regA[dest.Id&63], v, q.condMask(cond))
	case target.RegB:
		q.regB[dest.Id&63] = merge(q.regB[dest.Id&63], v, q.condMask(cond))
	case target.Acc:
		q.acc[dest.Id] = merge(q.acc[dest.Id], v, q.condMask(cond))
	case target.Special:
		s.writeSpecial(q, target.SpecialId(dest.Id), v)
	case target.None:
	}
}

func merge(old, new vec.Vec, mask [vec.NumLanes]bool) vec.Vec {
	var r vec.Vec
	for i := range r {
		if mask[i] {
			r[i] = new[i]
		} else {
			r[i] = old[i]
		}
	}
	return r
}

func (s *State) writeSpecial(q *qpu, id target.SpecialId, v vec.Vec) {
	switch id {
	case target.SpecVPMWrite:
		q.vpmWrite = append(q.vpmWrite, v)
	case target.SpecDMAStAddr:
		// One store request flushes one vector, written as 16
		// consecutive words from the lane-0 address.
		if len(q.vpmWrite) == 0 {
			return
		}
		data := q.vpmWrite[0]
		q.vpmWrite = q.vpmWrite[1:]
		base := uint32(v[0])
		for i := 0; i < vec.NumLanes; i++ {
			s.mem.Store(base+uint32(4*i), uint32(data[i]))
		}
	case target.SpecDMALdAddr:
		base := uint32(v[0])
		var data vec.Vec
		for i := 0; i < vec.NumLanes; i++ {
			data[i] = vec.Word(s.mem.Load(base + uint32(4*i)))
		}
		q.vpmRead = append(q.vpmRead, data)
	case target.SpecTMU0S:
		var data vec.Vec
		for i := 0; i < vec.NumLanes; i++ {
			data[i] = vec.Word(s.mem.Load(uint32(v[i])))
		}
		q.tmuQueue = append(q.tmuQueue, data)
	case target.SpecTMUD:
		q.tmudPending = v
		q.hasTMUD = true
	case target.SpecTMUA:
		if !q.hasTMUD {
			return
		}
		for i := 0; i < vec.NumLanes; i++ {
			s.mem.Store(uint32(v[i]), uint32(q.tmudPending[i]))
		}
		q.hasTMUD = false
	case target.SpecSFURecip:
		q.acc[4] = vec.Recip(v)
	case target.SpecSFURecipSqrt:
		q.acc[4] = vec.RecipSqrt(v)
	case target.SpecSFUExp:
		q.acc[4] = vec.Exp2(v)
	case target.SpecSFULog:
		q.acc[4] = vec.Log2(v)
	case target.SpecRdSetup:
		q.readStride = v[0].I()
	case target.SpecWrSetup:
		q.writeStride = v[0].I()
	case target.SpecHostInt:
		// Host interrupt; observable only through dispatch.
	}
}
