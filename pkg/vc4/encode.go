// Package vc4 encodes target instructions into VideoCore IV machine
// words and decodes them back. Every instruction is one 64-bit word,
// stored low half first in the output stream.
package vc4

import (
	"math"

	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
)

const nopAddr = 39

// EncodeAddOp returns the 5-bit add-pipeline opcode field.
func EncodeAddOp(op target.ALUOp) (uint32, error) {
	switch op {
	case target.NOP:
		return 0, nil
	case target.A_FAdd:
		return 1, nil
	case target.A_FSub:
		return 2, nil
	case target.A_FMin:
		return 3, nil
	case target.A_FMax:
		return 4, nil
	case target.A_FMinAbs:
		return 5, nil
	case target.A_FMaxAbs:
		return 6, nil
	case target.A_FtoI:
		return 7, nil
	case target.A_ItoF:
		return 8, nil
	case target.A_Add:
		return 12, nil
	case target.A_Sub:
		return 13, nil
	case target.A_Shr:
		return 14, nil
	case target.A_Asr:
		return 15, nil
	case target.A_Ror:
		return 16, nil
	case target.A_Shl:
		return 17, nil
	case target.A_Min:
		return 18, nil
	case target.A_Max:
		return 19, nil
	case target.A_BAnd:
		return 20, nil
	case target.A_BOr:
		return 21, nil
	case target.A_BXor:
		return 22, nil
	case target.A_BNot:
		return 23, nil
	case target.A_Clz:
		return 24, nil
	case target.A_V8Adds:
		return 30, nil
	case target.A_V8Subs:
		return 31, nil
	}
	return 0, diag.New(diag.EncodeError, "unknown add op %s", op)
}

// EncodeMulOp returns the 3-bit mul-pipeline opcode field.
func EncodeMulOp(op target.ALUOp) (uint32, error) {
	switch op {
	case target.NOP:
		return 0, nil
	case target.M_FMul:
		return 1, nil
	case target.M_Mul24:
		return 2, nil
	case target.M_V8Mul:
		return 3, nil
	case target.M_V8Min:
		return 4, nil
	case target.M_V8Max:
		return 5, nil
	case target.M_V8Adds:
		return 6, nil
	case target.M_V8Subs:
		return 7, nil
	}
	return 0, diag.New(diag.EncodeError, "unknown mul op %s", op)
}

// EncodeAssignCond returns the 3-bit assignment condition field.
func EncodeAssignCond(cond target.AssignCond) (uint32, error) {
	switch cond.Tag {
	case target.Never:
		return 0, nil
	case target.Always:
		return 1, nil
	case target.Flagged:
		switch cond.Flag {
		case target.ZS:
			return 2, nil
		case target.ZC:
			return 3, nil
		case target.NS:
			return 4, nil
		case target.NC:
			return 5, nil
		}
	}
	return 0, diag.New(diag.EncodeError, "missing case in EncodeAssignCond")
}

// EncodeBranchCond returns the 4-bit branch condition field.
func EncodeBranchCond(cond target.BranchCond) (uint32, error) {
	switch cond.Tag {
	case target.BrAlways:
		return 15, nil
	case target.BrAll:
		switch cond.Flag {
		case target.ZS:
			return 0, nil
		case target.ZC:
			return 1, nil
		case target.NS:
			return 4, nil
		case target.NC:
			return 5, nil
		}
	case target.BrAny:
		switch cond.Flag {
		case target.ZS:
			return 2, nil
		case target.ZC:
			return 3, nil
		case target.NS:
			return 6, nil
		case target.NC:
			return 7, nil
		}
	case target.BrNever:
		return 0, diag.New(diag.EncodeError, "'never' branch condition not supported")
	}
	return 0, diag.New(diag.EncodeError, "missing case in EncodeBranchCond")
}

// EncodeDestReg returns the write address and the regfile it selects.
// Special registers pin the file where the hardware requires it; the
// DMA address registers share index 50 across the two files, as do the
// two setup registers at 49.
func EncodeDestReg(reg target.Reg) (index uint32, file target.RegTag, err error) {
	aOrB := target.RegA
	if reg.Tag == target.RegA || reg.Tag == target.RegB {
		aOrB = reg.Tag
	}
	switch reg.Tag {
	case target.RegA, target.RegB:
		if reg.Id < 0 || reg.Id >= 32 {
			return 0, 0, diag.New(diag.EncodeError, "regfile index %d out of range", reg.Id)
		}
		return uint32(reg.Id), reg.Tag, nil
	case target.Acc:
		if reg.Id < 0 || reg.Id > 5 {
			return 0, 0, diag.New(diag.EncodeError, "accumulator %d out of range", reg.Id)
		}
		if reg.Id == 5 {
			return 32 + uint32(reg.Id), target.RegB, nil
		}
		return 32 + uint32(reg.Id), aOrB, nil
	case target.Special:
		switch target.SpecialId(reg.Id) {
		case target.SpecRdSetup:
			return 49, target.RegA, nil
		case target.SpecWrSetup:
			return 49, target.RegB, nil
		case target.SpecDMALdAddr:
			return 50, target.RegA, nil
		case target.SpecDMAStAddr:
			return 50, target.RegB, nil
		case target.SpecVPMWrite:
			return 48, aOrB, nil
		case target.SpecHostInt:
			return 38, aOrB, nil
		case target.SpecTMU0S:
			return 56, aOrB, nil
		case target.SpecSFURecip:
			return 52, aOrB, nil
		case target.SpecSFURecipSqrt:
			return 53, aOrB, nil
		case target.SpecSFUExp:
			return 54, aOrB, nil
		case target.SpecSFULog:
			return 55, aOrB, nil
		}
	case target.None:
		return nopAddr, aOrB, nil
	}
	return 0, 0, diag.New(diag.EncodeError, "missing case in EncodeDestReg for %s", reg)
}

// EncodeSrcReg returns the read address and input mux for a source
// register read through the given file, validating the special
// registers that are locked to one file: ELEM_NUM and DMA_LD_WAIT read
// from A only, QPU_NUM and DMA_ST_WAIT from B only.
func EncodeSrcReg(reg target.Reg, file target.RegTag) (index, mux uint32, err error) {
	if file != target.RegA && file != target.RegB {
		return 0, 0, diag.New(diag.EncodeError, "invalid read file")
	}
	aOrB := uint32(6)
	if file == target.RegB {
		aOrB = 7
	}
	switch reg.Tag {
	case target.RegA:
		if reg.Id < 0 || reg.Id >= 32 || file != target.RegA {
			return 0, 0, diag.New(diag.EncodeError, "bad regfile A read %s", reg)
		}
		return uint32(reg.Id), 6, nil
	case target.RegB:
		if reg.Id < 0 || reg.Id >= 32 || file != target.RegB {
			return 0, 0, diag.New(diag.EncodeError, "bad regfile B read %s", reg)
		}
		return uint32(reg.Id), 7, nil
	case target.Acc:
		if reg.Id < 0 || reg.Id > 4 {
			return 0, 0, diag.New(diag.EncodeError, "accumulator %d not readable", reg.Id)
		}
		return 0, uint32(reg.Id), nil
	case target.None:
		return nopAddr, aOrB, nil
	case target.Special:
		switch target.SpecialId(reg.Id) {
		case target.SpecUniform:
			return 32, aOrB, nil
		case target.SpecElemNum:
			if file != target.RegA {
				return 0, 0, diag.New(diag.EncodeError, "ELEM_NUM reads from regfile A only")
			}
			return 38, 6, nil
		case target.SpecQPUNum:
			if file != target.RegB {
				return 0, 0, diag.New(diag.EncodeError, "QPU_NUM reads from regfile B only")
			}
			return 38, 7, nil
		case target.SpecVPMRead:
			return 48, aOrB, nil
		case target.SpecDMALdWait:
			if file != target.RegA {
				return 0, 0, diag.New(diag.EncodeError, "DMA_LD_WAIT reads from regfile A only")
			}
			return 50, 6, nil
		case target.SpecDMAStWait:
			if file != target.RegB {
				return 0, 0, diag.New(diag.EncodeError, "DMA_ST_WAIT reads from regfile B only")
			}
			return 50, 7, nil
		}
	}
	return 0, 0, diag.New(diag.EncodeError, "missing case in EncodeSrcReg for %s", reg)
}

func regFileOf(reg target.Reg) target.RegTag {
	switch reg.Tag {
	case target.RegA, target.RegB:
		return reg.Tag
	case target.Special:
		switch target.SpecialId(reg.Id) {
		case target.SpecElemNum, target.SpecDMALdWait:
			return target.RegA
		case target.SpecQPUNum, target.SpecDMAStWait:
			return target.RegB
		}
	}
	return target.None
}

// EncodeInstr encodes one instruction to its two 32-bit halves.
func EncodeInstr(instr target.Instr) (high, low uint32, err error) {
	// Expand the pseudo instructions into their ALU/LI equivalents.
	switch instr.(type) {
	case *target.IRQ:
		instr = &target.LI{
			Cond: target.CondAlways(),
			Dest: target.SpecialReg(target.SpecHostInt),
			Imm:  target.IntImm(1),
		}
	case *target.DMALoadWait:
		src := target.SpecialReg(target.SpecDMALdWait)
		instr = &target.ALU{
			Cond: target.CondNever(),
			Dest: target.NoneReg(),
			SrcA: target.RegOp{Reg: src},
			Op:   target.A_BOr,
			SrcB: target.RegOp{Reg: src},
		}
	case *target.DMAStoreWait:
		src := target.SpecialReg(target.SpecDMAStWait)
		instr = &target.ALU{
			Cond: target.CondNever(),
			Dest: target.NoneReg(),
			SrcA: target.RegOp{Reg: src},
			Op:   target.A_BOr,
			SrcB: target.RegOp{Reg: src},
		}
	}

	switch i := instr.(type) {
	case *target.LI:
		cond, err := EncodeAssignCond(i.Cond)
		if err != nil {
			return 0, 0, err
		}
		destIdx, file, err := EncodeDestReg(i.Dest)
		if err != nil {
			return 0, 0, err
		}
		ws := uint32(0)
		if file != target.RegA {
			ws = 1
		}
		sf := uint32(0)
		if i.SetFlags {
			sf = 1
		}
		high = 0xe0000000 | cond<<17 | ws<<12 | sf<<13 | destIdx<<6 | nopAddr
		low = immBits(i.Imm)
		return high, low, nil

	case *target.BR:
		if !i.Target.Relative {
			return 0, 0, diag.New(diag.EncodeError, "absolute branch targets not supported")
		}
		cond, err := EncodeBranchCond(i.Cond)
		if err != nil {
			return 0, 0, err
		}
		high = 0xf0000000 | cond<<20 | 1<<19 | nopAddr<<6 | nopAddr
		low = uint32(8 * int32(i.Target.ImmOffset))
		return high, low, nil

	case *target.ALU:
		return encodeALU(i)

	case *target.End:
		return 0x30000000 | nopAddr<<6 | nopAddr, nopAddr<<18 | nopAddr<<12, nil

	case *target.TMU0ToAcc4:
		return 0xa0000000 | nopAddr<<6 | nopAddr, nopAddr<<18 | nopAddr<<12, nil

	case *target.SInc:
		return 0xe8000000 | nopAddr<<6 | nopAddr, uint32(i.Id), nil

	case *target.SDec:
		return 0xe8000000 | nopAddr<<6 | nopAddr, 1<<4 | uint32(i.Id), nil

	case *target.NoOp, *target.InitBegin, *target.InitEnd, *target.PRS, *target.PRI, *target.PRF:
		return 0xe0000000 | nopAddr<<6 | nopAddr, 0, nil
	}
	return 0, 0, diag.New(diag.EncodeError, "cannot encode %s", target.Mnemonic(instr))
}

func immBits(imm target.Imm) uint32 {
	if imm.Tag == target.ImmFloat32 {
		return math.Float32bits(imm.FltVal)
	}
	return uint32(imm.IntVal)
}

func encodeALU(i *target.ALU) (high, low uint32, err error) {
	isMul := i.Op.IsMul()
	_, aImm := i.SrcA.(target.ImmOp)
	_, bImm := i.SrcB.(target.ImmOp)
	isRot := i.Op == target.M_Rotate

	sig := uint32(1)
	if aImm || bImm || isRot {
		sig = 13
	}
	cond, err := EncodeAssignCond(i.Cond)
	if err != nil {
		return 0, 0, err
	}
	condShift := uint32(17)
	if isMul {
		condShift = 14
	}
	destIdx, file, err := EncodeDestReg(i.Dest)
	if err != nil {
		return 0, 0, err
	}
	var waddrAdd, waddrMul, ws uint32
	if isMul {
		waddrAdd = nopAddr << 6
		waddrMul = destIdx
		if file == target.RegB {
			ws = 0
		} else {
			ws = 1
		}
	} else {
		waddrAdd = destIdx << 6
		waddrMul = nopAddr
		if file == target.RegA {
			ws = 0
		} else {
			ws = 1
		}
	}
	sf := uint32(0)
	if i.SetFlags {
		sf = 1
	}
	high = sig<<28 | cond<<condShift | ws<<12 | sf<<13 | waddrAdd | waddrMul

	if isRot {
		ra, okA := i.SrcA.(target.RegOp)
		if !okA || ra.Reg.Tag != target.Acc || ra.Reg.Id != 0 {
			return 0, 0, diag.New(diag.EncodeError, "rotation source must be ACC0")
		}
		mulOp, _ := EncodeMulOp(target.M_V8Min)
		var raddrb uint32
		switch b := i.SrcB.(type) {
		case target.RegOp:
			if b.Reg.Tag != target.Acc || b.Reg.Id != 5 {
				return 0, 0, diag.New(diag.EncodeError, "rotation amount must be ACC5 or an immediate")
			}
			raddrb = 48
		case target.ImmOp:
			n := b.Imm.Val
			if n < 1 || n > 15 {
				return 0, 0, diag.New(diag.EncodeError, "rotation immediate %d outside [1,15]", n)
			}
			raddrb = 48 + uint32(n)
		}
		low = mulOp<<29 | raddrb<<12 | nopAddr<<18
		return high, low, nil
	}

	var mulOp, addOp uint32
	if isMul {
		mulOp, err = EncodeMulOp(i.Op)
	} else {
		addOp, err = EncodeAddOp(i.Op)
	}
	if err != nil {
		return 0, 0, err
	}

	var muxa, muxb, raddra, raddrb uint32
	switch {
	case !aImm && !bImm:
		ra := i.SrcA.(target.RegOp).Reg
		rb := i.SrcB.(target.RegOp).Reg
		aFile := regFileOf(ra)
		bFile := regFileOf(rb)
		if ra.Tag != target.None && ra == rb {
			// Same register on both ports: read it once, nop the
			// other port.
			if aFile != target.RegB {
				raddra, muxa, err = encodeSrc2(ra, target.RegA)
				muxb, raddrb = muxa, nopAddr
			} else {
				raddrb, muxa, err = encodeSrc2(ra, target.RegB)
				muxb, raddra = muxa, nopAddr
			}
			if err != nil {
				return 0, 0, err
			}
		} else {
			if aFile != target.None && bFile != target.None && aFile == bFile {
				return 0, 0, diag.New(diag.EncodeError,
					"operands %s and %s read through the same regfile", ra, rb)
			}
			if aFile == target.RegA || bFile == target.RegB {
				raddra, muxa, err = encodeSrc2(ra, target.RegA)
				if err != nil {
					return 0, 0, err
				}
				raddrb, muxb, err = encodeSrc2(rb, target.RegB)
			} else {
				raddrb, muxa, err = encodeSrc2(ra, target.RegB)
				if err != nil {
					return 0, 0, err
				}
				raddra, muxb, err = encodeSrc2(rb, target.RegA)
			}
			if err != nil {
				return 0, 0, err
			}
		}
	case bImm && !aImm:
		ra := i.SrcA.(target.RegOp).Reg
		raddra, muxa, err = encodeSrc2(ra, target.RegA)
		if err != nil {
			return 0, 0, err
		}
		enc, ok := i.SrcB.(target.ImmOp).Imm.Encode()
		if !ok {
			return 0, 0, diag.New(diag.EncodeError, "immediate %d not encodable", i.SrcB.(target.ImmOp).Imm.Val)
		}
		raddrb = enc
		muxb = 7
	case aImm && !bImm:
		rb := i.SrcB.(target.RegOp).Reg
		raddra, muxb, err = encodeSrc2(rb, target.RegA)
		if err != nil {
			return 0, 0, err
		}
		enc, ok := i.SrcA.(target.ImmOp).Imm.Encode()
		if !ok {
			return 0, 0, diag.New(diag.EncodeError, "immediate %d not encodable", i.SrcA.(target.ImmOp).Imm.Val)
		}
		raddrb = enc
		muxa = 7
	default:
		// Both operands immediate: only the same value can share the
		// regfile-B slot.
		ia := i.SrcA.(target.ImmOp).Imm
		ib := i.SrcB.(target.ImmOp).Imm
		if ia.Val != ib.Val {
			return 0, 0, diag.New(diag.EncodeError, "two distinct immediates in one instruction")
		}
		enc, ok := ia.Encode()
		if !ok {
			return 0, 0, diag.New(diag.EncodeError, "immediate %d not encodable", ia.Val)
		}
		raddra = nopAddr
		raddrb = enc
		muxa, muxb = 7, 7
	}

	low = mulOp<<29 | addOp<<24 | raddra<<18 | raddrb<<12 |
		muxa<<9 | muxb<<6 | muxa<<3 | muxb
	return high, low, nil
}

func encodeSrc2(reg target.Reg, file target.RegTag) (index, mux uint32, err error) {
	return EncodeSrcReg(reg, file)
}

// Encode encodes a whole sequence, low half first.
func Encode(instrs []target.Instr) ([]uint32, error) {
	code := make([]uint32, 0, 2*len(instrs))
	for idx, instr := range instrs {
		high, low, err := EncodeInstr(instr)
		if err != nil {
			if de, ok := err.(*diag.Error); ok && de.Index < 0 {
				de.Index = idx
				de.Mnemonic = target.Mnemonic(instr)
			}
			return nil, err
		}
		code = append(code, low, high)
	}
	return code, nil
}
