package vc4

import (
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
)

// Independent decoder for the vc4 encoding, used by the round-trip
// law tests and the disassembly dump. It inverts exactly the subset
// the encoder emits.

var addOpDecode = map[uint32]target.ALUOp{
	1: target.A_FAdd, 2: target.A_FSub, 3: target.A_FMin, 4: target.A_FMax,
	5: target.A_FMinAbs, 6: target.A_FMaxAbs, 7: target.A_FtoI, 8: target.A_ItoF,
	12: target.A_Add, 13: target.A_Sub, 14: target.A_Shr, 15: target.A_Asr,
	16: target.A_Ror, 17: target.A_Shl, 18: target.A_Min, 19: target.A_Max,
	20: target.A_BAnd, 21: target.A_BOr, 22: target.A_BXor, 23: target.A_BNot,
	24: target.A_Clz, 30: target.A_V8Adds, 31: target.A_V8Subs,
}

var mulOpDecode = map[uint32]target.ALUOp{
	1: target.M_FMul, 2: target.M_Mul24, 3: target.M_V8Mul, 4: target.M_V8Min,
	5: target.M_V8Max, 6: target.M_V8Adds, 7: target.M_V8Subs,
}

func decodeAssignCond(bits uint32) (target.AssignCond, error) {
	switch bits {
	case 0:
		return target.CondNever(), nil
	case 1:
		return target.CondAlways(), nil
	case 2:
		return target.CondFlag(target.ZS), nil
	case 3:
		return target.CondFlag(target.ZC), nil
	case 4:
		return target.CondFlag(target.NS), nil
	case 5:
		return target.CondFlag(target.NC), nil
	}
	return target.AssignCond{}, diag.New(diag.EncodeError, "bad assign cond %d", bits)
}

func decodeBranchCond(bits uint32) (target.BranchCond, error) {
	switch bits {
	case 15:
		return target.BranchAlways(), nil
	case 0:
		return target.BranchCond{Tag: target.BrAll, Flag: target.ZS}, nil
	case 1:
		return target.BranchCond{Tag: target.BrAll, Flag: target.ZC}, nil
	case 4:
		return target.BranchCond{Tag: target.BrAll, Flag: target.NS}, nil
	case 5:
		return target.BranchCond{Tag: target.BrAll, Flag: target.NC}, nil
	case 2:
		return target.BranchCond{Tag: target.BrAny, Flag: target.ZS}, nil
	case 3:
		return target.BranchCond{Tag: target.BrAny, Flag: target.ZC}, nil
	case 6:
		return target.BranchCond{Tag: target.BrAny, Flag: target.NS}, nil
	case 7:
		return target.BranchCond{Tag: target.BrAny, Flag: target.NC}, nil
	}
	return target.BranchCond{}, diag.New(diag.EncodeError, "bad branch cond %d", bits)
}

func decodeDestEntity(file target.RegTag, waddr uint32) (target.Reg, error) {
	switch {
	case waddr < 32:
		return target.Reg{Tag: file, Id: int(waddr)}, nil
	case waddr >= 32 && waddr <= 37:
		return target.AccReg(int(waddr - 32)), nil
	case waddr == 38:
		return target.SpecialReg(target.SpecHostInt), nil
	case waddr == nopAddr:
		return target.NoneReg(), nil
	case waddr == 48:
		return target.SpecialReg(target.SpecVPMWrite), nil
	case waddr == 49:
		if file == target.RegA {
			return target.SpecialReg(target.SpecRdSetup), nil
		}
		return target.SpecialReg(target.SpecWrSetup), nil
	case waddr == 50:
		if file == target.RegA {
			return target.SpecialReg(target.SpecDMALdAddr), nil
		}
		return target.SpecialReg(target.SpecDMAStAddr), nil
	case waddr == 52:
		return target.SpecialReg(target.SpecSFURecip), nil
	case waddr == 53:
		return target.SpecialReg(target.SpecSFURecipSqrt), nil
	case waddr == 54:
		return target.SpecialReg(target.SpecSFUExp), nil
	case waddr == 56:
		return target.SpecialReg(target.SpecTMU0S), nil
	case waddr == 55:
		return target.SpecialReg(target.SpecSFULog), nil
	}
	return target.Reg{}, diag.New(diag.EncodeError, "bad write address %d", waddr)
}

func decodeSrcEntity(file target.RegTag, raddr uint32) (target.Reg, error) {
	switch {
	case raddr < 32:
		return target.Reg{Tag: file, Id: int(raddr)}, nil
	case raddr == 32:
		return target.SpecialReg(target.SpecUniform), nil
	case raddr == 38:
		if file == target.RegA {
			return target.SpecialReg(target.SpecElemNum), nil
		}
		return target.SpecialReg(target.SpecQPUNum), nil
	case raddr == nopAddr:
		return target.NoneReg(), nil
	case raddr == 48:
		return target.SpecialReg(target.SpecVPMRead), nil
	case raddr == 50:
		if file == target.RegA {
			return target.SpecialReg(target.SpecDMALdWait), nil
		}
		return target.SpecialReg(target.SpecDMAStWait), nil
	}
	return target.Reg{}, diag.New(diag.EncodeError, "bad read address %d", raddr)
}

// DecodeInstr decodes one 64-bit word.
func DecodeInstr(high, low uint32) (target.Instr, error) {
	switch high >> 28 {
	case 0xf:
		cond, err := decodeBranchCond((high >> 20) & 0xf)
		if err != nil {
			return nil, err
		}
		return &target.BR{
			Cond: cond,
			Target: target.BranchTarget{
				Relative:  (high>>19)&1 == 1,
				ImmOffset: int(int32(low) / 8),
			},
		}, nil
	case 0x3:
		return &target.End{}, nil
	case 0xa:
		return &target.TMU0ToAcc4{}, nil
	case 0xe:
		if (high>>24)&0xf == 8 {
			if (low>>4)&1 == 1 {
				return &target.SDec{Id: int(low & 0xf)}, nil
			}
			return &target.SInc{Id: int(low & 0xf)}, nil
		}
		cond, err := decodeAssignCond((high >> 17) & 0x7)
		if err != nil {
			return nil, err
		}
		waddr := (high >> 6) & 0x3f
		if cond.Tag == target.Never && waddr == nopAddr {
			return &target.NoOp{}, nil
		}
		file := target.RegA
		if (high>>12)&1 == 1 {
			file = target.RegB
		}
		dest, err := decodeDestEntity(file, waddr)
		if err != nil {
			return nil, err
		}
		return &target.LI{
			SetFlags: (high>>13)&1 == 1,
			Cond:     cond,
			Dest:     dest,
			Imm:      target.IntImm(int32(low)),
		}, nil
	case 0x1, 0xd:
		return decodeALU(high, low)
	}
	return nil, diag.New(diag.EncodeError, "unrecognised signal bits %#x", high>>28)
}

func decodeALU(high, low uint32) (target.Instr, error) {
	hasImm := high>>28 == 0xd
	addOp := (low >> 24) & 0x1f
	mulOp := low >> 29
	raddra := (low >> 18) & 0x3f
	raddrb := (low >> 12) & 0x3f
	muxa := (low >> 9) & 0x7
	muxb := (low >> 6) & 0x7
	sf := (high>>13)&1 == 1
	ws := (high >> 12) & 1

	// Rotation: mul pipeline carries v8min with raddr_b in the
	// rotate range.
	if hasImm && mulOp == 4 && raddrb >= 48 {
		cond, err := decodeAssignCond((high >> 14) & 0x7)
		if err != nil {
			return nil, err
		}
		file := target.RegB
		if ws == 1 {
			file = target.RegA
		}
		dest, err := decodeDestEntity(file, high&0x3f)
		if err != nil {
			return nil, err
		}
		var srcB target.Operand
		if raddrb == 48 {
			srcB = target.RegOp{Reg: target.AccReg(5)}
		} else {
			srcB = target.ImmOp{Imm: target.SmallImm{Val: int32(raddrb - 48)}}
		}
		return &target.ALU{
			SetFlags: sf,
			Cond:     cond,
			Dest:     dest,
			SrcA:     target.RegOp{Reg: target.AccReg(0)},
			Op:       target.M_Rotate,
			SrcB:     srcB,
		}, nil
	}

	isMul := addOp == 0 && mulOp != 0
	var op target.ALUOp
	var ok bool
	var cond target.AssignCond
	var dest target.Reg
	var err error
	if isMul {
		op, ok = mulOpDecode[mulOp]
		if !ok {
			return nil, diag.New(diag.EncodeError, "bad mul op %d", mulOp)
		}
		cond, err = decodeAssignCond((high >> 14) & 0x7)
		if err != nil {
			return nil, err
		}
		file := target.RegB
		if ws == 1 {
			file = target.RegA
		}
		dest, err = decodeDestEntity(file, high&0x3f)
	} else {
		op, ok = addOpDecode[addOp]
		if !ok {
			return nil, diag.New(diag.EncodeError, "bad add op %d", addOp)
		}
		cond, err = decodeAssignCond((high >> 17) & 0x7)
		if err != nil {
			return nil, err
		}
		file := target.RegA
		if ws == 1 {
			file = target.RegB
		}
		dest, err = decodeDestEntity(file, (high>>6)&0x3f)
	}
	if err != nil {
		return nil, err
	}

	decodeMux := func(mux uint32) (target.Operand, error) {
		switch {
		case mux <= 4:
			return target.RegOp{Reg: target.AccReg(int(mux))}, nil
		case mux == 6:
			r, err := decodeSrcEntity(target.RegA, raddra)
			if err != nil {
				return nil, err
			}
			return target.RegOp{Reg: r}, nil
		case mux == 7 && hasImm:
			imm, ok := target.DecodeSmallImm(raddrb)
			if !ok {
				return nil, diag.New(diag.EncodeError, "bad small immediate %d", raddrb)
			}
			return target.ImmOp{Imm: imm}, nil
		case mux == 7:
			r, err := decodeSrcEntity(target.RegB, raddrb)
			if err != nil {
				return nil, err
			}
			return target.RegOp{Reg: r}, nil
		}
		return nil, diag.New(diag.EncodeError, "bad input mux %d", mux)
	}
	srcA, err := decodeMux(muxa)
	if err != nil {
		return nil, err
	}
	srcB, err := decodeMux(muxb)
	if err != nil {
		return nil, err
	}
	return &target.ALU{
		SetFlags: sf,
		Cond:     cond,
		Dest:     dest,
		SrcA:     srcA,
		Op:       op,
		SrcB:     srcB,
	}, nil
}
