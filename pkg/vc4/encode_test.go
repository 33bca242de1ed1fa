package vc4

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidcore/v3dlib/pkg/target"
)

func TestEncodeAddOpTable(t *testing.T) {
	tests := []struct {
		op   target.ALUOp
		want uint32
	}{
		{target.NOP, 0},
		{target.A_FAdd, 1},
		{target.A_FSub, 2},
		{target.A_FtoI, 7},
		{target.A_ItoF, 8},
		{target.A_Add, 12},
		{target.A_Sub, 13},
		{target.A_Shr, 14},
		{target.A_Asr, 15},
		{target.A_Ror, 16},
		{target.A_Shl, 17},
		{target.A_Min, 18},
		{target.A_Max, 19},
		{target.A_BAnd, 20},
		{target.A_BOr, 21},
		{target.A_BXor, 22},
		{target.A_BNot, 23},
		{target.A_Clz, 24},
	}
	for _, tt := range tests {
		got, err := EncodeAddOp(tt.op)
		require.NoError(t, err)
		require.Equal(t, tt.want, got, "op %s", tt.op)
	}
	_, err := EncodeAddOp(target.M_FMul)
	require.Error(t, err, "mul op through the add encoder")
}

func TestEncodeMulOpTable(t *testing.T) {
	got, err := EncodeMulOp(target.M_FMul)
	require.NoError(t, err)
	require.Equal(t, uint32(1), got)
	got, err = EncodeMulOp(target.M_Mul24)
	require.NoError(t, err)
	require.Equal(t, uint32(2), got)
	_, err = EncodeMulOp(target.A_Add)
	require.Error(t, err)
}

func TestSpecialRegisterFileConstraints(t *testing.T) {
	// ELEM_NUM reads from file A only, QPU_NUM from file B only.
	_, mux, err := EncodeSrcReg(target.SpecialReg(target.SpecElemNum), target.RegA)
	require.NoError(t, err)
	require.Equal(t, uint32(6), mux)
	_, _, err = EncodeSrcReg(target.SpecialReg(target.SpecElemNum), target.RegB)
	require.Error(t, err)

	_, _, err = EncodeSrcReg(target.SpecialReg(target.SpecQPUNum), target.RegA)
	require.Error(t, err)
	_, mux, err = EncodeSrcReg(target.SpecialReg(target.SpecQPUNum), target.RegB)
	require.NoError(t, err)
	require.Equal(t, uint32(7), mux)
}

func TestDMAWaitRegistersShareAddressAcrossFiles(t *testing.T) {
	idxLd, _, err := EncodeSrcReg(target.SpecialReg(target.SpecDMALdWait), target.RegA)
	require.NoError(t, err)
	idxSt, _, err2 := EncodeSrcReg(target.SpecialReg(target.SpecDMAStWait), target.RegB)
	require.NoError(t, err2)
	require.Equal(t, uint32(50), idxLd)
	require.Equal(t, uint32(50), idxSt)

	// And the same for the DMA address writes.
	wLd, fLd, err := EncodeDestReg(target.SpecialReg(target.SpecDMALdAddr))
	require.NoError(t, err)
	wSt, fSt, err := EncodeDestReg(target.SpecialReg(target.SpecDMAStAddr))
	require.NoError(t, err)
	require.Equal(t, uint32(50), wLd)
	require.Equal(t, uint32(50), wSt)
	require.NotEqual(t, fLd, fSt)
}

func TestRotationImmediateRange(t *testing.T) {
	rot := func(n int32) *target.ALU {
		return &target.ALU{
			Cond: target.CondAlways(),
			Dest: target.VarReg(0),
			SrcA: target.RegOp{Reg: target.AccReg(0)},
			Op:   target.M_Rotate,
			SrcB: target.ImmOp{Imm: target.SmallImm{Val: n}},
		}
	}
	for n := int32(1); n <= 15; n++ {
		_, _, err := EncodeInstr(rot(n))
		require.NoError(t, err, "rotate by %d", n)
	}
	_, _, err := EncodeInstr(rot(0))
	require.Error(t, err, "rotate by 0")
	_, _, err = EncodeInstr(rot(16))
	require.Error(t, err, "rotate by 16")
}

func TestRotationSourceConstraint(t *testing.T) {
	_, _, err := EncodeInstr(&target.ALU{
		Cond: target.CondAlways(),
		Dest: target.VarReg(0),
		SrcA: target.RegOp{Reg: target.VarReg(1)},
		Op:   target.M_Rotate,
		SrcB: target.ImmOp{Imm: target.SmallImm{Val: 3}},
	})
	require.Error(t, err, "rotation source must be ACC0")
}

// roundTrip encodes an instruction and decodes it back.
func roundTrip(t *testing.T, instr target.Instr) target.Instr {
	t.Helper()
	high, low, err := EncodeInstr(instr)
	require.NoError(t, err)
	got, err := DecodeInstr(high, low)
	require.NoError(t, err)
	return got
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	regA3 := target.Reg{Tag: target.RegA, Id: 3}
	regB7 := target.Reg{Tag: target.RegB, Id: 7}

	instrs := []target.Instr{
		&target.LI{Cond: target.CondAlways(), Dest: regA3, Imm: target.IntImm(42)},
		&target.LI{Cond: target.CondFlag(target.NS), Dest: regB7, Imm: target.IntImm(-1), SetFlags: true},
		&target.BR{Cond: target.BranchAlways(), Target: target.BranchTarget{Relative: true, ImmOffset: -7}},
		&target.BR{Cond: target.BranchCond{Tag: target.BrAny, Flag: target.ZS}, Target: target.BranchTarget{Relative: true, ImmOffset: 12}},
		&target.End{},
		&target.TMU0ToAcc4{},
		&target.SInc{Id: 5},
		&target.SDec{Id: 11},
		&target.ALU{Cond: target.CondAlways(), Dest: regA3,
			SrcA: target.RegOp{Reg: regB7}, Op: target.A_Add, SrcB: target.RegOp{Reg: target.Reg{Tag: target.RegA, Id: 9}}},
		&target.ALU{Cond: target.CondFlag(target.ZC), Dest: regB7, SetFlags: true,
			SrcA: target.RegOp{Reg: regA3}, Op: target.A_Sub, SrcB: target.ImmOp{Imm: target.SmallImm{Val: -16}}},
		&target.ALU{Cond: target.CondAlways(), Dest: target.NoneReg(),
			SrcA: target.RegOp{Reg: regA3}, Op: target.A_BOr, SrcB: target.RegOp{Reg: regA3}, SetFlags: true},
		&target.ALU{Cond: target.CondAlways(), Dest: target.AccReg(2),
			SrcA: target.RegOp{Reg: target.AccReg(0)}, Op: target.M_FMul, SrcB: target.RegOp{Reg: target.AccReg(1)}},
		&target.ALU{Cond: target.CondAlways(), Dest: regA3,
			SrcA: target.RegOp{Reg: target.AccReg(0)}, Op: target.M_Rotate, SrcB: target.ImmOp{Imm: target.SmallImm{Val: 4}}},
		&target.ALU{Cond: target.CondAlways(), Dest: regA3,
			SrcA: target.RegOp{Reg: target.SpecialReg(target.SpecUniform)}, Op: target.A_BOr,
			SrcB: target.RegOp{Reg: target.SpecialReg(target.SpecUniform)}},
	}
	for _, instr := range instrs {
		got := roundTrip(t, instr)
		require.Equal(t, instr, got, "round trip of %s", target.Mnemonic(instr))
	}
}

func TestWordRoundTrip(t *testing.T) {
	// Decoding then re-encoding reproduces the exact machine word.
	instrs := []target.Instr{
		&target.NoOp{},
		&target.End{},
		&target.LI{Cond: target.CondAlways(), Dest: target.Reg{Tag: target.RegA, Id: 0}, Imm: target.IntImm(0x12345678)},
		&target.ALU{Cond: target.CondAlways(), Dest: target.Reg{Tag: target.RegB, Id: 1},
			SrcA: target.RegOp{Reg: target.Reg{Tag: target.RegA, Id: 2}}, Op: target.A_Shl,
			SrcB: target.ImmOp{Imm: target.SmallImm{Val: 2}}},
	}
	for _, instr := range instrs {
		high, low, err := EncodeInstr(instr)
		require.NoError(t, err)
		dec, err := DecodeInstr(high, low)
		require.NoError(t, err)
		high2, low2, err := EncodeInstr(dec)
		require.NoError(t, err)
		require.Equal(t, high, high2, "high word of %s", target.Mnemonic(instr))
		require.Equal(t, low, low2, "low word of %s", target.Mnemonic(instr))
	}
}

func TestEncodeRejectsUnresolvedLabels(t *testing.T) {
	_, _, err := EncodeInstr(&target.BRL{Cond: target.BranchAlways(), Label: 0})
	require.Error(t, err)
	_, _, err = EncodeInstr(&target.Lab{Label: 0})
	require.Error(t, err)
}
