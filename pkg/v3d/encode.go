// Package v3d encodes target instructions into VideoCore VI machine
// words. v3d has a single 64-entry regfile; the allocator's REG_B ids
// are simulated by offsetting into its upper half. Uniform loads
// become ldunifrf, small immediates ride the raddr_b port under the
// small_imm signal, and the stream is terminated by thrsw; nop; nop.
package v3d

import (
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
)

const (
	regBOffset = 32
	nopAddr    = 39
)

// Add-pipeline opcodes (abridged to the subset the lowerer emits).
const (
	opAdd    = 56
	opSub    = 60
	opMin    = 120
	opMax    = 121
	opBAnd   = 181
	opBOr    = 182
	opBXor   = 183
	opBNot   = 186
	opANop   = 187
	opShl    = 192
	opShr    = 193
	opAsr    = 194
	opRor    = 195
	opFAdd   = 0
	opFSub   = 4
	opFMin   = 128
	opFMax   = 129
	opFtoI   = 122
	opItoF   = 124
	opClz    = 125
)

// Mul-pipeline opcodes.
const (
	opMNop   = 15
	opFMul   = 14
	opUMul24 = 3
)

var addOps = map[target.ALUOp]uint8{
	target.A_Add: opAdd, target.A_Sub: opSub,
	target.A_Min: opMin, target.A_Max: opMax,
	target.A_BAnd: opBAnd, target.A_BOr: opBOr,
	target.A_BXor: opBXor, target.A_BNot: opBNot,
	target.A_Shl: opShl, target.A_Shr: opShr,
	target.A_Asr: opAsr, target.A_Ror: opRor,
	target.A_FAdd: opFAdd, target.A_FSub: opFSub,
	target.A_FMin: opFMin, target.A_FMax: opFMax,
	target.A_FtoI: opFtoI, target.A_ItoF: opItoF,
	target.A_Clz: opClz,
}

var mulOps = map[target.ALUOp]uint8{
	target.M_FMul:  opFMul,
	target.M_Mul24: opUMul24,
}

// Instr is the unpacked v3d instruction word. Pack and Unpack are
// exact inverses over the encoder's output.
//
// Word layout:
//
//	[63:58] sig        signal bits (see sig* constants)
//	[57:52] cond       assignment condition
//	[51]    sf         set-flags
//	[50:45] waddr      write address (regfile index or magic)
//	[44:37] add_op
//	[36:33] mul_op
//	[32:27] raddr_a
//	[26:21] raddr_b    (small immediate under sigSmallImm)
//	[20:18] add_a mux
//	[17:15] add_b mux
//	[14:0]  zero, or the branch displacement under sigBranch
type Instr struct {
	Sig    uint8
	Cond   uint8
	SF     bool
	WAddr  uint8
	AddOp  uint8
	MulOp  uint8
	RAddrA uint8
	RAddrB uint8
	MuxA   uint8
	MuxB   uint8
	Disp   int16 // branch displacement, instructions
}

// Signal values.
const (
	sigNone     = 0
	sigSmallImm = 1
	sigLdUnifRF = 2
	sigLdTMU    = 4
	sigThrsw    = 8
	sigBranch   = 63
)

// Assignment condition codes.
const (
	condNever  = 0
	condAlways = 1
	condZS     = 2
	condZC     = 3
	condNS     = 4
	condNC     = 5
)

// Branch condition codes, stored in Cond under sigBranch.
const (
	bcondAlways = 15
	bcondAllZS  = 0
	bcondAllZC  = 1
	bcondAllNS  = 4
	bcondAllNC  = 5
	bcondAnyZS  = 2
	bcondAnyZC  = 3
	bcondAnyNS  = 6
	bcondAnyNC  = 7
)

// Pack serialises the instruction to its 64-bit word.
func (i Instr) Pack() uint64 {
	w := uint64(i.Sig&0x3f) << 58
	w |= uint64(i.Cond&0x3f) << 52
	if i.SF {
		w |= 1 << 51
	}
	w |= uint64(i.WAddr&0x3f) << 45
	w |= uint64(i.AddOp) << 37
	w |= uint64(i.MulOp&0xf) << 33
	w |= uint64(i.RAddrA&0x3f) << 27
	w |= uint64(i.RAddrB&0x3f) << 21
	w |= uint64(i.MuxA&0x7) << 18
	w |= uint64(i.MuxB&0x7) << 15
	w |= uint64(uint16(i.Disp)) & 0x7fff
	return w
}

// Unpack deserialises a 64-bit word. It is the inverse of Pack.
func Unpack(w uint64) Instr {
	disp := int16(w & 0x7fff)
	if disp&0x4000 != 0 { // sign-extend 15 bits
		disp |= -0x8000
	}
	return Instr{
		Sig:    uint8(w >> 58 & 0x3f),
		Cond:   uint8(w >> 52 & 0x3f),
		SF:     w>>51&1 == 1,
		WAddr:  uint8(w >> 45 & 0x3f),
		AddOp:  uint8(w >> 37 & 0xff),
		MulOp:  uint8(w >> 33 & 0xf),
		RAddrA: uint8(w >> 27 & 0x3f),
		RAddrB: uint8(w >> 21 & 0x3f),
		MuxA:   uint8(w >> 18 & 0x7),
		MuxB:   uint8(w >> 15 & 0x7),
		Disp:   disp,
	}
}

func nop() Instr {
	return Instr{Cond: condAlways, WAddr: nopAddr, AddOp: opANop, MulOp: opMNop, RAddrA: nopAddr, RAddrB: nopAddr}
}

func encodeCond(c target.AssignCond) (uint8, error) {
	switch c.Tag {
	case target.Never:
		return condNever, nil
	case target.Always:
		return condAlways, nil
	case target.Flagged:
		switch c.Flag {
		case target.ZS:
			return condZS, nil
		case target.ZC:
			return condZC, nil
		case target.NS:
			return condNS, nil
		case target.NC:
			return condNC, nil
		}
	}
	return 0, diag.New(diag.EncodeError, "bad assign cond")
}

// toWAddr maps an allocated register onto the single regfile.
func toWAddr(reg target.Reg) (uint8, error) {
	switch reg.Tag {
	case target.RegA:
		if reg.Id < 0 || reg.Id >= 64 {
			return 0, diag.New(diag.EncodeError, "regfile index %d out of range", reg.Id)
		}
		return uint8(reg.Id), nil
	case target.RegB:
		if reg.Id < 0 || reg.Id >= 32 {
			return 0, diag.New(diag.EncodeError, "regfile index %d out of range", reg.Id)
		}
		return uint8(regBOffset + reg.Id), nil
	}
	return 0, diag.New(diag.EncodeError, "register %s has no regfile address", reg)
}

func isUniformLoad(i *target.ALU) bool {
	ra, okA := i.SrcA.(target.RegOp)
	rb, okB := i.SrcB.(target.RegOp)
	return okA && okB &&
		ra.Reg.Tag == target.Special && target.SpecialId(ra.Reg.Id) == target.SpecUniform &&
		rb.Reg.Tag == target.Special && target.SpecialId(rb.Reg.Id) == target.SpecUniform
}

// encodeSrc fills one read port. Registers go through raddr_a (mux 6)
// or raddr_b (mux 7); accumulators are selected directly by the mux.
func (v *Instr) encodeSrc(reg target.Reg, portB bool) (uint8, error) {
	switch reg.Tag {
	case target.RegA, target.RegB:
		addr, err := toWAddr(reg)
		if err != nil {
			return 0, err
		}
		if portB {
			v.RAddrB = addr
			return 7, nil
		}
		v.RAddrA = addr
		return 6, nil
	case target.Acc:
		if reg.Id < 0 || reg.Id > 5 {
			return 0, diag.New(diag.EncodeError, "accumulator %d out of range", reg.Id)
		}
		return uint8(reg.Id), nil
	case target.Special:
		switch target.SpecialId(reg.Id) {
		case target.SpecElemNum:
			// eidx arrives through raddr_a's magic range.
			v.RAddrA = 38
			return 6, nil
		case target.SpecQPUNum:
			v.RAddrA = 37
			return 6, nil
		}
	case target.None:
		if portB {
			v.RAddrB = nopAddr
			return 7, nil
		}
		v.RAddrA = nopAddr
		return 6, nil
	}
	return 0, diag.New(diag.EncodeError, "register %s not readable on v3d", reg)
}

// magic write addresses for the special destinations v3d keeps.
func magicWAddr(s target.SpecialId) (uint8, bool) {
	switch s {
	case target.SpecTMUD:
		return 59, true
	case target.SpecTMUA:
		return 60, true
	case target.SpecTMU0S:
		return 61, true
	case target.SpecSFURecip:
		return 52, true
	case target.SpecSFURecipSqrt:
		return 53, true
	case target.SpecSFUExp:
		return 54, true
	case target.SpecSFULog:
		return 55, true
	case target.SpecHostInt:
		return 58, true
	}
	return 0, false
}

// EncodeInstr translates one target instruction to a v3d word.
func EncodeInstr(instr target.Instr) (Instr, error) {
	switch i := instr.(type) {
	case *target.ALU:
		return encodeALU(i)
	case *target.LI:
		return encodeLI(i)
	case *target.BR:
		return encodeBR(i)
	case *target.End:
		v := nop()
		v.Sig = sigThrsw
		return v, nil
	case *target.TMU0ToAcc4:
		v := nop()
		v.Sig = sigLdTMU
		return v, nil
	case *target.NoOp, *target.InitBegin, *target.InitEnd,
		*target.PRS, *target.PRI, *target.PRF:
		return nop(), nil
	}
	return Instr{}, diag.New(diag.EncodeError, "cannot encode %s on v3d", target.Mnemonic(instr))
}

func encodeALU(i *target.ALU) (Instr, error) {
	v := nop()
	var err error
	v.Cond, err = encodeCond(i.Cond)
	if err != nil {
		return Instr{}, err
	}
	v.SF = i.SetFlags

	if isUniformLoad(i) {
		rf, err := toWAddr(i.Dest)
		if err != nil {
			return Instr{}, err
		}
		return ldunifrf(rf), nil
	}

	dest := i.Dest
	switch dest.Tag {
	case target.RegA, target.RegB:
		v.WAddr, err = toWAddr(dest)
	case target.Special:
		var ok bool
		v.WAddr, ok = magicWAddr(target.SpecialId(dest.Id))
		if !ok {
			return Instr{}, diag.New(diag.EncodeError, "destination %s not writable on v3d", dest)
		}
	case target.Acc:
		v.WAddr = uint8(48 + dest.Id) // accumulator write range
	case target.None:
		v.WAddr = nopAddr
	default:
		return Instr{}, diag.New(diag.EncodeError, "bad destination %s", dest)
	}
	if err != nil {
		return Instr{}, err
	}

	isMul := i.Op.IsMul()
	if isMul {
		op, ok := mulOps[i.Op]
		if !ok {
			return Instr{}, diag.New(diag.EncodeError, "mul op %s not supported on v3d", i.Op)
		}
		v.MulOp = op
		v.AddOp = opANop
	} else {
		op, ok := addOps[i.Op]
		if !ok {
			return Instr{}, diag.New(diag.EncodeError, "add op %s not supported on v3d", i.Op)
		}
		v.AddOp = op
		v.MulOp = opMNop
	}

	switch a := i.SrcA.(type) {
	case target.RegOp:
		v.MuxA, err = v.encodeSrc(a.Reg, false)
		if err != nil {
			return Instr{}, err
		}
	case target.ImmOp:
		enc, ok := a.Imm.Encode()
		if !ok {
			return Instr{}, diag.New(diag.EncodeError, "immediate %d not encodable", a.Imm.Val)
		}
		v.Sig |= sigSmallImm
		v.RAddrB = uint8(enc)
		v.MuxA = 7
	}
	switch b := i.SrcB.(type) {
	case target.RegOp:
		portB := v.Sig&sigSmallImm == 0
		v.MuxB, err = v.encodeSrc(b.Reg, portB)
		if err != nil {
			return Instr{}, err
		}
	case target.ImmOp:
		enc, ok := b.Imm.Encode()
		if !ok {
			return Instr{}, diag.New(diag.EncodeError, "immediate %d not encodable", b.Imm.Val)
		}
		if v.Sig&sigSmallImm != 0 && v.RAddrB != uint8(enc) {
			return Instr{}, diag.New(diag.EncodeError, "two distinct immediates in one instruction")
		}
		v.Sig |= sigSmallImm
		v.RAddrB = uint8(enc)
		v.MuxB = 7
	}
	return v, nil
}

// encodeLI encodes a full-immediate load. v3d has no LI instruction;
// values in small-immediate range become a mov, anything else is
// outside the encoder's subset.
func encodeLI(i *target.LI) (Instr, error) {
	if i.Imm.Tag != target.ImmInt32 {
		return Instr{}, diag.New(diag.EncodeError, "float immediates not supported on v3d")
	}
	imm := target.SmallImm{Val: i.Imm.IntVal}
	if _, ok := imm.Encode(); !ok {
		return Instr{}, diag.New(diag.EncodeError, "immediate %d not encodable on v3d", i.Imm.IntVal)
	}
	return encodeALU(&target.ALU{
		SetFlags: i.SetFlags,
		Cond:     i.Cond,
		Dest:     i.Dest,
		SrcA:     target.ImmOp{Imm: imm},
		Op:       target.A_BOr,
		SrcB:     target.ImmOp{Imm: imm},
	})
}

func encodeBR(i *target.BR) (Instr, error) {
	v := Instr{Sig: sigBranch}
	switch i.Cond.Tag {
	case target.BrAlways:
		v.Cond = bcondAlways
	case target.BrAll:
		switch i.Cond.Flag {
		case target.ZS:
			v.Cond = bcondAllZS
		case target.ZC:
			v.Cond = bcondAllZC
		case target.NS:
			v.Cond = bcondAllNS
		case target.NC:
			v.Cond = bcondAllNC
		}
	case target.BrAny:
		switch i.Cond.Flag {
		case target.ZS:
			v.Cond = bcondAnyZS
		case target.ZC:
			v.Cond = bcondAnyZC
		case target.NS:
			v.Cond = bcondAnyNS
		case target.NC:
			v.Cond = bcondAnyNC
		}
	default:
		return Instr{}, diag.New(diag.EncodeError, "'never' branch condition not supported")
	}
	if i.Target.ImmOffset < -0x4000 || i.Target.ImmOffset > 0x3fff {
		return Instr{}, diag.New(diag.EncodeError, "branch displacement %d out of range", i.Target.ImmOffset)
	}
	v.Disp = int16(i.Target.ImmOffset)
	return v, nil
}

// ldunifrf loads the next uniform into a regfile slot.
func ldunifrf(rf uint8) Instr {
	v := nop()
	v.Sig = sigLdUnifRF
	v.WAddr = rf
	v.Cond = condAlways
	return v
}

// Encode encodes a sequence. The stream terminator after END is
// thrsw; nop; nop.
func Encode(instrs []target.Instr) ([]uint64, error) {
	code := make([]uint64, 0, len(instrs)+2)
	for idx, instr := range instrs {
		v, err := EncodeInstr(instr)
		if err != nil {
			if de, ok := err.(*diag.Error); ok && de.Index < 0 {
				de.Index = idx
				de.Mnemonic = target.Mnemonic(instr)
			}
			return nil, err
		}
		code = append(code, v.Pack())
		if _, isEnd := instr.(*target.End); isEnd {
			code = append(code, nop().Pack(), nop().Pack())
		}
	}
	return code, nil
}
