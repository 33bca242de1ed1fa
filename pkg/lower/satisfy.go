package lower

import (
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
)

// regFile classifies which vc4 regfile a register is read through.
type regFile int

const (
	fileNone   regFile = iota // accumulators: read through the mux
	fileA                     // regfile A only
	fileB                     // regfile B only
	fileEither                // readable through either file
)

func readFileOf(r target.Reg) regFile {
	switch r.Tag {
	case target.RegA:
		return fileA
	case target.RegB:
		return fileB
	case target.Acc, target.None:
		return fileNone
	case target.Special:
		switch target.SpecialId(r.Id) {
		case target.SpecElemNum, target.SpecDMALdWait:
			return fileA
		case target.SpecQPUNum, target.SpecDMAStWait:
			return fileB
		default:
			return fileEither
		}
	}
	return fileNone
}

// Satisfy rewrites the allocated vc4 sequence so that no instruction
// reads two different registers through the same regfile: the second
// read is routed through ACC1 by an inserted move. Runs after register
// allocation and before branch fixup, since it changes instruction
// indexes. On v3d the two read ports index one shared regfile, so
// there is nothing to do.
func Satisfy(instrs []target.Instr, tgt target.Platform) ([]target.Instr, error) {
	if tgt != target.VC4 {
		return instrs, nil
	}
	out := make([]target.Instr, 0, len(instrs))
	for idx, instr := range instrs {
		alu, ok := instr.(*target.ALU)
		if !ok {
			out = append(out, instr)
			continue
		}
		ra, okA := alu.SrcA.(target.RegOp)
		rb, okB := alu.SrcB.(target.RegOp)

		// A small immediate occupies the regfile-B read slot, so the
		// other operand must not need the B port.
		if okA != okB {
			reg := ra.Reg
			if okB {
				reg = rb.Reg
			}
			if readFileOf(reg) == fileB {
				acc1 := target.AccReg(1)
				if reg.Tag != target.RegB {
					return nil, diag.At(diag.EncodeError, idx, target.Mnemonic(instr),
						"operand %s conflicts with a small immediate", reg)
				}
				out = append(out, target.Mov(acc1, reg))
				if okA {
					alu.SrcA = target.RegOp{Reg: acc1}
				} else {
					alu.SrcB = target.RegOp{Reg: acc1}
				}
			}
			out = append(out, instr)
			continue
		}
		if !okA || !okB || ra.Reg == rb.Reg {
			out = append(out, instr)
			continue
		}
		fa := readFileOf(ra.Reg)
		fb := readFileOf(rb.Reg)
		conflict := (fa == fileA && fb == fileA) || (fa == fileB && fb == fileB)
		if !conflict {
			out = append(out, instr)
			continue
		}
		// Route one operand through an accumulator. Prefer moving a
		// plain regfile register; a file-locked special cannot move.
		acc1 := target.AccReg(1)
		switch {
		case ra.Reg.Tag == target.RegA || ra.Reg.Tag == target.RegB:
			out = append(out, target.Mov(acc1, ra.Reg))
			alu.SrcA = target.RegOp{Reg: acc1}
		case rb.Reg.Tag == target.RegA || rb.Reg.Tag == target.RegB:
			out = append(out, target.Mov(acc1, rb.Reg))
			alu.SrcB = target.RegOp{Reg: acc1}
		default:
			return nil, diag.At(diag.EncodeError, idx, target.Mnemonic(instr),
				"operands locked to the same regfile")
		}
		out = append(out, instr)
	}
	return out, nil
}
