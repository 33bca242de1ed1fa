package lower

import (
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
)

// branchDelay counts the branch itself plus its three delay slots:
// offsets are relative to the instruction after the slots.
const branchDelay = 4

// Fixup resolves every BRL to a BR with an instruction offset and
// replaces label sites with nops, keeping indexes stable. It is the
// last transformation before encoding or emulation.
func Fixup(instrs []target.Instr) error {
	labels := make(map[target.Label]int)
	for i, instr := range instrs {
		if lab, ok := instr.(*target.Lab); ok {
			if _, dup := labels[lab.Label]; dup {
				return diag.At(diag.CFGError, i, target.Mnemonic(instr),
					"label L%d defined twice", lab.Label)
			}
			labels[lab.Label] = i
		}
	}
	for i, instr := range instrs {
		switch instr := instr.(type) {
		case *target.BRL:
			tgt, ok := labels[instr.Label]
			if !ok {
				return diag.At(diag.CFGError, i, target.Mnemonic(instr),
					"branch to undefined label L%d", instr.Label)
			}
			instrs[i] = &target.BR{
				Cond: instr.Cond,
				Target: target.BranchTarget{
					Relative:  true,
					ImmOffset: tgt - i - branchDelay,
				},
			}
		case *target.Lab:
			instrs[i] = &target.NoOp{}
		}
	}
	return nil
}
