// Package cfg builds the per-instruction successor sets over a lowered
// instruction sequence. Construction is two-pass: fall-through edges
// first, then one edge per branch via the label table.
package cfg

import (
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/target"
)

// Succs is the successor set of one instruction.
type Succs map[int]struct{}

// CFG maps each instruction index to its successors.
type CFG []Succs

// Build constructs the control-flow graph for instrs.
func Build(instrs []target.Instr) (CFG, error) {
	g := make(CFG, len(instrs))
	for i := range g {
		g[i] = make(Succs)
	}

	labels := make(map[target.Label]int)
	for i, instr := range instrs {
		// Fall through unless the instruction ends the block
		// unconditionally.
		uncond := false
		if brl, ok := instr.(*target.BRL); ok {
			uncond = brl.Cond.Tag == target.BrAlways
		}
		_, end := instr.(*target.End)
		last := i+1 == len(instrs)
		if !uncond && !end && !last {
			g[i][i+1] = struct{}{}
		}
		if lab, ok := instr.(*target.Lab); ok {
			if _, dup := labels[lab.Label]; dup {
				return nil, diag.At(diag.CFGError, i, target.Mnemonic(instr),
					"label L%d defined twice", lab.Label)
			}
			labels[lab.Label] = i
		}
	}

	for i, instr := range instrs {
		if brl, ok := instr.(*target.BRL); ok {
			t, ok := labels[brl.Label]
			if !ok {
				return nil, diag.At(diag.CFGError, i, target.Mnemonic(instr),
					"branch to undefined label L%d", brl.Label)
			}
			g[i][t] = struct{}{}
		}
	}
	return g, nil
}
