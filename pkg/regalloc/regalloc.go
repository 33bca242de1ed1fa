// Package regalloc assigns physical registers to source variables by
// graph colouring over the concurrent-liveness sets, then rewrites the
// instruction sequence in place. vc4 colours across two 32-entry
// regfiles with a file-preference pre-pass; v3d colours a single
// 64-entry file. Register pressure beyond capacity is a fatal
// AllocError; there is no spilling.
package regalloc

import (
	"github.com/vidcore/v3dlib/pkg/cfg"
	"github.com/vidcore/v3dlib/pkg/diag"
	"github.com/vidcore/v3dlib/pkg/liveness"
	"github.com/vidcore/v3dlib/pkg/target"
)

const (
	vc4FileSize = 32
	v3dFileSize = 64
)

// Alloc allocates registers for the given platform and rewrites
// instrs so that every former variable slot names a physical register.
func Alloc(instrs []target.Instr, g cfg.CFG, numVars int, tgt target.Platform) error {
	info := liveness.Analyze(instrs, g)
	liveWith := liveness.NewLiveSets(numVars, instrs, info)

	var alloc []target.Reg
	var err error
	if tgt == target.VC4 {
		alloc, err = allocVC4(instrs, liveWith, numVars)
	} else {
		alloc, err = allocV3D(instrs, liveWith, numVars)
	}
	if err != nil {
		return err
	}
	rewrite(instrs, alloc)
	return nil
}

// determinePreferences scores each variable's affinity for regfile A
// or B: co-used pairs are pushed toward opposite files, and a variable
// used beside a small immediate leans toward A since the immediate
// occupies the B read slot.
func determinePreferences(instrs []target.Instr, numVars int) (prefA, prefB []int) {
	prefA = make([]int, numVars)
	prefB = make([]int, numVars)
	for _, instr := range instrs {
		if x, y, ok := target.TwoVarUses(instr); ok {
			if prefA[x] > prefA[y] || prefB[y] > prefB[x] {
				prefA[x]++
				prefB[y]++
			} else {
				prefA[y]++
				prefB[x]++
			}
			continue
		}
		alu, ok := instr.(*target.ALU)
		if !ok {
			continue
		}
		ra, okA := alu.SrcA.(target.RegOp)
		rb, okB := alu.SrcB.(target.RegOp)
		_, immA := alu.SrcA.(target.ImmOp)
		_, immB := alu.SrcB.(target.ImmOp)
		if okA && ra.Reg.Tag == target.RegA && immB && ra.Reg.Id < numVars {
			prefA[ra.Reg.Id]++
		} else if okB && rb.Reg.Tag == target.RegA && immA && rb.Reg.Id < numVars {
			prefA[rb.Reg.Id]++
		}
	}
	return prefA, prefB
}

// freeIn computes which register ids of one file remain usable for
// variable v, excluding ids held by concurrently-live variables.
func freeIn(v int, file target.RegTag, size int, liveWith *liveness.LiveSets, alloc []target.Reg) []bool {
	free := make([]bool, size)
	for i := range free {
		free[i] = true
	}
	for w := range liveWith.With(v) {
		if w >= len(alloc) {
			continue
		}
		if alloc[w].Tag == file {
			free[alloc[w].Id] = false
		}
	}
	return free
}

// chooseLowest returns the lowest free id, or -1.
func chooseLowest(free []bool) int {
	for i, ok := range free {
		if ok {
			return i
		}
	}
	return -1
}

func allocVC4(instrs []target.Instr, liveWith *liveness.LiveSets, numVars int) ([]target.Reg, error) {
	prefA, prefB := determinePreferences(instrs, numVars)

	alloc := make([]target.Reg, numVars)
	for i := range alloc {
		alloc[i] = target.Reg{Tag: target.None}
	}

	prevChosen := target.RegB
	for v := 0; v < numVars; v++ {
		chosenA := chooseLowest(freeIn(v, target.RegA, vc4FileSize, liveWith, alloc))
		chosenB := chooseLowest(freeIn(v, target.RegB, vc4FileSize, liveWith, alloc))

		var file target.RegTag
		switch {
		case chosenA < 0 && chosenB < 0:
			return nil, allocFailure(instrs, v)
		case chosenA < 0:
			file = target.RegB
		case chosenB < 0:
			file = target.RegA
		default:
			switch {
			case prefA[v] > prefB[v]:
				file = target.RegA
			case prefA[v] < prefB[v]:
				file = target.RegB
			case prevChosen == target.RegA:
				file = target.RegB
			default:
				file = target.RegA
			}
		}
		prevChosen = file

		id := chosenA
		if file == target.RegB {
			id = chosenB
		}
		alloc[v] = target.Reg{Tag: file, Id: id}
	}
	return alloc, nil
}

func allocV3D(instrs []target.Instr, liveWith *liveness.LiveSets, numVars int) ([]target.Reg, error) {
	alloc := make([]target.Reg, numVars)
	for i := range alloc {
		alloc[i] = target.Reg{Tag: target.None}
	}
	for v := 0; v < numVars; v++ {
		id := chooseLowest(freeIn(v, target.RegA, v3dFileSize, liveWith, alloc))
		if id < 0 {
			return nil, allocFailure(instrs, v)
		}
		alloc[v] = target.Reg{Tag: target.RegA, Id: id}
	}
	return alloc, nil
}

// allocFailure reports register exhaustion, naming the instruction
// that defines the failing variable.
func allocFailure(instrs []target.Instr, v int) error {
	for i, instr := range instrs {
		for _, d := range target.Defs(instr) {
			if d == v {
				return diag.At(diag.AllocError, i, target.Mnemonic(instr),
					"register allocation failed for variable %d, insufficient capacity", v)
			}
		}
	}
	return diag.New(diag.AllocError,
		"register allocation failed for variable %d, insufficient capacity", v)
}

// rewrite renames every variable occurrence to its allocated register.
// The rename goes through the Tmp tags so that a use and a def inside
// one instruction cannot collide when their allocated ids coincide.
func rewrite(instrs []target.Instr, alloc []target.Reg) {
	for _, instr := range instrs {
		for _, d := range target.Defs(instr) {
			tmp := target.TmpA
			if alloc[d].Tag == target.RegB {
				tmp = target.TmpB
			}
			target.RenameDest(instr, target.RegA, d, tmp, alloc[d].Id)
		}
		for _, u := range target.Uses(instr) {
			tmp := target.TmpA
			if alloc[u].Tag == target.RegB {
				tmp = target.TmpB
			}
			target.RenameUses(instr, target.RegA, u, tmp, alloc[u].Id)
		}
		target.SubstRegTag(instr, target.TmpA, target.RegA)
		target.SubstRegTag(instr, target.TmpB, target.RegB)
	}
}
