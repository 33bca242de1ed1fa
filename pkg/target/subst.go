package target

// Register renaming helpers used by the allocator's rewrite phase.
// Renaming goes through the Tmp tags in two steps so that a use and a
// def of different variables inside one instruction cannot collide
// when their allocated ids coincide.

// RenameDest renames the destination register (fromTag, fromId) to
// (toTag, toId).
func RenameDest(instr Instr, fromTag RegTag, fromId int, toTag RegTag, toId int) {
	rename := func(r *Reg) {
		if r.Tag == fromTag && r.Id == fromId {
			r.Tag, r.Id = toTag, toId
		}
	}
	switch i := instr.(type) {
	case *ALU:
		rename(&i.Dest)
	case *LI:
		rename(&i.Dest)
	case *Recv:
		rename(&i.Dest)
	}
}

// RenameUses renames every source occurrence of (fromTag, fromId) to
// (toTag, toId).
func RenameUses(instr Instr, fromTag RegTag, fromId int, toTag RegTag, toId int) {
	rename := func(o Operand) Operand {
		if ro, ok := o.(RegOp); ok && ro.Reg.Tag == fromTag && ro.Reg.Id == fromId {
			return RegOp{Reg: Reg{Tag: toTag, Id: toId}}
		}
		return o
	}
	renameReg := func(r *Reg) {
		if r.Tag == fromTag && r.Id == fromId {
			r.Tag, r.Id = toTag, toId
		}
	}
	switch i := instr.(type) {
	case *ALU:
		i.SrcA = rename(i.SrcA)
		i.SrcB = rename(i.SrcB)
	case *PRI:
		renameReg(&i.Src)
	case *PRF:
		renameReg(&i.Src)
	}
}

// SubstRegTag rewrites every register with tag from to tag to, keeping
// ids. It finishes the allocator's two-step rename.
func SubstRegTag(instr Instr, from, to RegTag) {
	subst := func(r *Reg) {
		if r.Tag == from {
			r.Tag = to
		}
	}
	substOp := func(o Operand) Operand {
		if ro, ok := o.(RegOp); ok && ro.Reg.Tag == from {
			ro.Reg.Tag = to
			return ro
		}
		return o
	}
	switch i := instr.(type) {
	case *ALU:
		subst(&i.Dest)
		i.SrcA = substOp(i.SrcA)
		i.SrcB = substOp(i.SrcB)
	case *LI:
		subst(&i.Dest)
	case *Recv:
		subst(&i.Dest)
	case *PRI:
		subst(&i.Src)
	case *PRF:
		subst(&i.Src)
	}
}
