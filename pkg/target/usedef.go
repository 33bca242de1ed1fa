package target

// UseDef reports the source variables an instruction reads and writes.
// Only RegA registers count before allocation: those are the variable
// slots; accumulators and specials are not allocatable.

// Uses returns the variable ids read by the instruction.
func Uses(instr Instr) []int {
	var use []int
	addReg := func(r Reg) {
		if r.Tag == RegA {
			use = append(use, r.Id)
		}
	}
	addOp := func(o Operand) {
		if ro, ok := o.(RegOp); ok {
			addReg(ro.Reg)
		}
	}
	switch i := instr.(type) {
	case *ALU:
		addOp(i.SrcA)
		addOp(i.SrcB)
		// A conditional write reads the previous value of the
		// destination: lanes outside the mask keep it.
		if i.Cond.Tag == Flagged {
			addReg(i.Dest)
		}
	case *LI:
		if i.Cond.Tag == Flagged {
			addReg(i.Dest)
		}
	case *PRI:
		addReg(i.Src)
	case *PRF:
		addReg(i.Src)
	}
	return use
}

// Defs returns the variable ids written by the instruction.
func Defs(instr Instr) []int {
	switch i := instr.(type) {
	case *ALU:
		if i.Dest.Tag == RegA {
			return []int{i.Dest.Id}
		}
	case *LI:
		if i.Dest.Tag == RegA {
			return []int{i.Dest.Id}
		}
	case *Recv:
		if i.Dest.Tag == RegA {
			return []int{i.Dest.Id}
		}
	}
	return nil
}

// TwoVarUses returns the pair of distinct variables an ALU instruction
// reads as its two operands. The vc4 allocator uses this to push
// co-used variables toward opposite register files.
func TwoVarUses(instr Instr) (a, b int, ok bool) {
	alu, ok := instr.(*ALU)
	if !ok {
		return 0, 0, false
	}
	ra, okA := alu.SrcA.(RegOp)
	rb, okB := alu.SrcB.(RegOp)
	if !okA || !okB || ra.Reg.Tag != RegA || rb.Reg.Tag != RegA {
		return 0, 0, false
	}
	if ra.Reg.Id == rb.Reg.Id {
		return 0, 0, false
	}
	return ra.Reg.Id, rb.Reg.Id, true
}
