// Target instruction mnemonics, used by Kernel.Pretty and by error
// diagnostics.
package target

import (
	"fmt"
	"strings"
)

func (r Reg) String() string {
	switch r.Tag {
	case RegA:
		return fmt.Sprintf("A%d", r.Id)
	case RegB:
		return fmt.Sprintf("B%d", r.Id)
	case Acc:
		return fmt.Sprintf("r%d", r.Id)
	case Special:
		if r.Id >= 0 && r.Id < len(specialNames) {
			return specialNames[r.Id]
		}
		return fmt.Sprintf("S%d", r.Id)
	case TmpA:
		return fmt.Sprintf("TA%d", r.Id)
	case TmpB:
		return fmt.Sprintf("TB%d", r.Id)
	}
	return "_"
}

func operandString(o Operand) string {
	switch o := o.(type) {
	case RegOp:
		return o.Reg.String()
	case ImmOp:
		return fmt.Sprintf("#%d", o.Imm.Val)
	}
	return "?"
}

func (c AssignCond) String() string {
	switch c.Tag {
	case Never:
		return "never"
	case Always:
		return "always"
	default:
		return "if" + c.Flag.String()
	}
}

func (c BranchCond) String() string {
	switch c.Tag {
	case BrNever:
		return "never"
	case BrAlways:
		return "always"
	case BrAll:
		return "all(" + c.Flag.String() + ")"
	default:
		return "any(" + c.Flag.String() + ")"
	}
}

// Mnemonic returns a one-line textual form of the instruction.
func Mnemonic(instr Instr) string {
	switch i := instr.(type) {
	case *LI:
		var sb strings.Builder
		fmt.Fprintf(&sb, "li %s, ", i.Dest)
		if i.Imm.Tag == ImmFloat32 {
			fmt.Fprintf(&sb, "%g", i.Imm.FltVal)
		} else {
			fmt.Fprintf(&sb, "%d", i.Imm.IntVal)
		}
		appendCond(&sb, i.Cond, i.SetFlags)
		return sb.String()
	case *ALU:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s %s, %s, %s", i.Op, i.Dest,
			operandString(i.SrcA), operandString(i.SrcB))
		appendCond(&sb, i.Cond, i.SetFlags)
		return sb.String()
	case *BR:
		return fmt.Sprintf("br %s, %+d", i.Cond, i.Target.ImmOffset)
	case *BRL:
		return fmt.Sprintf("br %s, L%d", i.Cond, i.Label)
	case *Lab:
		return fmt.Sprintf("L%d:", i.Label)
	case *End:
		return "end"
	case *SInc:
		return fmt.Sprintf("sinc %d", i.Id)
	case *SDec:
		return fmt.Sprintf("sdec %d", i.Id)
	case *IRQ:
		return "irq"
	case *TMU0ToAcc4:
		return "ldtmu0"
	case *DMALoadWait:
		return "dmaLoadWait"
	case *DMAStoreWait:
		return "dmaStoreWait"
	case *Recv:
		return fmt.Sprintf("recv %s", i.Dest)
	case *NoOp:
		return "nop"
	case *InitBegin:
		return "initBegin"
	case *InitEnd:
		return "initEnd"
	case *PRS:
		return fmt.Sprintf("prs %q", i.Str)
	case *PRI:
		return fmt.Sprintf("pri %s", i.Src)
	case *PRF:
		return fmt.Sprintf("prf %s", i.Src)
	}
	return fmt.Sprintf("?%T", instr)
}

func appendCond(sb *strings.Builder, c AssignCond, sf bool) {
	if !c.IsAlways() {
		fmt.Fprintf(sb, " (%s)", c)
	}
	if sf {
		sb.WriteString(" sf")
	}
}

// Mnemonics renders a sequence with instruction indexes.
func Mnemonics(instrs []Instr) string {
	var sb strings.Builder
	for i, instr := range instrs {
		fmt.Fprintf(&sb, "%d: %s\n", i, Mnemonic(instr))
	}
	return sb.String()
}
