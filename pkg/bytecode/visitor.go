package bytecode

import (
	"fmt"
	"io"
)

// Visitor is one behaviour over the closed set of instructions. Visit
// decodes the instruction at a cursor and calls the method for its opcode
// with the decoded payload; R is whatever the behaviour produces.
type Visitor[R any] interface {
	VisitLoad(at Cursor, op Load) R
	VisitAdd(at Cursor, op Add) R
	VisitJmpNE(at Cursor, op JmpNE) R
	VisitPrint(at Cursor, op Print) R
	VisitRet(at Cursor, op Ret) R
	VisitUnwindIfNeeded(at Cursor, op UnwindIfNeeded) R
}

// Visit decodes the instruction at at and dispatches it to v.
//
// Visit does not check that at lies on an instruction boundary of p. On a
// program produced by Convert every cursor derived from Start, Next or a
// JmpNE target does; anything else is outside the contract.
func Visit[R any, V Visitor[R]](p *Program, at Cursor, v V) R {
	code := p.code[at:]
	switch Opcode(code[0]) {
	case OpLoad:
		return v.VisitLoad(at, decodeLoad(code[1:]))
	case OpAdd:
		return v.VisitAdd(at, decodeAdd(code[1:]))
	case OpJmpNE:
		return v.VisitJmpNE(at, decodeJmpNE(code[1:]))
	case OpPrint:
		return v.VisitPrint(at, decodePrint(code[1:]))
	case OpRet:
		return v.VisitRet(at, Ret{})
	case OpUnwindIfNeeded:
		return v.VisitUnwindIfNeeded(at, decodeUnwindIfNeeded(code[1:]))
	default:
		panic(fmt.Sprintf("bytecode: invalid opcode 0x%02X at %s", code[0], at))
	}
}

// nextUnchecked computes the cursor of the following instruction. It must
// not be used on the last instruction of a program.
type nextUnchecked struct{}

func (nextUnchecked) VisitLoad(at Cursor, _ Load) Cursor   { return at + 1 + sizeLoad }
func (nextUnchecked) VisitAdd(at Cursor, _ Add) Cursor     { return at + 1 + sizeAdd }
func (nextUnchecked) VisitJmpNE(at Cursor, _ JmpNE) Cursor { return at + 1 + sizeJmpNE }
func (nextUnchecked) VisitPrint(at Cursor, _ Print) Cursor { return at + 1 + sizePrint }
func (nextUnchecked) VisitRet(at Cursor, _ Ret) Cursor     { return at + 1 + sizeRet }
func (nextUnchecked) VisitUnwindIfNeeded(at Cursor, _ UnwindIfNeeded) Cursor {
	return at + 1 + sizeUnwindIfNeeded
}

// nextChecked is nextUnchecked with an end-of-program check: it returns
// endOfProgram instead of a cursor equal to end.
type nextChecked struct {
	end Cursor
}

func (n nextChecked) check(next Cursor) Cursor {
	if next == n.end {
		return endOfProgram
	}
	return next
}

func (n nextChecked) VisitLoad(at Cursor, op Load) Cursor {
	return n.check(nextUnchecked{}.VisitLoad(at, op))
}

func (n nextChecked) VisitAdd(at Cursor, op Add) Cursor {
	return n.check(nextUnchecked{}.VisitAdd(at, op))
}

func (n nextChecked) VisitJmpNE(at Cursor, op JmpNE) Cursor {
	return n.check(nextUnchecked{}.VisitJmpNE(at, op))
}

func (n nextChecked) VisitPrint(at Cursor, op Print) Cursor {
	return n.check(nextUnchecked{}.VisitPrint(at, op))
}

func (n nextChecked) VisitRet(at Cursor, op Ret) Cursor {
	return n.check(nextUnchecked{}.VisitRet(at, op))
}

func (n nextChecked) VisitUnwindIfNeeded(at Cursor, op UnwindIfNeeded) Cursor {
	return n.check(nextUnchecked{}.VisitUnwindIfNeeded(at, op))
}

// printer writes the structural dump of one instruction.
type printer struct {
	w io.Writer
}

func (p printer) VisitLoad(_ Cursor, op Load) error {
	_, err := io.WriteString(p.w, op.String())
	return err
}

func (p printer) VisitAdd(_ Cursor, op Add) error {
	_, err := io.WriteString(p.w, op.String())
	return err
}

func (p printer) VisitJmpNE(at Cursor, op JmpNE) error {
	target := nextUnchecked{}.VisitJmpNE(at, op) + Cursor(op.Target)
	_, err := fmt.Fprintf(p.w, "%s (-> %04X)", op, int(target))
	return err
}

func (p printer) VisitPrint(_ Cursor, op Print) error {
	_, err := io.WriteString(p.w, op.String())
	return err
}

func (p printer) VisitRet(_ Cursor, op Ret) error {
	_, err := io.WriteString(p.w, op.String())
	return err
}

func (p printer) VisitUnwindIfNeeded(_ Cursor, op UnwindIfNeeded) error {
	_, err := io.WriteString(p.w, op.String())
	return err
}
