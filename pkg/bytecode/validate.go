package bytecode

import "fmt"

// ValidationError reports why a buffer is not a well-formed program.
type ValidationError struct {
	Offset int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid program at %04X: %s", e.Offset, e.Reason)
}

// Validate checks the structural invariants the engine relies on but never
// checks itself:
//   - every opcode is defined and its payload lies within the buffer
//   - the last instruction is RET
//   - every JMPNE target is the start of an instruction
//   - every backward JMPNE is directly preceded by an UnwindIfNeeded with
//     a non-zero depth and lands at or before it
//
// Programs produced by Convert always pass.
func Validate(p *Program) error {
	code := p.code
	if len(code) == 0 {
		return &ValidationError{0, "empty program"}
	}

	starts := make(map[int]bool)
	var jumps []int
	last, prev := -1, Opcode(0xFF)
	for off := 0; off < len(code); {
		op := Opcode(code[off])
		if !op.Valid() {
			return &ValidationError{off, fmt.Sprintf("unknown opcode 0x%02X", byte(op))}
		}
		if off+op.InstructionLen() > len(code) {
			return &ValidationError{off, fmt.Sprintf("%s payload runs past end of program", op)}
		}
		if op == OpJmpNE {
			jmp := decodeJmpNE(code[off+1:])
			if jmp.Target < 0 {
				if prev != OpUnwindIfNeeded {
					return &ValidationError{off, "backward JMPNE without preceding UNWIND_IF_NEEDED"}
				}
				// A zero depth never unwinds, so the loop would grow the chain.
				if decodeUnwindIfNeeded(code[last+1:]).Depth == 0 {
					return &ValidationError{last, "UNWIND_IF_NEEDED guarding a backward JMPNE has depth 0"}
				}
				if target := off + 1 + sizeJmpNE + int(jmp.Target); target > last {
					return &ValidationError{off, "backward JMPNE skips its UNWIND_IF_NEEDED"}
				}
			}
			jumps = append(jumps, off)
		}
		starts[off] = true
		last, prev = off, op
		off += op.InstructionLen()
	}

	if Opcode(code[last]) != OpRet {
		return &ValidationError{last, "last instruction must be RET"}
	}
	for _, off := range jumps {
		jmp := decodeJmpNE(code[off+1:])
		target := off + 1 + sizeJmpNE + int(jmp.Target)
		if !starts[target] {
			return &ValidationError{off, fmt.Sprintf("JMPNE target %04X is not an instruction", target)}
		}
	}
	return nil
}
