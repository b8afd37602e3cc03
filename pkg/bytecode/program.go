package bytecode

import "fmt"

// NumRegisters is the size of the register file.
const NumRegisters = 256

// Registers is the register file of one execution.
type Registers [NumRegisters]uint32

// Program is a converted, immutable internal program: instructions packed
// back to back in a byte buffer with no index table. The last instruction
// is always RET, so sequential decoding never runs past the end.
//
// A Program is read-only after construction and may be executed by any
// number of goroutines at once.
type Program struct {
	code []byte
}

// newProgramUnchecked wraps code without structural validation. It is the
// trusted construction path reserved for Convert, whose algorithm
// guarantees a well-formed buffer. Callers holding arbitrary bytes must go
// through LoadProgram instead.
func newProgramUnchecked(code []byte) *Program {
	return &Program{code: code}
}

// LoadProgram builds a program from raw bytes after checking them with Validate.
// This is the safety-mode entry point for buffers that did not come from
// Convert.
func LoadProgram(code []byte) (*Program, error) {
	p := &Program{code: append([]byte(nil), code...)}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Len returns the size of the program in bytes.
func (p *Program) Len() int {
	return len(p.code)
}

// Bytes returns a copy of the encoded program.
func (p *Program) Bytes() []byte {
	return append([]byte(nil), p.code...)
}

// Start returns the cursor of the first instruction.
func (p *Program) Start() Cursor {
	return 0
}

// Opcode returns the opcode at c.
func (p *Program) Opcode(c Cursor) Opcode {
	return Opcode(p.code[c])
}

// Next returns the cursor following the instruction at c, or false when c
// is the last instruction.
func (p *Program) Next(c Cursor) (Cursor, bool) {
	next := Visit[Cursor](p, c, nextChecked{end: Cursor(len(p.code))})
	return next, next != endOfProgram
}

// InstructionCount returns the number of instructions in the program.
// Note: This walks the whole buffer, so it's O(n).
func (p *Program) InstructionCount() int {
	count := 0
	for c, ok := p.Start(), len(p.code) > 0; ok; c, ok = p.Next(c) {
		count++
	}
	return count
}

// Cursor is a byte offset into a Program. It does not own the program and
// is only meaningful for the program it was obtained from.
type Cursor int

// endOfProgram is what nextChecked returns past the last instruction.
const endOfProgram Cursor = -1

// Offset returns the cursor as a byte offset.
func (c Cursor) Offset() int {
	return int(c)
}

// String renders the cursor as a fixed-width hexadecimal address.
func (c Cursor) String() string {
	return fmt.Sprintf("0x%04X", int(c))
}
