package source

import "fmt"

// Opcode is the tag stored in the low byte of a source Word.
type Opcode byte

const (
	OpLoad  Opcode = 0x01 // LOAD dst, imm32
	OpAdd   Opcode = 0x02 // ADD dst, src1, src2
	OpJmpNE Opcode = 0x03 // JMPNE src1, src2, target
	OpPrint Opcode = 0x04 // PRINT src
	OpRet   Opcode = 0x05 // RET
)

var opcodeNames = map[Opcode]string{
	OpLoad:  "LOAD",
	OpAdd:   "ADD",
	OpJmpNE: "JMPNE",
	OpPrint: "PRINT",
	OpRet:   "RET",
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// Valid reports whether op is one of the five source opcodes.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Word is one fixed-width source instruction.
//
// Layout (bit ranges, low to high):
//
//	 0-7   opcode
//	 8-23  A    register
//	24-39  B    register
//	40-55  C    register
//	32-63  Imm  32-bit immediate (LOAD only, overlaps B and C)
//	40-63  Jmp  signed 24-bit target index (JMPNE only, overlaps C)
type Word uint64

const (
	shiftA   = 8
	shiftB   = 24
	shiftC   = 40
	shiftImm = 32
	shiftJmp = 40

	// MaxJmp and MinJmp bound the target index a JMPNE word can carry.
	MaxJmp = 1<<23 - 1
	MinJmp = -1 << 23
)

// Make returns a word carrying only an opcode.
func Make(op Opcode) Word {
	return Word(op)
}

// MakeAImm returns a word with register A and an immediate.
func MakeAImm(op Opcode, a uint16, imm uint32) Word {
	return Word(op) | Word(a)<<shiftA | Word(imm)<<shiftImm
}

// MakeABC returns a word with three register operands.
func MakeABC(op Opcode, a, b, c uint16) Word {
	return Word(op) | Word(a)<<shiftA | Word(b)<<shiftB | Word(c)<<shiftC
}

// MakeABJmp returns a word with two registers and a jump target index.
// It panics if target does not fit the 24-bit field.
func MakeABJmp(op Opcode, a, b uint16, target int32) Word {
	if target > MaxJmp || target < MinJmp {
		panic(fmt.Sprintf("source: jump target %d does not fit in 24 bits", target))
	}
	return Word(op) | Word(a)<<shiftA | Word(b)<<shiftB | Word(uint32(target)&0xFFFFFF)<<shiftJmp
}

// Load returns LOAD dst, imm.
func Load(dst uint16, imm uint32) Word { return MakeAImm(OpLoad, dst, imm) }

// Add returns ADD dst, a, b.
func Add(dst, a, b uint16) Word { return MakeABC(OpAdd, dst, a, b) }

// JmpNE returns JMPNE a, b, target.
func JmpNE(a, b uint16, target int32) Word { return MakeABJmp(OpJmpNE, a, b, target) }

// Print returns PRINT src.
func Print(src uint16) Word { return MakeABC(OpPrint, src, 0, 0) }

// Ret returns RET.
func Ret() Word { return Make(OpRet) }

// Opcode returns the opcode tag.
func (w Word) Opcode() Opcode { return Opcode(w) }

// A returns the first register operand.
func (w Word) A() uint16 { return uint16(w >> shiftA) }

// B returns the second register operand.
func (w Word) B() uint16 { return uint16(w >> shiftB) }

// C returns the third register operand.
func (w Word) C() uint16 { return uint16(w >> shiftC) }

// Imm returns the 32-bit immediate.
func (w Word) Imm() uint32 { return uint32(w >> shiftImm) }

// Jmp returns the sign-extended jump target index.
func (w Word) Jmp() int32 {
	return int32(uint32(w>>shiftJmp)<<8) >> 8
}

// String returns the instruction in assembler syntax.
func (w Word) String() string {
	switch op := w.Opcode(); op {
	case OpLoad:
		return fmt.Sprintf("LOAD r%d, %d", w.A(), w.Imm())
	case OpAdd:
		return fmt.Sprintf("ADD r%d, r%d, r%d", w.A(), w.B(), w.C())
	case OpJmpNE:
		return fmt.Sprintf("JMPNE r%d, r%d, %d", w.A(), w.B(), w.Jmp())
	case OpPrint:
		return fmt.Sprintf("PRINT r%d", w.A())
	case OpRet:
		return "RET"
	default:
		return fmt.Sprintf("%s 0x%016X", op, uint64(w))
	}
}
