package bytecode

import "fmt"

// Opcode is the discriminant byte that starts every internal instruction.
// The set is closed: Visit switches over exactly these six values.
type Opcode byte

const (
	OpLoad           Opcode = 0x00 // Result <- Imm: OpLoad <result:u8> <imm:u32>
	OpAdd            Opcode = 0x01 // Result <- In0 + In1: OpAdd <result:u8> <in0:u8> <in1:u8>
	OpJmpNE          Opcode = 0x02 // Branch if In0 != In1: OpJmpNE <in0:u8> <in1:u8> <target:i16>
	OpPrint          Opcode = 0x03 // Print register: OpPrint <input:u8>
	OpRet            Opcode = 0x04 // Stop execution
	OpUnwindIfNeeded Opcode = 0x05 // Depth check before a backward branch: <depth:u16>

	opcodeCount = 6
)

// OpcodeInfo provides metadata about each opcode for disassembly and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	OperandLen int    // Number of payload bytes following the opcode
}

// opcodeInfoTable is indexed by opcode.
var opcodeInfoTable = [opcodeCount]OpcodeInfo{
	OpLoad:           {"LOAD", 5},
	OpAdd:            {"ADD", 3},
	OpJmpNE:          {"JMPNE", 4},
	OpPrint:          {"PRINT", 1},
	OpRet:            {"RET", 0},
	OpUnwindIfNeeded: {"UNWIND_IF_NEEDED", 2},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN(0x..)" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if op.Valid() {
		return opcodeInfoTable[op]
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Valid reports whether op is one of the six defined opcodes.
func (op Opcode) Valid() bool {
	return op < opcodeCount
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of payload bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + payload bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// AllOpcodes returns every defined opcode in discriminant order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, opcodeCount)
	for i := range ops {
		ops[i] = Opcode(i)
	}
	return ops
}
