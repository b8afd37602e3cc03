package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Payload structs. Each is stored after its opcode byte, fields packed in
// declaration order with no padding, multi-byte fields little-endian.

// Load sets a register to an immediate.
type Load struct {
	Result uint8
	Imm    uint32
}

// Add stores the wrapping sum of two registers.
type Add struct {
	Result uint8
	Inputs [2]uint8
}

// JmpNE branches when its two input registers differ. Target is a byte
// displacement relative to the end of the JmpNE instruction.
type JmpNE struct {
	Inputs [2]uint8
	Target int16
}

// Print writes a register in decimal followed by a newline.
type Print struct {
	Input uint8
}

// Ret ends execution.
type Ret struct{}

// UnwindIfNeeded charges Depth units against the run's stack budget and
// returns to the trampoline once the budget is exhausted. The converter
// places one before every backward JmpNE.
type UnwindIfNeeded struct {
	Depth uint16
}

const (
	sizeLoad           = 5
	sizeAdd            = 3
	sizeJmpNE          = 4
	sizePrint          = 1
	sizeRet            = 0
	sizeUnwindIfNeeded = 2
)

func (op Load) encode(code []byte) []byte {
	code = append(code, byte(OpLoad), op.Result)
	return binary.LittleEndian.AppendUint32(code, op.Imm)
}

func (op Add) encode(code []byte) []byte {
	return append(code, byte(OpAdd), op.Result, op.Inputs[0], op.Inputs[1])
}

func (op JmpNE) encode(code []byte) []byte {
	code = append(code, byte(OpJmpNE), op.Inputs[0], op.Inputs[1])
	return binary.LittleEndian.AppendUint16(code, uint16(op.Target))
}

func (op Print) encode(code []byte) []byte {
	return append(code, byte(OpPrint), op.Input)
}

func (op Ret) encode(code []byte) []byte {
	return append(code, byte(OpRet))
}

func (op UnwindIfNeeded) encode(code []byte) []byte {
	code = append(code, byte(OpUnwindIfNeeded))
	return binary.LittleEndian.AppendUint16(code, op.Depth)
}

// Decoders take the payload bytes (the slice starting just after the opcode).

func decodeLoad(b []byte) Load {
	return Load{Result: b[0], Imm: binary.LittleEndian.Uint32(b[1:5])}
}

func decodeAdd(b []byte) Add {
	return Add{Result: b[0], Inputs: [2]uint8{b[1], b[2]}}
}

func decodeJmpNE(b []byte) JmpNE {
	return JmpNE{Inputs: [2]uint8{b[0], b[1]}, Target: int16(binary.LittleEndian.Uint16(b[2:4]))}
}

func decodePrint(b []byte) Print {
	return Print{Input: b[0]}
}

func decodeUnwindIfNeeded(b []byte) UnwindIfNeeded {
	return UnwindIfNeeded{Depth: binary.LittleEndian.Uint16(b[0:2])}
}

func (op Load) String() string {
	return fmt.Sprintf("LOAD r%d, %d", op.Result, op.Imm)
}

func (op Add) String() string {
	return fmt.Sprintf("ADD r%d, r%d, r%d", op.Result, op.Inputs[0], op.Inputs[1])
}

func (op JmpNE) String() string {
	return fmt.Sprintf("JMPNE r%d, r%d, %+d", op.Inputs[0], op.Inputs[1], op.Target)
}

func (op Print) String() string {
	return fmt.Sprintf("PRINT r%d", op.Input)
}

func (Ret) String() string {
	return "RET"
}

func (op UnwindIfNeeded) String() string {
	return fmt.Sprintf("UNWIND_IF_NEEDED %d", op.Depth)
}
