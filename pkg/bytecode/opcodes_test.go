package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	// Ensure every defined opcode has metadata
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := len(AllOpcodes()); got != 6 {
		t.Errorf("Expected 6 opcodes, got %d", got)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpLoad, "LOAD"},
		{OpAdd, "ADD"},
		{OpJmpNE, "JMPNE"},
		{OpPrint, "PRINT"},
		{OpRet, "RET"},
		{OpUnwindIfNeeded, "UNWIND_IF_NEEDED"},
	}

	for _, tt := range tests {
		got := tt.op.String()
		if got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE) // Not defined
	if op.Valid() {
		t.Fatal("0xEE should not be a valid opcode")
	}
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
}

func TestOpcodeOperandLen(t *testing.T) {
	tests := []struct {
		op   Opcode
		want int
	}{
		{OpLoad, 5},           // u8 result + u32 imm
		{OpAdd, 3},            // u8 result + 2x u8 input
		{OpJmpNE, 4},          // 2x u8 input + i16 target
		{OpPrint, 1},          // u8 input
		{OpRet, 0},            // no payload
		{OpUnwindIfNeeded, 2}, // u16 depth
	}

	for _, tt := range tests {
		if got := tt.op.OperandLen(); got != tt.want {
			t.Errorf("%s.OperandLen() = %d, want %d", tt.op, got, tt.want)
		}
		if got := tt.op.InstructionLen(); got != tt.want+1 {
			t.Errorf("%s.InstructionLen() = %d, want %d", tt.op, got, tt.want+1)
		}
	}
}

func TestPayloadEncodingMatchesOpcodeTable(t *testing.T) {
	encoded := map[Opcode][]byte{
		OpLoad:           Load{Result: 1, Imm: 0xDEADBEEF}.encode(nil),
		OpAdd:            Add{Result: 1, Inputs: [2]uint8{2, 3}}.encode(nil),
		OpJmpNE:          JmpNE{Inputs: [2]uint8{2, 3}, Target: -7}.encode(nil),
		OpPrint:          Print{Input: 9}.encode(nil),
		OpRet:            Ret{}.encode(nil),
		OpUnwindIfNeeded: UnwindIfNeeded{Depth: 500}.encode(nil),
	}

	for op, code := range encoded {
		if Opcode(code[0]) != op {
			t.Errorf("%s encodes discriminant 0x%02X", op, code[0])
		}
		if len(code) != op.InstructionLen() {
			t.Errorf("%s encodes %d bytes, table says %d", op, len(code), op.InstructionLen())
		}
	}
}

func TestPayloadLittleEndian(t *testing.T) {
	code := Load{Result: 7, Imm: 0x01020304}.encode(nil)
	want := []byte{byte(OpLoad), 7, 0x04, 0x03, 0x02, 0x01}
	if string(code) != string(want) {
		t.Errorf("Load encoding = % X, want % X", code, want)
	}

	jmp := decodeJmpNE(JmpNE{Inputs: [2]uint8{1, 2}, Target: -300}.encode(nil)[1:])
	if jmp.Target != -300 || jmp.Inputs != [2]uint8{1, 2} {
		t.Errorf("JmpNE decoded as %+v", jmp)
	}
}
