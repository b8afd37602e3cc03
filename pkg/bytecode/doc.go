// Package bytecode implements a small register virtual machine that
// dispatches by direct call threading with bounded unwinding.
//
// The package has two halves that run in sequence:
//
//   - Convert turns a source program (pkg/source words) into a Program, a
//     packed byte stream of variable-length instructions.
//   - Engine.Run executes a Program against a fresh 256-slot register file.
//
// # Instruction Format
//
// Every instruction is one opcode byte followed by its payload, packed with
// no padding (multi-byte fields little-endian):
//
//	LOAD             result:u8 imm:u32
//	ADD              result:u8 in0:u8 in1:u8
//	JMPNE            in0:u8 in1:u8 target:i16
//	PRINT            input:u8
//	RET
//	UNWIND_IF_NEEDED depth:u16
//
// JMPNE targets are byte displacements from the end of the JMPNE. The last
// instruction of a Program is always RET, so sequential decoding cannot run
// off the end of the buffer.
//
// # Dispatch
//
// Decoding goes through Visit, which switches on the opcode and calls one
// method of a Visitor. The same mechanism serves four behaviours: stepping
// to the next instruction (with or without an end-of-program check),
// printing a disassembly line, and executing.
//
// The executing visitor never returns to a central loop after an
// instruction. Each handler performs its effect, computes the next cursor
// and calls Visit for it directly. Go does not eliminate those tail calls,
// so left alone the chain would grow the goroutine stack by a frame group
// per instruction for the whole run.
//
// # Bounded Unwinding
//
// Convert inserts an UNWIND_IF_NEEDED before every backward branch. Its
// handler adds the instruction's depth units to the run's counter; once the
// counter passes the limit (DefaultStackDepthLimit, 500) the whole chain
// returns to a trampoline loop in Engine.Run, which resets the counter and
// resumes at the instruction after the check. Native stack usage is
// therefore bounded by the limit plus the program length, independent of
// how many times loops iterate.
//
// # Trust Boundary
//
// The engine does not validate what it executes. Programs from Convert are
// well-formed by construction; LoadProgram and Engine.Verify run Validate for
// buffers of any other origin.
package bytecode
