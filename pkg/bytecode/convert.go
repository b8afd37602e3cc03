package bytecode

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/tcvm/pkg/source"
)

// Conversion failures. Convert wraps them in a *ConvertError; match with
// errors.Is.
var (
	ErrEmptyProgram      = errors.New("program is empty")
	ErrMissingRet        = errors.New("last instruction must be RET so execution cannot run past the end of the code")
	ErrForwardBranch     = errors.New("forward branches are not supported")
	ErrBranchOutOfBounds = errors.New("branch target is out of bounds")
	ErrDisplacementRange = errors.New("branch displacement does not fit in 16 bits")
	ErrOperandOverflow   = errors.New("operand does not fit its field")
	ErrUnknownOpcode     = errors.New("unknown source opcode")
)

// ConvertError describes the source instruction that could not be converted.
type ConvertError struct {
	Index int         // Index into the source program
	Word  source.Word // Offending instruction
	Err   error       // One of the Err* sentinels, possibly wrapped
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("convert: instruction %d (%s): %v", e.Index, e.Word, e.Err)
}

func (e *ConvertError) Unwrap() error {
	return e.Err
}

// Convert translates a source program into an internal program in a single
// left-to-right pass.
//
// Each JMPNE becomes an UnwindIfNeeded followed by the branch. The
// UnwindIfNeeded carries index+1 depth units: no path from one check to the
// next dispatches more than index+1 source instructions, so the count
// bounds the chain built since the previous check. Branch targets are
// resolved from the byte offsets recorded for earlier instructions, which
// is why only backward branches can be encoded.
func Convert(words []source.Word) (*Program, error) {
	if len(words) == 0 {
		return nil, &ConvertError{Index: 0, Err: ErrEmptyProgram}
	}
	if last := words[len(words)-1]; last.Opcode() != source.OpRet {
		return nil, &ConvertError{Index: len(words) - 1, Word: last, Err: ErrMissingRet}
	}

	code := make([]byte, 0, len(words)*4)
	offsets := make([]int, 0, len(words))

	for index, w := range words {
		offsets = append(offsets, len(code))
		fail := func(err error) (*Program, error) {
			return nil, &ConvertError{Index: index, Word: w, Err: err}
		}

		switch w.Opcode() {
		case source.OpLoad:
			result, err := register(w.A())
			if err != nil {
				return fail(err)
			}
			code = Load{Result: result, Imm: w.Imm()}.encode(code)

		case source.OpAdd:
			result, err := register(w.A())
			if err != nil {
				return fail(err)
			}
			in0, err := register(w.B())
			if err != nil {
				return fail(err)
			}
			in1, err := register(w.C())
			if err != nil {
				return fail(err)
			}
			code = Add{Result: result, Inputs: [2]uint8{in0, in1}}.encode(code)

		case source.OpJmpNE:
			in0, err := register(w.A())
			if err != nil {
				return fail(err)
			}
			in1, err := register(w.B())
			if err != nil {
				return fail(err)
			}

			depth := index + 1 // an overestimate, see above
			if depth > math.MaxUint16 {
				return fail(fmt.Errorf("%w: depth %d exceeds u16", ErrOperandOverflow, depth))
			}
			code = UnwindIfNeeded{Depth: uint16(depth)}.encode(code)

			target := int(w.Jmp())
			if target < 0 || target >= len(words) {
				return fail(fmt.Errorf("%w: target %d, program has %d instructions", ErrBranchOutOfBounds, target, len(words)))
			}
			if target >= index {
				// The byte offset of a later instruction is not known yet in
				// a single pass; supporting this needs a patch list.
				return fail(fmt.Errorf("%w: target %d is not before %d", ErrForwardBranch, target, index))
			}
			end := len(code) + 1 + sizeJmpNE
			disp := offsets[target] - end
			// Target is an int16, so -32768 still fits.
			if disp < math.MinInt16 || disp > math.MaxInt16 {
				return fail(fmt.Errorf("%w: displacement %d", ErrDisplacementRange, disp))
			}
			code = JmpNE{Inputs: [2]uint8{in0, in1}, Target: int16(disp)}.encode(code)

		case source.OpPrint:
			input, err := register(w.A())
			if err != nil {
				return fail(err)
			}
			code = Print{Input: input}.encode(code)

		case source.OpRet:
			code = Ret{}.encode(code)

		default:
			return fail(ErrUnknownOpcode)
		}
	}

	return newProgramUnchecked(code), nil
}

// MustConvert is like Convert but panics if the program cannot be converted.
func MustConvert(words []source.Word) *Program {
	p, err := Convert(words)
	if err != nil {
		panic(err)
	}
	return p
}

// register narrows a source register operand to the internal u8 field.
func register(r uint16) (uint8, error) {
	if r >= NumRegisters {
		return 0, fmt.Errorf("%w: register r%d, file has %d", ErrOperandOverflow, r, NumRegisters)
	}
	return uint8(r), nil
}
