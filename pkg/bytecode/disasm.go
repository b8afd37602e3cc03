package bytecode

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble returns a human-readable listing of the program.
func Disassemble(p *Program) string {
	var sb strings.Builder
	_ = WriteDisassembly(&sb, p)
	return sb.String()
}

// WriteDisassembly writes one line per instruction: the byte offset as a
// fixed-width hexadecimal address followed by the decoded fields.
func WriteDisassembly(w io.Writer, p *Program) error {
	if p.Len() == 0 {
		return nil
	}
	for c, ok := p.Start(), true; ok; c, ok = p.Next(c) {
		if _, err := fmt.Fprintf(w, "%04X  ", int(c)); err != nil {
			return err
		}
		if err := Visit[error](p, c, printer{w}); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// DisassembleToLines returns the disassembly as a slice of lines.
func DisassembleToLines(p *Program) []string {
	if p.Len() == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(Disassemble(p), "\n"), "\n")
}

// DisassembleInstruction returns a human-readable representation of the
// single instruction at c.
func DisassembleInstruction(p *Program, c Cursor) string {
	var sb strings.Builder
	_ = Visit[error](p, c, printer{&sb})
	return sb.String()
}
