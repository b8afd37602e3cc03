package source

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// SyntaxError reports a problem in assembler text.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// pendingJump is a JMPNE whose target was written as a label.
type pendingJump struct {
	index int
	line  int
	label string
}

// ParseString assembles a program from text.
func ParseString(text string) ([]Word, error) {
	return Parse(strings.NewReader(text))
}

// Parse assembles a program from text.
//
// Syntax, one instruction per line:
//
//	; comment
//	        LOAD  r0, 0
//	loop:   ADD   r0, r0, r1
//	        JMPNE r0, r2, loop   ; label or absolute index
//	        PRINT r0
//	        RET
//
// Mnemonics are case-insensitive. Immediates accept any base strconv
// understands (0x.., 0b..). Label targets are resolved after the whole
// text is read, so a label may be used before it is defined.
func Parse(r io.Reader) ([]Word, error) {
	var (
		words   []Word
		labels  = make(map[string]int)
		pending []pendingJump
	)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)

		// Labels
		for {
			i := strings.IndexByte(line, ':')
			if i < 0 {
				break
			}
			name := strings.TrimSpace(line[:i])
			if !isIdent(name) {
				return nil, &SyntaxError{lineNo, fmt.Sprintf("invalid label %q", name)}
			}
			if _, dup := labels[name]; dup {
				return nil, &SyntaxError{lineNo, fmt.Sprintf("label %q already defined", name)}
			}
			labels[name] = len(words)
			line = strings.TrimSpace(line[i+1:])
		}
		if line == "" {
			continue
		}

		mnemonic, rest := line, ""
		if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
			mnemonic, rest = line[:i], line[i+1:]
		}
		var args []string
		if rest = strings.TrimSpace(rest); rest != "" {
			for _, a := range strings.Split(rest, ",") {
				args = append(args, strings.TrimSpace(a))
			}
		}

		w, label, err := assemble(strings.ToUpper(mnemonic), args)
		if err != nil {
			return nil, &SyntaxError{lineNo, err.Error()}
		}
		if label != "" {
			pending = append(pending, pendingJump{index: len(words), line: lineNo, label: label})
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read assembler source: %w", err)
	}

	for _, p := range pending {
		target, ok := labels[p.label]
		if !ok {
			return nil, &SyntaxError{p.line, fmt.Sprintf("undefined label %q", p.label)}
		}
		w := words[p.index]
		words[p.index] = JmpNE(w.A(), w.B(), int32(target))
	}
	return words, nil
}

var operandCounts = map[string]int{"LOAD": 2, "ADD": 3, "JMPNE": 3, "PRINT": 1, "RET": 0}

// assemble encodes one instruction. For a JMPNE naming a label, the
// returned word carries target 0 and the label is returned for patching.
func assemble(mnemonic string, args []string) (Word, string, error) {
	n, ok := operandCounts[mnemonic]
	if !ok {
		return 0, "", fmt.Errorf("unknown instruction %q", mnemonic)
	}
	if len(args) != n {
		return 0, "", fmt.Errorf("%s takes %d operands, got %d", mnemonic, n, len(args))
	}

	regs := make([]uint16, 0, 3)
	for i, a := range args {
		if mnemonic == "LOAD" && i == 1 || mnemonic == "JMPNE" && i == 2 {
			continue
		}
		r, err := parseRegister(a)
		if err != nil {
			return 0, "", err
		}
		regs = append(regs, r)
	}

	switch mnemonic {
	case "LOAD":
		imm, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil {
			return 0, "", fmt.Errorf("invalid immediate %q", args[1])
		}
		return Load(regs[0], uint32(imm)), "", nil
	case "ADD":
		return Add(regs[0], regs[1], regs[2]), "", nil
	case "JMPNE":
		if isIdent(args[2]) {
			return JmpNE(regs[0], regs[1], 0), args[2], nil
		}
		target, err := strconv.ParseInt(args[2], 0, 32)
		if err != nil || target > MaxJmp || target < MinJmp {
			return 0, "", fmt.Errorf("invalid jump target %q", args[2])
		}
		return JmpNE(regs[0], regs[1], int32(target)), "", nil
	case "PRINT":
		return Print(regs[0]), "", nil
	default:
		return Ret(), "", nil
	}
}

func parseRegister(s string) (uint16, error) {
	if len(s) < 2 || (s[0] != 'r' && s[0] != 'R') {
		return 0, fmt.Errorf("expected register, got %q", s)
	}
	n, err := strconv.ParseUint(s[1:], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid register %q", s)
	}
	return uint16(n), nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// Format renders words as assembler text that Parse accepts. Each line
// carries the instruction's index as a comment.
func Format(words []Word) string {
	var sb strings.Builder
	for i, w := range words {
		fmt.Fprintf(&sb, "%-24s ; %d\n", w.String(), i)
	}
	return sb.String()
}
