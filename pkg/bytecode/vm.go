package bytecode

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// DefaultStackDepthLimit is the number of depth units a run may accumulate
// before UnwindIfNeeded returns to the trampoline.
const DefaultStackDepthLimit = 500

// Engine executes internal programs. The zero value is ready to use and
// prints to os.Stdout. An Engine holds no per-run state, so one Engine may
// run programs from several goroutines at once as long as its writers are
// safe for that.
type Engine struct {
	// Out receives PRINT output. Defaults to os.Stdout.
	Out io.Writer

	// Trace, when set, receives one line per executed instruction.
	Trace io.Writer

	// StackDepthLimit overrides DefaultStackDepthLimit when positive.
	StackDepthLimit int

	// Verify runs Validate before execution. Programs from Convert never
	// need it; it exists for buffers of other origin.
	Verify bool
}

// Stats describes how a run was dispatched.
type Stats struct {
	Steps    uint64 // Instructions dispatched, including UnwindIfNeeded
	Resumes  int    // Trampoline resume transitions
	MaxChain int    // Deepest chain of direct handler invocations
}

// Result is what a run leaves behind.
type Result struct {
	Registers Registers
	Stats     Stats

	// OutputErr is the first error returned by Out, if any. Execution
	// does not stop on it.
	OutputErr error
}

// RunState is the per-run bookkeeping shared by all handlers of one run.
type RunState struct {
	// StackDepth is the conservative count of depth units charged since
	// the last trampoline resume.
	StackDepth int

	// Program is the program being executed.
	Program *Program
}

// outcome is what a handler chain hands back to the trampoline: either
// the run is done, or it unwound and must resume at the given cursor.
type outcome struct {
	done   bool
	resume Cursor
}

// Run executes p with a default Engine, printing to os.Stdout.
func Run(p *Program) Result {
	res, _ := (&Engine{}).Run(p)
	return res
}

// Run executes p on a fresh, zeroed register file until RET.
//
// Only programs built by Convert (or accepted by LoadProgram) are valid input.
// The engine does not check the buffer while executing; with Verify unset,
// a malformed program has undefined behaviour. The returned error is only
// ever a validation failure.
func (e *Engine) Run(p *Program) (Result, error) {
	if e.Verify {
		if err := Validate(p); err != nil {
			return Result{}, err
		}
	}

	var res Result
	m := &machine{
		state: RunState{Program: p},
		regs:  &res.Registers,
		stats: &res.Stats,
		limit: e.StackDepthLimit,
		out:   e.Out,
		trace: e.Trace,
	}
	if m.limit <= 0 {
		m.limit = DefaultStackDepthLimit
	}
	if m.out == nil {
		m.out = os.Stdout
	}

	m.trampoline(p.Start())
	res.OutputErr = m.outErr
	return res, nil
}

// machine is the execute-and-continue visitor. Each handler performs its
// instruction, works out the next cursor and dispatches it directly, so a
// run is one chain of nested calls that only returns at RET or when
// UnwindIfNeeded decides the chain has grown long enough.
type machine struct {
	state RunState
	regs  *Registers
	stats *Stats
	limit int
	chain int

	out    io.Writer
	outErr error
	buf    []byte
	trace  io.Writer
}

// trampoline is the only loop of a run. Every iteration starts a fresh
// dispatch chain with a zero depth count.
func (m *machine) trampoline(at Cursor) {
	for {
		m.state.StackDepth = 0
		m.chain = 0
		o := m.dispatch(at)
		if o.done {
			return
		}
		m.stats.Resumes++
		at = o.resume
	}
}

// dispatch hands the instruction at at to its handler.
func (m *machine) dispatch(at Cursor) outcome {
	m.stats.Steps++
	m.chain++
	if m.chain > m.stats.MaxChain {
		m.stats.MaxChain = m.chain
	}
	return Visit[outcome](m.state.Program, at, m)
}

func (m *machine) VisitLoad(at Cursor, op Load) outcome {
	m.regs[op.Result] = op.Imm
	if m.trace != nil {
		m.tracef(at, "r%d = %d", op.Result, op.Imm)
	}
	return m.dispatch(at + 1 + sizeLoad)
}

func (m *machine) VisitAdd(at Cursor, op Add) outcome {
	a, b := m.regs[op.Inputs[0]], m.regs[op.Inputs[1]]
	m.regs[op.Result] = a + b
	if m.trace != nil {
		m.tracef(at, "r%d = r%d:%d + r%d:%d; r%d:%d",
			op.Result, op.Inputs[0], a, op.Inputs[1], b, op.Result, m.regs[op.Result])
	}
	return m.dispatch(at + 1 + sizeAdd)
}

func (m *machine) VisitJmpNE(at Cursor, op JmpNE) outcome {
	next := at + 1 + sizeJmpNE
	target := next + Cursor(op.Target)
	a, b := m.regs[op.Inputs[0]], m.regs[op.Inputs[1]]
	if m.trace != nil {
		taken := "didn't branch"
		if a != b {
			taken = "branched"
		}
		m.tracef(at, "if r%d:%d != r%d:%d goto %s; %s", op.Inputs[0], a, op.Inputs[1], b, target, taken)
	}
	if a != b {
		return m.dispatch(target)
	}
	return m.dispatch(next)
}

func (m *machine) VisitPrint(at Cursor, op Print) outcome {
	if m.trace != nil {
		m.tracef(at, "print r%d", op.Input)
	}
	m.buf = strconv.AppendUint(m.buf[:0], uint64(m.regs[op.Input]), 10)
	m.buf = append(m.buf, '\n')
	if _, err := m.out.Write(m.buf); err != nil && m.outErr == nil {
		m.outErr = err
	}
	return m.dispatch(at + 1 + sizePrint)
}

func (m *machine) VisitRet(at Cursor, _ Ret) outcome {
	if m.trace != nil {
		m.tracef(at, "ret")
	}
	return outcome{done: true}
}

func (m *machine) VisitUnwindIfNeeded(at Cursor, op UnwindIfNeeded) outcome {
	m.state.StackDepth += int(op.Depth)
	if m.trace != nil {
		m.tracef(at, "unwind_if_needed depth=%d/%d", m.state.StackDepth, m.limit)
	}
	if m.state.StackDepth > m.limit {
		return m.unwind(at)
	}
	return m.dispatch(at + 1 + sizeUnwindIfNeeded)
}

// unwind ends the current chain; the trampoline resumes after the check.
//
//go:noinline
func (m *machine) unwind(at Cursor) outcome {
	return outcome{resume: Visit[Cursor](m.state.Program, at, nextUnchecked{})}
}

func (m *machine) tracef(at Cursor, format string, args ...any) {
	fmt.Fprintf(m.trace, "%s: %s\n", at, fmt.Sprintf(format, args...))
}
