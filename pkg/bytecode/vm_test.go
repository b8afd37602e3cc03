package bytecode

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/tcvm/pkg/source"
)

// runProgram executes p with output captured and fails the test on error.
func runProgram(t testing.TB, p *Program, e Engine) (string, Result) {
	t.Helper()
	var out bytes.Buffer
	e.Out = &out
	res, err := e.Run(p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.OutputErr != nil {
		t.Fatalf("Output error: %v", res.OutputErr)
	}
	return out.String(), res
}

// maxChainBound is the chain depth no run may exceed, whatever its loop
// counts: up to the limit plus one check's worth of depth units, at two
// internal instructions per source instruction, plus one straight pass.
func maxChainBound(words []source.Word) int {
	return 2*(DefaultStackDepthLimit+len(words)) + 2*len(words)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

// ============ Semantic Tests ============

func TestRunCountLoop(t *testing.T) {
	for _, n := range []uint32{1, 2, 3, 100, 1048575} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			p := MustConvert(source.CountLoop(n, true))
			out, res := runProgram(t, p, Engine{})
			if want := fmt.Sprintf("%d\n", n); out != want {
				t.Errorf("Expected output %q, got %q", want, out)
			}
			if res.Registers[0] != n || res.Registers[1] != 1 || res.Registers[2] != n {
				t.Errorf("Unexpected registers r0=%d r1=%d r2=%d", res.Registers[0], res.Registers[1], res.Registers[2])
			}
		})
	}
}

func TestRunCountLoopZeroWrapsAround(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the loop body 2^32 times")
	}
	// The body runs before the first comparison, so r0 has to wrap all
	// the way around before it equals r2 = 0 again.
	p := MustConvert(source.CountLoop(0, true))
	out, res := runProgram(t, p, Engine{})
	if out != "0\n" {
		t.Errorf("Expected output %q, got %q", "0\n", out)
	}
	if res.Stats.MaxChain > maxChainBound(source.CountLoop(0, true)) {
		t.Errorf("Chain depth %d exceeds bound", res.Stats.MaxChain)
	}
}

func TestRunLargeCountForcesResume(t *testing.T) {
	p := MustConvert(source.CountLoop(1048575, true))
	_, res := runProgram(t, p, Engine{})
	if res.Stats.Resumes == 0 {
		t.Error("Expected at least one trampoline resume")
	}
}

func TestRunAddWraps(t *testing.T) {
	p := MustConvert([]source.Word{
		source.Load(0, 0xFFFFFFFF),
		source.Load(1, 2),
		source.Add(2, 0, 1),
		source.Print(2),
		source.Ret(),
	})
	out, _ := runProgram(t, p, Engine{})
	if out != "1\n" {
		t.Errorf("Expected wrapped sum 1, got %q", out)
	}
}

func TestRunPrintOrder(t *testing.T) {
	p := MustConvert([]source.Word{
		source.Load(3, 30),
		source.Load(200, 7),
		source.Print(200),
		source.Print(3),
		source.Print(255),
		source.Ret(),
	})
	out, _ := runProgram(t, p, Engine{})
	if out != "7\n30\n0\n" {
		t.Errorf("Expected %q, got %q", "7\n30\n0\n", out)
	}
}

func TestRunNoPrintNoOutput(t *testing.T) {
	p := MustConvert(source.CountLoop(5000, false))
	out, res := runProgram(t, p, Engine{})
	if out != "" {
		t.Errorf("Expected no output, got %q", out)
	}
	if res.Registers[0] != 5000 {
		t.Errorf("Expected r0=5000, got %d", res.Registers[0])
	}
}

func TestRunOnlyRet(t *testing.T) {
	p := MustConvert([]source.Word{source.Ret()})
	out, res := runProgram(t, p, Engine{})
	if out != "" {
		t.Errorf("Expected no output, got %q", out)
	}
	if res.Stats.Steps != 1 || res.Stats.Resumes != 0 {
		t.Errorf("Unexpected stats %+v", res.Stats)
	}
}

func TestRunFreshRegisters(t *testing.T) {
	p := MustConvert([]source.Word{
		source.Add(0, 0, 1), // r0 = 0 + 0 on a zeroed file
		source.Print(0),
		source.Load(0, 41),
		source.Ret(),
	})
	for i := 0; i < 2; i++ {
		out, _ := runProgram(t, p, Engine{})
		if out != "0\n" {
			t.Fatalf("Run %d: expected zeroed registers, got %q", i, out)
		}
	}
}

func TestRunIdempotentReuse(t *testing.T) {
	p := MustConvert(source.CountLoop(12345, true))
	out1, res1 := runProgram(t, p, Engine{})
	out2, res2 := runProgram(t, p, Engine{})
	if out1 != out2 {
		t.Errorf("Outputs differ: %q vs %q", out1, out2)
	}
	if res1.Registers != res2.Registers {
		t.Error("Register files differ between runs")
	}
	if res1.Stats != res2.Stats {
		t.Errorf("Stats differ: %+v vs %+v", res1.Stats, res2.Stats)
	}
}

func TestRunConcurrentExecutions(t *testing.T) {
	p := MustConvert(source.CountLoop(20000, true))
	outputs := make([]string, 8)

	var g errgroup.Group
	for i := range outputs {
		g.Go(func() error {
			var out bytes.Buffer
			if _, err := (&Engine{Out: &out}).Run(p); err != nil {
				return err
			}
			outputs[i] = out.String()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, out := range outputs {
		if out != "20000\n" {
			t.Errorf("Execution %d printed %q", i, out)
		}
	}
}

func TestRunOutputErrorDoesNotStopExecution(t *testing.T) {
	p := MustConvert([]source.Word{
		source.Print(0),
		source.Load(1, 9),
		source.Ret(),
	})
	res, err := (&Engine{Out: failingWriter{}}).Run(p)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.OutputErr == nil {
		t.Error("Expected OutputErr to be set")
	}
	if res.Registers[1] != 9 {
		t.Error("Execution stopped after the failed write")
	}
}

// ============ Trampoline Tests ============

func TestTrampolineResumeBound(t *testing.T) {
	for _, n := range []uint32{1, 10, 1000, 100000} {
		words := source.CountLoop(n, false)
		p := MustConvert(words)
		_, res := runProgram(t, p, Engine{})

		k := int(n) - 1 // times the backward branch is taken
		if res.Stats.Resumes > k+1 {
			t.Errorf("n=%d: %d resumes for %d taken branches", n, res.Stats.Resumes, k)
		}
		if bound := maxChainBound(words); res.Stats.MaxChain > bound {
			t.Errorf("n=%d: chain depth %d exceeds bound %d", n, res.Stats.MaxChain, bound)
		}
	}
}

func TestTrampolineChainDepthIndependentOfIterations(t *testing.T) {
	_, small := runProgram(t, MustConvert(source.CountLoop(10000, false)), Engine{})
	_, large := runProgram(t, MustConvert(source.CountLoop(1000000, false)), Engine{})

	if small.Stats.Resumes == 0 || large.Stats.Resumes <= small.Stats.Resumes {
		t.Fatalf("Expected resumes to grow with iterations: %d vs %d", small.Stats.Resumes, large.Stats.Resumes)
	}
	if small.Stats.MaxChain != large.Stats.MaxChain {
		t.Errorf("Chain depth depends on iteration count: %d vs %d", small.Stats.MaxChain, large.Stats.MaxChain)
	}
}

func TestTrampolineResumeCount(t *testing.T) {
	// Each iteration charges 5 units (JMPNE at index 4), so the 101st
	// check of a chain pushes the count past 500.
	const n = 101 * 10
	_, res := runProgram(t, MustConvert(source.CountLoop(n, false)), Engine{})
	if res.Stats.Resumes != 10 {
		t.Errorf("Expected 10 resumes, got %d", res.Stats.Resumes)
	}
}

func TestChainGrowsWithoutUnwinding(t *testing.T) {
	// With a limit no run reaches, nothing bounds the chain and it grows
	// with the iteration count.
	e := Engine{StackDepthLimit: math.MaxInt}
	_, small := runProgram(t, MustConvert(source.CountLoop(100, false)), e)
	_, large := runProgram(t, MustConvert(source.CountLoop(1000, false)), e)

	if small.Stats.Resumes != 0 || large.Stats.Resumes != 0 {
		t.Fatalf("Expected no resumes, got %d and %d", small.Stats.Resumes, large.Stats.Resumes)
	}
	if large.Stats.MaxChain < 3*1000 {
		t.Errorf("Expected chain of at least 3000 dispatches, got %d", large.Stats.MaxChain)
	}
	if large.Stats.MaxChain <= small.Stats.MaxChain {
		t.Error("Chain depth should grow with iterations without the trampoline")
	}
}

func TestStackDepthLimitOverride(t *testing.T) {
	p := MustConvert(source.CountLoop(1000, false))
	_, def := runProgram(t, p, Engine{})
	_, tight := runProgram(t, p, Engine{StackDepthLimit: 10})
	if tight.Stats.Resumes <= def.Stats.Resumes {
		t.Errorf("Smaller limit should resume more often: %d vs %d", tight.Stats.Resumes, def.Stats.Resumes)
	}
	if tight.Registers != def.Registers {
		t.Error("Limit changed the result")
	}
}

func TestStepsCountsEveryDispatch(t *testing.T) {
	// 3 LOADs, then n iterations of ADD, UNWIND, JMPNE, then RET.
	const n = 50
	_, res := runProgram(t, MustConvert(source.CountLoop(n, false)), Engine{})
	if want := uint64(3 + 3*n + 1); res.Stats.Steps != want {
		t.Errorf("Expected %d steps, got %d", want, res.Stats.Steps)
	}
}

// ============ Trace Tests ============

func TestRunTrace(t *testing.T) {
	var trace bytes.Buffer
	p := MustConvert(source.CountLoop(2, true))
	out, _ := runProgram(t, p, Engine{Trace: &trace})
	if out != "2\n" {
		t.Errorf("Expected output %q, got %q", "2\n", out)
	}

	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	// 3 LOADs, 2 iterations x 3, PRINT, RET
	if len(lines) != 11 {
		t.Fatalf("Expected 11 trace lines, got %d:\n%s", len(lines), trace.String())
	}
	for _, want := range []string{"r2 = 2", "; branched", "; didn't branch", "print r0", "ret"} {
		if !strings.Contains(trace.String(), want) {
			t.Errorf("Trace missing %q", want)
		}
	}
	if !strings.HasPrefix(lines[0], "0x0000: ") {
		t.Errorf("Trace lines should start with the address, got %q", lines[0])
	}
}

// ============ Verification Tests ============

func TestRunVerifyRejectsMalformed(t *testing.T) {
	p := newProgramUnchecked([]byte{byte(OpPrint), 0}) // no RET
	_, err := (&Engine{Verify: true}).Run(p)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
}

func TestRunVerifyAcceptsConverted(t *testing.T) {
	p := MustConvert(source.CountLoop(3, true))
	out, _ := runProgram(t, p, Engine{Verify: true})
	if out != "3\n" {
		t.Errorf("Expected %q, got %q", "3\n", out)
	}
}

func TestRunVerifyRejectsLoopThatNeverUnwinds(t *testing.T) {
	loop := func(depth uint16) *Program {
		return newProgramUnchecked(assemble(
			Load{Result: 0, Imm: 0},
			Load{Result: 1, Imm: 1},
			Load{Result: 2, Imm: 1000},
			Add{Result: 0, Inputs: [2]uint8{0, 1}},
			UnwindIfNeeded{Depth: depth},
			JmpNE{Inputs: [2]uint8{0, 2}, Target: -12},
			Print{Input: 0},
			Ret{},
		))
	}

	_, err := (&Engine{Verify: true, Out: &bytes.Buffer{}}).Run(loop(0))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected *ValidationError, got %v", err)
	}
	if ve.Offset != 0x16 {
		t.Errorf("Expected offset 0016, got %04X", ve.Offset)
	}

	out, res := runProgram(t, loop(5), Engine{Verify: true})
	if out != "1000\n" {
		t.Errorf("Expected %q, got %q", "1000\n", out)
	}
	if res.Stats.Resumes == 0 {
		t.Error("Expected the loop to unwind at least once")
	}
}
