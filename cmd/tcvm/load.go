package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/chazu/tcvm/pkg/bytecode"
	"github.com/chazu/tcvm/pkg/source"
)

// Program file extensions.
const (
	extText   = ".tca" // assembler text
	extBinary = ".tcb" // CBOR program file
)

var (
	CountFlag = &cli.Uint64Flag{
		Name:  "count",
		Usage: "run the built-in counting loop up to `N` instead of a file",
	}
	LimitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "stack depth limit before unwinding to the trampoline",
	}
	VerifyFlag = &cli.BoolFlag{
		Name:  "verify",
		Usage: "validate the internal program before running it",
	}
	TraceFlag = &cli.BoolFlag{
		Name:  "trace",
		Usage: "print every executed instruction to stderr",
	}
)

var programFlags = []cli.Flag{CountFlag, LimitFlag, VerifyFlag}

// readProgram reads a source program from a .tca or .tcb file.
func readProgram(path string) ([]source.Word, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case extBinary:
		return source.Unmarshal(data)
	default:
		words, err := source.ParseString(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return words, nil
	}
}

// selectProgram picks the source program for a command: the file argument,
// then --count, then the configured program file, then the configured
// counting loop.
func selectProgram(ctx *cli.Context) (name string, words []source.Word, err error) {
	cfg := config(ctx)
	path := ctx.Args().First()
	if path == "" && !ctx.IsSet(CountFlag.Name) {
		path = cfg.ProgramPath()
	}
	if path != "" {
		words, err = readProgram(path)
		return filepath.Base(path), words, err
	}

	n := uint64(cfg.Program.Count)
	if ctx.IsSet(CountFlag.Name) {
		n = ctx.Uint64(CountFlag.Name)
	}
	if n > 0xFFFFFFFF {
		return "", nil, fmt.Errorf("count %d does not fit a register", n)
	}
	return fmt.Sprintf("count-%d", n), source.CountLoop(uint32(n), true), nil
}

// convertProgram selects and converts the program for a command.
func convertProgram(ctx *cli.Context) (string, []source.Word, *bytecode.Program, error) {
	name, words, err := selectProgram(ctx)
	if err != nil {
		return "", nil, nil, err
	}
	p, err := bytecode.Convert(words)
	if err != nil {
		return "", nil, nil, err
	}
	log.Debugf("%s: %d source instructions, %d bytes converted", name, len(words), p.Len())
	return name, words, p, nil
}

// engine builds the execution engine from the configuration and flags.
func engine(ctx *cli.Context) bytecode.Engine {
	cfg := config(ctx)
	e := bytecode.Engine{
		Out:             ctx.App.Writer,
		StackDepthLimit: cfg.Engine.StackDepthLimit,
		Verify:          cfg.Engine.Verify,
	}
	if ctx.IsSet(LimitFlag.Name) {
		e.StackDepthLimit = ctx.Int(LimitFlag.Name)
	}
	if ctx.IsSet(VerifyFlag.Name) {
		e.Verify = ctx.Bool(VerifyFlag.Name)
	}
	if cfg.Engine.Trace || ctx.Bool(TraceFlag.Name) {
		e.Trace = ctx.App.ErrWriter
	}
	return e
}
