package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/chazu/tcvm/pkg/bytecode"
	"github.com/chazu/tcvm/pkg/source"
)

var StatsFlag = &cli.BoolFlag{
	Name:  "stats",
	Usage: "print dispatch statistics to stderr after the run",
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Convert and execute a program",
	ArgsUsage: "[file.tca|file.tcb]",
	Flags:     append([]cli.Flag{TraceFlag, StatsFlag}, programFlags...),
	Action:    runCmd,
}

func runCmd(ctx *cli.Context) error {
	name, _, p, err := convertProgram(ctx)
	if err != nil {
		return err
	}
	e := engine(ctx)
	res, err := e.Run(p)
	if err != nil {
		return err
	}
	if res.OutputErr != nil {
		return fmt.Errorf("writing output: %w", res.OutputErr)
	}
	log.Infof("%s: %s steps, %d resumes", name, humanize.Comma(int64(res.Stats.Steps)), res.Stats.Resumes)

	if ctx.Bool(StatsFlag.Name) {
		w := ctx.App.ErrWriter
		fmt.Fprintf(w, "steps:     %s\n", humanize.Comma(int64(res.Stats.Steps)))
		fmt.Fprintf(w, "resumes:   %s\n", humanize.Comma(int64(res.Stats.Resumes)))
		fmt.Fprintf(w, "max chain: %d\n", res.Stats.MaxChain)
	}
	return nil
}

var disasmCommand = &cli.Command{
	Name:      "disasm",
	Usage:     "Print the source and internal listings of a program",
	ArgsUsage: "[file.tca|file.tcb]",
	Flags:     []cli.Flag{CountFlag},
	Action: func(ctx *cli.Context) error {
		_, words, p, err := convertProgram(ctx)
		if err != nil {
			return err
		}
		return printListings(ctx, words, p)
	},
}

func printListings(ctx *cli.Context, words []source.Word, p *bytecode.Program) error {
	w := ctx.App.Writer
	fmt.Fprintln(w, "Program:")
	for i, word := range words {
		fmt.Fprintf(w, "%d: %s\n", i, word)
	}
	fmt.Fprintln(w, "\nInternal program:")
	return bytecode.WriteDisassembly(w, p)
}

var asmCommand = &cli.Command{
	Name:      "asm",
	Usage:     "Assemble a text program into a binary program file",
	ArgsUsage: "<in.tca> <out.tcb>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return fmt.Errorf("usage: tcvm asm <in%s> <out%s>", extText, extBinary)
		}
		in, out := ctx.Args().Get(0), ctx.Args().Get(1)
		words, err := readProgram(in)
		if err != nil {
			return err
		}
		// Reject programs that would not run before writing them out.
		if _, err := bytecode.Convert(words); err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		data, err := source.Marshal(words)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return err
		}
		log.Infof("wrote %d instructions to %s", len(words), out)
		return nil
	},
}

var demoCommand = &cli.Command{
	Name:  "demo",
	Usage: "Show listings and a full trace of the counting loop to 2",
	Action: func(ctx *cli.Context) error {
		words := source.CountLoop(2, true)
		p, err := bytecode.Convert(words)
		if err != nil {
			return err
		}
		if err := printListings(ctx, words, p); err != nil {
			return err
		}

		w := ctx.App.Writer
		fmt.Fprintln(w, "\nTrace:")
		e := bytecode.Engine{Out: w, Trace: w}
		res, err := e.Run(p)
		if err != nil {
			return err
		}
		return res.OutputErr
	},
}
