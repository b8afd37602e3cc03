// tcvm runs, inspects and benchmarks programs for the threaded register VM.
package main

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	"github.com/urfave/cli/v2"

	"github.com/chazu/tcvm/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("tcvm.cli")

const configKey = "config"

var (
	ConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "configuration file (default: nearest tcvm.toml above the working directory)",
	}
	VerbosityFlag = &cli.IntFlag{
		Name:    "verbosity",
		Aliases: []string{"v"},
		Usage:   "log verbosity: 0 quiet, 1 info, 2 debug",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "tcvm",
		Usage: "direct call threading VM with bounded unwinding",
		Flags: []cli.Flag{ConfigFlag, VerbosityFlag},
		Commands: []*cli.Command{
			runCommand,
			disasmCommand,
			asmCommand,
			benchCommand,
			historyCommand,
			demoCommand,
		},
		Before: setup,
	}
}

// setup configures logging and loads the configuration into the app
// metadata, where commands find it through config.
func setup(ctx *cli.Context) error {
	commonlog.Configure(ctx.Int(VerbosityFlag.Name), nil)

	var (
		m   *manifest.Manifest
		err error
	)
	if path := ctx.String(ConfigFlag.Name); path != "" {
		m, err = manifest.LoadFile(path)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			m, err = manifest.FindAndLoad(wd)
		}
	}
	if err != nil {
		return err
	}
	if m == nil {
		m = manifest.Default()
		log.Debug("no tcvm.toml found, using defaults")
	} else {
		log.Infof("using configuration from %s", m.Dir)
	}

	if ctx.App.Metadata == nil {
		ctx.App.Metadata = make(map[string]interface{})
	}
	ctx.App.Metadata[configKey] = m
	return nil
}

func config(ctx *cli.Context) *manifest.Manifest {
	if m, ok := ctx.App.Metadata[configKey].(*manifest.Manifest); ok {
		return m
	}
	return manifest.Default()
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
