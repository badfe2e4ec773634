package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/xplshn/ncsdec/pkg/actions"
	"github.com/xplshn/ncsdec/pkg/analysis"
	"github.com/xplshn/ncsdec/pkg/cfg"
	"github.com/xplshn/ncsdec/pkg/cli"
	"github.com/xplshn/ncsdec/pkg/config"
	"github.com/xplshn/ncsdec/pkg/decomp"
	"github.com/xplshn/ncsdec/pkg/emit"
	"github.com/xplshn/ncsdec/pkg/ncs"
	"github.com/xplshn/ncsdec/pkg/util"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	app := cli.NewApp("ncsdec")
	app.Synopsis = "[options] <input.ncs>"
	app.Description = "A decompiler for NWScript compiled bytecode. Reconstructs variables, expressions and control flow from the stack machine's instruction stream."
	app.Repository = "<https://github.com/xplshn/ncsdec>"

	var (
		outFile     string
		actionsFile string
		dumpAsm     bool
		verbosity   int
		verbose     bool
		warnFlags   []string
		featFlags   []string
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the listing into <file> instead of stdout.", "file")
	fs.String(&actionsFile, "actions", "a", "", "Load engine routine signatures from a TOML <file>.", "file")
	fs.Bool(&dumpAsm, "dump-asm", "d", false, "Dump the disassembly and exit.")
	fs.Bool(&verbose, "verbose", "v", false, "Log the walker's progress to stderr.")

	cc := config.NewConfig()
	fs.AddGroup(&warnFlags, "W", "Warnings", groupEntries(len(cc.Warnings), func(i int) (string, string, bool) {
		info := cc.Warnings[config.Warning(i)]
		return info.Name, info.Description, info.Enabled
	}))
	fs.AddGroup(&featFlags, "F", "Features", groupEntries(len(cc.Features), func(i int) (string, string, bool) {
		info := cc.Features[config.Feature(i)]
		return info.Name, info.Description, info.Enabled
	}))

	app.Action = func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("expected exactly one input file, got %d", len(args))
		}
		if verbose {
			verbosity = 2
		}
		commonlog.Configure(verbosity, nil)

		cc.ProcessFlags(func(fn func(name string)) {
			for _, name := range warnFlags {
				fn(name)
			}
			for _, name := range featFlags {
				fn(name)
			}
		})

		return run(args[0], outFile, actionsFile, dumpAsm, cc)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ncsdec: \033[31merror:\033[0m %v\n", err)
		os.Exit(1)
	}
}

func groupEntries(n int, at func(i int) (name, usage string, def bool)) []cli.GroupEntry {
	entries := make([]cli.GroupEntry, n)
	for i := range entries {
		name, usage, def := at(i)
		entries[i] = cli.GroupEntry{Name: name, Usage: usage, Default: def}
	}
	return entries
}

func run(inPath, outFile, actionsFile string, dumpAsm bool, cc *config.Config) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	script, err := ncs.ReadScript(name, data)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if dumpAsm {
		for _, in := range script.Instructions {
			fmt.Fprintln(out, in)
		}
		return nil
	}

	tbl := actions.NewTable()
	if actionsFile != "" {
		if err := tbl.LoadFile(actionsFile); err != nil {
			return err
		}
	}

	graph, err := cfg.Build(script, tbl)
	if err != nil {
		return err
	}

	diag := util.NewDiag(script, cc)
	printer := emit.NewPrinter(out)
	printer.ShowDead = cc.IsFeatureEnabled(config.FeatDeadCode)

	// main() is compiled first; its SAVEBP frame becomes the globals view
	// for every later subroutine.
	var globals *decomp.Stack
	failed := 0
	for _, sub := range graph.Subs {
		an := analysis.New(sub)
		an.SetOrDetect(cc.IsFeatureEnabled(config.FeatOrDetect))
		an.OnWarning(func(pc uint32, format string, args ...any) {
			diag.Warnf(config.WarnStackShape, pc, format, args...)
		})
		if cc.IsWarningEnabled(config.WarnUnreachableCode) {
			for _, node := range sub.Nodes {
				if an.DeadCode(node) {
					diag.Warnf(config.WarnUnreachableCode, node.Inst.PC, "unreachable instruction in %s", sub.Name())
					break
				}
			}
		}

		printer.BeginSub(sub)
		w := decomp.NewWalker(sub, an, tbl, printer)
		if cc.IsFeatureEnabled(config.FeatGlobals) {
			w.SetGlobals(globals)
		}
		w.OnWarning(func(pc uint32, format string, args ...any) {
			diag.Warnf(config.WarnUnknownAction, pc, format, args...)
		})
		if err := w.Run(); err != nil {
			diag.Errorf(sub.Entry.Inst.PC, "cannot decompile %s: %v", sub.Name(), err)
			printer.FailSub(sub, err)
			failed++
			continue
		}
		globals = w.Globals()
	}

	if err := printer.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d subroutines could not be decompiled", failed, len(graph.Subs))
	}
	return nil
}
