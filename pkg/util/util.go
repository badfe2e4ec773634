package util

import (
	"fmt"
	"io"
	"os"

	"github.com/xplshn/ncsdec/pkg/config"
	"github.com/xplshn/ncsdec/pkg/ncs"
)

// Diag prints located error and warning messages for one script, echoing the
// offending instruction under the message the way assemblers do.
type Diag struct {
	Script *ncs.Script
	Cfg    *config.Config
	Out    io.Writer

	Errors   int
	Warnings int
}

func NewDiag(script *ncs.Script, cfg *config.Config) *Diag {
	return &Diag{Script: script, Cfg: cfg, Out: os.Stderr}
}

func (d *Diag) echo(pc uint32) {
	if d.Script == nil {
		return
	}
	if inst := d.Script.At(pc); inst != nil {
		fmt.Fprintf(d.Out, "  \033[32m%s\033[0m\n", inst)
	}
}

// Errorf reports an error at the given code offset. It never exits; callers
// decide whether a subroutine is salvageable.
func (d *Diag) Errorf(pc uint32, format string, args ...interface{}) {
	d.Errors++
	name := "unknown"
	if d.Script != nil {
		name = d.Script.Name
	}
	fmt.Fprintf(d.Out, "%s:%08x: \033[31merror:\033[0m ", name, pc)
	fmt.Fprintf(d.Out, format, args...)
	fmt.Fprintln(d.Out)
	d.echo(pc)
}

// Warnf reports a warning at the given code offset if its class is enabled.
func (d *Diag) Warnf(wt config.Warning, pc uint32, format string, args ...interface{}) {
	if d.Cfg != nil && !d.Cfg.IsWarningEnabled(wt) {
		return
	}
	d.Warnings++
	name := "unknown"
	if d.Script != nil {
		name = d.Script.Name
	}
	warningName := ""
	if d.Cfg != nil {
		warningName = d.Cfg.Warnings[wt].Name
	}
	fmt.Fprintf(d.Out, "%s:%08x: \033[33mwarning:\033[0m ", name, pc)
	fmt.Fprintf(d.Out, format, args...)
	if warningName != "" {
		fmt.Fprintf(d.Out, " [-W%s]", warningName)
	}
	fmt.Fprintln(d.Out)
	d.echo(pc)
}
