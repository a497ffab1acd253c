// SPDX-License-Identifier: Apache-2.0

// Command scgc is a thin driver exercising the core pipeline end to end:
// it reads a textual IR module, optimizes it, and prints the resulting
// bytecode. It exists for manual testing and demonstration; no compiler
// semantics live here, only wiring.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"scathago/internal/clog"
	"scathago/internal/codegen"
	"scathago/internal/ir"
	"scathago/internal/irtext"
	"scathago/internal/issue"
	"scathago/internal/passes"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: scgc <file.sir>")
		os.Exit(1)
	}
	clog.Configure(0)

	path := os.Args[1]
	source, err := issue.LoadSource(path)
	if err != nil {
		color.Red("failed to read file: %s", err)
		os.Exit(1)
	}

	ctx := ir.NewContext()
	mod, err := irtext.Parse(ctx, source)
	if err != nil {
		reportParseError(source, err)
		os.Exit(1)
	}

	if warnings := irtext.Lint(mod); warnings.Len() > 0 {
		reporter := issue.NewReporter(path, source)
		fmt.Print(reporter.Format(warnings))
	}

	mgr := passes.NewManager(passes.DefaultConfig)
	mgr.Run(mod)

	prog := codegen.EmitModule(mod)
	fmt.Print(prog.Disassemble())
	color.Green("✅ %s: %d function(s), build %s", path, len(mod.Functions), prog.BuildID)
}

// reportParseError prints a caret-style parse error message pointing at
// the offending line and column.
func reportParseError(src string, err error) {
	var pe participle.Error
	if !errors.As(err, &pe) {
		color.Red("unexpected error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("❌ syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("→ %s\n", pe.Message())
}
