// SPDX-License-Identifier: Apache-2.0

// Package repl is an interactive front end to the core pipeline: paste a
// textual IR module, terminated by a blank line, and it prints the
// optimized bytecode. Useful for poking at pass behavior without a file
// on disk.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"scathago/internal/codegen"
	"scathago/internal/ir"
	"scathago/internal/irtext"
	"scathago/internal/passes"
)

const prompt = "sir> "

// Start reads modules from in, one per blank-line-terminated block, and
// writes each one's disassembled bytecode to out.
func Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	var block strings.Builder

	flush := func() {
		text := block.String()
		block.Reset()
		if strings.TrimSpace(text) == "" {
			return
		}
		run(text, out)
	}

	fmt.Fprint(out, prompt)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			fmt.Fprint(out, prompt)
			continue
		}
		block.WriteString(line)
		block.WriteByte('\n')
	}
	flush()
}

func run(source string, out io.Writer) {
	ctx := ir.NewContext()
	mod, err := irtext.Parse(ctx, source)
	if err != nil {
		fmt.Fprintf(out, "parse error: %s\n", err)
		return
	}

	mgr := passes.NewManager(passes.DefaultConfig)
	mgr.Run(mod)

	prog := codegen.EmitModule(mod)
	fmt.Fprint(out, prog.Disassemble())
}
