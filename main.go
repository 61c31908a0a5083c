// This is the main-driver for the compiler: a small CLI wrapping
// compiler.Compiler.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/student/cc0/compiler"
)

func main() {
	debug := flag.Bool("debug", false, "Print the full error chain, including its call stack, on failure.")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 && len(args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: cc0 INPUT [OUTPUT]\n")
		os.Exit(1)
	}

	input := args[0]
	output := input
	if len(args) == 2 {
		output = args[1]
	} else {
		output = replaceExtension(input)
	}

	source, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cc0: reading %s: %s\n", input, err)
		os.Exit(1)
	}

	c := compiler.New(string(source))
	c.SetDebug(*debug)

	asm, err := c.Compile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cc0: %s\n", c.ErrorDetail(err))
		os.Exit(1)
	}

	if output == "-" {
		if _, err := os.Stdout.WriteString(asm); err != nil {
			fmt.Fprintf(os.Stderr, "cc0: writing stdout: %s\n", err)
			os.Exit(1)
		}
		return
	}

	if err := writeOutput(output, []byte(asm)); err != nil {
		fmt.Fprintf(os.Stderr, "cc0: writing %s: %s\n", output, err)
		os.Exit(1)
	}
}

// replaceExtension scans left-to-right and replaces the suffix starting
// at the first `.` that is not part of a leading `./`; if there is no
// such `.`, it appends `.s`.
func replaceExtension(name string) string {
	start := 0
	if strings.HasPrefix(name, "./") {
		start = 2
	}
	if idx := strings.IndexByte(name[start:], '.'); idx != -1 {
		return name[:start+idx] + ".s"
	}
	return name + ".s"
}
