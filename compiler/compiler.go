// Package compiler wires the lexer, parser, validator, type-checker,
// constant evaluator, and code generator into a single-pass pipeline,
// and recovers any internal panic into a regular error so a malformed
// program can never crash the process.
package compiler

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/student/cc0/ast"
	"github.com/student/cc0/codegen"
	"github.com/student/cc0/consteval"
	"github.com/student/cc0/parser"
	"github.com/student/cc0/typecheck"
	"github.com/student/cc0/validate"
)

// Compiler holds a single translation unit's source text and the
// debug flag controlling how much context an error carries.
type Compiler struct {
	source string
	debug  bool
}

// New creates a compiler for the given source text.
func New(source string) *Compiler {
	return &Compiler{source: source}
}

// SetDebug toggles verbose (stack-trace-carrying) error formatting.
func (c *Compiler) SetDebug(val bool) {
	c.debug = val
}

// Compile runs the full pipeline and returns the generated assembly
// text, or the first diagnostic encountered along the way.
func (c *Compiler) Compile() (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("internal compiler error: %v", r)
		}
	}()

	prog, err := parser.New(c.source).ParseProgram()
	if err != nil {
		return "", errors.Wrap(err, "parsing")
	}

	result, err := validate.Validate(prog)
	if err != nil {
		return "", errors.Wrap(err, "validating")
	}

	if err := typecheck.TypeCheck(result); err != nil {
		return "", errors.Wrap(err, "type-checking")
	}

	validated := &ast.ValidatedProgram{Functions: result.Functions}
	for _, decl := range result.Globals {
		folded, err := consteval.FoldGlobal(decl)
		if err != nil {
			return "", errors.Wrap(err, "evaluating global initializer")
		}
		validated.Globals = append(validated.Globals, &ast.ValidatedGlobal{
			Type:           decl.Type,
			Name:           decl.Name,
			FoldedConstant: folded,
		})
	}

	asm, err := codegen.Generate(validated)
	if err != nil {
		return "", errors.Wrap(err, "generating code")
	}
	return asm, nil
}

// ErrorDetail renders err with a stack trace when debug mode is on,
// matching the verbose %+v formatting github.com/pkg/errors provides.
func (c *Compiler) ErrorDetail(err error) string {
	if c.debug {
		return fmt.Sprintf("%+v", err)
	}
	return err.Error()
}
