package codegen

import (
	"strings"
	"testing"

	"github.com/student/cc0/ast"
	"github.com/student/cc0/consteval"
	"github.com/student/cc0/parser"
	"github.com/student/cc0/typecheck"
	"github.com/student/cc0/validate"
)

func mustGenerate(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.New(src).ParseProgram()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	res, err := validate.Validate(prog)
	if err != nil {
		t.Fatalf("unexpected validation error: %s", err)
	}
	if err := typecheck.TypeCheck(res); err != nil {
		t.Fatalf("unexpected type-check error: %s", err)
	}

	validated := &ast.ValidatedProgram{Functions: res.Functions}
	for _, decl := range res.Globals {
		folded, err := consteval.FoldGlobal(decl)
		if err != nil {
			t.Fatalf("unexpected fold error: %s", err)
		}
		validated.Globals = append(validated.Globals, &ast.ValidatedGlobal{
			Type: decl.Type, Name: decl.Name, FoldedConstant: folded,
		})
	}

	asm, err := Generate(validated)
	if err != nil {
		t.Fatalf("unexpected codegen error: %s", err)
	}
	return asm
}

func TestGeneratesGlobalSection(t *testing.T) {
	asm := mustGenerate(t, `int counter = 42;`)
	if !strings.Contains(asm, "\t.data\n") {
		t.Errorf("expected a .data section, got:\n%s", asm)
	}
	if !strings.Contains(asm, "counter:\n\t.quad 42\n") {
		t.Errorf("expected counter's folded value in the data section, got:\n%s", asm)
	}
}

func TestGeneratesFunctionPrologueAndEpilogue(t *testing.T) {
	asm := mustGenerate(t, `int main() { return 0; }`)
	if !strings.Contains(asm, ".globl main\n") {
		t.Errorf("expected .globl main, got:\n%s", asm)
	}
	if !strings.Contains(asm, "pushq %rbp") || !strings.Contains(asm, "movq %rsp, %rbp") {
		t.Errorf("expected a standard prologue, got:\n%s", asm)
	}
	if !strings.Contains(asm, "popq %rbp") || !strings.Contains(asm, "\tret\n") {
		t.Errorf("expected a standard epilogue, got:\n%s", asm)
	}
}

func TestReturnJumpsToSharedEpilogueLabel(t *testing.T) {
	asm := mustGenerate(t, `int f() { if (1) return 1; return 2; }`)
	if strings.Count(asm, "jmp .Lret_f") != 2 {
		t.Errorf("expected both return statements to jump to the shared epilogue label, got:\n%s", asm)
	}
	if strings.Count(asm, ".Lret_f:") != 1 {
		t.Errorf("expected exactly one epilogue label, got:\n%s", asm)
	}
}

func TestShortCircuitAndEmitsConditionalJumpBeforeRightOperand(t *testing.T) {
	asm := mustGenerate(t, `int f() { return 1 && 2; }`)
	if !strings.Contains(asm, "je ") {
		t.Errorf("expected '&&' to emit a conditional short-circuit jump, got:\n%s", asm)
	}
}

func TestDivisionUsesSignedOrUnsignedMnemonic(t *testing.T) {
	signed := mustGenerate(t, `int f() { int a = 10; int b = 3; return a / b; }`)
	if !strings.Contains(signed, "cqto") || !strings.Contains(signed, "idivq") {
		t.Errorf("expected signed division to use cqto/idivq, got:\n%s", signed)
	}

	unsigned := mustGenerate(t, `int f() { unsigned int a = 10; unsigned int b = 3; return a / b; }`)
	if !strings.Contains(unsigned, "divq %rcx") || strings.Contains(unsigned, "idivq") {
		t.Errorf("expected unsigned division to zero-extend and use divq, got:\n%s", unsigned)
	}
}

func TestShiftUsesClRegisterAndCorrectMnemonic(t *testing.T) {
	asm := mustGenerate(t, `int f() { int a = 8; int b = 2; return a << b; }`)
	if !strings.Contains(asm, "salq %cl, %rax") {
		t.Errorf("expected a left shift to emit 'salq %%cl, %%rax', got:\n%s", asm)
	}
}

func TestLocalDeclarationPushIsItsOwnStorage(t *testing.T) {
	asm := mustGenerate(t, `int f() { int x = 5; return x; }`)
	if strings.Count(asm, "pushq %rcx") < 1 {
		t.Errorf("expected the literal 5 to be pushed as x's frame storage, got:\n%s", asm)
	}
}

func TestNestedBlockReleasesItsOwnStackSpace(t *testing.T) {
	asm := mustGenerate(t, `int f() { int x = 1; { int y = 2; } return x; }`)
	if !strings.Contains(asm, "addq $8, %rsp") {
		t.Errorf("expected the nested block to release its one local's 8 bytes on exit, got:\n%s", asm)
	}
}

func TestFunctionCallPassesArgumentsInRegisters(t *testing.T) {
	asm := mustGenerate(t, `int add(int a, int b) { return a + b; }
int main() { return add(1, 2); }`)
	if !strings.Contains(asm, "call add") {
		t.Errorf("expected a call to add, got:\n%s", asm)
	}
	if !strings.Contains(asm, "popq %rdi") || !strings.Contains(asm, "popq %rsi") {
		t.Errorf("expected the first two arguments to load into %%rdi/%%rsi, got:\n%s", asm)
	}
}
