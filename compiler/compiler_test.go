package compiler

import (
	"strings"
	"testing"
)

func TestCompileSimpleProgram(t *testing.T) {
	asm, err := New(`int add(int a, int b) { return a + b; }
int main() { return add(2, 3); }`).Compile()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.Contains(asm, ".globl add") || !strings.Contains(asm, ".globl main") {
		t.Errorf("expected both functions to be emitted, got:\n%s", asm)
	}
}

func TestCompileReportsParseErrors(t *testing.T) {
	_, err := New(`int f( { return 1; }`).Compile()
	if err == nil {
		t.Fatalf("expected a malformed parameter list to fail compilation")
	}
}

func TestCompileReportsValidationErrors(t *testing.T) {
	_, err := New(`int f() { return undeclared; }`).Compile()
	if err == nil {
		t.Fatalf("expected use of an undeclared identifier to fail compilation")
	}
}

func TestCompileReportsTypeErrors(t *testing.T) {
	_, err := New(`int f() { int a = 1; unsigned int b = 2; return a + b; }`).Compile()
	if err == nil {
		t.Fatalf("expected mixed-signedness arithmetic to fail compilation")
	}
}

func TestErrorDetailRespectsDebugFlag(t *testing.T) {
	c := New(`int f() { return undeclared; }`)
	_, err := c.Compile()
	if err == nil {
		t.Fatalf("expected an error")
	}
	plain := c.ErrorDetail(err)
	c.SetDebug(true)
	verbose := c.ErrorDetail(err)
	if len(verbose) < len(plain) {
		t.Errorf("expected the debug-mode error detail to be at least as long as the plain one")
	}
}

func TestCompileWithGlobals(t *testing.T) {
	asm, err := New(`int counter = 41;
int bump() { return counter + 1; }`).Compile()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !strings.Contains(asm, "counter:\n\t.quad 41\n") {
		t.Errorf("expected the folded global to appear in the data section, got:\n%s", asm)
	}
}
