package typecheck

import (
	"testing"

	"github.com/student/cc0/ast"
	"github.com/student/cc0/parser"
	"github.com/student/cc0/validate"
)

func mustCheck(t *testing.T, src string) *validate.Result {
	t.Helper()
	prog, err := parser.New(src).ParseProgram()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	res, err := validate.Validate(prog)
	if err != nil {
		t.Fatalf("unexpected validation error: %s", err)
	}
	if err := TypeCheck(res); err != nil {
		t.Fatalf("unexpected type-check error: %s", err)
	}
	return res
}

func TestAssigningIntLiteralToLongInsertsConvert(t *testing.T) {
	res := mustCheck(t, `int f() { long x = 5; return 0; }`)
	decl := res.Functions[0].Body.Items[0].Decl
	conv, ok := decl.Initializer.(*ast.Convert)
	if !ok {
		t.Fatalf("expected the int literal to be wrapped in a Convert to long, got %#v", decl.Initializer)
	}
	if !conv.AttachedType().Equal(ast.Long) {
		t.Errorf("expected the Convert's target type to be long, got %q", conv.AttachedType().Name)
	}
}

func TestMixedSignednessArithmeticIsRejected(t *testing.T) {
	prog, err := parser.New(`int f() { int a = 1; unsigned int b = 2; return a + b; }`).ParseProgram()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	res, err := validate.Validate(prog)
	if err != nil {
		t.Fatalf("unexpected validation error: %s", err)
	}
	if err := TypeCheck(res); err == nil {
		t.Fatalf("expected mixing int and unsigned int in arithmetic to be rejected")
	}
}

func TestSameCategoryWideningNeedsNoError(t *testing.T) {
	res := mustCheck(t, `int f() { long a = 1; int b = 2; return a + b; }`)
	ret := res.Functions[0].Body.Items[2].Stmt.(*ast.Return)
	sum := ret.Expr.(*ast.Convert).Inner
	if !sum.AttachedType().Equal(ast.Long) {
		t.Fatalf("expected int+long to widen to long, got %q", sum.AttachedType().Name)
	}
}

func TestComparisonResultIsAlwaysInt(t *testing.T) {
	res := mustCheck(t, `int f() { long a = 1; return a < 2; }`)
	ret := res.Functions[0].Body.Items[1].Stmt.(*ast.Return)
	if !ret.Expr.AttachedType().Equal(ast.Int32) {
		t.Fatalf("expected a comparison to have type int, got %q", ret.Expr.AttachedType().Name)
	}
}

func TestBitwiseOperatorsRequireIntegerOperands(t *testing.T) {
	prog, err := parser.New(`double d; int f() { return 1 & d; }`).ParseProgram()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	res, err := validate.Validate(prog)
	if err != nil {
		t.Fatalf("unexpected validation error: %s", err)
	}
	if err := TypeCheck(res); err == nil {
		t.Fatalf("expected '&' with a double operand to be rejected")
	}
}

func TestBitwiseOperatorsDoNotSynthesizeWidening(t *testing.T) {
	res := mustCheck(t, `int f() { long a = 1; int b = 2; return a & b; }`)
	ret := res.Functions[0].Body.Items[2].Stmt.(*ast.Return)
	bin := ret.Expr.(*ast.Convert).Inner.(*ast.Binary)
	if _, ok := bin.Right.(*ast.Convert); ok {
		t.Fatalf("expected '&' not to wrap its right operand in a Convert")
	}
}

func TestLogicalOperatorsResultIsInt(t *testing.T) {
	res := mustCheck(t, `int f() { long a = 1; return a && 1; }`)
	ret := res.Functions[0].Body.Items[1].Stmt.(*ast.Return)
	if !ret.Expr.AttachedType().Equal(ast.Int32) {
		t.Fatalf("expected '&&' to produce int, got %q", ret.Expr.AttachedType().Name)
	}
}

func TestFloatingPointReturnTypeIsRejected(t *testing.T) {
	prog, err := parser.New(`double f() { return 1; }`).ParseProgram()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	res, err := validate.Validate(prog)
	if err != nil {
		t.Fatalf("unexpected validation error: %s", err)
	}
	if err := TypeCheck(res); err == nil {
		t.Fatalf("expected a floating-point return type to be rejected")
	}
}

func TestTernaryBranchesWidenToCommonType(t *testing.T) {
	res := mustCheck(t, `int f() { long a = 1; return 1 ? a : 2; }`)
	ret := res.Functions[0].Body.Items[1].Stmt.(*ast.Return)
	ternary := ret.Expr.(*ast.Convert).Inner.(*ast.Ternary)
	if !ternary.AttachedType().Equal(ast.Long) {
		t.Fatalf("expected the ternary's common type to be long, got %q", ternary.AttachedType().Name)
	}
}

func TestFloatingPointLocalIsRejected(t *testing.T) {
	prog, err := parser.New(`int main() { double x = 1; return x; }`).ParseProgram()
	if err != nil {
		t.Fatalf("unexpected parse error: %s", err)
	}
	res, err := validate.Validate(prog)
	if err != nil {
		t.Fatalf("unexpected validation error: %s", err)
	}
	if err := TypeCheck(res); err == nil {
		t.Fatalf("expected a floating-point local declaration to be rejected")
	}
}

func TestFunctionCallArgumentWidensToParameterType(t *testing.T) {
	res := mustCheck(t, `long f(long a) { return a; }
int main() { return f(1); }`)
	ret := res.Functions[1].Body.Items[0].Stmt.(*ast.Return)
	call := ret.Expr.(*ast.Convert).Inner.(*ast.FunctionCall)
	arg, ok := call.Args[0].(*ast.Convert)
	if !ok {
		t.Fatalf("expected the int literal argument to be wrapped in a Convert to long, got %#v", call.Args[0])
	}
	if !arg.AttachedType().Equal(ast.Long) {
		t.Errorf("expected the argument's converted type to be long, got %q", arg.AttachedType().Name)
	}
}
