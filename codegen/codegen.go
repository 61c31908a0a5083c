// Package codegen lowers a validated, typed ast.ValidatedProgram to
// x86-64 AT&T assembly text for the System V ABI on Linux, as a stack
// machine where every expression evaluation leaves exactly one 64-bit
// value on the runtime stack.
package codegen

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/student/cc0/ast"
	"github.com/student/cc0/scope"
)

// calleeSaved lists the registers the prologue preserves even though
// this simple generator never allocates them itself. They are restored
// from fixed %rbp-relative slots rather than via pop, so that a
// `return` deep inside nested blocks can jump straight to the shared
// epilogue regardless of how many expression temporaries currently sit
// above them on the stack.
var calleeSaved = []string{"%rbx", "%r12", "%r13", "%r14", "%r15"}

// argRegs lists the System V integer argument registers, in order.
var argRegs = []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

// prologueBytes is the stack space the prologue's pushes of %rbp (8
// bytes, not counted here since it defines %rbp itself) and the five
// callee-saved registers consume; current_rbp_offset starts here.
const prologueBytes = len("x")*0 + 8*5

// Generator holds the mutable state a single translation unit's code
// generation pass needs: the output buffer, the monotonic short-circuit
// /conditional label counter, and the current function's frame
// bookkeeping.
type Generator struct {
	out strings.Builder

	labelCounter int

	scopes           *scope.Stack[int]
	currentRbpOffset int
	currentFunc      string
}

// Generate lowers prog to a complete assembly-language text.
func Generate(prog *ast.ValidatedProgram) (string, error) {
	g := &Generator{}
	g.emitDataSection(prog.Globals)
	g.out.WriteString("\t.text\n")
	for _, fn := range prog.Functions {
		if err := g.genFunction(fn); err != nil {
			return "", err
		}
	}
	return g.out.String(), nil
}

func (g *Generator) emitf(format string, args ...interface{}) {
	fmt.Fprintf(&g.out, format, args...)
}

func (g *Generator) label(prefix string) string {
	g.labelCounter++
	return fmt.Sprintf(".L%s%d", prefix, g.labelCounter)
}

func (g *Generator) emitDataSection(globals []*ast.ValidatedGlobal) {
	if len(globals) == 0 {
		return
	}
	g.out.WriteString("\t.data\n")
	for _, gl := range globals {
		g.emitf("%s:\n", gl.Name)
		if gl.Type.Category == ast.UnsignedInt {
			g.emitf("\t.quad %d\n", gl.FoldedConstant.Uint64)
		} else {
			g.emitf("\t.quad %d\n", gl.FoldedConstant.Int64)
		}
	}
}

// genFunction emits a complete function: prologue, body, shared
// return-label epilogue.
func (g *Generator) genFunction(fn *ast.FunctionDefinition) error {
	g.scopes = scope.New[int]()
	g.scopes.Push()
	g.currentRbpOffset = prologueBytes
	g.currentFunc = fn.Name

	g.emitf("\t.globl %s\n", fn.Name)
	g.emitf("%s:\n", fn.Name)
	g.emitf("\tpushq %%rbp\n")
	g.emitf("\tmovq %%rsp, %%rbp\n")
	for _, reg := range calleeSaved {
		g.emitf("\tpushq %s\n", reg)
	}

	if len(fn.Params) > len(argRegs) {
		return errors.Errorf("line %d: function %q: more than %d parameters is not supported", fn.Line, fn.Name, len(argRegs))
	}
	for i, param := range fn.Params {
		g.currentRbpOffset += 8
		g.emitf("\tpushq %s\n", argRegs[i])
		if param.Name != "" {
			g.scopes.DeclareInCurrent(param.Name, g.currentRbpOffset)
		}
	}

	if err := g.genBlockItems(fn.Body.Items); err != nil {
		return err
	}
	g.scopes.Pop()

	retLabel := g.returnLabel()
	g.emitf("%s:\n", retLabel)
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		g.emitf("\tmovq -%d(%%rbp), %s\n", (i+1)*8, calleeSaved[i])
	}
	g.emitf("\tmovq %%rbp, %%rsp\n")
	g.emitf("\tpopq %%rbp\n")
	g.emitf("\tret\n")
	return nil
}

func (g *Generator) returnLabel() string {
	return ".Lret_" + g.currentFunc
}

// genBlockItems emits each local declaration's initializer push (which
// doubles as that local's frame storage) or nested statement, in order,
// without opening a fresh generator scope itself: the caller decides
// whether this item list shares its enclosing scope (a function's own
// top-level body) or needs its own (a nested { } block, via genStatement
// below).
func (g *Generator) genBlockItems(items []ast.BlockItem) error {
	for _, item := range items {
		if item.Decl != nil {
			if item.Decl.Initializer != nil {
				if err := g.genExpr(item.Decl.Initializer); err != nil {
					return err
				}
			} else {
				g.emitf("\tpushq $0\n")
			}
			g.currentRbpOffset += 8
			g.scopes.DeclareInCurrent(item.Decl.Name, g.currentRbpOffset)
			continue
		}
		if err := g.genStatement(item.Stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) genStatement(stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.Compound:
		entry := g.currentRbpOffset
		g.scopes.Push()
		if err := g.genBlockItems(s.Items); err != nil {
			return err
		}
		g.scopes.Pop()
		if delta := g.currentRbpOffset - entry; delta > 0 {
			g.emitf("\taddq $%d, %%rsp\n", delta)
		}
		g.currentRbpOffset = entry
		return nil

	case *ast.Return:
		if s.Expr != nil {
			if err := g.genExpr(s.Expr); err != nil {
				return err
			}
			g.emitf("\tpopq %%rax\n")
		}
		g.emitf("\tjmp %s\n", g.returnLabel())
		return nil

	case *ast.ExpressionStatement:
		if s.Expr == nil {
			return nil
		}
		if err := g.genExpr(s.Expr); err != nil {
			return err
		}
		g.emitf("\tpopq %%rax\n") // value discarded: evaluated for side effects only
		return nil

	case *ast.If:
		if err := g.genExpr(s.Cond); err != nil {
			return err
		}
		g.emitf("\tpopq %%rax\n")
		g.emitf("\tcmpq $0, %%rax\n")
		elseLabel := g.label("else")
		g.emitf("\tje %s\n", elseLabel)
		if err := g.genStatement(s.Then); err != nil {
			return err
		}
		if s.Else != nil {
			endLabel := g.label("endif")
			g.emitf("\tjmp %s\n", endLabel)
			g.emitf("%s:\n", elseLabel)
			if err := g.genStatement(s.Else); err != nil {
				return err
			}
			g.emitf("%s:\n", endLabel)
		} else {
			g.emitf("%s:\n", elseLabel)
		}
		return nil
	}
	return errors.Errorf("unreachable: unknown statement kind in code generation")
}

// lvalueAddr resolves e (an Identifier, possibly wrapped in Grouping, as
// the parser's lvalue validator guarantees) to its %rbp- or
// %rip-relative memory operand.
func (g *Generator) lvalueAddr(e ast.Expression) (string, error) {
	switch v := e.(type) {
	case *ast.Identifier:
		if off, ok := g.scopes.Lookup(v.Name); ok {
			return fmt.Sprintf("-%d(%%rbp)", off), nil
		}
		return v.Name + "(%rip)", nil
	case *ast.Grouping:
		return g.lvalueAddr(v.Expr)
	}
	return "", errors.Errorf("line %d: internal error: invalid lvalue reached code generation", e.Line())
}

// genExpr emits e's fixed instruction sequence: operand(s) compiled
// recursively, leaving their results pushed, then a pop/compute/push
// triple, so that genExpr itself always leaves exactly one value pushed.
func (g *Generator) genExpr(e ast.Expression) error {
	switch n := e.(type) {
	case *ast.Constant:
		if n.Value.IsUnsigned {
			g.emitf("\tmovq $%d, %%rcx\n", n.Value.Uint64)
		} else {
			g.emitf("\tmovq $%d, %%rcx\n", n.Value.Int64)
		}
		g.emitf("\tpushq %%rcx\n")
		return nil

	case *ast.Identifier:
		addr, err := g.lvalueAddr(n)
		if err != nil {
			return err
		}
		g.emitf("\tmovq %s, %%rax\n", addr)
		g.emitf("\tpushq %%rax\n")
		return nil

	case *ast.Grouping:
		return g.genExpr(n.Expr)

	case *ast.Convert:
		// The back-end implements only the INT category and treats
		// every integer width as a uniform 64-bit stack slot, so an
		// implicit conversion between integer types costs no
		// instructions here: it already carries the correct runtime
		// representation. The category/size split exists for the
		// type-checker's bookkeeping, not for runtime layout.
		return g.genExpr(n.Inner)

	case *ast.Unary:
		return g.genUnary(n)

	case *ast.Binary:
		return g.genBinary(n)

	case *ast.Ternary:
		return g.genTernary(n)

	case *ast.FunctionCall:
		return g.genCall(n)
	}
	return errors.Errorf("unreachable: unknown expression kind in code generation")
}

func (g *Generator) genUnary(n *ast.Unary) error {
	switch n.Op {
	case ast.UnaryPlus:
		return g.genExpr(n.Operand)

	case ast.UnaryMinus:
		if err := g.genExpr(n.Operand); err != nil {
			return err
		}
		g.emitf("\tpopq %%rax\n")
		g.emitf("\tnegq %%rax\n")
		g.emitf("\tpushq %%rax\n")
		return nil

	case ast.LogicalNot:
		if err := g.genExpr(n.Operand); err != nil {
			return err
		}
		g.emitf("\tpopq %%rax\n")
		g.emitf("\tcmpq $0, %%rax\n")
		g.emitf("\tmovq $0, %%rax\n")
		g.emitf("\tsete %%al\n")
		g.emitf("\tpushq %%rax\n")
		return nil

	case ast.BitwiseNot:
		if err := g.genExpr(n.Operand); err != nil {
			return err
		}
		g.emitf("\tpopq %%rax\n")
		g.emitf("\tnotq %%rax\n")
		g.emitf("\tpushq %%rax\n")
		return nil

	case ast.PreIncrement, ast.PreDecrement:
		addr, err := g.lvalueAddr(n.Operand)
		if err != nil {
			return err
		}
		g.emitf("\tmovq %s, %%rax\n", addr)
		g.emitf("\t%s $1, %%rax\n", stepOp(n.Op == ast.PreIncrement))
		g.emitf("\tmovq %%rax, %s\n", addr)
		g.emitf("\tpushq %%rax\n")
		return nil

	case ast.PostIncrement, ast.PostDecrement:
		addr, err := g.lvalueAddr(n.Operand)
		if err != nil {
			return err
		}
		g.emitf("\tmovq %s, %%rax\n", addr)
		g.emitf("\tpushq %%rax\n")
		g.emitf("\tmovq %s, %%rcx\n", addr)
		g.emitf("\t%s $1, %%rcx\n", stepOp(n.Op == ast.PostIncrement))
		g.emitf("\tmovq %%rcx, %s\n", addr)
		return nil
	}
	return errors.Errorf("unreachable: unknown unary operator in code generation")
}

func stepOp(increment bool) string {
	if increment {
		return "addq"
	}
	return "subq"
}

func (g *Generator) genBinary(n *ast.Binary) error {
	switch n.Op {
	case ast.Assignment:
		if err := g.genExpr(n.Right); err != nil {
			return err
		}
		addr, err := g.lvalueAddr(n.Left)
		if err != nil {
			return err
		}
		g.emitf("\tpopq %%rax\n")
		g.emitf("\tmovq %%rax, %s\n", addr)
		g.emitf("\tpushq %%rax\n")
		return nil

	case ast.Comma:
		if err := g.genExpr(n.Left); err != nil {
			return err
		}
		g.emitf("\tpopq %%rax\n") // left's value is discarded
		return g.genExpr(n.Right)

	case ast.LogicalAnd:
		return g.genShortCircuit(n, false)
	case ast.LogicalOr:
		return g.genShortCircuit(n, true)
	}

	if err := g.genExpr(n.Left); err != nil {
		return err
	}
	if err := g.genExpr(n.Right); err != nil {
		return err
	}
	g.emitf("\tpopq %%rcx\n")
	g.emitf("\tpopq %%rax\n")

	unsigned := n.Left.AttachedType() != nil && n.Left.AttachedType().Category == ast.UnsignedInt

	switch n.Op {
	case ast.Add:
		g.emitf("\taddq %%rcx, %%rax\n")
	case ast.Subtract:
		g.emitf("\tsubq %%rcx, %%rax\n")
	case ast.Multiply:
		g.emitf("\timulq %%rcx, %%rax\n")
	case ast.Divide:
		g.genDivide(unsigned, false)
	case ast.Modulo:
		g.genDivide(unsigned, true)
	case ast.BitwiseAnd:
		g.emitf("\tandq %%rcx, %%rax\n")
	case ast.BitwiseXor:
		g.emitf("\txorq %%rcx, %%rax\n")
	case ast.BitwiseOr:
		g.emitf("\torq %%rcx, %%rax\n")
	case ast.ShiftLeft:
		g.emitf("\tsalq %%cl, %%rax\n")
	case ast.ShiftRight:
		if unsigned {
			g.emitf("\tshrq %%cl, %%rax\n")
		} else {
			g.emitf("\tsarq %%cl, %%rax\n")
		}
	case ast.Less, ast.LessEqual, ast.Greater, ast.GreaterEqual, ast.Equal, ast.NotEqual:
		g.emitf("\tcmpq %%rcx, %%rax\n")
		g.emitf("\tmovq $0, %%rax\n")
		g.emitf("\t%s %%al\n", setInstruction(n.Op, unsigned))
	default:
		return errors.Errorf("unreachable: unknown binary operator in code generation")
	}
	g.emitf("\tpushq %%rax\n")
	return nil
}

// genDivide emits %rdx:%rax division per the ABI, leaving the quotient
// (modulo=false) or remainder (modulo=true) in %rax.
func (g *Generator) genDivide(unsigned, modulo bool) {
	if unsigned {
		g.emitf("\txorq %%rdx, %%rdx\n")
		g.emitf("\tdivq %%rcx\n")
	} else {
		g.emitf("\tcqto\n")
		g.emitf("\tidivq %%rcx\n")
	}
	if modulo {
		g.emitf("\tmovq %%rdx, %%rax\n")
	}
}

func setInstruction(op ast.BinaryOp, unsigned bool) string {
	switch op {
	case ast.Less:
		if unsigned {
			return "setb"
		}
		return "setl"
	case ast.LessEqual:
		if unsigned {
			return "setbe"
		}
		return "setle"
	case ast.Greater:
		if unsigned {
			return "seta"
		}
		return "setg"
	case ast.GreaterEqual:
		if unsigned {
			return "setae"
		}
		return "setge"
	case ast.Equal:
		return "sete"
	case ast.NotEqual:
		return "setne"
	}
	return "sete"
}

// genShortCircuit emits && / || without evaluating the right operand
// when the left already determines the result. shortOnTrue is true
// for ||, false for &&.
func (g *Generator) genShortCircuit(n *ast.Binary, shortOnTrue bool) error {
	shortLabel := g.label("sc")
	endLabel := g.label("scend")

	jumpInsn := "je" // && : jump to short-circuit result when left is zero (false)
	if shortOnTrue {
		jumpInsn = "jne" // || : jump to short-circuit result when left is non-zero (true)
	}

	if err := g.genExpr(n.Left); err != nil {
		return err
	}
	g.emitf("\tpopq %%rax\n")
	g.emitf("\tcmpq $0, %%rax\n")
	g.emitf("\t%s %s\n", jumpInsn, shortLabel)

	if err := g.genExpr(n.Right); err != nil {
		return err
	}
	g.emitf("\tpopq %%rax\n")
	g.emitf("\tcmpq $0, %%rax\n")
	g.emitf("\t%s %s\n", jumpInsn, shortLabel)

	if shortOnTrue {
		g.emitf("\tmovq $0, %%rax\n")
	} else {
		g.emitf("\tmovq $1, %%rax\n")
	}
	g.emitf("\tjmp %s\n", endLabel)

	g.emitf("%s:\n", shortLabel)
	if shortOnTrue {
		g.emitf("\tmovq $1, %%rax\n")
	} else {
		g.emitf("\tmovq $0, %%rax\n")
	}

	g.emitf("%s:\n", endLabel)
	g.emitf("\tpushq %%rax\n")
	return nil
}

func (g *Generator) genTernary(n *ast.Ternary) error {
	if err := g.genExpr(n.Cond); err != nil {
		return err
	}
	g.emitf("\tpopq %%rax\n")
	g.emitf("\tcmpq $0, %%rax\n")
	elseLabel := g.label("telse")
	endLabel := g.label("tend")
	g.emitf("\tje %s\n", elseLabel)
	if err := g.genExpr(n.IfTrue); err != nil {
		return err
	}
	g.emitf("\tjmp %s\n", endLabel)
	g.emitf("%s:\n", elseLabel)
	if err := g.genExpr(n.IfFalse); err != nil {
		return err
	}
	g.emitf("%s:\n", endLabel)
	return nil
}

func (g *Generator) genCall(n *ast.FunctionCall) error {
	if len(n.Args) > len(argRegs) {
		return errors.Errorf("line %d: call to %q: more than %d arguments is not supported", n.Line(), n.Name, len(argRegs))
	}
	for _, arg := range n.Args {
		if err := g.genExpr(arg); err != nil {
			return err
		}
	}
	for i := len(n.Args) - 1; i >= 0; i-- {
		g.emitf("\tpopq %s\n", argRegs[i])
	}
	g.emitf("\tmovq $0, %%rax\n")
	g.emitf("\tcall %s\n", n.Name)
	g.emitf("\tpushq %%rax\n")
	return nil
}
