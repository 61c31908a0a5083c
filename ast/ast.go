// Package ast defines the tree shapes produced by the parser and
// consumed by the validator, type-checker, constant evaluator, and code
// generator: the Expression and Statement sum types, the type
// descriptor, and the top-level program shapes.
package ast

// Category is the fast-path type-equality discriminant for a Type: two
// types with different categories can never be equal, so comparisons
// check category before falling back to the canonical name.
type Category int

const (
	Int Category = iota
	UnsignedInt
	Double
)

// Type is a type descriptor: { category, name, size, alignment }. Two
// type descriptors are equal iff their canonical names match.
type Type struct {
	Category  Category
	Name      string // canonical spelling, e.g. "int", "unsigned long"
	Size      int    // bytes
	Alignment int    // bytes
}

// Equal reports whether t and other denote the same type, by canonical
// name. Category is only a fast-path inequality short-circuit.
func (t Type) Equal(other Type) bool {
	if t.Category != other.Category {
		return false
	}
	return t.Name == other.Name
}

// IsInteger reports whether t's category is one of the integer
// categories (signed or unsigned).
func (t Type) IsInteger() bool {
	return t.Category == Int || t.Category == UnsignedInt
}

// IsNumeric reports whether t is any arithmetic type this front-end
// recognises (integer or double).
func (t Type) IsNumeric() bool {
	return true // Int, UnsignedInt and Double are the only Categories.
}

// Well-known canonical integer types. Size/alignment follow the System V
// x86-64 ABI's LP64 data model.
var (
	Char              = Type{Int, "char", 1, 1}
	SignedChar        = Type{Int, "signed char", 1, 1}
	UnsignedChar      = Type{UnsignedInt, "unsigned char", 1, 1}
	Short             = Type{Int, "short", 2, 2}
	UnsignedShort     = Type{UnsignedInt, "unsigned short", 2, 2}
	Int32             = Type{Int, "int", 4, 4}
	UnsignedInt32     = Type{UnsignedInt, "unsigned int", 4, 4}
	Long              = Type{Int, "long", 8, 8}
	UnsignedLong      = Type{UnsignedInt, "unsigned long", 8, 8}
	LongLong          = Type{Int, "long long", 8, 8}
	UnsignedLongLong  = Type{UnsignedInt, "unsigned long long", 8, 8}
	DoubleType        = Type{Double, "double", 8, 8}
)

// UnaryOp enumerates the unary operator spellings this subset supports.
type UnaryOp int

const (
	UnaryPlus UnaryOp = iota
	UnaryMinus
	LogicalNot
	BitwiseNot
	PreIncrement
	PreDecrement
	PostIncrement
	PostDecrement
)

// Fixity distinguishes prefix `++x` from postfix `x++`.
type Fixity int

const (
	Prefix Fixity = iota
	Postfix
)

// BinaryOp enumerates every binary operator, including the assignment
// and comma operators, which are ordinary binary nodes here.
type BinaryOp int

const (
	Add BinaryOp = iota
	Subtract
	Multiply
	Divide
	Modulo
	ShiftLeft
	ShiftRight
	Less
	LessEqual
	Greater
	GreaterEqual
	Equal
	NotEqual
	BitwiseAnd
	BitwiseXor
	BitwiseOr
	LogicalAnd
	LogicalOr
	Assignment
	Comma
)

// Expression is the sum type over every expression node kind. Each
// concrete node embeds exprBase to carry its (optional until
// type-checking runs) attached type, and implements exprNode() as a
// marker method so the set of permissible Expression implementations is
// closed to this package.
type Expression interface {
	exprNode()
	AttachedType() *Type
	SetAttachedType(Type)
	Line() int
}

type exprBase struct {
	line int
	typ  *Type
}

func (e *exprBase) exprNode()                  {}
func (e *exprBase) AttachedType() *Type        { return e.typ }
func (e *exprBase) SetAttachedType(t Type)     { e.typ = &t }
func (e *exprBase) Line() int                  { return e.line }

// Grouping preserves parenthesisation purely for printing; it carries no
// semantics of its own beyond its inner expression.
type Grouping struct {
	exprBase
	Expr Expression
}

// ConstantValue is a tagged union over the numeric literal kinds this
// subset's constant evaluator and code generator operate on. It has
// only the integer arms Int64/Uint64: floating point codegen is out of
// scope, so there is no floating-point arm.
type ConstantValue struct {
	IsUnsigned bool
	Int64      int64
	Uint64     uint64
}

// Constant is an already-evaluated literal value.
type Constant struct {
	exprBase
	Value ConstantValue
}

// Identifier is a reference to a variable (local or global) by name.
type Identifier struct {
	exprBase
	Name string
}

// Unary wraps one operand with a prefix or postfix unary operator.
type Unary struct {
	exprBase
	Fixity  Fixity
	Op      UnaryOp
	Operand Expression
}

// Binary wraps two operands with a binary operator, including the
// assignment and comma operators.
type Binary struct {
	exprBase
	Op    BinaryOp
	Left  Expression
	Right Expression
}

// Ternary is the `cond ? if_true : if_false` conditional expression.
type Ternary struct {
	exprBase
	Cond    Expression
	IfTrue  Expression
	IfFalse Expression
}

// FunctionCall is a call to a named function with positional arguments.
// ParamTypes is filled in by the validator once the callee's signature
// is resolved, so the type-checker can convert each argument to its
// matching parameter type without re-resolving the call.
type FunctionCall struct {
	exprBase
	Name       string
	Args       []Expression
	ParamTypes []Type
}

// Convert is synthesised only by the type-checker: it represents an
// implicit value conversion of Inner to the node's own AttachedType, so
// that the back-end never has to implicitly widen a value itself.
type Convert struct {
	exprBase
	Inner Expression
}

func NewGrouping(line int, e Expression) *Grouping   { return &Grouping{exprBase{line, nil}, e} }
func NewIdentifier(line int, name string) *Identifier { return &Identifier{exprBase{line, nil}, name} }
func NewConstantInt(line int, v int64) *Constant {
	return &Constant{exprBase{line, nil}, ConstantValue{Int64: v}}
}
func NewConstantUint(line int, v uint64) *Constant {
	return &Constant{exprBase{line, nil}, ConstantValue{IsUnsigned: true, Uint64: v}}
}
func NewUnary(line int, fixity Fixity, op UnaryOp, operand Expression) *Unary {
	return &Unary{exprBase{line, nil}, fixity, op, operand}
}
func NewBinary(line int, op BinaryOp, left, right Expression) *Binary {
	return &Binary{exprBase{line, nil}, op, left, right}
}
func NewTernary(line int, cond, ifTrue, ifFalse Expression) *Ternary {
	return &Ternary{exprBase{line, nil}, cond, ifTrue, ifFalse}
}
func NewFunctionCall(line int, name string, args []Expression) *FunctionCall {
	return &FunctionCall{exprBase{line, nil}, name, args, nil}
}
func NewConvert(target Type, inner Expression) *Convert {
	c := &Convert{exprBase{inner.Line(), nil}, inner}
	c.SetAttachedType(target)
	return c
}

// Statement is the sum type over every statement node kind.
type Statement interface {
	stmtNode()
}

type stmtBase struct{ line int }

func (s *stmtBase) stmtNode() {}
func (s *stmtBase) Line() int { return s.line }

// Return is a `return expr;` statement; Expr is nil for a bare `return;`,
// which the type-checker accepts whatever the function's return type.
type Return struct {
	stmtBase
	Expr Expression
}

// ExpressionStatement is an expression evaluated for its side effects;
// Expr is nil for a bare `;`.
type ExpressionStatement struct {
	stmtBase
	Expr Expression
}

// If is `if (Cond) Then [else Else]`.
type If struct {
	stmtBase
	Cond Expression
	Then Statement
	Else Statement // nil if there is no else-arm
}

// BlockItem is either a Statement or a Declaration, stored inside a
// Compound's Items in source order.
type BlockItem struct {
	Stmt  Statement
	Decl  *Declaration
}

// Compound is a `{ ... }` block; each item is either a nested statement
// or a local declaration.
type Compound struct {
	stmtBase
	Items []BlockItem
}

func NewReturn(line int, expr Expression) *Return { return &Return{stmtBase{line}, expr} }
func NewExpressionStatement(line int, expr Expression) *ExpressionStatement {
	return &ExpressionStatement{stmtBase{line}, expr}
}
func NewIf(line int, cond Expression, then Statement, els Statement) *If {
	return &If{stmtBase{line}, cond, then, els}
}
func NewCompound(line int, items []BlockItem) *Compound { return &Compound{stmtBase{line}, items} }

// Declaration is `{ type, name, initializer? }`; local declarations live
// inside a Compound's Items, global declarations are top-level Items.
type Declaration struct {
	Line        int
	Type        Type
	Name        string
	Initializer Expression // nil if uninitialised
}

// Param is one entry of a function's parameter list; Name is empty for
// the type-only form accepted by a bare declaration.
type Param struct {
	Type Type
	Name string
}

// FunctionDefinition is `{ return_type, name, params, body }`.
type FunctionDefinition struct {
	Line       int
	ReturnType Type
	Name       string
	Params     []Param
	Body       *Compound
}

// FunctionDeclaration is `{ return_type, name, params }` with no names
// required on the parameters.
type FunctionDeclaration struct {
	Line       int
	ReturnType Type
	Name       string
	Params     []Param
}

// TopLevelKind discriminates the three shapes a Program's Items can take.
type TopLevelKind int

const (
	TopFunctionDeclaration TopLevelKind = iota
	TopFunctionDefinition
	TopGlobalDeclaration
)

// TopLevelItem is one top-level construct of the program, in source
// order; exactly one of FuncDecl/FuncDef/GlobalDecl is non-nil,
// discriminated by Kind.
type TopLevelItem struct {
	Kind       TopLevelKind
	FuncDecl   *FunctionDeclaration
	FuncDef    *FunctionDefinition
	GlobalDecl *Declaration
}

// Program is the ordered sequence of top-level items the parser produces.
type Program struct {
	Items []TopLevelItem
}

// ValidatedGlobal is `{ type, name, folded_constant }`: the post-semantic
// -analysis shape of a global, after declarations without a definition
// have been turned into zero-initialised definitions and all
// initialisers folded to a literal value.
type ValidatedGlobal struct {
	Type           Type
	Name           string
	FoldedConstant ConstantValue
}

// ValidatedProgram is the ordered sequence of function definitions and
// global definitions: definitions only, deduplicated, with folded
// global initialisers.
type ValidatedProgram struct {
	Functions []*FunctionDefinition
	Globals   []*ValidatedGlobal
}
