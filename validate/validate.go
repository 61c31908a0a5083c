// Package validate implements name resolution and scope validation
// over the parser's untyped ast.Program, producing the intermediate
// form the type-checker and constant evaluator consume.
package validate

import (
	"github.com/pkg/errors"

	"github.com/student/cc0/ast"
	"github.com/student/cc0/scope"
)

// funcSig is the `name -> signature` value recorded for the function
// declaration/definition tables.
type funcSig struct {
	ReturnType ast.Type
	ParamTypes []ast.Type
}

func (f funcSig) equal(other funcSig) bool {
	if !f.ReturnType.Equal(other.ReturnType) || len(f.ParamTypes) != len(other.ParamTypes) {
		return false
	}
	for i := range f.ParamTypes {
		if !f.ParamTypes[i].Equal(other.ParamTypes[i]) {
			return false
		}
	}
	return true
}

// Result is the validator's output: function definitions and global
// declarations in source order, with every identifier/function-call
// reference in their expression trees resolved and type-attached.
// Globals without an explicit initializer anywhere in the translation
// unit get a zero-valued one here: a declaration with no matching
// definition becomes a zero-initialised definition.
type Result struct {
	Functions []*ast.FunctionDefinition
	Globals   []*ast.Declaration
}

type validator struct {
	funcDecls map[string]funcSig
	funcDefs  map[string]funcSig
	funcOrder []string

	globals      map[string]*ast.Declaration
	globalOrder  []string
	globalTypes  map[string]ast.Type

	functions []*ast.FunctionDefinition
}

// Validate runs the full validator pass over prog.
func Validate(prog *ast.Program) (*Result, error) {
	v := &validator{
		funcDecls:   map[string]funcSig{},
		funcDefs:    map[string]funcSig{},
		globals:     map[string]*ast.Declaration{},
		globalTypes: map[string]ast.Type{},
	}

	for _, item := range prog.Items {
		if err := v.registerTopLevel(item); err != nil {
			return nil, err
		}
	}

	for _, def := range v.functions {
		if err := v.validateFunctionBody(def); err != nil {
			return nil, err
		}
	}

	var globals []*ast.Declaration
	for _, name := range v.globalOrder {
		decl := v.globals[name]
		if decl.Initializer == nil {
			decl.Initializer = zeroConstant(decl.Type)
		} else if err := v.attachNames(decl.Initializer, nil, ""); err != nil {
			return nil, err
		}
		globals = append(globals, decl)
	}

	return &Result{Functions: v.functions, Globals: globals}, nil
}

func zeroConstant(t ast.Type) ast.Expression {
	if t.Category == ast.UnsignedInt {
		return ast.NewConstantUint(0, 0)
	}
	return ast.NewConstantInt(0, 0)
}

func (v *validator) registerTopLevel(item ast.TopLevelItem) error {
	switch item.Kind {
	case ast.TopFunctionDeclaration:
		decl := item.FuncDecl
		sig := funcSig{decl.ReturnType, paramTypes(decl.Params)}
		if _, isGlobal := v.globals[decl.Name]; isGlobal {
			return errors.Errorf("line %d: %q is declared as both a function and a global variable", decl.Line, decl.Name)
		}
		if existing, ok := v.funcDecls[decl.Name]; ok && !existing.equal(sig) {
			return errors.Errorf("line %d: conflicting redeclaration of function %q", decl.Line, decl.Name)
		}
		if existing, ok := v.funcDefs[decl.Name]; ok && !existing.equal(sig) {
			return errors.Errorf("line %d: declaration of %q does not match its definition", decl.Line, decl.Name)
		}
		v.funcDecls[decl.Name] = sig
		return nil

	case ast.TopFunctionDefinition:
		def := item.FuncDef
		sig := funcSig{def.ReturnType, paramTypes(def.Params)}
		if _, isGlobal := v.globals[def.Name]; isGlobal {
			return errors.Errorf("line %d: %q is defined as both a function and a global variable", def.Line, def.Name)
		}
		if _, ok := v.funcDefs[def.Name]; ok {
			return errors.Errorf("line %d: function %q is defined more than once", def.Line, def.Name)
		}
		if existing, ok := v.funcDecls[def.Name]; ok && !existing.equal(sig) {
			return errors.Errorf("line %d: definition of %q does not match its earlier declaration", def.Line, def.Name)
		}
		v.funcDefs[def.Name] = sig
		v.functions = append(v.functions, def)
		return nil

	case ast.TopGlobalDeclaration:
		decl := item.GlobalDecl
		if _, isFunc := v.funcDecls[decl.Name]; isFunc {
			return errors.Errorf("line %d: %q is declared as both a global variable and a function", decl.Line, decl.Name)
		}
		if _, isFunc := v.funcDefs[decl.Name]; isFunc {
			return errors.Errorf("line %d: %q is declared as both a global variable and a function", decl.Line, decl.Name)
		}
		if existing, ok := v.globals[decl.Name]; ok {
			if !existing.Type.Equal(decl.Type) {
				return errors.Errorf("line %d: conflicting redeclaration of global %q", decl.Line, decl.Name)
			}
			if decl.Initializer != nil {
				if existing.Initializer != nil {
					return errors.Errorf("line %d: global %q redefined with a conflicting initializer", decl.Line, decl.Name)
				}
				existing.Initializer = decl.Initializer
			}
			return nil
		}
		v.globals[decl.Name] = decl
		v.globalTypes[decl.Name] = decl.Type
		v.globalOrder = append(v.globalOrder, decl.Name)
		return nil
	}
	return errors.Errorf("unreachable: unknown top level item kind")
}

func paramTypes(params []ast.Param) []ast.Type {
	out := make([]ast.Type, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

// validateFunctionBody pushes one scope for the function's parameters
// (merged with the body's own top-level compound, per C semantics) and
// walks the body, resolving every identifier and call, and checking that
// a local is never redeclared within the same scope even though it may
// freely shadow an outer one.
func (v *validator) validateFunctionBody(def *ast.FunctionDefinition) error {
	scopes := scope.New[ast.Type]()
	scopes.Push()
	for _, param := range def.Params {
		if param.Name == "" {
			continue
		}
		if !scopes.DeclareInCurrent(param.Name, param.Type) {
			return errors.Errorf("line %d: duplicate parameter name %q in function %q", def.Line, param.Name, def.Name)
		}
	}

	if err := v.validateCompoundItems(def.Body.Items, scopes); err != nil {
		return err
	}
	scopes.Pop()
	return nil
}

func (v *validator) validateCompound(c *ast.Compound, scopes *scope.Stack[ast.Type]) error {
	scopes.Push()
	if err := v.validateCompoundItems(c.Items, scopes); err != nil {
		return err
	}
	scopes.Pop()
	return nil
}

func (v *validator) validateCompoundItems(items []ast.BlockItem, scopes *scope.Stack[ast.Type]) error {
	for _, item := range items {
		if item.Decl != nil {
			decl := item.Decl
			if scopes.ContainsInCurrent(decl.Name) {
				return errors.Errorf("line %d: %q is already declared in this scope", decl.Line, decl.Name)
			}
			if decl.Initializer != nil {
				if err := v.attachNames(decl.Initializer, scopes, ""); err != nil {
					return err
				}
			}
			scopes.DeclareInCurrent(decl.Name, decl.Type)
			continue
		}
		if err := v.validateStatement(item.Stmt, scopes); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateStatement(stmt ast.Statement, scopes *scope.Stack[ast.Type]) error {
	switch s := stmt.(type) {
	case *ast.Compound:
		return v.validateCompound(s, scopes)
	case *ast.Return:
		if s.Expr != nil {
			return v.attachNames(s.Expr, scopes, "")
		}
		return nil
	case *ast.ExpressionStatement:
		if s.Expr != nil {
			return v.attachNames(s.Expr, scopes, "")
		}
		return nil
	case *ast.If:
		if err := v.attachNames(s.Cond, scopes, ""); err != nil {
			return err
		}
		if err := v.validateStatement(s.Then, scopes); err != nil {
			return err
		}
		if s.Else != nil {
			return v.validateStatement(s.Else, scopes)
		}
		return nil
	}
	return errors.Errorf("unreachable: unknown statement kind")
}

// attachNames resolves every identifier reference and function call
// inside e, attaching the referenced variable's or function's type to
// the node. scopes is nil when validating a global initializer, which
// has no local bindings of its own.
func (v *validator) attachNames(e ast.Expression, scopes *scope.Stack[ast.Type], _ string) error {
	switch n := e.(type) {
	case *ast.Constant:
		return nil
	case *ast.Grouping:
		return v.attachNames(n.Expr, scopes, "")
	case *ast.Identifier:
		if scopes != nil {
			if t, ok := scopes.Lookup(n.Name); ok {
				n.SetAttachedType(t)
				return nil
			}
		}
		if t, ok := v.globalTypes[n.Name]; ok {
			n.SetAttachedType(t)
			return nil
		}
		return errors.Errorf("line %d: use of undeclared identifier %q", n.Line(), n.Name)
	case *ast.Unary:
		return v.attachNames(n.Operand, scopes, "")
	case *ast.Binary:
		if err := v.attachNames(n.Left, scopes, ""); err != nil {
			return err
		}
		return v.attachNames(n.Right, scopes, "")
	case *ast.Ternary:
		if err := v.attachNames(n.Cond, scopes, ""); err != nil {
			return err
		}
		if err := v.attachNames(n.IfTrue, scopes, ""); err != nil {
			return err
		}
		return v.attachNames(n.IfFalse, scopes, "")
	case *ast.FunctionCall:
		sig, ok := v.funcDefs[n.Name]
		if !ok {
			sig, ok = v.funcDecls[n.Name]
		}
		if !ok {
			return errors.Errorf("line %d: call to undeclared function %q", n.Line(), n.Name)
		}
		if len(n.Args) != len(sig.ParamTypes) {
			return errors.Errorf("line %d: %q expects %d argument(s), found %d", n.Line(), n.Name, len(sig.ParamTypes), len(n.Args))
		}
		n.SetAttachedType(sig.ReturnType)
		n.ParamTypes = sig.ParamTypes
		for _, arg := range n.Args {
			if err := v.attachNames(arg, scopes, ""); err != nil {
				return err
			}
		}
		return nil
	case *ast.Convert:
		return v.attachNames(n.Inner, scopes, "")
	}
	return errors.Errorf("unreachable: unknown expression kind")
}
