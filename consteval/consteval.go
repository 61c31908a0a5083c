// Package consteval implements a pure recursive evaluator that folds a
// static initializer's expression tree down to a single literal value.
// It excludes ++/--/=, calls, and identifiers. && / || and ?: evaluate
// only the operands that decide the result, so `0 && (1 / 0)` folds to 0.
package consteval

import (
	"github.com/pkg/errors"

	"github.com/student/cc0/ast"
)

// Evaluate folds e to a host int64, reinterpreting the bit pattern for
// unsigned values. It fails on any construct not permitted in a
// compile-time constant expression.
func Evaluate(e ast.Expression) (int64, error) {
	switch n := e.(type) {
	case *ast.Constant:
		if n.Value.IsUnsigned {
			return int64(n.Value.Uint64), nil
		}
		return n.Value.Int64, nil

	case *ast.Grouping:
		return Evaluate(n.Expr)

	case *ast.Convert:
		v, err := Evaluate(n.Inner)
		if err != nil {
			return 0, err
		}
		return truncate(v, *n.AttachedType()), nil

	case *ast.Identifier:
		return 0, errors.Errorf("line %d: identifier reference %q is not supported in a compile-time expression", n.Line(), n.Name)

	case *ast.FunctionCall:
		return 0, errors.Errorf("line %d: function calls are not supported in a compile-time expression", n.Line())

	case *ast.Unary:
		switch n.Op {
		case ast.PreIncrement, ast.PreDecrement, ast.PostIncrement, ast.PostDecrement:
			return 0, errors.Errorf("line %d: '++'/'--' are not supported in compile-time expressions", n.Line())
		}
		v, err := Evaluate(n.Operand)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case ast.UnaryPlus:
			return v, nil
		case ast.UnaryMinus:
			return -v, nil
		case ast.LogicalNot:
			return boolToInt(v == 0), nil
		case ast.BitwiseNot:
			return ^v, nil
		}
		return 0, errors.Errorf("unreachable: unknown unary operator")

	case *ast.Binary:
		if n.Op == ast.Assignment {
			return 0, errors.Errorf("line %d: assignment is not supported in a compile-time expression", n.Line())
		}
		l, err := Evaluate(n.Left)
		if err != nil {
			return 0, err
		}
		if n.Op == ast.LogicalAnd && l == 0 {
			return 0, nil
		}
		if n.Op == ast.LogicalOr && l != 0 {
			return 1, nil
		}
		r, err := Evaluate(n.Right)
		if err != nil {
			return 0, err
		}
		switch n.Op {
		case ast.Multiply:
			return l * r, nil
		case ast.Divide:
			if r == 0 {
				return 0, errors.Errorf("line %d: division by zero in constant expression", n.Line())
			}
			return l / r, nil
		case ast.Modulo:
			if r == 0 {
				return 0, errors.Errorf("line %d: modulo by zero in constant expression", n.Line())
			}
			return l % r, nil
		case ast.Add:
			return l + r, nil
		case ast.Subtract:
			return l - r, nil
		case ast.ShiftLeft:
			return l << uint(r), nil
		case ast.ShiftRight:
			return l >> uint(r), nil
		case ast.Less:
			return boolToInt(l < r), nil
		case ast.LessEqual:
			return boolToInt(l <= r), nil
		case ast.Greater:
			return boolToInt(l > r), nil
		case ast.GreaterEqual:
			return boolToInt(l >= r), nil
		case ast.Equal:
			return boolToInt(l == r), nil
		case ast.NotEqual:
			return boolToInt(l != r), nil
		case ast.BitwiseAnd:
			return l & r, nil
		case ast.BitwiseXor:
			return l ^ r, nil
		case ast.BitwiseOr:
			return l | r, nil
		case ast.LogicalAnd:
			return boolToInt(l != 0 && r != 0), nil
		case ast.LogicalOr:
			return boolToInt(l != 0 || r != 0), nil
		case ast.Comma:
			// Both sides are evaluated above regardless (no side
			// effects are possible in this subset's compile-time
			// expressions), so using comma here is pointless but
			// still valid.
			return r, nil
		}
		return 0, errors.Errorf("unreachable: unknown binary operator")

	case *ast.Ternary:
		c, err := Evaluate(n.Cond)
		if err != nil {
			return 0, err
		}
		if c != 0 {
			return Evaluate(n.IfTrue)
		}
		return Evaluate(n.IfFalse)
	}
	return 0, errors.Errorf("unreachable: unknown expression kind in constant evaluation")
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// truncate reinterprets v as if stored in a t-sized, t-signed object,
// so that e.g. `char c = 300;` folds to 44 (300 mod 256 as a signed
// byte).
func truncate(v int64, t ast.Type) int64 {
	if t.Size <= 0 || t.Size >= 8 {
		return v
	}
	bits := uint(t.Size * 8)
	mask := int64(1)<<bits - 1
	masked := v & mask
	if t.Category == ast.Int {
		signBit := int64(1) << (bits - 1)
		if masked&signBit != 0 {
			masked -= int64(1) << bits
		}
	}
	return masked
}

// FoldGlobal evaluates decl's initializer and returns the resulting
// tagged constant value, truncated/reinterpreted for decl's declared
// type.
func FoldGlobal(decl *ast.Declaration) (ast.ConstantValue, error) {
	v, err := Evaluate(decl.Initializer)
	if err != nil {
		return ast.ConstantValue{}, err
	}
	v = truncate(v, decl.Type)
	if decl.Type.Category == ast.UnsignedInt {
		return ast.ConstantValue{IsUnsigned: true, Uint64: uint64(v)}, nil
	}
	return ast.ConstantValue{Int64: v}, nil
}
