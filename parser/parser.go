// Package parser implements a Pratt expression parser integrated with
// a recursive-descent statement/declaration parser: tokens in, an
// untyped ast.Program out.
package parser

import (
	"github.com/pkg/errors"

	"github.com/student/cc0/ast"
	"github.com/student/cc0/lexer"
	"github.com/student/cc0/token"
)

// bindingPower is one operator's (l_bp, r_bp) pair in the precedence
// table. l_bp is compared against the enclosing call's min_bp to decide
// whether the operator is consumed at all; r_bp is the min_bp passed
// when recursing into the right-hand operand.
type bindingPower struct {
	l, r int
}

// infixTable holds every left-associative/right-associative binary
// operator's binding powers, C's precedence table from highest to
// lowest.
var infixTable = map[token.Type]bindingPower{
	token.ASTERISK: {25, 26},
	token.SLASH:    {25, 26},
	token.PERCENT:  {25, 26},

	token.PLUS:  {23, 24},
	token.MINUS: {23, 24},

	token.SHL: {21, 22},
	token.SHR: {21, 22},

	token.LT: {19, 20},
	token.LE: {19, 20},
	token.GT: {19, 20},
	token.GE: {19, 20},

	token.EQ: {17, 18},
	token.NE: {17, 18},

	token.AMP: {15, 16},

	token.CARET: {13, 14},

	token.PIPE: {11, 12},

	token.AND_AND: {9, 10},

	token.OR_OR: {7, 8},

	token.ASSIGN: {4, 3},

	token.COMMA: {1, 2},
}

// compoundAssignTable maps a compound-assignment token to the binary
// operator it desugars against: `a op= b` becomes `a = (a op b)`.
var compoundAssignTable = map[token.Type]ast.BinaryOp{
	token.PLUS_ASSIGN:   ast.Add,
	token.MINUS_ASSIGN:  ast.Subtract,
	token.TIMES_ASSIGN:  ast.Multiply,
	token.DIVIDE_ASSIGN: ast.Divide,
	token.MOD_ASSIGN:    ast.Modulo,
	token.AND_ASSIGN:    ast.BitwiseAnd,
	token.OR_ASSIGN:     ast.BitwiseOr,
	token.XOR_ASSIGN:    ast.BitwiseXor,
	token.SHL_ASSIGN:    ast.ShiftLeft,
	token.SHR_ASSIGN:    ast.ShiftRight,
}

var binaryOpFor = map[token.Type]ast.BinaryOp{
	token.PLUS:     ast.Add,
	token.MINUS:    ast.Subtract,
	token.ASTERISK: ast.Multiply,
	token.SLASH:    ast.Divide,
	token.PERCENT:  ast.Modulo,
	token.SHL:      ast.ShiftLeft,
	token.SHR:      ast.ShiftRight,
	token.LT:       ast.Less,
	token.LE:       ast.LessEqual,
	token.GT:       ast.Greater,
	token.GE:       ast.GreaterEqual,
	token.EQ:       ast.Equal,
	token.NE:       ast.NotEqual,
	token.AMP:      ast.BitwiseAnd,
	token.CARET:    ast.BitwiseXor,
	token.PIPE:     ast.BitwiseOr,
	token.AND_AND:  ast.LogicalAnd,
	token.OR_OR:    ast.LogicalOr,
	token.ASSIGN:   ast.Assignment,
	token.COMMA:    ast.Comma,
}

const (
	ternaryLBP  = 6
	ternaryRBP  = 5
	prefixRBP   = 27
	postfixLBP  = 28
	callArgMinBP = 3
	lowestBP    = 0
)

// Parser turns a token stream into an ast.Program. Type-specifier
// keyword combinations seen while parsing declarations are folded
// directly into the resulting ast.Type on each declaration node, so
// there is no separate symbol-info side table for the validator to
// consult.
type Parser struct {
	tokens []token.Token
	pos    int
}

// New tokenizes source and returns a Parser ready to parse it.
func New(source string) *Parser {
	return &Parser{tokens: lexer.Tokenize(source)}
}

// NewFromTokens builds a Parser directly from an already-scanned token
// stream, primarily for tests that want to exercise parsing in isolation
// from the lexer.
func NewFromTokens(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return token.Token{Type: token.EOF}
	}
	return p.tokens[idx]
}

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	if p.cur().Type != t {
		return token.Token{}, errors.Errorf("line %d: expected %s, found %q", p.cur().Line, t, p.cur().Literal)
	}
	return p.advance(), nil
}

// ParseProgram parses the whole token stream into an ast.Program.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.cur().Type != token.EOF {
		item, err := p.parseTopLevelItem()
		if err != nil {
			return nil, err
		}
		prog.Items = append(prog.Items, item)
	}
	return prog, nil
}

// --- top level ---------------------------------------------------------

func (p *Parser) parseTopLevelItem() (ast.TopLevelItem, error) {
	// double/float are type keywords: they parse here, and the
	// type-checker rejects the floating-point declaration they produce.
	if !token.IsTypeKeyword(p.cur().Type) {
		if err := p.rejectUnsupported(); err != nil {
			return ast.TopLevelItem{}, err
		}
	}

	line := p.cur().Line
	typ, err := p.parseType()
	if err != nil {
		return ast.TopLevelItem{}, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return ast.TopLevelItem{}, err
	}
	name := nameTok.Literal

	if p.cur().Type == token.LPAREN {
		return p.parseFunctionItem(line, typ, name)
	}

	// Global variable declaration.
	var init ast.Expression
	if p.cur().Type == token.ASSIGN {
		p.advance()
		init, err = p.parseExpr(lowestBP)
		if err != nil {
			return ast.TopLevelItem{}, err
		}
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return ast.TopLevelItem{}, err
	}
	return ast.TopLevelItem{
		Kind:       ast.TopGlobalDeclaration,
		GlobalDecl: &ast.Declaration{Line: line, Type: typ, Name: name, Initializer: init},
	}, nil
}

func (p *Parser) parseFunctionItem(line int, returnType ast.Type, name string) (ast.TopLevelItem, error) {
	if _, err := p.expect(token.LPAREN); err != nil {
		return ast.TopLevelItem{}, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return ast.TopLevelItem{}, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return ast.TopLevelItem{}, err
	}

	if p.cur().Type == token.SEMICOLON {
		p.advance()
		return ast.TopLevelItem{
			Kind:     ast.TopFunctionDeclaration,
			FuncDecl: &ast.FunctionDeclaration{Line: line, ReturnType: returnType, Name: name, Params: params},
		}, nil
	}

	body, err := p.parseCompound()
	if err != nil {
		return ast.TopLevelItem{}, err
	}
	if name == "main" && !hasTopLevelReturn(body) {
		body.Items = append(body.Items, ast.BlockItem{Stmt: ast.NewReturn(body.Line(), ast.NewConstantInt(body.Line(), 0))})
	}
	return ast.TopLevelItem{
		Kind:    ast.TopFunctionDefinition,
		FuncDef: &ast.FunctionDefinition{Line: line, ReturnType: returnType, Name: name, Params: params, Body: body},
	}, nil
}

func hasTopLevelReturn(body *ast.Compound) bool {
	for _, item := range body.Items {
		if _, ok := item.Stmt.(*ast.Return); ok {
			return true
		}
	}
	return false
}

func (p *Parser) parseParamList() ([]ast.Param, error) {
	var params []ast.Param
	if p.cur().Type == token.RPAREN {
		return params, nil
	}
	if p.cur().Type == token.VOID && p.peekAt(1).Type == token.RPAREN {
		p.advance()
		return params, nil
	}
	for {
		typ, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name := ""
		if p.cur().Type == token.IDENT {
			name = p.advance().Literal
		}
		params = append(params, ast.Param{Type: typ, Name: name})
		if p.cur().Type != token.COMMA {
			break
		}
		p.advance()
	}
	return params, nil
}

// --- types ---------------------------------------------------------

// typeCombos maps the sorted multiset of type-specifier keywords seen in
// a declaration to its canonical ast.Type.
var typeCombos = map[string]ast.Type{
	"char":                        ast.Char,
	"signed char":                 ast.SignedChar,
	"unsigned char":               ast.UnsignedChar,
	"short":                       ast.Short,
	"short int":                   ast.Short,
	"signed short":                ast.Short,
	"signed short int":            ast.Short,
	"unsigned short":              ast.UnsignedShort,
	"unsigned short int":          ast.UnsignedShort,
	"int":                         ast.Int32,
	"signed":                      ast.Int32,
	"signed int":                  ast.Int32,
	"unsigned":                    ast.UnsignedInt32,
	"unsigned int":                ast.UnsignedInt32,
	"long":                        ast.Long,
	"long int":                    ast.Long,
	"signed long":                 ast.Long,
	"signed long int":             ast.Long,
	"unsigned long":               ast.UnsignedLong,
	"unsigned long int":           ast.UnsignedLong,
	"long long":                   ast.LongLong,
	"long long int":               ast.LongLong,
	"signed long long":            ast.LongLong,
	"signed long long int":        ast.LongLong,
	"unsigned long long":          ast.UnsignedLongLong,
	"unsigned long long int":      ast.UnsignedLongLong,
	"void": {Category: ast.Int, Name: "void", Size: 0, Alignment: 0},
}

// parseType consumes a run of type-specifier keywords (with an optional
// leading/trailing `const`, ignored: this subset has no mutation
// analysis to make const meaningful) and resolves it to an ast.Type.
func (p *Parser) parseType() (ast.Type, error) {
	line := p.cur().Line
	var words []string
	isDouble := false
	for token.IsTypeKeyword(p.cur().Type) {
		t := p.advance()
		switch t.Type {
		case token.CONST:
			continue
		case token.DOUBLE, token.FLOAT:
			isDouble = true
			continue
		}
		words = append(words, string(t.Type))
	}
	if isDouble {
		return ast.DoubleType, nil
	}
	if len(words) == 0 {
		return ast.Type{}, errors.Errorf("line %d: expected a type, found %q", line, p.cur().Literal)
	}
	key := canonicalizeWords(words)
	typ, ok := typeCombos[key]
	if !ok {
		return ast.Type{}, errors.Errorf("line %d: unsupported type specifier combination %q", line, key)
	}
	return typ, nil
}

// canonicalizeWords orders a declaration's type-specifier keywords into
// the fixed "signed/unsigned long long int"-style order the typeCombos
// table is keyed by, independent of the order the user wrote them in.
func canonicalizeWords(words []string) string {
	order := []string{"unsigned", "signed", "short", "long", "long", "int", "char"}
	counts := map[string]int{}
	for _, w := range words {
		counts[w]++
	}
	result := ""
	for _, w := range order {
		for counts[w] > 0 {
			if result != "" {
				result += " "
			}
			result += w
			counts[w]--
		}
	}
	return result
}

// rejectUnsupported gives a precise diagnostic for constructs the lexer
// recognises but this subset's back-end does not implement, instead of a
// generic "unexpected token" error.
func (p *Parser) rejectUnsupported() error {
	t := p.cur()
	if token.IsUnsupportedKeyword(t.Type) {
		return errors.Errorf("line %d: %q is not supported by this compiler's C subset", t.Line, t.Type)
	}
	return nil
}

// --- statements ---------------------------------------------------------

func (p *Parser) parseStatement() (ast.Statement, error) {
	if err := p.rejectUnsupported(); err != nil {
		return nil, err
	}

	switch p.cur().Type {
	case token.LBRACE:
		return p.parseCompound()
	case token.RETURN:
		return p.parseReturn()
	case token.IF:
		return p.parseIf()
	case token.SEMICOLON:
		line := p.advance().Line
		return ast.NewExpressionStatement(line, nil), nil
	default:
		line := p.cur().Line
		expr, err := p.parseExpr(lowestBP)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMICOLON); err != nil {
			return nil, err
		}
		return ast.NewExpressionStatement(line, expr), nil
	}
}

func (p *Parser) parseReturn() (ast.Statement, error) {
	line := p.advance().Line // `return`
	if p.cur().Type == token.SEMICOLON {
		p.advance()
		return ast.NewReturn(line, nil), nil
	}
	expr, err := p.parseExpr(lowestBP)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return ast.NewReturn(line, expr), nil
}

func (p *Parser) parseIf() (ast.Statement, error) {
	line := p.advance().Line // `if`
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr(lowestBP)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	var elseStmt ast.Statement
	if p.cur().Type == token.ELSE {
		p.advance()
		elseStmt, err = p.parseStatement()
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIf(line, cond, then, elseStmt), nil
}

func (p *Parser) parseCompound() (*ast.Compound, error) {
	line, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	var items []ast.BlockItem
	for p.cur().Type != token.RBRACE {
		if p.cur().Type == token.EOF {
			return nil, errors.Errorf("line %d: unterminated compound statement", line.Line)
		}
		if token.IsTypeKeyword(p.cur().Type) {
			decl, err := p.parseLocalDeclaration()
			if err != nil {
				return nil, err
			}
			items = append(items, ast.BlockItem{Decl: decl})
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		items = append(items, ast.BlockItem{Stmt: stmt})
	}
	p.advance() // `}`
	return ast.NewCompound(line.Line, items), nil
}

func (p *Parser) parseLocalDeclaration() (*ast.Declaration, error) {
	line := p.cur().Line
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	var init ast.Expression
	if p.cur().Type == token.ASSIGN {
		p.advance()
		init, err = p.parseExpr(lowestBP)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(token.SEMICOLON); err != nil {
		return nil, err
	}
	return &ast.Declaration{Line: line, Type: typ, Name: nameTok.Literal, Initializer: init}, nil
}

// --- expressions ---------------------------------------------------------

var prefixUnaryOps = map[token.Type]ast.UnaryOp{
	token.PLUS:  ast.UnaryPlus,
	token.MINUS: ast.UnaryMinus,
	token.BANG:  ast.LogicalNot,
	token.TILDE: ast.BitwiseNot,
}

// parseExpr implements precedence climbing: parse a prefix atom, then
// repeatedly extend it with postfix, infix, compound-assignment, or
// ternary operators whose binding power clears minBP.
func (p *Parser) parseExpr(minBP int) (ast.Expression, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for {
		t := p.cur()

		if t.Type == token.LPAREN {
			ident, ok := left.(*ast.Identifier)
			if !ok {
				break
			}
			left, err = p.finishCall(ident)
			if err != nil {
				return nil, err
			}
			continue
		}

		if (t.Type == token.PLUS_PLUS || t.Type == token.MINUS_MINUS) && postfixLBP >= minBP {
			if err := validateLvalue(left); err != nil {
				return nil, err
			}
			op := ast.PostIncrement
			if t.Type == token.MINUS_MINUS {
				op = ast.PostDecrement
			}
			left = ast.NewUnary(t.Line, ast.Postfix, op, left)
			p.advance()
			continue
		}

		if bp, ok := infixTable[t.Type]; ok && bp.l >= minBP {
			p.advance()
			right, err := p.parseExpr(bp.r)
			if err != nil {
				return nil, err
			}
			op := binaryOpFor[t.Type]
			if op == ast.Assignment {
				if err := validateLvalue(left); err != nil {
					return nil, err
				}
			}
			left = ast.NewBinary(t.Line, op, left, right)
			continue
		}

		if baseOp, ok := compoundAssignTable[t.Type]; ok {
			assignBP := infixTable[token.ASSIGN]
			if assignBP.l < minBP {
				break
			}
			if err := validateLvalue(left); err != nil {
				return nil, err
			}
			p.advance()
			right, err := p.parseExpr(assignBP.r)
			if err != nil {
				return nil, err
			}
			desugared := ast.NewBinary(t.Line, baseOp, left, right)
			left = ast.NewBinary(t.Line, ast.Assignment, left, desugared)
			continue
		}

		if t.Type == token.QUESTION && ternaryLBP >= minBP {
			p.advance()
			ifTrue, err := p.parseExpr(lowestBP)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			ifFalse, err := p.parseExpr(ternaryRBP)
			if err != nil {
				return nil, err
			}
			left = ast.NewTernary(t.Line, left, ifTrue, ifFalse)
			continue
		}

		break
	}

	return left, nil
}

func (p *Parser) finishCall(target *ast.Identifier) (ast.Expression, error) {
	line := p.advance().Line // `(`
	var args []ast.Expression
	if p.cur().Type != token.RPAREN {
		for {
			arg, err := p.parseExpr(callArgMinBP)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur().Type != token.COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return ast.NewFunctionCall(line, target.Name, args), nil
}

func (p *Parser) parsePrefix() (ast.Expression, error) {
	t := p.cur()

	switch t.Type {
	case token.LPAREN:
		p.advance()
		inner, err := p.parseExpr(lowestBP)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return ast.NewGrouping(t.Line, inner), nil

	case token.IDENT:
		p.advance()
		return ast.NewIdentifier(t.Line, t.Literal), nil

	case token.INT_CONST:
		p.advance()
		return parseIntConstant(t)

	case token.CHAR_CONST:
		p.advance()
		return ast.NewConstantInt(t.Line, int64(t.Literal[0])), nil

	case token.DOUBLE_CONST:
		return nil, errors.Errorf("line %d: floating-point constants are not supported by this compiler's back-end", t.Line)

	case token.PLUS, token.MINUS, token.BANG, token.TILDE:
		p.advance()
		operand, err := p.parseExpr(prefixRBP)
		if err != nil {
			return nil, err
		}
		return ast.NewUnary(t.Line, ast.Prefix, prefixUnaryOps[t.Type], operand), nil

	case token.PLUS_PLUS, token.MINUS_MINUS:
		p.advance()
		operand, err := p.parseExpr(prefixRBP)
		if err != nil {
			return nil, err
		}
		if err := validateLvalue(operand); err != nil {
			return nil, err
		}
		op := ast.PreIncrement
		if t.Type == token.MINUS_MINUS {
			op = ast.PreDecrement
		}
		return ast.NewUnary(t.Line, ast.Prefix, op, operand), nil
	}

	if err := p.rejectUnsupported(); err != nil {
		return nil, err
	}
	return nil, errors.Errorf("line %d: unexpected token %q while parsing expression", t.Line, t.Literal)
}

// parseIntConstant parses the literal text of an INT_CONST token,
// stripping any u/U/l/L suffix bytes.
func parseIntConstant(t token.Token) (ast.Expression, error) {
	text := t.Literal
	unsigned := false
	end := len(text)
	for end > 0 {
		c := text[end-1]
		if c == 'u' || c == 'U' {
			unsigned = true
			end--
			continue
		}
		if c == 'l' || c == 'L' {
			end--
			continue
		}
		break
	}
	digits := text[:end]
	if unsigned {
		var v uint64
		for i := 0; i < len(digits); i++ {
			v = v*10 + uint64(digits[i]-'0')
		}
		return ast.NewConstantUint(t.Line, v), nil
	}
	var v int64
	for i := 0; i < len(digits); i++ {
		v = v*10 + int64(digits[i]-'0')
	}
	return ast.NewConstantInt(t.Line, v), nil
}

// validateLvalue is the post-parse walk that descends through grouping
// and assignment (whose result is the assigned variable) and rejects
// every other constructor. The only atom acceptable as an lvalue in
// this subset is an identifier reference.
func validateLvalue(e ast.Expression) error {
	switch v := e.(type) {
	case *ast.Identifier:
		return nil
	case *ast.Grouping:
		return validateLvalue(v.Expr)
	case *ast.Binary:
		if v.Op == ast.Assignment {
			return validateLvalue(v.Left)
		}
	}
	return errors.Errorf("line %d: invalid lvalue in assignment or increment/decrement", e.Line())
}
