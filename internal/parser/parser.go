// Package parser is a recursive-descent parser over Tiger's token stream,
// producing an ast.Exp plus any diagnostics collected along the way. It
// never panics: a malformed construct is recorded as a Diagnostic and
// replaced with a placeholder node so parsing can continue collecting
// further errors, mirroring the teacher's never-panic accumulation style.
package parser

import (
	"tigerc/internal/ast"
	"tigerc/internal/diagnostics"
	"tigerc/internal/lexer"
	"tigerc/internal/symbol"
)

// Parse lexes and parses one Tiger source file, returning its top-level
// expression and every diagnostic collected. A non-empty diagnostics
// slice containing an error means the returned Exp is best-effort only
// and must not be fed to later stages.
func Parse(file, src string, symtab *symbol.Table) (ast.Exp, []*diagnostics.Diagnostic) {
	p := &parser{
		stream: lexer.NewStream(lexer.New(file, src)),
		sym:    symtab,
	}
	exp := p.parseExp()
	if tok := p.peek(); tok.Kind != lexer.EOF {
		p.errorf(tok.Pos, "unexpected trailing input starting at %q", tok.Text)
	}
	return exp, p.diags
}

type parser struct {
	stream *lexer.Stream
	sym    *symbol.Table
	diags  []*diagnostics.Diagnostic
}

func (p *parser) peek() lexer.Token  { return p.stream.Peek(0) }
func (p *parser) peek2() lexer.Token { return p.stream.Peek(1) }
func (p *parser) next() lexer.Token  { return p.stream.Next() }

func (p *parser) errorf(pos diagnostics.Pos, format string, args ...any) {
	p.diags = append(p.diags, diagnostics.New(diagnostics.PhaseParser, pos, format, args...))
}

// expect consumes the next token if it has kind k, otherwise records a
// diagnostic and returns the mismatched token without consuming it (the
// caller decides whether to keep going).
func (p *parser) expect(k lexer.Kind) lexer.Token {
	tok := p.peek()
	if tok.Kind != k {
		p.errorf(tok.Pos, "expected %s, found %s", k, tok.Kind)
		return tok
	}
	return p.next()
}

func (p *parser) symbolOf(tok lexer.Token) symbol.Symbol { return p.sym.Symbol(tok.Text) }

func base(pos diagnostics.Pos) ast.Base { return ast.Base{P: pos} }

// ---- expressions -----------------------------------------------------

func (p *parser) parseExp() ast.Exp {
	return p.parseOr()
}

func (p *parser) parseOr() ast.Exp {
	left := p.parseAnd()
	for p.peek().Kind == lexer.OR {
		pos := p.next().Pos
		right := p.parseAnd()
		// `a | b` desugars to `(if a then 1 else b) <> 0`: Tiger's
		// short-circuit or, built from an IfExp and normalized to 0/1 by
		// the comparison, so semant needs no dedicated or operator.
		left = ast.OpExp{Op: ast.NeqOp, Left: ast.IfExp{Test: left, Then: ast.IntExp{Value: 1}, Else: right}, Right: ast.IntExp{Value: 0}}
		_ = pos
	}
	return left
}

func (p *parser) parseAnd() ast.Exp {
	left := p.parseCompare()
	for p.peek().Kind == lexer.AND {
		p.next()
		right := p.parseCompare()
		left = ast.IfExp{Test: left, Then: right, Else: ast.IntExp{Value: 0}}
	}
	return left
}

var compareOps = map[lexer.Kind]ast.Oper{
	lexer.EQ: ast.EqOp, lexer.NEQ: ast.NeqOp, lexer.LT: ast.LtOp,
	lexer.LE: ast.LeOp, lexer.GT: ast.GtOp, lexer.GE: ast.GeOp,
}

func (p *parser) parseCompare() ast.Exp {
	left := p.parseAdditive()
	if op, ok := compareOps[p.peek().Kind]; ok {
		pos := p.next().Pos
		right := p.parseAdditive()
		return ast.OpExp{Base: base(pos), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseAdditive() ast.Exp {
	left := p.parseTerm()
	for p.peek().Kind == lexer.PLUS || p.peek().Kind == lexer.MINUS {
		tok := p.next()
		op := ast.PlusOp
		if tok.Kind == lexer.MINUS {
			op = ast.MinusOp
		}
		right := p.parseTerm()
		left = ast.OpExp{Base: base(tok.Pos), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseTerm() ast.Exp {
	left := p.parseUnary()
	for p.peek().Kind == lexer.TIMES || p.peek().Kind == lexer.DIVIDE {
		tok := p.next()
		op := ast.TimesOp
		if tok.Kind == lexer.DIVIDE {
			op = ast.DivideOp
		}
		right := p.parseUnary()
		left = ast.OpExp{Base: base(tok.Pos), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseUnary() ast.Exp {
	if p.peek().Kind == lexer.MINUS {
		pos := p.next().Pos
		operand := p.parseUnary()
		return ast.OpExp{Base: base(pos), Op: ast.MinusOp, Left: ast.IntExp{Base: base(pos), Value: 0}, Right: operand}
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary expression and, for lvalues, any trailing
// chain of `.field` / `[index]` accesses, plus the `:=` assignment form.
func (p *parser) parsePostfix() ast.Exp {
	primary := p.parsePrimary()
	v, isVar := primary.(ast.Var)
	if !isVar {
		return primary
	}
	for {
		switch p.peek().Kind {
		case lexer.DOT:
			pos := p.next().Pos
			field := p.expect(lexer.ID)
			v = ast.FieldVar{Base: base(pos), Var: v, Field: p.symbolOf(field)}
		case lexer.LBRACK:
			// Ambiguous with `type [ size ] of init` only at statement
			// start, which parsePrimary's ArrayExp branch already claims
			// by looking ahead; here LBRACK always means subscript.
			pos := p.next().Pos
			index := p.parseExp()
			p.expect(lexer.RBRACK)
			v = ast.SubscriptVar{Base: base(pos), Var: v, Index: index}
		default:
			if p.peek().Kind == lexer.ASSIGN {
				pos := p.next().Pos
				rhs := p.parseExp()
				return ast.AssignExp{Base: base(pos), Var: v, Exp: rhs}
			}
			return v
		}
	}
}

func (p *parser) parsePrimary() ast.Exp {
	tok := p.peek()
	switch tok.Kind {
	case lexer.NIL:
		p.next()
		return ast.NilExp{Base: base(tok.Pos)}
	case lexer.INT:
		p.next()
		return ast.IntExp{Base: base(tok.Pos), Value: tok.IntValue}
	case lexer.STRING:
		p.next()
		return ast.StringExp{Base: base(tok.Pos), Value: tok.Text}
	case lexer.LPAREN:
		p.next()
		return p.parseSeq()
	case lexer.MINUS:
		return p.parseUnary()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.FOR:
		return p.parseFor()
	case lexer.BREAK:
		p.next()
		return ast.BreakExp{Base: base(tok.Pos)}
	case lexer.LET:
		return p.parseLet()
	case lexer.ID:
		return p.parseIdStart()
	default:
		p.errorf(tok.Pos, "unexpected token %s in expression", tok.Kind)
		p.next()
		return ast.IntExp{Base: base(tok.Pos), Value: 0}
	}
}

// parseSeq parses `( e1 ; e2 ; ... )`, already past the opening paren.
func (p *parser) parseSeq() ast.Exp {
	pos := p.peek().Pos
	var exps []ast.Exp
	if p.peek().Kind != lexer.RPAREN {
		exps = append(exps, p.parseExp())
		for p.peek().Kind == lexer.SEMICOLON {
			p.next()
			exps = append(exps, p.parseExp())
		}
	}
	p.expect(lexer.RPAREN)
	if len(exps) == 1 {
		return exps[0]
	}
	return ast.SeqExp{Base: base(pos), Exps: exps}
}

func (p *parser) parseIf() ast.Exp {
	pos := p.next().Pos // `if`
	test := p.parseExp()
	p.expect(lexer.THEN)
	then := p.parseExp()
	var elseExp ast.Exp
	if p.peek().Kind == lexer.ELSE {
		p.next()
		elseExp = p.parseExp()
	}
	return ast.IfExp{Base: base(pos), Test: test, Then: then, Else: elseExp}
}

func (p *parser) parseWhile() ast.Exp {
	pos := p.next().Pos // `while`
	test := p.parseExp()
	p.expect(lexer.DO)
	body := p.parseExp()
	return ast.WhileExp{Base: base(pos), Test: test, Body: body}
}

func (p *parser) parseFor() ast.Exp {
	pos := p.next().Pos // `for`
	name := p.symbolOf(p.expect(lexer.ID))
	p.expect(lexer.ASSIGN)
	lo := p.parseExp()
	p.expect(lexer.TO)
	hi := p.parseExp()
	p.expect(lexer.DO)
	body := p.parseExp()
	return &ast.ForExp{Base: base(pos), Var: name, Lo: lo, Hi: hi, Body: body}
}

func (p *parser) parseLet() ast.Exp {
	pos := p.next().Pos // `let`
	var decs []ast.Dec
	for p.peek().Kind != lexer.IN && p.peek().Kind != lexer.EOF {
		decs = append(decs, p.parseDecGroup())
	}
	p.expect(lexer.IN)
	body := p.parseSeqUntilEnd()
	p.expect(lexer.END)
	return ast.LetExp{Base: base(pos), Decs: decs, Body: body}
}

// parseSeqUntilEnd parses the `in`-clause body of a let: a possibly-empty
// `;`-separated expression sequence terminated by `end`.
func (p *parser) parseSeqUntilEnd() ast.Exp {
	pos := p.peek().Pos
	var exps []ast.Exp
	if p.peek().Kind != lexer.END {
		exps = append(exps, p.parseExp())
		for p.peek().Kind == lexer.SEMICOLON {
			p.next()
			exps = append(exps, p.parseExp())
		}
	}
	if len(exps) == 1 {
		return exps[0]
	}
	return ast.SeqExp{Base: base(pos), Exps: exps}
}

// parseDecGroup parses one declaration and, for `type`/`function`, greedily
// absorbs every immediately-following declaration of the same kind into
// one mutually-recursive group.
func (p *parser) parseDecGroup() ast.Dec {
	switch p.peek().Kind {
	case lexer.TYPE:
		pos := p.peek().Pos
		var group []ast.TypeDec
		for p.peek().Kind == lexer.TYPE {
			group = append(group, p.parseTypeDec())
		}
		return ast.TypeDecGroup{Base: base(pos), Types: group}
	case lexer.FUNCTION:
		pos := p.peek().Pos
		var group []ast.FunctionDec
		for p.peek().Kind == lexer.FUNCTION {
			group = append(group, p.parseFunctionDec())
		}
		return ast.FunctionDecGroup{Base: base(pos), Functions: group}
	case lexer.VAR:
		return p.parseVarDec()
	default:
		tok := p.peek()
		p.errorf(tok.Pos, "expected a declaration, found %s", tok.Kind)
		p.next()
		return &ast.VarDec{Base: base(tok.Pos)}
	}
}

func (p *parser) parseTypeDec() ast.TypeDec {
	pos := p.next().Pos // `type`
	name := p.symbolOf(p.expect(lexer.ID))
	p.expect(lexer.EQ)
	ty := p.parseType()
	return ast.TypeDec{Pos: pos, Name: name, Type: ty}
}

func (p *parser) parseType() ast.Type {
	tok := p.peek()
	switch tok.Kind {
	case lexer.ID:
		p.next()
		return ast.NameType{Base: base(tok.Pos), Name: p.symbolOf(tok)}
	case lexer.LBRACE:
		p.next()
		fields := p.parseFieldList(lexer.RBRACE)
		p.expect(lexer.RBRACE)
		return ast.RecordType{Base: base(tok.Pos), Fields: fields}
	case lexer.ARRAY:
		p.next()
		p.expect(lexer.OF)
		elem := p.symbolOf(p.expect(lexer.ID))
		return ast.ArrayType{Base: base(tok.Pos), Element: elem}
	default:
		p.errorf(tok.Pos, "expected a type, found %s", tok.Kind)
		return ast.NameType{Base: base(tok.Pos)}
	}
}

func (p *parser) parseFieldList(end lexer.Kind) []ast.Field {
	var fields []ast.Field
	if p.peek().Kind == end {
		return fields
	}
	fields = append(fields, p.parseField())
	for p.peek().Kind == lexer.COMMA {
		p.next()
		fields = append(fields, p.parseField())
	}
	return fields
}

func (p *parser) parseField() ast.Field {
	name := p.expect(lexer.ID)
	p.expect(lexer.COLON)
	ty := p.expect(lexer.ID)
	return ast.Field{Pos: name.Pos, Name: p.symbolOf(name), Type: p.symbolOf(ty)}
}

func (p *parser) parseVarDec() *ast.VarDec {
	pos := p.next().Pos // `var`
	name := p.symbolOf(p.expect(lexer.ID))
	dec := &ast.VarDec{Base: base(pos), Name: name}
	if p.peek().Kind == lexer.COLON {
		p.next()
		dec.Type = p.symbolOf(p.expect(lexer.ID))
		dec.HasType = true
	}
	p.expect(lexer.ASSIGN)
	dec.Init = p.parseExp()
	return dec
}

func (p *parser) parseFunctionDec() ast.FunctionDec {
	pos := p.next().Pos // `function`
	name := p.symbolOf(p.expect(lexer.ID))
	p.expect(lexer.LPAREN)
	params := p.parseFieldList(lexer.RPAREN)
	p.expect(lexer.RPAREN)
	dec := ast.FunctionDec{Base: base(pos), Name: name, Params: params}
	if p.peek().Kind == lexer.COLON {
		p.next()
		dec.Result = p.symbolOf(p.expect(lexer.ID))
		dec.HasResult = true
	}
	p.expect(lexer.EQ)
	dec.Body = p.parseExp()
	return dec
}

// parseIdStart disambiguates the four constructs that begin with a bare
// identifier: a function call, a record literal, an array literal, and an
// lvalue (parsePostfix handles the lvalue/assignment chain once this
// returns a Var).
func (p *parser) parseIdStart() ast.Exp {
	tok := p.next()
	name := p.symbolOf(tok)

	switch p.peek().Kind {
	case lexer.LPAREN:
		p.next()
		var args []ast.Exp
		if p.peek().Kind != lexer.RPAREN {
			args = append(args, p.parseExp())
			for p.peek().Kind == lexer.COMMA {
				p.next()
				args = append(args, p.parseExp())
			}
		}
		p.expect(lexer.RPAREN)
		return ast.CallExp{Base: base(tok.Pos), Func: name, Args: args}
	case lexer.LBRACE:
		p.next()
		var fields []ast.RecordField
		if p.peek().Kind != lexer.RBRACE {
			fields = append(fields, p.parseRecordField())
			for p.peek().Kind == lexer.COMMA {
				p.next()
				fields = append(fields, p.parseRecordField())
			}
		}
		p.expect(lexer.RBRACE)
		return ast.RecordExp{Base: base(tok.Pos), Type: name, Fields: fields}
	case lexer.LBRACK:
		// Could be `id[e] of e` (array literal) or `id[e]` subscript
		// continued by parsePostfix. Tiger resolves this by committing to
		// the array-literal reading only if `of` follows the closing
		// bracket; otherwise it is a subscript lvalue.
		if p.looksLikeArrayLiteral() {
			p.next() // `[`
			size := p.parseExp()
			p.expect(lexer.RBRACK)
			p.expect(lexer.OF)
			init := p.parseExp()
			return ast.ArrayExp{Base: base(tok.Pos), Type: name, Size: size, Init: init}
		}
		return ast.SimpleVar{Base: base(tok.Pos), Name: name}
	default:
		return ast.SimpleVar{Base: base(tok.Pos), Name: name}
	}
}

func (p *parser) parseRecordField() ast.RecordField {
	name := p.symbolOf(p.expect(lexer.ID))
	p.expect(lexer.EQ)
	return ast.RecordField{Name: name, Exp: p.parseExp()}
}

// looksLikeArrayLiteral scans forward from the current `[` to its
// matching `]` (tracking nesting) and reports whether `of` follows,
// without consuming any tokens.
func (p *parser) looksLikeArrayLiteral() bool {
	depth := 0
	for i := 0; ; i++ {
		tok := p.stream.Peek(i)
		switch tok.Kind {
		case lexer.LBRACK:
			depth++
		case lexer.RBRACK:
			depth--
			if depth == 0 {
				return p.stream.Peek(i + 1).Kind == lexer.OF
			}
		case lexer.EOF:
			return false
		}
	}
}
