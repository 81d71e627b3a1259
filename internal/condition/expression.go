package condition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// -----------------------------------------------------------------------
// AST
// -----------------------------------------------------------------------

// Expr is a compiled activation rule.
type Expr interface {
	exprNode()
}

// LogicalExpr joins two rules with AND / OR.
type LogicalExpr struct {
	Op    string // "AND" | "OR"
	Left  Expr
	Right Expr
}

func (*LogicalExpr) exprNode() {}

// NotExpr negates a rule.
type NotExpr struct {
	Expr Expr
}

func (*NotExpr) exprNode() {}

// ComparisonExpr is <operand> <operator> <operand>.
type ComparisonExpr struct {
	Left  Operand
	Op    Operator
	Right Operand

	re *regexp.Regexp // set for "matches" with a literal pattern
}

func (*ComparisonExpr) exprNode() {}

// TruthExpr tests a single operand for truthiness, e.g. `vars.useProxy`.
type TruthExpr struct {
	Operand Operand
}

func (*TruthExpr) exprNode() {}

// Operand is a literal, a field path or a list of operands.
type Operand interface {
	operandNode()
}

// Literal holds a constant parsed at compile time.
type Literal struct {
	Value interface{}
}

func (*Literal) operandNode() {}

// Field is a dotted path such as vars.shot or node.type.
type Field struct {
	Path []string
}

func (*Field) operandNode() {}

func (f *Field) String() string { return strings.Join(f.Path, ".") }

// List is a bracketed operand list, only meaningful on the right of "in".
type List struct {
	Items []Operand
}

func (*List) operandNode() {}

// -----------------------------------------------------------------------
// Lexer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokBool
	tokOp
	tokLParen
	tokRParen
	tokLBrack
	tokRBrack
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) all() ([]token, error) {
	var out []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		if t.kind == tokEOF {
			return out, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	ch := l.src[l.pos]
	switch {
	case ch == '(':
		l.pos++
		return token{tokLParen, "(", start}, nil
	case ch == ')':
		l.pos++
		return token{tokRParen, ")", start}, nil
	case ch == '[':
		l.pos++
		return token{tokLBrack, "[", start}, nil
	case ch == ']':
		l.pos++
		return token{tokRBrack, "]", start}, nil
	case ch == ',':
		l.pos++
		return token{tokComma, ",", start}, nil
	case strings.HasPrefix(l.src[l.pos:], "&&"):
		l.pos += 2
		return token{tokIdent, "AND", start}, nil
	case strings.HasPrefix(l.src[l.pos:], "||"):
		l.pos += 2
		return token{tokIdent, "OR", start}, nil
	case ch == '=' || ch == '!' || ch == '<' || ch == '>':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{tokOp, l.src[start:l.pos], start}, nil
		}
		l.pos++
		if ch == '!' {
			return token{tokIdent, "NOT", start}, nil
		}
		if ch == '=' {
			return token{}, fmt.Errorf("unexpected '=' at position %d (use ==)", start)
		}
		return token{tokOp, string(ch), start}, nil
	case ch == '"' || ch == '\'':
		return l.quoted(ch)
	case unicode.IsDigit(rune(ch)) || (ch == '-' && l.pos+1 < len(l.src) && unicode.IsDigit(rune(l.src[l.pos+1]))):
		l.pos++
		for l.pos < len(l.src) && (unicode.IsDigit(rune(l.src[l.pos])) || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{tokNumber, l.src[start:l.pos], start}, nil
	case unicode.IsLetter(rune(ch)) || ch == '_':
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.pos++
		}
		word := l.src[start:l.pos]
		if lw := strings.ToLower(word); lw == "true" || lw == "false" {
			return token{tokBool, lw, start}, nil
		}
		return token{tokIdent, word, start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", ch, start)
}

func (l *lexer) quoted(quote byte) (token, error) {
	start := l.pos
	var sb strings.Builder
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.src):
			sb.WriteByte(l.src[l.pos+1])
			l.pos += 2
		case c == quote:
			l.pos++
			return token{tokString, sb.String(), start}, nil
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, fmt.Errorf("unterminated string starting at position %d", start)
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '.' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

// -----------------------------------------------------------------------
// Parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.val, kw)
}

// Parse compiles an activation rule.
//
//	rule       = or
//	or         = and { ("OR" | "||") and }
//	and        = unary { ("AND" | "&&") unary }
//	unary      = ("NOT" | "!") unary | "(" or ")" | comparison
//	comparison = operand [ op operand ]
//	op         = "==" | "!=" | ">" | ">=" | "<" | "<=" | "contains" | "matches" | "in"
func Parse(src string) (Expr, error) {
	tokens, err := (&lexer{src: src}).all()
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d", t.val, t.pos)
	}
	return e, nil
}

// MustParse is Parse for rules known at compile time.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(fmt.Sprintf("condition: %q: %v", src, err))
	}
	return e
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.keyword("NOT") {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.advance(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected ')' at position %d, got %q", t.pos, t.val)
		}
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	var op Operator
	switch t := p.peek(); {
	case t.kind == tokOp:
		op = Operator(t.val)
	case p.keyword("contains"):
		op = OpContains
	case p.keyword("matches"):
		op = OpMatches
	case p.keyword("in"):
		op = OpIn
	default:
		if _, isList := left.(*List); isList {
			return nil, fmt.Errorf("list at position %d must be the right operand of 'in'", t.pos)
		}
		return &TruthExpr{Operand: left}, nil
	}
	p.advance()

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	cmp := &ComparisonExpr{Left: left, Op: op, Right: right}
	_, isList := right.(*List)
	switch {
	case op == OpIn && !isList:
		return nil, fmt.Errorf("operator in: right operand must be a list")
	case op != OpIn && isList:
		return nil, fmt.Errorf("operator %s: lists are only valid with 'in'", op)
	}
	if op == OpMatches {
		if lit, ok := right.(*Literal); ok {
			pattern, ok := lit.Value.(string)
			if !ok {
				return nil, fmt.Errorf("matches: pattern must be a string, got %T", lit.Value)
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("matches: invalid regex %q: %w", pattern, err)
			}
			cmp.re = re
		}
	}
	return cmp, nil
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.advance()
	switch t.kind {
	case tokString:
		return &Literal{Value: t.val}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", t.val, t.pos)
		}
		return &Literal{Value: f}, nil
	case tokBool:
		return &Literal{Value: t.val == "true"}, nil
	case tokIdent:
		if strings.HasSuffix(t.val, ".") || strings.Contains(t.val, "..") {
			return nil, fmt.Errorf("malformed field path %q at position %d", t.val, t.pos)
		}
		return &Field{Path: strings.Split(t.val, ".")}, nil
	case tokLBrack:
		list := &List{}
		if p.peek().kind == tokRBrack {
			p.advance()
			return list, nil
		}
		for {
			item, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			if _, nested := item.(*List); nested {
				return nil, fmt.Errorf("nested list at position %d", t.pos)
			}
			list.Items = append(list.Items, item)
			switch sep := p.advance(); sep.kind {
			case tokComma:
				continue
			case tokRBrack:
				return list, nil
			default:
				return nil, fmt.Errorf("expected ',' or ']' at position %d, got %q", sep.pos, sep.val)
			}
		}
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of rule")
	}
	return nil, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.val)
}

// Variables returns the graph-state variable names ("vars.<name>") a rule
// reads, in first-seen order.
func Variables(e Expr) []string {
	var out []string
	seen := make(map[string]bool)
	var fromOperand func(Operand)
	fromOperand = func(o Operand) {
		switch v := o.(type) {
		case *Field:
			if len(v.Path) >= 2 && v.Path[0] == RootVars && !seen[v.Path[1]] {
				seen[v.Path[1]] = true
				out = append(out, v.Path[1])
			}
		case *List:
			for _, it := range v.Items {
				fromOperand(it)
			}
		}
	}
	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case *LogicalExpr:
			walk(v.Left)
			walk(v.Right)
		case *NotExpr:
			walk(v.Expr)
		case *ComparisonExpr:
			fromOperand(v.Left)
			fromOperand(v.Right)
		case *TruthExpr:
			fromOperand(v.Operand)
		}
	}
	walk(e)
	return out
}
