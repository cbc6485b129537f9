package typesystem

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ParseType reads the textual type notation used by program files and tests:
//
//	Int   String?   List<Int>   Map<K, *>   (Int, T) -> R   A & B   ((Int) -> Unit)?
//
// Names found in params resolve to declared type parameters; every other
// name is a class. Use-site "in"/"out" modifiers are accepted and ignored,
// since variance is declared on the class.
func ParseType(text string, params map[string]TParam) (Type, error) {
	p := &typeParser{lex: newTypeLexer(text), params: params}
	p.next()
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.cur.text)
	}
	return t, nil
}

// MustParseType is ParseType for fixed inputs; it panics on error.
func MustParseType(text string, params map[string]TParam) Type {
	t, err := ParseType(text, params)
	if err != nil {
		panic(err)
	}
	return t
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokLAngle
	tokRAngle
	tokLParen
	tokRParen
	tokComma
	tokQuestion
	tokStar
	tokAmp
	tokArrow
	tokIllegal
)

type typeToken struct {
	kind tokKind
	text string
	col  int
}

type typeLexer struct {
	input        string
	position     int
	readPosition int
	ch           rune
	column       int
}

func newTypeLexer(input string) *typeLexer {
	l := &typeLexer{input: input}
	l.readChar()
	return l
}

func (l *typeLexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *typeLexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *typeLexer) nextToken() typeToken {
	for l.ch == ' ' || l.ch == '\t' {
		l.readChar()
	}
	col := l.column
	single := func(k tokKind) typeToken {
		tok := typeToken{kind: k, text: string(l.ch), col: col}
		l.readChar()
		return tok
	}

	switch l.ch {
	case 0:
		return typeToken{kind: tokEOF, col: col}
	case '<':
		return single(tokLAngle)
	case '>':
		return single(tokRAngle)
	case '(':
		return single(tokLParen)
	case ')':
		return single(tokRParen)
	case ',':
		return single(tokComma)
	case '?':
		return single(tokQuestion)
	case '*':
		return single(tokStar)
	case '&':
		return single(tokAmp)
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			l.readChar()
			return typeToken{kind: tokArrow, text: "->", col: col}
		}
		return single(tokIllegal)
	}

	if isIdentStart(l.ch) {
		start := l.position
		for isIdentStart(l.ch) || unicode.IsDigit(l.ch) || l.ch == '.' {
			l.readChar()
		}
		return typeToken{kind: tokIdent, text: l.input[start:l.position], col: col}
	}
	return single(tokIllegal)
}

func isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

type typeParser struct {
	lex    *typeLexer
	cur    typeToken
	params map[string]TParam
}

func (p *typeParser) next() {
	p.cur = p.lex.nextToken()
}

func (p *typeParser) errorf(format string, args ...any) error {
	return fmt.Errorf("type %q, column %d: %s", p.lex.input, p.cur.col, fmt.Sprintf(format, args...))
}

func (p *typeParser) expect(k tokKind, what string) error {
	if p.cur.kind != k {
		if p.cur.kind == tokEOF {
			return p.errorf("expected %s, got end of input", what)
		}
		return p.errorf("expected %s, got %q", what, p.cur.text)
	}
	p.next()
	return nil
}

// type := nullable ('&' nullable)*
func (p *typeParser) parseType() (Type, error) {
	first, err := p.parseNullable()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokAmp {
		return first, nil
	}
	members := []Type{first}
	for p.cur.kind == tokAmp {
		p.next()
		m, err := p.parseNullable()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return NewIntersection(members...), nil
}

// nullable := primary '?'?
func (p *typeParser) parseNullable() (Type, error) {
	t, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur.kind == tokQuestion {
		p.next()
		switch typ := t.(type) {
		case TCon:
			typ.Nullable = true
			return typ, nil
		case TParam:
			return nil, p.errorf("nullable type parameter %s? is not supported", typ.Name)
		default:
			return nil, p.errorf("%s cannot be made nullable", t)
		}
	}
	return t, nil
}

func (p *typeParser) parsePrimary() (Type, error) {
	switch p.cur.kind {
	case tokStar:
		p.next()
		return TStar{}, nil
	case tokLParen:
		return p.parseParenthesized()
	case tokIdent:
		return p.parseNamed()
	case tokEOF:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected %q", p.cur.text)
	}
}

// '(' [type (',' type)*] ')' ['->' type]
func (p *typeParser) parseParenthesized() (Type, error) {
	p.next()
	var items []Type
	for p.cur.kind != tokRParen {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		items = append(items, t)
		if p.cur.kind != tokComma {
			break
		}
		p.next()
	}
	if err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if p.cur.kind == tokArrow {
		p.next()
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return Func(items, ret), nil
	}
	if len(items) != 1 {
		return nil, p.errorf("expected '->' after parameter list")
	}
	return items[0], nil
}

// IDENT ['<' arg (',' arg)* '>']
func (p *typeParser) parseNamed() (Type, error) {
	name := p.cur.text
	p.next()

	if tp, ok := p.params[name]; ok {
		if p.cur.kind == tokLAngle {
			return nil, p.errorf("type parameter %s cannot take arguments", name)
		}
		return tp, nil
	}
	if name == "_" {
		return TError{Reason: "unknown type"}, nil
	}

	con := TCon{Class: name}
	if p.cur.kind != tokLAngle {
		return con, nil
	}
	p.next()
	for {
		if p.cur.kind == tokIdent && (p.cur.text == "in" || p.cur.text == "out") {
			p.next()
		}
		arg, err := p.parseType()
		if err != nil {
			return nil, err
		}
		con.Args = append(con.Args, arg)
		if p.cur.kind != tokComma {
			break
		}
		p.next()
	}
	if err := p.expect(tokRAngle, "'>'"); err != nil {
		return nil, err
	}
	return con, nil
}
