// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ast

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ava-labs/contractvm/fault"
	"github.com/ava-labs/contractvm/types"
)

const maxNesting = 64

type parser struct {
	src    string
	pos    int
	line   uint32
	column uint32
}

// Parse returns the top-level expressions of [source].
func Parse(source string) ([]*Expr, error) {
	p := &parser{src: source, line: 1, column: 1}
	var exprs []*Expr
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return exprs, nil
		}
		expr, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
}

// ParseValue parses a single literal such as "10", "'SP...", or "0x0102".
func ParseValue(text string) (types.Value, error) {
	exprs, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 || exprs[0].Kind != Literal {
		return nil, fault.NewCheckError(fault.BadSyntax, fmt.Sprintf("expected a single literal, got %q", text))
	}
	return exprs[0].Value, nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fault.NewCheckError(fault.BadSyntax, fmt.Sprintf("line %d column %d: %s", p.line, p.column, msg))
}

func (p *parser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
		p.column = 1
	} else {
		p.column++
	}
	return c
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',':
			p.advance()
		case c == ';':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.advance()
			}
		default:
			return
		}
	}
}

func (p *parser) parseExpr(depth int) (*Expr, error) {
	if depth > maxNesting {
		return nil, p.errorf("nesting deeper than %d", maxNesting)
	}
	start := Span{StartLine: p.line, StartColumn: p.column}
	switch p.src[p.pos] {
	case '(':
		p.advance()
		expr := &Expr{Kind: List}
		for {
			p.skipSpace()
			if p.pos >= len(p.src) {
				return nil, p.errorf("unclosed list opened at line %d", start.StartLine)
			}
			if p.src[p.pos] == ')' {
				start.EndLine, start.EndColumn = p.line, p.column
				p.advance()
				expr.Span = start
				return expr, nil
			}
			child, err := p.parseExpr(depth + 1)
			if err != nil {
				return nil, err
			}
			expr.List = append(expr.List, child)
		}
	case ')':
		return nil, p.errorf("unexpected ')'")
	default:
		begin := p.pos
		for p.pos < len(p.src) && !isDelimiter(p.src[p.pos]) {
			p.advance()
		}
		start.EndLine, start.EndColumn = p.line, p.column-1
		expr, err := p.classify(p.src[begin:p.pos])
		if err != nil {
			return nil, err
		}
		expr.Span = start
		return expr, nil
	}
}

func isDelimiter(c byte) bool {
	return c == '(' || c == ')' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',' || c == ';'
}

func (p *parser) classify(token string) (*Expr, error) {
	switch {
	case token == "true" || token == "'true":
		return &Expr{Kind: Literal, Value: types.Bool(true)}, nil
	case token == "false" || token == "'false":
		return &Expr{Kind: Literal, Value: types.Bool(false)}, nil
	case isInteger(token):
		n, err := strconv.ParseInt(strings.TrimPrefix(token, "u"), 10, 64)
		if err != nil {
			return nil, p.errorf("integer %q out of range", token)
		}
		return &Expr{Kind: Literal, Value: types.Int(n)}, nil
	case strings.HasPrefix(token, "0x"):
		b, err := hex.DecodeString(token[2:])
		if err != nil {
			return nil, p.errorf("malformed buffer %q", token)
		}
		return &Expr{Kind: Literal, Value: types.Buffer(b)}, nil
	case strings.HasPrefix(token, "'"):
		principal, err := types.ParsePrincipal(token)
		if err != nil {
			return nil, p.errorf("%s", err)
		}
		return &Expr{Kind: Literal, Value: principal}, nil
	case strings.HasPrefix(token, "."):
		if len(token) == 1 {
			return nil, p.errorf("empty contract reference")
		}
		return &Expr{Kind: ContractRef, Atom: token[1:]}, nil
	case strings.ContainsAny(token, "\"{}[]"):
		return nil, p.errorf("unsupported token %q", token)
	default:
		return &Expr{Kind: Atom, Atom: token}, nil
	}
}

func isInteger(token string) bool {
	digits := token
	switch {
	case strings.HasPrefix(token, "u"):
		digits = token[1:]
	case strings.HasPrefix(token, "-"):
		digits = token[1:]
	}
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}
