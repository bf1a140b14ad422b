// Package indicator matches reference-data-driven suspicious-activity
// heuristics against a transaction. An indicator is a small boolean
// expression over the transaction's fields, e.g.
//
//	amount >= 9000 AND description contains "crypto"
//	country == "PA" OR customer_risk == "high"
package indicator

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Node is a parsed expression tree.
type Node interface{ isNode() }

type binaryNode struct {
	op          string // "AND" | "OR"
	left, right Node
}

type notNode struct {
	child Node
}

type compareNode struct {
	field string
	op    string
	value literal
}

type literal struct {
	str    string
	num    float64
	isNum  bool
	isBool bool
	b      bool
}

func (binaryNode) isNode()  {}
func (notNode) isNode()     {}
func (compareNode) isNode() {}

// Parse compiles an indicator expression. Precedence: NOT > AND > OR.
func Parse(expr string) (Node, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("indicator: unexpected token %q", p.peek())
	}
	return node, nil
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() string {
	if p.done() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek() == "OR" {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "OR", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek() == "AND" {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "AND", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek() == "NOT" {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{child: child}, nil
	}
	if p.peek() == "(" {
		p.next()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("indicator: missing closing parenthesis")
		}
		return node, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	">": true, ">=": true, "<": true, "<=": true,
	"==": true, "!=": true, "contains": true, "matches": true,
}

func (p *parser) parseComparison() (Node, error) {
	field := p.next()
	if field == "" {
		return nil, fmt.Errorf("indicator: expected field name")
	}
	if !validFields[field] {
		return nil, fmt.Errorf("indicator: unknown field %q", field)
	}
	op := p.next()
	if !comparisonOps[op] {
		return nil, fmt.Errorf("indicator: expected operator after %q, got %q", field, op)
	}
	raw := p.next()
	if raw == "" {
		return nil, fmt.Errorf("indicator: expected value after %q %s", field, op)
	}
	return &compareNode{field: field, op: op, value: parseLiteral(raw)}, nil
}

func parseLiteral(raw string) literal {
	if strings.HasPrefix(raw, `"`) {
		return literal{str: strings.Trim(raw, `"`)}
	}
	if raw == "true" || raw == "false" {
		return literal{isBool: true, b: raw == "true"}
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return literal{num: n, isNum: true}
	}
	return literal{str: raw}
}

func tokenize(expr string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case unicode.IsSpace(rune(c)):
			i++
		case c == '(' || c == ')':
			toks = append(toks, string(c))
			i++
		case c == '"':
			j := i + 1
			for j < len(expr) && expr[j] != '"' {
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("indicator: unterminated string in %q", expr)
			}
			toks = append(toks, expr[i:j+1])
			i = j + 1
		case strings.ContainsRune("><=!", rune(c)):
			j := i + 1
			if j < len(expr) && expr[j] == '=' {
				j++
			}
			toks = append(toks, expr[i:j])
			i = j
		default:
			j := i
			for j < len(expr) && !unicode.IsSpace(rune(expr[j])) &&
				!strings.ContainsRune(`()<>=!"`, rune(expr[j])) {
				j++
			}
			toks = append(toks, expr[i:j])
			i = j
		}
	}
	return toks, nil
}
