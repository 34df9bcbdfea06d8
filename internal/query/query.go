// Package query parses the filter mini-language used by list endpoints.
//
// The grammar is a parenthesized function call language, for example:
//
//	q(or(like(name,openshift%),contains(tags,stage:ocp)))
//
// Parsing produces an abstract filter tree; a separate backend compiler
// (see postgres.go) translates the tree into storage predicates, keeping the
// grammar independent of any one storage engine.
package query

import (
	"strings"

	"cirelay/internal/cierr"
)

// Expr is a node in the filter tree.
type Expr interface {
	expr()
}

// Comparison operators over a single column.
type (
	Eq    struct{ Column, Value string }
	Ne    struct{ Column, Value string }
	Gt    struct{ Column, Value string }
	Ge    struct{ Column, Value string }
	Lt    struct{ Column, Value string }
	Le    struct{ Column, Value string }
	Like  struct{ Column, Value string }
	Ilike struct{ Column, Value string }
	Null  struct{ Column string }
)

// Contains matches array columns containing all the given values;
// NotContains is its negation.
type (
	Contains struct {
		Column string
		Values []string
	}
	NotContains struct {
		Column string
		Values []string
	}
)

// Boolean combinators.
type (
	And struct{ Exprs []Expr }
	Or  struct{ Exprs []Expr }
	Not struct{ Expr Expr }
)

func (Eq) expr()          {}
func (Ne) expr()          {}
func (Gt) expr()          {}
func (Ge) expr()          {}
func (Lt) expr()          {}
func (Le) expr()          {}
func (Like) expr()        {}
func (Ilike) expr()       {}
func (Null) expr()        {}
func (Contains) expr()    {}
func (NotContains) expr() {}
func (And) expr()         {}
func (Or) expr()          {}
func (Not) expr()         {}

// Parse parses a filter expression. The outer q(...) wrapper is optional.
func Parse(s string) (Expr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, cierr.Invalid("empty filter expression")
	}
	node, err := parseCall(s)
	if err != nil {
		return nil, err
	}
	return buildExpr(node)
}

// call is the raw parse tree: a function name applied to arguments, each
// argument either a nested call or a bare string.
type call struct {
	name string
	args []any // string or *call
}

func parseCall(s string) (*call, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return nil, cierr.Invalid("invalid filter syntax %q", s)
	}
	if !strings.HasSuffix(s, ")") {
		return nil, cierr.Invalid("invalid filter syntax %q", s)
	}

	c := &call{name: s[:open]}
	inner := s[open+1 : len(s)-1]
	if inner == "" {
		return nil, cierr.Invalid("%s() takes at least one argument", c.name)
	}

	for _, arg := range splitArgs(inner) {
		if strings.ContainsRune(arg, '(') {
			sub, err := parseCall(arg)
			if err != nil {
				return nil, err
			}
			c.args = append(c.args, sub)
		} else {
			c.args = append(c.args, arg)
		}
	}
	return c, nil
}

// splitArgs splits on commas at parenthesis depth zero.
func splitArgs(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func buildExpr(c *call) (Expr, error) {
	switch c.name {
	case "q":
		if len(c.args) != 1 {
			return nil, argCount(c, 1)
		}
		sub, ok := c.args[0].(*call)
		if !ok {
			return nil, cierr.Invalid("q() wants a nested expression")
		}
		return buildExpr(sub)

	case "eq", "ne", "gt", "ge", "lt", "le", "like", "ilike":
		col, val, err := binaryArgs(c)
		if err != nil {
			return nil, err
		}
		switch c.name {
		case "eq":
			return Eq{col, val}, nil
		case "ne":
			return Ne{col, val}, nil
		case "gt":
			return Gt{col, val}, nil
		case "ge":
			return Ge{col, val}, nil
		case "lt":
			return Lt{col, val}, nil
		case "le":
			return Le{col, val}, nil
		case "like":
			return Like{col, val}, nil
		default:
			return Ilike{col, val}, nil
		}

	case "null":
		if len(c.args) != 1 {
			return nil, argCount(c, 1)
		}
		col, ok := c.args[0].(string)
		if !ok {
			return nil, cierr.Invalid("null() wants a column name")
		}
		return Null{col}, nil

	case "contains", "not_contains":
		if len(c.args) < 2 {
			return nil, cierr.Invalid("%s() wants a column and at least one value", c.name)
		}
		col, ok := c.args[0].(string)
		if !ok {
			return nil, cierr.Invalid("%s() wants a column name", c.name)
		}
		values := make([]string, 0, len(c.args)-1)
		for _, a := range c.args[1:] {
			v, ok := a.(string)
			if !ok {
				return nil, cierr.Invalid("%s() values must be plain strings", c.name)
			}
			values = append(values, v)
		}
		if c.name == "contains" {
			return Contains{col, values}, nil
		}
		return NotContains{col, values}, nil

	case "and", "or":
		exprs := make([]Expr, 0, len(c.args))
		for _, a := range c.args {
			sub, ok := a.(*call)
			if !ok {
				return nil, cierr.Invalid("%s() wants nested expressions", c.name)
			}
			e, err := buildExpr(sub)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, e)
		}
		if c.name == "and" {
			return And{exprs}, nil
		}
		return Or{exprs}, nil

	case "not":
		if len(c.args) != 1 {
			return nil, argCount(c, 1)
		}
		sub, ok := c.args[0].(*call)
		if !ok {
			return nil, cierr.Invalid("not() wants a nested expression")
		}
		e, err := buildExpr(sub)
		if err != nil {
			return nil, err
		}
		return Not{e}, nil
	}

	return nil, cierr.Invalid("unknown filter function %q", c.name)
}

func binaryArgs(c *call) (string, string, error) {
	if len(c.args) != 2 {
		return "", "", argCount(c, 2)
	}
	col, ok := c.args[0].(string)
	if !ok {
		return "", "", cierr.Invalid("%s() wants a column name", c.name)
	}
	val, ok := c.args[1].(string)
	if !ok {
		return "", "", cierr.Invalid("%s() value must be a plain string", c.name)
	}
	return col, val, nil
}

func argCount(c *call, want int) error {
	return cierr.Invalid("invalid number of args %d for %s, want %d", len(c.args), c.name, want)
}
