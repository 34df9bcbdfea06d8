package query

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"cirelay/internal/cierr"
)

// Compiler translates a filter tree into a PostgreSQL WHERE fragment.
// Columns restricts the filterable columns; ArrayColumns marks the ones with
// array semantics (contains/not_contains only apply to those).
type Compiler struct {
	Columns      map[string]bool
	ArrayColumns map[string]bool
}

// Compile returns the WHERE fragment (without the WHERE keyword) and its
// positional arguments, starting at $1.
func (c *Compiler) Compile(e Expr) (string, []interface{}, error) {
	return c.CompileFrom(e, 1)
}

// CompileFrom is Compile with placeholder numbering starting at start. It lets
// the fragment be appended to a statement that already binds start-1 arguments.
func (c *Compiler) CompileFrom(e Expr, start int) (string, []interface{}, error) {
	if start < 1 {
		start = 1
	}
	b := builder{compiler: c, start: start}
	if err := b.walk(e); err != nil {
		return "", nil, err
	}
	return b.sql.String(), b.args, nil
}

type builder struct {
	compiler *Compiler
	start    int
	sql      strings.Builder
	args     []interface{}
}

func (b *builder) placeholder(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", b.start+len(b.args)-1)
}

func (b *builder) column(name string) (string, error) {
	if !b.compiler.Columns[name] {
		return "", cierr.Invalid("invalid column name %q", name)
	}
	return name, nil
}

func (b *builder) arrayColumn(name string) (string, error) {
	col, err := b.column(name)
	if err != nil {
		return "", err
	}
	if !b.compiler.ArrayColumns[name] {
		return "", cierr.Invalid("%q is not an array column", name)
	}
	return col, nil
}

func (b *builder) binary(col, op, val string) error {
	name, err := b.column(col)
	if err != nil {
		return err
	}
	fmt.Fprintf(&b.sql, "%s %s %s", name, op, b.placeholder(val))
	return nil
}

func (b *builder) contains(col string, values []string, negate bool) error {
	name, err := b.arrayColumn(col)
	if err != nil {
		return err
	}
	if negate {
		b.sql.WriteString("NOT (")
	}
	fmt.Fprintf(&b.sql, "%s @> %s", name, b.placeholder(pq.Array(values)))
	if negate {
		b.sql.WriteString(")")
	}
	return nil
}

func (b *builder) group(exprs []Expr, sep string) error {
	b.sql.WriteString("(")
	for i, e := range exprs {
		if i > 0 {
			b.sql.WriteString(sep)
		}
		if err := b.walk(e); err != nil {
			return err
		}
	}
	b.sql.WriteString(")")
	return nil
}

func (b *builder) walk(e Expr) error {
	switch v := e.(type) {
	case Eq:
		return b.binary(v.Column, "=", v.Value)
	case Ne:
		return b.binary(v.Column, "!=", v.Value)
	case Gt:
		return b.binary(v.Column, ">", v.Value)
	case Ge:
		return b.binary(v.Column, ">=", v.Value)
	case Lt:
		return b.binary(v.Column, "<", v.Value)
	case Le:
		return b.binary(v.Column, "<=", v.Value)
	case Like:
		return b.binary(v.Column, "LIKE", v.Value)
	case Ilike:
		return b.binary(v.Column, "ILIKE", v.Value)
	case Null:
		name, err := b.column(v.Column)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b.sql, "%s IS NULL", name)
		return nil
	case Contains:
		return b.contains(v.Column, v.Values, false)
	case NotContains:
		return b.contains(v.Column, v.Values, true)
	case And:
		return b.group(v.Exprs, " AND ")
	case Or:
		return b.group(v.Exprs, " OR ")
	case Not:
		b.sql.WriteString("NOT (")
		if err := b.walk(v.Expr); err != nil {
			return err
		}
		b.sql.WriteString(")")
		return nil
	}
	return cierr.Invalid("unsupported filter expression %T", e)
}
