// Package expr provides the typed column/expression abstraction that
// stands in for a schema-introspection layer (the spec's reference
// implementation uses Drizzle ORM column objects; this is "an equivalent
// typed-column abstraction" per spec §1/§6). A cube's measure and
// dimension sql(ctx) functions return an Expr, never a raw string, so the
// SQL builder always has table/column/type metadata to work with.
package expr

import "fmt"

// Type is the logical column type, used by dialect adapters to decide
// coercions (e.g. boolean handling on MySQL, numeric-as-string results).
type Type int

const (
	Unknown Type = iota
	TypeString
	TypeNumber
	TypeBoolean
	TypeTime
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeTime:
		return "time"
	default:
		return "unknown"
	}
}

// Table identifies a physical table or aliased relation (a base table, a
// CTE, or a join alias) that a Column belongs to.
type Table struct {
	Schema string // optional
	Name   string // physical name, e.g. "employees"
	Alias  string // alias actually emitted in SQL, e.g. "employees" or "productivity_agg"
}

// Ref is the unquoted name a Column's table is referred to by in SQL:
// Alias when set, otherwise Name (e.g. "employees").
func (t Table) Ref() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Expr is a sum type of Column | Raw | Dynamic, matching spec §9 Design
// Notes ("model this as a sum type Expr = Column(ColumnRef) | Raw(Sql) |
// Dynamic(fn)"). It is a closed interface: only types in this package
// implement it, via the unexported exprTag method, the same technique the
// teacher uses for its own Pattern/PatternElement sum types
// (datalog/query/types.go).
type Expr interface {
	exprTag()
	// String renders a human-debuggable form; it is never the literal SQL
	// emitted (the SQL builder re-renders using dialect-specific quoting).
	String() string
}

// Column references a single physical or CTE-projected column.
type Column struct {
	Table Table
	Name  string
	Type  Type
}

func (Column) exprTag() {}
func (c Column) String() string {
	return fmt.Sprintf("%s.%s", c.Table.Ref(), c.Name)
}

// Raw is a verbatim SQL fragment with its own bind parameters, used for
// expressions a cube author writes by hand (e.g. `CASE WHEN ... END`).
// Args are positional placeholders within SQL using the builder's
// placeholder convention (see dialect.Adapter.Placeholder); SQL itself
// should use `?` as a dialect-neutral marker which the assembler
// rewrites to the target dialect's placeholder style as it linearizes
// parameters.
type Raw struct {
	SQL  string
	Args []any
}

func (Raw) exprTag() {}
func (r Raw) String() string { return r.SQL }

// Dynamic defers expression construction until a QueryContext is
// available — the realization of "measure/dimension sql functions return
// ... a function of context" (spec §9). Ctx is an opaque interface{}
// because expr cannot import the cube package (which itself imports
// expr) without a cycle; callers type-assert to their own context type.
type Dynamic struct {
	Fn func(ctx any) Expr
}

func (Dynamic) exprTag() {}
func (d Dynamic) String() string { return "<dynamic>" }

// Resolve repeatedly applies Dynamic expressions until a Column or Raw is
// reached, so downstream code never has to special-case Dynamic.
func Resolve(e Expr, ctx any) Expr {
	for {
		d, ok := e.(Dynamic)
		if !ok {
			return e
		}
		e = d.Fn(ctx)
	}
}
