// Package filter parses AIP-160 filter expressions over journal events and
// compiles them to either a SQL WHERE fragment or an in-memory predicate.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Fields are the filterable attributes of one event.
type Fields struct {
	Type       string
	ActorID    string
	RequestID  string
	EntityType string
	EntityID   string
	Seq        int64
	Timestamp  time.Time
}

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindTime
)

type field struct {
	column string
	kind   fieldKind
	get    func(Fields) any
}

var fields = map[string]field{
	"type":        {column: "event_type", kind: kindString, get: func(f Fields) any { return f.Type }},
	"actor_id":    {column: "actor_id", kind: kindString, get: func(f Fields) any { return f.ActorID }},
	"request_id":  {column: "request_id", kind: kindString, get: func(f Fields) any { return f.RequestID }},
	"entity_type": {column: "entity_type", kind: kindString, get: func(f Fields) any { return f.EntityType }},
	"entity_id":   {column: "entity_id", kind: kindString, get: func(f Fields) any { return f.EntityID }},
	"seq":         {column: "seq", kind: kindInt, get: func(f Fields) any { return f.Seq }},
	"ts":          {column: "ts", kind: kindTime, get: func(f Fields) any { return f.Timestamp.UTC().UnixMilli() }},
}

// EventDeclarations returns the field declarations for event filtering.
func EventDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("type", filtering.TypeString),
		filtering.DeclareIdent("actor_id", filtering.TypeString),
		filtering.DeclareIdent("request_id", filtering.TypeString),
		filtering.DeclareIdent("entity_type", filtering.TypeString),
		filtering.DeclareIdent("entity_id", filtering.TypeString),
		filtering.DeclareIdent("seq", filtering.TypeInt),
		filtering.DeclareIdent("ts", filtering.TypeTimestamp),
	)
}

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

// Predicate reports whether an event matches.
type Predicate func(Fields) bool

// Filter is a parsed event filter.
type Filter struct {
	// Raw is the trimmed source expression.
	Raw       string
	condition SQLCondition
	predicate Predicate
}

// Empty reports whether the filter matches everything.
func (f Filter) Empty() bool {
	return f.Raw == ""
}

// SQL returns the WHERE fragment. Empty filters return an empty clause.
func (f Filter) SQL() SQLCondition {
	return f.condition
}

// Match evaluates the filter against one event.
func (f Filter) Match(fields Fields) bool {
	if f.predicate == nil {
		return true
	}
	return f.predicate(fields)
}

// Parse parses an AIP-160 filter expression.
// An empty string yields a filter that matches everything.
func Parse(filterStr string) (Filter, error) {
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return Filter{}, nil
	}
	decls, err := EventDeclarations()
	if err != nil {
		return Filter{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return Filter{}, fmt.Errorf("parse filter: %w", err)
	}
	node, err := compile(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return Filter{}, err
	}
	return Filter{Raw: filterStr, condition: node.sql, predicate: node.match}, nil
}

type compiled struct {
	sql   SQLCondition
	match Predicate
}

func compile(e *expr.Expr) (compiled, error) {
	if e == nil {
		return compiled{}, fmt.Errorf("nil expression")
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return compiled{}, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}
	switch fn := call.CallExpr.Function; fn {
	case "_&&_", "AND":
		return compileLogical(call.CallExpr.Args, "AND", func(a, b bool) bool { return a && b })
	case "_||_", "OR":
		return compileLogical(call.CallExpr.Args, "OR", func(a, b bool) bool { return a || b })
	case "NOT":
		if len(call.CallExpr.Args) != 1 {
			return compiled{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := compile(call.CallExpr.Args[0])
		if err != nil {
			return compiled{}, err
		}
		return compiled{
			sql:   SQLCondition{Clause: fmt.Sprintf("(NOT %s)", inner.sql.Clause), Params: inner.sql.Params},
			match: func(f Fields) bool { return !inner.match(f) },
		}, nil
	case "_==_", "=":
		return compileComparison(call.CallExpr.Args, "=")
	case "_!=_", "!=":
		return compileComparison(call.CallExpr.Args, "!=")
	case "_<_", "<":
		return compileComparison(call.CallExpr.Args, "<")
	case "_<=_", "<=":
		return compileComparison(call.CallExpr.Args, "<=")
	case "_>_", ">":
		return compileComparison(call.CallExpr.Args, ">")
	case "_>=_", ">=":
		return compileComparison(call.CallExpr.Args, ">=")
	default:
		return compiled{}, fmt.Errorf("unsupported function: %s", fn)
	}
}

func compileLogical(args []*expr.Expr, op string, combine func(a, b bool) bool) (compiled, error) {
	if len(args) < 2 {
		return compiled{}, fmt.Errorf("%s requires 2 arguments", op)
	}
	out, err := compile(args[0])
	if err != nil {
		return compiled{}, err
	}
	for _, arg := range args[1:] {
		right, err := compile(arg)
		if err != nil {
			return compiled{}, err
		}
		left := out
		out = compiled{
			sql: SQLCondition{
				Clause: fmt.Sprintf("(%s %s %s)", left.sql.Clause, op, right.sql.Clause),
				Params: append(append([]any(nil), left.sql.Params...), right.sql.Params...),
			},
			match: func(f Fields) bool { return combine(left.match(f), right.match(f)) },
		}
	}
	return out, nil
}

func compileComparison(args []*expr.Expr, op string) (compiled, error) {
	if len(args) != 2 {
		return compiled{}, fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return compiled{}, fmt.Errorf("expected identifier, got %T", args[0].GetExprKind())
	}
	name := ident.IdentExpr.GetName()
	f, ok := fields[name]
	if !ok {
		return compiled{}, fmt.Errorf("unknown field: %s", name)
	}
	value, err := extractValue(args[1], f.kind)
	if err != nil {
		return compiled{}, fmt.Errorf("%s: %w", name, err)
	}
	return compiled{
		sql: SQLCondition{Clause: fmt.Sprintf("%s %s ?", f.column, op), Params: []any{value}},
		match: func(fields Fields) bool {
			return compare(f.get(fields), value, op)
		},
	}, nil
}

func extractValue(e *expr.Expr, kind fieldKind) (any, error) {
	switch v := e.GetExprKind().(type) {
	case *expr.Expr_ConstExpr:
		switch c := v.ConstExpr.GetConstantKind().(type) {
		case *expr.Constant_StringValue:
			if kind != kindString {
				return nil, fmt.Errorf("expected string value")
			}
			return c.StringValue, nil
		case *expr.Constant_Int64Value:
			if kind != kindInt {
				return nil, fmt.Errorf("expected integer value")
			}
			return c.Int64Value, nil
		default:
			return nil, fmt.Errorf("unsupported constant type: %T", c)
		}
	case *expr.Expr_CallExpr:
		if v.CallExpr.GetFunction() != "timestamp" || len(v.CallExpr.GetArgs()) != 1 || kind != kindTime {
			return nil, fmt.Errorf("unsupported function in value position: %s", v.CallExpr.GetFunction())
		}
		ts, err := extractTimestamp(v.CallExpr.GetArgs()[0])
		if err != nil {
			return nil, err
		}
		return ts.UnixMilli(), nil
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", v)
	}
}

func extractTimestamp(e *expr.Expr) (time.Time, error) {
	c, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	s, ok := c.ConstExpr.GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, s.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", s.StringValue)
	}
	return t.UTC(), nil
}

func compare(actual, want any, op string) bool {
	switch a := actual.(type) {
	case string:
		return compareOrdered(a, want.(string), op)
	case int64:
		return compareOrdered(a, want.(int64), op)
	}
	return false
}

func compareOrdered[T string | int64](a, b T, op string) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}
