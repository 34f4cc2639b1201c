package models

import (
	"fmt"
	"strings"
)

// Scalar functions understood by the translator and the evaluator.
const (
	FuncExtractPath   = "json_extract_path"
	FuncContains      = "json_contains"
	FuncMultiContains = "json_multi_contains"
)

// BinaryOp enumerates the boolean and comparison operators of the
// expression tree.
type BinaryOp string

const (
	OpEq  BinaryOp = "="
	OpNeq BinaryOp = "!="
	OpAnd BinaryOp = "AND"
	OpOr  BinaryOp = "OR"
)

// Expr is one node of a parsed predicate or select item.
type Expr interface {
	fmt.Stringer
	exprNode()
}

// Column references a column of the virtual documents table.
type Column struct {
	Name string
}

// StringLit is a quoted string literal. For containment calls the value is
// the JSON pattern text.
type StringLit struct {
	Value string
}

// NumberLit is an integer literal.
type NumberLit struct {
	Value int64
}

// Call applies one of the scalar functions to its arguments.
type Call struct {
	Func string
	Args []Expr
}

// Binary combines two subexpressions with a comparison or boolean operator.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (Column) exprNode()    {}
func (StringLit) exprNode() {}
func (NumberLit) exprNode() {}
func (Call) exprNode()      {}
func (Binary) exprNode()    {}

func (c Column) String() string    { return c.Name }
func (s StringLit) String() string { return fmt.Sprintf("'%s'", strings.ReplaceAll(s.Value, "'", "''")) }
func (n NumberLit) String() string { return fmt.Sprintf("%d", n.Value) }

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Func, strings.Join(args, ", "))
}

func (b Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// Conjuncts flattens nested top-level ANDs into a list of predicates. Any
// other expression is returned as a single-element list.
func Conjuncts(e Expr) []Expr {
	if b, ok := e.(Binary); ok && b.Op == OpAnd {
		return append(Conjuncts(b.Left), Conjuncts(b.Right)...)
	}
	return []Expr{e}
}
