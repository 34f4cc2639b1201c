// Package translate converts expression trees over the virtual documents
// table into native SQL fragments. Translation is rule-based: a shape the
// rules do not recognize yields ok == false, and the caller evaluates that
// predicate itself. Unsupported is a routing signal, never an error.
package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docfusion/docfusion/pkg/models"
)

// DocColumn is the JSONB column of the documents table that the scalar
// functions operate on.
const DocColumn = "doc"

// Translate renders e as a SQL predicate against the documents table.
// Only boolean shapes translate at the top level: containment calls, text
// equality, and conjunctions of translatable predicates. Literals and
// extraction calls are comparison operands, not predicates, so on their
// own they stay residual instead of becoming a non-boolean WHERE fragment
// the store would reject. ok reports whether the expression is within the
// supported pushdown set.
func Translate(e models.Expr) (string, bool) {
	switch v := e.(type) {
	case models.Call:
		switch v.Func {
		case models.FuncContains, models.FuncMultiContains:
			return translateContains(v)
		default:
			return "", false
		}
	case models.Binary:
		return translateBinary(v)
	default:
		return "", false
	}
}

// translateExtract renders json_extract_path(doc, k1, ..., kn) as chained
// -> operators with a final ->>, so the fragment always yields text.
func translateExtract(c models.Call) (string, bool) {
	if len(c.Args) < 2 {
		return "", false
	}
	col, ok := c.Args[0].(models.Column)
	if !ok || col.Name != DocColumn {
		return "", false
	}

	keys := make([]string, 0, len(c.Args)-1)
	for _, arg := range c.Args[1:] {
		lit, ok := arg.(models.StringLit)
		if !ok {
			return "", false
		}
		keys = append(keys, lit.Value)
	}

	var sb strings.Builder
	sb.WriteString(DocColumn)
	for i, key := range keys {
		if i == len(keys)-1 {
			sb.WriteString("->>")
		} else {
			sb.WriteString("->")
		}
		sb.WriteString(quoteString(key))
	}
	return sb.String(), true
}

// translateContains renders json_contains(doc, pattern) as the native
// containment operator. The pattern must be a non-empty JSON object; any
// other pattern falls back to engine-side evaluation rather than guessing
// at array or scalar containment semantics.
func translateContains(c models.Call) (string, bool) {
	if len(c.Args) != 2 {
		return "", false
	}
	col, ok := c.Args[0].(models.Column)
	if !ok || col.Name != DocColumn {
		return "", false
	}
	lit, ok := c.Args[1].(models.StringLit)
	if !ok {
		return "", false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(lit.Value), &obj); err != nil || len(obj) == 0 {
		return "", false
	}

	// Re-encode so the embedded literal is canonical JSON regardless of
	// how the caller formatted the pattern.
	canonical, err := json.Marshal(obj)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s @> %s::jsonb", DocColumn, quoteString(string(canonical))), true
}

func translateBinary(b models.Binary) (string, bool) {
	switch b.Op {
	case models.OpEq:
		return translateEq(b)
	case models.OpAnd:
		left, ok := Translate(b.Left)
		if !ok {
			return "", false
		}
		right, ok := Translate(b.Right)
		if !ok {
			return "", false
		}
		return fmt.Sprintf("(%s AND %s)", left, right), true
	default:
		return "", false
	}
}

// translateEq pushes equality only between text operands. Extraction yields
// text on the store side, so comparing it against a number literal would
// need a cast the evaluator does not mirror; those predicates stay residual.
func translateEq(b models.Binary) (string, bool) {
	left, ok := translateOperand(b.Left)
	if !ok {
		return "", false
	}
	right, ok := translateOperand(b.Right)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s = %s", left, right), true
}

// translateOperand renders a comparison operand: a string literal or an
// extraction call, both of which yield text.
func translateOperand(e models.Expr) (string, bool) {
	switch v := e.(type) {
	case models.StringLit:
		return quoteString(v.Value), true
	case models.Call:
		if v.Func == models.FuncExtractPath {
			return translateExtract(v)
		}
		return "", false
	default:
		return "", false
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
