// Package engine embeds a minimal SQL engine over the virtual documents
// table. It parses single-table SELECT statements, pushes what the store
// can evaluate into the scan, and evaluates the rest itself.
package engine

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/models"
)

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(SELECT|FROM|WHERE|ORDER|BY|ASC|DESC|LIMIT|OFFSET|AND|OR|AS)\b`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Number", Pattern: `\d+`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Operator", Pattern: `!=|=|\(|\)|,|\*`},
	{Name: "whitespace", Pattern: `\s+`},
})

type selectStatement struct {
	Star    bool          `parser:"\"SELECT\" ( @\"*\""`
	Items   []*selectItem `parser:"        | @@ (\",\" @@)* )"`
	From    string        `parser:"\"FROM\" @Ident"`
	Where   *orExpr       `parser:"(\"WHERE\" @@)?"`
	OrderBy *orderClause  `parser:"(\"ORDER\" \"BY\" @@)?"`
	Limit   *int64        `parser:"(\"LIMIT\" @Number"`
	Offset  *int64        `parser:"  (\"OFFSET\" @Number)?)?"`
}

type selectItem struct {
	Expr  *primary `parser:"@@"`
	Alias string   `parser:"(\"AS\" @Ident)?"`
}

type orderClause struct {
	Column string `parser:"@Ident"`
	Desc   bool   `parser:"(@\"DESC\" | \"ASC\")?"`
}

type orExpr struct {
	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"(\"OR\" @@)*"`
}

type andExpr struct {
	Left  *comparison   `parser:"@@"`
	Right []*comparison `parser:"(\"AND\" @@)*"`
}

type comparison struct {
	Left  *primary `parser:"@@"`
	Op    string   `parser:"(@(\"=\" | \"!=\")"`
	Right *primary `parser:" @@)?"`
}

type primary struct {
	Call   *callExpr `parser:"  @@"`
	Column *string   `parser:"| @Ident"`
	String *string   `parser:"| @String"`
	Number *int64    `parser:"| @Number"`
	Sub    *orExpr   `parser:"| \"(\" @@ \")\""`
}

type callExpr struct {
	Func string     `parser:"@Ident \"(\""`
	Args []*primary `parser:"(@@ (\",\" @@)*)? \")\""`
}

var parser = participle.MustBuild[selectStatement](
	participle.Lexer(sqlLexer),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

// Statement is a parsed SELECT over the documents table.
type Statement struct {
	Star    bool
	Items   []Item
	Where   models.Expr // nil when absent
	OrderBy *orderSpec
	Limit   *int64
	Offset  *int64
}

// Item is one select-list entry with its output name.
type Item struct {
	Expr models.Expr
	Name string
}

type orderSpec struct {
	Column string
	Desc   bool
}

// Parse parses query text into a statement. Malformed queries fail with a
// query syntax error; they are the caller's fault and are never retried.
func Parse(query string) (*Statement, error) {
	ast, err := parser.ParseString("", query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeQuerySyntax, err.Error())
	}

	if !strings.EqualFold(ast.From, "documents") {
		return nil, apperrors.New(apperrors.CodeQuerySyntax, "unknown table "+ast.From)
	}

	stmt := &Statement{Star: ast.Star, Limit: ast.Limit, Offset: ast.Offset}
	for _, item := range ast.Items {
		expr, err := convertPrimary(item.Expr)
		if err != nil {
			return nil, err
		}
		name := item.Alias
		if name == "" {
			name = defaultName(expr)
		}
		stmt.Items = append(stmt.Items, Item{Expr: expr, Name: name})
	}
	if ast.Where != nil {
		expr, err := convertOr(ast.Where)
		if err != nil {
			return nil, err
		}
		stmt.Where = expr
	}
	if ast.OrderBy != nil {
		stmt.OrderBy = &orderSpec{Column: strings.ToLower(ast.OrderBy.Column), Desc: ast.OrderBy.Desc}
	}
	return stmt, nil
}

func convertOr(e *orExpr) (models.Expr, error) {
	left, err := convertAnd(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := convertAnd(r)
		if err != nil {
			return nil, err
		}
		left = models.Binary{Op: models.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func convertAnd(e *andExpr) (models.Expr, error) {
	left, err := convertComparison(e.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Right {
		right, err := convertComparison(r)
		if err != nil {
			return nil, err
		}
		left = models.Binary{Op: models.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func convertComparison(e *comparison) (models.Expr, error) {
	left, err := convertPrimary(e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op == "" {
		return left, nil
	}
	right, err := convertPrimary(e.Right)
	if err != nil {
		return nil, err
	}
	op := models.OpEq
	if e.Op == "!=" {
		op = models.OpNeq
	}
	return models.Binary{Op: op, Left: left, Right: right}, nil
}

func convertPrimary(p *primary) (models.Expr, error) {
	switch {
	case p.Call != nil:
		return convertCall(p.Call)
	case p.Column != nil:
		return models.Column{Name: strings.ToLower(*p.Column)}, nil
	case p.String != nil:
		return models.StringLit{Value: unquote(*p.String)}, nil
	case p.Number != nil:
		return models.NumberLit{Value: *p.Number}, nil
	case p.Sub != nil:
		return convertOr(p.Sub)
	}
	return nil, apperrors.New(apperrors.CodeQuerySyntax, "empty expression")
}

func convertCall(c *callExpr) (models.Expr, error) {
	fn := strings.ToLower(c.Func)
	switch fn {
	case models.FuncExtractPath, models.FuncContains, models.FuncMultiContains:
	default:
		return nil, apperrors.New(apperrors.CodeQuerySyntax, "unknown function "+c.Func)
	}

	args := make([]models.Expr, 0, len(c.Args))
	for _, a := range c.Args {
		arg, err := convertPrimary(a)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	if fn == models.FuncExtractPath && len(args) < 2 {
		return nil, apperrors.New(apperrors.CodeQuerySyntax, "json_extract_path requires a column and at least one key")
	}
	if (fn == models.FuncContains || fn == models.FuncMultiContains) && len(args) != 2 {
		return nil, apperrors.New(apperrors.CodeQuerySyntax, fn+" requires exactly two arguments")
	}
	return models.Call{Func: fn, Args: args}, nil
}

// unquote strips the surrounding single quotes and unescapes doubled ones.
func unquote(s string) string {
	s = s[1 : len(s)-1]
	return strings.ReplaceAll(s, "''", "'")
}

func defaultName(e models.Expr) string {
	if c, ok := e.(models.Column); ok {
		return c.Name
	}
	return e.String()
}
