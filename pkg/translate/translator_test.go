package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docfusion/docfusion/pkg/models"
)

func extract(keys ...string) models.Call {
	args := []models.Expr{models.Column{Name: "doc"}}
	for _, k := range keys {
		args = append(args, models.StringLit{Value: k})
	}
	return models.Call{Func: models.FuncExtractPath, Args: args}
}

func contains(fn, pattern string) models.Call {
	return models.Call{Func: fn, Args: []models.Expr{
		models.Column{Name: "doc"},
		models.StringLit{Value: pattern},
	}}
}

func TestTranslateExtractPath(t *testing.T) {
	// Extraction is an operand, so each shape is exercised inside an
	// equality predicate.
	tests := []struct {
		name string
		expr models.Expr
		sql  string
		ok   bool
	}{
		{"single key", extract("status"), "doc->>'status' = 'x'", true},
		{"nested keys", extract("user", "address", "city"), "doc->'user'->'address'->>'city' = 'x'", true},
		{"quote in key", extract("o'brien"), "doc->>'o''brien' = 'x'", true},
		{"no keys", models.Call{Func: models.FuncExtractPath, Args: []models.Expr{models.Column{Name: "doc"}}}, "", false},
		{"wrong column", models.Call{Func: models.FuncExtractPath, Args: []models.Expr{
			models.Column{Name: "id"}, models.StringLit{Value: "k"},
		}}, "", false},
		{"non-literal key", models.Call{Func: models.FuncExtractPath, Args: []models.Expr{
			models.Column{Name: "doc"}, models.Column{Name: "id"},
		}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eq := models.Binary{Op: models.OpEq, Left: tt.expr, Right: models.StringLit{Value: "x"}}
			sql, ok := Translate(eq)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.sql, sql)
		})
	}
}

func TestTranslateRequiresBooleanShape(t *testing.T) {
	// A bare operand would render as a non-boolean WHERE fragment that the
	// store rejects with a syntax error instead of falling back.
	_, ok := Translate(extract("status"))
	assert.False(t, ok, "a lone extraction call must stay residual")

	_, ok = Translate(models.StringLit{Value: "active"})
	assert.False(t, ok, "a lone string literal must stay residual")

	_, ok = Translate(models.NumberLit{Value: 1})
	assert.False(t, ok)

	_, ok = Translate(models.Column{Name: "doc"})
	assert.False(t, ok)
}

func TestTranslateContains(t *testing.T) {
	sql, ok := Translate(contains(models.FuncContains, `{"status": "active"}`))
	assert.True(t, ok)
	assert.Equal(t, `doc @> '{"status":"active"}'::jsonb`, sql)
}

func TestTranslateMultiContainsMatchesSingle(t *testing.T) {
	pattern := `{"a": 1, "b": {"c": true}}`
	single, okSingle := Translate(contains(models.FuncContains, pattern))
	multi, okMulti := Translate(contains(models.FuncMultiContains, pattern))
	assert.True(t, okSingle)
	assert.True(t, okMulti)
	assert.Equal(t, single, multi)
}

func TestTranslateContainsRejectsNonObjectPatterns(t *testing.T) {
	// Empty objects match everything, arrays and scalars have different
	// containment semantics, and unparseable patterns cannot be trusted.
	for _, pattern := range []string{
		`{}`,
		`[1, 2]`,
		`"scalar"`,
		`not json`,
		`{"broken": }`,
	} {
		_, ok := Translate(contains(models.FuncContains, pattern))
		assert.False(t, ok, "pattern %q must not push down", pattern)
	}
}

func TestTranslateEquality(t *testing.T) {
	eq := models.Binary{Op: models.OpEq, Left: extract("status"), Right: models.StringLit{Value: "active"}}
	sql, ok := Translate(eq)
	assert.True(t, ok)
	assert.Equal(t, "doc->>'status' = 'active'", sql)

	// Extraction yields text; a numeric comparand stays engine-side.
	numEq := models.Binary{Op: models.OpEq, Left: extract("age"), Right: models.NumberLit{Value: 30}}
	_, ok = Translate(numEq)
	assert.False(t, ok)
}

func TestTranslateAnd(t *testing.T) {
	expr := models.Binary{
		Op:    models.OpAnd,
		Left:  models.Binary{Op: models.OpEq, Left: extract("status"), Right: models.StringLit{Value: "active"}},
		Right: contains(models.FuncContains, `{"tier":"gold"}`),
	}
	sql, ok := Translate(expr)
	assert.True(t, ok)
	assert.Equal(t, `(doc->>'status' = 'active' AND doc @> '{"tier":"gold"}'::jsonb)`, sql)

	// One untranslatable side poisons the conjunction.
	mixed := models.Binary{
		Op:    models.OpAnd,
		Left:  models.Binary{Op: models.OpEq, Left: extract("status"), Right: models.StringLit{Value: "active"}},
		Right: models.Binary{Op: models.OpOr, Left: extract("a"), Right: extract("b")},
	}
	_, ok = Translate(mixed)
	assert.False(t, ok)
}

func TestTranslateUnsupportedOperators(t *testing.T) {
	neq := models.Binary{Op: models.OpNeq, Left: extract("status"), Right: models.StringLit{Value: "active"}}
	_, ok := Translate(neq)
	assert.False(t, ok)

	or := models.Binary{Op: models.OpOr, Left: extract("a"), Right: extract("b")}
	_, ok = Translate(or)
	assert.False(t, ok)
}
