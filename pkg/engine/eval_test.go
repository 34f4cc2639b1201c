package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docfusion/docfusion/pkg/models"
)

func mustRecord(t *testing.T, doc string) *record {
	t.Helper()
	rec, err := newRecord(1, doc, time.Now(), time.Now())
	require.NoError(t, err)
	return rec
}

func TestExtractPath(t *testing.T) {
	doc := map[string]interface{}{
		"status": "active",
		"user": map[string]interface{}{
			"address": map[string]interface{}{"city": "Oslo"},
			"age":     float64(30),
		},
	}

	assert.Equal(t, "active", extractPath(doc, []string{"status"}))
	assert.Equal(t, "Oslo", extractPath(doc, []string{"user", "address", "city"}))
	assert.Equal(t, "", extractPath(doc, []string{"missing"}), "missing path yields empty text")
	assert.Equal(t, "", extractPath(doc, []string{"user", "age"}), "non-text leaf yields empty text")
	assert.Equal(t, "", extractPath(doc, []string{"status", "deeper"}), "descending through a scalar yields empty text")
}

func TestContainsValue(t *testing.T) {
	target := map[string]interface{}{
		"a":    "x",
		"b":    map[string]interface{}{"c": float64(1), "d": true},
		"tags": []interface{}{"red", "blue", "green"},
	}

	tests := []struct {
		name    string
		pattern interface{}
		want    bool
	}{
		{"single key", map[string]interface{}{"a": "x"}, true},
		{"nested subset", map[string]interface{}{"b": map[string]interface{}{"c": float64(1)}}, true},
		{"wrong value", map[string]interface{}{"a": "y"}, false},
		{"missing key", map[string]interface{}{"z": "x"}, false},
		{"array subset", map[string]interface{}{"tags": []interface{}{"blue"}}, true},
		{"array superset", map[string]interface{}{"tags": []interface{}{"blue", "black"}}, false},
		{"empty object contains everything", map[string]interface{}{}, true},
		{"type mismatch", map[string]interface{}{"a": float64(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsValue(target, tt.pattern))
		})
	}
}

func TestMultiContainsMatchesSingleContains(t *testing.T) {
	docs := []string{
		`{"a": 1, "b": {"c": "x"}}`,
		`{"a": 2}`,
		`{"b": {"c": "x"}, "extra": true}`,
	}
	patterns := []string{
		`{"a": 1}`,
		`{"b": {"c": "x"}}`,
		`{"a": 1, "b": {"c": "x"}}`,
		`{"missing": null}`,
	}

	for _, docText := range docs {
		rec := mustRecord(t, docText)
		for _, pattern := range patterns {
			single := models.Call{Func: models.FuncContains, Args: []models.Expr{
				models.Column{Name: "doc"}, models.StringLit{Value: pattern},
			}}
			multi := models.Call{Func: models.FuncMultiContains, Args: []models.Expr{
				models.Column{Name: "doc"}, models.StringLit{Value: pattern},
			}}

			s, err := evalPredicate(single, rec)
			require.NoError(t, err)
			m, err := evalPredicate(multi, rec)
			require.NoError(t, err)
			assert.Equal(t, s, m, "doc %s pattern %s", docText, pattern)
		}
	}
}

func TestEvalEqualityIsTextual(t *testing.T) {
	rec := mustRecord(t, `{"age": "30", "name": "ada"}`)

	extractAge := models.Call{Func: models.FuncExtractPath, Args: []models.Expr{
		models.Column{Name: "doc"}, models.StringLit{Value: "age"},
	}}

	eq, err := evalPredicate(models.Binary{Op: models.OpEq, Left: extractAge, Right: models.NumberLit{Value: 30}}, rec)
	require.NoError(t, err)
	assert.True(t, eq, "number literals compare against extracted text by their decimal form")

	neq, err := evalPredicate(models.Binary{Op: models.OpNeq, Left: extractAge, Right: models.StringLit{Value: "31"}}, rec)
	require.NoError(t, err)
	assert.True(t, neq)
}

func TestEvalBooleanOperators(t *testing.T) {
	rec := mustRecord(t, `{"a": "1", "b": "2"}`)

	extract := func(key string) models.Expr {
		return models.Call{Func: models.FuncExtractPath, Args: []models.Expr{
			models.Column{Name: "doc"}, models.StringLit{Value: key},
		}}
	}
	eq := func(key, val string) models.Expr {
		return models.Binary{Op: models.OpEq, Left: extract(key), Right: models.StringLit{Value: val}}
	}

	and, err := evalPredicate(models.Binary{Op: models.OpAnd, Left: eq("a", "1"), Right: eq("b", "2")}, rec)
	require.NoError(t, err)
	assert.True(t, and)

	or, err := evalPredicate(models.Binary{Op: models.OpOr, Left: eq("a", "9"), Right: eq("b", "2")}, rec)
	require.NoError(t, err)
	assert.True(t, or)

	both, err := evalPredicate(models.Binary{Op: models.OpAnd, Left: eq("a", "9"), Right: eq("b", "2")}, rec)
	require.NoError(t, err)
	assert.False(t, both)
}

func TestEvalRejectsNonBooleanPredicate(t *testing.T) {
	rec := mustRecord(t, `{"a": "1"}`)
	extract := models.Call{Func: models.FuncExtractPath, Args: []models.Expr{
		models.Column{Name: "doc"}, models.StringLit{Value: "a"},
	}}
	_, err := evalPredicate(extract, rec)
	require.Error(t, err)
}
