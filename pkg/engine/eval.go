package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/models"
)

// record is one materialized row of the virtual table during evaluation.
type record struct {
	ID        int64
	DocText   string
	Doc       map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

func newRecord(id int64, docText string, createdAt, updatedAt time.Time) (*record, error) {
	rec := &record{ID: id, DocText: docText, CreatedAt: createdAt, UpdatedAt: updatedAt}
	if err := json.Unmarshal([]byte(docText), &rec.Doc); err != nil {
		// Stored documents are always objects; anything else would be a
		// storage invariant violation.
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "stored document is not a JSON object")
	}
	return rec, nil
}

// extractPath walks nested object keys and returns the value as text, the
// same way the pushed-down form does. Missing paths and non-text leaves
// yield the empty string.
func extractPath(doc map[string]interface{}, keys []string) string {
	var current interface{} = doc
	for _, key := range keys {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[key]
		if !ok {
			return ""
		}
	}
	s, ok := current.(string)
	if !ok {
		return ""
	}
	return s
}

// containsValue implements JSONB containment: objects contain a pattern
// object when every pattern key is present with a contained value, arrays
// contain a pattern array when every pattern element is contained by some
// target element, and scalars contain only their exact equals.
func containsValue(target, pattern interface{}) bool {
	switch p := pattern.(type) {
	case map[string]interface{}:
		t, ok := target.(map[string]interface{})
		if !ok {
			return false
		}
		for key, pv := range p {
			tv, ok := t[key]
			if !ok || !containsValue(tv, pv) {
				return false
			}
		}
		return true
	case []interface{}:
		t, ok := target.([]interface{})
		if !ok {
			return false
		}
		for _, pv := range p {
			found := false
			for _, tv := range t {
				if containsValue(tv, pv) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(target, pattern)
	}
}

// evalPredicate evaluates a boolean expression against one record.
func evalPredicate(e models.Expr, rec *record) (bool, error) {
	switch v := e.(type) {
	case models.Binary:
		return evalBinary(v, rec)
	case models.Call:
		switch v.Func {
		case models.FuncContains, models.FuncMultiContains:
			return evalContains(v, rec)
		}
		return false, apperrors.New(apperrors.CodeInvalidRequest,
			fmt.Sprintf("%s is not a boolean predicate", v.Func))
	default:
		return false, apperrors.New(apperrors.CodeInvalidRequest,
			fmt.Sprintf("%s is not a boolean predicate", e))
	}
}

func evalBinary(b models.Binary, rec *record) (bool, error) {
	switch b.Op {
	case models.OpAnd, models.OpOr:
		left, err := evalPredicate(b.Left, rec)
		if err != nil {
			return false, err
		}
		if b.Op == models.OpAnd && !left {
			return false, nil
		}
		if b.Op == models.OpOr && left {
			return true, nil
		}
		return evalPredicate(b.Right, rec)
	case models.OpEq, models.OpNeq:
		left, err := evalValue(b.Left, rec)
		if err != nil {
			return false, err
		}
		right, err := evalValue(b.Right, rec)
		if err != nil {
			return false, err
		}
		// Comparison is textual: extraction yields text, and both sides
		// are stringified the same way.
		eq := asText(left) == asText(right)
		if b.Op == models.OpNeq {
			return !eq, nil
		}
		return eq, nil
	default:
		return false, apperrors.New(apperrors.CodeInvalidRequest, "unsupported operator "+string(b.Op))
	}
}

func evalContains(c models.Call, rec *record) (bool, error) {
	lit, ok := c.Args[1].(models.StringLit)
	if !ok {
		return false, apperrors.New(apperrors.CodeInvalidRequest, c.Func+" pattern must be a string literal")
	}
	var pattern interface{}
	if err := json.Unmarshal([]byte(lit.Value), &pattern); err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeInvalidRequest, c.Func+" pattern is not valid JSON")
	}
	return containsValue(rec.Doc, pattern), nil
}

// evalValue evaluates a scalar expression against one record.
func evalValue(e models.Expr, rec *record) (interface{}, error) {
	switch v := e.(type) {
	case models.StringLit:
		return v.Value, nil
	case models.NumberLit:
		return v.Value, nil
	case models.Column:
		switch v.Name {
		case "id":
			return rec.ID, nil
		case "doc":
			return rec.DocText, nil
		case "created_at":
			return rec.CreatedAt, nil
		case "updated_at":
			return rec.UpdatedAt, nil
		}
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "unknown column "+v.Name)
	case models.Call:
		switch v.Func {
		case models.FuncExtractPath:
			keys := make([]string, 0, len(v.Args)-1)
			for _, arg := range v.Args[1:] {
				lit, ok := arg.(models.StringLit)
				if !ok {
					return nil, apperrors.New(apperrors.CodeInvalidRequest, "extraction keys must be string literals")
				}
				keys = append(keys, lit.Value)
			}
			return extractPath(rec.Doc, keys), nil
		case models.FuncContains, models.FuncMultiContains:
			return evalContains(v, rec)
		}
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "unknown function "+v.Func)
	default:
		return nil, apperrors.New(apperrors.CodeInvalidRequest, fmt.Sprintf("cannot evaluate %s", e))
	}
}

func asText(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", t)
	}
}
