package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func compiled(t *testing.T, params ...Param) []Param {
	t.Helper()
	require.NoError(t, Compile(params))
	return params
}

func projectParams(t *testing.T) []Param {
	return compiled(t,
		Param{Name: "page", Kind: KindInteger, Default: 1, Min: ptr(1.0)},
		Param{Name: "size", Kind: KindInteger, Default: 100, Enum: []any{20, 50, 100, 200, 500}},
	)
}

func TestValidateAppliesDefaults(t *testing.T) {
	args, err := Validate(projectParams(t), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, Arguments{"page": int64(1), "size": int64(100)}, args)
}

func TestValidateNormalizesJSONNumbers(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"page":3,"size":50}`), &raw))

	args, err := Validate(projectParams(t), raw)
	require.NoError(t, err)
	assert.Equal(t, int64(3), args["page"])
	assert.Equal(t, int64(50), args["size"])
}

func TestValidateRejectsFractionalInteger(t *testing.T) {
	_, err := Validate(projectParams(t), map[string]any{"page": 1.5})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "page: expected integer, got number", err.Error())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	params := compiled(t,
		Param{Name: "domain", Kind: KindString, Required: true},
		Param{Name: "name", Kind: KindString, Required: true},
		Param{Name: "type", Kind: KindEnum, Enum: []any{"owner", "reader"}, Default: "owner"},
	)

	_, err := Validate(params, map[string]any{"type": "admin"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"domain", "name", "type"}, verr.Fields())
	assert.Equal(t,
		"domain: required field missing, name: required field missing, type: must be one of: owner, reader",
		err.Error())
}

func TestValidateNullIsAbsent(t *testing.T) {
	params := compiled(t,
		Param{Name: "domain", Kind: KindString, Required: true},
		Param{Name: "mode", Kind: KindEnum, Enum: []any{"all", "new"}, Default: "all"},
	)

	_, err := Validate(params, map[string]any{"domain": nil})
	assert.EqualError(t, err, "domain: required field missing")

	args, err := Validate(params, map[string]any{"domain": "x.com", "mode": nil})
	require.NoError(t, err)
	assert.Equal(t, "all", args["mode"])
}

func TestValidateDropsUnknownKeys(t *testing.T) {
	args, err := Validate(projectParams(t), map[string]any{"page": 2, "bogus": true})
	require.NoError(t, err)
	assert.NotContains(t, args, "bogus")
}

func TestValidateBounds(t *testing.T) {
	params := compiled(t,
		Param{Name: "projectId", Kind: KindInteger, Required: true, Min: ptr(1.0)},
		Param{Name: "size", Kind: KindInteger, Min: ptr(1.0), Max: ptr(1000.0)},
	)

	_, err := Validate(params, map[string]any{"projectId": 0, "size": 1001})
	assert.EqualError(t, err, "projectId: must be >= 1, size: must be <= 1000")
}

func TestValidateAcceptsValuesAtBounds(t *testing.T) {
	params := compiled(t,
		Param{Name: "size", Kind: KindInteger, Min: ptr(1.0), Max: ptr(1000.0)},
		Param{Name: "ratio", Kind: KindNumber, Min: ptr(0.0), Max: ptr(1.0)},
		Param{Name: "keyword", Kind: KindString, MinLength: ptr(1), MaxLength: ptr(5)},
		Param{Name: "domains", Kind: KindArray, MinItems: ptr(1), MaxItems: ptr(2)},
	)

	cases := []struct {
		name string
		raw  map[string]any
	}{
		{"lower", map[string]any{"size": 1, "ratio": 0.0, "keyword": "a", "domains": []any{"a.com"}}},
		{"upper", map[string]any{"size": 1000, "ratio": 1.0, "keyword": "abcde", "domains": []any{"a.com", "b.com"}}},
		{"json numbers", map[string]any{"size": json.Number("1000"), "ratio": json.Number("1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args, err := Validate(params, tc.raw)
			require.NoError(t, err)
			assert.Len(t, args, len(tc.raw))
		})
	}
}

func TestValidateRejectsIntegersOutOfRange(t *testing.T) {
	params := compiled(t,
		Param{Name: "id", Kind: KindInteger},
		Param{Name: "page", Kind: KindInteger, Min: ptr(1.0), Max: ptr(1000.0)},
	)

	for _, raw := range []any{1e20, -1e20, float64(math.MaxInt64), json.Number("1e20"), json.Number("100000000000000000000")} {
		_, err := Validate(params, map[string]any{"id": raw, "page": raw})
		assert.EqualError(t, err, "id: expected integer, got number, page: expected integer, got number", "%v", raw)
	}

	args, err := Validate(params, map[string]any{"id": float64(math.MinInt64), "page": 1e3})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), args["id"])
	assert.Equal(t, int64(1000), args["page"])
}

func TestValidateAcceptsEveryEnumValue(t *testing.T) {
	params := compiled(t,
		Param{Name: "size", Kind: KindInteger, Enum: []any{20, 50, 100, 200, 500}},
		Param{Name: "order", Kind: KindEnum, Enum: []any{"asc", "desc"}},
	)

	for _, p := range params {
		for _, value := range p.Enum {
			t.Run(fmt.Sprintf("%s=%v", p.Name, value), func(t *testing.T) {
				args, err := Validate(params, map[string]any{p.Name: value})
				require.NoError(t, err)
				assert.Equal(t, value, args[p.Name])
			})
		}
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	params := compiled(t,
		Param{Name: "domain", Kind: KindString, Required: true},
		Param{Name: "page", Kind: KindInteger, Default: 1, Min: ptr(1.0)},
		Param{Name: "size", Kind: KindInteger, Default: 100, Enum: []any{20, 50, 100}},
		Param{Name: "domains", Kind: KindArray, Items: &Param{Name: "domain", Kind: KindString}},
		Param{Name: "settings", Kind: KindObject, Properties: []Param{
			{Name: "limit", Kind: KindInteger, Min: ptr(1.0)},
		}},
	)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(
		`{"domain":"x.com","size":50,"domains":["a.com"],"settings":{"limit":5,"extra":true},"bogus":1}`), &raw))

	first, err := Validate(params, raw)
	require.NoError(t, err)
	second, err := Validate(params, raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	again, err := Validate(params, first)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestValidateStrings(t *testing.T) {
	params := compiled(t,
		Param{Name: "se", Kind: KindString, Pattern: `^[a-z]_[a-z]{2}$`},
		Param{Name: "keyword", Kind: KindString, MinLength: ptr(1), MaxLength: ptr(5)},
	)

	_, err := Validate(params, map[string]any{"se": "google", "keyword": "abcdef"})
	assert.EqualError(t, err,
		"se: must match pattern ^[a-z]_[a-z]{2}$, keyword: must be at most 5 characters")

	_, err = Validate(params, map[string]any{"keyword": ""})
	assert.EqualError(t, err, "keyword: must be at least 1 characters")

	_, err = Validate(params, map[string]any{"se": 42})
	assert.EqualError(t, err, "se: expected string, got number")
}

func TestValidateArrays(t *testing.T) {
	params := compiled(t, Param{
		Name:     "domains",
		Kind:     KindArray,
		Required: true,
		MinItems: ptr(1),
		MaxItems: ptr(3),
		Items:    &Param{Name: "domain", Kind: KindString, MinLength: ptr(1)},
	})

	args, err := Validate(params, map[string]any{"domains": []any{"a.com", "b.com"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a.com", "b.com"}, args["domains"])

	_, err = Validate(params, map[string]any{"domains": []any{}})
	assert.EqualError(t, err, "domains: must contain at least 1 items")

	_, err = Validate(params, map[string]any{"domains": []any{"a.com", 7, ""}})
	assert.EqualError(t, err,
		"domains[1]: expected string, got number, domains[2]: must be at least 1 characters")

	_, err = Validate(params, map[string]any{"domains": "a.com"})
	assert.EqualError(t, err, "domains: expected array, got string")
}

func TestValidateObjects(t *testing.T) {
	params := compiled(t,
		Param{Name: "filters", Kind: KindObject},
		Param{Name: "mainSettings", Kind: KindObject, Properties: []Param{
			{Name: "pagesLimit", Kind: KindInteger, Required: true, Min: ptr(1.0), Max: ptr(100000.0)},
			{Name: "scanSpeed", Kind: KindInteger, Min: ptr(1.0), Max: ptr(10.0)},
		}},
	)

	args, err := Validate(params, map[string]any{
		"filters":      map[string]any{"anything": []any{1, 2}},
		"mainSettings": map[string]any{"pagesLimit": 500.0, "domain": "x.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"anything": []any{1, 2}}, args["filters"])
	assert.Equal(t, map[string]any{"pagesLimit": int64(500), "domain": "x.com"}, args["mainSettings"])

	_, err = Validate(params, map[string]any{
		"mainSettings": map[string]any{"scanSpeed": 11},
	})
	assert.EqualError(t, err,
		"mainSettings.pagesLimit: required field missing, mainSettings.scanSpeed: must be <= 10")

	_, err = Validate(params, map[string]any{"filters": "x"})
	assert.EqualError(t, err, "filters: expected object, got string")
}

func TestValidateBooleansAndNumbers(t *testing.T) {
	params := compiled(t,
		Param{Name: "withSubdomains", Kind: KindBoolean, Default: false},
		Param{Name: "ratio", Kind: KindNumber, Min: ptr(0.0), Max: ptr(1.0)},
	)

	args, err := Validate(params, map[string]any{"ratio": 1})
	require.NoError(t, err)
	assert.Equal(t, false, args["withSubdomains"])
	assert.Equal(t, 1.0, args["ratio"])

	_, err = Validate(params, map[string]any{"withSubdomains": "yes", "ratio": 1.5})
	assert.EqualError(t, err, "withSubdomains: expected boolean, got string, ratio: must be <= 1")
}

func TestCompileRejectsBadDeclarations(t *testing.T) {
	cases := map[string][]Param{
		"bad default":   {{Name: "size", Kind: KindInteger, Max: ptr(10.0), Default: 100}},
		"empty enum":    {{Name: "mode", Kind: KindEnum}},
		"unknown kind":  {{Name: "x", Kind: "date"}},
		"bad pattern":   {{Name: "x", Kind: KindString, Pattern: "("}},
		"duplicate":     {{Name: "x", Kind: KindString}, {Name: "x", Kind: KindString}},
		"inverted":      {{Name: "x", Kind: KindInteger, Min: ptr(5.0), Max: ptr(1.0)}},
		"enum mismatch": {{Name: "size", Kind: KindInteger, Enum: []any{"big"}}},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Compile(params))
		})
	}
}

func TestIsDefault(t *testing.T) {
	params := projectParams(t)
	assert.True(t, params[1].IsDefault(int64(100)))
	assert.False(t, params[1].IsDefault(int64(50)))
	assert.False(t, (&Param{Name: "x", Kind: KindString}).IsDefault(""))
}

func TestInputSchema(t *testing.T) {
	params := compiled(t,
		Param{Name: "se", Kind: KindString, Required: true, Description: "Search engine"},
		Param{Name: "size", Kind: KindInteger, Default: 100, Min: ptr(1.0), Max: ptr(1000.0)},
		Param{Name: "domains", Kind: KindArray, Items: &Param{Name: "d", Kind: KindString}},
	)

	props, required := InputSchema(params)
	assert.Equal(t, []string{"se"}, required)
	assert.Equal(t, map[string]any{"type": "string", "description": "Search engine"}, props["se"])
	assert.Equal(t, map[string]any{
		"type": "integer", "default": int64(100), "minimum": 1.0, "maximum": 1000.0,
	}, props["size"])
	assert.Equal(t, map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, props["domains"])
}
