package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Arguments are validated tool arguments keyed by param name. Integers are
// int64, numbers float64, arrays []any and objects map[string]any.
type Arguments map[string]any

// FieldError is a single constraint violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError collects every violation found in one input object.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return strings.Join(parts, ", ")
}

// Fields returns the offending field paths in the order they were found.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe.Field
	}
	return out
}

// Validate checks raw against params in declared order and returns the
// normalized arguments with defaults applied. Keys not declared in params are
// dropped. On failure the error is a *ValidationError listing every field.
func Validate(params []Param, raw map[string]any) (Arguments, error) {
	var v validator
	out := make(Arguments, len(params))
	v.fields("", params, raw, out)
	if len(v.errs) > 0 {
		return nil, &ValidationError{Errors: v.errs}
	}
	return out, nil
}

type validator struct {
	errs []FieldError
}

func (v *validator) add(field, format string, args ...any) {
	v.errs = append(v.errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) fields(prefix string, params []Param, raw map[string]any, out map[string]any) {
	for i := range params {
		p := &params[i]
		path := p.Name
		if prefix != "" {
			path = prefix + "." + p.Name
		}

		value, ok := raw[p.Name]
		if !ok || value == nil {
			if p.Required {
				v.add(path, "required field missing")
				continue
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}

		if normalized, ok := v.check(path, p, value); ok {
			out[p.Name] = normalized
		}
	}
}

func (v *validator) check(path string, p *Param, value any) (any, bool) {
	switch p.Kind {
	case KindInteger:
		n, ok := asInteger(value)
		if !ok {
			v.mismatch(path, p.Kind, value)
			return nil, false
		}
		if !v.inRange(path, p, float64(n)) || !v.allowed(path, p, n) {
			return nil, false
		}
		return n, true

	case KindNumber:
		f, ok := asFloat(value)
		if !ok {
			v.mismatch(path, p.Kind, value)
			return nil, false
		}
		if !v.inRange(path, p, f) || !v.allowed(path, p, f) {
			return nil, false
		}
		return f, true

	case KindString, KindEnum:
		s, ok := value.(string)
		if !ok {
			v.mismatch(path, KindString, value)
			return nil, false
		}
		if !v.stringOK(path, p, s) || !v.allowed(path, p, s) {
			return nil, false
		}
		return s, true

	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			v.mismatch(path, p.Kind, value)
			return nil, false
		}
		return b, true

	case KindArray:
		items, ok := asSlice(value)
		if !ok {
			v.mismatch(path, p.Kind, value)
			return nil, false
		}
		return v.array(path, p, items)

	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			v.mismatch(path, p.Kind, value)
			return nil, false
		}
		if len(p.Properties) == 0 {
			return obj, true
		}
		return v.object(path, p, obj)
	}

	v.add(path, "unsupported type %q", p.Kind)
	return nil, false
}

func (v *validator) array(path string, p *Param, items []any) (any, bool) {
	ok := true
	if p.MinItems != nil && len(items) < *p.MinItems {
		v.add(path, "must contain at least %d items", *p.MinItems)
		ok = false
	}
	if p.MaxItems != nil && len(items) > *p.MaxItems {
		v.add(path, "must contain at most %d items", *p.MaxItems)
		ok = false
	}
	if p.Items == nil {
		return items, ok
	}

	out := make([]any, len(items))
	for i, item := range items {
		elemPath := fmt.Sprintf("%s[%d]", path, i)
		if item == nil {
			v.add(elemPath, "expected %s, got null", kindLabel(p.Items.Kind))
			ok = false
			continue
		}
		n, elemOK := v.check(elemPath, p.Items, item)
		if !elemOK {
			ok = false
			continue
		}
		out[i] = n
	}
	if !ok {
		return nil, false
	}
	return out, true
}

// object validates declared properties and passes undeclared keys through
// untouched; nested specs in the catalog are partial.
func (v *validator) object(path string, p *Param, obj map[string]any) (any, bool) {
	before := len(v.errs)
	out := make(map[string]any, len(obj))
	for k, val := range obj {
		out[k] = val
	}
	for i := range p.Properties {
		delete(out, p.Properties[i].Name)
	}
	v.fields(path, p.Properties, obj, out)
	if len(v.errs) > before {
		return nil, false
	}
	return out, true
}

func (v *validator) inRange(path string, p *Param, n float64) bool {
	if p.Min != nil && n < *p.Min {
		v.add(path, "must be >= %s", formatNumber(*p.Min))
		return false
	}
	if p.Max != nil && n > *p.Max {
		v.add(path, "must be <= %s", formatNumber(*p.Max))
		return false
	}
	return true
}

func (v *validator) stringOK(path string, p *Param, s string) bool {
	n := utf8.RuneCountInString(s)
	if p.MinLength != nil && n < *p.MinLength {
		v.add(path, "must be at least %d characters", *p.MinLength)
		return false
	}
	if p.MaxLength != nil && n > *p.MaxLength {
		v.add(path, "must be at most %d characters", *p.MaxLength)
		return false
	}
	if p.re != nil && !p.re.MatchString(s) {
		v.add(path, "must match pattern %s", p.Pattern)
		return false
	}
	return true
}

func (v *validator) allowed(path string, p *Param, value any) bool {
	if len(p.Enum) == 0 {
		return true
	}
	for _, a := range p.Enum {
		if a == value {
			return true
		}
	}
	labels := make([]string, len(p.Enum))
	for i, a := range p.Enum {
		labels[i] = fmt.Sprint(a)
	}
	v.add(path, "must be one of: %s", strings.Join(labels, ", "))
	return false
}

func (v *validator) mismatch(path string, kind Kind, value any) {
	v.add(path, "expected %s, got %s", kindLabel(kind), jsonType(value))
}

func kindLabel(k Kind) string {
	if k == KindEnum {
		return "string"
	}
	return string(k)
}

func jsonType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func asInteger(value any) (int64, bool) {
	switch n := value.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return asInteger(f)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		return asInteger(float64(n))
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return asFloat(float64(n))
	}
	if i, ok := asInteger(value); ok {
		return float64(i), true
	}
	return 0, false
}

func asSlice(value any) ([]any, bool) {
	switch s := value.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, v := range s {
			out[i] = v
		}
		return out, true
	default:
		return nil, false
	}
}
