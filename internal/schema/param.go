package schema

import (
	"fmt"
	"reflect"
	"regexp"
)

// Kind is the declared type of a tool parameter.
type Kind string

const (
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
	KindEnum    Kind = "enum"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

func (k Kind) valid() bool {
	switch k {
	case KindInteger, KindNumber, KindString, KindBoolean, KindEnum, KindArray, KindObject:
		return true
	}
	return false
}

// Param declares one input field of a tool.
//
// Optional params without a Default are left out of the validated arguments
// unless the caller supplies them. AlwaysSend keeps a param on the wire even
// when its value equals Default.
type Param struct {
	Name        string `yaml:"name"`
	Kind        Kind   `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Default     any    `yaml:"default,omitempty"`
	AlwaysSend  bool   `yaml:"always_send,omitempty"`

	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	MinLength *int     `yaml:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty"`
	MinItems  *int     `yaml:"min_items,omitempty"`
	MaxItems  *int     `yaml:"max_items,omitempty"`
	Enum      []any    `yaml:"enum,omitempty"`

	Items      *Param  `yaml:"items,omitempty"`
	Properties []Param `yaml:"properties,omitempty"`

	re *regexp.Regexp
}

// IsDefault reports whether v equals the param's declared default.
// Both sides must already be normalized (see Validate).
func (p *Param) IsDefault(v any) bool {
	return p.Default != nil && reflect.DeepEqual(p.Default, v)
}

// Compile prepares params loaded from configuration: it compiles patterns,
// normalizes enum values and defaults to their validated form, and rejects
// defaults that violate their own constraints.
func Compile(params []Param) error {
	seen := make(map[string]struct{}, len(params))
	for i := range params {
		p := &params[i]
		if p.Name == "" {
			return fmt.Errorf("param #%d: missing name", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("param %s: declared twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if err := compileParam(p); err != nil {
			return fmt.Errorf("param %s: %w", p.Name, err)
		}
	}
	return nil
}

func compileParam(p *Param) error {
	if !p.Kind.valid() {
		return fmt.Errorf("unsupported type %q", p.Kind)
	}
	if p.Kind == KindEnum && len(p.Enum) == 0 {
		return fmt.Errorf("enum type without allowed values")
	}
	if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
		return fmt.Errorf("min %v greater than max %v", *p.Min, *p.Max)
	}
	if p.Pattern != "" {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return fmt.Errorf("compile pattern: %w", err)
		}
		p.re = re
	}

	for i, allowed := range p.Enum {
		n, ok := normalizeScalar(p.Kind, allowed)
		if !ok {
			return fmt.Errorf("enum value %v is not a %s", allowed, p.Kind)
		}
		p.Enum[i] = n
	}

	if p.Items != nil {
		if err := compileParam(p.Items); err != nil {
			return fmt.Errorf("items: %w", err)
		}
	}
	if len(p.Properties) > 0 {
		if err := Compile(p.Properties); err != nil {
			return err
		}
	}

	if p.Default != nil {
		var v validator
		normalized, ok := v.check(p.Name, p, p.Default)
		if !ok {
			return fmt.Errorf("invalid default: %w", &ValidationError{Errors: v.errs})
		}
		p.Default = normalized
	}
	return nil
}

func normalizeScalar(kind Kind, v any) (any, bool) {
	switch kind {
	case KindInteger:
		return asInteger(v)
	case KindNumber:
		return asFloat(v)
	case KindString, KindEnum:
		s, ok := v.(string)
		return s, ok
	case KindBoolean:
		b, ok := v.(bool)
		return b, ok
	}
	return nil, false
}
