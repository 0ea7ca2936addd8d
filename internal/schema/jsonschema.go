package schema

// InputSchema renders params as the properties and required list of a JSON
// Schema object, the shape MCP clients expect for tool input.
func InputSchema(params []Param) (map[string]any, []string) {
	props := make(map[string]any, len(params))
	var required []string
	for i := range params {
		p := &params[i]
		props[p.Name] = p.JSONSchema()
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return props, required
}

// JSONSchema describes a single param.
func (p *Param) JSONSchema() map[string]any {
	s := map[string]any{}
	switch p.Kind {
	case KindEnum:
		s["type"] = "string"
	default:
		s["type"] = string(p.Kind)
	}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Default != nil {
		s["default"] = p.Default
	}
	if p.Min != nil {
		s["minimum"] = *p.Min
	}
	if p.Max != nil {
		s["maximum"] = *p.Max
	}
	if p.MinLength != nil {
		s["minLength"] = *p.MinLength
	}
	if p.MaxLength != nil {
		s["maxLength"] = *p.MaxLength
	}
	if p.Pattern != "" {
		s["pattern"] = p.Pattern
	}
	if p.MinItems != nil {
		s["minItems"] = *p.MinItems
	}
	if p.MaxItems != nil {
		s["maxItems"] = *p.MaxItems
	}
	if p.Items != nil {
		s["items"] = p.Items.JSONSchema()
	}
	if len(p.Properties) > 0 {
		props, required := InputSchema(p.Properties)
		s["properties"] = props
		if len(required) > 0 {
			s["required"] = required
		}
	}
	return s
}
