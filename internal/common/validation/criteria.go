// internal/common/validation/criteria.go
package validation

func nullable(typ string) []string {
	return []string{typ, "null"}
}

// CriteriaProperty is the schema of a matching criteria object. Every field
// is optional and numeric fields must be non-negative integers.
func CriteriaProperty() map[string]interface{} {
	return map[string]interface{}{
		"type": nullable("object"),
		"properties": map[string]interface{}{
			"businessType":  map[string]interface{}{"type": nullable("string")},
			"budget":        map[string]interface{}{"type": nullable("integer"), "minimum": 0},
			"needs":         map[string]interface{}{"type": nullable("array"), "items": map[string]interface{}{"type": "string"}},
			"frequency":     map[string]interface{}{"type": nullable("string")},
			"location":      map[string]interface{}{"type": nullable("string")},
			"revenue":       map[string]interface{}{"type": nullable("integer"), "minimum": 0},
			"employeeCount": map[string]interface{}{"type": nullable("integer"), "minimum": 0},
		},
	}
}

// ObjectSchema builds an object schema from property schemas.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// String, Integer and Boolean are shorthand property schemas.
func String() map[string]interface{} {
	return map[string]interface{}{"type": "string", "minLength": 1}
}

func Integer(minimum int) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "minimum": minimum}
}

func Boolean() map[string]interface{} {
	return map[string]interface{}{"type": "boolean"}
}

// DateTime accepts an RFC 3339 timestamp.
func DateTime() map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date-time"}
}
