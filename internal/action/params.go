package action

// Params carries the arguments of a parsed call. JSON numbers arrive as
// float64, so the accessors coerce where it is safe.
type Params map[string]any

// String returns a required string parameter.
func (p Params) String(key string) (string, error) {
	raw, exists := p[key]
	if !exists {
		return "", NewError(ErrInvalidParams, "missing parameter %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", NewError(ErrInvalidParams, "parameter %q must be a string, got %T", key, raw)
	}
	return s, nil
}

// StringOr returns an optional string parameter with a default.
func (p Params) StringOr(key, def string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return def
}

// Int returns a required integer parameter, accepting whole floats.
func (p Params) Int(key string) (int, error) {
	raw, exists := p[key]
	if !exists {
		return 0, NewError(ErrInvalidParams, "missing parameter %q", key)
	}
	switch n := raw.(type) {
	case int:
		return n, nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, NewError(ErrInvalidParams, "parameter %q must be an integer, got %v", key, raw)
}

// IntOr returns an optional integer parameter with a default.
func (p Params) IntOr(key string, def int) int {
	n, err := p.Int(key)
	if err != nil {
		return def
	}
	return n
}

// Bool returns a required boolean parameter.
func (p Params) Bool(key string) (bool, error) {
	raw, exists := p[key]
	if !exists {
		return false, NewError(ErrInvalidParams, "missing parameter %q", key)
	}
	b, ok := raw.(bool)
	if !ok {
		return false, NewError(ErrInvalidParams, "parameter %q must be a boolean, got %T", key, raw)
	}
	return b, nil
}
