package attrs

// Attrs is an attribute record: attribute name to value.
type Attrs map[string]Value

// Clone returns a deep copy of a.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v.Clone()
	}
	return out
}

// Keys returns the attribute names in sorted order.
func (a Attrs) Keys() []string {
	return sortedKeys(a)
}

// Has reports whether key is present.
func (a Attrs) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// GetString returns the text of key, or "" when absent.
func (a Attrs) GetString(key string) string {
	v, ok := a[key]
	if !ok {
		return ""
	}
	return v.String()
}

// Merge returns a new record holding a overlaid with other. Values in
// other win.
func (a Attrs) Merge(other Attrs) Attrs {
	out := make(Attrs, len(a)+len(other))
	for k, v := range a {
		out[k] = v.Clone()
	}
	for k, v := range other {
		out[k] = v.Clone()
	}
	return out
}

// Select returns the subset of a named by keys. An empty keys returns a
// full copy.
func (a Attrs) Select(keys []string) Attrs {
	if len(keys) == 0 {
		return a.Clone()
	}
	out := make(Attrs, len(keys))
	for _, k := range keys {
		if v, ok := a[k]; ok {
			out[k] = v.Clone()
		}
	}
	return out
}

// Without returns a copy of a without keys.
func (a Attrs) Without(keys ...string) Attrs {
	out := a.Clone()
	if out == nil {
		out = Attrs{}
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Equal reports whether both records hold the same keys with equal values.
func (a Attrs) Equal(other Attrs) bool {
	if len(a) != len(other) {
		return false
	}
	for k, v := range a {
		o, ok := other[k]
		if !ok || !v.Equal(o) {
			return false
		}
	}
	return true
}

// Interface returns a as a plain map for encoders.
func (a Attrs) Interface() map[string]interface{} {
	out := make(map[string]interface{}, len(a))
	for k, v := range a {
		out[k] = v.Interface()
	}
	return out
}
