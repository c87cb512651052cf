package trigger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// parameterKind discriminates the two Parameter variants.
type parameterKind int

const (
	kindBool parameterKind = iota
	kindString
)

// Parameter is a single CI trigger input value, either a boolean flag or a
// string. The distinction survives serialization: a boolean marshals as a
// JSON boolean, never as the string "true".
type Parameter struct {
	kind parameterKind
	b    bool
	s    string
}

// Bool returns a boolean Parameter.
func Bool(v bool) Parameter {
	return Parameter{kind: kindBool, b: v}
}

// String returns a string Parameter.
func String(v string) Parameter {
	return Parameter{kind: kindString, s: v}
}

// IsBool reports whether the parameter is the boolean variant.
func (p Parameter) IsBool() bool {
	return p.kind == kindBool
}

// BoolValue returns the boolean value; false for string parameters.
func (p Parameter) BoolValue() bool {
	return p.kind == kindBool && p.b
}

// StringValue returns the stringified form required by the legacy job API:
// booleans become their literal text form.
func (p Parameter) StringValue() string {
	if p.kind == kindBool {
		return strconv.FormatBool(p.b)
	}
	return p.s
}

// MarshalJSON serializes the variant natively: bool as JSON boolean,
// string as JSON string.
func (p Parameter) MarshalJSON() ([]byte, error) {
	if p.kind == kindBool {
		return json.Marshal(p.b)
	}
	return json.Marshal(p.s)
}

// UnmarshalJSON accepts a JSON boolean or string and restores the matching
// variant.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*p = Bool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parameter must be a JSON boolean or string, got %s", string(data))
	}
	*p = String(s)
	return nil
}

// ParameterSet maps parameter names to values. Keys are unique; later
// writes to the same key overwrite earlier ones.
type ParameterSet map[string]Parameter

// Strings returns every value in stringified form, as the legacy job API's
// flat string-to-string map requires.
func (ps ParameterSet) Strings() map[string]string {
	out := make(map[string]string, len(ps))
	for k, v := range ps {
		out[k] = v.StringValue()
	}
	return out
}

// Names returns the parameter names in sorted order, for stable logging.
func (ps ParameterSet) Names() []string {
	names := make([]string, 0, len(ps))
	for k := range ps {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
