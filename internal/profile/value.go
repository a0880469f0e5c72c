package profile

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Value is either a number or a "$key" variable reference. Dynamics points,
// exit trigger values, and limit values all use it. The zero Value encodes
// as the number 0.
type Value struct {
	Number float64
	Ref    string // variable reference including the "$" prefix; empty for numbers
}

// Num wraps a plain number.
func Num(f float64) Value { return Value{Number: f} }

// RefVal wraps a variable reference such as "$pressure_1".
func RefVal(ref string) Value { return Value{Ref: ref} }

// IsRef reports whether the value is a variable reference.
func (v Value) IsRef() bool { return v.Ref != "" }

// RefKey returns the referenced variable key without the "$" prefix, or ""
// when the value is a number.
func (v Value) RefKey() string { return strings.TrimPrefix(v.Ref, "$") }

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsRef() {
		return json.Marshal(v.Ref)
	}
	return json.Marshal(v.Number)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = Value{Number: num}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if !strings.HasPrefix(s, "$") {
			return fmt.Errorf("string value %q is not a $variable reference", s)
		}
		*v = Value{Ref: s}
		return nil
	}
	return fmt.Errorf("value must be a number or a $variable reference, got %s", string(data))
}

func (v Value) String() string {
	if v.IsRef() {
		return v.Ref
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v.Number), "0"), ".")
}
