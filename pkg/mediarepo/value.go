package mediarepo

import (
	"fmt"
	"time"
)

// PropertyType is the type of a property value
type PropertyType string

// Property types (typed).
const (
	PropertyTypeString PropertyType = "String"
	PropertyTypeBinary PropertyType = "Binary"
	PropertyTypeLong   PropertyType = "Long"
	PropertyTypeDate   PropertyType = "Date"
	PropertyTypeName   PropertyType = "Name"
)

// Value is a typed property value. Only the field matching Type is set.
// BinaryKey references a payload held in an external binary store; stores
// resolve it before handing values to callers.
type Value struct {
	Type      PropertyType `json:"type"`
	Multiple  bool         `json:"multiple,omitempty"`
	Strings   []string     `json:"strings,omitempty"`
	Long      int64        `json:"long,omitempty"`
	Date      time.Time    `json:"date"`
	Binary    []byte       `json:"binary,omitempty"`
	BinaryKey string       `json:"binary_key,omitempty"`
}

// StringValue returns a single valued string property.
func StringValue(s string) Value {
	return Value{Type: PropertyTypeString, Strings: []string{s}}
}

// StringsValue returns a multi valued string property holding a copy of ss.
func StringsValue(ss []string) Value {
	out := make([]string, len(ss))
	copy(out, ss)
	return Value{Type: PropertyTypeString, Multiple: true, Strings: out}
}

// NameValue returns a name property.
func NameValue(s string) Value {
	return Value{Type: PropertyTypeName, Strings: []string{s}}
}

// LongValue returns a long property.
func LongValue(n int64) Value {
	return Value{Type: PropertyTypeLong, Long: n}
}

// DateValue returns a date property.
func DateValue(t time.Time) Value {
	return Value{Type: PropertyTypeDate, Date: t.UTC()}
}

// BinaryValue returns a binary property.
func BinaryValue(b []byte) Value {
	out := make([]byte, len(b))
	copy(out, b)
	return Value{Type: PropertyTypeBinary, Binary: out}
}

// AsString returns a single valued string or name property.
func (v Value) AsString() (string, error) {
	if (v.Type != PropertyTypeString && v.Type != PropertyTypeName) || v.Multiple || len(v.Strings) != 1 {
		return "", v.formatError(PropertyTypeString)
	}
	return v.Strings[0], nil
}

// AsStrings returns the values of a string property. Single valued
// properties yield a one element slice.
func (v Value) AsStrings() ([]string, error) {
	if v.Type != PropertyTypeString && v.Type != PropertyTypeName {
		return nil, v.formatError(PropertyTypeString)
	}
	out := make([]string, len(v.Strings))
	copy(out, v.Strings)
	return out, nil
}

func (v Value) AsLong() (int64, error) {
	if v.Type != PropertyTypeLong {
		return 0, v.formatError(PropertyTypeLong)
	}
	return v.Long, nil
}

func (v Value) AsDate() (time.Time, error) {
	if v.Type != PropertyTypeDate {
		return time.Time{}, v.formatError(PropertyTypeDate)
	}
	return v.Date, nil
}

func (v Value) AsBinary() ([]byte, error) {
	if v.Type != PropertyTypeBinary {
		return nil, v.formatError(PropertyTypeBinary)
	}
	if v.Binary == nil && v.BinaryKey != "" {
		return nil, fmt.Errorf("%w: binary %s not resolved", ErrValueFormat, v.BinaryKey)
	}
	out := make([]byte, len(v.Binary))
	copy(out, v.Binary)
	return out, nil
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	c := v
	if v.Strings != nil {
		c.Strings = append([]string(nil), v.Strings...)
	}
	if v.Binary != nil {
		c.Binary = append([]byte(nil), v.Binary...)
	}
	return c
}

func (v Value) formatError(want PropertyType) error {
	return fmt.Errorf("%w: cannot read %s value (multiple=%t) as %s", ErrValueFormat, v.Type, v.Multiple, want)
}
