package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind distinguishes string and numeric scalars.
type Kind int

const (
	KindString Kind = iota
	KindNumber
)

// Scalar is a single string or number.
type Scalar struct {
	Kind Kind
	Str  string
	Num  float64
}

// Str returns a string scalar.
func Str(s string) Scalar { return Scalar{Kind: KindString, Str: s} }

// Num returns a numeric scalar.
func Num(n float64) Scalar { return Scalar{Kind: KindNumber, Num: n} }

// IsNumber reports whether the scalar holds a number.
func (s Scalar) IsNumber() bool { return s.Kind == KindNumber }

// Equal compares numbers numerically and strings exactly. Mixed kinds are never equal.
func (s Scalar) Equal(other Scalar) bool {
	if s.Kind != other.Kind {
		return false
	}
	if s.Kind == KindNumber {
		return s.Num == other.Num
	}
	return s.Str == other.Str
}

// String renders the scalar the way labels show it.
func (s Scalar) String() string {
	if s.Kind == KindNumber {
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	}
	return strconv.Quote(s.Str)
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	if s.Kind == KindNumber {
		return json.Marshal(s.Num)
	}
	return json.Marshal(s.Str)
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	scalar, err := scalarFrom(raw)
	if err != nil {
		return err
	}
	*s = scalar
	return nil
}

// Value is a scalar or a list of scalars. Attributes and rule values share this shape.
type Value struct {
	Scalar
	Items  []Scalar
	IsList bool
}

// StringValue returns a scalar string value.
func StringValue(s string) Value { return Value{Scalar: Str(s)} }

// NumberValue returns a scalar numeric value.
func NumberValue(n float64) Value { return Value{Scalar: Num(n)} }

// ListValue returns a list value.
func ListValue(items ...Scalar) Value {
	return Value{Items: items, IsList: true}
}

// String renders the value the way labels show it.
func (v Value) String() string {
	if !v.IsList {
		return v.Scalar.String()
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range v.Items {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(item.String())
	}
	buf.WriteByte(']')
	return buf.String()
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsList {
		items := v.Items
		if items == nil {
			items = []Scalar{}
		}
		return json.Marshal(items)
	}
	return v.Scalar.MarshalJSON()
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	value, err := ValueFrom(raw)
	if err != nil {
		return err
	}
	*v = value
	return nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		scalar, err := scalarFromYAML(node)
		if err != nil {
			return err
		}
		*v = Value{Scalar: scalar}
		return nil
	case yaml.SequenceNode:
		items := make([]Scalar, 0, len(node.Content))
		for _, child := range node.Content {
			if child.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list items must be strings or numbers", child.Line)
			}
			scalar, err := scalarFromYAML(child)
			if err != nil {
				return err
			}
			items = append(items, scalar)
		}
		*v = ListValue(items...)
		return nil
	}
	return fmt.Errorf("line %d: value must be a string, number or list", node.Line)
}

// ValueFrom converts a decoded JSON/YAML value into a Value. Booleans become the
// strings "true" and "false"; nested lists and objects are rejected.
func ValueFrom(raw interface{}) (Value, error) {
	if list, ok := raw.([]interface{}); ok {
		items := make([]Scalar, 0, len(list))
		for _, item := range list {
			scalar, err := scalarFrom(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, scalar)
		}
		return ListValue(items...), nil
	}
	if list, ok := raw.([]string); ok {
		items := make([]Scalar, 0, len(list))
		for _, item := range list {
			items = append(items, Str(item))
		}
		return ListValue(items...), nil
	}
	scalar, err := scalarFrom(raw)
	if err != nil {
		return Value{}, err
	}
	return Value{Scalar: scalar}, nil
}

func scalarFrom(raw interface{}) (Scalar, error) {
	switch v := raw.(type) {
	case string:
		return Str(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Scalar{}, fmt.Errorf("invalid number %q: %w", v.String(), err)
		}
		return Num(f), nil
	case float64:
		return Num(v), nil
	case float32:
		return Num(float64(v)), nil
	case int:
		return Num(float64(v)), nil
	case int64:
		return Num(float64(v)), nil
	case bool:
		return Str(strconv.FormatBool(v)), nil
	case nil:
		return Scalar{}, fmt.Errorf("value is null")
	}
	return Scalar{}, fmt.Errorf("unsupported value type %T", raw)
}

func scalarFromYAML(node *yaml.Node) (Scalar, error) {
	switch node.ShortTag() {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return Scalar{}, fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
		}
		return Num(f), nil
	case "!!null":
		return Scalar{}, fmt.Errorf("line %d: value is null", node.Line)
	}
	return Str(node.Value), nil
}

// Attributes is the flat, evaluable record of one customer.
type Attributes map[string]Value
