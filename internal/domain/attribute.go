package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// AttributeKind identifies which member of the AttributeValue union is set.
type AttributeKind uint8

const (
	AttributeNull AttributeKind = iota
	AttributeBool
	AttributeNumber
	AttributeString
	AttributeList
	AttributeObject
)

func (k AttributeKind) String() string {
	switch k {
	case AttributeBool:
		return "bool"
	case AttributeNumber:
		return "number"
	case AttributeString:
		return "string"
	case AttributeList:
		return "list"
	case AttributeObject:
		return "object"
	default:
		return "null"
	}
}

// AttributeValue holds any JSON value stored under an attribute key.
// The zero value is JSON null.
type AttributeValue struct {
	kind   AttributeKind
	b      bool
	num    json.Number
	str    string
	list   []AttributeValue
	object map[string]AttributeValue
}

func NullValue() AttributeValue { return AttributeValue{} }

func BoolValue(b bool) AttributeValue { return AttributeValue{kind: AttributeBool, b: b} }

func StringValue(s string) AttributeValue { return AttributeValue{kind: AttributeString, str: s} }

func NumberValue(n json.Number) AttributeValue { return AttributeValue{kind: AttributeNumber, num: n} }

func ListValue(items ...AttributeValue) AttributeValue {
	return AttributeValue{kind: AttributeList, list: items}
}

func ObjectValue(fields map[string]AttributeValue) AttributeValue {
	return AttributeValue{kind: AttributeObject, object: fields}
}

func (v AttributeValue) Kind() AttributeKind { return v.kind }

func (v AttributeValue) AsBool() (bool, bool) { return v.b, v.kind == AttributeBool }

func (v AttributeValue) AsString() (string, bool) { return v.str, v.kind == AttributeString }

func (v AttributeValue) AsNumber() (json.Number, bool) { return v.num, v.kind == AttributeNumber }

func (v AttributeValue) AsList() ([]AttributeValue, bool) { return v.list, v.kind == AttributeList }

func (v AttributeValue) AsObject() (map[string]AttributeValue, bool) {
	return v.object, v.kind == AttributeObject
}

// Clone returns a deep copy sharing no slices or maps with v.
func (v AttributeValue) Clone() AttributeValue {
	switch v.kind {
	case AttributeList:
		items := make([]AttributeValue, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return ListValue(items...)
	case AttributeObject:
		fields := make(map[string]AttributeValue, len(v.object))
		for k, field := range v.object {
			fields[k] = field.Clone()
		}
		return ObjectValue(fields)
	default:
		return v
	}
}

// Equal reports whether v and other hold the same JSON value.
func (v AttributeValue) Equal(other AttributeValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case AttributeBool:
		return v.b == other.b
	case AttributeNumber:
		return v.num == other.num
	case AttributeString:
		return v.str == other.str
	case AttributeList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case AttributeObject:
		if len(v.object) != len(other.object) {
			return false
		}
		for k, field := range v.object {
			o, ok := other.object[k]
			if !ok || !field.Equal(o) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case AttributeBool:
		return json.Marshal(v.b)
	case AttributeNumber:
		return []byte(v.num.String()), nil
	case AttributeString:
		return json.Marshal(v.str)
	case AttributeList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case AttributeObject:
		if v.object == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.object)
	default:
		return []byte("null"), nil
	}
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	parsed, err := attributeFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func attributeFromAny(raw interface{}) (AttributeValue, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case string:
		return StringValue(t), nil
	case []interface{}:
		items := make([]AttributeValue, 0, len(t))
		for _, item := range t {
			parsed, err := attributeFromAny(item)
			if err != nil {
				return AttributeValue{}, err
			}
			items = append(items, parsed)
		}
		return ListValue(items...), nil
	case map[string]interface{}:
		fields := make(map[string]AttributeValue, len(t))
		for k, field := range t {
			parsed, err := attributeFromAny(field)
			if err != nil {
				return AttributeValue{}, err
			}
			fields[k] = parsed
		}
		return ObjectValue(fields), nil
	default:
		return AttributeValue{}, fmt.Errorf("unsupported attribute value type %T", raw)
	}
}

// Attributes is the open key/value map owned by a product. It has no version
// of its own; every change is a full replacement guarded by the product version.
type Attributes map[string]AttributeValue

// Keys returns the attribute keys in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Clone returns a deep copy. A nil map clones to an empty one.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v.Clone()
	}
	return out
}

// With returns a copy of a with key set to value.
func (a Attributes) With(key string, value AttributeValue) Attributes {
	out := a.Clone()
	out[key] = value.Clone()
	return out
}

// Without returns a copy of a with key removed.
func (a Attributes) Without(key string) Attributes {
	out := a.Clone()
	delete(out, key)
	return out
}

func (a Attributes) Equal(other Attributes) bool {
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

func (a Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]AttributeValue(a))
}

// Value stores the map as a JSON document.
func (a Attributes) Value() (driver.Value, error) {
	b, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON document written by Value.
func (a *Attributes) Scan(src interface{}) error {
	var data []byte
	switch t := src.(type) {
	case nil:
		*a = Attributes{}
		return nil
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return fmt.Errorf("cannot scan %T into Attributes", src)
	}

	decoded := map[string]AttributeValue{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to decode attributes: %w", err)
	}
	*a = Attributes(decoded)
	return nil
}
