// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies the variant held by a Node.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	Array
	Object
)

var kindNames = map[Kind]string{
	Null:   "null",
	Bool:   "bool",
	Int:    "int",
	Float:  "float",
	String: "string",
	Array:  "array",
	Object: "object",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Node is a hierarchical configuration value: an ordered object, an array or a scalar.
// A nil *Node stands for an absent value.
type Node struct {
	kind Kind

	boolValue   bool
	intValue    int64
	floatValue  float64
	stringValue string

	items  []*Node
	keys   []string
	fields map[string]*Node
}

// NewNull returns a null scalar.
func NewNull() *Node { return &Node{kind: Null} }

// NewBool returns a boolean scalar.
func NewBool(value bool) *Node { return &Node{kind: Bool, boolValue: value} }

// NewInt returns an integer scalar.
func NewInt(value int64) *Node { return &Node{kind: Int, intValue: value} }

// NewFloat returns a floating point scalar.
func NewFloat(value float64) *Node { return &Node{kind: Float, floatValue: value} }

// NewString returns a string scalar.
func NewString(value string) *Node { return &Node{kind: String, stringValue: value} }

// NewArray returns an array holding items in order.
func NewArray(items ...*Node) *Node {
	return &Node{kind: Array, items: slices.Clone(items)}
}

// NewObject returns an empty object.
func NewObject() *Node {
	return &Node{kind: Object, fields: make(map[string]*Node)}
}

// FromValue converts plain Go values, as produced by decoders, into a Node.
// Map keys are sorted to obtain a stable order.
func FromValue(value any) *Node {
	switch v := value.(type) {
	case nil:
		return NewNull()
	case *Node:
		return v.Clone()
	case bool:
		return NewBool(v)
	case int:
		return NewInt(int64(v))
	case int32:
		return NewInt(int64(v))
	case int64:
		return NewInt(v)
	case uint64:
		if v > math.MaxInt64 {
			return NewFloat(float64(v))
		}
		return NewInt(int64(v))
	case float32:
		return NewFloat(float64(v))
	case float64:
		return NewFloat(v)
	case string:
		return NewString(v)
	case []any:
		items := make([]*Node, 0, len(v))
		for _, item := range v {
			items = append(items, FromValue(item))
		}
		return &Node{kind: Array, items: items}
	case map[string]any:
		object := NewObject()
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			object.Set(key, FromValue(v[key]))
		}
		return object
	default:
		return NewString(fmt.Sprint(v))
	}
}

// Kind returns the variant of n. An absent node reports Null.
func (n *Node) Kind() Kind {
	if n == nil {
		return Null
	}
	return n.kind
}

// IsNull reports whether n is absent or an explicit null.
func (n *Node) IsNull() bool {
	return n == nil || n.kind == Null
}

// IsScalar reports whether n is neither an array nor an object.
func (n *Node) IsScalar() bool {
	return n.Kind() != Array && n.Kind() != Object
}

// AsBool returns the boolean held by n.
func (n *Node) AsBool() (bool, bool) {
	if n.Kind() != Bool {
		return false, false
	}
	return n.boolValue, true
}

// AsInt returns the integer held by n.
func (n *Node) AsInt() (int64, bool) {
	if n.Kind() != Int {
		return 0, false
	}
	return n.intValue, true
}

// AsFloat returns the floating point value held by n.
func (n *Node) AsFloat() (float64, bool) {
	if n.Kind() != Float {
		return 0, false
	}
	return n.floatValue, true
}

// AsString returns the string held by n.
func (n *Node) AsString() (string, bool) {
	if n.Kind() != String {
		return "", false
	}
	return n.stringValue, true
}

// Len returns the number of items of an array or keys of an object.
func (n *Node) Len() int {
	switch n.Kind() {
	case Array:
		return len(n.items)
	case Object:
		return len(n.keys)
	default:
		return 0
	}
}

// Items returns the elements of an array.
func (n *Node) Items() []*Node {
	if n.Kind() != Array {
		return nil
	}
	return slices.Clone(n.items)
}

// Keys returns the keys of an object in insertion order.
func (n *Node) Keys() []string {
	if n.Kind() != Object {
		return nil
	}
	return slices.Clone(n.keys)
}

// Get returns the value stored under key in an object.
func (n *Node) Get(key string) (*Node, bool) {
	if n.Kind() != Object {
		return nil, false
	}
	value, ok := n.fields[key]
	return value, ok
}

// Set stores value under key. Existing keys keep their position, new keys are appended.
// Set is meant for building trees; it panics when n is not an object.
func (n *Node) Set(key string, value *Node) {
	if n.Kind() != Object {
		panic(fmt.Sprintf("config: Set called on %s node", n.Kind()))
	}
	if value == nil {
		value = NewNull()
	}
	if _, exists := n.fields[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = value
}

// foldedKey returns the key of n equal to key under Unicode case folding, preferring an exact match.
func (n *Node) foldedKey(key string) (string, bool) {
	if _, ok := n.fields[key]; ok {
		return key, true
	}
	for _, existing := range n.keys {
		if strings.EqualFold(existing, key) {
			return existing, true
		}
	}
	return "", false
}

// renameKey replaces the key from with to, keeping its position.
func (n *Node) renameKey(from, to string) {
	for index, key := range n.keys {
		if key == from {
			n.keys[index] = to
			break
		}
	}
	n.fields[to] = n.fields[from]
	delete(n.fields, from)
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	clone := *n
	switch n.kind {
	case Array:
		clone.items = make([]*Node, len(n.items))
		for i, item := range n.items {
			clone.items[i] = item.Clone()
		}
	case Object:
		clone.keys = slices.Clone(n.keys)
		clone.fields = make(map[string]*Node, len(n.fields))
		for key, value := range n.fields {
			clone.fields[key] = value.Clone()
		}
	}
	return &clone
}

// Equal reports whether n and other hold the same tree. Object key order is significant.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind != other.kind {
		return false
	}

	switch n.kind {
	case Null:
		return true
	case Bool:
		return n.boolValue == other.boolValue
	case Int:
		return n.intValue == other.intValue
	case Float:
		return n.floatValue == other.floatValue
	case String:
		return n.stringValue == other.stringValue
	case Array:
		return slices.EqualFunc(n.items, other.items, (*Node).Equal)
	case Object:
		if !slices.Equal(n.keys, other.keys) {
			return false
		}
		for _, key := range n.keys {
			if !n.fields[key].Equal(other.fields[key]) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts n into plain Go values: map[string]any, []any, bool, int64, float64,
// string or nil.
func (n *Node) Interface() any {
	switch n.Kind() {
	case Bool:
		return n.boolValue
	case Int:
		return n.intValue
	case Float:
		return n.floatValue
	case String:
		return n.stringValue
	case Array:
		items := make([]any, 0, len(n.items))
		for _, item := range n.items {
			items = append(items, item.Interface())
		}
		return items
	case Object:
		fields := make(map[string]any, len(n.fields))
		for key, value := range n.fields {
			fields[key] = value.Interface()
		}
		return fields
	default:
		return nil
	}
}

// MarshalJSON encodes n keeping the object key order.
func (n *Node) MarshalJSON() ([]byte, error) {
	buffer := new(bytes.Buffer)
	if err := n.encodeJSON(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (n *Node) encodeJSON(buffer *bytes.Buffer) error {
	switch n.Kind() {
	case Array:
		buffer.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buffer.WriteByte(',')
			}
			if err := item.encodeJSON(buffer); err != nil {
				return err
			}
		}
		buffer.WriteByte(']')
		return nil
	case Object:
		buffer.WriteByte('{')
		for i, key := range n.keys {
			if i > 0 {
				buffer.WriteByte(',')
			}
			encodedKey, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buffer.Write(encodedKey)
			buffer.WriteByte(':')
			if err := n.fields[key].encodeJSON(buffer); err != nil {
				return err
			}
		}
		buffer.WriteByte('}')
		return nil
	case Float:
		if math.IsNaN(n.floatValue) || math.IsInf(n.floatValue, 0) {
			return fmt.Errorf("config: unsupported float value %v", n.floatValue)
		}
		buffer.WriteString(formatFloat(n.floatValue))
		return nil
	default:
		encoded, err := json.Marshal(n.Interface())
		if err != nil {
			return err
		}
		buffer.Write(encoded)
		return nil
	}
}

// MarshalYAML renders n as a yaml.Node keeping the object key order.
func (n *Node) MarshalYAML() (any, error) {
	return n.yamlNode(), nil
}

func (n *Node) yamlNode() *yaml.Node {
	switch n.Kind() {
	case Bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(n.boolValue)}
	case Int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(n.intValue, 10)}
	case Float:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(n.floatValue)}
	case String:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.stringValue}
	case Array:
		sequence := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.items {
			sequence.Content = append(sequence.Content, item.yamlNode())
		}
		return sequence
	case Object:
		mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range n.keys {
			mapping.Content = append(mapping.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				n.fields[key].yamlNode(),
			)
		}
		return mapping
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

// formatFloat renders value so that it reads back as a float and not as an integer.
func formatFloat(value float64) string {
	formatted := strconv.FormatFloat(value, 'g', -1, 64)
	if strings.ContainsAny(formatted, ".eEnN") {
		return formatted
	}
	return formatted + ".0"
}
