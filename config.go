package appctx

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Kind is the closed set of value kinds a Config can hold.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDuration
	KindStrings
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDuration:
		return "duration"
	case KindStrings:
		return "strings"
	default:
		return "invalid"
	}
}

// Value is a single typed configuration value.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	d    time.Duration
	ss   []string
}

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Any returns the value as a plain Go value.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDuration:
		return v.d
	case KindStrings:
		return append([]string(nil), v.ss...)
	default:
		return nil
	}
}

// String formats the value for logs.
func (v Value) String() string {
	switch v.kind {
	case KindStrings:
		return "[" + strings.Join(v.ss, ",") + "]"
	default:
		return fmt.Sprint(v.Any())
	}
}

// valueOf converts a Go value into a Value. Strings that parse as a
// duration stay strings; only time.Duration becomes KindDuration.
func valueOf(raw any) (Value, bool) {
	switch x := raw.(type) {
	case Value:
		return x, x.kind != KindInvalid
	case string:
		return Value{kind: KindString, s: x}, true
	case bool:
		return Value{kind: KindBool, b: x}, true
	case int:
		return Value{kind: KindInt, i: int64(x)}, true
	case int8:
		return Value{kind: KindInt, i: int64(x)}, true
	case int16:
		return Value{kind: KindInt, i: int64(x)}, true
	case int32:
		return Value{kind: KindInt, i: int64(x)}, true
	case int64:
		return Value{kind: KindInt, i: x}, true
	case uint8:
		return Value{kind: KindInt, i: int64(x)}, true
	case uint16:
		return Value{kind: KindInt, i: int64(x)}, true
	case uint32:
		return Value{kind: KindInt, i: int64(x)}, true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return Value{}, false
		}
		return Value{kind: KindInt, i: int64(x)}, true
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, false
		}
		return Value{kind: KindInt, i: int64(x)}, true
	case float32:
		return Value{kind: KindFloat, f: float64(x)}, true
	case float64:
		return Value{kind: KindFloat, f: x}, true
	case time.Duration:
		return Value{kind: KindDuration, d: x}, true
	case []string:
		return Value{kind: KindStrings, ss: append([]string(nil), x...)}, true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return Value{}, false
			}
			out = append(out, s)
		}
		return Value{kind: KindStrings, ss: out}, true
	default:
		return Value{}, false
	}
}

// Config is an immutable snapshot of typed configuration values. The zero
// value is an empty config.
type Config struct {
	values map[string]Value
}

// NewConfig validates raw and captures it as a Config. Keys must be
// non-empty and every value must map onto one of the supported kinds.
func NewConfig(raw map[string]any) (Config, error) {
	if len(raw) == 0 {
		return Config{}, nil
	}
	values := make(map[string]Value, len(raw))
	for key, item := range raw {
		if strings.TrimSpace(key) == "" {
			return Config{}, &ConfigError{Key: key, Reason: "empty key"}
		}
		v, ok := valueOf(item)
		if !ok {
			return Config{}, &ConfigError{Key: key, Reason: fmt.Sprintf("unsupported value type %T", item)}
		}
		values[key] = v
	}
	return Config{values: values}, nil
}

// MustConfig is like NewConfig but panics on error. Intended for tests and
// static configuration.
func MustConfig(raw map[string]any) Config {
	cfg, err := NewConfig(raw)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Len returns the number of keys.
func (c Config) Len() int { return len(c.values) }

// Keys returns the sorted key set.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the raw Value stored under key.
func (c Config) Lookup(key string) (Value, bool) {
	v, ok := c.values[key]
	if ok && v.kind == KindStrings {
		v.ss = append([]string(nil), v.ss...)
	}
	return v, ok
}

// Map returns a detached plain-map copy of the config.
func (c Config) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v.Any()
	}
	return out
}

// Merge returns a new Config in which overlay keys shadow c's keys. Neither
// input is modified.
func (c Config) Merge(overlay Config) Config {
	if overlay.Len() == 0 {
		return c
	}
	if c.Len() == 0 {
		return overlay
	}
	out := make(map[string]Value, len(c.values)+len(overlay.values))
	for k, v := range c.values {
		out[k] = v
	}
	for k, v := range overlay.values {
		out[k] = v
	}
	return Config{values: out}
}

// String returns a string value.
func (c Config) String(key string) (string, bool) {
	v, ok := c.values[key]
	if !ok || v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Int returns an int value.
func (c Config) Int(key string) (int64, bool) {
	v, ok := c.values[key]
	if !ok || v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// Float returns a float value. Int values are widened.
func (c Config) Float(key string) (float64, bool) {
	v, ok := c.values[key]
	if !ok {
		return 0, false
	}
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Bool returns a bool value.
func (c Config) Bool(key string) (bool, bool) {
	v, ok := c.values[key]
	if !ok || v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Duration returns a duration value. String values are parsed with
// time.ParseDuration so file-based configs can write "5s".
func (c Config) Duration(key string) (time.Duration, bool) {
	v, ok := c.values[key]
	if !ok {
		return 0, false
	}
	switch v.kind {
	case KindDuration:
		return v.d, true
	case KindString:
		d, err := time.ParseDuration(v.s)
		if err != nil {
			return 0, false
		}
		return d, true
	}
	return 0, false
}

// Strings returns a copy of a string list value.
func (c Config) Strings(key string) ([]string, bool) {
	v, ok := c.values[key]
	if !ok || v.kind != KindStrings {
		return nil, false
	}
	return append([]string(nil), v.ss...), true
}

// Field declares a configuration key a resource factory depends on.
type Field struct {
	Key      string
	Kind     Kind
	Required bool
}

// Require is shorthand for a required Field.
func Require(key string, kind Kind) Field {
	return Field{Key: key, Kind: kind, Required: true}
}

// Optional is shorthand for an optional Field whose kind is still checked
// when present.
func Optional(key string, kind Kind) Field {
	return Field{Key: key, Kind: kind}
}

func validateFields(fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Key) == "" {
			return &ConfigError{Key: f.Key, Reason: "field key must be provided"}
		}
		if f.Kind <= KindInvalid || f.Kind > KindStrings {
			return &ConfigError{Key: f.Key, Reason: fmt.Sprintf("unknown kind %d", f.Kind)}
		}
		if _, dup := seen[f.Key]; dup {
			return &ConfigError{Key: f.Key, Reason: "field declared twice"}
		}
		seen[f.Key] = struct{}{}
	}
	return nil
}

// check verifies c satisfies fields.
func (c Config) check(fields []Field) error {
	for _, f := range fields {
		v, ok := c.values[f.Key]
		if !ok {
			if f.Required {
				return &ConfigError{Key: f.Key, Reason: "required " + f.Kind.String() + " is missing"}
			}
			continue
		}
		if v.kind == f.Kind {
			continue
		}
		if f.Kind == KindDuration && v.kind == KindString {
			if _, err := time.ParseDuration(v.s); err == nil {
				continue
			}
		}
		if f.Kind == KindFloat && v.kind == KindInt {
			continue
		}
		return &ConfigError{Key: f.Key, Reason: fmt.Sprintf("want %s, got %s", f.Kind, v.kind)}
	}
	return nil
}
