// Package formx encodes nested values as application/x-www-form-urlencoded
// bodies the way the qs library does ("a[b][0]=1"), and parses them back.
package formx

import (
	"encoding"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ArrayFormat controls how slice elements are keyed.
type ArrayFormat uint8

const (
	Indices  ArrayFormat = iota // a[0]=x&a[1]=y
	Brackets                    // a[]=x&a[]=y
	Repeat                      // a=x&a=y
)

func (f ArrayFormat) String() string {
	switch f {
	case Brackets:
		return "brackets"
	case Repeat:
		return "repeat"
	default:
		return "indices"
	}
}

// ParseArrayFormat accepts the names printed by String. Unknown names fall
// back to Indices, matching the encoder's default.
func ParseArrayFormat(s string) ArrayFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "brackets":
		return Brackets
	case "repeat":
		return Repeat
	default:
		return Indices
	}
}

// Options tune encoding. The zero value is indices with "&".
type Options struct {
	ArrayFormat ArrayFormat
	Delimiter   string
}

func (o Options) delimiter() string {
	if o.Delimiter == "" {
		return "&"
	}
	return o.Delimiter
}

func (o Options) arrayKey(prefix string, i int) string {
	switch o.ArrayFormat {
	case Brackets:
		return prefix + "[]"
	case Repeat:
		return prefix
	default:
		return prefix + "[" + strconv.Itoa(i) + "]"
	}
}

// Pair is one decoded key=value, keys still in bracket form.
type Pair struct {
	Key   string
	Value string
}

// Encode encodes v with default options.
func Encode(v any) string { return Options{}.Encode(v) }

// Encode flattens v, which must be a map with string keys (or a pointer to
// one), into an encoded body. Anything else encodes to "". Map keys are
// emitted in sorted order so equal inputs give equal bodies.
func (o Options) Encode(v any) string {
	pairs := o.Pairs(v)
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = Escape(p.Key) + "=" + Escape(p.Value)
	}
	return strings.Join(parts, o.delimiter())
}

// Pairs is Encode before escaping.
func (o Options) Pairs(v any) []Pair {
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil
	}

	var out []Pair
	for _, k := range sortedKeys(rv) {
		out = o.flatten(out, k, rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())))
	}
	return out
}

func (o Options) flatten(out []Pair, prefix string, v reflect.Value) []Pair {
	v = indirect(v)
	if !v.IsValid() {
		// nil
		return append(out, Pair{prefix, ""})
	}

	if s, ok := scalar(v); ok {
		return append(out, Pair{prefix, s})
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			out = o.flatten(out, o.arrayKey(prefix, i), v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return append(out, Pair{prefix, fmt.Sprint(v.Interface())})
		}
		for _, k := range sortedKeys(v) {
			out = o.flatten(out, prefix+"["+k+"]", v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())))
		}
	default:
		out = append(out, Pair{prefix, fmt.Sprint(v.Interface())})
	}
	return out
}

var textMarshaler = reflect.TypeFor[encoding.TextMarshaler]()

func scalar(v reflect.Value) (string, bool) {
	if t, ok := v.Interface().(time.Time); ok {
		// toISOString shape
		return t.UTC().Format("2006-01-02T15:04:05.000Z"), true
	}
	if v.Type().Implements(textMarshaler) {
		b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err == nil {
			return string(b), true
		}
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64), true
	}
	return "", false
}

// indirect unwraps interfaces and pointers. A nil pointer or interface
// yields the invalid Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func sortedKeys(m reflect.Value) []string {
	keys := make([]string, 0, m.Len())
	for _, k := range m.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys
}

// Escape is encodeURIComponent: everything but A-Z a-z 0-9 - _ . ! ~ * ' ( )
// is percent-encoded, and space is %20 rather than "+".
func Escape(s string) string {
	e := url.QueryEscape(s)
	if !strings.ContainsAny(e, "+%") {
		return e
	}
	e = strings.ReplaceAll(e, "+", "%20")
	return unreserved.Replace(e)
}

var unreserved = strings.NewReplacer(
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
