// Package compose fills prompt templates from hierarchical state.
//
// Placeholders look like {{path}} or {{path|formatter}} where path is a
// dot separated list of keys. A path is looked up in the state first and in
// the defaults second. Unresolved placeholders are logged and left in the
// output verbatim.
package compose

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// Formatter renders a resolved value.
type Formatter func(value any) string

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}|]+?)\s*(?:\|\s*([^{}]+?)\s*)?\}\}`)

// Compose replaces every placeholder of template. It has no side effects
// besides a warning log for each unresolved placeholder.
func Compose(template string, state, defaults map[string]any, formatters map[string]Formatter) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(placeholder string) string {
		groups := placeholderRe.FindStringSubmatch(placeholder)
		path, formatterName := groups[1], groups[2]

		value, ok := Lookup(state, path)
		if !ok {
			value, ok = Lookup(defaults, path)
		}
		if !ok {
			slog.Warn("Template placeholder is not resolved", "path", path)
			return placeholder
		}

		if formatterName != "" {
			if format, found := formatters[formatterName]; found {
				return format(value)
			}
		}

		return Stringify(value)
	})
}

// Lookup walks a dot separated path through nested maps. A key that is
// present with a nil value counts as resolved.
func Lookup(root map[string]any, path string) (any, bool) {
	if root == nil {
		return nil, false
	}

	var current any = root
	for _, key := range strings.Split(path, ".") {
		next, ok := child(current, key)
		if !ok {
			return nil, false
		}
		current = next
	}

	return current, true
}

func child(node any, key string) (any, bool) {
	if node == nil {
		return nil, false
	}

	v := reflect.ValueOf(node)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	value := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
	if !value.IsValid() {
		return nil, false
	}

	return value.Interface(), true
}

// Stringify is the default rendering: nil is empty, sequences are comma
// joined, maps and structs are JSON, everything else uses its natural form.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Stringify(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.Map, reflect.Struct:
		data, err := json.Marshal(rv.Interface())
		if err != nil {
			return fmt.Sprint(rv.Interface())
		}
		return string(data)
	default:
		return fmt.Sprint(rv.Interface())
	}
}
