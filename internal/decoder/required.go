package decoder

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	rawType     = reflect.TypeOf(json.RawMessage{})
)

// requireFields rejects data when a field of t is absent or null. Fields tagged omitempty are
// optional; nested structs are checked the same way.
func requireFields(data []byte, t reflect.Type) error {
	return requireObject(data, t, "")
}

func requireObject(data []byte, t reflect.Type, prefix string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj == nil {
		if prefix == "" {
			return errors.New("payload is null")
		}
		return fmt.Errorf("missing field %s", strings.TrimSuffix(prefix, "."))
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, optional := jsonName(field)
		if name == "-" {
			continue
		}

		raw, ok := obj[name]
		if !ok || string(raw) == "null" {
			if optional {
				continue
			}
			return fmt.Errorf("missing field %s%s", prefix, name)
		}

		if nested(field.Type) {
			if err := requireObject(raw, field.Type, prefix+name+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

func jsonName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	return name, strings.Contains(opts, "omitempty")
}

// nested reports whether values of t are json objects checked field by field
func nested(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != decimalType && t != rawType
}
