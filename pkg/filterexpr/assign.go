package filterexpr

import (
	"fmt"
	"math"
	"reflect"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// coerceLiteral checks value against the field kind and converts integer
// literals for number fields.
func coerceLiteral(kind ValueKind, op Op, value any) (any, error) {
	if op == OpIN {
		switch kind {
		case KindString:
			list, ok := value.([]string)
			if !ok {
				return nil, invalidf("expected a list of strings")
			}
			for _, item := range list {
				if item == "" {
					return nil, invalidf("list literal must not contain empty strings")
				}
			}
			return list, nil
		case KindInteger:
			if list, ok := value.([]int64); ok {
				return list, nil
			}
			return nil, invalidf("expected a list of integers")
		default:
			return nil, invalidf("operator in is not supported for %s fields", kind)
		}
	}

	switch kind {
	case KindString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case KindInteger:
		if n, ok := value.(int64); ok {
			return n, nil
		}
	case KindNumber:
		switch n := value.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
	case KindTimestamp:
		if t, ok := value.(time.Time); ok {
			return t, nil
		}
	default:
		return nil, fmt.Errorf("unsupported field kind %s", kind)
	}
	return nil, invalidf("expected %s literal, got %T", kind, value)
}

func assignValue(field reflect.Value, value any) error {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return assignValue(field.Elem(), value)
	}
	if field.Kind() == reflect.Interface {
		field.Set(reflect.ValueOf(value))
		return nil
	}

	switch v := value.(type) {
	case string:
		if field.Kind() != reflect.String {
			return fmt.Errorf("expected string destination, got %s", field.Kind())
		}
		field.SetString(v)
	case []string:
		return assignSlice(field, v, reflect.String)
	case []int64:
		return assignSlice(field, v, reflect.Int64)
	case int64:
		return assignInteger(field, v)
	case float64:
		if field.Kind() != reflect.Float32 && field.Kind() != reflect.Float64 {
			if math.Trunc(v) != v {
				return fmt.Errorf("cannot assign non-integer value %v to %s", v, field.Kind())
			}
			return assignInteger(field, int64(v))
		}
		field.SetFloat(v)
	case time.Time:
		if field.Type() != timeType {
			return fmt.Errorf("expected time.Time destination, got %s", field.Type())
		}
		field.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("unsupported literal type %T", value)
	}
	return nil
}

func assignSlice[T any](field reflect.Value, items []T, elem reflect.Kind) error {
	if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != elem {
		return fmt.Errorf("expected []%s destination, got %s", elem, field.Type())
	}
	out := reflect.MakeSlice(field.Type(), len(items), len(items))
	for i, item := range items {
		out.Index(i).Set(reflect.ValueOf(item).Convert(field.Type().Elem()))
	}
	field.Set(out)
	return nil
}

func assignInteger(field reflect.Value, value int64) error {
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.OverflowInt(value) {
			return fmt.Errorf("value %d overflows %s", value, field.Type())
		}
		field.SetInt(value)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if value < 0 || field.OverflowUint(uint64(value)) {
			return fmt.Errorf("value %d does not fit %s", value, field.Type())
		}
		field.SetUint(uint64(value))
	case reflect.Float32, reflect.Float64:
		field.SetFloat(float64(value))
	default:
		return fmt.Errorf("numeric assignment requires a number field, got %s", field.Kind())
	}
	return nil
}
