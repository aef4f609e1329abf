package library

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

var (
	contextType  = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	durationType = reflect.TypeOf(time.Duration(0))
	timeType     = reflect.TypeOf(time.Time{})
)

// convertValue turns a wire value into a value assignable to t. Robot
// Framework passes most arguments as strings, so scalars are parsed.
func convertValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	var (
		out any
		err error
	)
	switch {
	case t == durationType:
		out, err = cast.ToDurationE(v)
	case t == timeType:
		out, err = cast.ToTimeE(v)
	default:
		switch t.Kind() {
		case reflect.String:
			out, err = cast.ToStringE(v)
		case reflect.Bool:
			out, err = cast.ToBoolE(v)
		case reflect.Int:
			out, err = cast.ToIntE(v)
		case reflect.Int8:
			out, err = cast.ToInt8E(v)
		case reflect.Int16:
			out, err = cast.ToInt16E(v)
		case reflect.Int32:
			out, err = cast.ToInt32E(v)
		case reflect.Int64:
			out, err = cast.ToInt64E(v)
		case reflect.Uint:
			out, err = cast.ToUintE(v)
		case reflect.Uint8:
			out, err = cast.ToUint8E(v)
		case reflect.Uint16:
			out, err = cast.ToUint16E(v)
		case reflect.Uint32:
			out, err = cast.ToUint32E(v)
		case reflect.Uint64:
			out, err = cast.ToUint64E(v)
		case reflect.Float32:
			out, err = cast.ToFloat32E(v)
		case reflect.Float64:
			out, err = cast.ToFloat64E(v)
		case reflect.Slice:
			return convertSlice(rv, t)
		case reflect.Map:
			return convertMap(rv, t)
		case reflect.Pointer:
			elem, cerr := convertValue(v, t.Elem())
			if cerr != nil {
				return reflect.Value{}, cerr
			}
			ptr := reflect.New(t.Elem())
			ptr.Elem().Set(elem)
			return ptr, nil
		default:
			if rv.Type().ConvertibleTo(t) {
				return rv.Convert(t), nil
			}
			err = fmt.Errorf("unsupported parameter type %s", t)
		}
	}
	if err != nil {
		return reflect.Value{}, fmt.Errorf("cannot convert %T value %v to %s: %w", v, v, t, err)
	}
	return reflect.ValueOf(out).Convert(t), nil
}

func convertSlice(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	if t.Elem().Kind() == reflect.Uint8 && rv.Kind() == reflect.String {
		return reflect.ValueOf([]byte(rv.String())).Convert(t), nil
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("cannot convert %s value to %s", rv.Type(), t)
	}
	out := reflect.MakeSlice(t, rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := convertValue(rv.Index(i).Interface(), t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("item %d: %w", i, err)
		}
		out.Index(i).Set(item)
	}
	return out, nil
}

func convertMap(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	if rv.Kind() != reflect.Map {
		return reflect.Value{}, fmt.Errorf("cannot convert %s value to %s", rv.Type(), t)
	}
	out := reflect.MakeMapWithSize(t, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := convertValue(iter.Key().Interface(), t.Key())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key().Interface(), err)
		}
		val, err := convertValue(iter.Value().Interface(), t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("value %v: %w", iter.Key().Interface(), err)
		}
		out.SetMapIndex(key, val)
	}
	return out, nil
}
