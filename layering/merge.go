// Package layering deep-merges state snapshots. Nested maps merge key by key;
// every other value from the patch, nil included, replaces the base value.
package layering

import "reflect"

// Overlay returns a deep copy of base with patch merged on top of it. Nested
// maps merge key by key; any other patch value, nil included, replaces the
// base value. Neither argument is modified.
func Overlay(base, patch map[string]any) map[string]any {
	if base == nil {
		base = map[string]any{}
	}
	if patch == nil {
		return Clone(base)
	}
	merged := mergeValue(reflect.ValueOf(patch), reflect.ValueOf(base))
	return merged.Interface().(map[string]any)
}

// Clone returns a deep copy of state.
func Clone(state map[string]any) map[string]any {
	if state == nil {
		return map[string]any{}
	}
	return cloneValue(reflect.ValueOf(state)).Interface().(map[string]any)
}

// CloneValue returns a deep copy of a single state value.
func CloneValue(value any) any {
	if value == nil {
		return nil
	}
	return cloneValue(reflect.ValueOf(value)).Interface()
}

// mergeValue lays patch over base. Maps of the same type merge key by key and
// anything else is a deep copy of patch.
func mergeValue(patch, base reflect.Value) reflect.Value {
	if !patch.IsValid() {
		return cloneValue(base)
	}

	switch patch.Kind() {
	case reflect.Interface:
		if patch.IsNil() {
			return reflect.Zero(patch.Type())
		}
		if base.IsValid() && base.Kind() == reflect.Interface {
			if base.IsNil() {
				base = reflect.Value{}
			} else {
				base = base.Elem()
			}
		}
		merged := mergeValue(patch.Elem(), base)
		return merged.Convert(patch.Type())
	case reflect.Map:
		if patch.IsNil() || !base.IsValid() || base.Kind() != reflect.Map ||
			base.IsNil() || base.Type() != patch.Type() {
			return cloneValue(patch)
		}
		result := cloneValue(base)
		iter := patch.MapRange()
		for iter.Next() {
			key := iter.Key()
			result.SetMapIndex(key, mergeValue(iter.Value(), result.MapIndex(key)))
		}
		return result
	default:
		return cloneValue(patch)
	}
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Struct:
		// Unexported fields, such as those of time.Time, are copied as is.
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		return reflect.ValueOf(v.Interface())
	}
}
