package graph

import (
	"fmt"
	"maps"
	"reflect"
)

// Reducer defines how a state field is combined with a partial update.
// It takes the current value and the update value, and returns the merged value.
type Reducer func(current, update any) (any, error)

// Schema defines the structure and update logic for the graph state.
type Schema[S any] interface {
	// Init returns the initial state.
	Init() S

	// Update merges a partial update into the current state and returns
	// the merged state. Implementations must not mutate current.
	Update(current, update S) (S, error)
}

// StructSchema implements Schema for struct state types. Reducers are
// registered per field name; fields without a reducer use overwrite
// semantics where a zero-value field in the update is treated as absent.
type StructSchema[S any] struct {
	reducers map[string]Reducer
}

// NewStructSchema creates a schema for the struct type S.
func NewStructSchema[S any]() *StructSchema[S] {
	var probe S
	t := reflect.TypeOf(probe)
	if t != nil && t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("graph: StructSchema requires a struct state type, got %s", t.Kind()))
	}
	return &StructSchema[S]{
		reducers: make(map[string]Reducer),
	}
}

// RegisterReducer adds a reducer for a specific struct field name.
// It panics if the field does not exist on S, since a typo here is a
// configuration bug that must not fail silently at merge time.
func (s *StructSchema[S]) RegisterReducer(field string, reducer Reducer) *StructSchema[S] {
	var probe S
	if _, ok := reflect.TypeOf(probe).FieldByName(field); !ok {
		panic(fmt.Sprintf("graph: no field %q on state type %T", field, probe))
	}
	s.reducers[field] = reducer
	return s
}

// Init returns the zero value of S.
func (s *StructSchema[S]) Init() S {
	var zero S
	return zero
}

// Update merges the partial update into current, field by field. Fields with
// a registered reducer are always reduced; the reducer decides what a zero
// update means. Fields without a reducer are overwritten only when the update
// value is non-zero.
func (s *StructSchema[S]) Update(current, update S) (S, error) {
	currVal := reflect.ValueOf(&current).Elem()
	updVal := reflect.ValueOf(update)
	t := currVal.Type()

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		uf := updVal.Field(i)

		if reducer, ok := s.reducers[f.Name]; ok {
			merged, err := reducer(currVal.Field(i).Interface(), uf.Interface())
			if err != nil {
				return current, fmt.Errorf("failed to reduce field %s: %w", f.Name, err)
			}
			mv := reflect.ValueOf(merged)
			if !mv.IsValid() {
				mv = reflect.Zero(f.Type)
			}
			if !mv.Type().AssignableTo(f.Type) {
				return current, fmt.Errorf("reducer for field %s returned %T, want %s", f.Name, merged, f.Type)
			}
			currVal.Field(i).Set(mv)
			continue
		}

		if !uf.IsZero() {
			currVal.Field(i).Set(uf)
		}
	}

	return current, nil
}

// MapSchema implements Schema for map[string]any states.
// It allows defining reducers for specific keys.
type MapSchema struct {
	Reducers map[string]Reducer
}

// NewMapSchema creates a new MapSchema.
func NewMapSchema() *MapSchema {
	return &MapSchema{
		Reducers: make(map[string]Reducer),
	}
}

// RegisterReducer adds a reducer for a specific key.
func (s *MapSchema) RegisterReducer(key string, reducer Reducer) *MapSchema {
	s.Reducers[key] = reducer
	return s
}

// Init returns an empty map.
func (s *MapSchema) Init() map[string]any {
	return make(map[string]any)
}

// Update merges the update map into the current map using registered
// reducers. Keys absent from the update are left untouched.
func (s *MapSchema) Update(current, update map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(current))
	maps.Copy(result, current)

	for k, v := range update {
		if reducer, ok := s.Reducers[k]; ok {
			merged, err := reducer(result[k], v)
			if err != nil {
				return nil, fmt.Errorf("failed to reduce key %s: %w", k, err)
			}
			result[k] = merged
		} else {
			result[k] = v
		}
	}

	return result, nil
}

// Common reducers.

// Overwrite replaces the current value with the update, even when the update
// is the zero value.
func Overwrite(current, update any) (any, error) {
	return update, nil
}

// Append appends the update to the current slice. It accepts a slice of the
// same element type or a single element; a nil update leaves the current
// value unchanged.
func Append(current, update any) (any, error) {
	updVal := reflect.ValueOf(update)
	if !updVal.IsValid() || (updVal.Kind() == reflect.Slice && updVal.IsNil()) {
		return current, nil
	}

	currVal := reflect.ValueOf(current)
	if !currVal.IsValid() || (currVal.Kind() == reflect.Slice && currVal.IsNil()) {
		if updVal.Kind() == reflect.Slice {
			return update, nil
		}
		slice := reflect.MakeSlice(reflect.SliceOf(updVal.Type()), 0, 1)
		return reflect.Append(slice, updVal).Interface(), nil
	}

	if currVal.Kind() != reflect.Slice {
		return nil, fmt.Errorf("current value is not a slice")
	}

	if updVal.Kind() == reflect.Slice {
		if currVal.Type().Elem() != updVal.Type().Elem() {
			return nil, fmt.Errorf("cannot append %s to %s", updVal.Type(), currVal.Type())
		}
		return reflect.AppendSlice(currVal, updVal).Interface(), nil
	}

	return reflect.Append(currVal, updVal).Interface(), nil
}

// OverwriteNonNil replaces the current value only when the update is a
// non-nil pointer. Use it for optional fields where the zero value is a
// meaningful update (e.g. a budget reaching exactly zero).
func OverwriteNonNil(current, update any) (any, error) {
	updVal := reflect.ValueOf(update)
	if !updVal.IsValid() || (updVal.Kind() == reflect.Pointer && updVal.IsNil()) {
		return current, nil
	}
	return update, nil
}

// DedupeBy returns an append reducer that drops update elements whose key
// already exists in the current slice. The key function receives each
// element as any.
func DedupeBy(key func(elem any) string) Reducer {
	return func(current, update any) (any, error) {
		appended, err := Append(current, update)
		if err != nil {
			return nil, err
		}
		slice := reflect.ValueOf(appended)
		if !slice.IsValid() || slice.Kind() != reflect.Slice {
			return appended, nil
		}

		seen := make(map[string]bool, slice.Len())
		out := reflect.MakeSlice(slice.Type(), 0, slice.Len())
		for i := 0; i < slice.Len(); i++ {
			elem := slice.Index(i)
			k := key(elem.Interface())
			if seen[k] {
				continue
			}
			seen[k] = true
			out = reflect.Append(out, elem)
		}
		return out.Interface(), nil
	}
}
