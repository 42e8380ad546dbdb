// Package nested flattens arbitrarily nested groups into a single ordered slice.
package nested

import "reflect"

// Item is either a single leaf value or a group of further items.
type Item[T any] struct {
	leaf     T
	children []Item[T]
	group    bool
}

// Leaf wraps a single value.
func Leaf[T any](v T) Item[T] {
	return Item[T]{leaf: v}
}

// Group bundles items. An empty group contributes nothing when flattened.
func Group[T any](items ...Item[T]) Item[T] {
	return Item[T]{children: items, group: true}
}

// IsGroup reports whether the item is a group.
func (it Item[T]) IsGroup() bool {
	return it.group
}

// Value returns the leaf value. It is the zero value for groups.
func (it Item[T]) Value() T {
	return it.leaf
}

// Children returns the items of a group.
func (it Item[T]) Children() []Item[T] {
	return it.children
}

// Flatten returns every leaf in depth-first, left-to-right order.
func Flatten[T any](items ...Item[T]) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = appendLeaves(out, it)
	}
	return out
}

func appendLeaves[T any](out []T, it Item[T]) []T {
	if !it.group {
		return append(out, it.leaf)
	}
	for _, child := range it.children {
		out = appendLeaves(out, child)
	}
	return out
}

// FlattenAny flattens nested slices and arrays found through reflection.
// Non-sequence values, nil included, are kept as leaves. Strings and byte
// slices are leaves, not sequences.
func FlattenAny(v any) []any {
	return appendAny(make([]any, 0), v, true)
}

func appendAny(out []any, v any, top bool) []any {
	if v == nil {
		if top {
			return out
		}
		return append(out, nil)
	}
	rv := reflect.ValueOf(v)
	if !isSequence(rv) {
		return append(out, v)
	}
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		if elem.Kind() == reflect.Interface {
			if elem.IsNil() {
				out = append(out, nil)
				continue
			}
			elem = elem.Elem()
		}
		if isSequence(elem) {
			out = appendAny(out, elem.Interface(), false)
			continue
		}
		if isNilValue(elem) {
			out = append(out, nil)
			continue
		}
		out = append(out, elem.Interface())
	}
	return out
}

func isSequence(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

func isNilValue(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Func, reflect.Map, reflect.Pointer, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
