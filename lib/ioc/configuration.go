package ioc

import (
	"reflect"
)

type (
	unorderedSink func(value any)
	orderedSink   func(id string, value any, constraints []string)
	mappedSink    func(key, value any)
)

// Configuration collects values for a service's unordered configuration.
type Configuration[T any] struct {
	sink unorderedSink
}

// Add contributes a value.
func (c *Configuration[T]) Add(value T) {
	c.sink(value)
}

// OrderedConfiguration collects identified values for a service's ordered
// configuration. Constraints take the form "before:id" or "after:id".
type OrderedConfiguration[T any] struct {
	sink orderedSink
}

// Add contributes value under id.
func (c *OrderedConfiguration[T]) Add(id string, value T, constraints ...string) {
	c.sink(id, value, constraints)
}

// AddPlaceholder contributes an id that only anchors ordering constraints.
func (c *OrderedConfiguration[T]) AddPlaceholder(id string, constraints ...string) {
	c.sink(id, nil, constraints)
}

// MappedConfiguration collects key/value pairs for a service's mapped
// configuration.
type MappedConfiguration[K comparable, V any] struct {
	sink mappedSink
}

// Add contributes value under key.
func (c *MappedConfiguration[K, V]) Add(key K, value V) {
	c.sink(key, value)
}

// Collection is an injectable parameter type receiving a service's
// unordered configuration.
type Collection[T any] []T

// List is an injectable parameter type receiving a service's ordered
// configuration.
type List[T any] []T

// Map is an injectable parameter type receiving a service's mapped
// configuration.
type Map[K comparable, V any] map[K]V

type configParam interface {
	configKind() configKind
}

func (Collection[T]) configKind() configKind { return kindUnordered }
func (List[T]) configKind() configKind       { return kindOrdered }
func (Map[K, V]) configKind() configKind     { return kindMapped }

var configParamType = reflect.TypeOf((*configParam)(nil)).Elem()

// UnorderedConfig collects the unordered configuration contributed to the
// service being built. Values that are nil or do not match T are dropped
// with a warning.
func UnorderedConfig[T any](res ServiceResources) []T {
	r, ok := res.(*serviceResources)
	if !ok {
		return nil
	}
	values := r.registry.collectUnordered(r, typeOf[T]())
	out := make([]T, 0, len(values))
	for _, v := range values {
		out = append(out, v.(T))
	}
	return out
}

// OrderedConfig collects the ordered configuration contributed to the
// service being built, sorted by the contributions' constraints.
func OrderedConfig[T any](res ServiceResources) []T {
	r, ok := res.(*serviceResources)
	if !ok {
		return nil
	}
	values := r.registry.collectOrdered(r, typeOf[T]())
	out := make([]T, 0, len(values))
	for _, v := range values {
		out = append(out, v.(T))
	}
	return out
}

// MappedConfig collects the mapped configuration contributed to the service
// being built. A key contributed twice keeps its first value.
func MappedConfig[K comparable, V any](res ServiceResources) map[K]V {
	r, ok := res.(*serviceResources)
	if !ok {
		return nil
	}
	keys, values := r.registry.collectMapped(r, typeOf[K](), typeOf[V]())
	out := make(map[K]V, len(keys))
	for i, k := range keys {
		out[k.(K)] = values[i].(V)
	}
	return out
}

// conforms reports whether v may be stored where t is declared.
func conforms(v any, t reflect.Type) bool {
	if v == nil {
		return false
	}
	vt := reflect.TypeOf(v)
	if t.Kind() == reflect.Interface {
		return vt.Implements(t)
	}
	return vt.AssignableTo(t)
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
