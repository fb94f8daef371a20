// Package orderer sorts identified values according to "before:" and
// "after:" constraints.
//
// Each entry carries a unique id and zero or more constraint strings:
//
//	o := orderer.New[Handler](logger)
//	o.Add("x", hx)
//	o.Add("y", hy, "after:x")
//	o.Add("z", hz, "before:x")
//	o.Ordered() // [hz, hx, hy]
//
// A constraint names one or more ids separated by commas. Ids may be glob
// patterns ("*", "Timing*") and are matched case-insensitively. Problems are
// never fatal: duplicate ids, constraints matching nothing and dependency
// cycles are logged and resolved by falling back to insertion order.
package orderer

import (
	"path"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

const (
	prefixBefore = "before:"
	prefixAfter  = "after:"
)

type entry[T any] struct {
	id          string
	key         string
	value       T
	placeholder bool
	constraints []string
	index       int
}

// Orderer accumulates entries and produces them in constraint order.
// An Orderer is not safe for concurrent use.
type Orderer[T any] struct {
	logger  *zap.Logger
	entries []*entry[T]
	byKey   map[string]*entry[T]
}

// New creates an empty orderer. A nil logger discards warnings.
func New[T any](logger *zap.Logger) *Orderer[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orderer[T]{
		logger: logger,
		byKey:  make(map[string]*entry[T]),
	}
}

// Add adds a value under id. Adding an id twice logs a warning and keeps
// the first value.
func (o *Orderer[T]) Add(id string, value T, constraints ...string) {
	o.add(id, value, isNil(value), constraints)
}

// AddPlaceholder adds an id that participates in ordering but contributes
// no value to the result.
func (o *Orderer[T]) AddPlaceholder(id string, constraints ...string) {
	var zero T
	o.add(id, zero, true, constraints)
}

func (o *Orderer[T]) add(id string, value T, placeholder bool, constraints []string) {
	key := strings.ToLower(id)
	if existing, ok := o.byKey[key]; ok {
		o.logger.Warn("duplicate orderer id; keeping first",
			zap.String("id", id),
			zap.String("existing", existing.id))
		return
	}
	e := &entry[T]{
		id:          id,
		key:         key,
		value:       value,
		placeholder: placeholder,
		constraints: constraints,
		index:       len(o.entries),
	}
	o.entries = append(o.entries, e)
	o.byKey[key] = e
}

// Len returns the number of entries, placeholders included.
func (o *Orderer[T]) Len() int {
	return len(o.entries)
}

// IDs returns entry ids in constraint order, placeholders included.
func (o *Orderer[T]) IDs() []string {
	sorted := o.sort()
	ids := make([]string, len(sorted))
	for i, e := range sorted {
		ids[i] = e.id
	}
	return ids
}

// Ordered returns the values in constraint order. Placeholders are dropped.
func (o *Orderer[T]) Ordered() []T {
	sorted := o.sort()
	out := make([]T, 0, len(sorted))
	for _, e := range sorted {
		if e.placeholder {
			continue
		}
		out = append(out, e.value)
	}
	return out
}

// sort is Kahn's algorithm where, among ready entries, the earliest added
// is always emitted first. That keeps unconstrained entries in insertion
// order.
func (o *Orderer[T]) sort() []*entry[T] {
	n := len(o.entries)
	succ := make([][]int, n)
	indeg := make([]int, n)
	seen := make(map[[2]int]bool)

	link := func(from, to int) {
		if from == to || seen[[2]int{from, to}] {
			return
		}
		seen[[2]int{from, to}] = true
		succ[from] = append(succ[from], to)
		indeg[to]++
	}

	for _, e := range o.entries {
		for _, c := range e.constraints {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			lower := strings.ToLower(c)
			var before bool
			var list string
			switch {
			case strings.HasPrefix(lower, prefixBefore):
				before, list = true, c[len(prefixBefore):]
			case strings.HasPrefix(lower, prefixAfter):
				list = c[len(prefixAfter):]
			default:
				o.logger.Warn("unrecognized ordering constraint",
					zap.String("id", e.id),
					zap.String("constraint", c))
				continue
			}
			for _, pattern := range strings.Split(list, ",") {
				pattern = strings.TrimSpace(pattern)
				if pattern == "" {
					continue
				}
				targets := o.match(pattern, e)
				if len(targets) == 0 {
					if !hasMeta(pattern) {
						o.logger.Warn("ordering constraint matched nothing",
							zap.String("id", e.id),
							zap.String("constraint", c))
					}
					continue
				}
				for _, t := range targets {
					if before {
						link(e.index, t.index)
					} else {
						link(t.index, e.index)
					}
				}
			}
		}
	}

	out := make([]*entry[T], 0, n)
	done := make([]bool, n)
	for len(out) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			for i := 0; i < n; i++ {
				if !done[i] {
					next = i
					break
				}
			}
			o.logger.Warn("ordering cycle detected; placing entry in insertion order",
				zap.String("id", o.entries[next].id),
				zap.Strings("unresolved", o.remaining(done)))
		}
		done[next] = true
		out = append(out, o.entries[next])
		for _, s := range succ[next] {
			indeg[s]--
		}
	}
	return out
}

func (o *Orderer[T]) match(pattern string, self *entry[T]) []*entry[T] {
	lower := strings.ToLower(pattern)
	if !hasMeta(lower) {
		if e, ok := o.byKey[lower]; ok && e != self {
			return []*entry[T]{e}
		}
		return nil
	}
	var out []*entry[T]
	for _, e := range o.entries {
		if e == self {
			continue
		}
		if ok, err := path.Match(lower, e.key); err == nil && ok {
			out = append(out, e)
		}
	}
	return out
}

func (o *Orderer[T]) remaining(done []bool) []string {
	var ids []string
	for i, e := range o.entries {
		if !done[i] {
			ids = append(ids, e.id)
		}
	}
	return ids
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

func isNil(v any) bool {
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
