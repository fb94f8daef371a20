package ioc

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"
)

var (
	errorType            = reflect.TypeOf((*error)(nil)).Elem()
	stringType           = reflect.TypeOf("")
	loggerType           = reflect.TypeOf((*zap.Logger)(nil))
	reflectTypeType      = reflect.TypeOf((*reflect.Type)(nil)).Elem()
	objectLocatorType    = reflect.TypeOf((*ObjectLocator)(nil)).Elem()
	serviceResourcesType = reflect.TypeOf((*ServiceResources)(nil)).Elem()
)

// invoke calls fn, resolving each parameter in turn. res is nil outside of
// service construction.
func (r *Registry) invoke(fn reflect.Value, res *serviceResources) (any, error) {
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %v is not a function", ErrInvalidConstructor, fn.Type())
	}
	ft := fn.Type()
	if ft.NumOut() < 1 || ft.NumOut() > 2 || (ft.NumOut() == 2 && ft.Out(1) != errorType) {
		return nil, fmt.Errorf("%w: %v must return a value and optional error", ErrInvalidConstructor, ft)
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("%w: %v is variadic", ErrInvalidConstructor, ft)
	}

	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		v, err := r.resolveParameter(ft.In(i), res)
		if err != nil {
			return nil, fmt.Errorf("parameter %d (%v) of %v: %w", i, ft.In(i), ft, err)
		}
		args[i] = v
	}

	out := fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// resolveParameter resolves, in priority order: configuration parameters,
// built-in resources, then the master object provider.
func (r *Registry) resolveParameter(t reflect.Type, res *serviceResources) (reflect.Value, error) {
	if t.Implements(configParamType) {
		if res == nil {
			return reflect.Value{}, fmt.Errorf("%w: configuration is only available to service builders", ErrNotInjectable)
		}
		return r.configurationValue(t, res)
	}

	if v, ok := r.builtinValue(t, res); ok {
		return v, nil
	}

	obj, err := r.Object(t)
	if err != nil {
		return reflect.Value{}, err
	}
	return valueOf(obj, t), nil
}

func (r *Registry) builtinValue(t reflect.Type, res *serviceResources) (reflect.Value, bool) {
	switch t {
	case loggerType:
		if res != nil {
			return reflect.ValueOf(res.logger), true
		}
		return reflect.ValueOf(r.logger), true
	case objectLocatorType:
		if res != nil {
			return valueOf(res, t), true
		}
		return valueOf(r, t), true
	}
	if res == nil {
		return reflect.Value{}, false
	}
	switch t {
	case stringType:
		return reflect.ValueOf(res.def.ID), true
	case reflectTypeType:
		return valueOf(res.def.Interface, t), true
	case serviceResourcesType:
		return valueOf(res, t), true
	}
	return reflect.Value{}, false
}

func (r *Registry) configurationValue(t reflect.Type, res *serviceResources) (reflect.Value, error) {
	kind := reflect.Zero(t).Interface().(configParam).configKind()
	switch kind {
	case kindUnordered, kindOrdered:
		var values []any
		if kind == kindUnordered {
			values = r.collectUnordered(res, t.Elem())
		} else {
			values = r.collectOrdered(res, t.Elem())
		}
		out := reflect.MakeSlice(t, 0, len(values))
		for _, v := range values {
			out = reflect.Append(out, valueOf(v, t.Elem()))
		}
		return out, nil
	case kindMapped:
		keys, values := r.collectMapped(res, t.Key(), t.Elem())
		out := reflect.MakeMapWithSize(t, len(keys))
		for i := range keys {
			out.SetMapIndex(valueOf(keys[i], t.Key()), valueOf(values[i], t.Elem()))
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("%w: %v", ErrNotInjectable, t)
}

// valueOf converts v to a reflect.Value of type t, preserving interface
// types so Call and Set accept it.
func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type() != t && rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out
	}
	return rv
}

// InjectFields populates the exported fields of the struct pointed to by
// ptr that carry an `inject` tag:
//
//	type Page struct {
//	    Store  Store    `inject:""`                  // by type
//	    Cache  Cache    `inject:"id=app.Cache"`      // by service id
//	    Mailer Mailer   `inject:"marker=Primary"`    // by type and marker
//	}
func (r *Registry) InjectFields(ptr any) error {
	if err := r.checkActive(); err != nil {
		return err
	}
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: InjectFields requires a pointer to a struct, got %T", ErrNotInjectable, ptr)
	}
	sv := rv.Elem()
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)
		tag, ok := field.Tag.Lookup("inject")
		if !ok {
			continue
		}
		if !field.IsExported() {
			return fmt.Errorf("%w: field %s.%s is not exported", ErrNotInjectable, st.Name(), field.Name)
		}
		var id string
		var markers []string
		for _, opt := range strings.Split(tag, ",") {
			opt = strings.TrimSpace(opt)
			switch {
			case opt == "":
			case strings.HasPrefix(opt, "id="):
				id = strings.TrimPrefix(opt, "id=")
			case strings.HasPrefix(opt, "marker="):
				markers = append(markers, strings.TrimPrefix(opt, "marker="))
			default:
				return fmt.Errorf("%w: unknown inject option %q on %s.%s", ErrNotInjectable, opt, st.Name(), field.Name)
			}
		}

		var v any
		var err error
		switch {
		case id != "":
			v, err = r.Service(id, field.Type)
		case field.Type == loggerType:
			v = r.logger
		default:
			v, err = r.Object(field.Type, markers...)
		}
		if err != nil {
			return fmt.Errorf("injecting %s.%s: %w", st.Name(), field.Name, err)
		}
		sv.Field(i).Set(valueOf(v, field.Type))
	}
	return nil
}
