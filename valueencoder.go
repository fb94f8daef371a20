package tapestry

import (
	"reflect"
	"strconv"

	"github.com/pthm/tapestry/lib/ioc"
)

// ValueEncoder converts loop values to and from the client representation
// stored in t:formdata.
type ValueEncoder[T any] interface {
	ToClient(v T) string
	ToValue(s string) (T, error)
}

// ValueEncoderFuncs adapts a pair of functions to ValueEncoder.
type ValueEncoderFuncs[T any] struct {
	To   func(v T) string
	From func(s string) (T, error)
}

func (e ValueEncoderFuncs[T]) ToClient(v T) string         { return e.To(v) }
func (e ValueEncoderFuncs[T]) ToValue(s string) (T, error) { return e.From(s) }

// ValueEncoderSource finds the encoder registered for a Go type. Encoders
// are contributed to the tapestry.ValueEncoderSource mapped configuration,
// keyed by reflect.Type:
//
//	ioc.ContributeMapped[reflect.Type, any](m, tapestry.ValueEncoderSourceID,
//	    func(cfg *ioc.MappedConfiguration[reflect.Type, any], _ ioc.ServiceResources) error {
//	        cfg.Add(reflect.TypeFor[TaskID](), taskIDEncoder{})
//	        return nil
//	    })
type ValueEncoderSource interface {
	Encoder(t reflect.Type) (any, bool)
}

type valueEncoderSource map[reflect.Type]any

func newValueEncoderSource(encoders ioc.Map[reflect.Type, any]) ValueEncoderSource {
	return valueEncoderSource(encoders)
}

func (s valueEncoderSource) Encoder(t reflect.Type) (any, bool) {
	e, ok := s[t]
	return e, ok
}

// EncoderFor returns the encoder src holds for T.
func EncoderFor[T any](src ValueEncoderSource) (ValueEncoder[T], bool) {
	if src == nil {
		return nil, false
	}
	v, ok := src.Encoder(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	enc, ok := v.(ValueEncoder[T])
	return enc, ok
}

// builtinEncoders are contributed by the framework module.
func builtinEncoders() map[reflect.Type]any {
	return map[reflect.Type]any{
		reflect.TypeFor[string](): ValueEncoderFuncs[string]{
			To:   func(v string) string { return v },
			From: func(s string) (string, error) { return s, nil },
		},
		reflect.TypeFor[int](): ValueEncoderFuncs[int]{
			To:   strconv.Itoa,
			From: strconv.Atoi,
		},
		reflect.TypeFor[int64](): ValueEncoderFuncs[int64]{
			To:   func(v int64) string { return strconv.FormatInt(v, 10) },
			From: func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		},
		reflect.TypeFor[bool](): ValueEncoderFuncs[bool]{
			To:   strconv.FormatBool,
			From: strconv.ParseBool,
		},
	}
}
