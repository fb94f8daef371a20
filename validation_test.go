package tapestry

import (
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/pthm/tapestry/lib/ioc"
)

func TestFieldValidatorSource(t *testing.T) {
	reg := testRegistry(t)
	src, err := ioc.GetService[FieldValidatorSource](reg, FieldValidatorSourceID)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		value string
		spec  string
		want  []string
	}{
		{"", "", nil},
		{"anything", "  ", nil},
		{"", "required", []string{"You must provide a value for Title."}},
		{"ab", "required,min=3", []string{"Title must be at least 3 characters."}},
		{"abcdef", "max=5", []string{"Title may be at most 5 characters."}},
		{"nope", "email", []string{"Title must be a valid email address."}},
		{"b", "oneof=a c", []string{"Title must be one of: a c."}},
		{"x@example.com", "required,email", nil},
		{"my-post-1", "slug", nil},
		{"My Post", "slug", []string{"Title may only contain lowercase letters, digits and dashes."}},
		{"12a", "numeric", []string{"Title must be a number."}},
		{"abc", "ascii,len=4", []string{"Title must be exactly 4 characters."}},
		{"abc", "uppercase", []string{"Title is invalid."}},
	}
	for _, tt := range tests {
		t.Run(tt.spec+"/"+tt.value, func(t *testing.T) {
			got, err := src.Validate("Title", tt.value, tt.spec)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("messages (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFieldValidatorSourceInvalidSpec(t *testing.T) {
	reg := testRegistry(t)
	src, err := ioc.GetService[FieldValidatorSource](reg, FieldValidatorSourceID)
	if err != nil {
		t.Fatal(err)
	}
	_, err = src.Validate("Title", "x", "no_such_tag")
	if err == nil || !strings.Contains(err.Error(), "no_such_tag") {
		t.Errorf("err = %v, want an invalid spec error", err)
	}
}

func TestFieldValidatorSourceContributions(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.ContributeMapped[string, Validation](m, FieldValidatorSourceID,
		func(c *ioc.MappedConfiguration[string, Validation], _ ioc.ServiceResources) error {
			c.Add("even", Validation{
				Func:    func(fl validator.FieldLevel) bool { return len(fl.Field().String())%2 == 0 },
				Message: "{label} needs an even length.",
			})
			c.Add("broken", Validation{})
			return nil
		})
	reg := testRegistry(t, m)

	src, err := ioc.GetService[FieldValidatorSource](reg, FieldValidatorSourceID)
	if err != nil {
		t.Fatal(err)
	}
	got, err := src.Validate("Code", "abc", "even")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Code needs an even length."}, got); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
	if _, err := src.Validate("Code", "abc", "broken"); err == nil {
		t.Error("validation without a function was registered")
	}
}

func TestNewFieldValidatorSourceRejectsBadTag(t *testing.T) {
	_, err := newFieldValidatorSource(ioc.Map[string, Validation]{
		"": {Func: func(validator.FieldLevel) bool { return true }},
	}, zaptest.NewLogger(t))
	if err == nil {
		t.Error("empty tag accepted")
	}
}

type taskID struct{ n int }

func TestValueEncoderSource(t *testing.T) {
	m := ioc.NewModule("app")
	ioc.ContributeMapped[reflect.Type, any](m, ValueEncoderSourceID,
		func(c *ioc.MappedConfiguration[reflect.Type, any], _ ioc.ServiceResources) error {
			c.Add(reflect.TypeFor[taskID](), ValueEncoderFuncs[taskID]{
				To:   func(v taskID) string { return "task-" + string(rune('0'+v.n)) },
				From: func(s string) (taskID, error) { return taskID{int(s[len(s)-1] - '0')}, nil },
			})
			return nil
		})
	reg := testRegistry(t, m)
	src, err := ioc.GetService[ValueEncoderSource](reg, ValueEncoderSourceID)
	if err != nil {
		t.Fatal(err)
	}

	ints, ok := EncoderFor[int](src)
	if !ok {
		t.Fatal("no int encoder")
	}
	if s := ints.ToClient(42); s != "42" {
		t.Errorf("ToClient(42) = %q", s)
	}
	if _, err := ints.ToValue("x"); err == nil {
		t.Error("ToValue(x) accepted a non-number")
	}

	bools, ok := EncoderFor[bool](src)
	if v, err := bools.ToValue("true"); !ok || err != nil || !v {
		t.Errorf("bool encoder: %v %v %v", ok, v, err)
	}

	tasks, ok := EncoderFor[taskID](src)
	if !ok {
		t.Fatal("contributed encoder not found")
	}
	if v, err := tasks.ToValue(tasks.ToClient(taskID{7})); err != nil || v.n != 7 {
		t.Errorf("round trip = %v, %v", v, err)
	}

	if _, ok := EncoderFor[float64](src); ok {
		t.Error("unexpected float64 encoder")
	}
	if _, ok := EncoderFor[int](nil); ok {
		t.Error("nil source returned an encoder")
	}
}

func TestLoopExplicitEncoderWins(t *testing.T) {
	reg := testRegistry(t)
	enc := ValueEncoderFuncs[int]{
		To:   func(v int) string { return "n" + string(rune('0'+v)) },
		From: func(s string) (int, error) { return int(s[1] - '0'), nil },
	}
	loop := &Loop[int]{Id: "l", Encoder: enc, Source: func() []int { return []int{3} }}
	form := &Form{Id: "f", Body: []Component{loop}}
	c := renderCycle(t, reg)
	actions := decodeRendered(t, c, "f", renderForm(t, c, form))

	var restored []string
	for _, sa := range actions {
		if sa.Action.Kind == ActionLoopRestore {
			restored = append(restored, sa.Action.Value)
		}
	}
	if diff := cmp.Diff([]string{"n3"}, restored); diff != "" {
		t.Errorf("restore values (-want +got):\n%s", diff)
	}
}
