package tapestry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pthm/tapestry/lib/ioc"
)

// FieldValidatorSource validates submitted field values against validation
// specs such as "required,min=3,max=40". Spec tags are those of
// github.com/go-playground/validator plus any contributed Validation.
type FieldValidatorSource interface {
	// Validate returns the messages for every failed check of value, using
	// label to name the field. An error means the spec itself is invalid.
	Validate(label, value, spec string) ([]string, error)
}

// Validation is a custom validation tag contributed to the
// tapestry.FieldValidatorSource mapped configuration. Message may refer to
// {label} and {param}.
type Validation struct {
	Func    validator.Func
	Message string
}

var defaultMessages = map[string]string{
	"required": "You must provide a value for {label}.",
	"min":      "{label} must be at least {param} characters.",
	"max":      "{label} may be at most {param} characters.",
	"len":      "{label} must be exactly {param} characters.",
	"email":    "{label} must be a valid email address.",
	"url":      "{label} must be a valid URL.",
	"oneof":    "{label} must be one of: {param}.",
	"numeric":  "{label} must be a number.",
	"alphanum": "{label} may only contain letters and digits.",
}

type fieldValidatorSource struct {
	validate *validator.Validate
	messages map[string]string
}

func newFieldValidatorSource(custom ioc.Map[string, Validation], logger *zap.Logger) (FieldValidatorSource, error) {
	s := &fieldValidatorSource{
		validate: validator.New(),
		messages: make(map[string]string, len(defaultMessages)+len(custom)),
	}
	for tag, msg := range defaultMessages {
		s.messages[tag] = msg
	}
	for tag, v := range custom {
		if v.Func == nil {
			logger.Warn("validation has no function; skipped", zap.String("tag", tag))
			continue
		}
		if err := s.validate.RegisterValidation(tag, v.Func); err != nil {
			return nil, fmt.Errorf("registering validation %q: %w", tag, err)
		}
		if v.Message != "" {
			s.messages[tag] = v.Message
		}
	}
	return s, nil
}

func (s *fieldValidatorSource) Validate(label, value, spec string) (msgs []string, err error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	// validator panics on unknown tags.
	defer func() {
		if r := recover(); r != nil {
			msgs, err = nil, fmt.Errorf("tapestry: invalid validation spec %q: %v", spec, r)
		}
	}()

	verr := s.validate.Var(value, spec)
	if verr == nil {
		return nil, nil
	}
	var fails validator.ValidationErrors
	if !errors.As(verr, &fails) {
		return nil, fmt.Errorf("tapestry: validating %s: %w", label, verr)
	}
	for _, fe := range fails {
		msgs = append(msgs, s.message(label, fe.Tag(), fe.Param()))
	}
	return msgs, nil
}

func (s *fieldValidatorSource) message(label, tag, param string) string {
	tmpl, ok := s.messages[tag]
	if !ok {
		tmpl = "{label} is invalid."
	}
	return strings.NewReplacer("{label}", label, "{param}", param).Replace(tmpl)
}
