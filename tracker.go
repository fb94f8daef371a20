package tapestry

// ValidationTracker collects the input and errors of one form submission.
// Errors are not Go errors: they are messages shown next to fields when
// the form is rendered again.
type ValidationTracker struct {
	inputs     map[string]string
	fieldErrs  map[string]string
	order      []string
	formErrors []string
}

// NewValidationTracker creates an empty tracker.
func NewValidationTracker() *ValidationTracker {
	return &ValidationTracker{
		inputs:    make(map[string]string),
		fieldErrs: make(map[string]string),
	}
}

// RecordInput remembers the raw value submitted for a control, so the
// re-rendered form shows what the user typed rather than the bound value.
func (t *ValidationTracker) RecordInput(control, value string) {
	t.inputs[control] = value
}

// Input returns the raw value recorded for control.
func (t *ValidationTracker) Input(control string) (string, bool) {
	v, ok := t.inputs[control]
	return v, ok
}

// RecordError records msg against control. Only the first error of a
// control is kept. An empty control records a form-level error.
func (t *ValidationTracker) RecordError(control, msg string) {
	if control == "" {
		t.formErrors = append(t.formErrors, msg)
		return
	}
	if _, ok := t.fieldErrs[control]; ok {
		return
	}
	t.fieldErrs[control] = msg
	t.order = append(t.order, control)
}

// Error returns the error recorded for control.
func (t *ValidationTracker) Error(control string) (string, bool) {
	msg, ok := t.fieldErrs[control]
	return msg, ok
}

// InError reports whether control has an error.
func (t *ValidationTracker) InError(control string) bool {
	_, ok := t.fieldErrs[control]
	return ok
}

// HasErrors reports whether any error was recorded.
func (t *ValidationTracker) HasErrors() bool {
	return len(t.formErrors) > 0 || len(t.fieldErrs) > 0
}

// Errors returns form-level errors followed by field errors in the order
// they were recorded.
func (t *ValidationTracker) Errors() []string {
	out := make([]string, 0, len(t.formErrors)+len(t.order))
	out = append(out, t.formErrors...)
	for _, c := range t.order {
		out = append(out, t.fieldErrs[c])
	}
	return out
}

// Clear forgets all inputs and errors.
func (t *ValidationTracker) Clear() {
	clear(t.inputs)
	clear(t.fieldErrs)
	t.order = nil
	t.formErrors = nil
}
