package tapestry

import "fmt"

// EnvKind names one kind of value held by an Environment.
type EnvKind int

const (
	EnvFormSupport EnvKind = iota + 1
	EnvHeartbeat
	EnvValidationTracker
)

func (k EnvKind) String() string {
	switch k {
	case EnvFormSupport:
		return "FormSupport"
	case EnvHeartbeat:
		return "Heartbeat"
	case EnvValidationTracker:
		return "ValidationTracker"
	}
	return fmt.Sprintf("EnvKind(%d)", int(k))
}

// Environment is the per-request stack of values that enclosing components
// publish to the components they contain. A Form pushes its FormSupport;
// a TextField rendered anywhere inside it peeks at it.
//
// Every Push returns a restore func that must run when the pushing
// component finishes, including on error paths:
//
//	defer env.Push(EnvFormSupport, fs)()
type Environment struct {
	stacks map[EnvKind][]any
}

// NewEnvironment creates an empty environment.
func NewEnvironment() *Environment {
	return &Environment{stacks: make(map[EnvKind][]any)}
}

// Push makes v the current value of kind. The returned func restores the
// stack to the depth it had before the push, discarding anything an inner
// component left behind.
func (e *Environment) Push(kind EnvKind, v any) (restore func()) {
	depth := len(e.stacks[kind])
	e.stacks[kind] = append(e.stacks[kind], v)
	return func() {
		s := e.stacks[kind]
		if len(s) > depth {
			clear(s[depth:])
			e.stacks[kind] = s[:depth]
		}
	}
}

// Peek returns the current value of kind.
func (e *Environment) Peek(kind EnvKind) (any, bool) {
	s := e.stacks[kind]
	if len(s) == 0 {
		return nil, false
	}
	return s[len(s)-1], true
}

// PeekRequired is Peek for values a component cannot work without.
func (e *Environment) PeekRequired(kind EnvKind) (any, error) {
	v, ok := e.Peek(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEnvironment, kind)
	}
	return v, nil
}

// Depth returns the number of values of kind on the stack.
func (e *Environment) Depth(kind EnvKind) int {
	return len(e.stacks[kind])
}

// FormSupport returns the enclosing form's support, if any.
func (e *Environment) FormSupport() (FormSupport, bool) {
	v, ok := e.Peek(EnvFormSupport)
	if !ok {
		return nil, false
	}
	fs, ok := v.(FormSupport)
	return fs, ok
}

// Heartbeat returns the current heartbeat, if any.
func (e *Environment) Heartbeat() (*Heartbeat, bool) {
	v, ok := e.Peek(EnvHeartbeat)
	if !ok {
		return nil, false
	}
	hb, ok := v.(*Heartbeat)
	return hb, ok
}

// Tracker returns the enclosing form's validation tracker, if any.
func (e *Environment) Tracker() (*ValidationTracker, bool) {
	v, ok := e.Peek(EnvValidationTracker)
	if !ok {
		return nil, false
	}
	t, ok := v.(*ValidationTracker)
	return t, ok
}
