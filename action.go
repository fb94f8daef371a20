package tapestry

import (
	"fmt"
	"net/http"

	"github.com/a-h/templ"
)

// ActionKind tags a replay instruction.
type ActionKind uint8

const (
	// ActionHeartbeatBegin and ActionHeartbeatEnd bracket one row or
	// fragment so deferred work replays with the same grouping it rendered
	// with. The replay interpreter executes them itself.
	ActionHeartbeatBegin ActionKind = iota + 1
	ActionHeartbeatEnd

	// ActionLoopPrepare resets a loop before its first row.
	ActionLoopPrepare
	// ActionLoopRestore restores a loop row from the client value in Value.
	ActionLoopRestore
	// ActionLoopAdvance moves a volatile loop to its next source value.
	ActionLoopAdvance

	// ActionFieldSetup restores a field's control name from Name.
	ActionFieldSetup
	// ActionFieldProcess reads, validates and applies a field's input.
	ActionFieldProcess

	// ActionFragmentBegin and ActionFragmentEnd bracket the actions of a
	// FormFragment. The interpreter skips the bracketed actions when the
	// fragment was hidden on the client.
	ActionFragmentBegin
	ActionFragmentEnd

	// ActionSubmitProcess checks whether the submit control in Name
	// triggered the submission.
	ActionSubmitProcess

	// ActionInvoke calls a named action with Args on a component.
	ActionInvoke
)

func (k ActionKind) String() string {
	switch k {
	case ActionHeartbeatBegin:
		return "heartbeat-begin"
	case ActionHeartbeatEnd:
		return "heartbeat-end"
	case ActionLoopPrepare:
		return "loop-prepare"
	case ActionLoopRestore:
		return "loop-restore"
	case ActionLoopAdvance:
		return "loop-advance"
	case ActionFieldSetup:
		return "field-setup"
	case ActionFieldProcess:
		return "field-process"
	case ActionFragmentBegin:
		return "fragment-begin"
	case ActionFragmentEnd:
		return "fragment-end"
	case ActionSubmitProcess:
		return "submit-process"
	case ActionInvoke:
		return "invoke"
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

// Action is one replay instruction. Which fields are meaningful depends on
// Kind.
type Action struct {
	Kind  ActionKind `msgpack:"k"`
	Value string     `msgpack:"v,omitempty"`
	Index int        `msgpack:"i,omitempty"`
	Name  string     `msgpack:"n,omitempty"`
	Args  []string   `msgpack:"a,omitempty"`
}

// StoredAction is an Action addressed to a component. Cancel actions are
// replayed only when the form is canceled; all others only when it is not.
type StoredAction struct {
	ComponentID string `msgpack:"c"`
	Action      Action `msgpack:"a"`
	Cancel      bool   `msgpack:"x,omitempty"`
}

// formData is the payload of one t:formdata field.
type formData struct {
	Form    string         `msgpack:"f"`
	Actions []StoredAction `msgpack:"s"`
}

// ActionSink records actions in render order.
type ActionSink struct {
	actions []StoredAction
}

// Store records a normal action for componentID.
func (s *ActionSink) Store(componentID string, a Action) {
	s.actions = append(s.actions, StoredAction{ComponentID: componentID, Action: a})
}

// StoreCancel records an action replayed only on cancel.
func (s *ActionSink) StoreCancel(componentID string, a Action) {
	s.actions = append(s.actions, StoredAction{ComponentID: componentID, Action: a, Cancel: true})
}

// Actions returns the recorded actions.
func (s *ActionSink) Actions() []StoredAction {
	return s.actions
}

// Len returns the number of recorded actions.
func (s *ActionSink) Len() int {
	return len(s.actions)
}

// Encode produces the t:formdata value for formID.
func (s *ActionSink) Encode(enc ClientDataEncoder, formID string) (string, error) {
	out, err := enc.Encode(formData{Form: formID, Actions: s.actions})
	if err != nil {
		return "", fmt.Errorf("tapestry: encoding form data: %w", err)
	}
	return out, nil
}

// DecodeActions reverses ActionSink.Encode. The payload must have been
// produced for formID.
func DecodeActions(enc ClientDataEncoder, formID, value string) ([]StoredAction, error) {
	var fd formData
	if err := enc.Decode(value, &fd); err != nil {
		return nil, wrapEncodingError(err)
	}
	if fd.Form != formID {
		return nil, fmt.Errorf("%w: payload belongs to form %q", ErrInvalidFormData, fd.Form)
	}
	return fd.Actions, nil
}

// FormAttrs builds the attributes that submit a form to action. Forms
// updating a zone post through HTMX and swap the zone with the response.
func FormAttrs(action, zone string, swap SwapMode) templ.Attributes {
	attrs := templ.Attributes{
		"method": http.MethodPost,
		"action": action,
	}
	if zone == "" {
		return attrs
	}
	if swap == "" {
		swap = SwapOuter
	}
	attrs["hx-post"] = action
	attrs["hx-target"] = "#" + zone
	attrs["hx-swap"] = string(swap)
	return attrs
}
