package tapestry

import (
	"strconv"
	"strings"
)

// FormSupport is published by a Form to the components inside it.
type FormSupport interface {
	// FormID returns the id of the enclosing Form component.
	FormID() string

	// ClientID returns the client-side id of the form element.
	ClientID() string

	// Store records an action to replay on submission. Outside a render it
	// does nothing.
	Store(c Component, a Action)

	// StoreCancel records an action replayed only when the form is
	// canceled.
	StoreCancel(c Component, a Action)

	// AllocateControlName returns a request parameter name unique within
	// the form, based on id.
	AllocateControlName(id string) string

	// Defer queues fn until every field of the form has been processed.
	Defer(fn func())
}

type formSupport struct {
	formID   string
	clientID string
	sink     *ActionSink
	names    *idAllocator
	deferred []func()
}

var _ FormSupport = (*formSupport)(nil)

func newFormSupport(formID, clientID string, sink *ActionSink) *formSupport {
	return &formSupport{
		formID:   formID,
		clientID: clientID,
		sink:     sink,
		names:    newIDAllocator("t:formdata", "t:submit", "cancel", "cancel.x"),
	}
}

func (fs *formSupport) FormID() string   { return fs.formID }
func (fs *formSupport) ClientID() string { return fs.clientID }

func (fs *formSupport) Store(c Component, a Action) {
	if fs.sink != nil {
		fs.sink.Store(c.ID(), a)
	}
}

func (fs *formSupport) StoreCancel(c Component, a Action) {
	if fs.sink != nil {
		fs.sink.StoreCancel(c.ID(), a)
	}
}

func (fs *formSupport) AllocateControlName(id string) string {
	return fs.names.Allocate(id)
}

func (fs *formSupport) Defer(fn func()) {
	fs.deferred = append(fs.deferred, fn)
}

// executeDeferred runs deferred work, including work queued while it runs.
func (fs *formSupport) executeDeferred() {
	for i := 0; i < len(fs.deferred); i++ {
		fs.deferred[i]()
	}
	fs.deferred = nil
}

// idAllocator hands out unique names: the first request for "name" gets
// "name", later ones "name_0", "name_1" and so on.
type idAllocator struct {
	used map[string]int
}

func newIDAllocator(reserved ...string) *idAllocator {
	a := &idAllocator{used: make(map[string]int)}
	for _, r := range reserved {
		a.used[strings.ToLower(r)] = 0
	}
	return a
}

// Allocate returns the next free name for id.
func (a *idAllocator) Allocate(id string) string {
	if id == "" {
		id = "control"
	}
	key := strings.ToLower(id)
	next, taken := a.used[key]
	if !taken {
		a.used[key] = 0
		return id
	}
	for {
		candidate := id + "_" + strconv.Itoa(next)
		next++
		if _, clash := a.used[strings.ToLower(candidate)]; !clash {
			a.used[key] = next
			a.used[strings.ToLower(candidate)] = 0
			return candidate
		}
	}
}
