package ioc

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
)

// OneShotLock guards a one-way transition. Check fails once Lock has been
// called; Lock fails when called a second time.
type OneShotLock struct {
	mu       sync.Mutex
	locked   bool
	lockedBy string
}

// Check returns ErrRegistryLocked if the lock has been taken.
func (l *OneShotLock) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return fmt.Errorf("%w (by %s)", ErrRegistryLocked, l.lockedBy)
	}
	return nil
}

// Lock takes the lock on behalf of op.
func (l *OneShotLock) Lock(op string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return fmt.Errorf("%w (by %s)", ErrRegistryLocked, l.lockedBy)
	}
	l.locked = true
	l.lockedBy = op
	return nil
}

// reentrantMutex serializes service construction across the registry. The
// goroutine holding it may re-acquire it, which happens whenever a builder
// looks up and invokes another service.
type reentrantMutex struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	depth int
}

func newReentrantMutex() *reentrantMutex {
	m := &reentrantMutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *reentrantMutex) Lock() {
	id := goroutineID()
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.depth > 0 && m.owner != id {
		m.cond.Wait()
	}
	m.owner = id
	m.depth++
}

func (m *reentrantMutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depth--
	if m.depth == 0 {
		m.owner = 0
		m.cond.Signal()
	}
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine's id from its stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("ioc: cannot parse goroutine id: %v", err))
	}
	return id
}
