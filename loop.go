package tapestry

import (
	"fmt"

	"github.com/pthm/tapestry/lib/ioc"
)

// Loop renders its body once per value of Source.
//
// Inside a form, each row is recorded in t:formdata so that submission
// visits the same rows in the same order. With a ValueEncoder (set
// explicitly or found in the tapestry.ValueEncoderSource service) the row
// value itself is restored from its client representation. Without one the
// loop is volatile: Source is evaluated again on submission and rows are
// matched by position.
type Loop[T any] struct {
	Id      string
	Source  func() []T
	Encoder ValueEncoder[T]
	Body    []Component

	value   T
	index   int
	encoder ValueEncoder[T]
	replay  []T
	primed  bool
}

// ID implements Component.
func (l *Loop[T]) ID() string { return l.Id }

// Children implements Container.
func (l *Loop[T]) Children() []Component { return l.Body }

// Value returns the value of the current row.
func (l *Loop[T]) Value() T { return l.value }

// Index returns the position of the current row.
func (l *Loop[T]) Index() int { return l.index }

func (l *Loop[T]) resolveEncoder(c *Cycle) ValueEncoder[T] {
	if l.Encoder != nil {
		return l.Encoder
	}
	if l.encoder != nil {
		return l.encoder
	}
	if c.Locator == nil {
		return nil
	}
	src, err := ioc.GetService[ValueEncoderSource](c.Locator, ValueEncoderSourceID)
	if err != nil {
		return nil
	}
	if enc, ok := EncoderFor[T](src); ok {
		l.encoder = enc
	}
	return l.encoder
}

// Render implements Component.
func (l *Loop[T]) Render(c *Cycle) error {
	fs, inForm := c.Env.FormSupport()
	hb, ok := c.Env.Heartbeat()
	if !ok {
		hb = &Heartbeat{}
		defer c.Env.Push(EnvHeartbeat, hb)()
	}
	enc := l.resolveEncoder(c)

	var values []T
	if l.Source != nil {
		values = l.Source()
	}
	if inForm {
		fs.Store(l, Action{Kind: ActionLoopPrepare})
	}
	for i, v := range values {
		l.value, l.index = v, i
		if inForm {
			if enc != nil {
				fs.Store(l, Action{Kind: ActionLoopRestore, Value: enc.ToClient(v), Index: i})
			} else {
				fs.Store(l, Action{Kind: ActionLoopAdvance, Index: i})
			}
			fs.Store(l, Action{Kind: ActionHeartbeatBegin})
		}
		hb.Begin()
		err := c.RenderAll(l.Body)
		hb.End()
		if inForm {
			fs.Store(l, Action{Kind: ActionHeartbeatEnd})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Replay implements Replayer.
func (l *Loop[T]) Replay(c *Cycle, a Action) error {
	switch a.Kind {
	case ActionLoopPrepare:
		l.index = 0
		l.replay, l.primed = nil, false
		return nil

	case ActionLoopRestore:
		enc := l.resolveEncoder(c)
		if enc == nil {
			return fmt.Errorf("no value encoder for %T", l.value)
		}
		v, err := enc.ToValue(a.Value)
		if err != nil {
			return fmt.Errorf("restoring row %d from %q: %w", a.Index, a.Value, err)
		}
		l.value, l.index = v, a.Index
		return nil

	case ActionLoopAdvance:
		if !l.primed {
			if l.Source != nil {
				l.replay = l.Source()
			}
			l.primed = true
		}
		if a.Index < 0 || a.Index >= len(l.replay) {
			return fmt.Errorf("row %d no longer exists (source has %d values)", a.Index, len(l.replay))
		}
		l.value, l.index = l.replay[a.Index], a.Index
		return nil
	}
	return fmt.Errorf("unsupported action %s", a.Kind)
}
