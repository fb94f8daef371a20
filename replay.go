package tapestry

import "fmt"

// replayer executes stored actions against the live components of a form.
type replayer struct {
	cycle      *Cycle
	components map[string]Component
	heartbeat  *Heartbeat
}

func newReplayer(c *Cycle, body []Component, hb *Heartbeat) *replayer {
	index := make(map[string]Component)
	for _, root := range body {
		_ = walk(root, func(comp Component) error {
			if id := comp.ID(); id != "" {
				if _, dup := index[id]; !dup {
					index[id] = comp
				}
			}
			return nil
		})
	}
	return &replayer{cycle: c, components: index, heartbeat: hb}
}

// run executes, in order, the actions whose cancel flag matches cancel.
// The first failure stops the replay.
func (r *replayer) run(actions []StoredAction, cancel bool) error {
	skip := 0
	for _, sa := range actions {
		if sa.Cancel != cancel {
			continue
		}
		a := sa.Action

		if skip > 0 {
			switch a.Kind {
			case ActionFragmentBegin:
				skip++
			case ActionFragmentEnd:
				skip--
			}
			continue
		}

		switch a.Kind {
		case ActionHeartbeatBegin:
			r.heartbeat.Begin()

		case ActionHeartbeatEnd:
			r.heartbeat.End()

		case ActionFragmentBegin:
			comp, err := r.find(sa)
			if err != nil {
				return err
			}
			gate, ok := comp.(FragmentGate)
			if !ok {
				return &ReplayError{ComponentID: sa.ComponentID, Kind: a.Kind,
					Err: fmt.Errorf("%T does not gate fragments", comp)}
			}
			if !gate.Submitted(r.cycle, a) {
				skip = 1
			}

		case ActionFragmentEnd:

		default:
			comp, err := r.find(sa)
			if err != nil {
				return err
			}
			rp, ok := comp.(Replayer)
			if !ok {
				return &ReplayError{ComponentID: sa.ComponentID, Kind: a.Kind,
					Err: fmt.Errorf("%T does not replay actions", comp)}
			}
			if err := rp.Replay(r.cycle, a); err != nil {
				return &ReplayError{ComponentID: sa.ComponentID, Kind: a.Kind, Err: err}
			}
		}
	}
	return nil
}

func (r *replayer) find(sa StoredAction) (Component, error) {
	comp, ok := r.components[sa.ComponentID]
	if !ok {
		return nil, &ReplayError{ComponentID: sa.ComponentID, Kind: sa.Action.Kind, Err: ErrComponentNotFound}
	}
	return comp, nil
}
