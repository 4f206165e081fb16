/**
 * Copyright (c) 2026, channeler Contributors.
 * See LICENSE.TXT in the root directory of this source tree.
 */

package fsm

// FSM is the common contract for every state machine in this package.
// Process inspects ev and, if it applies, returns handled=true along
// with any Actions and OutEvents it produced.
type FSM interface {
	Process(ev Event) (handled bool, actions []Action, outEvents []OutEvent)
}

// Registry fans one Event out to every registered FSM, in the order they
// were registered. It exists so that a connection doesn't need to know
// which specific FSMs care about which events.
type Registry struct {
	fsms []FSM
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds f to the registry. There is no corresponding removal: the
// set of FSMs is expected to stay fixed for the lifetime of a connection.
func (r *Registry) Register(f FSM) {
	r.fsms = append(r.fsms, f)
}

// Dispatch runs ev through every registered FSM and reports whether at
// least one of them handled it.
func (r *Registry) Dispatch(ev Event) (actions []Action, outEvents []OutEvent, handled bool) {
	for _, f := range r.fsms {
		ok, a, o := f.Process(ev)
		if ok {
			handled = true
			actions = append(actions, a...)
			outEvents = append(outEvents, o...)
		}
	}
	return actions, outEvents, handled
}
