// Package decision selects an NPC's next action from its behavioral state and
// a per-agent action catalog.
//
// Selection happens in two stages. The state names a desired action, then the
// catalog is scanned for the first action with that name. The catalog is
// supplied by the caller, so two agents in the same state can resolve to
// different actions, or to none.
package decision

import "github.com/jwebster45206/npc-mind/pkg/memory"

const (
	NoActionAvailable = "No action available"
	ActionNotFound    = "Action not found"
	selectedPrefix    = "Action selected: "
)

// Outcome classifies the result of a decision
type Outcome string

const (
	OutcomeSelected Outcome = "selected"
	OutcomeNoAction Outcome = "no_action"
	OutcomeNotFound Outcome = "not_found"
)

// Decision is the structured result of running both selection stages.
type Decision struct {
	State   State   `json:"state"`
	Desired string  `json:"desired,omitempty"`
	Action  *Action `json:"action,omitempty"`
	Outcome Outcome `json:"outcome"`
}

// String renders the decision the way ChooseAction reports it.
func (d Decision) String() string {
	switch d.Outcome {
	case OutcomeSelected:
		return selectedPrefix + d.Action.Description
	case OutcomeNotFound:
		return ActionNotFound
	default:
		return NoActionAvailable
	}
}

// Engine owns an NPC's behavioral state, action catalog and general memory.
// It is owned by one agent and is not safe for concurrent use.
type Engine struct {
	state   State
	actions []Action
	memory  *memory.Store[string]
}

// NewEngine creates an engine in the Idle state. The catalog is copied; duplicate
// names are allowed and the first one wins on lookup.
func NewEngine(actions []Action) *Engine {
	catalog := make([]Action, len(actions))
	copy(catalog, actions)

	return &Engine{
		state:   StateIdle,
		actions: catalog,
		memory:  memory.New[string](),
	}
}

// UpdateState sets the current state. Labels without a mapped action are accepted.
func (e *Engine) UpdateState(label string) {
	e.state = State(label)
}

func (e *Engine) State() State {
	return e.state
}

// Decide runs state selection followed by the catalog lookup.
func (e *Engine) Decide() Decision {
	d := Decision{State: e.state}

	desired, ok := DesiredAction(e.state)
	if !ok {
		d.Outcome = OutcomeNoAction
		return d
	}
	d.Desired = desired

	action, found := findAction(e.actions, desired)
	if !found {
		d.Outcome = OutcomeNotFound
		return d
	}
	d.Action = &action
	d.Outcome = OutcomeSelected
	return d
}

// ChooseAction returns "Action selected: <description>" or one of the
// NoActionAvailable / ActionNotFound sentinels.
func (e *Engine) ChooseAction() string {
	return e.Decide().String()
}

// Catalog returns a copy of the action catalog
func (e *Engine) Catalog() []Action {
	out := make([]Action, len(e.actions))
	copy(out, e.actions)
	return out
}

func (e *Engine) RecordMemory(key, value string) {
	e.memory.Record(key, value)
}

func (e *Engine) Memory(key string) (string, bool) {
	return e.memory.Recall(key)
}

func (e *Engine) Memories() map[string]string {
	return e.memory.Entries()
}

// MemoryKeys returns the general-memory keys in sorted order.
func (e *Engine) MemoryKeys() []string {
	return e.memory.Keys()
}

func (e *Engine) MemoryCount() int {
	return e.memory.Len()
}

// Restore replaces state and general memory, e.g. when rebuilding from a snapshot.
func (e *Engine) Restore(state State, memories map[string]string) {
	e.state = state
	e.memory.Load(memories)
}
