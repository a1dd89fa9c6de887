package decision

// State is the NPC's situational label. Any string is a legal state; only the
// constants below map to a desired action.
type State string

const (
	StateIdle    State = "Idle"
	StateAlert   State = "Alert"
	StateEngaged State = "Engaged"
	StateFleeing State = "Fleeing"
)

// KnownStates lists the states that map to a desired action
func KnownStates() []State {
	return []State{StateIdle, StateAlert, StateEngaged, StateFleeing}
}

// DesiredAction returns the name of the action a state calls for.
// ok is false for labels outside the known states.
func DesiredAction(s State) (name string, ok bool) {
	switch s {
	case StateIdle:
		return "Rest", true
	case StateAlert:
		return "Investigate", true
	case StateEngaged:
		return "Talk", true
	case StateFleeing:
		return "Run", true
	default:
		return "", false
	}
}
