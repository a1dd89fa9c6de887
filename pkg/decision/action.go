package decision

// Action is something an NPC could attempt
type Action struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// findAction returns the first action in catalog named name.
func findAction(catalog []Action, name string) (Action, bool) {
	for _, a := range catalog {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}
