package emotion

import "github.com/jwebster45206/npc-mind/pkg/memory"

// Tracker holds the current emotion and the emotional memory of one NPC.
type Tracker struct {
	current  Emotion
	memories *memory.Store[Emotion]
}

// NewTracker returns a tracker starting at Neutral with no memories.
func NewTracker() *Tracker {
	return &Tracker{
		current:  Neutral,
		memories: memory.New[Emotion](),
	}
}

// SetEmotion replaces the current emotion. Any emotion may follow any other.
func (t *Tracker) SetEmotion(e Emotion) {
	t.current = e
}

func (t *Tracker) Emotion() Emotion {
	return t.current
}

// RecordMemory associates trigger with e, replacing any earlier association.
func (t *Tracker) RecordMemory(trigger string, e Emotion) {
	t.memories.Record(trigger, e)
}

func (t *Tracker) Memory(trigger string) (Emotion, bool) {
	return t.memories.Recall(trigger)
}

// Memories returns a copy of every trigger and its emotion
func (t *Tracker) Memories() map[string]Emotion {
	return t.memories.Entries()
}

// MemoryKeys returns the remembered triggers in sorted order.
func (t *Tracker) MemoryKeys() []string {
	return t.memories.Keys()
}

func (t *Tracker) MemoryCount() int {
	return t.memories.Len()
}

// ChooseAction returns the action driven by the current emotion alone.
// Knowledge and memories are not consulted.
func (t *Tracker) ChooseAction() string {
	return Action(t.current)
}

// Restore replaces the tracker state, e.g. when rebuilding an agent from a snapshot.
func (t *Tracker) Restore(current Emotion, memories map[string]Emotion) {
	t.current = current
	t.memories.Load(memories)
}
