package npc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/emotion"
	"github.com/jwebster45206/npc-mind/pkg/knowledge"
	"github.com/jwebster45206/npc-mind/pkg/personality"
)

// Definition seeds a new agent. It is the body of a create request and the
// format of NPC definition files.
type Definition struct {
	Name              string                   `json:"name"`
	Personality       *personality.Traits      `json:"personality,omitempty"` // nil means defaults
	Actions           []decision.Action        `json:"actions"`
	InitialState      string                   `json:"initial_state,omitempty"`
	InitialEmotion    string                   `json:"initial_emotion,omitempty"`
	Memories          map[string]string        `json:"memories,omitempty"`
	EmotionalMemories map[string]string        `json:"emotional_memories,omitempty"` // trigger -> emotion name
	Entities          []knowledge.Entity       `json:"entities,omitempty"`
	Relationships     []knowledge.Relationship `json:"relationships,omitempty"`
}

// LoadDefinition reads a definition from a JSON file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition %s: %w", path, err)
	}
	return &def, nil
}

// Validate reports every problem found in the definition.
// Relationship endpoints are not checked against the entity list.
func (d *Definition) Validate() error {
	var errs []error

	if d.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	for i, a := range d.Actions {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("actions[%d]: name is required", i))
		}
	}
	if d.InitialEmotion != "" {
		if _, ok := emotion.Parse(d.InitialEmotion); !ok {
			errs = append(errs, fmt.Errorf("initial_emotion: unknown emotion %q", d.InitialEmotion))
		}
	}
	for trigger, name := range d.EmotionalMemories {
		if _, ok := emotion.Parse(name); !ok {
			errs = append(errs, fmt.Errorf("emotional_memories[%q]: unknown emotion %q", trigger, name))
		}
	}
	if p := d.Personality; p != nil {
		traits := map[string]float64{
			"openness":          p.Openness,
			"conscientiousness": p.Conscientiousness,
			"extraversion":      p.Extraversion,
			"agreeableness":     p.Agreeableness,
			"neuroticism":       p.Neuroticism,
		}
		for name, v := range traits {
			if v < 0 || v > 1 {
				errs = append(errs, fmt.Errorf("personality.%s: %v is outside [0, 1]", name, v))
			}
		}
	}
	for i, e := range d.Entities {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("entities[%d]: id is required", i))
		}
	}
	for i, r := range d.Relationships {
		if r.Source == "" || r.Target == "" {
			errs = append(errs, fmt.Errorf("relationships[%d]: source and target are required", i))
		}
		if r.RelationType == "" {
			errs = append(errs, fmt.Errorf("relationships[%d]: relation_type is required", i))
		}
	}

	return errors.Join(errs...)
}

// Build validates the definition and creates the agent it describes.
func (d *Definition) Build() (*Agent, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	a := New(d.Name, d.Actions)
	if d.Personality != nil {
		a.Personality = personality.FromTraits(*d.Personality)
	}
	if d.InitialState != "" {
		a.Decisions.UpdateState(d.InitialState)
	}
	if d.InitialEmotion != "" {
		e, _ := emotion.Parse(d.InitialEmotion)
		a.Emotions.SetEmotion(e)
	}
	for k, v := range d.Memories {
		a.Decisions.RecordMemory(k, v)
	}
	for trigger, name := range d.EmotionalMemories {
		e, _ := emotion.Parse(name)
		a.Emotions.RecordMemory(trigger, e)
	}
	for _, e := range d.Entities {
		a.Knowledge.AddEntity(e)
	}
	for _, r := range d.Relationships {
		a.Knowledge.AddRelationship(r)
	}

	return a, nil
}
