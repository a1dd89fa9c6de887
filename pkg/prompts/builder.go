package prompts

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jwebster45206/npc-mind/pkg/chat"
	"github.com/jwebster45206/npc-mind/pkg/decision"
	"github.com/jwebster45206/npc-mind/pkg/emotion"
	"github.com/jwebster45206/npc-mind/pkg/npc"
)

const defaultEntityLimit = 25

// Builder constructs the dialogue request for an NPC using a fluent interface.
// It reads the agent but never modifies it.
type Builder struct {
	agent       *npc.Agent
	instruction string
	playerLine  string
	rating      string
	entityLimit int
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		instruction: DefaultInstruction,
		entityLimit: defaultEntityLimit,
	}
}

// WithAgent sets the NPC whose turn is being written.
func (b *Builder) WithAgent(a *npc.Agent) *Builder {
	b.agent = a
	return b
}

// WithInstruction replaces the default task. Empty keeps the default.
func (b *Builder) WithInstruction(instruction string) *Builder {
	if instruction != "" {
		b.instruction = instruction
	}
	return b
}

// WithPlayerLine adds what the player just said to the NPC.
func (b *Builder) WithPlayerLine(line string) *Builder {
	b.playerLine = line
	return b
}

// WithContentRating sets the audience rating, e.g. "PG-13".
func (b *Builder) WithContentRating(rating string) *Builder {
	b.rating = rating
	return b
}

// WithEntityLimit caps how many known entities are described.
func (b *Builder) WithEntityLimit(limit int) *Builder {
	b.entityLimit = limit
	return b
}

// Build returns the system prompt followed by the NPC context and task.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.agent == nil {
		return nil, fmt.Errorf("agent is required")
	}

	system := SystemPrompt
	if b.rating != "" {
		system += fmt.Sprintf(ContentRatingPrompt, b.rating)
	}

	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: system},
		{Role: chat.ChatRoleUser, Content: b.context()},
	}, nil
}

func (b *Builder) context() string {
	a := b.agent
	var sb strings.Builder

	fmt.Fprintf(&sb, "### NPC\n%s\n\n", a.Name)

	t := a.Personality.Traits()
	fmt.Fprintf(&sb, "### Personality (0.0 to 1.0)\nopenness=%.2f conscientiousness=%.2f extraversion=%.2f agreeableness=%.2f neuroticism=%.2f\n\n",
		t.Openness, t.Conscientiousness, t.Extraversion, t.Agreeableness, t.Neuroticism)

	current := a.Emotions.Emotion()
	fmt.Fprintf(&sb, "### Emotion\n%s (urge: %s)\n\n", current, emotion.Action(current))

	d := a.Decisions.Decide()
	fmt.Fprintf(&sb, "### Situation\nstate: %s\n", d.State)
	switch d.Outcome {
	case decision.OutcomeSelected:
		fmt.Fprintf(&sb, "chosen action: %s (%s)\n\n", d.Action.Name, d.Action.Description)
	case decision.OutcomeNotFound:
		fmt.Fprintf(&sb, "chosen action: none, wanted to %s but cannot\n\n", d.Desired)
	default:
		sb.WriteString("chosen action: none\n\n")
	}

	b.writeKnowledge(&sb)
	writeMemories(&sb, a)

	if b.playerLine != "" {
		fmt.Fprintf(&sb, "### The player says\n%s\n\n", b.playerLine)
	}

	fmt.Fprintf(&sb, "### Task\n%s", b.instruction)
	return sb.String()
}

func (b *Builder) writeKnowledge(sb *strings.Builder) {
	g := b.agent.Knowledge
	if g.EntityCount() == 0 && g.RelationshipCount() == 0 {
		return
	}

	sb.WriteString("### What the NPC knows\n")
	entities := g.Entities()
	if b.entityLimit > 0 && len(entities) > b.entityLimit {
		entities = entities[:b.entityLimit]
	}
	for _, e := range entities {
		sb.WriteString("- " + e.ID)
		if len(e.Properties) > 0 {
			pairs := make([]string, 0, len(e.Properties))
			for _, k := range slices.Sorted(maps.Keys(e.Properties)) {
				pairs = append(pairs, k+"="+e.Properties[k])
			}
			sb.WriteString(": " + strings.Join(pairs, ", "))
		}
		sb.WriteString("\n")
	}
	for _, r := range g.Relationships() {
		fmt.Fprintf(sb, "- %s %s %s\n", r.Source, r.RelationType, r.Target)
	}
	sb.WriteString("\n")
}

func writeMemories(sb *strings.Builder, a *npc.Agent) {
	if a.Decisions.MemoryCount() == 0 && a.Emotions.MemoryCount() == 0 {
		return
	}

	sb.WriteString("### Memories\n")
	for _, k := range a.Decisions.MemoryKeys() {
		v, _ := a.Decisions.Memory(k)
		fmt.Fprintf(sb, "- %s: %s\n", k, v)
	}
	for _, k := range a.Emotions.MemoryKeys() {
		e, _ := a.Emotions.Memory(k)
		fmt.Fprintf(sb, "- %s made them feel %s\n", k, e)
	}
	sb.WriteString("\n")
}
