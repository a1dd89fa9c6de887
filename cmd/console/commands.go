package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jwebster45206/npc-mind/pkg/emotion"
	"github.com/jwebster45206/npc-mind/pkg/knowledge"
	"github.com/jwebster45206/npc-mind/pkg/npc"
)

const helpText = `Commands:
• state <label>              set the behavioral state
• act                        choose an action for the current state
• emotion <name>             set the current emotion
• feel                       show the emotion-driven action
• feel <trigger> <emotion>   remember how a trigger made the NPC feel
• remember <key> <value>     store a general memory
• recall <key>               look up a memory or emotional memory
• know <id> [key=value ...]  add an entity to the NPC's knowledge
• relate <src> <type> <tgt>  add a relationship
• about <id>                 show what the NPC knows about an entity
• say <line>                 speak to the NPC (needs a dialogue API key)
• copy                       copy the NPC's last line to the clipboard
• help                       show this help
• Ctrl+C                     quit`

var errUsage = errors.New("usage")

// splitCommand returns the lowercased command word and the rest of the line.
func splitCommand(input string) (string, string) {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	name, rest, _ := strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(rest)
}

// runCommand applies a cognition command to the agent and returns the text
// to show. say, copy and help are handled by the UI.
func runCommand(a *npc.Agent, name, rest string) (string, error) {
	args := strings.Fields(rest)

	switch name {
	case "state":
		if rest == "" {
			return fmt.Sprintf("State: %s", a.Decisions.State()), nil
		}
		a.Decisions.UpdateState(rest)
		return fmt.Sprintf("State is now %s", rest), nil

	case "act":
		return a.Act(), nil

	case "emotion":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: emotion <name>", errUsage)
		}
		e, ok := emotion.Parse(args[0])
		if !ok {
			return "", fmt.Errorf("unknown emotion %q", args[0])
		}
		a.Emotions.SetEmotion(e)
		return fmt.Sprintf("%s feels %s", a.Name, e), nil

	case "feel":
		switch len(args) {
		case 0:
			return fmt.Sprintf("%s → %s", a.Emotions.Emotion(), a.React()), nil
		case 2:
			e, ok := emotion.Parse(args[1])
			if !ok {
				return "", fmt.Errorf("unknown emotion %q", args[1])
			}
			a.Emotions.RecordMemory(args[0], e)
			return fmt.Sprintf("%s will remember that %s made them feel %s", a.Name, args[0], e), nil
		default:
			return "", fmt.Errorf("%w: feel [<trigger> <emotion>]", errUsage)
		}

	case "remember":
		key, value, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%w: remember <key> <value>", errUsage)
		}
		a.Decisions.RecordMemory(key, strings.TrimSpace(value))
		return fmt.Sprintf("Remembered %s", key), nil

	case "recall":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: recall <key>", errUsage)
		}
		var lines []string
		if v, ok := a.Decisions.Memory(args[0]); ok {
			lines = append(lines, fmt.Sprintf("%s: %s", args[0], v))
		}
		if e, ok := a.Emotions.Memory(args[0]); ok {
			lines = append(lines, fmt.Sprintf("%s made them feel %s", args[0], e))
		}
		if len(lines) == 0 {
			return fmt.Sprintf("%s has no memory of %s", a.Name, args[0]), nil
		}
		return strings.Join(lines, "\n"), nil

	case "know":
		if len(args) == 0 {
			return "", fmt.Errorf("%w: know <id> [key=value ...]", errUsage)
		}
		props := make(map[string]string)
		for _, kv := range args[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return "", fmt.Errorf("property %q is not key=value", kv)
			}
			props[k] = v
		}
		a.Knowledge.AddEntity(knowledge.NewEntity(args[0], props))
		return fmt.Sprintf("%s now knows about %s", a.Name, args[0]), nil

	case "relate":
		if len(args) != 3 {
			return "", fmt.Errorf("%w: relate <source> <type> <target>", errUsage)
		}
		a.Knowledge.AddRelationship(knowledge.NewRelationship(args[0], args[2], args[1], nil))
		return fmt.Sprintf("%s %s %s", args[0], args[1], args[2]), nil

	case "about":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: about <id>", errUsage)
		}
		return describeEntity(a, args[0]), nil

	default:
		return "", fmt.Errorf("unknown command %q, try help", name)
	}
}

func describeEntity(a *npc.Agent, id string) string {
	var b strings.Builder
	e, known := a.Knowledge.GetEntity(id)
	rels := a.Knowledge.GetRelationships(id)
	if !known && len(rels) == 0 {
		return fmt.Sprintf("%s knows nothing about %s", a.Name, id)
	}

	b.WriteString(id)
	if known && len(e.Properties) > 0 {
		keys := make([]string, 0, len(e.Properties))
		for k := range e.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s = %s", k, e.Properties[k])
		}
	}
	for _, r := range rels {
		fmt.Fprintf(&b, "\n  %s %s %s", r.Source, r.RelationType, r.Target)
	}
	return b.String()
}
