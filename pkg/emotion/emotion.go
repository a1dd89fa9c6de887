// Package emotion tracks an NPC's current primary emotion and the emotions it
// associates with past triggers.
package emotion

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Emotion is one of nine primary affect labels. The zero value is Neutral.
type Emotion int

const (
	Neutral Emotion = iota
	Joy
	Trust
	Fear
	Surprise
	Sadness
	Disgust
	Anger
	Anticipation
)

var names = map[Emotion]string{
	Neutral:      "Neutral",
	Joy:          "Joy",
	Trust:        "Trust",
	Fear:         "Fear",
	Surprise:     "Surprise",
	Sadness:      "Sadness",
	Disgust:      "Disgust",
	Anger:        "Anger",
	Anticipation: "Anticipation",
}

var byName = func() map[string]Emotion {
	m := make(map[string]Emotion, len(names))
	for e, n := range names {
		m[n] = e
	}
	return m
}()

// All returns every emotion, Joy through Anticipation followed by Neutral.
func All() []Emotion {
	return []Emotion{Joy, Trust, Fear, Surprise, Sadness, Disgust, Anger, Anticipation, Neutral}
}

func (e Emotion) Valid() bool {
	_, ok := names[e]
	return ok
}

func (e Emotion) String() string {
	if n, ok := names[e]; ok {
		return n
	}
	return fmt.Sprintf("Emotion(%d)", int(e))
}

// Parse resolves an emotion name, ignoring case and surrounding whitespace.
func Parse(s string) (Emotion, bool) {
	// Casers carry state, so each call gets its own.
	caser := cases.Title(language.English)
	e, ok := byName[caser.String(strings.ToLower(strings.TrimSpace(s)))]
	return e, ok
}

func (e Emotion) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, fmt.Errorf("invalid emotion: %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *Emotion) UnmarshalText(text []byte) error {
	parsed, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("unknown emotion: %q", string(text))
	}
	*e = parsed
	return nil
}

// Action maps an emotion to the action it drives. Values outside the closed
// set behave as Neutral.
func Action(e Emotion) string {
	switch e {
	case Joy:
		return "Dance"
	case Trust:
		return "Collaborate"
	case Fear:
		return "Hide"
	case Surprise:
		return "Investigate"
	case Sadness:
		return "Cry"
	case Disgust:
		return "Reject"
	case Anger:
		return "Shout"
	case Anticipation:
		return "Prepare"
	case Neutral:
		return "Observe"
	default:
		return "Observe"
	}
}
