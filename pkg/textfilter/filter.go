// Package textfilter softens profanity in generated NPC lines for
// family-friendly content ratings.
package textfilter

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/npc-mind/pkg/chat"
)

const censored = "[censored]"

// replacements maps each filtered word to a milder alternative.
var replacements = map[string]string{
	"fuck":         "fudge",
	"shit":         "shoot",
	"damn":         "dang",
	"hell":         "heck",
	"ass":          "butt",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"piss":         "ticked",
	"cock":         censored,
	"dick":         "jerk",
	"pussy":        censored,
	"tits":         censored,
	"boobs":        censored,
	"whore":        censored,
	"slut":         censored,
	"fag":          censored,
	"retard":       censored,
	"nigger":       censored,
	"nigga":        censored,
	"spic":         censored,
	"chink":        censored,
	"kike":         censored,
	"motherfucker": "mother-trucker",
	"goddamn":      "gosh-dang",
	"jesus christ": "jeez",
	"christ":       "crikey",
	"asshole":      "jerk",
	"dumbass":      "dummy",
	"jackass":      "jerk",
	"smartass":     "smarty",
	"badass":       "tough",
	"bullshit":     "baloney",
	"horseshit":    "nonsense",
	"dipshit":      "dummy",
	"shithead":     "jerk",
	"dickhead":     "jerk",
	"prick":        "jerk",
	"douche":       "jerk",
	"douchebag":    "jerk",
}

// Filter replaces profanity with milder words. It is safe for concurrent use.
type Filter struct {
	pattern *regexp.Regexp
}

// New compiles the word list into a single case-insensitive pattern.
// Plural forms ending in "s" or "es" are matched too.
func New() *Filter {
	words := make([]string, 0, len(replacements))
	for w := range replacements {
		words = append(words, w)
	}
	// longest first so "jesus christ" wins over "christ"
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}

	return &Filter{
		pattern: regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)(es|s)?\b`),
	}
}

// Apply returns text with every filtered word replaced, keeping the case
// pattern of the original.
func (f *Filter) Apply(text string) string {
	return f.pattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := f.pattern.FindStringSubmatch(match)
		word, suffix := sub[1], sub[2]

		replacement := replacements[strings.ToLower(word)]
		out := preserveCase(word, replacement)
		if suffix == "" || replacement == censored {
			return out
		}
		return out + pluralSuffix(out, suffix)
	})
}

// Contains reports whether text has any filtered word.
func (f *Filter) Contains(text string) bool {
	return f.pattern.MatchString(text)
}

// ApplyLines filters every field of a dialogue turn.
func (f *Filter) ApplyLines(l chat.DialogueLines) chat.DialogueLines {
	return chat.DialogueLines{
		NPCResponse:       f.Apply(l.NPCResponse),
		OtherResponse:     f.Apply(l.OtherResponse),
		NPCFeelings:       f.Apply(l.NPCFeelings),
		OtherFeelings:     f.Apply(l.OtherFeelings),
		ActionDescription: f.Apply(l.ActionDescription),
	}
}

// RequiresFiltering reports whether a content rating calls for filtering.
func RequiresFiltering(rating string) bool {
	switch strings.ToUpper(strings.TrimSpace(rating)) {
	case "G", "PG", "PG13", "PG-13":
		return true
	default:
		return false
	}
}

func pluralSuffix(word, original string) string {
	s := "s"
	lower := strings.ToLower(word)
	if strings.HasSuffix(lower, "s") || strings.HasSuffix(lower, "x") ||
		strings.HasSuffix(lower, "ch") || strings.HasSuffix(lower, "sh") {
		s = "es"
	}
	if strings.ToUpper(original) == original && strings.ToUpper(word) == word {
		return strings.ToUpper(s)
	}
	return s
}

func preserveCase(original, replacement string) string {
	if original == "" {
		return replacement
	}
	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}
	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	title := cases.Title(language.English)
	if title.String(strings.ToLower(original)) == original {
		return title.String(replacement)
	}

	orig := []rune(original)
	out := []rune(replacement)
	for i := range out {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out[i] = unicode.ToUpper(out[i])
		} else {
			out[i] = unicode.ToLower(out[i])
		}
	}
	return string(out)
}
