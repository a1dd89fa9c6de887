package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/npc-mind/pkg/npc"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <npc.json> [npc.json...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &DefinitionValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

type DefinitionValidator struct {
	errors []string
}

func (v *DefinitionValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".json") {
		return fmt.Errorf("NPC file must have .json extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ".json")
	if !isValidID(nameWithoutExt) {
		return fmt.Errorf("NPC filename '%s' must be lowercase snake_case (e.g., old_tom.json, not Old-Tom.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var def npc.Definition
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&def); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	v.errors = nil
	v.validateDefinition(&def)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *DefinitionValidator) validateDefinition(def *npc.Definition) {
	if err := def.Validate(); err != nil {
		for _, e := range unjoin(err) {
			v.addError(e.Error())
		}
	}

	seen := make(map[string]bool)
	for _, a := range def.Actions {
		if seen[a.Name] {
			v.addError(fmt.Sprintf("action '%s' is listed more than once; only the first is ever chosen", a.Name))
		}
		seen[a.Name] = true
		if a.Description == "" {
			v.addError(fmt.Sprintf("action '%s' has no description", a.Name))
		}
	}

	entities := make(map[string]bool)
	for _, e := range def.Entities {
		v.validateIDFormat("entity ID", e.ID)
		if entities[e.ID] {
			v.addError(fmt.Sprintf("entity '%s' is defined more than once", e.ID))
		}
		entities[e.ID] = true
	}

	// relationships may name entities the NPC has no details for; that is
	// legal, but usually a typo in a hand-written file
	for _, r := range def.Relationships {
		v.validateIDFormat("relationship type", r.RelationType)
		for _, id := range []string{r.Source, r.Target} {
			if id != "" && !entities[id] {
				v.addError(fmt.Sprintf("relationship %s -%s-> %s refers to unknown entity '%s'", r.Source, r.RelationType, r.Target, id))
			}
		}
	}

	for key := range def.Memories {
		v.validateIDFormat("memory key", key)
	}
}

func (v *DefinitionValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}
	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *DefinitionValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

// unjoin flattens an errors.Join result.
func unjoin(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}
