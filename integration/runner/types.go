package runner

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/pkg/knowledge"
	"github.com/jwebster45206/npc-mind/pkg/npc"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string         `json:"name"`
	Seed  npc.Definition `json:"seed_npc,omitempty"` // Used for regular tests
	Steps []TestStep     `json:"steps,omitempty"`    // Used for regular tests
	Cases []string       `json:"cases,omitempty"`    // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single interaction and its expected outcomes.
// Inputs are applied in field order: reset, state, emotion, memories,
// emotional memories, entities, relationships, then dialogue.
type TestStep struct {
	Name              string                   `json:"name,omitempty"`
	Reset             bool                     `json:"reset,omitempty"` // delete the NPC and recreate it from the seed
	State             *string                  `json:"state,omitempty"`
	Emotion           string                   `json:"emotion,omitempty"`
	Memories          map[string]string        `json:"memories,omitempty"`
	EmotionalMemories map[string]string        `json:"emotional_memories,omitempty"`
	Entities          []knowledge.Entity       `json:"entities,omitempty"`
	Relationships     []knowledge.Relationship `json:"relationships,omitempty"`
	Dialogue          *DialogueInput           `json:"dialogue,omitempty"`
	Expectations      Expectations             `json:"expect"`
}

// DialogueInput is the body posted to the dialogue endpoint.
type DialogueInput struct {
	Instruction string `json:"instruction,omitempty"`
	PlayerLine  string `json:"player_line,omitempty"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Decision engine
	Action  *string `json:"action,omitempty"`  // result text from GET /action
	Outcome *string `json:"outcome,omitempty"` // selected, no_action, not_found

	// Emotion engine
	Emotion       *string `json:"emotion,omitempty"`
	EmotionAction *string `json:"emotion_action,omitempty"`

	// Snapshot contents
	Memories          map[string]string   `json:"memories,omitempty"`
	EmotionalMemories map[string]string   `json:"emotional_memories,omitempty"`
	Neighbors         map[string][]string `json:"neighbors,omitempty"` // entity -> neighbor IDs (order independent)

	// Response Analysis (applies to the NPC line of a dialogue step)
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
	ResponseMaxLength   *int     `json:"response_max_length,omitempty"`
}

func (e Expectations) hasResponseChecks() bool {
	return len(e.ResponseContains) > 0 || len(e.ResponseNotContains) > 0 ||
		e.ResponseRegex != "" || e.ResponseMinLength != nil || e.ResponseMaxLength != nil
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
	IsReset      bool // True for a reset-only step (should not count toward pass/fail metrics)
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	NPC      uuid.UUID // ID of the NPC in use when the suite finished
}
