package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-mind/internal/handlers"
	"github.com/jwebster45206/npc-mind/pkg/npc"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running npc-mind API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration // max wait for a queued dialogue
	PollInterval      time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           DialogueTimeout,
		PollInterval:      PollInterval,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		if err := suite.Seed.Validate(); err != nil {
			return nil, fmt.Errorf("invalid seed_npc in %s: %w", filename, err)
		}
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite against a freshly created NPC.
// The NPC is deleted when the suite finishes.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	snap, err := CreateNPC(ctx, r.Client, r.BaseURL, suite.Seed)
	if err != nil {
		result.Error = fmt.Errorf("failed to seed npc: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	id := snap.ID
	defer func() {
		if err := DeleteNPC(context.WithoutCancel(ctx), r.Client, r.BaseURL, id); err != nil {
			r.Logger("    cleanup failed for %s: %v", id, err)
		}
	}()

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		var stepResult TestResult
		stepResult, id = r.runStep(ctx, id, step, suite.Seed)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.NPC = id
	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep executes a single test step and checks expectations.
// Will retry once on dialogue timeouts without backoff.
// Returns the NPC ID to use for later steps, which changes after a reset.
func (r *Runner) runStep(ctx context.Context, id uuid.UUID, step TestStep, seed npc.Definition) (TestResult, uuid.UUID) {
	var result TestResult
	for attempt := 1; attempt <= 2; attempt++ {
		result, id = r.executeStep(ctx, id, step, seed)
		if result.Success || result.Error == nil {
			return result, id
		}

		isTimeout := strings.Contains(result.Error.Error(), "timeout waiting for dialogue")
		if isTimeout && attempt == 1 {
			r.Logger("    Timeout detected, retrying step: %s", step.Name)
			continue
		}
		return result, id
	}
	return result, id
}

// executeStep performs the actual step execution
func (r *Runner) executeStep(ctx context.Context, id uuid.UUID, step TestStep, seed npc.Definition) (TestResult, uuid.UUID) {
	start := time.Now()
	result := TestResult{StepName: step.Name}
	fail := func(format string, args ...any) (TestResult, uuid.UUID) {
		result.Error = fmt.Errorf(format, args...)
		result.Duration = time.Since(start)
		return result, id
	}

	if step.Reset {
		if err := DeleteNPC(ctx, r.Client, r.BaseURL, id); err != nil {
			return fail("failed to delete npc for reset: %w", err)
		}
		snap, err := CreateNPC(ctx, r.Client, r.BaseURL, seed)
		if err != nil {
			return fail("failed to recreate npc: %w", err)
		}
		id = snap.ID
		result.ResponseText = "[NPC RESET]"
		result.IsReset = !step.hasInputs()
	}

	if err := r.applyInputs(ctx, id, step); err != nil {
		return fail("%w", err)
	}

	if step.Dialogue != nil {
		line, err := r.converse(ctx, id, *step.Dialogue)
		if err != nil {
			return fail("dialogue failed: %w", err)
		}
		result.ResponseText = line
	} else if step.Expectations.hasResponseChecks() {
		return fail("response expectations need a dialogue input")
	}

	if err := r.checkExpectations(ctx, id, step.Expectations, result.ResponseText); err != nil {
		return fail("expectation failed: %w", err)
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result, id
}

func (s TestStep) hasInputs() bool {
	return s.State != nil || s.Emotion != "" || len(s.Memories) > 0 || len(s.EmotionalMemories) > 0 ||
		len(s.Entities) > 0 || len(s.Relationships) > 0 || s.Dialogue != nil
}

// applyInputs sends every non-dialogue input of a step.
func (r *Runner) applyInputs(ctx context.Context, id uuid.UUID, step TestStep) error {
	base := npcURL(r.BaseURL, id)

	if step.State != nil {
		if _, err := doJSON(ctx, r.Client, http.MethodPut, base+"/state", map[string]string{"state": *step.State}, nil, http.StatusOK); err != nil {
			return fmt.Errorf("failed to set state: %w", err)
		}
	}
	if step.Emotion != "" {
		if _, err := doJSON(ctx, r.Client, http.MethodPut, base+"/emotion", map[string]string{"emotion": step.Emotion}, nil, http.StatusOK); err != nil {
			return fmt.Errorf("failed to set emotion: %w", err)
		}
	}
	for _, key := range sortedKeys(step.Memories) {
		body := map[string]string{"value": step.Memories[key]}
		if _, err := doJSON(ctx, r.Client, http.MethodPut, base+"/memory/"+url.PathEscape(key), body, nil, http.StatusOK); err != nil {
			return fmt.Errorf("failed to record memory %s: %w", key, err)
		}
	}
	for _, trigger := range sortedKeys(step.EmotionalMemories) {
		body := map[string]string{"emotion": step.EmotionalMemories[trigger]}
		if _, err := doJSON(ctx, r.Client, http.MethodPut, base+"/emotional-memory/"+url.PathEscape(trigger), body, nil, http.StatusOK); err != nil {
			return fmt.Errorf("failed to record emotional memory %s: %w", trigger, err)
		}
	}
	for _, e := range step.Entities {
		if _, err := doJSON(ctx, r.Client, http.MethodPost, base+"/entities", e, nil, http.StatusOK, http.StatusCreated); err != nil {
			return fmt.Errorf("failed to add entity %s: %w", e.ID, err)
		}
	}
	for _, rel := range step.Relationships {
		if _, err := doJSON(ctx, r.Client, http.MethodPost, base+"/relationships", rel, nil, http.StatusOK, http.StatusCreated); err != nil {
			return fmt.Errorf("failed to add relationship %s->%s: %w", rel.Source, rel.Target, err)
		}
	}
	return nil
}

// converse posts a dialogue request and, when it was queued, waits for the
// worker to save the NPC's line.
func (r *Runner) converse(ctx context.Context, id uuid.UUID, in DialogueInput) (string, error) {
	before, err := GetNPC(ctx, r.Client, r.BaseURL, id)
	if err != nil {
		return "", fmt.Errorf("failed to get npc before dialogue: %w", err)
	}

	line, requestID, queued, err := PostDialogue(ctx, r.Client, r.BaseURL, id, in)
	if err != nil {
		return "", err
	}
	if !queued {
		return line, nil
	}

	r.Logger("    dialogue %s queued, polling", requestID)
	_, line, err = PollForDialogue(ctx, r.Client, r.BaseURL, before, r.PollInterval, r.Timeout)
	return line, err
}

// checkExpectations validates the expectations against the NPC's current state
func (r *Runner) checkExpectations(ctx context.Context, id uuid.UUID, exp Expectations, responseText string) error {
	base := npcURL(r.BaseURL, id)

	if exp.Action != nil || exp.Outcome != nil {
		var action handlers.ActionResponse
		if _, err := doJSON(ctx, r.Client, http.MethodGet, base+"/action", nil, &action, http.StatusOK); err != nil {
			return err
		}
		if exp.Action != nil && action.Result != *exp.Action {
			return fmt.Errorf("expected action %q, got %q", *exp.Action, action.Result)
		}
		if exp.Outcome != nil && string(action.Outcome) != *exp.Outcome {
			return fmt.Errorf("expected outcome %s, got %s", *exp.Outcome, action.Outcome)
		}
	}

	if exp.Emotion != nil || exp.EmotionAction != nil {
		var emo handlers.EmotionResponse
		if _, err := doJSON(ctx, r.Client, http.MethodGet, base+"/emotion/action", nil, &emo, http.StatusOK); err != nil {
			return err
		}
		if exp.Emotion != nil && !strings.EqualFold(emo.Emotion.String(), *exp.Emotion) {
			return fmt.Errorf("expected emotion %s, got %s", *exp.Emotion, emo.Emotion)
		}
		if exp.EmotionAction != nil && emo.Action != *exp.EmotionAction {
			return fmt.Errorf("expected emotion action %q, got %q", *exp.EmotionAction, emo.Action)
		}
	}

	if len(exp.Memories) > 0 || len(exp.EmotionalMemories) > 0 {
		snap, err := GetNPC(ctx, r.Client, r.BaseURL, id)
		if err != nil {
			return err
		}
		for key, want := range exp.Memories {
			got, ok := snap.Memories[key]
			if !ok {
				return fmt.Errorf("expected memory %s to be set, but it doesn't exist", key)
			}
			if got != want {
				return fmt.Errorf("expected memory %s to be %q, got %q", key, want, got)
			}
		}
		for trigger, want := range exp.EmotionalMemories {
			got, ok := snap.EmotionalMemories[trigger]
			if !ok {
				return fmt.Errorf("expected emotional memory %s to be set, but it doesn't exist", trigger)
			}
			if !strings.EqualFold(got.String(), want) {
				return fmt.Errorf("expected emotional memory %s to be %s, got %s", trigger, want, got)
			}
		}
	}

	// Neighbor check (order independent)
	for _, entityID := range sortedKeys(exp.Neighbors) {
		var resp struct {
			Neighbors []string `json:"neighbors"`
		}
		if _, err := doJSON(ctx, r.Client, http.MethodGet, base+"/neighbors/"+url.PathEscape(entityID), nil, &resp, http.StatusOK); err != nil {
			return err
		}
		want := append([]string(nil), exp.Neighbors[entityID]...)
		got := append([]string(nil), resp.Neighbors...)
		sort.Strings(want)
		sort.Strings(got)
		if strings.Join(want, ",") != strings.Join(got, ",") {
			return fmt.Errorf("expected neighbors of %s to be %v, got %v", entityID, want, got)
		}
	}

	return checkResponse(exp, responseText)
}

// checkResponse applies the response text checks.
func checkResponse(exp Expectations, responseText string) error {
	if len(exp.ResponseContains) > 0 {
		lowerResponse := strings.ToLower(responseText)
		for _, expectedText := range exp.ResponseContains {
			if !strings.Contains(lowerResponse, strings.ToLower(expectedText)) {
				return fmt.Errorf("expected response to contain '%s', but it didn't", expectedText)
			}
		}
	}

	if len(exp.ResponseNotContains) > 0 {
		lowerResponse := strings.ToLower(responseText)
		for _, unexpectedText := range exp.ResponseNotContains {
			if strings.Contains(lowerResponse, strings.ToLower(unexpectedText)) {
				return fmt.Errorf("expected response to NOT contain '%s', but it did", unexpectedText)
			}
		}
	}

	if exp.ResponseRegex != "" {
		matched, err := regexp.MatchString(exp.ResponseRegex, responseText)
		if err != nil {
			return fmt.Errorf("invalid regex pattern: %w", err)
		}
		if !matched {
			return fmt.Errorf("response didn't match regex pattern: %s", exp.ResponseRegex)
		}
	}

	if exp.ResponseMinLength != nil && len(responseText) < *exp.ResponseMinLength {
		return fmt.Errorf("expected response length >= %d, got %d", *exp.ResponseMinLength, len(responseText))
	}
	if exp.ResponseMaxLength != nil && len(responseText) > *exp.ResponseMaxLength {
		return fmt.Errorf("expected response length <= %d, got %d", *exp.ResponseMaxLength, len(responseText))
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
