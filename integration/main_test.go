//go:build integration
// +build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/npc-mind/integration/runner"
)

const casesDir = "cases"

var caseFlag = flag.String("case", "", "Comma-separated case names to run (from integration/cases/)")
var errFlag = flag.String("err", "continue", "Error handling mode: 'continue' (run all steps) or 'exit' (stop on first failure)")
var runsFlag = flag.Int("runs", 1, "Number of times to run each case (dialogue is non-deterministic)")

func TestMain(m *testing.M) {
	fmt.Printf("Running npc-mind integration tests against %s\n", apiBaseURL())
	os.Exit(m.Run())
}

// TestIntegrationSuites runs every case file under cases/ once.
func TestIntegrationSuites(t *testing.T) {
	files, err := discoverTestFiles(casesDir)
	if err != nil {
		t.Fatalf("Failed to discover test files: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("No test files found in cases directory")
	}

	jobs := loadJobs(t, files)
	r := newRunner(runner.ErrorHandlingContinue)

	var tally report
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	for i, job := range jobs {
		t.Logf("[%d/%d] %s (%d steps)", i+1, len(jobs), job.Name, len(job.Suite.Steps))
		tally.add(1, runJob(ctx, t, r, job))
	}

	t.Log(tally.summary())
	if tally.failed > 0 {
		t.Fatalf("%d of %d suites failed", tally.failed, tally.total())
	}
}

// TestSingleSuite runs the cases named by -case, -runs times each.
// Multi-run always uses continue mode so every run produces complete data.
func TestSingleSuite(t *testing.T) {
	flag.Parse()
	if *caseFlag == "" {
		t.Skip("Skipping single suite test (use -case flag to run)")
	}
	if *errFlag != string(runner.ErrorHandlingExit) && *errFlag != string(runner.ErrorHandlingContinue) {
		t.Fatalf("Invalid -err flag value: %s (must be 'exit' or 'continue')", *errFlag)
	}
	if *runsFlag < 1 {
		t.Fatalf("Number of runs must be >= 1, got: %d", *runsFlag)
	}

	var files []string
	for _, name := range strings.Split(*caseFlag, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			name += ".json"
		}
		files = append(files, filepath.Join(casesDir, name))
	}
	if len(files) == 0 {
		t.Fatalf("No valid test cases found in -case flag: %s", *caseFlag)
	}

	mode := runner.ErrorHandlingMode(*errFlag)
	if *runsFlag > 1 {
		mode = runner.ErrorHandlingContinue
	}
	r := newRunner(mode)
	jobs := loadJobs(t, files)

	var tally report
	for run := 1; run <= *runsFlag; run++ {
		if *runsFlag > 1 {
			t.Logf("=== RUN %d/%d ===", run, *runsFlag)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		for _, job := range jobs {
			result := runJob(ctx, t, r, job)
			tally.add(run, result)
			if result.Error != nil && mode == runner.ErrorHandlingExit {
				cancel()
				t.Fatalf("Suite %s failed: %v", job.Name, result.Error)
			}
		}
		cancel()
	}

	t.Log(tally.summary())
	if len(tally.failures) > 0 {
		t.Log(tally.failureReport())
	}
	if tally.failed > 0 {
		t.Fatalf("%d of %d suite runs failed", tally.failed, tally.total())
	}
}

func apiBaseURL() string {
	if url := os.Getenv("API_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func newRunner(mode runner.ErrorHandlingMode) *runner.Runner {
	r := runner.NewRunner(apiBaseURL())
	r.Timeout = time.Duration(getIntEnv("TEST_TIMEOUT_SECONDS", 30)) * time.Second
	r.ErrorHandlingMode = mode
	r.Logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}
	return r
}

func loadJobs(t *testing.T, files []string) []runner.TestJob {
	t.Helper()
	var jobs []runner.TestJob
	for _, file := range files {
		expanded, err := runner.LoadTestSuiteWithExpansion(file, casesDir)
		if err != nil {
			t.Errorf("Failed to load test suite %s: %v", file, err)
			continue
		}
		jobs = append(jobs, expanded...)
	}
	if len(jobs) == 0 {
		t.Fatal("No valid test suites loaded")
	}
	return jobs
}

func runJob(ctx context.Context, t *testing.T, r *runner.Runner, job runner.TestJob) runner.TestRunResult {
	result, err := r.RunSuite(ctx, job.Suite)
	if err != nil && result.Error == nil {
		result.Error = err
	}
	result.Job = job

	for _, step := range result.Results {
		switch {
		case step.IsReset:
			t.Logf("   ↻ %s (%v)", step.StepName, step.Duration)
		case step.Success:
			t.Logf("   ✓ %s (%v)", step.StepName, step.Duration)
		default:
			t.Errorf("   ✗ %s: %v", step.StepName, step.Error)
		}
	}
	if result.Error != nil {
		t.Errorf("FAILED %s (npc %s): %v", job.Name, result.NPC, result.Error)
	} else {
		t.Logf("PASSED %s in %v", job.Name, result.Duration)
	}
	return result
}

type stepFailure struct {
	suite string
	step  string
	err   string
	run   int
}

// report accumulates pass/fail counts across suites and runs.
type report struct {
	passed, failed int
	perSuite       map[string][2]int // name -> {passes, failures}
	order          []string
	failures       []stepFailure
}

func (rep *report) total() int { return rep.passed + rep.failed }

func (rep *report) add(run int, result runner.TestRunResult) {
	if rep.perSuite == nil {
		rep.perSuite = make(map[string][2]int)
	}
	name := result.Job.Name
	counts, seen := rep.perSuite[name]
	if !seen {
		rep.order = append(rep.order, name)
	}
	if result.Error != nil {
		rep.failed++
		counts[1]++
	} else {
		rep.passed++
		counts[0]++
	}
	rep.perSuite[name] = counts

	for _, step := range result.Results {
		if step.Error != nil {
			rep.failures = append(rep.failures, stepFailure{name, step.StepName, step.Error.Error(), run})
		}
	}
}

func (rep *report) summary() string {
	var sb strings.Builder
	total := rep.total()
	if total == 0 {
		return "No suites ran"
	}
	fmt.Fprintf(&sb, "\nSummary: %d passed, %d failed (%.1f%% pass rate)\n",
		rep.passed, rep.failed, float64(rep.passed)/float64(total)*100)
	for _, name := range rep.order {
		c := rep.perSuite[name]
		fmt.Fprintf(&sb, "  %s: %d/%d\n", name, c[0], c[0]+c[1])
		if c[0] > 0 && c[1] > 0 {
			sb.WriteString("    FLAKY: passed and failed across runs\n")
		}
	}
	return sb.String()
}

func (rep *report) failureReport() string {
	bySuite := make(map[string][]stepFailure)
	for _, f := range rep.failures {
		bySuite[f.suite] = append(bySuite[f.suite], f)
	}
	names := make([]string, 0, len(bySuite))
	for name := range bySuite {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("\nStep failures:\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "%s:\n", name)
		for _, f := range bySuite[name] {
			fmt.Fprintf(&sb, "  ✗ run %d, %s: %s\n", f.run, f.step, f.err)
		}
	}
	return sb.String()
}

func discoverTestFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func getIntEnv(name string, defaultValue int) int {
	val, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return val
}
