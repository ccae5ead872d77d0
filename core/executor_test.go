package core

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

type fakeJobStore struct {
	saves []Job
}

func (f *fakeJobStore) Save(ctx context.Context, job *Job) error {
	f.saves = append(f.saves, *job)
	return nil
}

// catLanguage "compiles" a submission by copying its source verbatim to
// the artifact path and making it executable, so a submission whose
// source is a `cat` script becomes a runnable case program without a
// real compiler toolchain.
var catLanguage = Language{
	Name:     "sh",
	FileName: "main.sh",
	Command:  []string{"/bin/sh", "-c", "cp %INPUT% %OUTPUT% && chmod +x %OUTPUT%"}}

const catSource = "#!/bin/sh\ncat\n"

func writeEchoCase(t *testing.T, dir string, idx int, content string, score float64, timeLimit int64) ProblemCase {
	t.Helper()
	suffix := strconv.Itoa(idx)
	in := filepath.Join(dir, "in"+suffix)
	ans := filepath.Join(dir, "ans"+suffix)
	if err := os.WriteFile(in, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ans, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return ProblemCase{Score: score, InputFile: in, AnswerFile: ans, TimeLimit: timeLimit}
}

func TestExecutorAcceptsMatchingOutput(t *testing.T) {
	dir := t.TempDir()
	c1 := writeEchoCase(t, dir, 1, "line one\n", 25, 2_000_000)
	c2 := writeEchoCase(t, dir, 2, "line two\n", 25, 2_000_000)
	problem := Problem{ID: 1, Type: ProblemStandard, Cases: []ProblemCase{c1, c2}}

	store := &fakeJobStore{}
	exec := NewExecutor(NewSandbox(), store, t.TempDir())

	job := &Job{ID: 1, Cases: NewWaitingCases(2), Submission: Submission{SourceCode: catSource}}
	if err := exec.Run(context.Background(), job, problem, catLanguage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.State != JobFinished {
		t.Fatalf("got state %s, want Finished", job.State)
	}
	if job.Result != VerdictAccepted {
		t.Fatalf("got result %s, want Accepted: cases=%+v", job.Result, job.Cases)
	}
	if job.Score != 50 {
		t.Fatalf("got score %v, want 50", job.Score)
	}
	if len(store.saves) == 0 {
		t.Fatal("expected at least one intermediate save")
	}
}

func TestExecutorCompilationErrorSkipsExecution(t *testing.T) {
	dir := t.TempDir()
	c1 := writeEchoCase(t, dir, 1, "y\n", 100, 2_000_000)
	problem := Problem{ID: 1, Type: ProblemStandard, Cases: []ProblemCase{c1}}

	store := &fakeJobStore{}
	exec := NewExecutor(NewSandbox(), store, t.TempDir())

	job := &Job{ID: 2, Cases: NewWaitingCases(1)}
	language := Language{Name: "fail", FileName: "main", Command: []string{"/bin/sh", "-c", "exit 1"}}

	if err := exec.Run(context.Background(), job, problem, language); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Result != VerdictCompilationError {
		t.Fatalf("got %s, want Compilation Error", job.Result)
	}
	if job.Cases[1].Result != VerdictWaiting {
		t.Fatalf("case 1 should remain untouched after a failed compile, got %s", job.Cases[1].Result)
	}
}

func TestExecutorTimeLimitExceeded(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	ans := filepath.Join(dir, "ans")
	os.WriteFile(in, nil, 0o644)
	os.WriteFile(ans, []byte("irrelevant"), 0o644)
	c1 := ProblemCase{Score: 100, InputFile: in, AnswerFile: ans, TimeLimit: 50_000}
	problem := Problem{ID: 1, Type: ProblemStandard, Cases: []ProblemCase{c1}}

	store := &fakeJobStore{}
	exec := NewExecutor(NewSandbox(), store, t.TempDir())
	job := &Job{ID: 3, Cases: NewWaitingCases(1)}
	language := Language{Name: "sleeper", FileName: "main.sh", Command: []string{
		"/bin/sh", "-c", `printf '#!/bin/sh\nsleep 5\n' > %OUTPUT% && chmod +x %OUTPUT%`,
	}}

	if err := exec.Run(context.Background(), job, problem, language); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Cases[1].Result != VerdictTimeLimitExceeded {
		t.Fatalf("got %s, want Time Limit Exceeded", job.Cases[1].Result)
	}
	if job.Result != VerdictTimeLimitExceeded {
		t.Fatalf("got job result %s, want Time Limit Exceeded", job.Result)
	}
}

func TestApplyPackingSkipMarksRestOfGroup(t *testing.T) {
	cases := NewWaitingCases(3)
	applyPackingSkip([][]int{{1, 2, 3}}, 1, VerdictWrongAnswer, cases)
	if cases[2].Result != VerdictSkipped || cases[3].Result != VerdictSkipped {
		t.Fatalf("expected cases 2,3 skipped, got %+v", cases)
	}
}

func TestApplyPackingSkipNoopOnAccepted(t *testing.T) {
	cases := NewWaitingCases(2)
	applyPackingSkip([][]int{{1, 2}}, 1, VerdictAccepted, cases)
	if cases[2].Result != VerdictWaiting {
		t.Fatalf("accepted case should not skip its group, got %+v", cases)
	}
}

func TestFinalizeDynamicRankingScalesScore(t *testing.T) {
	exec := NewExecutor(NewSandbox(), &fakeJobStore{}, t.TempDir())
	ratio := 0.4
	problem := Problem{
		Type:  ProblemDynamicRanking,
		Misc:  ProblemMisc{DynamicRankingRatio: &ratio},
		Cases: []ProblemCase{{Score: 100}},
	}
	job := &Job{Cases: []CaseResult{{Result: VerdictCompilationSuccess}, {Result: VerdictAccepted}}, Score: 100}
	exec.finalize(job, problem)
	if job.Score != 60 {
		t.Fatalf("got score %v, want 60 (100 * (1-0.4))", job.Score)
	}
	if job.Result != VerdictAccepted {
		t.Fatalf("got result %s, want Accepted", job.Result)
	}
}

func TestFinalizePackingAllOrNothing(t *testing.T) {
	exec := NewExecutor(NewSandbox(), &fakeJobStore{}, t.TempDir())
	problem := Problem{
		Type:  ProblemStandard,
		Misc:  ProblemMisc{Packing: [][]int{{1, 2}}},
		Cases: []ProblemCase{{Score: 50}, {Score: 50}},
	}
	job := &Job{
		Cases: []CaseResult{
			{Result: VerdictCompilationSuccess},
			{Result: VerdictAccepted},
			{Result: VerdictSkipped},
		},
		Score: 50,
	}
	exec.finalize(job, problem)
	if job.Score != 0 {
		t.Fatalf("got score %v, want 0: the last case in the group was skipped so the whole group's score is voided", job.Score)
	}
}
