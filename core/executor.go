package core

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// JobStore is the persistence seam C3 writes progress through. Each call
// persists the job as it stands; C3 calls it after every state
// transition (spec §4.3/§5).
type JobStore interface {
	Save(ctx context.Context, job *Job) error
}

// Executor drives one submission through compile -> per-case execute ->
// per-case judge -> aggregate (C3, spec §4.3).
type Executor struct {
	sandbox   *Sandbox
	checker   Checker
	store     JobStore
	baseDir   string
}

func NewExecutor(sandbox *Sandbox, store JobStore, baseDir string) *Executor {
	return &Executor{
		sandbox: sandbox,
		checker: NewSandboxChecker(sandbox),
		store:   store,
		baseDir: baseDir,
	}
}

// Run executes job against problem/language, mutating job in place and
// persisting progress via the store after every transition. Uncaught
// internal failures are absorbed into result=System Error and Run
// returns nil: the HTTP caller already has the initial job record
// (spec §4.3 Failure semantics, §7).
func (e *Executor) Run(ctx context.Context, job *Job, problem Problem, language Language) error {
	workDir := filepath.Join(e.baseDir, fmt.Sprintf("temp%d", job.ID))
	defer os.RemoveAll(workDir)

	if err := e.run(ctx, job, problem, language, workDir); err != nil {
		log.Printf("job %d: internal failure: %v", job.ID, err)
		e.failSystem(ctx, job)
	}
	return nil
}

func (e *Executor) run(ctx context.Context, job *Job, problem Problem, language Language, workDir string) error {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return err
	}

	sourcePath := filepath.Join(workDir, language.FileName)
	if err := os.WriteFile(sourcePath, []byte(job.Submission.SourceCode), 0o644); err != nil {
		return err
	}
	artifactPath := filepath.Join(workDir, "test")

	compileArgv := substituteArgv(language.Command, sourcePath, artifactPath)

	job.State = JobRunning
	job.Cases[0].Result = VerdictRunning
	if err := e.store.Save(ctx, job); err != nil {
		return err
	}

	outcome, err := e.sandbox.Run(ctx, compileArgv, "", "", 0)
	if err != nil {
		return err
	}
	if outcome.Status != StatusExited || outcome.ExitCode != 0 {
		job.Cases[0].Result = VerdictCompilationError
		job.Result = VerdictCompilationError
		job.State = JobFinished
		return e.store.Save(ctx, job)
	}
	job.Cases[0].Result = VerdictCompilationSuccess
	if err := e.store.Save(ctx, job); err != nil {
		return err
	}

	if err := e.execute(ctx, job, problem, artifactPath, workDir); err != nil {
		return err
	}

	e.finalize(job, problem)
	job.State = JobFinished
	return e.store.Save(ctx, job)
}

// execute runs the per-case loop: steps 1-7 of spec §4.3 Execution phase.
// No separate running result is kept: finalize's ordered walk over
// job.Cases takes the first verdict found in failingCaseVerdicts, so a
// non-accepted verdict outside that set (for example one a special
// judge reports) does not become the job's result. Packing-skipped
// cases never count.
func (e *Executor) execute(ctx context.Context, job *Job, problem Problem, artifactPath, workDir string) error {
	for i, pc := range problem.Cases {
		j := i + 1
		cell := &job.Cases[j]

		if cell.Result == VerdictSkipped {
			continue
		}

		stdoutPath := filepath.Join(workDir, fmt.Sprintf("%d.out", j))
		outcome, err := e.sandbox.Run(ctx, []string{artifactPath}, pc.InputFile, stdoutPath, pc.TimeLimit)
		if err != nil {
			return err
		}

		switch outcome.Status {
		case StatusTimedOut:
			cell.Result = VerdictTimeLimitExceeded
			cell.Time = pc.TimeLimit
		case StatusLaunchFailure:
			cell.Result = VerdictRuntimeError
			cell.Time = 0
		case StatusExited:
			cell.Time = outcome.Elapsed.Microseconds()
			if outcome.ExitCode != 0 {
				cell.Result = VerdictRuntimeError
			} else {
				verdict, info, cmpErr := Compare(ctx, e.checker, stdoutPath, pc.AnswerFile, problem.Type, problem.Misc.SpecialJudge)
				if cmpErr != nil {
					return cmpErr
				}
				cell.Result = verdict
				cell.Info = info
			}
		}

		if cell.Result == VerdictAccepted {
			job.Score += pc.Score
		}

		applyPackingSkip(problem.Misc.Packing, j, cell.Result, job.Cases)

		job.UpdatedTime = time.Now()
		if err := e.store.Save(ctx, job); err != nil {
			return err
		}
	}

	return nil
}

// applyPackingSkip marks the remainder of j's packing group Skipped when
// j itself did not pass (spec §4.3 step 5).
func applyPackingSkip(packing [][]int, j int, result Verdict, cases []CaseResult) {
	if result == VerdictAccepted {
		return
	}
	for _, group := range packing {
		col := indexOf(group, j)
		if col < 0 {
			continue
		}
		for _, k := range group[col+1:] {
			if k >= 0 && k < len(cases) {
				cases[k].Result = VerdictSkipped
			}
		}
		return
	}
}

func indexOf(group []int, v int) int {
	for i, x := range group {
		if x == v {
			return i
		}
	}
	return -1
}

// finalize applies packing rescale, dynamic-ranking rescale, and
// computes the aggregate verdict (spec §4.3 Finalization).
func (e *Executor) finalize(job *Job, problem Problem) {
	for _, group := range problem.Misc.Packing {
		if len(group) == 0 {
			continue
		}
		last := group[len(group)-1]
		if last < 0 || last >= len(job.Cases) || job.Cases[last].Result != VerdictSkipped {
			continue
		}
		for _, j := range group {
			if j < 1 || j > len(problem.Cases) {
				continue
			}
			if job.Cases[j].Result == VerdictAccepted {
				job.Score -= problem.Cases[j-1].Score
			}
		}
	}

	if problem.Type == ProblemDynamicRanking && problem.Misc.DynamicRankingRatio != nil {
		job.Score *= 1 - *problem.Misc.DynamicRankingRatio
	}

	job.Result = VerdictAccepted
	for _, c := range job.Cases {
		if failingCaseVerdicts[c.Result] {
			job.Result = c.Result
			break
		}
	}
}

func (e *Executor) failSystem(ctx context.Context, job *Job) {
	job.Result = VerdictSystemError
	for i := range job.Cases {
		if job.Cases[i].Result == VerdictWaiting || job.Cases[i].Result == VerdictRunning {
			job.Cases[i].Result = VerdictSkipped
		}
	}
	job.State = JobFinished
	if err := e.store.Save(ctx, job); err != nil {
		log.Printf("job %d: failed to persist system error: %v", job.ID, err)
	}
}

// substituteArgv replaces the %INPUT%/%OUTPUT% placeholder tokens in a
// command template (spec §4.3 Working directory).
func substituteArgv(template []string, input, output string) []string {
	argv := make([]string, len(template))
	for i, tok := range template {
		tok = strings.ReplaceAll(tok, "%INPUT%", input)
		tok = strings.ReplaceAll(tok, "%OUTPUT%", output)
		argv[i] = tok
	}
	return argv
}
