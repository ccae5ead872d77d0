package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCompareStandardIgnoresTrailingWhitespace(t *testing.T) {
	dir := t.TempDir()
	out := writeTemp(t, dir, "out.txt", "1 2 3  \n4 5 6\n\n")
	ans := writeTemp(t, dir, "ans.txt", "1 2 3\n4 5 6")

	verdict, _, err := Compare(context.Background(), nil, out, ans, ProblemStandard, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictAccepted {
		t.Fatalf("got %s, want Accepted", verdict)
	}
}

func TestCompareStandardRejectsDifferentLineCount(t *testing.T) {
	dir := t.TempDir()
	out := writeTemp(t, dir, "out.txt", "1\n2\n")
	ans := writeTemp(t, dir, "ans.txt", "1\n")

	verdict, _, err := Compare(context.Background(), nil, out, ans, ProblemStandard, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictWrongAnswer {
		t.Fatalf("got %s, want Wrong Answer", verdict)
	}
}

func TestCompareStrictRejectsTrailingWhitespaceDifference(t *testing.T) {
	dir := t.TempDir()
	out := writeTemp(t, dir, "out.txt", "hello\n")
	ans := writeTemp(t, dir, "ans.txt", "hello")

	verdict, _, err := Compare(context.Background(), nil, out, ans, ProblemStrict, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictWrongAnswer {
		t.Fatalf("got %s, want Wrong Answer", verdict)
	}
}

func TestCompareStandardMissingOutputIsRuntimeError(t *testing.T) {
	dir := t.TempDir()
	ans := writeTemp(t, dir, "ans.txt", "1\n")

	verdict, _, err := Compare(context.Background(), nil, filepath.Join(dir, "missing.txt"), ans, ProblemStandard, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictRuntimeError {
		t.Fatalf("got %s, want Runtime Error", verdict)
	}
}

type fakeChecker struct {
	outcome Outcome
	stdout  string
	stderr  string
	err     error
}

func (f *fakeChecker) Run(ctx context.Context, argv []string, deadline int64) (Outcome, string, string, error) {
	return f.outcome, f.stdout, f.stderr, f.err
}

func TestCompareSPJAcceptsWellFormedVerdict(t *testing.T) {
	checker := &fakeChecker{
		outcome: Outcome{Status: StatusExited, ExitCode: 0},
		stdout:  "Accepted\nexact match\n",
	}
	verdict, info, err := Compare(context.Background(), checker, "out", "ans", ProblemSPJ, []string{"/bin/checker", "%OUTPUT%", "%ANSWER%"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictAccepted || info != "exact match" {
		t.Fatalf("got verdict=%s info=%q", verdict, info)
	}
}

func TestCompareSPJMalformedOutputIsSPJError(t *testing.T) {
	checker := &fakeChecker{
		outcome: Outcome{Status: StatusExited, ExitCode: 0},
		stdout:  "not a verdict at all",
		stderr:  "checker crashed",
	}
	verdict, info, err := Compare(context.Background(), checker, "out", "ans", ProblemSPJ, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictSPJError || info != "checker crashed" {
		t.Fatalf("got verdict=%s info=%q", verdict, info)
	}
}

func TestCompareSPJUnknownVerdictUsesSecondLine(t *testing.T) {
	checker := &fakeChecker{
		outcome: Outcome{Status: StatusExited, ExitCode: 0},
		stdout:  "Confused\nthe answer key itself looks wrong\n",
		stderr:  "checker crashed",
	}
	verdict, info, err := Compare(context.Background(), checker, "out", "ans", ProblemSPJ, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictSPJError || info != "the answer key itself looks wrong" {
		t.Fatalf("got verdict=%s info=%q, want the second output line, not stderr", verdict, info)
	}
}

func TestCompareSPJNonZeroExitIsSPJError(t *testing.T) {
	checker := &fakeChecker{
		outcome: Outcome{Status: StatusExited, ExitCode: 1},
		stderr:  "assertion failed",
	}
	verdict, _, err := Compare(context.Background(), checker, "out", "ans", ProblemSPJ, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictSPJError {
		t.Fatalf("got %s, want SPJ Error", verdict)
	}
}
