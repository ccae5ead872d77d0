package core

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"strings"
)

// Checker invokes a user-supplied SPJ program. Separated from Compare so
// the sandbox runner (C2) backs it without import cycles.
type Checker interface {
	Run(ctx context.Context, argv []string, deadline int64) (Outcome, string, string, error)
}

// Compare implements C1: compare a produced output file against a
// reference answer under one of the four problem-type policies.
//
// outputPath may be unopenable (e.g. the judged program never ran to a
// clean exit); callers are expected to have already classified that as
// Runtime Error before reaching here. Compare itself still treats an
// unopenable output file as Runtime Error defensively.
func Compare(ctx context.Context, checker Checker, outputPath, answerPath string, problemType ProblemType, specialJudge []string) (Verdict, string, error) {
	switch problemType {
	case ProblemStrict:
		return compareStrict(outputPath, answerPath)
	case ProblemSPJ:
		return compareSPJ(ctx, checker, outputPath, answerPath, specialJudge)
	default: // standard, dynamic_ranking
		return compareStandard(outputPath, answerPath)
	}
}

func compareStrict(outputPath, answerPath string) (Verdict, string, error) {
	out, err := os.ReadFile(outputPath)
	if err != nil {
		return VerdictRuntimeError, "", nil
	}
	ans, err := os.ReadFile(answerPath)
	if err != nil {
		return VerdictWrongAnswer, "", err
	}
	if bytes.Equal(out, ans) {
		return VerdictAccepted, "", nil
	}
	return VerdictWrongAnswer, "", nil
}

func compareStandard(outputPath, answerPath string) (Verdict, string, error) {
	out, err := os.ReadFile(outputPath)
	if err != nil {
		return VerdictRuntimeError, "", nil
	}
	ans, err := os.ReadFile(answerPath)
	if err != nil {
		return VerdictWrongAnswer, "", err
	}
	outLines := splitTrimmedLines(out)
	ansLines := splitTrimmedLines(ans)
	if len(outLines) != len(ansLines) {
		return VerdictWrongAnswer, "", nil
	}
	for i := range outLines {
		if outLines[i] != ansLines[i] {
			return VerdictWrongAnswer, "", nil
		}
	}
	return VerdictAccepted, "", nil
}

// splitTrimmedLines trims trailing whitespace from the whole buffer, then
// splits on \n, and trims trailing whitespace from each line. This makes
// standard-mode comparison invariant under trailing whitespace on a line
// and trailing newlines at end of file, per spec §8.
func splitTrimmedLines(b []byte) []string {
	s := strings.TrimRight(string(b), " \t\r\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return lines
}

func compareSPJ(ctx context.Context, checker Checker, outputPath, answerPath string, argvTemplate []string) (Verdict, string, error) {
	argv := make([]string, len(argvTemplate))
	for i, tok := range argvTemplate {
		tok = strings.ReplaceAll(tok, "%OUTPUT%", outputPath)
		tok = strings.ReplaceAll(tok, "%ANSWER%", answerPath)
		argv[i] = tok
	}

	outcome, stdout, stderr, err := checker.Run(ctx, argv, 0)
	if err != nil || outcome.Status != StatusExited || outcome.ExitCode != 0 {
		info := strings.TrimSpace(stderr)
		return VerdictSPJError, info, nil
	}

	verdict, info, hasSecondLine, known := parseCheckerOutput(stdout)
	if !known {
		// An unrecognized verdict token still carries a second line of
		// checker-supplied info; only fall back to stderr when the
		// checker didn't even produce that much.
		if !hasSecondLine {
			info = strings.TrimSpace(stderr)
		}
		return VerdictSPJError, info, nil
	}
	return verdict, info, nil
}

// parseCheckerOutput reads the checker's two newline-separated tokens:
// line 1 is a verdict literal, line 2 is the info string to record.
// hasSecondLine reports whether a second line was present at all,
// independent of whether line 1 held a recognized verdict.
func parseCheckerOutput(stdout string) (verdict Verdict, info string, hasSecondLine bool, known bool) {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) >= 2 {
			break
		}
	}
	if len(lines) < 2 {
		return "", "", false, false
	}
	v := Verdict(strings.TrimSpace(lines[0]))
	return v, lines[1], true, knownVerdict(v)
}

func knownVerdict(v Verdict) bool {
	switch v {
	case VerdictWaiting, VerdictRunning, VerdictAccepted, VerdictCompilationError,
		VerdictCompilationSuccess, VerdictWrongAnswer, VerdictRuntimeError,
		VerdictTimeLimitExceeded, VerdictMemoryLimitExceeded, VerdictSystemError,
		VerdictSPJError, VerdictSkipped:
		return true
	default:
		return false
	}
}
