// Package grader combines sandboxed execution with an LLM judgment call
// to decide whether a submitted solution passes its challenge.
package grader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pycoach/server/internal/llm"
	"github.com/pycoach/server/internal/sandbox"
)

var (
	// ErrExecutionUnavailable means the sandbox backend could not run the
	// code at all. Distinct from the code failing: that is a Verdict.
	ErrExecutionUnavailable = errors.New("execution backend unavailable")

	// ErrJudgmentUnavailable means the LLM judge could not be reached.
	ErrJudgmentUnavailable = errors.New("judgment unavailable")
)

// Verdict is the outcome of grading one submission.
type Verdict struct {
	Passed   bool   `json:"passed"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Feedback string `json:"feedback"`
}

// Oracle grades submissions. Execution always runs first; the judge is
// only consulted for a clean run, and a judge pass is the sole
// precondition callers use before crediting XP.
type Oracle struct {
	runner sandbox.Runner
	client llm.Client
	model  string
}

// NewOracle creates a grading oracle.
func NewOracle(runner sandbox.Runner, client llm.Client, model string) *Oracle {
	return &Oracle{runner: runner, client: client, model: model}
}

// Grade executes the submission and, if it ran cleanly, asks the judge
// for a pass/fail verdict. Any non-empty stderr fails the submission
// without invoking the judge.
func (o *Oracle) Grade(ctx context.Context, problem, source string) (*Verdict, error) {
	result, err := o.runner.Run(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionUnavailable, err)
	}

	if strings.TrimSpace(result.Stderr) != "" {
		slog.Info("Submission failed in sandbox", "stderr_len", len(result.Stderr))
		return &Verdict{
			Passed:   false,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			Feedback: "Your code raised an error. Read the traceback and try again.",
		}, nil
	}

	judgment, err := o.client.Complete(ctx, llm.Request{
		Model:    o.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: judgePrompt(problem, source, result.Stdout)}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJudgmentUnavailable, err)
	}

	// The judge is a fuzzy oracle: scan for the token, fail closed.
	passed := llm.VerdictIsPass(judgment)
	slog.Info("Submission judged", "passed", passed)

	return &Verdict{
		Passed:   passed,
		Stdout:   result.Stdout,
		Feedback: feedbackFrom(judgment),
	}, nil
}

// judgePrompt asks for a verdict line the parser can scan for, followed
// by reviewer-style feedback (score, correctness, style).
func judgePrompt(problem, source, output string) string {
	return fmt.Sprintf(`You are a Senior Engineer reviewing a student's solution.

Problem:
%s

Student code:
%s

Captured output:
%s

Task:
1. First line: exactly "VERDICT: YES" if the code solves the problem, or "VERDICT: NO" if it does not.
2. Give a Score (0-100).
3. Feedback: how to improve correctness, efficiency or style. Keep it short.`, problem, source, output)
}

// feedbackFrom strips the verdict line so the UI shows only the review.
func feedbackFrom(judgment string) string {
	lines := strings.SplitN(judgment, "\n", 2)
	if len(lines) == 2 && strings.Contains(strings.ToUpper(lines[0]), "VERDICT") {
		return strings.TrimSpace(lines[1])
	}
	return strings.TrimSpace(judgment)
}
