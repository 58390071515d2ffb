package grader

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pycoach/server/internal/llm"
	"github.com/pycoach/server/internal/sandbox"
)

// fakeRunner returns a fixed result or error.
type fakeRunner struct {
	result sandbox.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, source string) (*sandbox.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := f.result
	return &copied, nil
}

func TestGradePassesOnCleanRunAndYesVerdict(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stdout: "42\n"}}
	judge := &llm.MockClient{Responses: []string{"VERDICT: YES\nScore: 95\nClean solution, well done."}}
	oracle := NewOracle(runner, judge, "judge-model")

	verdict, err := oracle.Grade(context.Background(), "print the answer", "print(42)")
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if !verdict.Passed {
		t.Error("verdict.Passed = false, want true")
	}
	if verdict.Stdout != "42\n" {
		t.Errorf("stdout = %q, want %q", verdict.Stdout, "42\n")
	}
	if strings.Contains(strings.ToUpper(verdict.Feedback), "VERDICT") {
		t.Errorf("feedback still contains the verdict line: %q", verdict.Feedback)
	}
	if !strings.Contains(verdict.Feedback, "Clean solution") {
		t.Errorf("feedback lost the review text: %q", verdict.Feedback)
	}
}

func TestGradeFailsOnNoVerdict(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stdout: "41\n"}}
	judge := &llm.MockClient{Responses: []string{"VERDICT: NO\nScore: 20\nOff by one."}}
	oracle := NewOracle(runner, judge, "judge-model")

	verdict, err := oracle.Grade(context.Background(), "print the answer", "print(41)")
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if verdict.Passed {
		t.Error("verdict.Passed = true, want false")
	}
}

func TestGradeStderrSkipsJudge(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stderr: "Traceback (most recent call last):\nNameError: name 'x' is not defined"}}
	judge := &llm.MockClient{Responses: []string{"VERDICT: YES"}}
	oracle := NewOracle(runner, judge, "judge-model")

	verdict, err := oracle.Grade(context.Background(), "print the answer", "print(x)")
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if verdict.Passed {
		t.Error("a submission with a traceback must not pass")
	}
	if judge.CallCount() != 0 {
		t.Errorf("judge was consulted %d times for a failed run, want 0", judge.CallCount())
	}
	if verdict.Stderr == "" {
		t.Error("verdict should carry the traceback back to the learner")
	}
}

func TestGradeRunnerFailure(t *testing.T) {
	runner := &fakeRunner{err: sandbox.ErrUnavailable}
	oracle := NewOracle(runner, &llm.MockClient{}, "judge-model")

	if _, err := oracle.Grade(context.Background(), "p", "print(1)"); !errors.Is(err, ErrExecutionUnavailable) {
		t.Errorf("error = %v, want ErrExecutionUnavailable", err)
	}
}

func TestGradeJudgeFailure(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stdout: "42\n"}}
	judge := &llm.MockClient{Err: &llm.ErrUnavailable{Err: errors.New("upstream down")}}
	oracle := NewOracle(runner, judge, "judge-model")

	if _, err := oracle.Grade(context.Background(), "p", "print(42)"); !errors.Is(err, ErrJudgmentUnavailable) {
		t.Errorf("error = %v, want ErrJudgmentUnavailable", err)
	}
}

func TestGradeSendsProblemAndCodeToJudge(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Stdout: "ok\n"}}
	judge := &llm.MockClient{Responses: []string{"VERDICT: YES"}}
	oracle := NewOracle(runner, judge, "judge-model")

	if _, err := oracle.Grade(context.Background(), "sum a list", "print(sum([1,2]))"); err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if len(judge.Requests) != 1 {
		t.Fatalf("judge requests = %d, want 1", len(judge.Requests))
	}
	prompt := judge.Requests[0].Messages[0].Content
	for _, want := range []string{"sum a list", "print(sum([1,2]))", "ok"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("judge prompt missing %q", want)
		}
	}
	if judge.Requests[0].Model != "judge-model" {
		t.Errorf("judge model = %q, want %q", judge.Requests[0].Model, "judge-model")
	}
}

func TestFeedbackFrom(t *testing.T) {
	tests := []struct {
		name     string
		judgment string
		want     string
	}{
		{"strips verdict line", "VERDICT: YES\nScore: 90. Nice work.", "Score: 90. Nice work."},
		{"verdict only", "VERDICT: NO", "VERDICT: NO"},
		{"no verdict line", "Just some feedback.", "Just some feedback."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := feedbackFrom(tt.judgment); got != tt.want {
				t.Errorf("feedbackFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}
