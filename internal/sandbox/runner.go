// Package sandbox provides isolated execution of learner-submitted code.
package sandbox

import (
	"context"
	"errors"
)

// ErrUnavailable means the execution backend could not run the code at
// all (as opposed to the code itself failing).
var ErrUnavailable = errors.New("sandbox unavailable")

// Result carries the captured output of one execution. Any non-empty
// Stderr is treated as a failed run by the grading oracle.
type Result struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// Runner executes untrusted source text in isolation.
type Runner interface {
	// Run executes source and returns its captured output. The error is
	// non-nil only when the backend itself failed; a program that crashes
	// comes back as a Result with non-empty Stderr.
	Run(ctx context.Context, source string) (*Result, error)
}
