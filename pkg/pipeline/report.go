package pipeline

import (
	"time"

	"github.com/matzehuels/cargo-dl/pkg/errors"
	"github.com/matzehuels/cargo-dl/pkg/integrations/crates"
	"github.com/matzehuels/cargo-dl/pkg/resolve"
)

// Source records where archive bytes came from.
type Source string

const (
	SourceNone    Source = ""
	SourceCache   Source = "cache"
	SourceNetwork Source = "network"
)

// Outcome is the result for one specifier.
type Outcome struct {
	Spec     resolve.Specifier
	Archive  crates.Archive // Zero until a version was selected
	Path     string         // Output path, set once known
	Source   Source
	Bytes    int
	Err      error
	Duration time.Duration
}

// OK reports whether the specifier succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Code returns the error code of a failed outcome.
func (o Outcome) Code() errors.Code {
	if o.Err == nil {
		return ""
	}
	if c := errors.GetCode(o.Err); c != "" {
		return c
	}
	return errors.ErrCodeInternal
}

// Report collects outcomes in input order.
type Report struct {
	RunID    string
	Outcomes []Outcome
	Duration time.Duration
}

// Failed returns the outcomes that did not succeed, in input order.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded returns the number of successful outcomes.
func (r *Report) Succeeded() int {
	return len(r.Outcomes) - len(r.Failed())
}

// OK reports whether every specifier succeeded.
func (r *Report) OK() bool { return len(r.Failed()) == 0 }

// ExitCode is 0 when every specifier succeeded and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}
