package harness

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Status is the outcome of one pair.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusSkip Status = "skip"
)

// PairResult is the outcome of one (export, import) pair.
type PairResult struct {
	Export     string
	Import     string
	Status     Status
	Transcript []string
	Diff       string
	Reason     string
	Err        error
	Duration   time.Duration
}

// Label names the pair.
func (p PairResult) Label() string {
	return p.Export + " x " + p.Import
}

// Report collects builds and pair results of a run.
type Report struct {
	Golden  []string
	Builds  []BuildResult
	Pairs   []PairResult
	Started time.Time
	Elapsed time.Duration
}

// Counts returns the number of passing, failing and skipped pairs.
func (r *Report) Counts() (pass, fail, skip int) {
	for _, p := range r.Pairs {
		switch p.Status {
		case StatusPass:
			pass++
		case StatusFail:
			fail++
		case StatusSkip:
			skip++
		}
	}
	return pass, fail, skip
}

// BuildFailures returns the failed builds.
func (r *Report) BuildFailures() []BuildResult {
	var out []BuildResult
	for _, b := range r.Builds {
		if b.Failed() {
			out = append(out, b)
		}
	}
	return out
}

// Failures returns the failed pairs.
func (r *Report) Failures() []PairResult {
	var out []PairResult
	for _, p := range r.Pairs {
		if p.Status == StatusFail {
			out = append(out, p)
		}
	}
	return out
}

// Failed reports whether any build or pair failed. Skipped pairs do not
// fail a run, and nothing passes when nothing ran.
func (r *Report) Failed() bool {
	pass, fail, _ := r.Counts()
	return fail > 0 || len(r.BuildFailures()) > 0 || pass == 0
}

// Exports returns export names in first-seen order.
func (r *Report) Exports() []string {
	return r.names(func(p PairResult) string { return p.Export })
}

// Imports returns import names in first-seen order.
func (r *Report) Imports() []string {
	return r.names(func(p PairResult) string { return p.Import })
}

func (r *Report) names(key func(PairResult) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range r.Pairs {
		if k := key(p); !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Pair returns the result of the named pair.
func (r *Report) Pair(export, imp string) (PairResult, bool) {
	for _, p := range r.Pairs {
		if p.Export == export && p.Import == imp {
			return p, true
		}
	}
	return PairResult{}, false
}

// Styler decorates report text. The zero value leaves text plain.
type Styler struct {
	Pass, Fail, Skip, Header func(string) string
}

func (s Styler) apply(f func(string) string, text string) string {
	if f == nil {
		return text
	}
	return f(text)
}

func (s Styler) status(st Status) string {
	text := strings.ToUpper(string(st))
	switch st {
	case StatusPass:
		return s.apply(s.Pass, text)
	case StatusFail:
		return s.apply(s.Fail, text)
	}
	return s.apply(s.Skip, text)
}

// WriteText writes a line per build failure and pair, then the diff and
// error of every failing pair, then a summary line.
func (r *Report) WriteText(w io.Writer, style Styler) error {
	var b strings.Builder

	for _, f := range r.BuildFailures() {
		fmt.Fprintf(&b, "%s build %s: %v\n", style.apply(style.Fail, "FAIL"), f.Component.Name, f.Err)
		if out := strings.TrimSpace(f.Output); out != "" {
			for _, line := range strings.Split(out, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}

	for _, p := range r.Pairs {
		fmt.Fprintf(&b, "%s %-32s %s", style.status(p.Status), p.Label(), p.Duration.Round(time.Millisecond))
		if p.Status == StatusSkip && p.Reason != "" {
			fmt.Fprintf(&b, " (%s)", p.Reason)
		}
		b.WriteByte('\n')
	}

	for _, p := range r.Failures() {
		fmt.Fprintf(&b, "\n%s\n", style.apply(style.Header, "--- "+p.Label()))
		if p.Err != nil {
			fmt.Fprintf(&b, "error: %v\n", p.Err)
		}
		if p.Diff != "" {
			b.WriteString(p.Diff)
		}
	}

	pass, fail, skip := r.Counts()
	fmt.Fprintf(&b, "\n%d passed, %d failed, %d skipped, %d build failures\n",
		pass, fail, skip, len(r.BuildFailures()))

	_, err := io.WriteString(w, b.String())
	return err
}
