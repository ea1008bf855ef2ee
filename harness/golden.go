package harness

import (
	"os"
	"slices"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/wippyai/wasm-ffi/contract"
)

// LoadGolden returns the expected transcript: the lines of path, or the
// builtin transcript when path is empty.
func LoadGolden(path string) ([]string, error) {
	if path == "" {
		return contract.Golden, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ewrap.Wrapf(err, "read golden transcript %s", path)
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits program output into lines. A trailing newline does not
// produce an empty last line, and CRLF endings are accepted.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Diff returns a unified diff from want to got, or "" when they are equal.
func Diff(want, got []string, label string) string {
	if slices.Equal(want, got) {
		return ""
	}
	d, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(want),
		B:        withNewlines(got),
		FromFile: "golden",
		ToFile:   label,
		Context:  3,
	})
	if err != nil {
		return err.Error()
	}
	return d
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
