package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-ffi/contract"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a\n", []string{"a"}},
		{"a\r\nb\r\n", []string{"a", "b"}},
		{"a\n\nb", []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitLines(tt.in), "input %q", tt.in)
	}
}

func TestLoadGolden(t *testing.T) {
	lines, err := LoadGolden("")
	require.NoError(t, err)
	assert.Equal(t, contract.Golden, lines)

	path := filepath.Join(t.TempDir(), "golden.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(contract.Golden, "\n")+"\n"), 0o600))
	lines, err = LoadGolden(path)
	require.NoError(t, err)
	assert.Equal(t, contract.Golden, lines)

	_, err = LoadGolden(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff(contract.Golden, contract.Golden, "same"))

	got := append([]string(nil), contract.Golden...)
	got[0] = "4 entries"
	d := Diff(contract.Golden, got, "native/direct")
	assert.Contains(t, d, "--- golden")
	assert.Contains(t, d, "+++ native/direct")
	assert.Contains(t, d, "-3 entries")
	assert.Contains(t, d, "+4 entries")
}
