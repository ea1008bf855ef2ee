package contract

import (
	"fmt"
)

// Pair is one key-value pair of the fixed sequence.
type Pair struct {
	Key   string
	Value string
}

// The fixed operation sequence every import implementation performs:
// insert Seed in order, delete Removed, report the size, look up Probe and
// enumerate the rest.
var (
	Seed = []Pair{
		{"Alice", "teacher"},
		{"Bob", "musician"},
		{"Charlie", "chef"},
		{"Dan", "astronaut"},
	}
	Removed = "Dan"
	Probe   = "Alice"
)

// Golden is the transcript the fixed sequence must print.
var Golden = []string{
	"3 entries",
	"Alice is a teacher",
	"Alice is a teacher",
	"Bob is a musician",
	"Charlie is a chef",
}

// SizeLine formats the size report.
func SizeLine(n uint32) string {
	return fmt.Sprintf("%d entries", n)
}

// EntryLine formats one looked up or enumerated entry.
func EntryLine(key, value string) string {
	return fmt.Sprintf("%s is a %s", key, value)
}

// NotFoundLine formats a lookup miss.
func NotFoundLine(key string) string {
	return fmt.Sprintf("%s not found", key)
}
