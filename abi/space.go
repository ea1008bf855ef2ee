package abi

// Space is one shared address space: the memory every primitive lives in,
// the function table function pointers index, scratch memory for the
// importing side and a source of host-produced closures.
type Space interface {
	Memory() Memory
	Table() Caller
	Stack() *Stack
	Trampolines() *Trampolines
}
