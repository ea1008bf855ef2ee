//go:build !ffidebug

package abi

// debugChecks enables fail-fast assertions for contract violations.
const debugChecks = false
