// Package version exposes build metadata of the timesync binary.
//
// Version, Commit and BuildTime are injected with -ldflags -X. When Commit is
// not injected it is taken from the VCS stamp embedded by the Go toolchain.
package version
