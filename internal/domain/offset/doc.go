// Package offset contains the core domain types for clock offset estimation.
//
// TimeOffset is a sign+magnitude value that expresses how far one instant is
// from another without relying on negative durations. Window keeps a bounded
// history of offset samples and exposes their arithmetic mean.
package offset
