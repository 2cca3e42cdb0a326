// Package health exposes the standard gRPC health service for the timesync
// binaries.
//
// The master reports SERVING once its socket is bound; the slave reports
// SERVING after its first completed round.
package health
