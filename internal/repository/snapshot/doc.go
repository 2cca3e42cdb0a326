// Package snapshot persists the latest offset estimate of a slave.
//
// The FileRepository writes the snapshot as protobuf JSON (a
// google.protobuf.Struct) so that other local processes can read the current
// offset without speaking the UDP protocol.
package snapshot
