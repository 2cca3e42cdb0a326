// Package protocol defines the datagrams exchanged between master and slave
// and their binary encoding.
//
// Every datagram is a protobuf wire-format record: field 1 carries the message
// kind as a varint and field 2, present only on FollowUp and DelayResp, carries
// a google.protobuf.Timestamp. Master-origin and slave-origin kinds come from
// disjoint ranges, so a datagram of one family never decodes as the other.
package protocol
