// Package transport opens the UDP sockets used by master and slave.
//
// Sockets are created with SO_BROADCAST so beacons can reach a subnet
// broadcast address, and optionally with address/port reuse so several slaves
// can share the well-known port on one host.
package transport
