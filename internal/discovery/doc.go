// Package discovery announces a running master over mDNS so that operators
// and tooling can find the broadcast port without configuration.
package discovery
