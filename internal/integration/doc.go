// Package integration runs master and slave against each other over loopback UDP.
package integration
