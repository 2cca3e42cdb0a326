//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd || windows)

package transport

// The runtime already enables SO_BROADCAST on UDP sockets here.
func setSocketOptions(_ uintptr, reusePort bool) error {
	if reusePort {
		return errReusePortUnsupported
	}

	return nil
}
